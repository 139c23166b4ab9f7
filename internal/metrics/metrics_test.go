package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew(t *testing.T) {
	m := New(prometheus.NewRegistry())

	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.ExecutionsStored == nil {
		t.Error("ExecutionsStored not initialized")
	}
	if m.ExecutionsIngested == nil {
		t.Error("ExecutionsIngested not initialized")
	}
	if m.RelayDeliveries == nil {
		t.Error("RelayDeliveries not initialized")
	}
	if m.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal not initialized")
	}
}

func TestHandler(t *testing.T) {
	handler := Handler()
	if handler == nil {
		t.Fatal("Handler returned nil")
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Error("expected non-empty response body")
	}
}

func TestMetrics_RecordIngest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordIngest("playbook", "completed")
	m.RecordIngest("playbook", "completed")
	m.RecordIngest("rule", "failed")

	if got := testutil.ToFloat64(m.ExecutionsIngested.WithLabelValues("playbook", "completed")); got != 2 {
		t.Errorf("ingested{playbook,completed} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ExecutionsIngested.WithLabelValues("rule", "failed")); got != 1 {
		t.Errorf("ingested{rule,failed} = %v, want 1", got)
	}
}

func TestMetrics_RecordRelayDelivery(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordRelayDelivery("delivered")
	m.RecordRelayDelivery("failed")
	m.RecordRelayDelivery("delivered")

	if got := testutil.ToFloat64(m.RelayDeliveries.WithLabelValues("delivered")); got != 2 {
		t.Errorf("deliveries{delivered} = %v, want 2", got)
	}
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	// Should not panic
	m.RecordHTTPRequest("GET", "/api/v1/executions", "200", 0.1)
	m.RecordHTTPRequest("POST", "/api/v1/executions", "201", 0.2)
	m.RecordHTTPRequest("GET", "/api/v1/executions/abc", "404", 0.05)

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/executions", "200")); got != 1 {
		t.Errorf("http_requests{GET,200} = %v, want 1", got)
	}
}

func TestMetrics_SetStoredCounts(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetStoredCounts(10, 3, 5, 2)
	if got := testutil.ToFloat64(m.ExecutionsStored); got != 10 {
		t.Errorf("executions_stored = %v, want 10", got)
	}
	if got := testutil.ToFloat64(m.AnomaliesStored); got != 2 {
		t.Errorf("anomalies_stored = %v, want 2", got)
	}

	m.SetStoredCounts(0, 0, 0, 0)
	if got := testutil.ToFloat64(m.ExecutionsStored); got != 0 {
		t.Errorf("executions_stored after reset = %v, want 0", got)
	}
}
