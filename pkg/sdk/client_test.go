package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

func TestClientListExecutions(t *testing.T) {
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/executions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("status") != "running" || q.Get("window") != "7d" || q.Get("limit") != "10" {
			t.Errorf("query = %v", q)
		}
		respond(w, http.StatusOK, map[string]any{
			"executions": []Execution{
				{
					ID:              "exec-1",
					SourceType:      "playbook",
					SourceName:      "Phishing Response",
					Status:          "running",
					StartTime:       start,
					Badge:           Badge{Label: "running", Color: "warning", Icon: "spinner"},
					ProgressPercent: 50,
				},
			},
			"total": 1,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	execs, err := client.ListExecutions(context.Background(), Query{
		Status: "running", Window: "7d", Limit: 10,
	})
	if err != nil {
		t.Fatalf("ListExecutions() = %v", err)
	}
	if len(execs) != 1 || execs[0].ID != "exec-1" {
		t.Fatalf("executions = %+v", execs)
	}
	if execs[0].Badge.Label != "running" || execs[0].ProgressPercent != 50 {
		t.Errorf("derived fields not decoded: %+v", execs[0])
	}
}

func TestClientAbortExecution(t *testing.T) {
	requestedAt := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/executions/exec-1/abort" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["reason"] != "false positive" {
			t.Errorf("reason = %q", body["reason"])
		}
		respond(w, http.StatusAccepted, AbortResult{
			Abort: AbortRequest{
				ExecutionID: "exec-1",
				RequestedBy: Actor{ID: "analyst-1", Name: "Dana"},
				RequestedAt: requestedAt,
				Reason:      "false positive",
			},
			Relayed: true,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.AbortExecution(context.Background(), "exec-1", "false positive")
	if err != nil {
		t.Fatalf("AbortExecution() = %v", err)
	}
	if !result.Relayed || result.Abort.RequestedBy.Name != "Dana" {
		t.Errorf("result = %+v", result)
	}
}

func TestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Execution not found")
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.GetExecution(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected an error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "NOT_FOUND" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound() = false")
	}
}

func TestClientSendsAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "soar_key_123" {
			t.Errorf("X-API-Key = %q", r.Header.Get("X-API-Key"))
		}
		respond(w, http.StatusOK, Health{Status: "healthy", Version: "1.0.0"})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithAPIKey("soar_key_123"))
	health, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() = %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("health = %+v", health)
	}
}

func TestClientSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/summary" || r.URL.Query().Get("source") != "rule" {
			t.Errorf("%s?%s", r.URL.Path, r.URL.RawQuery)
		}
		respond(w, http.StatusOK, Summary{
			Total: 3, Succeeded: 1, Failed: 1, Running: 1,
			SuccessRatePercent: 33, AverageDurationSeconds: 20,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	sum, err := client.GetSummary(context.Background(), Query{Source: "rule"})
	if err != nil {
		t.Fatalf("GetSummary() = %v", err)
	}
	if sum.Total != 3 || sum.SuccessRatePercent != 33 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestClientPlaybookRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/playbooks":
			var pb Playbook
			json.NewDecoder(r.Body).Decode(&pb)
			pb.ID = "pb-1"
			respond(w, http.StatusCreated, pb)
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/playbooks":
			respond(w, http.StatusOK, []Playbook{{ID: "pb-1", Name: "Contain Host"}})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/playbooks/pb-1":
			respond(w, http.StatusOK, map[string]string{"id": "pb-1"})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	created, err := client.CreatePlaybook(ctx, &Playbook{Name: "Contain Host", Enabled: true})
	if err != nil {
		t.Fatalf("CreatePlaybook() = %v", err)
	}
	if created.ID != "pb-1" {
		t.Errorf("created = %+v", created)
	}

	listed, err := client.ListPlaybooks(ctx)
	if err != nil {
		t.Fatalf("ListPlaybooks() = %v", err)
	}
	if len(listed) != 1 || listed[0].Name != "Contain Host" {
		t.Errorf("listed = %+v", listed)
	}

	if err := client.DeletePlaybook(ctx, "pb-1"); err != nil {
		t.Fatalf("DeletePlaybook() = %v", err)
	}
}
