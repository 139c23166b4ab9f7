// Package metrics provides Prometheus metrics for the SOAR console.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the console daemon.
type Metrics struct {
	// Record gauges, refreshed on each retention sweep.
	ExecutionsStored prometheus.Gauge
	PlaybooksStored  prometheus.Gauge
	RulesStored      prometheus.Gauge
	AnomaliesStored  prometheus.Gauge

	// Ingest metrics
	ExecutionsIngested *prometheus.CounterVec

	// Abort metrics
	AbortRequestsTotal prometheus.Counter
	RelayDeliveries    *prometheus.CounterVec

	// Retention metrics
	ExecutionsPruned prometheus.Counter

	// Notice metrics
	NoticesTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a Metrics instance registered with reg. A nil registerer
// uses the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ExecutionsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "soar",
			Name:      "executions_stored",
			Help:      "Number of execution records currently stored.",
		}),
		PlaybooksStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "soar",
			Name:      "playbooks_stored",
			Help:      "Number of playbook definitions currently stored.",
		}),
		RulesStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "soar",
			Name:      "rules_stored",
			Help:      "Number of detection rules currently stored.",
		}),
		AnomaliesStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "soar",
			Name:      "anomalies_stored",
			Help:      "Number of anomalies currently stored.",
		}),
		ExecutionsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soar",
			Name:      "executions_ingested_total",
			Help:      "Total number of execution records pushed by engines.",
		}, []string{"source_type", "status"}),
		AbortRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soar",
			Name:      "abort_requests_total",
			Help:      "Total number of abort requests accepted.",
		}),
		RelayDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soar",
			Name:      "relay_deliveries_total",
			Help:      "Total number of finished abort relay deliveries.",
		}, []string{"outcome"}),
		ExecutionsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soar",
			Name:      "executions_pruned_total",
			Help:      "Total number of execution records removed by retention.",
		}),
		NoticesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soar",
			Name:      "notices_total",
			Help:      "Total number of notices published.",
		}, []string{"severity"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soar",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "soar",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	reg.MustRegister(
		m.ExecutionsStored,
		m.PlaybooksStored,
		m.RulesStored,
		m.AnomaliesStored,
		m.ExecutionsIngested,
		m.AbortRequestsTotal,
		m.RelayDeliveries,
		m.ExecutionsPruned,
		m.NoticesTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordIngest records an ingested execution record.
func (m *Metrics) RecordIngest(sourceType, status string) {
	m.ExecutionsIngested.WithLabelValues(sourceType, status).Inc()
}

// RecordRelayDelivery records a finished abort relay delivery.
func (m *Metrics) RecordRelayDelivery(outcome string) {
	m.RelayDeliveries.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records an HTTP request metric.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// SetStoredCounts refreshes the stored-record gauges.
func (m *Metrics) SetStoredCounts(executions, playbooks, rules, anomalies int) {
	m.ExecutionsStored.Set(float64(executions))
	m.PlaybooksStored.Set(float64(playbooks))
	m.RulesStored.Set(float64(rules))
	m.AnomaliesStored.Set(float64(anomalies))
}
