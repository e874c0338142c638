package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	errors         *prometheus.CounterVec
	webhookEvents  *prometheus.CounterVec
	directorySyncs *prometheus.CounterVec
	triageOutcomes *prometheus.CounterVec
	triageLatency  prometheus.Histogram
}

// NewMetrics creates and registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_desk_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"path", "method", "status"}),
		requestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "triage_desk_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_desk_http_errors_total",
			Help: "HTTP errors by route, method and error code",
		}, []string{"path", "method", "code"}),
		webhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_desk_webhook_events_total",
			Help: "Identity webhook events by type and outcome",
		}, []string{"type", "outcome"}),
		directorySyncs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_desk_directory_syncs_total",
			Help: "Directory sync operations by source and outcome",
		}, []string{"source", "outcome"}),
		triageOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_desk_triage_outcomes_total",
			Help: "Ticket triage attempts by outcome",
		}, []string{"outcome"}),
		triageLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "triage_desk_triage_duration_seconds",
			Help:    "Latency of reasoning-service calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordWebhook counts an ingested webhook event.
func (m *Metrics) RecordWebhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// RecordSync counts a directory sync by source (claims, webhook) and outcome.
func (m *Metrics) RecordSync(source, outcome string) {
	if m == nil {
		return
	}
	m.directorySyncs.WithLabelValues(source, outcome).Inc()
}

// RecordTriage counts a triage attempt and its reasoning-service latency.
func (m *Metrics) RecordTriage(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.triageOutcomes.WithLabelValues(outcome).Inc()
	if duration > 0 {
		m.triageLatency.Observe(duration.Seconds())
	}
}
