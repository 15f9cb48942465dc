package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsOpenedTotal counts sessions that reached the Open state.
	SessionsOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunnelgate_sessions_opened_total",
			Help: "Total number of sessions that reached the open state, by relay role",
		},
		[]string{"role"},
	)

	// SessionsClosedTotal counts sessions torn down, labeled by why.
	SessionsClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunnelgate_sessions_closed_total",
			Help: "Total number of sessions torn down, by relay role and reason",
		},
		[]string{"role", "reason"},
	)

	// ActiveSessions is the current number of live sessions.
	ActiveSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tunnelgate_active_sessions",
			Help: "Current number of sessions registered with this relay",
		},
		[]string{"role"},
	)

	// BytesTransferredTotal counts payload bytes moved, pre-envelope.
	BytesTransferredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunnelgate_bytes_transferred_total",
			Help: "Total raw payload bytes transferred, by relay role and direction",
		},
		[]string{"role", "direction"},
	)

	// HTTPRequestDuration times the ingress relay's PUT/POST/DELETE
	// calls to the egress relay, and the egress relay's callback
	// POSTs, by method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tunnelgate_http_request_duration_seconds",
			Help:    "Duration of outbound tunnel HTTP calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"role", "method"},
	)

	// HTTPRequestsTotal counts outbound tunnel HTTP calls by result.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunnelgate_http_requests_total",
			Help: "Total outbound tunnel HTTP calls, by relay role, method, and outcome",
		},
		[]string{"role", "method", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsOpenedTotal,
		SessionsClosedTotal,
		ActiveSessions,
		BytesTransferredTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
