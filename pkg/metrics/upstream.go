package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics records calls made by the proxy to the commerce gateway.
type UpstreamMetrics struct {
	duration *prometheus.HistogramVec
	requests *prometheus.CounterVec
}

// NewUpstreamMetrics registers the upstream metrics on the provided registerer.
func NewUpstreamMetrics(reg prometheus.Registerer) *UpstreamMetrics {
	if reg == nil {
		return &UpstreamMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "florist_upstream_duration_seconds",
		Help:    "Duration of commerce gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "florist_upstream_requests_total",
		Help: "Commerce gateway calls by operation and status.",
	}, []string{"operation", "status"})
	reg.MustRegister(duration, requests)
	return &UpstreamMetrics{duration: duration, requests: requests}
}

// Observe records one upstream call. status 0 means the call never got a response.
func (m *UpstreamMetrics) Observe(operation string, status int, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	op := normalizeLabel(operation)
	m.duration.WithLabelValues(op).Observe(duration.Seconds())
	label := "transport_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(op, label).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
