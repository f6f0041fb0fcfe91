package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric collectors for the gateway.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ActiveStreams    prometheus.Gauge
	UpstreamHealthy  *prometheus.GaugeVec
	LimitRejections  *prometheus.CounterVec
	UsageWriteErrors prometheus.Counter
}

// New creates and registers a new Metrics instance using a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of proxied requests.",
		}, []string{"method", "path", "status_code"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Duration of proxied requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_active_streams",
			Help: "Number of currently active streaming connections.",
		}),

		UpstreamHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_upstream_healthy",
			Help: "Upstream health as reported by probes (1=healthy, 0=unhealthy).",
		}, []string{"upstream"}),

		LimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_limit_rejections_total",
			Help: "Requests rejected because a tenant's daily spend cap was reached.",
		}, []string{"tenant"}),

		UsageWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_usage_write_failures_total",
			Help: "Usage records that could not be appended to the store.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveStreams,
		m.UpstreamHealthy,
		m.LimitRejections,
		m.UsageWriteErrors,
	)

	return m
}

// SetUpstreamHealth records a probe transition for an upstream.
func (m *Metrics) SetUpstreamHealth(upstreamID string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	m.UpstreamHealthy.WithLabelValues(upstreamID).Set(v)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint
// using the metrics instance's dedicated registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
