package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gateway's Prometheus instruments. Construct one per
// process with the registry the HTTP server exposes; tests pass their own
// registry to avoid duplicate registration.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	rejected *prometheus.CounterVec
	inflight prometheus.Gauge
}

// NewMetrics registers the gateway instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "requests_total",
			Help:      "Requests by action and result code (code=ok on success).",
		}, []string{"action", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Full pipeline duration by action.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "pipeline_rejections_total",
			Help:      "Requests terminated before dispatch, by stage code.",
		}, []string{"code"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "handlers_in_flight",
			Help:      "Handler executions currently running.",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.rejected, m.inflight)
	return m
}

func (m *Metrics) observe(action string, code Code, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "ok"
	if code != "" {
		label = string(code)
	}
	m.requests.WithLabelValues(action, label).Inc()
	m.duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

func (m *Metrics) reject(code Code) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(string(code)).Inc()
}

func (m *Metrics) handlerStarted() {
	if m != nil {
		m.inflight.Inc()
	}
}

func (m *Metrics) handlerFinished() {
	if m != nil {
		m.inflight.Dec()
	}
}
