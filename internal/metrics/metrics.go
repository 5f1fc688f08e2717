package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the bot's collectors. A nil *Metrics is valid and records
// nothing, which keeps tests and the CLI free of registry plumbing.
type Metrics struct {
	Registry *prometheus.Registry

	actions         *prometheus.CounterVec
	upstream        *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	sessions        *prometheus.CounterVec
	pollFailures    prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketbot",
			Name:      "actions_total",
			Help:      "Navigation actions handled, by action and outcome.",
		}, []string{"action", "outcome"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketbot",
			Name:      "upstream_requests_total",
			Help:      "Calls to market data and chart providers, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketbot",
			Name:      "upstream_request_seconds",
			Help:      "Latency of provider calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		}, []string{"provider"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketbot",
			Name:      "session_lookups_total",
			Help:      "Session store operations, by operation and result.",
		}, []string{"op", "result"}),
		pollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketbot",
			Name:      "poll_failures_total",
			Help:      "Failed getUpdates calls.",
		}),
	}
	reg.MustRegister(
		m.actions, m.upstream, m.upstreamLatency, m.sessions, m.pollFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Action(action, outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) Upstream(provider, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(provider, outcome).Inc()
	m.upstreamLatency.WithLabelValues(provider).Observe(took.Seconds())
}

func (m *Metrics) Session(op, result string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(op, result).Inc()
}

func (m *Metrics) PollFailure() {
	if m == nil {
		return
	}
	m.pollFailures.Inc()
}
