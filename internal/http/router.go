package http

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketbot/bot-go/internal/config"
	"marketbot/bot-go/internal/metrics"
)

// NewRouter serves /healthz and, when metrics are enabled, /metrics.
func NewRouter(cfg config.Config, deps Deps, m *metrics.Metrics) http.Handler {
	ops := &opsAPI{cfg: cfg, deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", ops.Health)
	if m != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}

	h := http.Handler(mux)
	h = withRecovery(h)
	h = withLogging(h)
	return h
}

func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
