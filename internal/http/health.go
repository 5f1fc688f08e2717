package http

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sort"
	"time"

	"marketbot/bot-go/internal/config"
	"marketbot/bot-go/internal/models"
)

type SessionPinger interface {
	Ping(ctx context.Context) error
	Backend() string
}

// BreakerReporter exposes circuit breaker states keyed by provider.
type BreakerReporter interface {
	BreakerStates() map[string]string
}

type Deps struct {
	Sessions SessionPinger
	Breakers []BreakerReporter
}

type opsAPI struct {
	cfg  config.Config
	deps Deps
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *opsAPI) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := []string{}
	missing := []string{}
	depsStatus := map[string]models.DepStatus{}
	if s := a.deps.Sessions; s != nil {
		if err := s.Ping(ctx); err != nil {
			missing = append(missing, "sessions_unreachable")
			depsStatus["sessions"] = models.DepStatus{Ok: false, Backend: s.Backend(), Error: err.Error()}
		} else {
			deps = append(deps, "sessions")
			depsStatus["sessions"] = models.DepStatus{Ok: true, Backend: s.Backend()}
		}
	}

	breakers := map[string]string{}
	for _, b := range a.deps.Breakers {
		for name, state := range b.BreakerStates() {
			breakers[name] = state
		}
	}
	open := []string{}
	for name, state := range breakers {
		if state == "open" {
			open = append(open, name+"_circuit_open")
		}
	}
	sort.Strings(open)
	missing = append(missing, open...)

	code := http.StatusOK
	if _, down := depsStatus["sessions"]; down && !depsStatus["sessions"].Ok {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, models.HealthResponse{
		Ok:          len(missing) == 0,
		TsISO:       time.Now().UTC().Format(time.RFC3339),
		Service:     "marketbot",
		Version:     os.Getenv("SERVICE_VERSION"),
		Deps:        deps,
		DepsStatus:  depsStatus,
		DataMissing: missing,
		Breakers:    breakers,
		Env: map[string]bool{
			"BOT_TOKEN":  a.cfg.BotToken != "",
			"REDIS_URL":  a.cfg.RedisURL != "",
			"GROUP_LINK": a.cfg.GroupLink != "",
		},
		Features: map[string]bool{
			"chart_images":    a.cfg.ChartMode == config.ChartModeImage,
			"redis_sessions":  a.deps.Sessions != nil && a.deps.Sessions.Backend() == "redis",
			"join_group_link": a.cfg.GroupLink != "",
		},
	})
}
