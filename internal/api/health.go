package api

import (
	"context"
	"net/http"
	"time"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a ping call, e.g. a redis client's Ping(ctx).Err().
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	sinks   map[string]Pinger
	env     string
	version string
}

// NewHealthHandler reports on the audit sinks that were configured. Nil
// entries are skipped; an instance with no sinks is always ready.
func NewHealthHandler(sinks map[string]Pinger, env, version string) *HealthHandler {
	configured := make(map[string]Pinger, len(sinks))
	for name, p := range sinks {
		if p != nil {
			configured[name] = p
		}
	}
	return &HealthHandler{
		sinks:   configured,
		env:     env,
		version: version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	})
}

// Readiness pings each sink. Sinks are best-effort, so a sink being down
// degrades the service but never makes it unready.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.sinks))
	status := "ok"

	for name, p := range h.sinks {
		pingCtx, pingCancel := context.WithTimeout(ctx, time.Second)
		err := p.Ping(pingCtx)
		pingCancel()
		if err != nil {
			deps[name] = "down"
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	writeJSON(w, http.StatusOK, ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	})
}
