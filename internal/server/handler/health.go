package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// pingTimeout bounds each backend probe so a hung dependency cannot stall
// the health endpoint past load-balancer deadlines.
const pingTimeout = 2 * time.Second

// HealthHandler serves the health-check endpoint. Beyond process liveness it
// probes each wired backend (postgres, redis, s3) and degrades the overall
// status when one is unreachable.
type HealthHandler struct {
	checks map[string]func(context.Context) error
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. checks maps backend names to
// their connectivity probes; nil or empty means liveness only.
func NewHealthHandler(checks map[string]func(context.Context) error, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger}
}

// HealthCheck reports overall and per-backend status.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	backends := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			backends[name] = "unavailable"
			status = "degraded"
			code = http.StatusServiceUnavailable
			h.logger.WarnContext(r.Context(), "backend health check failed",
				slog.String("backend", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		backends[name] = "ok"
	}

	resp := map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(backends) > 0 {
		resp["backends"] = backends
	}
	writeJSON(w, code, resp)
}
