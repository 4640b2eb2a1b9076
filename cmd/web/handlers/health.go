package handlers

import (
	"context"
	"net/http"

	"storefront/internal/health"
	"storefront/kit/observability"
)

type HealthContract interface {
	Check(ctx context.Context) health.Result
}

type Health struct {
	svc    HealthContract
	logger *observability.Logger
}

func NewHealth(svc HealthContract, logger *observability.Logger) *Health {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Health{svc: svc, logger: logger}
}

func (h *Health) Handler(w http.ResponseWriter, r *http.Request) {
	res := h.svc.Check(r.Context())
	status := http.StatusOK
	state := "up"
	if !res.OK {
		status = http.StatusServiceUnavailable
		state = "down"
		h.logger.Warn("health down", "layer", "handler", "component", "health", "checks", res.Checks)
	}
	writeJSON(w, h.logger, status, map[string]any{"status": state, "checks": res.Checks, "at": res.At})
}
