package handlers

import (
	"net/http"

	"storefront/internal/metrics"
	"storefront/kit/observability"
)

type Metrics struct {
	svc    *metrics.Service
	logger *observability.Logger
}

func NewMetrics(svc *metrics.Service, logger *observability.Logger) *Metrics {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Metrics{svc: svc, logger: logger}
}

// Stats serves a JSON snapshot of the storefront counters. Prometheus
// scrapes /metrics instead.
func (h *Metrics) Stats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot()
	if err != nil {
		h.logger.Error("metrics snapshot failed", "layer", "handler", "component", "metrics", "error", err.Error())
		writeJSON(w, h.logger, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, h.logger, http.StatusOK, snap)
}
