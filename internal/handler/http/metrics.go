package http

import (
	"net/http"
)

// health is the liveness probe.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ok(w, http.StatusOK, "", map[string]any{"status": "healthy"})
}

// loginPerformance serves the rolling login counters.
func (h *Handler) loginPerformance(w http.ResponseWriter, r *http.Request) {
	ok(w, http.StatusOK, "", h.services.Metrics.Snapshot())
}
