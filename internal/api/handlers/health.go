package handlers

import (
	"encoding/json"
	"net/http"

	"crossfeed/internal/orchestrator"
)

// HealthHandler serves GET /api/health. It always returns 200 OK per
// spec.md §4.8 and attaches the per-venue health registry snapshot as a
// diagnostic body rather than as part of the status contract.
type HealthHandler struct {
	health *orchestrator.HealthRegistry
}

func NewHealthHandler(health *orchestrator.HealthRegistry) *HealthHandler {
	return &HealthHandler{health: health}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"venues": h.health.Snapshot(),
	})
}
