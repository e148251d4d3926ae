// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"

	"github.com/zcb617/openclaw-memory-pro/pkg/api/response"
	"github.com/zcb617/openclaw-memory-pro/pkg/memory"
	"github.com/zcb617/openclaw-memory-pro/pkg/version"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	hub *memory.MemoryHub
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(hub *memory.MemoryHub) *HealthHandler {
	return &HealthHandler{
		hub: hub,
	}
}

// Health handles the /health endpoint (liveness probe).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Ready handles the /ready endpoint (readiness probe).
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.hub != nil && h.hub.Ready() {
		response.JSON(w, http.StatusOK, map[string]bool{
			"ready": true,
		})
	} else {
		response.JSON(w, http.StatusServiceUnavailable, map[string]bool{
			"ready": false,
		})
	}
}

// Status handles the /status endpoint (detailed status).
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"version": version.Info(),
	}
	if h.hub != nil {
		status["ready"] = h.hub.Ready()
		hitRate, lookups := h.hub.CacheHitRate()
		status["cache"] = map[string]any{
			"l1_hit_rate": hitRate,
			"l1_lookups":  lookups,
		}
	}
	response.JSON(w, http.StatusOK, status)
}
