package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	mode         string
	cacheBackend string
	startedAt    time.Time
	logger       *slog.Logger
}

// NewHealthHandler creates a HealthHandler reporting the running mode and
// cache backend.
func NewHealthHandler(mode, cacheBackend string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		mode:         mode,
		cacheBackend: cacheBackend,
		startedAt:    time.Now(),
		logger:       logger,
	}
}

// HealthCheck responds with a simple JSON status indicating the server is alive.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"mode":           h.mode,
		"cache_backend":  h.cacheBackend,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}
