package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/stakecalc/internal/domain"
)

// RefreshHandler serves the durable refresh history.
type RefreshHandler struct {
	log    domain.RefreshLog
	logger *slog.Logger
}

// NewRefreshHandler creates a RefreshHandler.
func NewRefreshHandler(log domain.RefreshLog, logger *slog.Logger) *RefreshHandler {
	return &RefreshHandler{log: log, logger: logger}
}

// ListRecent returns the most recent marketplace refreshes.
// GET /api/refreshes?limit=50
func (h *RefreshHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	events, err := h.log.Recent(r.Context(), limitParam(r, 50, 500))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list refreshes failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list refreshes")
		return
	}
	if events == nil {
		events = []domain.RefreshEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"refreshes": events})
}
