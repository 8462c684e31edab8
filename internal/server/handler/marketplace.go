package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/stakecalc/internal/amount"
	"github.com/alanyoungcy/stakecalc/internal/domain"
)

// MarketplaceService defines the methods the marketplace handler requires
// from the service layer.
type MarketplaceService interface {
	ListModels(ctx context.Context, forceRefresh bool) ([]domain.Model, error)
	ListBids(ctx context.Context, modelBlockchainID string, forceRefresh bool) ([]domain.ScoredBid, error)
	TopBid(ctx context.Context, modelBlockchainID string, forceRefresh bool) (domain.ScoredBid, bool, error)
	BestBidsForAllModels(ctx context.Context, forceRefresh bool) ([]domain.ModelBestBid, error)
	InvalidateModels(ctx context.Context) error
	InvalidateBids(ctx context.Context, modelBlockchainID string) error
}

// MarketplaceHandler serves model and bid listings.
type MarketplaceHandler struct {
	svc    MarketplaceService
	logger *slog.Logger
}

// NewMarketplaceHandler creates a MarketplaceHandler.
func NewMarketplaceHandler(svc MarketplaceService, logger *slog.Logger) *MarketplaceHandler {
	return &MarketplaceHandler{svc: svc, logger: logger}
}

// ListModels returns the model list.
// GET /api/models?refresh=true
func (h *MarketplaceHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.svc.ListModels(r.Context(), refreshParam(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list models", err)
		return
	}
	if models == nil {
		models = []domain.Model{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// ListBids returns the rated bids for a model.
// GET /api/models/{id}/bids?refresh=true
func (h *MarketplaceHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	bids, err := h.svc.ListBids(r.Context(), pathParam(r, "id"), refreshParam(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list bids", err)
		return
	}
	if bids == nil {
		bids = []domain.ScoredBid{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": bids})
}

// BestBid returns the recommended bid for a model with its price in MOR, or
// {"bid": null} when the model has none.
// GET /api/models/{id}/best-bid?refresh=true
func (h *MarketplaceHandler) BestBid(w http.ResponseWriter, r *http.Request) {
	best, ok, err := h.svc.TopBid(r.Context(), pathParam(r, "id"), refreshParam(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "best bid", err)
		return
	}
	resp := map[string]any{"bid": nil}
	if ok {
		resp["bid"] = &best
		resp["price_mor"] = amount.RoundDisplay(best.Bid.PricePerSecond, priceDisplayPlaces)
	}
	writeJSON(w, http.StatusOK, resp)
}

// priceDisplayPlaces keeps per-second prices, usually a few gwei, readable
// in MOR.
const priceDisplayPlaces = 10

// BestBids returns every model with its recommended bid.
// GET /api/best-bids?refresh=true
func (h *MarketplaceHandler) BestBids(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.BestBidsForAllModels(r.Context(), refreshParam(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "best bids", err)
		return
	}
	if out == nil {
		out = []domain.ModelBestBid{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": out})
}

// InvalidateModels drops the cached model list.
// DELETE /api/models/cache
func (h *MarketplaceHandler) InvalidateModels(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.InvalidateModels(r.Context()); err != nil {
		writeServiceError(w, r, h.logger, "invalidate models", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InvalidateBids drops the cached bid list for a model.
// DELETE /api/models/{id}/bids/cache
func (h *MarketplaceHandler) InvalidateBids(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.InvalidateBids(r.Context(), pathParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, "invalidate bids", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
