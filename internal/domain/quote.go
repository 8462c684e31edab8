package domain

import (
	"context"

	"github.com/alanyoungcy/stakecalc/internal/amount"
)

// Quoter asks the staking contract for stake/stipend conversions evaluated
// at the current time. Results depend on wall-clock time and must not be
// cached.
type Quoter interface {
	QuoteStakeForStipend(ctx context.Context, stipend amount.Amount) (amount.Amount, error)
	QuoteStipendForStake(ctx context.Context, stake amount.Amount) (amount.Amount, error)
}

// MarketplaceFetcher reads the marketplace listing API without caching.
type MarketplaceFetcher interface {
	FetchModels(ctx context.Context) ([]Model, error)
	FetchBids(ctx context.Context, modelBlockchainID string) ([]ScoredBid, error)
}

// Event channels published on the SignalBus.
const (
	ChannelMarketplace = "marketplace.refreshed"
)

// RefreshEvent announces that a cache entry was replaced with fresh data.
type RefreshEvent struct {
	Resource    string `json:"resource"` // "models" or "bids"
	ModelID     string `json:"model_id,omitempty"`
	Count       int    `json:"count"`
	FetchedAtMs int64  `json:"fetched_at_ms"`
}
