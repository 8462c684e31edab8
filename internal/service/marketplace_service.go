package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/stakecalc/internal/cache"
	"github.com/alanyoungcy/stakecalc/internal/domain"
)

// Default expiry windows, measured from fetch completion.
const (
	DefaultModelsTTL = time.Hour
	DefaultBidsTTL   = 5 * time.Minute

	defaultFanOut = 4
)

// MarketplaceConfig tunes the MarketplaceService. Zero values take the
// defaults above.
type MarketplaceConfig struct {
	ModelsTTL time.Duration
	BidsTTL   time.Duration
	// FanOut bounds concurrent bid fetches in BestBidsForAllModels.
	FanOut int
	// Now is the clock used for entry timestamps and expiry. Defaults to
	// time.Now.
	Now func() time.Time
}

// MarketplaceService serves model and bid listings through a lazily expiring
// cache. There is no request coalescing: concurrent misses for the same key
// each fetch, and the last write wins.
type MarketplaceService struct {
	fetcher domain.MarketplaceFetcher
	models  *cache.Expiring[[]domain.Model]
	bids    *cache.Expiring[[]domain.ScoredBid]
	bus     domain.SignalBus
	fanOut  int
	now     func() time.Time
	logger  *slog.Logger
}

// NewMarketplaceService creates a MarketplaceService. bus may be nil, in
// which case no refresh events are published.
func NewMarketplaceService(
	fetcher domain.MarketplaceFetcher,
	store domain.KVStore,
	bus domain.SignalBus,
	cfg MarketplaceConfig,
	logger *slog.Logger,
) *MarketplaceService {
	if cfg.ModelsTTL <= 0 {
		cfg.ModelsTTL = DefaultModelsTTL
	}
	if cfg.BidsTTL <= 0 {
		cfg.BidsTTL = DefaultBidsTTL
	}
	if cfg.FanOut <= 0 {
		cfg.FanOut = defaultFanOut
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &MarketplaceService{
		fetcher: fetcher,
		models:  cache.NewExpiring[[]domain.Model](store, cfg.ModelsTTL, cfg.Now),
		bids:    cache.NewExpiring[[]domain.ScoredBid](store, cfg.BidsTTL, cfg.Now),
		bus:     bus,
		fanOut:  cfg.FanOut,
		now:     cfg.Now,
		logger:  logger.With(slog.String("component", "marketplace_service")),
	}
}

// ListModels returns the model list, from cache when a fresh entry exists
// and forceRefresh is false. A failed fetch is returned as-is; stale data is
// never served in its place.
func (s *MarketplaceService) ListModels(ctx context.Context, forceRefresh bool) ([]domain.Model, error) {
	if !forceRefresh {
		if models, ok := readCache(ctx, s.logger, s.models, cache.ModelsKey); ok {
			return models, nil
		}
	}

	models, err := s.fetcher.FetchModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("marketplace_service: fetch models: %w", err)
	}
	fetchedAt := s.now()

	s.store(ctx, cache.ModelsKey, func() error {
		return s.models.Put(ctx, cache.ModelsKey, models, fetchedAt)
	})
	s.publish(ctx, domain.RefreshEvent{
		Resource:    "models",
		Count:       len(models),
		FetchedAtMs: fetchedAt.UnixMilli(),
	})
	return models, nil
}

// ListBids returns the rated bids for one model. An empty model ID fails
// with domain.ErrInvalidModelReference before any cache or network access.
func (s *MarketplaceService) ListBids(ctx context.Context, modelBlockchainID string, forceRefresh bool) ([]domain.ScoredBid, error) {
	if modelBlockchainID == "" {
		return nil, domain.ErrInvalidModelReference
	}
	key := cache.BidsKey(modelBlockchainID)

	if !forceRefresh {
		if bids, ok := readCache(ctx, s.logger, s.bids, key); ok {
			return bids, nil
		}
	}

	bids, err := s.fetcher.FetchBids(ctx, modelBlockchainID)
	if err != nil {
		return nil, fmt.Errorf("marketplace_service: fetch bids %s: %w", modelBlockchainID, err)
	}
	fetchedAt := s.now()

	s.store(ctx, key, func() error {
		return s.bids.Put(ctx, key, bids, fetchedAt)
	})
	s.publish(ctx, domain.RefreshEvent{
		Resource:    "bids",
		ModelID:     modelBlockchainID,
		Count:       len(bids),
		FetchedAtMs: fetchedAt.UnixMilli(),
	})
	return bids, nil
}

// InvalidateModels drops the cached model list.
func (s *MarketplaceService) InvalidateModels(ctx context.Context) error {
	if err := s.models.Invalidate(ctx, cache.ModelsKey); err != nil {
		return fmt.Errorf("marketplace_service: invalidate models: %w", err)
	}
	return nil
}

// InvalidateBids drops the cached bid list for one model.
func (s *MarketplaceService) InvalidateBids(ctx context.Context, modelBlockchainID string) error {
	if modelBlockchainID == "" {
		return domain.ErrInvalidModelReference
	}
	if err := s.bids.Invalidate(ctx, cache.BidsKey(modelBlockchainID)); err != nil {
		return fmt.Errorf("marketplace_service: invalidate bids %s: %w", modelBlockchainID, err)
	}
	return nil
}

// TopBid returns the recommended bid for a model. ok is false when the model
// has no bids.
func (s *MarketplaceService) TopBid(ctx context.Context, modelBlockchainID string, forceRefresh bool) (domain.ScoredBid, bool, error) {
	bids, err := s.ListBids(ctx, modelBlockchainID, forceRefresh)
	if err != nil {
		return domain.ScoredBid{}, false, err
	}
	best, ok := BestBid(bids)
	return best, ok, nil
}

// BestBidsForAllModels lists every model and its recommended bid. Bid lists
// are fetched concurrently; any failure fails the whole call.
func (s *MarketplaceService) BestBidsForAllModels(ctx context.Context, forceRefresh bool) ([]domain.ModelBestBid, error) {
	models, err := s.ListModels(ctx, forceRefresh)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ModelBestBid, len(models))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOut)

	for i, m := range models {
		out[i].Model = m
		if m.BlockchainID == "" {
			continue
		}
		g.Go(func() error {
			best, ok, err := s.TopBid(gctx, m.BlockchainID, forceRefresh)
			if err != nil {
				return err
			}
			if ok {
				out[i].Bid = &best
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// readCache reads key from c. Storage failures are logged and reported as a
// miss so a broken backend degrades to always fetching.
func readCache[T any](ctx context.Context, logger *slog.Logger, c *cache.Expiring[T], key string) (T, bool) {
	v, ok, err := c.Get(ctx, key)
	if err != nil {
		logger.WarnContext(ctx, "cache read failed, treating as miss",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		var zero T
		return zero, false
	}
	return v, ok
}

// store runs put and logs a failure. Fresh data is returned to the caller
// regardless.
func (s *MarketplaceService) store(ctx context.Context, key string, put func() error) {
	if err := put(); err != nil {
		s.logger.WarnContext(ctx, "cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketplaceService) publish(ctx context.Context, ev domain.RefreshEvent) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelMarketplace, payload); err != nil {
		s.logger.WarnContext(ctx, "publish refresh event failed",
			slog.String("resource", ev.Resource),
			slog.String("error", err.Error()),
		)
	}
}
