package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/stakecalc/internal/amount"
	"github.com/alanyoungcy/stakecalc/internal/cache"
	"github.com/alanyoungcy/stakecalc/internal/cache/memory"
	"github.com/alanyoungcy/stakecalc/internal/domain"
)

func scored(id string, score float64, price uint64) domain.ScoredBid {
	return domain.ScoredBid{
		ID:    id,
		Bid:   domain.Bid{ID: id, PricePerSecond: amount.FromUint64(price)},
		Score: score,
	}
}

func newTestService(f *fakeFetcher, store domain.KVStore, bus domain.SignalBus, clk *fakeClock) *MarketplaceService {
	return NewMarketplaceService(f, store, bus, MarketplaceConfig{Now: clk.Now}, discardLogger())
}

func TestListModelsCachesWithinWindow(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.models = []domain.Model{{ID: "llama", BlockchainID: "0xa"}}
	clk := newFakeClock()
	svc := newTestService(f, memory.NewStore(), nil, clk)

	got, err := svc.ListModels(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, f.models, got)

	clk.Advance(59 * time.Minute)
	_, err = svc.ListModels(ctx, false)
	require.NoError(t, err)
	calls, _ := f.calls()
	assert.Equal(t, 1, calls)

	clk.Advance(time.Minute)
	_, err = svc.ListModels(ctx, false)
	require.NoError(t, err)
	calls, _ = f.calls()
	assert.Equal(t, 2, calls)
}

func TestListModelsForceRefreshAlwaysFetches(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	svc := newTestService(f, memory.NewStore(), nil, newFakeClock())

	for i := 0; i < 3; i++ {
		_, err := svc.ListModels(ctx, true)
		require.NoError(t, err)
	}
	calls, _ := f.calls()
	assert.Equal(t, 3, calls)
}

func TestListBidsWindowIsFiveMinutes(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.bids["0xa"] = []domain.ScoredBid{scored("b1", 1, 10)}
	clk := newFakeClock()
	svc := newTestService(f, memory.NewStore(), nil, clk)

	_, err := svc.ListBids(ctx, "0xa", false)
	require.NoError(t, err)
	clk.Advance(4*time.Minute + 59*time.Second)
	got, err := svc.ListBids(ctx, "0xa", false)
	require.NoError(t, err)
	assert.Equal(t, "10", got[0].Bid.PricePerSecond.String())
	_, calls := f.calls()
	assert.Equal(t, 1, calls["0xa"])

	clk.Advance(time.Second)
	_, err = svc.ListBids(ctx, "0xa", false)
	require.NoError(t, err)
	_, calls = f.calls()
	assert.Equal(t, 2, calls["0xa"])
}

func TestListBidsEmptyIDFailsBeforeFetch(t *testing.T) {
	f := newFakeFetcher()
	svc := newTestService(f, memory.NewStore(), nil, newFakeClock())

	_, err := svc.ListBids(context.Background(), "", false)
	assert.ErrorIs(t, err, domain.ErrInvalidModelReference)
	_, calls := f.calls()
	assert.Empty(t, calls)

	assert.ErrorIs(t, svc.InvalidateBids(context.Background(), ""), domain.ErrInvalidModelReference)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.bids["0xa"] = nil
	svc := newTestService(f, memory.NewStore(), nil, newFakeClock())

	_, err := svc.ListModels(ctx, false)
	require.NoError(t, err)
	_, err = svc.ListBids(ctx, "0xa", false)
	require.NoError(t, err)

	require.NoError(t, svc.InvalidateModels(ctx))
	require.NoError(t, svc.InvalidateModels(ctx))
	require.NoError(t, svc.InvalidateBids(ctx, "0xa"))

	_, err = svc.ListModels(ctx, false)
	require.NoError(t, err)
	_, err = svc.ListBids(ctx, "0xa", false)
	require.NoError(t, err)

	modelCalls, bidCalls := f.calls()
	assert.Equal(t, 2, modelCalls)
	assert.Equal(t, 2, bidCalls["0xa"])
}

func TestFetchFailureDoesNotServeStaleData(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.models = []domain.Model{{ID: "old"}}
	store := memory.NewStore()
	clk := newFakeClock()
	svc := newTestService(f, store, nil, clk)

	_, err := svc.ListModels(ctx, false)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	f.setErr(&domain.MarketplaceError{Resource: "models", Status: 503, Err: errors.New("down")})

	got, err := svc.ListModels(ctx, false)
	assert.Nil(t, got)
	require.ErrorIs(t, err, domain.ErrMarketplaceUnavailable)
	var me *domain.MarketplaceError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, 503, me.Status)

	// The expired entry is still in the store.
	assert.Equal(t, 1, store.Len())
}

func TestEntryTimestampIsFetchCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	store := memory.NewStore()
	clk := newFakeClock()
	svc := newTestService(f, store, nil, clk)

	_, err := svc.ListModels(ctx, false)
	require.NoError(t, err)

	raw, err := store.Get(ctx, cache.ModelsKey)
	require.NoError(t, err)
	var entry domain.CacheEntry[[]domain.Model]
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, clk.Now().UnixMilli(), entry.Timestamp)
}

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("io error") }
func (brokenStore) Set(context.Context, string, []byte) error   { return errors.New("io error") }
func (brokenStore) Delete(context.Context, string) error        { return errors.New("io error") }

func TestStorageFailuresDegradeToFetching(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.models = []domain.Model{{ID: "m"}}
	svc := newTestService(f, brokenStore{}, nil, newFakeClock())

	for i := 0; i < 2; i++ {
		got, err := svc.ListModels(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, f.models, got)
	}
	calls, _ := f.calls()
	assert.Equal(t, 2, calls)

	assert.Error(t, svc.InvalidateModels(ctx))
}

func TestRefreshEventsArePublished(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := memory.NewSignalBus()
	events, err := bus.Subscribe(ctx, domain.ChannelMarketplace)
	require.NoError(t, err)

	f := newFakeFetcher()
	f.bids["0xa"] = []domain.ScoredBid{scored("b1", 1, 1), scored("b2", 2, 1)}
	clk := newFakeClock()
	svc := newTestService(f, memory.NewStore(), bus, clk)

	_, err = svc.ListBids(ctx, "0xa", false)
	require.NoError(t, err)

	var ev domain.RefreshEvent
	require.NoError(t, json.Unmarshal(<-events, &ev))
	assert.Equal(t, domain.RefreshEvent{
		Resource:    "bids",
		ModelID:     "0xa",
		Count:       2,
		FetchedAtMs: clk.Now().UnixMilli(),
	}, ev)

	// A cache hit publishes nothing.
	_, err = svc.ListBids(ctx, "0xa", false)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTopBid(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.bids["0xa"] = []domain.ScoredBid{scored("low", 3, 1), scored("high", 9, 2), scored("mid", 1, 3)}
	svc := newTestService(f, memory.NewStore(), nil, newFakeClock())

	best, ok, err := svc.TopBid(ctx, "0xa", false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "high", best.ID)

	_, ok, err = svc.TopBid(ctx, "0xempty", false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBestBidsForAllModels(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.models = []domain.Model{
		{ID: "a", BlockchainID: "0xa"},
		{ID: "b", BlockchainID: "0xb"},
		{ID: "c", BlockchainID: "0xc"},
	}
	f.bids["0xa"] = []domain.ScoredBid{scored("a1", 1, 1), scored("a2", 5, 1)}
	f.bids["0xc"] = []domain.ScoredBid{scored("c1", 2, 1)}
	svc := newTestService(f, memory.NewStore(), nil, newFakeClock())

	got, err := svc.BestBidsForAllModels(ctx, false)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Model.ID)
	require.NotNil(t, got[0].Bid)
	assert.Equal(t, "a2", got[0].Bid.ID)
	assert.Nil(t, got[1].Bid)
	require.NotNil(t, got[2].Bid)
	assert.Equal(t, "c1", got[2].Bid.ID)
}

func TestBestBidsForAllModelsFailsOnAnyModel(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.models = []domain.Model{{ID: "a", BlockchainID: "0xa"}}
	svc := newTestService(f, memory.NewStore(), nil, newFakeClock())

	_, err := svc.ListModels(ctx, false)
	require.NoError(t, err)
	f.setErr(&domain.MarketplaceError{Resource: "bids", Err: errors.New("timeout")})

	_, err = svc.BestBidsForAllModels(ctx, false)
	assert.ErrorIs(t, err, domain.ErrMarketplaceUnavailable)
}
