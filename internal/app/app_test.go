package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/alanyoungcy/stakecalc/internal/amount"
	"github.com/alanyoungcy/stakecalc/internal/cache/memory"
	"github.com/alanyoungcy/stakecalc/internal/config"
	"github.com/alanyoungcy/stakecalc/internal/domain"
)

func TestMain(m *testing.M) {
	// goleveldb drains its memory pool for up to a second after Close.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/syndtr/goleveldb/leveldb.(*DB).mpoolDrain"),
	)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubQuoter doubles stipends into stakes and pays a fixed stipend.
type stubQuoter struct {
	stipend amount.Amount
	err     error
}

func (q stubQuoter) QuoteStakeForStipend(_ context.Context, stipend amount.Amount) (amount.Amount, error) {
	if q.err != nil {
		return amount.Amount{}, q.err
	}
	return amount.Multiply(stipend, amount.FromUint64(2)), nil
}

func (q stubQuoter) QuoteStipendForStake(context.Context, amount.Amount) (amount.Amount, error) {
	if q.err != nil {
		return amount.Amount{}, q.err
	}
	return q.stipend, nil
}

type stubFetcher struct {
	mu     sync.Mutex
	models []domain.Model
	bids   map[string][]domain.ScoredBid
	calls  int
}

func (f *stubFetcher) FetchModels(context.Context) ([]domain.Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.models, nil
}

func (f *stubFetcher) FetchBids(_ context.Context, id string) ([]domain.ScoredBid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.bids[id], nil
}

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Mode = "calc"
	a := New(&cfg, discardLogger())
	buf := &bytes.Buffer{}
	a.out = buf
	return a, buf
}

func testDeps() (*Dependencies, *stubFetcher) {
	f := &stubFetcher{
		models: []domain.Model{{ID: "llama", BlockchainID: "0xaa"}},
		bids: map[string][]domain.ScoredBid{
			"0xaa": {
				{ID: "low", Score: 1, Bid: domain.Bid{PricePerSecond: amount.FromUint64(5)}},
				{ID: "high", Score: 9, Bid: domain.Bid{PricePerSecond: amount.FromUint64(7)}},
			},
		},
	}
	return &Dependencies{
		Store:        memory.NewStore(),
		CacheBackend: config.BackendMemory,
		SignalBus:    memory.NewSignalBus(),
		Quoter:       stubQuoter{stipend: amount.FromUint64(500)},
		Fetcher:      f,
	}, f
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestCalcCost(t *testing.T) {
	a, buf := newTestApp(t)
	deps, _ := testDeps()

	require.NoError(t, a.CalcMode(context.Background(), deps, []string{"cost", "600", "10"}))
	out := decode(t, buf)
	assert.Equal(t, "6000", out["cost"])
	assert.Equal(t, "12000", out["required_stake"])
}

func TestCalcMaxSessionAcceptsTrailingUnitFlag(t *testing.T) {
	a, buf := newTestApp(t)
	deps, _ := testDeps()

	require.NoError(t, a.CalcMode(context.Background(), deps, []string{"max-session", "1", "10", "-unit", "MOR"}))
	out := decode(t, buf)
	assert.Equal(t, "1000000000000000000", out["stake"])
	assert.Equal(t, "50", out["seconds"])
	assert.Equal(t, "50 seconds", out["duration"])
}

func TestCalcStakeQuote(t *testing.T) {
	a, buf := newTestApp(t)
	deps, _ := testDeps()

	require.NoError(t, a.CalcMode(context.Background(), deps, []string{"stake", "-unit", "MOR", "1.5"}))
	out := decode(t, buf)
	assert.Equal(t, "1500000000000000000", out["input"])
	assert.Equal(t, "3000000000000000000", out["result"])
	assert.Equal(t, "3.0", out["result_mor"])
}

func TestCalcBestBidUsesCache(t *testing.T) {
	a, buf := newTestApp(t)
	deps, f := testDeps()
	ctx := context.Background()

	require.NoError(t, a.CalcMode(ctx, deps, []string{"best-bid", "0xaa"}))
	out := decode(t, buf)
	bid, ok := out["bid"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "high", bid["ID"])

	buf.Reset()
	require.NoError(t, a.CalcMode(ctx, deps, []string{"bids", "0xaa"}))
	assert.Equal(t, 1, f.calls, "second read is served from the cache")

	buf.Reset()
	require.NoError(t, a.CalcMode(ctx, deps, []string{"bids", "-refresh", "0xaa"}))
	assert.Equal(t, 2, f.calls)
}

func TestCalcInvalidate(t *testing.T) {
	a, buf := newTestApp(t)
	deps, f := testDeps()
	ctx := context.Background()

	require.NoError(t, a.CalcMode(ctx, deps, []string{"models"}))
	require.NoError(t, a.CalcMode(ctx, deps, []string{"invalidate"}))
	buf.Reset()
	require.NoError(t, a.CalcMode(ctx, deps, []string{"models"}))
	assert.Equal(t, 2, f.calls)

	err := a.CalcMode(ctx, deps, []string{"invalidate", ""})
	assert.ErrorIs(t, err, domain.ErrInvalidModelReference)
}

func TestCalcErrors(t *testing.T) {
	a, _ := newTestApp(t)
	deps, _ := testDeps()
	ctx := context.Background()

	assert.ErrorIs(t, a.CalcMode(ctx, deps, nil), errUsage)
	assert.ErrorIs(t, a.CalcMode(ctx, deps, []string{"frobnicate"}), errUsage)
	assert.ErrorIs(t, a.CalcMode(ctx, deps, []string{"cost", "1"}), errUsage)
	assert.ErrorIs(t, a.CalcMode(ctx, deps, []string{"cost", "1.5", "2"}), domain.ErrInvalidNumericInput)
	assert.ErrorIs(t, a.CalcMode(ctx, deps, []string{"stake", "-unit", "eth", "1"}), domain.ErrInvalidNumericInput)

	deps.Quoter = stubQuoter{err: domain.ErrQuoteUnavailable}
	assert.ErrorIs(t, a.CalcMode(ctx, deps, []string{"cost", "1", "2"}), domain.ErrQuoteUnavailable)
}

func TestWireMemoryAndLevelDB(t *testing.T) {
	ctx := context.Background()

	cfg := config.Defaults()
	cfg.Cache.Backend = config.BackendMemory
	deps, cleanup, err := Wire(ctx, &cfg, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, deps.Store)
	assert.IsType(t, &memory.SignalBus{}, deps.SignalBus)
	assert.Nil(t, deps.RefreshLog)
	cleanup()

	cfg.Cache.Backend = config.BackendLevelDB
	cfg.Cache.LevelDBPath = filepath.Join(t.TempDir(), "cache.db")
	deps, cleanup, err = Wire(ctx, &cfg, discardLogger())
	require.NoError(t, err)
	require.NoError(t, deps.Store.Set(ctx, "k", []byte("v")))
	cleanup()
}

func TestWireUnknownBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.Cache.Backend = "floppy"
	_, _, err := Wire(context.Background(), &cfg, discardLogger())
	assert.Error(t, err)
}

func TestServerModeStopsOnCancel(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.Port = 0
	a := New(&cfg, discardLogger())
	deps, _ := testDeps()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.ServerMode(ctx, deps) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, err == nil || errors.Is(err, context.Canceled), "unexpected error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server mode did not stop")
	}
}
