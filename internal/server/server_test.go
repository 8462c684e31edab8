package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/stakecalc/internal/amount"
	"github.com/alanyoungcy/stakecalc/internal/cache/memory"
	"github.com/alanyoungcy/stakecalc/internal/domain"
	"github.com/alanyoungcy/stakecalc/internal/server/handler"
	"github.com/alanyoungcy/stakecalc/internal/service"
)

type fixedQuoter struct{ v amount.Amount }

func (q fixedQuoter) QuoteStakeForStipend(context.Context, amount.Amount) (amount.Amount, error) {
	return q.v, nil
}

func (q fixedQuoter) QuoteStipendForStake(context.Context, amount.Amount) (amount.Amount, error) {
	return q.v, nil
}

type emptyFetcher struct{}

func (emptyFetcher) FetchModels(context.Context) ([]domain.Model, error) { return nil, nil }

func (emptyFetcher) FetchBids(context.Context, string) ([]domain.ScoredBid, error) {
	return nil, nil
}

func newTestServer(cfg Config) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := fixedQuoter{v: amount.FromUint64(500)}
	svc := service.NewMarketplaceService(emptyFetcher{}, memory.NewStore(), nil, service.MarketplaceConfig{}, logger)

	return NewServer(cfg, Handlers{
		Health:      handler.NewHealthHandler("server", "memory", logger),
		Calc:        handler.NewCalcHandler(service.NewCalculator(q, logger), logger),
		Quotes:      handler.NewQuoteHandler(q, logger),
		Marketplace: handler.NewMarketplaceHandler(svc, logger),
	}, nil, logger)
}

func TestRoutesAndAuth(t *testing.T) {
	h := newTestServer(Config{APIKey: "k"}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/calc/max-session?stake=1&unit=MOR&price=10", nil)
	req.Header.Set("X-API-Key", "k")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"seconds":"50"`)
}

func TestBestBidRoute(t *testing.T) {
	h := newTestServer(Config{}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models/best-bids", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models/0xa/best-bid", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bid":null}`, rec.Body.String())
}

func TestRateLimitApplied(t *testing.T) {
	h := newTestServer(Config{RateLimit: 0.001, RateBurst: 1}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
