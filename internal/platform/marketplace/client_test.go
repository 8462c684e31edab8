package marketplace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/stakecalc/internal/domain"
)

const modelsJSON = `{
  "object": "list",
  "data": [
    {"id": "llama-3", "blockchainID": "0xabc", "created": 1717000000, "tags": ["llm", "chat"]},
    {"id": "sdxl", "blockchainID": "0xdef", "created": 1717000500, "tags": []}
  ]
}`

const bidsJSON = `{
  "bids": [
    {
      "ID": "0x01",
      "Bid": {
        "Id": "0x01",
        "Provider": "0xprov",
        "ModelAgentId": "0xabc",
        "PricePerSecond": "123456789012345678901",
        "Nonce": "3",
        "CreatedAt": "1717000100",
        "DeletedAt": "0"
      },
      "Score": 0.87
    }
  ]
}`

func TestFetchModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/models/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(modelsJSON))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/api/v1/"})
	models, err := c.FetchModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, domain.Model{ID: "llama-3", BlockchainID: "0xabc", Created: 1717000000, Tags: []string{"llm", "chat"}}, models[0])
}

func TestFetchBidsKeepsPriceExact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/ratedbids", r.URL.Path)
		assert.Equal(t, "0xabc", r.URL.Query().Get("model_id"))
		w.Write([]byte(bidsJSON))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	bids, err := c.FetchBids(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, "123456789012345678901", bids[0].Bid.PricePerSecond.String())
	assert.Equal(t, 0.87, bids[0].Score)
	assert.Equal(t, "0xprov", bids[0].Bid.Provider)
}

func TestNon2xxRecordsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.FetchModels(context.Background())
	require.ErrorIs(t, err, domain.ErrMarketplaceUnavailable)

	var me *domain.MarketplaceError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, http.StatusServiceUnavailable, me.Status)
	assert.Equal(t, "models", me.Resource)
}

func TestMalformedBodyIsMarketplaceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bids": [{"Bid": {"PricePerSecond": "-1"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.FetchBids(context.Background(), "0xabc")
	assert.ErrorIs(t, err, domain.ErrMarketplaceUnavailable)
}

func TestTransportFailureIsMarketplaceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url})
	_, err := c.FetchModels(context.Background())
	require.ErrorIs(t, err, domain.ErrMarketplaceUnavailable)

	var me *domain.MarketplaceError
	require.ErrorAs(t, err, &me)
	assert.Zero(t, me.Status)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(modelsJSON))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RateLimit: 0.001, Burst: 1})
	_, err := c.FetchModels(context.Background())
	require.NoError(t, err)

	// The bucket is now empty and refills in ~1000s; a cancelled context
	// must fail fast instead of blocking.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.FetchModels(ctx)
	assert.ErrorIs(t, err, domain.ErrMarketplaceUnavailable)
}
