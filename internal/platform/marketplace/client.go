// Package marketplace is the REST client for the compute marketplace
// listing API (models and rated bids).
package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/stakecalc/internal/domain"
)

const (
	resourceModels = "models"
	resourceBids   = "bids"

	// maxErrorBody bounds how much of a failed response body is kept in the
	// error message.
	maxErrorBody = 512
)

// modelsResponse is the payload of GET /models/.
type modelsResponse struct {
	Object string         `json:"object"`
	Data   []domain.Model `json:"data"`
}

// bidsResponse is the payload of GET /models/ratedbids.
type bidsResponse struct {
	Bids []domain.ScoredBid `json:"bids"`
}

// Config holds the API location and client-side limits.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.mor.org/api/v1".
	BaseURL string
	Timeout time.Duration
	// RateLimit caps outbound requests per second; 0 disables throttling.
	RateLimit float64
	Burst     int
}

// Client fetches marketplace listings. It does not cache.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a marketplace API client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// FetchModels returns every model listed by the marketplace.
func (c *Client) FetchModels(ctx context.Context) ([]domain.Model, error) {
	body, status, err := c.doGet(ctx, "/models/")
	if err != nil {
		return nil, &domain.MarketplaceError{Resource: resourceModels, Status: status, Err: err}
	}

	var resp modelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.MarketplaceError{
			Resource: resourceModels,
			Err:      fmt.Errorf("marketplace: decode models: %w", err),
		}
	}
	return resp.Data, nil
}

// FetchBids returns the rated bids for the model with the given blockchain
// ID.
func (c *Client) FetchBids(ctx context.Context, modelBlockchainID string) ([]domain.ScoredBid, error) {
	params := url.Values{}
	params.Set("model_id", modelBlockchainID)

	body, status, err := c.doGet(ctx, "/models/ratedbids?"+params.Encode())
	if err != nil {
		return nil, &domain.MarketplaceError{Resource: resourceBids, Status: status, Err: err}
	}

	var resp bidsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.MarketplaceError{
			Resource: resourceBids,
			Err:      fmt.Errorf("marketplace: decode bids for %s: %w", modelBlockchainID, err),
		}
	}
	return resp.Bids, nil
}

// doGet sends a GET request and returns the body. On a non-2xx response the
// status code is returned alongside the error.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("marketplace: rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("marketplace: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("marketplace: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("marketplace: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(body)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, resp.StatusCode, fmt.Errorf("marketplace: api error: HTTP %d: %s", resp.StatusCode, msg)
	}

	return body, resp.StatusCode, nil
}

// Compile-time interface check.
var _ domain.MarketplaceFetcher = (*Client)(nil)
