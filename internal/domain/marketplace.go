package domain

import (
	"github.com/alanyoungcy/stakecalc/internal/amount"
)

// Model is a marketplace model listing. BlockchainID keys its bid list.
type Model struct {
	ID           string   `json:"id"`
	BlockchainID string   `json:"blockchainID"`
	Created      int64    `json:"created"`
	Tags         []string `json:"tags"`
}

// Bid is a provider's price-per-second offer for a model. Field names follow
// the marketplace API, which serves them capitalised.
type Bid struct {
	ID             string        `json:"Id"`
	Provider       string        `json:"Provider"`
	ModelAgentID   string        `json:"ModelAgentId"`
	PricePerSecond amount.Amount `json:"PricePerSecond"`
	Nonce          string        `json:"Nonce"`
	CreatedAt      string        `json:"CreatedAt"`
	DeletedAt      string        `json:"DeletedAt"`
}

// ScoredBid pairs a Bid with the marketplace's quality score. Higher is
// better.
type ScoredBid struct {
	ID    string  `json:"ID"`
	Bid   Bid     `json:"Bid"`
	Score float64 `json:"Score"`
}

// ModelBestBid is the recommended bid for one model. Bid is nil when the
// model has no bids.
type ModelBestBid struct {
	Model Model      `json:"model"`
	Bid   *ScoredBid `json:"bid"`
}

// CacheEntry is the persisted form of a cached payload. Timestamp is the
// fetch completion time in epoch milliseconds.
type CacheEntry[T any] struct {
	Timestamp int64 `json:"timestamp"`
	Payload   T     `json:"payload"`
}
