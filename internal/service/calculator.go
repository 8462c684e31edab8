package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/alanyoungcy/stakecalc/internal/amount"
	"github.com/alanyoungcy/stakecalc/internal/domain"
)

// Calculator derives session costs and stake requirements from bid prices
// and live contract quotes. It holds no state besides the quoter.
type Calculator struct {
	quoter domain.Quoter
	logger *slog.Logger
}

// NewCalculator creates a Calculator backed by quoter.
func NewCalculator(quoter domain.Quoter, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		quoter: quoter,
		logger: logger.With(slog.String("component", "calculator")),
	}
}

// DirectPayCost is the exact cost of a session paid directly:
// sessionSeconds * pricePerSecond.
func (c *Calculator) DirectPayCost(sessionSeconds, pricePerSecond amount.Amount) amount.Amount {
	return amount.Multiply(sessionSeconds, pricePerSecond)
}

// RequiredStake returns the stake that yields a stipend covering cost right
// now.
func (c *Calculator) RequiredStake(ctx context.Context, cost amount.Amount) (amount.Amount, error) {
	stake, err := c.quoter.QuoteStakeForStipend(ctx, cost)
	if err != nil {
		return amount.Amount{}, fmt.Errorf("calculator: required stake: %w", err)
	}
	return stake, nil
}

// MaxSessionLength returns how many whole seconds the stipend for stake buys
// at pricePerSecond. The stipend is always quoted first; a zero price then
// yields zero seconds rather than a division error.
func (c *Calculator) MaxSessionLength(ctx context.Context, stake, pricePerSecond amount.Amount) (amount.Amount, error) {
	_, seconds, err := c.stipendSession(ctx, stake, pricePerSecond)
	return seconds, err
}

// stipendSession quotes the stipend for stake and divides it by
// pricePerSecond, flooring to whole seconds. A zero price buys zero seconds.
func (c *Calculator) stipendSession(ctx context.Context, stake, pricePerSecond amount.Amount) (stipend, seconds amount.Amount, err error) {
	stipend, err = c.quoter.QuoteStipendForStake(ctx, stake)
	if err != nil {
		return amount.Amount{}, amount.Amount{}, fmt.Errorf("calculator: max session: %w", err)
	}
	if pricePerSecond.IsZero() {
		return stipend, amount.Zero(), nil
	}
	seconds, err = amount.Divide(stipend, pricePerSecond)
	if err != nil {
		return amount.Amount{}, amount.Amount{}, fmt.Errorf("calculator: max session: %w", err)
	}
	return stipend, seconds, nil
}

// BestBid picks the bid with the highest score. Ties keep the order the
// marketplace returned. ok is false for an empty list.
func (c *Calculator) BestBid(bids []domain.ScoredBid) (domain.ScoredBid, bool) {
	return BestBid(bids)
}

// SessionCostResult is a direct-pay cost together with the stake that
// covers it.
type SessionCostResult struct {
	Seconds        amount.Amount `json:"seconds"`
	PricePerSecond amount.Amount `json:"price_per_second"`
	Cost           amount.Amount `json:"cost"`
	CostMOR        string        `json:"cost_mor"`
	RequiredStake  amount.Amount `json:"required_stake"`
	StakeMOR       string        `json:"stake_mor"`
}

// SessionCost computes cost and required stake together. When the stake
// quote fails the cost is withheld as well.
func (c *Calculator) SessionCost(ctx context.Context, seconds, pricePerSecond amount.Amount) (SessionCostResult, error) {
	cost := c.DirectPayCost(seconds, pricePerSecond)
	stake, err := c.RequiredStake(ctx, cost)
	if err != nil {
		c.logger.WarnContext(ctx, "session cost unavailable",
			slog.String("cost", cost.String()),
			slog.String("error", err.Error()),
		)
		return SessionCostResult{}, err
	}
	return SessionCostResult{
		Seconds:        seconds,
		PricePerSecond: pricePerSecond,
		Cost:           cost,
		CostMOR:        amount.RoundDisplay(cost, displayPlaces),
		RequiredStake:  stake,
		StakeMOR:       amount.RoundDisplay(stake, displayPlaces),
	}, nil
}

// MaxSessionResult is the stipend a stake earns and the session it buys.
type MaxSessionResult struct {
	Stake          amount.Amount `json:"stake"`
	PricePerSecond amount.Amount `json:"price_per_second"`
	Stipend        amount.Amount `json:"stipend"`
	StipendMOR     string        `json:"stipend_mor"`
	Seconds        amount.Amount `json:"seconds"`
	Duration       string        `json:"duration"`
}

// MaxSession quotes the stipend for stake and the session length it buys.
func (c *Calculator) MaxSession(ctx context.Context, stake, pricePerSecond amount.Amount) (MaxSessionResult, error) {
	stipend, seconds, err := c.stipendSession(ctx, stake, pricePerSecond)
	if err != nil {
		return MaxSessionResult{}, err
	}
	return MaxSessionResult{
		Stake:          stake,
		PricePerSecond: pricePerSecond,
		Stipend:        stipend,
		StipendMOR:     amount.RoundDisplay(stipend, displayPlaces),
		Seconds:        seconds,
		Duration:       amount.FormatDuration(seconds),
	}, nil
}

// displayPlaces is the rounding applied to MOR values shown to users.
const displayPlaces = 2

// BestBid picks the bid with the highest score. Ties keep the order the
// marketplace returned. ok is false for an empty list.
func BestBid(bids []domain.ScoredBid) (domain.ScoredBid, bool) {
	if len(bids) == 0 {
		return domain.ScoredBid{}, false
	}
	sorted := make([]domain.ScoredBid, len(bids))
	copy(sorted, bids)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	return sorted[0], true
}
