package domain

import (
	"errors"
	"fmt"

	"github.com/alanyoungcy/stakecalc/internal/amount"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrQuoteUnavailable       = errors.New("quote unavailable")
	ErrMarketplaceUnavailable = errors.New("marketplace unavailable")
	ErrInvalidModelReference  = errors.New("invalid model reference")
	ErrInvalidNumericInput    = amount.ErrInvalidNumericInput
	ErrDivisionByZero         = amount.ErrDivisionByZero
)

// QuoteError reports a failed contract quote together with the amount that
// was being quoted. It matches ErrQuoteUnavailable under errors.Is.
type QuoteError struct {
	Op     string
	Amount amount.Amount
	Err    error
}

func (e *QuoteError) Error() string {
	return fmt.Sprintf("%s(%s): %v: %v", e.Op, e.Amount, ErrQuoteUnavailable, e.Err)
}

func (e *QuoteError) Unwrap() error { return e.Err }

func (e *QuoteError) Is(target error) bool { return target == ErrQuoteUnavailable }

// MarketplaceError reports a failed marketplace fetch. Status is the HTTP
// status code when the API answered with a non-2xx response, 0 otherwise.
type MarketplaceError struct {
	Resource string
	Status   int
	Err      error
}

func (e *MarketplaceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%v: %s: status %d: %v", ErrMarketplaceUnavailable, e.Resource, e.Status, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", ErrMarketplaceUnavailable, e.Resource, e.Err)
}

func (e *MarketplaceError) Unwrap() error { return e.Err }

func (e *MarketplaceError) Is(target error) bool { return target == ErrMarketplaceUnavailable }
