package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/stakecalc/internal/amount"
	"github.com/alanyoungcy/stakecalc/internal/domain"
	"github.com/alanyoungcy/stakecalc/internal/service"
)

// Calculator is the subset of service.Calculator the calc handler uses.
type Calculator interface {
	SessionCost(ctx context.Context, seconds, pricePerSecond amount.Amount) (service.SessionCostResult, error)
	MaxSession(ctx context.Context, stake, pricePerSecond amount.Amount) (service.MaxSessionResult, error)
}

// CalcHandler serves the derived calculator endpoints.
type CalcHandler struct {
	calc   Calculator
	logger *slog.Logger
}

// NewCalcHandler creates a CalcHandler.
func NewCalcHandler(calc Calculator, logger *slog.Logger) *CalcHandler {
	return &CalcHandler{calc: calc, logger: logger}
}

// Cost returns the direct-pay cost of a session and the stake that covers it.
// GET /api/calc/cost?seconds=3600&price=1000000000
func (h *CalcHandler) Cost(w http.ResponseWriter, r *http.Request) {
	seconds, err := amountParam(r, "seconds", amount.UnitWei)
	if err != nil {
		writeServiceError(w, r, h.logger, "session cost", err)
		return
	}
	price, err := amountParam(r, "price", amount.UnitWei)
	if err != nil {
		writeServiceError(w, r, h.logger, "session cost", err)
		return
	}

	res, err := h.calc.SessionCost(r.Context(), seconds, price)
	if err != nil {
		writeServiceError(w, r, h.logger, "session cost", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// MaxSession returns the stipend a stake earns and the session it buys.
// GET /api/calc/max-session?stake=1.5&unit=MOR&price=1000000000
func (h *CalcHandler) MaxSession(w http.ResponseWriter, r *http.Request) {
	unit, err := unitParam(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "max session", err)
		return
	}
	stake, err := amountParam(r, "stake", unit)
	if err != nil {
		writeServiceError(w, r, h.logger, "max session", err)
		return
	}
	price, err := amountParam(r, "price", amount.UnitWei)
	if err != nil {
		writeServiceError(w, r, h.logger, "max session", err)
		return
	}

	res, err := h.calc.MaxSession(r.Context(), stake, price)
	if err != nil {
		writeServiceError(w, r, h.logger, "max session", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// QuoteHandler exposes the raw contract quotes.
type QuoteHandler struct {
	quoter domain.Quoter
	logger *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler.
func NewQuoteHandler(quoter domain.Quoter, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{quoter: quoter, logger: logger}
}

// quoteResponse is the body of both quote endpoints.
type quoteResponse struct {
	Input     amount.Amount `json:"input"`
	Result    amount.Amount `json:"result"`
	ResultMOR string        `json:"result_mor"`
	Display   string        `json:"display"`
}

// Stake quotes the stake required for a stipend.
// GET /api/quote/stake?stipend=1&unit=MOR
func (h *QuoteHandler) Stake(w http.ResponseWriter, r *http.Request) {
	h.quote(w, r, "stipend", h.quoter.QuoteStakeForStipend)
}

// Stipend quotes the stipend a stake earns.
// GET /api/quote/stipend?stake=1&unit=MOR
func (h *QuoteHandler) Stipend(w http.ResponseWriter, r *http.Request) {
	h.quote(w, r, "stake", h.quoter.QuoteStipendForStake)
}

func (h *QuoteHandler) quote(w http.ResponseWriter, r *http.Request, param string, fn func(context.Context, amount.Amount) (amount.Amount, error)) {
	unit, err := unitParam(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "quote", err)
		return
	}
	in, err := amountParam(r, param, unit)
	if err != nil {
		writeServiceError(w, r, h.logger, "quote", err)
		return
	}

	out, err := fn(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, "quote", err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		Input:     in,
		Result:    out,
		ResultMOR: amount.ToDisplayUnits(out, amount.Decimals),
		Display:   amount.FormatWei(out),
	})
}
