package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/stakecalc/internal/amount"
	"github.com/alanyoungcy/stakecalc/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps service errors onto HTTP status codes. Bad caller input is
// a 400; an unreachable contract or marketplace is a 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidNumericInput),
		errors.Is(err, domain.ErrInvalidModelReference),
		errors.Is(err, domain.ErrDivisionByZero):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrQuoteUnavailable),
		errors.Is(err, domain.ErrMarketplaceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs err and writes the mapped status. Server-side
// failures are logged at error level, client mistakes at debug.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, msg string, err error) {
	status := statusFor(err)
	level := slog.LevelError
	if status == http.StatusBadRequest {
		level = slog.LevelDebug
	}
	logger.Log(r.Context(), level, "handler: "+msg,
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	if status == http.StatusInternalServerError {
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

// amountParam reads a required amount from the query string. unit selects
// how the value is read; an empty unit means base units.
func amountParam(r *http.Request, name string, unit amount.Unit) (amount.Amount, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return amount.Amount{}, fmt.Errorf("%w: missing %q", domain.ErrInvalidNumericInput, name)
	}
	a, err := amount.ParseInput(raw, unit)
	if err != nil {
		return amount.Amount{}, fmt.Errorf("%s: %w", name, err)
	}
	return a, nil
}

// unitParam reads the optional "unit" query parameter.
func unitParam(r *http.Request) (amount.Unit, error) {
	return amount.ParseUnit(r.URL.Query().Get("unit"))
}

// refreshParam reports whether ?refresh=true (or 1) was given.
func refreshParam(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("refresh"))
	return err == nil && v
}

// limitParam extracts ?limit=, defaulting to def and capped at max.
func limitParam(r *http.Request, def, max int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

// pathParam extracts a named path parameter using Go 1.22+ routing.
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
