// Package server exposes the calculators and marketplace listings over a
// headless HTTP + WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/stakecalc/internal/server/handler"
	"github.com/alanyoungcy/stakecalc/internal/server/middleware"
	"github.com/alanyoungcy/stakecalc/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	// RateLimit is the per-client request rate; 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Refreshes is optional.
type Handlers struct {
	Health      *handler.HealthHandler
	Calc        *handler.CalcHandler
	Quotes      *handler.QuoteHandler
	Marketplace *handler.MarketplaceHandler
	Refreshes   *handler.RefreshHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux
// and the middleware chain applied.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Calculators.
	mux.HandleFunc("GET /api/calc/cost", handlers.Calc.Cost)
	mux.HandleFunc("GET /api/calc/max-session", handlers.Calc.MaxSession)

	// Raw contract quotes.
	mux.HandleFunc("GET /api/quote/stake", handlers.Quotes.Stake)
	mux.HandleFunc("GET /api/quote/stipend", handlers.Quotes.Stipend)

	// Marketplace listings.
	mux.HandleFunc("GET /api/models", handlers.Marketplace.ListModels)
	mux.HandleFunc("DELETE /api/models/cache", handlers.Marketplace.InvalidateModels)
	mux.HandleFunc("GET /api/models/{id}/bids", handlers.Marketplace.ListBids)
	mux.HandleFunc("DELETE /api/models/{id}/bids/cache", handlers.Marketplace.InvalidateBids)
	mux.HandleFunc("GET /api/models/{id}/best-bid", handlers.Marketplace.BestBid)
	mux.HandleFunc("GET /api/best-bids", handlers.Marketplace.BestBids)

	if handlers.Refreshes != nil {
		mux.HandleFunc("GET /api/refreshes", handlers.Refreshes.ListRecent)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain; the last applied runs first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	if cfg.RateLimit > 0 {
		h = middleware.RateLimit(middleware.NewClientLimiter(cfg.RateLimit, cfg.RateBurst))(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
