// Package server exposes the read-only HTTP and WebSocket API over the
// market engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/predictlabs/predictd/internal/domain"
	"github.com/predictlabs/predictd/internal/server/handler"
	"github.com/predictlabs/predictd/internal/server/middleware"
	"github.com/predictlabs/predictd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit and RateWindow apply per-client limiting when a limiter
	// is supplied; zero values disable the middleware.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	Markets *handler.MarketHandler
	Trades  *handler.TradeHandler
	Users   *handler.UserHandler
	Stats   *handler.StatsHandler
}

// Server is the HTTP + WebSocket API server for the market daemon.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (CORS, logging, auth, optional rate limiting) and
// attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market endpoints.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/options", handlers.Markets.GetOptions)
	mux.HandleFunc("GET /api/markets/{id}/prices", handlers.Markets.GetPriceHistory)
	mux.HandleFunc("GET /api/markets/{id}/free", handlers.Markets.GetFreeInfo)

	// Trade history.
	mux.HandleFunc("GET /api/markets/{id}/trades", handlers.Trades.GetTrades)

	// Per-user state.
	mux.HandleFunc("GET /api/markets/{id}/shares/{addr}", handlers.Users.GetShares)
	mux.HandleFunc("GET /api/markets/{id}/lp/{addr}", handlers.Users.GetLPInfo)
	mux.HandleFunc("GET /api/users/{addr}/portfolio", handlers.Users.GetPortfolio)

	// Platform stats.
	mux.HandleFunc("GET /api/stats", handlers.Stats.GetStats)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	if limiter != nil && cfg.RateLimit > 0 && cfg.RateWindow > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Auth(cfg.APIKey)(h)
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
		mux:        mux,
		logger:     logger,
	}
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
