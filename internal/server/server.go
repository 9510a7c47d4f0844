// Package server wires the REST routes, middleware chain and WebSocket hub
// into one http.Server.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/predyx/predyx/internal/server/handler"
	"github.com/predyx/predyx/internal/server/middleware"
	"github.com/predyx/predyx/internal/server/ws"
)

type Config struct {
	Host        string
	Port        int
	APIKey      string
	CORSOrigins []string
}

// Handlers aggregates the endpoint handlers the server mounts.
type Handlers struct {
	Health    *handler.HealthHandler
	Markets   *handler.MarketHandler
	Portfolio *handler.PortfolioHandler
	Trades    *handler.TradeHandler
	Admin     *handler.AdminHandler
	Hub       *ws.Hub // nil disables the WebSocket endpoint
}

type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

func New(cfg Config, h Handlers, log *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.Health)

	mux.HandleFunc("GET /api/markets", h.Markets.List)
	mux.HandleFunc("GET /api/markets/featured", h.Markets.Featured)
	mux.HandleFunc("GET /api/markets/search", h.Markets.Search)
	mux.HandleFunc("GET /api/markets/{id}", h.Markets.Get)
	mux.HandleFunc("GET /api/markets/{id}/trades", h.Markets.Trades)

	mux.HandleFunc("GET /api/portfolio/{address}", h.Portfolio.Portfolio)
	mux.HandleFunc("GET /api/portfolio/{address}/history", h.Portfolio.History)
	mux.HandleFunc("GET /api/portfolio/{address}/claimable", h.Portfolio.Claimable)

	// Write and operator routes require the API key; reads stay open.
	auth := middleware.Auth(cfg.APIKey)
	mux.Handle("POST /api/trades", auth(http.HandlerFunc(h.Trades.Record)))
	mux.Handle("POST /api/admin/resync", auth(http.HandlerFunc(h.Admin.Resync)))
	mux.Handle("POST /api/admin/markets", auth(http.HandlerFunc(h.Admin.CreateMarket)))
	mux.Handle("POST /api/admin/resolve", auth(http.HandlerFunc(h.Admin.Resolve)))

	if h.Hub != nil {
		mux.HandleFunc("GET /ws", h.Hub.HandleWS)
	}

	var root http.Handler = mux
	root = middleware.Logging(log)(root)
	root = middleware.CORS(cfg.CORSOrigins)(root)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      root,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log.With("component", "server"),
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
