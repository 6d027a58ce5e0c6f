// Package server assembles the HTTP API: REST endpoints for trades,
// positions and execution history, plus the wallet websocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/LavonTMCQ/misterbot/internal/domain"
	"github.com/LavonTMCQ/misterbot/internal/server/handler"
	"github.com/LavonTMCQ/misterbot/internal/server/middleware"
	"github.com/LavonTMCQ/misterbot/internal/wallet"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication

	// RateLimit requests per RateWindow per client IP; zero disables.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers. Nil handlers
// leave their routes unregistered, so the server degrades gracefully when
// optional backends (Postgres, Redis) are absent.
type Handlers struct {
	Health      *handler.HealthHandler
	Trade       *handler.TradeHandler
	Positions   *handler.PositionHandler
	Submissions *handler.SubmissionHandler
	Status      *handler.StatusHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered and the middleware
// chain applied. bridge, when non-nil, is mounted at /ws/wallet — that
// route bypasses API-key auth because the browser WebSocket API cannot set
// headers; the wallet authenticates by proving it can sign.
func NewServer(cfg Config, handlers Handlers, bridge *wallet.Bridge, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	if handlers.Status != nil {
		mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	}
	if handlers.Trade != nil {
		mux.HandleFunc("POST /api/trade", handlers.Trade.SubmitTrade)
		mux.HandleFunc("GET /api/intents/{id}", handlers.Trade.GetIntent)
	}
	if handlers.Positions != nil {
		mux.HandleFunc("GET /api/positions", handlers.Positions.ListPositions)
		mux.HandleFunc("POST /api/positions/{id}/close", handlers.Positions.ClosePosition)
	}
	if handlers.Submissions != nil {
		mux.HandleFunc("GET /api/submissions", handlers.Submissions.ListRecent)
		mux.HandleFunc("GET /api/submissions/{intentId}", handlers.Submissions.GetByIntent)
	}

	// Build the middleware chain for the API routes.
	var api http.Handler = mux
	api = middleware.Auth(cfg.APIKey)(api)
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Second
		}
		api = middleware.RateLimit(limiter, cfg.RateLimit, window)(api)
	}

	// Mount the wallet websocket outside the auth chain.
	root := http.NewServeMux()
	root.Handle("/", api)
	if bridge != nil {
		root.HandleFunc("GET /ws/wallet", bridge.HandleWS)
	}

	var h http.Handler = root
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

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

// Shutdown gracefully shuts down the server, waiting for in-flight
// requests to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware sets CORS headers for the allowed origins, defaulting to
// allow-all when none are configured. The dashboard and the wallet bridge
// page are browser clients, so preflights must succeed.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
