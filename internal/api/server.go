// Package api exposes the assistant over HTTP: the query endpoint the
// storefront chat UI calls, session inspection, strategy administration,
// and health probes. Handlers stay thin; all pipeline behavior lives in
// internal/assistant and below.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/kiosk/internal/assistant"
	"github.com/koopa0/kiosk/internal/session"
	"github.com/koopa0/kiosk/internal/strategy"
)

// QueryProcessor is the assistant surface the server drives.
// *assistant.Assistant is the production implementation.
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, req assistant.Request) (*assistant.Response, error)
}

// StrategySource lists and reloads the strategy snapshot.
// *strategy.Engine is the production implementation.
type StrategySource interface {
	Strategies() []strategy.Strategy
	Reload() error
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Assistant   QueryProcessor   // Required
	Sessions    *session.Manager // Required
	Strategies  StrategySource   // Optional: nil disables strategy endpoints
	Pool        *pgxpool.Pool    // Optional: nil makes /readyz skip the DB ping
	CORSOrigins []string         // Allowed origins for CORS
	TrustProxy  bool             // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int              // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the server with all routes and middleware configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Assistant == nil {
		return nil, errors.New("assistant is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session manager is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	qh := &queryHandler{assistant: cfg.Assistant, logger: logger}
	sh := &sessionHandler{sessions: cfg.Sessions, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/query", qh.processQuery)
	mux.HandleFunc("GET /api/v1/sessions/{id}", sh.getSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", sh.deleteSession)

	if cfg.Strategies != nil {
		th := &strategyHandler{source: cfg.Strategies, logger: logger}
		mux.HandleFunc("GET /api/v1/strategies", th.listStrategies)
		mux.HandleFunc("POST /api/v1/strategies/reload", th.reloadStrategies)
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID precedes Logging so request_id lands in log attributes;
	// CORS precedes RateLimit so preflight OPTIONS gets proper headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /healthz", health)
	topMux.Handle("GET /readyz", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
