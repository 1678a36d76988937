package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
	"github.com/alanyoungcy/mirrorarb/internal/metrics"
	"github.com/alanyoungcy/mirrorarb/internal/server/handler"
	"github.com/alanyoungcy/mirrorarb/internal/server/middleware"
	"github.com/alanyoungcy/mirrorarb/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // if empty, authentication is disabled
	RateLimit       int    // requests per client per window; 0 disables
	RateLimitWindow time.Duration
	WriteTimeout    time.Duration // must outlast a settlement resolve; 0 means 5m
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Arb        *handler.ArbHandler
	Settlement *handler.SettlementHandler
}

// Deps are the optional collaborators of the HTTP server. Nil fields disable
// the matching feature.
type Deps struct {
	Hub     *ws.Hub
	Limiter domain.RateLimiter
	Metrics *metrics.Metrics
}

// Server is the HTTP + WebSocket API of the engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (metrics, auth, rate limit, logging, CORS) and
// attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/arbitrage/opportunities", handlers.Arb.ListOpportunities)
	mux.HandleFunc("GET /api/arbitrage/matches", handlers.Arb.ListMatches)

	mux.HandleFunc("POST /api/settlement/resolve", handlers.Settlement.Resolve)

	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}
	if deps.Hub != nil {
		mux.HandleFunc("GET /ws", deps.Hub.HandleWS)
	}

	var h http.Handler = mux
	if deps.Metrics != nil {
		h = middleware.Metrics(deps.Metrics)(h)
	}
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	h = middleware.RateLimit(deps.Limiter, cfg.RateLimit, window, logger)(h)
	h = middleware.Logging(logger, "/api/health", "/metrics")(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Minute
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
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
