package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/floodlib/ripple-engine/internal/api/middleware"
	"github.com/floodlib/ripple-engine/internal/jobstore"
	"github.com/floodlib/ripple-engine/internal/metrics"
	"github.com/floodlib/ripple-engine/internal/registry"
	"github.com/floodlib/ripple-engine/internal/supervisor"
)

// Server represents the HTTP API server: a thin façade over the Job Store
// and Process Registry. It does no business work of its own.
type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	config      *ServerConfig
	startTime   time.Time
	store       jobstore.Store
	registry    *registry.Registry
	supervisor  *supervisor.Supervisor
	rateLimiter middleware.RateLimiter
	metrics     *metrics.Registry
}

// NewServer creates a new HTTP server instance with structured logging and
// the middleware stack.
//
// Dependencies are injected explicitly rather than being part of
// ServerConfig, separating configuration (what) from dependencies (how).
//
//   - cfg: pure server configuration (ports, timeouts, CORS settings)
//   - store: the job store (REQUIRED - panics if nil)
//   - reg: the process registry (REQUIRED - panics if nil)
//   - sup: the process supervisor, used only to relay DELETE /jobs/{id} cancellations
//   - rateLimiter: rate limiter implementation (nil disables rate limiting)
//   - metricsReg: metrics registry (nil disables /metrics)
func NewServer(
	cfg *ServerConfig,
	store jobstore.Store,
	reg *registry.Registry,
	sup *supervisor.Supervisor,
	rateLimiter middleware.RateLimiter,
	metricsReg *metrics.Registry,
) *Server {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	if store == nil || reg == nil {
		logger.Error("job store and process registry are required - cannot start server without core functionality")
		panic("ripple-engine: jobstore.Store and registry.Registry cannot be nil - this indicates a configuration error")
	}

	mux := http.NewServeMux()

	server := &Server{
		logger:      logger,
		config:      cfg,
		store:       store,
		registry:    reg,
		supervisor:  sup,
		rateLimiter: rateLimiter,
		metrics:     metricsReg,
	}

	server.setupRoutes(mux)

	if rateLimiter != nil {
		logger.Info("rate limiting middleware enabled")
	} else {
		logger.Warn("rate limiter not configured - rate limiting middleware disabled")
	}

	if metricsReg != nil {
		logger.Info("metrics endpoint enabled")
	}

	// Middleware chain, applied top-to-bottom:
	//   1. CorrelationID - generate correlation ID for all responses
	//   2. Recovery - catch panics in all downstream middleware
	//   3. RateLimit - block requests before expensive operations (optional)
	//   4. RequestLogger - log only legitimate requests (not rate-limited spam)
	//   5. CORS - lightweight header manipulation
	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithRateLimit(rateLimiter, logger),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.ToCORSConfig()),
	)

	server.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// setupRoutes registers every endpoint named in spec.md §4.5/§6, plus the
// ambient /metrics endpoint.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /processes/{name}/execution", s.handleEnqueue)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}/results", s.handleGetResults)
	mux.HandleFunc("GET /jobs/{id}/metadata", s.handleGetMetadata)
	mux.HandleFunc("GET /jobs/{id}/logs", s.handleGetLogs)
	mux.HandleFunc("DELETE /jobs/{id}", s.handleDismiss)
	mux.HandleFunc("GET /ping", s.handlePing)

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
}

// Start starts the HTTP server and blocks until shutdown.
// It handles graceful shutdown on SIGINT and SIGTERM signals.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting ripple-engine API server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("received shutdown signal", slog.String("signal", sig.String()))

		return s.shutdown()
	}
}

// shutdown gracefully shuts down the server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("initiating server shutdown", slog.Duration("shutdown_timeout", s.config.ShutdownTimeout))

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown failed",
			slog.String("error", err.Error()),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("failed to close job store", slog.String("error", err.Error()))
	}

	s.logger.Info("server shutdown completed successfully")

	return nil
}
