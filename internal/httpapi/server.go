package httpapi

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

	"github.com/sidecar-io/sidecar/internal/config"
	"github.com/sidecar-io/sidecar/internal/health"
	"github.com/sidecar-io/sidecar/internal/httpapi/middleware"
	"github.com/sidecar-io/sidecar/internal/metrics"
	"github.com/sidecar-io/sidecar/internal/producer"
	"github.com/sidecar-io/sidecar/internal/queue"
)

// defaultReloadRPS bounds POST /sidecar/config/reload; reload is a rare,
// single-operator action, not a traffic path that needs much headroom.
const defaultReloadRPS = 5

// Server is the sidecar's control-plane HTTP surface.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	snapshot   *config.Snapshot
	startTime  time.Time

	queue    *queue.Bounded
	producer *producer.API
	metrics  *metrics.Registry
	health   *health.Monitor
	reloader *config.Reloader
}

// NewServer wires the control-plane routes and middleware chain over the
// given dependencies. producerAPI and queue are required; panics if either
// is nil, the same "core functionality is not optional" discipline the
// teacher's NewServer uses for its lineage store. The resource governor
// itself isn't a direct dependency: /health reads CPU/memory state off the
// shared metrics registry's gauges, which the governor populates.
func NewServer(
	snapshot *config.Snapshot,
	q *queue.Bounded,
	producerAPI *producer.API,
	reg *metrics.Registry,
	monitor *health.Monitor,
	reloader *config.Reloader,
	logger *slog.Logger,
) *Server {
	if q == nil || producerAPI == nil {
		panic("httpapi: queue and producer API are required, got nil")
	}

	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}

	s := &Server{
		logger:   logger,
		snapshot: snapshot,
		queue:    q,
		producer: producerAPI,
		metrics:  reg,
		health:   monitor,
		reloader: reloader,
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	cfg := snapshot.Load()

	var reloadTokenHash string
	if h := os.Getenv("SIDECAR_RELOAD_TOKEN_HASH"); h != "" {
		reloadTokenHash = h
	} else {
		logger.Warn("SIDECAR_RELOAD_TOKEN_HASH not configured - config reload endpoint is unauthenticated")
	}

	limiter := middleware.NewLimiter(defaultReloadRPS)

	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithRequestLogger(logger),
	)

	reloadHandler := middleware.Apply(http.HandlerFunc(s.handleConfigReload),
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithRequestLogger(logger),
		middleware.WithBearerAuth(reloadTokenHash, logger),
		middleware.WithRateLimit(limiter, logger),
	)
	mux.Handle("POST /sidecar/config/reload", reloadHandler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.RequestTimeoutMs) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.HTTP.RequestTimeoutMs) * time.Millisecond,
	}

	return s
}

// Start starts the HTTP server and blocks until shutdown. It handles
// graceful shutdown on SIGINT and SIGTERM.
func (s *Server) Start() error {
	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting control-plane HTTP server",
			slog.String("address", s.httpServer.Addr),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("httpapi: server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests and stops the HTTP listener. drainTimeout
// is read from the config snapshot's shutdown.drain_timeout_ms.
func (s *Server) Shutdown() error {
	cfg := s.snapshot.Load()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Shutdown.DrainTimeoutMs)*time.Millisecond)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpapi: shutdown failed: %w", err)
	}

	s.logger.Info("control-plane HTTP server shut down cleanly")

	return nil
}
