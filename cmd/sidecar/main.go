// Package main provides the test-observability sidecar core service: a
// standalone process that accepts lifecycle events from test frameworks
// (in-process or over HTTP), samples, batches, and persists them, while
// exposing a control-plane HTTP surface for health, readiness, metrics,
// and config reload.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/sidecar-io/sidecar/internal/config"
	"github.com/sidecar-io/sidecar/internal/failopen"
	"github.com/sidecar-io/sidecar/internal/health"
	"github.com/sidecar-io/sidecar/internal/httpapi"
	"github.com/sidecar-io/sidecar/internal/metrics"
	"github.com/sidecar-io/sidecar/internal/persistence"
	"github.com/sidecar-io/sidecar/internal/producer"
	"github.com/sidecar-io/sidecar/internal/queue"
	"github.com/sidecar-io/sidecar/internal/resources"
	"github.com/sidecar-io/sidecar/internal/sampler"
	"github.com/sidecar-io/sidecar/internal/worker"
)

const (
	version = "0.1.0-dev"
	name    = "sidecar"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logLevel := config.GetEnvLogLevel("SIDECAR_LOG_LEVEL", slog.LevelInfo)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	logger.Info("starting sidecar",
		slog.String("service", name),
		slog.String("version", version),
		slog.Bool("enabled", cfg.Enabled),
	)

	snapshot := config.NewSnapshot(cfg)
	reg := metrics.New()
	guard := failopen.New(logger, reg.ErrorsTotal)

	q := queue.New(cfg.Queue.MaxSize)
	samp := sampler.New(snapshot)
	producerAPI := producer.New(q, samp, reg, guard)
	monitor := health.New()
	reloader := config.NewReloader(snapshot)

	store, closeStore := mustOpenStore(logger)
	defer closeStore()

	mirror := persistence.NewMirror(snapshot, reg, logger)
	batcher := persistence.NewBatcher(snapshot, store, mirror, reg, logger, monitor)
	pool := worker.New(q, batcher, guard, reg, snapshot, logger)

	governor, err := resources.New(snapshot, reg, guard, logger)
	if err != nil {
		logger.Error("failed to construct resource governor", slog.String("error", err.Error()))
		os.Exit(1)
	}

	server := httpapi.NewServer(snapshot, q, producerAPI, reg, monitor, reloader, logger)

	ctx, cancel := context.WithCancel(context.Background())

	poolDone := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(poolDone)
	}()
	go governor.Run(ctx)

	serverErr := server.Start()

	cancel()
	<-poolDone

	if serverErr != nil {
		logger.Error("control-plane server failed", slog.String("error", serverErr.Error()))
		os.Exit(1)
	}

	logger.Info("sidecar stopped")
}

// mustOpenStore opens the Postgres connection pool the worker pool commits
// batches through. It exits the process on failure: the Batcher writes every
// batch through this store and has no fallback when it is missing.
func mustOpenStore(logger *slog.Logger) (persistence.Store, func()) {
	dbCfg := persistence.LoadDBConfig()

	conn, err := persistence.NewConnection(dbCfg)
	if err != nil {
		logger.Error("failed to connect to database",
			slog.String("error", err.Error()),
			slog.String("database_url", dbCfg.MaskDatabaseURL()),
		)
		os.Exit(1)
	}

	store := persistence.NewPostgresStore(conn, logger)

	return store, func() {
		if err := conn.Close(); err != nil {
			logger.Warn("error closing database connection", slog.String("error", err.Error()))
		}
	}
}
