// Package main runs the tile-math job service daemon: HTTP API,
// execution backend, metrics, and record retention, configured from the
// environment (plus an optional .env file).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/cboiteux2765/GPUTileMathService"
	"github.com/cboiteux2765/GPUTileMathService/api"
	"github.com/cboiteux2765/GPUTileMathService/audit"
	"github.com/cboiteux2765/GPUTileMathService/engine"
	"github.com/cboiteux2765/GPUTileMathService/janitor"
	"github.com/cboiteux2765/GPUTileMathService/observability"
	"github.com/cboiteux2765/GPUTileMathService/store/memory"
	redisstore "github.com/cboiteux2765/GPUTileMathService/store/redis"
)

func main() {
	loadDotEnv()
	cfg := tilemath.FromEnv()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("daemon exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg tilemath.Config, logger *slog.Logger) error {
	// ──────────────────────────────────────────────────
	// Store and backend
	// ──────────────────────────────────────────────────

	var (
		store       tilemath.Storer
		redisClient *goredis.Client
	)
	switch cfg.Backend {
	case tilemath.BackendInline:
		store = memory.New()
	case tilemath.BackendDeferred:
		redisOpts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = goredis.NewClient(redisOpts)
		defer func() { _ = redisClient.Close() }()
		store = redisstore.New(redisClient,
			redisstore.WithStream(cfg.RedisStream),
			redisstore.WithLogger(logger),
		)
	default:
		return fmt.Errorf("%w: %q", tilemath.ErrUnknownBackend, cfg.Backend)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := store.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("store ping: %w", err)
	}

	// ──────────────────────────────────────────────────
	// Service, extensions, engine
	// ──────────────────────────────────────────────────

	metrics := observability.NewMetricsExtension()
	svcOpts := []tilemath.Option{
		tilemath.WithConfig(cfg),
		tilemath.WithLogger(logger),
		tilemath.WithStore(store),
		tilemath.WithExtension(metrics),
	}
	if cfg.AuditLog {
		svcOpts = append(svcOpts, tilemath.WithExtension(audit.New(audit.SlogRecorder(logger))))
	}

	svc, err := tilemath.New(svcOpts...)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	eng, err := engine.New(svc)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	// Retention applies to the in-process store only; deferred-mode
	// metadata belongs to the external system.
	var jan *janitor.Janitor
	if cfg.Backend == tilemath.BackendInline {
		jan, err = janitor.New(eng.JobStore(), eng.Extensions(), cfg.RetentionAge, cfg.RetentionSweep,
			janitor.WithGauge(metrics),
			janitor.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("build janitor: %w", err)
		}
	}

	a := api.New(eng,
		api.WithLogger(logger),
		api.WithMetrics(metrics),
	)
	srv := api.NewServer(cfg.HTTPAddr, a.Handler(), logger)

	// ──────────────────────────────────────────────────
	// Run until signalled
	// ──────────────────────────────────────────────────

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("tilemathd starting",
		slog.String("backend", string(cfg.Backend)),
		slog.String("addr", cfg.HTTPAddr),
		slog.Bool("audit_log", cfg.AuditLog),
	)

	if jan != nil {
		if err := jan.Start(ctx); err != nil {
			return fmt.Errorf("start janitor: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if jan != nil {
		if stopErr := jan.Stop(stopCtx); stopErr != nil && err == nil {
			err = stopErr
		}
	}
	if stopErr := eng.Stop(stopCtx); stopErr != nil && err == nil {
		err = stopErr
	}

	logger.Info("tilemathd stopped")
	return err
}

// newLogger builds a JSON slog logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// loadDotEnv walks up from the working directory looking for a .env
// file, so the daemon picks up repo-root settings when started from a
// subdirectory.
func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
