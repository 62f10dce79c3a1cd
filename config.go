package tilemath

import (
	"os"
	"strconv"
	"time"
)

// BackendKind selects the execution backend. The choice is made once at
// startup and fixed for the process lifetime; it is never a per-request
// decision.
type BackendKind string

const (
	// BackendInline executes the kernel synchronously inside the
	// submission call, against the in-process record store.
	BackendInline BackendKind = "inline"
	// BackendDeferred writes initial metadata and publishes the spec to
	// an external queue without executing anything.
	BackendDeferred BackendKind = "deferred"
)

// Config holds configuration for the service.
type Config struct {
	// Backend selects inline or deferred execution.
	Backend BackendKind

	// HTTPAddr is the listen address for the API server.
	HTTPAddr string

	// RedisURL is the connection URL for the deferred backend.
	RedisURL string

	// RedisStream is the append-only queue stream name for deferred jobs.
	RedisStream string

	// InlineConcurrency caps how many kernel executions may run at once.
	InlineConcurrency int

	// InlineRate limits kernel admissions per second. Zero means
	// unlimited.
	InlineRate float64

	// RetentionAge is how long terminal records are kept in the
	// in-process store before eviction. Zero disables eviction.
	RetentionAge time.Duration

	// RetentionSweep is the sweep cadence as a cron expression
	// (robfig/cron syntax, e.g. "@every 1m").
	RetentionSweep string

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// AuditLog enables the structured lifecycle audit hook.
	AuditLog bool

	// LogLevel is the minimum slog level (debug, info, warn, error).
	LogLevel string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:           BackendInline,
		HTTPAddr:          ":8000",
		RedisURL:          "redis://127.0.0.1:6379/0",
		RedisStream:       "queue:jobs",
		InlineConcurrency: 4,
		InlineRate:        0,
		RetentionAge:      time.Hour,
		RetentionSweep:    "@every 1m",
		ShutdownTimeout:   30 * time.Second,
		AuditLog:          false,
		LogLevel:          "info",
	}
}

// FromEnv returns DefaultConfig overridden by environment variables.
// JOB_BACKEND accepts "inline" or "deferred"; the legacy values
// "inmemory" and "redis" map onto them.
func FromEnv() Config {
	cfg := DefaultConfig()

	switch envOr("JOB_BACKEND", string(cfg.Backend)) {
	case "redis", string(BackendDeferred):
		cfg.Backend = BackendDeferred
	case "inmemory", string(BackendInline):
		cfg.Backend = BackendInline
	}

	cfg.HTTPAddr = envOr("HTTP_ADDR", cfg.HTTPAddr)
	cfg.RedisURL = envOr("REDIS_URL", cfg.RedisURL)
	cfg.RedisStream = envOr("REDIS_STREAM", cfg.RedisStream)
	cfg.InlineConcurrency = envInt("INLINE_CONCURRENCY", cfg.InlineConcurrency)
	cfg.InlineRate = envFloat("INLINE_RATE", cfg.InlineRate)
	cfg.RetentionAge = envDuration("RETENTION_AGE", cfg.RetentionAge)
	cfg.RetentionSweep = envOr("RETENTION_SWEEP", cfg.RetentionSweep)
	cfg.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.AuditLog = envBool("AUDIT_LOG", cfg.AuditLog)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
