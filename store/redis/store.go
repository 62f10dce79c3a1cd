// Package redis implements the enqueue-side store contract for the
// deferred backend. Job metadata lives in Redis Hashes, submissions are
// published to a Stream for external workers, and results — when an
// external worker writes one — appear as JSON Strings.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/cboiteux2765/GPUTileMathService"
)

// Compile-time interface check.
var _ tilemath.Storer = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithStream overrides the Stream submissions are published to.
func WithStream(name string) Option {
	return func(s *Store) { s.stream = name }
}

// Store holds job metadata and the submission Stream in Redis.
type Store struct {
	client redis.Cmdable
	stream string
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, stream: DefaultStream, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Stream returns the Stream submissions are published to.
func (s *Store) Stream() string { return s.stream }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op — the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }
