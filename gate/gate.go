// Package gate bounds admission into the inline execution path with a
// concurrency semaphore and an optional token-bucket rate limit
// (golang.org/x/time/rate).
//
// Submissions execute synchronously, so the gate blocks rather than
// rejects: Acquire waits for a slot or returns the context error.
//
//	g := gate.New(gate.Config{MaxConcurrency: 4, RateLimit: 100})
//	if err := g.Acquire(ctx); err != nil { ... }
//	defer g.Release()
package gate

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config defines admission behaviour for the inline execution path.
type Config struct {
	// MaxConcurrency limits how many jobs may execute simultaneously.
	// Zero means no concurrency limit.
	MaxConcurrency int

	// RateLimit is the maximum sustained jobs per second admitted.
	// Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// Gate is a blocking admission gate. It is safe for concurrent use.
type Gate struct {
	slots   chan struct{}
	limiter *rate.Limiter

	mu     sync.Mutex
	active int
}

// New creates a Gate with the given configuration.
func New(cfg Config) *Gate {
	g := &Gate{}
	if cfg.MaxConcurrency > 0 {
		g.slots = make(chan struct{}, cfg.MaxConcurrency)
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return g
}

// Acquire blocks until the caller may proceed: first the rate limiter
// admits it, then a concurrency slot frees up. Returns the context
// error if ctx is cancelled while waiting. The caller MUST call
// Release when the job completes.
func (g *Gate) Acquire(ctx context.Context) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if g.slots != nil {
		select {
		case g.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	g.mu.Lock()
	g.active++
	g.mu.Unlock()
	return nil
}

// Release frees the slot taken by Acquire.
func (g *Gate) Release() {
	g.mu.Lock()
	if g.active > 0 {
		g.active--
	}
	g.mu.Unlock()

	if g.slots != nil {
		select {
		case <-g.slots:
		default:
		}
	}
}

// Active returns the current number of admitted jobs.
func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}
