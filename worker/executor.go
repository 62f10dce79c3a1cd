// Package worker provides the inline execution engine — an Executor
// that runs a record's kernel through middleware in the submit path,
// persists the outcome, and emits lifecycle events.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cboiteux2765/GPUTileMathService/ext"
	"github.com/cboiteux2765/GPUTileMathService/gate"
	"github.com/cboiteux2765/GPUTileMathService/job"
	"github.com/cboiteux2765/GPUTileMathService/kernel"
	"github.com/cboiteux2765/GPUTileMathService/middleware"
)

// Executor runs a single job through middleware and the registered kernel
// runner, then handles state transitions, result persistence, and
// lifecycle events. Kernel errors become FAILED records, not returned
// errors; Execute only fails when the store or admission gate does.
type Executor struct {
	registry   *kernel.Registry
	extensions *ext.Registry
	store      job.Store
	gate       *gate.Gate
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies. The gate
// may be nil when admission is unbounded.
func NewExecutor(
	registry *kernel.Registry,
	extensions *ext.Registry,
	store job.Store,
	g *gate.Gate,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		registry:   registry,
		extensions: extensions,
		store:      store,
		gate:       g,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute runs a record's kernel synchronously.
// On success: stores the result summary plus timings, marks DONE, emits
// JobCompleted. On kernel failure: stores wall time only, marks FAILED
// with the error message, emits JobFailed. Either way the returned
// record is the terminal snapshot read back from the store.
//
// Wall time spans from entry (including any admission wait) to the
// terminal transition; compute time covers only the kernel run.
func (e *Executor) Execute(ctx context.Context, rec *job.Record) (*job.Record, error) {
	t0 := time.Now()

	if e.gate != nil {
		if err := e.gate.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("tilemath/worker: admission: %w", err)
		}
		defer e.gate.Release()
	}

	if err := e.store.SetJobState(ctx, rec.ID, job.StateRunning, ""); err != nil {
		return nil, fmt.Errorf("tilemath/worker: mark running: %w", err)
	}
	if running, err := e.store.GetJob(ctx, rec.ID); err == nil {
		e.extensions.EmitJobStarted(ctx, running)
	}

	runner, ok := e.registry.Lookup(rec.Spec.Op)
	if !ok {
		return e.handleFailure(ctx, rec, fmt.Errorf("no kernel registered for op %q", rec.Spec.Op), t0)
	}

	// The terminal handler invokes the kernel and captures its output.
	// Compute time is measured inside so middleware overhead stays out.
	var summary job.Summary
	var computeMs float64
	terminal := func(ctx context.Context) error {
		c0 := time.Now()
		s, kerr := runner(ctx, rec.Spec)
		computeMs = float64(time.Since(c0)) / float64(time.Millisecond)
		if kerr != nil {
			return kerr
		}
		summary = s
		return nil
	}

	if err := e.mw(ctx, rec, terminal); err != nil {
		return e.handleFailure(ctx, rec, err, t0)
	}
	return e.handleSuccess(ctx, rec, &summary, computeMs, t0)
}

// handleSuccess persists the result before the DONE transition so no
// reader ever observes a terminal record without its summary.
func (e *Executor) handleSuccess(ctx context.Context, rec *job.Record, summary *job.Summary, computeMs float64, t0 time.Time) (*job.Record, error) {
	wallMs := float64(time.Since(t0)) / float64(time.Millisecond)

	if err := e.store.SetJobResult(ctx, rec.ID, summary, wallMs, &computeMs); err != nil {
		e.logger.Error("failed to store job result",
			slog.String("job_id", rec.ID.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if err := e.store.SetJobState(ctx, rec.ID, job.StateDone, ""); err != nil {
		e.logger.Error("failed to mark job done",
			slog.String("job_id", rec.ID.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	done, err := e.store.GetJob(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	e.extensions.EmitJobCompleted(ctx, done, time.Since(t0))
	return done, nil
}

// handleFailure records wall time (but no summary and no compute time),
// marks the record FAILED with the verbatim error message, and emits
// the lifecycle event.
func (e *Executor) handleFailure(ctx context.Context, rec *job.Record, execErr error, t0 time.Time) (*job.Record, error) {
	wallMs := float64(time.Since(t0)) / float64(time.Millisecond)

	if err := e.store.SetJobResult(ctx, rec.ID, nil, wallMs, nil); err != nil {
		e.logger.Error("failed to store failure timing",
			slog.String("job_id", rec.ID.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if err := e.store.SetJobState(ctx, rec.ID, job.StateFailed, execErr.Error()); err != nil {
		e.logger.Error("failed to mark job failed",
			slog.String("job_id", rec.ID.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	failed, err := e.store.GetJob(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	e.extensions.EmitJobFailed(ctx, failed, execErr)

	e.logger.Warn("job failed",
		slog.String("job_id", rec.ID.String()),
		slog.String("op", rec.Spec.Op),
		slog.String("error", execErr.Error()),
	)
	return failed, nil
}
