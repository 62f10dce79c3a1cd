package ext

import (
	"context"
	"time"

	"github.com/cboiteux2765/GPUTileMathService/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobSubmitted is called once per accepted submission, after validation
// and before the backend takes over.
type JobSubmitted interface {
	OnJobSubmitted(ctx context.Context, rec *job.Record) error
}

// JobStarted is called when execution of a job begins.
type JobStarted interface {
	OnJobStarted(ctx context.Context, rec *job.Record) error
}

// JobCompleted is called after a job finishes successfully. The record
// carries the result summary and timing fields; elapsed is the
// end-to-end wall duration.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, rec *job.Record, elapsed time.Duration) error
}

// JobFailed is called when a job fails terminally.
type JobFailed interface {
	OnJobFailed(ctx context.Context, rec *job.Record, err error) error
}

// JobEvicted is called when the retention sweep removes a terminal
// record from the store.
type JobEvicted interface {
	OnJobEvicted(ctx context.Context, rec *job.Record) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
