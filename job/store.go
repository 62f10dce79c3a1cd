package job

import (
	"context"
	"time"

	"github.com/cboiteux2765/GPUTileMathService/id"
)

// ListOpts filters and pages ListJobs.
type ListOpts struct {
	// State filters to a single lifecycle state; empty means all.
	State State
	// FinishedBefore keeps only terminal records whose FinishedAt is
	// strictly before the given instant; zero means no time filter.
	FinishedBefore time.Time
	// Limit caps the result size; zero means no cap.
	Limit int
	// Offset skips that many matching records.
	Offset int
}

// CountOpts filters CountJobs.
type CountOpts struct {
	// State filters to a single lifecycle state; empty means all.
	State State
}

// Store is the record store contract. All reads return consistent
// point-in-time snapshots; all operations on a single job identifier are
// linearizable. Mutations on absent identifiers fail with
// tilemath.ErrJobNotFound, and transitions out of a terminal state fail
// with tilemath.ErrStoreInconsistency.
type Store interface {
	// CreateJob inserts a new record. The record's identifier must not
	// collide with an existing one.
	CreateJob(ctx context.Context, rec *Record) error

	// GetJob returns a snapshot of the record.
	GetJob(ctx context.Context, jobID id.JobID) (*Record, error)

	// SetJobState transitions the record, advancing updated_at, setting
	// started_at on the first entry to RUNNING and finished_at on the
	// first entry to a terminal state. errMsg is stored only when
	// non-empty.
	SetJobState(ctx context.Context, jobID id.JobID, state State, errMsg string) error

	// SetJobResult attaches the result summary and timing fields,
	// advancing updated_at. summary may be nil (failed jobs) and
	// computeMs may be nil (the kernel never ran).
	SetJobResult(ctx context.Context, jobID id.JobID, summary *Summary, wallMs float64, computeMs *float64) error

	// ListJobs returns snapshots matching opts, newest first.
	ListJobs(ctx context.Context, opts ListOpts) ([]*Record, error)

	// CountJobs counts records matching opts.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)

	// DeleteJob removes the record.
	DeleteJob(ctx context.Context, jobID id.JobID) error
}
