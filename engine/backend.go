package engine

import (
	"context"

	"github.com/cboiteux2765/GPUTileMathService"
	"github.com/cboiteux2765/GPUTileMathService/id"
	"github.com/cboiteux2765/GPUTileMathService/job"
)

// Backend is the execution variant behind the lifecycle facade. The
// variant is chosen once, at engine construction, from Config.Backend —
// never per request.
//
// Submit receives a record already validated and in state QUEUED. The
// inline variant drives it to a terminal state before returning; the
// deferred variant records intent externally and returns it still
// QUEUED.
type Backend interface {
	// Kind identifies the variant.
	Kind() tilemath.BackendKind

	// Submit hands the new record to the variant and returns the record
	// as the caller should see it after submission.
	Submit(ctx context.Context, rec *job.Record) (*job.Record, error)

	// Status returns the current record snapshot.
	Status(ctx context.Context, jobID id.JobID) (*job.Record, error)

	// Result returns the record with any result attached. For the
	// deferred variant the summary comes from the external result key
	// and may be absent while an external worker is still running.
	Result(ctx context.Context, jobID id.JobID) (*job.Record, error)

	// List returns record snapshots matching opts, newest first. The
	// deferred variant has no record index and reports
	// tilemath.ErrListUnavailable.
	List(ctx context.Context, opts job.ListOpts) ([]*job.Record, error)

	// Counts returns per-state record counts. The deferred variant
	// reports tilemath.ErrStatsUnavailable.
	Counts(ctx context.Context) (map[job.State]int64, error)
}
