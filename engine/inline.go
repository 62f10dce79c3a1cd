package engine

import (
	"context"

	"github.com/cboiteux2765/GPUTileMathService"
	"github.com/cboiteux2765/GPUTileMathService/ext"
	"github.com/cboiteux2765/GPUTileMathService/id"
	"github.com/cboiteux2765/GPUTileMathService/job"
	"github.com/cboiteux2765/GPUTileMathService/worker"
)

// inlineBackend executes the kernel synchronously inside the submission
// call, against the in-process record store.
type inlineBackend struct {
	store job.Store
	exec  *worker.Executor
	hooks *ext.Registry
}

var _ Backend = (*inlineBackend)(nil)

func newInlineBackend(store job.Store, exec *worker.Executor, hooks *ext.Registry) *inlineBackend {
	return &inlineBackend{store: store, exec: exec, hooks: hooks}
}

func (b *inlineBackend) Kind() tilemath.BackendKind { return tilemath.BackendInline }

// Submit persists the QUEUED record, emits the submitted event, and
// drives the record to a terminal state before returning. Kernel
// failures surface as FAILED records, not errors; Submit only errors
// when the store or admission gate does.
func (b *inlineBackend) Submit(ctx context.Context, rec *job.Record) (*job.Record, error) {
	if err := b.store.CreateJob(ctx, rec); err != nil {
		return nil, err
	}
	b.hooks.EmitJobSubmitted(ctx, rec)
	return b.exec.Execute(ctx, rec)
}

func (b *inlineBackend) Status(ctx context.Context, jobID id.JobID) (*job.Record, error) {
	return b.store.GetJob(ctx, jobID)
}

// Result is the same snapshot as Status for this variant: inline records
// carry their summary inline.
func (b *inlineBackend) Result(ctx context.Context, jobID id.JobID) (*job.Record, error) {
	return b.store.GetJob(ctx, jobID)
}

func (b *inlineBackend) List(ctx context.Context, opts job.ListOpts) ([]*job.Record, error) {
	return b.store.ListJobs(ctx, opts)
}

func (b *inlineBackend) Counts(ctx context.Context) (map[job.State]int64, error) {
	counts := make(map[job.State]int64, 4)
	for _, st := range []job.State{job.StateQueued, job.StateRunning, job.StateDone, job.StateFailed} {
		n, err := b.store.CountJobs(ctx, job.CountOpts{State: st})
		if err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, nil
}
