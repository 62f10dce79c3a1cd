package engine

import (
	"context"
	"log/slog"

	"github.com/cboiteux2765/GPUTileMathService"
	"github.com/cboiteux2765/GPUTileMathService/ext"
	"github.com/cboiteux2765/GPUTileMathService/id"
	"github.com/cboiteux2765/GPUTileMathService/job"
)

// MetaStore is the external metadata/queue contract consumed by the
// deferred backend. store/redis.Store implements it; tests substitute
// an in-memory fake.
type MetaStore interface {
	// PutInitialMeta writes the initial QUEUED metadata record.
	PutInitialMeta(ctx context.Context, rec *job.Record) error

	// Publish appends {job_id, spec_json} to the external queue and
	// returns the queue's ack token for the entry.
	Publish(ctx context.Context, rec *job.Record) (string, error)

	// GetMeta reads the metadata record back.
	GetMeta(ctx context.Context, jobID id.JobID) (*job.Record, error)

	// GetResult reads the result summary written by an external worker;
	// (nil, nil) while none exists yet.
	GetResult(ctx context.Context, jobID id.JobID) (*job.Summary, error)
}

// deferredBackend records intent in external storage and hands the spec
// to an external queue. It never executes anything itself: a job nobody
// consumes stays QUEUED forever, which is accepted behavior since the
// worker side lives outside this process.
type deferredBackend struct {
	meta   MetaStore
	hooks  *ext.Registry
	logger *slog.Logger
}

var _ Backend = (*deferredBackend)(nil)

func newDeferredBackend(meta MetaStore, hooks *ext.Registry, logger *slog.Logger) *deferredBackend {
	return &deferredBackend{meta: meta, hooks: hooks, logger: logger}
}

func (b *deferredBackend) Kind() tilemath.BackendKind { return tilemath.BackendDeferred }

// Submit writes the metadata record first, then publishes to the queue.
// The stream entry id is the queue's ack token; it is logged, not
// stored. The record returns still QUEUED.
func (b *deferredBackend) Submit(ctx context.Context, rec *job.Record) (*job.Record, error) {
	if err := b.meta.PutInitialMeta(ctx, rec); err != nil {
		return nil, err
	}
	ack, err := b.meta.Publish(ctx, rec)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("job published to external queue",
		slog.String("job_id", rec.ID.String()),
		slog.String("ack", ack),
	)
	b.hooks.EmitJobSubmitted(ctx, rec)
	return rec, nil
}

func (b *deferredBackend) Status(ctx context.Context, jobID id.JobID) (*job.Record, error) {
	return b.meta.GetMeta(ctx, jobID)
}

// Result attaches any externally written summary to the metadata
// snapshot. The summary stays nil until an external worker writes one.
func (b *deferredBackend) Result(ctx context.Context, jobID id.JobID) (*job.Record, error) {
	rec, err := b.meta.GetMeta(ctx, jobID)
	if err != nil {
		return nil, err
	}
	summary, err := b.meta.GetResult(ctx, jobID)
	if err != nil {
		return nil, err
	}
	rec.Result = summary
	return rec, nil
}

// List is unsupported: the external store keeps per-job metadata only,
// no record index.
func (b *deferredBackend) List(_ context.Context, _ job.ListOpts) ([]*job.Record, error) {
	return nil, tilemath.ErrListUnavailable
}

// Counts is unsupported for the same reason as List.
func (b *deferredBackend) Counts(_ context.Context) (map[job.State]int64, error) {
	return nil, tilemath.ErrStatsUnavailable
}
