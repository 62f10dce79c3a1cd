package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/sync/errgroup"

	"github.com/cboiteux2765/GPUTileMathService"
	"github.com/cboiteux2765/GPUTileMathService/engine"
	"github.com/cboiteux2765/GPUTileMathService/id"
	"github.com/cboiteux2765/GPUTileMathService/job"
	"github.com/cboiteux2765/GPUTileMathService/observability"
	"github.com/cboiteux2765/GPUTileMathService/store/memory"
)

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func newInlineEngine(t *testing.T, opts ...engine.Option) (*engine.Engine, *memory.Store) {
	t.Helper()
	st := memory.New()
	svc, err := tilemath.New(tilemath.WithStore(st))
	if err != nil {
		t.Fatalf("tilemath.New: %v", err)
	}
	eng, err := engine.New(svc, opts...)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return eng, st
}

// ──────────────────────────────────────────────────
// Inline backend: submit paths
// ──────────────────────────────────────────────────

func TestSubmitSimulate(t *testing.T) {
	t.Parallel()
	eng, st := newInlineEngine(t)

	spec := job.Spec{Op: job.OpGEMM, M: 512, N: 512, K: 512, Seed: 7, Simulate: true}
	rec, err := eng.SubmitJob(context.Background(), spec)
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}

	if rec.State != job.StateDone {
		t.Fatalf("state = %s, want DONE", rec.State)
	}
	if rec.Result == nil || rec.Result.Mode != job.ModeSimulated {
		t.Fatalf("result = %+v", rec.Result)
	}
	if rec.Result.Note != job.SimulateNote {
		t.Errorf("note = %q", rec.Result.Note)
	}
	if rec.WallTimeMs == nil || rec.ComputeTimeMs == nil {
		t.Fatalf("timings missing: wall=%v compute=%v", rec.WallTimeMs, rec.ComputeTimeMs)
	}
	if rec.StartedAt == nil || rec.FinishedAt == nil {
		t.Fatal("lifecycle timestamps missing")
	}
	if rec.StartedAt.After(*rec.FinishedAt) {
		t.Errorf("started_at %v after finished_at %v", rec.StartedAt, rec.FinishedAt)
	}

	// The record in the store matches what Submit returned.
	stored, err := st.GetJob(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.State != job.StateDone || stored.Result.Checksum != rec.Result.Checksum {
		t.Errorf("stored record diverges: %+v", stored)
	}
}

func TestSubmitSimulateDeterministic(t *testing.T) {
	t.Parallel()
	eng, _ := newInlineEngine(t)

	spec := job.Spec{Op: job.OpGEMM, M: 4096, N: 4096, K: 4096, Seed: 42, Simulate: true}
	first, err := eng.SubmitJob(context.Background(), spec)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := eng.SubmitJob(context.Background(), spec)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	if first.ID == second.ID {
		t.Fatal("two submissions shared a job id")
	}
	if first.Result.Checksum != second.Result.Checksum {
		t.Errorf("checksums diverge: %q vs %q", first.Result.Checksum, second.Result.Checksum)
	}
}

func TestSubmitCompute(t *testing.T) {
	t.Parallel()
	eng, _ := newInlineEngine(t)

	spec := job.Spec{Op: job.OpGEMM, M: 16, N: 16, K: 16, Seed: 7, Repeats: 2}
	rec, err := eng.SubmitJob(context.Background(), spec)
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}

	if rec.State != job.StateDone {
		t.Fatalf("state = %s, want DONE, error = %q", rec.State, rec.Error)
	}
	if rec.Result == nil || rec.Result.Mode != job.ModeCPUGemm {
		t.Fatalf("result = %+v", rec.Result)
	}
	if rec.Result.Mean == nil || rec.Result.Var == nil || rec.Result.L2 == nil {
		t.Fatalf("stats missing: %+v", rec.Result)
	}
	if *rec.Result.Var < 0 {
		t.Errorf("variance negative: %v", *rec.Result.Var)
	}
	if len(rec.Result.Checksum) != 64 {
		t.Errorf("checksum length = %d", len(rec.Result.Checksum))
	}
}

func TestSubmitShapeTooLargeFails(t *testing.T) {
	t.Parallel()
	eng, _ := newInlineEngine(t)

	// 200×200 output exceeds the 128×128 ceiling-product guard.
	spec := job.Spec{Op: job.OpGEMM, M: 200, N: 200, K: 1}
	rec, err := eng.SubmitJob(context.Background(), spec)
	if err != nil {
		t.Fatalf("submission must succeed even when the kernel fails: %v", err)
	}

	if rec.State != job.StateFailed {
		t.Fatalf("state = %s, want FAILED", rec.State)
	}
	if rec.Error != tilemath.ErrShapeTooLarge.Error() {
		t.Errorf("error = %q, want %q", rec.Error, tilemath.ErrShapeTooLarge.Error())
	}
	if rec.Result != nil {
		t.Errorf("result must be nil on failure, got %+v", rec.Result)
	}
	if rec.ComputeTimeMs != nil {
		t.Errorf("compute_time_ms must be nil when the kernel refused, got %v", *rec.ComputeTimeMs)
	}
	if rec.WallTimeMs == nil {
		t.Error("wall_time_ms must be recorded on failure")
	}
	if rec.FinishedAt == nil {
		t.Error("finished_at missing")
	}
}

func TestSubmitValidationCreatesNoRecord(t *testing.T) {
	t.Parallel()
	eng, st := newInlineEngine(t)

	cases := []struct {
		name string
		spec job.Spec
	}{
		{"zero dim", job.Spec{Op: job.OpGEMM, N: 16, K: 16}},
		{"bad op", job.Spec{Op: "conv2d", M: 16, N: 16, K: 16}},
		{"bad dtype", job.Spec{Op: job.OpGEMM, M: 16, N: 16, K: 16, Dtype: "fp64"}},
		{"negative seed", job.Spec{Op: job.OpGEMM, M: 16, N: 16, K: 16, Seed: -1}},
		{"repeats over cap", job.Spec{Op: job.OpGEMM, M: 16, N: 16, K: 16, Repeats: 10_001}},
	}
	for _, tc := range cases {
		if _, err := eng.SubmitJob(context.Background(), tc.spec); !tilemath.IsValidation(err) {
			t.Errorf("%s: expected ValidationError, got %v", tc.name, err)
		}
	}

	n, err := st.CountJobs(context.Background(), job.CountOpts{})
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if n != 0 {
		t.Errorf("rejected specs left %d records behind", n)
	}
}

// ──────────────────────────────────────────────────
// Inline backend: reads
// ──────────────────────────────────────────────────

func TestGetStatusAndResult(t *testing.T) {
	t.Parallel()
	eng, _ := newInlineEngine(t)

	rec, err := eng.SubmitJob(context.Background(), job.Spec{Op: job.OpGEMM, M: 8, N: 8, K: 8, Simulate: true})
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}

	status, err := eng.GetStatus(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.State != job.StateDone {
		t.Errorf("status state = %s", status.State)
	}

	result, err := eng.GetResult(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if result.Result == nil || result.Result.Checksum != rec.Result.Checksum {
		t.Errorf("result = %+v", result.Result)
	}
}

func TestGetStatusNotFound(t *testing.T) {
	t.Parallel()
	eng, _ := newInlineEngine(t)

	if _, err := eng.GetStatus(context.Background(), id.NewJobID()); !errors.Is(err, tilemath.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if _, err := eng.GetResult(context.Background(), id.NewJobID()); !errors.Is(err, tilemath.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestListAndCounts(t *testing.T) {
	t.Parallel()
	eng, _ := newInlineEngine(t)

	for i := 0; i < 3; i++ {
		if _, err := eng.SubmitJob(context.Background(), job.Spec{Op: job.OpGEMM, M: 8, N: 8, K: 8, Simulate: true}); err != nil {
			t.Fatalf("SubmitJob: %v", err)
		}
	}
	if _, err := eng.SubmitJob(context.Background(), job.Spec{Op: job.OpGEMM, M: 200, N: 200, K: 1}); err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}

	all, err := eng.ListJobs(context.Background(), job.ListOpts{})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("listed %d records, want 4", len(all))
	}

	failedOnly, err := eng.ListJobs(context.Background(), job.ListOpts{State: job.StateFailed})
	if err != nil {
		t.Fatalf("ListJobs failed-filter: %v", err)
	}
	if len(failedOnly) != 1 {
		t.Fatalf("listed %d failed records, want 1", len(failedOnly))
	}

	counts, err := eng.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[job.StateDone] != 3 || counts[job.StateFailed] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if counts[job.StateQueued] != 0 || counts[job.StateRunning] != 0 {
		t.Errorf("inline backend left non-terminal records: %v", counts)
	}

	n, err := eng.InMemoryCount(context.Background())
	if err != nil {
		t.Fatalf("InMemoryCount: %v", err)
	}
	if n != 4 {
		t.Errorf("in-memory count = %d, want 4", n)
	}
}

// ──────────────────────────────────────────────────
// Concurrency
// ──────────────────────────────────────────────────

func TestConcurrentSubmissions(t *testing.T) {
	t.Parallel()
	eng, st := newInlineEngine(t)

	const jobs = 60
	var mu sync.Mutex
	seen := make(map[id.JobID]bool, jobs)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < jobs; i++ {
		i := i
		g.Go(func() error {
			spec := job.Spec{Op: job.OpGEMM, M: 8, N: 8, K: 8, Seed: int64(i % 5), Simulate: i%2 == 0}
			rec, err := eng.SubmitJob(ctx, spec)
			if err != nil {
				return err
			}
			if !rec.State.Terminal() {
				return fmt.Errorf("job %s finished in state %s", rec.ID, rec.State)
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[rec.ID] {
				return fmt.Errorf("duplicate job id %s", rec.ID)
			}
			seen[rec.ID] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent submissions: %v", err)
	}

	if len(seen) != jobs {
		t.Errorf("unique ids = %d, want %d", len(seen), jobs)
	}
	n, err := st.CountJobs(context.Background(), job.CountOpts{})
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if n != jobs {
		t.Errorf("stored records = %d, want %d", n, jobs)
	}
}

// ──────────────────────────────────────────────────
// Instrumentation deltas
// ──────────────────────────────────────────────────

func TestSubmittedCounterExactDelta(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	mext := observability.NewMetricsExtensionWithRegisterer(reg)

	st := memory.New()
	svc, err := tilemath.New(
		tilemath.WithStore(st),
		tilemath.WithExtension(mext),
	)
	if err != nil {
		t.Fatalf("tilemath.New: %v", err)
	}
	eng, err := engine.New(svc)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	// One accepted simulate submission: exactly one submitted increment,
	// one done increment.
	if _, err := eng.SubmitJob(context.Background(), job.Spec{Op: job.OpGEMM, M: 8, N: 8, K: 8, Simulate: true}); err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	if got := testutil.ToFloat64(mext.JobsSubmitted.WithLabelValues("gemm", "fp32", "true")); got != 1 {
		t.Errorf("jobs_submitted_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(mext.JobsCompleted.WithLabelValues("gemm", "fp32", "done")); got != 1 {
		t.Errorf("jobs_completed_total{done} = %v, want 1", got)
	}

	// A kernel failure still counts as an accepted submission, completed
	// with state=failed.
	if _, err := eng.SubmitJob(context.Background(), job.Spec{Op: job.OpGEMM, M: 200, N: 200, K: 1}); err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	if got := testutil.ToFloat64(mext.JobsSubmitted.WithLabelValues("gemm", "fp32", "false")); got != 1 {
		t.Errorf("jobs_submitted_total{simulate=false} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(mext.JobsCompleted.WithLabelValues("gemm", "fp32", "failed")); got != 1 {
		t.Errorf("jobs_completed_total{failed} = %v, want 1", got)
	}

	// A rejected spec increments nothing.
	if _, err := eng.SubmitJob(context.Background(), job.Spec{Op: job.OpGEMM, M: 0, N: 8, K: 8}); !tilemath.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if got := testutil.ToFloat64(mext.JobsSubmitted.WithLabelValues("gemm", "fp32", "false")); got != 1 {
		t.Errorf("rejected spec moved jobs_submitted_total to %v", got)
	}
}

// ──────────────────────────────────────────────────
// Deferred backend
// ──────────────────────────────────────────────────

// fakeMetaStore is an in-memory stand-in for the external metadata/queue
// contract.
type fakeMetaStore struct {
	mu      sync.Mutex
	meta    map[id.JobID]*job.Record
	results map[id.JobID]*job.Summary
	stream  []id.JobID
}

func newFakeMetaStore() *fakeMetaStore {
	return &fakeMetaStore{
		meta:    make(map[id.JobID]*job.Record),
		results: make(map[id.JobID]*job.Summary),
	}
}

func (f *fakeMetaStore) Ping(_ context.Context) error { return nil }
func (f *fakeMetaStore) Close() error                 { return nil }

func (f *fakeMetaStore) PutInitialMeta(_ context.Context, rec *job.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.meta[rec.ID]; exists {
		return tilemath.ErrJobAlreadyExists
	}
	cp := *rec
	f.meta[rec.ID] = &cp
	return nil
}

func (f *fakeMetaStore) Publish(_ context.Context, rec *job.Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stream = append(f.stream, rec.ID)
	return fmt.Sprintf("%d-0", len(f.stream)), nil
}

func (f *fakeMetaStore) GetMeta(_ context.Context, jobID id.JobID) (*job.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.meta[jobID]
	if !ok {
		return nil, tilemath.ErrJobNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeMetaStore) GetResult(_ context.Context, jobID id.JobID) (*job.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results[jobID], nil
}

func newDeferredEngine(t *testing.T) (*engine.Engine, *fakeMetaStore) {
	t.Helper()
	fake := newFakeMetaStore()
	cfg := tilemath.DefaultConfig()
	cfg.Backend = tilemath.BackendDeferred
	svc, err := tilemath.New(
		tilemath.WithConfig(cfg),
		tilemath.WithStore(fake),
	)
	if err != nil {
		t.Fatalf("tilemath.New: %v", err)
	}
	eng, err := engine.New(svc)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return eng, fake
}

func TestDeferredSubmitStaysQueued(t *testing.T) {
	t.Parallel()
	eng, fake := newDeferredEngine(t)

	if eng.Kind() != tilemath.BackendDeferred {
		t.Fatalf("kind = %s", eng.Kind())
	}

	rec, err := eng.SubmitJob(context.Background(), job.Spec{Op: job.OpGEMM, M: 64, N: 64, K: 64, Seed: 9})
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	if rec.State != job.StateQueued {
		t.Fatalf("state = %s, want QUEUED", rec.State)
	}
	if rec.StartedAt != nil || rec.FinishedAt != nil {
		t.Error("deferred submission must not set lifecycle timestamps")
	}
	if rec.Result != nil {
		t.Error("deferred submission must not produce a result")
	}

	fake.mu.Lock()
	metaLen, streamLen := len(fake.meta), len(fake.stream)
	fake.mu.Unlock()
	if metaLen != 1 || streamLen != 1 {
		t.Errorf("meta=%d stream=%d, want 1/1", metaLen, streamLen)
	}

	// The snapshot read back is still QUEUED — nothing ever executes.
	status, err := eng.GetStatus(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.State != job.StateQueued {
		t.Errorf("status = %s, want QUEUED", status.State)
	}
}

func TestDeferredResultFromExternalWorker(t *testing.T) {
	t.Parallel()
	eng, fake := newDeferredEngine(t)

	rec, err := eng.SubmitJob(context.Background(), job.Spec{Op: job.OpGEMM, M: 32, N: 32, K: 32})
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}

	// Nothing written yet: the result endpoint reports an absent summary.
	got, err := eng.GetResult(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if got.Result != nil {
		t.Fatalf("result before external write = %+v", got.Result)
	}

	// Simulate an external worker writing the result key.
	fake.mu.Lock()
	fake.results[rec.ID] = &job.Summary{Checksum: "abc123", Mode: job.ModeCPUGemm}
	fake.mu.Unlock()

	got, err = eng.GetResult(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if got.Result == nil || got.Result.Checksum != "abc123" {
		t.Errorf("result after external write = %+v", got.Result)
	}
}

func TestDeferredAggregatesUnavailable(t *testing.T) {
	t.Parallel()
	eng, _ := newDeferredEngine(t)

	if _, err := eng.Counts(context.Background()); !errors.Is(err, tilemath.ErrStatsUnavailable) {
		t.Errorf("Counts: expected ErrStatsUnavailable, got %v", err)
	}
	if _, err := eng.ListJobs(context.Background(), job.ListOpts{}); !errors.Is(err, tilemath.ErrListUnavailable) {
		t.Errorf("ListJobs: expected ErrListUnavailable, got %v", err)
	}

	n, err := eng.InMemoryCount(context.Background())
	if err != nil || n != 0 {
		t.Errorf("InMemoryCount = %d, %v, want 0, nil", n, err)
	}
}

// ──────────────────────────────────────────────────
// Build errors
// ──────────────────────────────────────────────────

func TestNewNoStore(t *testing.T) {
	t.Parallel()
	svc, err := tilemath.New()
	if err != nil {
		t.Fatalf("tilemath.New: %v", err)
	}
	if _, err := engine.New(svc); !errors.Is(err, tilemath.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

// bareStore implements Storer but neither backend contract.
type bareStore struct{}

func (bareStore) Ping(_ context.Context) error { return nil }
func (bareStore) Close() error                 { return nil }

func TestNewBareStore(t *testing.T) {
	t.Parallel()
	svc, err := tilemath.New(tilemath.WithStore(bareStore{}))
	if err != nil {
		t.Fatalf("tilemath.New: %v", err)
	}
	if _, err := engine.New(svc); err == nil {
		t.Fatal("expected error for store that implements neither backend contract")
	}
}

func TestNewUnknownBackend(t *testing.T) {
	t.Parallel()
	cfg := tilemath.DefaultConfig()
	cfg.Backend = "quantum"
	svc, err := tilemath.New(
		tilemath.WithConfig(cfg),
		tilemath.WithStore(memory.New()),
	)
	if err != nil {
		t.Fatalf("tilemath.New: %v", err)
	}
	if _, err := engine.New(svc); !errors.Is(err, tilemath.ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}
