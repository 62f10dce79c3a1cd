// Package memory provides the in-process job record store used by the
// inline backend. Safe for concurrent access; contents do not survive
// process restarts.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cboiteux2765/GPUTileMathService"
	"github.com/cboiteux2765/GPUTileMathService/id"
	"github.com/cboiteux2765/GPUTileMathService/job"
)

// Compile-time interface checks.
var (
	_ job.Store       = (*Store)(nil)
	_ tilemath.Storer = (*Store)(nil)
)

// Store keeps job records in a single map guarded by one RWMutex. The
// kernel never runs under the lock — only the brief metadata writes do —
// so a coarse lock keeps every per-record operation linearizable without
// contending with compute.
//
// All reads hand out copies: callers can never mutate a stored record,
// and a snapshot taken before a mutation keeps its old field values.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*job.Record
}

// New returns a new empty Store.
func New() *Store {
	return &Store{jobs: make(map[string]*job.Record)}
}

// ──────────────────────────────────────────────────
// Lifecycle — Ping / Close
// ──────────────────────────────────────────────────

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Record store
// ──────────────────────────────────────────────────

// CreateJob inserts a new record.
func (m *Store) CreateJob(_ context.Context, rec *job.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := rec.ID.String()
	if _, exists := m.jobs[key]; exists {
		return tilemath.ErrJobAlreadyExists
	}
	cp := *rec
	m.jobs[key] = &cp
	return nil
}

// GetJob retrieves a snapshot of a record by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, tilemath.ErrJobNotFound
	}
	cp := *rec
	return &cp, nil
}

// SetJobState transitions a record. started_at is set on the first entry
// to RUNNING and finished_at on the first entry to a terminal state,
// each exactly once. errMsg is stored only when non-empty. Transitions
// out of a terminal state are invariant violations.
func (m *Store) SetJobState(_ context.Context, jobID id.JobID, state job.State, errMsg string) error {
	if !state.Valid() {
		return fmt.Errorf("%w: unknown state %q", tilemath.ErrStoreInconsistency, state)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[jobID.String()]
	if !ok {
		return tilemath.ErrJobNotFound
	}
	if rec.State.Terminal() && state != rec.State {
		return fmt.Errorf("%w: job %s: transition %s -> %s leaves a terminal state",
			tilemath.ErrStoreInconsistency, jobID, rec.State, state)
	}

	now := time.Now().UTC()
	rec.State = state
	rec.UpdatedAt = now
	if errMsg != "" {
		rec.Error = errMsg
	}
	if state == job.StateRunning && rec.StartedAt == nil {
		t := now
		rec.StartedAt = &t
	}
	if state.Terminal() && rec.FinishedAt == nil {
		t := now
		rec.FinishedAt = &t
	}
	return nil
}

// SetJobResult attaches the result summary and timing fields.
func (m *Store) SetJobResult(_ context.Context, jobID id.JobID, summary *job.Summary, wallMs float64, computeMs *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[jobID.String()]
	if !ok {
		return tilemath.ErrJobNotFound
	}

	rec.UpdatedAt = time.Now().UTC()
	rec.Result = summary
	w := wallMs
	rec.WallTimeMs = &w
	rec.ComputeTimeMs = computeMs
	return nil
}

// ListJobs returns snapshots matching opts, newest first.
func (m *Store) ListJobs(_ context.Context, opts job.ListOpts) ([]*job.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Record, 0, len(m.jobs))
	for _, rec := range m.jobs {
		if opts.State != "" && rec.State != opts.State {
			continue
		}
		if !opts.FinishedBefore.IsZero() {
			if rec.FinishedAt == nil || !rec.FinishedAt.Before(opts.FinishedBefore) {
				continue
			}
		}
		cp := *rec
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// CountJobs counts records matching opts.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if opts.State == "" {
		return int64(len(m.jobs)), nil
	}
	var n int64
	for _, rec := range m.jobs {
		if rec.State == opts.State {
			n++
		}
	}
	return n, nil
}

// DeleteJob removes a record by ID.
func (m *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	if _, ok := m.jobs[key]; !ok {
		return tilemath.ErrJobNotFound
	}
	delete(m.jobs, key)
	return nil
}
