// Package janitor evicts aged-out terminal job records from the
// in-process store on a cron cadence. Non-terminal records are never
// touched: a QUEUED or RUNNING record stays until it finishes, however
// old it gets.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/cboiteux2765/GPUTileMathService"
	"github.com/cboiteux2765/GPUTileMathService/ext"
	"github.com/cboiteux2765/GPUTileMathService/job"
)

// cronParser supports standard 5-field cron and descriptors like "@every 1m".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Gauge receives the post-sweep record count. The observability metrics
// extension satisfies it.
type Gauge interface {
	SetJobsInMemory(n int64)
}

// Option configures a Janitor.
type Option func(*Janitor)

// WithGauge refreshes g with the remaining record count after each sweep.
func WithGauge(g Gauge) Option {
	return func(j *Janitor) { j.gauge = g }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(j *Janitor) {
		if l != nil {
			j.logger = l
		}
	}
}

// Janitor deletes terminal records whose finished_at is older than the
// retention age, emitting the evicted lifecycle event per record.
type Janitor struct {
	store  job.Store
	hooks  *ext.Registry
	age    time.Duration
	sched  cronlib.Schedule
	gauge  Gauge
	logger *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Janitor sweeping on the given cron expression. A zero or
// negative retention age disables sweeping: Start becomes a no-op.
func New(store job.Store, hooks *ext.Registry, age time.Duration, sweepExpr string, opts ...Option) (*Janitor, error) {
	sched, err := cronParser.Parse(sweepExpr)
	if err != nil {
		return nil, fmt.Errorf("tilemath/janitor: invalid sweep schedule %q: %w", sweepExpr, err)
	}
	j := &Janitor{
		store:  store,
		hooks:  hooks,
		age:    age,
		sched:  sched,
		logger: slog.Default(),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Start launches the sweep goroutine.
func (j *Janitor) Start(_ context.Context) error {
	if j.age <= 0 {
		j.logger.Info("record retention disabled, janitor idle")
		return nil
	}
	j.wg.Add(1)
	go j.run()
	j.logger.Info("janitor started",
		slog.Duration("retention_age", j.age),
	)
	return nil
}

// Stop signals the janitor to stop and waits for the goroutine to finish.
func (j *Janitor) Stop(_ context.Context) error {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Info("janitor stopped")
	return nil
}

// run sleeps until the next scheduled sweep, fires it, and re-arms.
func (j *Janitor) run() {
	defer j.wg.Done()

	for {
		next := j.sched.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-j.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			j.sweep()
		}
	}
}

func (j *Janitor) sweep() {
	evicted, err := j.SweepOnce(context.Background())
	if err != nil {
		j.logger.Error("retention sweep error", slog.String("error", err.Error()))
		return
	}
	if evicted > 0 {
		j.logger.Info("retention sweep evicted records", slog.Int("evicted", evicted))
	}
}

// SweepOnce deletes every DONE or FAILED record that finished before the
// retention cutoff and reports how many it removed. Each eviction emits
// the evicted lifecycle event with the record's final snapshot.
func (j *Janitor) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-j.age)
	evicted := 0

	for _, state := range []job.State{job.StateDone, job.StateFailed} {
		recs, err := j.store.ListJobs(ctx, job.ListOpts{State: state, FinishedBefore: cutoff})
		if err != nil {
			return evicted, fmt.Errorf("tilemath/janitor: list %s records: %w", state, err)
		}
		for _, rec := range recs {
			if err := j.store.DeleteJob(ctx, rec.ID); err != nil {
				// Deleted concurrently; the record is gone either way.
				if errors.Is(err, tilemath.ErrJobNotFound) {
					continue
				}
				return evicted, fmt.Errorf("tilemath/janitor: delete %s: %w", rec.ID, err)
			}
			j.hooks.EmitJobEvicted(ctx, rec)
			evicted++
		}
	}

	if j.gauge != nil {
		if n, err := j.store.CountJobs(ctx, job.CountOpts{}); err == nil {
			j.gauge.SetJobsInMemory(n)
		}
	}
	return evicted, nil
}
