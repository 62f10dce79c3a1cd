package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cboiteux2765/GPUTileMathService"
	"github.com/cboiteux2765/GPUTileMathService/ext"
	"github.com/cboiteux2765/GPUTileMathService/gate"
	"github.com/cboiteux2765/GPUTileMathService/id"
	"github.com/cboiteux2765/GPUTileMathService/job"
	"github.com/cboiteux2765/GPUTileMathService/kernel"
	mw "github.com/cboiteux2765/GPUTileMathService/middleware"
	"github.com/cboiteux2765/GPUTileMathService/worker"
)

// Engine is the job lifecycle facade: it validates specs, delegates to
// the configured execution backend, and serves status/result/aggregate
// reads. Use New() to build one from a Service.
type Engine struct {
	svc        *tilemath.Service
	cfg        tilemath.Config
	backend    Backend
	extensions *ext.Registry
	kernels    *kernel.Registry
	gate       *gate.Gate
	jobs       job.Store // nil for the deferred backend
	mws        []mw.Middleware
	logger     *slog.Logger

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers a lifecycle hook extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware appends middleware to the inline execution chain, after
// the default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithKernelRegistry replaces the default kernel registry.
func WithKernelRegistry(r *kernel.Registry) Option {
	return func(eng *Engine) {
		eng.kernels = r
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// New builds an Engine from a Service. The backend variant comes from
// Config.Backend and is fixed for the engine's lifetime: an inline
// engine requires a store implementing job.Store, a deferred engine one
// implementing MetaStore.
func New(svc *tilemath.Service, opts ...Option) (*Engine, error) {
	logger := svc.Logger()
	store := svc.Store()
	if store == nil {
		return nil, tilemath.ErrNoStore
	}

	eng := &Engine{
		svc:        svc,
		cfg:        svc.Config(),
		extensions: ext.NewRegistry(logger),
		logger:     logger,
	}

	for _, opt := range opts {
		opt(eng)
	}
	if eng.kernels == nil {
		eng.kernels = kernel.Default()
	}

	// Register the hook extensions carried by the Service. They are
	// untyped there to keep the root package cycle-free.
	for _, h := range svc.Extensions() {
		e, ok := h.(ext.Extension)
		if !ok {
			logger.Warn("ignoring service extension that does not implement ext.Extension",
				slog.String("type", fmt.Sprintf("%T", h)),
			)
			continue
		}
		eng.extensions.Register(e)
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
	} else {
		metricsMw = mw.Metrics()
	}

	// Default middleware stack: recover → tracing → metrics → logging.
	// No timeout layer: once RUNNING, a job runs to completion or
	// failure.
	allMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
	}
	allMws = append(allMws, eng.mws...)

	switch eng.cfg.Backend {
	case tilemath.BackendInline:
		js, ok := store.(job.Store)
		if !ok {
			return nil, fmt.Errorf("tilemath: store %T does not implement job.Store", store)
		}
		eng.jobs = js
		eng.gate = gate.New(gate.Config{
			MaxConcurrency: eng.cfg.InlineConcurrency,
			RateLimit:      eng.cfg.InlineRate,
		})
		exec := worker.NewExecutor(eng.kernels, eng.extensions, js, eng.gate, logger, allMws...)
		eng.backend = newInlineBackend(js, exec, eng.extensions)

	case tilemath.BackendDeferred:
		ms, ok := store.(MetaStore)
		if !ok {
			return nil, fmt.Errorf("tilemath: store %T does not implement engine.MetaStore", store)
		}
		eng.backend = newDeferredBackend(ms, eng.extensions, logger)

	default:
		return nil, fmt.Errorf("%w: %q", tilemath.ErrUnknownBackend, eng.cfg.Backend)
	}

	return eng, nil
}

const instrumentationName = "github.com/cboiteux2765/GPUTileMathService"

// SubmitJob normalizes and validates spec, then hands a fresh QUEUED
// record to the backend. A spec that fails validation never becomes a
// job: no record is created and no event fires. Kernel failures on the
// inline path come back as FAILED records with a nil error.
func (e *Engine) SubmitJob(ctx context.Context, spec job.Spec) (*job.Record, error) {
	spec.Normalize()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	rec := job.NewRecord(spec)
	return e.backend.Submit(ctx, rec)
}

// GetStatus returns the current record snapshot for jobID.
func (e *Engine) GetStatus(ctx context.Context, jobID id.JobID) (*job.Record, error) {
	return e.backend.Status(ctx, jobID)
}

// GetResult returns the record with any result summary attached. The
// summary is nil until the job reaches DONE.
func (e *Engine) GetResult(ctx context.Context, jobID id.JobID) (*job.Record, error) {
	return e.backend.Result(ctx, jobID)
}

// ListJobs returns record snapshots matching opts, newest first.
func (e *Engine) ListJobs(ctx context.Context, opts job.ListOpts) ([]*job.Record, error) {
	return e.backend.List(ctx, opts)
}

// Counts returns per-state record counts.
func (e *Engine) Counts(ctx context.Context) (map[job.State]int64, error) {
	return e.backend.Counts(ctx)
}

// InMemoryCount reports how many records the in-process store holds.
// The deferred backend keeps no in-process records, so it reports zero.
func (e *Engine) InMemoryCount(ctx context.Context) (int64, error) {
	if e.jobs == nil {
		return 0, nil
	}
	return e.jobs.CountJobs(ctx, job.CountOpts{})
}

// Kind identifies the configured backend variant.
func (e *Engine) Kind() tilemath.BackendKind { return e.backend.Kind() }

// Config returns the configuration the engine was built with.
func (e *Engine) Config() tilemath.Config { return e.cfg }

// Extensions returns the hook registry.
func (e *Engine) Extensions() *ext.Registry { return e.extensions }

// JobStore returns the in-process record store, or nil for the deferred
// backend.
func (e *Engine) JobStore() job.Store { return e.jobs }

// Gate returns the admission gate, or nil for the deferred backend.
func (e *Engine) Gate() *gate.Gate { return e.gate }

// Stop emits the shutdown event and releases the service's resources.
func (e *Engine) Stop(ctx context.Context) error {
	e.extensions.EmitShutdown(ctx)
	return e.svc.Stop(ctx)
}
