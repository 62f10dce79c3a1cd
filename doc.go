// Package tilemath provides the job lifecycle engine behind the GPU tile
// math service: validated GEMM job specs, a concurrency-safe record store,
// dual-mode execution (inline CPU compute or enqueue-only handoff to an
// external worker pool), and instrumentation hooks.
//
// Tilemath is designed as a library. Import it, configure a store and a
// backend, and drive jobs through the engine:
//
//	svc, err := tilemath.New(
//	    tilemath.WithStore(memory.New()),
//	    tilemath.WithConfig(cfg),
//	)
//	eng, err := engine.New(svc)
//	rec, err := eng.SubmitJob(ctx, spec)
//
// # Architecture
//
// The root package holds the service handle, configuration, and shared
// sentinel errors. Each subsystem lives in its own package: job specs and
// records (job), the deterministic compute kernel (kernel), record stores
// (store/memory, store/redis), lifecycle hooks (ext, observability), the
// execution pipeline (middleware, worker, gate, engine), retention
// (janitor), and the HTTP surface (api, client).
//
// Job identifiers are 128-bit random values rendered as 32 lowercase hex
// characters, stable across the HTTP API, the record store, and the
// deferred-mode queue.
package tilemath
