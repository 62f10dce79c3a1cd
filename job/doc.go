// Package job defines compute job specs, lifecycle records, and the
// record store contract.
//
// A Spec describes what to compute: the GEMM shape, element type, seed,
// repeat count, and whether to simulate. A Record tracks one submitted
// spec through the QUEUED → RUNNING → DONE/FAILED state machine, with
// timestamps set exactly once on the RUNNING and terminal transitions.
// The Store interface is implemented by store/memory for inline
// execution; deferred-mode metadata lives behind the external contracts
// in store/redis.
package job
