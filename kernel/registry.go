package kernel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cboiteux2765/GPUTileMathService/job"
)

// Runner executes one operation kind against a validated spec. Runners
// report failures as ordinary error values — never panics — so the
// inline backend can pattern-match them into FAILED records.
type Runner func(ctx context.Context, spec job.Spec) (job.Summary, error)

// Registry maps operation tags to runners. It exists so new operation
// kinds can be added without touching the execution pipeline; today it
// holds the single built-in gemm runner.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]Runner
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[string]Runner)}
}

// Default returns a registry with the built-in runners registered.
func Default() *Registry {
	r := NewRegistry()
	_ = r.Register(job.OpGEMM, Gemm) //nolint:errcheck // fresh registry cannot hold duplicates
	return r
}

// Register adds a runner for op. Registering the same op twice is a
// programming error.
func (r *Registry) Register(op string, fn Runner) error {
	if fn == nil {
		return fmt.Errorf("kernel: nil runner for op %q", op)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.runners[op]; dup {
		return fmt.Errorf("kernel: runner already registered for op %q", op)
	}
	r.runners[op] = fn
	return nil
}

// Lookup returns the runner for op.
func (r *Registry) Lookup(op string) (Runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.runners[op]
	return fn, ok
}

// Ops returns the registered operation tags, sorted.
func (r *Registry) Ops() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ops := make([]string, 0, len(r.runners))
	for op := range r.runners {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Gemm is the built-in runner: simulate-mode checksum when the spec asks
// for it, bounded CPU GEMM otherwise.
func Gemm(_ context.Context, spec job.Spec) (job.Summary, error) {
	if spec.Simulate {
		return Simulate(spec), nil
	}
	return Compute(spec.M, spec.N, spec.K, spec.Seed, spec.Repeats)
}
