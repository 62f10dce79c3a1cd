// Package kernel implements the deterministic compute paths: a
// simulate-mode checksum that is O(1) in the job shape, and a bounded
// CPU reference GEMM returning a statistical summary.
//
// Determinism is a wire contract. The pseudo-random generator below and
// the canonical-JSON checksum must not change: identical specs yield
// identical matrices, summaries, and checksums across runs and across
// processes.
package kernel

import (
	"math"

	"github.com/cboiteux2765/GPUTileMathService"
	"github.com/cboiteux2765/GPUTileMathService/job"
)

// MaxElems caps each of m·n, m·k, and k·n for real-mode compute. The
// guard keeps inline submission latency bounded; it is a policy limit,
// not a hardware one.
const MaxElems = 128 * 128

// bOffset displaces the generator index stream for the B matrix so A and
// B never share elements.
const bOffset = 10_000_000

// element derives the matrix element at generator index i. Fixed
// xorshift-style bit mix over 32-bit lanes; all arithmetic wraps at 32
// bits. Output is uniform-ish in [-0.5, 0.5].
func element(seed, i uint32) float64 {
	x := seed ^ (i * 0x9E3779B9)
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	return float64(x)/float64(0xFFFFFFFF) - 0.5
}

// Simulate returns the simulated result for spec: a SHA-256 checksum
// over the spec's canonical JSON. It never inspects the shape, so its
// cost is independent of m, n, and k.
func Simulate(spec job.Spec) job.Summary {
	return job.Summary{
		Checksum: ChecksumBytes(spec.CanonicalJSON()),
		Mode:     job.ModeSimulated,
		Note:     job.SimulateNote,
	}
}

// Compute runs the bounded reference GEMM: deterministic matrices A
// (m×k) and B (k×n) from seed, C = A·B recomputed identically repeats
// times, then mean, population variance, and L2 norm over C plus a
// checksum over the inputs and derived statistics.
//
// Shapes where any of m·n, m·k, or k·n exceeds MaxElems are rejected
// with tilemath.ErrShapeTooLarge before any allocation.
func Compute(m, n, k int, seed int64, repeats int) (job.Summary, error) {
	if m*n > MaxElems || m*k > MaxElems || k*n > MaxElems {
		return job.Summary{}, tilemath.ErrShapeTooLarge
	}

	s32 := uint32(seed)
	a := make([]float64, m*k)
	for i := range a {
		a[i] = element(s32, uint32(i))
	}
	b := make([]float64, k*n)
	for i := range b {
		b[i] = element(s32, uint32(bOffset+i))
	}

	c := make([]float64, m*n)
	for r := 0; r < repeats; r++ {
		for i := 0; i < m; i++ {
			row := i * k
			for j := 0; j < n; j++ {
				s := 0.0
				for kk := 0; kk < k; kk++ {
					s += a[row+kk] * b[kk*n+j]
				}
				c[i*n+j] = s
			}
		}
	}

	total := float64(m * n)
	sum := 0.0
	for _, v := range c {
		sum += v
	}
	mean := sum / total

	varSum := 0.0
	sqSum := 0.0
	for _, v := range c {
		d := v - mean
		varSum += d * d
		sqSum += v * v
	}
	variance := varSum / total
	l2 := math.Sqrt(sqSum)

	checksum := Checksum(map[string]any{
		"m":       m,
		"n":       n,
		"k":       k,
		"seed":    seed,
		"repeats": repeats,
		"mean":    mean,
		"var":     variance,
		"l2":      l2,
	})

	return job.Summary{
		Mean:     &mean,
		Var:      &variance,
		L2:       &l2,
		Checksum: checksum,
		Mode:     job.ModeCPUGemm,
	}, nil
}
