package job

import (
	"encoding/json"
	"fmt"

	"github.com/cboiteux2765/GPUTileMathService"
)

// Dtype is the numeric element type of a job. Execution is float64
// regardless; the dtype is carried as a label for future kernels and for
// instrumentation.
type Dtype string

const (
	DtypeFP16 Dtype = "fp16"
	DtypeFP32 Dtype = "fp32"
)

// OpGEMM is the only operation currently accepted.
const OpGEMM = "gemm"

// Bounds enforced by Spec.Validate.
const (
	MaxDim     = 1_000_000
	MaxRepeats = 10_000
	MaxSeed    = 1<<31 - 1
	MaxTile    = 256
)

// Spec is the immutable, client-supplied description of a compute job.
type Spec struct {
	Op      string `json:"op"`
	M       int    `json:"m"`
	N       int    `json:"n"`
	K       int    `json:"k"`
	Dtype   Dtype  `json:"dtype"`
	Repeats int    `json:"repeats"`
	Seed    int64  `json:"seed"`

	// Simulate skips the kernel and returns a deterministic checksum
	// plus timing metadata.
	Simulate bool `json:"simulate"`

	// Tile hints are reserved for future tiling strategies; execution
	// ignores them today but validation still bounds them.
	TileM *int `json:"tile_m,omitempty"`
	TileN *int `json:"tile_n,omitempty"`
	TileK *int `json:"tile_k,omitempty"`
}

// Normalize fills zero-valued optional fields with their defaults. Call
// it after decoding and before Validate.
func (s *Spec) Normalize() {
	if s.Op == "" {
		s.Op = OpGEMM
	}
	if s.Dtype == "" {
		s.Dtype = DtypeFP32
	}
	if s.Repeats == 0 {
		s.Repeats = 1
	}
}

// Validate checks every declared bound. A spec that fails validation is
// rejected before any record is created.
func (s *Spec) Validate() error {
	if s.Op != OpGEMM {
		return &tilemath.ValidationError{Field: "op", Reason: fmt.Sprintf("unsupported operation %q", s.Op)}
	}
	for _, dim := range []struct {
		name string
		v    int
	}{{"m", s.M}, {"n", s.N}, {"k", s.K}} {
		if dim.v < 1 || dim.v > MaxDim {
			return &tilemath.ValidationError{Field: dim.name, Reason: fmt.Sprintf("must be in [1, %d], got %d", MaxDim, dim.v)}
		}
	}
	switch s.Dtype {
	case DtypeFP16, DtypeFP32:
	default:
		return &tilemath.ValidationError{Field: "dtype", Reason: fmt.Sprintf("must be fp16 or fp32, got %q", s.Dtype)}
	}
	if s.Repeats < 1 || s.Repeats > MaxRepeats {
		return &tilemath.ValidationError{Field: "repeats", Reason: fmt.Sprintf("must be in [1, %d], got %d", MaxRepeats, s.Repeats)}
	}
	if s.Seed < 0 || s.Seed > MaxSeed {
		return &tilemath.ValidationError{Field: "seed", Reason: fmt.Sprintf("must be in [0, %d], got %d", int64(MaxSeed), s.Seed)}
	}
	for _, tile := range []struct {
		name string
		v    *int
	}{{"tile_m", s.TileM}, {"tile_n", s.TileN}, {"tile_k", s.TileK}} {
		if tile.v != nil && (*tile.v < 1 || *tile.v > MaxTile) {
			return &tilemath.ValidationError{Field: tile.name, Reason: fmt.Sprintf("must be in [1, %d], got %d", MaxTile, *tile.v)}
		}
	}
	return nil
}

// CanonicalJSON renders the spec as canonical JSON: every field present
// (unset tile hints as null), keys sorted, compact separators. This form
// feeds the simulate-mode checksum and the deferred-queue payload, so it
// is a wire contract — identical specs must render identically.
func (s Spec) CanonicalJSON() []byte {
	m := map[string]any{
		"op":       s.Op,
		"m":        s.M,
		"n":        s.N,
		"k":        s.K,
		"dtype":    string(s.Dtype),
		"repeats":  s.Repeats,
		"seed":     s.Seed,
		"simulate": s.Simulate,
		"tile_m":   s.TileM,
		"tile_n":   s.TileN,
		"tile_k":   s.TileK,
	}
	b, _ := json.Marshal(m) //nolint:errcheck // map of primitives cannot fail to marshal
	return b
}
