package kernel

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cboiteux2765/GPUTileMathService"
	"github.com/cboiteux2765/GPUTileMathService/job"
)

func gemmSpec(m, n, k int, seed int64, repeats int, simulate bool) job.Spec {
	return job.Spec{Op: job.OpGEMM, M: m, N: n, K: k, Dtype: job.DtypeFP32, Repeats: repeats, Seed: seed, Simulate: simulate}
}

func TestElementDeterministicAndBounded(t *testing.T) {
	t.Parallel()

	for _, seed := range []uint32{0, 1, 7, 1<<31 - 1} {
		for i := uint32(0); i < 4096; i++ {
			v := element(seed, i)
			if v != element(seed, i) {
				t.Fatalf("element(%d, %d) not deterministic", seed, i)
			}
			if v < -0.5 || v > 0.5 {
				t.Fatalf("element(%d, %d) = %v out of [-0.5, 0.5]", seed, i, v)
			}
		}
	}
}

func TestSimulateDeterministic(t *testing.T) {
	t.Parallel()

	a := Simulate(gemmSpec(4096, 4096, 4096, 1, 1, true))
	b := Simulate(gemmSpec(4096, 4096, 4096, 1, 1, true))

	if a.Checksum == "" || len(a.Checksum) != 64 {
		t.Fatalf("checksum should be 64 hex chars, got %q", a.Checksum)
	}
	if a.Checksum != b.Checksum {
		t.Fatalf("identical specs must yield identical checksums: %s != %s", a.Checksum, b.Checksum)
	}
	if a.Mode != job.ModeSimulated {
		t.Fatalf("mode = %q", a.Mode)
	}
	if a.Note == "" {
		t.Fatal("simulated results carry a note")
	}
	if a.Mean != nil || a.Var != nil || a.L2 != nil {
		t.Fatal("simulated results carry no statistics")
	}

	c := Simulate(gemmSpec(4096, 4096, 4096, 2, 1, true))
	if c.Checksum == a.Checksum {
		t.Fatal("different seeds must yield different checksums")
	}
}

func TestSimulateIgnoresShapeSize(t *testing.T) {
	t.Parallel()

	// Shapes far above the compute ceiling are fine in simulate mode.
	s := Simulate(gemmSpec(1_000_000, 1_000_000, 1_000_000, 0, 1, true))
	if s.Mode != job.ModeSimulated || s.Checksum == "" {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestComputeSmallShape(t *testing.T) {
	t.Parallel()

	got, err := Compute(16, 16, 16, 7, 2)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got.Mode != job.ModeCPUGemm {
		t.Fatalf("mode = %q", got.Mode)
	}
	for name, v := range map[string]*float64{"mean": got.Mean, "var": got.Var, "l2": got.L2} {
		if v == nil {
			t.Fatalf("%s missing", name)
		}
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			t.Fatalf("%s = %v not finite", name, *v)
		}
	}
	if *got.Var < 0 {
		t.Fatalf("variance negative: %v", *got.Var)
	}
	if *got.L2 < 0 {
		t.Fatalf("l2 negative: %v", *got.L2)
	}
	if len(got.Checksum) != 64 {
		t.Fatalf("checksum %q", got.Checksum)
	}
}

func TestComputeDeterministic(t *testing.T) {
	t.Parallel()

	a, err := Compute(16, 16, 16, 7, 2)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	b, err := Compute(16, 16, 16, 7, 2)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if a.Checksum != b.Checksum {
		t.Fatalf("same seed must yield same checksum: %s != %s", a.Checksum, b.Checksum)
	}
	if *a.Mean != *b.Mean || *a.Var != *b.Var || *a.L2 != *b.L2 {
		t.Fatal("same seed must yield identical statistics")
	}

	c, err := Compute(16, 16, 16, 8, 2)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if c.Checksum == a.Checksum {
		t.Fatal("different seeds must yield different checksums")
	}
}

func TestComputeRepeatsInvariant(t *testing.T) {
	t.Parallel()

	// Repeats stress timing, not values: every repetition overwrites C
	// identically, so the statistics cannot depend on the count.
	once, err := Compute(8, 8, 8, 42, 1)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	thrice, err := Compute(8, 8, 8, 42, 3)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if *once.Mean != *thrice.Mean || *once.Var != *thrice.Var || *once.L2 != *thrice.L2 {
		t.Fatal("statistics must not depend on repeats")
	}
}

func TestComputeShapeCeiling(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		m, n, k int
		wantErr bool
	}{
		{"at ceiling", 128, 128, 128, false},
		{"tall thin at ceiling", 16384, 1, 1, false},
		{"mn over", 129, 128, 1, true},
		{"mk over", 129, 1, 128, true},
		{"kn over", 1, 129, 128, true},
		{"way over", 1000, 1000, 1000, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Compute(tc.m, tc.n, tc.k, 0, 1)
			if tc.wantErr {
				if !errors.Is(err, tilemath.ErrShapeTooLarge) {
					t.Fatalf("expected ErrShapeTooLarge, got %v", err)
				}
				if err.Error() != "Shape too large for CPU compute mode; set simulate=true." {
					t.Fatalf("guard message drifted: %q", err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRegistryDefault(t *testing.T) {
	t.Parallel()

	r := Default()
	fn, ok := r.Lookup(job.OpGEMM)
	if !ok {
		t.Fatal("gemm runner should be registered by default")
	}

	sum, err := fn(context.Background(), gemmSpec(4, 4, 4, 1, 1, true))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Mode != job.ModeSimulated {
		t.Fatalf("mode = %q", sum.Mode)
	}

	sum, err = fn(context.Background(), gemmSpec(4, 4, 4, 1, 1, false))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Mode != job.ModeCPUGemm {
		t.Fatalf("mode = %q", sum.Mode)
	}

	if ops := r.Ops(); len(ops) != 1 || ops[0] != job.OpGEMM {
		t.Fatalf("ops = %v", ops)
	}
}

func TestRegistryRegister(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register("noop", func(context.Context, job.Spec) (job.Summary, error) {
		return job.Summary{Mode: "noop"}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("noop", Gemm); err == nil {
		t.Fatal("duplicate registration should error")
	}
	if err := r.Register("nil", nil); err == nil {
		t.Fatal("nil runner should error")
	}
	if _, ok := r.Lookup("absent"); ok {
		t.Fatal("absent op should not resolve")
	}
}
