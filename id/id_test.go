package id

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJobIDFormat(t *testing.T) {
	t.Parallel()

	j := NewJobID()
	s := j.String()
	if len(s) != 32 {
		t.Fatalf("expected 32 chars, got %d (%q)", len(s), s)
	}
	if s != strings.ToLower(s) {
		t.Fatalf("expected lowercase hex, got %q", s)
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Fatalf("non-hex char %q in %q", c, s)
		}
	}
	if j.IsZero() {
		t.Fatal("fresh id should not be zero")
	}
}

func TestNewJobIDUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		s := NewJobID().String()
		if seen[s] {
			t.Fatalf("duplicate id %q", s)
		}
		seen[s] = true
	}
}

func TestParseJobIDRoundTrip(t *testing.T) {
	t.Parallel()

	j := NewJobID()
	parsed, err := ParseJobID(j.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != j {
		t.Fatalf("round trip mismatch: %v != %v", parsed, j)
	}
}

func TestParseJobIDErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"short", "abc123"},
		{"long", strings.Repeat("a", 33)},
		{"dashed uuid", "123e4567-e89b-12d3-a456-426614174000"},
		{"non hex", strings.Repeat("z", 32)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseJobID(tc.in); err == nil {
				t.Fatalf("expected error for %q", tc.in)
			}
		})
	}
}

func TestJobIDJSON(t *testing.T) {
	t.Parallel()

	j := NewJobID()
	b, err := json.Marshal(j)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `"` + j.String() + `"`
	if string(b) != want {
		t.Fatalf("marshal = %s, want %s", b, want)
	}

	var back JobID
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != j {
		t.Fatalf("json round trip mismatch: %v != %v", back, j)
	}
}
