// Package id defines the identifier type shared by all job records.
//
// A JobID is a 128-bit random value rendered as 32 lowercase hex
// characters, with no separators or prefix. The rendering is a wire
// contract: the HTTP API, the record store, and the deferred-mode queue
// all exchange the same form.
package id

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// JobID identifies a single job record.
type JobID struct {
	u uuid.UUID
}

// NewJobID returns a fresh random JobID.
func NewJobID() JobID {
	return JobID{u: uuid.New()}
}

// ParseJobID parses the 32-lowercase-hex wire form.
func ParseJobID(s string) (JobID, error) {
	if len(s) != 32 {
		return JobID{}, fmt.Errorf("id: job id must be 32 hex chars, got %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return JobID{}, fmt.Errorf("id: parse job id: %w", err)
	}
	u, err := uuid.FromBytes(b)
	if err != nil {
		return JobID{}, fmt.Errorf("id: parse job id: %w", err)
	}
	return JobID{u: u}, nil
}

// MustParseJobID is ParseJobID that panics on error. For tests and
// compile-time-known constants only.
func MustParseJobID(s string) JobID {
	j, err := ParseJobID(s)
	if err != nil {
		panic(err)
	}
	return j
}

// String renders the wire form: 32 lowercase hex characters.
func (j JobID) String() string {
	return hex.EncodeToString(j.u[:])
}

// IsZero reports whether j is the zero JobID.
func (j JobID) IsZero() bool {
	return j.u == uuid.Nil
}

// MarshalText implements encoding.TextMarshaler.
func (j JobID) MarshalText() ([]byte, error) {
	return []byte(j.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (j *JobID) UnmarshalText(b []byte) error {
	parsed, err := ParseJobID(string(b))
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}
