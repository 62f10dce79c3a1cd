package job

import (
	"time"

	"github.com/cboiteux2765/GPUTileMathService"
	"github.com/cboiteux2765/GPUTileMathService/id"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StateQueued means the job record exists but execution has not
	// begun. The only initial state.
	StateQueued State = "QUEUED"
	// StateRunning means the kernel is executing the job.
	StateRunning State = "RUNNING"
	// StateDone means the job finished successfully and carries a
	// result summary.
	StateDone State = "DONE"
	// StateFailed means execution failed; the record carries the error.
	StateFailed State = "FAILED"
)

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Valid reports whether s is one of the four lifecycle states.
func (s State) Valid() bool {
	switch s {
	case StateQueued, StateRunning, StateDone, StateFailed:
		return true
	}
	return false
}

// Record tracks one submitted spec through its lifecycle. Records are
// owned by the store once created; readers receive snapshots, and all
// mutation goes through Store.SetJobState and Store.SetJobResult.
type Record struct {
	tilemath.Entity

	ID   id.JobID `json:"job_id"`
	Spec Spec     `json:"spec"`

	State State `json:"state"`

	// StartedAt and FinishedAt are set exactly once, on the first
	// transition into RUNNING and into a terminal state respectively.
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error is present only when State is FAILED.
	Error string `json:"error,omitempty"`

	// Result is present only when State is DONE.
	Result *Summary `json:"result_summary,omitempty"`

	// WallTimeMs spans submission to terminal state; ComputeTimeMs
	// wraps the kernel call alone and stays nil if the kernel never ran.
	WallTimeMs    *float64 `json:"wall_time_ms,omitempty"`
	ComputeTimeMs *float64 `json:"compute_time_ms,omitempty"`
}

// NewRecord allocates a QUEUED record for spec with a fresh identifier.
func NewRecord(spec Spec) *Record {
	return &Record{
		Entity: tilemath.NewEntity(),
		ID:     id.NewJobID(),
		Spec:   spec,
		State:  StateQueued,
	}
}
