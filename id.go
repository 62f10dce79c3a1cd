package tilemath

import "github.com/cboiteux2765/GPUTileMathService/id"

// JobID is the identifier type for job records.
type JobID = id.JobID

// NewJobID allocates a fresh random job identifier.
func NewJobID() JobID { return id.NewJobID() }
