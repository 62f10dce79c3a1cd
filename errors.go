package tilemath

import (
	"errors"
	"fmt"
)

var (
	// Store errors.
	ErrNoStore     = errors.New("tilemath: no store configured")
	ErrStoreClosed = errors.New("tilemath: store closed")

	// Not found errors.
	ErrJobNotFound = errors.New("tilemath: job not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("tilemath: job already exists")

	// State errors.
	ErrStoreInconsistency = errors.New("tilemath: store inconsistency")

	// Kernel errors. ErrShapeTooLarge carries the exact message clients
	// see in the failed record; compare with errors.Is, not string match.
	ErrShapeTooLarge = errors.New("Shape too large for CPU compute mode; set simulate=true.")

	// Backend errors.
	ErrUnknownBackend    = errors.New("tilemath: unknown backend kind")
	ErrStatsUnavailable  = errors.New("tilemath: stats unavailable for this backend")
	ErrListUnavailable   = errors.New("tilemath: job listing unavailable for this backend")
	ErrResultUnavailable = errors.New("tilemath: result not yet available")
)

// ValidationError reports a job spec that falls outside the declared
// bounds. It is returned before any record is created; a spec that fails
// validation never becomes a job.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tilemath: invalid spec: %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
