// Package engine wires the tilemath subsystems together. It creates the
// extension registry, kernel registry, middleware chain, admission gate,
// and the execution backend, and exposes the job lifecycle operations
// (SubmitJob, GetStatus, GetResult, ListJobs, Counts).
//
// This package exists to break the import cycle: the root tilemath
// package defines Entity (imported by job, store, etc.) and so cannot
// import those packages back. The engine package sits above all
// subsystem packages and below the application layer.
package engine
