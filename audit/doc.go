// Package audit is an extension that bridges job lifecycle events to an
// audit trail backend.
//
// Every lifecycle hook emits a structured audit event through the
// [Recorder] interface. The extension assigns severity levels (info for
// normal operations, critical for terminal failures) and metadata such
// as shape, mode, and elapsed time. [SlogRecorder] writes events to a
// structured logger, which is the default backend for local deployments.
//
// # Selective filtering
//
//	audit.New(recorder,
//	    audit.WithActions(
//	        audit.ActionJobFailed,
//	        audit.ActionJobEvicted,
//	    ),
//	)
package audit
