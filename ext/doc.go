// Package ext defines the lifecycle extension system.
//
// Extensions are notified of job lifecycle events and can react to them —
// recording metrics, writing audit logs, etc. Each lifecycle hook is a
// separate interface so extensions opt in only to the events they care
// about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobCompleted(ctx context.Context, rec *job.Record, elapsed time.Duration) error {
//	    log.Printf("job %s completed in %s", rec.ID, elapsed)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobSubmitted] — submission was accepted (after validation)
//   - [JobStarted] — execution of the job began
//   - [JobCompleted] — job finished successfully
//   - [JobFailed] — job failed terminally
//   - [JobEvicted] — a terminal record was removed by retention
//   - [Shutdown] — the service is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
