package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cboiteux2765/GPUTileMathService/ext"
	"github.com/cboiteux2765/GPUTileMathService/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension    = (*Extension)(nil)
	_ ext.JobSubmitted = (*Extension)(nil)
	_ ext.JobStarted   = (*Extension)(nil)
	_ ext.JobCompleted = (*Extension)(nil)
	_ ext.JobFailed    = (*Extension)(nil)
	_ ext.JobEvicted   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// Defined locally so callers can inject any trail backend at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *Event) error
}

// Event is a structured audit record for one lifecycle transition.
type Event struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *Event) error

func (f RecorderFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// SlogRecorder writes audit events to a structured logger.
func SlogRecorder(l *slog.Logger) Recorder {
	return RecorderFunc(func(_ context.Context, evt *Event) error {
		l.Info("audit",
			slog.String("action", evt.Action),
			slog.String("resource_id", evt.ResourceID),
			slog.String("outcome", evt.Outcome),
			slog.String("severity", evt.Severity),
			slog.Any("metadata", evt.Metadata),
		)
		return nil
	})
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges job lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobSubmitted implements ext.JobSubmitted.
func (e *Extension) OnJobSubmitted(ctx context.Context, rec *job.Record) error {
	return e.record(ctx, ActionJobSubmitted, SeverityInfo, OutcomeSuccess, rec.ID.String(), nil,
		"op", rec.Spec.Op,
		"shape", fmt.Sprintf("%dx%dx%d", rec.Spec.M, rec.Spec.N, rec.Spec.K),
		"simulate", rec.Spec.Simulate,
	)
}

// OnJobStarted implements ext.JobStarted.
func (e *Extension) OnJobStarted(ctx context.Context, rec *job.Record) error {
	return e.record(ctx, ActionJobStarted, SeverityInfo, OutcomeSuccess, rec.ID.String(), nil,
		"op", rec.Spec.Op,
	)
}

// OnJobCompleted implements ext.JobCompleted.
func (e *Extension) OnJobCompleted(ctx context.Context, rec *job.Record, elapsed time.Duration) error {
	mode := ""
	if rec.Result != nil {
		mode = rec.Result.Mode
	}
	return e.record(ctx, ActionJobCompleted, SeverityInfo, OutcomeSuccess, rec.ID.String(), nil,
		"op", rec.Spec.Op,
		"mode", mode,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobFailed implements ext.JobFailed.
func (e *Extension) OnJobFailed(ctx context.Context, rec *job.Record, jobErr error) error {
	return e.record(ctx, ActionJobFailed, SeverityCritical, OutcomeFailure, rec.ID.String(), jobErr,
		"op", rec.Spec.Op,
		"shape", fmt.Sprintf("%dx%dx%d", rec.Spec.M, rec.Spec.N, rec.Spec.K),
	)
}

// OnJobEvicted implements ext.JobEvicted.
func (e *Extension) OnJobEvicted(ctx context.Context, rec *job.Record) error {
	return e.record(ctx, ActionJobEvicted, SeverityInfo, OutcomeSuccess, rec.ID.String(), nil,
		"state", string(rec.State),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome, resourceID string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &Event{
		Action:     action,
		Resource:   ResourceJob,
		Category:   CategoryJob,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
