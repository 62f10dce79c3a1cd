package audit_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cboiteux2765/GPUTileMathService/audit"
	"github.com/cboiteux2765/GPUTileMathService/ext"
	"github.com/cboiteux2765/GPUTileMathService/job"
)

// ── Mock recorder ────────────────────────────────────

// mockRecorder captures audit events for verification.
type mockRecorder struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (m *mockRecorder) Record(_ context.Context, evt *audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockRecorder) last() *audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// ── Test helpers ─────────────────────────────────────

func newTestRecord() *job.Record {
	return job.NewRecord(job.Spec{
		Op: job.OpGEMM, M: 16, N: 16, K: 16,
		Dtype: job.DtypeFP32, Repeats: 1,
	})
}

// ── Tests ────────────────────────────────────────────

func TestExtension_Name(t *testing.T) {
	rec := &mockRecorder{}
	e := audit.New(rec)
	if e.Name() != "audit" {
		t.Errorf("expected name %q, got %q", "audit", e.Name())
	}
}

func TestExtension_JobSubmitted(t *testing.T) {
	rec := &mockRecorder{}
	e := audit.New(rec)
	j := newTestRecord()

	if err := e.OnJobSubmitted(context.Background(), j); err != nil {
		t.Fatalf("OnJobSubmitted: %v", err)
	}

	evt := rec.last()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.Action != audit.ActionJobSubmitted {
		t.Errorf("Action: want %q, got %q", audit.ActionJobSubmitted, evt.Action)
	}
	if evt.Resource != audit.ResourceJob {
		t.Errorf("Resource: want %q, got %q", audit.ResourceJob, evt.Resource)
	}
	if evt.ResourceID != j.ID.String() {
		t.Errorf("ResourceID: want %q, got %q", j.ID.String(), evt.ResourceID)
	}
	if evt.Severity != audit.SeverityInfo {
		t.Errorf("Severity: want %q, got %q", audit.SeverityInfo, evt.Severity)
	}
	if evt.Metadata["shape"] != "16x16x16" {
		t.Errorf("Metadata[shape]: got %v", evt.Metadata["shape"])
	}
}

func TestExtension_JobFailedSeverity(t *testing.T) {
	rec := &mockRecorder{}
	e := audit.New(rec)
	j := newTestRecord()

	if err := e.OnJobFailed(context.Background(), j, errors.New("boom")); err != nil {
		t.Fatalf("OnJobFailed: %v", err)
	}

	evt := rec.last()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.Severity != audit.SeverityCritical {
		t.Errorf("Severity: want %q, got %q", audit.SeverityCritical, evt.Severity)
	}
	if evt.Outcome != audit.OutcomeFailure {
		t.Errorf("Outcome: want %q, got %q", audit.OutcomeFailure, evt.Outcome)
	}
	if evt.Reason != "boom" {
		t.Errorf("Reason: want %q, got %q", "boom", evt.Reason)
	}
}

func TestExtension_ActionFilter(t *testing.T) {
	rec := &mockRecorder{}
	e := audit.New(rec, audit.WithActions(audit.ActionJobFailed))
	j := newTestRecord()
	ctx := context.Background()

	if err := e.OnJobSubmitted(ctx, j); err != nil {
		t.Fatalf("OnJobSubmitted: %v", err)
	}
	if err := e.OnJobCompleted(ctx, j, time.Second); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}
	if rec.count() != 0 {
		t.Fatalf("filtered actions recorded %d events", rec.count())
	}

	if err := e.OnJobFailed(ctx, j, errors.New("x")); err != nil {
		t.Fatalf("OnJobFailed: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 event, got %d", rec.count())
	}
}

func TestExtension_RecorderErrorNotPropagated(t *testing.T) {
	failing := audit.RecorderFunc(func(_ context.Context, _ *audit.Event) error {
		return errors.New("backend down")
	})
	e := audit.New(failing, audit.WithLogger(slog.Default()))

	if err := e.OnJobSubmitted(context.Background(), newTestRecord()); err != nil {
		t.Fatalf("recorder error should not propagate, got %v", err)
	}
}

func TestExtension_ViaRegistry(t *testing.T) {
	rec := &mockRecorder{}
	e := audit.New(rec)

	reg := ext.NewRegistry(slog.Default())
	reg.Register(e)

	ctx := context.Background()
	j := newTestRecord()

	reg.EmitJobSubmitted(ctx, j)
	reg.EmitJobStarted(ctx, j)
	reg.EmitJobCompleted(ctx, j, 5*time.Millisecond)
	reg.EmitJobFailed(ctx, j, errors.New("fail"))
	reg.EmitJobEvicted(ctx, j)

	if rec.count() != 5 {
		t.Fatalf("expected 5 events, got %d", rec.count())
	}
}

func TestSlogRecorder(t *testing.T) {
	r := audit.SlogRecorder(slog.Default())
	evt := &audit.Event{
		Action:     audit.ActionJobCompleted,
		Resource:   audit.ResourceJob,
		Category:   audit.CategoryJob,
		ResourceID: "abc",
		Outcome:    audit.OutcomeSuccess,
		Severity:   audit.SeverityInfo,
	}
	if err := r.Record(context.Background(), evt); err != nil {
		t.Fatalf("Record: %v", err)
	}
}
