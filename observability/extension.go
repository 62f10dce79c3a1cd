package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cboiteux2765/GPUTileMathService/ext"
	"github.com/cboiteux2765/GPUTileMathService/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension    = (*MetricsExtension)(nil)
	_ ext.JobSubmitted = (*MetricsExtension)(nil)
	_ ext.JobCompleted = (*MetricsExtension)(nil)
	_ ext.JobFailed    = (*MetricsExtension)(nil)
	_ ext.JobEvicted   = (*MetricsExtension)(nil)
)

// MetricsExtension records job lifecycle metrics in Prometheus collectors.
// Register it as a service extension to automatically track submission
// rates, completion counts by terminal state, and latency distributions.
//
// Latency histograms are observed only for successful jobs; failures
// increment the completion counter with state="failed" and nothing else.
type MetricsExtension struct {
	JobsSubmitted *prometheus.CounterVec
	JobsCompleted *prometheus.CounterVec
	EndToEndMs    *prometheus.HistogramVec
	ComputeMs     *prometheus.HistogramVec
	JobsInMemory  prometheus.Gauge
	JobsEvicted   *prometheus.CounterVec
}

// NewMetricsExtension creates a MetricsExtension registered on the
// default Prometheus registerer.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithRegisterer(prometheus.DefaultRegisterer)
}

// NewMetricsExtensionWithRegisterer creates a MetricsExtension with the
// provided registerer. Tests pass a fresh prometheus.NewRegistry() so
// counter deltas can be asserted in isolation.
func NewMetricsExtensionWithRegisterer(reg prometheus.Registerer) *MetricsExtension {
	f := promauto.With(reg)
	return &MetricsExtension{
		JobsSubmitted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobs_submitted_total",
				Help: "Total jobs accepted for submission",
			},
			[]string{"op", "dtype", "simulate"},
		),
		JobsCompleted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobs_completed_total",
				Help: "Total jobs reaching a terminal state",
			},
			[]string{"op", "dtype", "state"}, // state: "done" or "failed"
		),
		EndToEndMs: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "job_end_to_end_ms",
				Help: "End-to-end latency (ms)",
			},
			[]string{"op", "dtype", "simulate"},
		),
		ComputeMs: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "job_compute_ms",
				Help: "Compute-only latency (ms)",
			},
			[]string{"op", "dtype", "simulate"},
		),
		JobsInMemory: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobs_in_memory",
				Help: "Number of job records currently held in the store",
			},
		),
		JobsEvicted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobs_evicted_total",
				Help: "Total terminal job records removed by retention",
			},
			[]string{"state"},
		),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// SetJobsInMemory records the current number of records in the store.
// The metrics endpoint refreshes it right before each scrape.
func (m *MetricsExtension) SetJobsInMemory(n int64) {
	m.JobsInMemory.Set(float64(n))
}

// ── Job lifecycle hooks ─────────────────────────────

// OnJobSubmitted implements ext.JobSubmitted.
func (m *MetricsExtension) OnJobSubmitted(_ context.Context, rec *job.Record) error {
	m.JobsSubmitted.WithLabelValues(specLabels(rec.Spec)...).Inc()
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(_ context.Context, rec *job.Record, elapsed time.Duration) error {
	spec := rec.Spec
	m.JobsCompleted.WithLabelValues(spec.Op, string(spec.Dtype), "done").Inc()

	wall := float64(elapsed) / float64(time.Millisecond)
	if rec.WallTimeMs != nil {
		wall = *rec.WallTimeMs
	}
	m.EndToEndMs.WithLabelValues(specLabels(spec)...).Observe(wall)
	if rec.ComputeTimeMs != nil {
		m.ComputeMs.WithLabelValues(specLabels(spec)...).Observe(*rec.ComputeTimeMs)
	}
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(_ context.Context, rec *job.Record, _ error) error {
	m.JobsCompleted.WithLabelValues(rec.Spec.Op, string(rec.Spec.Dtype), "failed").Inc()
	return nil
}

// OnJobEvicted implements ext.JobEvicted.
func (m *MetricsExtension) OnJobEvicted(_ context.Context, rec *job.Record) error {
	m.JobsEvicted.WithLabelValues(strings.ToLower(string(rec.State))).Inc()
	return nil
}

// specLabels returns the {op, dtype, simulate} label values for a spec.
func specLabels(spec job.Spec) []string {
	return []string{spec.Op, string(spec.Dtype), strconv.FormatBool(spec.Simulate)}
}
