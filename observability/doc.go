// Package observability provides the Prometheus metrics extension.
// The MetricsExtension implements lifecycle hooks to record submission
// counts, completion counts by terminal state, end-to-end and
// compute-only latency histograms, and retention evictions.
//
// Metric names and label sets are a wire contract shared with external
// dashboards; changing them breaks scrapes.
package observability
