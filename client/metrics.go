package client

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// HistogramStats summarizes one histogram family across all its label
// sets.
type HistogramStats struct {
	Count float64
	Sum   float64
	P50   float64
	P95   float64
	P99   float64
}

// MetricsSnapshot is a parsed view of the server's /metrics exposition,
// aggregated across label sets.
type MetricsSnapshot struct {
	Submitted       float64
	CompletedDone   float64
	CompletedFailed float64
	JobsInMemory    float64
	Evicted         float64
	EndToEndMs      HistogramStats
	ComputeMs       HistogramStats
}

// MetricsSnapshot fetches /metrics and aggregates the job families.
// Families absent from the exposition read as zero.
func (c *Client) MetricsSnapshot(ctx context.Context) (*MetricsSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/metrics", nil)
	if err != nil {
		return nil, fmt.Errorf("tilemath/client: build request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tilemath/client: GET /metrics: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tilemath/client: parse exposition: %w", err)
	}

	return &MetricsSnapshot{
		Submitted:       sumCounter(families["jobs_submitted_total"]),
		CompletedDone:   sumCounterWhere(families["jobs_completed_total"], "state", "done"),
		CompletedFailed: sumCounterWhere(families["jobs_completed_total"], "state", "failed"),
		JobsInMemory:    gaugeValue(families["jobs_in_memory"]),
		Evicted:         sumCounter(families["jobs_evicted_total"]),
		EndToEndMs:      histogramStats(families["job_end_to_end_ms"]),
		ComputeMs:       histogramStats(families["job_compute_ms"]),
	}, nil
}

func sumCounter(fam *dto.MetricFamily) float64 {
	if fam == nil {
		return 0
	}
	var total float64
	for _, m := range fam.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	return total
}

func sumCounterWhere(fam *dto.MetricFamily, label, value string) float64 {
	if fam == nil {
		return 0
	}
	var total float64
	for _, m := range fam.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				total += m.GetCounter().GetValue()
				break
			}
		}
	}
	return total
}

func gaugeValue(fam *dto.MetricFamily) float64 {
	if fam == nil || len(fam.GetMetric()) == 0 {
		return 0
	}
	return fam.GetMetric()[0].GetGauge().GetValue()
}

// histogramStats merges every label set of fam into one distribution
// and derives p50/p95/p99 from the cumulative buckets. The collectors
// share bucket layouts, so bounds line up across label sets.
func histogramStats(fam *dto.MetricFamily) HistogramStats {
	var stats HistogramStats
	if fam == nil {
		return stats
	}

	cumulative := map[float64]float64{}
	for _, m := range fam.GetMetric() {
		h := m.GetHistogram()
		stats.Count += float64(h.GetSampleCount())
		stats.Sum += h.GetSampleSum()
		for _, b := range h.GetBucket() {
			cumulative[b.GetUpperBound()] += float64(b.GetCumulativeCount())
		}
	}
	if stats.Count == 0 {
		return stats
	}

	bounds := make([]float64, 0, len(cumulative))
	for bound := range cumulative {
		bounds = append(bounds, bound)
	}
	sort.Float64s(bounds)

	stats.P50 = quantileFromBuckets(0.50, bounds, cumulative, stats.Count)
	stats.P95 = quantileFromBuckets(0.95, bounds, cumulative, stats.Count)
	stats.P99 = quantileFromBuckets(0.99, bounds, cumulative, stats.Count)
	return stats
}

// quantileFromBuckets locates the first bucket whose cumulative count
// reaches the target rank and interpolates linearly within it, the way
// PromQL's histogram_quantile does. Samples past the last finite bound
// report that bound.
func quantileFromBuckets(q float64, bounds []float64, cumulative map[float64]float64, count float64) float64 {
	rank := q * count
	prevBound, prevCum := 0.0, 0.0
	for _, bound := range bounds {
		cum := cumulative[bound]
		if cum >= rank {
			if math.IsInf(bound, +1) {
				return prevBound
			}
			width := bound - prevBound
			inBucket := cum - prevCum
			if inBucket <= 0 || width <= 0 {
				return bound
			}
			return prevBound + width*(rank-prevCum)/inBucket
		}
		prevBound, prevCum = bound, cum
	}
	return prevBound
}
