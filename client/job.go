package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/cboiteux2765/GPUTileMathService/job"
)

// JobStatus is the status view of a record: lifecycle and timing only,
// no spec echo and no result payload.
type JobStatus struct {
	JobID         string     `json:"job_id"`
	State         job.State  `json:"state"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	Error         *string    `json:"error"`
	WallTimeMs    *float64   `json:"wall_time_ms"`
	ComputeTimeMs *float64   `json:"compute_time_ms"`
}

// JobResult is the result view: the summary once the job is DONE.
type JobResult struct {
	JobID         string       `json:"job_id"`
	State         job.State    `json:"state"`
	ResultSummary *job.Summary `json:"result_summary"`
	Error         *string      `json:"error"`
}

// Stats groups record counts by lifecycle state.
type Stats struct {
	Queued  int64 `json:"queued"`
	Running int64 `json:"running"`
	Done    int64 `json:"done"`
	Failed  int64 `json:"failed"`
}

// BackendInfo echoes the server's execution configuration.
type BackendInfo struct {
	Backend string     `json:"backend"`
	Gate    *GateInfo  `json:"gate,omitempty"`
	Redis   *RedisInfo `json:"redis,omitempty"`
}

// GateInfo is the inline admission configuration.
type GateInfo struct {
	MaxConcurrency int     `json:"max_concurrency"`
	RateLimit      float64 `json:"rate_limit"`
}

// RedisInfo is the deferred queue configuration.
type RedisInfo struct {
	URL    string `json:"url"`
	Stream string `json:"stream"`
}

// ListOpts filters and pages ListJobs. Zero values mean "no filter".
type ListOpts struct {
	State  string
	Limit  int
	Offset int
}

// SubmitJob submits spec and returns the new job id. Validation
// failures surface as an *APIError with status 422.
func (c *Client) SubmitJob(ctx context.Context, spec job.Spec) (string, error) {
	var out struct {
		JobID string `json:"job_id"`
	}
	in := struct {
		Spec job.Spec `json:"spec"`
	}{Spec: spec}
	if err := c.postJSON(ctx, "/v1/jobs", in, &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

// GetJob returns the status view for jobID.
func (c *Client) GetJob(ctx context.Context, jobID string) (*JobStatus, error) {
	var out JobStatus
	if err := c.getJSON(ctx, "/v1/jobs/"+url.PathEscape(jobID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetResult returns the result view for jobID. ResultSummary is nil
// until the job reaches DONE.
func (c *Client) GetResult(ctx context.Context, jobID string) (*JobResult, error) {
	var out JobResult
	if err := c.getJSON(ctx, "/v1/jobs/"+url.PathEscape(jobID)+"/result", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListJobs returns status views matching opts, newest first. A
// deferred server answers 501.
func (c *Client) ListJobs(ctx context.Context, opts ListOpts) ([]JobStatus, error) {
	q := url.Values{}
	if opts.State != "" {
		q.Set("state", opts.State)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	path := "/v1/jobs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []JobStatus
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns per-state record counts. A deferred server answers 501.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.getJSON(ctx, "/v1/stats", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Backend returns the server's execution configuration.
func (c *Client) Backend(ctx context.Context) (*BackendInfo, error) {
	var out BackendInfo
	if err := c.getJSON(ctx, "/v1/backend", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitForTerminal polls the status view until the job reaches DONE or
// FAILED, waiting between checks per the configured poll policy. It
// returns the terminal status, or the context error if ctx expires
// first.
func (c *Client) WaitForTerminal(ctx context.Context, jobID string) (*JobStatus, error) {
	for attempt := 1; ; attempt++ {
		status, err := c.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if status.State.Terminal() {
			return status, nil
		}
		c.logger.Debug("job not terminal yet",
			slog.String("job_id", jobID),
			slog.String("state", string(status.State)),
			slog.Int("attempt", attempt),
		)

		delay := c.poll.Delay(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("tilemath/client: waiting for job %s: %w", jobID, ctx.Err())
		case <-timer.C:
		}
	}
}
