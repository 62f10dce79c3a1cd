package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cboiteux2765/GPUTileMathService/id"
	"github.com/cboiteux2765/GPUTileMathService/job"
)

// submitRequest is the submission envelope: {"spec": {...}}.
type submitRequest struct {
	Spec job.Spec `json:"spec"`
}

// submitResponse acknowledges an accepted submission.
type submitResponse struct {
	JobID id.JobID `json:"job_id"`
}

// statusView is the status projection of a record: lifecycle and timing
// fields only, no spec echo and no result payload. Absent optionals
// render as explicit nulls.
type statusView struct {
	JobID         id.JobID   `json:"job_id"`
	State         job.State  `json:"state"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	Error         *string    `json:"error"`
	WallTimeMs    *float64   `json:"wall_time_ms"`
	ComputeTimeMs *float64   `json:"compute_time_ms"`
}

// resultView is the result projection: the summary when DONE, the error
// when FAILED, nulls otherwise.
type resultView struct {
	JobID         id.JobID     `json:"job_id"`
	State         job.State    `json:"state"`
	ResultSummary *job.Summary `json:"result_summary"`
	Error         *string      `json:"error"`
}

func newStatusView(rec *job.Record) statusView {
	return statusView{
		JobID:         rec.ID,
		State:         rec.State,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
		StartedAt:     rec.StartedAt,
		FinishedAt:    rec.FinishedAt,
		Error:         errField(rec),
		WallTimeMs:    rec.WallTimeMs,
		ComputeTimeMs: rec.ComputeTimeMs,
	}
}

func newResultView(rec *job.Record) resultView {
	return resultView{
		JobID:         rec.ID,
		State:         rec.State,
		ResultSummary: rec.Result,
		Error:         errField(rec),
	}
}

func errField(rec *job.Record) *string {
	if rec.Error == "" {
		return nil
	}
	msg := rec.Error
	return &msg
}

// submitJob handles POST /v1/jobs. Validation failures return 422; a
// kernel failure does not — the job lands FAILED and submission still
// acknowledges with its id.
func (a *API) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: "invalid request body: " + err.Error()})
		return
	}

	rec, err := a.eng.SubmitJob(r.Context(), req.Spec)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, submitResponse{JobID: rec.ID})
}

// getJob handles GET /v1/jobs/{jobID}.
func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := id.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		// A malformed id cannot name a record.
		a.writeJSON(w, http.StatusNotFound, errorBody{Detail: "job_id not found"})
		return
	}

	rec, err := a.eng.GetStatus(r.Context(), jobID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, newStatusView(rec))
}

// getResult handles GET /v1/jobs/{jobID}/result. result_summary stays
// null until the job reaches DONE.
func (a *API) getResult(w http.ResponseWriter, r *http.Request) {
	jobID, err := id.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		a.writeJSON(w, http.StatusNotFound, errorBody{Detail: "job_id not found"})
		return
	}

	rec, err := a.eng.GetResult(r.Context(), jobID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, newResultView(rec))
}

// listJobs handles GET /v1/jobs?state=&limit=&offset=. The deferred
// backend keeps no local records and answers 501.
func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorBody{Detail: err.Error()})
		return
	}

	recs, err := a.eng.ListJobs(r.Context(), opts)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	views := make([]statusView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, newStatusView(rec))
	}
	a.writeJSON(w, http.StatusOK, views)
}

func parseListOpts(r *http.Request) (job.ListOpts, error) {
	var opts job.ListOpts
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("state")); raw != "" {
		state := job.State(strings.ToUpper(raw))
		if !state.Valid() {
			return opts, fmt.Errorf("invalid state %q", raw)
		}
		opts.State = state
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid limit %q", raw)
		}
		opts.Limit = n
	}
	if raw := strings.TrimSpace(q.Get("offset")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid offset %q", raw)
		}
		opts.Offset = n
	}
	return opts, nil
}
