package api

import (
	"net/http"
	"net/url"

	"github.com/cboiteux2765/GPUTileMathService"
	"github.com/cboiteux2765/GPUTileMathService/job"
)

// health handles GET /healthz.
func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// metricsExposition handles GET /metrics. The in-memory gauge is
// refreshed from the store right before the scrape so it tracks the
// live record count rather than the last lifecycle event.
func (a *API) metricsExposition(w http.ResponseWriter, r *http.Request) {
	if a.metrics != nil {
		if n, err := a.eng.InMemoryCount(r.Context()); err == nil {
			a.metrics.SetJobsInMemory(n)
		}
	}
	a.promHandler.ServeHTTP(w, r)
}

// statsResponse groups record counts by lifecycle state.
type statsResponse struct {
	Queued  int64 `json:"queued"`
	Running int64 `json:"running"`
	Done    int64 `json:"done"`
	Failed  int64 `json:"failed"`
}

// stats handles GET /v1/stats. The deferred backend keeps no local
// aggregates and answers 501.
func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := a.eng.Counts(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, statsResponse{
		Queued:  counts[job.StateQueued],
		Running: counts[job.StateRunning],
		Done:    counts[job.StateDone],
		Failed:  counts[job.StateFailed],
	})
}

// backendResponse echoes the execution configuration fixed at startup.
type backendResponse struct {
	Backend string     `json:"backend"`
	Gate    *gateInfo  `json:"gate,omitempty"`
	Redis   *redisInfo `json:"redis,omitempty"`
}

type gateInfo struct {
	MaxConcurrency int     `json:"max_concurrency"`
	RateLimit      float64 `json:"rate_limit"`
}

type redisInfo struct {
	URL    string `json:"url"`
	Stream string `json:"stream"`
}

// backendInfo handles GET /v1/backend.
func (a *API) backendInfo(w http.ResponseWriter, r *http.Request) {
	cfg := a.eng.Config()
	resp := backendResponse{Backend: string(a.eng.Kind())}
	switch a.eng.Kind() {
	case tilemath.BackendInline:
		resp.Gate = &gateInfo{
			MaxConcurrency: cfg.InlineConcurrency,
			RateLimit:      cfg.InlineRate,
		}
	case tilemath.BackendDeferred:
		resp.Redis = &redisInfo{
			URL:    redactURL(cfg.RedisURL),
			Stream: cfg.RedisStream,
		}
	}
	a.writeJSON(w, http.StatusOK, resp)
}

// redactURL strips any password from a connection URL before echoing it.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
