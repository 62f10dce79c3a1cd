// Package api exposes the job engine over HTTP.
//
// Routes live on a chi router behind request-ID, real-IP,
// panic-recovery, and slog request-logging middleware. Handlers decode
// and encode JSON, delegate to engine operations, and translate errors
// to statuses: validation failures are 422, unknown job identifiers are
// 404, and aggregates the deferred backend cannot serve are 501.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cboiteux2765/GPUTileMathService"
	"github.com/cboiteux2765/GPUTileMathService/engine"
	"github.com/cboiteux2765/GPUTileMathService/observability"
)

// API wires the HTTP handlers for the job service.
type API struct {
	eng         *engine.Engine
	logger      *slog.Logger
	metrics     *observability.MetricsExtension
	gatherer    prometheus.Gatherer
	promHandler http.Handler
}

// Option configures the API.
type Option func(*API)

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics attaches the metrics extension so the exposition endpoint
// can refresh the in-memory gauge right before each scrape.
func WithMetrics(m *observability.MetricsExtension) Option {
	return func(a *API) { a.metrics = m }
}

// WithGatherer sets the Prometheus gatherer backing /metrics. Defaults
// to prometheus.DefaultGatherer; tests pass the registry their
// collectors were registered on.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *API) { a.gatherer = g }
}

// New creates an API serving eng.
func New(eng *engine.Engine, opts ...Option) *API {
	a := &API{
		eng:      eng,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.promHandler = promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(a.requestLogger)

	r.Get("/healthz", a.health)
	r.Get("/metrics", a.metricsExposition)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/jobs", a.submitJob)
		r.Get("/jobs", a.listJobs)
		r.Get("/jobs/{jobID}", a.getJob)
		r.Get("/jobs/{jobID}/result", a.getResult)
		r.Get("/stats", a.stats)
		r.Get("/backend", a.backendInfo)
	})

	return r
}

// requestLogger logs one line per request, carrying the chi request id.
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Info("http request",
			slog.String("request_id", chimw.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

// errorBody is the uniform error payload: {"detail": "..."}.
type errorBody struct {
	Detail string `json:"detail"`
}

func (a *API) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("encode response", slog.String("error", err.Error()))
	}
}

// writeError translates engine and store errors to HTTP statuses.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tilemath.ErrJobNotFound):
		a.writeJSON(w, http.StatusNotFound, errorBody{Detail: "job_id not found"})
	case tilemath.IsValidation(err):
		a.writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: err.Error()})
	case errors.Is(err, tilemath.ErrListUnavailable), errors.Is(err, tilemath.ErrStatsUnavailable):
		a.writeJSON(w, http.StatusNotImplemented, errorBody{Detail: err.Error()})
	default:
		a.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		a.writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal error"})
	}
}
