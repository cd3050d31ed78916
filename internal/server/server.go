// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"social-support-workers/internal/common/errors"
	"social-support-workers/internal/common/logger"
	trackrunstatus "social-support-workers/internal/workers/application/track-run-status"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusReader answers run status lookups.
type StatusReader interface {
	Execute(ctx context.Context, input *trackrunstatus.Input) (*trackrunstatus.Output, error)
}

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

type Options struct {
	Status StatusReader
	// Checks are run by /ready, keyed by dependency name.
	Checks       map[string]Check
	CheckTimeout time.Duration
	Metrics      http.Handler
}

type handler struct {
	opts   Options
	logger logger.Logger
}

// NewRouter mounts the health, readiness, metrics and run status endpoints.
func NewRouter(opts Options, log logger.Logger) http.Handler {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 3 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	h := &handler{opts: opts, logger: log.WithFields(map[string]interface{}{"component": "ops-server"})}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Get("/ready", h.ready)
	r.Method(http.MethodGet, "/metrics", opts.Metrics)
	r.Get("/applications/{applicationID}/status", h.status)
	return r
}

// New builds the HTTP server for the ops router.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *handler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.CheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.opts.Checks))
	for name := range h.opts.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := map[string]string{}
	for _, name := range names {
		if err := h.opts.Checks[name](ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		h.logger.Warn("readiness check failed", map[string]interface{}{"failed": failed})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"failed": failed,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	if h.opts.Status == nil {
		writeError(w, errors.NewStatusStoreFailedError(nil))
		return
	}

	out, err := h.opts.Status.Execute(r.Context(), &trackrunstatus.Input{
		ApplicationID: chi.URLParam(r, "applicationID"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ==========================
// Responses
// ==========================

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	stdErr := errors.AsStandard(err)
	body := errorBody{Error: string(stdErr.Code), Message: stdErr.Message}
	if stdErr.Code != errors.ErrCodeInternal {
		body.Details = stdErr.Details
	}
	writeJSON(w, httpStatus(stdErr.Code), body)
}

func httpStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidApplication:
		return http.StatusBadRequest
	case errors.ErrCodeRunNotFound:
		return http.StatusNotFound
	case errors.ErrCodeRunAlreadyExists:
		return http.StatusConflict
	case errors.ErrCodeStatusStoreFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
