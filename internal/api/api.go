// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api exposes the lookup service over HTTP.
//
// Routes:
//
//	GET  /check-journal?name=&mode=&first=
//	POST /revalidate-journals?secret=
//	GET  /stats/top?n=
//	GET  /healthz
//	GET  /metrics
//	GET  /
//
// Every error body carries a stable "error" string. Only service failures
// add "details".
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pdiddy/journal-checker/internal/cache"
	"github.com/pdiddy/journal-checker/internal/logging"
	"github.com/pdiddy/journal-checker/internal/lookup"
	"github.com/pdiddy/journal-checker/internal/metrics"
	"github.com/pdiddy/journal-checker/internal/ui"
	"github.com/pdiddy/journal-checker/pkg/types"
)

// Error strings returned in the "error" field.
const (
	ErrMsgNameRequired   = "Journal name is required"
	ErrMsgNotInList      = "Journal not in list - try again"
	ErrMsgNotFound       = "Journal not found"
	ErrMsgInternal       = "Internal server error"
	ErrMsgInvalidSecret  = "Invalid secret"
	ErrMsgRevalidateFail = "Failed to revalidate"
	ErrMsgBadLimit       = "n must be a positive integer"
	ErrMsgBadMode        = "mode must be exact or search"
	ErrMsgBadFirst       = "first must be true or false"
)

// defaultTopN is the /stats/top size when n is absent.
const defaultTopN = 10

// Service is the lookup surface the API drives.
type Service interface {
	Check(ctx context.Context, q lookup.Query) (lookup.Result, error)
	Revalidate(ctx context.Context, secret string) error
	TopSearches(ctx context.Context, n int) ([]types.SearchCount, error)
}

// StatsReporter describes the cache for /healthz.
type StatsReporter interface {
	Stats() cache.Stats
}

// Options configures the router.
type Options struct {
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64
	RateBurst int
	Logger    *zap.Logger
}

type errorBody struct {
	Error       string `json:"error"`
	Message     string `json:"message,omitempty"`
	SearchedFor string `json:"searchedFor,omitempty"`
	Details     string `json:"details,omitempty"`
}

type handler struct {
	svc    Service
	stats  StatsReporter
	logger *zap.Logger
}

// NewRouter builds the HTTP handler. stats may be nil.
func NewRouter(svc Service, stats StatsReporter, opts Options) *mux.Router {
	logger := logging.OrNop(opts.Logger)
	h := &handler{svc: svc, stats: stats, logger: logger}

	r := mux.NewRouter()
	r.Use(requestIDMiddleware, accessLogMiddleware(logger))
	if opts.RateLimit > 0 {
		r.Use(newRateLimiter(opts.RateLimit, opts.RateBurst, logger).middleware)
	}

	r.HandleFunc("/check-journal", h.checkJournal).Methods(http.MethodGet)
	r.HandleFunc("/revalidate-journals", h.revalidate).Methods(http.MethodPost)
	r.HandleFunc("/stats/top", h.topSearches).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.Handle("/", ui.NewHandler(svc, logger)).Methods(http.MethodGet)
	return r
}

func (h *handler) checkJournal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")

	mode, err := lookup.ParseMode(q.Get("mode"))
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, errorBody{Error: ErrMsgBadMode})
		return
	}
	var first bool
	if raw := q.Get("first"); raw != "" {
		if first, err = strconv.ParseBool(raw); err != nil {
			writeJSON(w, h.logger, http.StatusBadRequest, errorBody{Error: ErrMsgBadFirst})
			return
		}
	}

	res, err := h.svc.Check(r.Context(), lookup.Query{Name: name, Mode: mode, First: first})
	switch {
	case errors.Is(err, lookup.ErrValidation):
		writeJSON(w, h.logger, http.StatusBadRequest, errorBody{Error: ErrMsgNameRequired})
	case errors.Is(err, lookup.ErrNotFound) && mode == lookup.ModeSearch:
		writeJSON(w, h.logger, http.StatusNotFound, errorBody{
			Error:       ErrMsgNotFound,
			Message:     ErrMsgNotFound,
			SearchedFor: name,
		})
	case errors.Is(err, lookup.ErrNotFound):
		writeJSON(w, h.logger, http.StatusNotFound, errorBody{Error: ErrMsgNotInList})
	case err != nil:
		h.internalError(w, r, err)
	case mode == lookup.ModeSearch && !first:
		writeJSON(w, h.logger, http.StatusOK, res.Matches)
	default:
		writeJSON(w, h.logger, http.StatusOK, res.Journal)
	}
}

func (h *handler) revalidate(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Revalidate(r.Context(), r.URL.Query().Get("secret"))
	switch {
	case errors.Is(err, lookup.ErrUnauthorized):
		writeJSON(w, h.logger, http.StatusUnauthorized, errorBody{Error: ErrMsgInvalidSecret})
	case err != nil:
		h.logger.Error("revalidation failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err))
		writeJSON(w, h.logger, http.StatusInternalServerError, errorBody{Error: ErrMsgRevalidateFail})
	default:
		writeJSON(w, h.logger, http.StatusOK, map[string]bool{"revalidated": true})
	}
}

func (h *handler) topSearches(w http.ResponseWriter, r *http.Request) {
	n := defaultTopN
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeJSON(w, h.logger, http.StatusBadRequest, errorBody{Error: ErrMsgBadLimit})
			return
		}
		n = v
	}

	top, err := h.svc.TopSearches(r.Context(), n)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if top == nil {
		top = []types.SearchCount{}
	}
	writeJSON(w, h.logger, http.StatusOK, top)
}

type healthBody struct {
	Status    string     `json:"status"`
	Journals  int        `json:"journals"`
	FetchedAt *time.Time `json:"fetchedAt"`
	Fresh     bool       `json:"fresh"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	body := healthBody{Status: "ok"}
	if h.stats != nil {
		st := h.stats.Stats()
		body.Journals = st.Journals
		body.Fresh = st.Fresh
		if !st.FetchedAt.IsZero() {
			body.FetchedAt = &st.FetchedAt
		}
	}
	writeJSON(w, h.logger, http.StatusOK, body)
}

func (h *handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("request failed",
		zap.String("request_id", RequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	writeJSON(w, h.logger, http.StatusInternalServerError, errorBody{Error: ErrMsgInternal, Details: err.Error()})
}

// writeJSON writes v with status. The header is already sent when encoding
// fails, so the failure can only be logged.
func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encoding response body", zap.Int("status", status), zap.Error(err))
	}
}
