// Package httpapi exposes the pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"TipsPipeline/internal/domain"
	"TipsPipeline/internal/infrastructure/storage"
	"TipsPipeline/internal/usecase"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
	defaultQuickSize = 10
)

// RunHistory lists finished runs.
type RunHistory interface {
	RecentRuns(ctx context.Context, limit int) ([]storage.RunRecord, error)
}

// Handler serves pipeline operations.
type Handler struct {
	pipeline *usecase.Pipeline
	runs     RunHistory
	logger   *slog.Logger
}

// NewHandler wires the pipeline; runs may be nil when history is unavailable.
func NewHandler(pipeline *usecase.Pipeline, runs RunHistory, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{pipeline: pipeline, runs: runs, logger: logger}
}

// Router builds the chi routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/pipeline", func(r chi.Router) {
		r.Post("/validate", h.Validate)
		r.Post("/estimate", h.Estimate)
		r.Get("/progress", h.Progress)
		r.Post("/runs", h.Execute)
		r.Get("/runs", h.ListRuns)
		r.Post("/quick/{preset}", h.Quick)
	})

	return r
}

// Validate handles POST /pipeline/validate.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.decodeConfig(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, h.pipeline.ValidateConfig(cfg))
}

// Estimate handles POST /pipeline/estimate.
func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.decodeConfig(w, r)
	if !ok {
		return
	}

	est, err := h.pipeline.EstimatePipeline(r.Context(), cfg)
	if err != nil {
		h.logger.Error("estimate failed", "request_id", middleware.GetReqID(r.Context()), "error", err)
		h.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, estimateResponse{
		Estimate:      est,
		EstimatedTime: est.EstimatedTime.String(),
	})
}

type estimateResponse struct {
	domain.Estimate
	EstimatedTime string `json:"estimatedTime"`
}

// Progress handles GET /pipeline/progress.
func (h *Handler) Progress(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, h.pipeline.CurrentProgress())
}

// Execute handles POST /pipeline/runs and blocks until the run finishes.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.decodeConfig(w, r)
	if !ok {
		return
	}

	result, err := h.pipeline.ExecutePipeline(r.Context(), cfg)
	h.respondRun(w, r, result, err)
}

// Quick handles POST /pipeline/quick/{preset}?count=N.
func (h *Handler) Quick(w http.ResponseWriter, r *http.Request) {
	preset, err := usecase.ParsePreset(chi.URLParam(r, "preset"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, err.Error())
		return
	}

	count := defaultQuickSize
	if raw := r.URL.Query().Get("count"); raw != "" {
		count, err = strconv.Atoi(raw)
		if err != nil || count < 1 {
			h.respondError(w, http.StatusBadRequest, "count must be a positive integer")
			return
		}
	}

	result, err := h.pipeline.QuickGenerate(r.Context(), preset, count)
	h.respondRun(w, r, result, err)
}

// ListRuns handles GET /pipeline/runs?limit=N.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.respondError(w, http.StatusNotImplemented, "run history is not configured")
		return
	}

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("list runs failed", "request_id", middleware.GetReqID(r.Context()), "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []storage.RunRecord{}
	}
	h.respondJSON(w, http.StatusOK, runs)
}

func (h *Handler) respondRun(w http.ResponseWriter, r *http.Request, result domain.PipelineResult, err error) {
	var invalid *domain.ConfigValidationError
	switch {
	case err == nil:
		h.respondJSON(w, http.StatusOK, result)
	case errors.As(err, &invalid):
		h.respondJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "invalid pipeline config", "problems": invalid.Problems})
	case errors.Is(err, domain.ErrAlreadyRunning):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNoRecords):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("run failed", "request_id", middleware.GetReqID(r.Context()), "error", err)
		h.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) decodeConfig(w http.ResponseWriter, r *http.Request) (domain.PipelineConfig, bool) {
	var cfg domain.PipelineConfig
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		h.logger.Warn("invalid request body", "request_id", middleware.GetReqID(r.Context()), "error", err)
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return domain.PipelineConfig{}, false
	}
	return cfg, true
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// NewServer builds an http.Server with conservative timeouts. Run requests
// block for the whole run, so there is no write timeout.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
