package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/heron/internal/analytics"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/pipeline"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	warehouse domain.Warehouse
	olap      domain.Analytics
	cache     domain.Cache
	bus       domain.EventBus
	runner    *pipeline.Runner
	validator *analytics.Validator
	version   string

	// runMu serializes pipeline runs; both stores are shared state.
	runMu sync.Mutex

	mu   sync.RWMutex
	runs map[string]*domain.RunSummary
	last *domain.RunSummary
}

// NewHandler creates a new API handler.
func NewHandler(
	warehouse domain.Warehouse,
	olap domain.Analytics,
	cache domain.Cache,
	bus domain.EventBus,
	runner *pipeline.Runner,
	validator *analytics.Validator,
	version string,
) *Handler {
	return &Handler{
		warehouse: warehouse,
		olap:      olap,
		cache:     cache,
		bus:       bus,
		runner:    runner,
		validator: validator,
		version:   version,
		runs:      make(map[string]*domain.RunSummary),
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.warehouse != nil {
		if err := h.warehouse.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.olap != nil {
		if err := h.olap.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// StartRun handles POST /runs. The run executes synchronously; a second
// request while one is in flight gets 409.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	if !h.runMu.TryLock() {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "a run is already in progress",
		})
		return
	}
	defer h.runMu.Unlock()

	summary, err := h.runner.Run(r.Context())
	if err != nil {
		slog.Error("pipeline run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "run failed: " + err.Error(),
		})
		return
	}

	h.mu.Lock()
	h.runs[summary.RunID] = summary
	h.last = summary
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, summary)
}

// GetRun handles GET /runs/{id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "run id is required",
		})
		return
	}

	h.mu.RLock()
	summary, ok := h.runs[runID]
	h.mu.RUnlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run not found",
		})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Report handles GET /report: it re-runs the quality checks against
// the current star schema.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	last := h.last
	h.mu.RUnlock()

	if last == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no completed run; POST /runs first",
		})
		return
	}

	report, err := h.validator.Run(r.Context())
	if err != nil {
		slog.Error("quality checks failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "quality checks failed",
		})
		return
	}

	violations := 0
	for _, count := range report {
		violations += count
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report":     report,
		"violations": violations,
		"runId":      last.RunID,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
