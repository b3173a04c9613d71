package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/maauso/mediagen-api/internal/catalog"
	"github.com/maauso/mediagen-api/internal/provider"
	"github.com/maauso/mediagen-api/internal/task"
)

// Handlers contains the HTTP handlers for the generation API.
type Handlers struct {
	service   *task.Service
	catalog   *catalog.Catalog
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *task.Service, cat *catalog.Catalog, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		catalog:   cat,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Models handles GET /v1/models requests.
func (h *Handlers) Models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModelsResponse{Models: h.catalog.ByProvider()})
}

// Submit handles POST /v1/generations requests. The provider round-trip runs
// in the background; the response only confirms the task was recorded.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	t, err := h.service.Submit(r.Context(), req.Provider, provider.Request{
		Prompt:         req.Prompt,
		ModelID:        req.ModelID,
		Image:          req.Image,
		Duration:       req.Duration,
		AspectRatio:    req.AspectRatio,
		Resolution:     req.Resolution,
		NegativePrompt: req.NegativePrompt,
		CFGScale:       req.CFGScale,
		GenerateAudio:  req.GenerateAudio,
		CameraFixed:    req.CameraFixed,
		Seed:           req.Seed,
		Mode:           req.Mode,
	})
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrModelNotFound):
			writeError(w, http.StatusBadRequest, err.Error(), "MODEL_NOT_FOUND")
		case errors.Is(err, provider.ErrUnknownProvider):
			writeError(w, http.StatusBadRequest, err.Error(), "UNKNOWN_PROVIDER")
		default:
			h.logger.Error("failed to create task",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to create task", "TASK_CREATION_FAILED")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		TaskID: t.TaskID,
		Status: string(t.Status),
	})
}

// Status handles GET /v1/generations/{id} requests. The task record itself is
// the response body.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task ID is required", "MISSING_TASK_ID")
		return
	}

	t, err := h.service.Status(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found", "TASK_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get task",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get task", "TASK_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
