// Package api provides HTTP handlers for the stoker build API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stokerbuild/stoker/internal/core/domain"
	"github.com/stokerbuild/stoker/internal/core/recipe"
	"github.com/stokerbuild/stoker/internal/shell/builder"
	"github.com/stokerbuild/stoker/internal/shell/store"
)

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store   store.Store
	builder *builder.Builder
	logger  *slog.Logger
	baseDir string
}

// NewHandler creates a new API handler. baseDir resolves relative source
// paths in submitted recipes.
func NewHandler(s store.Store, b *builder.Builder, l *slog.Logger, baseDir string) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if baseDir == "" {
		baseDir = "."
	}
	return &Handler{
		store:   s,
		builder: b,
		logger:  l,
		baseDir: baseDir,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)

	// Health endpoint
	r.Get("/health", h.handleHealth)

	// OpenAPI document
	r.Get("/openapi.json", h.handleOpenAPI)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/builds", func(r chi.Router) {
			r.Post("/", h.handleCreateBuild)
			r.Get("/", h.handleListBuilds)
			r.Get("/{id}", h.handleGetBuild)
		})
	})

	return r
}

// jsonContentType sets the JSON content type on all responses.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// =============================================================================
// Build Handlers
// =============================================================================

func (h *Handler) handleCreateBuild(w http.ResponseWriter, r *http.Request) {
	var req CreateBuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", "invalid_body")
		return
	}

	rec, err := recipe.Parse(req.Recipe)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "invalid_recipe")
		return
	}

	baseDir := req.BaseDir
	if baseDir == "" {
		baseDir = h.baseDir
	}

	// Builds are synchronous and single-pass: the response carries the
	// terminal ledger record, failed (422) or succeeded (201).
	record, err := h.builder.Run(r.Context(), *rec, baseDir)
	if err != nil {
		if record != nil {
			h.writeJSON(w, http.StatusUnprocessableEntity, buildToResponse(record))
			return
		}
		h.logger.Error("failed to run build", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to run build", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusCreated, buildToResponse(record))
}

func (h *Handler) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.store.GetBuild(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "build not found", "build_not_found")
			return
		}
		h.logger.Error("failed to get build", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get build", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, buildToResponse(record))
}

func (h *Handler) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	opts := store.DefaultListOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}
	opts = opts.Normalize()

	builds, err := h.store.ListBuilds(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list builds", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list builds", "internal_error")
		return
	}

	resp := ListBuildsResponse{
		Builds: make([]BuildResponse, 0, len(builds)),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	for i := range builds {
		resp.Builds = append(resp.Builds, buildToResponse(&builds[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func buildToResponse(b *domain.Build) BuildResponse {
	return BuildResponse{
		ID:           b.ReferenceID,
		RecipeName:   b.RecipeName,
		RecipeDigest: b.RecipeDigest,
		SourceDigest: b.SourceDigest,
		ImageRef:     b.ImageRef,
		ImageID:      b.ImageID,
		Status:       string(b.Status),
		Error:        b.Error,
		CreatedAt:    b.CreatedAt,
		FinishedAt:   b.FinishedAt,
	}
}
