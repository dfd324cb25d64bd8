package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"modelgov/internal/cycle/models"
	"modelgov/internal/cycle/scope"
	"modelgov/internal/platform/middleware"
	"modelgov/internal/transport/http/shared"
	dErrors "modelgov/pkg/domain-errors"
	"modelgov/pkg/platform/sentinel"
	"modelgov/pkg/requestcontext"
)

// CycleStore loads cycles for scope reads.
type CycleStore interface {
	Get(ctx context.Context, cycleID uuid.UUID) (*models.Cycle, error)
}

// Resolver computes a cycle's model scope.
type Resolver interface {
	Resolve(ctx context.Context, cycle *models.Cycle) (*scope.Resolution, error)
}

// Materializer freezes a cycle's resolved scope.
type Materializer interface {
	Materialize(ctx context.Context, cycle *models.Cycle, modelIDs []uuid.UUID, opts ...scope.MaterializeOption) error
}

// Handler serves cycle scope reads and the scope lock trigger.
type Handler struct {
	logger       *slog.Logger
	cycles       CycleStore
	resolver     Resolver
	materializer Materializer
	jwtValidator middleware.JWTValidator
}

func New(cycles CycleStore, resolver Resolver, materializer Materializer, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		cycles:       cycles,
		resolver:     resolver,
		materializer: materializer,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the cycle routes with the full middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(middleware.Recovery(h.logger))
		g.Use(middleware.RequestID)
		g.Use(middleware.RequestTime)
		g.Use(middleware.Logger(h.logger))
		g.Use(middleware.Timeout(30 * time.Second))
		g.Use(middleware.ContentTypeJSON)
		g.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		g.Get("/cycles/{cycleID}/scope", h.handleGetScope)
		g.Post("/cycles/{cycleID}/scope/lock", h.handleLockScope)
	})
}

type scopedModelResponse struct {
	ModelID uuid.UUID `json:"model_id"`
	Name    string    `json:"name,omitempty"`
}

type scopeResponse struct {
	CycleID uuid.UUID             `json:"cycle_id"`
	Source  string                `json:"source"`
	Models  []scopedModelResponse `json:"models"`
}

func (h *Handler) handleGetScope(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cycleID, err := uuid.Parse(chi.URLParam(r, "cycleID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid cycle id"))
		return
	}

	cycle, err := h.cycles.Get(ctx, cycleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "cycle not found"))
			return
		}
		h.logFailure(ctx, "cycle load failed", err)
		shared.WriteError(w, err)
		return
	}

	resolution, err := h.resolver.Resolve(ctx, cycle)
	if err != nil {
		h.logFailure(ctx, "scope resolution failed", err)
		shared.WriteError(w, err)
		return
	}

	resp := scopeResponse{
		CycleID: cycle.ID,
		Source:  string(resolution.Source),
		Models:  make([]scopedModelResponse, 0, len(resolution.Models)),
	}
	for _, sm := range resolution.Models {
		resp.Models = append(resp.Models, scopedModelResponse{ModelID: sm.ModelID, Name: sm.Name})
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLockScope(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cycleID, err := uuid.Parse(chi.URLParam(r, "cycleID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid cycle id"))
		return
	}

	cycle, err := h.cycles.Get(ctx, cycleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "cycle not found"))
			return
		}
		h.logFailure(ctx, "cycle load failed", err)
		shared.WriteError(w, err)
		return
	}

	resolution, err := h.resolver.Resolve(ctx, cycle)
	if err != nil {
		h.logFailure(ctx, "scope resolution failed", err)
		shared.WriteError(w, err)
		return
	}

	modelIDs := make([]uuid.UUID, 0, len(resolution.Models))
	for _, sm := range resolution.Models {
		modelIDs = append(modelIDs, sm.ModelID)
	}
	if err := h.materializer.Materialize(ctx, cycle, modelIDs, scope.WithSource(resolution.Source)); err != nil {
		h.logFailure(ctx, "scope lock failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"cycle_id": cycle.ID,
		"source":   string(resolution.Source),
		"models":   len(modelIDs),
	})
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
