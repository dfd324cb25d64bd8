package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"modelgov/internal/membership/models"
	"modelgov/internal/platform/middleware"
	"modelgov/internal/transport/http/shared"
	dErrors "modelgov/pkg/domain-errors"
	"modelgov/pkg/requestcontext"
)

// Service defines the membership operations the handler exposes.
type Service interface {
	ReplacePlanModels(ctx context.Context, planID uuid.UUID, desiredModelIDs []uuid.UUID, actor, reason string) error
	TransferModel(ctx context.Context, modelID, toPlanID uuid.UUID, actor, reason string) (*models.MembershipRecord, error)
}

// Handler handles plan membership administration endpoints.
type Handler struct {
	logger       *slog.Logger
	membership   Service
	jwtValidator middleware.JWTValidator
}

func New(membership Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		membership:   membership,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the membership routes with the full middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(middleware.Recovery(h.logger))
		g.Use(middleware.RequestID)
		g.Use(middleware.RequestTime)
		g.Use(middleware.Logger(h.logger))
		g.Use(middleware.Timeout(30 * time.Second))
		g.Use(middleware.ContentTypeJSON)
		g.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		g.Put("/plans/{planID}/models", h.handleReplacePlanModels)
		g.Post("/models/{modelID}/transfer", h.handleTransferModel)
	})
}

type replaceRequest struct {
	ModelIDs []uuid.UUID `json:"model_ids"`
	Reason   string      `json:"reason"`
}

type transferRequest struct {
	ToPlanID uuid.UUID `json:"to_plan_id"`
	Reason   string    `json:"reason"`
}

func (h *Handler) handleReplacePlanModels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	planID, err := uuid.Parse(chi.URLParam(r, "planID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid plan id"))
		return
	}

	var req replaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	actor := requestcontext.ActorID(ctx)
	if err := h.membership.ReplacePlanModels(ctx, planID, req.ModelIDs, actor, req.Reason); err != nil {
		h.logFailure(ctx, "replace plan models failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"plan_id":   planID,
		"model_ids": req.ModelIDs,
	})
}

func (h *Handler) handleTransferModel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	modelID, err := uuid.Parse(chi.URLParam(r, "modelID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid model id"))
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.ToPlanID == uuid.Nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "to_plan_id is required"))
		return
	}

	actor := requestcontext.ActorID(ctx)
	rec, err := h.membership.TransferModel(ctx, modelID, req.ToPlanID, actor, req.Reason)
	if err != nil {
		h.logFailure(ctx, "transfer model failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if h.logger == nil {
		return
	}
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
