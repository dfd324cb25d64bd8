package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	jwttoken "modelgov/internal/jwt_token"
	"modelgov/internal/membership/models"
	"modelgov/internal/membership/service"
	"modelgov/internal/membership/store"
	"modelgov/internal/platform/logger"

	cyclemodels "modelgov/internal/cycle/models"
)

// =============================================================================
// Membership Handler Test Suite
// =============================================================================

type HandlerSuite struct {
	suite.Suite
	store  *store.InMemory
	router chi.Router
	token  string

	planA uuid.UUID
	planB uuid.UUID
	m1    uuid.UUID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	log := logger.New()
	jwtService := jwttoken.NewJWTService("test-signing-key", "modelgov", "modelgov-admin")

	s.store = store.NewInMemory()
	svc := service.New(service.NewInMemoryStoreTx(s.store), service.WithLogger(log))

	s.router = chi.NewRouter()
	New(svc, log, jwtService).Register(s.router)

	var err error
	s.token, err = jwtService.GenerateToken("gov-admin", "admin", time.Hour)
	s.Require().NoError(err)

	s.planA = uuid.New()
	s.planB = uuid.New()
	s.m1 = uuid.New()
	s.store.SeedPlan(&models.Plan{ID: s.planA, Name: "credit risk quarterly"})
	s.store.SeedPlan(&models.Plan{ID: s.planB, Name: "market risk monthly"})
}

func (s *HandlerSuite) do(method, path string, body any, authed bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *HandlerSuite) TestReplacePlanModels() {
	s.Run("requires auth", func() {
		rr := s.do(http.MethodPut, "/plans/"+s.planA.String()+"/models", map[string]any{"model_ids": []uuid.UUID{s.m1}}, false)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("rejects malformed plan id", func() {
		rr := s.do(http.MethodPut, "/plans/not-a-uuid/models", map[string]any{"model_ids": []uuid.UUID{s.m1}}, true)
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("unknown plan is 404", func() {
		rr := s.do(http.MethodPut, "/plans/"+uuid.NewString()+"/models", map[string]any{"model_ids": []uuid.UUID{s.m1}}, true)
		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("replaces membership", func() {
		rr := s.do(http.MethodPut, "/plans/"+s.planA.String()+"/models", map[string]any{
			"model_ids": []uuid.UUID{s.m1},
			"reason":    "initial scoping",
		}, true)
		s.Require().Equal(http.StatusOK, rr.Code)

		rows, err := s.store.ProjectionByPlan(context.Background(), s.planA)
		s.Require().NoError(err)
		s.Len(rows, 1)
	})

	s.Run("actor comes from the token", func() {
		rr := s.do(http.MethodPut, "/plans/"+s.planB.String()+"/models", map[string]any{
			"model_ids": []uuid.UUID{uuid.New()},
		}, true)
		s.Require().Equal(http.StatusOK, rr.Code)

		active, err := s.store.ActiveByPlan(context.Background(), s.planB)
		s.Require().NoError(err)
		s.Require().Len(active, 1)
		s.Equal("gov-admin", active[0].Actor)
	})
}

func (s *HandlerSuite) TestTransferModel() {
	path := func(modelID uuid.UUID) string {
		return fmt.Sprintf("/models/%s/transfer", modelID)
	}

	s.Run("requires destination plan", func() {
		rr := s.do(http.MethodPost, path(s.m1), map[string]any{}, true)
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("transfers and returns the active row", func() {
		rr := s.do(http.MethodPost, path(s.m1), map[string]any{
			"to_plan_id": s.planA,
			"reason":     "reorg",
		}, true)
		s.Require().Equal(http.StatusOK, rr.Code)

		var rec models.MembershipRecord
		s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &rec))
		s.Equal(s.planA, rec.PlanID)
		s.Equal(models.MembershipActive, rec.Status)
	})

	s.Run("blocked transfer maps to 422 with retryable=false", func() {
		s.do(http.MethodPost, path(s.m1), map[string]any{"to_plan_id": s.planA}, true)
		s.store.SeedCycleStatus(s.planA, cyclemodels.CycleStatusCollecting)
		defer s.store.ClearCycleStatuses(s.planA)

		rr := s.do(http.MethodPost, path(s.m1), map[string]any{"to_plan_id": s.planB}, true)
		s.Require().Equal(http.StatusUnprocessableEntity, rr.Code)

		var resp struct {
			Error     string `json:"error"`
			Retryable bool   `json:"retryable"`
		}
		s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
		s.Equal("transfer_blocked", resp.Error)
		s.False(resp.Retryable)
	})
}
