package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	cyclemodels "modelgov/internal/cycle/models"
	"modelgov/internal/membership/models"
	"modelgov/pkg/platform/sentinel"
)

// =============================================================================
// In-Memory Membership Store Test Suite
// =============================================================================

type InMemorySuite struct {
	suite.Suite
	store *InMemory

	planID uuid.UUID
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.planID = uuid.New()
	s.store.SeedPlan(&models.Plan{ID: s.planID, Name: "credit risk quarterly"})
}

func (s *InMemorySuite) openMembership(modelID uuid.UUID) *models.MembershipRecord {
	rec := models.NewActiveMembership(modelID, s.planID, time.Now().UTC(), "setup", "")
	s.Require().NoError(s.store.OpenMembership(context.Background(), rec))
	return rec
}

func (s *InMemorySuite) TestPlans() {
	ctx := context.Background()

	s.Run("get unknown plan returns sentinel", func() {
		_, err := s.store.GetPlan(ctx, uuid.New())
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})

	s.Run("lock plans returns them in id order", func() {
		other := uuid.New()
		s.store.SeedPlan(&models.Plan{ID: other, Name: "market risk monthly"})

		plans, err := s.store.LockPlans(ctx, []uuid.UUID{other, s.planID})
		s.Require().NoError(err)
		s.Require().Len(plans, 2)
		s.Less(plans[0].ID.String(), plans[1].ID.String())
	})

	s.Run("lock skips unknown plans instead of failing", func() {
		plans, err := s.store.LockPlans(ctx, []uuid.UUID{s.planID, uuid.New()})
		s.Require().NoError(err)
		s.Len(plans, 1)
	})

	s.Run("dirty flag lifecycle", func() {
		s.Require().NoError(s.store.MarkPlansDirty(ctx, []uuid.UUID{s.planID}))
		dirty, err := s.store.ListDirtyPlans(ctx, 10)
		s.Require().NoError(err)
		s.Require().Len(dirty, 1)

		s.Require().NoError(s.store.SetPlanModelCount(ctx, s.planID, 5))
		plan, err := s.store.GetPlan(ctx, s.planID)
		s.Require().NoError(err)
		s.Equal(5, plan.ModelCount)
		s.False(plan.Dirty)
	})
}

func (s *InMemorySuite) TestMembershipRows() {
	ctx := context.Background()

	s.Run("open then read back by plan and by model", func() {
		modelID := uuid.New()
		s.openMembership(modelID)

		byPlan, err := s.store.ActiveByPlan(ctx, s.planID)
		s.Require().NoError(err)
		s.Require().Len(byPlan, 1)
		s.Equal(modelID, byPlan[0].ModelID)

		byModel, err := s.store.ActiveByModels(ctx, []uuid.UUID{modelID})
		s.Require().NoError(err)
		s.Len(byModel, 1)
	})

	s.Run("second active row for the same model is rejected", func() {
		modelID := uuid.New()
		s.openMembership(modelID)

		dup := models.NewActiveMembership(modelID, uuid.New(), time.Now().UTC(), "setup", "")
		err := s.store.OpenMembership(ctx, dup)
		s.True(errors.Is(err, sentinel.ErrConflict))
	})

	s.Run("close is single-shot", func() {
		rec := s.openMembership(uuid.New())
		at := time.Now().UTC()

		s.Require().NoError(s.store.CloseMembership(ctx, rec.ID, at))
		err := s.store.CloseMembership(ctx, rec.ID, at)
		s.True(errors.Is(err, sentinel.ErrInvalidState))
	})

	s.Run("closed row keeps its history", func() {
		modelID := uuid.New()
		rec := s.openMembership(modelID)
		s.Require().NoError(s.store.CloseMembership(ctx, rec.ID, time.Now().UTC()))

		history, err := s.store.LedgerByModel(ctx, modelID)
		s.Require().NoError(err)
		s.Require().Len(history, 1)
		s.Equal(models.MembershipClosed, history[0].Status)

		active, err := s.store.ActiveByModels(ctx, []uuid.UUID{modelID})
		s.Require().NoError(err)
		s.Empty(active)
	})
}

func (s *InMemorySuite) TestProjection() {
	ctx := context.Background()

	s.Run("insert count delete", func() {
		modelID := uuid.New()
		row := &models.ProjectionRow{PlanID: s.planID, ModelID: modelID, AssignedAt: time.Now()}
		s.Require().NoError(s.store.InsertProjection(ctx, row))

		s.True(errors.Is(s.store.InsertProjection(ctx, row), sentinel.ErrConflict))

		count, err := s.store.CountProjection(ctx, s.planID)
		s.Require().NoError(err)
		s.Equal(1, count)

		s.Require().NoError(s.store.DeleteProjection(ctx, s.planID, modelID))
		count, err = s.store.CountProjection(ctx, s.planID)
		s.Require().NoError(err)
		s.Zero(count)
	})
}

func (s *InMemorySuite) TestHasBlockingCycle() {
	ctx := context.Background()

	blocked, err := s.store.HasBlockingCycle(ctx, s.planID)
	s.Require().NoError(err)
	s.False(blocked)

	s.store.SeedCycleStatus(s.planID, cyclemodels.CycleStatusApproved)
	blocked, err = s.store.HasBlockingCycle(ctx, s.planID)
	s.Require().NoError(err)
	s.False(blocked, "terminal statuses do not pin membership")

	s.store.SeedCycleStatus(s.planID, cyclemodels.CycleStatusCollecting)
	blocked, err = s.store.HasBlockingCycle(ctx, s.planID)
	s.Require().NoError(err)
	s.True(blocked)
}

func (s *InMemorySuite) TestSnapshotRestore() {
	ctx := context.Background()
	modelID := uuid.New()
	s.openMembership(modelID)

	restore := s.store.Snapshot()

	s.openMembership(uuid.New())
	s.Require().NoError(s.store.MarkPlansDirty(ctx, []uuid.UUID{s.planID}))

	restore()

	active, err := s.store.ActiveByPlan(ctx, s.planID)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(modelID, active[0].ModelID)

	plan, err := s.store.GetPlan(ctx, s.planID)
	s.Require().NoError(err)
	s.False(plan.Dirty)
}
