package recompute

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"modelgov/internal/membership/models"
	"modelgov/internal/membership/store"
)

func seedDirtyPlan(t *testing.T, mem *store.InMemory, modelCount int) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	planID := uuid.New()
	mem.SeedPlan(&models.Plan{ID: planID, Name: "plan"})
	for i := 0; i < modelCount; i++ {
		require.NoError(t, mem.InsertProjection(ctx, &models.ProjectionRow{
			PlanID:  planID,
			ModelID: uuid.New(),
		}))
	}
	require.NoError(t, mem.MarkPlansDirty(ctx, []uuid.UUID{planID}))
	return planID
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("refreshes counts and clears the dirty flag", func(t *testing.T) {
		mem := store.NewInMemory()
		a := seedDirtyPlan(t, mem, 3)
		b := seedDirtyPlan(t, mem, 0)

		job := New(mem, nil, 2)
		n, err := job.RunOnce(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		planA, err := mem.GetPlan(ctx, a)
		require.NoError(t, err)
		require.Equal(t, 3, planA.ModelCount)
		require.False(t, planA.Dirty)

		planB, err := mem.GetPlan(ctx, b)
		require.NoError(t, err)
		require.Equal(t, 0, planB.ModelCount)
		require.False(t, planB.Dirty)
	})

	t.Run("nothing dirty is a cheap no-op", func(t *testing.T) {
		mem := store.NewInMemory()
		job := New(mem, nil, 1)
		n, err := job.RunOnce(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("clean plans are untouched", func(t *testing.T) {
		mem := store.NewInMemory()
		planID := uuid.New()
		mem.SeedPlan(&models.Plan{ID: planID, Name: "clean", ModelCount: 7})
		seedDirtyPlan(t, mem, 1)

		job := New(mem, nil, 1)
		_, err := job.RunOnce(ctx)
		require.NoError(t, err)

		plan, err := mem.GetPlan(ctx, planID)
		require.NoError(t, err)
		require.Equal(t, 7, plan.ModelCount, "stale count persists until the plan is marked dirty")
	})
}
