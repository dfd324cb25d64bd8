package scope

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelgov/internal/cycle/models"
)

func TestInMemoryScopeStore(t *testing.T) {
	ctx := context.Background()

	entry := func(cycleID, modelID uuid.UUID, name string) *models.ScopeEntry {
		return &models.ScopeEntry{
			CycleID:   cycleID,
			ModelID:   modelID,
			ModelName: name,
			LockedAt:  time.Now().UTC(),
			Source:    models.ScopeSourceLive,
		}
	}

	t.Run("exists flips after first insert", func(t *testing.T) {
		store := NewInMemory()
		cycleID := uuid.New()

		exists, err := store.Exists(ctx, cycleID)
		require.NoError(t, err)
		assert.False(t, exists)

		require.NoError(t, store.InsertBatch(ctx, []*models.ScopeEntry{entry(cycleID, uuid.New(), "pd-scorecard")}))

		exists, err = store.Exists(ctx, cycleID)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("duplicate rows keep the first writer", func(t *testing.T) {
		store := NewInMemory()
		cycleID := uuid.New()
		modelID := uuid.New()

		require.NoError(t, store.InsertBatch(ctx, []*models.ScopeEntry{entry(cycleID, modelID, "first")}))
		require.NoError(t, store.InsertBatch(ctx, []*models.ScopeEntry{entry(cycleID, modelID, "second")}))

		entries, err := store.ListByCycle(ctx, cycleID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "first", entries[0].ModelName)
	})

	t.Run("list is scoped per cycle", func(t *testing.T) {
		store := NewInMemory()
		a, b := uuid.New(), uuid.New()

		require.NoError(t, store.InsertBatch(ctx, []*models.ScopeEntry{
			entry(a, uuid.New(), "pd-scorecard"),
			entry(a, uuid.New(), "lgd-regression"),
			entry(b, uuid.New(), "var-engine"),
		}))

		entriesA, err := store.ListByCycle(ctx, a)
		require.NoError(t, err)
		assert.Len(t, entriesA, 2)

		entriesB, err := store.ListByCycle(ctx, b)
		require.NoError(t, err)
		assert.Len(t, entriesB, 1)
	})
}
