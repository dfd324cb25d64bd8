package service

import (
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLockOrder(t *testing.T) {
	t.Run("sorts ascending by canonical text", func(t *testing.T) {
		ids := []uuid.UUID{
			uuid.MustParse("cccccccc-0000-0000-0000-000000000000"),
			uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000"),
			uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000"),
		}
		got := lockOrder(ids)
		assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool {
			return got[i].String() < got[j].String()
		}))
		assert.Len(t, got, 3)
	})

	t.Run("dedupes while preserving the order guarantee", func(t *testing.T) {
		id := uuid.New()
		got := lockOrder([]uuid.UUID{id, id, id})
		assert.Equal(t, []uuid.UUID{id}, got)
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		assert.Empty(t, lockOrder(nil))
	})

	t.Run("deterministic across permutations", func(t *testing.T) {
		ids := make([]uuid.UUID, 8)
		for i := range ids {
			ids[i] = uuid.New()
		}
		reversed := make([]uuid.UUID, len(ids))
		for i, id := range ids {
			reversed[len(ids)-1-i] = id
		}
		assert.Equal(t, lockOrder(ids), lockOrder(reversed))
	})
}
