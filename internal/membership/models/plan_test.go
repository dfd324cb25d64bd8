package models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "modelgov/pkg/domain-errors"
)

func TestNewPlan(t *testing.T) {
	now := time.Now()

	t.Run("valid name", func(t *testing.T) {
		plan, err := NewPlan(uuid.New(), "  credit risk quarterly  ", now)
		require.NoError(t, err)
		assert.Equal(t, "credit risk quarterly", plan.Name)
		assert.Equal(t, PlanStatusActive, plan.Status)
		assert.False(t, plan.Dirty)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		_, err := NewPlan(uuid.New(), "   ", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("overlong name rejected", func(t *testing.T) {
		_, err := NewPlan(uuid.New(), strings.Repeat("x", 257), now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}
