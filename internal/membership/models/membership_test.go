package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "modelgov/pkg/domain-errors"
)

func TestMembershipRecordClose(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := NewActiveMembership(uuid.New(), uuid.New(), from, "alice", "onboarding")

	require.True(t, rec.IsActive())
	require.Nil(t, rec.EffectiveTo)

	at := from.Add(24 * time.Hour)
	require.NoError(t, rec.Close(at))
	assert.Equal(t, MembershipClosed, rec.Status)
	require.NotNil(t, rec.EffectiveTo)
	assert.Equal(t, at, *rec.EffectiveTo)

	// The ledger is append-only history; a closed row never changes again.
	err := rec.Close(at.Add(time.Hour))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	assert.Equal(t, at, *rec.EffectiveTo)
}

func TestMembershipRecordEffectiveAt(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 6, 0)
	rec := NewActiveMembership(uuid.New(), uuid.New(), from, "alice", "")

	assert.False(t, rec.EffectiveAt(from.Add(-time.Second)))
	assert.True(t, rec.EffectiveAt(from))
	assert.True(t, rec.EffectiveAt(from.AddDate(1, 0, 0)), "active record covers any future instant")

	require.NoError(t, rec.Close(to))
	assert.True(t, rec.EffectiveAt(to.Add(-time.Second)))
	assert.False(t, rec.EffectiveAt(to), "interval is half-open")
	assert.False(t, rec.EffectiveAt(to.Add(time.Hour)))
}
