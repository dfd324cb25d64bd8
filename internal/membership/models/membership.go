package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "modelgov/pkg/domain-errors"
)

// MembershipStatus tags ledger rows as a closed/active variant so the
// "closed rows are never rewritten" rule is structural, not convention.
type MembershipStatus string

const (
	MembershipActive MembershipStatus = "active"
	MembershipClosed MembershipStatus = "closed"
)

// MembershipRecord is one ledger fact: model M belonged to plan P from
// EffectiveFrom until EffectiveTo (nil while active).
//
// Invariants:
//   - for every model and every instant, at most one record is effective
//   - a record is mutated exactly once in its life: Close stamps EffectiveTo
//     when the membership is superseded; nothing else ever changes
//   - only the membership service writes these rows
type MembershipRecord struct {
	ID            uuid.UUID        `json:"id"`
	ModelID       uuid.UUID        `json:"model_id"`
	PlanID        uuid.UUID        `json:"plan_id"`
	Status        MembershipStatus `json:"status"`
	EffectiveFrom time.Time        `json:"effective_from"`
	EffectiveTo   *time.Time       `json:"effective_to,omitempty"`
	Actor         string           `json:"actor"`
	Reason        string           `json:"reason"`
}

// NewActiveMembership opens a ledger row for a model joining a plan.
func NewActiveMembership(modelID, planID uuid.UUID, from time.Time, actor, reason string) *MembershipRecord {
	return &MembershipRecord{
		ID:            uuid.New(),
		ModelID:       modelID,
		PlanID:        planID,
		Status:        MembershipActive,
		EffectiveFrom: from,
		Actor:         actor,
		Reason:        reason,
	}
}

// Close stamps the end of the membership interval. Closing an already closed
// row is an invariant violation: the ledger is append-only history.
func (r *MembershipRecord) Close(at time.Time) error {
	if r.Status == MembershipClosed {
		return dErrors.New(dErrors.CodeInvariantViolation, "membership record already closed")
	}
	r.Status = MembershipClosed
	r.EffectiveTo = &at
	return nil
}

// IsActive reports whether this record is the model's current membership.
func (r *MembershipRecord) IsActive() bool {
	return r.Status == MembershipActive
}

// EffectiveAt reports whether the record covers instant t.
func (r *MembershipRecord) EffectiveAt(t time.Time) bool {
	if t.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo == nil || r.EffectiveTo.After(t)
}

// ProjectionRow is the denormalized "current membership" index: exactly one
// row per currently active (plan, model) pair. It is a pure cache of the
// ledger's active rows and is written only inside the same transaction as
// the ledger change that produced it.
type ProjectionRow struct {
	PlanID     uuid.UUID `json:"plan_id"`
	ModelID    uuid.UUID `json:"model_id"`
	AssignedAt time.Time `json:"assigned_at"`
}
