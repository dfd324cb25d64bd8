package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is emitted from domain logic to capture key governance actions.
// Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	Action    Action
	ActorID   string
	Reason    string
	RequestID string
	PlanID    uuid.UUID
	ModelID   uuid.UUID
	CycleID   uuid.UUID
	// Detail carries free-form context, e.g. the membership delta of a
	// replace operation.
	Detail string
}

// Action identifies what happened.
type Action string

const (
	ActionMembershipReplaced Action = "membership_replaced"
	ActionModelTransferred   Action = "model_transferred"
	ActionCycleScopeLocked   Action = "cycle_scope_locked"
	ActionPlanRecomputed     Action = "plan_recomputed"
)

func nullUUID(s string) any {
	if s == "" || s == uuid.Nil.String() {
		return nil
	}
	return s
}

func parseUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}
