package models

import (
	"time"

	"github.com/google/uuid"
)

// CycleStatus is the lifecycle of one monitoring cycle.
type CycleStatus string

const (
	CycleStatusPending         CycleStatus = "pending"
	CycleStatusCollecting      CycleStatus = "collecting"
	CycleStatusUnderReview     CycleStatus = "under_review"
	CycleStatusPendingApproval CycleStatus = "pending_approval"
	CycleStatusApproved        CycleStatus = "approved"
	CycleStatusOnHold          CycleStatus = "on_hold"
	CycleStatusCancelled       CycleStatus = "cancelled"
)

// TransferBlocking reports whether a cycle in this status pins its plan's
// membership: while any cycle of a plan is executing, models cannot be moved
// out from under it.
func (s CycleStatus) TransferBlocking() bool {
	switch s {
	case CycleStatusCollecting, CycleStatusUnderReview, CycleStatusPendingApproval:
		return true
	}
	return false
}

// Cycle is one time-boxed execution of a plan's monitoring process. The
// workflow subsystem owns its lifecycle; this core only reads it.
type Cycle struct {
	ID            uuid.UUID   `json:"id"`
	PlanID        uuid.UUID   `json:"plan_id"`
	Status        CycleStatus `json:"status"`
	PlanVersionID *uuid.UUID  `json:"plan_version_id,omitempty"`
	PeriodStart   time.Time   `json:"period_start"`
	PeriodEnd     time.Time   `json:"period_end"`
	CreatedAt     time.Time   `json:"created_at"`
}

// HasBoundVersion reports whether the cycle was pinned to a plan version
// snapshot at creation time.
func (c *Cycle) HasBoundVersion() bool {
	return c.PlanVersionID != nil
}
