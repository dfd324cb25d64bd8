package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "modelgov/pkg/domain-errors"
)

// PlanStatus is the administrative lifecycle of a monitoring plan.
type PlanStatus string

const (
	PlanStatusActive  PlanStatus = "active"
	PlanStatusRetired PlanStatus = "retired"
)

// Plan is an administrative grouping of models monitored together on a
// shared cadence.
//
// Invariants:
//   - Name is non-empty and at most 256 characters
//   - A plan is never physically deleted while cycles reference it; it is
//     retired instead
//   - Dirty is a last-write-wins signal: any membership change sets it, the
//     recompute job clears it after refreshing the cached ModelCount
type Plan struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Status     PlanStatus `json:"status"`
	Dirty      bool       `json:"dirty"`
	ModelCount int        `json:"model_count"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewPlan constructs a Plan, validating invariants.
func NewPlan(id uuid.UUID, name string, now time.Time) (*Plan, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "plan name is required")
	}
	if len(name) > 256 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "plan name exceeds 256 characters")
	}
	return &Plan{
		ID:        id,
		Name:      name,
		Status:    PlanStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (p *Plan) IsActive() bool {
	return p.Status == PlanStatusActive
}
