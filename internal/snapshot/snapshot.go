// Package snapshot exposes plan version snapshots: immutable configuration
// captures (metrics, thresholds, and the model list frozen with them) that a
// cycle may bind to at creation time. A sibling subsystem produces them; this
// core only reads.
package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PlanVersion is one immutable snapshot of a plan's configuration.
type PlanVersion struct {
	ID            uuid.UUID `json:"id"`
	PlanID        uuid.UUID `json:"plan_id"`
	EffectiveDate time.Time `json:"effective_date"`
	// Models is the membership frozen into this version, with the display
	// names carried at freeze time.
	Models []FrozenModel `json:"models"`
}

// FrozenModel is one model captured inside a plan version.
type FrozenModel struct {
	ModelID uuid.UUID `json:"model_id"`
	Name    string    `json:"model_name"`
}

// Store looks up plan versions. Read-only by contract.
type Store interface {
	Get(ctx context.Context, planID, versionID uuid.UUID) (*PlanVersion, error)
}
