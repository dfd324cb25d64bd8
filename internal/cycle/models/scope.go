package models

import (
	"time"

	"github.com/google/uuid"
)

// ScopeSource tags which resolution strategy produced a cycle's scope.
type ScopeSource string

const (
	// ScopeSourceMaterialized: the cycle's own frozen scope rows.
	ScopeSourceMaterialized ScopeSource = "materialized"
	// ScopeSourcePlanVersion: the model list frozen in the bound plan
	// version snapshot.
	ScopeSourcePlanVersion ScopeSource = "plan_version"
	// ScopeSourceResults: inferred from monitoring results actually
	// submitted under the cycle. Safety net for cycles predating
	// materialization.
	ScopeSourceResults ScopeSource = "results"
	// ScopeSourceLive: the plan's current membership. Last resort; reflects
	// "now", not "then".
	ScopeSourceLive ScopeSource = "live"
)

// ScopeEntry is one frozen row of a cycle's materialized scope. Written at
// most once per (cycle, model); never updated or deleted afterwards.
type ScopeEntry struct {
	CycleID   uuid.UUID   `json:"cycle_id"`
	ModelID   uuid.UUID   `json:"model_id"`
	ModelName string      `json:"model_name"`
	LockedAt  time.Time   `json:"locked_at"`
	Source    ScopeSource `json:"source"`
}

// ScopedModel is a resolver answer element: a model that is in scope for a
// cycle, with its best-effort display name.
type ScopedModel struct {
	ModelID uuid.UUID `json:"model_id"`
	Name    string    `json:"model_name"`
}
