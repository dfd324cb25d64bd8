// Package catalog provides read-only access to the model inventory.
// The governance product owns model lifecycle; this core only needs display
// names for scope resolution.
package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Directory resolves model display names in bulk. Missing models are simply
// absent from the returned map; callers decide how to degrade.
type Directory interface {
	Names(ctx context.Context, modelIDs []uuid.UUID) (map[uuid.UUID]string, error)
}
