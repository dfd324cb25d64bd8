package audit

import "context"

// Store is the append-only audit sink. Rows are never updated or deleted.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByPlan(ctx context.Context, planID string) ([]Event, error)
}
