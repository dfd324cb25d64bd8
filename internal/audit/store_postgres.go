package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore appends audit rows to the governance audit log.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO governance_audit_log (occurred_at, action, actor_id, reason, request_id, plan_id, model_id, cycle_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.Timestamp, event.Action, event.ActorID, event.Reason, event.RequestID,
		nullUUID(event.PlanID.String()), nullUUID(event.ModelID.String()), nullUUID(event.CycleID.String()),
		event.Detail,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByPlan(ctx context.Context, planID string) ([]Event, error) {
	query := `
		SELECT occurred_at, action, actor_id, reason, request_id,
		       COALESCE(plan_id::text, ''), COALESCE(model_id::text, ''), COALESCE(cycle_id::text, ''), detail
		FROM governance_audit_log
		WHERE plan_id = $1
		ORDER BY occurred_at
	`
	rows, err := s.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var planStr, modelStr, cycleStr string
		if err := rows.Scan(&event.Timestamp, &event.Action, &event.ActorID, &event.Reason,
			&event.RequestID, &planStr, &modelStr, &cycleStr, &event.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.PlanID = parseUUID(planStr)
		event.ModelID = parseUUID(modelStr)
		event.CycleID = parseUUID(cycleStr)
		events = append(events, event)
	}
	return events, rows.Err()
}
