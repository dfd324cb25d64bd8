package cycle

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"modelgov/internal/cycle/models"
	"modelgov/pkg/platform/sentinel"
)

// PostgresStore reads cycle rows and the monitoring results submitted under
// them. The workflow subsystem owns cycle lifecycle; this store never writes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.Cycle, error) {
	query := `
		SELECT id, plan_id, status, plan_version_id, period_start, period_end, created_at
		FROM monitoring_cycles
		WHERE id = $1
	`
	var cycle models.Cycle
	var versionID sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&cycle.ID, &cycle.PlanID, &cycle.Status, &versionID,
		&cycle.PeriodStart, &cycle.PeriodEnd, &cycle.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get cycle: %w", err)
	}
	if versionID.Valid {
		parsed, err := uuid.Parse(versionID.String)
		if err != nil {
			return nil, fmt.Errorf("parse plan version id: %w", err)
		}
		cycle.PlanVersionID = &parsed
	}
	return &cycle, nil
}

// DistinctResultModels returns the distinct models with any submitted
// monitoring result under the cycle. The resolver uses it to infer scope for
// historical cycles that were never materialized.
func (s *PostgresStore) DistinctResultModels(ctx context.Context, cycleID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT model_id
		FROM monitoring_results
		WHERE cycle_id = $1
		ORDER BY model_id
	`
	rows, err := s.db.QueryContext(ctx, query, cycleID)
	if err != nil {
		return nil, fmt.Errorf("distinct result models: %w", err)
	}
	defer rows.Close()

	var modelIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan result model: %w", err)
		}
		modelIDs = append(modelIDs, id)
	}
	return modelIDs, rows.Err()
}
