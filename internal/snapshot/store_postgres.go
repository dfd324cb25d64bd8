package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"modelgov/pkg/platform/sentinel"
)

// PostgresStore reads plan versions. The model list is stored as the JSON
// document the versioning subsystem froze, so old snapshots survive schema
// drift in the live tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, planID, versionID uuid.UUID) (*PlanVersion, error) {
	query := `
		SELECT id, plan_id, effective_date, models
		FROM plan_versions
		WHERE plan_id = $1 AND id = $2
	`
	var version PlanVersion
	var modelsJSON []byte
	err := s.db.QueryRowContext(ctx, query, planID, versionID).Scan(
		&version.ID, &version.PlanID, &version.EffectiveDate, &modelsJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get plan version: %w", err)
	}
	if err := json.Unmarshal(modelsJSON, &version.Models); err != nil {
		return nil, fmt.Errorf("decode plan version models: %w", err)
	}
	return &version, nil
}
