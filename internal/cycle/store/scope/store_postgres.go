package scope

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"modelgov/internal/cycle/models"
)

// PostgresStore persists materialized cycle scope rows. The table is
// append-only from this core's perspective: rows are inserted exactly once
// and never updated or deleted.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Exists reports whether the cycle already has materialized scope rows.
func (s *PostgresStore) Exists(ctx context.Context, cycleID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM cycle_scope WHERE cycle_id = $1)`, cycleID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("cycle scope exists: %w", err)
	}
	return exists, nil
}

// InsertBatch appends scope rows. ON CONFLICT DO NOTHING keeps concurrent
// materializations of the same cycle idempotent: the first writer wins and
// the scope is never overwritten.
func (s *PostgresStore) InsertBatch(ctx context.Context, entries []*models.ScopeEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scope insert: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cycle_scope (cycle_id, model_id, model_name, locked_at, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cycle_id, model_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare scope insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.ExecContext(ctx, entry.CycleID, entry.ModelID, entry.ModelName, entry.LockedAt, entry.Source); err != nil {
			return fmt.Errorf("insert scope row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scope insert: %w", err)
	}
	return nil
}

// ListByCycle returns the cycle's frozen scope, if any.
func (s *PostgresStore) ListByCycle(ctx context.Context, cycleID uuid.UUID) ([]*models.ScopeEntry, error) {
	query := `
		SELECT cycle_id, model_id, model_name, locked_at, source
		FROM cycle_scope
		WHERE cycle_id = $1
		ORDER BY model_id
	`
	rows, err := s.db.QueryContext(ctx, query, cycleID)
	if err != nil {
		return nil, fmt.Errorf("list cycle scope: %w", err)
	}
	defer rows.Close()

	var entries []*models.ScopeEntry
	for rows.Next() {
		var entry models.ScopeEntry
		if err := rows.Scan(&entry.CycleID, &entry.ModelID, &entry.ModelName, &entry.LockedAt, &entry.Source); err != nil {
			return nil, fmt.Errorf("scan scope row: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
