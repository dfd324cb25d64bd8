package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresDirectory reads display names from the model inventory table.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Names(ctx context.Context, modelIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	if len(modelIDs) == 0 {
		return map[uuid.UUID]string{}, nil
	}
	ids := make([]string, len(modelIDs))
	for i, id := range modelIDs {
		ids[i] = id.String()
	}
	query := `
		SELECT id, name
		FROM model_inventory
		WHERE id = ANY($1::uuid[])
	`
	rows, err := d.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lookup model names: %w", err)
	}
	defer rows.Close()

	names := make(map[uuid.UUID]string, len(modelIDs))
	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan model name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}
