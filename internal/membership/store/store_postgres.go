package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"modelgov/internal/membership/models"
	"modelgov/pkg/platform/sentinel"
)

// runner abstracts *sql.DB and *sql.Tx so the same store code serves both the
// plain read path and the transaction-scoped write path.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists the membership ledger, the current-membership
// projection, and plan rows in PostgreSQL.
//
// The store is pure I/O. Lock ordering, re-validation, and transfer rules
// belong to the membership service; callers that need row locks must run the
// store against a transaction (NewPostgresTx).
type PostgresStore struct {
	q runner
}

// NewPostgres constructs a store over a connection pool (read path).
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{q: db}
}

// NewPostgresTx constructs a store bound to an open transaction (write path).
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{q: tx}
}

const membershipColumns = `id, model_id, plan_id, status, effective_from, effective_to, actor, reason`

func (s *PostgresStore) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	query := `
		SELECT id, name, status, dirty, model_count, created_at, updated_at
		FROM monitoring_plans
		WHERE id = $1
	`
	plan, err := scanPlan(s.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return plan, nil
}

// LockPlans acquires blocking row locks on the given plans. The ORDER BY
// matches the service's lock-order helper so every writer locks plan rows in
// the same ascending sequence.
func (s *PostgresStore) LockPlans(ctx context.Context, planIDs []uuid.UUID) ([]*models.Plan, error) {
	if len(planIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, name, status, dirty, model_count, created_at, updated_at
		FROM monitoring_plans
		WHERE id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE
	`
	rows, err := s.q.QueryContext(ctx, query, pq.Array(uuidStrings(planIDs)))
	if err != nil {
		return nil, fmt.Errorf("lock plans: %w", err)
	}
	defer rows.Close()

	var plans []*models.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("lock plans scan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// MarkPlansDirty flags plans for the asynchronous recompute job.
func (s *PostgresStore) MarkPlansDirty(ctx context.Context, planIDs []uuid.UUID) error {
	if len(planIDs) == 0 {
		return nil
	}
	query := `
		UPDATE monitoring_plans
		SET dirty = TRUE, updated_at = NOW()
		WHERE id = ANY($1::uuid[])
	`
	if _, err := s.q.ExecContext(ctx, query, pq.Array(uuidStrings(planIDs))); err != nil {
		return fmt.Errorf("mark plans dirty: %w", err)
	}
	return nil
}

// ListDirtyPlans returns plans flagged for recomputation, oldest first.
func (s *PostgresStore) ListDirtyPlans(ctx context.Context, limit int) ([]*models.Plan, error) {
	query := `
		SELECT id, name, status, dirty, model_count, created_at, updated_at
		FROM monitoring_plans
		WHERE dirty = TRUE
		ORDER BY updated_at
		LIMIT $1
	`
	rows, err := s.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list dirty plans: %w", err)
	}
	defer rows.Close()

	var plans []*models.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("list dirty plans scan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// SetPlanModelCount refreshes the cached count and clears the dirty flag.
func (s *PostgresStore) SetPlanModelCount(ctx context.Context, planID uuid.UUID, count int) error {
	query := `
		UPDATE monitoring_plans
		SET model_count = $2, dirty = FALSE, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := s.q.ExecContext(ctx, query, planID, count); err != nil {
		return fmt.Errorf("set plan model count: %w", err)
	}
	return nil
}

// ActiveByPlan returns the active ledger rows for a plan, unlocked.
func (s *PostgresStore) ActiveByPlan(ctx context.Context, planID uuid.UUID) ([]*models.MembershipRecord, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM plan_membership_ledger
		WHERE plan_id = $1 AND status = 'active'
		ORDER BY model_id
	`
	return s.queryMemberships(ctx, query, planID)
}

// ActiveByModels returns the active ledger row of each given model, unlocked.
func (s *PostgresStore) ActiveByModels(ctx context.Context, modelIDs []uuid.UUID) ([]*models.MembershipRecord, error) {
	if len(modelIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + membershipColumns + `
		FROM plan_membership_ledger
		WHERE model_id = ANY($1::uuid[]) AND status = 'active'
		ORDER BY model_id
	`
	return s.queryMemberships(ctx, query, pq.Array(uuidStrings(modelIDs)))
}

// LockActiveByModels acquires blocking row locks on the active ledger row of
// each given model. Ascending model order; see LockPlans.
func (s *PostgresStore) LockActiveByModels(ctx context.Context, modelIDs []uuid.UUID) ([]*models.MembershipRecord, error) {
	if len(modelIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + membershipColumns + `
		FROM plan_membership_ledger
		WHERE model_id = ANY($1::uuid[]) AND status = 'active'
		ORDER BY model_id
		FOR UPDATE
	`
	return s.queryMemberships(ctx, query, pq.Array(uuidStrings(modelIDs)))
}

// CloseMembership stamps effective_to on an active ledger row. The status
// guard makes closure single-shot: closed rows are history and stay closed.
func (s *PostgresStore) CloseMembership(ctx context.Context, recordID uuid.UUID, at time.Time) error {
	query := `
		UPDATE plan_membership_ledger
		SET status = 'closed', effective_to = $2
		WHERE id = $1 AND status = 'active'
	`
	result, err := s.q.ExecContext(ctx, query, recordID, at)
	if err != nil {
		return fmt.Errorf("close membership: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("close membership rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

// OpenMembership appends a new active ledger row.
func (s *PostgresStore) OpenMembership(ctx context.Context, rec *models.MembershipRecord) error {
	query := `
		INSERT INTO plan_membership_ledger (id, model_id, plan_id, status, effective_from, effective_to, actor, reason)
		VALUES ($1, $2, $3, $4, $5, NULL, $6, $7)
	`
	_, err := s.q.ExecContext(ctx, query,
		rec.ID, rec.ModelID, rec.PlanID, rec.Status, rec.EffectiveFrom, rec.Actor, rec.Reason)
	if err != nil {
		return fmt.Errorf("open membership: %w", err)
	}
	return nil
}

// InsertProjection adds the (plan, model) pair to the current-membership
// index. Must run in the same transaction as the ledger write it mirrors.
func (s *PostgresStore) InsertProjection(ctx context.Context, row *models.ProjectionRow) error {
	query := `
		INSERT INTO plan_membership_current (plan_id, model_id, assigned_at)
		VALUES ($1, $2, $3)
	`
	if _, err := s.q.ExecContext(ctx, query, row.PlanID, row.ModelID, row.AssignedAt); err != nil {
		return fmt.Errorf("insert projection: %w", err)
	}
	return nil
}

// DeleteProjection removes the (plan, model) pair from the index.
func (s *PostgresStore) DeleteProjection(ctx context.Context, planID, modelID uuid.UUID) error {
	query := `DELETE FROM plan_membership_current WHERE plan_id = $1 AND model_id = $2`
	if _, err := s.q.ExecContext(ctx, query, planID, modelID); err != nil {
		return fmt.Errorf("delete projection: %w", err)
	}
	return nil
}

// ProjectionByPlan returns the plan's current membership from the index.
func (s *PostgresStore) ProjectionByPlan(ctx context.Context, planID uuid.UUID) ([]*models.ProjectionRow, error) {
	query := `
		SELECT plan_id, model_id, assigned_at
		FROM plan_membership_current
		WHERE plan_id = $1
		ORDER BY model_id
	`
	rows, err := s.q.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("projection by plan: %w", err)
	}
	defer rows.Close()

	var out []*models.ProjectionRow
	for rows.Next() {
		var row models.ProjectionRow
		if err := rows.Scan(&row.PlanID, &row.ModelID, &row.AssignedAt); err != nil {
			return nil, fmt.Errorf("projection scan: %w", err)
		}
		out = append(out, &row)
	}
	return out, rows.Err()
}

// CountProjection returns the plan's current model count from the index.
func (s *PostgresStore) CountProjection(ctx context.Context, planID uuid.UUID) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM plan_membership_current WHERE plan_id = $1`, planID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count projection: %w", err)
	}
	return count, nil
}

// HasBlockingCycle reports whether any cycle of the plan is in a
// transfer-blocking status.
func (s *PostgresStore) HasBlockingCycle(ctx context.Context, planID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM monitoring_cycles
			WHERE plan_id = $1
			  AND status IN ('collecting', 'under_review', 'pending_approval')
		)
	`
	var blocked bool
	if err := s.q.QueryRowContext(ctx, query, planID).Scan(&blocked); err != nil {
		return false, fmt.Errorf("has blocking cycle: %w", err)
	}
	return blocked, nil
}

// LedgerByModel returns a model's full membership history, oldest first.
func (s *PostgresStore) LedgerByModel(ctx context.Context, modelID uuid.UUID) ([]*models.MembershipRecord, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM plan_membership_ledger
		WHERE model_id = $1
		ORDER BY effective_from
	`
	return s.queryMemberships(ctx, query, modelID)
}

func (s *PostgresStore) queryMemberships(ctx context.Context, query string, args ...any) ([]*models.MembershipRecord, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	var records []*models.MembershipRecord
	for rows.Next() {
		rec, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("membership scan: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(row scanner) (*models.Plan, error) {
	var plan models.Plan
	if err := row.Scan(&plan.ID, &plan.Name, &plan.Status, &plan.Dirty, &plan.ModelCount, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
		return nil, err
	}
	return &plan, nil
}

func scanMembership(row scanner) (*models.MembershipRecord, error) {
	var rec models.MembershipRecord
	var effectiveTo sql.NullTime
	if err := row.Scan(&rec.ID, &rec.ModelID, &rec.PlanID, &rec.Status, &rec.EffectiveFrom, &effectiveTo, &rec.Actor, &rec.Reason); err != nil {
		return nil, err
	}
	if effectiveTo.Valid {
		rec.EffectiveTo = &effectiveTo.Time
	}
	return &rec, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
