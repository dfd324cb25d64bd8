package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"modelgov/internal/audit"
	"modelgov/internal/membership/metrics"
	"modelgov/internal/membership/models"
	dErrors "modelgov/pkg/domain-errors"
)

// Store is the transaction-scoped persistence surface of the membership
// service. One implementation runs against a *sql.Tx (PostgresStore), the
// other against mutex-guarded maps (InMemory); StoreTx decides which.
//
// The service is the only writer of the ledger and projection. Every other
// component reads them through its own narrow interfaces.
type Store interface {
	GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	LockPlans(ctx context.Context, planIDs []uuid.UUID) ([]*models.Plan, error)
	MarkPlansDirty(ctx context.Context, planIDs []uuid.UUID) error

	ActiveByPlan(ctx context.Context, planID uuid.UUID) ([]*models.MembershipRecord, error)
	ActiveByModels(ctx context.Context, modelIDs []uuid.UUID) ([]*models.MembershipRecord, error)
	LockActiveByModels(ctx context.Context, modelIDs []uuid.UUID) ([]*models.MembershipRecord, error)
	CloseMembership(ctx context.Context, recordID uuid.UUID, at time.Time) error
	OpenMembership(ctx context.Context, rec *models.MembershipRecord) error

	InsertProjection(ctx context.Context, row *models.ProjectionRow) error
	DeleteProjection(ctx context.Context, planID, modelID uuid.UUID) error

	HasBlockingCycle(ctx context.Context, planID uuid.UUID) (bool, error)
}

// StoreTx runs a function against a Store inside one atomic transaction.
// Any error rolls back every write the function performed.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

// AuditPublisher appends what-changed-by-whom records. Fire-and-forget from
// the service's perspective: a committed mutation never fails on audit.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// MembershipService owns all mutation of the membership ledger and its
// projection: the locking protocol, transfer validation, and dirty-marking
// of affected plans.
type MembershipService struct {
	tx             StoreTx
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *MembershipService)

func WithLogger(logger *slog.Logger) Option {
	return func(s *MembershipService) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *MembershipService) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *MembershipService) {
		s.metrics = m
	}
}

// New constructs a MembershipService over the given transaction runner.
func New(tx StoreTx, opts ...Option) *MembershipService {
	s := &MembershipService{tx: tx}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryStoreTx wraps a Store in a serializing transaction runner for
// tests and local runs. Writers take a global lock, so lock acquisition on
// individual rows never blocks; rollback is emulated through the store's
// Snapshot when it offers one.
func NewInMemoryStoreTx(store Store) StoreTx {
	return &inMemoryStoreTx{store: store}
}

type snapshotter interface {
	Snapshot() func()
}

type inMemoryStoreTx struct {
	mu    sync.Mutex
	store Store
}

func (t *inMemoryStoreTx) RunInTx(ctx context.Context, fn func(store Store) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	var restore func()
	if snap, ok := t.store.(snapshotter); ok {
		restore = snap.Snapshot()
	}
	if err := fn(t.store); err != nil {
		if restore != nil {
			restore()
		}
		return err
	}
	return nil
}
