package scope

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"modelgov/internal/audit"
	"modelgov/internal/catalog"
	"modelgov/internal/cycle/metrics"
	"modelgov/internal/cycle/models"
	dErrors "modelgov/pkg/domain-errors"
	"modelgov/pkg/requestcontext"
)

// AuditPublisher appends what-changed-by-whom records.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Materializer freezes a cycle's scope exactly once, when the cycle
// transitions into an executing state. Once rows exist they are permanent
// and authoritative: later membership churn cannot alter a cycle already in
// motion.
type Materializer struct {
	scopes         ScopeStore
	directory      catalog.Directory
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type MaterializerOption func(m *Materializer)

func WithMaterializerLogger(logger *slog.Logger) MaterializerOption {
	return func(m *Materializer) {
		m.logger = logger
	}
}

func WithMaterializerAudit(publisher AuditPublisher) MaterializerOption {
	return func(m *Materializer) {
		m.auditPublisher = publisher
	}
}

func WithMaterializerMetrics(met *metrics.Metrics) MaterializerOption {
	return func(m *Materializer) {
		m.metrics = met
	}
}

func NewMaterializer(scopes ScopeStore, directory catalog.Directory, opts ...MaterializerOption) *Materializer {
	m := &Materializer{scopes: scopes, directory: directory}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type materializeConfig struct {
	lockedAt time.Time
	source   models.ScopeSource
}

type MaterializeOption func(cfg *materializeConfig)

// WithLockedAt overrides the lock timestamp (backfill tooling).
func WithLockedAt(t time.Time) MaterializeOption {
	return func(cfg *materializeConfig) {
		cfg.lockedAt = t
	}
}

// WithSource overrides the recorded resolution source (backfill tooling).
func WithSource(source models.ScopeSource) MaterializeOption {
	return func(cfg *materializeConfig) {
		cfg.source = source
	}
}

// Materialize freezes the given membership list as the cycle's permanent
// scope. Idempotent: a cycle that already has scope rows is left untouched,
// whatever the inputs. An empty membership list writes nothing, leaving the
// cycle to the resolver's results-inference fallback should results appear.
func (m *Materializer) Materialize(ctx context.Context, cycle *models.Cycle, modelIDs []uuid.UUID, opts ...MaterializeOption) error {
	ctx, span := tracer.Start(ctx, "scope.Materialize")
	defer span.End()

	cfg := materializeConfig{
		lockedAt: requestcontext.Now(ctx).UTC(),
		source:   models.ScopeSourceLive,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	exists, err := m.scopes.Exists(ctx, cycle.ID)
	if err != nil {
		span.RecordError(err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing scope")
	}
	if exists {
		if m.metrics != nil {
			m.metrics.MaterializeSkipped.Inc()
		}
		return nil
	}
	if len(modelIDs) == 0 {
		return nil
	}

	names, err := m.directory.Names(ctx, modelIDs)
	if err != nil {
		span.RecordError(err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve model names")
	}

	entries := make([]*models.ScopeEntry, 0, len(modelIDs))
	for _, modelID := range modelIDs {
		entries = append(entries, &models.ScopeEntry{
			CycleID:   cycle.ID,
			ModelID:   modelID,
			ModelName: names[modelID],
			LockedAt:  cfg.lockedAt,
			Source:    cfg.source,
		})
	}
	if err := m.scopes.InsertBatch(ctx, entries); err != nil {
		span.RecordError(err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert scope rows")
	}

	if m.metrics != nil {
		m.metrics.MaterializedTotal.Inc()
	}
	if m.logger != nil {
		m.logger.InfoContext(ctx, "cycle scope locked",
			"cycle_id", cycle.ID.String(),
			"plan_id", cycle.PlanID.String(),
			"models", len(entries),
			"source", string(cfg.source),
			"log_type", "audit",
		)
	}
	if m.auditPublisher != nil {
		event := audit.Event{
			Action:    audit.ActionCycleScopeLocked,
			ActorID:   requestcontext.ActorID(ctx),
			RequestID: requestcontext.RequestID(ctx),
			PlanID:    cycle.PlanID,
			CycleID:   cycle.ID,
			Detail:    string(cfg.source),
		}
		if err := m.auditPublisher.Emit(ctx, event); err != nil && m.logger != nil {
			m.logger.WarnContext(ctx, "audit emit failed", "error", err.Error())
		}
	}
	return nil
}
