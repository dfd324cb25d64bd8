// Package scope answers "which models are in cycle C" and freezes that
// answer when a cycle starts executing.
package scope

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"modelgov/internal/catalog"
	"modelgov/internal/cycle/metrics"
	"modelgov/internal/cycle/models"
	memmodels "modelgov/internal/membership/models"
	"modelgov/internal/snapshot"
	dErrors "modelgov/pkg/domain-errors"
	"modelgov/pkg/platform/sentinel"
)

var tracer = otel.Tracer("modelgov/cycle/scope")

// ScopeStore is the materialized cycle scope table: write-once per cycle.
type ScopeStore interface {
	Exists(ctx context.Context, cycleID uuid.UUID) (bool, error)
	InsertBatch(ctx context.Context, entries []*models.ScopeEntry) error
	ListByCycle(ctx context.Context, cycleID uuid.UUID) ([]*models.ScopeEntry, error)
}

// ResultsSource reports which models have submitted results under a cycle.
type ResultsSource interface {
	DistinctResultModels(ctx context.Context, cycleID uuid.UUID) ([]uuid.UUID, error)
}

// LiveMembership is the current-membership projection read path.
type LiveMembership interface {
	ProjectionByPlan(ctx context.Context, planID uuid.UUID) ([]*memmodels.ProjectionRow, error)
}

// Resolution is the resolver's answer: the scope plus which source supplied it.
type Resolution struct {
	Models []models.ScopedModel
	Source models.ScopeSource
}

// Resolver computes a cycle's model scope as a pure read over committed
// state. Sources are tried in fixed priority order and the first non-empty
// answer wins; it takes no locks and is safe to call concurrently with
// writers.
type Resolver struct {
	scopes    ScopeStore
	snapshots snapshot.Store
	results   ResultsSource
	live      LiveMembership
	directory catalog.Directory
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type ResolverOption func(r *Resolver)

func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithResolverMetrics(m *metrics.Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// NewResolver constructs a Resolver over the four scope sources.
func NewResolver(scopes ScopeStore, snapshots snapshot.Store, results ResultsSource, live LiveMembership, directory catalog.Directory, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		scopes:    scopes,
		snapshots: snapshots,
		results:   results,
		live:      live,
		directory: directory,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// strategy is one scope source in the fallback chain. Returning an empty
// list means "no answer here, ask the next source".
type strategy struct {
	source models.ScopeSource
	fetch  func(ctx context.Context, cycle *models.Cycle) ([]models.ScopedModel, error)
}

func (r *Resolver) strategies() []strategy {
	return []strategy{
		{source: models.ScopeSourceMaterialized, fetch: r.fromMaterialized},
		{source: models.ScopeSourcePlanVersion, fetch: r.fromPlanVersion},
		{source: models.ScopeSourceResults, fetch: r.fromResults},
		{source: models.ScopeSourceLive, fetch: r.fromLive},
	}
}

// Resolve returns the cycle's model scope. Sources in priority order:
// materialized scope, bound plan version, submitted results, live
// membership. An empty Resolution (no source had an answer) carries the
// live source tag, since that is the last source consulted.
func (r *Resolver) Resolve(ctx context.Context, cycle *models.Cycle) (*Resolution, error) {
	ctx, span := tracer.Start(ctx, "scope.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("cycle_id", cycle.ID.String()))

	start := time.Now()
	for _, strat := range r.strategies() {
		scoped, err := strat.fetch(ctx, cycle)
		if err != nil {
			span.RecordError(err)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "scope resolution failed")
		}
		if len(scoped) == 0 {
			continue
		}
		if err := r.fillNames(ctx, scoped); err != nil {
			span.RecordError(err)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "scope name lookup failed")
		}
		r.observe(start, strat.source)
		span.SetAttributes(attribute.String("source", string(strat.source)))
		return &Resolution{Models: scoped, Source: strat.source}, nil
	}

	r.observe(start, models.ScopeSourceLive)
	return &Resolution{Source: models.ScopeSourceLive}, nil
}

func (r *Resolver) fromMaterialized(ctx context.Context, cycle *models.Cycle) ([]models.ScopedModel, error) {
	entries, err := r.scopes.ListByCycle(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}
	scoped := make([]models.ScopedModel, 0, len(entries))
	for _, entry := range entries {
		scoped = append(scoped, models.ScopedModel{ModelID: entry.ModelID, Name: entry.ModelName})
	}
	return scoped, nil
}

func (r *Resolver) fromPlanVersion(ctx context.Context, cycle *models.Cycle) ([]models.ScopedModel, error) {
	if !cycle.HasBoundVersion() {
		return nil, nil
	}
	version, err := r.snapshots.Get(ctx, cycle.PlanID, *cycle.PlanVersionID)
	if err != nil {
		// A dangling version reference degrades to the next source rather
		// than failing the read.
		if errors.Is(err, sentinel.ErrNotFound) {
			r.warn(ctx, "bound plan version missing, falling through", cycle)
			return nil, nil
		}
		return nil, err
	}
	scoped := make([]models.ScopedModel, 0, len(version.Models))
	for _, frozen := range version.Models {
		scoped = append(scoped, models.ScopedModel{ModelID: frozen.ModelID, Name: frozen.Name})
	}
	return scoped, nil
}

func (r *Resolver) fromResults(ctx context.Context, cycle *models.Cycle) ([]models.ScopedModel, error) {
	modelIDs, err := r.results.DistinctResultModels(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}
	scoped := make([]models.ScopedModel, 0, len(modelIDs))
	for _, id := range modelIDs {
		scoped = append(scoped, models.ScopedModel{ModelID: id})
	}
	return scoped, nil
}

func (r *Resolver) fromLive(ctx context.Context, cycle *models.Cycle) ([]models.ScopedModel, error) {
	rows, err := r.live.ProjectionByPlan(ctx, cycle.PlanID)
	if err != nil {
		return nil, err
	}
	scoped := make([]models.ScopedModel, 0, len(rows))
	for _, row := range rows {
		scoped = append(scoped, models.ScopedModel{ModelID: row.ModelID})
	}
	return scoped, nil
}

// fillNames resolves display names for entries the source did not carry one
// for. Best effort: models missing from the inventory keep an empty name.
func (r *Resolver) fillNames(ctx context.Context, scoped []models.ScopedModel) error {
	var missing []uuid.UUID
	for _, sm := range scoped {
		if sm.Name == "" {
			missing = append(missing, sm.ModelID)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	names, err := r.directory.Names(ctx, missing)
	if err != nil {
		return err
	}
	for i := range scoped {
		if scoped[i].Name == "" {
			scoped[i].Name = names[scoped[i].ModelID]
		}
	}
	return nil
}

func (r *Resolver) observe(start time.Time, source models.ScopeSource) {
	if r.metrics == nil {
		return
	}
	r.metrics.ObserveResolve(start)
	r.metrics.ResolvedTotal.WithLabelValues(string(source)).Inc()
}

func (r *Resolver) warn(ctx context.Context, msg string, cycle *models.Cycle) {
	if r.logger != nil {
		r.logger.WarnContext(ctx, msg, "cycle_id", cycle.ID.String(), "plan_id", cycle.PlanID.String())
	}
}
