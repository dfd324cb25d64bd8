// Package recompute consumes the plan dirty flag: membership writers set it
// fire-and-forget, this job eventually refreshes each flagged plan's cached
// model count and clears it. Lag here is acceptable; correctness of the
// ledger and projection never depends on this job.
package recompute

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"modelgov/internal/membership/models"

	"github.com/google/uuid"
)

const dirtyBatchSize = 100

// Store is the slice of the membership store this job needs.
type Store interface {
	ListDirtyPlans(ctx context.Context, limit int) ([]*models.Plan, error)
	CountProjection(ctx context.Context, planID uuid.UUID) (int, error)
	SetPlanModelCount(ctx context.Context, planID uuid.UUID, count int) error
}

// Job recomputes dirty plans in parallel batches.
type Job struct {
	store       Store
	logger      *slog.Logger
	parallelism int
}

func New(store Store, logger *slog.Logger, parallelism int) *Job {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Job{store: store, logger: logger, parallelism: parallelism}
}

// RunOnce processes one batch of dirty plans and returns how many it
// refreshed. Plans marked dirty while the batch runs are picked up on the
// next tick.
func (j *Job) RunOnce(ctx context.Context) (int, error) {
	plans, err := j.store.ListDirtyPlans(ctx, dirtyBatchSize)
	if err != nil {
		return 0, err
	}
	if len(plans) == 0 {
		return 0, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(j.parallelism)
	for _, plan := range plans {
		g.Go(func() error {
			count, err := j.store.CountProjection(ctx, plan.ID)
			if err != nil {
				return err
			}
			return j.store.SetPlanModelCount(ctx, plan.ID, count)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if j.logger != nil {
		j.logger.InfoContext(ctx, "recomputed dirty plans", "plans", len(plans))
	}
	return len(plans), nil
}

// Schedule registers the job on a cron runner.
func (j *Job) Schedule(c *cron.Cron, spec string) error {
	_, err := c.AddFunc(spec, func() {
		if _, err := j.RunOnce(context.Background()); err != nil && j.logger != nil {
			j.logger.Error("recompute run failed", "error", err.Error())
		}
	})
	return err
}
