package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"modelgov/internal/audit"
	"modelgov/internal/membership/models"
	dErrors "modelgov/pkg/domain-errors"
	"modelgov/pkg/requestcontext"
)

var tracer = otel.Tracer("modelgov/membership")

// replaceDelta records what a replace operation actually changed, for audit
// and metrics after the transaction commits.
type replaceDelta struct {
	added   []uuid.UUID
	removed []uuid.UUID
}

func (d *replaceDelta) empty() bool {
	return len(d.added) == 0 && len(d.removed) == 0
}

// ReplacePlanModels makes the plan's active membership exactly equal to
// desiredModelIDs. Models added are implicitly removed from their previous
// plan; models dropped are closed without a replacement. The whole operation
// is one atomic transaction under the global lock order.
//
// Returns CodeConflict when concurrent writers invalidated the preliminary
// read (retry the call), CodeTransferBlocked when an executing cycle pins a
// plan losing models (do not retry), CodeNotFound for an unknown plan.
func (s *MembershipService) ReplacePlanModels(ctx context.Context, planID uuid.UUID, desiredModelIDs []uuid.UUID, actor, reason string) error {
	ctx, span := tracer.Start(ctx, "membership.ReplacePlanModels")
	defer span.End()
	span.SetAttributes(attribute.String("plan_id", planID.String()))

	start := time.Now()
	desired := lockOrder(desiredModelIDs)

	var delta replaceDelta
	err := s.tx.RunInTx(ctx, func(store Store) error {
		return s.replaceInTx(ctx, store, planID, desired, actor, reason, &delta)
	})
	if err != nil {
		span.RecordError(err)
		s.countFailure(err)
		return err
	}

	if s.metrics != nil {
		s.metrics.ObserveReplace(start)
	}
	if delta.empty() {
		s.countNoop()
		return nil
	}
	if s.metrics != nil {
		s.metrics.ReplacesTotal.Inc()
	}
	s.logAudit(ctx, audit.Event{
		Action:  audit.ActionMembershipReplaced,
		ActorID: actor,
		Reason:  reason,
		PlanID:  planID,
		Detail:  fmt.Sprintf("added=%d removed=%d", len(delta.added), len(delta.removed)),
	})
	return nil
}

func (s *MembershipService) replaceInTx(ctx context.Context, store Store, planID uuid.UUID, desired []uuid.UUID, actor, reason string, delta *replaceDelta) error {
	now := requestcontext.Now(ctx).UTC()

	// Preliminary read without locks, to size the transaction.
	current, err := store.ActiveByPlan(ctx, planID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read current membership")
	}

	currentSet := make(map[uuid.UUID]struct{}, len(current))
	for _, rec := range current {
		currentSet[rec.ModelID] = struct{}{}
	}
	desiredSet := make(map[uuid.UUID]struct{}, len(desired))
	for _, id := range desired {
		desiredSet[id] = struct{}{}
	}

	var toAdd, toRemove []uuid.UUID
	for _, id := range desired {
		if _, ok := currentSet[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for _, rec := range current {
		if _, ok := desiredSet[rec.ModelID]; !ok {
			toRemove = append(toRemove, rec.ModelID)
		}
	}
	if len(toAdd) == 0 && len(toRemove) == 0 {
		// Idempotent no-op: no writes, no audit noise.
		return nil
	}

	// Models being added may be leaving another plan; those plans must be in
	// the lock set too, still unlocked at this point.
	incoming, err := store.ActiveByModels(ctx, toAdd)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read incoming memberships")
	}

	planLockSet := map[uuid.UUID]struct{}{planID: {}}
	for _, rec := range incoming {
		planLockSet[rec.PlanID] = struct{}{}
	}
	planIDs := make([]uuid.UUID, 0, len(planLockSet))
	for id := range planLockSet {
		planIDs = append(planIDs, id)
	}

	// Authoritative phase: plans first, then membership rows, both through
	// the shared lock order.
	lockedPlans, err := store.LockPlans(ctx, lockOrder(planIDs))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock plans")
	}
	if !containsPlan(lockedPlans, planID) {
		return dErrors.New(dErrors.CodeNotFound, "plan not found")
	}

	affected := lockOrder(append(append([]uuid.UUID{}, toAdd...), toRemove...))
	lockedRows, err := store.LockActiveByModels(ctx, affected)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock membership rows")
	}

	// Re-validate against the locked truth. Any active row now pointing at a
	// plan we did not lock means another transaction changed the picture
	// between the unlocked read and here.
	lockedByModel := make(map[uuid.UUID]*models.MembershipRecord, len(lockedRows))
	for _, rec := range lockedRows {
		if _, ok := planLockSet[rec.PlanID]; !ok {
			return dErrors.New(dErrors.CodeConflict, "membership changed concurrently, retry the operation")
		}
		lockedByModel[rec.ModelID] = rec
	}
	for _, modelID := range toRemove {
		rec, ok := lockedByModel[modelID]
		if !ok || rec.PlanID != planID {
			return dErrors.New(dErrors.CodeConflict, "membership changed concurrently, retry the operation")
		}
	}

	// Business rule, not a race: a plan in an executing cycle must not lose
	// models out from under the cycle.
	sourcePlans := make(map[uuid.UUID]struct{})
	if len(toRemove) > 0 {
		sourcePlans[planID] = struct{}{}
	}
	for _, modelID := range toAdd {
		if rec, ok := lockedByModel[modelID]; ok {
			sourcePlans[rec.PlanID] = struct{}{}
		}
	}
	for _, sourceID := range lockOrder(setToSlice(sourcePlans)) {
		blocked, err := store.HasBlockingCycle(ctx, sourceID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check cycle status")
		}
		if blocked {
			return dErrors.Newf(dErrors.CodeTransferBlocked,
				"plan %s has a cycle in progress, membership cannot change", sourceID)
		}
	}

	dirty := map[uuid.UUID]struct{}{planID: {}}

	for _, modelID := range toAdd {
		if prior, ok := lockedByModel[modelID]; ok {
			if err := store.CloseMembership(ctx, prior.ID, now); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to close prior membership")
			}
			if err := store.DeleteProjection(ctx, prior.PlanID, modelID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove prior projection")
			}
			dirty[prior.PlanID] = struct{}{}
		}
		rec := models.NewActiveMembership(modelID, planID, now, actor, reason)
		if err := store.OpenMembership(ctx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to open membership")
		}
		if err := store.InsertProjection(ctx, &models.ProjectionRow{PlanID: planID, ModelID: modelID, AssignedAt: now}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert projection")
		}
	}

	for _, modelID := range toRemove {
		rec := lockedByModel[modelID]
		if err := store.CloseMembership(ctx, rec.ID, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to close membership")
		}
		if err := store.DeleteProjection(ctx, planID, modelID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete projection")
		}
	}

	if err := store.MarkPlansDirty(ctx, lockOrder(setToSlice(dirty))); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark plans dirty")
	}

	delta.added = toAdd
	delta.removed = toRemove
	return nil
}

// TransferModel moves one model to toPlanID with the same locking discipline
// as ReplacePlanModels. No-op when the model is already a member; returns the
// ledger row that is active after the call.
func (s *MembershipService) TransferModel(ctx context.Context, modelID, toPlanID uuid.UUID, actor, reason string) (*models.MembershipRecord, error) {
	ctx, span := tracer.Start(ctx, "membership.TransferModel")
	defer span.End()
	span.SetAttributes(
		attribute.String("model_id", modelID.String()),
		attribute.String("plan_id", toPlanID.String()),
	)

	start := time.Now()

	var opened *models.MembershipRecord
	var noop bool
	err := s.tx.RunInTx(ctx, func(store Store) error {
		rec, unchanged, err := s.transferInTx(ctx, store, modelID, toPlanID, actor, reason)
		if err != nil {
			return err
		}
		opened, noop = rec, unchanged
		return nil
	})
	if err != nil {
		span.RecordError(err)
		s.countFailure(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveTransfer(start)
	}
	if noop {
		s.countNoop()
		return opened, nil
	}
	if s.metrics != nil {
		s.metrics.TransfersTotal.Inc()
	}
	s.logAudit(ctx, audit.Event{
		Action:  audit.ActionModelTransferred,
		ActorID: actor,
		Reason:  reason,
		PlanID:  toPlanID,
		ModelID: modelID,
	})
	return opened, nil
}

func (s *MembershipService) transferInTx(ctx context.Context, store Store, modelID, toPlanID uuid.UUID, actor, reason string) (*models.MembershipRecord, bool, error) {
	now := requestcontext.Now(ctx).UTC()

	// Preliminary read without locks.
	existing, err := store.ActiveByModels(ctx, []uuid.UUID{modelID})
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read current membership")
	}
	if len(existing) > 0 && existing[0].PlanID == toPlanID {
		return existing[0], true, nil
	}

	planLockSet := map[uuid.UUID]struct{}{toPlanID: {}}
	if len(existing) > 0 {
		planLockSet[existing[0].PlanID] = struct{}{}
	}

	lockedPlans, err := store.LockPlans(ctx, lockOrder(setToSlice(planLockSet)))
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock plans")
	}
	if !containsPlan(lockedPlans, toPlanID) {
		return nil, false, dErrors.New(dErrors.CodeNotFound, "destination plan not found")
	}

	lockedRows, err := store.LockActiveByModels(ctx, []uuid.UUID{modelID})
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock membership row")
	}

	dirty := map[uuid.UUID]struct{}{toPlanID: {}}

	if len(lockedRows) > 0 {
		prior := lockedRows[0]
		if prior.PlanID == toPlanID {
			// Another writer finished the same transfer first.
			return prior, true, nil
		}
		if _, ok := planLockSet[prior.PlanID]; !ok {
			return nil, false, dErrors.New(dErrors.CodeConflict, "membership changed concurrently, retry the operation")
		}
		blocked, err := store.HasBlockingCycle(ctx, prior.PlanID)
		if err != nil {
			return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check cycle status")
		}
		if blocked {
			return nil, false, dErrors.Newf(dErrors.CodeTransferBlocked,
				"plan %s has a cycle in progress, membership cannot change", prior.PlanID)
		}
		if err := store.CloseMembership(ctx, prior.ID, now); err != nil {
			return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to close prior membership")
		}
		if err := store.DeleteProjection(ctx, prior.PlanID, modelID); err != nil {
			return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove prior projection")
		}
		dirty[prior.PlanID] = struct{}{}
	}

	rec := models.NewActiveMembership(modelID, toPlanID, now, actor, reason)
	if err := store.OpenMembership(ctx, rec); err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open membership")
	}
	if err := store.InsertProjection(ctx, &models.ProjectionRow{PlanID: toPlanID, ModelID: modelID, AssignedAt: now}); err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert projection")
	}
	if err := store.MarkPlansDirty(ctx, lockOrder(setToSlice(dirty))); err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark plans dirty")
	}
	return rec, false, nil
}

func (s *MembershipService) logAudit(ctx context.Context, event audit.Event) {
	event.RequestID = requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event.Action),
			"event", string(event.Action),
			"plan_id", event.PlanID.String(),
			"model_id", event.ModelID.String(),
			"actor", event.ActorID,
			"request_id", event.RequestID,
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "error", err.Error())
	}
}

func (s *MembershipService) countFailure(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case dErrors.HasCode(err, dErrors.CodeConflict):
		s.metrics.ConflictsTotal.Inc()
	case dErrors.HasCode(err, dErrors.CodeTransferBlocked):
		s.metrics.TransferBlockedTotal.Inc()
	}
}

func (s *MembershipService) countNoop() {
	if s.metrics != nil {
		s.metrics.NoopsTotal.Inc()
	}
}

func containsPlan(plans []*models.Plan, id uuid.UUID) bool {
	for _, plan := range plans {
		if plan.ID == id {
			return true
		}
	}
	return false
}

func setToSlice(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
