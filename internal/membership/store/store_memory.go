package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"modelgov/internal/cycle/models"
	memmodels "modelgov/internal/membership/models"
	"modelgov/pkg/platform/sentinel"
)

type projKey struct {
	planID  uuid.UUID
	modelID uuid.UUID
}

// InMemory mirrors PostgresStore behavior over maps for unit tests and local
// runs. Transactionality comes from InMemoryTx, which serializes writers and
// restores a snapshot on error.
type InMemory struct {
	mu            sync.RWMutex
	plans         map[uuid.UUID]*memmodels.Plan
	records       map[uuid.UUID]*memmodels.MembershipRecord
	activeByModel map[uuid.UUID]uuid.UUID
	projection    map[projKey]*memmodels.ProjectionRow
	cycleStatuses map[uuid.UUID][]models.CycleStatus
}

func NewInMemory() *InMemory {
	return &InMemory{
		plans:         make(map[uuid.UUID]*memmodels.Plan),
		records:       make(map[uuid.UUID]*memmodels.MembershipRecord),
		activeByModel: make(map[uuid.UUID]uuid.UUID),
		projection:    make(map[projKey]*memmodels.ProjectionRow),
		cycleStatuses: make(map[uuid.UUID][]models.CycleStatus),
	}
}

// SeedPlan registers a plan. Test setup helper.
func (s *InMemory) SeedPlan(plan *memmodels.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *plan
	s.plans[plan.ID] = &cp
}

// SeedCycleStatus registers a cycle status under a plan. Test setup helper.
func (s *InMemory) SeedCycleStatus(planID uuid.UUID, status models.CycleStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycleStatuses[planID] = append(s.cycleStatuses[planID], status)
}

// ClearCycleStatuses drops all cycles seeded under a plan. Test setup helper.
func (s *InMemory) ClearCycleStatuses(planID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cycleStatuses, planID)
}

func (s *InMemory) GetPlan(_ context.Context, id uuid.UUID) (*memmodels.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *plan
	return &cp, nil
}

// LockPlans returns the requested plans in ascending id order. Row locking is
// a no-op here: InMemoryTx already serializes writers globally.
func (s *InMemory) LockPlans(_ context.Context, planIDs []uuid.UUID) ([]*memmodels.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sorted := append([]uuid.UUID(nil), planIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	var plans []*memmodels.Plan
	for _, id := range sorted {
		if plan, ok := s.plans[id]; ok {
			cp := *plan
			plans = append(plans, &cp)
		}
	}
	return plans, nil
}

func (s *InMemory) MarkPlansDirty(_ context.Context, planIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range planIDs {
		if plan, ok := s.plans[id]; ok {
			plan.Dirty = true
			plan.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (s *InMemory) ListDirtyPlans(_ context.Context, limit int) ([]*memmodels.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var plans []*memmodels.Plan
	for _, plan := range s.plans {
		if plan.Dirty {
			cp := *plan
			plans = append(plans, &cp)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].UpdatedAt.Before(plans[j].UpdatedAt) })
	if limit > 0 && len(plans) > limit {
		plans = plans[:limit]
	}
	return plans, nil
}

func (s *InMemory) SetPlanModelCount(_ context.Context, planID uuid.UUID, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if plan, ok := s.plans[planID]; ok {
		plan.ModelCount = count
		plan.Dirty = false
		plan.UpdatedAt = time.Now()
	}
	return nil
}

func (s *InMemory) ActiveByPlan(_ context.Context, planID uuid.UUID) ([]*memmodels.MembershipRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []*memmodels.MembershipRecord
	for _, recID := range s.activeByModel {
		rec := s.records[recID]
		if rec != nil && rec.PlanID == planID {
			cp := *rec
			records = append(records, &cp)
		}
	}
	sortByModel(records)
	return records, nil
}

func (s *InMemory) ActiveByModels(_ context.Context, modelIDs []uuid.UUID) ([]*memmodels.MembershipRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeByModelsLocked(modelIDs), nil
}

// LockActiveByModels matches LockPlans: ordering only, locking is the tx's job.
func (s *InMemory) LockActiveByModels(_ context.Context, modelIDs []uuid.UUID) ([]*memmodels.MembershipRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeByModelsLocked(modelIDs), nil
}

func (s *InMemory) activeByModelsLocked(modelIDs []uuid.UUID) []*memmodels.MembershipRecord {
	var records []*memmodels.MembershipRecord
	for _, modelID := range modelIDs {
		recID, ok := s.activeByModel[modelID]
		if !ok {
			continue
		}
		if rec := s.records[recID]; rec != nil {
			cp := *rec
			records = append(records, &cp)
		}
	}
	sortByModel(records)
	return records
}

func (s *InMemory) CloseMembership(_ context.Context, recordID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok || !rec.IsActive() {
		return sentinel.ErrInvalidState
	}
	if err := rec.Close(at); err != nil {
		return err
	}
	delete(s.activeByModel, rec.ModelID)
	return nil
}

func (s *InMemory) OpenMembership(_ context.Context, rec *memmodels.MembershipRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.activeByModel[rec.ModelID]; exists {
		return sentinel.ErrConflict
	}
	cp := *rec
	s.records[rec.ID] = &cp
	s.activeByModel[rec.ModelID] = rec.ID
	return nil
}

func (s *InMemory) InsertProjection(_ context.Context, row *memmodels.ProjectionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := projKey{planID: row.PlanID, modelID: row.ModelID}
	if _, exists := s.projection[key]; exists {
		return sentinel.ErrConflict
	}
	cp := *row
	s.projection[key] = &cp
	return nil
}

func (s *InMemory) DeleteProjection(_ context.Context, planID, modelID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projection, projKey{planID: planID, modelID: modelID})
	return nil
}

func (s *InMemory) ProjectionByPlan(_ context.Context, planID uuid.UUID) ([]*memmodels.ProjectionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*memmodels.ProjectionRow
	for key, row := range s.projection {
		if key.planID == planID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelID.String() < out[j].ModelID.String() })
	return out, nil
}

func (s *InMemory) CountProjection(_ context.Context, planID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for key := range s.projection {
		if key.planID == planID {
			count++
		}
	}
	return count, nil
}

func (s *InMemory) HasBlockingCycle(_ context.Context, planID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, status := range s.cycleStatuses[planID] {
		if status.TransferBlocking() {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) LedgerByModel(_ context.Context, modelID uuid.UUID) ([]*memmodels.MembershipRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []*memmodels.MembershipRecord
	for _, rec := range s.records {
		if rec.ModelID == modelID {
			cp := *rec
			records = append(records, &cp)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].EffectiveFrom.Before(records[j].EffectiveFrom) })
	return records, nil
}

func sortByModel(records []*memmodels.MembershipRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ModelID.String() < records[j].ModelID.String()
	})
}

// Snapshot captures the full store state and returns a restore closure. The
// in-memory transaction runner uses it to emulate rollback: a failed
// transaction must leave zero visible side effects.
func (s *InMemory) Snapshot() func() {
	s.mu.RLock()
	plans := make(map[uuid.UUID]*memmodels.Plan, len(s.plans))
	for id, plan := range s.plans {
		p := *plan
		plans[id] = &p
	}
	records := make(map[uuid.UUID]*memmodels.MembershipRecord, len(s.records))
	for id, rec := range s.records {
		r := *rec
		records[id] = &r
	}
	activeByModel := make(map[uuid.UUID]uuid.UUID, len(s.activeByModel))
	for model, recID := range s.activeByModel {
		activeByModel[model] = recID
	}
	projection := make(map[projKey]*memmodels.ProjectionRow, len(s.projection))
	for key, row := range s.projection {
		r := *row
		projection[key] = &r
	}
	cycleStatuses := make(map[uuid.UUID][]models.CycleStatus, len(s.cycleStatuses))
	for plan, statuses := range s.cycleStatuses {
		cycleStatuses[plan] = append([]models.CycleStatus(nil), statuses...)
	}
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.plans = plans
		s.records = records
		s.activeByModel = activeByModel
		s.projection = projection
		s.cycleStatuses = cycleStatuses
	}
}
