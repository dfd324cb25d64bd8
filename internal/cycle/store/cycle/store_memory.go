package cycle

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"modelgov/internal/cycle/models"
	"modelgov/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.RWMutex
	cycles  map[uuid.UUID]*models.Cycle
	results map[uuid.UUID]map[uuid.UUID]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		cycles:  make(map[uuid.UUID]*models.Cycle),
		results: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// SeedCycle registers a cycle. Test setup helper.
func (s *InMemory) SeedCycle(cycle *models.Cycle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cycle
	s.cycles[cycle.ID] = &cp
}

// SeedResult registers a submitted monitoring result. Test setup helper.
func (s *InMemory) SeedResult(cycleID, modelID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results[cycleID] == nil {
		s.results[cycleID] = make(map[uuid.UUID]struct{})
	}
	s.results[cycleID][modelID] = struct{}{}
}

func (s *InMemory) Get(_ context.Context, id uuid.UUID) (*models.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cycle, ok := s.cycles[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *cycle
	return &cp, nil
}

func (s *InMemory) DistinctResultModels(_ context.Context, cycleID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var modelIDs []uuid.UUID
	for id := range s.results[cycleID] {
		modelIDs = append(modelIDs, id)
	}
	sort.Slice(modelIDs, func(i, j int) bool { return modelIDs[i].String() < modelIDs[j].String() })
	return modelIDs, nil
}
