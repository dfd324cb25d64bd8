package scope

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"modelgov/internal/cycle/models"
)

type memKey struct {
	cycleID uuid.UUID
	modelID uuid.UUID
}

// InMemory mirrors PostgresStore semantics, including first-writer-wins on
// duplicate (cycle, model) rows.
type InMemory struct {
	mu      sync.RWMutex
	entries map[memKey]*models.ScopeEntry
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[memKey]*models.ScopeEntry)}
}

func (s *InMemory) Exists(_ context.Context, cycleID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for key := range s.entries {
		if key.cycleID == cycleID {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) InsertBatch(_ context.Context, entries []*models.ScopeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		key := memKey{cycleID: entry.CycleID, modelID: entry.ModelID}
		if _, exists := s.entries[key]; exists {
			continue
		}
		cp := *entry
		s.entries[key] = &cp
	}
	return nil
}

func (s *InMemory) ListByCycle(_ context.Context, cycleID uuid.UUID) ([]*models.ScopeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []*models.ScopeEntry
	for key, entry := range s.entries {
		if key.cycleID == cycleID {
			cp := *entry
			entries = append(entries, &cp)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModelID.String() < entries[j].ModelID.String()
	})
	return entries, nil
}
