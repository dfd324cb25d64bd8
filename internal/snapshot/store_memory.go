package snapshot

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"modelgov/pkg/platform/sentinel"
)

type memKey struct {
	planID    uuid.UUID
	versionID uuid.UUID
}

type InMemoryStore struct {
	mu       sync.RWMutex
	versions map[memKey]*PlanVersion
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{versions: make(map[memKey]*PlanVersion)}
}

// SeedVersion registers a plan version. Test setup helper.
func (s *InMemoryStore) SeedVersion(version *PlanVersion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *version
	cp.Models = append([]FrozenModel{}, version.Models...)
	s.versions[memKey{planID: version.PlanID, versionID: version.ID}] = &cp
}

func (s *InMemoryStore) Get(_ context.Context, planID, versionID uuid.UUID) (*PlanVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	version, ok := s.versions[memKey{planID: planID, versionID: versionID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *version
	cp.Models = append([]FrozenModel{}, version.Models...)
	return &cp, nil
}
