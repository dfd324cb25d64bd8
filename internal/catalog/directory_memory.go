package catalog

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryDirectory serves tests and local runs.
type InMemoryDirectory struct {
	mu    sync.RWMutex
	names map[uuid.UUID]string
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{names: make(map[uuid.UUID]string)}
}

// SeedModel registers a model name. Test setup helper.
func (d *InMemoryDirectory) SeedModel(id uuid.UUID, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[id] = name
}

func (d *InMemoryDirectory) Names(_ context.Context, modelIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[uuid.UUID]string, len(modelIDs))
	for _, id := range modelIDs {
		if name, ok := d.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}
