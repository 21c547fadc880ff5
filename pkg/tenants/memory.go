// pkg/tenants/memory.go
package tenants

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type memRegistry struct {
	log    *zap.SugaredLogger
	mu     sync.RWMutex
	byName map[string]Tenant
}

// NewMemoryRegistry is the dev fallback when no database is configured.
func NewMemoryRegistry(log *zap.SugaredLogger) Registry {
	return &memRegistry{log: log, byName: map[string]Tenant{}}
}

func (m *memRegistry) Register(ctx context.Context, t Tenant) (Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[t.Name]; ok {
		return Tenant{}, ErrExists
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()
	m.byName[t.Name] = t
	return t, nil
}

func (m *memRegistry) Get(ctx context.Context, id string) (Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.byName {
		if t.ID == id {
			return t, nil
		}
	}
	return Tenant{}, ErrNotFound
}

func (m *memRegistry) List(ctx context.Context) ([]Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Tenant, 0, len(m.byName))
	for _, t := range m.byName {
		out = append(out, t)
	}
	return out, nil
}

func (m *memRegistry) UpdateDescription(ctx context.Context, name, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byName[name]
	if !ok {
		return ErrNotFound
	}
	t.Description = description
	m.byName[name] = t
	return nil
}

func (m *memRegistry) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; !ok {
		return ErrNotFound
	}
	delete(m.byName, name)
	return nil
}
