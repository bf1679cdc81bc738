package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*Data
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*Data)}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Data, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.data[id]
	if !ok {
		return nil, NotFound(id)
	}
	return copyData(d), nil
}

func (m *MemoryStore) Save(_ context.Context, d *Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[d.ID] = copyData(d)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func copyData(d *Data) *Data {
	values := make(map[string]any, len(d.Values))
	for k, v := range d.Values {
		values[k] = v
	}
	return &Data{ID: d.ID, Values: values, UpdatedAt: d.UpdatedAt}
}

var _ Store = (*MemoryStore)(nil)
