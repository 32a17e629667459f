// Package memstore keeps the persisted session in process memory. It backs
// tests and the SESSION_BACKEND=memory mode.
package memstore

import (
	"context"
	"maps"
	"sync"
)

type Store struct {
	values map[string]string
	lock   sync.RWMutex
}

func New() *Store {
	return &Store{values: make(map[string]string)}
}

func (m *Store) Load(_ context.Context) (map[string]string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return maps.Clone(m.values), nil
}

func (m *Store) Save(_ context.Context, values map[string]string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.values = maps.Clone(values)
	if m.values == nil {
		m.values = make(map[string]string)
	}
	return nil
}

func (m *Store) Clear(_ context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.values = make(map[string]string)
	return nil
}

// Value returns a single persisted key.
func (m *Store) Value(key string) (string, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	v, ok := m.values[key]
	return v, ok
}
