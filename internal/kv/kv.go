// Package kv defines the namespaced key-value port backing local persistence.
package kv

import (
	"context"
	"sync"
)

// Store persists opaque values addressed by namespace and key.
type Store interface {
	// Get returns the stored value; ok is false when nothing is stored.
	Get(ctx context.Context, namespace, key string) (value []byte, ok bool, err error)
	// Put replaces the stored value.
	Put(ctx context.Context, namespace, key string, value []byte) error
}

// Memory is an in-process Store used by tests and offline tooling.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[namespace+"/"+key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[namespace+"/"+key] = append([]byte(nil), value...)
	return nil
}
