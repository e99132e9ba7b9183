package repository

import (
	"context"
	"slices"
	"sync"
)

// Slot is a single named key-value cell holding the whole serialized bill collection.
// Implementations report a missing value as ok=false, not as an error.
type Slot interface {
	Get(ctx context.Context) (value []byte, ok bool, err error)
	Set(ctx context.Context, value []byte) error
	Remove(ctx context.Context) error
	Close() error
}

// MemorySlot keeps the value in process memory. Used by tests and STORE_DRIVER=memory.
type MemorySlot struct {
	mu    sync.RWMutex
	value []byte
	set   bool
}

func NewMemorySlot() *MemorySlot { return &MemorySlot{} }

func (m *MemorySlot) Get(context.Context) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return nil, false, nil
	}
	return slices.Clone(m.value), true, nil
}

func (m *MemorySlot) Set(_ context.Context, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = slices.Clone(value)
	m.set = true
	return nil
}

func (m *MemorySlot) Remove(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value, m.set = nil, false
	return nil
}

func (m *MemorySlot) Close() error { return nil }
