// Package memory implements the ability to read and write records to memory
// using a map.
package memory

import (
	"sync"

	"github.com/ardanlabs/frontier/foundation/blockchain/storage"
)

// Memory represents the key value implementation for storing records in
// memory. This implements the storage.KeyValue interface.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// New constructs an Memory value for use.
func New() *Memory {
	return &Memory{
		records: make(map[string][]byte),
	}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Get returns a copy of the value stored under the key.
func (m *Memory) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.records[string(key)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return append([]byte(nil), value...), nil
}

// Has reports whether the key exists.
func (m *Memory) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.records[string(key)]
	return exists, nil
}

// Put stores a copy of the value under the key.
func (m *Memory) Put(key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[string(key)] = append([]byte(nil), value...)
	return nil
}

// Delete removes the key.
func (m *Memory) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, string(key))
	return nil
}

// NewBatch returns a batch applied under a single lock.
func (m *Memory) NewBatch() storage.Batch {
	return &batch{memory: m}
}

// =============================================================================

type op struct {
	key    string
	value  []byte
	delete bool
}

// batch collects writes until Write is called.
type batch struct {
	memory *Memory
	ops    []op
}

// Put queues a write.
func (b *batch) Put(key []byte, value []byte) error {
	b.ops = append(b.ops, op{key: string(key), value: append([]byte(nil), value...)})
	return nil
}

// Delete queues a delete.
func (b *batch) Delete(key []byte) error {
	b.ops = append(b.ops, op{key: string(key), delete: true})
	return nil
}

// Write applies the queued operations.
func (b *batch) Write() error {
	b.memory.mu.Lock()
	defer b.memory.mu.Unlock()

	for _, o := range b.ops {
		switch o.delete {
		case true:
			delete(b.memory.records, o.key)
		default:
			b.memory.records[o.key] = o.value
		}
	}

	b.ops = nil
	return nil
}
