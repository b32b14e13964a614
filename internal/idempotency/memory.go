package idempotency

import (
	"context"
	"sync"
)

// MemoryBackend keeps records in a map for the life of the process.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]*Record
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]*Record)}
}

func memoryKey(activity, key string) string {
	return activity + "\x00" + key
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, activity, key string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[memoryKey(activity, key)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// PutIfAbsent implements Backend.
func (m *MemoryBackend) PutIfAbsent(_ context.Context, rec *Record) (*Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memoryKey(rec.Activity, rec.Key)
	if existing, ok := m.records[k]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *rec
	m.records[k] = &cp
	return rec, true, nil
}

// Len returns the number of stored records.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Close implements Backend.
func (m *MemoryBackend) Close() error { return nil }
