package cache

import (
	"context"
	"sync"
)

// MemoryStore keeps the latest record per nip/source pair in process memory.
// Suitable for tests and single-instance deployments without persistence.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[memoryKey]Record
}

type memoryKey struct {
	nip    string
	source string
}

// NewMemory creates an empty in-memory cache store.
func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[memoryKey]Record)}
}

// Save keeps the record with the newest fetched_at per nip/source pair;
// an older record never overwrites a newer one.
func (s *MemoryStore) Save(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey{nip: record.NIP, source: record.Source}
	if existing, ok := s.records[key]; ok && existing.FetchedAt.After(record.FetchedAt) {
		return nil
	}
	s.records[key] = record
	return nil
}

// Latest returns the stored record even when expired.
func (s *MemoryStore) Latest(_ context.Context, nip, source string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[memoryKey{nip: nip, source: source}]
	if !ok {
		return Record{}, ErrNotFound
	}
	return record, nil
}
