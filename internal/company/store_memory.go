package company

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"companyhub/pkg/requestcontext"
)

// MemoryStore keeps companies in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	companies map[string]Company
}

// NewMemoryStore creates an empty in-memory company store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{companies: make(map[string]Company)}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, nip string) (Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.companies[nip]; ok {
		return existing, nil
	}
	now := requestcontext.Now(ctx)
	created := Company{
		ID:        uuid.New(),
		NIP:       nip,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.companies[nip] = created
	return created, nil
}

func (s *MemoryStore) FindByNIP(_ context.Context, nip string) (Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing, ok := s.companies[nip]
	if !ok {
		return Company{}, ErrNotFound
	}
	return existing, nil
}

func (s *MemoryStore) SetName(ctx context.Context, nip, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.companies[nip]
	if !ok {
		return ErrNotFound
	}
	existing.Name = name
	existing.UpdatedAt = requestcontext.Now(ctx)
	s.companies[nip] = existing
	return nil
}
