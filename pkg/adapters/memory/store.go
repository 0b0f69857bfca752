package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/arcflow/pkg/domain"
)

// Store implements ports.RequestStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Request
	mu   sync.RWMutex
}

// NewStore creates a new in-memory request store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Request),
	}
}

// Save persists a copy of the request.
func (s *Store) Save(ctx context.Context, req *domain.Request) error {
	copied := req.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[req.ID] = copied
	return nil
}

// Load retrieves a copy of the request so callers can't mutate the store by pointer.
func (s *Store) Load(ctx context.Context, id string) (*domain.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.data[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	return req.Clone(), nil
}

// Delete removes the request.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns stored request IDs in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
