package memory

import (
	"context"
	"sync"

	"github.com/aretw0/arcflow/pkg/domain"
)

// NotificationStore implements ports.NotificationStore in memory,
// preserving insertion order.
type NotificationStore struct {
	mu    sync.RWMutex
	items []*domain.Notification
	index map[string]int
}

// NewNotificationStore creates an empty notification store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{index: make(map[string]int)}
}

func (s *NotificationStore) Append(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[n.ID] = len(s.items)
	s.items = append(s.items, n.Clone())
	return nil
}

func (s *NotificationStore) Update(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[n.ID]
	if !ok {
		return domain.ErrNotificationNotFound
	}
	s.items[i] = n.Clone()
	return nil
}

func (s *NotificationStore) List(ctx context.Context) ([]*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Notification, len(s.items))
	for i, n := range s.items {
		out[i] = n.Clone()
	}
	return out, nil
}

func (s *NotificationStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.index = make(map[string]int)
	return nil
}

func (s *NotificationStore) Delete(ctx context.Context, ids ...string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0]
	s.index = make(map[string]int)
	for _, n := range s.items {
		if !drop[n.ID] {
			s.index[n.ID] = len(kept)
			kept = append(kept, n)
		}
	}
	s.items = kept
	return nil
}
