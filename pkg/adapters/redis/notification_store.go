package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/arcflow/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// NotificationStore implements ports.NotificationStore using a Redis hash for
// the payloads and a list for insertion order.
type NotificationStore struct {
	client *backend.Client
	prefix string
}

// NewNotificationStore creates a notification store on an existing client.
func NewNotificationStore(client *backend.Client, opts ...Option) *NotificationStore {
	o := buildOptions(opts)
	return &NotificationStore{client: client, prefix: o.prefix}
}

func (s *NotificationStore) dataKey() string  { return s.prefix + "notifications" }
func (s *NotificationStore) orderKey() string { return s.prefix + "notifications:order" }

// Append stores a new notification at the end of the order.
func (s *NotificationStore) Append(ctx context.Context, n *domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.dataKey(), n.ID, data)
	pipe.RPush(ctx, s.orderKey(), n.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append notification: %w", err)
	}
	return nil
}

// Update replaces an existing notification in place.
func (s *NotificationStore) Update(ctx context.Context, n *domain.Notification) error {
	exists, err := s.client.HExists(ctx, s.dataKey(), n.ID).Result()
	if err != nil {
		return fmt.Errorf("failed to check notification: %w", err)
	}
	if !exists {
		return domain.ErrNotificationNotFound
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return s.client.HSet(ctx, s.dataKey(), n.ID, data).Err()
}

// List returns notifications in insertion order.
func (s *NotificationStore) List(ctx context.Context) ([]*domain.Notification, error) {
	ids, err := s.client.LRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	out := make([]*domain.Notification, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	vals, err := s.client.HMGet(ctx, s.dataKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Order entry without payload; skip it.
			continue
		}
		var n domain.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification %s: %w", ids[i], err)
		}
		out = append(out, &n)
	}
	return out, nil
}

// Delete removes the given notifications.
func (s *NotificationStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, s.dataKey(), ids...)
	for _, id := range ids {
		pipe.LRem(ctx, s.orderKey(), 0, id)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Clear removes every notification.
func (s *NotificationStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.dataKey(), s.orderKey()).Err()
}
