// Package redis provides Redis-backed request and notification stores and a
// distributed locker for running the engine across replicas.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/arcflow/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the adapter writes.
const DefaultPrefix = "arcflow:"

// Store implements ports.RequestStore using Redis.
// Each request is a JSON string; a sorted set indexes IDs by creation time.
type Store struct {
	client *backend.Client
	prefix string
}

// Option configures the Redis adapters.
type Option func(*options)

type options struct {
	prefix string
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

func buildOptions(opts []Option) options {
	o := options{prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewClient opens a client for address.
func NewClient(address, password string, db int) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
}

// NewStore creates a request store on an existing client.
func NewStore(client *backend.Client, opts ...Option) *Store {
	o := buildOptions(opts)
	return &Store{client: client, prefix: o.prefix}
}

func (s *Store) key(id string) string {
	return s.prefix + "request:" + id
}

func (s *Store) indexKey() string {
	return s.prefix + "requests"
}

// Save persists the request snapshot.
func (s *Store) Save(ctx context.Context, req *domain.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	created := req.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(req.ID), data, 0)
	pipe.ZAddNX(ctx, s.indexKey(), backend.Z{
		Score:  float64(created.UnixNano()),
		Member: req.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save request to redis: %w", err)
	}
	return nil
}

// Load retrieves a request by ID.
func (s *Store) Load(ctx context.Context, id string) (*domain.Request, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get request from redis: %w", err)
	}

	var req domain.Request
	if err := json.Unmarshal(val, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	return &req, nil
}

// Delete removes the request and its index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns request IDs, oldest first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
