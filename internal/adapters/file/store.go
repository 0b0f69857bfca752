// Package file persists requests and notifications as JSON files on the
// local filesystem. It backs the CLI when no Redis is configured.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/arcflow/pkg/domain"
)

// DefaultDir is used when no base path is given.
var DefaultDir = filepath.Join(".arcflow", "requests")

// Store implements ports.RequestStore with one JSON file per request.
type Store struct {
	BasePath string
}

// New creates a Store rooted at basePath.
func New(basePath string) *Store {
	if basePath == "" {
		basePath = DefaultDir
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("request id cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid request id %q", id)
	}
	return filepath.Join(s.BasePath, id+".json"), nil
}

// Save persists the request atomically.
func (s *Store) Save(ctx context.Context, req *domain.Request) error {
	dest, err := s.path(req.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return writeAtomic(s.BasePath, dest, data)
}

// Load reads a request file.
func (s *Store) Load(ctx context.Context, id string) (*domain.Request, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}

	var req domain.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request %s: %w", id, err)
	}
	return &req, nil
}

// Delete removes the request file.
func (s *Store) Delete(ctx context.Context, id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete request file: %w", err)
	}
	return nil
}

// List returns the stored request IDs in name order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// writeAtomic writes to a temp file in dir, fsyncs it and renames it over dest.
func writeAtomic(dir, dest string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows cannot rename over an existing file.
	if _, err := os.Stat(dest); err == nil {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("failed to replace %s: %w", filepath.Base(dest), err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// NotificationStore implements ports.NotificationStore as a single JSON
// array file, rewritten atomically on every change.
type NotificationStore struct {
	mu   sync.Mutex
	path string
}

// NewNotificationStore creates a store writing to path.
func NewNotificationStore(path string) *NotificationStore {
	if path == "" {
		path = filepath.Join(".arcflow", "notifications.json")
	}
	return &NotificationStore{path: path}
}

func (s *NotificationStore) read() ([]*domain.Notification, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*domain.Notification{}, nil
		}
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}
	var out []*domain.Notification
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notifications: %w", err)
	}
	if out == nil {
		out = []*domain.Notification{}
	}
	return out, nil
}

func (s *NotificationStore) write(items []*domain.Notification) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal notifications: %w", err)
	}
	return writeAtomic(filepath.Dir(s.path), s.path, data)
}

// Append adds a notification at the end.
func (s *NotificationStore) Append(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.read()
	if err != nil {
		return err
	}
	return s.write(append(items, n))
}

// Update replaces a notification by ID.
func (s *NotificationStore) Update(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.read()
	if err != nil {
		return err
	}
	for i, it := range items {
		if it.ID == n.ID {
			items[i] = n
			return s.write(items)
		}
	}
	return domain.ErrNotificationNotFound
}

// List returns notifications in insertion order.
func (s *NotificationStore) List(ctx context.Context) ([]*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Delete removes notifications by ID.
func (s *NotificationStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.read()
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, it := range items {
		if !drop[it.ID] {
			kept = append(kept, it)
		}
	}
	return s.write(kept)
}

// Clear removes every notification.
func (s *NotificationStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write([]*domain.Notification{})
}
