// Package requests owns the canonical in-process collection of ARC requests.
//
// Requests are looked up and replaced by identifier only. Every replace is
// persisted to the backing ports.RequestStore before it becomes visible to
// readers, so a reader never observes a status without its history entry.
package requests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/aretw0/arcflow/internal/logging"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/ports"
)

// Store is the in-process request collection backed by a durable store.
type Store struct {
	mu       sync.RWMutex
	requests map[string]*domain.Request

	// loadMu excludes commits while Load rebuilds the collection, so a
	// snapshot read before a commit never replaces the committed request.
	loadMu sync.RWMutex

	backend  ports.RequestStore
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides request identifier generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates an empty Store over backend.
func New(backend ports.RequestStore, opts ...Option) *Store {
	s := &Store{
		requests: make(map[string]*domain.Request),
		backend:  backend,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create assigns an identifier, seeds the history with a submitted entry and
// persists the new request.
func (s *Store) Create(ctx context.Context, draft domain.Draft, actor domain.Actor) (*domain.Request, error) {
	if draft.Submitter.OwnerID == "" {
		draft.Submitter.OwnerID = actor.ID
	}
	if err := s.validate.Struct(draft); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidationFailed, describe(err))
	}

	now := s.now()
	req := &domain.Request{
		ID:                 s.newID(),
		Title:              draft.Title,
		Description:        draft.Description,
		Classification:     draft.Classification,
		Submitter:          draft.Submitter,
		Documents:          append([]domain.Document{}, draft.Documents...),
		Messages:           []domain.Message{},
		GoverningDocuments: append([]domain.Document{}, draft.GoverningDocuments...),
		Forms:              append([]string{}, draft.Forms...),
		NeighborPositions:  append([]string{}, draft.NeighborPositions...),
		Signoffs:           make([]domain.NeighborSignoff, 0, len(draft.Neighbors)),
		Votes:              []domain.BoardVote{},
		Appeals:            []domain.Appeal{},
		Inspections:        []domain.Inspection{},
		NotificationIDs:    []string{},
		CreatedAt:          now,
	}
	for _, n := range draft.Neighbors {
		req.Signoffs = append(req.Signoffs, domain.NeighborSignoff{
			NeighborID: n.ID,
			Name:       n.Name,
			Status:     domain.SignoffPending,
			UpdatedAt:  now,
		})
	}
	req.AppendStage(domain.StageEntry{Stage: domain.StatusSubmitted, EnteredAt: now, Actor: actor.ID})

	if err := s.Commit(ctx, req); err != nil {
		return nil, err
	}
	s.logger.Debug("request created", "request_id", req.ID, "classification", req.Classification)
	return req.Clone(), nil
}

// Load replaces the in-process collection with the backend's contents.
func (s *Store) Load(ctx context.Context) ([]*domain.Request, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	ids, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	loaded := make(map[string]*domain.Request, len(ids))
	for _, id := range ids {
		req, err := s.backend.Load(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrRequestNotFound) {
				// Deleted between List and Load.
				continue
			}
			return nil, fmt.Errorf("failed to load request %s: %w", id, err)
		}
		if err := checkHistory(req); err != nil {
			return nil, fmt.Errorf("request %s: %w", id, err)
		}
		loaded[req.ID] = req
	}

	s.mu.Lock()
	s.requests = loaded
	s.mu.Unlock()

	s.logger.Debug("requests loaded", "count", len(loaded))
	return s.List(), nil
}

// Refresh re-reads one request from the backend and swaps it into the
// collection. Callers holding the request's in-flight mark use it to pick up
// commits made by other replicas.
func (s *Store) Refresh(ctx context.Context, id string) (*domain.Request, error) {
	s.loadMu.RLock()
	defer s.loadMu.RUnlock()

	req, err := s.backend.Load(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRequestNotFound) {
			s.mu.Lock()
			delete(s.requests, id)
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", domain.ErrRequestNotFound, id)
		}
		return nil, fmt.Errorf("failed to load request %s: %w", id, err)
	}
	if err := checkHistory(req); err != nil {
		return nil, fmt.Errorf("request %s: %w", id, err)
	}

	s.mu.Lock()
	s.requests[id] = req.Clone()
	s.mu.Unlock()
	return req, nil
}

// Get returns a copy of the request.
func (s *Store) Get(id string) (*domain.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRequestNotFound, id)
	}
	return req.Clone(), nil
}

// List returns copies of every request, oldest first.
func (s *Store) List() []*domain.Request {
	s.mu.RLock()
	out := make([]*domain.Request, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Commit persists next and then swaps it into the collection as a single
// replace. On a persistence failure nothing changes.
func (s *Store) Commit(ctx context.Context, next *domain.Request) error {
	if err := checkHistory(next); err != nil {
		return err
	}
	s.loadMu.RLock()
	defer s.loadMu.RUnlock()

	snapshot := next.Clone()
	if err := s.backend.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to persist request %s: %w", next.ID, err)
	}

	s.mu.Lock()
	s.requests[snapshot.ID] = snapshot
	s.mu.Unlock()
	return nil
}

// Now returns the store's current time.
func (s *Store) Now() time.Time { return s.now() }

// checkHistory enforces that the status mirrors the last stage entry.
func checkHistory(req *domain.Request) error {
	last, ok := req.LastStage()
	if !ok {
		return fmt.Errorf("%w: request %s has no stage history", domain.ErrValidationFailed, req.ID)
	}
	if last.Stage != req.Status {
		return fmt.Errorf("%w: request %s status %q does not match last stage %q",
			domain.ErrValidationFailed, req.ID, req.Status, last.Stage)
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
