package inflight

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/arcflow/internal/logging"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// entry tracks one in-flight request.
type entry struct {
	since  time.Time
	unlock ports.UnlockFunc // releases the distributed lock (if any)
}

// Guard is the set of request IDs with a command in flight.
type Guard struct {
	mu      sync.Mutex
	entries map[string]*entry

	locker ports.DistributedLocker // Optional distributed locker
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Guard.
type Option func(*Guard)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(g *Guard) {
		g.locker = locker
	}
}

// WithLockTTL sets the TTL of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithLogger configures a logger for the Guard.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithClock overrides the time source used for in-flight timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

// New creates an empty guard.
func New(opts ...Option) *Guard {
	g := &Guard{
		entries: make(map[string]*entry),
		ttl:     DefaultLockTTL,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Distributed reports whether marks are shared with other replicas.
func (g *Guard) Distributed() bool { return g.locker != nil }

// TryAcquire marks the request as in flight. It fails fast with
// domain.ErrConcurrentModification when the request is already marked.
// The returned release func MUST be called exactly once.
func (g *Guard) TryAcquire(ctx context.Context, requestID string) (release func(), err error) {
	g.mu.Lock()
	if _, busy := g.entries[requestID]; busy {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: request %s", domain.ErrConcurrentModification, requestID)
	}
	e := &entry{since: g.now()}
	g.entries[requestID] = e
	g.mu.Unlock()

	if g.locker != nil {
		unlock, ok, err := g.locker.TryLock(ctx, requestID, g.ttl)
		if err != nil {
			g.drop(requestID)
			return nil, fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		if !ok {
			g.drop(requestID)
			return nil, fmt.Errorf("%w: request %s is locked by another replica", domain.ErrConcurrentModification, requestID)
		}
		e.unlock = unlock
	}

	var once sync.Once
	return func() {
		once.Do(func() { g.release(requestID, e) })
	}, nil
}

// Do runs fn while holding the mark for requestID. The mark is released on
// every exit path, panics included.
func (g *Guard) Do(ctx context.Context, requestID string, fn func(context.Context) error) error {
	release, err := g.TryAcquire(ctx, requestID)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

func (g *Guard) release(requestID string, e *entry) {
	if e.unlock != nil {
		// Use a fresh context: the command context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.unlock(ctx); err != nil {
			g.logger.Warn("Failed to release distributed lock (will expire via TTL)",
				"request_id", requestID,
				"err", err,
			)
		}
	}
	g.drop(requestID)
}

func (g *Guard) drop(requestID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, requestID)
}

// IsInFlight reports whether a command is currently running for the request.
func (g *Guard) IsInFlight(requestID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.entries[requestID]
	return ok
}

// InFlight returns a sorted snapshot of the in-flight request IDs.
func (g *Guard) InFlight() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.entries))
	for id := range g.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Since returns when the request was marked in flight.
func (g *Guard) Since(requestID string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[requestID]
	if !ok {
		return time.Time{}, false
	}
	return e.since, true
}
