// Package notify generates, stores and streams request notifications.
//
// Notifications reference requests by ID only. Transition notifications are
// composed from the target state; other notifications go through Dispatch.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/arcflow/internal/logging"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/ports"
)

// Dispatcher appends notifications to a store and fans them out to sinks.
type Dispatcher struct {
	store  ports.NotificationStore
	sinks  []ports.NotificationSink
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithSink adds a sink that receives every stored notification.
func WithSink(s ports.NotificationSink) Option {
	return func(d *Dispatcher) { d.sinks = append(d.sinks, s) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithIDGenerator overrides notification identifier generation.
func WithIDGenerator(gen func() string) Option {
	return func(d *Dispatcher) { d.newID = gen }
}

// WithLogger configures a logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a Dispatcher over store.
func New(store ports.NotificationStore, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch stores a new unread notification for the request.
func (d *Dispatcher) Dispatch(ctx context.Context, requestID string, severity domain.Severity, title, message string, actions ...domain.NotificationAction) (*domain.Notification, error) {
	n := &domain.Notification{
		ID:        d.newID(),
		RequestID: requestID,
		Severity:  severity,
		Title:     title,
		Message:   message,
		CreatedAt: d.now(),
		Actions:   actions,
	}
	if err := d.Deliver(ctx, n); err != nil {
		return nil, err
	}
	return n.Clone(), nil
}

// Compose builds the notification for a committed transition without
// storing it.
func (d *Dispatcher) Compose(req *domain.Request, ev *domain.TransitionEvent) *domain.Notification {
	severity, title, message, actions := FromTransition(req, ev)
	return &domain.Notification{
		ID:        d.newID(),
		RequestID: req.ID,
		Severity:  severity,
		Title:     title,
		Message:   message,
		CreatedAt: ev.Timestamp,
		Actions:   actions,
	}
}

// Deliver stores the notification and publishes it to every sink.
func (d *Dispatcher) Deliver(ctx context.Context, n *domain.Notification) error {
	if err := d.store.Append(ctx, n); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	for _, s := range d.sinks {
		s.Publish(n.Clone())
	}
	d.logger.Debug("notification dispatched",
		"notification_id", n.ID,
		"request_id", n.RequestID,
		"severity", n.Severity,
	)
	return nil
}

// List returns notifications for the request, or all of them when requestID
// is empty, oldest first.
func (d *Dispatcher) List(ctx context.Context, requestID string) ([]*domain.Notification, error) {
	return d.filter(ctx, func(n *domain.Notification) bool {
		return requestID == "" || n.RequestID == requestID
	})
}

// Unread returns unread notifications, optionally scoped to one request.
func (d *Dispatcher) Unread(ctx context.Context, requestID string) ([]*domain.Notification, error) {
	return d.filter(ctx, func(n *domain.Notification) bool {
		return !n.Read && (requestID == "" || n.RequestID == requestID)
	})
}

func (d *Dispatcher) filter(ctx context.Context, keep func(*domain.Notification) bool) ([]*domain.Notification, error) {
	all, err := d.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	out := []*domain.Notification{}
	for _, n := range all {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

// MarkRead flags the notification as read. Marking twice is a no-op.
func (d *Dispatcher) MarkRead(ctx context.Context, id string) error {
	all, err := d.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list notifications: %w", err)
	}
	for _, n := range all {
		if n.ID != id {
			continue
		}
		if n.Read {
			return nil
		}
		n.Read = true
		if err := d.store.Update(ctx, n); err != nil {
			return fmt.Errorf("failed to mark notification %s read: %w", id, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrNotificationNotFound, id)
}

// Clear removes notifications, optionally scoped to one request, and
// returns how many were removed.
func (d *Dispatcher) Clear(ctx context.Context, requestID string) (int, error) {
	if requestID == "" {
		all, err := d.store.List(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to list notifications: %w", err)
		}
		if err := d.store.Clear(ctx); err != nil {
			return 0, fmt.Errorf("failed to clear notifications: %w", err)
		}
		return len(all), nil
	}

	scoped, err := d.List(ctx, requestID)
	if err != nil {
		return 0, err
	}
	ids := make([]string, len(scoped))
	for i, n := range scoped {
		ids[i] = n.ID
	}
	if err := d.store.Delete(ctx, ids...); err != nil {
		return 0, fmt.Errorf("failed to clear notifications for %s: %w", requestID, err)
	}
	return len(ids), nil
}
