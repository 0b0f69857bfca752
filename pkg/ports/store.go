package ports

import (
	"context"

	"github.com/aretw0/arcflow/pkg/domain"
)

// RequestStore defines the interface for persisting ARC requests.
// The engine keeps an in-process copy; the store is the durable backing.
type RequestStore interface {
	// Save persists the full request snapshot, replacing any previous one.
	Save(ctx context.Context, req *domain.Request) error

	// Load retrieves a request by ID.
	// Returns domain.ErrRequestNotFound if the request does not exist.
	Load(ctx context.Context, id string) (*domain.Request, error)

	// Delete removes the request. Deleting a missing request is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all stored requests.
	List(ctx context.Context) ([]string, error)
}

// NotificationStore defines the interface for persisting notifications.
type NotificationStore interface {
	// Append stores a new notification.
	Append(ctx context.Context, n *domain.Notification) error

	// Update replaces an existing notification.
	// Returns domain.ErrNotificationNotFound if it does not exist.
	Update(ctx context.Context, n *domain.Notification) error

	// List returns every notification in insertion order.
	List(ctx context.Context) ([]*domain.Notification, error)

	// Delete removes the notifications with the given IDs. Unknown IDs are ignored.
	Delete(ctx context.Context, ids ...string) error

	// Clear removes every notification.
	Clear(ctx context.Context) error
}
