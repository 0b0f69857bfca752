package ports

import "github.com/aretw0/arcflow/pkg/domain"

// NotificationSink receives every notification after it is stored.
// Streaming adapters implement it to push updates to connected clients.
type NotificationSink interface {
	Publish(n *domain.Notification)
}
