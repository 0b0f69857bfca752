package domain

import "time"

// Severity classifies a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// NotificationAction is a follow-up the UI can offer next to a notification.
// Ref is an opaque callback reference resolved by the UI.
type NotificationAction struct {
	Label string `json:"label"`
	Ref   string `json:"ref"`
}

// Notification is a message tied to a request by identifier.
type Notification struct {
	ID        string               `json:"id"`
	RequestID string               `json:"request_id"`
	Severity  Severity             `json:"severity"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	CreatedAt time.Time            `json:"created_at"`
	Read      bool                 `json:"read"`
	Actions   []NotificationAction `json:"actions,omitempty"`
}

// Clone returns a copy that does not share the actions slice.
func (n *Notification) Clone() *Notification {
	if n == nil {
		return nil
	}
	c := *n
	if n.Actions != nil {
		c.Actions = append([]NotificationAction{}, n.Actions...)
	}
	return &c
}
