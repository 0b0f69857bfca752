package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTransition EventType = "transition"
	EventRejected   EventType = "rejected"
	EventSubrecord  EventType = "subrecord"
)

// TransitionEvent describes a committed or rejected command on a request.
type TransitionEvent struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	RequestID string        `json:"request_id"`
	From      Status        `json:"from"`
	To        Status        `json:"to"`
	Actor     Actor         `json:"actor"`
	Notes     string        `json:"notes,omitempty"`
	Err       error         `json:"-"`
	Duration  time.Duration `json:"duration"`
}

// TransitionResult is returned by a successful transition.
type TransitionResult struct {
	Request      *Request      `json:"request"`
	From         Status        `json:"from"`
	To           Status        `json:"to"`
	Notification *Notification `json:"notification,omitempty"`
	// AutoAdvanced holds follow-up transitions the engine performed itself.
	AutoAdvanced []Status `json:"auto_advanced,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTransition func(context.Context, *TransitionEvent)
	OnRejected   func(context.Context, *TransitionEvent)
	OnSubrecord  func(context.Context, *TransitionEvent)
}
