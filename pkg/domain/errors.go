package domain

import (
	"errors"
	"fmt"
)

// Failure kinds returned by the transition engine. All of them are
// recoverable: the caller may retry after correcting the condition.
var (
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrValidationFailed       = errors.New("validation failed")
)

// ErrRequestNotFound is returned when a request ID is unknown to the store.
var ErrRequestNotFound = errors.New("request not found")

// ErrNotificationNotFound is returned when a notification ID is unknown.
var ErrNotificationNotFound = errors.New("notification not found")

// TransitionError describes a rejected command. It unwraps to one of the
// failure-kind sentinels so callers can use errors.Is.
type TransitionError struct {
	Kind      error
	RequestID string
	From      Status
	To        Status
	Reason    string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%v: request %s", e.Kind, e.RequestID)
	switch {
	case e.From != "" && e.To != "":
		msg += fmt.Sprintf(" (%s -> %s)", e.From, e.To)
	case e.To != "":
		msg += fmt.Sprintf(" (-> %s)", e.To)
	case e.From != "":
		msg += fmt.Sprintf(" (%s)", e.From)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return e.Kind }

// Rejection builds a TransitionError of the given kind.
func Rejection(kind error, req *Request, to Status, reason string) *TransitionError {
	te := &TransitionError{Kind: kind, To: to, Reason: reason}
	if req != nil {
		te.RequestID = req.ID
		te.From = req.Status
	}
	return te
}
