package notify

import (
	"fmt"

	"github.com/aretw0/arcflow/pkg/domain"
)

// SeverityFor maps a target status to a notification severity.
func SeverityFor(to domain.Status) domain.Severity {
	switch to {
	case domain.StatusApproved, domain.StatusCompleted:
		return domain.SeveritySuccess
	case domain.StatusDenied:
		return domain.SeverityError
	case domain.StatusInspectionRequired:
		return domain.SeverityWarning
	default:
		return domain.SeverityInfo
	}
}

var titles = map[domain.Status]string{
	domain.StatusUnderReview:        "Request under review",
	domain.StatusNeighborSignoff:    "Neighbor sign-off requested",
	domain.StatusBoardVoting:        "Board vote opened",
	domain.StatusApproved:           "Request approved",
	domain.StatusDenied:             "Request denied",
	domain.StatusInProgress:         "Work in progress",
	domain.StatusInspectionRequired: "Inspection required",
	domain.StatusCompleted:          "Request completed",
}

// FromTransition derives the notification content for a transition.
func FromTransition(req *domain.Request, ev *domain.TransitionEvent) (domain.Severity, string, string, []domain.NotificationAction) {
	title, ok := titles[ev.To]
	if !ok {
		title = fmt.Sprintf("Request moved to %s", ev.To)
	}

	message := fmt.Sprintf("%q moved from %s to %s.", req.Title, ev.From, ev.To)
	if ev.Notes != "" {
		message += " " + ev.Notes
	}

	actions := []domain.NotificationAction{
		{Label: "View request", Ref: "request:" + req.ID},
	}
	switch ev.To {
	case domain.StatusNeighborSignoff:
		actions = append(actions, domain.NotificationAction{Label: "Record sign-off", Ref: "signoff:" + req.ID})
	case domain.StatusBoardVoting:
		actions = append(actions, domain.NotificationAction{Label: "Cast vote", Ref: "vote:" + req.ID})
	case domain.StatusInspectionRequired:
		actions = append(actions, domain.NotificationAction{Label: "Schedule inspection", Ref: "inspect:" + req.ID})
	}
	return SeverityFor(ev.To), title, message, actions
}
