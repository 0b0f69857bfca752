package domain

// Status is the lifecycle stage of an ARC request.
type Status string

const (
	StatusSubmitted          Status = "submitted"
	StatusUnderReview        Status = "under-review"
	StatusNeighborSignoff    Status = "neighbor-signoff"
	StatusBoardVoting        Status = "board-voting"
	StatusApproved           Status = "approved"
	StatusDenied             Status = "denied"
	StatusInProgress         Status = "in-progress"
	StatusInspectionRequired Status = "inspection-required"
	StatusCompleted          Status = "completed"
)

// Statuses lists every stage in pipeline order.
var Statuses = []Status{
	StatusSubmitted,
	StatusUnderReview,
	StatusNeighborSignoff,
	StatusBoardVoting,
	StatusApproved,
	StatusDenied,
	StatusInProgress,
	StatusInspectionRequired,
	StatusCompleted,
}

// IsTerminal reports whether no transition may leave the status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusDenied
}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }
