package domain

// RequestDiff represents the changes between two snapshots of a request.
// It is serialized to JSON for partial updates on streaming clients.
type RequestDiff struct {
	// RequestID is always present to identify the target.
	RequestID string `json:"request_id"`

	Status *Status `json:"status,omitempty"`

	// History contains only the stage entries appended since the old snapshot.
	History []StageEntry `json:"history,omitempty"`

	// Counts of sub-records that changed size.
	Signoffs    *int `json:"signoffs,omitempty"`
	Votes       *int `json:"votes,omitempty"`
	Inspections *int `json:"inspections,omitempty"`
	Messages    *int `json:"messages,omitempty"`
}

// Diff calculates the difference between oldReq and newReq.
// If oldReq is nil, it returns a diff representing the entire newReq (initial load).
// It returns nil when nothing changed.
func Diff(oldReq, newReq *Request) *RequestDiff {
	if newReq == nil {
		return nil
	}

	diff := &RequestDiff{RequestID: newReq.ID}

	if oldReq == nil || oldReq.Status != newReq.Status {
		s := newReq.Status
		diff.Status = &s
	}

	diff.History = diffHistory(oldReq, newReq)

	if oldReq == nil {
		diff.Signoffs = intPtr(len(newReq.Signoffs))
		diff.Votes = intPtr(len(newReq.Votes))
		diff.Inspections = intPtr(len(newReq.Inspections))
		diff.Messages = intPtr(len(newReq.Messages))
		return diff
	}

	diff.Signoffs = changedCount(len(oldReq.Signoffs), len(newReq.Signoffs))
	diff.Votes = changedCount(len(oldReq.Votes), len(newReq.Votes))
	diff.Inspections = changedCount(len(oldReq.Inspections), len(newReq.Inspections))
	diff.Messages = changedCount(len(oldReq.Messages), len(newReq.Messages))

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// diffHistory relies on the history being append-only.
func diffHistory(old, new *Request) []StageEntry {
	if len(new.History) == 0 {
		return nil
	}
	if old == nil {
		return append([]StageEntry{}, new.History...)
	}
	if len(new.History) > len(old.History) {
		return append([]StageEntry{}, new.History[len(old.History):]...)
	}
	return nil
}

func changedCount(oldLen, newLen int) *int {
	if oldLen == newLen {
		return nil
	}
	return intPtr(newLen)
}

func intPtr(v int) *int { return &v }

// IsEmpty checks if the diff contains any actionable changes.
func (d *RequestDiff) IsEmpty() bool {
	return d.Status == nil &&
		len(d.History) == 0 &&
		d.Signoffs == nil &&
		d.Votes == nil &&
		d.Inspections == nil &&
		d.Messages == nil
}
