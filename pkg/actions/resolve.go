// Package actions derives the pending actions a caller can take on a request.
package actions

import (
	"fmt"

	"github.com/aretw0/arcflow/pkg/domain"
)

// Caller is the actor asking, with the capabilities it holds.
type Caller struct {
	Actor        domain.Actor
	Capabilities map[domain.Capability]bool
}

// NewCaller builds a Caller by asking has for every known capability.
func NewCaller(actor domain.Actor, has func(domain.Capability) bool) Caller {
	c := Caller{Actor: actor, Capabilities: make(map[domain.Capability]bool)}
	for _, cp := range domain.Capabilities {
		if has(cp) {
			c.Capabilities[cp] = true
		}
	}
	return c
}

// Has reports whether the caller holds any of the capabilities.
func (c Caller) Has(caps ...domain.Capability) bool {
	for _, cp := range caps {
		if c.Capabilities[cp] {
			return true
		}
	}
	return false
}

// Resolve lists what the caller should do next on the request. board is the
// voting roster; without one, missing votes cannot be listed by name.
// The result is empty for terminal requests and when nothing is required of
// the caller.
func Resolve(req *domain.Request, caller Caller, board []string) []string {
	out := []string{}
	if req == nil || req.Status.IsTerminal() {
		return out
	}

	switch req.Status {
	case domain.StatusSubmitted:
		if caller.Has(domain.CapReview) {
			out = append(out, fmt.Sprintf("Begin ARC review of %q", req.Title))
		}

	case domain.StatusUnderReview:
		if caller.Has(domain.CapReview) {
			out = append(out, "Complete ARC review and choose the next stage")
		}

	case domain.StatusNeighborSignoff:
		out = append(out, signoffActions(req, caller)...)

	case domain.StatusBoardVoting:
		out = append(out, voteActions(req, caller, board)...)

	case domain.StatusApproved:
		if caller.Has(domain.CapExecute) {
			out = append(out, "Start the approved work")
		}

	case domain.StatusInProgress:
		if caller.Has(domain.CapExecute) {
			out = append(out, "Request final inspection when the work is finished")
		}

	case domain.StatusInspectionRequired:
		if caller.Has(domain.CapInspect) {
			last, ok := req.LatestInspection()
			switch {
			case !ok:
				out = append(out, "Perform final inspection")
			case last.Passed:
				out = append(out, "Close the request as completed")
			default:
				out = append(out, "Send the request back for rework")
			}
		}
	}
	return out
}

func signoffActions(req *domain.Request, caller Caller) []string {
	var out []string
	oversees := caller.Has(domain.CapReview, domain.CapBoard)
	pending := req.PendingSignoffs()

	for _, s := range pending {
		switch {
		case caller.Has(domain.CapSignoff) && s.NeighborID == caller.Actor.ID:
			out = append(out, "Record your neighbor sign-off")
		case oversees:
			out = append(out, fmt.Sprintf("Awaiting sign-off from %s", neighborName(s)))
		}
	}
	if len(pending) == 0 && oversees {
		out = append(out, "All neighbor sign-offs received: advance to board vote")
	}
	return out
}

func neighborName(s domain.NeighborSignoff) string {
	if s.Name != "" {
		return fmt.Sprintf("%s (%s)", s.Name, s.NeighborID)
	}
	return s.NeighborID
}

func voteActions(req *domain.Request, caller Caller, board []string) []string {
	var out []string
	if caller.Has(domain.CapVote) {
		if _, voted := req.VoteBy(caller.Actor.ID); !voted && onRoster(board, caller.Actor.ID) {
			out = append(out, "Cast your board vote")
		}
	}
	if caller.Has(domain.CapBoard, domain.CapReview) {
		if len(board) == 0 {
			// Without a roster the missing voters are unknown.
			return append(out, fmt.Sprintf("Awaiting board votes (%d cast)", len(req.Votes)))
		}
		missing := 0
		for _, member := range board {
			if member == caller.Actor.ID {
				continue
			}
			if _, voted := req.VoteBy(member); !voted {
				out = append(out, fmt.Sprintf("Awaiting vote from %s", member))
				missing++
			}
		}
		if missing == 0 {
			if _, voted := req.VoteBy(caller.Actor.ID); voted || !onRoster(board, caller.Actor.ID) {
				out = append(out, "All board votes cast: record the decision")
			}
		}
	}
	return out
}

func onRoster(board []string, id string) bool {
	if len(board) == 0 {
		return true
	}
	for _, m := range board {
		if m == id {
			return true
		}
	}
	return false
}
