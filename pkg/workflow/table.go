package workflow

import (
	"fmt"

	"github.com/aretw0/arcflow/pkg/domain"
)

// Guard checks an edge-specific precondition. A non-nil error is reported
// as domain.ErrValidationFailed.
type Guard func(c *edgeContext) error

// Edge is a single allowed transition in the request state machine.
type Edge struct {
	From domain.Status
	To   domain.Status
	// AnyOf lists the capabilities of which the caller needs at least one.
	AnyOf []domain.Capability
	// RequiresNotes marks edges that need a non-empty reason.
	RequiresNotes bool
	// Guards are evaluated after the permission check, in order.
	Guards []Guard
	// Rule is a human-readable summary of the guards.
	Rule string
}

// edgeContext is what guards see while an edge is evaluated.
type edgeContext struct {
	req    *domain.Request
	policy Policy
	// override is true when the caller holds requests:override.
	override bool
}

var transitionsTable = []Edge{
	{From: domain.StatusSubmitted, To: domain.StatusUnderReview,
		AnyOf: caps(domain.CapReview)},
	{From: domain.StatusSubmitted, To: domain.StatusDenied,
		AnyOf: caps(domain.CapReview, domain.CapBoard), RequiresNotes: true,
		Rule: "reason required"},

	{From: domain.StatusUnderReview, To: domain.StatusNeighborSignoff,
		AnyOf: caps(domain.CapReview), Guards: []Guard{hasNeighbors},
		Rule: "at least one neighbor on record"},
	{From: domain.StatusUnderReview, To: domain.StatusBoardVoting,
		AnyOf: caps(domain.CapReview), Guards: []Guard{signoffExempt},
		Rule: "classification does not require neighbor sign-off"},
	{From: domain.StatusUnderReview, To: domain.StatusApproved,
		AnyOf: caps(domain.CapReview, domain.CapBoard)},
	{From: domain.StatusUnderReview, To: domain.StatusDenied,
		AnyOf: caps(domain.CapReview, domain.CapBoard), RequiresNotes: true,
		Rule: "reason required"},

	{From: domain.StatusNeighborSignoff, To: domain.StatusBoardVoting,
		AnyOf: caps(domain.CapReview, domain.CapBoard), Guards: []Guard{signoffsResolved},
		Rule: "sign-off policy satisfied, or override"},
	{From: domain.StatusNeighborSignoff, To: domain.StatusDenied,
		AnyOf: caps(domain.CapReview, domain.CapBoard), RequiresNotes: true,
		Rule: "reason required"},

	{From: domain.StatusBoardVoting, To: domain.StatusApproved,
		AnyOf: caps(domain.CapBoard, domain.CapReview)},
	{From: domain.StatusBoardVoting, To: domain.StatusDenied,
		AnyOf: caps(domain.CapBoard, domain.CapReview), RequiresNotes: true,
		Rule: "reason required"},

	{From: domain.StatusApproved, To: domain.StatusInProgress,
		AnyOf: caps(domain.CapExecute)},
	{From: domain.StatusInProgress, To: domain.StatusInspectionRequired,
		AnyOf: caps(domain.CapExecute, domain.CapReview)},

	{From: domain.StatusInspectionRequired, To: domain.StatusCompleted,
		AnyOf: caps(domain.CapInspect), Guards: []Guard{lastInspectionPassed},
		Rule: "latest inspection (if any) passed"},
	{From: domain.StatusInspectionRequired, To: domain.StatusInProgress,
		AnyOf: caps(domain.CapInspect), Guards: []Guard{lastInspectionFailed},
		Rule: "latest inspection failed"},
}

func caps(c ...domain.Capability) []domain.Capability { return c }

// Table returns a copy of the transition table.
func Table() []Edge {
	out := make([]Edge, len(transitionsTable))
	copy(out, transitionsTable)
	return out
}

// EdgeFor returns the edge between two statuses.
func EdgeFor(from, to domain.Status) (Edge, bool) {
	for _, e := range transitionsTable {
		if e.From == from && e.To == to {
			return e, true
		}
	}
	return Edge{}, false
}

// Outgoing returns the edges leaving a status, in table order.
func Outgoing(from domain.Status) []Edge {
	var out []Edge
	for _, e := range transitionsTable {
		if e.From == from {
			out = append(out, e)
		}
	}
	return out
}

func hasNeighbors(c *edgeContext) error {
	if len(c.req.Signoffs) == 0 {
		return fmt.Errorf("no neighbors on record")
	}
	return nil
}

func signoffExempt(c *edgeContext) error {
	if !c.policy.RequiresSignoff(c.req.Classification) {
		return nil
	}
	return fmt.Errorf("classification %q requires neighbor sign-off", c.req.Classification)
}

func signoffsResolved(c *edgeContext) error {
	if c.override {
		return nil
	}
	return c.policy.Signoff.Check(c.req.Signoffs)
}

func lastInspectionPassed(c *edgeContext) error {
	last, ok := c.req.LatestInspection()
	if ok && !last.Passed {
		return fmt.Errorf("latest inspection failed")
	}
	return nil
}

func lastInspectionFailed(c *edgeContext) error {
	last, ok := c.req.LatestInspection()
	if !ok {
		return fmt.Errorf("no inspection on record")
	}
	if last.Passed {
		return fmt.Errorf("latest inspection passed")
	}
	return nil
}
