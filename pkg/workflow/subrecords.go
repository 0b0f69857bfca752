package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/arcflow/pkg/domain"
)

// requireMutable rejects commands against terminal requests.
func requireMutable(req *domain.Request) error {
	if req.Status.IsTerminal() {
		return domain.Rejection(domain.ErrInvalidTransition, req, "", fmt.Sprintf("request is %s and immutable", req.Status))
	}
	return nil
}

func requireStatus(req *domain.Request, want domain.Status) error {
	if req.Status != want {
		return domain.Rejection(domain.ErrValidationFailed, req, "", fmt.Sprintf("only allowed in %s", want))
	}
	return nil
}

// RecordSignoff records a neighbor's position. Neighbors may only answer for
// themselves; reviewers may record on anyone's behalf. When the sign-off
// policy auto-advances, the request moves to board-voting in the same commit.
func (e *Engine) RecordSignoff(ctx context.Context, requestID, neighborID string, status domain.SignoffStatus, comment string) (*domain.TransitionResult, error) {
	return e.command(ctx, requestID, "", func(next *domain.Request, actor domain.Actor) ([]change, error) {
		if err := requireMutable(next); err != nil {
			return nil, err
		}
		self := e.authz.HasPermission(ctx, domain.CapSignoff) && actor.ID == neighborID
		if !self && !e.authz.HasPermission(ctx, domain.CapReview) {
			return nil, domain.Rejection(domain.ErrPermissionDenied, next, "", "sign-offs are recorded by the neighbor or a reviewer")
		}
		if err := requireStatus(next, domain.StatusNeighborSignoff); err != nil {
			return nil, err
		}
		if !status.IsValid() {
			return nil, domain.Rejection(domain.ErrValidationFailed, next, "", fmt.Sprintf("unknown sign-off status %q", status))
		}

		idx := -1
		for i, s := range next.Signoffs {
			if s.NeighborID == neighborID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, domain.Rejection(domain.ErrValidationFailed, next, "", fmt.Sprintf("neighbor %s is not on record", neighborID))
		}
		next.Signoffs[idx].Status = status
		next.Signoffs[idx].Comment = comment
		next.Signoffs[idx].UpdatedAt = e.store.Now()

		if e.policy.Signoff.AutoAdvance && e.policy.Signoff.Check(next.Signoffs) == nil {
			return []change{{
				to:    domain.StatusBoardVoting,
				actor: domain.System(),
				notes: "neighbor sign-off policy satisfied",
			}}, nil
		}
		return nil, nil
	})
}

// CastVote records the caller's board vote. A second vote by the same voter
// replaces the first.
func (e *Engine) CastVote(ctx context.Context, requestID string, decision domain.VoteDecision, comment string) (*domain.Request, error) {
	res, err := e.command(ctx, requestID, "", func(next *domain.Request, actor domain.Actor) ([]change, error) {
		if err := requireMutable(next); err != nil {
			return nil, err
		}
		if !e.authz.HasPermission(ctx, domain.CapVote) || !e.onRoster(actor.ID) {
			return nil, domain.Rejection(domain.ErrPermissionDenied, next, "", "caller may not vote")
		}
		if err := requireStatus(next, domain.StatusBoardVoting); err != nil {
			return nil, err
		}
		if !decision.IsValid() {
			return nil, domain.Rejection(domain.ErrValidationFailed, next, "", fmt.Sprintf("unknown decision %q", decision))
		}

		vote := domain.BoardVote{VoterID: actor.ID, Decision: decision, Comment: comment, CastAt: e.store.Now()}
		for i, v := range next.Votes {
			if v.VoterID == actor.ID {
				next.Votes[i] = vote
				return nil, nil
			}
		}
		next.Votes = append(next.Votes, vote)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return res.Request, nil
}

func (e *Engine) onRoster(voterID string) bool {
	if len(e.policy.BoardMembers) == 0 {
		return true
	}
	for _, m := range e.policy.BoardMembers {
		if m == voterID {
			return true
		}
	}
	return false
}

// RecordInspection appends an inspection outcome.
func (e *Engine) RecordInspection(ctx context.Context, requestID string, passed bool, notes string) (*domain.Request, error) {
	res, err := e.command(ctx, requestID, "", func(next *domain.Request, actor domain.Actor) ([]change, error) {
		if err := requireMutable(next); err != nil {
			return nil, err
		}
		if !e.authz.HasPermission(ctx, domain.CapInspect) {
			return nil, domain.Rejection(domain.ErrPermissionDenied, next, "", "requires "+string(domain.CapInspect))
		}
		if err := requireStatus(next, domain.StatusInspectionRequired); err != nil {
			return nil, err
		}
		next.Inspections = append(next.Inspections, domain.Inspection{
			InspectorID: actor.ID,
			Passed:      passed,
			Notes:       notes,
			InspectedAt: e.store.Now(),
		})
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return res.Request, nil
}

// AddComment appends a message to the request's conversation thread.
func (e *Engine) AddComment(ctx context.Context, requestID, body string) (*domain.Request, error) {
	res, err := e.command(ctx, requestID, "", func(next *domain.Request, actor domain.Actor) ([]change, error) {
		if err := requireMutable(next); err != nil {
			return nil, err
		}
		if !e.authz.HasPermission(ctx, domain.CapView) {
			return nil, domain.Rejection(domain.ErrPermissionDenied, next, "", "requires "+string(domain.CapView))
		}
		if strings.TrimSpace(body) == "" {
			return nil, domain.Rejection(domain.ErrValidationFailed, next, "", "comment body is empty")
		}
		next.Messages = append(next.Messages, domain.Message{Author: actor.ID, Body: body, PostedAt: e.store.Now()})
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return res.Request, nil
}
