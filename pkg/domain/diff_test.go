package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	base := &Request{
		ID:     "req-1",
		Status: StatusSubmitted,
		History: []StageEntry{
			{Stage: StatusSubmitted, EnteredAt: t0, Actor: "owner-1"},
		},
	}

	t.Run("initial load", func(t *testing.T) {
		d := Diff(nil, base)
		require.NotNil(t, d)
		assert.Equal(t, "req-1", d.RequestID)
		require.NotNil(t, d.Status)
		assert.Equal(t, StatusSubmitted, *d.Status)
		assert.Len(t, d.History, 1)
		require.NotNil(t, d.Votes)
		assert.Equal(t, 0, *d.Votes)
	})

	t.Run("no changes", func(t *testing.T) {
		assert.Nil(t, Diff(base, base.Clone()))
	})

	t.Run("stage appended", func(t *testing.T) {
		next := base.Clone()
		next.AppendStage(StageEntry{Stage: StatusUnderReview, EnteredAt: t0.Add(time.Hour), Actor: "rev-1"})

		d := Diff(base, next)
		require.NotNil(t, d)
		require.NotNil(t, d.Status)
		assert.Equal(t, StatusUnderReview, *d.Status)
		require.Len(t, d.History, 1)
		assert.Equal(t, "rev-1", d.History[0].Actor)
		assert.Nil(t, d.Votes)
	})

	t.Run("sub-record only", func(t *testing.T) {
		next := base.Clone()
		next.Votes = append(next.Votes, BoardVote{VoterID: "b1", Decision: VoteApprove})

		d := Diff(base, next)
		require.NotNil(t, d)
		assert.Nil(t, d.Status)
		require.NotNil(t, d.Votes)
		assert.Equal(t, 1, *d.Votes)
	})

	t.Run("json omits unchanged fields", func(t *testing.T) {
		next := base.Clone()
		next.Messages = append(next.Messages, Message{Author: "owner-1", Body: "hi"})
		raw, err := json.Marshal(Diff(base, next))
		require.NoError(t, err)
		assert.JSONEq(t, `{"request_id":"req-1","messages":1}`, string(raw))
	})
}

func TestRequest_Helpers(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r := &Request{ID: "r"}
	_, ok := r.LastStage()
	assert.False(t, ok)

	r.AppendStage(StageEntry{Stage: StatusSubmitted, EnteredAt: t0, Actor: "a"})
	r.AppendStage(StageEntry{Stage: StatusUnderReview, EnteredAt: t0.Add(time.Hour), Actor: "b"})

	last, ok := r.LastStage()
	require.True(t, ok)
	assert.Equal(t, StatusUnderReview, last.Stage)
	assert.Equal(t, StatusUnderReview, r.Status)
	assert.True(t, r.HasStage(StatusSubmitted))
	assert.False(t, r.HasStage(StatusApproved))

	c := r.Clone()
	c.History[0].Actor = "mutated"
	assert.Equal(t, "a", r.History[0].Actor, "clone must not share history")
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusDenied.IsTerminal())
	assert.False(t, StatusApproved.IsTerminal())
	assert.True(t, Status("board-voting").IsValid())
	assert.False(t, Status("archived").IsValid())
}

func TestTransitionError(t *testing.T) {
	req := &Request{ID: "r1", Status: StatusSubmitted}
	err := Rejection(ErrInvalidTransition, req, StatusCompleted, "not in table")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, "invalid transition: request r1 (submitted -> completed): not in table", err.Error())
}
