package arcflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/arcflow"
	"github.com/aretw0/arcflow/pkg/adapters/memory"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/notify"
	"github.com/aretw0/arcflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner     = domain.Actor{ID: "owner-1", Role: domain.RoleHomeowner}
	reviewer  = domain.Actor{ID: "rev-1", Role: domain.RoleReviewer}
	boardA    = domain.Actor{ID: "board-1", Role: domain.RoleBoardMember}
	boardB    = domain.Actor{ID: "board-2", Role: domain.RoleBoardMember}
	inspector = domain.Actor{ID: "insp-1", Role: domain.RoleInspector}
)

func as(a domain.Actor) context.Context {
	return arcflow.WithActor(context.Background(), a)
}

func solarDraft(neighbors ...domain.Neighbor) domain.Draft {
	return domain.Draft{
		Title:          "Solar Panel Installation",
		Description:    "12 roof panels, south face",
		Classification: "solar",
		Submitter:      domain.Contact{Name: "Dana", PropertyAddress: "12 Elm Ct", Email: "dana@example.com"},
		Neighbors:      neighbors,
	}
}

func TestEngine_SolarPanelLifecycle(t *testing.T) {
	clock := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Hour)
		return clock
	}

	policy := workflow.DefaultPolicy()
	policy.BoardMembers = []string{boardA.ID, boardB.ID}
	eng, err := arcflow.New(arcflow.WithClock(now), arcflow.WithPolicy(policy))
	require.NoError(t, err)
	ctx := context.Background()

	req, err := eng.CreateRequest(as(owner), solarDraft(
		domain.Neighbor{ID: "n-1", Name: "Lee"},
		domain.Neighbor{ID: "n-2", Name: "Kim"},
	))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, req.Status)
	assert.Equal(t, owner.ID, req.Submitter.OwnerID)

	pct, err := eng.CalculateProgress(ctx, req.ID)
	require.NoError(t, err)
	assert.Greater(t, pct, 0)
	assert.Less(t, pct, 100)

	_, err = eng.TransitionRequest(as(reviewer), req.ID, domain.StatusUnderReview, "")
	require.NoError(t, err)
	_, err = eng.TransitionRequest(as(reviewer), req.ID, domain.StatusNeighborSignoff, "")
	require.NoError(t, err)

	next, err := eng.GetAvailableTransitions(as(reviewer), req.ID)
	require.NoError(t, err)
	assert.NotContains(t, next, domain.StatusBoardVoting, "sign-offs still pending")

	for _, n := range []string{"n-1", "n-2"} {
		neighbor := domain.Actor{ID: n, Role: domain.RoleNeighbor}
		_, err = eng.RecordSignoff(as(neighbor), req.ID, n, domain.SignoffSigned, "fine by me")
		require.NoError(t, err)
	}

	next, err = eng.GetAvailableTransitions(as(reviewer), req.ID)
	require.NoError(t, err)
	assert.Contains(t, next, domain.StatusBoardVoting)

	_, err = eng.TransitionRequest(as(reviewer), req.ID, domain.StatusBoardVoting, "")
	require.NoError(t, err)

	todo, err := eng.GetRequiredActions(as(boardA), req.ID)
	require.NoError(t, err)
	assert.Contains(t, todo, "Cast your board vote")

	_, err = eng.CastVote(as(boardA), req.ID, domain.VoteApprove, "")
	require.NoError(t, err)
	_, err = eng.CastVote(as(boardB), req.ID, domain.VoteApprove, "looks good")
	require.NoError(t, err)

	res, err := eng.TransitionRequest(as(boardA), req.ID, domain.StatusApproved, "")
	require.NoError(t, err)
	require.NotNil(t, res.Notification)
	assert.Equal(t, domain.SeveritySuccess, res.Notification.Severity)

	unread, err := eng.GetUnreadNotifications(ctx, req.ID)
	require.NoError(t, err)
	var approvedID string
	for _, n := range unread {
		if n.Severity == domain.SeveritySuccess {
			approvedID = n.ID
		}
	}
	require.NotEmpty(t, approvedID, "approval notification must be unread")

	require.NoError(t, eng.MarkNotificationRead(ctx, approvedID))
	require.NoError(t, eng.MarkNotificationRead(ctx, approvedID), "marking read twice is idempotent")
	unread, err = eng.GetUnreadNotifications(ctx, req.ID)
	require.NoError(t, err)
	for _, n := range unread {
		assert.NotEqual(t, approvedID, n.ID)
	}

	_, err = eng.TransitionRequest(as(owner), req.ID, domain.StatusInProgress, "")
	require.NoError(t, err)
	_, err = eng.TransitionRequest(as(owner), req.ID, domain.StatusInspectionRequired, "")
	require.NoError(t, err)
	_, err = eng.RecordInspection(as(inspector), req.ID, true, "wiring to code")
	require.NoError(t, err)
	_, err = eng.TransitionRequest(as(inspector), req.ID, domain.StatusCompleted, "")
	require.NoError(t, err)

	final, err := eng.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, final.Status)
	assert.Len(t, final.History, 8)
	for i := 1; i < len(final.History); i++ {
		assert.True(t, final.History[i].EnteredAt.After(final.History[i-1].EnteredAt), "history is chronological")
	}
	assert.Len(t, final.NotificationIDs, 7, "one notification per transition")

	pct, err = eng.CalculateProgress(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, pct)

	eta, err := eng.GetEstimatedCompletion(ctx, req.ID)
	require.NoError(t, err)
	assert.Nil(t, eta, "terminal requests have no estimate")

	steps, err := eng.GetWorkflowSteps(ctx, req.ID)
	require.NoError(t, err)
	for _, s := range steps {
		assert.True(t, s.IsCompleted, s.Title)
		assert.False(t, s.IsActive, s.Title)
	}

	next, err = eng.GetAvailableTransitions(as(reviewer), req.ID)
	require.NoError(t, err)
	assert.Empty(t, next)
}

func TestEngine_Denial(t *testing.T) {
	eng, err := arcflow.New()
	require.NoError(t, err)
	ctx := context.Background()

	req, err := eng.CreateRequest(as(owner), solarDraft())
	require.NoError(t, err)

	_, err = eng.TransitionRequest(as(reviewer), req.ID, domain.StatusDenied, "")
	assert.ErrorIs(t, err, domain.ErrValidationFailed, "denial needs a reason")

	res, err := eng.TransitionRequest(as(reviewer), req.ID, domain.StatusDenied, "Panels exceed roofline limits")
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityError, res.Notification.Severity)
	assert.Contains(t, res.Notification.Message, "Panels exceed roofline limits")

	_, err = eng.TransitionRequest(as(reviewer), req.ID, domain.StatusUnderReview, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "denied is terminal")

	got, err := eng.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	last, _ := got.LastStage()
	assert.Equal(t, "Panels exceed roofline limits", last.Notes)

	todo, err := eng.GetRequiredActions(as(reviewer), req.ID)
	require.NoError(t, err)
	assert.Empty(t, todo)
}

func TestEngine_PermissionBoundary(t *testing.T) {
	eng, err := arcflow.New()
	require.NoError(t, err)
	ctx := context.Background()

	_, err = eng.CreateRequest(as(reviewer), solarDraft())
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	req, err := eng.CreateRequest(as(owner), solarDraft())
	require.NoError(t, err)

	_, err = eng.TransitionRequest(as(owner), req.ID, domain.StatusUnderReview, "")
	var te *domain.TransitionError
	require.True(t, errors.As(err, &te))
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Equal(t, domain.StatusSubmitted, te.From)

	got, err := eng.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, got.Status, "rejected commands leave no trace")
	assert.Len(t, got.History, 1)

	ok, err := eng.CanPerformAction(as(owner), req.ID, domain.CapReview)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = eng.CanPerformAction(as(reviewer), req.ID, domain.CapReview)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = eng.GetRequest(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)
}

type slowStore struct {
	*memory.Store
	delay time.Duration
}

func (s *slowStore) Save(ctx context.Context, r *domain.Request) error {
	time.Sleep(s.delay)
	return s.Store.Save(ctx, r)
}

func TestEngine_ConcurrentTransitions(t *testing.T) {
	eng, err := arcflow.New(arcflow.WithRequestStore(&slowStore{Store: memory.NewStore(), delay: 100 * time.Millisecond}))
	require.NoError(t, err)

	req, err := eng.CreateRequest(as(owner), solarDraft())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.TransitionRequest(as(reviewer), req.ID, domain.StatusUnderReview, "")
		}(i)
	}
	wg.Wait()

	var ok, busy int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrConcurrentModification):
			busy++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, busy)

	got, err := eng.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Len(t, got.History, 2)

	st, err := eng.State(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.InFlight)
}

func TestEngine_SubscribeReceivesDiffs(t *testing.T) {
	eng, err := arcflow.New()
	require.NoError(t, err)

	events, cancel := eng.Subscribe("")
	defer cancel()

	req, err := eng.CreateRequest(as(owner), solarDraft())
	require.NoError(t, err)

	select {
	case raw := <-events:
		var ev notify.Event
		require.NoError(t, json.Unmarshal([]byte(raw), &ev))
		assert.Equal(t, req.ID, ev.RequestID)
		require.NotNil(t, ev.Diff)
		require.NotNil(t, ev.Diff.Status)
		assert.Equal(t, domain.StatusSubmitted, *ev.Diff.Status)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestEngine_ClearNotifications(t *testing.T) {
	eng, err := arcflow.New()
	require.NoError(t, err)
	ctx := context.Background()

	a, err := eng.CreateRequest(as(owner), solarDraft())
	require.NoError(t, err)
	b, err := eng.CreateRequest(as(owner), solarDraft())
	require.NoError(t, err)
	_, err = eng.TransitionRequest(as(reviewer), a.ID, domain.StatusUnderReview, "")
	require.NoError(t, err)
	_, err = eng.TransitionRequest(as(reviewer), b.ID, domain.StatusUnderReview, "")
	require.NoError(t, err)

	n, err := eng.ClearNotifications(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := eng.ListNotifications(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, b.ID, all[0].RequestID)
}

func TestNew_RejectsInvalidPolicy(t *testing.T) {
	_, err := arcflow.New(arcflow.WithPolicy(workflow.Policy{EstimateMode: "psychic"}))
	assert.Error(t, err)
}
