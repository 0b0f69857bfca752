package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractRequest(id string) *domain.Request {
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	return &domain.Request{
		ID:             id,
		Title:          "Solar Panel Installation",
		Classification: "solar",
		Submitter:      domain.Contact{Name: "Dana", PropertyAddress: "12 Elm", OwnerID: "owner-1"},
		Status:         domain.StatusSubmitted,
		History: []domain.StageEntry{
			{Stage: domain.StatusSubmitted, EnteredAt: now, Actor: "owner-1"},
		},
		Signoffs: []domain.NeighborSignoff{
			{NeighborID: "n-1", Status: domain.SignoffPending},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RunRequestStoreContract runs a suite of tests to verify that a RequestStore
// implementation adheres to the defined interface contract.
func RunRequestStoreContract(t *testing.T, store RequestStore) {
	ctx := context.Background()
	id := "contract-req-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		req := contractRequest(id)
		require.NoError(t, store.Save(ctx, req), "Save should not return error")

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, req.Title, loaded.Title)
		assert.Equal(t, domain.StatusSubmitted, loaded.Status)
		require.Len(t, loaded.History, 1)
		assert.True(t, req.History[0].EnteredAt.Equal(loaded.History[0].EnteredAt))
		require.Len(t, loaded.Signoffs, 1)
		assert.Equal(t, domain.SignoffPending, loaded.Signoffs[0].Status)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		req := contractRequest(id)
		req.AppendStage(domain.StageEntry{Stage: domain.StatusUnderReview, EnteredAt: time.Now().UTC(), Actor: "rev-1"})
		require.NoError(t, store.Save(ctx, req))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusUnderReview, loaded.Status)
		assert.Len(t, loaded.History, 2)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+id)
		assert.ErrorIs(t, err, domain.ErrRequestNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, contractRequest(id)))
		require.NoError(t, store.Delete(ctx, id), "Delete should not return error")

		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrRequestNotFound, "Load after Delete should return ErrRequestNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := id + "-1"
		id2 := id + "-2"
		_ = store.Save(ctx, contractRequest(id1))
		_ = store.Save(ctx, contractRequest(id2))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

// RunNotificationStoreContract verifies a NotificationStore implementation.
// The store must be empty when the suite starts.
func RunNotificationStoreContract(t *testing.T, store NotificationStore) {
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	first := &domain.Notification{ID: "n-1", RequestID: "r-1", Severity: domain.SeverityInfo, Title: "one", CreatedAt: now}
	second := &domain.Notification{ID: "n-2", RequestID: "r-1", Severity: domain.SeveritySuccess, Title: "two", CreatedAt: now.Add(time.Minute)}

	t.Run("Append and List keeps order", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, first))
		require.NoError(t, store.Append(ctx, second))

		all, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "n-1", all[0].ID)
		assert.Equal(t, "n-2", all[1].ID)
	})

	t.Run("Update", func(t *testing.T) {
		read := first.Clone()
		read.Read = true
		require.NoError(t, store.Update(ctx, read))

		all, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.True(t, all[0].Read)
		assert.False(t, all[1].Read)
	})

	t.Run("Update Non-Existent", func(t *testing.T) {
		err := store.Update(ctx, &domain.Notification{ID: "missing"})
		assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		third := &domain.Notification{ID: "n-3", RequestID: "r-2", Severity: domain.SeverityWarning, Title: "three", CreatedAt: now.Add(2 * time.Minute)}
		require.NoError(t, store.Append(ctx, third))
		require.NoError(t, store.Delete(ctx, "n-2", "unknown"))

		all, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "n-1", all[0].ID)
		assert.Equal(t, "n-3", all[1].ID)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx))
		all, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}
