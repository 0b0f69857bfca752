package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/arcflow/pkg/adapters/memory"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunRequestStoreContract(t, memory.NewStore())
}

func TestMemoryNotificationStore_Contract(t *testing.T) {
	ports.RunNotificationStoreContract(t, memory.NewNotificationStore())
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	req := &domain.Request{ID: "r1", Status: domain.StatusSubmitted, History: []domain.StageEntry{{Stage: domain.StatusSubmitted}}}
	require.NoError(t, store.Save(ctx, req))

	req.History[0].Actor = "mutated after save"
	loaded, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, loaded.History[0].Actor)

	loaded.Status = domain.StatusCompleted
	again, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, again.Status)
}

func TestMemoryNotificationStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewNotificationStore()
	require.NoError(t, store.Append(ctx, &domain.Notification{ID: "a", RequestID: "r1"}))
	require.NoError(t, store.Append(ctx, &domain.Notification{ID: "b", RequestID: "r2"}))
	require.NoError(t, store.Append(ctx, &domain.Notification{ID: "c", RequestID: "r1"}))

	require.NoError(t, store.Delete(ctx, "a", "c", "unknown"))

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].ID)

	// index must follow the compaction
	require.NoError(t, store.Update(ctx, &domain.Notification{ID: "b", RequestID: "r2", Read: true}))
	all, _ = store.List(ctx)
	assert.True(t, all[0].Read)
	assert.ErrorIs(t, store.Update(ctx, &domain.Notification{ID: "a"}), domain.ErrNotificationNotFound)
}
