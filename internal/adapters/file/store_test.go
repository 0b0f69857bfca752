package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/arcflow/internal/adapters/file"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.RequestStore      = (*file.Store)(nil)
	_ ports.NotificationStore = (*file.NotificationStore)(nil)
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunRequestStoreContract(t, file.New(t.TempDir()))
}

func TestFileNotificationStore_Contract(t *testing.T) {
	ports.RunNotificationStoreContract(t, file.NewNotificationStore(filepath.Join(t.TempDir(), "n.json")))
}

func TestFileStore_ListEmptyDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "missing"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	store := file.New(t.TempDir())
	err := store.Save(context.Background(), &domain.Request{ID: "../escape"})
	assert.Error(t, err)
	_, err = store.Load(context.Background(), "")
	assert.Error(t, err)
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(ctx, &domain.Request{ID: "req-1", Title: "Fence"}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1.json", entries[0].Name())
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644))

	_, err := file.New(dir).Load(context.Background(), "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRequestNotFound)
}
