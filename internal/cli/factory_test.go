package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arcflow"
	"github.com/aretw0/arcflow/internal/config"
	"github.com/aretw0/arcflow/internal/logging"
	"github.com/aretw0/arcflow/pkg/adapters/memory"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, store string) *config.Configuration {
	t.Helper()
	return &config.Configuration{
		Store:    store,
		DataDir:  t.TempDir(),
		LogLevel: "info",
		HTTPPort: 8080,
	}
}

func fastBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 5)
}

var owner = domain.Actor{ID: "owner-1", Role: domain.RoleHomeowner}

func draft() domain.Draft {
	return domain.Draft{
		Title:          "Pergola",
		Classification: "structure",
		Submitter:      domain.Contact{Name: "Dana", PropertyAddress: "12 Elm Ct"},
	}
}

func TestBootstrap_FileStoreSurvivesRestart(t *testing.T) {
	cfg := testConfig(t, config.StoreFile)
	ctx := context.Background()

	rt, err := Bootstrap(ctx, cfg, logging.NewNop())
	require.NoError(t, err)
	req, err := rt.Engine.CreateRequest(arcflow.WithActor(ctx, owner), draft())
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	assert.FileExists(t, filepath.Join(cfg.DataDir, "requests", req.ID+".json"))

	again, err := Bootstrap(ctx, cfg, logging.NewNop())
	require.NoError(t, err)
	got, err := again.Engine.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pergola", got.Title)
}

func TestBootstrap_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, config.StoreRedis)
	cfg.Redis = config.RedisOptions{Addr: mr.Addr(), Prefix: "test:"}
	cfg.Metrics = true

	rt, err := Bootstrap(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer rt.Close()
	require.NotNil(t, rt.Metrics)

	_, err = rt.Engine.CreateRequest(arcflow.WithActor(context.Background(), owner), draft())
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:requests"))
}

func TestBootstrap_PolicyFile(t *testing.T) {
	cfg := testConfig(t, config.StoreMemory)
	cfg.PolicyFile = filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(cfg.PolicyFile, []byte("board_members: [b1, b2]\n"), 0o644))

	rt, err := Bootstrap(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2"}, rt.Engine.Policy().BoardMembers)
}

func TestBootstrap_BadPolicyFile(t *testing.T) {
	cfg := testConfig(t, config.StoreMemory)
	cfg.PolicyFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := Bootstrap(context.Background(), cfg, logging.NewNop())
	assert.Error(t, err)
}

type flakyStore struct {
	*memory.Store
	failures int32
	calls    atomic.Int32
}

func (f *flakyStore) List(ctx context.Context) ([]string, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, errors.New("connection refused")
	}
	return f.Store.List(ctx)
}

func TestBootstrap_RetriesTransientLoadFailures(t *testing.T) {
	store := &flakyStore{Store: memory.NewStore(), failures: 2}
	rt, err := Bootstrap(context.Background(), testConfig(t, config.StoreMemory), logging.NewNop(),
		WithRequestStoreOverride(store),
		WithBackOff(fastBackOff),
	)
	require.NoError(t, err)
	require.NotNil(t, rt.Engine)
	assert.Equal(t, int32(3), store.calls.Load())
}

func TestBootstrap_GivesUp(t *testing.T) {
	store := &flakyStore{Store: memory.NewStore(), failures: 100}
	_, err := Bootstrap(context.Background(), testConfig(t, config.StoreMemory), logging.NewNop(),
		WithRequestStoreOverride(store),
		WithBackOff(fastBackOff),
	)
	require.Error(t, err)
	assert.Equal(t, int32(6), store.calls.Load())
}

func TestBootstrap_CorruptDataIsPermanent(t *testing.T) {
	cfg := testConfig(t, config.StoreFile)
	dir := filepath.Join(cfg.DataDir, "requests")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{oops"), 0o644))

	start := time.Now()
	_, err := Bootstrap(context.Background(), cfg, logging.NewNop(), WithBackOff(func() backoff.BackOff {
		return backoff.NewConstantBackOff(time.Second)
	}))
	require.Error(t, err)
	var syntaxErr *json.SyntaxError
	assert.ErrorAs(t, err, &syntaxErr)
	assert.Less(t, time.Since(start), time.Second, "corrupt data must not be retried")
}

func TestBootstrap_EncryptsContactAtRest(t *testing.T) {
	cfg := testConfig(t, config.StoreFile)
	cfg.EncryptionKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{'k'}, 32))
	cfg.RedactPatterns = []string{`\d{3}-\d{2}-\d{4}`}
	ctx := context.Background()

	rt, err := Bootstrap(ctx, cfg, logging.NewNop())
	require.NoError(t, err)
	d := draft()
	d.Description = "Contractor license 123-45-6789"
	req, err := rt.Engine.CreateRequest(arcflow.WithActor(ctx, owner), d)
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	raw, err := os.ReadFile(filepath.Join(cfg.DataDir, "requests", req.ID+".json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "12 Elm Ct")
	assert.NotContains(t, string(raw), "123-45-6789")
	assert.Contains(t, string(raw), "enc:v1:")

	again, err := Bootstrap(ctx, cfg, logging.NewNop())
	require.NoError(t, err)
	got, err := again.Engine.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "12 Elm Ct", got.Submitter.PropertyAddress)
	assert.Equal(t, "Contractor license ***", got.Description)
}

func TestBootstrap_BadEncryptionKey(t *testing.T) {
	cfg := testConfig(t, config.StoreMemory)
	cfg.EncryptionKey = "too-short"
	_, err := Bootstrap(context.Background(), cfg, logging.NewNop())
	assert.ErrorContains(t, err, "ARC_ENCRYPTION_KEY")
}
