package middleware_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/aretw0/arcflow/pkg/adapters/memory"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/persistence/middleware"
	"github.com/aretw0/arcflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keyA = bytes.Repeat([]byte{'a'}, 32)
	keyB = bytes.Repeat([]byte{'b'}, 32)
)

func request(id string) *domain.Request {
	return &domain.Request{
		ID:     id,
		Title:  "Fence",
		Status: domain.StatusSubmitted,
		Submitter: domain.Contact{
			Name:            "Dana",
			PropertyAddress: "12 Elm Ct",
			Email:           "dana@example.com",
			OwnerID:         "owner-1",
		},
	}
}

func encrypted(t *testing.T, cfg middleware.EncryptionConfig, inner ports.RequestStore) ports.RequestStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(inner)
}

func TestEncryption_Contract(t *testing.T) {
	ports.RunRequestStoreContract(t, encrypted(t, middleware.EncryptionConfig{ActiveKey: keyA}, memory.NewStore()))
}

func TestEncryption_SealsContactAtRest(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStore()
	store := encrypted(t, middleware.EncryptionConfig{ActiveKey: keyA}, inner)

	req := request("r1")
	require.NoError(t, store.Save(ctx, req))
	assert.Equal(t, "Dana", req.Submitter.Name, "caller's value must not change")

	raw, err := inner.Load(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw.Submitter.Email, "enc:v1:"))
	assert.NotContains(t, raw.Submitter.Name, "Dana")
	assert.Empty(t, raw.Submitter.Phone, "empty fields stay empty")
	assert.Equal(t, "owner-1", raw.Submitter.OwnerID)
	assert.Equal(t, "Fence", raw.Title)

	got, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, req.Submitter, got.Submitter)
}

func TestEncryption_KeyRotation(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStore()

	old := encrypted(t, middleware.EncryptionConfig{ActiveKey: keyA}, inner)
	require.NoError(t, old.Save(ctx, request("r1")))

	rotated := encrypted(t, middleware.EncryptionConfig{ActiveKey: keyB, FallbackKeys: [][]byte{keyA}}, inner)
	got, err := rotated.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", got.Submitter.Email)

	wrong := encrypted(t, middleware.EncryptionConfig{ActiveKey: keyB}, inner)
	_, err = wrong.Load(ctx, "r1")
	assert.ErrorContains(t, err, "decryption failed")
}

func TestEncryption_ReadsPlaintextRecords(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStore()
	require.NoError(t, inner.Save(ctx, request("legacy")))

	got, err := encrypted(t, middleware.EncryptionConfig{ActiveKey: keyA}, inner).Load(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, "Dana", got.Submitter.Name)
}

func TestNewEncryptionMiddleware_RejectsShortKeys(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: keyA, FallbackKeys: [][]byte{[]byte("x")}})
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	key, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(keyA))
	require.NoError(t, err)
	assert.Equal(t, keyA, key)

	_, err = middleware.ParseKey("not base64!")
	assert.Error(t, err)
	_, err = middleware.ParseKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}
