package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/arcflow/pkg/adapters/memory"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedaction_MasksFreeText(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStore()
	mw, err := middleware.NewRedactionMiddleware([]string{`\b\d{3}-\d{2}-\d{4}\b`, `(?i)gate code \d+`})
	require.NoError(t, err)
	store := mw(inner)

	req := request("r1")
	req.Messages = []domain.Message{{Author: "owner-1", Body: "My SSN is 123-45-6789"}}
	req.History = []domain.StageEntry{{Stage: domain.StatusSubmitted, Notes: "Gate code 4411 for the crew"}}
	require.NoError(t, store.Save(ctx, req))

	assert.Equal(t, "My SSN is 123-45-6789", req.Messages[0].Body, "caller's value must not change")

	got, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "My SSN is ***", got.Messages[0].Body)
	assert.Equal(t, "*** for the crew", got.History[0].Notes)
	assert.Equal(t, "Dana", got.Submitter.Name)
}

func TestRedaction_InvalidPattern(t *testing.T) {
	_, err := middleware.NewRedactionMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_Order(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStore()
	redact, err := middleware.NewRedactionMiddleware([]string{`secret`})
	require.NoError(t, err)
	seal, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: keyA})
	require.NoError(t, err)

	store := middleware.Chain(inner, redact, seal)
	req := request("r1")
	req.Description = "a secret arbor"
	require.NoError(t, store.Save(ctx, req))

	got, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "a *** arbor", got.Description)
	assert.Equal(t, "Dana", got.Submitter.Name)
}
