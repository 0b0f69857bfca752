package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ARC_STORE", "file")
	t.Setenv("ARC_DATA_DIR", dir)
	t.Setenv("ARC_METRICS", "false")
	t.Setenv("ARC_LOG_LEVEL", "error")
	t.Setenv("ARC_TEMPLATES_DIR", "")
	t.Setenv("ARC_POLICY_FILE", "")
	return dir
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--env-file", filepath.Join(dir, "missing.env")}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_RequestLifecycle(t *testing.T) {
	dir := setupEnv(t)

	out, err := run(t, dir, "request", "create", "--json=true",
		"--actor", "owner-1", "--role", domain.RoleHomeowner,
		"--file", filepath.Join("..", "..", "examples", "drafts", "solar.yaml"))
	require.NoError(t, err, out)
	var req domain.Request
	require.NoError(t, json.Unmarshal([]byte(out), &req))
	assert.Equal(t, domain.StatusSubmitted, req.Status)
	assert.Equal(t, "owner-1", req.Submitter.OwnerID)
	require.Len(t, req.Neighbors, 2)

	out, err = run(t, dir, "request", "transition", req.ID, "under-review", "--json=false",
		"--actor", "rev-1", "--role", domain.RoleReviewer)
	require.NoError(t, err, out)
	assert.Contains(t, out, "submitted -> under-review")

	out, err = run(t, dir, "request", "actions", req.ID, "--json=true")
	require.NoError(t, err, out)
	var todo []string
	require.NoError(t, json.Unmarshal([]byte(out), &todo))

	out, err = run(t, dir, "request", "ls", "--json=false", "--status", "under-review")
	require.NoError(t, err, out)
	assert.Contains(t, out, req.ID)
	assert.Contains(t, out, "Solar Panel Installation")

	out, err = run(t, dir, "notifications", "ls", "--json=true", "--request", req.ID, "--unread=true")
	require.NoError(t, err, out)
	var notes []domain.Notification
	require.NoError(t, json.Unmarshal([]byte(out), &notes))
	require.NotEmpty(t, notes)

	out, err = run(t, dir, "notifications", "read", notes[0].ID)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Marked 1 read")

	out, err = run(t, dir, "notifications", "clear", "--request", req.ID)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Removed")
}

func TestCLI_RequiresActor(t *testing.T) {
	dir := setupEnv(t)
	t.Setenv("ARC_ACTOR_ID", "")
	t.Setenv("ARC_ACTOR_ROLE", "")

	_, err := run(t, dir, "request", "transition", "nope", "under-review", "--actor", "", "--role", "")
	assert.ErrorContains(t, err, "an actor is required")
}

func TestCLI_PermissionDenied(t *testing.T) {
	dir := setupEnv(t)
	_, err := run(t, dir, "request", "create", "--json=false", "--file=",
		"--actor", "rev-1", "--role", domain.RoleReviewer,
		"--title", "Shed", "--classification", "shed", "--name", "Dana", "--address", "12 Elm Ct")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestCLI_ValidateSamples(t *testing.T) {
	dir := setupEnv(t)

	out, err := run(t, dir, "policy", "validate", "--json=false", filepath.Join("..", "..", "examples", "policy.yaml"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "sign-off mode majority")

	out, err = run(t, dir, "templates", "validate", filepath.Join("..", "..", "examples", "templates"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "Templates are valid")
}

func TestCLI_Version(t *testing.T) {
	out, err := run(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "arcflow version")
}

func TestCLI_Graph(t *testing.T) {
	out, err := run(t, t.TempDir(), "graph")
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, `submitted(("submitted"))`)
}
