// Copyright (C) 2025 MetaMorph AI
// Tests for destination resolution.

package dispatch

import (
	"testing"

	"github.com/metamorphhq/metamorph/services/relay/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTable() *Table {
	return NewTable(TableConfig{
		DashboardWebhookURL: "https://dashboard.example.com/api/webhooks",
		GitHubDispatchRepo:  "metamorphhq/demo",
	})
}

// =============================================================================
// Resolve Tests
// =============================================================================

func TestTable_ResolveVercel(t *testing.T) {
	dest, err := newTestTable().Resolve(datatypes.RelayRequest{Type: TypeVercel})
	require.NoError(t, err)
	assert.Equal(t, TypeVercel, dest.Name)
	assert.Equal(t, "https://dashboard.example.com/api/webhooks", dest.URL)
}

func TestTable_ResolveGitHub(t *testing.T) {
	dest, err := newTestTable().Resolve(datatypes.RelayRequest{Type: TypeGitHub})
	require.NoError(t, err)
	assert.Equal(t, "https://api.github.com/repos/metamorphhq/demo/dispatches", dest.URL)
}

func TestTable_ResolveUnknownType(t *testing.T) {
	_, err := newTestTable().Resolve(datatypes.RelayRequest{Type: "slack"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestTable_ResolveMissingTypeAndTarget(t *testing.T) {
	_, err := newTestTable().Resolve(datatypes.RelayRequest{})
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestTable_ExplicitTargetWinsOverType(t *testing.T) {
	req := datatypes.RelayRequest{
		Type:    TypeVercel,
		Target:  "https://other.example.com/hook",
		Headers: map[string]string{"Authorization": "Bearer secret"},
	}
	dest, err := newTestTable().Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "explicit", dest.Name)
	assert.Equal(t, "https://other.example.com/hook", dest.URL)

	// Explicit targets forward the caller's headers untransformed.
	require.NotNil(t, dest.Headers)
	assert.Equal(t, "Bearer secret", dest.Headers(req)["Authorization"])
	assert.Nil(t, dest.BuildPayload)
}

// =============================================================================
// Payload / Header Shape Tests
// =============================================================================

func TestTable_VercelPayloadShape(t *testing.T) {
	dest, err := newTestTable().Resolve(datatypes.RelayRequest{
		Type:      TypeVercel,
		Message:   "error rate spiked",
		Timestamp: "2026-09-01T12:00:00Z",
	})
	require.NoError(t, err)
	require.NotNil(t, dest.BuildPayload)

	payload, ok := dest.BuildPayload(datatypes.RelayRequest{
		Message:   "error rate spiked",
		Timestamp: "2026-09-01T12:00:00Z",
	}).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ANALYZING", payload["status"])
	assert.Equal(t, "warning", payload["type"])
	assert.Equal(t, "error rate spiked", payload["message"])
}

func TestTable_GitHubPayloadAndHeaders(t *testing.T) {
	table := newTestTable()
	req := datatypes.RelayRequest{
		Type:      TypeGitHub,
		Mission:   "fix the null deref in checkout",
		Error:     "TypeError: cannot read properties of null",
		GithubPAT: "ghp_secret",
	}
	dest, err := table.Resolve(req)
	require.NoError(t, err)

	payload, ok := dest.BuildPayload(req).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "deploy-agent", payload["event_type"])

	client, ok := payload["client_payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "fix the null deref in checkout", client["mission"])
	assert.Equal(t, "TypeError: cannot read properties of null", client["original_error"])

	headers := dest.Headers(req)
	assert.Equal(t, "Bearer ghp_secret", headers["Authorization"])
	assert.Equal(t, "application/vnd.github.v3+json", headers["Accept"])
}

func TestTable_Types(t *testing.T) {
	assert.ElementsMatch(t, []string{TypeVercel, TypeGitHub}, newTestTable().Types())
}
