// Copyright (C) 2025 MetaMorph AI
// Tests for the healing executor and agent client.

package healing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metamorphhq/metamorph/pkg/eventlog"
	"github.com/metamorphhq/metamorph/services/dashboard/datatypes"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeHost struct {
	headSHA      string
	headErr      error
	branchErr    error
	commitErr    error
	pullErr      error
	branches     []string
	commits      []string
	pulls        []string
	createdPR    datatypes.PRSummary
	lastPullBody string
}

func (f *fakeHost) BranchHeadSHA(_ context.Context, _, _, _ string) (string, error) {
	return f.headSHA, f.headErr
}

func (f *fakeHost) CreateBranch(_ context.Context, _, _, branch, _ string) error {
	f.branches = append(f.branches, branch)
	return f.branchErr
}

func (f *fakeHost) CommitFile(_ context.Context, _, _, _, path, _ string, _ []byte) error {
	f.commits = append(f.commits, path)
	return f.commitErr
}

func (f *fakeHost) CreatePull(_ context.Context, _, _, title, body, _, _ string) (datatypes.PRSummary, error) {
	f.pulls = append(f.pulls, title)
	f.lastPullBody = body
	if f.pullErr != nil {
		return datatypes.PRSummary{}, f.pullErr
	}
	f.createdPR.Title = title
	return f.createdPR, nil
}

func agentServer(t *testing.T, result AgentResult) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/heal", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(result)
	}))
}

func newExecutorForTest(agent *AgentClient, host *fakeHost, events *eventlog.Log) *Executor {
	return NewExecutor(agent, func(string) (GitHost, error) { return host, nil }, events, nil)
}

// ============================================================================
// Agent client
// ============================================================================

func TestAgentClient_ForwardsRequestBody(t *testing.T) {
	var got AgentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(AgentResult{Success: true})
	}))
	defer srv.Close()

	agent := NewAgentClient(srv.URL, time.Second)
	_, err := agent.Run(context.Background(), AgentRequest{
		Repository:  "octo/widgets",
		Mission:     "fix the build",
		GithubToken: "ghp_secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "octo/widgets", got.Repository)
	assert.Equal(t, "fix the build", got.Mission)
	assert.Equal(t, "ghp_secret", got.GithubToken)
}

func TestAgentClient_TimeoutAbandonsCall(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		close(release)
	}))
	defer srv.Close()

	agent := NewAgentClient(srv.URL, 50*time.Millisecond)
	_, err := agent.Run(context.Background(), AgentRequest{Repository: "octo/widgets"})
	require.ErrorIs(t, err, ErrAgentUnavailable)

	select {
	case <-release:
	case <-time.After(2 * time.Second):
		t.Fatal("agent server never observed cancellation")
	}
}

func TestAgentClient_ErrorStatusIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	agent := NewAgentClient(srv.URL, time.Second)
	_, err := agent.Run(context.Background(), AgentRequest{Repository: "octo/widgets"})
	require.ErrorIs(t, err, ErrAgentUnavailable)
}

// ============================================================================
// Executor outcomes
// ============================================================================

func TestHeal_NoChanges(t *testing.T) {
	srv := agentServer(t, AgentResult{Success: true, ChangesMade: false, Summary: "all clean"})
	defer srv.Close()

	events := eventlog.New(10)
	host := &fakeHost{}
	exec := newExecutorForTest(NewAgentClient(srv.URL, time.Second), host, events)

	result := exec.Heal(context.Background(), "octo/widgets", "fix tests", "tok")

	assert.Equal(t, OutcomeNoChanges, result.Outcome)
	assert.Equal(t, "all clean", result.Message)
	assert.Empty(t, result.PRURL)
	assert.Empty(t, host.branches)

	latest, ok := events.Latest()
	require.True(t, ok)
	assert.Equal(t, eventlog.TypeSuccess, latest.Type)
	assert.Contains(t, latest.Message, "no changes needed")
}

func TestHeal_ChangesSubmitted(t *testing.T) {
	srv := agentServer(t, AgentResult{
		Success:     true,
		ChangesMade: true,
		Summary:     "patched two files",
		ChangedFiles: []ChangedFile{
			{Path: "main.go", Content: "package main"},
			{Path: "util.go", Content: "package main"},
		},
	})
	defer srv.Close()

	events := eventlog.New(10)
	host := &fakeHost{
		headSHA:   "abc123",
		createdPR: datatypes.PRSummary{Number: 7, URL: "https://example.com/pr/7"},
	}
	exec := newExecutorForTest(NewAgentClient(srv.URL, time.Second), host, events)

	result := exec.Heal(context.Background(), "octo/widgets", "fix tests", "tok")

	assert.Equal(t, OutcomeChangesSubmitted, result.Outcome)
	assert.Equal(t, "https://example.com/pr/7", result.PRURL)
	assert.Equal(t, 7, result.PRNumber)

	require.Len(t, host.branches, 1)
	assert.True(t, strings.HasPrefix(host.branches[0], "metamorph-fixes-"))
	assert.Equal(t, []string{"main.go", "util.go"}, host.commits)
	assert.Equal(t, []string{"MetaMorph AI: Automated Code Fixes"}, host.pulls)
	assert.Contains(t, host.lastPullBody, "fix tests")

	latest, ok := events.Latest()
	require.True(t, ok)
	assert.Equal(t, eventlog.TypeSuccess, latest.Type)
	assert.Contains(t, latest.Message, "https://example.com/pr/7")
}

func TestHeal_AgentUnreachableFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	events := eventlog.New(10)
	host := &fakeHost{}
	exec := newExecutorForTest(NewAgentClient(srv.URL, time.Second), host, events)

	result := exec.Heal(context.Background(), "octo/widgets", "fix tests", "tok")

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Empty(t, host.branches)

	latest, ok := events.Latest()
	require.True(t, ok)
	assert.Equal(t, eventlog.TypeError, latest.Type)
}

func TestHeal_AgentReportedFailure(t *testing.T) {
	srv := agentServer(t, AgentResult{Success: false, Summary: "could not clone"})
	defer srv.Close()

	exec := newExecutorForTest(NewAgentClient(srv.URL, time.Second), &fakeHost{}, eventlog.New(10))
	result := exec.Heal(context.Background(), "octo/widgets", "fix tests", "tok")

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, "could not clone", result.Message)
}

func TestHeal_PullRequestFailureFails(t *testing.T) {
	srv := agentServer(t, AgentResult{
		Success:      true,
		ChangesMade:  true,
		ChangedFiles: []ChangedFile{{Path: "main.go", Content: "x"}},
	})
	defer srv.Close()

	events := eventlog.New(10)
	host := &fakeHost{headSHA: "abc123", pullErr: errPullRejected}
	exec := newExecutorForTest(NewAgentClient(srv.URL, time.Second), host, events)

	result := exec.Heal(context.Background(), "octo/widgets", "fix tests", "tok")

	assert.Equal(t, OutcomeFailed, result.Outcome)
	latest, ok := events.Latest()
	require.True(t, ok)
	assert.Equal(t, eventlog.TypeError, latest.Type)
}

func TestHeal_BadRepositoryPathNoAgentCall(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	exec := newExecutorForTest(NewAgentClient(srv.URL, time.Second), &fakeHost{}, eventlog.New(10))
	result := exec.Heal(context.Background(), "not-a-repo-path", "fix tests", "tok")

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Zero(t, calls.Load())
}

// TestHeal_TokenNeverInEvents guards the credential boundary: the token is
// forwarded to the agent but must not leak into the event trail.
func TestHeal_TokenNeverInEvents(t *testing.T) {
	srv := agentServer(t, AgentResult{Success: true, ChangesMade: false})
	defer srv.Close()

	events := eventlog.New(10)
	exec := newExecutorForTest(NewAgentClient(srv.URL, time.Second), &fakeHost{}, events)
	exec.Heal(context.Background(), "octo/widgets", "fix tests", "ghp_supersecret")

	for _, event := range events.Recent(10) {
		assert.NotContains(t, event.Message, "ghp_supersecret")
		assert.NotContains(t, event.Status, "ghp_supersecret")
	}
}

var errPullRejected = errors.New("pull request rejected")
