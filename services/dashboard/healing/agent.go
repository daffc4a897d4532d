// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package healing runs the self-healing pipeline: it asks the external
// coding agent to fix a repository and, when the agent produces changes,
// submits them as a pull request.
package healing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultAgentTimeout bounds one healing run. Agent work involves cloning
// and editing a repository, so the budget is minutes, not seconds.
const DefaultAgentTimeout = 5 * time.Minute

const maxAgentBodyBytes = 4 << 20

// ErrAgentUnavailable reports that the agent service could not be reached
// or did not answer within the timeout.
var ErrAgentUnavailable = errors.New("healing agent unavailable")

// AgentRequest is the body sent to POST {AgentURL}/heal.
//
// GithubToken is forwarded so the agent can clone private repositories. It
// is never stored or logged on this side.
type AgentRequest struct {
	Repository  string `json:"repository"`
	Mission     string `json:"mission"`
	GithubToken string `json:"github_token,omitempty"`
}

// ChangedFile is one file the agent rewrote, with its full new content.
type ChangedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// AgentResult is the agent's report for one healing run.
type AgentResult struct {
	Success      bool          `json:"success"`
	ChangesMade  bool          `json:"changes_made"`
	Summary      string        `json:"summary,omitempty"`
	ChangedFiles []ChangedFile `json:"changed_files,omitempty"`
}

// AgentClient calls the external healing agent service over HTTP.
type AgentClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewAgentClient creates a client for the agent at baseURL.
// A non-positive timeout falls back to DefaultAgentTimeout.
func NewAgentClient(baseURL string, timeout time.Duration) *AgentClient {
	if timeout <= 0 {
		timeout = DefaultAgentTimeout
	}
	return &AgentClient{
		baseURL: baseURL,
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Run executes one healing request against the agent.
//
// The deadline is applied through the request context so a hung agent call
// is abandoned, not merely ignored. Transport failures and non-2xx answers
// both surface as ErrAgentUnavailable.
func (a *AgentClient) Run(ctx context.Context, req AgentRequest) (AgentResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return AgentResult{}, fmt.Errorf("encode agent request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/heal", bytes.NewReader(body))
	if err != nil {
		return AgentResult{}, fmt.Errorf("build agent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return AgentResult{}, fmt.Errorf("%w: timed out after %s",
				ErrAgentUnavailable, a.timeout)
		}
		return AgentResult{}, ErrAgentUnavailable
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAgentBodyBytes))
	if err != nil {
		return AgentResult{}, ErrAgentUnavailable
	}
	if resp.StatusCode >= 400 {
		return AgentResult{}, fmt.Errorf("%w: agent answered %d",
			ErrAgentUnavailable, resp.StatusCode)
	}

	var result AgentResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return AgentResult{}, fmt.Errorf("decode agent response: %w", err)
	}
	return result, nil
}
