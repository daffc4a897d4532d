// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package healing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/metamorphhq/metamorph/pkg/eventlog"
	"github.com/metamorphhq/metamorph/services/dashboard/datatypes"
)

// Outcome is the explicit result of one healing run. A run that completes
// without producing changes is not a failure, so the two cases are kept
// apart instead of collapsing into one boolean.
type Outcome string

const (
	// OutcomeNoChanges means the agent ran to completion and decided the
	// repository needed no edits.
	OutcomeNoChanges Outcome = "no_changes"

	// OutcomeChangesSubmitted means the agent's edits were pushed to a new
	// branch and a pull request was opened.
	OutcomeChangesSubmitted Outcome = "changes_submitted"

	// OutcomeFailed means the run did not complete: the agent errored, was
	// unreachable, or the pull request could not be created.
	OutcomeFailed Outcome = "failed"
)

// Result is what a healing run hands back to the HTTP layer.
type Result struct {
	Outcome  Outcome `json:"outcome"`
	Message  string  `json:"message,omitempty"`
	PRURL    string  `json:"pr_url,omitempty"`
	PRNumber int     `json:"pr_number,omitempty"`
}

// GitHost is the slice of the source-host client the executor needs to
// submit changes. Satisfied by *githubapi.Client.
type GitHost interface {
	BranchHeadSHA(ctx context.Context, owner, repo, branch string) (string, error)
	CreateBranch(ctx context.Context, owner, repo, branch, sha string) error
	CommitFile(ctx context.Context, owner, repo, branch, path, message string, content []byte) error
	CreatePull(ctx context.Context, owner, repo, title, body, head, base string) (datatypes.PRSummary, error)
}

// HostFactory builds a GitHost bound to the caller's token. Indirected so
// tests can substitute a fake host.
type HostFactory func(token string) (GitHost, error)

// Executor drives one healing run end to end: agent call, branch, commits,
// pull request, and the event-log trail the dashboard polls.
type Executor struct {
	agent   *AgentClient
	newHost HostFactory
	events  *eventlog.Log
	logger  *slog.Logger
}

// NewExecutor wires an Executor. events receives one entry per completed or
// failed run; logger may be nil for slog.Default().
func NewExecutor(agent *AgentClient, newHost HostFactory, events *eventlog.Log, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{agent: agent, newHost: newHost, events: events, logger: logger}
}

// Heal runs the agent against repository ("owner/name") with the given
// mission and submits any resulting changes as a pull request.
//
// The token is forwarded to the agent and the source host only; it never
// appears in the returned Result, the event log, or log output. Failures
// are reported in Result.Outcome rather than as an error so the HTTP layer
// answers 200 with a failed outcome instead of masking what happened.
func (e *Executor) Heal(ctx context.Context, repository, mission, token string) Result {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" {
		return e.failed(repository, "repository must be in owner/name form")
	}

	e.logger.Info("healing run started", "repository", repository)

	agentResult, err := e.agent.Run(ctx, AgentRequest{
		Repository:  repository,
		Mission:     mission,
		GithubToken: token,
	})
	if err != nil {
		e.logger.Warn("healing agent call failed", "repository", repository, "error", err)
		return e.failed(repository, "healing agent is unavailable")
	}
	if !agentResult.Success {
		return e.failed(repository, summaryOr(agentResult.Summary, "healing agent reported failure"))
	}
	if !agentResult.ChangesMade || len(agentResult.ChangedFiles) == 0 {
		e.events.Append("HEALTHY", fmt.Sprintf("Healing run for %s completed: no changes needed", repository),
			eventlog.TypeSuccess)
		return Result{
			Outcome: OutcomeNoChanges,
			Message: summaryOr(agentResult.Summary, "no changes needed"),
		}
	}
	if token == "" {
		return e.failed(repository, "cannot submit changes without a GitHub token")
	}

	pr, err := e.submit(ctx, owner, repo, mission, token, agentResult)
	if err != nil {
		e.logger.Warn("healing submission failed", "repository", repository, "error", err)
		return e.failed(repository, "changes were produced but the pull request could not be created")
	}

	e.events.Append("HEALED",
		fmt.Sprintf("Healing run for %s submitted fixes: %s", repository, pr.URL),
		eventlog.TypeSuccess)
	e.logger.Info("healing run submitted changes",
		"repository", repository, "pr_number", pr.Number)
	return Result{
		Outcome:  OutcomeChangesSubmitted,
		Message:  summaryOr(agentResult.Summary, "automated fixes submitted"),
		PRURL:    pr.URL,
		PRNumber: pr.Number,
	}
}

// submit pushes the agent's files to a fresh branch off main and opens the
// pull request.
func (e *Executor) submit(ctx context.Context, owner, repo, mission, token string, agentResult AgentResult) (datatypes.PRSummary, error) {
	host, err := e.newHost(token)
	if err != nil {
		return datatypes.PRSummary{}, fmt.Errorf("build source-host client: %w", err)
	}

	branch := fmt.Sprintf("metamorph-fixes-%d", time.Now().UnixMilli())
	sha, err := host.BranchHeadSHA(ctx, owner, repo, "main")
	if err != nil {
		return datatypes.PRSummary{}, fmt.Errorf("resolve main head: %w", err)
	}
	if err := host.CreateBranch(ctx, owner, repo, branch, sha); err != nil {
		return datatypes.PRSummary{}, fmt.Errorf("create branch %s: %w", branch, err)
	}

	for _, file := range agentResult.ChangedFiles {
		message := fmt.Sprintf("MetaMorph AI: update %s", file.Path)
		if err := host.CommitFile(ctx, owner, repo, branch, file.Path, message, []byte(file.Content)); err != nil {
			return datatypes.PRSummary{}, fmt.Errorf("commit %s: %w", file.Path, err)
		}
	}

	body := fmt.Sprintf("Automated fixes from the MetaMorph healing pipeline.\n\nMission: %s", mission)
	if agentResult.Summary != "" {
		body += "\n\n" + agentResult.Summary
	}
	pr, err := host.CreatePull(ctx, owner, repo,
		"MetaMorph AI: Automated Code Fixes", body, branch, "main")
	if err != nil {
		return datatypes.PRSummary{}, fmt.Errorf("open pull request: %w", err)
	}
	return pr, nil
}

func (e *Executor) failed(repository, message string) Result {
	e.events.Append("FAILED",
		fmt.Sprintf("Healing run for %s failed: %s", repository, message),
		eventlog.TypeError)
	return Result{Outcome: OutcomeFailed, Message: message}
}

func summaryOr(summary, fallback string) string {
	if summary != "" {
		return summary
	}
	return fallback
}
