// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package githubapi wraps the GitHub REST client used by the dashboard.
//
// # Description
//
// The dashboard consumes a narrow slice of the GitHub API: identity,
// repository listing, pull-request listing and creation, branch creation,
// and file commits. This package exposes exactly that slice with the
// response shapes the dashboard renders, and funnels every failure through
// the shared httpstatus classification so callers see one error taxonomy
// (auth, rate limit, not found, timeout, network, upstream) instead of
// library-specific error types.
//
// Rate limiting deserves the special case: GitHub signals it with a 403
// plus x-ratelimit headers, and the UI wants a human-readable reset time,
// not a generic failure.
package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v66/github"
	"github.com/metamorphhq/metamorph/pkg/httpstatus"
	"github.com/metamorphhq/metamorph/services/dashboard/datatypes"
)

// APIError is a classified GitHub API failure.
//
// Message is safe to surface to clients; it never contains raw upstream
// error text. ResetAt is set for rate-limit errors when GitHub provided a
// reset time.
type APIError struct {
	Kind    httpstatus.Kind
	Message string
	ResetAt time.Time
}

// Error returns the human-readable message.
func (e *APIError) Error() string {
	return e.Message
}

// Client is the dashboard's GitHub API client, bound to one bearer token.
type Client struct {
	api *gogithub.Client
}

// NewClient creates a Client authenticated with the given token.
//
// baseURL overrides the API endpoint for tests; empty means api.github.com.
// The trailing slash required by the underlying client is applied here so
// callers never think about it.
func NewClient(token, baseURL string) (*Client, error) {
	api := gogithub.NewClient(nil).WithAuthToken(token)
	if baseURL != "" {
		parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		api.BaseURL = parsed
	}
	return &Client{api: api}, nil
}

// AuthenticatedUser returns the identity behind the token.
func (c *Client) AuthenticatedUser(ctx context.Context) (datatypes.UserIdentity, error) {
	user, resp, err := c.api.Users.Get(ctx, "")
	if cerr := classify(err, resp); cerr != nil {
		return datatypes.UserIdentity{}, cerr
	}
	return datatypes.UserIdentity{
		Login: user.GetLogin(),
		Name:  user.GetName(),
	}, nil
}

// ListRepos lists the user's repositories, most recently updated first.
func (c *Client) ListRepos(ctx context.Context) ([]datatypes.RepoSummary, error) {
	repos, resp, err := c.api.Repositories.ListByAuthenticatedUser(ctx,
		&gogithub.RepositoryListByAuthenticatedUserOptions{
			Sort:        "updated",
			ListOptions: gogithub.ListOptions{PerPage: 50},
		})
	if cerr := classify(err, resp); cerr != nil {
		return nil, cerr
	}

	summaries := make([]datatypes.RepoSummary, 0, len(repos))
	for _, repo := range repos {
		summary := datatypes.RepoSummary{
			ID:          repo.GetID(),
			Name:        repo.GetName(),
			FullName:    repo.GetFullName(),
			Description: repo.GetDescription(),
			Private:     repo.GetPrivate(),
		}
		if ts := repo.GetUpdatedAt(); !ts.IsZero() {
			summary.UpdatedAt = ts.Format(time.RFC3339)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ListOpenPRs lists open pull requests, newest first, capped at five.
func (c *Client) ListOpenPRs(ctx context.Context, owner, repo string) ([]datatypes.PRSummary, error) {
	prs, resp, err := c.api.PullRequests.List(ctx, owner, repo,
		&gogithub.PullRequestListOptions{
			State:       "open",
			Sort:        "created",
			Direction:   "desc",
			ListOptions: gogithub.ListOptions{PerPage: 5},
		})
	if cerr := classify(err, resp); cerr != nil {
		return nil, cerr
	}

	summaries := make([]datatypes.PRSummary, 0, len(prs))
	for _, pr := range prs {
		summaries = append(summaries, prSummary(pr))
	}
	return summaries, nil
}

// BranchHeadSHA returns the commit SHA at the head of the branch.
func (c *Client) BranchHeadSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	ref, resp, err := c.api.Git.GetRef(ctx, owner, repo, "refs/heads/"+branch)
	if cerr := classify(err, resp); cerr != nil {
		return "", cerr
	}
	return ref.GetObject().GetSHA(), nil
}

// CreateBranch creates refs/heads/{branch} pointing at sha.
func (c *Client) CreateBranch(ctx context.Context, owner, repo, branch, sha string) error {
	_, resp, err := c.api.Git.CreateRef(ctx, owner, repo, &gogithub.Reference{
		Ref:    gogithub.String("refs/heads/" + branch),
		Object: &gogithub.GitObject{SHA: gogithub.String(sha)},
	})
	return classify(err, resp)
}

// CommitFile creates or updates one file on the branch.
func (c *Client) CommitFile(ctx context.Context, owner, repo, branch, path, message string, content []byte) error {
	_, resp, err := c.api.Repositories.CreateFile(ctx, owner, repo, path,
		&gogithub.RepositoryContentFileOptions{
			Message: gogithub.String(message),
			Content: content,
			Branch:  gogithub.String(branch),
		})
	return classify(err, resp)
}

// CreatePull opens a pull request from head into base.
func (c *Client) CreatePull(ctx context.Context, owner, repo, title, body, head, base string) (datatypes.PRSummary, error) {
	pr, resp, err := c.api.PullRequests.Create(ctx, owner, repo, &gogithub.NewPullRequest{
		Title: gogithub.String(title),
		Body:  gogithub.String(body),
		Head:  gogithub.String(head),
		Base:  gogithub.String(base),
	})
	if cerr := classify(err, resp); cerr != nil {
		return datatypes.PRSummary{}, cerr
	}
	return prSummary(pr), nil
}

func prSummary(pr *gogithub.PullRequest) datatypes.PRSummary {
	summary := datatypes.PRSummary{
		Number: pr.GetNumber(),
		Title:  pr.GetTitle(),
		URL:    pr.GetHTMLURL(),
		Body:   pr.GetBody(),
	}
	if ts := pr.GetCreatedAt(); !ts.IsZero() {
		summary.CreatedAt = ts.Format(time.RFC3339)
	}
	return summary
}

// classify converts a go-github error into an APIError, or nil on success.
//
// The returned message is intentionally generic per kind; upstream error
// bodies stay inside the process.
func classify(err error, resp *gogithub.Response) error {
	if err == nil {
		return nil
	}

	var rateErr *gogithub.RateLimitError
	if errors.As(err, &rateErr) {
		return rateLimitError(rateErr.Rate.Reset.Time)
	}
	var abuseErr *gogithub.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		reset := time.Time{}
		if abuseErr.RetryAfter != nil {
			reset = time.Now().Add(*abuseErr.RetryAfter)
		}
		return rateLimitError(reset)
	}

	if resp != nil {
		kind := httpstatus.Classify(resp.StatusCode, resp.Header)
		apiErr := &APIError{Kind: kind, Message: messageFor(kind)}
		if kind == httpstatus.KindRateLimit {
			if reset, ok := httpstatus.RateLimitReset(resp.Header); ok {
				return rateLimitError(reset)
			}
			return rateLimitError(time.Time{})
		}
		return apiErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Kind: httpstatus.KindTimeout, Message: "GitHub request timed out"}
	}
	return &APIError{Kind: httpstatus.KindNetwork, Message: "GitHub is unreachable"}
}

func rateLimitError(reset time.Time) *APIError {
	apiErr := &APIError{
		Kind:    httpstatus.KindRateLimit,
		Message: "GitHub rate limit exceeded",
		ResetAt: reset,
	}
	if !reset.IsZero() {
		apiErr.Message = fmt.Sprintf("GitHub rate limit exceeded, resets at %s",
			reset.UTC().Format(time.RFC1123))
	}
	return apiErr
}

func messageFor(kind httpstatus.Kind) string {
	switch kind {
	case httpstatus.KindAuth:
		return "GitHub rejected the credentials"
	case httpstatus.KindNotFound:
		return "GitHub resource not found"
	case httpstatus.KindUpstream:
		return "GitHub is temporarily unavailable"
	case httpstatus.KindTimeout:
		return "GitHub request timed out"
	default:
		return "GitHub request failed"
	}
}
