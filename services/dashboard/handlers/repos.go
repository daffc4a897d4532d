// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/metamorphhq/metamorph/services/dashboard/datatypes"
	"github.com/metamorphhq/metamorph/services/dashboard/middleware"
	"github.com/metamorphhq/metamorph/services/dashboard/observability"
)

// GithubBrowser is the read-only GitHub surface these handlers need.
// Satisfied by *githubapi.Client.
type GithubBrowser interface {
	ListRepos(ctx context.Context) ([]datatypes.RepoSummary, error)
	ListOpenPRs(ctx context.Context, owner, repo string) ([]datatypes.PRSummary, error)
}

// GithubBrowserFactory builds a browser bound to the caller's token.
type GithubBrowserFactory func(token string) (GithubBrowser, error)

// healingPRMarkers identify pull requests opened by the healing pipeline.
var healingPRMarkers = []string{"MetaMorph", "Auto-heal"}

// HandleListRepos lists the authenticated user's repositories for the
// dashboard's repository picker. Requires the token middleware upstream.
func HandleListRepos(newBrowser GithubBrowserFactory, metrics *observability.DashboardMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		browser, err := newBrowser(middleware.TokenFrom(c))
		if err != nil {
			githubError(c, err)
			return
		}

		repos, err := browser.ListRepos(c.Request.Context())
		if err != nil {
			countGithub(metrics, "repos", "error")
			githubError(c, err)
			return
		}
		countGithub(metrics, "repos", "ok")
		c.JSON(http.StatusOK, gin.H{"success": true, "repos": repos})
	}
}

// HandleCheckPRs lists open pull requests created by the healing pipeline
// for ?repository=owner/name, identified by their title markers.
func HandleCheckPRs(newBrowser GithubBrowserFactory, metrics *observability.DashboardMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		repository := c.Query("repository")
		owner, repo, ok := strings.Cut(repository, "/")
		if !ok || owner == "" || repo == "" {
			validationError(c, "repository query parameter must be owner/name")
			return
		}

		browser, err := newBrowser(middleware.TokenFrom(c))
		if err != nil {
			githubError(c, err)
			return
		}

		prs, err := browser.ListOpenPRs(c.Request.Context(), owner, repo)
		if err != nil {
			countGithub(metrics, "prs", "error")
			githubError(c, err)
			return
		}
		countGithub(metrics, "prs", "ok")

		healing := make([]datatypes.PRSummary, 0, len(prs))
		for _, pr := range prs {
			if isHealingPR(pr.Title) {
				healing = append(healing, pr)
			}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "pull_requests": healing})
	}
}

func isHealingPR(title string) bool {
	for _, marker := range healingPRMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

func countGithub(metrics *observability.DashboardMetrics, operation, outcome string) {
	if metrics != nil {
		metrics.GithubRequestsTotal.WithLabelValues(operation, outcome).Inc()
	}
}
