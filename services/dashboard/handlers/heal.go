// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/metamorphhq/metamorph/pkg/httpstatus"
	"github.com/metamorphhq/metamorph/services/dashboard/datatypes"
	"github.com/metamorphhq/metamorph/services/dashboard/healing"
	"github.com/metamorphhq/metamorph/services/dashboard/middleware"
	"github.com/metamorphhq/metamorph/services/dashboard/observability"
)

// HandleHeal runs one healing pass over a repository.
//
// The token comes from the session cookie when present, else from the
// request body. The run is synchronous and can take minutes; progress is
// visible through the event log in the meantime. A run that completes with
// a failed outcome still answers 200: the request itself succeeded, the
// outcome field says what happened.
func HandleHeal(executor *healing.Executor, metrics *observability.DashboardMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.HealRequest
		if err := c.BindJSON(&req); err != nil {
			validationError(c, "repository (owner/name) and mission are required")
			return
		}

		token, _ := c.Cookie(middleware.TokenCookieName)
		if token == "" {
			token = req.GithubToken
		}
		if token == "" {
			envelope(c, http.StatusUnauthorized,
				"GitHub authentication required", httpstatus.KindAuth.Tag())
			return
		}

		start := time.Now()
		result := executor.Heal(c.Request.Context(), req.Repository, req.Mission, token)
		if metrics != nil {
			metrics.HealingRunsTotal.WithLabelValues(string(result.Outcome)).Inc()
			metrics.HealingDurationSeconds.Observe(time.Since(start).Seconds())
		}

		response := gin.H{
			"success": result.Outcome != healing.OutcomeFailed,
			"outcome": result.Outcome,
			"message": result.Message,
		}
		if result.PRURL != "" {
			response["pr_url"] = result.PRURL
			response["pr_number"] = result.PRNumber
		}
		c.JSON(http.StatusOK, response)
	}
}
