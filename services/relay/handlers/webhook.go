// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the relay's HTTP handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/metamorphhq/metamorph/pkg/httpstatus"
	"github.com/metamorphhq/metamorph/services/relay/datatypes"
	"github.com/metamorphhq/metamorph/services/relay/dispatch"
)

// HandleWebhook accepts a forwarding instruction and performs the dispatch.
//
// Resolution failures answer 400 with a validation envelope and no outbound
// call. Everything else answers 200 with the normalized result, whatever the
// destination did; callers branch on the success flag, not the HTTP status.
func HandleWebhook(dispatcher *dispatch.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RelayRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid request body",
				"code":    httpstatus.KindValidation.Tag(),
			})
			return
		}

		result, err := dispatcher.Dispatch(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Unresolvable destination: set a known type or an explicit target",
				"code":    httpstatus.KindValidation.Tag(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": result.Success,
			"result": gin.H{
				"status":           result.Status,
				"data":             result.Body,
				"kind":             result.Kind,
				"rate_limit_reset": result.RateLimitReset,
			},
		})
	}
}

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
