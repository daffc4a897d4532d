// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/metamorphhq/metamorph/pkg/eventlog"
	"github.com/metamorphhq/metamorph/services/dashboard/datatypes"
	"github.com/metamorphhq/metamorph/services/dashboard/observability"
)

// HandleLatestEvent is the dashboard's poll target. It answers the newest
// event, or an explicit null when the log is empty, plus the server time so
// the UI can show poll freshness.
func HandleLatestEvent(events *eventlog.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := gin.H{
			"event":     nil,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		if event, ok := events.Latest(); ok {
			response["event"] = event
		}
		c.JSON(http.StatusOK, response)
	}
}

// HandleEventHistory returns up to ?limit=n recent events, newest last.
func HandleEventHistory(events *eventlog.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := eventlog.DefaultCapacity
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				validationError(c, "limit must be a positive integer")
				return
			}
			limit = parsed
		}
		c.JSON(http.StatusOK, gin.H{"events": events.Recent(limit)})
	}
}

// HandleAppendEvent appends a caller-supplied event. The timestamp is always
// assigned here; one sent by the caller is ignored.
func HandleAppendEvent(events *eventlog.Log, metrics *observability.DashboardMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.AppendEventRequest
		if err := c.BindJSON(&req); err != nil {
			validationError(c, "message is required")
			return
		}

		typ := eventlog.ParseType(req.Type)
		event := events.Append(req.Status, req.Message, typ)
		if metrics != nil {
			metrics.EventsAppendedTotal.WithLabelValues(string(typ)).Inc()
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "event": event})
	}
}

// HandleIncomingWebhook receives pushes from the relay and the orchestration
// flow. Same append path as HandleAppendEvent with the acknowledgement shape
// those callers expect.
func HandleIncomingWebhook(events *eventlog.Log, metrics *observability.DashboardMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.AppendEventRequest
		if err := c.BindJSON(&req); err != nil {
			validationError(c, "message is required")
			return
		}

		typ := eventlog.ParseType(req.Type)
		events.Append(req.Status, req.Message, typ)
		if metrics != nil {
			metrics.EventsAppendedTotal.WithLabelValues(string(typ)).Inc()
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Event received"})
	}
}

// HandleWebhookStatus reports webhook readiness plus the latest event, so a
// pusher can probe the endpoint before sending.
func HandleWebhookStatus(events *eventlog.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := gin.H{
			"status": "ready",
			"events": events.Len(),
		}
		if event, ok := events.Latest(); ok {
			response["latest"] = event
		}
		c.JSON(http.StatusOK, response)
	}
}

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
