// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/metamorphhq/metamorph/pkg/eventlog"
	"github.com/metamorphhq/metamorph/pkg/httpstatus"
	"github.com/metamorphhq/metamorph/services/dashboard/datatypes"
)

// Kestra flow coordinates for the healing loop.
const (
	KestraNamespace = "ai.metamorph"
	KestraFlow      = "metamorph_healing_loop"
)

var kestraClient = &http.Client{Timeout: 10 * time.Second}

// kestraExecution is the slice of Kestra's execution response we surface.
type kestraExecution struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	FlowID    string `json:"flowId"`
}

// HandleTrigger starts the healing flow in Kestra for a reported error.
//
// Kestra's execution API takes inputs as multipart form fields. The trigger
// is fire-and-forget from the dashboard's side: the flow reports its own
// progress back through POST /api/webhooks.
func HandleTrigger(kestraURL string, events *eventlog.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.TriggerRequest
		if err := c.BindJSON(&req); err != nil {
			validationError(c, "error is required")
			return
		}

		execution, err := startExecution(c.Request.Context(), kestraURL, req.Error)
		if err != nil {
			envelope(c, http.StatusServiceUnavailable,
				"Healing pipeline is unavailable", httpstatus.KindUpstream.Tag())
			return
		}

		events.Append("TRIGGERED",
			fmt.Sprintf("Healing pipeline triggered: %s", req.Error),
			eventlog.TypeWarning)

		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"execution_id": execution.ID,
			"flow_id":      execution.FlowID,
			"namespace":    execution.Namespace,
		})
	}
}

func startExecution(ctx context.Context, kestraURL, errorText string) (kestraExecution, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("error", errorText); err != nil {
		return kestraExecution{}, err
	}
	if err := form.Close(); err != nil {
		return kestraExecution{}, err
	}

	url := fmt.Sprintf("%s/api/v1/executions/%s/%s", kestraURL, KestraNamespace, KestraFlow)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return kestraExecution{}, err
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := kestraClient.Do(httpReq)
	if err != nil {
		return kestraExecution{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return kestraExecution{}, err
	}
	if resp.StatusCode >= 400 {
		return kestraExecution{}, fmt.Errorf("kestra answered %d", resp.StatusCode)
	}

	var execution kestraExecution
	if err := json.Unmarshal(raw, &execution); err != nil {
		return kestraExecution{}, err
	}
	return execution, nil
}
