// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the dashboard's HTTP handlers.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/metamorphhq/metamorph/pkg/httpstatus"
	"github.com/metamorphhq/metamorph/services/dashboard/githubapi"
)

// envelope answers with the uniform error shape every dashboard endpoint
// uses. Raw upstream error text never goes through here.
func envelope(c *gin.Context, status int, message, code string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

func validationError(c *gin.Context, message string) {
	envelope(c, http.StatusBadRequest, message, httpstatus.KindValidation.Tag())
}

// githubError maps a classified GitHub failure onto the envelope. Anything
// that is not an APIError is treated as an upstream failure.
func githubError(c *gin.Context, err error) {
	var apiErr *githubapi.APIError
	if errors.As(err, &apiErr) {
		envelope(c, apiErr.Kind.HTTPStatus(), apiErr.Message, apiErr.Kind.Tag())
		return
	}
	envelope(c, http.StatusBadGateway, "GitHub request failed",
		httpstatus.KindUpstream.Tag())
}
