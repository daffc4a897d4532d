// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware holds gin middleware for the dashboard service.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// TokenCookieName is the HTTP-only cookie set by the OAuth callback.
const TokenCookieName = "github_token"

// contextTokenKey is where the extracted token lives in the gin context.
// The token itself must never be logged or echoed back to the client.
const contextTokenKey = "githubToken"

// RequireGithubToken extracts the GitHub token cookie and aborts with a 401
// auth_error envelope when it is absent.
func RequireGithubToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(TokenCookieName)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "GitHub authentication required",
				"code":    "auth_error",
			})
			return
		}
		c.Set(contextTokenKey, token)
		c.Next()
	}
}

// TokenFrom returns the token stored by RequireGithubToken, or "".
func TokenFrom(c *gin.Context) string {
	token, _ := c.Get(contextTokenKey)
	if s, ok := token.(string); ok {
		return s
	}
	return ""
}
