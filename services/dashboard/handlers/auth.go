// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"github.com/metamorphhq/metamorph/pkg/httpstatus"
	"github.com/metamorphhq/metamorph/services/dashboard/datatypes"
	"github.com/metamorphhq/metamorph/services/dashboard/middleware"
)

// UserCookieName is the readable cookie carrying the signed-in identity for
// the UI. Unlike the token cookie it is not HTTP-only.
const UserCookieName = "github_user"

// tokenCookieMaxAge keeps the session for 30 days.
const tokenCookieMaxAge = 30 * 24 * 60 * 60

// IdentityFunc resolves the identity behind an access token.
type IdentityFunc func(ctx context.Context, token string) (datatypes.UserIdentity, error)

// HandleGithubAuth is both halves of the OAuth dance on one route.
//
// Without a code parameter it redirects to GitHub's authorize page. With
// one, it exchanges the code, resolves the identity, sets the session
// cookies, and redirects back to the UI. The access token goes into an
// HTTP-only cookie and is never included in any response body or log line.
func HandleGithubAuth(oauthCfg *oauth2.Config, identify IdentityFunc, secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Query("code")
		if code == "" {
			c.Redirect(http.StatusFound, oauthCfg.AuthCodeURL(""))
			return
		}

		token, err := oauthCfg.Exchange(c.Request.Context(), code)
		if err != nil {
			envelope(c, http.StatusBadRequest,
				"GitHub authorization failed", httpstatus.KindAuth.Tag())
			return
		}

		identity, err := identify(c.Request.Context(), token.AccessToken)
		if err != nil {
			envelope(c, http.StatusBadRequest,
				"GitHub authorization failed", httpstatus.KindAuth.Tag())
			return
		}
		identityJSON, err := json.Marshal(identity)
		if err != nil {
			envelope(c, http.StatusInternalServerError,
				"GitHub authorization failed", httpstatus.KindUpstream.Tag())
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.TokenCookieName, token.AccessToken,
			tokenCookieMaxAge, "/", "", secureCookies, true)
		c.SetCookie(UserCookieName, string(identityJSON),
			tokenCookieMaxAge, "/", "", secureCookies, false)

		c.Redirect(http.StatusFound, "/?github_connected=true")
	}
}
