// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package datatypes

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// HealRequest is the body for POST /api/heal.
//
// Repository must be "owner/name". GithubToken is optional here because the
// handler prefers the session cookie; when present it is forwarded to the
// agent and to GitHub, never stored or logged.
type HealRequest struct {
	Repository  string `json:"repository" binding:"required,repopath"`
	Mission     string `json:"mission" binding:"required"`
	GithubToken string `json:"github_token,omitempty"`
}

// TriggerRequest is the body for POST /api/trigger.
type TriggerRequest struct {
	Error string `json:"error" binding:"required"`
}

// ValidRepoPath is the "repopath" binding validation: a repository
// reference of the form "owner/name" with both halves non-empty.
func ValidRepoPath(fl validator.FieldLevel) bool {
	owner, name, ok := strings.Cut(fl.Field().String(), "/")
	return ok && owner != "" && name != "" && !strings.Contains(name, "/")
}

var registerOnce sync.Once

// RegisterValidations installs the custom binding validations on gin's
// shared validator. Must run before the first bind of a type using them;
// both the service constructor and the handler tests call it.
func RegisterValidations() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("repopath", ValidRepoPath)
		}
	})
}
