// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dispatch resolves relay requests to destinations and performs the
// single outbound call.
//
// # Description
//
// The relay exists because the workflow orchestrator cannot make arbitrary
// outbound HTTP calls itself. A caller posts a typed request; this package
// owns the table mapping symbolic destination types to their URL, payload
// shape, and required headers, performs exactly one POST, and normalizes the
// outcome into a RelayResult. There are no retries: delivery is best-effort
// and retry policy belongs to the caller.
//
// The destination table is built once at startup from configuration, so the
// set of valid symbolic types is statically enumerable and testable in
// isolation.
package dispatch

import (
	"errors"
	"fmt"

	"github.com/metamorphhq/metamorph/services/relay/datatypes"
)

// Sentinel errors for destination resolution.
var (
	// ErrNoTarget is returned when a request carries neither a symbolic
	// type nor an explicit target URL.
	ErrNoTarget = errors.New("relay request must set type or target")

	// ErrUnknownType is returned for a symbolic type the table does not
	// know. No outbound call is attempted.
	ErrUnknownType = errors.New("unknown destination type")
)

// Symbolic destination types built into the table.
const (
	TypeVercel = "vercel"
	TypeGitHub = "github"
)

// Destination is one resolved outbound endpoint.
//
// BuildPayload shapes the forwarded JSON body from the inbound request;
// Headers produces the destination's required headers (including any caller
// credential). Both may be nil, in which case the request payload is
// forwarded as-is with no extra headers.
type Destination struct {
	Name         string
	URL          string
	BuildPayload func(req datatypes.RelayRequest) any
	Headers      func(req datatypes.RelayRequest) map[string]string
}

// TableConfig carries the startup configuration for the built-in
// destinations.
type TableConfig struct {
	// DashboardWebhookURL is where the "vercel" type posts status events
	// (the dashboard's /api/webhooks endpoint).
	DashboardWebhookURL string

	// GitHubDispatchRepo is the "owner/name" repository receiving
	// repository_dispatch events for the "github" type.
	GitHubDispatchRepo string

	// GitHubAPIBaseURL overrides the GitHub API base. Used by tests.
	// Default: "https://api.github.com".
	GitHubAPIBaseURL string
}

// Table maps symbolic destination types to destinations.
type Table struct {
	destinations map[string]Destination
}

// NewTable builds the destination table from configuration.
//
// Built-in destinations:
//
//   - "vercel": posts an ANALYZING status event to the dashboard webhook.
//   - "github": posts a repository_dispatch "deploy-agent" event, carrying
//     the mission and original error, authenticated with the caller's PAT.
func NewTable(cfg TableConfig) *Table {
	apiBase := cfg.GitHubAPIBaseURL
	if apiBase == "" {
		apiBase = "https://api.github.com"
	}

	return &Table{destinations: map[string]Destination{
		TypeVercel: {
			Name: TypeVercel,
			URL:  cfg.DashboardWebhookURL,
			BuildPayload: func(req datatypes.RelayRequest) any {
				return map[string]any{
					"status":    "ANALYZING",
					"message":   req.Message,
					"type":      "warning",
					"timestamp": req.Timestamp,
				}
			},
		},
		TypeGitHub: {
			Name: TypeGitHub,
			URL:  fmt.Sprintf("%s/repos/%s/dispatches", apiBase, cfg.GitHubDispatchRepo),
			BuildPayload: func(req datatypes.RelayRequest) any {
				return map[string]any{
					"event_type": "deploy-agent",
					"client_payload": map[string]any{
						"mission":        req.Mission,
						"original_error": req.Error,
						"timestamp":      req.Timestamp,
					},
				}
			},
			Headers: func(req datatypes.RelayRequest) map[string]string {
				return map[string]string{
					"Authorization": "Bearer " + req.GithubPAT,
					"Accept":        "application/vnd.github.v3+json",
				}
			},
		},
	}}
}

// Types returns the symbolic types the table knows, for diagnostics.
func (t *Table) Types() []string {
	types := make([]string, 0, len(t.destinations))
	for name := range t.destinations {
		types = append(types, name)
	}
	return types
}

// Resolve maps a request to its destination.
//
// An explicit Target URL takes precedence over a symbolic Type; the payload
// and caller headers are then forwarded untransformed (the proxy mode the
// orchestrator uses for ad hoc endpoints). Resolution failures return
// ErrNoTarget or ErrUnknownType and guarantee no outbound call was made.
func (t *Table) Resolve(req datatypes.RelayRequest) (Destination, error) {
	if req.Target != "" {
		return Destination{
			Name: "explicit",
			URL:  req.Target,
			Headers: func(r datatypes.RelayRequest) map[string]string {
				return r.Headers
			},
		}, nil
	}
	if req.Type == "" {
		return Destination{}, ErrNoTarget
	}
	dest, ok := t.destinations[req.Type]
	if !ok {
		return Destination{}, fmt.Errorf("%w: %q", ErrUnknownType, req.Type)
	}
	return dest, nil
}
