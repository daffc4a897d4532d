// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package datatypes

// RelayRequest is one forwarding instruction posted to the relay.
//
// Either Type (a symbolic destination such as "vercel" or "github") or
// Target (an explicit URL) must be set; Target wins when both are present.
// Headers and GithubPAT carry caller credentials: they are forwarded to the
// destination, never stored, logged, or echoed back.
type RelayRequest struct {
	Type    string            `json:"type,omitempty"`
	Target  string            `json:"target,omitempty"`
	Payload map[string]any    `json:"payload,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	// Fields consumed by the symbolic destination payload builders.
	Message   string `json:"message,omitempty"`
	Mission   string `json:"mission,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	GithubPAT string `json:"github_pat,omitempty"`
}

// RelayResult is the normalized outcome of one forwarding attempt.
//
// Success is always Status < 400. Status is the destination's HTTP status,
// or one of the httpstatus sentinels when no response was received. Body is
// the destination's raw response body, surfaced for observability.
type RelayResult struct {
	Success        bool   `json:"success"`
	Status         int    `json:"status"`
	Body           string `json:"data,omitempty"`
	Kind           string `json:"kind"`
	RateLimitReset string `json:"rate_limit_reset,omitempty"`
}
