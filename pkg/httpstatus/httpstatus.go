// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package httpstatus maps HTTP response statuses to error kinds.
//
// # Description
//
// Every MetaMorph component that talks to an external destination (the
// webhook relay, the GitHub client, the Kestra trigger, the healing agent
// client) needs the same decision: given a response status and headers, what
// kind of failure is this? This package holds that mapping as a single pure
// function so the branching is not duplicated per call site.
//
// Two sentinel statuses exist for failures that never produced an HTTP
// response at all: StatusTimeout and StatusNetworkError. They sit above the
// valid HTTP range so they can travel through the same RelayResult envelope
// as real destination statuses.
//
// # Thread Safety
//
// All functions are pure; the package holds no state.
package httpstatus

import (
	"net/http"
	"strconv"
	"time"
)

// Sentinel statuses for failures with no destination response.
const (
	// StatusTimeout marks an outbound call that exceeded its deadline.
	StatusTimeout = 598

	// StatusNetworkError marks a transport-level failure (DNS, refused
	// connection, TLS) before any status was received.
	StatusNetworkError = 599
)

// Rate-limit headers as sent by the GitHub REST API.
const (
	headerRateLimitRemaining = "x-ratelimit-remaining"
	headerRateLimitReset     = "x-ratelimit-reset"
)

// Kind classifies the outcome of an outbound HTTP call.
type Kind int

const (
	// KindOK is any non-error destination response (status < 400).
	KindOK Kind = iota

	// KindValidation is a client error the caller can fix (4xx other than
	// the specifically classified ones below).
	KindValidation

	// KindAuth is a missing, invalid, or expired credential (401, and 403
	// without rate-limit exhaustion). Surfaced distinctly so the UI can
	// prompt re-authentication instead of retrying blindly.
	KindAuth

	// KindRateLimit is quota exhaustion (403 with x-ratelimit-remaining: 0,
	// or 429). Carries a reset time when the destination provides one.
	KindRateLimit

	// KindNotFound is an absent or inaccessible target resource (404).
	KindNotFound

	// KindTimeout is an outbound call that exceeded the bounded wait.
	KindTimeout

	// KindNetwork is a transport failure distinct from any destination
	// returned status.
	KindNetwork

	// KindUpstream is a destination 5xx, treated as transient.
	KindUpstream
)

// Tag returns the stable machine-readable tag for the kind.
//
// These tags appear in every error envelope this repository emits; clients
// branch on them, so they must never change.
func (k Kind) Tag() string {
	switch k {
	case KindOK:
		return "ok"
	case KindValidation:
		return "validation_error"
	case KindAuth:
		return "auth_error"
	case KindRateLimit:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network_error"
	case KindUpstream:
		return "upstream_error"
	default:
		return "unknown"
	}
}

// String returns the same value as Tag.
func (k Kind) String() string { return k.Tag() }

// HTTPStatus returns the status this kind maps to when one of our own
// endpoints reports it outward.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindOK:
		return http.StatusOK
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindNetwork:
		return http.StatusBadGateway
	case KindUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Classify maps a destination status plus response headers to a Kind.
//
// # Description
//
// The mapping is:
//
//	< 400                          -> KindOK
//	401                            -> KindAuth
//	403 with ratelimit-remaining 0 -> KindRateLimit
//	403 otherwise                  -> KindAuth
//	404                            -> KindNotFound
//	408, StatusTimeout             -> KindTimeout
//	429                            -> KindRateLimit
//	StatusNetworkError             -> KindNetwork
//	other 4xx                      -> KindValidation
//	5xx                            -> KindUpstream
//
// # Inputs
//
//   - status: destination HTTP status, or one of the sentinel statuses.
//   - header: destination response headers. May be nil.
//
// # Outputs
//
//   - Kind: the classification. Never panics.
func Classify(status int, header http.Header) Kind {
	switch {
	case status == StatusTimeout:
		return KindTimeout
	case status == StatusNetworkError:
		return KindNetwork
	case status < http.StatusBadRequest:
		return KindOK
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusForbidden:
		if header != nil && header.Get(headerRateLimitRemaining) == "0" {
			return KindRateLimit
		}
		return KindAuth
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusRequestTimeout:
		return KindTimeout
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status < http.StatusInternalServerError:
		return KindValidation
	default:
		return KindUpstream
	}
}

// RateLimitReset parses the x-ratelimit-reset header (unix seconds).
//
// Returns false when the header is absent or malformed.
func RateLimitReset(header http.Header) (time.Time, bool) {
	if header == nil {
		return time.Time{}, false
	}
	raw := header.Get(headerRateLimitReset)
	if raw == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}
