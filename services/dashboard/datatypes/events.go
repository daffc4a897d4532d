// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package datatypes

// AppendEventRequest is the body for POST /api/events and /api/webhooks.
// The timestamp is always assigned server-side; one sent by the caller is
// ignored.
type AppendEventRequest struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message" binding:"required"`
	Type    string `json:"type,omitempty"`
}
