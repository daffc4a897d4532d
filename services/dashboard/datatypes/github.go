// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package datatypes

// RepoSummary is the repository shape the dashboard renders in its picker.
type RepoSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// PRSummary is the pull-request shape the dashboard lists under "healing
// results".
type PRSummary struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at,omitempty"`
	Body      string `json:"body,omitempty"`
}

// UserIdentity is the authenticated GitHub identity stored in the
// github_user cookie.
type UserIdentity struct {
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
}
