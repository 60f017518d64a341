// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

package models

import "fmt"

// APIError is a typed failure from the game backend: the HTTP status and the
// server's message. Transport-level failures (no response at all) are plain
// wrapped errors, not APIErrors.
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether the failure was an auth rejection.
func (e *APIError) IsUnauthorized() bool {
	return e.Status == 401
}
