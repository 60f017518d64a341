// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

// Package identity generates collision-avoiding local identifiers for
// client-created entities that must exist in the workspace before the
// backend has assigned a real id.
//
// Generated ids combine a monotonic counter, a wall-clock timestamp and a
// random suffix, so they are unique within a process run and cannot collide
// with the backend's 24-hex id format.
package identity

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/QuangNhat10/CardsGameWeb/internal/models"
)

// counter provides the monotonic component of generated ids.
var counter atomic.Uint64

// New returns a fresh local identifier with the given prefix, e.g.
// "node-1700000000000-17-3fa4b1c2". The only side effect is the counter
// increment.
func New(prefix string) string {
	if prefix == "" {
		prefix = "local"
	}
	n := counter.Add(1)
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s-%d-%d-%s", prefix, time.Now().UnixMilli(), n, suffix)
}

// EnsureUnique returns candidate unchanged when no node in existing carries
// the same id, otherwise a freshly generated id.
func EnsureUnique(candidate string, existing []models.WorkspaceNode) string {
	for i := range existing {
		if existing[i].ID == candidate {
			return New("node")
		}
	}
	return candidate
}
