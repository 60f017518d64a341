// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

// Package services wraps the relay's long-running components as
// suture.Service implementations so the supervisor tree can restart them
// independently.
package services

import (
	"context"
)

// ContextRunner matches the relay hub's Run method.
//
// The interface keeps this package free of an import on internal/relay,
// which also makes the wrapper trivial to test with a stub.
type ContextRunner interface {
	Run(ctx context.Context) error
}

// HubService wraps the websocket hub as a supervised service.
//
// The hub's Run method already follows the suture.Service contract
// (block until the context is canceled, then return ctx.Err()), so the
// wrapper only delegates and provides a stable name for logging.
//
//	hub := relay.NewHub()
//	tree.AddSocketService(services.NewHubService(hub))
type HubService struct {
	hub  ContextRunner
	name string
}

// NewHubService creates a hub service wrapper.
func NewHubService(hub ContextRunner) *HubService {
	return &HubService{hub: hub, name: "relay-hub"}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.Run(ctx)
}

// String implements fmt.Stringer for supervisor logging.
func (s *HubService) String() string {
	return s.name
}
