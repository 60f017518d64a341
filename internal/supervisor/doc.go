// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

// Package supervisor wires the relay's long-running services into a
// suture supervisor tree.
//
// The tree has a root supervisor with two child layers:
//
//	relay
//	├── socket-layer   websocket hub
//	└── api-layer      HTTP server
//
// A crash in either layer restarts only that layer's services; repeated
// failures back off per the configured threshold instead of crash-looping.
// Supervisor events are logged through sutureslog, bridged onto the
// process-wide zerolog logger via logging.NewSlogLogger.
//
// Typical wiring:
//
//	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
//	tree.AddSocketService(services.NewHubService(hub))
//	tree.AddAPIService(services.NewHTTPService(server))
//	errCh := tree.ServeBackground(ctx)
package supervisor
