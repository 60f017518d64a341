// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

// Command relay runs the websocket relay server for the card fusion
// workspace. It exposes a health probe, Prometheus metrics and the /ws
// endpoint that frontends and the game backend connect to.
//
// Configuration is layered: defaults, then an optional YAML file (path via
// CONFIG_PATH), then environment variables (SERVER_PORT, SERVER_HOST,
// LOGGING_LEVEL and friends). Run it directly:
//
//	relay
//
// or with overrides:
//
//	SERVER_PORT=3001 LOGGING_LEVEL=debug relay
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/QuangNhat10/CardsGameWeb/internal/config"
	"github.com/QuangNhat10/CardsGameWeb/internal/logging"
	"github.com/QuangNhat10/CardsGameWeb/internal/relay"
	"github.com/QuangNhat10/CardsGameWeb/internal/supervisor"
	"github.com/QuangNhat10/CardsGameWeb/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Strs("cors_origins", cfg.Server.CORSOrigins).
		Msg("Starting card fusion relay")

	hub := relay.NewHub()
	server := relay.NewServer(cfg.Server, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	tree.AddSocketService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPService(server))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for services to stop")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Shutdown error")
		}
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop cleanly")
		}
	}

	logging.Info().Msg("Relay stopped gracefully")
}
