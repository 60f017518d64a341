// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

// Command workspace runs the fusion workspace headless: it loads the card
// directory, keeps the graph synchronized over the realtime channel, and
// logs fusion results as they land. Useful for smoke-testing a deployment
// without a browser.
//
// Tokens come from the environment (ACCESS_TOKEN, REFRESH_TOKEN); without
// them the workspace still runs read-only against a backend that allows
// anonymous listing.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/QuangNhat10/CardsGameWeb/internal/auth"
	"github.com/QuangNhat10/CardsGameWeb/internal/config"
	"github.com/QuangNhat10/CardsGameWeb/internal/directory"
	"github.com/QuangNhat10/CardsGameWeb/internal/logging"
	"github.com/QuangNhat10/CardsGameWeb/internal/realtime"
	"github.com/QuangNhat10/CardsGameWeb/internal/store"
	"github.com/QuangNhat10/CardsGameWeb/internal/workspace"
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

	cache, err := store.Open(cfg.Cache)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open cache store")
	}
	defer cache.Close()

	tokens := auth.NewManager(cfg.API, cache)
	if access := os.Getenv("ACCESS_TOKEN"); access != "" {
		tokens.SetTokens(auth.Tokens{
			AccessToken:  access,
			RefreshToken: os.Getenv("REFRESH_TOKEN"),
		})
	}

	dir := directory.NewBreakerClient(directory.NewClient(cfg.API, tokens))
	channel := realtime.New(cfg.Socket, tokens)
	defer channel.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := workspace.New(dir, cache, channel)
	defer ctrl.Close()

	if err := ctrl.Start(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to start workspace")
	}

	g := ctrl.Graph()
	logging.Info().
		Int("nodes", len(g.Nodes)).
		Int("edges", len(g.Edges)).
		Bool("realtime", ctrl.Connected()).
		Msg("Workspace loaded")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var lastFusions int
	for {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Shutting down workspace")
			return
		case <-ticker.C:
			ledger := ctrl.Ledger()
			for _, fused := range ledger[lastFusions:] {
				logging.Info().
					Str("card_id", fused.Card.ID).
					Str("name", fused.Card.Name).
					Strs("parents", fused.ParentIDs).
					Msg("Fusion completed")
			}
			lastFusions = len(ledger)

			g := ctrl.Graph()
			logging.Debug().
				Int("nodes", len(g.Nodes)).
				Int("edges", len(g.Edges)).
				Bool("realtime", ctrl.Connected()).
				Msg("Workspace heartbeat")
		}
	}
}
