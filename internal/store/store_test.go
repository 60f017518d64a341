// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

package store

import (
	"strings"
	"testing"
	"time"

	"github.com/QuangNhat10/CardsGameWeb/internal/config"
	"github.com/QuangNhat10/CardsGameWeb/internal/models"
)

func openTestStores(t *testing.T) map[string]Store {
	t.Helper()

	badgerStore, err := OpenBadger(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { _ = badgerStore.Close() })

	return map[string]Store{
		"badger": badgerStore,
		"memory": NewMemory(),
	}
}

func TestSaveLoadClear(t *testing.T) {
	for name, s := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			nodes := []models.WorkspaceNode{
				{
					ID:       strings.Repeat("a", 24),
					Position: models.Position{X: 0, Y: 0},
					Data:     models.NodeData{Label: "Emberling", Rarity: models.RarityCommon},
				},
				{
					ID:       strings.Repeat("b", 24),
					Position: models.Position{X: 220, Y: 0},
					Data:     models.NodeData{Label: "Tidecaller", Power: models.Power(31)},
				},
			}

			s.Save(KeyNodes, nodes)

			var loaded []models.WorkspaceNode
			if !s.Load(KeyNodes, &loaded) {
				t.Fatal("Load returned absent for saved key")
			}
			if len(loaded) != 2 {
				t.Fatalf("loaded %d nodes, want 2", len(loaded))
			}
			if loaded[0].ID != nodes[0].ID || loaded[1].Data.Label != "Tidecaller" {
				t.Errorf("round trip mismatch: %+v", loaded)
			}
			if loaded[1].Data.Power == nil || *loaded[1].Data.Power != 31 {
				t.Errorf("power round trip mismatch: %v", loaded[1].Data.Power)
			}

			s.Clear(KeyNodes)
			var cleared []models.WorkspaceNode
			if s.Load(KeyNodes, &cleared) {
				t.Error("Load returned present after Clear")
			}
		})
	}
}

func TestLoadAbsent(t *testing.T) {
	for name, s := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			var dest []models.WorkspaceEdge
			if s.Load(KeyEdges, &dest) {
				t.Error("Load returned present for never-saved key")
			}
		})
	}
}

func TestClearMissingKeyIsNoOp(t *testing.T) {
	for name, s := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			s.Clear("never-saved") // must not panic or error
		})
	}
}

func TestSaveUnserializableIsSwallowed(t *testing.T) {
	for name, s := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			s.Save(KeyNodes, func() {}) // functions cannot marshal

			var dest []models.WorkspaceNode
			if s.Load(KeyNodes, &dest) {
				t.Error("failed save left a loadable value behind")
			}
		})
	}
}

func TestFusedCardLedgerRoundTrip(t *testing.T) {
	for name, s := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			received := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
			ledger := []models.FusedCard{
				{
					Card: models.Card{
						ID:     strings.Repeat("c", 24),
						Name:   "Stormfused Ember",
						Rarity: models.RarityAIGenerated,
					},
					ParentIDs:  []string{strings.Repeat("a", 24), strings.Repeat("b", 24)},
					ReceivedAt: received,
				},
			}

			s.Save(KeyFusedCards, ledger)

			var loaded []models.FusedCard
			if !s.Load(KeyFusedCards, &loaded) {
				t.Fatal("ledger absent after save")
			}
			if len(loaded) != 1 || !loaded[0].ReceivedAt.Equal(received) {
				t.Errorf("ledger round trip mismatch: %+v", loaded)
			}
			if len(loaded[0].ParentIDs) != 2 {
				t.Errorf("parent ids lost: %v", loaded[0].ParentIDs)
			}
		})
	}
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenBadger(dir)
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	s.Save(KeyAccessToken, "token-123")
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenBadger(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	var token string
	if !reopened.Load(KeyAccessToken, &token) {
		t.Fatal("token absent after reopen")
	}
	if token != "token-123" {
		t.Errorf("token = %q", token)
	}
}

func TestOpenFromConfig(t *testing.T) {
	s, err := Open(config.CacheConfig{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("expected MemoryStore, got %T", s)
	}

	s, err = Open(config.CacheConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close() }()
	if _, ok := s.(*BadgerStore); !ok {
		t.Errorf("expected BadgerStore, got %T", s)
	}
}
