// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/QuangNhat10/CardsGameWeb/internal/auth"
	"github.com/QuangNhat10/CardsGameWeb/internal/config"
	"github.com/QuangNhat10/CardsGameWeb/internal/models"
	"github.com/QuangNhat10/CardsGameWeb/internal/store"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.APIConfig{BaseURL: server.URL, Timeout: 5 * time.Second}, nil)
}

func TestListAll(t *testing.T) {
	cards := []models.Card{
		{ID: strings.Repeat("a", 24), Name: "Emberling"},
		{ID: strings.Repeat("b", 24), Name: "Tidecaller", ParentIDs: []string{}},
	}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/cards" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(cards)
	}))

	got, err := client.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Emberling" {
		t.Errorf("ListAll = %+v", got)
	}
}

func TestCreateUpdateRemove(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/cards":
			var card models.Card
			_ = json.NewDecoder(r.Body).Decode(&card)
			card.ID = strings.Repeat("c", 24)
			_ = json.NewEncoder(w).Encode(card)
		case r.Method == http.MethodPut && r.URL.Path == "/cards/"+strings.Repeat("c", 24):
			var card models.Card
			_ = json.NewDecoder(r.Body).Decode(&card)
			card.ID = strings.Repeat("c", 24)
			_ = json.NewEncoder(w).Encode(card)
		case r.Method == http.MethodDelete && r.URL.Path == "/cards/"+strings.Repeat("c", 24):
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	ctx := context.Background()

	created, err := client.Create(ctx, models.Card{Name: "Gale Sprite"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !models.IsServerID(created.ID) {
		t.Errorf("created card id = %q", created.ID)
	}

	updated, err := client.Update(ctx, created.ID, models.Card{Name: "Gale Spirit"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Gale Spirit" {
		t.Errorf("updated name = %q", updated.Name)
	}

	if err := client.Remove(ctx, created.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}

func TestMergePostsBothIDs(t *testing.T) {
	idA := strings.Repeat("a", 24)
	idB := strings.Repeat("b", 24)

	var gotBody models.MergeRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/cards/merge" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))

	if err := client.Merge(context.Background(), idA, idB); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(gotBody.CardIDs) != 2 || gotBody.CardIDs[0] != idA || gotBody.CardIDs[1] != idB {
		t.Errorf("merge body = %+v", gotBody)
	}
}

func TestMergeRejectsLocalIDsWithoutNetworkCall(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))

	cases := [][2]string{
		{"node-1700000000000-1-ab12", strings.Repeat("b", 24)},
		{strings.Repeat("a", 24), "short"},
		{strings.Repeat("g", 24), strings.Repeat("b", 24)},
		{"0x" + strings.Repeat("a", 22), strings.Repeat("b", 24)},
		{"", ""},
	}

	for _, ids := range cases {
		err := client.Merge(context.Background(), ids[0], ids[1])
		if !errors.Is(err, ErrInvalidCardID) {
			t.Errorf("Merge(%q, %q) = %v, want ErrInvalidCardID", ids[0], ids[1], err)
		}
	}

	if got := hits.Load(); got != 0 {
		t.Errorf("invalid merges reached the network %d times", got)
	}
}

func TestAPIErrorPropagation(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"cards cannot be fused"}`))
	}))

	err := client.Merge(context.Background(), strings.Repeat("a", 24), strings.Repeat("b", 24))
	var apiErr *models.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Message != "cards cannot be fused" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestRefreshAndRetryOn401(t *testing.T) {
	var cardHits, refreshHits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/cards", func(w http.ResponseWriter, r *http.Request) {
		if cardHits.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access-new" {
			t.Errorf("retry authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode([]models.Card{{ID: strings.Repeat("a", 24), Name: "Emberling"}})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshHits.Add(1)
		_ = json.NewEncoder(w).Encode(auth.Tokens{AccessToken: "access-new", RefreshToken: "refresh-new"})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	apiCfg := config.APIConfig{BaseURL: server.URL, Timeout: 5 * time.Second}
	tokens := auth.NewManager(apiCfg, store.NewMemory())
	tokens.SetTokens(auth.Tokens{AccessToken: "access-stale", RefreshToken: "refresh-ok"})

	client := NewClient(apiCfg, tokens)
	cards, err := client.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(cards) != 1 {
		t.Errorf("cards = %+v", cards)
	}
	if refreshHits.Load() != 1 {
		t.Errorf("refresh called %d times, want 1", refreshHits.Load())
	}
	if cardHits.Load() != 2 {
		t.Errorf("/cards hit %d times, want 2", cardHits.Load())
	}
}

func TestFusionHistoryProbesPaths(t *testing.T) {
	var paths []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path != "/fusions/history" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode([]models.FusedCard{
			{Card: models.Card{ID: strings.Repeat("c", 24), Name: "Stormfused Ember"}},
		})
	}))

	history, err := client.FusionHistory(context.Background())
	if err != nil {
		t.Fatalf("FusionHistory: %v", err)
	}
	if len(history) != 1 || history[0].Card.Name != "Stormfused Ember" {
		t.Errorf("history = %+v", history)
	}
	// Earlier candidate paths were tried before the one that answered.
	if len(paths) != 3 || paths[0] != "/fusion/history" || paths[2] != "/fusions/history" {
		t.Errorf("probed paths = %v", paths)
	}
}

func TestFusionHistoryDegradesToEmpty(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	history, err := client.FusionHistory(context.Background())
	if err != nil {
		t.Fatalf("FusionHistory should not fail: %v", err)
	}
	if history == nil || len(history) != 0 {
		t.Errorf("history = %#v, want empty non-nil list", history)
	}

	recipes, err := client.FusionRecipes(context.Background())
	if err != nil {
		t.Fatalf("FusionRecipes should not fail: %v", err)
	}
	if recipes == nil || len(recipes) != 0 {
		t.Errorf("recipes = %#v, want empty non-nil list", recipes)
	}
}
