// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

package workspace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/QuangNhat10/CardsGameWeb/internal/config"
	"github.com/QuangNhat10/CardsGameWeb/internal/models"
	"github.com/QuangNhat10/CardsGameWeb/internal/realtime"
	"github.com/QuangNhat10/CardsGameWeb/internal/store"
)

// startStubRelay runs a websocket endpoint that records every message.
func startStubRelay(t *testing.T) (string, chan models.Message) {
	t.Helper()
	received := make(chan models.Message, 64)
	upgrader := websocket.Upgrader{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			var msg models.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			received <- msg
		}
	}))
	t.Cleanup(ts.Close)

	return "ws" + strings.TrimPrefix(ts.URL, "http"), received
}

func TestMergeFallsBackToRealtimeChannel(t *testing.T) {
	a, b := serverID('a'), serverID('b')
	dir := &fakeDirectory{
		cards:    []models.Card{{ID: a, Name: "Emberling"}, {ID: b, Name: "Tidecaller"}},
		mergeErr: errors.New("merge endpoint unavailable"),
	}

	url, received := startStubRelay(t)
	channel := realtime.New(config.SocketConfig{
		URL:               url,
		ConnectTimeout:    2 * time.Second,
		ReconnectAttempts: 1,
		ReconnectDelay:    10 * time.Millisecond,
	}, nil)
	defer channel.Close()

	timer := &manualTimer{}
	c := New(dir, store.NewMemory(), channel, WithTimer(timer.timer))
	t.Cleanup(c.Close)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c.ToggleSelect(a)
	c.ToggleSelect(b)
	if err := c.Merge(context.Background()); err != nil {
		t.Fatalf("Merge with fallback: %v", err)
	}

	// The fallback event carries both full card payloads.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-received:
			if msg.Event != models.EventCardFusion {
				continue
			}
			var req models.FusionRequest
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				t.Fatalf("decode fusion request: %v", err)
			}
			if req.CardA.ID != a || req.CardB.ID != b {
				t.Errorf("fusion ids = %q/%q", req.CardA.ID, req.CardB.ID)
			}
			if req.CardA.Name != "Emberling" || req.CardB.Name != "Tidecaller" {
				t.Errorf("fusion payload lost card data: %+v", req)
			}
			if req.RequestedAt.IsZero() {
				t.Error("fusion request missing timestamp")
			}
			return
		case <-deadline:
			t.Fatal("cardFusion fallback never reached the relay")
		}
	}
}

func TestMergeFailureWithoutChannelSurfacesError(t *testing.T) {
	a, b := serverID('a'), serverID('b')
	restErr := errors.New("merge endpoint unavailable")
	dir := &fakeDirectory{
		cards:    []models.Card{{ID: a}, {ID: b}},
		mergeErr: restErr,
	}
	c, _ := newTestController(t, dir)
	mustLoad(t, c)

	c.ToggleSelect(a)
	c.ToggleSelect(b)
	err := c.Merge(context.Background())
	if !errors.Is(err, restErr) {
		t.Fatalf("Merge = %v, want the REST error", err)
	}
	if s := c.Status(); s == nil || s.Kind != StatusError {
		t.Errorf("status = %+v", s)
	}
}
