// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/QuangNhat10/CardsGameWeb/internal/config"
	"github.com/QuangNhat10/CardsGameWeb/internal/models"
)

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Host:            "127.0.0.1",
		Port:            0,
		Timeout:         5 * time.Second,
		CORSOrigins:     []string{"*"},
		RateLimitReqs:   100,
		RateLimitWindow: time.Minute,
	}
}

// startRelay spins up a hub plus HTTP server on an httptest listener and
// returns the websocket URL.
func startRelay(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()

	server := NewServer(testServerConfig(), hub)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return hub, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// wsDial connects a raw websocket client and waits for server:welcome.
func wsDial(t *testing.T, url string) (*websocket.Conn, models.Welcome) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	msg := wsExpect(t, conn, models.EventServerWelcome)
	var welcome models.Welcome
	if err := json.Unmarshal(msg.Data, &welcome); err != nil {
		t.Fatalf("decode welcome: %v", err)
	}
	return conn, welcome
}

// wsExpect reads until the wanted event arrives.
func wsExpect(t *testing.T, conn *websocket.Conn, event string) models.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg models.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("reading for %s: %v", event, err)
		}
		if msg.Event == event {
			return msg
		}
	}
}

func wsEmit(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	t.Helper()
	msg, err := models.NewMessage(event, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", event, err)
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()

	server := NewServer(testServerConfig(), hub)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Status  string  `json:"status"`
		Uptime  float64 `json:"uptime"`
		Clients int     `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestBannerEndpoint(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()

	ts := httptest.NewServer(NewServer(testServerConfig(), hub).Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestPingAck(t *testing.T) {
	_, url := startRelay(t)
	conn, _ := wsDial(t, url)

	wsEmit(t, conn, models.EventClientPing, nil)
	msg := wsExpect(t, conn, models.EventClientPong)
	if msg.Ack == nil || !msg.Ack.OK {
		t.Errorf("pong ack = %+v", msg.Ack)
	}
}

func TestRoomJoinLeaveFlow(t *testing.T) {
	hub, url := startRelay(t)
	alpha, alphaWelcome := wsDial(t, url)
	beta, betaWelcome := wsDial(t, url)

	// Frontend dialect joins work the same as room:join.
	wsEmit(t, alpha, models.EventJoinRoom, models.RoomRequest{Room: "fusion-lab"})
	ack := wsExpect(t, alpha, models.EventRoomJoined)
	if ack.Ack == nil || !ack.Ack.OK {
		t.Fatalf("join ack = %+v", ack.Ack)
	}

	wsEmit(t, beta, models.EventRoomJoin, models.RoomRequest{Room: "fusion-lab"})
	wsExpect(t, beta, models.EventRoomJoined)

	// Alpha hears about beta's arrival.
	notice := wsExpect(t, alpha, models.EventRoomJoined)
	var event models.RoomEvent
	if err := json.Unmarshal(notice.Data, &event); err != nil || event.UserID != betaWelcome.ID {
		t.Errorf("join notice = %+v err = %v", event, err)
	}

	if got := hub.RoomCount("fusion-lab"); got != 2 {
		t.Errorf("RoomCount = %d, want 2", got)
	}

	wsEmit(t, alpha, models.EventRoomLeave, models.RoomRequest{Room: "fusion-lab"})
	left := wsExpect(t, beta, models.EventRoomLeft)
	if err := json.Unmarshal(left.Data, &event); err != nil || event.UserID != alphaWelcome.ID {
		t.Errorf("leave notice = %+v err = %v", event, err)
	}
}

func TestRoomJoinRequiresName(t *testing.T) {
	_, url := startRelay(t)
	conn, _ := wsDial(t, url)

	wsEmit(t, conn, models.EventRoomJoin, models.RoomRequest{})
	msg := wsExpect(t, conn, models.EventRoomJoined)
	if msg.Ack == nil || msg.Ack.OK || msg.Ack.Error == "" {
		t.Errorf("expected error ack, got %+v", msg.Ack)
	}
}

func TestChatScopedToRoom(t *testing.T) {
	_, url := startRelay(t)
	member, _ := wsDial(t, url)
	outsider, _ := wsDial(t, url)

	wsEmit(t, member, models.EventRoomJoin, models.RoomRequest{Room: "fusion-lab"})
	wsExpect(t, member, models.EventRoomJoined)

	wsEmit(t, member, models.EventChatMessage, models.ChatMessage{Message: "room chat", Room: "fusion-lab"})
	chat := wsExpect(t, member, models.EventChatMessage)
	var payload models.ChatMessage
	if err := json.Unmarshal(chat.Data, &payload); err != nil || payload.Message != "room chat" {
		t.Errorf("chat = %+v err = %v", payload, err)
	}
	if payload.At == 0 || payload.UserID == "" {
		t.Errorf("relay should stamp sender and time: %+v", payload)
	}

	// The outsider must not see room chat.
	_ = outsider.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var leaked models.Message
	if err := outsider.ReadJSON(&leaked); err == nil && leaked.Event == models.EventChatMessage {
		t.Fatal("outsider received room-scoped chat")
	}
}

func TestCardEventsRelayedToOthers(t *testing.T) {
	_, url := startRelay(t)
	sender, _ := wsDial(t, url)
	receiver, _ := wsDial(t, url)

	wsEmit(t, receiver, models.EventRegisterFE, models.Presence{Timestamp: time.Now().Format(time.RFC3339)})

	update := models.CardUpdate{ID: strings.Repeat("a", 24), Name: "Emberling"}
	wsEmit(t, sender, models.EventCardUpdate, update)

	msg := wsExpect(t, receiver, models.EventCardUpdate)
	var got models.CardUpdate
	if err := json.Unmarshal(msg.Data, &got); err != nil || got.Name != "Emberling" {
		t.Errorf("relayed update = %+v err = %v", got, err)
	}

	// The sender must not get its own event back.
	_ = sender.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var echo models.Message
	if err := sender.ReadJSON(&echo); err == nil && echo.Event == models.EventCardUpdate {
		t.Fatal("sender received its own card event")
	}
}

func TestLegacyEventsReachEveryone(t *testing.T) {
	_, url := startRelay(t)
	sender, _ := wsDial(t, url)
	other, _ := wsDial(t, url)

	wsEmit(t, sender, models.EventResetFlow, nil)

	wsExpect(t, other, models.EventResetFlow)
	wsExpect(t, sender, models.EventResetFlow)
}
