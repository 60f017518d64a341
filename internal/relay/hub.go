// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

// Package relay implements the websocket relay server: a hub of connected
// clients organized into rooms, fanning card and chat events between the
// game backend and registered frontends.
package relay

import (
	"context"
	"sort"
	"sync"

	"github.com/QuangNhat10/CardsGameWeb/internal/logging"
	"github.com/QuangNhat10/CardsGameWeb/internal/metrics"
	"github.com/QuangNhat10/CardsGameWeb/internal/models"
)

// broadcastTarget scopes an outgoing message. An empty room means all
// clients. except skips the originating client so it does not receive its
// own relayed event.
type broadcastTarget struct {
	msg    models.Message
	room   string
	except uint64
}

// Hub maintains the set of active clients and their room memberships.
type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	broadcast  chan broadcastTarget
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an empty hub. Run must be called before clients attach.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan broadcastTarget, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run services registrations and broadcasts until ctx is canceled, then
// closes every client. Designed to run under a suture supervisor.
//
// Uses priority-based selection so lifecycle events are always applied
// before broadcasts when both are pending. Go's select picks randomly
// among ready channels, which would otherwise let a broadcast race a
// disconnect.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case target := <-h.broadcast:
			h.deliver(target)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.RelayClientsActive.Set(float64(total))
	logging.Info().
		Str("user_id", c.userID).
		Int("total_clients", total).
		Msg("relay client connected")

	c.welcome()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	rooms := h.dropFromRoomsLocked(c)
	total := len(h.clients)
	activeRooms := len(h.rooms)
	close(c.send)
	h.mu.Unlock()

	metrics.RelayClientsActive.Set(float64(total))
	metrics.RelayRoomsActive.Set(float64(activeRooms))
	logging.Info().
		Str("user_id", c.userID).
		Int("total_clients", total).
		Msg("relay client disconnected")

	// Members of each room the client was in get a room:left notice.
	for _, room := range rooms {
		h.BroadcastRoom(room, models.EventRoomLeft, models.RoomEvent{Room: room, UserID: c.userID}, 0)
	}
}

// dropFromRoomsLocked removes c from every room and returns the rooms it
// was a member of. Caller holds h.mu.
func (h *Hub) dropFromRoomsLocked(c *Client) []string {
	var rooms []string
	for room, members := range h.rooms {
		if members[c] {
			delete(members, c)
			rooms = append(rooms, room)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	sort.Strings(rooms)
	return rooms
}

// JoinRoom adds c to a room, creating it on first join.
func (h *Hub) JoinRoom(c *Client, room string) {
	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true
	activeRooms := len(h.rooms)
	h.mu.Unlock()

	metrics.RelayRoomsActive.Set(float64(activeRooms))
	logging.Info().Str("room", room).Str("user_id", c.userID).Msg("client joined room")
}

// LeaveRoom removes c from a room. Leaving a room the client is not in is
// a no-op.
func (h *Hub) LeaveRoom(c *Client, room string) {
	h.mu.Lock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	activeRooms := len(h.rooms)
	h.mu.Unlock()

	metrics.RelayRoomsActive.Set(float64(activeRooms))
	logging.Info().Str("room", room).Str("user_id", c.userID).Msg("client left room")
}

// RoomsOf returns the rooms c is currently a member of, sorted.
func (h *Hub) RoomsOf(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var rooms []string
	for room, members := range h.rooms {
		if members[c] {
			rooms = append(rooms, room)
		}
	}
	sort.Strings(rooms)
	return rooms
}

// Broadcast queues an event for every connected client. except skips a
// single client id; pass 0 to reach everyone.
func (h *Hub) Broadcast(event string, payload interface{}, except uint64) {
	h.enqueue(event, payload, "", except)
}

// BroadcastRoom queues an event for all members of a room.
func (h *Hub) BroadcastRoom(room, event string, payload interface{}, except uint64) {
	h.enqueue(event, payload, room, except)
}

func (h *Hub) enqueue(event string, payload interface{}, room string, except uint64) {
	msg, err := models.NewMessage(event, payload)
	if err != nil {
		logging.Warn().Err(err).Str("event", event).Msg("failed to encode broadcast")
		return
	}

	select {
	case h.broadcast <- broadcastTarget{msg: msg, room: room, except: except}:
	default:
		logging.Warn().Str("event", event).Msg("broadcast channel full, dropping message")
		metrics.RelayMessagesDropped.Inc()
	}
}

// deliver fans a message out in deterministic client id order. Clients
// with a full send buffer are disconnected rather than blocked on.
func (h *Hub) deliver(target broadcastTarget) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var pool map[*Client]bool
	if target.room == "" {
		pool = h.clients
	} else {
		pool = h.rooms[target.room]
	}

	recipients := make([]*Client, 0, len(pool))
	for client := range pool {
		if client.id == target.except {
			continue
		}
		recipients = append(recipients, client)
	}
	sort.Slice(recipients, func(i, j int) bool {
		return recipients[i].id < recipients[j].id
	})

	var toRemove []*Client
	for _, client := range recipients {
		select {
		case client.send <- target.msg:
			metrics.RecordRelayBroadcast(target.msg.Event)
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		h.dropFromRoomsLocked(client)
		metrics.RelayMessagesDropped.Inc()
		logging.Warn().Str("user_id", client.userID).Msg("dropping client with full send buffer")
	}
	if len(toRemove) > 0 {
		metrics.RelayClientsActive.Set(float64(len(h.clients)))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of members in a room.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// shutdown closes all clients in id order and logs the reason.
func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.rooms = make(map[string]map[*Client]bool)
	h.mu.Unlock()

	metrics.RelayClientsActive.Set(0)
	metrics.RelayRoomsActive.Set(0)

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "relay-hub").
		Str("reason", reason).
		Int("clients_closed", len(clients)).
		Msg("relay hub stopped")
}
