// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

package relay

import (
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/QuangNhat10/CardsGameWeb/internal/logging"
	"github.com/QuangNhat10/CardsGameWeb/internal/metrics"
	"github.com/QuangNhat10/CardsGameWeb/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

// clientIDCounter assigns clients a monotonically increasing id so
// broadcast delivery order is deterministic.
var clientIDCounter atomic.Uint64

// Client is the middleman between one websocket connection and the hub.
type Client struct {
	id     uint64
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan models.Message

	frontend atomic.Bool
}

// NewClient wraps an upgraded connection. Start must be called to begin
// the pumps.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:     clientIDCounter.Add(1),
		userID: uuid.NewString(),
		hub:    hub,
		conn:   conn,
		send:   make(chan models.Message, 256),
	}
}

// ID returns the client's hub-unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// UserID returns the identity assigned to this connection.
func (c *Client) UserID() string {
	return c.userID
}

// Start registers the client with the hub and launches its pumps.
func (c *Client) Start() {
	c.hub.Register <- c
	go c.writePump()
	go c.readPump()
}

// welcome queues the server:welcome greeting. Called by the hub once the
// client is registered.
func (c *Client) welcome() {
	c.reply(models.EventServerWelcome, models.Welcome{
		ID:          c.userID,
		ConnectedAt: time.Now().UnixMilli(),
	}, nil)
}

// reply queues a message for this client only, dropping it if the buffer
// is full.
func (c *Client) reply(event string, payload interface{}, ack *models.AckResult) {
	msg, err := models.NewMessage(event, payload)
	if err != nil {
		logging.Warn().Err(err).Str("event", event).Msg("failed to encode reply")
		return
	}
	msg.Ack = ack

	select {
	case c.send <- msg:
	default:
		metrics.RelayMessagesDropped.Inc()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg models.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		metrics.RecordRelayReceive(msg.Event)
		c.handleMessage(msg)
	}
}

// handleMessage routes one inbound event. joinRoom and leaveRoom are the
// frontend's spelling of room:join and room:leave; both dialects are
// accepted.
func (c *Client) handleMessage(msg models.Message) {
	switch msg.Event {
	case models.EventClientPing:
		c.reply(models.EventClientPong, nil, &models.AckResult{OK: true})

	case models.EventRegisterFE:
		c.frontend.Store(true)
		var presence models.Presence
		if len(msg.Data) > 0 {
			_ = json.Unmarshal(msg.Data, &presence)
		}
		logging.Info().
			Str("user_id", c.userID).
			Str("user_agent", presence.UserAgent).
			Msg("frontend registered")

	case models.EventRoomJoin, models.EventJoinRoom:
		c.handleRoomJoin(msg)

	case models.EventRoomLeave, models.EventLeaveRoom:
		c.handleRoomLeave(msg)

	case models.EventChatMessage:
		c.handleChat(msg)

	case models.EventCardUpdate, models.EventCardAdded, models.EventNewCardReady, models.EventCardFusion:
		// Card traffic stays within the sender's room; roomless senders
		// reach every other client.
		c.relayRaw(msg)

	case models.EventAddCard, models.EventMergeCard, models.EventResetFlow:
		// Legacy demo events go to everyone, sender included.
		c.relayRawAll(msg)

	default:
		logging.Debug().Str("event", msg.Event).Msg("ignoring unknown event")
	}
}

// relayRaw forwards the original payload to the sender's rooms, excluding
// the sender. A sender in no room reaches all other clients. A sender in
// several rooms relays into each of them.
func (c *Client) relayRaw(msg models.Message) {
	forward := models.Message{Event: msg.Event, Data: msg.Data}
	rooms := c.hub.RoomsOf(c)
	if len(rooms) == 0 {
		c.enqueueForward(forward, "")
		return
	}
	for _, room := range rooms {
		c.enqueueForward(forward, room)
	}
}

func (c *Client) enqueueForward(msg models.Message, room string) {
	select {
	case c.hub.broadcast <- broadcastTarget{msg: msg, room: room, except: c.id}:
	default:
		metrics.RelayMessagesDropped.Inc()
	}
}

// relayRawAll forwards the original payload to every client.
func (c *Client) relayRawAll(msg models.Message) {
	forward := models.Message{Event: msg.Event, Data: msg.Data}
	select {
	case c.hub.broadcast <- broadcastTarget{msg: forward}:
	default:
		metrics.RelayMessagesDropped.Inc()
	}
}

func (c *Client) handleRoomJoin(msg models.Message) {
	var req models.RoomRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.Room == "" {
		c.reply(models.EventRoomJoined, nil, &models.AckResult{Error: "room name required"})
		return
	}

	c.hub.JoinRoom(c, req.Room)
	c.reply(models.EventRoomJoined, models.RoomEvent{Room: req.Room, UserID: c.userID}, &models.AckResult{OK: true})
	c.hub.BroadcastRoom(req.Room, models.EventRoomJoined, models.RoomEvent{Room: req.Room, UserID: c.userID}, c.id)
}

func (c *Client) handleRoomLeave(msg models.Message) {
	var req models.RoomRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.Room == "" {
		c.reply(models.EventRoomLeft, nil, &models.AckResult{Error: "room name required"})
		return
	}

	c.hub.LeaveRoom(c, req.Room)
	c.reply(models.EventRoomLeft, models.RoomEvent{Room: req.Room, UserID: c.userID}, &models.AckResult{OK: true})
	c.hub.BroadcastRoom(req.Room, models.EventRoomLeft, models.RoomEvent{Room: req.Room, UserID: c.userID}, c.id)
}

func (c *Client) handleChat(msg models.Message) {
	var chat models.ChatMessage
	if err := json.Unmarshal(msg.Data, &chat); err != nil {
		return
	}
	chat.UserID = c.userID
	if chat.At == 0 {
		chat.At = time.Now().UnixMilli()
	}

	if chat.Room != "" {
		c.hub.BroadcastRoom(chat.Room, models.EventChatMessage, chat, 0)
		return
	}
	c.hub.Broadcast(models.EventChatMessage, chat, 0)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logging.Error().Err(err).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
