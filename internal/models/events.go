// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Realtime event names. The card events are shared with the game backend;
// the room/chat/ping events are the relay server's own surface. addCard,
// mergeCard and resetFlow are legacy global demo events kept for the older
// relay variant.
const (
	EventServerWelcome = "server:welcome"
	EventClientPing    = "client:ping"
	EventClientPong    = "client:pong"
	EventRoomJoin      = "room:join"
	EventRoomLeave     = "room:leave"
	EventRoomJoined    = "room:joined"
	EventRoomLeft      = "room:left"
	EventChatMessage   = "chat:message"

	EventRegisterFE = "registerFE"
	EventJoinRoom   = "joinRoom"
	EventLeaveRoom  = "leaveRoom"

	EventCardUpdate   = "cardUpdate"
	EventCardFusion   = "cardFusion"
	EventCardAdded    = "cardAdded"
	EventNewCardReady = "new-card-ready"

	EventAddCard   = "addCard"
	EventMergeCard = "mergeCard"
	EventResetFlow = "resetFlow"
)

// Message is the wire envelope for realtime traffic: an event name, an
// optional payload, and an optional ack for request/reply events such as
// room:join.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   *AckResult      `json:"ack,omitempty"`
}

// NewMessage builds a Message with the payload marshaled in place.
// A nil payload produces an event-only message.
func NewMessage(event string, payload interface{}) (Message, error) {
	msg := Message{Event: event}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Data = data
	return msg, nil
}

// AckResult is the reply to an acked event.
type AckResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Welcome is the payload of server:welcome, sent to every client right after
// it connects.
type Welcome struct {
	ID          string `json:"id"`
	ConnectedAt int64  `json:"connectedAt"`
}

// Presence is the registerFE payload: the frontend announcing itself after a
// successful connect.
type Presence struct {
	Timestamp string `json:"timestamp"`
	UserAgent string `json:"userAgent,omitempty"`
	URL       string `json:"url,omitempty"`
}

// RoomRequest names a room for room:join / room:leave.
type RoomRequest struct {
	Room string `json:"room"`
}

// RoomEvent is broadcast to a room when membership changes.
type RoomEvent struct {
	Room   string `json:"room"`
	UserID string `json:"userId"`
}

// ChatMessage is a chat:message payload, optionally scoped to a room.
type ChatMessage struct {
	UserID  string `json:"userId,omitempty"`
	Message string `json:"message"`
	Room    string `json:"room,omitempty"`
	At      int64  `json:"at,omitempty"`
}

// CardUpdate is an inbound cardUpdate payload: a partial card keyed by id.
// Zero-valued fields are left untouched when the update is applied.
type CardUpdate struct {
	ID          string   `json:"_id"`
	Name        string   `json:"name,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Description string   `json:"description,omitempty"`
	Power       *int     `json:"power,omitempty"`
	Rarity      string   `json:"rarity,omitempty"`
	ParentIDs   []string `json:"parentIds,omitempty"`
}

// NewCardReadyData is the card body inside a new-card-ready event.
type NewCardReadyData struct {
	Name      string   `json:"name"`
	ImageURL  string   `json:"imageUrl,omitempty"`
	Power     *int     `json:"power,omitempty"`
	Origin    string   `json:"origin,omitempty"`
	ParentIDs []string `json:"parentIds,omitempty"`
}

// NewCardReady announces that an asynchronous fusion finished and its card
// is available. CardID is the server-assigned id when the backend had one;
// clients must treat a non-24-hex CardID as absent.
type NewCardReady struct {
	CardID   string           `json:"cardId,omitempty"`
	Img      string           `json:"img,omitempty"`
	CardData NewCardReadyData `json:"cardData"`
}

// Card converts the event payload into a Card record.
func (e NewCardReady) Card() Card {
	img := e.CardData.ImageURL
	if img == "" {
		img = e.Img
	}
	return Card{
		ID:        e.CardID,
		Name:      e.CardData.Name,
		ImageURL:  img,
		Power:     e.CardData.Power,
		Rarity:    e.CardData.Origin,
		ParentIDs: e.CardData.ParentIDs,
	}
}

// FusionRequest is the cardFusion fallback payload: both selected cards in
// full, so the backend can fuse without a second lookup.
type FusionRequest struct {
	CardA       Card      `json:"cardA"`
	CardB       Card      `json:"cardB"`
	RequestedAt time.Time `json:"requestedAt"`
}

// MergeRequest is the body of POST /cards/merge. Both ids must be
// server-confirmed 24-hex ids; the client validates this before any I/O.
type MergeRequest struct {
	CardIDs []string `json:"cardIds" validate:"len=2,dive,serverid"`
}
