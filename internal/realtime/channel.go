// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

// Package realtime implements the websocket channel to the relay server.
// The channel registers itself as a frontend on connect, rejoins its last
// room after a reconnect, and dispatches incoming events to subscribed
// handlers. Connection sharing is handled by reference-counted sessions so
// independent consumers cannot tear down each other's link.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/QuangNhat10/CardsGameWeb/internal/auth"
	"github.com/QuangNhat10/CardsGameWeb/internal/config"
	"github.com/QuangNhat10/CardsGameWeb/internal/logging"
	"github.com/QuangNhat10/CardsGameWeb/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

var (
	// ErrAuthFailed is returned when the relay rejects the connection for
	// authentication reasons and a token refresh did not help. The caller
	// should send the user back through login.
	ErrAuthFailed = errors.New("realtime: authentication failed")

	// ErrNotConnected is returned by Emit when no connection is up.
	ErrNotConnected = errors.New("realtime: not connected")
)

// tokenErrorMarkers are substrings that identify an authentication failure
// in a rejection message from the relay or an intermediate proxy.
var tokenErrorMarkers = []string{
	"token",
	"unauthorized",
	"invalid",
	"expired",
	"authentication",
	"not logged in",
}

// IsAuthErrorMessage reports whether a rejection message looks like an
// authentication failure rather than a transport problem.
func IsAuthErrorMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range tokenErrorMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// State describes the channel connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String implements fmt.Stringer for log fields.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler receives the raw payload of a dispatched event.
type Handler func(data json.RawMessage)

// Channel is a websocket client for the relay server. All methods are safe
// for concurrent use. The zero value is not usable; construct with New.
type Channel struct {
	cfg    config.SocketConfig
	tokens *auth.Manager

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	send     chan models.Message
	stop     chan struct{}
	lastRoom string
	refs     int
	closed   bool

	handlerMu sync.RWMutex
	handlers  map[string]map[uint64]Handler
	nextSub   uint64

	// dial is swappable for tests.
	dial func(ctx context.Context, header http.Header) (*websocket.Conn, *http.Response, error)
}

// New creates a channel for the given socket configuration. tokens may be
// nil for an unauthenticated connection.
func New(cfg config.SocketConfig, tokens *auth.Manager) *Channel {
	c := &Channel{
		cfg:      cfg,
		tokens:   tokens,
		handlers: make(map[string]map[uint64]Handler),
	}
	c.dial = func(ctx context.Context, header http.Header) (*websocket.Conn, *http.Response, error) {
		dialer := websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout}
		return dialer.DialContext(ctx, cfg.URL, header)
	}
	return c
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Connect establishes the websocket connection. Calling Connect while the
// channel is connecting or connected is a no-op. A dial rejected for
// authentication reasons triggers exactly one token refresh and retry
// before ErrAuthFailed is returned.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("realtime: channel closed")
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	conn, err := c.dialOnce(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}

	c.startPumps(conn)
	c.announce()
	logging.Info().Str("url", c.cfg.URL).Msg("realtime channel connected")
	return nil
}

// dialOnce dials the relay, refreshing the access token once if the dial
// is rejected for authentication reasons.
func (c *Channel) dialOnce(ctx context.Context) (*websocket.Conn, error) {
	conn, authErr, err := c.tryDial(ctx)
	if err == nil {
		return conn, nil
	}
	if !authErr {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	if c.tokens == nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	logging.Warn().Err(err).Msg("relay rejected credentials, refreshing token")
	if _, refreshErr := c.tokens.Refresh(ctx); refreshErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, refreshErr)
	}

	conn, _, err = c.tryDial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return conn, nil
}

// tryDial performs a single dial attempt. The second return value reports
// whether the failure looked like an authentication rejection.
func (c *Channel) tryDial(ctx context.Context) (*websocket.Conn, bool, error) {
	header := http.Header{}
	if c.tokens != nil {
		if bearer := c.tokens.AuthorizationHeader(); bearer != "" {
			header.Set("Authorization", bearer)
		}
	}

	conn, resp, err := c.dial(ctx, header)
	if err == nil {
		return conn, false, nil
	}
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return nil, true, fmt.Errorf("handshake rejected with status %d", resp.StatusCode)
	}
	return nil, IsAuthErrorMessage(err.Error()), err
}

// startPumps installs the connection and launches the read and write loops.
func (c *Channel) startPumps(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.send = make(chan models.Message, 256)
	c.stop = make(chan struct{})
	c.state = StateConnected
	stop := c.stop
	send := c.send
	c.mu.Unlock()

	go c.writePump(conn, send, stop)
	go c.readPump(conn, stop)
}

// announce registers the channel as a frontend and rejoins the room it was
// in before the last disconnect.
func (c *Channel) announce() {
	c.mu.Lock()
	room := c.lastRoom
	c.mu.Unlock()

	_ = c.Emit(models.EventRegisterFE, nil)
	if room != "" {
		_ = c.Emit(models.EventJoinRoom, models.RoomRequest{Room: room})
	}
}

// Emit sends an event to the relay. It never blocks: a full send buffer
// drops the message and returns an error.
func (c *Channel) Emit(event string, payload interface{}) error {
	msg, err := models.NewMessage(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}

	c.mu.Lock()
	send := c.send
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || send == nil {
		return ErrNotConnected
	}

	select {
	case send <- msg:
		return nil
	default:
		return fmt.Errorf("emit %s: send buffer full", event)
	}
}

// On subscribes a handler to an event and returns a subscription id for Off.
func (c *Channel) On(event string, handler Handler) uint64 {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()

	c.nextSub++
	id := c.nextSub
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[uint64]Handler)
	}
	c.handlers[event][id] = handler
	return id
}

// Off removes a subscription registered with On.
func (c *Channel) Off(event string, id uint64) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()

	if subs, ok := c.handlers[event]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(c.handlers, event)
		}
	}
}

// JoinRoom joins a relay room and remembers it for reconnects.
func (c *Channel) JoinRoom(room string) error {
	c.mu.Lock()
	c.lastRoom = room
	c.mu.Unlock()
	return c.Emit(models.EventJoinRoom, models.RoomRequest{Room: room})
}

// LeaveRoom leaves a relay room and forgets it.
func (c *Channel) LeaveRoom(room string) error {
	c.mu.Lock()
	if c.lastRoom == room {
		c.lastRoom = ""
	}
	c.mu.Unlock()
	return c.Emit(models.EventLeaveRoom, models.RoomRequest{Room: room})
}

// dispatch fans an incoming message out to every subscribed handler.
func (c *Channel) dispatch(msg models.Message) {
	c.handlerMu.RLock()
	subs := make([]Handler, 0, len(c.handlers[msg.Event]))
	for _, h := range c.handlers[msg.Event] {
		subs = append(subs, h)
	}
	c.handlerMu.RUnlock()

	for _, h := range subs {
		h(msg.Data)
	}
}

// readPump reads messages until the connection drops or stop is closed,
// then decides whether to reconnect.
func (c *Channel) readPump(conn *websocket.Conn, stop chan struct{}) {
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg models.Message
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-stop:
				// Deliberate disconnect, stay down.
				return
			default:
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close")
			}
			c.onConnectionLost()
			return
		}
		c.dispatch(msg)
	}
}

// writePump writes queued messages and keepalive pings until stop closes
// or a write fails.
func (c *Channel) writePump(conn *websocket.Conn, send chan models.Message, stop chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-stop:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg := <-send:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				logging.Error().Err(err).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// onConnectionLost marks the channel disconnected and starts a bounded
// reconnect loop if sessions are still open.
func (c *Channel) onConnectionLost() {
	c.mu.Lock()
	c.state = StateDisconnected
	c.conn = nil
	c.send = nil
	active := c.refs > 0 && !c.closed
	c.mu.Unlock()

	if !active {
		return
	}
	go c.reconnect()
}

// reconnect retries the connection a bounded number of times. After the
// final failure the channel stays disconnected until the next Connect.
func (c *Channel) reconnect() {
	attempts := c.cfg.ReconnectAttempts
	delay := c.cfg.ReconnectDelay
	if delay <= 0 {
		delay = time.Second
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		time.Sleep(delay)

		c.mu.Lock()
		if c.closed || c.refs == 0 || c.state != StateDisconnected {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		logging.Info().
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("reconnecting realtime channel")

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
		err := c.Connect(ctx)
		cancel()
		if err == nil {
			return
		}
		if errors.Is(err, ErrAuthFailed) {
			logging.Error().Err(err).Msg("reconnect abandoned, session expired")
			return
		}
		logging.Warn().Err(err).Int("attempt", attempt).Msg("reconnect attempt failed")
	}
	logging.Error().Int("attempts", attempts).Msg("realtime channel gave up reconnecting")
}

// disconnect tears the connection down without scheduling a reconnect.
func (c *Channel) disconnect() {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	stop := c.stop
	c.state = StateDisconnected
	c.conn = nil
	c.send = nil
	c.stop = nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	logging.Info().Msg("realtime channel disconnected")
}

// Close disconnects and permanently disables the channel.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.disconnect()
}
