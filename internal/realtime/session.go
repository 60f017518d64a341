// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

package realtime

import (
	"context"
	"sync"
)

// Session is a reference-counted handle on a shared channel. The underlying
// connection stays up while at least one session is open and is torn down
// when the last session closes. Closing a session twice is harmless.
type Session struct {
	ch   *Channel
	once sync.Once
}

// Acquire connects the channel if needed and returns a new session handle.
func (c *Channel) Acquire(ctx context.Context) (*Session, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.refs++
	c.mu.Unlock()
	return &Session{ch: c}, nil
}

// Refs returns the number of open sessions.
func (c *Channel) Refs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs
}

// Close releases the session. The last release disconnects the channel.
func (s *Session) Close() {
	s.once.Do(func() {
		s.ch.mu.Lock()
		if s.ch.refs > 0 {
			s.ch.refs--
		}
		last := s.ch.refs == 0
		s.ch.mu.Unlock()

		if last {
			s.ch.disconnect()
		}
	})
}

// On forwards to the shared channel.
func (s *Session) On(event string, handler Handler) uint64 {
	return s.ch.On(event, handler)
}

// Off forwards to the shared channel.
func (s *Session) Off(event string, id uint64) {
	s.ch.Off(event, id)
}

// Emit forwards to the shared channel.
func (s *Session) Emit(event string, payload interface{}) error {
	return s.ch.Emit(event, payload)
}

// JoinRoom forwards to the shared channel.
func (s *Session) JoinRoom(room string) error {
	return s.ch.JoinRoom(room)
}

// LeaveRoom forwards to the shared channel.
func (s *Session) LeaveRoom(room string) error {
	return s.ch.LeaveRoom(room)
}
