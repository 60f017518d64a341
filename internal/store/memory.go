// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

package store

import (
	"sync"

	"github.com/goccy/go-json"

	"github.com/QuangNhat10/CardsGameWeb/internal/logging"
)

// MemoryStore is a non-durable Store for tests and ephemeral runs. Values
// are held as serialized bytes so load/save behave byte-for-byte like the
// badger store, including serialization failures.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

// Save serializes value and stores it under key.
func (s *MemoryStore) Save(key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("cache save skipped: marshal failed")
		return
	}

	s.mu.Lock()
	s.entries[key] = data
	s.mu.Unlock()
}

// Load reads the value under key into dest.
func (s *MemoryStore) Load(key string, dest interface{}) bool {
	s.mu.RLock()
	data, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("cache load skipped: unmarshal failed")
		return false
	}
	return true
}

// Clear removes the entry under key.
func (s *MemoryStore) Clear(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
