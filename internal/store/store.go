// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

// Package store implements the local cache store: durable key/value
// persistence holding the last-known workspace graph, the fused-card ledger
// and the auth tokens.
//
// Failure semantics are deliberate and asymmetric: a failed save must never
// interrupt in-memory state (swallowed, logged), and a failed load behaves
// as if no cache existed. Callers never see a storage error.
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/QuangNhat10/CardsGameWeb/internal/config"
	"github.com/QuangNhat10/CardsGameWeb/internal/logging"
)

// Cache keys. The fusionGuide keys match the browser-storage keys of the
// original frontend so a dump of one maps onto the other.
const (
	KeyNodes        = "fusionGuide:nodes"
	KeyEdges        = "fusionGuide:edges"
	KeyFusedCards   = "fusionGuide:fusedCards"
	KeyAccessToken  = "auth:accessToken"
	KeyRefreshToken = "auth:refreshToken"
)

// Store is the local cache contract. Save is best-effort and silent on
// failure; Load reports presence via its bool and fills dest only on success.
type Store interface {
	Save(key string, value interface{})
	Load(key string, dest interface{}) bool
	Clear(key string)
	Close() error
}

// Open returns a store matching the cache configuration: badger-backed when
// a path is configured, in-memory otherwise.
func Open(cfg config.CacheConfig) (Store, error) {
	if cfg.InMemory {
		return NewMemory(), nil
	}
	return OpenBadger(cfg.Path)
}

// BadgerStore persists cache entries in a badger database so the workspace
// survives process restarts.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a badger database at path.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logger is noisy; we log at the store level

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache store at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already-open badger database. The caller keeps
// ownership of the database lifecycle.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Save serializes value and stores it under key. Serialization or write
// failures are logged and swallowed.
func (s *BadgerStore) Save(key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("cache save skipped: marshal failed")
		return
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("cache save failed")
	}
}

// Load reads and deserializes the value under key into dest. Returns false
// when the key is absent or the stored bytes cannot be decoded.
func (s *BadgerStore) Load(key string, dest interface{}) bool {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false
	}
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("cache load failed")
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("cache load skipped: unmarshal failed")
		return false
	}
	return true
}

// Clear removes the entry under key. Missing keys are a no-op.
func (s *BadgerStore) Clear(key string) {
	err := s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("cache clear failed")
	}
}

// Close flushes and closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
