// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

// Package config loads and validates module configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables (highest priority).
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the root configuration for both the client core and the relay
// server binary.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	API     APIConfig     `koanf:"api"`
	Socket  SocketConfig  `koanf:"socket"`
	Cache   CacheConfig   `koanf:"cache"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig configures the relay server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// APIConfig configures the card directory REST client.
type APIConfig struct {
	// BaseURL of the external game backend, e.g. http://localhost:5000.
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// SocketConfig configures the realtime channel client.
type SocketConfig struct {
	// URL of the websocket endpoint, e.g. ws://localhost:3001/ws.
	URL               string        `koanf:"url"`
	ConnectTimeout    time.Duration `koanf:"connect_timeout"`
	ReconnectAttempts int           `koanf:"reconnect_attempts"`
	ReconnectDelay    time.Duration `koanf:"reconnect_delay"`
}

// CacheConfig configures the local cache store.
type CacheConfig struct {
	// Path is the badger directory for durable persistence.
	Path string `koanf:"path"`
	// InMemory switches the store to a non-durable in-memory map,
	// mainly for tests and ephemeral runs.
	InMemory bool `koanf:"in_memory"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3001,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		API: APIConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 30 * time.Second,
		},
		Socket: SocketConfig{
			URL:               "ws://localhost:3001/ws",
			ConnectTimeout:    20 * time.Second,
			ReconnectAttempts: 3,
			ReconnectDelay:    time.Second,
		},
		Cache: CacheConfig{
			Path:     "/data/fusion-cache",
			InMemory: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}

	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if _, err := url.Parse(c.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url invalid: %w", err)
	}

	if c.Socket.URL == "" {
		return fmt.Errorf("socket.url is required")
	}
	u, err := url.Parse(c.Socket.URL)
	if err != nil {
		return fmt.Errorf("socket.url invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("socket.url scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.Socket.ReconnectAttempts < 0 {
		return fmt.Errorf("socket.reconnect_attempts must be >= 0")
	}
	if c.Socket.ConnectTimeout <= 0 {
		return fmt.Errorf("socket.connect_timeout must be positive")
	}

	if !c.Cache.InMemory && c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required unless cache.in_memory is set")
	}

	return nil
}
