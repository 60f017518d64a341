// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

// Package auth manages the bearer-token lifecycle against the game backend:
// login and related account flows, token persistence in the local cache
// store, and refresh-token rotation with single-flight semantics so
// concurrent 401 handlers share one refresh round-trip.
package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/QuangNhat10/CardsGameWeb/internal/config"
	"github.com/QuangNhat10/CardsGameWeb/internal/logging"
	"github.com/QuangNhat10/CardsGameWeb/internal/models"
	"github.com/QuangNhat10/CardsGameWeb/internal/store"
)

var (
	// ErrNoRefreshToken means a refresh was requested with no refresh
	// token persisted. The caller must re-authenticate.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrSessionExpired means refresh was attempted and rejected; both
	// tokens have been cleared. The Go analog of the frontend's
	// redirect-to-login.
	ErrSessionExpired = errors.New("session expired, login required")
)

// Tokens is the access/refresh token pair the backend issues.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// refreshResult fans a finished refresh out to queued waiters.
type refreshResult struct {
	token string
	err   error
}

// Manager owns token state. All methods are safe for concurrent use.
type Manager struct {
	baseURL    string
	httpClient *http.Client
	store      store.Store

	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshResult
}

// NewManager creates a token manager backed by the given cache store.
func NewManager(cfg config.APIConfig, st store.Store) *Manager {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Manager{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		store:      st,
	}
}

// AccessToken returns the persisted access token, or "" when logged out.
func (m *Manager) AccessToken() string {
	var token string
	m.store.Load(store.KeyAccessToken, &token)
	return token
}

// RefreshToken returns the persisted refresh token, or "".
func (m *Manager) RefreshToken() string {
	var token string
	m.store.Load(store.KeyRefreshToken, &token)
	return token
}

// SetTokens persists both tokens.
func (m *Manager) SetTokens(t Tokens) {
	m.store.Save(store.KeyAccessToken, t.AccessToken)
	m.store.Save(store.KeyRefreshToken, t.RefreshToken)
}

// ClearTokens removes both tokens.
func (m *Manager) ClearTokens() {
	m.store.Clear(store.KeyAccessToken)
	m.store.Clear(store.KeyRefreshToken)
}

// AuthorizationHeader returns the access token as a Bearer header value, or
// "" when logged out.
func (m *Manager) AuthorizationHeader() string {
	token := m.AccessToken()
	if token == "" {
		return ""
	}
	if strings.HasPrefix(token, "Bearer ") {
		return token
	}
	return "Bearer " + token
}

// AccessTokenExpired reports whether the access token is missing, expires
// within leeway, or cannot be parsed. The token signature is not verified;
// only the backend can do that, this is a local pre-check so callers can
// refresh proactively instead of always eating a 401.
func (m *Manager) AccessTokenExpired(leeway time.Duration) bool {
	token := strings.TrimPrefix(m.AccessToken(), "Bearer ")
	if token == "" {
		return true
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false // No expiry claim; let the backend decide
	}
	return time.Now().Add(leeway).After(claims.ExpiresAt.Time)
}

// Refresh exchanges the refresh token for a new token pair and persists it.
// Concurrent callers are queued behind a single in-flight refresh and all
// receive its result. On rejection both tokens are cleared and
// ErrSessionExpired is returned.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.refreshing {
		ch := make(chan refreshResult, 1)
		m.waiters = append(m.waiters, ch)
		m.mu.Unlock()

		select {
		case res := <-ch:
			return res.token, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	m.refreshing = true
	m.mu.Unlock()

	token, err := m.doRefresh(ctx)

	m.mu.Lock()
	waiters := m.waiters
	m.waiters = nil
	m.refreshing = false
	m.mu.Unlock()

	for _, ch := range waiters {
		ch <- refreshResult{token: token, err: err}
	}
	return token, err
}

// doRefresh performs the actual /auth/refresh round-trip.
func (m *Manager) doRefresh(ctx context.Context) (string, error) {
	refreshToken := m.RefreshToken()
	if refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	var tokens Tokens
	err := m.post(ctx, "/auth/refresh", map[string]string{"refreshToken": refreshToken}, &tokens, false)
	if err != nil {
		logging.Warn().Err(err).Msg("token refresh rejected, clearing session")
		m.ClearTokens()
		return "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	m.SetTokens(tokens)
	logging.Debug().Msg("access token refreshed")
	return tokens.AccessToken, nil
}

// post sends a JSON body to an auth endpoint. When authed is set the current
// access token is attached.
func (m *Manager) post(ctx context.Context, path string, body interface{}, dest interface{}, authed bool) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		if header := m.AuthorizationHeader(); header != "" {
			req.Header.Set("Authorization", header)
		}
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// decodeAPIError turns a non-2xx response into a models.APIError, keeping
// the server's message when the body carries one.
func decodeAPIError(resp *http.Response) error {
	apiErr := &models.APIError{Status: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return apiErr
	}

	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Message != "" {
			apiErr.Message = parsed.Message
		} else if parsed.Error != "" {
			apiErr.Message = parsed.Error
		}
	}
	if apiErr.Message == "" && len(body) > 0 {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
