// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

// Package directory implements the card directory client: a thin wrapper
// over the external game backend's REST API for listing, creating, updating,
// deleting and merging cards.
//
// Errors from the backend propagate as *models.APIError carrying the HTTP
// status and server message. Merge refuses to leave the process with ids
// that are not server-confirmed 24-hex identifiers.
package directory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/QuangNhat10/CardsGameWeb/internal/auth"
	"github.com/QuangNhat10/CardsGameWeb/internal/config"
	"github.com/QuangNhat10/CardsGameWeb/internal/logging"
	"github.com/QuangNhat10/CardsGameWeb/internal/models"
	"github.com/QuangNhat10/CardsGameWeb/internal/validation"
)

// ErrInvalidCardID means merge was attempted with an id that is not a
// server-confirmed 24-hex identifier. No request is sent in that case.
var ErrInvalidCardID = errors.New("invalid card id: merge requires server-confirmed ids")

// Recipe is one known fusion recipe from the backend.
type Recipe struct {
	ParentIDs []string    `json:"parentIds"`
	Result    models.Card `json:"result"`
}

// Directory is the card directory contract. Client implements it against
// the real backend; BreakerClient wraps any Directory with a circuit
// breaker; tests substitute fakes.
type Directory interface {
	ListAll(ctx context.Context) ([]models.Card, error)
	Get(ctx context.Context, id string) (*models.Card, error)
	Create(ctx context.Context, fields models.Card) (*models.Card, error)
	Update(ctx context.Context, id string, fields models.Card) (*models.Card, error)
	Remove(ctx context.Context, id string) error
	Merge(ctx context.Context, idA, idB string) error
	FusionHistory(ctx context.Context) ([]models.FusedCard, error)
	FusionRecipes(ctx context.Context) ([]Recipe, error)
}

// Ensure Client implements Directory.
var _ Directory = (*Client)(nil)

// Client is the REST implementation of Directory.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *auth.Manager
}

// historyPaths and recipePaths are probed in order; the backend has moved
// these endpoints between deployments, so all known locations are tried and
// total failure degrades to an empty list.
var (
	historyPaths = []string{
		"/fusion/history",
		"/api/fusion/history",
		"/fusions/history",
		"/cards/fusion/history",
	}
	recipePaths = []string{
		"/fusion/recipes",
		"/api/fusion/recipes",
		"/cards/recipes",
		"/api/cards/recipes",
	}
)

// NewClient creates a directory client. tokens may be nil for an
// unauthenticated backend.
func NewClient(cfg config.APIConfig, tokens *auth.Manager) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
	}
}

// ListAll fetches the full card directory.
func (c *Client) ListAll(ctx context.Context) ([]models.Card, error) {
	var cards []models.Card
	if err := c.do(ctx, http.MethodGet, "/cards", nil, &cards); err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

// Get fetches one card by id.
func (c *Client) Get(ctx context.Context, id string) (*models.Card, error) {
	var card models.Card
	if err := c.do(ctx, http.MethodGet, "/cards/"+id, nil, &card); err != nil {
		return nil, fmt.Errorf("get card %s: %w", id, err)
	}
	return &card, nil
}

// Create creates a card and returns the server's record (with its id).
func (c *Client) Create(ctx context.Context, fields models.Card) (*models.Card, error) {
	var card models.Card
	if err := c.do(ctx, http.MethodPost, "/cards", fields, &card); err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}
	return &card, nil
}

// Update updates card fields and returns the server's record.
func (c *Client) Update(ctx context.Context, id string, fields models.Card) (*models.Card, error) {
	var card models.Card
	if err := c.do(ctx, http.MethodPut, "/cards/"+id, fields, &card); err != nil {
		return nil, fmt.Errorf("update card %s: %w", id, err)
	}
	return &card, nil
}

// Remove deletes a card.
func (c *Client) Remove(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/cards/"+id, nil, nil); err != nil {
		return fmt.Errorf("delete card %s: %w", id, err)
	}
	return nil
}

// Merge requests an asynchronous fusion of two cards. Both ids must be
// server-confirmed 24-hex ids; anything else short-circuits with
// ErrInvalidCardID before any network I/O. The fused card is not returned
// here; it arrives later as a new-card-ready realtime event.
func (c *Client) Merge(ctx context.Context, idA, idB string) error {
	req := models.MergeRequest{CardIDs: []string{idA, idB}}
	if err := validateMergeIDs(&req); err != nil {
		return err
	}

	if err := c.do(ctx, http.MethodPost, "/cards/merge", req, nil); err != nil {
		return fmt.Errorf("merge cards: %w", err)
	}
	return nil
}

// FusionHistory fetches past fusion results, probing each known endpoint
// path. All paths failing is non-fatal: an empty list is returned.
func (c *Client) FusionHistory(ctx context.Context) ([]models.FusedCard, error) {
	var history []models.FusedCard
	if !c.probe(ctx, historyPaths, &history) {
		logging.Warn().Msg("fusion history endpoints unavailable, returning empty list")
		return []models.FusedCard{}, nil
	}
	return history, nil
}

// FusionRecipes fetches known fusion recipes, probing each known endpoint
// path. All paths failing is non-fatal: an empty list is returned.
func (c *Client) FusionRecipes(ctx context.Context) ([]Recipe, error) {
	var recipes []Recipe
	if !c.probe(ctx, recipePaths, &recipes) {
		logging.Warn().Msg("fusion recipe endpoints unavailable, returning empty list")
		return []Recipe{}, nil
	}
	return recipes, nil
}

// validateMergeIDs rejects merge ids that are not server-confirmed 24-hex
// identifiers. Runs before any network I/O.
func validateMergeIDs(req *models.MergeRequest) error {
	if err := validation.ValidateStruct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCardID, err)
	}
	return nil
}

// probe tries each path in order until one succeeds.
func (c *Client) probe(ctx context.Context, paths []string, dest interface{}) bool {
	for _, path := range paths {
		if err := c.do(ctx, http.MethodGet, path, nil, dest); err == nil {
			return true
		}
	}
	return false
}

// do performs one request with bearer auth and a single refresh-and-retry
// on 401 when a token manager is attached.
func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil {
		_ = resp.Body.Close()

		if _, err := c.tokens.Refresh(ctx); err != nil {
			return fmt.Errorf("refresh after 401: %w", err)
		}
		if resp, err = c.send(ctx, method, path, body); err != nil {
			return err
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// send builds and executes one HTTP request.
func (c *Client) send(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tokens != nil {
		if header := c.tokens.AuthorizationHeader(); header != "" {
			req.Header.Set("Authorization", header)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	return resp, nil
}

// decodeAPIError turns a non-2xx response into a *models.APIError.
func decodeAPIError(resp *http.Response) error {
	apiErr := &models.APIError{Status: resp.StatusCode}

	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.NewDecoder(resp.Body).Decode(&parsed) == nil {
		if parsed.Message != "" {
			apiErr.Message = parsed.Message
		} else {
			apiErr.Message = parsed.Error
		}
	}
	return apiErr
}
