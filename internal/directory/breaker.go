// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

package directory

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/QuangNhat10/CardsGameWeb/internal/logging"
	"github.com/QuangNhat10/CardsGameWeb/internal/models"
)

// BreakerClient wraps a Directory with a circuit breaker so a down backend
// fails fast instead of stacking 30-second timeouts. Validation failures
// (ErrInvalidCardID) never reach the breaker: they are rejected before any
// network I/O and must not count as backend failures.
//
// The breaker uses real time for its interval and timeout; tests exercise
// the wrapped client directly and only cover the breaker's counting here.
type BreakerClient struct {
	inner Directory
	cb    *gobreaker.CircuitBreaker[interface{}]
}

// Ensure BreakerClient implements Directory.
var _ Directory = (*BreakerClient)(nil)

// NewBreakerClient wraps inner with the standard breaker settings: opens at
// a 60% failure rate over at least 10 requests, allows 3 probes when
// half-open, waits 2 minutes before probing.
func NewBreakerClient(inner Directory) *BreakerClient {
	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "card-directory",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state transition")
		},
	})

	return &BreakerClient{inner: inner, cb: cb}
}

// execute runs fn through the breaker.
func (b *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	return b.cb.Execute(fn)
}

// ListAll implements Directory.
func (b *BreakerClient) ListAll(ctx context.Context) ([]models.Card, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.inner.ListAll(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.Card), nil
}

// Get implements Directory.
func (b *BreakerClient) Get(ctx context.Context, id string) (*models.Card, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.inner.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Card), nil
}

// Create implements Directory.
func (b *BreakerClient) Create(ctx context.Context, fields models.Card) (*models.Card, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.inner.Create(ctx, fields)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Card), nil
}

// Update implements Directory.
func (b *BreakerClient) Update(ctx context.Context, id string, fields models.Card) (*models.Card, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.inner.Update(ctx, id, fields)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Card), nil
}

// Remove implements Directory.
func (b *BreakerClient) Remove(ctx context.Context, id string) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.inner.Remove(ctx, id)
	})
	return err
}

// Merge implements Directory. The id validation runs before the breaker so
// rejected ids cannot trip it.
func (b *BreakerClient) Merge(ctx context.Context, idA, idB string) error {
	req := models.MergeRequest{CardIDs: []string{idA, idB}}
	if err := validateMergeIDs(&req); err != nil {
		return err
	}

	_, err := b.execute(func() (interface{}, error) {
		return nil, b.inner.Merge(ctx, idA, idB)
	})
	return err
}

// FusionHistory implements Directory.
func (b *BreakerClient) FusionHistory(ctx context.Context) ([]models.FusedCard, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.inner.FusionHistory(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.FusedCard), nil
}

// FusionRecipes implements Directory.
func (b *BreakerClient) FusionRecipes(ctx context.Context) ([]Recipe, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.inner.FusionRecipes(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Recipe), nil
}
