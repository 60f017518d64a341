// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

package services

import (
	"context"
	"errors"
	"net/http"
)

// ContextListener matches the relay server's blocking ListenAndServe
// method, which drains in-flight requests itself when the context ends.
type ContextListener interface {
	ListenAndServe(ctx context.Context) error
}

// HTTPService wraps the relay HTTP server as a supervised service.
//
//	server := relay.NewServer(cfg.Server, hub)
//	tree.AddAPIService(services.NewHTTPService(server))
type HTTPService struct {
	server ContextListener
	name   string
}

// NewHTTPService creates an HTTP server service wrapper.
func NewHTTPService(server ContextListener) *HTTPService {
	return &HTTPService{server: server, name: "http-server"}
}

// Serve implements suture.Service.
//
// http.ErrServerClosed is mapped to ctx.Err() so an externally triggered
// close during shutdown is not treated as a service crash.
func (s *HTTPService) Serve(ctx context.Context) error {
	err := s.server.ListenAndServe(ctx)
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	return err
}

// String implements fmt.Stringer for supervisor logging.
func (s *HTTPService) String() string {
	return s.name
}
