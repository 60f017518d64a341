// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

// Package metrics provides Prometheus instrumentation for the relay server
// and the fusion workspace client. Metrics are exported at /metrics in
// Prometheus text format.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Relay Metrics
	RelayClientsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_clients_active",
			Help: "Current number of connected websocket clients",
		},
	)

	RelayRoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_rooms_active",
			Help: "Current number of rooms with at least one member",
		},
	)

	RelayMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_received_total",
			Help: "Total number of messages received from clients",
		},
		[]string{"event"},
	)

	RelayMessagesBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_broadcast_total",
			Help: "Total number of messages broadcast to clients",
		},
		[]string{"event"},
	)

	RelayMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_dropped_total",
			Help: "Total number of messages dropped because a client send buffer was full",
		},
	)

	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Directory Client Metrics
	DirectoryRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "directory_request_duration_seconds",
			Help:    "Card directory request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DirectoryRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_request_errors_total",
			Help: "Total number of failed card directory requests",
		},
		[]string{"operation"},
	)

	// Workspace Metrics
	WorkspaceLoads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workspace_loads_total",
			Help: "Total number of workspace load and reconcile passes",
		},
	)

	WorkspaceCacheOverlays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workspace_cache_overlays_total",
			Help: "Total number of loads that fell back to cached graph state",
		},
	)

	WorkspaceMerges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workspace_merges_total",
			Help: "Total number of merge attempts",
		},
		[]string{"outcome"}, // "rest", "socket_fallback", "rejected"
	)

	WorkspaceFusionsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workspace_fusions_received_total",
			Help: "Total number of new-card-ready events applied to the graph",
		},
	)
)

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordDirectoryRequest records one card directory call.
func RecordDirectoryRequest(operation string, duration time.Duration, err error) {
	DirectoryRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DirectoryRequestErrors.WithLabelValues(operation).Inc()
	}
}

// RecordRelayReceive records one message received from a client.
func RecordRelayReceive(event string) {
	RelayMessagesReceived.WithLabelValues(event).Inc()
}

// RecordRelayBroadcast records one message fanned out to clients.
func RecordRelayBroadcast(event string) {
	RelayMessagesBroadcast.WithLabelValues(event).Inc()
}

// RecordMerge records a merge attempt by outcome.
func RecordMerge(outcome string) {
	WorkspaceMerges.WithLabelValues(outcome).Inc()
}
