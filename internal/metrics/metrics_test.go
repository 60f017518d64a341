// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/health", "200"))
	RecordHTTPRequest("GET", "/health", 200, 3*time.Millisecond)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/health", "200"))
	if after != before+1 {
		t.Errorf("http_requests_total = %v, want %v", after, before+1)
	}
}

func TestRecordDirectoryRequest(t *testing.T) {
	errBefore := testutil.ToFloat64(DirectoryRequestErrors.WithLabelValues("merge"))

	RecordDirectoryRequest("merge", 10*time.Millisecond, nil)
	if got := testutil.ToFloat64(DirectoryRequestErrors.WithLabelValues("merge")); got != errBefore {
		t.Errorf("successful request incremented error counter: %v", got)
	}

	RecordDirectoryRequest("merge", 10*time.Millisecond, errors.New("boom"))
	if got := testutil.ToFloat64(DirectoryRequestErrors.WithLabelValues("merge")); got != errBefore+1 {
		t.Errorf("directory_request_errors_total = %v, want %v", got, errBefore+1)
	}
}

func TestRecordMergeOutcomes(t *testing.T) {
	for _, outcome := range []string{"rest", "socket_fallback", "rejected"} {
		before := testutil.ToFloat64(WorkspaceMerges.WithLabelValues(outcome))
		RecordMerge(outcome)
		if got := testutil.ToFloat64(WorkspaceMerges.WithLabelValues(outcome)); got != before+1 {
			t.Errorf("workspace_merges_total{outcome=%q} = %v, want %v", outcome, got, before+1)
		}
	}
}

func TestRelayCounters(t *testing.T) {
	before := testutil.ToFloat64(RelayMessagesReceived.WithLabelValues("chat:message"))
	RecordRelayReceive("chat:message")
	RecordRelayBroadcast("chat:message")
	if got := testutil.ToFloat64(RelayMessagesReceived.WithLabelValues("chat:message")); got != before+1 {
		t.Errorf("relay_messages_received_total = %v, want %v", got, before+1)
	}

	RelayClientsActive.Set(4)
	if got := testutil.ToFloat64(RelayClientsActive); got != 4 {
		t.Errorf("relay_clients_active = %v, want 4", got)
	}
	RelayClientsActive.Set(0)
}
