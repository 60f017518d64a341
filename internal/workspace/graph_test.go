// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

package workspace

import (
	"io"
	"strings"
	"testing"

	"github.com/QuangNhat10/CardsGameWeb/internal/logging"
	"github.com/QuangNhat10/CardsGameWeb/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

func serverID(c byte) string {
	return strings.Repeat(string(c), 24)
}

func TestGridLayoutIsDeterministic(t *testing.T) {
	cards := make([]models.Card, 14)
	for i := range cards {
		cards[i] = models.Card{ID: serverID(byte('a' + i)), Name: "Card"}
	}

	nodes := nodesFromCards(cards)
	for i, node := range nodes {
		wantX := float64(i%6) * cellWidth
		wantY := float64(i/6) * cellHeight
		if node.Position.X != wantX || node.Position.Y != wantY {
			t.Errorf("node %d at (%v,%v), want (%v,%v)", i, node.Position.X, node.Position.Y, wantX, wantY)
		}
	}
}

func TestNodesWithoutServerIDGetPlaceholders(t *testing.T) {
	nodes := nodesFromCards([]models.Card{{Name: "Draft"}, {Name: "Draft Two"}})
	if nodes[0].ID == "" || nodes[1].ID == "" {
		t.Fatal("placeholder ids not generated")
	}
	if nodes[0].ID == nodes[1].ID {
		t.Error("placeholder ids collide")
	}
	if models.IsServerID(nodes[0].ID) {
		t.Errorf("placeholder id %q looks like a server id", nodes[0].ID)
	}
}

func TestRepairDuplicateIDs(t *testing.T) {
	dup := serverID('a')
	nodes := []models.WorkspaceNode{
		{ID: dup, Data: models.NodeData{Label: "first"}},
		{ID: dup, Data: models.NodeData{Label: "second"}},
		{ID: dup, Data: models.NodeData{Label: "third"}},
		{ID: serverID('b')},
	}

	repaired := repairDuplicateIDs(nodes)

	seen := make(map[string]bool)
	for _, n := range repaired {
		if seen[n.ID] {
			t.Fatalf("duplicate id %q survived repair", n.ID)
		}
		seen[n.ID] = true
	}
	if repaired[0].ID != dup {
		t.Errorf("first occurrence was renamed to %q", repaired[0].ID)
	}

	// Idempotence: a second pass changes nothing.
	before := make([]string, len(repaired))
	for i, n := range repaired {
		before[i] = n.ID
	}
	again := repairDuplicateIDs(repaired)
	for i, n := range again {
		if n.ID != before[i] {
			t.Errorf("second repair changed node %d from %q to %q", i, before[i], n.ID)
		}
	}
}

func TestDeriveParentEdges(t *testing.T) {
	a, b, child := serverID('a'), serverID('b'), serverID('c')
	g := Graph{Nodes: []models.WorkspaceNode{
		{ID: a},
		{ID: b},
		{ID: child, Data: models.NodeData{ParentIDs: []string{a, b, serverID('f')}}},
	}}

	edges := deriveParentEdges(g, originDirectory)
	if len(edges) != 2 {
		t.Fatalf("derived %d edges, want 2 (dangling parent omitted)", len(edges))
	}
	nodeIDs := map[string]bool{a: true, b: true, child: true}
	for _, e := range edges {
		if !nodeIDs[e.Source] || !nodeIDs[e.Target] {
			t.Errorf("edge %q references missing node", e.ID)
		}
		if e.Target != child {
			t.Errorf("edge target = %q, want %q", e.Target, child)
		}
		if e.Kind != models.EdgeKindParent {
			t.Errorf("edge kind = %q", e.Kind)
		}
	}
}

func TestDeriveParentEdgesSkipsExistingRelations(t *testing.T) {
	a, child := serverID('a'), serverID('c')
	g := Graph{
		Nodes: []models.WorkspaceNode{
			{ID: a},
			{ID: child, Data: models.NodeData{ParentIDs: []string{a}}},
		},
		Edges: []models.WorkspaceEdge{
			{ID: edgeID(a, child, originFusion), Source: a, Target: child},
		},
	}

	if edges := deriveParentEdges(g, originCache); len(edges) != 0 {
		t.Errorf("re-derived %d edges over an existing relation", len(edges))
	}
}

func TestDeriveParentEdgesIgnoresSelfReference(t *testing.T) {
	a := serverID('a')
	g := Graph{Nodes: []models.WorkspaceNode{
		{ID: a, Data: models.NodeData{ParentIDs: []string{a}}},
	}}
	if edges := deriveParentEdges(g, originDirectory); len(edges) != 0 {
		t.Errorf("derived %d self edges", len(edges))
	}
}

func TestBuildGraphTwoLooseCards(t *testing.T) {
	g := buildGraph([]models.Card{
		{ID: serverID('a'), ParentIDs: []string{}},
		{ID: serverID('b'), ParentIDs: []string{}},
	})
	if len(g.Nodes) != 2 || len(g.Edges) != 0 {
		t.Errorf("graph = %d nodes %d edges, want 2/0", len(g.Nodes), len(g.Edges))
	}
}

func TestOverlayCacheRederivesMissingEdges(t *testing.T) {
	a, b, child := serverID('a'), serverID('b'), serverID('c')
	cached := Graph{
		Nodes: []models.WorkspaceNode{
			{ID: a, Position: models.Position{X: 42, Y: 7}},
			{ID: b},
			{ID: child, Data: models.NodeData{ParentIDs: []string{a, b}}},
		},
		Edges: []models.WorkspaceEdge{
			{ID: edgeID(a, child, originFusion), Source: a, Target: child},
		},
	}

	g := overlayCache(cached)
	if len(g.Nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(g.Nodes))
	}
	if g.Nodes[0].Position.X != 42 {
		t.Errorf("cached position lost: %+v", g.Nodes[0].Position)
	}
	if len(g.Edges) != 2 {
		t.Fatalf("edges = %d, want 2 (existing kept, missing re-derived)", len(g.Edges))
	}
}
