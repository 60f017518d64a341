// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

// Package workspace owns the fusion workspace: an in-memory node/edge graph
// reconciled from the card directory, the local cache, and realtime fusion
// events. The controller is the single writer of the graph; views read
// snapshots.
package workspace

import (
	"fmt"

	"github.com/QuangNhat10/CardsGameWeb/internal/identity"
	"github.com/QuangNhat10/CardsGameWeb/internal/logging"
	"github.com/QuangNhat10/CardsGameWeb/internal/models"
)

// Layout constants. Cards load into a fixed grid so the layout reproduces
// across reloads absent manual dragging; fused cards drop into a viewport
// band at a randomized spot.
const (
	gridColumns = 6
	cellWidth   = 220.0
	cellHeight  = 260.0

	fusionBandX      = 120.0
	fusionBandY      = 80.0
	fusionBandWidth  = 640.0
	fusionBandHeight = 320.0
)

// Edge origin tags. Edge ids are built from the (parent, child, origin)
// triple so the same relation derived twice collapses to one edge.
const (
	originDirectory = "dir"
	originCache     = "cache"
	originFusion    = "fusion"
)

// Graph is a node set plus the directed parent→child edges between them.
type Graph struct {
	Nodes []models.WorkspaceNode `json:"nodes"`
	Edges []models.WorkspaceEdge `json:"edges"`
}

// Clone returns a deep enough copy for handing out as a snapshot.
func (g Graph) Clone() Graph {
	out := Graph{
		Nodes: make([]models.WorkspaceNode, len(g.Nodes)),
		Edges: make([]models.WorkspaceEdge, len(g.Edges)),
	}
	copy(out.Nodes, g.Nodes)
	copy(out.Edges, g.Edges)
	return out
}

// NodeByID returns the node with the given id, if present.
func (g Graph) NodeByID(id string) (models.WorkspaceNode, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return models.WorkspaceNode{}, false
}

func (g Graph) hasNode(id string) bool {
	_, ok := g.NodeByID(id)
	return ok
}

func (g Graph) hasEdge(id string) bool {
	for _, e := range g.Edges {
		if e.ID == id {
			return true
		}
	}
	return false
}

// edgeID builds a deterministic edge id from the relation and its origin.
func edgeID(parent, child, origin string) string {
	return fmt.Sprintf("edge-%s-%s-%s", parent, child, origin)
}

// gridPosition places the i-th card on the load grid.
func gridPosition(i int) models.Position {
	return models.Position{
		X: float64(i%gridColumns) * cellWidth,
		Y: float64(i/gridColumns) * cellHeight,
	}
}

// nodeFromCard projects a card onto the canvas at the given grid index.
// Cards without a server id get a generated placeholder.
func nodeFromCard(card models.Card, index int) models.WorkspaceNode {
	id := card.ID
	if id == "" {
		id = identity.New("node")
	}
	return models.WorkspaceNode{
		ID:       id,
		Position: gridPosition(index),
		Data: models.NodeData{
			Label:       card.Name,
			ImageURL:    card.DisplayImage(),
			Description: card.Description,
			Power:       card.Power,
			Rarity:      card.DisplayRarity(),
			ParentIDs:   card.ParentIDs,
		},
	}
}

// nodesFromCards builds the full node set for a directory listing.
func nodesFromCards(cards []models.Card) []models.WorkspaceNode {
	nodes := make([]models.WorkspaceNode, 0, len(cards))
	for i, card := range cards {
		nodes = append(nodes, nodeFromCard(card, i))
	}
	return nodes
}

// repairDuplicateIDs regenerates the id of every duplicate occurrence
// beyond the first. Must run before edges are derived, because edge lookups
// key off id equality. Idempotent: a second pass changes nothing.
func repairDuplicateIDs(nodes []models.WorkspaceNode) []models.WorkspaceNode {
	seen := make(map[string]bool, len(nodes))
	for i := range nodes {
		if !seen[nodes[i].ID] {
			seen[nodes[i].ID] = true
			continue
		}
		old := nodes[i].ID
		fresh := identity.New("node")
		for seen[fresh] {
			fresh = identity.New("node")
		}
		nodes[i].ID = fresh
		seen[fresh] = true
		logging.Warn().
			Str("old_id", old).
			Str("new_id", fresh).
			Msg("repaired duplicate node id")
	}
	return nodes
}

// deriveParentEdges creates one parent→child edge per resolvable parent
// reference, skipping parents with no matching node and relations already
// present under any origin tag.
func deriveParentEdges(g Graph, origin string) []models.WorkspaceEdge {
	present := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		present[e.Source+"\x00"+e.Target] = true
	}

	var derived []models.WorkspaceEdge
	for _, node := range g.Nodes {
		for _, parent := range node.Data.ParentIDs {
			if parent == node.ID || !g.hasNode(parent) {
				continue
			}
			key := parent + "\x00" + node.ID
			if present[key] {
				continue
			}
			present[key] = true
			derived = append(derived, models.WorkspaceEdge{
				ID:     edgeID(parent, node.ID, origin),
				Source: parent,
				Target: node.ID,
				Kind:   models.EdgeKindParent,
			})
		}
	}
	return derived
}

// buildGraph assembles a reconciled graph from a directory listing: nodes
// on the grid, duplicate ids repaired, parent edges derived.
func buildGraph(cards []models.Card) Graph {
	g := Graph{Nodes: repairDuplicateIDs(nodesFromCards(cards))}
	g.Edges = deriveParentEdges(g, originDirectory)
	return g
}

// overlayCache adopts the cached graph wholesale, then re-derives any
// parent edges the cached edge set is missing. Used when the directory
// returned at most the bootstrap threshold of cards.
func overlayCache(cached Graph) Graph {
	g := Graph{
		Nodes: repairDuplicateIDs(cached.Nodes),
		Edges: cached.Edges,
	}
	g.Edges = append(g.Edges, deriveParentEdges(g, originCache)...)
	return g
}
