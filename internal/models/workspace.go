// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

package models

import "time"

// Position is a node's location on the 2D workspace canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is the payload a workspace node carries: the card fields it
// mirrors plus lineage-view flags. The flags affect only how a node is
// rendered in a genealogy view; they carry no graph semantics.
type NodeData struct {
	Label       string   `json:"label"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Description string   `json:"description,omitempty"`
	Power       *int     `json:"power,omitempty"`
	Rarity      string   `json:"rarity,omitempty"`
	ParentIDs   []string `json:"parentIds,omitempty"`

	IsRoot   bool `json:"isRoot,omitempty"`
	IsParent bool `json:"isParent,omitempty"`
	IsChild  bool `json:"isChild,omitempty"`
	IsRecipe bool `json:"isRecipe,omitempty"`
}

// WorkspaceNode projects a card (or a transient recipe marker) onto the
// canvas. ID mirrors the card id when server-confirmed, otherwise a locally
// generated placeholder. Node ids are unique within a workspace; the
// controller repairs duplicates after every load.
type WorkspaceNode struct {
	ID       string   `json:"id"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Card rebuilds a Card from the node's data payload. Used when a merge
// request falls back to the realtime channel and must carry full card data.
func (n WorkspaceNode) Card() Card {
	return Card{
		ID:          n.ID,
		Name:        n.Data.Label,
		ImageURL:    n.Data.ImageURL,
		Description: n.Data.Description,
		Power:       n.Data.Power,
		Rarity:      n.Data.Rarity,
		ParentIDs:   n.Data.ParentIDs,
	}
}

// EdgeKind distinguishes parent edges from child edges in lineage views.
type EdgeKind string

const (
	EdgeKindParent EdgeKind = "parent"
	EdgeKindChild  EdgeKind = "child"
)

// WorkspaceEdge is a directed source→target relation meaning "source card is
// a parent of target card". Edges are derived, never user-edited; both
// endpoints must exist as nodes when the edge is created.
type WorkspaceEdge struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind,omitempty"`
}

// FusedCard is one entry of the append-only fused-card ledger: a fusion
// result received over the realtime channel, tagged with the parents that
// produced it and the time it arrived. The ledger persists independently of
// the node graph so lineage survives a reload before the next API refresh.
type FusedCard struct {
	Card       Card      `json:"card"`
	ParentIDs  []string  `json:"parentIds"`
	ReceivedAt time.Time `json:"receivedAt"`
}
