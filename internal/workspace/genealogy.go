// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

package workspace

import (
	"github.com/QuangNhat10/CardsGameWeb/internal/models"
)

// Lineage view layout. The root sits center, the recipe marker above it,
// parents above left and right, children in a row below.
const (
	lineageRootX   = 400.0
	lineageRootY   = 320.0
	lineageRecipeY = 170.0

	lineageParentY       = 40.0
	lineageParentSpacing = 300.0
	lineageParentStartX  = 250.0

	lineageChildY       = 560.0
	lineageChildSpacing = 180.0
)

// recipeMarkerID prefixes the inert recipe node so views can exclude it
// from drill-down.
const recipeMarkerID = "recipe-"

// IsRecipeNode reports whether a lineage node is the inert recipe marker.
// Drill-down must never re-center on it.
func IsRecipeNode(n models.WorkspaceNode) bool {
	return n.Data.IsRecipe
}

// BuildGenealogy produces a focused lineage sub-graph for one card: the
// card itself as root, its resolvable parents plus a recipe marker when it
// is a fusion result, and every card that lists it as a parent as a child
// row. Dangling parent references are omitted rather than failing. A
// result with a single node means the card has no lineage to show.
func BuildGenealogy(cardID string, all []models.Card) Graph {
	byID := make(map[string]models.Card, len(all))
	for _, card := range all {
		if card.ID != "" {
			byID[card.ID] = card
		}
	}

	target, ok := byID[cardID]
	if !ok {
		return Graph{}
	}

	var g Graph
	root := lineageNode(target, models.Position{X: lineageRootX, Y: lineageRootY})
	root.Data.IsRoot = true
	g.Nodes = append(g.Nodes, root)

	// Parents render only for fusion results (two or more parent refs).
	if len(target.ParentIDs) >= 2 {
		resolved := 0
		for _, parentID := range target.ParentIDs {
			parent, ok := byID[parentID]
			if !ok {
				continue
			}
			node := lineageNode(parent, models.Position{
				X: lineageParentStartX + float64(resolved)*lineageParentSpacing,
				Y: lineageParentY,
			})
			node.Data.IsParent = true
			g.Nodes = append(g.Nodes, node)
			g.Edges = append(g.Edges, models.WorkspaceEdge{
				ID:     edgeID(parent.ID, target.ID, "lineage"),
				Source: parent.ID,
				Target: target.ID,
				Kind:   models.EdgeKindParent,
			})
			resolved++
		}

		if resolved > 0 {
			recipe := models.WorkspaceNode{
				ID:       recipeMarkerID + target.ID,
				Position: models.Position{X: lineageRootX, Y: lineageRecipeY},
				Data: models.NodeData{
					Label:    "Fusion Recipe",
					IsRecipe: true,
				},
			}
			g.Nodes = append(g.Nodes, recipe)
			g.Edges = append(g.Edges, models.WorkspaceEdge{
				ID:     edgeID(recipe.ID, target.ID, "lineage"),
				Source: recipe.ID,
				Target: target.ID,
				Kind:   models.EdgeKindParent,
			})
		}
	}

	// Children: every card that lists the target among its parents.
	childIndex := 0
	for _, card := range all {
		if card.ID == "" || card.ID == target.ID {
			continue
		}
		if !hasParent(card, target.ID) {
			continue
		}
		node := lineageNode(card, models.Position{
			X: float64(childIndex) * lineageChildSpacing,
			Y: lineageChildY,
		})
		node.Data.IsChild = true
		g.Nodes = append(g.Nodes, node)
		g.Edges = append(g.Edges, models.WorkspaceEdge{
			ID:     edgeID(target.ID, card.ID, "lineage"),
			Source: target.ID,
			Target: card.ID,
			Kind:   models.EdgeKindChild,
		})
		childIndex++
	}

	return g
}

// Genealogy rebuilds the lineage view for a card from everything the
// controller knows: the live graph's card data plus the fused-card ledger.
func (c *Controller) Genealogy(cardID string) Graph {
	c.mu.Lock()
	all := make([]models.Card, 0, len(c.graph.Nodes)+len(c.ledger))
	for _, node := range c.graph.Nodes {
		all = append(all, node.Card())
	}
	for _, fused := range c.ledger {
		all = append(all, fused.Card)
	}
	c.mu.Unlock()

	return BuildGenealogy(cardID, dedupCards(all))
}

// dedupCards keeps the first occurrence of each id. Live graph entries win
// over ledger entries.
func dedupCards(cards []models.Card) []models.Card {
	seen := make(map[string]bool, len(cards))
	out := cards[:0]
	for _, card := range cards {
		if card.ID != "" && seen[card.ID] {
			continue
		}
		seen[card.ID] = true
		out = append(out, card)
	}
	return out
}

// lineageNode projects a card into the lineage view with display defaults
// filled in.
func lineageNode(card models.Card, pos models.Position) models.WorkspaceNode {
	return models.WorkspaceNode{
		ID:       card.ID,
		Position: pos,
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

// hasParent reports whether card lists parentID among its parents.
func hasParent(card models.Card, parentID string) bool {
	for _, p := range card.ParentIDs {
		if p == parentID {
			return true
		}
	}
	return false
}
