// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

// Package models defines the data model shared across the module: cards as
// the backend serves them, the workspace graph projection, the fused-card
// ledger, and the realtime wire payloads.
package models

import (
	"regexp"
	"strconv"
	"time"
)

// Rarity labels as the backend emits them. The backend is loosely typed, so
// these are plain strings rather than a closed enum; unknown values are kept
// as-is and only default-filled when empty.
const (
	RarityCommon      = "Common"
	RarityUncommon    = "Uncommon"
	RarityRare        = "Rare"
	RarityEpic        = "Epic"
	RarityLegendary   = "Legendary"
	RarityAIGenerated = "AI Generated"
	RarityFusion      = "Fusion"
	RarityUnknown     = "Unknown"
)

// PlaceholderImage is used when a card arrives without an image reference.
const PlaceholderImage = "https://upload.wikimedia.org/wikipedia/commons/3/3f/Placeholder_view_vector.svg"

// serverIDPattern matches the backend's opaque id format (Mongo-style 24-hex).
var serverIDPattern = regexp.MustCompile(`^[a-fA-F0-9]{24}$`)

// IsServerID reports whether id matches the backend's 24-character
// hexadecimal id format. Locally generated placeholder ids never match.
func IsServerID(id string) bool {
	return serverIDPattern.MatchString(id)
}

// Card is a server-owned card record. Every field except Name is optional on
// the wire; use the Display helpers for default-filled values instead of
// scattering fallbacks through calling code.
type Card struct {
	ID          string     `json:"_id,omitempty"`
	Name        string     `json:"name"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	Description string     `json:"description,omitempty"`
	Power       *int       `json:"power,omitempty"`
	Rarity      string     `json:"rarity,omitempty"`
	ParentIDs   []string   `json:"parentIds,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// IsFusion reports whether the card is a fusion result. Fusion results carry
// at least two parent ids; zero parents means a base card.
func (c Card) IsFusion() bool {
	return len(c.ParentIDs) >= 2
}

// DisplayImage returns the card image, or the placeholder when missing.
func (c Card) DisplayImage() string {
	if c.ImageURL == "" {
		return PlaceholderImage
	}
	return c.ImageURL
}

// DisplayRarity returns the card rarity, or "Unknown" when missing.
func (c Card) DisplayRarity() string {
	if c.Rarity == "" {
		return RarityUnknown
	}
	return c.Rarity
}

// DisplayPower returns the card power as a string, or "?" when missing.
func (c Card) DisplayPower() string {
	if c.Power == nil {
		return "?"
	}
	return strconv.Itoa(*c.Power)
}

// rarityPercent maps rarity labels to a 0-100 scale for display bars.
var rarityPercent = map[string]int{
	RarityCommon:      20,
	RarityUncommon:    40,
	RarityRare:        60,
	RarityEpic:        80,
	RarityLegendary:   100,
	RarityAIGenerated: 90,
}

// RarityPercent returns the display percentage for a rarity label,
// 0 for unknown labels.
func RarityPercent(rarity string) int {
	return rarityPercent[rarity]
}

// Power returns a pointer to v, for building Card literals.
func Power(v int) *int {
	return &v
}
