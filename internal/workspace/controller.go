// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

package workspace

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/QuangNhat10/CardsGameWeb/internal/directory"
	"github.com/QuangNhat10/CardsGameWeb/internal/identity"
	"github.com/QuangNhat10/CardsGameWeb/internal/logging"
	"github.com/QuangNhat10/CardsGameWeb/internal/metrics"
	"github.com/QuangNhat10/CardsGameWeb/internal/models"
	"github.com/QuangNhat10/CardsGameWeb/internal/realtime"
	"github.com/QuangNhat10/CardsGameWeb/internal/store"
)

// cacheOverlayThreshold is the fetched-card count at or below which a
// cached graph is preferred over the fresh listing.
const cacheOverlayThreshold = 2

// noticeClearDelay is how long the "new card ready" banner stays up.
const noticeClearDelay = 5 * time.Second

// statusClearDelay is how long merge status messages stay up.
const statusClearDelay = 4 * time.Second

// ErrSelectionIncomplete is returned by Merge when fewer or more than two
// nodes are selected.
var ErrSelectionIncomplete = errors.New("workspace: merge needs exactly two selected cards")

// State is the controller lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

// String implements fmt.Stringer for log fields.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// StatusKind classifies a transient status message.
type StatusKind string

const (
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

// Status is a transient user-visible message, auto-dismissed.
type Status struct {
	Kind    StatusKind
	Message string
}

// stopTimer cancels a pending auto-clear.
type stopTimer func()

// Option configures a Controller.
type Option func(*Controller)

// WithTimer replaces the auto-clear timer, letting tests fire it
// synchronously instead of waiting wall-clock seconds.
func WithTimer(fn func(d time.Duration, f func()) stopTimer) Option {
	return func(c *Controller) { c.timer = fn }
}

// WithRand replaces the position randomizer with a deterministic source.
func WithRand(fn func() float64) Option {
	return func(c *Controller) { c.randFloat = fn }
}

// Controller is the single source of truth for the fusion workspace graph.
// All exported methods are safe for concurrent use.
type Controller struct {
	directory directory.Directory
	cache     store.Store
	channel   *realtime.Channel

	mu         sync.Mutex
	state      State
	graph      Graph
	selection  []string
	ledger     []models.FusedCard
	status     *Status
	notice     *models.FusedCard
	generation uint64
	closed     bool

	session *realtime.Session
	subs    []subscription

	timer       func(d time.Duration, f func()) stopTimer
	randFloat   func() float64
	stopStatus  stopTimer
	stopNotice  stopTimer
}

type subscription struct {
	event string
	id    uint64
}

// New builds a controller. channel may be nil for an offline workspace;
// realtime features are then disabled.
func New(dir directory.Directory, cache store.Store, channel *realtime.Channel, opts ...Option) *Controller {
	c := &Controller{
		directory: dir,
		cache:     cache,
		channel:   channel,
		timer: func(d time.Duration, f func()) stopTimer {
			t := time.AfterFunc(d, f)
			return func() { t.Stop() }
		},
		randFloat: rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.hydrateLedger()
	return c
}

// hydrateLedger restores the fused-card ledger from the cache so lineage
// survives a restart before the next directory refresh.
func (c *Controller) hydrateLedger() {
	var ledger []models.FusedCard
	if c.cache.Load(store.KeyFusedCards, &ledger) {
		c.ledger = ledger
	}
}

// Start connects the realtime session, subscribes the event handlers and
// runs the first load.
func (c *Controller) Start(ctx context.Context) error {
	if c.channel != nil {
		session, err := c.channel.Acquire(ctx)
		if err != nil {
			// Realtime is best-effort; the workspace still works from
			// the directory and cache.
			logging.Warn().Err(err).Msg("workspace starting without realtime channel")
		} else {
			c.session = session
			c.subscribe(models.EventCardUpdate, c.handleCardUpdate)
			c.subscribe(models.EventNewCardReady, c.handleNewCardReady)
			c.subscribe(models.EventCardAdded, c.handleCardAdded)
		}
	}
	return c.Load(ctx)
}

func (c *Controller) subscribe(event string, handler realtime.Handler) {
	id := c.session.On(event, handler)
	c.subs = append(c.subs, subscription{event: event, id: id})
}

// Load fetches the card list and reconciles the graph. Runs on start and
// after every create/update/delete round-trip. A load that resolves after
// a newer load started, or after Close, is discarded.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateLoading
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	cards, err := c.directory.ListAll(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.generation != gen {
		// A newer load superseded this one while it was in flight.
		return nil
	}
	if err != nil {
		c.state = StateReady
		c.setStatusLocked(StatusError, "could not load cards")
		return err
	}

	graph := buildGraph(cards)

	// Bootstrap overlay: with almost nothing fetched, a previously cached
	// graph is the better picture.
	if len(cards) <= cacheOverlayThreshold {
		if cached, ok := c.loadCachedGraph(); ok && len(cached.Nodes) > 0 {
			graph = overlayCache(cached)
			metrics.WorkspaceCacheOverlays.Inc()
			logging.Info().
				Int("fetched", len(cards)).
				Int("cached_nodes", len(graph.Nodes)).
				Msg("using cached workspace graph")
		}
	}

	c.graph = graph
	c.persistLocked()
	c.state = StateReady
	metrics.WorkspaceLoads.Inc()
	logging.Info().
		Int("nodes", len(graph.Nodes)).
		Int("edges", len(graph.Edges)).
		Msg("workspace reconciled")
	return nil
}

// loadCachedGraph reads the node and edge arrays from the cache.
func (c *Controller) loadCachedGraph() (Graph, bool) {
	var g Graph
	nodesOK := c.cache.Load(store.KeyNodes, &g.Nodes)
	if !nodesOK {
		return Graph{}, false
	}
	c.cache.Load(store.KeyEdges, &g.Edges)
	return g, true
}

// persistLocked writes the graph and ledger to the cache. Best-effort:
// the store swallows failures. Caller holds c.mu.
func (c *Controller) persistLocked() {
	c.cache.Save(store.KeyNodes, c.graph.Nodes)
	c.cache.Save(store.KeyEdges, c.graph.Edges)
	c.cache.Save(store.KeyFusedCards, c.ledger)
}

// ToggleSelect toggles a node in the selection set. Selection is capped at
// two; clicking a third node is a no-op rather than a replacement.
// Returns the selection after the click.
func (c *Controller) ToggleSelect(id string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, sel := range c.selection {
		if sel == id {
			c.selection = append(c.selection[:i], c.selection[i+1:]...)
			return append([]string(nil), c.selection...)
		}
	}
	if !c.graph.hasNode(id) || len(c.selection) >= 2 {
		return append([]string(nil), c.selection...)
	}
	c.selection = append(c.selection, id)
	return append([]string(nil), c.selection...)
}

// Selection returns the current merge candidates.
func (c *Controller) Selection() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.selection...)
}

// ClearSelection empties the selection set.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection = nil
}

// Merge requests a fusion of the two selected cards. The fused card is not
// created synchronously; it arrives later as a new-card-ready event. The
// selection clears on every attempt, success or failure.
func (c *Controller) Merge(ctx context.Context) error {
	c.mu.Lock()
	if len(c.selection) != 2 {
		c.mu.Unlock()
		return ErrSelectionIncomplete
	}
	idA, idB := c.selection[0], c.selection[1]
	nodeA, okA := c.graph.NodeByID(idA)
	nodeB, okB := c.graph.NodeByID(idB)
	c.selection = nil
	c.mu.Unlock()

	// Placeholder ids never reach the API.
	if !models.IsServerID(idA) || !models.IsServerID(idB) || !okA || !okB {
		metrics.RecordMerge("rejected")
		c.setStatus(StatusError, "these cards cannot be fused yet: invalid card id")
		return directory.ErrInvalidCardID
	}

	if err := c.directory.Merge(ctx, idA, idB); err != nil {
		logging.Warn().Err(err).Msg("merge endpoint failed, falling back to realtime")
		if fallbackErr := c.emitFusionFallback(nodeA, nodeB); fallbackErr != nil {
			metrics.RecordMerge("rejected")
			c.setStatus(StatusError, "fusion request failed")
			return err
		}
		metrics.RecordMerge("socket_fallback")
		c.setStatus(StatusSuccess, "fusion requested, your card is being forged")
		return nil
	}

	metrics.RecordMerge("rest")
	c.setStatus(StatusSuccess, "fusion requested, your card is being forged")
	return nil
}

// emitFusionFallback sends both full card payloads over the channel so the
// backend can fuse without a second lookup.
func (c *Controller) emitFusionFallback(a, b models.WorkspaceNode) error {
	if c.session == nil {
		return realtime.ErrNotConnected
	}
	return c.session.Emit(models.EventCardFusion, models.FusionRequest{
		CardA:       a.Card(),
		CardB:       b.Card(),
		RequestedAt: time.Now(),
	})
}

// handleCardUpdate patches the matching node's data fields in place.
// Unknown ids are ignored.
func (c *Controller) handleCardUpdate(data json.RawMessage) {
	var update models.CardUpdate
	if err := json.Unmarshal(data, &update); err != nil || update.ID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	for i := range c.graph.Nodes {
		if c.graph.Nodes[i].ID != update.ID {
			continue
		}
		applyUpdate(&c.graph.Nodes[i].Data, update)
		c.persistLocked()
		logging.Debug().Str("card_id", update.ID).Msg("applied card update")
		return
	}
}

// applyUpdate copies the non-zero fields of a partial update onto the node.
func applyUpdate(data *models.NodeData, update models.CardUpdate) {
	if update.Name != "" {
		data.Label = update.Name
	}
	if update.ImageURL != "" {
		data.ImageURL = update.ImageURL
	}
	if update.Description != "" {
		data.Description = update.Description
	}
	if update.Power != nil {
		data.Power = update.Power
	}
	if update.Rarity != "" {
		data.Rarity = update.Rarity
	}
	if update.ParentIDs != nil {
		data.ParentIDs = update.ParentIDs
	}
}

// handleCardAdded refreshes nothing structural; the full card arrives on
// the next load. It only logs, matching the relay's broadcast contract.
func (c *Controller) handleCardAdded(data json.RawMessage) {
	var card models.Card
	if err := json.Unmarshal(data, &card); err != nil {
		return
	}
	logging.Debug().Str("card_id", card.ID).Msg("card added elsewhere")
}

// handleNewCardReady applies an asynchronous fusion result: one new node
// at a randomized spot in the fusion band, one edge per resolvable parent,
// and a ledger entry. The notice banner auto-clears after five seconds.
func (c *Controller) handleNewCardReady(data json.RawMessage) {
	var event models.NewCardReady
	if err := json.Unmarshal(data, &event); err != nil {
		logging.Warn().Err(err).Msg("malformed new-card-ready event")
		return
	}
	card := event.Card()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	id := card.ID
	if !models.IsServerID(id) {
		id = identity.New("fused")
	}
	id = identity.EnsureUnique(id, c.graph.Nodes)

	node := models.WorkspaceNode{
		ID: id,
		Position: models.Position{
			X: fusionBandX + c.randFloat()*fusionBandWidth,
			Y: fusionBandY + c.randFloat()*fusionBandHeight,
		},
		Data: models.NodeData{
			Label:       card.Name,
			ImageURL:    card.DisplayImage(),
			Description: card.Description,
			Power:       card.Power,
			Rarity:      card.DisplayRarity(),
			ParentIDs:   card.ParentIDs,
		},
	}
	c.graph.Nodes = append(c.graph.Nodes, node)

	for _, parent := range card.ParentIDs {
		if !c.graph.hasNode(parent) {
			continue
		}
		eid := edgeID(parent, id, originFusion)
		if c.graph.hasEdge(eid) {
			continue
		}
		c.graph.Edges = append(c.graph.Edges, models.WorkspaceEdge{
			ID:     eid,
			Source: parent,
			Target: id,
			Kind:   models.EdgeKindParent,
		})
	}

	entry := models.FusedCard{
		Card:       card,
		ParentIDs:  card.ParentIDs,
		ReceivedAt: time.Now(),
	}
	entry.Card.ID = id
	c.ledger = append(c.ledger, entry)
	c.persistLocked()
	metrics.WorkspaceFusionsReceived.Inc()

	c.notice = &entry
	if c.stopNotice != nil {
		c.stopNotice()
	}
	c.stopNotice = c.timer(noticeClearDelay, func() {
		c.mu.Lock()
		c.notice = nil
		c.mu.Unlock()
	})

	logging.Info().
		Str("card_id", id).
		Str("name", card.Name).
		Int("parents", len(card.ParentIDs)).
		Msg("fusion result received")
}

// setStatus publishes a transient status message with auto-dismiss.
func (c *Controller) setStatus(kind StatusKind, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStatusLocked(kind, msg)
}

func (c *Controller) setStatusLocked(kind StatusKind, msg string) {
	c.status = &Status{Kind: kind, Message: msg}
	if c.stopStatus != nil {
		c.stopStatus()
	}
	c.stopStatus = c.timer(statusClearDelay, func() {
		c.mu.Lock()
		c.status = nil
		c.mu.Unlock()
	})
}

// State returns the controller lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Graph returns a snapshot of the current graph.
func (c *Controller) Graph() Graph {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.Clone()
}

// Ledger returns a snapshot of the fused-card ledger.
func (c *Controller) Ledger() []models.FusedCard {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.FusedCard(nil), c.ledger...)
}

// Status returns the current transient message, if any.
func (c *Controller) Status() *Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == nil {
		return nil
	}
	s := *c.status
	return &s
}

// Notice returns the current "new card ready" banner, if any.
func (c *Controller) Notice() *models.FusedCard {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.notice == nil {
		return nil
	}
	n := *c.notice
	return &n
}

// Connected reports whether the realtime channel is up. Channel loss never
// changes the graph state, only this flag.
func (c *Controller) Connected() bool {
	if c.channel == nil {
		return false
	}
	return c.channel.State() == realtime.StateConnected
}

// Close unsubscribes the event handlers and releases the realtime session.
// Late load results and events arriving after Close are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.stopStatus != nil {
		c.stopStatus()
	}
	if c.stopNotice != nil {
		c.stopNotice()
	}
	c.mu.Unlock()

	if c.session != nil {
		for _, sub := range c.subs {
			c.session.Off(sub.event, sub.id)
		}
		c.session.Close()
	}
}
