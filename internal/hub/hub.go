// Package hub is the shared state of one pipeline generation: bounded
// per-node logs, per-node statistics and the pending content inbox.
//
// A Hub is guarded by a single mutex. Readers get owned copies, never
// references into guarded state. Every operation that names a node the hub
// was not built with panics with ErrUnknownNode: that only happens when a
// worker writes into a hub it does not belong to, and silently accepting it
// would corrupt state.
package hub

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/wgsim/controller/pkg/network"
	"github.com/wgsim/controller/pkg/tracer"
)

var (
	// ErrUnknownNode is the panic value (wrapped) for operations on a node id
	// absent from the hub.
	ErrUnknownNode = errors.New("hub: unknown node")
	// ErrDuplicateNode is returned by New when an id appears in more than one
	// category.
	ErrDuplicateNode = errors.New("hub: node id listed twice")
)

// Repainter is notified after every externally visible mutation.
type Repainter interface {
	RequestRepaint()
}

// RepaintFunc adapts a function to Repainter.
type RepaintFunc func()

// RequestRepaint calls f.
func (f RepaintFunc) RequestRepaint() { f() }

// Options configures a Hub.
type Options struct {
	LogCapacity int
	Repainter   Repainter
	Tracer      *tracer.Tracer
}

type node struct {
	category network.Category
	logs     *ring
	stats    Stats
}

// Hub is the single source of truth read by the rendering layer and written
// by the ingest workers.
type Hub struct {
	mu    sync.Mutex
	nodes map[network.NodeID]*node
	inbox []ContentItem

	ctrl    network.Controller
	repaint Repainter
	tracer  *tracer.Tracer
}

// Mutation is applied to one node inside a single critical section. Any
// field may be left empty.
type Mutation struct {
	Entry   *LogEntry
	Update  func(*Stats)
	Content *ContentItem
}

// New builds a hub for the node set in snap with empty logs and zeroed
// statistics. ctrl is the engine's control handle.
func New(ctrl network.Controller, snap network.Snapshot, opts Options) (*Hub, error) {
	capacity := opts.LogCapacity
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	h := &Hub{
		nodes:   make(map[network.NodeID]*node),
		ctrl:    ctrl,
		repaint: opts.Repainter,
		tracer:  opts.Tracer,
	}
	for _, c := range network.Categories {
		for _, id := range snap.IDs(c) {
			if existing, ok := h.nodes[id]; ok {
				return nil, fmt.Errorf("%w: %d is both %s and %s", ErrDuplicateNode, id, existing.category, c)
			}
			h.nodes[id] = &node{category: c, logs: newRing(capacity)}
		}
	}
	log.WithField("caller", "hub").Debugf("Hub created with %d nodes, log capacity %d", len(h.nodes), capacity)
	return h, nil
}

// Controller returns the engine control handle the hub wraps. The handle is
// safe for concurrent use on its own; the hub does not serialize calls.
func (h *Hub) Controller() network.Controller {
	return h.ctrl
}

// lookup returns the node or panics. Callers hold h.mu.
func (h *Hub) lookup(id network.NodeID) *node {
	n, ok := h.nodes[id]
	if !ok {
		panic(fmt.Errorf("%w: %d", ErrUnknownNode, id))
	}
	return n
}

// Apply performs m on node id and then signals a repaint.
func (h *Hub) Apply(id network.NodeID, m Mutation) {
	category := h.apply(id, m)
	if m.Entry != nil {
		h.tracer.Trace(id, category, m.Entry.Text, m.Entry.Tag.String())
	}
	h.requestRepaint()
}

func (h *Hub) apply(id network.NodeID, m Mutation) network.Category {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.lookup(id)
	if m.Entry != nil {
		n.logs.push(*m.Entry)
	}
	if m.Update != nil {
		m.Update(&n.stats)
	}
	if m.Content != nil {
		h.inbox = append(h.inbox, *m.Content)
	}
	return n.category
}

// AddLog appends a log line to node id, evicting the oldest entry when the
// log is full.
func (h *Hub) AddLog(id network.NodeID, text string, tag Tag) {
	h.Apply(id, Mutation{Entry: &LogEntry{Text: text, Tag: tag}})
}

// Logs returns a copy of node id's log, oldest first.
func (h *Hub) Logs(id network.NodeID) []LogEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lookup(id).logs.snapshot()
}

// ClearLog empties node id's log.
func (h *Hub) ClearLog(id network.NodeID) {
	h.clearLog(id)
	h.requestRepaint()
}

func (h *Hub) clearLog(id network.NodeID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lookup(id).logs.clear()
}

// ClearAllLogs empties every log.
func (h *Hub) ClearAllLogs() {
	h.mu.Lock()
	for _, n := range h.nodes {
		n.logs.clear()
	}
	h.mu.Unlock()
	h.requestRepaint()
}

// Stats returns a copy of node id's counters.
func (h *Hub) Stats(id network.NodeID) Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lookup(id).stats
}

// Category reports the category node id was registered with.
func (h *Hub) Category(id network.NodeID) (network.Category, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.nodes[id]
	if !ok {
		return 0, false
	}
	return n.category, true
}

// IDs returns the sorted ids of a category.
func (h *Hub) IDs(c network.Category) []network.NodeID {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []network.NodeID
	for id, n := range h.nodes {
		if n.category == c {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// PushContent queues a content item for the rendering layer.
func (h *Hub) PushContent(item ContentItem) {
	h.mu.Lock()
	h.inbox = append(h.inbox, item)
	h.mu.Unlock()
	h.requestRepaint()
}

// PopContent removes and returns the oldest pending content item.
func (h *Hub) PopContent() (ContentItem, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.inbox) == 0 {
		return ContentItem{}, false
	}
	item := h.inbox[0]
	h.inbox[0] = ContentItem{}
	h.inbox = h.inbox[1:]
	return item, true
}

// PendingContent returns the number of queued content items.
func (h *Hub) PendingContent() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.inbox)
}

func (h *Hub) requestRepaint() {
	if h.repaint != nil {
		h.repaint.RequestRepaint()
	}
}
