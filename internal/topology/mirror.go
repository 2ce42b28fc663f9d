// Package topology keeps a visualization-facing copy of the network graph.
//
// The mirror is eventually consistent with the engine: Rebuild replaces it
// wholesale, Reconcile patches it from a fresh snapshot. Every node gets a
// graph index at Rebuild that never changes until the next Rebuild, so the
// renderer can key layout state on it.
package topology

import (
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/wgsim/controller/pkg/network"
	"gonum.org/v1/gonum/graph/simple"
)

// Node is a mirrored node with its stable graph index.
type Node struct {
	ID       network.NodeID
	Category network.Category
	Index    int64
}

// Mirror is safe for concurrent use.
type Mirror struct {
	mu    sync.RWMutex
	g     *simple.UndirectedGraph
	index map[network.NodeID]int64
	nodes map[int64]Node
}

// New returns an empty mirror.
func New() *Mirror {
	return &Mirror{
		g:     simple.NewUndirectedGraph(),
		index: make(map[network.NodeID]int64),
		nodes: make(map[int64]Node),
	}
}

// FromSnapshot returns a mirror rebuilt from snap.
func FromSnapshot(snap network.Snapshot) *Mirror {
	m := New()
	m.Rebuild(snap)
	return m
}

// Rebuild discards the mirror and reconstructs it from snap. Relays are
// indexed first, then originators, then responders.
func (m *Mirror) Rebuild(snap network.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.g = simple.NewUndirectedGraph()
	m.index = make(map[network.NodeID]int64)
	m.nodes = make(map[int64]Node)

	var next int64
	for _, c := range network.Categories {
		for _, id := range snap.IDs(c) {
			if _, ok := m.index[id]; ok {
				continue
			}
			m.g.AddNode(simple.Node(next))
			m.index[id] = next
			m.nodes[next] = Node{ID: id, Category: c, Index: next}
			next++
		}
	}
	for _, e := range snap.Edges {
		m.addEdge(e)
	}
	log.WithField("caller", "topology").Debugf("Mirror rebuilt: %d nodes, %d edges", len(m.nodes), m.g.Edges().Len())
}

// Reconcile removes relays the engine no longer lists, with their edges, and
// adds snapshot edges the mirror lacks. Outside node removal edges are never
// deleted. It reports whether anything changed; a second call with the same
// snapshot always reports false.
func (m *Mirror) Reconcile(snap network.Snapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := make(map[network.NodeID]struct{}, len(snap.Relays))
	for _, id := range snap.Relays {
		live[id] = struct{}{}
	}

	changed := false
	for idx, n := range m.nodes {
		if n.Category != network.Relay {
			continue
		}
		if _, ok := live[n.ID]; ok {
			continue
		}
		m.g.RemoveNode(idx)
		delete(m.nodes, idx)
		delete(m.index, n.ID)
		changed = true
		log.WithField("caller", "topology").Debugf("Relay #%d removed from mirror", n.ID)
	}

	for _, e := range snap.Edges {
		if m.addEdge(e) {
			changed = true
		}
	}
	return changed
}

// addEdge adds e when both endpoints are mirrored and the edge is new.
// Callers hold m.mu.
func (m *Mirror) addEdge(e network.Edge) bool {
	a, okA := m.index[e.A]
	b, okB := m.index[e.B]
	if !okA || !okB || a == b {
		return false
	}
	if m.g.HasEdgeBetween(a, b) {
		return false
	}
	m.g.SetEdge(m.g.NewEdge(m.g.Node(a), m.g.Node(b)))
	return true
}

// Nodes returns the mirrored nodes ordered by index.
func (m *Mirror) Nodes() []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b Node) int {
		switch {
		case a.Index < b.Index:
			return -1
		case a.Index > b.Index:
			return 1
		}
		return 0
	})
	return out
}

// Edges returns the mirrored edges, normalized and sorted.
func (m *Mirror) Edges() []network.Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []network.Edge
	it := m.g.Edges()
	for it.Next() {
		e := it.Edge()
		a := m.nodes[e.From().ID()].ID
		b := m.nodes[e.To().ID()].ID
		out = append(out, network.Edge{A: a, B: b}.Normalize())
	}
	slices.SortFunc(out, func(x, y network.Edge) int {
		if x.A != y.A {
			return int(x.A) - int(y.A)
		}
		return int(x.B) - int(y.B)
	})
	return out
}

// Index returns the stable graph index of id.
func (m *Mirror) Index(id network.NodeID) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.index[id]
	return idx, ok
}

// HasEdge reports whether a and b are linked in the mirror.
func (m *Mirror) HasEdge(a, b network.NodeID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	x, okA := m.index[a]
	y, okB := m.index[b]
	if !okA || !okB {
		return false
	}
	return m.g.HasEdgeBetween(x, y)
}

// Neighbors returns the sorted ids linked to id.
func (m *Mirror) Neighbors(id network.NodeID) []network.NodeID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.index[id]
	if !ok {
		return nil
	}
	var out []network.NodeID
	it := m.g.From(idx)
	for it.Next() {
		out = append(out, m.nodes[it.Node().ID()].ID)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of mirrored nodes.
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}
