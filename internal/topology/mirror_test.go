package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wgsim/controller/pkg/network"
)

func sampleSnapshot() network.Snapshot {
	return network.Snapshot{
		Relays:      []network.NodeID{3, 5, 7},
		Originators: []network.NodeID{1},
		Responders:  []network.NodeID{9},
		Edges: []network.Edge{
			{A: 1, B: 3},
			{A: 3, B: 5},
			{A: 5, B: 7},
			{A: 7, B: 9},
			{A: 3, B: 7},
		},
	}
}

func TestRebuild(t *testing.T) {
	m := FromSnapshot(sampleSnapshot())

	assert.Equal(t, 5, m.Len())
	idx, ok := m.Index(3)
	require.True(t, ok)
	assert.Equal(t, int64(0), idx)
	idx, ok = m.Index(1)
	require.True(t, ok)
	assert.Equal(t, int64(3), idx)

	assert.Equal(t, []network.Edge{{A: 1, B: 3}, {A: 3, B: 5}, {A: 3, B: 7}, {A: 5, B: 7}, {A: 7, B: 9}}, m.Edges())
	assert.True(t, m.HasEdge(9, 7))
	assert.False(t, m.HasEdge(1, 9))
	assert.Equal(t, []network.NodeID{1, 5, 7}, m.Neighbors(3))
}

func TestRebuild_SkipsDanglingEdgesAndSelfLoops(t *testing.T) {
	snap := sampleSnapshot()
	snap.Edges = append(snap.Edges, network.Edge{A: 5, B: 42}, network.Edge{A: 5, B: 5})

	m := FromSnapshot(snap)

	assert.Len(t, m.Edges(), 5)
	_, ok := m.Index(42)
	assert.False(t, ok)
}

func TestReconcile_RemovesCrashedRelay(t *testing.T) {
	m := FromSnapshot(sampleSnapshot())
	idx9, _ := m.Index(9)

	snap := sampleSnapshot()
	snap.Relays = []network.NodeID{3, 7}
	snap.Edges = []network.Edge{{A: 1, B: 3}, {A: 7, B: 9}, {A: 3, B: 7}}

	assert.True(t, m.Reconcile(snap))

	_, ok := m.Index(5)
	assert.False(t, ok)
	assert.Equal(t, 4, m.Len())
	assert.Equal(t, []network.Edge{{A: 1, B: 3}, {A: 3, B: 7}, {A: 7, B: 9}}, m.Edges())

	// Surviving nodes keep their index.
	after, ok := m.Index(9)
	require.True(t, ok)
	assert.Equal(t, idx9, after)
}

func TestReconcile_AddsMissingEdges(t *testing.T) {
	m := FromSnapshot(sampleSnapshot())

	snap := sampleSnapshot()
	snap.Edges = append(snap.Edges, network.Edge{A: 9, B: 1})

	assert.True(t, m.Reconcile(snap))
	assert.True(t, m.HasEdge(1, 9))
}

func TestReconcile_EdgesAreAddOnly(t *testing.T) {
	m := FromSnapshot(sampleSnapshot())

	snap := sampleSnapshot()
	snap.Edges = nil

	assert.False(t, m.Reconcile(snap))
	assert.Len(t, m.Edges(), 5)
}

func TestReconcile_Idempotent(t *testing.T) {
	m := FromSnapshot(sampleSnapshot())

	snap := sampleSnapshot()
	snap.Relays = []network.NodeID{3, 7}
	snap.Edges = append(snap.Edges, network.Edge{A: 1, B: 9})

	m.Reconcile(snap)
	nodes, edges := m.Nodes(), m.Edges()

	assert.False(t, m.Reconcile(snap))
	assert.Equal(t, nodes, m.Nodes())
	assert.Equal(t, edges, m.Edges())
}

func TestReconcile_NeverLeavesDanglingEdge(t *testing.T) {
	m := FromSnapshot(sampleSnapshot())

	// The engine still reports an edge to a relay it no longer lists.
	snap := sampleSnapshot()
	snap.Relays = []network.NodeID{3, 7}

	m.Reconcile(snap)

	for _, e := range m.Edges() {
		_, okA := m.Index(e.A)
		_, okB := m.Index(e.B)
		assert.True(t, okA && okB, "edge %v has an unmirrored endpoint", e)
	}
	assert.False(t, m.HasEdge(3, 5))
}

func TestReconcile_KeepsNonRelays(t *testing.T) {
	m := FromSnapshot(sampleSnapshot())

	m.Reconcile(network.Snapshot{Relays: []network.NodeID{3, 5, 7}})

	_, ok := m.Index(1)
	assert.True(t, ok)
	_, ok = m.Index(9)
	assert.True(t, ok)
}
