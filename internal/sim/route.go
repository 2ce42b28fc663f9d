package sim

import (
	"slices"

	"github.com/wgsim/controller/pkg/network"
)

// neighbours returns the sorted neighbours of id. Callers hold e.mu.
func (e *Engine) neighbours(id network.NodeID) []network.NodeID {
	out := make([]network.NodeID, 0, len(e.adj[id]))
	for peer := range e.adj[id] {
		out = append(out, peer)
	}
	slices.Sort(out)
	return out
}

// route returns the shortest source route from src to the first node that
// satisfies want. Every intermediate hop is a relay. Ties break on the lower
// id so routes are deterministic. Callers hold e.mu.
func (e *Engine) route(src network.NodeID, want func(network.NodeID) bool) ([]network.NodeID, bool) {
	parent := map[network.NodeID]network.NodeID{src: src}
	queue := []network.NodeID{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range e.neighbours(cur) {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = cur
			if want(next) {
				return e.unwind(parent, src, next), true
			}
			if e.category[next] == network.Relay {
				queue = append(queue, next)
			}
		}
	}
	return nil, false
}

func (e *Engine) unwind(parent map[network.NodeID]network.NodeID, src, dst network.NodeID) []network.NodeID {
	var hops []network.NodeID
	for cur := dst; cur != src; cur = parent[cur] {
		hops = append(hops, cur)
	}
	hops = append(hops, src)
	slices.Reverse(hops)
	return hops
}

// peerOf reports whether id is a message peer of src: responders for an
// originator and originators for a responder.
func (e *Engine) peerOf(src network.NodeID) func(network.NodeID) bool {
	want := network.Responder
	if e.category[src] == network.Responder {
		want = network.Originator
	}
	return func(id network.NodeID) bool {
		return e.category[id] == want
	}
}

func (e *Engine) is(id network.NodeID) func(network.NodeID) bool {
	return func(other network.NodeID) bool { return other == id }
}

func reversed(hops []network.NodeID) []network.NodeID {
	out := slices.Clone(hops)
	slices.Reverse(out)
	return out
}
