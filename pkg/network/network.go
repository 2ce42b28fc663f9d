// Package network defines the contract between the controller and the
// simulation engine: node identities, packets, typed events and the
// synchronous control calls the engine exposes.
package network

import (
	"errors"
	"fmt"
)

var (
	// ErrNodeNotFound is returned by control calls that reference a node the
	// engine no longer knows about (for example a crashed relay).
	ErrNodeNotFound = errors.New("node not found")
	// ErrCommandFailed is returned when the engine rejects a control call.
	ErrCommandFailed = errors.New("command failed")
)

// NodeID identifies a node. IDs are unique across all categories.
type NodeID uint8

// Category is the kind of a node.
type Category int

const (
	// Relay forwards packets along a route and may drop fragments ("drone").
	Relay Category = iota
	// Originator initiates requests and assembles responses ("client").
	Originator
	// Responder serves requests and assembles responses ("server").
	Responder
)

// Categories lists every category in spawn order.
var Categories = [...]Category{Relay, Originator, Responder}

func (c Category) String() string {
	switch c {
	case Relay:
		return "Drone"
	case Originator:
		return "Client"
	case Responder:
		return "Server"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Letter is the single-letter code used in path traces.
func (c Category) Letter() byte {
	switch c {
	case Relay:
		return 'D'
	case Originator:
		return 'C'
	default:
		return 'S'
	}
}

// Edge is an undirected link between two nodes.
type Edge struct {
	A NodeID
	B NodeID
}

// Normalize orders the endpoints so that A <= B.
func (e Edge) Normalize() Edge {
	if e.B < e.A {
		return Edge{A: e.B, B: e.A}
	}
	return e
}

// Snapshot is a point-in-time copy of the engine's authoritative topology.
type Snapshot struct {
	Relays      []NodeID
	Originators []NodeID
	Responders  []NodeID
	Edges       []Edge
}

// IDs returns the member list for a category.
func (s Snapshot) IDs(c Category) []NodeID {
	switch c {
	case Relay:
		return s.Relays
	case Originator:
		return s.Originators
	default:
		return s.Responders
	}
}

// Controller is the engine's synchronous control API. Implementations must
// be safe for concurrent use; every call reports failure through its error
// and never panics for a node that disappeared.
type Controller interface {
	AddEdge(a, b NodeID) error
	SetDropRate(id NodeID, rate float32) error
	DropRate(id NodeID) (float32, error)
	Crash(id NodeID) error
	Shortcut(p Packet) error
	SendFragment(id NodeID) error
	SendAck(id NodeID) error
	SendFlood(id NodeID) error
	ClientSendMessage(id, dest NodeID, body ClientBody) error
	Topology() Snapshot
	IDs(c Category) []NodeID
}

// Engine is a running simulation: the control API plus one blocking event
// stream per category.
type Engine interface {
	Controller
	Events(c Category) <-chan Event
}

// Source produces the engine a Reset binds to. A source may return the same
// engine every time or build a fresh simulation on each call.
type Source interface {
	Engine() (Engine, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (Engine, error)

// Engine calls f.
func (f SourceFunc) Engine() (Engine, error) { return f() }
