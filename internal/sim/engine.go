// Package sim is an in-process loopback network engine. It keeps the
// adjacency of a TOML topology, answers the controller's control calls and
// synthesizes the event streams a real network would produce, so the whole
// pipeline can run without external processes.
package sim

import (
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/wgsim/controller/pkg/network"
)

// DefaultEventBuffer is the capacity of each event stream.
const DefaultEventBuffer = 1024

// Options tunes an Engine.
type Options struct {
	// Seed makes drop decisions reproducible.
	Seed uint64
	// EventBuffer is the per-stream channel capacity.
	EventBuffer int
}

// Engine implements network.Engine. It is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	category map[network.NodeID]network.Category
	adj      map[network.NodeID]map[network.NodeID]struct{}
	pdr      map[network.NodeID]float32
	servers  map[network.NodeID]ServerConfig
	chat     map[network.NodeID]map[network.NodeID]struct{} // server -> registered clients
	rng      *rand.Rand
	session  uint64
	flood    uint64

	events [len(network.Categories)]chan network.Event
}

// New builds an engine from a validated topology.
func New(t *Topology, opts Options) *Engine {
	buf := opts.EventBuffer
	if buf <= 0 {
		buf = DefaultEventBuffer
	}
	e := &Engine{
		category: make(map[network.NodeID]network.Category),
		adj:      make(map[network.NodeID]map[network.NodeID]struct{}),
		pdr:      make(map[network.NodeID]float32),
		servers:  make(map[network.NodeID]ServerConfig),
		chat:     make(map[network.NodeID]map[network.NodeID]struct{}),
		rng:      rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
	for i := range e.events {
		e.events[i] = make(chan network.Event, buf)
	}

	for _, d := range t.Drones {
		e.addNode(d.ID, network.Relay)
		e.pdr[d.ID] = d.PDR
	}
	for _, c := range t.Clients {
		e.addNode(c.ID, network.Originator)
	}
	for _, s := range t.Servers {
		e.addNode(s.ID, network.Responder)
		e.servers[s.ID] = s
		e.chat[s.ID] = make(map[network.NodeID]struct{})
	}
	for _, d := range t.Drones {
		for _, peer := range d.ConnectedNodeIDs {
			e.link(d.ID, peer)
		}
	}
	for _, c := range t.Clients {
		for _, peer := range c.ConnectedDroneIDs {
			e.link(c.ID, peer)
		}
	}
	for _, s := range t.Servers {
		for _, peer := range s.ConnectedDroneIDs {
			e.link(s.ID, peer)
		}
	}
	log.WithField("caller", "sim").Infof("Loopback engine started: %d drones, %d clients, %d servers",
		len(t.Drones), len(t.Clients), len(t.Servers))
	return e
}

func (e *Engine) addNode(id network.NodeID, c network.Category) {
	e.category[id] = c
	e.adj[id] = make(map[network.NodeID]struct{})
}

func (e *Engine) link(a, b network.NodeID) {
	e.adj[a][b] = struct{}{}
	e.adj[b][a] = struct{}{}
}

// Events returns the event stream of category c.
func (e *Engine) Events(c network.Category) <-chan network.Event {
	return e.events[c]
}

// emit never blocks; a full stream drops the event.
func (e *Engine) emit(ev network.Event, c network.Category) {
	select {
	case e.events[c] <- ev:
	default:
		log.WithField("caller", "sim").WithField("event", ev.Kind.String()).Warnf("%s event stream full, event dropped", c)
	}
}

// Topology returns a sorted snapshot of the current network.
func (e *Engine) Topology() network.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	var snap network.Snapshot
	for id, c := range e.category {
		switch c {
		case network.Relay:
			snap.Relays = append(snap.Relays, id)
		case network.Originator:
			snap.Originators = append(snap.Originators, id)
		case network.Responder:
			snap.Responders = append(snap.Responders, id)
		}
		for peer := range e.adj[id] {
			if id < peer {
				snap.Edges = append(snap.Edges, network.Edge{A: id, B: peer})
			}
		}
	}
	slices.Sort(snap.Relays)
	slices.Sort(snap.Originators)
	slices.Sort(snap.Responders)
	slices.SortFunc(snap.Edges, func(x, y network.Edge) int {
		if x.A != y.A {
			return int(x.A) - int(y.A)
		}
		return int(x.B) - int(y.B)
	})
	return snap
}

// IDs returns the sorted ids of category c.
func (e *Engine) IDs(c network.Category) []network.NodeID {
	return e.Topology().IDs(c)
}

// lookup returns the category of id. Callers hold e.mu.
func (e *Engine) lookup(id network.NodeID) (network.Category, error) {
	c, ok := e.category[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", network.ErrNodeNotFound, id)
	}
	return c, nil
}

// AddEdge links a and b. At least one endpoint must be a drone.
func (e *Engine) AddEdge(a, b network.NodeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ca, err := e.lookup(a)
	if err != nil {
		return err
	}
	cb, err := e.lookup(b)
	if err != nil {
		return err
	}
	if a == b {
		return fmt.Errorf("%w: cannot link node %d to itself", network.ErrCommandFailed, a)
	}
	if ca != network.Relay && cb != network.Relay {
		return fmt.Errorf("%w: %s %d and %s %d cannot be linked directly", network.ErrCommandFailed, ca, a, cb, b)
	}
	e.link(a, b)
	return nil
}

// SetDropRate sets a drone's packet drop rate.
func (e *Engine) SetDropRate(id network.NodeID, rate float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.lookup(id)
	if err != nil {
		return err
	}
	if c != network.Relay {
		return fmt.Errorf("%w: %s %d has no drop rate", network.ErrCommandFailed, c, id)
	}
	if rate < 0 || rate > 1 {
		return fmt.Errorf("%w: drop rate %v out of range", network.ErrCommandFailed, rate)
	}
	e.pdr[id] = rate
	return nil
}

// DropRate returns a drone's packet drop rate.
func (e *Engine) DropRate(id network.NodeID) (float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.lookup(id)
	if err != nil {
		return 0, err
	}
	if c != network.Relay {
		return 0, fmt.Errorf("%w: %s %d has no drop rate", network.ErrCommandFailed, c, id)
	}
	return e.pdr[id], nil
}

// Crash removes a drone and its links.
func (e *Engine) Crash(id network.NodeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.lookup(id)
	if err != nil {
		return err
	}
	if c != network.Relay {
		return fmt.Errorf("%w: only drones can crash", network.ErrCommandFailed)
	}
	for peer := range e.adj[id] {
		delete(e.adj[peer], id)
	}
	delete(e.adj, id)
	delete(e.category, id)
	delete(e.pdr, id)
	log.WithField("caller", "sim").Infof("Drone %d crashed", id)
	return nil
}

// Shortcut hands p straight to its destination.
func (e *Engine) Shortcut(p network.Packet) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	dest, ok := p.Route.Destination()
	if !ok {
		return fmt.Errorf("%w: packet has no destination", network.ErrCommandFailed)
	}
	c, err := e.lookup(dest)
	if err != nil {
		return err
	}
	if c == network.Relay {
		return fmt.Errorf("%w: cannot shortcut to drone %d", network.ErrCommandFailed, dest)
	}
	e.emit(network.Received(p, dest), c)
	return nil
}

// drops reports whether relay drops a fragment. Callers hold e.mu.
func (e *Engine) drops(relay network.NodeID) bool {
	rate := e.pdr[relay]
	return rate > 0 && e.rng.Float32() < rate
}

// deliver walks p along its route, emitting one event per hop. Fragments
// may be dropped by a relay, which then sends a Nack back towards the
// source. It reports whether p reached its destination. Callers hold e.mu.
func (e *Engine) deliver(p network.Packet) bool {
	hops := p.Route.Hops
	at := func(i int) network.Packet {
		q := p
		q.Route = network.RoutingHeader{Hops: hops, HopIndex: i}
		return q
	}

	e.emit(network.Sent(at(1)), e.category[hops[0]])
	for i := 1; i < len(hops)-1; i++ {
		relay := hops[i]
		if p.Kind == network.Fragment && e.drops(relay) {
			e.emit(network.Dropped(at(i)), network.Relay)
			e.deliver(network.Packet{
				Kind:      network.Nack,
				Route:     network.RoutingHeader{Hops: reversed(hops[:i+1])},
				SessionID: p.SessionID,
			})
			return false
		}
		e.emit(network.Forwarded(at(i+1)), network.Relay)
	}
	dest := hops[len(hops)-1]
	e.emit(network.Received(at(len(hops)-1), dest), e.category[dest])
	return true
}

// sendDirect routes a packet of kind from src to its nearest peer. Acks,
// Nacks and flood responses that cannot be routed are handed to the first
// neighbouring drone as a controller shortcut. Callers hold e.mu.
func (e *Engine) sendDirect(src network.NodeID, kind network.PacketKind) error {
	c, err := e.lookup(src)
	if err != nil {
		return err
	}
	if c == network.Relay {
		return fmt.Errorf("%w: drones do not originate %s packets", network.ErrCommandFailed, kind)
	}
	e.session++
	if hops, ok := e.route(src, e.peerOf(src)); ok {
		e.deliver(network.Packet{Kind: kind, Route: network.RoutingHeader{Hops: hops}, SessionID: e.session})
		return nil
	}
	if kind == network.Fragment {
		return fmt.Errorf("%w: no route from %s %d", network.ErrCommandFailed, c, src)
	}
	return e.shortcut(src, kind)
}

func (e *Engine) shortcut(src network.NodeID, kind network.PacketKind) error {
	var relay, dest network.NodeID
	found := false
	for _, peer := range e.neighbours(src) {
		if e.category[peer] == network.Relay {
			relay, found = peer, true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %d has no drone neighbour", network.ErrCommandFailed, src)
	}
	want := e.peerOf(src)
	ids := make([]network.NodeID, 0, len(e.category))
	for id := range e.category {
		if want(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: no destination for %d", network.ErrCommandFailed, src)
	}
	slices.Sort(ids)
	dest = ids[0]

	p := network.Packet{Kind: kind, Route: network.RoutingHeader{Hops: []network.NodeID{src, relay, dest}, HopIndex: 1}, SessionID: e.session}
	e.emit(network.Sent(p), e.category[src])
	e.emit(network.Shortcut(p), network.Relay)
	return nil
}

// SendFragment makes a client or server send a fragment to its nearest peer.
func (e *Engine) SendFragment(id network.NodeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sendDirect(id, network.Fragment)
}

// SendAck makes a client or server send an ack to its nearest peer.
func (e *Engine) SendAck(id network.NodeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sendDirect(id, network.Ack)
}

// SendFlood starts a flood from a client or server. Every drone reached
// forwards the request; every client or server reached answers with a flood
// response routed back along the path trace.
func (e *Engine) SendFlood(id network.NodeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.lookup(id)
	if err != nil {
		return err
	}
	if c == network.Relay {
		return fmt.Errorf("%w: drones do not start floods", network.ErrCommandFailed)
	}
	e.flood++
	e.session++

	origin := []network.TraceHop{{ID: id, Category: c}}
	e.emit(network.Sent(network.Packet{Kind: network.FloodRequest, FloodID: e.flood, SessionID: e.session, PathTrace: origin}), c)

	traces := map[network.NodeID][]network.TraceHop{id: origin}
	queue := []network.NodeID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range e.neighbours(cur) {
			if _, seen := traces[next]; seen {
				continue
			}
			trace := append(slices.Clone(traces[cur]), network.TraceHop{ID: next, Category: e.category[next]})
			traces[next] = trace
			if e.category[next] == network.Relay {
				e.emit(network.Forwarded(network.Packet{Kind: network.FloodRequest, FloodID: e.flood, SessionID: e.session, PathTrace: trace}), network.Relay)
				queue = append(queue, next)
				continue
			}
			hops := make([]network.NodeID, len(trace))
			for i, hop := range trace {
				hops[i] = hop.ID
			}
			e.deliver(network.Packet{
				Kind:      network.FloodResponse,
				Route:     network.RoutingHeader{Hops: reversed(hops)},
				SessionID: e.session,
				FloodID:   e.flood,
				PathTrace: trace,
			})
		}
	}
	return nil
}

// ClientSendMessage sends body from client id to server dest. The request is
// fragmented, delivered and assembled; the server's response travels back
// the same way. A dropped fragment loses the message.
func (e *Engine) ClientSendMessage(id, dest network.NodeID, body network.ClientBody) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, err := e.lookup(id); err != nil {
		return err
	} else if c != network.Originator {
		return fmt.Errorf("%w: %s %d is not a client", network.ErrCommandFailed, c, id)
	}
	if c, err := e.lookup(dest); err != nil {
		return err
	} else if c != network.Responder {
		return fmt.Errorf("%w: %s %d is not a server", network.ErrCommandFailed, c, dest)
	}
	hops, ok := e.route(id, e.is(dest))
	if !ok {
		return fmt.Errorf("%w: no route from client %d to server %d", network.ErrCommandFailed, id, dest)
	}

	e.session++
	e.emit(network.Fragmented(body, id, dest), network.Originator)
	if !e.exchange(hops) {
		return nil
	}
	e.emit(network.Assembled(body, id, dest), network.Responder)

	resp := e.respond(dest, id, body)
	e.emit(network.Fragmented(resp, dest, id), network.Responder)
	if !e.exchange(reversed(hops)) {
		return nil
	}
	e.emit(network.Assembled(resp, dest, id), network.Originator)
	return nil
}

// exchange delivers one fragment along hops and acks it on success.
func (e *Engine) exchange(hops []network.NodeID) bool {
	if !e.deliver(network.Packet{Kind: network.Fragment, Route: network.RoutingHeader{Hops: hops}, SessionID: e.session}) {
		return false
	}
	e.deliver(network.Packet{Kind: network.Ack, Route: network.RoutingHeader{Hops: reversed(hops)}, SessionID: e.session})
	return true
}

// respond builds server's answer to req. Callers hold e.mu.
func (e *Engine) respond(server, client network.NodeID, req network.ClientBody) network.ServerBody {
	cfg := e.servers[server]
	communication := cfg.Kind == "communication"
	unsupported := network.ServerBody{Response: network.ErrUnsupportedRequestType}

	switch req.Request {
	case network.ReqServerType:
		kind := "ContentServer"
		if communication {
			kind = "CommunicationServer"
		}
		return network.ServerBody{Response: network.RespServerType, ServerType: kind}
	case network.ReqFilesList:
		if communication {
			return unsupported
		}
		return network.ServerBody{Response: network.RespFilesList, Files: fileNames(cfg)}
	case network.ReqFile:
		if communication {
			return unsupported
		}
		data, ok := readFile(cfg, req.File)
		if !ok {
			return network.ServerBody{Response: network.ErrFileNotFound}
		}
		return network.ServerBody{Response: network.RespFile, File: data}
	case network.ReqRegistrationToChat:
		if !communication {
			return unsupported
		}
		e.chat[server][client] = struct{}{}
		return network.ServerBody{Response: network.RespClientList, Clients: e.registered(server)}
	case network.ReqClientList:
		if !communication {
			return unsupported
		}
		return network.ServerBody{Response: network.RespClientList, Clients: e.registered(server)}
	case network.MessageSend:
		if !communication {
			return unsupported
		}
		if _, ok := e.chat[server][req.Chat.To]; !ok {
			return network.ServerBody{Response: network.ErrWrongClientID}
		}
		return network.ServerBody{Response: network.MessageReceive, Chat: req.Chat}
	default:
		return unsupported
	}
}

func (e *Engine) registered(server network.NodeID) []network.NodeID {
	out := make([]network.NodeID, 0, len(e.chat[server]))
	for id := range e.chat[server] {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func fileNames(cfg ServerConfig) []string {
	names := make([]string, 0, len(cfg.Files)+len(cfg.FilePaths))
	for name := range cfg.Files {
		names = append(names, name)
	}
	for name := range cfg.FilePaths {
		if _, dup := cfg.Files[name]; !dup {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func readFile(cfg ServerConfig, name string) ([]byte, bool) {
	if content, ok := cfg.Files[name]; ok {
		return []byte(content), true
	}
	path, ok := cfg.FilePaths[name]
	if !ok {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.WithField("caller", "sim").WithError(err).Warnf("Failed to read served file %s", path)
		return nil, false
	}
	return data, true
}

var _ network.Engine = (*Engine)(nil)
