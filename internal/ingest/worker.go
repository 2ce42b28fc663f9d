// Package ingest drains the engine's per-category event streams into a hub.
//
// One worker runs per category. All three share the same loop and the same
// packet-kind counter table; they differ only by the Role they are given.
package ingest

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/wgsim/controller/internal/hub"
	"github.com/wgsim/controller/pkg/network"
)

// counters selects the per-kind counter array an event direction touches.
type counters func(*hub.Stats) *[network.PacketKinds]uint64

func forwarded(s *hub.Stats) *[network.PacketKinds]uint64 { return &s.Forwarded }
func sent(s *hub.Stats) *[network.PacketKinds]uint64      { return &s.Sent }
func received(s *hub.Stats) *[network.PacketKinds]uint64  { return &s.Received }

// Role describes one category's worker.
type Role struct {
	Category network.Category

	// Peer names the opposite end of a message in assembled and fragmented
	// log lines ("server" for originators, "client" for responders).
	Peer string

	// Outgoing counts PacketForwarded (relays) or PacketSent (others).
	Outgoing counters
	// Incoming counts PacketReceived; nil for relays.
	Incoming counters
}

// Roles is indexed by network.Category.
var Roles = [...]Role{
	network.Relay:      {Category: network.Relay, Outgoing: forwarded},
	network.Originator: {Category: network.Originator, Peer: "server", Outgoing: sent, Incoming: received},
	network.Responder:  {Category: network.Responder, Peer: "client", Outgoing: sent, Incoming: received},
}

// RoleFor returns the role of category c.
func RoleFor(c network.Category) Role {
	return Roles[c]
}

// Run drains events into h until cancel fires. Cancellation is checked
// before every wait and again after every receive, so once it is observed no
// further event is applied. A closed event stream parks the worker on cancel.
func Run(role Role, events <-chan network.Event, cancel <-chan struct{}, h *hub.Hub) {
	logger := log.WithField("caller", "ingest").WithField("role", role.Category.String())
	logger.Debug("Worker started")
	defer logger.Debug("Worker stopped")

	for {
		select {
		case <-cancel:
			return
		default:
		}

		select {
		case <-cancel:
			return
		case ev, ok := <-events:
			if !ok {
				logger.Warn("Event stream closed, waiting for cancellation")
				events = nil
				continue
			}
			select {
			case <-cancel:
				return
			default:
			}
			role.handle(h, ev)
		}
	}
}

// Handle is a running worker paired with its private cancellation channel.
type Handle struct {
	role   Role
	cancel chan struct{}
	done   chan struct{}
}

// Spawn starts a worker for role on its own goroutine.
func Spawn(role Role, events <-chan network.Event, h *hub.Hub) *Handle {
	w := &Handle{
		role:   role,
		cancel: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(w.done)
		Run(role, events, w.cancel, h)
	}()
	return w
}

// Role returns the role the worker was spawned with.
func (w *Handle) Role() Role {
	return w.role
}

// Cancel asks the worker to stop. It never blocks and may be called more
// than once.
func (w *Handle) Cancel() {
	select {
	case w.cancel <- struct{}{}:
	default:
	}
}

// Done is closed once the worker goroutine has returned.
func (w *Handle) Done() <-chan struct{} {
	return w.done
}

// Join waits for the worker to exit or for ctx to end. A worker that has
// already exited joins even when ctx is done.
func (w *Handle) Join(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	default:
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
