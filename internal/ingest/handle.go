package ingest

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/wgsim/controller/internal/hub"
	"github.com/wgsim/controller/pkg/network"
)

// kindTags colours packet log lines. Flood kinds never reach an outgoing
// log line; when received they are muted.
var kindTags = [network.PacketKinds]hub.Tag{
	network.Fragment:      hub.TagNeutral,
	network.Ack:           hub.TagPositive,
	network.Nack:          hub.TagNegative,
	network.FloodRequest:  hub.TagMuted,
	network.FloodResponse: hub.TagMuted,
}

func tagFor(k network.PacketKind) hub.Tag {
	if k < 0 || int(k) >= network.PacketKinds {
		return hub.TagNeutral
	}
	return kindTags[k]
}

func isFlood(k network.PacketKind) bool {
	return k == network.FloodRequest || k == network.FloodResponse
}

func increment(c counters, k network.PacketKind) func(*hub.Stats) {
	return func(s *hub.Stats) {
		c(s)[k]++
	}
}

func (r Role) handle(h *hub.Hub, ev network.Event) {
	switch ev.Kind {
	case network.PacketForwarded, network.PacketSent:
		r.outgoing(h, ev.Packet)
	case network.PacketDropped:
		r.dropped(h, ev.Packet)
	case network.ControllerShortcut:
		r.shortcut(h, ev.Packet)
	case network.PacketReceived:
		r.received(h, ev.Packet, ev.Receiver)
	case network.MessageAssembled:
		r.assembled(h, ev.Body, ev.From, ev.To)
	case network.MessageFragmented:
		r.fragmented(h, ev.Body, ev.From, ev.To)
	default:
		r.ignore(ev, "unknown event kind")
	}
}

func (r Role) ignore(ev network.Event, reason string) {
	log.WithField("caller", "ingest").
		WithField("role", r.Category.String()).
		WithField("event", ev.Kind.String()).
		Warnf("Ignoring event: %s", reason)
}

func (r Role) outgoing(h *hub.Hub, p network.Packet) {
	if r.Outgoing == nil || !validKind(p.Kind) {
		r.ignore(network.Event{Kind: network.PacketSent, Packet: p}, "no outgoing counter for packet")
		return
	}
	from, ok := senderOf(p)
	if !ok {
		r.ignore(network.Event{Kind: network.PacketSent, Packet: p}, "sender not derivable from route")
		return
	}
	m := hub.Mutation{Update: increment(r.Outgoing, p.Kind)}
	if !isFlood(p.Kind) {
		if to, ok := p.Route.CurrentHop(); ok {
			m.Entry = &hub.LogEntry{
				Text: fmt.Sprintf("%s sent to node #%d", p.Kind, to),
				Tag:  tagFor(p.Kind),
			}
		}
	}
	h.Apply(from, m)
}

func (r Role) dropped(h *hub.Hub, p network.Packet) {
	relay, ok := p.Route.CurrentHop()
	if r.Category != network.Relay || !ok {
		r.ignore(network.Event{Kind: network.PacketDropped, Packet: p}, "no owning relay")
		return
	}
	text := "Dropped fragment"
	if prev, ok := p.Route.PreviousHop(); ok {
		text = fmt.Sprintf("Dropped fragment sent by node #%d", prev)
	}
	h.Apply(relay, hub.Mutation{
		Entry:  &hub.LogEntry{Text: text, Tag: hub.TagNegative},
		Update: func(s *hub.Stats) { s.FragmentsDropped++ },
	})
}

// shortcut hands the packet to the engine. The control call runs outside the
// hub lock; a failed delivery leaves no trace.
func (r Role) shortcut(h *hub.Hub, p network.Packet) {
	relay, ok := p.Route.CurrentHop()
	if r.Category != network.Relay || !ok || !validKind(p.Kind) {
		r.ignore(network.Event{Kind: network.ControllerShortcut, Packet: p}, "no owning relay")
		return
	}
	ctrl := h.Controller()
	if ctrl == nil {
		return
	}
	if err := ctrl.Shortcut(p); err != nil {
		log.WithField("caller", "ingest").WithError(err).Debug("Shortcut delivery failed")
		return
	}
	dest, _ := p.Route.Destination()
	h.Apply(relay, hub.Mutation{
		Entry: &hub.LogEntry{
			Text: fmt.Sprintf("%s sent to Simulation Controller, recipient: node #%d", p.Kind, dest),
			Tag:  tagFor(p.Kind),
		},
		Update: increment(r.Outgoing, p.Kind),
	})
}

func (r Role) received(h *hub.Hub, p network.Packet, receiver network.NodeID) {
	if r.Incoming == nil || !validKind(p.Kind) {
		r.ignore(network.Event{Kind: network.PacketReceived, Packet: p}, "no incoming counter for packet")
		return
	}
	h.Apply(receiver, hub.Mutation{
		Entry:  &hub.LogEntry{Text: receivedLine(p, receiver), Tag: tagFor(p.Kind)},
		Update: increment(r.Incoming, p.Kind),
	})
}

func (r Role) assembled(h *hub.Hub, body network.Body, from, to network.NodeID) {
	if r.Incoming == nil {
		r.ignore(network.Event{Kind: network.MessageAssembled}, "relays do not assemble messages")
		return
	}
	m := hub.Mutation{
		Entry: &hub.LogEntry{
			Text: fmt.Sprintf("Assembled message from %s #%d\n%s", r.Peer, from, describe(body)),
			Tag:  hub.TagNeutral,
		},
		Update: func(s *hub.Stats) { s.MessagesAssembled++ },
	}
	if sb, ok := body.(network.ServerBody); ok {
		if data, ok := sb.FileContent(); ok {
			item := sniff(data)
			m.Content = &item
		}
	}
	h.Apply(to, m)
}

func (r Role) fragmented(h *hub.Hub, body network.Body, from, to network.NodeID) {
	if r.Incoming == nil {
		r.ignore(network.Event{Kind: network.MessageFragmented}, "relays do not fragment messages")
		return
	}
	h.Apply(from, hub.Mutation{
		Entry: &hub.LogEntry{
			Text: fmt.Sprintf("Fragmented message for %s #%d\n%s", r.Peer, to, describe(body)),
			Tag:  hub.TagNeutral,
		},
		Update: func(s *hub.Stats) { s.MessagesFragmented++ },
	})
}

func validKind(k network.PacketKind) bool {
	return k >= 0 && int(k) < network.PacketKinds
}
