package controller

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/wgsim/controller/internal/hub"
	"github.com/wgsim/controller/pkg/network"
)

// Commands issued from the rendering thread. Each call goes straight to the
// engine and records its outcome on the node it targeted; failures are
// logged with a negative tag and returned, never retried.

// ErrInvalidDropRate is returned by SetDropRate for rates outside [0, 1].
var ErrInvalidDropRate = fmt.Errorf("%w: drop rate must be within [0, 1]", network.ErrCommandFailed)

// current returns the live generation, rejecting ids the hub does not know.
func (s *Supervisor) current(ids ...network.NodeID) (*generation, error) {
	g := s.gen.Load()
	if g == nil {
		return nil, ErrStopped
	}
	for _, id := range ids {
		if _, ok := g.hub.Category(id); !ok {
			return nil, fmt.Errorf("%w: %d", network.ErrNodeNotFound, id)
		}
	}
	return g, nil
}

func commandFailed(cmd string, id network.NodeID, err error) {
	log.WithField("caller", "commands").WithField("node", id).WithError(err).Warnf("%s failed", cmd)
}

// AddEdge links a and b and logs the outcome on both (success) or on a
// (failure).
func (s *Supervisor) AddEdge(a, b network.NodeID) error {
	g, err := s.current(a, b)
	if err != nil {
		return err
	}
	if err := g.engine.AddEdge(a, b); err != nil {
		commandFailed("AddEdge", a, err)
		g.hub.AddLog(a, fmt.Sprintf("Failed to add link with node #%d", b), hub.TagNegative)
		return err
	}
	g.hub.AddLog(a, fmt.Sprintf("Link added with node #%d", b), hub.TagPositive)
	g.hub.AddLog(b, fmt.Sprintf("Link added with node #%d", a), hub.TagPositive)
	s.Reconcile()
	return nil
}

// SetDropRate changes a relay's fragment drop rate.
func (s *Supervisor) SetDropRate(id network.NodeID, rate float32) error {
	g, err := s.current(id)
	if err != nil {
		return err
	}
	if rate < 0 || rate > 1 {
		err = ErrInvalidDropRate
	} else {
		err = g.engine.SetDropRate(id, rate)
	}
	if err != nil {
		commandFailed("SetDropRate", id, err)
		g.hub.AddLog(id, "Failed to change drop rate", hub.TagNegative)
		return err
	}
	g.hub.AddLog(id, fmt.Sprintf("Changed drop rate to %.2f", rate), hub.TagPositive)
	return nil
}

// DropRate reads a relay's current drop rate.
func (s *Supervisor) DropRate(id network.NodeID) (float32, error) {
	g, err := s.current(id)
	if err != nil {
		return 0, err
	}
	return g.engine.DropRate(id)
}

// Crash asks the engine to crash a relay. On success the mirror is
// reconciled right away; the hub keeps the node's history until the next
// reset.
func (s *Supervisor) Crash(id network.NodeID) error {
	g, err := s.current(id)
	if err != nil {
		return err
	}
	if err := g.engine.Crash(id); err != nil {
		commandFailed("Crash", id, err)
		g.hub.AddLog(id, "Failed to crash", hub.TagNegative)
		return err
	}
	g.hub.AddLog(id, "Crashed", hub.TagMuted)
	s.Reconcile()
	return nil
}

// SendFragment, SendAck and SendFlood make a node emit a packet of that kind.
func (s *Supervisor) SendFragment(id network.NodeID) error {
	return s.send(id, network.Fragment, network.Controller.SendFragment)
}

func (s *Supervisor) SendAck(id network.NodeID) error {
	return s.send(id, network.Ack, network.Controller.SendAck)
}

func (s *Supervisor) SendFlood(id network.NodeID) error {
	return s.send(id, network.FloodRequest, network.Controller.SendFlood)
}

func (s *Supervisor) send(id network.NodeID, kind network.PacketKind, call func(network.Controller, network.NodeID) error) error {
	g, err := s.current(id)
	if err != nil {
		return err
	}
	if err := call(g.engine, id); err != nil {
		commandFailed("Send "+kind.String(), id, err)
		g.hub.AddLog(id, fmt.Sprintf("Failed to send %s", kind), hub.TagNegative)
		return err
	}
	return nil
}

// ClientSendMessage has originator id send body to responder dest.
func (s *Supervisor) ClientSendMessage(id, dest network.NodeID, body network.ClientBody) error {
	g, err := s.current(id)
	if err != nil {
		return err
	}
	if err := g.engine.ClientSendMessage(id, dest, body); err != nil {
		commandFailed("ClientSendMessage", id, err)
		g.hub.AddLog(id, "Error in sending command", hub.TagNegative)
		return err
	}
	g.hub.AddLog(id, "Client command sent", hub.TagMuted)
	return nil
}
