package sim

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
	"github.com/wgsim/controller/pkg/network"
)

// Topology is the TOML network description the loopback engine starts from.
type Topology struct {
	Drones  []DroneConfig  `toml:"drone"`
	Clients []ClientConfig `toml:"client"`
	Servers []ServerConfig `toml:"server"`
}

type DroneConfig struct {
	ID               network.NodeID   `toml:"id"`
	ConnectedNodeIDs []network.NodeID `toml:"connected_node_ids"`
	PDR              float32          `toml:"pdr"`
}

type ClientConfig struct {
	ID                network.NodeID   `toml:"id"`
	ConnectedDroneIDs []network.NodeID `toml:"connected_drone_ids"`
}

// ServerConfig describes a responder. Kind is "content" or "communication".
// A content server serves Files (inline contents) and FilePaths (read from
// disk on request).
type ServerConfig struct {
	ID                network.NodeID    `toml:"id"`
	ConnectedDroneIDs []network.NodeID  `toml:"connected_drone_ids"`
	Kind              string            `toml:"kind"`
	Files             map[string]string `toml:"files"`
	FilePaths         map[string]string `toml:"file_paths"`
}

// LoadTopology reads and validates a topology file.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("topology load failed (%s): %w", path, err)
	}
	t, err := ParseTopology(data)
	if err != nil {
		return nil, fmt.Errorf("topology %s: %w", path, err)
	}
	return t, nil
}

// ParseTopology decodes and validates TOML topology data.
func ParseTopology(data []byte) (*Topology, error) {
	var t Topology
	meta, err := toml.Decode(string(data), &t)
	if err != nil {
		return nil, fmt.Errorf("topology parse failed: %w", err)
	}
	for _, key := range meta.Undecoded() {
		log.WithField("caller", "sim").Warnf("Ignoring unknown topology key %s", key)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks id uniqueness, link endpoints and drop rates. Clients and
// servers may only link to drones.
func (t *Topology) Validate() error {
	category := make(map[network.NodeID]network.Category)
	add := func(id network.NodeID, c network.Category) error {
		if _, dup := category[id]; dup {
			return fmt.Errorf("duplicate node id %d", id)
		}
		category[id] = c
		return nil
	}
	for _, d := range t.Drones {
		if err := add(d.ID, network.Relay); err != nil {
			return err
		}
		if d.PDR < 0 || d.PDR > 1 {
			return fmt.Errorf("drone %d: pdr %v out of range [0, 1]", d.ID, d.PDR)
		}
	}
	for _, c := range t.Clients {
		if err := add(c.ID, network.Originator); err != nil {
			return err
		}
	}
	for _, s := range t.Servers {
		if err := add(s.ID, network.Responder); err != nil {
			return err
		}
		switch s.Kind {
		case "", "content", "communication":
		default:
			return fmt.Errorf("server %d: unknown kind %q", s.ID, s.Kind)
		}
	}

	for _, d := range t.Drones {
		for _, peer := range d.ConnectedNodeIDs {
			if _, ok := category[peer]; !ok {
				return fmt.Errorf("drone %d: unknown neighbour %d", d.ID, peer)
			}
			if peer == d.ID {
				return fmt.Errorf("drone %d: linked to itself", d.ID)
			}
		}
	}
	check := func(kind string, id network.NodeID, peers []network.NodeID) error {
		for _, peer := range peers {
			c, ok := category[peer]
			if !ok {
				return fmt.Errorf("%s %d: unknown neighbour %d", kind, id, peer)
			}
			if c != network.Relay {
				return fmt.Errorf("%s %d: neighbour %d is not a drone", kind, id, peer)
			}
		}
		return nil
	}
	for _, c := range t.Clients {
		if err := check("client", c.ID, c.ConnectedDroneIDs); err != nil {
			return err
		}
	}
	for _, s := range t.Servers {
		if err := check("server", s.ID, s.ConnectedDroneIDs); err != nil {
			return err
		}
	}
	return nil
}
