package sim

import (
	log "github.com/sirupsen/logrus"
	"github.com/wgsim/controller/pkg/network"
)

// FileSource returns a source that reloads the topology file and starts a
// fresh engine on every call, so a reset also restarts the simulation.
func FileSource(path string, opts Options) network.Source {
	return network.SourceFunc(func() (network.Engine, error) {
		t, err := LoadTopology(path)
		if err != nil {
			log.WithField("caller", "sim").WithError(err).Error("Failed to load topology")
			return nil, err
		}
		return New(t, opts), nil
	})
}

// Static returns a source that always yields e.
func Static(e network.Engine) network.Source {
	return network.SourceFunc(func() (network.Engine, error) {
		return e, nil
	})
}
