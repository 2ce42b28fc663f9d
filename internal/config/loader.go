// Package config provides configuration loading functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// DefaultPath is the configuration file used when none is given.
const DefaultPath = "simctl.yml"

const (
	DefaultLogCapacity       = 100
	DefaultReconcileInterval = 500 * time.Millisecond
	DefaultTopology          = "topology.toml"
	DefaultLogLevel          = "info"
	DefaultLogFile           = "simctl.log"
	DefaultMonitorPort       = "7400"
)

// Default returns the configuration written by WriteDefaultConfig.
func Default() *Config {
	cfg := &Config{}
	cfg.Hub.LogCapacity = DefaultLogCapacity
	cfg.Hub.ReconcileInterval = DefaultReconcileInterval.String()

	cfg.Engine.Topology = DefaultTopology

	cfg.Log.Level = DefaultLogLevel
	cfg.Log.File = DefaultLogFile

	cfg.Monitor.Enabled = false
	cfg.Monitor.Port = DefaultMonitorPort
	cfg.Monitor.Host = "127.0.0.1"
	cfg.Monitor.Env = "dev"

	cfg.Monitor.DTLS.Certs.Mode = "self_signed"
	cfg.Monitor.DTLS.Certs.Path = "certs/"
	cfg.Monitor.DTLS.Certs.Cert = "monitor.crt"
	cfg.Monitor.DTLS.Certs.Key = "monitor.key"
	cfg.Monitor.DTLS.Certs.CA = "ca.crt"

	cfg.Monitor.DTLS.Security.ClientAuth = "no_client_cert"
	cfg.Monitor.DTLS.Security.ExtendedMasterSecret = "request"

	cfg.Monitor.DTLS.Tuning.MTU = 1200
	cfg.Monitor.DTLS.Tuning.ReplayProtectionWindow = 64
	cfg.Monitor.DTLS.Tuning.InsecureSkipVerifyHello = false
	return cfg
}

// Load decodes the configuration at path. A missing file is created with
// the defaults first. Zero values left by a partial file are filled with
// defaults, then the result is validated.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		log.WithField("caller", "config").Infof("%s not found: writing defaults", path)
		if err := WriteDefaultConfig(path); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg := &Config{}
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Hub.LogCapacity == 0 {
		c.Hub.LogCapacity = def.Hub.LogCapacity
	}
	if c.Engine.Topology == "" {
		c.Engine.Topology = def.Engine.Topology
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.File == "" {
		c.Log.File = def.Log.File
	}
	if c.Monitor.Port == "" {
		c.Monitor.Port = def.Monitor.Port
	}
	if c.Monitor.Host == "" {
		c.Monitor.Host = def.Monitor.Host
	}
}

// WriteDefaultConfig writes a default simctl.yml to the given path.
func WriteDefaultConfig(path string) error {
	return SaveConfig(Default(), path)
}

// SaveConfig saves a Config to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := yaml.NewEncoder(f)
	defer encoder.Close()
	if err := encoder.Encode(cfg); err != nil {
		return err
	}
	return nil
}
