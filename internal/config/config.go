// Package config defines the controller configuration structure.
package config

import (
	"fmt"
	"net"
	"time"
)

// Config represents the complete controller configuration loaded from YAML.
type Config struct {
	Hub struct {
		LogCapacity       int    `yaml:"log_capacity,omitempty"`       // per-node log bound, default 100
		ReconcileInterval string `yaml:"reconcile_interval,omitempty"` // topology mirror patch period, e.g. "500ms"
	} `yaml:"hub"`
	Reset struct {
		JoinTimeout string `yaml:"join_timeout,omitempty"` // empty or "0" waits forever
	} `yaml:"reset"`
	Engine struct {
		Topology    string `yaml:"topology,omitempty"` // TOML topology file of the loopback engine
		Seed        uint64 `yaml:"seed,omitempty"`
		EventBuffer int    `yaml:"event_buffer,omitempty"`
	} `yaml:"engine"`
	Log struct {
		Level string `yaml:"level,omitempty"` // debug | info | warn | error
		File  string `yaml:"file,omitempty"`  // where logs go while the TUI owns the terminal
	} `yaml:"log"`
	Monitor Monitor `yaml:"monitor"`
}

// Monitor configures the read-only DTLS feed of node log records.
type Monitor struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Env     string `yaml:"env,omitempty"` // prod or dev; if nothing is set then prod
	DTLS    DTLS   `yaml:"dtls"`
}

// DTLS holds certificate, security and tuning settings of a DTLS listener.
type DTLS struct {
	Certs struct {
		Mode string `yaml:"mode,omitempty"` // "self_signed" | "files"
		Path string `yaml:"path,omitempty"` // for mode=files
		Cert string `yaml:"cert,omitempty"`
		Key  string `yaml:"key,omitempty"`
		CA   string `yaml:"ca,omitempty"` // optional, for ClientCAs when client_auth requires it
	} `yaml:"certs"`
	Security struct {
		ClientAuth           string   `yaml:"client_auth,omitempty"`            // no_client_cert | request_client_cert | require_any_client_cert | verify_client_cert_if_given | require_and_verify_client_cert
		CipherSuites         []string `yaml:"cipher_suites,omitempty"`          // optional, nil/empty = Pion default
		ExtendedMasterSecret string   `yaml:"extended_master_secret,omitempty"` // request | require | disable
	} `yaml:"security"`
	Tuning struct {
		MTU                     int    `yaml:"mtu,omitempty"`                        // default 1200
		ReplayProtectionWindow  int    `yaml:"replay_protection_window,omitempty"`   // default 64
		FlightInterval          string `yaml:"flight_interval,omitempty"`            // e.g., "1s", optional
		InsecureSkipVerifyHello bool   `yaml:"insecure_skip_verify_hello,omitempty"` // DoS risk, only for special cases
	} `yaml:"tuning"`
}

// Addr returns host:port of the monitor listener.
func (m Monitor) Addr() string {
	return net.JoinHostPort(m.Host, m.Port)
}

// ReconcileInterval parses hub.reconcile_interval. Empty means the default.
func (c *Config) ReconcileInterval() (time.Duration, error) {
	return parseDuration("hub.reconcile_interval", c.Hub.ReconcileInterval, DefaultReconcileInterval)
}

// JoinTimeout parses reset.join_timeout. Empty means no timeout.
func (c *Config) JoinTimeout() (time.Duration, error) {
	return parseDuration("reset.join_timeout", c.Reset.JoinTimeout, 0)
}

func parseDuration(key, val string, def time.Duration) (time.Duration, error) {
	if val == "" {
		return def, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", key, val)
	}
	return d, nil
}
