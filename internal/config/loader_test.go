package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestWriteDefaultConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "simctl.yml")

	require.NoError(t, WriteDefaultConfig(configPath))

	f, err := os.Open(configPath)
	require.NoError(t, err)
	defer f.Close()

	cfg := &Config{}
	require.NoError(t, yaml.NewDecoder(f).Decode(cfg))

	assert.Equal(t, 100, cfg.Hub.LogCapacity)
	assert.Equal(t, "500ms", cfg.Hub.ReconcileInterval)
	assert.Equal(t, "topology.toml", cfg.Engine.Topology)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "simctl.log", cfg.Log.File)
	assert.False(t, cfg.Monitor.Enabled)
	assert.Equal(t, "7400", cfg.Monitor.Port)
	assert.Equal(t, "127.0.0.1", cfg.Monitor.Host)
	assert.Equal(t, "dev", cfg.Monitor.Env)
	assert.Equal(t, "self_signed", cfg.Monitor.DTLS.Certs.Mode)
	assert.Equal(t, "certs/", cfg.Monitor.DTLS.Certs.Path)
	assert.Equal(t, "monitor.crt", cfg.Monitor.DTLS.Certs.Cert)
	assert.Equal(t, "monitor.key", cfg.Monitor.DTLS.Certs.Key)
	assert.Equal(t, "ca.crt", cfg.Monitor.DTLS.Certs.CA)
	assert.Equal(t, "no_client_cert", cfg.Monitor.DTLS.Security.ClientAuth)
	assert.Equal(t, "request", cfg.Monitor.DTLS.Security.ExtendedMasterSecret)
	assert.Equal(t, 1200, cfg.Monitor.DTLS.Tuning.MTU)
	assert.Equal(t, 64, cfg.Monitor.DTLS.Tuning.ReplayProtectionWindow)
	assert.False(t, cfg.Monitor.DTLS.Tuning.InsecureSkipVerifyHello)
}

func TestWriteDefaultConfig_WriteError(t *testing.T) {
	assert.Error(t, WriteDefaultConfig("/nonexistent/path/simctl.yml"))
}

func TestLoad_FileNotExists(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "simctl.yml")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = os.Stat(configPath)
	assert.NoError(t, err, "defaults should have been written")
}

func TestLoad_FileExists(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "simctl.yml")
	require.NoError(t, WriteDefaultConfig(configPath))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialFileGetsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "simctl.yml")
	data := []byte("hub:\n  log_capacity: 20\nreset:\n  join_timeout: 2s\nengine:\n  seed: 7\n")
	require.NoError(t, os.WriteFile(configPath, data, 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Hub.LogCapacity)
	assert.Equal(t, uint64(7), cfg.Engine.Seed)
	assert.Equal(t, DefaultTopology, cfg.Engine.Topology)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultMonitorPort, cfg.Monitor.Port)

	interval, err := cfg.ReconcileInterval()
	require.NoError(t, err)
	assert.Equal(t, DefaultReconcileInterval, interval)

	timeout, err := cfg.JoinTimeout()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, timeout)
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "simctl.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("invalid: yaml: content: [unclosed"), 0o644))

	cfg, err := Load(configPath)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative capacity", "hub:\n  log_capacity: -1\n"},
		{"bad interval", "hub:\n  reconcile_interval: soon\n"},
		{"negative timeout", "reset:\n  join_timeout: -1s\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"bad monitor port", "monitor:\n  enabled: true\n  port: \"70000\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "simctl.yml")
			require.NoError(t, os.WriteFile(configPath, []byte(tt.yaml), 0o644))

			_, err := Load(configPath)
			assert.Error(t, err)
		})
	}
}

func TestJoinTimeout_EmptyMeansForever(t *testing.T) {
	cfg := Default()
	d, err := cfg.JoinTimeout()
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestMonitorAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:7400", Default().Monitor.Addr())
	assert.Equal(t, "[::1]:9000", Monitor{Host: "::1", Port: "9000"}.Addr())
}
