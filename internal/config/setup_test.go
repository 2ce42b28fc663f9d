package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestSaveConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "simctl.yml")

	cfg := &Config{}
	cfg.Monitor.Port = "9090"
	cfg.Monitor.Host = "127.0.0.1"
	cfg.Monitor.Env = "prod"
	cfg.Engine.Seed = 42

	require.NoError(t, SaveConfig(cfg, configPath))

	f, err := os.Open(configPath)
	require.NoError(t, err)
	defer f.Close()

	loaded := &Config{}
	require.NoError(t, yaml.NewDecoder(f).Decode(loaded))

	assert.Equal(t, "9090", loaded.Monitor.Port)
	assert.Equal(t, "127.0.0.1", loaded.Monitor.Host)
	assert.Equal(t, "prod", loaded.Monitor.Env)
	assert.Equal(t, uint64(42), loaded.Engine.Seed)
}

func TestSaveConfig_WriteError(t *testing.T) {
	assert.Error(t, SaveConfig(&Config{}, "/nonexistent/path/simctl.yml"))
}

func TestSetup_AllDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "simctl.yml")
	var out bytes.Buffer

	// Empty answers keep every default; the monitor stays disabled.
	cfg, err := Setup(configPath, strings.NewReader(strings.Repeat("\n", 8)), &out)
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Contains(t, out.String(), "Configuration saved successfully!")

	loaded, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSetup_CustomAnswers(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "simctl.yml")
	answers := strings.Join([]string{
		"net.toml", // topology
		"50",       // log capacity
		"1s",       // reconcile interval
		"3s",       // join timeout
		"DEBUG",    // log level
		"out.log",  // log file
		"y",        // monitor
		"0.0.0.0",  // host
		"99999",    // invalid port, asked again
		"7500",     // port
		"files",    // cert mode
		"",         // cert path
		"",         // cert file
		"",         // key file
		"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256, ",
		"require", // EMS
		"1400",    // MTU
	}, "\n") + "\n"
	var out bytes.Buffer

	cfg, err := Setup(configPath, strings.NewReader(answers), &out)
	require.NoError(t, err)

	assert.Equal(t, "net.toml", cfg.Engine.Topology)
	assert.Equal(t, 50, cfg.Hub.LogCapacity)
	assert.Equal(t, "1s", cfg.Hub.ReconcileInterval)
	assert.Equal(t, "3s", cfg.Reset.JoinTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "out.log", cfg.Log.File)
	assert.True(t, cfg.Monitor.Enabled)
	assert.Equal(t, "0.0.0.0", cfg.Monitor.Host)
	assert.Equal(t, "7500", cfg.Monitor.Port)
	assert.Equal(t, "files", cfg.Monitor.DTLS.Certs.Mode)
	assert.Equal(t, "monitor.crt", cfg.Monitor.DTLS.Certs.Cert)
	assert.Equal(t, []string{"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256"}, cfg.Monitor.DTLS.Security.CipherSuites)
	assert.Equal(t, "require", cfg.Monitor.DTLS.Security.ExtendedMasterSecret)
	assert.Equal(t, 1400, cfg.Monitor.DTLS.Tuning.MTU)
	assert.Contains(t, out.String(), "port must be between 1 and 65535")
}

func TestSetup_InvalidAnswersFallBack(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "simctl.yml")
	answers := "\nmany\nlater\n\nloud\n\nn\n"
	var out bytes.Buffer

	cfg, err := Setup(configPath, strings.NewReader(answers), &out)
	require.NoError(t, err)

	assert.Equal(t, DefaultLogCapacity, cfg.Hub.LogCapacity)
	assert.Equal(t, DefaultReconcileInterval.String(), cfg.Hub.ReconcileInterval)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Contains(t, out.String(), "Invalid integer")
	assert.Contains(t, out.String(), "Invalid duration")
	assert.Contains(t, out.String(), "Invalid choice")
}

func TestParseStringSlice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"simple", "a,b,c", []string{"a", "b", "c"}},
		{"with spaces", "a, b, c", []string{"a", "b", "c"}},
		{"empty", "", []string{}},
		{"single", "a", []string{"a"}},
		{"with empty parts", "a,,b", []string{"a", "b"}},
		{"whitespace only", "   ,  ,  ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseStringSlice(tt.input))
		})
	}
}

func TestValidatePort(t *testing.T) {
	tests := []struct {
		name    string
		portStr string
		wantErr bool
	}{
		{"valid", "7400", false},
		{"min valid", "1", false},
		{"max valid", "65535", false},
		{"too small", "0", true},
		{"negative", "-1", true},
		{"too large", "65536", true},
		{"invalid format", "abc", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePort(tt.portStr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateHost(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		wantErr bool
	}{
		{"valid IPv4", "127.0.0.1", false},
		{"valid IPv6", "::1", false},
		{"valid hostname", "localhost", false},
		{"empty", "", true},
		{"too long", string(make([]byte, 254)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHost(tt.host)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
