// Package config provides interactive setup functionality.
package config

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// prompter reads answers line by line; an empty answer keeps the default.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// Setup runs an interactive setup to create a controller configuration.
// It prompts for every value and saves the result to the given path.
func Setup(path string, in io.Reader, out io.Writer) (*Config, error) {
	p := &prompter{in: bufio.NewReader(in), out: out}
	fmt.Fprintln(out, "=== Controller Configuration Setup ===")
	fmt.Fprintln(out)

	cfg := Default()

	fmt.Fprintln(out, "--- Pipeline ---")
	cfg.Engine.Topology = p.promptString("Topology file", cfg.Engine.Topology)
	cfg.Hub.LogCapacity = p.promptInt("Log lines kept per node", cfg.Hub.LogCapacity)
	cfg.Hub.ReconcileInterval = p.promptDuration("Topology reconcile interval", cfg.Hub.ReconcileInterval)
	cfg.Reset.JoinTimeout = p.promptDuration("Reset join timeout (empty waits forever)", "")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "--- Logging ---")
	cfg.Log.Level = p.promptChoice("Log level", []string{"debug", "info", "warn", "error"}, cfg.Log.Level)
	cfg.Log.File = p.promptString("Log file", cfg.Log.File)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "--- Monitor feed ---")
	cfg.Monitor.Enabled = p.promptBool("Enable DTLS monitor feed (y/n)", false)
	if cfg.Monitor.Enabled {
		cfg.Monitor.Host = p.promptString("Host", cfg.Monitor.Host)
		for {
			cfg.Monitor.Port = p.promptString("Port", cfg.Monitor.Port)
			if err := validatePort(cfg.Monitor.Port); err == nil {
				break
			} else {
				fmt.Fprintf(out, "%v\n", err)
			}
		}
		cfg.Monitor.DTLS.Certs.Mode = p.promptChoice("Certificate mode", []string{"self_signed", "files"}, "self_signed")
		if cfg.Monitor.DTLS.Certs.Mode == "files" {
			cfg.Monitor.DTLS.Certs.Path = p.promptString("Certificate path", cfg.Monitor.DTLS.Certs.Path)
			cfg.Monitor.DTLS.Certs.Cert = p.promptString("Certificate file", cfg.Monitor.DTLS.Certs.Cert)
			cfg.Monitor.DTLS.Certs.Key = p.promptString("Key file", cfg.Monitor.DTLS.Certs.Key)
		}
		suites := p.promptString("Cipher suites (comma-separated, optional, press Enter to skip)", "")
		if suites != "" {
			cfg.Monitor.DTLS.Security.CipherSuites = parseStringSlice(suites)
		}
		cfg.Monitor.DTLS.Security.ExtendedMasterSecret = p.promptChoice("Extended Master Secret", []string{"request", "require", "disable"}, "request")
		cfg.Monitor.DTLS.Tuning.MTU = p.promptInt("MTU", cfg.Monitor.DTLS.Tuning.MTU)
	}
	fmt.Fprintln(out)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Saving configuration to %s...\n", path)
	if err := SaveConfig(cfg, path); err != nil {
		return nil, fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintln(out, "Configuration saved successfully!")
	return cfg, nil
}

// readLine returns the trimmed answer, or "" on EOF.
func (p *prompter) readLine() string {
	input, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		log.WithField("caller", "config").WithError(err).Warn("Error reading input")
	}
	return strings.TrimSpace(input)
}

// promptString prompts for a string value with a default.
func (p *prompter) promptString(prompt string, defaultVal string) string {
	defaultText := ""
	if defaultVal != "" {
		defaultText = fmt.Sprintf(" [%s]", defaultVal)
	}
	fmt.Fprintf(p.out, "%s%s: ", prompt, defaultText)

	if input := p.readLine(); input != "" {
		return input
	}
	return defaultVal
}

// promptInt prompts for an integer value with validation and a default.
func (p *prompter) promptInt(prompt string, defaultVal int) int {
	fmt.Fprintf(p.out, "%s [%d]: ", prompt, defaultVal)

	input := p.readLine()
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil {
		fmt.Fprintf(p.out, "Invalid integer, using default %d\n", defaultVal)
		return defaultVal
	}
	return val
}

// promptDuration prompts for a Go duration string.
func (p *prompter) promptDuration(prompt string, defaultVal string) string {
	val := p.promptString(prompt, defaultVal)
	if val == "" {
		return ""
	}
	if _, err := time.ParseDuration(val); err != nil {
		fmt.Fprintf(p.out, "Invalid duration, using default %q\n", defaultVal)
		return defaultVal
	}
	return val
}

// promptChoice prompts for a choice from a list of options with a default.
func (p *prompter) promptChoice(prompt string, choices []string, defaultVal string) string {
	fmt.Fprintf(p.out, "%s (%s) [%s]: ", prompt, strings.Join(choices, "/"), defaultVal)

	input := p.readLine()
	if input == "" {
		return defaultVal
	}
	for _, choice := range choices {
		if strings.EqualFold(input, choice) {
			return choice
		}
	}
	fmt.Fprintf(p.out, "Invalid choice, using default %s\n", defaultVal)
	return defaultVal
}

// promptBool prompts for a boolean value (y/n) with a default.
func (p *prompter) promptBool(prompt string, defaultVal bool) bool {
	defaultText := "n"
	if defaultVal {
		defaultText = "y"
	}
	fmt.Fprintf(p.out, "%s [%s]: ", prompt, defaultText)

	input := strings.ToLower(p.readLine())
	if input == "" {
		return defaultVal
	}
	return input == "y" || input == "yes"
}

// parseStringSlice parses a comma-separated string into a slice of strings.
func parseStringSlice(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Validate checks value ranges and formats.
func (c *Config) Validate() error {
	if c.Hub.LogCapacity < 0 {
		return fmt.Errorf("hub.log_capacity must not be negative")
	}
	if _, err := c.ReconcileInterval(); err != nil {
		return err
	}
	if _, err := c.JoinTimeout(); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.Log.Level); c.Log.Level != "" && err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Engine.EventBuffer < 0 {
		return fmt.Errorf("engine.event_buffer must not be negative")
	}
	if !c.Monitor.Enabled {
		return nil
	}
	if err := validatePort(c.Monitor.Port); err != nil {
		return fmt.Errorf("monitor.port: %w", err)
	}
	if err := validateHost(c.Monitor.Host); err != nil {
		return fmt.Errorf("monitor.host: %w", err)
	}
	return nil
}

// validatePort validates a port number string.
func validatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

// validateHost validates a host string (IP address or hostname).
func validateHost(host string) error {
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return nil
	}
	if len(host) > 253 {
		return fmt.Errorf("hostname too long")
	}
	return nil
}
