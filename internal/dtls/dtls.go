// Package dtls builds pion DTLS configurations for the monitor feed.
package dtls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pion/dtls/v3"
	"github.com/pion/dtls/v3/pkg/crypto/selfsign"
	"github.com/wgsim/controller/internal/config"
)

const (
	defaultMTU                    = 1200
	defaultReplayProtectionWindow = 64
)

var cipherSuites = map[string]dtls.CipherSuiteID{
	"TLS_ECDHE_ECDSA_WITH_AES_128_CCM":        dtls.TLS_ECDHE_ECDSA_WITH_AES_128_CCM,
	"TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8":      dtls.TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8,
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256": dtls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":   dtls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384": dtls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":   dtls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA":    dtls.TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA,
	"TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA":      dtls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
}

var clientAuthTypes = map[string]dtls.ClientAuthType{
	"no_client_cert":                 dtls.NoClientCert,
	"request_client_cert":            dtls.RequestClientCert,
	"require_any_client_cert":        dtls.RequireAnyClientCert,
	"verify_client_cert_if_given":    dtls.VerifyClientCertIfGiven,
	"require_and_verify_client_cert": dtls.RequireAndVerifyClientCert,
}

var emsTypes = map[string]dtls.ExtendedMasterSecretType{
	"request": dtls.RequestExtendedMasterSecret,
	"require": dtls.RequireExtendedMasterSecret,
	"disable": dtls.DisableExtendedMasterSecret,
}

// lookup resolves a config keyword; empty yields def, unknown is an error.
func lookup[T any](table map[string]T, key, field string, def T) (T, error) {
	if key == "" {
		return def, nil
	}
	v, ok := table[key]
	if !ok {
		return def, fmt.Errorf("dtls.%s: unknown value %q", field, key)
	}
	return v, nil
}

// ServerConfig builds the listener configuration of the monitor feed.
// An empty certs.mode means self_signed in env=dev and files otherwise.
func ServerConfig(m *config.Monitor) (*dtls.Config, error) {
	d := &m.DTLS

	clientAuth, err := lookup(clientAuthTypes, d.Security.ClientAuth, "security.client_auth", dtls.NoClientCert)
	if err != nil {
		return nil, err
	}
	ems, err := lookup(emsTypes, d.Security.ExtendedMasterSecret, "security.extended_master_secret", dtls.RequestExtendedMasterSecret)
	if err != nil {
		return nil, err
	}
	suites := make([]dtls.CipherSuiteID, 0, len(d.Security.CipherSuites))
	for _, name := range d.Security.CipherSuites {
		id, err := lookup(cipherSuites, name, "security.cipher_suites", 0)
		if err != nil {
			return nil, err
		}
		suites = append(suites, id)
	}

	out := &dtls.Config{
		ClientAuth:              clientAuth,
		ExtendedMasterSecret:    ems,
		MTU:                     orDefault(d.Tuning.MTU, defaultMTU),
		ReplayProtectionWindow:  orDefault(d.Tuning.ReplayProtectionWindow, defaultReplayProtectionWindow),
		InsecureSkipVerifyHello: d.Tuning.InsecureSkipVerifyHello,
	}
	if len(suites) > 0 {
		out.CipherSuites = suites
	}
	if d.Tuning.FlightInterval != "" {
		fi, err := time.ParseDuration(d.Tuning.FlightInterval)
		if err != nil {
			return nil, fmt.Errorf("dtls.tuning.flight_interval: %w", err)
		}
		out.FlightInterval = fi
	}

	if err := loadCertificates(out, d, certMode(m)); err != nil {
		return nil, err
	}
	return out, nil
}

// ClientConfig builds the dialer side. A nil pool skips verification of the
// monitor certificate, which is what a self-signed monitor requires.
func ClientConfig(rootCAs *x509.CertPool) (*dtls.Config, error) {
	cert, err := selfsign.GenerateSelfSigned()
	if err != nil {
		return nil, fmt.Errorf("dtls: self_signed: %w", err)
	}
	return &dtls.Config{
		Certificates:         []tls.Certificate{cert},
		RootCAs:              rootCAs,
		InsecureSkipVerify:   rootCAs == nil,
		ExtendedMasterSecret: dtls.RequestExtendedMasterSecret,
		MTU:                  defaultMTU,
	}, nil
}

// LoadPool reads a PEM bundle into a certificate pool.
func LoadPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dtls: read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("dtls: no certificates in %s", path)
	}
	return pool, nil
}

func certMode(m *config.Monitor) string {
	switch {
	case m.DTLS.Certs.Mode != "":
		return m.DTLS.Certs.Mode
	case m.Env == "dev":
		return "self_signed"
	default:
		return "files"
	}
}

func loadCertificates(out *dtls.Config, d *config.DTLS, mode string) error {
	switch mode {
	case "self_signed":
		if out.ClientAuth != dtls.NoClientCert {
			return fmt.Errorf("dtls.certs: self_signed mode only supports client_auth=no_client_cert")
		}
		cert, err := selfsign.GenerateSelfSigned()
		if err != nil {
			return fmt.Errorf("dtls.certs: self_signed: %w", err)
		}
		out.Certificates = []tls.Certificate{cert}
		return nil
	case "files":
		if d.Certs.Path == "" || d.Certs.Cert == "" || d.Certs.Key == "" {
			return fmt.Errorf("dtls.certs: mode=files requires path, cert and key")
		}
		cert, err := tls.LoadX509KeyPair(
			filepath.Join(d.Certs.Path, d.Certs.Cert),
			filepath.Join(d.Certs.Path, d.Certs.Key),
		)
		if err != nil {
			return fmt.Errorf("dtls.certs: load keypair: %w", err)
		}
		out.Certificates = []tls.Certificate{cert}
		if out.ClientAuth == dtls.NoClientCert {
			return nil
		}
		if d.Certs.CA == "" {
			return fmt.Errorf("dtls.certs: client_auth %q requires ca", d.Security.ClientAuth)
		}
		pool, err := LoadPool(filepath.Join(d.Certs.Path, d.Certs.CA))
		if err != nil {
			return err
		}
		out.ClientCAs = pool
		return nil
	default:
		return fmt.Errorf("dtls.certs: unknown mode %q", mode)
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
