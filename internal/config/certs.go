package config

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pion/dtls/v3/pkg/crypto/selfsign"
	log "github.com/sirupsen/logrus"
)

// GenerateCertificates writes a self-signed certificate, its key and a CA
// bundle (the certificate itself) for monitor.dtls.certs mode=files. It is a
// no-op when all three files exist; otherwise all three are rewritten.
// d must not be nil.
func GenerateCertificates(d *DTLS) error {
	dir := d.Certs.Path
	certPath := filepath.Join(dir, d.Certs.Cert)
	keyPath := filepath.Join(dir, d.Certs.Key)
	caPath := filepath.Join(dir, d.Certs.CA)

	if exists(certPath) && exists(keyPath) && (d.Certs.CA == "" || exists(caPath)) {
		return nil
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cert dir: %w", err)
		}
	}

	cert, err := selfsign.GenerateSelfSigned()
	if err != nil {
		return fmt.Errorf("generate self-signed certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(cert.PrivateKey)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})

	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return fmt.Errorf("write cert: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	// os.WriteFile keeps the mode of an existing file.
	if err := os.Chmod(keyPath, 0o600); err != nil {
		return fmt.Errorf("chmod key: %w", err)
	}
	if d.Certs.CA != "" {
		if err := os.WriteFile(caPath, certPEM, 0o644); err != nil {
			return fmt.Errorf("write ca: %w", err)
		}
	}
	log.WithField("caller", "config").Infof("Generated self-signed DTLS certificate in %s", dir)
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
