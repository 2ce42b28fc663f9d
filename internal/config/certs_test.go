package config

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filesDTLS(path string) *DTLS {
	d := &DTLS{}
	d.Certs.Mode = "files"
	d.Certs.Path = path
	d.Certs.Cert = "monitor.crt"
	d.Certs.Key = "monitor.key"
	d.Certs.CA = "ca.crt"
	return d
}

func TestGenerateCertificates_AlreadyExists(t *testing.T) {
	tmpDir := t.TempDir()
	d := filesDTLS(tmpDir)

	certPath := filepath.Join(tmpDir, "monitor.crt")
	require.NoError(t, os.WriteFile(certPath, []byte("existing cert"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "monitor.key"), []byte("existing key"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ca.crt"), []byte("existing ca"), 0o644))

	require.NoError(t, GenerateCertificates(d))

	certData, err := os.ReadFile(certPath)
	require.NoError(t, err)
	assert.Equal(t, "existing cert", string(certData))
}

func TestGenerateCertificates_NormalGeneration(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, GenerateCertificates(filesDTLS(tmpDir)))

	certPEM, err := os.ReadFile(filepath.Join(tmpDir, "monitor.crt"))
	require.NoError(t, err)
	block, _ := pem.Decode(certPEM)
	require.NotNil(t, block)
	assert.Equal(t, "CERTIFICATE", block.Type)
	_, err = x509.ParseCertificate(block.Bytes)
	assert.NoError(t, err)

	keyPEM, err := os.ReadFile(filepath.Join(tmpDir, "monitor.key"))
	require.NoError(t, err)
	block, _ = pem.Decode(keyPEM)
	require.NotNil(t, block)
	_, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	assert.NoError(t, err)

	caPEM, err := os.ReadFile(filepath.Join(tmpDir, "ca.crt"))
	require.NoError(t, err)
	assert.Equal(t, certPEM, caPEM)

	keyInfo, err := os.Stat(filepath.Join(tmpDir, "monitor.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), keyInfo.Mode().Perm())
}

func TestGenerateCertificates_CreateDirectory(t *testing.T) {
	subDir := filepath.Join(t.TempDir(), "subdir")

	require.NoError(t, GenerateCertificates(filesDTLS(subDir)))

	_, err := os.Stat(subDir)
	assert.NoError(t, err)
}

func TestGenerateCertificates_PartialExists(t *testing.T) {
	tmpDir := t.TempDir()
	certPath := filepath.Join(tmpDir, "monitor.crt")
	require.NoError(t, os.WriteFile(certPath, []byte("existing cert"), 0o644))

	require.NoError(t, GenerateCertificates(filesDTLS(tmpDir)))

	certData, err := os.ReadFile(certPath)
	require.NoError(t, err)
	assert.NotEqual(t, "existing cert", string(certData))
	_, err = os.Stat(filepath.Join(tmpDir, "monitor.key"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(tmpDir, "ca.crt"))
	assert.NoError(t, err)
}

func TestGenerateCertificates_NoCA(t *testing.T) {
	tmpDir := t.TempDir()
	d := filesDTLS(tmpDir)
	d.Certs.CA = ""

	require.NoError(t, GenerateCertificates(d))

	_, err := os.Stat(filepath.Join(tmpDir, "ca.crt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGenerateCertificates_Nil(t *testing.T) {
	assert.Panics(t, func() {
		_ = GenerateCertificates(nil)
	})
}
