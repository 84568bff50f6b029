package transport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestKeyPair writes a self-signed PEM certificate and key to dir.
func writeTestKeyPair(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate private key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(7),
		Subject:               pkix.Name{CommonName: "rmon.test"},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}

	certFile = filepath.Join(dir, "server.crt")
	keyFile = filepath.Join(dir, "server.key")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func TestLoadTLSConfig(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeTestKeyPair(t, dir)

	cfg, err := LoadTLSConfig(certFile, keyFile, "")
	if err != nil {
		t.Fatalf("LoadTLSConfig failed: %v", err)
	}
	if cfg.ClientCAs != nil {
		t.Error("ClientCAs should be nil without a CA file")
	}

	tlsConfig, err := NewServerTLSConfig(cfg)
	if err != nil {
		t.Fatalf("NewServerTLSConfig failed: %v", err)
	}
	if tlsConfig.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", tlsConfig.MinVersion)
	}
	if tlsConfig.ClientAuth != tls.NoClientCert {
		t.Errorf("ClientAuth = %v, want NoClientCert", tlsConfig.ClientAuth)
	}
}

func TestLoadTLSConfigWithClientCAs(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeTestKeyPair(t, dir)

	// The self-signed cert doubles as the client CA bundle.
	cfg, err := LoadTLSConfig(certFile, keyFile, certFile)
	if err != nil {
		t.Fatalf("LoadTLSConfig failed: %v", err)
	}
	tlsConfig, err := NewServerTLSConfig(cfg)
	if err != nil {
		t.Fatalf("NewServerTLSConfig failed: %v", err)
	}
	if tlsConfig.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Errorf("ClientAuth = %v, want RequireAndVerifyClientCert", tlsConfig.ClientAuth)
	}
}

func TestLoadTLSConfigErrors(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeTestKeyPair(t, dir)

	if _, err := LoadTLSConfig(filepath.Join(dir, "missing.crt"), keyFile, ""); err == nil {
		t.Error("expected error for missing certificate")
	}

	junk := filepath.Join(dir, "junk.pem")
	os.WriteFile(junk, []byte("not pem"), 0600)
	if _, err := LoadTLSConfig(certFile, keyFile, junk); !errors.Is(err, ErrNoCAFile) {
		t.Errorf("expected ErrNoCAFile, got %v", err)
	}
}

func TestNewServerTLSConfigNoCert(t *testing.T) {
	if _, err := NewServerTLSConfig(&TLSConfig{}); !errors.Is(err, ErrNoCertificate) {
		t.Errorf("expected ErrNoCertificate, got %v", err)
	}
	if _, err := NewServerTLSConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}
