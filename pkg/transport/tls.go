package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// TLS errors.
var (
	ErrNoCertificate = errors.New("server certificate is required")
	ErrNoCAFile      = errors.New("no certificates found in CA file")
)

// TLSConfig holds the server-side TLS settings.
type TLSConfig struct {
	// Certificate is the server certificate.
	Certificate tls.Certificate

	// ClientCAs enables client certificate verification when non-nil.
	ClientCAs *x509.CertPool
}

// LoadTLSConfig reads a PEM certificate and key pair and, when caFile is
// not empty, a PEM bundle of client CAs.
func LoadTLSConfig(certFile, keyFile, caFile string) (*TLSConfig, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load key pair: %w", err)
	}

	cfg := &TLSConfig{Certificate: cert}
	if caFile == "" {
		return cfg, nil
	}
	if cfg.ClientCAs, err = LoadCertPool(caFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadCertPool reads a PEM bundle into a certificate pool.
func LoadCertPool(caFile string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, ErrNoCAFile
	}
	return pool, nil
}

// NewServerTLSConfig creates the tls.Config for a listener.
// Agents run on a wide range of platforms, so TLS 1.2 is the floor.
func NewServerTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("TLSConfig is required")
	}
	if len(cfg.Certificate.Certificate) == 0 {
		return nil, ErrNoCertificate
	}

	tlsConfig := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cfg.Certificate},
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
		ClientAuth: tls.NoClientCert,
	}

	if cfg.ClientCAs != nil {
		tlsConfig.ClientCAs = cfg.ClientCAs
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return tlsConfig, nil
}

// NewClientTLSConfig creates a tls.Config for dialing a listener.
// A nil roots pool with insecure set skips verification (testing only).
func NewClientTLSConfig(roots *x509.CertPool, serverName string, insecure bool) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		RootCAs:            roots,
		ServerName:         serverName,
		InsecureSkipVerify: insecure,
	}
}
