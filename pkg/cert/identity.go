package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Identity validity periods.
const (
	// Validity is the lifetime of a generated identity.
	Validity = 365 * 24 * time.Hour

	// RenewalWindow is how long before expiry a stored identity is replaced.
	RenewalWindow = 30 * 24 * time.Hour

	// backdate tolerates agents whose clocks run slightly behind.
	backdate = time.Hour
)

// File names inside the identity directory.
const (
	CertFileName = "server.pem"
	KeyFileName  = "server.key"
)

// ErrNoIdentity is returned by FileStore.Load when no identity is stored.
var ErrNoIdentity = errors.New("no stored identity")

// Identity is a server certificate with its private key.
type Identity struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// Generate creates a self-signed P-256 identity valid from now for
// Validity. Each host is added as an IP or DNS subject alternative name.
func Generate(commonName string, hosts []string, now time.Time) (*Identity, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{"rmon"},
		},
		NotBefore:             now.Add(-backdate),
		NotAfter:              now.Add(Validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if h == "" {
			continue
		}
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	return &Identity{Certificate: leaf, PrivateKey: key}, nil
}

// TLSCertificate returns the identity in the form crypto/tls expects.
func (id *Identity) TLSCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{id.Certificate.Raw},
		PrivateKey:  id.PrivateKey,
		Leaf:        id.Certificate,
	}
}

// Fingerprint returns the SHA-256 digest of the DER certificate as
// colon-separated upper-case hex.
func (id *Identity) Fingerprint() string {
	return Fingerprint(id.Certificate)
}

// ExpiresAt returns when the certificate expires.
func (id *Identity) ExpiresAt() time.Time {
	return id.Certificate.NotAfter
}

// NeedsRenewal reports whether now is within RenewalWindow of expiry.
func (id *Identity) NeedsRenewal(now time.Time) bool {
	return !now.Before(id.ExpiresAt().Add(-RenewalWindow))
}

// matches reports whether the certificate and key belong together.
func (id *Identity) matches() bool {
	pub, ok := id.Certificate.PublicKey.(*ecdsa.PublicKey)
	return ok && pub.Equal(&id.PrivateKey.PublicKey)
}

// Fingerprint returns the SHA-256 digest of cert as colon-separated
// upper-case hex.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

// FileStore persists an identity as PEM files in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created on
// the first Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the store directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Load reads the stored identity. It returns ErrNoIdentity when neither
// file exists.
func (s *FileStore) Load() (*Identity, error) {
	certPEM, certErr := os.ReadFile(filepath.Join(s.dir, CertFileName))
	keyPEM, keyErr := os.ReadFile(filepath.Join(s.dir, KeyFileName))
	if errors.Is(certErr, fs.ErrNotExist) && errors.Is(keyErr, fs.ErrNotExist) {
		return nil, ErrNoIdentity
	}
	if certErr != nil {
		return nil, fmt.Errorf("read certificate: %w", certErr)
	}
	if keyErr != nil {
		return nil, fmt.Errorf("read key: %w", keyErr)
	}

	cert, err := DecodeCertPEM(certPEM)
	if err != nil {
		return nil, fmt.Errorf("decode certificate: %w", err)
	}
	key, err := DecodeKeyPEM(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}

	id := &Identity{Certificate: cert, PrivateKey: key}
	if !id.matches() {
		return nil, fmt.Errorf("certificate in %s does not match its key", s.dir)
	}
	return id, nil
}

// Save writes the identity. The key file is only readable by the owner.
func (s *FileStore) Save(id *Identity) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create %s: %w", s.dir, err)
	}
	keyPEM, err := EncodeKeyPEM(id.PrivateKey)
	if err != nil {
		return fmt.Errorf("encode key: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, KeyFileName), keyPEM, 0600); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, CertFileName), EncodeCertPEM(id.Certificate), 0644)
}

// LoadOrCreate returns the stored identity, generating and saving a new one
// when none is stored or the stored one needs renewal. created reports
// whether a new identity was generated.
func LoadOrCreate(store *FileStore, commonName string, hosts []string, now time.Time) (id *Identity, created bool, err error) {
	id, err = store.Load()
	switch {
	case err == nil && !id.NeedsRenewal(now):
		return id, false, nil
	case err != nil && !errors.Is(err, ErrNoIdentity):
		return nil, false, err
	}

	id, err = Generate(commonName, hosts, now)
	if err != nil {
		return nil, false, err
	}
	if err := store.Save(id); err != nil {
		return nil, false, err
	}
	return id, true, nil
}
