// Package config holds the server configuration: defaults, file loading
// (YAML or TOML, chosen by extension), command line overrides and
// validation.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/rmon-protocol/rmon-go/pkg/auth"
	"github.com/rmon-protocol/rmon-go/pkg/catalog"
	"github.com/rmon-protocol/rmon-go/pkg/transport"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrUnsupportedFormat is returned for config files that are neither
// YAML nor TOML.
var ErrUnsupportedFormat = errors.New("unsupported config file format")

// Default listen addresses.
const (
	DefaultPullAddress = ":8443"
	DefaultPushAddress = ":8080"
)

// DefaultShutdownTimeout bounds how long Stop waits for sessions.
const DefaultShutdownTimeout = 30 * time.Second

// Config is the server configuration.
type Config struct {
	// Shared secret for the pull handshake. SecretFile takes precedence
	// when both are set.
	Secret     string `yaml:"secret" toml:"secret"`
	SecretFile string `yaml:"secret_file" toml:"secret_file"`

	// Listen addresses. Empty disables the listener.
	PullAddress string `yaml:"pull_address" toml:"pull_address"`
	PushAddress string `yaml:"push_address" toml:"push_address"`
	EchoAddress string `yaml:"echo_address" toml:"echo_address"`

	// TLS for the pull listener. Plain TCP when unset.
	TLSCert     string `yaml:"tls_cert" toml:"tls_cert"`
	TLSKey      string `yaml:"tls_key" toml:"tls_key"`
	TLSClientCA string `yaml:"tls_client_ca" toml:"tls_client_ca"`

	// TLSSelfSigned serves the pull listener with a generated identity
	// kept in TLSDir when no certificate is configured.
	TLSSelfSigned bool   `yaml:"tls_self_signed" toml:"tls_self_signed"`
	TLSDir        string `yaml:"tls_dir" toml:"tls_dir"`

	HandshakeTimeout time.Duration `yaml:"handshake_timeout" toml:"handshake_timeout"`
	ChallengeMaxAge  time.Duration `yaml:"challenge_max_age" toml:"challenge_max_age"`
	MaxMessageSize   ByteSize      `yaml:"max_message_size" toml:"max_message_size"`

	// MaxSessions caps concurrent pull sessions. Zero means unbounded.
	MaxSessions int64 `yaml:"max_sessions" toml:"max_sessions"`

	// StorageDir receives decoded images.
	StorageDir string `yaml:"storage_dir" toml:"storage_dir"`

	// ProtocolLog is the path of the protocol capture file. Empty disables it.
	ProtocolLog string `yaml:"protocol_log" toml:"protocol_log"`

	MDNS     bool   `yaml:"mdns" toml:"mdns"`
	MDNSName string `yaml:"mdns_name" toml:"mdns_name"`

	SuggestionPolicy string `yaml:"suggestion_policy" toml:"suggestion_policy"`

	LogLevel        string        `yaml:"log_level" toml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// Default returns a Config with the default values.
func Default() Config {
	return Config{
		PullAddress:      DefaultPullAddress,
		PushAddress:      DefaultPushAddress,
		HandshakeTimeout: 10 * time.Second,
		MaxMessageSize:   ByteSize(transport.DefaultMaxMessageSize),
		StorageDir:       "captures",
		TLSDir:           "identity",
		MDNSName:         "rmon",
		SuggestionPolicy: catalog.PolicyRandom,
		LogLevel:         "info",
		ShutdownTimeout:  DefaultShutdownTimeout,
	}
}

// Load reads path over the defaults. The format is chosen by extension:
// .yaml/.yml or .toml. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := cfg.LoadFile(path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads path over the current values of c.
func (c *Config) LoadFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open config: %w", err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil

	case ".toml":
		md, err := toml.DecodeFile(path, c)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("failed to parse %s: unknown key %q", path, undecoded[0].String())
		}
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.PullAddress == "" && c.PushAddress == "" && c.EchoAddress == "" {
		return fmt.Errorf("%w: no listener enabled", ErrInvalidConfig)
	}
	for name, addr := range map[string]string{
		"pull_address": c.PullAddress,
		"push_address": c.PushAddress,
		"echo_address": c.EchoAddress,
	} {
		if addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
	}
	if c.PullAddress != "" && c.Secret == "" && c.SecretFile == "" {
		return fmt.Errorf("%w: pull mode requires secret or secret_file", ErrInvalidConfig)
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("%w: tls_cert and tls_key must be set together", ErrInvalidConfig)
	}
	if c.TLSClientCA != "" && !c.TLSEnabled() {
		return fmt.Errorf("%w: tls_client_ca requires tls_cert or tls_self_signed", ErrInvalidConfig)
	}
	if c.TLSSelfSigned && c.TLSCert != "" {
		return fmt.Errorf("%w: tls_self_signed and tls_cert are mutually exclusive", ErrInvalidConfig)
	}
	if c.TLSSelfSigned && c.TLSDir == "" {
		return fmt.Errorf("%w: tls_self_signed requires tls_dir", ErrInvalidConfig)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("%w: handshake_timeout must be positive", ErrInvalidConfig)
	}
	if c.ChallengeMaxAge < 0 {
		return fmt.Errorf("%w: challenge_max_age must not be negative", ErrInvalidConfig)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: max_message_size must be positive", ErrInvalidConfig)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("%w: max_sessions must not be negative", ErrInvalidConfig)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: shutdown_timeout must not be negative", ErrInvalidConfig)
	}
	if _, err := catalog.NewPolicy(c.SuggestionPolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// LoadSecret returns the shared secret, reading SecretFile when set.
func (c *Config) LoadSecret() (auth.Secret, error) {
	if c.SecretFile != "" {
		return auth.LoadSecretFile(c.SecretFile)
	}
	return auth.NewSecret(c.Secret)
}

// TLSEnabled reports whether the pull listener uses TLS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" || c.TLSSelfSigned
}

// ByteSize is a byte count that also parses human-readable sizes such as
// "8MiB" or "512 KB".
type ByteSize int64

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := humanize.ParseBytes(string(text))
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", text, err)
	}
	*b = ByteSize(n)
	return nil
}

// UnmarshalYAML accepts integers and size strings.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	return b.UnmarshalText([]byte(node.Value))
}

// MarshalText implements encoding.TextMarshaler.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// String formats the size with IEC units.
func (b ByteSize) String() string {
	if b < 0 {
		return fmt.Sprintf("%d B", int64(b))
	}
	return humanize.IBytes(uint64(b))
}
