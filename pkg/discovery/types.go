package discovery

import (
	"context"
	"errors"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceTypePull is the service type for the pull-mode stream listener.
	ServiceTypePull = "_rmon._tcp"

	// ServiceTypePush is the service type for the HTTP intake.
	ServiceTypePush = "_rmon-http._tcp"

	// ServiceTypeEcho is the service type for the echo probe listener.
	ServiceTypeEcho = "_rmon-echo._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// ProtocolVersion is advertised in the v TXT key.
	ProtocolVersion = "1"
)

// Listener modes.
const (
	ModePull = "pull"
	ModePush = "push"
	ModeEcho = "echo"
)

// TXT record keys.
const (
	TXTKeyVersion = "v"
	TXTKeyMode    = "mode"
	TXTKeyTLS     = "tls"
)

// BrowseTimeout is the default timeout for mDNS browsing.
const BrowseTimeout = 10 * time.Second

// MaxInstanceNameLen is the DNS label limit.
const MaxInstanceNameLen = 63

// Errors.
var (
	ErrUnknownMode     = errors.New("unknown listener mode")
	ErrInvalidPort     = errors.New("invalid port")
	ErrMissingRequired = errors.New("missing required TXT field")
	ErrNotFound        = errors.New("service not found")
)

// ServiceType returns the mDNS service type for a listener mode.
func ServiceType(mode string) (string, error) {
	switch mode {
	case ModePull:
		return ServiceTypePull, nil
	case ModePush:
		return ServiceTypePush, nil
	case ModeEcho:
		return ServiceTypeEcho, nil
	default:
		return "", ErrUnknownMode
	}
}

// Listener describes one bound listener to advertise.
type Listener struct {
	Mode string
	Port int
	TLS  bool
}

// Validate checks the listener fields.
func (l Listener) Validate() error {
	if _, err := ServiceType(l.Mode); err != nil {
		return err
	}
	if l.Port <= 0 || l.Port > 65535 {
		return ErrInvalidPort
	}
	return nil
}

// Service is a discovered listener.
type Service struct {
	InstanceName string
	Host         string
	Port         int
	Addresses    []string
	Mode         string
	Version      string
	TLS          bool
}

// AdvertiserConfig configures the mDNS advertiser.
type AdvertiserConfig struct {
	// Interface restricts advertising to one network interface.
	// Empty means all interfaces.
	Interface string

	// TTL overrides the record TTL.
	TTL time.Duration
}

// BrowserConfig configures the mDNS browser.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface.
	Interface string
}

// Advertiser publishes listeners.
type Advertiser interface {
	Advertise(ctx context.Context, instance string, l Listener) error
	Stop(mode string) error
	StopAll()
}

// Browser finds advertised listeners.
type Browser interface {
	Browse(ctx context.Context, mode string) (<-chan *Service, error)
	FindFirst(ctx context.Context, mode string) (*Service, error)
}
