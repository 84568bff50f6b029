package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/rmon-protocol/rmon-go/pkg/log"
)

// DefaultConnectTimeout is the default dial timeout.
const DefaultConnectTimeout = 30 * time.Second

// ClientConfig configures a stream client.
type ClientConfig struct {
	// TLSConfig enables TLS when non-nil.
	TLSConfig *tls.Config

	// MaxMessageSize is the maximum message size (default: 8 MB).
	MaxMessageSize int

	// ConnectTimeout is the connection timeout (default: 30s).
	ConnectTimeout time.Duration

	// Mode names the connection in protocol events.
	Mode string

	// Logger for protocol logging (optional).
	Logger log.Logger
}

// Client dials framed stream connections.
type Client struct {
	config ClientConfig
}

// NewClient creates a new stream client.
func NewClient(config ClientConfig) *Client {
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	return &Client{config: config}
}

// Connect establishes a connection to the specified address.
func (c *Client) Connect(ctx context.Context, address string) (*Conn, error) {
	// Apply timeout from config if context doesn't have one
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	raw, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	netConn := raw
	if c.config.TLSConfig != nil {
		tlsConn := tls.Client(raw, c.config.TLSConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, fmt.Errorf("TLS handshake failed: %w", err)
		}
		netConn = tlsConn
	}

	conn := newConn(netConn, uuid.New().String(), c.config.Mode, c.config.MaxMessageSize, c.config.Logger)
	conn.logState("", "CONNECTED", "dialed")
	return conn, nil
}
