package transport

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rmon-protocol/rmon-go/pkg/log"
)

// ErrReadTimeout indicates that a read deadline expired before a full
// message arrived.
var ErrReadTimeout = errors.New("read timeout")

// Conn is one framed stream connection.
// Reads must come from a single goroutine; writes are serialized.
type Conn struct {
	netConn    net.Conn
	framer     *Framer
	connID     string
	mode       string
	remoteAddr net.Addr
	logger     log.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn wraps an established net.Conn with newline framing.
// A zero maxSize selects DefaultMaxMessageSize.
func NewConn(netConn net.Conn, connID, mode string, maxSize int, logger log.Logger) *Conn {
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}
	return newConn(netConn, connID, mode, maxSize, logger)
}

func newConn(netConn net.Conn, connID, mode string, maxSize int, logger log.Logger) *Conn {
	framer := NewFramerWithMaxSize(netConn, maxSize)
	if logger != nil {
		framer.SetLogger(logger, connID)
	}
	return &Conn{
		netConn:    netConn,
		framer:     framer,
		connID:     connID,
		mode:       mode,
		remoteAddr: netConn.RemoteAddr(),
		logger:     logger,
		closed:     make(chan struct{}),
	}
}

// ConnID returns the unique connection identifier.
func (c *Conn) ConnID() string {
	return c.connID
}

// Mode returns the listener mode this connection belongs to.
func (c *Conn) Mode() string {
	return c.mode
}

// RemoteAddr returns the remote address of the peer.
func (c *Conn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// LocalAddr returns the local address of the connection.
func (c *Conn) LocalAddr() net.Addr {
	return c.netConn.LocalAddr()
}

// TLSState returns the TLS connection state and whether the connection
// uses TLS at all.
func (c *Conn) TLSState() (tls.ConnectionState, bool) {
	if tc, ok := c.netConn.(*tls.Conn); ok {
		return tc.ConnectionState(), true
	}
	return tls.ConnectionState{}, false
}

// NetConn returns the underlying connection for unframed protocols.
func (c *Conn) NetConn() net.Conn {
	return c.netConn
}

// Logger returns the protocol logger, never nil.
func (c *Conn) Logger() log.Logger {
	return log.OrNoop(c.logger)
}

// Send writes one pre-encoded message.
func (c *Conn) Send(data []byte) error {
	return c.framer.WriteLine(data)
}

// WriteMessage encodes msg as JSON and writes it.
func (c *Conn) WriteMessage(msg any) error {
	return c.framer.WriteMessage(msg)
}

// ReadMessage blocks until one complete JSON object arrives.
func (c *Conn) ReadMessage() ([]byte, error) {
	data, err := c.framer.ReadMessage()
	return data, c.mapReadError(err)
}

// ReadMessageTimeout is ReadMessage bounded by timeout. A zero timeout
// blocks indefinitely.
func (c *Conn) ReadMessageTimeout(timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		return c.ReadMessage()
	}
	if err := c.netConn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("failed to set read deadline: %w", err)
	}
	defer c.netConn.SetReadDeadline(time.Time{})

	return c.ReadMessage()
}

func (c *Conn) mapReadError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrReadTimeout, err)
	}
	select {
	case <-c.closed:
		return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
	default:
	}
	return err
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.netConn.Close()
	})
	return err
}

// Done is closed once Close has been called.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// logState records a connection state change.
func (c *Conn) logState(oldState, newState, reason string) {
	if c.logger == nil {
		return
	}
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		Mode:         c.mode,
		RemoteAddr:   c.remoteAddr.String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
