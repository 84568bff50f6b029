package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/rmon-protocol/rmon-go/pkg/log"
)

// DefaultTLSHandshakeTimeout bounds the TLS handshake of a new connection.
const DefaultTLSHandshakeTimeout = 10 * time.Second

// Server errors.
var (
	ErrServerRunning    = errors.New("server already running")
	ErrNoHandler        = errors.New("handler is required")
	ErrAdmissionLimit   = errors.New("admission limit reached")
	ErrConnectionClosed = errors.New("connection closed")
)

// Handler serves one accepted connection. ServeConn runs on the
// connection's own goroutine; the server closes the connection when it
// returns.
type Handler interface {
	ServeConn(ctx context.Context, conn *Conn)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, conn *Conn)

// ServeConn calls f(ctx, conn).
func (f HandlerFunc) ServeConn(ctx context.Context, conn *Conn) {
	f(ctx, conn)
}

// ServerConfig configures a stream server.
type ServerConfig struct {
	// Address to listen on (e.g., ":4444" or "127.0.0.1:4444").
	Address string

	// Mode names the listener in protocol events (pull, echo).
	Mode string

	// TLSConfig enables TLS when non-nil. Plain TCP otherwise.
	TLSConfig *tls.Config

	// MaxMessageSize is the maximum message size (default: 8 MB).
	MaxMessageSize int

	// MaxConnections caps concurrently served connections.
	// Zero means unbounded. Connections over the cap are closed immediately.
	MaxConnections int64

	// Handler serves each accepted connection. Required.
	Handler Handler

	// Logger for protocol logging (optional).
	Logger log.Logger

	// OnConnect is called when a new connection is established.
	OnConnect func(conn *Conn)

	// OnDisconnect is called when a connection is closed.
	OnDisconnect func(conn *Conn)

	// OnError is called when an error occurs outside a handler.
	OnError func(err error)
}

// Server accepts stream connections and hands each one to a Handler.
type Server struct {
	config   ServerConfig
	listener net.Listener
	sem      *semaphore.Weighted

	// Active connections
	conns   map[*Conn]struct{}
	connsMu sync.RWMutex

	// State
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new stream server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Handler == nil {
		return nil, ErrNoHandler
	}
	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.MaxConnections < 0 {
		return nil, fmt.Errorf("max connections must not be negative")
	}

	s := &Server{
		config: config,
		conns:  make(map[*Conn]struct{}),
	}
	if config.MaxConnections > 0 {
		s.sem = semaphore.NewWeighted(config.MaxConnections)
	}
	return s, nil
}

// Start binds the listener and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	if err := s.Serve(ctx, listener); err != nil {
		listener.Close()
		return err
	}
	return nil
}

// Serve begins accepting connections on an existing listener.
// It returns immediately; connections are served in the background.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Close closes the listener. New connections are refused while existing
// connections keep running until their handlers return.
func (s *Server) Close() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Wait blocks until every connection handler has returned or ctx is done.
// When ctx is done first, all remaining connections are closed and
// ctx.Err() is returned after the handlers exit.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if s.cancel != nil {
			s.cancel()
		}
		s.CloseAll()
		<-done
		return ctx.Err()
	}
}

// Stop closes the listener and waits for connections to finish, forcing
// them closed when ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return s.Wait(ctx)
}

// CloseAll closes every active connection.
func (s *Server) CloseAll() {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// acceptLoop accepts incoming connections.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.reportError(fmt.Errorf("accept error: %w", err))
			continue
		}

		if s.sem != nil && !s.sem.TryAcquire(1) {
			s.reject(conn)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// reject closes a connection refused by the admission limit.
func (s *Server) reject(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	conn.Close()

	if s.config.Logger != nil {
		s.config.Logger.Log(log.Event{
			Timestamp:  time.Now(),
			Layer:      log.LayerTransport,
			Category:   log.CategoryError,
			Mode:       s.config.Mode,
			RemoteAddr: remote,
			Error: &log.ErrorEventData{
				Layer:   log.LayerTransport,
				Message: ErrAdmissionLimit.Error(),
				Fatal:   true,
				Context: "accept",
			},
		})
	}
	s.reportError(fmt.Errorf("%w: rejected %s", ErrAdmissionLimit, remote))
}

// handleConnection processes a single connection.
func (s *Server) handleConnection(raw net.Conn) {
	defer s.wg.Done()
	if s.sem != nil {
		defer s.sem.Release(1)
	}

	netConn := raw
	if s.config.TLSConfig != nil {
		tlsConn := tls.Server(raw, s.config.TLSConfig)
		hsCtx, cancel := context.WithTimeout(s.ctx, DefaultTLSHandshakeTimeout)
		err := tlsConn.HandshakeContext(hsCtx)
		cancel()
		if err != nil {
			raw.Close()
			s.reportError(fmt.Errorf("TLS handshake failed: %w", err))
			return
		}
		netConn = tlsConn
	}

	// Generate unique connection ID
	connID := uuid.New().String()

	conn := newConn(netConn, connID, s.config.Mode, s.config.MaxMessageSize, s.config.Logger)
	conn.logState("", "CONNECTED", "")

	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()

	if s.config.OnConnect != nil {
		s.config.OnConnect(conn)
	}

	s.config.Handler.ServeConn(s.ctx, conn)
	conn.Close()

	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()

	conn.logState("CONNECTED", "DISCONNECTED", "")

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(conn)
	}
}

func (s *Server) reportError(err error) {
	if s.config.OnError != nil {
		s.config.OnError(err)
	}
}
