package intake

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// DefaultReadHeaderTimeout bounds how long a client may take to send headers.
const DefaultReadHeaderTimeout = 10 * time.Second

// ErrServerRunning is returned when Start is called twice.
var ErrServerRunning = errors.New("intake: server already running")

// ServerConfig configures the intake HTTP listener.
type ServerConfig struct {
	// Address is the listen address (e.g. ":8080").
	Address string

	// TLSConfig enables HTTPS when set.
	TLSConfig *tls.Config

	// Handler serves requests (required).
	Handler http.Handler

	// Logger is the operational logger (default: slog.Default()).
	Logger *slog.Logger
}

// Server runs the intake handler on its own listener.
type Server struct {
	config ServerConfig
	logger *slog.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
	err      error
}

// NewServer creates an intake server.
func NewServer(config ServerConfig) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{config: config, logger: logger}
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	if err := s.Serve(ln); err != nil {
		ln.Close()
		return err
	}
	return nil
}

// Serve serves on an existing listener in the background.
func (s *Server) Serve(ln net.Listener) error {
	if s.config.Handler == nil {
		return errors.New("intake: handler is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return ErrServerRunning
	}

	if s.config.TLSConfig != nil {
		ln = tls.NewListener(ln, s.config.TLSConfig)
	}
	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.config.Handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.done = make(chan struct{})

	srv, done := s.srv, s.done
	go func() {
		defer close(done)
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}()

	s.logger.Info("intake listening", "addr", ln.Addr().String(), "tls", s.config.TLSConfig != nil)
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and waits for in-flight requests until ctx
// expires, after which remaining connections are closed.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	err := srv.Shutdown(ctx)
	if err != nil {
		srv.Close()
	}
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.err
}
