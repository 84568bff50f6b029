package service

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rmon-protocol/rmon-go/pkg/auth"
	"github.com/rmon-protocol/rmon-go/pkg/catalog"
	"github.com/rmon-protocol/rmon-go/pkg/cert"
	"github.com/rmon-protocol/rmon-go/pkg/config"
	"github.com/rmon-protocol/rmon-go/pkg/discovery"
	"github.com/rmon-protocol/rmon-go/pkg/echo"
	"github.com/rmon-protocol/rmon-go/pkg/intake"
	"github.com/rmon-protocol/rmon-go/pkg/log"
	"github.com/rmon-protocol/rmon-go/pkg/report"
	"github.com/rmon-protocol/rmon-go/pkg/session"
	"github.com/rmon-protocol/rmon-go/pkg/statuspage"
	"github.com/rmon-protocol/rmon-go/pkg/storage"
	"github.com/rmon-protocol/rmon-go/pkg/transport"
)

// Options injects collaborators. Zero values select the defaults.
type Options struct {
	// Output receives rendered reports (default: os.Stdout).
	Output io.Writer

	// Logger is the operational logger (default: slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger receives protocol events in addition to the capture
	// file configured by config.Config.ProtocolLog.
	ProtocolLogger log.Logger

	// Sink stores decoded images (default: a DirSink at StorageDir).
	Sink storage.Sink

	// Advertiser publishes listeners when mDNS is enabled
	// (default: discovery.MDNSAdvertiser).
	Advertiser discovery.Advertiser

	// LocalIP reports the server address on the status page
	// (default: discovery.LocalIP).
	LocalIP func() string

	// Clock returns the current time (default: time.Now).
	Clock func() time.Time
}

// Service runs the configured listeners.
type Service struct {
	config config.Config
	logger *slog.Logger
	clock  func() time.Time

	registry   *session.Registry
	renderer   *report.Renderer
	plog       log.Logger
	fileLogger *log.FileLogger
	advertiser discovery.Advertiser
	localIP    func() string

	// fingerprint is set when the pull listener uses a generated identity.
	fingerprint string

	pull   *transport.Server
	echo   *transport.Server
	intake *intake.Server

	// cancel ends the listeners' lifetime context once Stop has drained.
	cancel context.CancelFunc

	mu       sync.RWMutex
	state    ServiceState
	started  time.Time
	serverIP string
	handlers []EventHandler
}

// New builds a Service from a validated configuration.
func New(cfg config.Config, opts Options) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.LocalIP == nil {
		opts.LocalIP = discovery.LocalIP
	}

	s := &Service{
		config:     cfg,
		logger:     opts.Logger,
		clock:      opts.Clock,
		registry:   session.NewRegistry(),
		advertiser: opts.Advertiser,
		localIP:    opts.LocalIP,
	}

	if err := s.buildProtocolLogger(opts.ProtocolLogger); err != nil {
		return nil, err
	}

	sink := opts.Sink
	if sink == nil {
		dir, err := storage.NewDirSink(cfg.StorageDir)
		if err != nil {
			s.closeProtocolLog()
			return nil, err
		}
		sink = dir
	}
	s.renderer = report.New(report.Config{
		Output: opts.Output,
		Sink:   sink,
		Logger: opts.Logger,
		Clock:  opts.Clock,
	})

	if err := s.buildListeners(); err != nil {
		s.closeProtocolLog()
		return nil, err
	}
	return s, nil
}

func (s *Service) buildProtocolLogger(extra log.Logger) error {
	loggers := []log.Logger{extra}
	if s.config.ProtocolLog != "" {
		fl, err := log.NewFileLogger(s.config.ProtocolLog)
		if err != nil {
			return fmt.Errorf("failed to open protocol log: %w", err)
		}
		s.fileLogger = fl
		loggers = append(loggers, fl)
	}
	if multi := log.NewMultiLogger(loggers...); multi.Len() > 0 {
		s.plog = multi
	}
	return nil
}

func (s *Service) buildListeners() error {
	cfg := s.config

	if cfg.PullAddress != "" {
		secret, err := cfg.LoadSecret()
		if err != nil {
			return err
		}
		authenticator, err := auth.New(auth.Config{
			Secret: secret,
			MaxAge: cfg.ChallengeMaxAge,
			Clock:  s.clock,
		})
		if err != nil {
			return err
		}

		var tlsConfig *tls.Config
		if cfg.TLSEnabled() {
			material, err := s.loadTLSMaterial()
			if err != nil {
				return err
			}
			if tlsConfig, err = transport.NewServerTLSConfig(material); err != nil {
				return err
			}
		}

		handler, err := session.NewHandler(session.Config{
			Auth:             authenticator,
			HandshakeTimeout: cfg.HandshakeTimeout,
			Renderer:         s.renderer,
			Registry:         s.registry,
			Logger:           s.logger.With("mode", ModePull),
			Clock:            s.clock,
		})
		if err != nil {
			return err
		}

		s.pull, err = transport.NewServer(s.streamConfig(ModePull, cfg.PullAddress, handler, tlsConfig, cfg.MaxSessions))
		if err != nil {
			return err
		}
	}

	if cfg.EchoAddress != "" {
		var err error
		handler := echo.NewHandler(s.logger.With("mode", ModeEcho))
		s.echo, err = transport.NewServer(s.streamConfig(ModeEcho, cfg.EchoAddress, handler, nil, 0))
		if err != nil {
			return err
		}
	}

	if cfg.PushAddress != "" {
		policy, err := catalog.NewPolicy(cfg.SuggestionPolicy)
		if err != nil {
			return err
		}
		handler, err := intake.NewHandler(intake.Config{
			Renderer:       s.renderer,
			Policy:         policy,
			Registry:       s.registry,
			MaxBodySize:    int64(cfg.MaxMessageSize),
			Status:         s.Status,
			Logger:         s.logger.With("mode", ModePush),
			ProtocolLogger: s.plog,
			Clock:          s.clock,
		})
		if err != nil {
			return err
		}
		s.intake = intake.NewServer(intake.ServerConfig{
			Address: cfg.PushAddress,
			Handler: handler,
			Logger:  s.logger.With("mode", ModePush),
		})
	}
	return nil
}

// loadTLSMaterial returns the configured key pair, or the generated
// identity from TLSDir when TLSSelfSigned is set.
func (s *Service) loadTLSMaterial() (*transport.TLSConfig, error) {
	cfg := s.config
	if !cfg.TLSSelfSigned {
		return transport.LoadTLSConfig(cfg.TLSCert, cfg.TLSKey, cfg.TLSClientCA)
	}

	hosts := []string{"localhost", "127.0.0.1", s.localIP()}
	id, created, err := cert.LoadOrCreate(cert.NewFileStore(cfg.TLSDir), cfg.MDNSName, hosts, s.clock())
	if err != nil {
		return nil, fmt.Errorf("self-signed identity: %w", err)
	}
	s.fingerprint = id.Fingerprint()
	if created {
		s.logger.Info("generated TLS identity", "dir", cfg.TLSDir, "fingerprint", s.fingerprint, "expires", id.ExpiresAt())
	} else {
		s.logger.Info("loaded TLS identity", "dir", cfg.TLSDir, "fingerprint", s.fingerprint, "expires", id.ExpiresAt())
	}

	material := &transport.TLSConfig{Certificate: id.TLSCertificate()}
	if cfg.TLSClientCA != "" {
		if material.ClientCAs, err = transport.LoadCertPool(cfg.TLSClientCA); err != nil {
			return nil, err
		}
	}
	return material, nil
}

func (s *Service) streamConfig(mode, addr string, h transport.Handler, tlsConfig *tls.Config, maxConns int64) transport.ServerConfig {
	return transport.ServerConfig{
		Address:        addr,
		Mode:           mode,
		TLSConfig:      tlsConfig,
		MaxMessageSize: int(s.config.MaxMessageSize),
		MaxConnections: maxConns,
		Handler:        h,
		Logger:         s.plog,
		OnConnect: func(c *transport.Conn) {
			s.emit(Event{Type: EventConnected, Mode: mode, Addr: c.RemoteAddr(), ConnID: c.ConnID()})
		},
		OnDisconnect: func(c *transport.Conn) {
			s.emit(Event{Type: EventDisconnected, Mode: mode, Addr: c.RemoteAddr(), ConnID: c.ConnID()})
		},
		OnError: func(err error) {
			typ := EventError
			if errors.Is(err, transport.ErrAdmissionLimit) {
				typ = EventRejected
			}
			s.logger.Warn("listener error", "mode", mode, "error", err)
			s.emit(Event{Type: typ, Mode: mode, Error: err})
		},
	}
}

// OnEvent registers an event handler.
func (s *Service) OnEvent(handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

func (s *Service) emit(e Event) {
	s.mu.RLock()
	handlers := append([]EventHandler(nil), s.handlers...)
	s.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}

// State returns the service state.
func (s *Service) State() ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Start binds every enabled listener. Either all listeners are bound or
// none is and the error is returned. Sessions keep ctx's values but not its
// cancellation: only Stop ends them.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateStarting
	s.mu.Unlock()

	ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	var g errgroup.Group
	if s.pull != nil {
		g.Go(func() error { return s.pull.Start(ctx) })
	}
	if s.echo != nil {
		g.Go(func() error { return s.echo.Start(ctx) })
	}
	if s.intake != nil {
		g.Go(func() error { return s.intake.Start(ctx) })
	}
	if err := g.Wait(); err != nil {
		s.abortStart()
		return err
	}

	serverIP := s.localIP()
	s.mu.Lock()
	s.state = StateRunning
	s.started = s.clock()
	s.serverIP = serverIP
	s.mu.Unlock()

	for _, l := range s.Listeners() {
		s.logger.Info("listener started", "mode", l.Mode, "addr", l.Addr.String(), "tls", l.TLS)
		s.emit(Event{Type: EventListening, Mode: l.Mode, Addr: l.Addr})
	}

	if s.config.MDNS {
		s.advertise(ctx)
	}
	return nil
}

func (s *Service) abortStart() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if s.pull != nil {
		s.pull.Stop(ctx)
	}
	if s.echo != nil {
		s.echo.Stop(ctx)
	}
	if s.intake != nil {
		s.intake.Stop(ctx)
	}
	s.cancel()
	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
}

func (s *Service) advertise(ctx context.Context) {
	if s.advertiser == nil {
		s.advertiser = discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{})
	}
	for _, l := range s.Listeners() {
		tcp, ok := l.Addr.(*net.TCPAddr)
		if !ok {
			continue
		}
		err := s.advertiser.Advertise(ctx, s.config.MDNSName, discovery.Listener{
			Mode: l.Mode,
			Port: tcp.Port,
			TLS:  l.TLS,
		})
		if err != nil {
			s.logger.Warn("mDNS advertisement failed", "mode", l.Mode, "error", err)
			continue
		}
		s.logger.Info("advertising via mDNS", "mode", l.Mode, "port", tcp.Port)
	}
}

// Stop closes every listener, then waits for in-flight sessions and
// requests until ctx expires, after which they are closed.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.state = StateStopping
	s.mu.Unlock()

	if s.advertiser != nil {
		s.advertiser.StopAll()
	}

	if s.pull != nil {
		s.pull.Close()
	}
	if s.echo != nil {
		s.echo.Close()
	}

	var g errgroup.Group
	if s.pull != nil {
		g.Go(func() error { return s.pull.Wait(ctx) })
	}
	if s.echo != nil {
		g.Go(func() error { return s.echo.Wait(ctx) })
	}
	if s.intake != nil {
		g.Go(func() error { return s.intake.Stop(ctx) })
	}
	err := g.Wait()
	s.cancel()

	s.registry.CloseAll()
	s.closeProtocolLog()

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.logger.Info("service stopped")
	return err
}

func (s *Service) closeProtocolLog() {
	if s.fileLogger == nil {
		return
	}
	if n := s.fileLogger.Dropped(); n > 0 {
		s.logger.Warn("protocol log dropped events", "count", n)
	}
	s.fileLogger.Close()
}

// Listeners returns the bound listeners.
func (s *Service) Listeners() []ListenerInfo {
	var out []ListenerInfo
	if s.pull != nil && s.pull.Addr() != nil {
		out = append(out, ListenerInfo{Mode: ModePull, Addr: s.pull.Addr(), TLS: s.config.TLSEnabled()})
	}
	if s.intake != nil && s.intake.Addr() != nil {
		out = append(out, ListenerInfo{Mode: ModePush, Addr: s.intake.Addr()})
	}
	if s.echo != nil && s.echo.Addr() != nil {
		out = append(out, ListenerInfo{Mode: ModeEcho, Addr: s.echo.Addr()})
	}
	return out
}

// Addr returns the bound address of a listener, or nil.
func (s *Service) Addr(mode string) (net.Addr, error) {
	for _, l := range s.Listeners() {
		if l.Mode == mode {
			return l.Addr, nil
		}
	}
	switch mode {
	case ModePull, ModePush, ModeEcho:
		return nil, ErrNotStarted
	default:
		return nil, ErrUnknownMode
	}
}

// Sessions returns a snapshot of the active sessions.
func (s *Service) Sessions() []session.Info {
	return s.registry.Snapshot()
}

// Kick closes one session by ID.
func (s *Service) Kick(id string) error {
	return s.registry.Kick(id)
}

// Status returns the status page contents.
func (s *Service) Status() statuspage.Status {
	s.mu.RLock()
	st := statuspage.Status{
		ServerIP: s.serverIP,
		Started:  s.started,
	}
	s.mu.RUnlock()

	st.Now = s.clock()
	st.ActiveSessions = s.registry.Len()
	st.TelemetryTypes = report.TelemetryTypes()
	st.TLSFingerprint = s.fingerprint

	for _, l := range s.Listeners() {
		st.Endpoints = append(st.Endpoints, statuspage.Endpoint{Mode: l.Mode, Address: l.Addr.String()})
		if tcp, ok := l.Addr.(*net.TCPAddr); ok && (l.Mode == ModePush || st.ServerPort == 0) {
			st.ServerPort = tcp.Port
		}
	}
	if st.ServerIP == "" {
		st.ServerIP = discovery.FallbackIP
	}
	return st
}
