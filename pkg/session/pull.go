package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/rmon-protocol/rmon-go/pkg/auth"
	"github.com/rmon-protocol/rmon-go/pkg/catalog"
	"github.com/rmon-protocol/rmon-go/pkg/log"
	"github.com/rmon-protocol/rmon-go/pkg/report"
	"github.com/rmon-protocol/rmon-go/pkg/transport"
	"github.com/rmon-protocol/rmon-go/pkg/wire"
)

// DefaultHandshakeTimeout bounds the wait for the agent's auth response.
const DefaultHandshakeTimeout = 10 * time.Second

// Handshake acknowledgement texts.
const (
	AuthSuccessMessage = "Authentication successful"
	AuthErrorMessage   = "Authentication failed"
)

// Conn is the framed connection a pull session runs on.
// *transport.Conn implements it.
type Conn interface {
	ReadMessage() ([]byte, error)
	ReadMessageTimeout(timeout time.Duration) ([]byte, error)
	WriteMessage(msg any) error
	RemoteAddr() net.Addr
	ConnID() string
	Logger() log.Logger
	Close() error
}

// ResultRenderer consumes decoded command results.
// *report.Renderer implements it.
type ResultRenderer interface {
	Result(command string, res *wire.Result) (*report.Report, error)
}

// Config configures pull sessions.
type Config struct {
	// Auth issues and verifies challenges. Required.
	Auth *auth.Authenticator

	// HandshakeTimeout bounds the auth response read (default: 10s).
	HandshakeTimeout time.Duration

	// Renderer receives command results. Required.
	Renderer ResultRenderer

	// Registry tracks live sessions (optional).
	Registry *Registry

	// Logger for operational logging (default: slog.Default()).
	Logger *slog.Logger

	// Clock returns the current time (default: time.Now).
	Clock func() time.Time
}

func (c *Config) applyDefaults() error {
	if c.Auth == nil {
		return errors.New("authenticator is required")
	}
	if c.Renderer == nil {
		return errors.New("renderer is required")
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return nil
}

// Pull drives one pull-mode connection.
type Pull struct {
	*Session
	conn   Conn
	config Config
	logger *slog.Logger
}

// NewPull creates a pull session on conn. The session ID is the peer
// address.
func NewPull(conn Conn, config Config) (*Pull, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	s := newSession(conn.RemoteAddr().String(), conn.ConnID(), ModePull, conn, conn.Logger())
	return &Pull{
		Session: s,
		conn:    conn,
		config:  config,
		logger:  config.Logger.With("session", s.id, "conn_id", s.connID),
	}, nil
}

// Run performs the handshake and, if it succeeds, the command loop. It
// returns nil when the session ends cleanly. The session is registered for
// the duration of Run and always closed on return. Cancelling ctx closes
// the connection.
func (p *Pull) Run(ctx context.Context) (err error) {
	if reg := p.config.Registry; reg != nil {
		if err := reg.Add(p.Session); err != nil {
			p.closeWithReason("duplicate")
			return err
		}
		defer reg.Remove(p.Session)
	}

	stop := context.AfterFunc(ctx, func() { p.closeWithReason("shutdown") })
	defer stop()

	defer func() {
		reason := "done"
		if err != nil {
			reason = err.Error()
		}
		p.closeWithReason(reason)
	}()

	if err := p.Handshake(); err != nil {
		return err
	}
	return p.CommandLoop()
}

// Handshake sends a challenge and verifies the single response.
func (p *Pull) Handshake() error {
	ch := p.config.Auth.Issue()
	if err := p.send(ch.Message(), wire.TypeAuthChallenge, ""); err != nil {
		return err
	}

	data, err := p.conn.ReadMessageTimeout(p.config.HandshakeTimeout)
	if errors.Is(err, transport.ErrBlankLine) {
		err = fmt.Errorf("%w: empty response", auth.ErrAuthFailed)
		p.rejectAuth(err)
		return err
	}
	if err != nil {
		err = p.readError(err)
		if errors.Is(err, transport.ErrReadTimeout) {
			err = fmt.Errorf("%w: %w", ErrHandshakeTimeout, err)
		}
		p.rejectAuth(err)
		return err
	}

	resp, err := wire.DecodeAuthResponse(data)
	if err != nil {
		err = fmt.Errorf("%w: %w", auth.ErrAuthFailed, err)
		p.rejectAuth(err)
		return err
	}
	p.logInbound("auth_response", "", "")

	if err := p.config.Auth.Verify(ch, resp.Response); err != nil {
		p.rejectAuth(err)
		return err
	}

	if err := p.transition(StateAuthenticatedPull, "challenge verified"); err != nil {
		return err
	}
	p.logger.Info("agent authenticated")
	return p.send(wire.AuthResult{Type: wire.TypeAuthSuccess, Message: AuthSuccessMessage}, wire.TypeAuthSuccess, "")
}

// rejectAuth sends auth_error on a best-effort basis and logs the failure.
func (p *Pull) rejectAuth(cause error) {
	p.logger.Warn("authentication failed", "error", cause)
	p.logError(cause, "handshake")
	if errors.Is(cause, ErrTransport) || errors.Is(cause, ErrClosed) {
		return
	}
	p.send(wire.AuthResult{Type: wire.TypeAuthError, Message: AuthErrorMessage}, wire.TypeAuthError, "")
}

// CommandLoop offers the menu until the agent disconnects.
func (p *Pull) CommandLoop() error {
	if p.State() != StateAuthenticatedPull {
		return ErrNotAuthenticated
	}

	for {
		if err := p.send(catalog.Menu(), wire.TypeCommandMenu, ""); err != nil {
			return err
		}

		data, err := p.readSelection()
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.logger.Info("agent closed session")
				return nil
			}
			return p.readError(err)
		}

		sel, err := wire.DecodeSelection(data)
		if err != nil {
			p.logger.Warn("undecodable selection", "error", err)
			p.logError(fmt.Errorf("%w: %w", report.ErrDecode, err), "selection")
			continue
		}
		p.logInbound("selection", sel.Command, "")

		desc, ok := catalog.Lookup(sel.Command)
		if !ok {
			p.logger.Warn("unknown command", "command", sel.Command)
			continue
		}
		if !desc.Executable() {
			p.logger.Info("agent requested disconnect")
			return nil
		}

		if err := p.execute(desc.ID); err != nil {
			return err
		}
	}
}

// readSelection reads the agent's menu choice. Blank lines carry no choice
// and are skipped.
func (p *Pull) readSelection() ([]byte, error) {
	for {
		data, err := p.conn.ReadMessage()
		if !errors.Is(err, transport.ErrBlankLine) {
			return data, err
		}
	}
}

// execute sends one execute_command and consumes exactly one result.
func (p *Pull) execute(command string) error {
	p.recordCommand(command)
	p.logger.Info("executing command", "command", command)

	start := time.Now()
	req := wire.ExecuteCommand{
		Type:      wire.TypeExecuteCommand,
		Command:   command,
		Timestamp: p.config.Clock().Unix(),
	}
	if err := p.send(req, wire.TypeExecuteCommand, command); err != nil {
		return err
	}

	data, err := p.conn.ReadMessage()
	if errors.Is(err, transport.ErrBlankLine) {
		err = fmt.Errorf("%w: absent result", report.ErrDecode)
		p.logger.Warn("no result received", "command", command)
		p.logError(err, "result")
		return nil
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: peer closed before result", ErrTransport)
		}
		return p.readError(err)
	}

	res, err := wire.DecodeResult(data)
	if err != nil {
		err = fmt.Errorf("%w: %w", report.ErrDecode, err)
		p.logger.Warn("undecodable result", "command", command, "error", err)
		p.logError(err, "result")
		return nil
	}

	elapsed := time.Since(start)
	p.conn.Logger().Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: p.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Mode:         ModePull.String(),
		RemoteAddr:   p.remoteAddr,
		Message: &log.MessageEvent{
			Type:           "result",
			Command:        command,
			Status:         res.Status,
			Payload:        map[string]any(res.Data),
			ProcessingTime: &elapsed,
		},
	})

	if _, err := p.config.Renderer.Result(command, res); err != nil {
		p.logger.Warn("failed to render result", "command", command, "error", err)
	}
	return nil
}

// send writes msg and records it. Write failures are transport errors.
func (p *Pull) send(msg any, msgType, command string) error {
	if err := p.conn.WriteMessage(msg); err != nil {
		return fmt.Errorf("%w: send %s: %w", ErrTransport, msgType, err)
	}
	p.conn.Logger().Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: p.connID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Mode:         ModePull.String(),
		RemoteAddr:   p.remoteAddr,
		Message:      &log.MessageEvent{Type: msgType, Command: command},
	})
	return nil
}

// readError classifies a read failure.
func (p *Pull) readError(err error) error {
	switch {
	case errors.Is(err, transport.ErrFraming):
		p.logger.Warn("framing error", "error", err)
		return err
	case errors.Is(err, transport.ErrConnectionClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	case errors.Is(err, transport.ErrReadTimeout):
		return err
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: %w", ErrTransport, io.ErrUnexpectedEOF)
	default:
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
}

func (p *Pull) logInbound(msgType, command, status string) {
	p.conn.Logger().Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: p.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Mode:         ModePull.String(),
		RemoteAddr:   p.remoteAddr,
		Message:      &log.MessageEvent{Type: msgType, Command: command, Status: status},
	})
}

func (p *Pull) logError(err error, where string) {
	p.conn.Logger().Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: p.connID,
		Layer:        log.LayerSession,
		Category:     log.CategoryError,
		Mode:         ModePull.String(),
		RemoteAddr:   p.remoteAddr,
		Error: &log.ErrorEventData{
			Layer:   log.LayerSession,
			Message: err.Error(),
			Fatal:   IsFatal(err),
			Context: where,
		},
	})
}

var _ Conn = (*transport.Conn)(nil)
