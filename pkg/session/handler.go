package session

import (
	"context"
	"errors"

	"github.com/rmon-protocol/rmon-go/pkg/transport"
)

// Handler serves pull sessions on a transport.Server.
type Handler struct {
	config Config
}

// NewHandler validates config and returns a Handler.
func NewHandler(config Config) (*Handler, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	return &Handler{config: config}, nil
}

// ServeConn runs one pull session to completion.
func (h *Handler) ServeConn(ctx context.Context, conn *transport.Conn) {
	p, err := NewPull(conn, h.config)
	if err != nil {
		h.config.Logger.Error("failed to create session", "error", err)
		return
	}

	h.config.Logger.Info("session started", "session", p.ID(), "conn_id", conn.ConnID())
	err = p.Run(ctx)
	switch {
	case err == nil:
		h.config.Logger.Info("session ended", "session", p.ID(), "commands", p.Info().Commands)
	case errors.Is(err, ErrClosed):
		h.config.Logger.Info("session closed", "session", p.ID(), "reason", err)
	default:
		h.config.Logger.Warn("session failed", "session", p.ID(), "error", err, "fatal", IsFatal(err))
	}
}

var _ transport.Handler = (*Handler)(nil)
