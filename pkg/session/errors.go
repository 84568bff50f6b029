package session

import (
	"errors"

	"github.com/rmon-protocol/rmon-go/pkg/auth"
	"github.com/rmon-protocol/rmon-go/pkg/transport"
)

// Session errors.
var (
	// ErrTransport wraps I/O failures on the session's connection.
	ErrTransport = errors.New("transport error")

	// ErrHandshakeTimeout indicates the agent did not answer the challenge in time.
	ErrHandshakeTimeout = errors.New("handshake timeout")

	// ErrNotAuthenticated indicates an attempt to run the command loop
	// before the handshake succeeded.
	ErrNotAuthenticated = errors.New("session not authenticated")

	// ErrClosed indicates the session was closed locally, for example by Kick.
	ErrClosed = errors.New("session closed")

	// ErrDuplicateSession indicates a registry entry with the same ID exists.
	ErrDuplicateSession = errors.New("duplicate session id")

	// ErrSessionNotFound indicates no registry entry with the given ID.
	ErrSessionNotFound = errors.New("session not found")
)

// IsFatal reports whether err ends the session. Decode and storage
// problems are not fatal; framing, authentication, and transport
// failures are.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, transport.ErrFraming) ||
		errors.Is(err, auth.ErrAuthFailed) ||
		errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrHandshakeTimeout) ||
		errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrClosed)
}
