package session

import (
	"errors"
	"fmt"
)

// Mode is the kind of session.
type Mode uint8

const (
	// ModePull is a stream session driven by the command loop.
	ModePull Mode = iota
	// ModePush is one telemetry intake request.
	ModePush
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModePull:
		return "pull"
	case ModePush:
		return "push"
	default:
		return "unknown"
	}
}

// State is the session lifecycle state.
type State uint8

const (
	StateUnauthenticated State = iota
	StateAuthenticatedPull
	StateAuthenticatedPush
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	case StateAuthenticatedPull:
		return "AUTHENTICATED_PULL"
	case StateAuthenticatedPush:
		return "AUTHENTICATED_PUSH"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ErrInvalidTransition indicates a state change the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransition reports whether from → to is allowed.
func validTransition(from, to State) bool {
	switch from {
	case StateUnauthenticated:
		return to == StateAuthenticatedPull || to == StateAuthenticatedPush || to == StateClosed
	case StateAuthenticatedPull, StateAuthenticatedPush:
		return to == StateClosed
	default:
		return false
	}
}

func transitionError(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
