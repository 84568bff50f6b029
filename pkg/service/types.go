package service

import (
	"errors"
	"net"
)

// Service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrAlreadyStarted = errors.New("service already started")
	ErrUnknownMode    = errors.New("unknown listener mode")
)

// ServiceState represents the service state.
type ServiceState uint8

const (
	// StateIdle - service created but not started.
	StateIdle ServiceState = iota

	// StateStarting - listeners are being bound.
	StateStarting

	// StateRunning - service is running normally.
	StateRunning

	// StateStopping - service is shutting down.
	StateStopping

	// StateStopped - service has stopped.
	StateStopped
)

// String returns the state name.
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Listener modes.
const (
	ModePull = "pull"
	ModePush = "push"
	ModeEcho = "echo"
)

// Event types for service callbacks.
type EventType uint8

const (
	// EventListening - a listener is bound.
	EventListening EventType = iota

	// EventConnected - a stream connection was accepted.
	EventConnected

	// EventDisconnected - a stream connection ended.
	EventDisconnected

	// EventRejected - a connection was refused by the admission limit.
	EventRejected

	// EventError - a listener reported an error outside any session.
	EventError
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventListening:
		return "LISTENING"
	case EventConnected:
		return "CONNECTED"
	case EventDisconnected:
		return "DISCONNECTED"
	case EventRejected:
		return "REJECTED"
	case EventError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event represents a service event.
type Event struct {
	// Type is the event type.
	Type EventType

	// Mode is the listener that produced the event.
	Mode string

	// Addr is the bound address (EventListening) or the peer address.
	Addr net.Addr

	// ConnID is the connection ID, if any.
	ConnID string

	// Error is set for EventRejected and EventError.
	Error error
}

// EventHandler handles service events.
type EventHandler func(Event)

// ListenerInfo describes one bound listener.
type ListenerInfo struct {
	Mode string
	Addr net.Addr
	TLS  bool
}
