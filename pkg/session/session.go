package session

import (
	"io"
	"sync"
	"time"

	"github.com/rmon-protocol/rmon-go/pkg/log"
)

// Info is a point-in-time snapshot of a session.
type Info struct {
	ID          string
	ConnID      string
	RemoteAddr  string
	Mode        Mode
	State       State
	ConnectedAt time.Time
	DeviceID    string
	Commands    int
	LastCommand string
}

// Session tracks one connection or intake request.
type Session struct {
	id          string
	connID      string
	remoteAddr  string
	mode        Mode
	connectedAt time.Time
	closer      io.Closer
	logger      log.Logger

	mu          sync.Mutex
	state       State
	deviceID    string
	commands    int
	lastCommand string
	closeOnce   sync.Once
}

func newSession(id, connID string, mode Mode, closer io.Closer, logger log.Logger) *Session {
	return &Session{
		id:          id,
		connID:      connID,
		remoteAddr:  id,
		mode:        mode,
		connectedAt: time.Now(),
		closer:      closer,
		logger:      log.OrNoop(logger),
		state:       StateUnauthenticated,
	}
}

// NewPush creates a push session for one intake request. remoteAddr is
// the peer address and doubles as the session ID. closer, if non-nil, is
// called by Close.
func NewPush(remoteAddr, connID string, closer io.Closer, logger log.Logger) *Session {
	return newSession(remoteAddr, connID, ModePush, closer, logger)
}

// ID returns the session identifier (the peer address).
func (s *Session) ID() string {
	return s.id
}

// Mode returns the session mode.
func (s *Session) Mode() Mode {
	return s.mode
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:          s.id,
		ConnID:      s.connID,
		RemoteAddr:  s.remoteAddr,
		Mode:        s.mode,
		State:       s.state,
		ConnectedAt: s.connectedAt,
		DeviceID:    s.deviceID,
		Commands:    s.commands,
		LastCommand: s.lastCommand,
	}
}

// SetDeviceID records the agent-reported device identifier.
func (s *Session) SetDeviceID(id string) {
	s.mu.Lock()
	s.deviceID = id
	s.mu.Unlock()
}

// AuthorizePush moves a push session to AuthenticatedPush.
func (s *Session) AuthorizePush() error {
	return s.transition(StateAuthenticatedPush, "push accepted")
}

// Close moves the session to Closed and closes the underlying connection.
// It is safe to call more than once and from any goroutine.
func (s *Session) Close() error {
	return s.closeWithReason("closed")
}

func (s *Session) closeWithReason(reason string) error {
	var err error
	s.closeOnce.Do(func() {
		s.transition(StateClosed, reason)
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	return err
}

func (s *Session) recordCommand(cmd string) {
	s.mu.Lock()
	s.commands++
	s.lastCommand = cmd
	s.mu.Unlock()
}

// transition changes state and records the change.
func (s *Session) transition(to State, reason string) error {
	s.mu.Lock()
	from := s.state
	if !validTransition(from, to) {
		s.mu.Unlock()
		return transitionError(from, to)
	}
	s.state = to
	s.mu.Unlock()

	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID,
		Layer:        log.LayerSession,
		Category:     log.CategoryState,
		Mode:         s.mode.String(),
		RemoteAddr:   s.remoteAddr,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
	return nil
}
