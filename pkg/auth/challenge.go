package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rmon-protocol/rmon-go/pkg/wire"
)

// Handshake errors. ErrChallengeConsumed and ErrChallengeExpired both
// satisfy errors.Is(err, ErrAuthFailed).
var (
	ErrAuthFailed        = errors.New("authentication failed")
	ErrChallengeConsumed = fmt.Errorf("%w: challenge already used", ErrAuthFailed)
	ErrChallengeExpired  = fmt.Errorf("%w: challenge expired", ErrAuthFailed)
)

// Challenge is a single-use token issued for one handshake attempt.
type Challenge struct {
	// Value is the hex-encoded challenge sent to the agent.
	Value string

	// IssuedAt is the issue time, truncated to whole seconds.
	IssuedAt time.Time

	used atomic.Bool
}

// Timestamp returns the issue time as a decimal Unix seconds string,
// exactly as it appears on the wire.
func (c *Challenge) Timestamp() string {
	return strconv.FormatInt(c.IssuedAt.Unix(), 10)
}

// Used reports whether the challenge has been verified already.
func (c *Challenge) Used() bool {
	return c.used.Load()
}

// Message returns the auth_challenge message for this challenge.
func (c *Challenge) Message() wire.AuthChallenge {
	return wire.AuthChallenge{
		Type:      wire.TypeAuthChallenge,
		Challenge: c.Value,
		Timestamp: c.Timestamp(),
	}
}

// Config configures an Authenticator.
type Config struct {
	// Secret is the shared secret. Required.
	Secret Secret

	// MaxAge rejects responses to challenges older than this.
	// Zero disables the check.
	MaxAge time.Duration

	// Clock returns the current time (default: time.Now).
	Clock func() time.Time
}

// Authenticator issues and verifies challenges for one shared secret.
// It is safe for concurrent use.
type Authenticator struct {
	secret Secret
	maxAge time.Duration
	clock  func() time.Time
}

// New creates an Authenticator.
func New(config Config) (*Authenticator, error) {
	if config.Secret.IsZero() {
		return nil, ErrEmptySecret
	}
	if config.MaxAge < 0 {
		return nil, fmt.Errorf("max age must not be negative")
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Authenticator{
		secret: config.Secret,
		maxAge: config.MaxAge,
		clock:  config.Clock,
	}, nil
}

// Issue creates a fresh challenge.
func (a *Authenticator) Issue() *Challenge {
	now := a.clock().Truncate(time.Second)
	ts := strconv.FormatInt(now.Unix(), 10)
	return &Challenge{
		Value:    Digest(a.secret.value, ts),
		IssuedAt: now,
	}
}

// Verify checks response against ch and consumes ch. Only the first call
// for a given challenge can succeed.
func (a *Authenticator) Verify(ch *Challenge, response string) error {
	if ch == nil {
		return fmt.Errorf("%w: no challenge", ErrAuthFailed)
	}
	if !ch.used.CompareAndSwap(false, true) {
		return ErrChallengeConsumed
	}
	if a.maxAge > 0 && a.clock().Sub(ch.IssuedAt) > a.maxAge {
		return ErrChallengeExpired
	}

	expected := Digest(ch.Value, a.secret.value)
	if subtle.ConstantTimeCompare([]byte(response), []byte(expected)) != 1 {
		return ErrAuthFailed
	}
	return nil
}

// Respond computes the agent's answer to a challenge value. Agents and
// test harnesses use it; the server never sends it.
func Respond(secret Secret, challenge string) string {
	return Digest(challenge, secret.value)
}

// Digest returns the lowercase hex SHA-256 of the concatenated parts.
func Digest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
