package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrEmptySecret indicates that no shared secret was configured.
var ErrEmptySecret = errors.New("shared secret is empty")

// Secret is the immutable shared secret. Its String method never reveals
// the value, so it is safe to pass to loggers and fmt.
type Secret struct {
	value string
}

// NewSecret wraps a secret value.
func NewSecret(value string) (Secret, error) {
	if value == "" {
		return Secret{}, ErrEmptySecret
	}
	return Secret{value: value}, nil
}

// LoadSecretFile reads a secret from path, trimming surrounding whitespace.
func LoadSecretFile(path string) (Secret, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Secret{}, fmt.Errorf("failed to read secret file: %w", err)
	}
	return NewSecret(strings.TrimSpace(string(data)))
}

// IsZero reports whether the secret is unset.
func (s Secret) IsZero() bool {
	return s.value == ""
}

// String returns a redacted placeholder.
func (s Secret) String() string {
	if s.IsZero() {
		return "<unset>"
	}
	return "<redacted>"
}

// GoString returns a redacted placeholder for %#v.
func (s Secret) GoString() string {
	return "auth.Secret{" + s.String() + "}"
}
