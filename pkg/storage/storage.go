// Package storage persists binary artifacts received from agents, such as
// photos and camera images.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrStorage is the parent of every storage failure.
var ErrStorage = errors.New("storage error")

// ErrInvalidName indicates a suggested name that would escape the sink.
var ErrInvalidName = fmt.Errorf("%w: invalid name", ErrStorage)

// Sink stores artifacts and reports where they ended up.
type Sink interface {
	// Store writes data under a name derived from suggestedName and
	// returns the path or key it was stored at.
	Store(data []byte, suggestedName string) (string, error)
}

// TimestampedName returns "<prefix>_<unix seconds>.<ext>".
func TimestampedName(prefix, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%d.%s", prefix, t.Unix(), ext)
}

// cleanName rejects names containing path components.
func cleanName(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}

// DirSink stores artifacts as files in one directory. When a name is
// already taken a numeric suffix is added, so artifacts received in the
// same second do not overwrite each other.
type DirSink struct {
	dir string
	mu  sync.Mutex
}

// NewDirSink creates a DirSink rooted at dir, creating it if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create directory: %w", ErrStorage, err)
	}
	return &DirSink{dir: dir}, nil
}

// Dir returns the sink directory.
func (s *DirSink) Dir() string {
	return s.dir
}

// Store writes data to a new file and returns its path.
func (s *DirSink) Store(data []byte, suggestedName string) (string, error) {
	name, err := cleanName(suggestedName)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", base, i, ext)
		}
		path := filepath.Join(s.dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrStorage, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("%w: write %s: %w", ErrStorage, candidate, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("%w: close %s: %w", ErrStorage, candidate, err)
		}
		return path, nil
	}
}

// MemorySink keeps artifacts in memory. It is meant for tests and for
// running without a writable disk.
type MemorySink struct {
	mu    sync.Mutex
	items map[string][]byte
	order []string
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{items: make(map[string][]byte)}
}

// Store copies data under suggestedName, suffixing duplicates.
func (s *MemorySink) Store(data []byte, suggestedName string) (string, error) {
	name, err := cleanName(suggestedName)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := name
	ext := filepath.Ext(name)
	for i := 1; ; i++ {
		if _, taken := s.items[key]; !taken {
			break
		}
		key = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), i, ext)
	}
	s.items[key] = append([]byte(nil), data...)
	s.order = append(s.order, key)
	return key, nil
}

// Get returns a stored artifact.
func (s *MemorySink) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.items[key]
	return data, ok
}

// Keys returns stored keys in insertion order.
func (s *MemorySink) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Len returns the number of stored artifacts.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

var (
	_ Sink = (*DirSink)(nil)
	_ Sink = (*MemorySink)(nil)
)
