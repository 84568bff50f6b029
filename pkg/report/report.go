// Package report turns command results and telemetry pushes into
// human-readable summaries and stores any binary artifacts they carry.
package report

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rmon-protocol/rmon-go/pkg/storage"
)

// ErrDecode indicates a payload field that could not be decoded.
// Decode failures are reported but never fail the request.
var ErrDecode = errors.New("decode error")

// Display limits for list-valued payloads.
const (
	MaxListedFiles    = 10
	MaxListedApps     = 10
	MaxListedMessages = 5
	MaxListedCalls    = 5
	MaxShellLines     = 5
	MessagePreviewLen = 50
)

const ruleWidth = 50

// Report is one rendered summary.
type Report struct {
	// Title is the heading line.
	Title string

	// Lines are the body lines, without indentation.
	Lines []string

	// Artifacts are the storage paths written while rendering.
	Artifacts []string

	// Problems collects non-fatal decode and storage failures.
	Problems []error
}

func (r *Report) addf(format string, args ...any) {
	r.Lines = append(r.Lines, fmt.Sprintf(format, args...))
}

func (r *Report) problem(err error) {
	r.Problems = append(r.Problems, err)
}

// String renders the report as a text block.
func (r *Report) String() string {
	var b strings.Builder
	b.WriteString("=== " + r.Title + " ===\n")
	for _, l := range r.Lines {
		b.WriteString("  " + l + "\n")
	}
	b.WriteString(strings.Repeat("=", ruleWidth) + "\n")
	return b.String()
}

// WriteTo writes the text block to w.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, r.String())
	return int64(n), err
}

// Config configures a Renderer.
type Config struct {
	// Output receives rendered reports (default: os.Stdout).
	Output io.Writer

	// Sink stores decoded images. A nil Sink discards them with a problem.
	Sink storage.Sink

	// Logger receives warnings about non-fatal failures (default: slog.Default()).
	Logger *slog.Logger

	// Clock returns the current time (default: time.Now).
	Clock func() time.Time
}

// Renderer formats reports and writes them to one output. It is safe for
// concurrent use; reports from different sessions never interleave.
type Renderer struct {
	out    io.Writer
	sink   storage.Sink
	logger *slog.Logger
	clock  func() time.Time

	mu sync.Mutex
}

// New creates a Renderer.
func New(config Config) *Renderer {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Renderer{
		out:    config.Output,
		sink:   config.Sink,
		logger: config.Logger,
		clock:  config.Clock,
	}
}

// emit writes rep and logs its problems.
func (r *Renderer) emit(rep *Report) error {
	for _, p := range rep.Problems {
		r.logger.Warn("report problem", "title", rep.Title, "error", p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := rep.WriteTo(r.out); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// storeImage decodes base64 image data and stores it under a timestamped
// name. Failures are recorded on rep.
func (r *Renderer) storeImage(rep *Report, prefix, encoded string) {
	data, err := DecodeBase64(encoded)
	if err != nil {
		rep.problem(fmt.Errorf("%w: %s image: %w", ErrDecode, prefix, err))
		rep.addf("Image could not be decoded")
		return
	}
	if r.sink == nil {
		rep.problem(fmt.Errorf("%w: no sink configured", storage.ErrStorage))
		rep.addf("Image not saved: no storage configured")
		return
	}

	name := storage.TimestampedName(prefix, "jpg", r.clock())
	path, err := r.sink.Store(data, name)
	if err != nil {
		rep.problem(err)
		rep.addf("Image not saved: %v", err)
		return
	}
	rep.Artifacts = append(rep.Artifacts, path)
	rep.addf("Saved %s as %s", humanize.Bytes(uint64(len(data))), path)
}

// DecodeBase64 decodes standard or URL-safe base64, ignoring embedded
// whitespace and line breaks.
func DecodeBase64(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return nil, errors.New("empty input")
	}

	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err == nil {
		return data, nil
	}
	if alt, altErr := base64.URLEncoding.DecodeString(cleaned); altErr == nil {
		return alt, nil
	}
	return nil, err
}

// formatTime renders a Unix timestamp with a relative hint.
func (r *Renderer) formatTime(unix int64) string {
	if unix <= 0 {
		return "unknown"
	}
	t := time.Unix(unix, 0)
	return fmt.Sprintf("%s (%s)", t.Format(time.DateTime), humanize.RelTime(t, r.clock(), "ago", "from now"))
}

// MapsURL returns a map link for a coordinate pair.
func MapsURL(lat, lon string) string {
	return fmt.Sprintf("https://maps.google.com/maps?q=%s,%s", lat, lon)
}
