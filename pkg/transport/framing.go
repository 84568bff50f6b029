package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rmon-protocol/rmon-go/pkg/log"
	"github.com/rmon-protocol/rmon-go/pkg/wire"
)

// Framing constants.
const (
	// Delimiter terminates every message on the stream.
	Delimiter = '\n'

	// DefaultMaxMessageSize is the default maximum message size (8 MB).
	// Photo results carry base64 image data inline, so this is generous.
	DefaultMaxMessageSize = 8 << 20

	// MaxLogFrameDataSize is the maximum frame data size to include in logs (4 KB).
	// Larger frames are truncated in log events to avoid excessive memory usage.
	MaxLogFrameDataSize = 4096
)

// ErrFraming is the parent of every framing error. Use errors.Is to test
// whether a read failed because the stream itself is unusable.
var ErrFraming = errors.New("framing error")

// Framing errors.
var (
	// ErrMessageTooLarge indicates the message exceeds the maximum size.
	ErrMessageTooLarge = fmt.Errorf("%w: message too large", ErrFraming)

	// ErrFrameTruncated indicates the stream ended in the middle of a message.
	ErrFrameTruncated = fmt.Errorf("%w: frame truncated", ErrFraming)

	// ErrMalformedMessage indicates a line that is not a JSON object.
	ErrMalformedMessage = fmt.Errorf("%w: malformed message", ErrFraming)

	// ErrMessageEmpty indicates an attempt to write an empty message.
	ErrMessageEmpty = errors.New("message is empty")
)

// ErrBlankLine is returned for a whitespace-only line. It is not a framing
// error: the stream stays usable and the caller decides what a blank
// line means at its protocol step.
var ErrBlankLine = errors.New("blank line")

// LineWriter writes newline-terminated messages to an underlying writer.
type LineWriter struct {
	w              io.Writer
	maxMessageSize int
	mu             sync.Mutex

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewLineWriter creates a new line writer.
func NewLineWriter(w io.Writer) *LineWriter {
	return NewLineWriterWithMaxSize(w, DefaultMaxMessageSize)
}

// NewLineWriterWithMaxSize creates a line writer with a custom max size.
func NewLineWriterWithMaxSize(w io.Writer, maxSize int) *LineWriter {
	return &LineWriter{
		w:              w,
		maxMessageSize: maxSize,
	}
}

// SetLogger configures logging for this writer.
// Pass nil to disable logging.
func (lw *LineWriter) SetLogger(logger log.Logger, connID string) {
	lw.logger = logger
	lw.connID = connID
}

// WriteLine writes data followed by the delimiter in a single write.
// Thread-safe: can be called from multiple goroutines.
func (lw *LineWriter) WriteLine(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	if len(data) > lw.maxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), lw.maxMessageSize)
	}
	if bytes.IndexByte(data, Delimiter) >= 0 {
		return fmt.Errorf("%w: embedded newline", ErrMalformedMessage)
	}

	frame := make([]byte, 0, len(data)+1)
	frame = append(frame, data...)
	frame = append(frame, Delimiter)

	lw.mu.Lock()
	defer lw.mu.Unlock()

	if _, err := lw.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	if lw.logger != nil {
		lw.logger.Log(frameEvent(lw.connID, data, log.DirectionOut))
	}

	return nil
}

// WriteMessage encodes msg as JSON and writes it as one line.
func (lw *LineWriter) WriteMessage(msg any) error {
	data, err := wire.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return lw.WriteLine(data)
}

// LineReader reads newline-terminated messages from an underlying reader.
type LineReader struct {
	r              *bufio.Reader
	maxMessageSize int

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewLineReader creates a new line reader.
func NewLineReader(r io.Reader) *LineReader {
	return NewLineReaderWithMaxSize(r, DefaultMaxMessageSize)
}

// NewLineReaderWithMaxSize creates a line reader with a custom max size.
func NewLineReaderWithMaxSize(r io.Reader, maxSize int) *LineReader {
	return &LineReader{
		r:              bufio.NewReader(r),
		maxMessageSize: maxSize,
	}
}

// SetLogger configures logging for this reader.
// Pass nil to disable logging.
func (lr *LineReader) SetLogger(logger log.Logger, connID string) {
	lr.logger = logger
	lr.connID = connID
}

// SetMaxMessageSize updates the maximum message size.
func (lr *LineReader) SetMaxMessageSize(size int) {
	lr.maxMessageSize = size
}

// ReadLine reads the next line, without its delimiter or surrounding
// whitespace. A whitespace-only line yields ErrBlankLine. It returns io.EOF
// when the stream ends cleanly between messages.
func (lr *LineReader) ReadLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := lr.r.ReadSlice(Delimiter)
		buf = append(buf, chunk...)

		size := len(buf)
		if err == nil {
			size--
		}
		if size > lr.maxMessageSize {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrMessageTooLarge, lr.maxMessageSize)
		}

		switch {
		case err == nil:
			line := bytes.TrimSpace(buf)
			if len(line) == 0 {
				return nil, ErrBlankLine
			}
			if lr.logger != nil {
				lr.logger.Log(frameEvent(lr.connID, line, log.DirectionIn))
			}
			return line, nil

		case errors.Is(err, bufio.ErrBufferFull):
			continue

		case err == io.EOF:
			if len(bytes.TrimSpace(buf)) > 0 {
				return nil, ErrFrameTruncated
			}
			return nil, io.EOF

		default:
			return nil, fmt.Errorf("failed to read message: %w", err)
		}
	}
}

// ReadMessage reads the next line and checks that it is a JSON object.
func (lr *LineReader) ReadMessage() ([]byte, error) {
	line, err := lr.ReadLine()
	if err != nil {
		return nil, err
	}
	if !wire.Valid(line) {
		return nil, ErrMalformedMessage
	}
	return line, nil
}

// frameEvent creates a log event for one line on the stream.
func frameEvent(connID string, data []byte, direction log.Direction) log.Event {
	frameData := data
	truncated := false

	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}

	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      FrameSize(len(data)),
			Data:      frameData,
			Truncated: truncated,
		},
	}
}

// Framer combines line reading and writing.
type Framer struct {
	*LineReader
	*LineWriter
}

// NewFramer creates a new framer for bidirectional communication.
func NewFramer(rw io.ReadWriter) *Framer {
	return NewFramerWithMaxSize(rw, DefaultMaxMessageSize)
}

// NewFramerWithMaxSize creates a framer with a custom max message size.
func NewFramerWithMaxSize(rw io.ReadWriter, maxSize int) *Framer {
	return &Framer{
		LineReader: NewLineReaderWithMaxSize(rw, maxSize),
		LineWriter: NewLineWriterWithMaxSize(rw, maxSize),
	}
}

// SetLogger configures logging for both reader and writer.
// Pass nil to disable logging.
func (f *Framer) SetLogger(logger log.Logger, connID string) {
	f.LineReader.SetLogger(logger, connID)
	f.LineWriter.SetLogger(logger, connID)
}

// FrameSize returns the total frame size including the delimiter.
func FrameSize(payloadSize int) int {
	return payloadSize + 1
}
