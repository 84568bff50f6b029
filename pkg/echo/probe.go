package echo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"time"
)

// ErrBadReply is returned when the listener answers with something other
// than an acknowledgement line.
var ErrBadReply = errors.New("echo: unexpected reply")

var replyPattern = regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2})\] received: (\d+) bytes$`)

// Ack is one parsed acknowledgement.
type Ack struct {
	// Clock is the listener's HH:MM:SS timestamp.
	Clock string

	// Bytes is the number of bytes the listener acknowledged.
	Bytes int
}

// ParseReply parses one reply line, with or without its newline.
func ParseReply(line string) (Ack, error) {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	m := replyPattern.FindStringSubmatch(line)
	if m == nil {
		return Ack{}, fmt.Errorf("%w: %q", ErrBadReply, line)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return Ack{}, fmt.Errorf("%w: %q", ErrBadReply, line)
	}
	return Ack{Clock: m[1], Bytes: n}, nil
}

// Prober sends payloads over one echo connection and collects the
// acknowledgements.
type Prober struct {
	conn    net.Conn
	replies *bufio.Reader
}

// NewProber wraps an established connection to an echo listener.
func NewProber(conn net.Conn) *Prober {
	return &Prober{conn: conn, replies: bufio.NewReader(conn)}
}

// Send writes payload and reads acknowledgements until every byte has been
// acknowledged. The listener may split or merge reads, so one payload can
// yield several acks.
func (p *Prober) Send(ctx context.Context, payload []byte) ([]Ack, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	stop := context.AfterFunc(ctx, func() {
		p.conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := p.conn.Write(payload); err != nil {
		return nil, p.wrap(ctx, fmt.Errorf("write: %w", err))
	}

	var acks []Ack
	acked := 0
	for acked < len(payload) {
		line, err := p.replies.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return acks, fmt.Errorf("listener closed after %d of %d bytes", acked, len(payload))
			}
			return acks, p.wrap(ctx, fmt.Errorf("read: %w", err))
		}
		ack, err := ParseReply(line)
		if err != nil {
			return acks, err
		}
		acks = append(acks, ack)
		acked += ack.Bytes
	}
	return acks, nil
}

// Close closes the connection.
func (p *Prober) Close() error {
	return p.conn.Close()
}

func (p *Prober) wrap(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
