// Package echo implements the connectivity probe listener. Every chunk a
// client sends is logged and acknowledged with a timestamped byte count,
// so an operator can check reachability with nc or rmon-probe.
package echo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/rmon-protocol/rmon-go/pkg/log"
	"github.com/rmon-protocol/rmon-go/pkg/transport"
)

// ChunkSize is the maximum number of bytes acknowledged per reply.
const ChunkSize = 4096

// ReplyTimeFormat is the clock format used in replies.
const ReplyTimeFormat = time.TimeOnly

// Reply formats the acknowledgement for n received bytes.
func Reply(t time.Time, n int) string {
	return fmt.Sprintf("[%s] received: %d bytes\n", t.Format(ReplyTimeFormat), n)
}

// Handler serves echo probe connections.
type Handler struct {
	logger *slog.Logger
	clock  func() time.Time
}

// NewHandler creates an echo handler. A nil logger uses slog.Default().
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, clock: time.Now}
}

// ServeConn implements transport.Handler.
func (h *Handler) ServeConn(ctx context.Context, conn *transport.Conn) {
	logger := h.logger.With("remote", conn.RemoteAddr().String(), "conn", conn.ConnID())
	logger.Info("probe connected")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	nc := conn.NetConn()
	buf := make([]byte, ChunkSize)
	total := 0
	for {
		n, err := nc.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			total += n
			now := h.clock()
			logger.Info("probe data", "bytes", n, "text", strings.TrimSpace(string(chunk)))
			logFrame(conn, chunk, log.DirectionIn)

			reply := []byte(Reply(now, n))
			if _, werr := nc.Write(reply); werr != nil {
				logger.Warn("failed to write probe reply", "error", werr)
				return
			}
			logFrame(conn, reply, log.DirectionOut)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Warn("probe read failed", "error", err)
			}
			logger.Info("probe disconnected", "bytes", total)
			return
		}
	}
}

func logFrame(conn *transport.Conn, data []byte, dir log.Direction) {
	frame := data
	truncated := false
	if len(frame) > transport.MaxLogFrameDataSize {
		frame = frame[:transport.MaxLogFrameDataSize]
		truncated = true
	}
	conn.Logger().Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: conn.ConnID(),
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Mode:         conn.Mode(),
		RemoteAddr:   conn.RemoteAddr().String(),
		Frame: &log.FrameEvent{
			Size:      len(data),
			Data:      frame,
			Truncated: truncated,
		},
	})
}

var _ transport.Handler = (*Handler)(nil)
