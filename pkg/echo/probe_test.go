package echo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/rmon-protocol/rmon-go/pkg/transport"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Ack
		wantErr bool
	}{
		{name: "with newline", line: "[09:05:07] received: 12 bytes\n", want: Ack{Clock: "09:05:07", Bytes: 12}},
		{name: "without newline", line: "[23:59:59] received: 4096 bytes", want: Ack{Clock: "23:59:59", Bytes: 4096}},
		{name: "garbage", line: "hello\n", wantErr: true},
		{name: "missing count", line: "[09:05:07] received:  bytes\n", wantErr: true},
		{name: "empty", line: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReply(tt.line)
			if tt.wantErr {
				if !errors.Is(err, ErrBadReply) {
					t.Fatalf("ParseReply(%q) error = %v, want ErrBadReply", tt.line, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseReply(%q) error = %v", tt.line, err)
			}
			if got != tt.want {
				t.Errorf("ParseReply(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseReplyRoundTripsReply(t *testing.T) {
	ts := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	ack, err := ParseReply(Reply(ts, 321))
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if ack.Clock != "14:30:00" || ack.Bytes != 321 {
		t.Errorf("ack = %+v", ack)
	}
}

func startEchoPipe(t *testing.T) *Prober {
	t.Helper()
	server, client := net.Pipe()

	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	conn := transport.NewConn(server, "probe-conn", "echo", 0, nil)
	go h.ServeConn(context.Background(), conn)

	p := NewProber(client)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestProberSend(t *testing.T) {
	p := startEchoPipe(t)

	for _, msg := range []string{"ping\n", "a longer line from the probe\n"} {
		acks, err := p.Send(context.Background(), []byte(msg))
		if err != nil {
			t.Fatalf("Send(%q): %v", msg, err)
		}
		total := 0
		for _, a := range acks {
			total += a.Bytes
		}
		if total != len(msg) {
			t.Errorf("acknowledged %d bytes, want %d", total, len(msg))
		}
	}
}

func TestProberSendLargePayloadSplitsIntoChunks(t *testing.T) {
	// A pipe would deadlock: the handler replies while the prober is still
	// writing. Loopback TCP buffers the replies.
	srv, err := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
		Mode:    "echo",
		Handler: NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil))),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop(context.Background())

	c, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	p := NewProber(c)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := make([]byte, ChunkSize*2+10)
	for i := range payload {
		payload[i] = 'x'
	}

	acks, err := p.Send(ctx, payload)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(acks) < 3 {
		t.Errorf("expected at least 3 acks, got %d", len(acks))
	}
	total := 0
	for _, a := range acks {
		if a.Bytes > ChunkSize {
			t.Errorf("ack of %d bytes exceeds chunk size", a.Bytes)
		}
		total += a.Bytes
	}
	if total != len(payload) {
		t.Errorf("acknowledged %d bytes, want %d", total, len(payload))
	}
}

func TestProberSendEmpty(t *testing.T) {
	p := startEchoPipe(t)

	acks, err := p.Send(context.Background(), nil)
	if err != nil || acks != nil {
		t.Errorf("Send(nil) = %v, %v; want nil, nil", acks, err)
	}
}

func TestProberSendCancelled(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	// Read without replying so the prober blocks on the ack.
	go io.Copy(io.Discard, server)

	p := NewProber(client)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Send(ctx, []byte("hello\n"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send error = %v, want context.DeadlineExceeded", err)
	}
}

func TestProberSendBadReply(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		buf := make([]byte, 64)
		server.Read(buf)
		server.Write([]byte("not an ack\n"))
	}()

	p := NewProber(client)
	defer p.Close()

	if _, err := p.Send(context.Background(), []byte("hello\n")); !errors.Is(err, ErrBadReply) {
		t.Errorf("Send error = %v, want ErrBadReply", err)
	}
}

func TestProberSendListenerClosed(t *testing.T) {
	server, client := net.Pipe()

	go func() {
		buf := make([]byte, 64)
		server.Read(buf)
		server.Close()
	}()

	p := NewProber(client)
	defer p.Close()

	_, err := p.Send(context.Background(), []byte("hello\n"))
	if err == nil {
		t.Fatal("expected error when listener closes")
	}
}
