package echo

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/rmon-protocol/rmon-go/pkg/transport"
)

func TestReply(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC)
	if got, want := Reply(ts, 12), "[09:05:07] received: 12 bytes\n"; got != want {
		t.Errorf("Reply = %q, want %q", got, want)
	}
}

func TestServeConnEchoesSizes(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	h.clock = func() time.Time { return fixed }

	conn := transport.NewConn(server, "test-conn", "echo", 0, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeConn(context.Background(), conn)
	}()

	r := bufio.NewReader(client)
	for _, msg := range []string{"hello\n", "ping from probe\n"} {
		if _, err := client.Write([]byte(msg)); err != nil {
			t.Fatalf("write: %v", err)
		}
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if want := Reply(fixed, len(msg)); line != want {
			t.Errorf("reply = %q, want %q", line, want)
		}
	}

	client.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client close")
	}
}

func TestServeConnStopsOnCancel(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	conn := transport.NewConn(server, "test-conn", "echo", 0, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil))).ServeConn(ctx, conn)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after cancel")
	}
}

func TestEchoOverServer(t *testing.T) {
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
	defer c.Close()

	if _, err := c.Write([]byte("abc")); err != nil {
		t.Fatalf("write: %v", err)
	}
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if want := " received: 3 bytes\n"; line[len(line)-len(want):] != want {
		t.Errorf("reply = %q", line)
	}
}
