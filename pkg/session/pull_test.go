package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rmon-protocol/rmon-go/pkg/auth"
	"github.com/rmon-protocol/rmon-go/pkg/report"
	"github.com/rmon-protocol/rmon-go/pkg/transport"
	"github.com/rmon-protocol/rmon-go/pkg/wire"
)

const testSecret = "test-secret"

// recordingRenderer captures rendered results.
type recordingRenderer struct {
	mu      sync.Mutex
	results []recorded
}

type recorded struct {
	command string
	result  *wire.Result
}

func (r *recordingRenderer) Result(command string, res *wire.Result) (*report.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, recorded{command, res})
	return &report.Report{Title: command}, nil
}

func (r *recordingRenderer) Results() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.results...)
}

// agent is the device side of a net.Pipe.
type agent struct {
	t    *testing.T
	conn *transport.Conn
}

func (a *agent) read() map[string]any {
	a.t.Helper()
	data, err := a.conn.ReadMessageTimeout(2 * time.Second)
	if err != nil {
		a.t.Fatalf("agent read failed: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		a.t.Fatalf("agent got invalid JSON %q: %v", data, err)
	}
	return msg
}

func (a *agent) expect(msgType string) map[string]any {
	a.t.Helper()
	msg := a.read()
	if msg["type"] != msgType {
		a.t.Fatalf("expected %s, got %v", msgType, msg)
	}
	return msg
}

func (a *agent) send(msg any) {
	a.t.Helper()
	if err := a.conn.WriteMessage(msg); err != nil {
		a.t.Fatalf("agent write failed: %v", err)
	}
}

// authenticate answers the challenge correctly.
func (a *agent) authenticate() {
	a.t.Helper()
	ch := a.expect("auth_challenge")
	secret, _ := auth.NewSecret(testSecret)
	a.send(wire.AuthResponse{Response: auth.Respond(secret, ch["challenge"].(string))})
	a.expect("auth_success")
}

// expectClosed asserts the server sends nothing more and closes.
func (a *agent) expectClosed() {
	a.t.Helper()
	data, err := a.conn.ReadMessageTimeout(2 * time.Second)
	if err == nil {
		a.t.Fatalf("expected close, got message %s", data)
	}
	if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
		a.t.Fatalf("expected EOF, got %v", err)
	}
}

type harness struct {
	agent    *agent
	pull     *Pull
	renderer *recordingRenderer
	registry *Registry
	done     chan error
}

func startPull(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	secret, _ := auth.NewSecret(testSecret)
	authn, err := auth.New(auth.Config{Secret: secret})
	if err != nil {
		t.Fatal(err)
	}

	renderer := &recordingRenderer{}
	registry := NewRegistry()
	config := Config{
		Auth:             authn,
		HandshakeTimeout: 2 * time.Second,
		Renderer:         renderer,
		Registry:         registry,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&config)
	}

	serverSide, agentSide := net.Pipe()
	serverConn := transport.NewConn(serverSide, "srv", "pull", 0, nil)
	agentConn := transport.NewConn(agentSide, "agent", "pull", 0, nil)
	t.Cleanup(func() { agentConn.Close() })

	p, err := NewPull(serverConn, config)
	if err != nil {
		t.Fatalf("NewPull failed: %v", err)
	}

	h := &harness{
		agent:    &agent{t: t, conn: agentConn},
		pull:     p,
		renderer: renderer,
		registry: registry,
		done:     make(chan error, 1),
	}
	go func() { h.done <- p.Run(context.Background()) }()
	return h
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("session did not finish")
		return nil
	}
}

func TestEndToEndBattery(t *testing.T) {
	h := startPull(t, nil)
	a := h.agent

	a.authenticate()

	menu := a.expect("command_menu")
	commands := menu["commands"].([]any)
	if len(commands) != 8 {
		t.Fatalf("menu has %d commands, want 8", len(commands))
	}

	a.send(wire.Selection{Command: "battery"})
	exec := a.expect("execute_command")
	if exec["command"] != "battery" {
		t.Errorf("execute_command for %v, want battery", exec["command"])
	}
	if _, ok := exec["timestamp"].(float64); !ok {
		t.Errorf("timestamp is not a number: %v", exec["timestamp"])
	}

	a.send(map[string]any{"status": "success", "timestamp": 1700000000, "data": map[string]any{"level": 80}})

	a.expect("command_menu")
	a.send(wire.Selection{Command: "disconnect"})
	a.expectClosed()

	if err := h.wait(t); err != nil {
		t.Errorf("Run = %v, want nil", err)
	}

	results := h.renderer.Results()
	if len(results) != 1 || results[0].command != "battery" {
		t.Fatalf("rendered %v, want one battery result", results)
	}
	if results[0].result.Data.Int("level", 0) != 80 {
		t.Errorf("level = %v", results[0].result.Data["level"])
	}
	if h.pull.State() != StateClosed {
		t.Errorf("State = %v, want CLOSED", h.pull.State())
	}
	if h.registry.Len() != 0 {
		t.Errorf("registry still holds %d sessions", h.registry.Len())
	}
}

func TestDisconnectEndsWithoutMenu(t *testing.T) {
	h := startPull(t, nil)
	h.agent.authenticate()
	h.agent.expect("command_menu")

	h.agent.send(wire.Selection{Command: "disconnect"})
	h.agent.expectClosed()

	if err := h.wait(t); err != nil {
		t.Errorf("Run = %v, want nil", err)
	}
}

func TestUnknownCommandReoffersMenu(t *testing.T) {
	h := startPull(t, nil)
	h.agent.authenticate()
	h.agent.expect("command_menu")

	h.agent.send(wire.Selection{Command: "explode"})
	h.agent.expect("command_menu")

	if h.pull.State() != StateAuthenticatedPull {
		t.Errorf("State = %v, want AUTHENTICATED_PULL", h.pull.State())
	}
	if got := h.pull.Info().Commands; got != 0 {
		t.Errorf("Commands = %d, want 0", got)
	}

	h.agent.send(wire.Selection{Command: "disconnect"})
	h.wait(t)
	if len(h.renderer.Results()) != 0 {
		t.Error("unknown command reached the renderer")
	}
}

func TestMalformedResultContinues(t *testing.T) {
	h := startPull(t, nil)
	h.agent.authenticate()
	h.agent.expect("command_menu")

	h.agent.send(wire.Selection{Command: "info"})
	h.agent.expect("execute_command")
	h.agent.send(map[string]any{"status": 5, "data": "not an object"})

	h.agent.expect("command_menu")
	h.agent.send(wire.Selection{Command: "disconnect"})

	if err := h.wait(t); err != nil {
		t.Errorf("Run = %v, want nil", err)
	}
	if len(h.renderer.Results()) != 0 {
		t.Error("malformed result should not be rendered")
	}
}

func (a *agent) sendRaw(data string) {
	a.t.Helper()
	if _, err := a.conn.NetConn().Write([]byte(data)); err != nil {
		a.t.Fatalf("agent raw write failed: %v", err)
	}
}

func TestBlankResultIsAbsent(t *testing.T) {
	h := startPull(t, nil)
	h.agent.authenticate()
	h.agent.expect("command_menu")

	h.agent.send(wire.Selection{Command: "battery"})
	h.agent.expect("execute_command")
	h.agent.sendRaw("\n")

	h.agent.expect("command_menu")
	h.agent.send(wire.Selection{Command: "location"})
	exec := h.agent.expect("execute_command")
	if exec["command"] != "location" {
		t.Errorf("execute_command for %v, want location", exec["command"])
	}
	h.agent.send(map[string]any{"status": "success", "data": map[string]any{"latitude": 1.5}})

	h.agent.expect("command_menu")
	h.agent.send(wire.Selection{Command: "disconnect"})
	if err := h.wait(t); err != nil {
		t.Errorf("Run = %v, want nil", err)
	}

	results := h.renderer.Results()
	if len(results) != 1 || results[0].command != "location" {
		t.Fatalf("rendered %v, want only the location result", results)
	}
}

func TestBlankSelectionLinesAreSkipped(t *testing.T) {
	h := startPull(t, nil)
	h.agent.authenticate()
	h.agent.expect("command_menu")

	h.agent.sendRaw("\n  \r\n")
	h.agent.send(wire.Selection{Command: "battery"})
	h.agent.expect("execute_command")
	h.agent.send(map[string]any{"status": "success", "data": map[string]any{"level": 10}})

	h.agent.expect("command_menu")
	h.agent.send(wire.Selection{Command: "disconnect"})
	if err := h.wait(t); err != nil {
		t.Errorf("Run = %v, want nil", err)
	}
	if len(h.renderer.Results()) != 1 {
		t.Errorf("rendered %d results, want 1", len(h.renderer.Results()))
	}
}

func TestBlankAuthResponseFailsAuth(t *testing.T) {
	h := startPull(t, nil)
	h.agent.expect("auth_challenge")
	h.agent.sendRaw("\n")

	h.agent.expect("auth_error")
	if err := h.wait(t); !errors.Is(err, auth.ErrAuthFailed) {
		t.Errorf("Run = %v, want ErrAuthFailed", err)
	}
}

func TestMalformedJSONIsFatal(t *testing.T) {
	h := startPull(t, nil)
	h.agent.authenticate()
	h.agent.expect("command_menu")

	if _, err := h.agent.conn.NetConn().Write([]byte("{oops\n")); err != nil {
		t.Fatal(err)
	}

	err := h.wait(t)
	if !errors.Is(err, transport.ErrFraming) {
		t.Errorf("Run = %v, want framing error", err)
	}
	if !IsFatal(err) {
		t.Error("framing error should be fatal")
	}
	if h.pull.Info().Commands != 0 {
		t.Error("framing error mutated session counters")
	}
}

func TestPeerCloseBetweenMessagesIsClean(t *testing.T) {
	h := startPull(t, nil)
	h.agent.authenticate()
	h.agent.expect("command_menu")

	h.agent.conn.Close()

	if err := h.wait(t); err != nil {
		t.Errorf("Run = %v, want nil", err)
	}
}

func TestWrongResponseSendsAuthError(t *testing.T) {
	h := startPull(t, nil)
	h.agent.expect("auth_challenge")
	h.agent.send(wire.AuthResponse{Response: "deadbeef"})

	msg := h.agent.expect("auth_error")
	if msg["message"] != AuthErrorMessage {
		t.Errorf("message = %v", msg["message"])
	}
	h.agent.expectClosed()

	err := h.wait(t)
	if !errors.Is(err, auth.ErrAuthFailed) {
		t.Errorf("Run = %v, want ErrAuthFailed", err)
	}
	if len(h.renderer.Results()) != 0 {
		t.Error("unauthenticated session processed commands")
	}
}

func TestResponseWithWrongTypeFailsAuth(t *testing.T) {
	h := startPull(t, nil)
	h.agent.expect("auth_challenge")
	h.agent.send(map[string]any{"response": 42})

	h.agent.expect("auth_error")
	if err := h.wait(t); !errors.Is(err, auth.ErrAuthFailed) {
		t.Errorf("Run = %v, want ErrAuthFailed", err)
	}
}

func TestHandshakeTimeout(t *testing.T) {
	h := startPull(t, func(c *Config) { c.HandshakeTimeout = 50 * time.Millisecond })

	h.agent.expect("auth_challenge")
	h.agent.expect("auth_error")

	err := h.wait(t)
	if !errors.Is(err, ErrHandshakeTimeout) {
		t.Errorf("Run = %v, want ErrHandshakeTimeout", err)
	}
	if !IsFatal(err) {
		t.Error("timeout should be fatal")
	}
}

func TestKickClosesSession(t *testing.T) {
	h := startPull(t, nil)
	h.agent.authenticate()
	h.agent.expect("command_menu")

	infos := h.registry.Snapshot()
	if len(infos) != 1 || infos[0].State != StateAuthenticatedPull || infos[0].Mode != ModePull {
		t.Fatalf("Snapshot = %+v", infos)
	}

	if err := h.registry.Kick(infos[0].ID); err != nil {
		t.Fatalf("Kick failed: %v", err)
	}

	err := h.wait(t)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Run = %v, want ErrClosed", err)
	}
	if h.registry.Len() != 0 {
		t.Error("kicked session still registered")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	secret, _ := auth.NewSecret(testSecret)
	authn, _ := auth.New(auth.Config{Secret: secret})

	serverSide, agentSide := net.Pipe()
	defer agentSide.Close()
	p, err := NewPull(transport.NewConn(serverSide, "srv", "pull", 0, nil), Config{
		Auth:     authn,
		Renderer: &recordingRenderer{},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	agent := &agent{t: t, conn: transport.NewConn(agentSide, "a", "pull", 0, nil)}
	agent.expect("auth_challenge")
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected an error after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCommandLoopRequiresAuth(t *testing.T) {
	serverSide, agentSide := net.Pipe()
	defer agentSide.Close()

	secret, _ := auth.NewSecret(testSecret)
	authn, _ := auth.New(auth.Config{Secret: secret})
	p, _ := NewPull(transport.NewConn(serverSide, "srv", "pull", 0, nil), Config{Auth: authn, Renderer: &recordingRenderer{}})

	if err := p.CommandLoop(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("CommandLoop = %v, want ErrNotAuthenticated", err)
	}
}

func TestNewPullValidatesConfig(t *testing.T) {
	serverSide, agentSide := net.Pipe()
	defer serverSide.Close()
	defer agentSide.Close()
	conn := transport.NewConn(serverSide, "srv", "pull", 0, nil)

	if _, err := NewPull(conn, Config{Renderer: &recordingRenderer{}}); err == nil {
		t.Error("expected error without authenticator")
	}
	if _, err := NewHandler(Config{}); err == nil {
		t.Error("expected error without authenticator")
	}
}
