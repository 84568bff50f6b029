package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rmon-protocol/rmon-go/pkg/log"
)

func TestFormatFrameEvent(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	event := log.Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionOut,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Mode:         "pull",
		RemoteAddr:   "10.0.0.7:51234",
		Frame: &log.FrameEvent{
			Size: 30,
			Data: []byte("{\"type\":\"auth_success\"}\n"),
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.123456Z",
		"[conn:abc12345]",
		"OUT TRANSPORT pull Frame",
		"Remote: 10.0.0.7:51234",
		"Size: 30 bytes",
		`Data: "{\"type\":\"auth_success\"}\n"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestFormatTruncatedFrame(t *testing.T) {
	event := log.Event{
		Frame: &log.FrameEvent{Size: 9000, Data: []byte("abc"), Truncated: true},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)

	if !strings.Contains(buf.String(), "(truncated)") {
		t.Errorf("expected truncated marker, got:\n%s", buf.String())
	}
}

func TestFormatMessageEvent(t *testing.T) {
	d := 1500 * time.Microsecond
	event := log.Event{
		ConnectionID: "conn-1",
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Mode:         "push",
		DeviceID:     "pixel-7",
		Message: &log.MessageEvent{
			Type:           "location",
			Status:         "success",
			Payload:        map[string]any{"latitude": 52.5},
			ProcessingTime: &d,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"IN  WIRE push location",
		"Device: pixel-7",
		"Status: success",
		"Duration: 1.500ms",
		`Payload: {"latitude":52.5}`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestFormatMessageEventCommand(t *testing.T) {
	event := log.Event{
		Direction: log.DirectionOut,
		Layer:     log.LayerWire,
		Message:   &log.MessageEvent{Type: "execute_command", Command: "battery"},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)

	if !strings.Contains(buf.String(), "Command: battery") {
		t.Errorf("expected command in output, got:\n%s", buf.String())
	}
}

func TestFormatStateChangeEvent(t *testing.T) {
	tests := []struct {
		name string
		sc   log.StateChangeEvent
		want []string
	}{
		{
			name: "with old state",
			sc: log.StateChangeEvent{
				Entity:   log.StateEntitySession,
				OldState: "UNAUTHENTICATED",
				NewState: "AUTHENTICATED_PULL",
			},
			want: []string{"Entity: SESSION", "UNAUTHENTICATED -> AUTHENTICATED_PULL"},
		},
		{
			name: "initial state with reason",
			sc: log.StateChangeEvent{
				Entity:   log.StateEntityConnection,
				NewState: "CLOSED",
				Reason:   "peer closed",
			},
			want: []string{"Entity: CONNECTION", "  -> CLOSED", "Reason: peer closed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := tt.sc
			var buf bytes.Buffer
			formatEvent(&buf, log.Event{Layer: log.LayerSession, Category: log.CategoryState, StateChange: &sc})
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("expected %q in output, got:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestFormatErrorEvent(t *testing.T) {
	event := log.Event{
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: "malformed message",
			Fatal:   true,
			Context: "awaiting selection",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{"Error", "Message: malformed message", "Fatal: yes", "Context: awaiting selection"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestShortenConnID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"abc12345-6789", "abc12345"},
		{"abc", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := shortenConnID(tt.in); got != tt.want {
			t.Errorf("shortenConnID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Nanosecond, "0.500us"},
		{2500 * time.Microsecond, "2.500ms"},
		{1500 * time.Millisecond, "1.500s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestRunViewAppliesFilter(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ConnectionID: "pull-conn", Mode: "pull", Layer: log.LayerWire, Message: &log.MessageEvent{Type: "command_menu"}},
		{Timestamp: ts, ConnectionID: "push-conn", Mode: "push", Layer: log.LayerWire, Message: &log.MessageEvent{Type: "sms"}},
		{Timestamp: ts, ConnectionID: "pull-conn", Mode: "pull", Layer: log.LayerTransport, Frame: &log.FrameEvent{Size: 10}},
	}
	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunView(path, FilterOptions{Mode: "pull", Layer: "wire"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "command_menu") {
		t.Errorf("expected command_menu event, got:\n%s", output)
	}
	if strings.Contains(output, "sms") || strings.Contains(output, "Frame") {
		t.Errorf("filtered events leaked into output:\n%s", output)
	}
}

func TestRunViewMissingFile(t *testing.T) {
	var buf bytes.Buffer
	if err := RunView("/nonexistent/capture.rlog", FilterOptions{}, &buf); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRunViewInvalidFilter(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunView(path, FilterOptions{Layer: "service"}, &buf); err == nil {
		t.Fatal("expected error for invalid layer")
	}
}
