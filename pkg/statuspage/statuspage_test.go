package statuspage

import (
	"strings"
	"testing"
	"time"
)

func testStatus() Status {
	started := time.Unix(1700000000, 0)
	return Status{
		ServerIP:       "192.168.1.20",
		ServerPort:     8080,
		Started:        started,
		Now:            started.Add(90*time.Second + 400*time.Millisecond),
		ActiveSessions: 2,
		Endpoints:      []Endpoint{{Mode: "push", Address: "0.0.0.0:8080"}, {Mode: "pull", Address: "0.0.0.0:8443"}},
		TelemetryTypes: []string{"camera", "location"},
	}
}

func TestDocument(t *testing.T) {
	doc := testStatus().Document()

	if doc.Status != "running" {
		t.Errorf("Status = %q", doc.Status)
	}
	if doc.ServerIP != "192.168.1.20" || doc.ServerPort != 8080 {
		t.Errorf("address = %s:%d", doc.ServerIP, doc.ServerPort)
	}
	if doc.Uptime != 90 {
		t.Errorf("Uptime = %d, want 90", doc.Uptime)
	}
	if doc.Timestamp != 1700000090 {
		t.Errorf("Timestamp = %d", doc.Timestamp)
	}
}

func TestUptimeClampsClockSkew(t *testing.T) {
	s := Status{Started: time.Unix(100, 0), Now: time.Unix(50, 0)}
	if s.Uptime() != 0 {
		t.Errorf("Uptime = %v, want 0", s.Uptime())
	}
}

func TestRenderHTML(t *testing.T) {
	html, err := Render(testStatus())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := string(html)

	for _, want := range []string{
		"<!DOCTYPE html>",
		"<h1>rmon server</h1>",
		"<code>192.168.1.20:8080</code>",
		"<table>",
		"<code>camera</code>",
		"<strong>Active sessions:</strong> 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestMarkdownFingerprint(t *testing.T) {
	s := testStatus()
	if strings.Contains(Markdown(s), "TLS fingerprint") {
		t.Error("fingerprint line shown without a generated identity")
	}

	s.TLSFingerprint = "AB:CD:EF"
	if !strings.Contains(Markdown(s), "**TLS fingerprint:** `AB:CD:EF`") {
		t.Errorf("fingerprint missing from markdown:\n%s", Markdown(s))
	}
}
