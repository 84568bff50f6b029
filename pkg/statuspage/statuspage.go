// Package statuspage renders the server status as an HTML page and as a
// compact JSON document.
package statuspage

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Endpoint describes one enabled listener.
type Endpoint struct {
	Mode    string
	Address string
}

// Status is the input to the renderer.
type Status struct {
	ServerIP       string
	ServerPort     int
	Started        time.Time
	Now            time.Time
	ActiveSessions int
	Endpoints      []Endpoint
	TelemetryTypes []string

	// TLSFingerprint identifies a generated pull listener certificate.
	TLSFingerprint string
}

// Uptime returns the time since start.
func (s Status) Uptime() time.Duration {
	if s.Started.IsZero() || s.Now.Before(s.Started) {
		return 0
	}
	return s.Now.Sub(s.Started)
}

// Document is the JSON form served at /status.
type Document struct {
	Status     string `json:"status"`
	ServerIP   string `json:"server_ip"`
	ServerPort int    `json:"server_port"`
	Timestamp  int64  `json:"timestamp"`
	Uptime     int64  `json:"uptime"`
}

// Document returns the JSON form of s. Uptime is in whole seconds.
func (s Status) Document() Document {
	return Document{
		Status:     "running",
		ServerIP:   s.ServerIP,
		ServerPort: s.ServerPort,
		Timestamp:  s.Now.Unix(),
		Uptime:     int64(s.Uptime() / time.Second),
	}
}

var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownInstance
}

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 48em; margin: 2em auto; }
code { background: #f4f4f4; padding: 0 .3em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: .3em .6em; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// Markdown returns the status page source.
func Markdown(s Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# rmon server\n\n")
	fmt.Fprintf(&b, "**Status:** running  \n")
	fmt.Fprintf(&b, "**Address:** `%s:%d`  \n", s.ServerIP, s.ServerPort)
	fmt.Fprintf(&b, "**Intake endpoint:** `http://%s:%d/`  \n", s.ServerIP, s.ServerPort)
	if !s.Started.IsZero() {
		fmt.Fprintf(&b, "**Started:** %s (up %s)  \n",
			humanize.RelTime(s.Started, s.Now, "ago", "from now"), s.Uptime().Truncate(time.Second))
	}
	if s.TLSFingerprint != "" {
		fmt.Fprintf(&b, "**TLS fingerprint:** `%s`  \n", s.TLSFingerprint)
	}
	fmt.Fprintf(&b, "**Active sessions:** %d\n\n", s.ActiveSessions)

	if len(s.Endpoints) > 0 {
		b.WriteString("## Listeners\n\n| Mode | Address |\n|---|---|\n")
		for _, e := range s.Endpoints {
			fmt.Fprintf(&b, "| %s | `%s` |\n", e.Mode, e.Address)
		}
		b.WriteString("\n")
	}

	if len(s.TelemetryTypes) > 0 {
		b.WriteString("## Accepted telemetry types\n\n")
		for _, t := range s.TelemetryTypes {
			fmt.Fprintf(&b, "- `%s`\n", t)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Endpoints\n\n")
	b.WriteString("- `POST /` telemetry intake (JSON)\n")
	b.WriteString("- `GET /status` status document (JSON)\n")
	b.WriteString("- `GET /health` liveness probe\n")
	return b.String()
}

// Render returns the status page as a complete HTML document.
func Render(s Status) ([]byte, error) {
	var body bytes.Buffer
	if err := getMarkdown().Convert([]byte(Markdown(s)), &body); err != nil {
		return nil, fmt.Errorf("failed to render status markdown: %w", err)
	}

	var out bytes.Buffer
	err := page.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{
		Title: "rmon server status",
		Body:  template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render status page: %w", err)
	}
	return out.Bytes(), nil
}
