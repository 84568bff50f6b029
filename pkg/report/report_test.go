package report

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rmon-protocol/rmon-go/pkg/storage"
	"github.com/rmon-protocol/rmon-go/pkg/wire"
)

var testNow = time.Unix(1700000000, 0)

func newTestRenderer(t *testing.T, sink storage.Sink) (*Renderer, *bytes.Buffer) {
	t.Helper()
	out := new(bytes.Buffer)
	r := New(Config{
		Output: out,
		Sink:   sink,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:  func() time.Time { return testNow },
	})
	return r, out
}

func hasLine(rep *Report, want string) bool {
	for _, l := range rep.Lines {
		if l == want {
			return true
		}
	}
	return false
}

func TestResultBattery(t *testing.T) {
	r, out := newTestRenderer(t, nil)

	rep, err := r.Result("battery", &wire.Result{
		Status:    "success",
		Timestamp: testNow.Unix(),
		Data:      wire.Fields{"level": float64(80), "status": "charging"},
	})
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}

	if rep.Title != "Result: battery" {
		t.Errorf("Title = %q", rep.Title)
	}
	for _, want := range []string{"Status: success", "Charge level: 80%", "Charging status: charging"} {
		if !hasLine(rep, want) {
			t.Errorf("missing line %q in %v", want, rep.Lines)
		}
	}
	if !strings.Contains(out.String(), "=== Result: battery ===") {
		t.Errorf("output missing heading: %q", out.String())
	}
}

func TestResultPlaceholders(t *testing.T) {
	r, _ := newTestRenderer(t, nil)

	rep := r.BuildResult("info", &wire.Result{})
	for _, want := range []string{"Status: unknown", "Time: unknown", "Device: unknown", "Manufacturer: unknown"} {
		if !hasLine(rep, want) {
			t.Errorf("missing line %q in %v", want, rep.Lines)
		}
	}
}

func TestResultLocation(t *testing.T) {
	r, _ := newTestRenderer(t, nil)

	rep := r.BuildResult("location", &wire.Result{Data: wire.Fields{
		"latitude": 52.52, "longitude": 13.405, "accuracy": float64(12),
	}})
	if !hasLine(rep, "Map: https://maps.google.com/maps?q=52.52,13.405") {
		t.Errorf("missing map link in %v", rep.Lines)
	}

	rep = r.BuildResult("location", &wire.Result{Data: wire.Fields{}})
	if !hasLine(rep, "GPS unavailable or permission denied") {
		t.Errorf("missing unavailable line in %v", rep.Lines)
	}
}

func TestResultPhotoStored(t *testing.T) {
	sink := storage.NewMemorySink()
	r, _ := newTestRenderer(t, sink)

	img := []byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3}
	rep := r.BuildResult("photo", &wire.Result{Data: wire.Fields{
		"image_base64": base64.StdEncoding.EncodeToString(img),
	}})

	if len(rep.Artifacts) != 1 || rep.Artifacts[0] != "photo_1700000000.jpg" {
		t.Fatalf("Artifacts = %v", rep.Artifacts)
	}
	got, _ := sink.Get("photo_1700000000.jpg")
	if !bytes.Equal(got, img) {
		t.Errorf("stored %v, want %v", got, img)
	}
}

func TestResultApps(t *testing.T) {
	r, _ := newTestRenderer(t, nil)

	apps := make([]any, 14)
	for i := range apps {
		apps[i] = map[string]any{"name": fmt.Sprintf("App %d", i), "package": fmt.Sprintf("com.example.app%d", i)}
	}
	rep := r.BuildResult("apps", &wire.Result{Data: wire.Fields{"installed_apps": apps}})

	if !hasLine(rep, "Installed apps: 14") {
		t.Errorf("missing total in %v", rep.Lines)
	}
	listed := 0
	for _, l := range rep.Lines {
		if strings.HasPrefix(l, "- App") {
			listed++
		}
	}
	if listed != MaxListedApps {
		t.Errorf("listed %d apps, want %d", listed, MaxListedApps)
	}
	if !hasLine(rep, "... and 4 more") {
		t.Errorf("missing remainder line in %v", rep.Lines)
	}
}

func TestResultStorageHumanized(t *testing.T) {
	r, _ := newTestRenderer(t, nil)

	rep := r.BuildResult("storage", &wire.Result{Data: wire.Fields{"total_space": float64(2048), "free_space": "bogus"}})
	if !hasLine(rep, "Total space: 2.0 GiB") {
		t.Errorf("unexpected lines %v", rep.Lines)
	}
	if !hasLine(rep, "Free space: unknown") {
		t.Errorf("unexpected lines %v", rep.Lines)
	}
}

func TestDecodeBase64(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"standard", "aGVsbG8=", "hello", false},
		{"wrapped lines", "aGVs\nbG8=\n", "hello", false},
		{"url safe", "-_8=", "\xfb\xff", false},
		{"invalid", "!!!not base64!!!", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBase64(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

type failingSink struct{}

func (failingSink) Store([]byte, string) (string, error) {
	return "", fmt.Errorf("%w: disk full", storage.ErrStorage)
}

func TestImageProblemsAreNonFatal(t *testing.T) {
	r, out := newTestRenderer(t, failingSink{})

	rep, err := r.Telemetry(&wire.TelemetryRequest{
		Type: TypeCamera,
		Data: wire.Fields{"image": base64.StdEncoding.EncodeToString([]byte("jpeg"))},
	}, Origin{})
	if err != nil {
		t.Fatalf("Telemetry failed: %v", err)
	}
	if len(rep.Problems) != 1 || !errors.Is(rep.Problems[0], storage.ErrStorage) {
		t.Errorf("Problems = %v, want one storage error", rep.Problems)
	}
	if out.Len() == 0 {
		t.Error("report was not written")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestWriteFailureIsReturned(t *testing.T) {
	r := New(Config{Output: failingWriter{}, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if _, err := r.Result("info", &wire.Result{}); err == nil {
		t.Error("expected write error")
	}
}
