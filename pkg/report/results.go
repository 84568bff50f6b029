package report

import (
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/rmon-protocol/rmon-go/pkg/catalog"
	"github.com/rmon-protocol/rmon-go/pkg/wire"
)

const unknown = "unknown"

type resultFunc func(r *Renderer, rep *Report, data wire.Fields)

var resultRenderers = map[string]resultFunc{
	catalog.Info:     renderInfo,
	catalog.Battery:  renderBattery,
	catalog.Location: renderLocation,
	catalog.Photo:    renderPhoto,
	catalog.Network:  renderNetwork,
	catalog.Storage:  renderStorage,
	catalog.Apps:     renderApps,
}

// Result renders the agent's reply to command and writes it out.
// The returned error is non-nil only when the report could not be written.
func (r *Renderer) Result(command string, res *wire.Result) (*Report, error) {
	rep := r.BuildResult(command, res)
	return rep, r.emit(rep)
}

// BuildResult renders a command result without writing it.
func (r *Renderer) BuildResult(command string, res *wire.Result) *Report {
	rep := &Report{Title: "Result: " + command}

	status := res.Status
	if status == "" {
		status = unknown
	}
	rep.addf("Status: %s", status)
	rep.addf("Time: %s", r.formatTime(res.Timestamp))

	data := res.Data
	if data == nil {
		data = wire.Fields{}
	}
	if fn, ok := resultRenderers[command]; ok {
		fn(r, rep, data)
	} else {
		renderAllKeys(rep, data)
	}
	return rep
}

func renderInfo(_ *Renderer, rep *Report, data wire.Fields) {
	rep.addf("Device: %s", data.String("device_model", unknown))
	rep.addf("Android version: %s", data.String("android_version", unknown))
	rep.addf("Manufacturer: %s", data.String("manufacturer", unknown))
}

func renderBattery(_ *Renderer, rep *Report, data wire.Fields) {
	rep.addf("Charge level: %s%%", data.String("level", unknown))
	rep.addf("Charging status: %s", data.String("status", unknown))
}

func renderLocation(_ *Renderer, rep *Report, data wire.Fields) {
	if !data.Has("latitude") || !data.Has("longitude") {
		rep.addf("GPS unavailable or permission denied")
		return
	}
	lat := data.String("latitude", "0")
	lon := data.String("longitude", "0")
	rep.addf("Latitude: %s", lat)
	rep.addf("Longitude: %s", lon)
	rep.addf("Accuracy: %s m", data.String("accuracy", unknown))
	rep.addf("Map: %s", MapsURL(lat, lon))
}

func renderPhoto(r *Renderer, rep *Report, data wire.Fields) {
	encoded := data.String("image_base64", "")
	if encoded == "" {
		rep.addf("No photo received")
		return
	}
	r.storeImage(rep, "photo", encoded)
}

func renderNetwork(_ *Renderer, rep *Report, data wire.Fields) {
	rep.addf("WiFi: %s", data.String("wifi_status", unknown))
	rep.addf("Mobile network: %s", data.String("mobile_status", unknown))
}

func renderStorage(_ *Renderer, rep *Report, data wire.Fields) {
	rep.addf("Total space: %s", megabytes(data, "total_space"))
	rep.addf("Free space: %s", megabytes(data, "free_space"))
}

// megabytes formats a field reported in MB.
func megabytes(data wire.Fields, key string) string {
	mb, ok := wire.ToInt64(data[key])
	if !ok || mb < 0 {
		return unknown
	}
	return humanize.IBytes(uint64(mb) << 20)
}

func renderApps(_ *Renderer, rep *Report, data wire.Fields) {
	apps := data.List("installed_apps")
	rep.addf("Installed apps: %d", len(apps))
	for _, app := range firstN(apps, MaxListedApps) {
		rep.addf("- %s (%s)", app.String("name", unknown), app.String("package", unknown))
	}
	moreLine(rep, len(apps), MaxListedApps)
}

// renderAllKeys lists every data key in sorted order.
func renderAllKeys(rep *Report, data wire.Fields) {
	if len(data) == 0 {
		rep.addf("(no data)")
		return
	}
	for _, k := range sortedKeys(data) {
		rep.addf("%s: %s", k, data.String(k, ""))
	}
}

func firstN(items []wire.Fields, n int) []wire.Fields {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func moreLine(rep *Report, total, shown int) {
	if total > shown {
		rep.addf("... and %s more", strconv.Itoa(total-shown))
	}
}
