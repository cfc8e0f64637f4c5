package view

import (
	"fmt"

	"github.com/large-farva/iss-tracker/internal/telemetry"
	"github.com/large-farva/iss-tracker/internal/track"
)

// UpdateLayout is how the panel prints the fix timestamp.
const UpdateLayout = "2006-01-02 15:04:05 UTC"

// TelemetryPanel shows only the latest fix.
type TelemetryPanel struct {
	out Retainer
	cur latest[telemetry.Telemetry]
}

func NewTelemetryPanel(out Retainer) *TelemetryPanel {
	return &TelemetryPanel{out: out}
}

// Publish implements track.Sink. An empty snapshot clears the panel.
func (p *TelemetryPanel) Publish(s track.Snapshot) {
	ev := RenderTelemetry(s)
	p.cur.store(s.Seq, ev)
	emit(p.out, string(telemetry.EventTelemetry), ev)
}

// Current returns the latest panel contents and its snapshot sequence.
func (p *TelemetryPanel) Current() (telemetry.Telemetry, uint64) {
	return p.cur.load()
}

// RenderTelemetry formats the latest fix of s.
func RenderTelemetry(s track.Snapshot) telemetry.Telemetry {
	ev := telemetry.Telemetry{Event: telemetry.NewEvent(telemetry.EventTelemetry, "view")}
	if s.Empty() {
		return ev
	}

	f := s.Latest
	ev.Latitude = f.Lat
	ev.Longitude = f.Lon
	ev.AltitudeKm = f.AltKm
	ev.Timestamp = f.Time.UTC().Format(UpdateLayout)
	ev.Lines = []string{
		fmt.Sprintf("Latitude: %.4f°", f.Lat),
		fmt.Sprintf("Longitude: %.4f°", f.Lon),
		fmt.Sprintf("Altitude: %.1f km", f.AltKm),
		"Last Update: " + ev.Timestamp,
	}
	return ev
}
