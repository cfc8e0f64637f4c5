package view

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/large-farva/iss-tracker/internal/telemetry"
	"github.com/large-farva/iss-tracker/internal/track"
)

// MapView renders the full chronological history as a GeoJSON
// FeatureCollection: one Point per fix and a ground track line that is
// split wherever it crosses the antimeridian.
type MapView struct {
	out Retainer
	cur latest[*geojson.FeatureCollection]
}

func NewMapView(out Retainer) *MapView {
	v := &MapView{out: out}
	v.cur.store(0, geojson.NewFeatureCollection())
	return v
}

// Publish implements track.Sink.
func (v *MapView) Publish(s track.Snapshot) {
	fc := RenderMap(s.Fixes)
	v.cur.store(s.Seq, fc)
	emit(v.out, string(telemetry.EventMap), telemetry.Map{
		Event:   telemetry.NewEvent(telemetry.EventMap, "view"),
		GeoJSON: fc,
	})
}

// Current returns the latest rendering and the snapshot sequence it came
// from.
func (v *MapView) Current() (*geojson.FeatureCollection, uint64) {
	return v.cur.load()
}

// RenderMap builds the feature collection for fixes in chronological order.
func RenderMap(fixes []track.Fix) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for i, f := range fixes {
		feat := geojson.NewFeature(orb.Point{f.Lon, f.Lat})
		feat.Properties["kind"] = "fix"
		feat.Properties["timestamp"] = f.Time.UTC().Format(time.RFC3339)
		feat.Properties["altitude_km"] = f.AltKm
		feat.Properties["latest"] = i == len(fixes)-1
		fc.Append(feat)
	}

	if ground := groundTrack(fixes); len(ground) > 0 {
		feat := geojson.NewFeature(ground)
		feat.Properties["kind"] = "ground_track"
		fc.Append(feat)
	}

	return fc
}

// groundTrack joins consecutive fixes into line segments, starting a new
// segment when the longitude jumps by more than 180 degrees. Segments with
// a single point are dropped.
func groundTrack(fixes []track.Fix) orb.MultiLineString {
	var (
		out orb.MultiLineString
		cur orb.LineString
	)
	flush := func() {
		if len(cur) >= 2 {
			out = append(out, cur)
		}
		cur = nil
	}

	for i, f := range fixes {
		if i > 0 && math.Abs(f.Lon-fixes[i-1].Lon) > 180 {
			flush()
		}
		cur = append(cur, orb.Point{f.Lon, f.Lat})
	}
	flush()
	return out
}
