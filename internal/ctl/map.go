package ctl

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// MapSummary describes the map layer the daemon currently serves.
type MapSummary struct {
	Points   int
	Segments int
	Bound    orb.Bound
	Latest   orb.Point
	HasFix   bool
}

// summarizeMap counts the fix markers and ground-track segments in a
// FeatureCollection and computes their combined bounds.
func summarizeMap(fc *geojson.FeatureCollection) MapSummary {
	var s MapSummary
	first := true
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		switch g := f.Geometry.(type) {
		case orb.Point:
			s.Points++
			if latest, _ := f.Properties["latest"].(bool); latest {
				s.Latest = g
				s.HasFix = true
			}
		case orb.MultiLineString:
			s.Segments += len(g)
		}
		if first {
			s.Bound = f.Geometry.Bound()
			first = false
		} else {
			s.Bound = s.Bound.Union(f.Geometry.Bound())
		}
	}
	return s
}

// Map fetches the GeoJSON map layer. With --json the GeoJSON is printed as
// served, otherwise a summary is shown.
func Map(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	status, body, err := getRaw(baseURL, "/api/map", "application/geo+json")
	if err != nil {
		return err
	}
	if status != 200 {
		return fmt.Errorf("HTTP %d from /api/map", status)
	}

	if jsonOutput {
		fmt.Fprintln(stdout, strings.TrimSpace(string(body)))
		return nil
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return fmt.Errorf("decode map: %w", err)
	}
	s := summarizeMap(fc)

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, header("  MAP LAYER"))
	fmt.Fprintln(stdout, rule(38))
	fmt.Fprintf(stdout, "  %-14s %d\n", colorize(dim, "Fix markers:"), s.Points)
	fmt.Fprintf(stdout, "  %-14s %d\n", colorize(dim, "Track parts:"), s.Segments)
	if s.HasFix {
		// GeoJSON points are (lon, lat).
		fmt.Fprintf(stdout, "  %-14s %.4f°, %.4f°\n", colorize(dim, "Latest:"), s.Latest.Lat(), s.Latest.Lon())
		fmt.Fprintf(stdout, "  %-14s lat %.2f..%.2f  lon %.2f..%.2f\n", colorize(dim, "Bounds:"),
			s.Bound.Min.Lat(), s.Bound.Max.Lat(), s.Bound.Min.Lon(), s.Bound.Max.Lon())
	} else {
		fmt.Fprintf(stdout, "  %-14s %s\n", colorize(dim, "Latest:"), colorize(dim, "no position yet"))
	}
	fmt.Fprintln(stdout)
	return nil
}
