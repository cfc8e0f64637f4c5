package ctl

import (
	"fmt"
	"strings"
)

// Position shows the most recent fix.
func Position(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var fix Fix
	if err := getJSON(baseURL, "/api/position", &fix); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(fix)
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, header("  CURRENT POSITION"))
	fmt.Fprintln(stdout, rule(38))
	fmt.Fprintf(stdout, "  %-12s %.4f°\n", colorize(dim, "Latitude:"), fix.Latitude)
	fmt.Fprintf(stdout, "  %-12s %.4f°\n", colorize(dim, "Longitude:"), fix.Longitude)
	fmt.Fprintf(stdout, "  %-12s %.1f km\n", colorize(dim, "Altitude:"), fix.AltitudeKm)
	fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "Updated:"), formatTime(fix.Timestamp))
	fmt.Fprintln(stdout)
	return nil
}
