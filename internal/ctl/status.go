package ctl

import (
	"fmt"
	"strings"
	"time"
)

// Fix mirrors one position fix as the daemon encodes it.
type Fix struct {
	Timestamp  string  `json:"timestamp"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	AltitudeKm float64 `json:"altitude_km"`
}

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name          string `json:"name"`
	State         string `json:"state"`
	Mode          string `json:"mode"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	SourceURL     string `json:"source_url"`
	ObjectName    string `json:"object_name"`
	HistoryLen    int    `json:"history_len"`
	HistoryCap    int    `json:"history_cap"`
	Latest        *Fix   `json:"latest,omitempty"`
	Refresh       struct {
		State           string `json:"state"`
		AutoRefresh     bool   `json:"auto_refresh"`
		IntervalSeconds int    `json:"interval_seconds"`
		InFlight        bool   `json:"in_flight"`
		Cycles          int64  `json:"cycles"`
		Failures        int64  `json:"failures"`
		LastSuccess     string `json:"last_success,omitempty"`
		LastError       string `json:"last_error,omitempty"`
		LastErrorKind   string `json:"last_error_kind,omitempty"`
		LastErrorAt     string `json:"last_error_at,omitempty"`
	} `json:"refresh"`
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
	auto := colorize(green, "on")
	if !s.Refresh.AutoRefresh {
		auto = colorize(yellow, "paused")
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, header("  ISS TRACKER STATUS"))
	fmt.Fprintln(stdout, rule(44))
	fmt.Fprintf(stdout, "  %-14s %s (%s)\n", colorize(dim, "Daemon:"), s.Name, s.Mode)
	fmt.Fprintf(stdout, "  %-14s %s\n", colorize(dim, "State:"), colorize(stateColor(s.State), s.State))
	fmt.Fprintf(stdout, "  %-14s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Fprintf(stdout, "  %-14s %s\n", colorize(dim, "Object:"), s.ObjectName)
	fmt.Fprintf(stdout, "  %-14s %s\n", colorize(dim, "Source:"), s.SourceURL)
	fmt.Fprintf(stdout, "  %-14s %s every %s\n", colorize(dim, "Auto-refresh:"), auto,
		formatDuration(time.Duration(s.Refresh.IntervalSeconds)*time.Second))
	fmt.Fprintf(stdout, "  %-14s %d ok, %d failed\n", colorize(dim, "Cycles:"), s.Refresh.Cycles, s.Refresh.Failures)
	fmt.Fprintf(stdout, "  %-14s %d / %d fixes\n", colorize(dim, "History:"), s.HistoryLen, s.HistoryCap)

	if s.Latest != nil {
		fmt.Fprintf(stdout, "  %-14s %.4f°, %.4f°, %.1f km at %s\n", colorize(dim, "Latest:"),
			s.Latest.Latitude, s.Latest.Longitude, s.Latest.AltitudeKm, formatTime(s.Latest.Timestamp))
	} else {
		fmt.Fprintf(stdout, "  %-14s %s\n", colorize(dim, "Latest:"), colorize(dim, "no position yet"))
	}
	if s.Refresh.LastError != "" {
		fmt.Fprintf(stdout, "  %-14s %s %s\n", colorize(dim, "Last error:"),
			colorize(red, "["+s.Refresh.LastErrorKind+"]"), s.Refresh.LastError)
	}
	fmt.Fprintf(stdout, "  %-14s %s\n", colorize(dim, "Host:"), baseURL)
	fmt.Fprintln(stdout)

	return nil
}
