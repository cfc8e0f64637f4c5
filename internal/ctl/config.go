package ctl

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config fetches and displays the daemon's running configuration.
func Config(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var raw json.RawMessage
	if err := getJSON(baseURL, "/api/config", &raw); err != nil {
		return err
	}

	if jsonOutput {
		var v any
		_ = json.Unmarshal(raw, &v)
		return printJSON(v)
	}

	var cfg struct {
		Logging struct {
			Level string `json:"level"`
		} `json:"logging"`
		Server struct {
			Bind string `json:"bind"`
		} `json:"server"`
		Source struct {
			URL            string `json:"url"`
			ObjectName     string `json:"object_name"`
			TimeoutSeconds int    `json:"timeout_seconds"`
		} `json:"source"`
		Tracker struct {
			HistorySize     int  `json:"history_size"`
			AutoRefresh     bool `json:"auto_refresh"`
			IntervalSeconds int  `json:"interval_seconds"`
		} `json:"tracker"`
		Observer struct {
			Latitude       float64 `json:"latitude"`
			Longitude      float64 `json:"longitude"`
			Altitude       float64 `json:"altitude"`
			MinElevation   float64 `json:"min_elevation"`
			LookaheadHours int     `json:"lookahead_hours"`
			UseGPSD        bool    `json:"use_gpsd"`
			GPSDHost       string  `json:"gpsd_host"`
		} `json:"observer"`
		Demo struct {
			Enabled bool `json:"enabled"`
		} `json:"demo"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, header("  DAEMON CONFIGURATION"))
	fmt.Fprintln(stdout, rule(50))

	section := func(name string) {
		fmt.Fprintf(stdout, "\n  %s\n", colorize(bold, "["+name+"]"))
	}
	field := func(key string, val any) {
		fmt.Fprintf(stdout, "    %-20s %v\n", colorize(dim, key+":"), val)
	}

	section("logging")
	field("level", cfg.Logging.Level)

	section("server")
	field("bind", cfg.Server.Bind)

	section("source")
	field("url", cfg.Source.URL)
	field("object_name", cfg.Source.ObjectName)
	field("timeout_seconds", cfg.Source.TimeoutSeconds)

	section("tracker")
	field("history_size", cfg.Tracker.HistorySize)
	field("auto_refresh", cfg.Tracker.AutoRefresh)
	field("interval_seconds", cfg.Tracker.IntervalSeconds)

	section("observer")
	field("latitude", cfg.Observer.Latitude)
	field("longitude", cfg.Observer.Longitude)
	field("altitude", cfg.Observer.Altitude)
	field("min_elevation", cfg.Observer.MinElevation)
	field("lookahead_hours", cfg.Observer.LookaheadHours)
	field("use_gpsd", cfg.Observer.UseGPSD)
	field("gpsd_host", cfg.Observer.GPSDHost)

	section("demo")
	field("enabled", cfg.Demo.Enabled)

	fmt.Fprintln(stdout)

	return nil
}
