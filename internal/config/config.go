// Package config handles loading, defaulting, and validation of the ISS
// tracker TOML configuration file. Every section maps to a typed struct so
// the rest of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Interval bounds accepted for tracker.interval_seconds.
const (
	MinIntervalSeconds = 5
	MaxIntervalSeconds = 60
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Logging  LoggingConfig  `toml:"logging"  json:"logging"`
	Server   ServerConfig   `toml:"server"   json:"server"`
	Source   SourceConfig   `toml:"source"   json:"source"`
	Tracker  TrackerConfig  `toml:"tracker"  json:"tracker"`
	Observer ObserverConfig `toml:"observer" json:"observer"`
	Demo     DemoConfig     `toml:"demo"     json:"demo"`
}

type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

// SourceConfig describes where element sets come from and which object to
// pick out of the feed.
type SourceConfig struct {
	URL            string `toml:"url"             json:"url"`
	ObjectName     string `toml:"object_name"     json:"object_name"`
	TimeoutSeconds int    `toml:"timeout_seconds" json:"timeout_seconds"`
}

type TrackerConfig struct {
	HistorySize     int  `toml:"history_size"     json:"history_size"`
	AutoRefresh     bool `toml:"auto_refresh"     json:"auto_refresh"`
	IntervalSeconds int  `toml:"interval_seconds" json:"interval_seconds"`
}

// ObserverConfig is the ground location used for pass prediction.
type ObserverConfig struct {
	Latitude       float64 `toml:"latitude"        json:"latitude"`
	Longitude      float64 `toml:"longitude"       json:"longitude"`
	Altitude       float64 `toml:"altitude"        json:"altitude"`
	MinElevation   float64 `toml:"min_elevation"   json:"min_elevation"`
	LookaheadHours int     `toml:"lookahead_hours" json:"lookahead_hours"`
	UseGPSD        bool    `toml:"use_gpsd"        json:"use_gpsd"`
	GPSDHost       string  `toml:"gpsd_host"       json:"gpsd_host"`
}

type DemoConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
}

// Interval returns the refresh cadence as a duration.
func (t TrackerConfig) Interval() time.Duration {
	return time.Duration(t.IntervalSeconds) * time.Second
}

// Timeout returns the fetch timeout as a duration.
func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Bind: "0.0.0.0:8080",
		},
		Source: SourceConfig{
			URL:            "https://celestrak.org/NORAD/elements/stations.txt",
			ObjectName:     "ISS (ZARYA)",
			TimeoutSeconds: 10,
		},
		Tracker: TrackerConfig{
			HistorySize:     20,
			AutoRefresh:     true,
			IntervalSeconds: 10,
		},
		Observer: ObserverConfig{
			MinElevation:   10,
			LookaheadHours: 24,
			GPSDHost:       "localhost:2947",
		},
		Demo: DemoConfig{
			Enabled: false,
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks every constraint the daemon relies on.
func Validate(cfg Config) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", cfg.Logging.Level)
	}
	if cfg.Source.URL == "" {
		return errors.New("source.url must not be empty")
	}
	if cfg.Source.ObjectName == "" {
		return errors.New("source.object_name must not be empty")
	}
	if cfg.Source.TimeoutSeconds < 1 {
		return errors.New("source.timeout_seconds must be >= 1")
	}
	if cfg.Tracker.HistorySize < 1 {
		return errors.New("tracker.history_size must be >= 1")
	}
	if err := ValidateInterval(cfg.Tracker.IntervalSeconds); err != nil {
		return err
	}
	if cfg.Observer.Latitude < -90 || cfg.Observer.Latitude > 90 {
		return errors.New("observer.latitude must be between -90 and 90")
	}
	if cfg.Observer.Longitude < -180 || cfg.Observer.Longitude > 180 {
		return errors.New("observer.longitude must be between -180 and 180")
	}
	if cfg.Observer.MinElevation < 0 || cfg.Observer.MinElevation > 90 {
		return errors.New("observer.min_elevation must be between 0 and 90")
	}
	if cfg.Observer.LookaheadHours < 1 {
		return errors.New("observer.lookahead_hours must be >= 1")
	}
	return nil
}

// ValidateInterval reports whether seconds is an accepted refresh interval.
func ValidateInterval(seconds int) error {
	if seconds < MinIntervalSeconds || seconds > MaxIntervalSeconds {
		return fmt.Errorf("tracker.interval_seconds must be between %d and %d, got %d",
			MinIntervalSeconds, MaxIntervalSeconds, seconds)
	}
	return nil
}
