// Package telemetry defines the typed event structs that flow over the
// WebSocket connection between isstrackd and its clients.
package telemetry

import "time"

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHeartbeat EventType = "heartbeat"
	EventState     EventType = "state"
	EventLog       EventType = "log"
	EventCycle     EventType = "cycle"
	EventTelemetry EventType = "telemetry"
	EventTable     EventType = "table"
	EventMap       EventType = "map"
)

// Event is the base envelope shared by every event type.
type Event struct {
	Type      EventType `json:"type"`
	TS        string    `json:"ts"`
	Component string    `json:"component,omitempty"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching the
// timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// NewEvent stamps an envelope with the current time.
func NewEvent(t EventType, component string) Event {
	return Event{Type: t, TS: NowTS(), Component: component}
}

// Heartbeat is sent periodically so clients can detect connectivity and
// monitor daemon uptime.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// StateTransition is emitted whenever the refresh loop moves between IDLE
// and REFRESHING.
type StateTransition struct {
	Event
	From string `json:"from"`
	To   string `json:"to"`
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}

// NewLogLine builds a log event for component.
func NewLogLine(component, level, message string) LogLine {
	return LogLine{Event: NewEvent(EventLog, component), Level: level, Message: message}
}

// Cycle summarises one completed refresh cycle.
type Cycle struct {
	Event
	Trigger    string `json:"trigger"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	HistoryLen int    `json:"history_len"`
	Discarded  bool   `json:"discarded,omitempty"`
}

// Telemetry is the panel view of the latest fix.
type Telemetry struct {
	Event
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	AltitudeKm float64  `json:"altitude_km"`
	Timestamp  string   `json:"timestamp"`
	Lines      []string `json:"lines"`
}

// TableRow is one formatted history entry.
type TableRow struct {
	Timestamp  string  `json:"timestamp"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	AltitudeKm float64 `json:"altitude_km"`
}

// Table carries the history newest-first.
type Table struct {
	Event
	Columns []string   `json:"columns"`
	Rows    []TableRow `json:"rows"`
}

// Map carries the ground track as a GeoJSON FeatureCollection.
type Map struct {
	Event
	GeoJSON any `json:"geojson"`
}
