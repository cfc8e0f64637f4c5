// Package view holds the three presentation sinks fed by the tracker: a
// GeoJSON map of the ground track, a telemetry panel for the latest fix,
// and a newest-first history table. Each keeps its latest rendering for
// HTTP reads and pushes it to WebSocket clients as a retained event.
package view

import (
	"sync"

	"github.com/large-farva/iss-tracker/internal/track"
)

// Retainer receives rendered events. *ws.Hub satisfies it.
type Retainer interface {
	RetainJSON(key string, v any)
}

// Set bundles the three views so they can be subscribed together.
type Set struct {
	Map       *MapView
	Telemetry *TelemetryPanel
	Table     *TableView
}

// NewSet creates all three views publishing to out. out may be nil.
func NewSet(out Retainer) *Set {
	return &Set{
		Map:       NewMapView(out),
		Telemetry: NewTelemetryPanel(out),
		Table:     NewTableView(out),
	}
}

// Sinks returns the views as tracker sinks.
func (s *Set) Sinks() []track.Sink {
	return []track.Sink{s.Map, s.Telemetry, s.Table}
}

// latest stores the most recent rendering of a view.
type latest[T any] struct {
	mu  sync.RWMutex
	val T
	seq uint64
}

func (l *latest[T]) store(seq uint64, v T) {
	l.mu.Lock()
	l.val = v
	l.seq = seq
	l.mu.Unlock()
}

func (l *latest[T]) load() (T, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.val, l.seq
}

func emit(out Retainer, key string, v any) {
	if out != nil {
		out.RetainJSON(key, v)
	}
}
