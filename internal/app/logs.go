package app

import (
	"io"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/large-farva/iss-tracker/internal/telemetry"
	"github.com/large-farva/iss-tracker/internal/ws"
)

// maxLogEntries bounds the in-memory log buffer served on /api/logs.
const maxLogEntries = 500

type logEntry struct {
	TS        string `json:"ts"`
	Level     string `json:"level"`
	Component string `json:"component"`
	Message   string `json:"message"`
}

var levelRank = map[string]int32{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Lines look like "[info] scheduler: refresh loop started". Untagged lines
// are treated as info from the daemon itself.
var levelTag = regexp.MustCompile(`\[(debug|info|warn|error)\] (?:([a-z]+): )?(.*)`)

// logWriter sits behind the daemon's *log.Logger. It drops lines below the
// configured level, writes the rest to out, keeps them in a bounded buffer
// and forwards them to WebSocket clients as log events.
type logWriter struct {
	out io.Writer
	hub *ws.Hub
	min atomic.Int32

	mu      sync.Mutex
	entries []logEntry
}

func newLogWriter(out io.Writer, hub *ws.Hub, level string) *logWriter {
	w := &logWriter{out: out, hub: hub}
	w.SetLevel(level)
	return w
}

// SetLevel changes the minimum level. Unknown names mean info.
func (w *logWriter) SetLevel(level string) {
	rank, ok := levelRank[level]
	if !ok {
		rank = levelRank["info"]
	}
	w.min.Store(rank)
}

func (w *logWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	level, component, msg := "info", "isstrackd", line
	if m := levelTag.FindStringSubmatch(line); m != nil {
		level, msg = m[1], m[3]
		if m[2] != "" {
			component = m[2]
		}
	}
	if levelRank[level] < w.min.Load() {
		return len(p), nil
	}

	if _, err := w.out.Write(p); err != nil {
		return 0, err
	}

	ev := telemetry.NewLogLine(component, level, msg)
	w.mu.Lock()
	w.entries = append(w.entries, logEntry{TS: ev.TS, Level: level, Component: component, Message: msg})
	if len(w.entries) > maxLogEntries {
		w.entries = append(w.entries[:0:0], w.entries[len(w.entries)-maxLogEntries:]...)
	}
	w.mu.Unlock()

	if w.hub != nil {
		w.hub.BroadcastJSON(ev)
	}
	return len(p), nil
}

// Entries returns a copy of the buffered lines, oldest first.
func (w *logWriter) Entries() []logEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]logEntry, len(w.entries))
	copy(out, w.entries)
	return out
}
