package ctl

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })
	return &buf
}

func serveJSON(t *testing.T, routes map[string]func(w http.ResponseWriter, r *http.Request)) string {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range routes {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func reply(code int, body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}
}

func TestStatusSummary(t *testing.T) {
	out := captureStdout(t)
	base := serveJSON(t, map[string]func(http.ResponseWriter, *http.Request){
		"/api/status": reply(200, `{
			"name": "iss-tracker", "state": "IDLE", "mode": "live", "uptime_seconds": 75,
			"object_name": "ISS (ZARYA)", "history_len": 3, "history_cap": 20,
			"latest": {"timestamp": "2026-10-18T12:00:00Z", "latitude": 12.5, "longitude": -45.25, "altitude_km": 418.2},
			"refresh": {"state": "IDLE", "auto_refresh": false, "interval_seconds": 300, "cycles": 4, "failures": 1,
				"last_error": "fetch elements: boom", "last_error_kind": "transport"}
		}`),
	})

	if err := Status(base, false); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, want := range []string{"IDLE", "ISS (ZARYA)", "paused every 5m 0s", "4 ok, 1 failed", "3 / 20 fixes", "12.5000°, -45.2500°", "[transport] fetch elements: boom"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestErrorFieldSurfaced(t *testing.T) {
	captureStdout(t)
	base := serveJSON(t, map[string]func(http.ResponseWriter, *http.Request){
		"/api/position": reply(404, `{"ok": false, "error": "no position yet"}`),
	})

	err := Position(base, false)
	if err == nil || !strings.Contains(err.Error(), "no position yet") {
		t.Fatalf("err = %v", err)
	}
}

func TestRefreshInFlightIsBusy(t *testing.T) {
	out := captureStdout(t)
	base := serveJSON(t, map[string]func(http.ResponseWriter, *http.Request){
		"/api/refresh": reply(409, `{"ok": false, "error": "refresh cycle already in flight", "auto_refresh": true, "in_flight": true}`),
	})

	if err := Refresh(base, false); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); !strings.Contains(got, "BUSY") || !strings.Contains(got, "already in flight") {
		t.Errorf("output = %q", got)
	}
}

func TestIntervalSendsSeconds(t *testing.T) {
	out := captureStdout(t)
	seen := make(chan int, 1)
	base := serveJSON(t, map[string]func(http.ResponseWriter, *http.Request){
		"/api/interval": func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Seconds int `json:"seconds"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			seen <- req.Seconds
			reply(200, `{"ok": true, "message": "interval set to 2m0s", "interval_seconds": 120, "auto_refresh": true}`)(w, r)
		},
	})

	if err := SetInterval(base, 120, false); err != nil {
		t.Fatal(err)
	}
	if got := <-seen; got != 120 {
		t.Errorf("daemon saw seconds = %d", got)
	}
	if !strings.Contains(out.String(), "interval set to 2m0s") {
		t.Errorf("output = %q", out.String())
	}
}

func TestIntervalRejected(t *testing.T) {
	out := captureStdout(t)
	base := serveJSON(t, map[string]func(http.ResponseWriter, *http.Request){
		"/api/interval": reply(400, `{"ok": false, "error": "interval must be at least 1 second"}`),
	})

	if err := SetInterval(base, 0, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "ERROR") {
		t.Errorf("output = %q", out.String())
	}
}

func TestHistoryTable(t *testing.T) {
	out := captureStdout(t)
	order := make(chan string, 1)
	base := serveJSON(t, map[string]func(http.ResponseWriter, *http.Request){
		"/api/history": func(w http.ResponseWriter, r *http.Request) {
			order <- r.URL.Query().Get("order")
			reply(200, `{"seq": 2, "capacity": 20, "order": "newest", "fixes": [
				{"timestamp": "2026-10-18T12:01:00Z", "latitude": 1.5, "longitude": 2.5, "altitude_km": 410},
				{"timestamp": "2026-10-18T12:00:00Z", "latitude": 1.0, "longitude": 2.0, "altitude_km": 409}
			]}`)(w, r)
		},
	})

	if err := History(base, HistoryOptions{Limit: 1}); err != nil {
		t.Fatal(err)
	}
	if got := <-order; got != "newest" {
		t.Errorf("order = %q", got)
	}
	got := out.String()
	if !strings.Contains(got, "1.5000") || strings.Contains(got, "1.0000") {
		t.Errorf("limit not applied:\n%s", got)
	}
	if !strings.Contains(got, "Altitude (km)") {
		t.Errorf("missing header:\n%s", got)
	}
}

func TestSummarizeMap(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	for i, p := range []orb.Point{{170, 10}, {-175, 12}} {
		f := geojson.NewFeature(p)
		f.Properties["latest"] = i == 1
		fc.Append(f)
	}
	fc.Append(geojson.NewFeature(orb.MultiLineString{
		{{160, 8}, {170, 10}},
		{{-175, 12}, {-170, 14}},
	}))

	s := summarizeMap(fc)
	if s.Points != 2 || s.Segments != 2 {
		t.Errorf("points=%d segments=%d", s.Points, s.Segments)
	}
	if !s.HasFix || s.Latest != (orb.Point{-175, 12}) {
		t.Errorf("latest = %v", s.Latest)
	}
	if s.Bound.Min.Lat() != 8 || s.Bound.Max.Lat() != 14 {
		t.Errorf("bound = %v", s.Bound)
	}
}

func TestWSURL(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"http://127.0.0.1:8080", "ws://127.0.0.1:8080/ws", false},
		{"https://tracker.example/", "wss://tracker.example/ws", false},
		{"http://host:8080/api?x=1", "ws://host:8080/ws", false},
		{"ftp://host", "", true},
	}
	for _, tt := range tests {
		got, err := wsURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("wsURL(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("wsURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderEvents(t *testing.T) {
	out := captureStdout(t)
	renderEvent([]byte(`{"type":"cycle","ts":"2026-10-18T12:00:00Z","trigger":"timer","ok":false,"error":"fetch elements: timeout","error_kind":"transport","duration_ms":12,"history_len":3}`))
	renderEvent([]byte(`{"type":"telemetry","ts":"2026-10-18T12:00:00Z","lines":["Latitude: 1.0000°","Longitude: 2.0000°"]}`))
	renderEvent([]byte(`{"type":"telemetry","ts":"2026-10-18T12:00:00Z","lines":[]}`))

	got := out.String()
	for _, want := range []string{"failed [transport] fetch elements: timeout", "3 fixes", "Latitude: 1.0000°  Longitude: 2.0000°", "cleared"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
