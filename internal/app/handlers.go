package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/large-farva/iss-tracker/internal/config"
	"github.com/large-farva/iss-tracker/internal/demo"
	"github.com/large-farva/iss-tracker/internal/metrics"
	"github.com/large-farva/iss-tracker/internal/predict"
	"github.com/large-farva/iss-tracker/internal/scheduler"
	"github.com/large-farva/iss-tracker/internal/tle"
	"github.com/large-farva/iss-tracker/internal/track"
)

// commandTimeout bounds how long a handler waits for the refresh loop to
// answer a command.
const commandTimeout = 5 * time.Second

// Handler returns the daemon's HTTP routes wrapped in the metrics
// middleware.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/version", a.handleVersion)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/position", a.handlePosition)
	mux.HandleFunc("/api/history", a.handleHistory)
	mux.HandleFunc("/api/map", a.handleMap)
	mux.HandleFunc("/api/table", a.handleTable)
	mux.HandleFunc("/api/telemetry", a.handleTelemetry)
	mux.HandleFunc("/api/next-pass", a.handleNextPass)
	mux.HandleFunc("/api/logs", a.handleLogs)
	mux.HandleFunc("/api/refresh", a.commandHandler("refresh"))
	mux.HandleFunc("/api/pause", a.commandHandler("pause"))
	mux.HandleFunc("/api/resume", a.commandHandler("resume"))
	mux.HandleFunc("/api/reset", a.commandHandler("reset"))
	mux.HandleFunc("/api/interval", a.handleInterval)
	mux.HandleFunc("/api/reload", a.handleReload)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/ws", a.wsHub.Handler())
	mux.Handle(demo.Path, a.demoFeed(demo.Handler()))
	return metrics.Middleware(mux)
}

// ---------------------------------------------------------------------------
// Core handlers
// ---------------------------------------------------------------------------

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	checks := map[string]any{}
	allOK := true

	st := a.scheduler.Status()
	if st.LastError != "" {
		checks["refresh"] = map[string]any{"ok": false, "error": st.LastError, "kind": st.LastErrorKind}
		allOK = false
	} else {
		checks["refresh"] = map[string]any{"ok": true, "cycles": st.Cycles}
	}

	snap := a.tracker.Snapshot()
	checks["history"] = map[string]any{"ok": true, "len": len(snap.Fixes), "capacity": snap.Capacity}

	if a.configPath != "" {
		if _, err := os.Stat(a.configPath); err != nil {
			checks["config_file"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			checks["config_file"] = map[string]any{"ok": true, "path": a.configPath}
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy": allOK,
		"checks":  checks,
	})
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	cfg := a.currentConfig()
	snap := a.tracker.Snapshot()
	src := a.source.Current()

	resp := map[string]any{
		"name":           "iss-tracker",
		"state":          a.state.Load().(string),
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"source_url":     src.URL(),
		"object_name":    src.ObjectName(),
		"refresh":        a.scheduler.Status(),
		"history_len":    len(snap.Fixes),
		"history_cap":    snap.Capacity,
		"demo_enabled":   cfg.Demo.Enabled,
	}
	if cfg.Demo.Enabled {
		resp["mode"] = "demo"
	} else {
		resp["mode"] = "live"
	}
	if !snap.Empty() {
		resp["latest"] = snap.Latest
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	goVersion := GoVersion
	if goVersion == "unknown" {
		goVersion = runtime.Version()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    Version,
		"commit":     Commit,
		"go_version": goVersion,
		"built_at":   BuiltAt,
	})
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.currentConfig())
}

// ---------------------------------------------------------------------------
// History and views
// ---------------------------------------------------------------------------

func (a *App) handlePosition(w http.ResponseWriter, _ *http.Request) {
	fix, ok := a.tracker.Latest()
	if !ok {
		jsonError(w, "no position yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, fix)
}

func (a *App) handleHistory(w http.ResponseWriter, r *http.Request) {
	snap := a.tracker.Snapshot()
	order := r.URL.Query().Get("order")
	switch order {
	case "", "chronological":
		order = "chronological"
	case "newest":
		snap.Fixes = track.NewestFirst(snap.Fixes)
	default:
		jsonError(w, "order must be chronological or newest", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"seq":        snap.Seq,
		"capacity":   snap.Capacity,
		"order":      order,
		"updated_at": snap.UpdatedAt,
		"fixes":      snap.Fixes,
	})
}

func (a *App) handleMap(w http.ResponseWriter, _ *http.Request) {
	fc, _ := a.views.Map.Current()
	b, err := fc.MarshalJSON()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(b)
}

func (a *App) handleTable(w http.ResponseWriter, _ *http.Request) {
	tbl, _ := a.views.Table.Current()
	writeJSON(w, http.StatusOK, tbl)
}

func (a *App) handleTelemetry(w http.ResponseWriter, _ *http.Request) {
	ev, _ := a.views.Telemetry.Current()
	writeJSON(w, http.StatusOK, ev)
}

func (a *App) handleNextPass(w http.ResponseWriter, r *http.Request) {
	cfg := a.currentConfig()
	predictor := predict.NewPredictor(cfg.Observer, a.source, a.log)

	now := time.Now().UTC()
	next, loc, err := predictor.NextPass(r.Context(), now)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, tle.ErrTransport) || errors.Is(err, tle.ErrNotFound) {
			code = http.StatusBadGateway
		}
		jsonError(w, err.Error(), code)
		return
	}

	resp := map[string]any{
		"object":          a.source.Current().ObjectName(),
		"pass":            nil,
		"observer":        loc,
		"min_elevation":   cfg.Observer.MinElevation,
		"lookahead_hours": cfg.Observer.LookaheadHours,
	}
	if next != nil {
		resp["pass"] = passToJSON(*next)
		resp["countdown_s"] = int(next.AOS.Sub(now).Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := a.logs.Entries()

	levelFilter := r.URL.Query().Get("level")
	if levelFilter != "" {
		filtered := []logEntry{}
		for _, e := range entries {
			if e.Level == levelFilter {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n < len(entries) {
			entries = entries[len(entries)-n:]
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

// ---------------------------------------------------------------------------
// Loop controls + reload
// ---------------------------------------------------------------------------

func (a *App) commandHandler(cmdType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		res, err := a.sendSchedulerCommand(r.Context(), cmdType, nil)
		if err != nil {
			jsonError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeCommandResult(w, res)
	}
}

func (a *App) handleInterval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := config.ValidateInterval(req.Seconds); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := a.sendSchedulerCommand(r.Context(), "interval", body)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeCommandResult(w, res)
}

func (a *App) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.configPath == "" {
		jsonError(w, "no config file path set", http.StatusConflict)
		return
	}

	newCfg, err := config.Load(a.configPath)
	if err != nil {
		jsonError(w, "config reload failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	notes := a.applyConfig(r.Context(), newCfg, "api")
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": "configuration reloaded from " + a.configPath,
		"changes": notes,
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// demoFeed serves the built-in feed only while demo mode is on, so a reload
// can switch it on or off without rebuilding the mux.
func (a *App) demoFeed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.currentConfig().Demo.Enabled {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sendSchedulerCommand sends a command to the refresh loop and waits for the
// reply.
func (a *App) sendSchedulerCommand(ctx context.Context, cmdType string, payload json.RawMessage) (scheduler.CommandResult, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	reply := make(chan scheduler.CommandResult, 1)
	select {
	case a.scheduler.Commands <- scheduler.Command{Type: cmdType, Payload: payload, Reply: reply}:
	case <-ctx.Done():
		return scheduler.CommandResult{}, errors.New("refresh loop not responding")
	}

	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return scheduler.CommandResult{}, errors.New("refresh loop not responding")
	}
}

func commandError(res scheduler.CommandResult, err error) string {
	if err != nil {
		return err.Error()
	}
	return res.Error
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{
		"ok":    false,
		"error": msg,
	})
}

// writeCommandResult writes a scheduler.CommandResult as JSON. A refresh
// rejected because one is already running is a conflict, not a failure.
func writeCommandResult(w http.ResponseWriter, result scheduler.CommandResult) {
	code := http.StatusOK
	switch {
	case result.OK:
	case result.InFlight:
		code = http.StatusConflict
	default:
		code = http.StatusBadRequest
	}
	writeJSON(w, code, result)
}

type passJSON struct {
	AOS         string  `json:"aos"`
	LOS         string  `json:"los"`
	MaxElev     float64 `json:"max_elev"`
	MaxElevTime string  `json:"max_elev_time"`
	AOSAzimuth  float64 `json:"aos_azimuth"`
	LOSAzimuth  float64 `json:"los_azimuth"`
	DurationS   int     `json:"duration_s"`
}

func passToJSON(p predict.Pass) passJSON {
	return passJSON{
		AOS:         p.AOS.Format(time.RFC3339),
		LOS:         p.LOS.Format(time.RFC3339),
		MaxElev:     p.MaxElev,
		MaxElevTime: p.MaxElevTime.Format(time.RFC3339),
		AOSAzimuth:  p.AOSAzimuth,
		LOSAzimuth:  p.LOSAzimuth,
		DurationS:   int(p.Duration.Seconds()),
	}
}
