// Package app wires together the HTTP server, WebSocket hub, history
// tracker, presentation views and the refresh loop. It owns the daemon's
// lifecycle and is the single source of truth for the current operating
// state.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/large-farva/iss-tracker/internal/config"
	"github.com/large-farva/iss-tracker/internal/demo"
	"github.com/large-farva/iss-tracker/internal/metrics"
	"github.com/large-farva/iss-tracker/internal/scheduler"
	"github.com/large-farva/iss-tracker/internal/telemetry"
	"github.com/large-farva/iss-tracker/internal/tle"
	"github.com/large-farva/iss-tracker/internal/track"
	"github.com/large-farva/iss-tracker/internal/view"
	"github.com/large-farva/iss-tracker/internal/ws"
)

// Options holds everything the App needs from the caller.
type Options struct {
	Logger     *log.Logger
	Cfg        config.Config
	ConfigPath string
	Bind       string
}

// App is the top-level daemon process.
type App struct {
	log  *log.Logger
	logs *logWriter
	bind string

	cfgMu      sync.RWMutex
	cfg        config.Config
	configPath string

	server    *http.Server
	startedAt time.Time
	state     atomic.Value // current state string (BOOTING, IDLE, REFRESHING)

	wsHub     *ws.Hub
	tracker   *track.Tracker
	views     *view.Set
	source    *sourceSwitch
	scheduler *scheduler.Runner
	loops     sync.WaitGroup
}

// New creates an App in the BOOTING state. Call Run to start serving.
func New(opts Options) *App {
	cfg := opts.Cfg
	bind := opts.Bind
	if bind == "" {
		bind = cfg.Server.Bind
	}
	if bind == "" {
		bind = "0.0.0.0:8080"
	}

	hub := ws.NewHub()
	logs := newLogWriter(opts.Logger.Writer(), hub, cfg.Logging.Level)

	a := &App{
		log:        log.New(logs, opts.Logger.Prefix(), opts.Logger.Flags()),
		logs:       logs,
		bind:       bind,
		cfg:        cfg,
		configPath: opts.ConfigPath,
		startedAt:  time.Now(),
		wsHub:      hub,
		tracker:    track.NewTracker(cfg.Tracker.HistorySize),
		views:      view.NewSet(hub),
	}
	a.state.Store("BOOTING")

	for _, s := range a.views.Sinks() {
		a.tracker.Subscribe(s)
	}
	a.tracker.Subscribe(track.SinkFunc(func(s track.Snapshot) {
		metrics.SetHistoryLen(len(s.Fixes))
	}))

	a.source = newSourceSwitch(a.fetcherFor(cfg))
	a.scheduler = scheduler.New(hub, cfg.Tracker, a.source, a.tracker, a.log)
	a.scheduler.SetCycleCallback(a.onCycle)
	return a
}

// Run starts the HTTP server, WebSocket hub, heartbeat ticker, refresh loop
// and config watcher. It blocks until the context is cancelled or the
// server returns an error, then waits for any in-flight refresh.
func (a *App) Run(ctx context.Context) error {
	a.server = &http.Server{
		Addr:              a.bind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", a.bind)
	if err != nil {
		return err
	}

	a.log.Printf("listening on http://%s", ln.Addr())
	if a.currentConfig().Demo.Enabled {
		a.log.Printf("[info] demo mode: serving built-in feed at %s", a.source.Current().URL())
	}

	a.start(ctx)

	if a.configPath != "" {
		go func() {
			err := config.Watch(ctx, a.configPath,
				func(cfg config.Config) { a.applyConfig(ctx, cfg, "file change") },
				func(err error) { a.log.Printf("[warn] config: reload failed: %v", err) },
			)
			if err != nil {
				a.log.Printf("[warn] config: watcher not started: %v", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		a.log.Printf("shutdown requested")
		_ = a.server.Shutdown(context.Background())
	}()

	err = a.server.Serve(ln)
	a.loops.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// start launches the background loops that do not depend on the listener.
func (a *App) start(ctx context.Context) {
	go a.wsHub.Run(ctx)
	a.transition(scheduler.StateIdle)
	go a.heartbeatLoop(ctx)

	a.loops.Add(1)
	go func() {
		defer a.loops.Done()
		a.scheduler.Run(ctx, a.transition)
	}()
}

func (a *App) fetcherFor(cfg config.Config) *tle.Fetcher {
	url := cfg.Source.URL
	if cfg.Demo.Enabled {
		url = demo.URL(a.bind)
	}
	return tle.NewFetcher(url, cfg.Source.ObjectName, cfg.Source.Timeout())
}

func (a *App) currentConfig() config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// transition atomically updates the daemon state and broadcasts the change
// to all connected WebSocket clients.
func (a *App) transition(newState string) {
	old := a.state.Swap(newState).(string)
	if old == newState {
		return
	}
	a.wsHub.BroadcastJSON(telemetry.StateTransition{
		Event: telemetry.NewEvent(telemetry.EventState, "isstrackd"),
		From:  old,
		To:    newState,
	})
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.wsHub.BroadcastJSON(telemetry.Heartbeat{
				Event:         telemetry.NewEvent(telemetry.EventHeartbeat, "isstrackd"),
				State:         a.state.Load().(string),
				UptimeSeconds: int64(time.Since(a.startedAt).Seconds()),
			})
		}
	}
}

func (a *App) onCycle(rep scheduler.CycleReport) {
	result := "ok"
	switch {
	case rep.Err != nil:
		result = scheduler.ErrorKind(rep.Err)
	case rep.Discarded:
		result = "discarded"
	}
	metrics.ObserveCycle(rep.Trigger, result, rep.Duration, rep.HistoryLen, time.Now())
}

// applyConfig swaps in a reloaded config. Source, observer and logging
// changes apply immediately; interval and auto-refresh are sent to the
// loop as commands. history_size needs a restart.
func (a *App) applyConfig(ctx context.Context, cfg config.Config, reason string) []string {
	a.cfgMu.Lock()
	old := a.cfg
	a.cfg = cfg
	a.cfgMu.Unlock()

	var notes []string
	a.logs.SetLevel(cfg.Logging.Level)

	if cfg.Source != old.Source || cfg.Demo != old.Demo {
		a.source.Set(a.fetcherFor(cfg))
		notes = append(notes, "source updated")
	}
	if cfg.Tracker.HistorySize != old.Tracker.HistorySize {
		notes = append(notes, "history_size change takes effect after restart")
	}
	if cfg.Server.Bind != old.Server.Bind {
		notes = append(notes, "server.bind change takes effect after restart")
	}

	if cfg.Tracker.IntervalSeconds != a.scheduler.Status().IntervalSeconds {
		payload := []byte(fmt.Sprintf(`{"seconds":%d}`, cfg.Tracker.IntervalSeconds))
		if res, err := a.sendSchedulerCommand(ctx, "interval", payload); err != nil || !res.OK {
			notes = append(notes, "interval not applied: "+commandError(res, err))
		} else {
			notes = append(notes, res.Message)
		}
	}
	if cfg.Tracker.AutoRefresh != a.scheduler.AutoRefresh() {
		cmd := "pause"
		if cfg.Tracker.AutoRefresh {
			cmd = "resume"
		}
		if res, err := a.sendSchedulerCommand(ctx, cmd, nil); err != nil || !res.OK {
			notes = append(notes, cmd+" not applied: "+commandError(res, err))
		} else {
			notes = append(notes, res.Message)
		}
	}

	a.log.Printf("[info] config: reloaded (%s)", reason)
	for _, n := range notes {
		a.log.Printf("[info] config: %s", n)
	}
	return notes
}

// sourceSwitch lets a config reload replace the fetcher under the running
// loop.
type sourceSwitch struct {
	cur atomic.Pointer[tle.Fetcher]
}

func newSourceSwitch(f *tle.Fetcher) *sourceSwitch {
	s := &sourceSwitch{}
	s.cur.Store(f)
	return s
}

func (s *sourceSwitch) Set(f *tle.Fetcher)    { s.cur.Store(f) }
func (s *sourceSwitch) Current() *tle.Fetcher { return s.cur.Load() }

func (s *sourceSwitch) FetchElements(ctx context.Context) (tle.ElementSet, error) {
	return s.cur.Load().FetchElements(ctx)
}
