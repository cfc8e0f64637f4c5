// Package scheduler runs the refresh loop that drives the isstrackd daemon.
// On a fixed interval, or when an operator asks, it fetches the current
// element set, propagates it to a position fix and merges the fix into the
// tracker, which republishes to every view. At most one cycle is in flight.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/large-farva/iss-tracker/internal/config"
	"github.com/large-farva/iss-tracker/internal/predict"
	"github.com/large-farva/iss-tracker/internal/telemetry"
	"github.com/large-farva/iss-tracker/internal/tle"
	"github.com/large-farva/iss-tracker/internal/track"
	"github.com/large-farva/iss-tracker/internal/ws"
)

// Loop states.
const (
	StateIdle       = "IDLE"
	StateRefreshing = "REFRESHING"
)

// Cycle triggers.
const (
	TriggerStartup = "startup"
	TriggerTimer   = "timer"
	TriggerManual  = "manual"
)

// ErrCycleInFlight is returned when a cycle is requested while another is
// still running. The request is dropped, not queued.
var ErrCycleInFlight = errors.New("refresh cycle already in flight")

// Command represents an external command sent to the loop via its Commands
// channel. The Reply channel receives exactly one result.
type Command struct {
	Type    string
	Payload json.RawMessage
	Reply   chan<- CommandResult
}

// CommandResult is the response sent back through a Command's Reply channel.
type CommandResult struct {
	OK              bool   `json:"ok"`
	Message         string `json:"message,omitempty"`
	Error           string `json:"error,omitempty"`
	IntervalSeconds int    `json:"interval_seconds,omitempty"`
	AutoRefresh     bool   `json:"auto_refresh"`
	InFlight        bool   `json:"in_flight,omitempty"`
}

// ElementSource yields a fresh element set on each call.
type ElementSource interface {
	FetchElements(ctx context.Context) (tle.ElementSet, error)
}

// PropagateFunc turns an element set into a fix at the given time.
type PropagateFunc func(tle.ElementSet, time.Time) (track.Fix, error)

// Timer is the subset of *time.Timer the loop needs.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// TimerFunc creates a Timer that fires once after d.
type TimerFunc func(d time.Duration) Timer

type stdTimer struct{ t *time.Timer }

func (s stdTimer) C() <-chan time.Time { return s.t.C }
func (s stdTimer) Stop() bool          { return s.t.Stop() }

// NewStdTimer wraps time.NewTimer.
func NewStdTimer(d time.Duration) Timer { return stdTimer{time.NewTimer(d)} }

// CycleReport describes one finished cycle.
type CycleReport struct {
	Trigger    string
	Started    time.Time
	Duration   time.Duration
	Fix        track.Fix
	HistoryLen int
	Discarded  bool
	Err        error
}

// ErrorKind classifies a cycle error as transport, not_found or invalid.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, tle.ErrTransport):
		return "transport"
	case errors.Is(err, tle.ErrNotFound):
		return "not_found"
	case errors.Is(err, predict.ErrInvalid):
		return "invalid"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of the loop.
type Status struct {
	State           string    `json:"state"`
	AutoRefresh     bool      `json:"auto_refresh"`
	IntervalSeconds int       `json:"interval_seconds"`
	InFlight        bool      `json:"in_flight"`
	Cycles          int64     `json:"cycles"`
	Failures        int64     `json:"failures"`
	LastSuccess     time.Time `json:"last_success,omitzero"`
	LastError       string    `json:"last_error,omitempty"`
	LastErrorKind   string    `json:"last_error_kind,omitempty"`
	LastErrorAt     time.Time `json:"last_error_at,omitzero"`
}

// Runner owns the refresh loop.
type Runner struct {
	Hub *ws.Hub
	Log *log.Logger

	// Commands receives external commands from HTTP handlers.
	Commands chan Command

	// Propagate, NewTimer and Now default to the real implementations and
	// may be replaced before Run.
	Propagate PropagateFunc
	NewTimer  TimerFunc
	Now       func() time.Time

	source  ElementSource
	tracker *track.Tracker

	auto     atomic.Bool
	interval atomic.Int64 // seconds
	inFlight atomic.Bool
	cycles   sync.WaitGroup

	mu            sync.Mutex
	state         string
	setState      func(string)
	cycleCallback func(CycleReport)
	cycleCount    int64
	failures      int64
	lastSuccess   time.Time
	lastErr       error
	lastErrAt     time.Time
}

// New creates a loop that refreshes tracker from source.
func New(hub *ws.Hub, cfg config.TrackerConfig, source ElementSource, tracker *track.Tracker, logger *log.Logger) *Runner {
	r := &Runner{
		Hub:       hub,
		Log:       logger,
		Commands:  make(chan Command, 4),
		Propagate: predict.Position,
		NewTimer:  NewStdTimer,
		Now:       time.Now,
		source:    source,
		tracker:   tracker,
		state:     StateIdle,
	}
	r.auto.Store(cfg.AutoRefresh)
	r.interval.Store(int64(cfg.IntervalSeconds))
	return r
}

// SetCycleCallback registers a function called after every cycle.
func (r *Runner) SetCycleCallback(fn func(CycleReport)) {
	r.mu.Lock()
	r.cycleCallback = fn
	r.mu.Unlock()
}

// Interval returns the current refresh interval.
func (r *Runner) Interval() time.Duration {
	return time.Duration(r.interval.Load()) * time.Second
}

// AutoRefresh reports whether timer-driven cycles are enabled.
func (r *Runner) AutoRefresh() bool {
	return r.auto.Load()
}

// Status returns the loop's current state and last outcome.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Status{
		State:           r.state,
		AutoRefresh:     r.auto.Load(),
		IntervalSeconds: int(r.interval.Load()),
		InFlight:        r.inFlight.Load(),
		Cycles:          r.cycleCount,
		Failures:        r.failures,
		LastSuccess:     r.lastSuccess,
		LastErrorAt:     r.lastErrAt,
	}
	if r.lastErr != nil {
		s.LastError = r.lastErr.Error()
		s.LastErrorKind = ErrorKind(r.lastErr)
	}
	return s
}

// Run is the main loop. It returns once ctx is cancelled and any in-flight
// cycle has finished.
func (r *Runner) Run(ctx context.Context, setState func(string)) {
	r.mu.Lock()
	r.setState = setState
	r.mu.Unlock()

	r.logf("info", "refresh loop started (interval %s, auto-refresh %t)", r.Interval(), r.auto.Load())
	defer r.cycles.Wait()

	var timer Timer
	disarm := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
	}
	arm := func() {
		disarm()
		if r.auto.Load() {
			timer = r.NewTimer(r.Interval())
		}
	}
	tick := func() <-chan time.Time {
		if timer == nil {
			return nil
		}
		return timer.C()
	}

	if r.auto.Load() {
		_ = r.startCycle(ctx, TriggerStartup)
	}
	arm()

	for {
		select {
		case <-ctx.Done():
			disarm()
			r.logf("info", "refresh loop stopping")
			return

		case <-tick():
			timer = nil
			if err := r.startCycle(ctx, TriggerTimer); err != nil {
				r.logf("debug", "timer tick skipped: %v", err)
			}
			arm()

		case cmd := <-r.Commands:
			if r.handleCommand(ctx, cmd) {
				arm()
			}
		}
	}
}

// RunCycle runs one cycle on the calling goroutine. It returns
// ErrCycleInFlight without doing anything if a cycle is already running;
// otherwise the returned error is the cycle's own outcome.
func (r *Runner) RunCycle(ctx context.Context, trigger string) (CycleReport, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInFlight
	}
	rep := r.cycle(ctx, trigger)
	r.inFlight.Store(false)
	r.publishCycle(rep)
	return rep, rep.Err
}

// startCycle launches a cycle on its own goroutine so the loop keeps
// handling commands while the fetch is outstanding.
func (r *Runner) startCycle(ctx context.Context, trigger string) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		return ErrCycleInFlight
	}
	r.cycles.Add(1)
	go func() {
		defer r.cycles.Done()
		rep := r.cycle(ctx, trigger)
		r.inFlight.Store(false)
		r.publishCycle(rep)
	}()
	return nil
}

func (r *Runner) cycle(ctx context.Context, trigger string) CycleReport {
	r.transition(StateRefreshing)
	defer r.transition(StateIdle)

	rep := CycleReport{Trigger: trigger, Started: r.Now()}
	generation := r.tracker.Generation()

	fix, err := r.fetchFix(ctx)
	rep.Duration = r.Now().Sub(rep.Started)

	if err != nil {
		rep.Err = err
		rep.HistoryLen = r.tracker.Len()
		r.recordFailure(err)
		r.logf("error", "refresh failed (%s): %v", ErrorKind(err), err)
	} else {
		snap, merged := r.tracker.MergeAt(generation, fix)
		rep.Fix = fix
		rep.HistoryLen = len(snap.Fixes)
		rep.Discarded = !merged
		r.recordSuccess()
		if merged {
			r.logf("debug", "fix %.4f, %.4f at %.1f km (%d in history)", fix.Lat, fix.Lon, fix.AltKm, rep.HistoryLen)
		} else {
			r.logf("info", "discarded fix from a cycle started before reset")
		}
	}
	return rep
}

func (r *Runner) fetchFix(ctx context.Context) (track.Fix, error) {
	set, err := r.source.FetchElements(ctx)
	if err != nil {
		return track.Fix{}, fmt.Errorf("fetch elements: %w", err)
	}
	fix, err := r.Propagate(set, r.Now())
	if err != nil {
		return track.Fix{}, fmt.Errorf("propagate %s: %w", set.Name, err)
	}
	return fix, nil
}

func (r *Runner) recordFailure(err error) {
	r.mu.Lock()
	r.cycleCount++
	r.failures++
	r.lastErr = err
	r.lastErrAt = r.Now().UTC()
	r.mu.Unlock()
}

func (r *Runner) recordSuccess() {
	r.mu.Lock()
	r.cycleCount++
	r.lastSuccess = r.Now().UTC()
	r.lastErr = nil
	r.mu.Unlock()
}

func (r *Runner) publishCycle(rep CycleReport) {
	ev := telemetry.Cycle{
		Event:      telemetry.NewEvent(telemetry.EventCycle, "scheduler"),
		Trigger:    rep.Trigger,
		OK:         rep.Err == nil,
		DurationMS: rep.Duration.Milliseconds(),
		HistoryLen: rep.HistoryLen,
		Discarded:  rep.Discarded,
	}
	if rep.Err != nil {
		ev.Error = rep.Err.Error()
		ev.ErrorKind = ErrorKind(rep.Err)
	}
	if r.Hub != nil {
		r.Hub.BroadcastJSON(ev)
	}

	r.mu.Lock()
	cb := r.cycleCallback
	r.mu.Unlock()
	if cb != nil {
		cb(rep)
	}
}

func (r *Runner) transition(state string) {
	r.mu.Lock()
	r.state = state
	fn := r.setState
	r.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

// handleCommand dispatches an incoming command. It reports whether the
// timer must be re-armed.
func (r *Runner) handleCommand(ctx context.Context, cmd Command) bool {
	switch cmd.Type {
	case "refresh":
		r.handleRefreshCommand(ctx, cmd)
	case "pause":
		return r.handlePauseCommand(cmd)
	case "resume":
		return r.handleResumeCommand(cmd)
	case "interval":
		return r.handleIntervalCommand(cmd)
	case "reset":
		r.handleResetCommand(cmd)
	default:
		cmd.Reply <- r.result(false, "", "unknown command: "+cmd.Type)
	}
	return false
}

func (r *Runner) handleRefreshCommand(ctx context.Context, cmd Command) {
	if err := r.startCycle(ctx, TriggerManual); err != nil {
		r.logf("info", "manual refresh ignored: cycle already in flight")
		res := r.result(false, "", err.Error())
		res.InFlight = true
		cmd.Reply <- res
		return
	}
	r.logf("info", "manual refresh requested")
	cmd.Reply <- r.result(true, "refresh started", "")
}

func (r *Runner) handlePauseCommand(cmd Command) bool {
	if !r.auto.Load() {
		cmd.Reply <- r.result(true, "auto-refresh already off", "")
		return false
	}
	r.auto.Store(false)
	r.logf("info", "auto-refresh paused by user")
	cmd.Reply <- r.result(true, "auto-refresh paused", "")
	return true
}

func (r *Runner) handleResumeCommand(cmd Command) bool {
	if r.auto.Load() {
		cmd.Reply <- r.result(true, "auto-refresh already on", "")
		return false
	}
	r.auto.Store(true)
	r.logf("info", "auto-refresh resumed by user")
	cmd.Reply <- r.result(true, "auto-refresh resumed", "")
	return true
}

func (r *Runner) handleIntervalCommand(cmd Command) bool {
	var payload struct {
		Seconds int `json:"seconds"`
	}
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		cmd.Reply <- r.result(false, "", "invalid payload: "+err.Error())
		return false
	}
	if err := config.ValidateInterval(payload.Seconds); err != nil {
		cmd.Reply <- r.result(false, "", err.Error())
		return false
	}
	if int64(payload.Seconds) == r.interval.Load() {
		cmd.Reply <- r.result(true, fmt.Sprintf("interval unchanged at %ds", payload.Seconds), "")
		return false
	}
	r.interval.Store(int64(payload.Seconds))
	r.logf("info", "refresh interval set to %ds", payload.Seconds)
	cmd.Reply <- r.result(true, fmt.Sprintf("interval set to %ds", payload.Seconds), "")
	return true
}

func (r *Runner) handleResetCommand(cmd Command) {
	r.tracker.Reset()
	r.logf("info", "history reset by user")
	cmd.Reply <- r.result(true, "history cleared", "")
}

func (r *Runner) result(ok bool, msg, errMsg string) CommandResult {
	return CommandResult{
		OK:              ok,
		Message:         msg,
		Error:           errMsg,
		IntervalSeconds: int(r.interval.Load()),
		AutoRefresh:     r.auto.Load(),
	}
}

// logf writes a levelled line to the logger. The daemon's log writer turns
// these into WebSocket log events and /api/logs entries.
func (r *Runner) logf(level, format string, args ...any) {
	if r.Log != nil {
		r.Log.Printf("[%s] scheduler: %s", level, fmt.Sprintf(format, args...))
	}
}
