package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/large-farva/iss-tracker/internal/config"
	"github.com/large-farva/iss-tracker/internal/predict"
	"github.com/large-farva/iss-tracker/internal/tle"
	"github.com/large-farva/iss-tracker/internal/track"
)

type fakeTimer struct {
	d       time.Duration
	c       chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (f *fakeTimer) C() <-chan time.Time { return f.c }

func (f *fakeTimer) Stop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	was := !f.stopped
	f.stopped = true
	return was
}

func (f *fakeTimer) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// fakeClock hands out timers the test fires by hand and a wall clock that
// advances one second per read.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	armed chan *fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		armed: make(chan *fakeTimer, 16),
	}
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	t := &fakeTimer{d: d, c: make(chan time.Time, 1)}
	c.armed <- t
	return t
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *fakeClock) nextTimer(t *testing.T) *fakeTimer {
	t.Helper()
	select {
	case tm := <-c.armed:
		return tm
	case <-time.After(2 * time.Second):
		t.Fatal("timer was not armed")
		return nil
	}
}

type fakeSource struct {
	mu     sync.Mutex
	calls  int
	errs   []error
	gate   chan struct{}
	called chan struct{}
}

func (f *fakeSource) FetchElements(context.Context) (tle.ElementSet, error) {
	f.mu.Lock()
	n := f.calls
	f.calls++
	var err error
	if n < len(f.errs) {
		err = f.errs[n]
	}
	f.mu.Unlock()

	if f.called != nil {
		f.called <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if err != nil {
		return tle.ElementSet{}, err
	}
	return tle.ElementSet{Name: "ISS (ZARYA)"}, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fakePropagate(_ tle.ElementSet, at time.Time) (track.Fix, error) {
	at = at.UTC().Truncate(time.Second)
	return track.Fix{Time: at, Lat: float64(at.Second()), Lon: float64(at.Minute()), AltKm: 420}, nil
}

type harness struct {
	runner  *Runner
	tracker *track.Tracker
	clock   *fakeClock
	done    chan CycleReport
}

func newHarness(src *fakeSource, auto bool) *harness {
	tr := track.NewTracker(20)
	cfg := config.TrackerConfig{HistorySize: 20, AutoRefresh: auto, IntervalSeconds: 10}
	r := New(nil, cfg, src, tr, log.New(io.Discard, "", 0))
	clock := newFakeClock()
	r.NewTimer = clock.NewTimer
	r.Now = clock.Now
	r.Propagate = fakePropagate

	h := &harness{runner: r, tracker: tr, clock: clock, done: make(chan CycleReport, 16)}
	r.SetCycleCallback(func(rep CycleReport) { h.done <- rep })
	return h
}

func (h *harness) start(t *testing.T) (cancel func()) {
	t.Helper()
	ctx, cancelCtx := context.WithCancel(context.Background())
	exited := make(chan struct{})
	go func() {
		h.runner.Run(ctx, func(string) {})
		close(exited)
	}()
	return func() {
		cancelCtx()
		select {
		case <-exited:
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after cancel")
		}
	}
}

func (h *harness) waitCycle(t *testing.T) CycleReport {
	t.Helper()
	select {
	case rep := <-h.done:
		return rep
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not finish")
		return CycleReport{}
	}
}

func send(t *testing.T, r *Runner, typ, payload string) CommandResult {
	t.Helper()
	reply := make(chan CommandResult, 1)
	var raw json.RawMessage
	if payload != "" {
		raw = json.RawMessage(payload)
	}
	r.Commands <- Command{Type: typ, Payload: raw, Reply: reply}
	select {
	case res := <-reply:
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("no reply to %s", typ)
		return CommandResult{}
	}
}

func TestRunCycleMergesFix(t *testing.T) {
	h := newHarness(&fakeSource{}, false)

	var states []string
	h.runner.setState = func(s string) { states = append(states, s) }

	rep, err := h.runner.RunCycle(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.HistoryLen != 1 || h.tracker.Len() != 1 {
		t.Errorf("history len = %d/%d, want 1", rep.HistoryLen, h.tracker.Len())
	}
	if latest, ok := h.tracker.Latest(); !ok || !latest.Equal(rep.Fix) {
		t.Errorf("latest = %+v, want %+v", latest, rep.Fix)
	}
	if len(states) != 2 || states[0] != StateRefreshing || states[1] != StateIdle {
		t.Errorf("states = %v", states)
	}

	st := h.runner.Status()
	if st.LastSuccess.IsZero() || st.LastError != "" || st.Cycles != 1 {
		t.Errorf("status = %+v", st)
	}
}

// Three good cycles, then a transport failure: history must be untouched and
// the error visible, and the next cycle must succeed normally.
func TestFailedCycleLeavesHistoryUnchanged(t *testing.T) {
	transport := &tle.FetchError{Kind: tle.Transport, Cause: errors.New("connection refused")}
	src := &fakeSource{errs: []error{nil, nil, nil, transport}}
	h := newHarness(src, false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.runner.RunCycle(ctx, TriggerManual); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}
	before := h.tracker.Snapshot()

	rep, err := h.runner.RunCycle(ctx, TriggerTimer)
	if !errors.Is(err, tle.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if rep.HistoryLen != 3 {
		t.Errorf("report history len = %d, want 3", rep.HistoryLen)
	}

	after := h.tracker.Snapshot()
	if len(after.Fixes) != 3 || after.Seq != before.Seq {
		t.Fatalf("history changed on failure: %+v", after)
	}
	for i := range before.Fixes {
		if !after.Fixes[i].Equal(before.Fixes[i]) {
			t.Errorf("entry %d changed", i)
		}
	}

	st := h.runner.Status()
	if st.LastErrorKind != "transport" || st.Failures != 1 {
		t.Errorf("status = %+v", st)
	}

	if _, err := h.runner.RunCycle(ctx, TriggerTimer); err != nil {
		t.Fatalf("cycle after failure: %v", err)
	}
	if h.tracker.Len() != 4 {
		t.Errorf("history len = %d, want 4", h.tracker.Len())
	}
	if h.runner.Status().LastError != "" {
		t.Error("last error should clear after a successful cycle")
	}
}

func TestFailureKinds(t *testing.T) {
	tests := []struct {
		name      string
		fetchErr  error
		propErr   error
		wantKind  string
		wantMatch error
	}{
		{"transport", &tle.FetchError{Kind: tle.Transport, Cause: errors.New("timeout")}, nil, "transport", tle.ErrTransport},
		{"not found", &tle.FetchError{Kind: tle.NotFound}, nil, "not_found", tle.ErrNotFound},
		{"invalid", nil, &predict.PropagationError{Cause: errors.New("bad checksum")}, "invalid", predict.ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(&fakeSource{errs: []error{tt.fetchErr}}, false)
			if tt.propErr != nil {
				h.runner.Propagate = func(tle.ElementSet, time.Time) (track.Fix, error) {
					return track.Fix{}, tt.propErr
				}
			}
			_, err := h.runner.RunCycle(context.Background(), TriggerManual)
			if !errors.Is(err, tt.wantMatch) {
				t.Fatalf("error %v does not match %v", err, tt.wantMatch)
			}
			if got := ErrorKind(err); got != tt.wantKind {
				t.Errorf("ErrorKind = %q, want %q", got, tt.wantKind)
			}
			if h.tracker.Len() != 0 {
				t.Error("history should stay empty")
			}
		})
	}
}

func TestManualRefreshWhileInFlightIsNoop(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{}), called: make(chan struct{}, 4)}
	h := newHarness(src, false)
	stop := h.start(t)
	defer stop()

	if res := send(t, h.runner, "refresh", ""); !res.OK {
		t.Fatalf("first refresh rejected: %+v", res)
	}
	<-src.called

	res := send(t, h.runner, "refresh", "")
	if res.OK || !res.InFlight {
		t.Errorf("second refresh = %+v, want in-flight rejection", res)
	}
	if _, err := h.runner.RunCycle(context.Background(), TriggerManual); !errors.Is(err, ErrCycleInFlight) {
		t.Errorf("RunCycle err = %v, want ErrCycleInFlight", err)
	}

	close(src.gate)
	h.waitCycle(t)

	if n := src.callCount(); n != 1 {
		t.Errorf("source called %d times, want 1", n)
	}
	if h.tracker.Len() != 1 {
		t.Errorf("history len = %d, want 1", h.tracker.Len())
	}
}

func TestTimerDrivesCycles(t *testing.T) {
	h := newHarness(&fakeSource{}, true)
	stop := h.start(t)
	defer stop()

	if rep := h.waitCycle(t); rep.Trigger != TriggerStartup {
		t.Errorf("first trigger = %q, want startup", rep.Trigger)
	}

	tm := h.clock.nextTimer(t)
	if tm.d != 10*time.Second {
		t.Errorf("timer duration = %v, want 10s", tm.d)
	}
	for i := 0; i < 3; i++ {
		tm.c <- time.Now()
		if rep := h.waitCycle(t); rep.Trigger != TriggerTimer {
			t.Errorf("trigger = %q, want timer", rep.Trigger)
		}
		tm = h.clock.nextTimer(t)
	}

	if h.tracker.Len() != 4 {
		t.Errorf("history len = %d, want 4", h.tracker.Len())
	}
}

func TestPauseAndResume(t *testing.T) {
	src := &fakeSource{}
	h := newHarness(src, true)
	stop := h.start(t)
	defer stop()

	h.waitCycle(t)
	tm := h.clock.nextTimer(t)

	if res := send(t, h.runner, "pause", ""); !res.OK || res.AutoRefresh {
		t.Fatalf("pause = %+v", res)
	}
	// Second pause acts as a barrier for the loop's re-arm step.
	if res := send(t, h.runner, "pause", ""); !res.OK || res.Message != "auto-refresh already off" {
		t.Errorf("repeat pause = %+v", res)
	}
	if !tm.isStopped() {
		t.Error("pause should stop the pending timer")
	}
	select {
	case extra := <-h.clock.armed:
		t.Fatalf("timer armed while paused: %v", extra.d)
	default:
	}

	if res := send(t, h.runner, "resume", ""); !res.OK || !res.AutoRefresh {
		t.Fatalf("resume = %+v", res)
	}
	tm = h.clock.nextTimer(t)
	tm.c <- time.Now()
	h.waitCycle(t)

	if n := src.callCount(); n != 2 {
		t.Errorf("source called %d times, want 2", n)
	}
}

func TestPauseDoesNotAbortInFlightCycle(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{}), called: make(chan struct{}, 4)}
	h := newHarness(src, true)
	stop := h.start(t)
	defer stop()

	<-src.called
	if res := send(t, h.runner, "pause", ""); !res.OK {
		t.Fatalf("pause = %+v", res)
	}
	close(src.gate)

	rep := h.waitCycle(t)
	if rep.Err != nil || rep.HistoryLen != 1 {
		t.Errorf("in-flight cycle = %+v", rep)
	}
}

func TestIntervalCommand(t *testing.T) {
	h := newHarness(&fakeSource{}, true)
	stop := h.start(t)
	defer stop()

	h.waitCycle(t)
	h.clock.nextTimer(t)

	for _, bad := range []string{`{"seconds":4}`, `{"seconds":61}`, `not json`} {
		if res := send(t, h.runner, "interval", bad); res.OK || res.Error == "" {
			t.Errorf("interval %s accepted: %+v", bad, res)
		}
	}

	res := send(t, h.runner, "interval", `{"seconds":30}`)
	if !res.OK || res.IntervalSeconds != 30 {
		t.Fatalf("interval = %+v", res)
	}
	if tm := h.clock.nextTimer(t); tm.d != 30*time.Second {
		t.Errorf("re-armed with %v, want 30s", tm.d)
	}
	if got := h.runner.Interval(); got != 30*time.Second {
		t.Errorf("Interval() = %v", got)
	}
}

func TestResetDiscardsStaleResult(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{}), called: make(chan struct{}, 4)}
	h := newHarness(src, false)

	type result struct {
		rep CycleReport
		err error
	}
	out := make(chan result, 1)
	go func() {
		rep, err := h.runner.RunCycle(context.Background(), TriggerManual)
		out <- result{rep, err}
	}()

	<-src.called
	h.tracker.Reset()
	close(src.gate)

	r := <-out
	if r.err != nil {
		t.Fatalf("unexpected error: %v", r.err)
	}
	if !r.rep.Discarded {
		t.Error("result should be discarded after reset")
	}
	if h.tracker.Len() != 0 {
		t.Errorf("history len = %d, want 0", h.tracker.Len())
	}
}

func TestResetCommand(t *testing.T) {
	h := newHarness(&fakeSource{}, false)
	for i := 0; i < 3; i++ {
		if _, err := h.runner.RunCycle(context.Background(), TriggerManual); err != nil {
			t.Fatal(err)
		}
	}

	stop := h.start(t)
	defer stop()

	if res := send(t, h.runner, "reset", ""); !res.OK {
		t.Fatalf("reset = %+v", res)
	}
	if h.tracker.Len() != 0 {
		t.Errorf("history len = %d after reset", h.tracker.Len())
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(&fakeSource{}, false)
	stop := h.start(t)
	defer stop()

	res := send(t, h.runner, "skip", "")
	if res.OK || res.Error != "unknown command: skip" {
		t.Errorf("result = %+v", res)
	}
}

func TestShutdownWaitsForInFlightCycle(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{}), called: make(chan struct{}, 4)}
	h := newHarness(src, true)

	ctx, cancel := context.WithCancel(context.Background())
	exited := make(chan struct{})
	go func() {
		h.runner.Run(ctx, func(string) {})
		close(exited)
	}()

	<-src.called
	cancel()

	select {
	case <-exited:
		t.Fatal("Run returned with a cycle still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(src.gate)
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the cycle finished")
	}
}

func TestHistoryStaysBounded(t *testing.T) {
	h := newHarness(&fakeSource{}, false)
	for i := 0; i < 25; i++ {
		if _, err := h.runner.RunCycle(context.Background(), TriggerManual); err != nil {
			t.Fatal(fmt.Errorf("cycle %d: %w", i, err))
		}
	}
	if h.tracker.Len() != 20 {
		t.Errorf("history len = %d, want 20", h.tracker.Len())
	}
}
