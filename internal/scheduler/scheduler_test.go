package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/satwatch/satwatch/internal/capture"
	"github.com/satwatch/satwatch/internal/config"
	"github.com/satwatch/satwatch/internal/detect"
	"github.com/satwatch/satwatch/internal/events"
	"github.com/satwatch/satwatch/internal/predict"
)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Predict.LookaheadHours = 1
	cfg.Predict.HorizonHours = 1
	cfg.Predict.LeadSeconds = 0
	return cfg
}

type fakePredictor struct {
	mu     sync.Mutex
	passes []predict.Pass
	err    error
	names  map[int]string
}

func (f *fakePredictor) Passes(start, end time.Time) ([]predict.Pass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.passes, f.err
}

func (f *fakePredictor) Refresh() (int, error) { return len(f.names), nil }

func (f *fakePredictor) SatelliteName(id int) (string, bool) {
	name, ok := f.names[id]
	return name, ok
}

type fakeCapturer struct {
	mu        sync.Mutex
	active    int
	maxActive int
	calls     int
	delay     time.Duration
	err       error
}

func (f *fakeCapturer) Capture(ctx context.Context, req capture.Request) (*capture.Result, error) {
	f.mu.Lock()
	f.calls++
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	now := time.Now().UTC()
	return &capture.Result{
		Path:      "rec.iq",
		StartedAt: now,
		EndedAt:   now,
		Bytes:     4096,
	}, nil
}

type fakeProcessor struct {
	mu     sync.Mutex
	calls  int
	lastID int
	cands  []detect.Candidate
	err    error
}

func (f *fakeProcessor) Process(ctx context.Context, pass predict.Pass, res *capture.Result) ([]detect.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastID = pass.CatalogID
	return f.cands, f.err
}

func (f *fakeProcessor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// stateRecorder is a thread-safe setState target.
type stateRecorder struct {
	mu     sync.Mutex
	states []string
}

func (s *stateRecorder) set(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.states) == 0 || s.states[len(s.states)-1] != state {
		s.states = append(s.states, state)
	}
}

func (s *stateRecorder) seen(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.states {
		if st == state {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func upcomingPass(riseIn, dur time.Duration) predict.Pass {
	rise := time.Now().UTC().Add(riseIn)
	return predict.Pass{
		CatalogID:     25544,
		Name:          "ISS (ZARYA)",
		Rise:          rise,
		Peak:          rise.Add(dur / 2),
		Set:           rise.Add(dur),
		PeakElevation: 42,
	}
}

func TestRunRecordsAndProcessesPass(t *testing.T) {
	pred := &fakePredictor{passes: []predict.Pass{upcomingPass(50*time.Millisecond, 100*time.Millisecond)}}
	capt := &fakeCapturer{}
	proc := &fakeProcessor{cands: []detect.Candidate{{FreqOffsetHz: 1200, SNRdB: 9, Confidence: 1}}}

	r := New(testConfig(), pred, capt, proc, events.Nop{}, testLogger())
	rec := &stateRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, rec.set)

	waitFor(t, 5*time.Second, func() bool { return proc.callCount() >= 1 })
	cancel()

	if capt.calls != 1 {
		t.Errorf("capture called %d times, want 1", capt.calls)
	}
	if proc.lastID != 25544 {
		t.Errorf("processed catalog %d, want 25544", proc.lastID)
	}
	for _, state := range []string{StateWaiting, StateRecording, StateProcessing} {
		if !rec.seen(state) {
			t.Errorf("state %s never reached: %v", state, rec.states)
		}
	}
}

func TestNoOverlappingCaptures(t *testing.T) {
	pred := &fakePredictor{passes: []predict.Pass{
		upcomingPass(40*time.Millisecond, time.Second),
		upcomingPass(90*time.Millisecond, time.Second),
	}}
	capt := &fakeCapturer{delay: 200 * time.Millisecond}
	proc := &fakeProcessor{}

	r := New(testConfig(), pred, capt, proc, events.Nop{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, func(string) {})

	waitFor(t, 5*time.Second, func() bool {
		capt.mu.Lock()
		defer capt.mu.Unlock()
		return capt.calls >= 1 && capt.active == 0
	})
	time.Sleep(100 * time.Millisecond)
	cancel()

	capt.mu.Lock()
	defer capt.mu.Unlock()
	if capt.maxActive > 1 {
		t.Errorf("captures overlapped: max concurrent = %d", capt.maxActive)
	}
}

func TestNextPassSelectsPassInProgress(t *testing.T) {
	r := New(testConfig(), &fakePredictor{}, &fakeCapturer{}, &fakeProcessor{}, events.Nop{}, testLogger())
	now := time.Now().UTC()

	inProgress := predict.Pass{CatalogID: 25544, Name: "ISS (ZARYA)",
		Rise: now.Add(-2 * time.Minute), Set: now.Add(6 * time.Minute)}
	elapsed := predict.Pass{CatalogID: 28654, Name: "NOAA 18",
		Rise: now.Add(-20 * time.Minute), Set: now.Add(-5 * time.Minute)}

	next, ok := r.nextPass([]predict.Pass{elapsed, inProgress}, now)
	if !ok {
		t.Fatal("pass in progress was not selected")
	}
	if next.CatalogID != 25544 {
		t.Errorf("selected catalog %d, want the in-progress 25544", next.CatalogID)
	}

	if _, ok := r.nextPass([]predict.Pass{elapsed}, now); ok {
		t.Error("fully elapsed pass was selected")
	}
}

func TestRunRecordsPassInProgress(t *testing.T) {
	// Rise is already in the past, as after a daemon restart with a
	// satellite overhead. The remaining window must be recorded immediately.
	pred := &fakePredictor{passes: []predict.Pass{upcomingPass(-time.Minute, 5*time.Minute)}}
	capt := &fakeCapturer{}
	proc := &fakeProcessor{}

	r := New(testConfig(), pred, capt, proc, events.Nop{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, func(string) {})

	waitFor(t, 5*time.Second, func() bool { return proc.callCount() >= 1 })
	cancel()

	if proc.lastID != 25544 {
		t.Errorf("processed catalog %d, want 25544", proc.lastID)
	}
}

func TestCaptureFailureReturnsToIdle(t *testing.T) {
	pred := &fakePredictor{passes: []predict.Pass{upcomingPass(30*time.Millisecond, 100*time.Millisecond)}}
	capt := &fakeCapturer{err: errors.New("sdr went away")}
	proc := &fakeProcessor{}

	r := New(testConfig(), pred, capt, proc, events.Nop{}, testLogger())
	rec := &stateRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, rec.set)

	waitFor(t, 5*time.Second, func() bool {
		return rec.seen(StateRecording) && rec.seen(StateIdle)
	})
	cancel()

	if proc.callCount() != 0 {
		t.Error("failed capture was still handed to the processor")
	}
	if rec.seen(StateProcessing) {
		t.Errorf("PROCESSING reached after capture failure: %v", rec.states)
	}
}

func TestCaptureFailureMarksPassSkipped(t *testing.T) {
	pass := upcomingPass(30*time.Millisecond, 10*time.Minute)
	pred := &fakePredictor{passes: []predict.Pass{pass}}
	capt := &fakeCapturer{err: errors.New("sdr went away")}

	r := New(testConfig(), pred, capt, &fakeProcessor{}, events.Nop{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, func(string) {})

	// Once the failure is recorded the pass must be excluded from
	// selection, so the post-cooldown recompute cannot re-capture the same
	// window over and over.
	waitFor(t, 5*time.Second, func() bool {
		_, ok := r.nextPass([]predict.Pass{pass}, time.Now().UTC())
		return !ok
	})
	cancel()

	capt.mu.Lock()
	defer capt.mu.Unlock()
	if capt.calls != 1 {
		t.Errorf("capture attempted %d times, want 1", capt.calls)
	}
}

func sendCommand(t *testing.T, r *Runner, cmdType string, payload json.RawMessage) CommandResult {
	t.Helper()
	reply := make(chan CommandResult, 1)
	r.Commands <- Command{Type: cmdType, Payload: payload, Reply: reply}
	select {
	case res := <-reply:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("command reply timed out")
		return CommandResult{}
	}
}

func TestPauseAndResumeCommands(t *testing.T) {
	pred := &fakePredictor{} // no passes: scheduler sits in backoff sleeps
	r := New(testConfig(), pred, &fakeCapturer{}, &fakeProcessor{}, events.Nop{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, func(string) {})

	if res := sendCommand(t, r, "pause", nil); !res.OK {
		t.Fatalf("pause rejected: %+v", res)
	}
	waitFor(t, time.Second, r.IsPaused)

	if res := sendCommand(t, r, "pause", nil); !res.OK {
		t.Errorf("repeated pause rejected: %+v", res)
	}

	if res := sendCommand(t, r, "resume", nil); !res.OK {
		t.Fatalf("resume rejected: %+v", res)
	}
	waitFor(t, time.Second, func() bool { return !r.IsPaused() })
}

func TestTriggerCommand(t *testing.T) {
	pred := &fakePredictor{names: map[int]string{25544: "ISS (ZARYA)"}}
	capt := &fakeCapturer{}
	proc := &fakeProcessor{}
	r := New(testConfig(), pred, capt, proc, events.Nop{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, func(string) {})

	payload, _ := json.Marshal(map[string]any{"catalog_id": 25544, "duration_seconds": 1})
	if res := sendCommand(t, r, "trigger", payload); !res.OK {
		t.Fatalf("trigger rejected: %+v", res)
	}
	waitFor(t, 5*time.Second, func() bool { return proc.callCount() >= 1 })

	payload, _ = json.Marshal(map[string]any{"catalog_id": 99999, "duration_seconds": 1})
	if res := sendCommand(t, r, "trigger", payload); res.OK {
		t.Error("trigger for unknown satellite accepted")
	}
}

func TestSkipCommandExcludesScheduledPass(t *testing.T) {
	pass := upcomingPass(500*time.Millisecond, time.Second)
	pred := &fakePredictor{passes: []predict.Pass{pass}}
	capt := &fakeCapturer{}

	r := New(testConfig(), pred, capt, &fakeProcessor{}, events.Nop{}, testLogger())
	rec := &stateRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, rec.set)

	waitFor(t, 5*time.Second, func() bool { return rec.seen(StateWaiting) })

	res := sendCommand(t, r, "skip", nil)
	if !res.OK {
		t.Fatalf("skip rejected: %+v", res)
	}

	// Wait out the skipped rise plus slack: the recompute after the skip
	// must not re-select and record the same pass.
	time.Sleep(800 * time.Millisecond)
	cancel()

	capt.mu.Lock()
	defer capt.mu.Unlock()
	if capt.calls != 0 {
		t.Errorf("skipped pass was recorded %d time(s)", capt.calls)
	}
	if rec.seen(StateRecording) {
		t.Errorf("RECORDING reached after skip: %v", rec.states)
	}
}

func TestSkipWithoutScheduledPass(t *testing.T) {
	r := New(testConfig(), &fakePredictor{}, &fakeCapturer{}, &fakeProcessor{}, events.Nop{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, func(string) {})

	if res := sendCommand(t, r, "skip", nil); res.OK {
		t.Error("skip with no scheduled pass accepted")
	}
}

func TestCancelWithoutCapture(t *testing.T) {
	r := New(testConfig(), &fakePredictor{}, &fakeCapturer{}, &fakeProcessor{}, events.Nop{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, func(string) {})

	if res := sendCommand(t, r, "cancel", nil); res.OK {
		t.Error("cancel with no active capture accepted")
	}
}

func TestUnknownCommand(t *testing.T) {
	r := New(testConfig(), &fakePredictor{}, &fakeCapturer{}, &fakeProcessor{}, events.Nop{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, func(string) {})

	if res := sendCommand(t, r, "reticulate", nil); res.OK {
		t.Error("unknown command accepted")
	}
}
