// Package scheduler orchestrates the predict-wait-record-process loop that
// drives the satwatch daemon. It continuously computes upcoming passes,
// waits for the next rise, records the pass, and hands the recording off to
// the detection pipeline. At most one recording is in flight at any time;
// detection runs asynchronously so a long processing job never delays the
// next pass.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/satwatch/satwatch/internal/capture"
	"github.com/satwatch/satwatch/internal/config"
	"github.com/satwatch/satwatch/internal/detect"
	"github.com/satwatch/satwatch/internal/events"
	"github.com/satwatch/satwatch/internal/metrics"
	"github.com/satwatch/satwatch/internal/predict"
)

// Scheduler states.
const (
	StateIdle       = "IDLE"
	StateWaiting    = "WAITING"
	StateRecording  = "RECORDING"
	StateProcessing = "PROCESSING"
)

// States lists every scheduler state, for metrics and status reporting.
var States = []string{StateIdle, StateWaiting, StateRecording, StateProcessing}

const (
	idleBackoff   = 10 * time.Minute
	emptyBackoff  = time.Hour
	errorCooldown = time.Minute
	pausedSleep   = 24 * 365 * time.Hour
)

// Predictor supplies upcoming passes and catalog lookups.
type Predictor interface {
	Passes(start, end time.Time) ([]predict.Pass, error)
	Refresh() (int, error)
	SatelliteName(catalogID int) (string, bool)
}

// Capturer records one pass to disk.
type Capturer interface {
	Capture(ctx context.Context, req capture.Request) (*capture.Result, error)
}

// Processor turns one finished recording into candidates.
type Processor interface {
	Process(ctx context.Context, pass predict.Pass, res *capture.Result) ([]detect.Candidate, error)
}

// PassInfo describes the pass the scheduler is currently working, for
// status reporting.
type PassInfo struct {
	Satellite string  `json:"satellite"`
	CatalogID int     `json:"catalog_id"`
	FreqHz    int     `json:"freq_hz"`
	Rise      string  `json:"rise"`
	Set       string  `json:"set"`
	MaxElev   float64 `json:"max_elev"`
	Stage     string  `json:"stage"`
}

// Command represents an external command sent to the scheduler via its
// Commands channel. The Reply channel receives exactly one result.
type Command struct {
	Type    string
	Payload json.RawMessage
	Reply   chan<- CommandResult
}

// CommandResult is the response sent back through a Command's Reply channel.
type CommandResult struct {
	OK                bool   `json:"ok"`
	Message           string `json:"message,omitempty"`
	Error             string `json:"error,omitempty"`
	SatellitesUpdated int    `json:"satellites_updated,omitempty"`
}

// Runner owns the main scheduling loop.
type Runner struct {
	Cfg config.Config
	Log *slog.Logger
	Pub events.Publisher

	// Commands receives external commands from HTTP handlers.
	// The scheduler checks this channel during wait periods.
	Commands chan Command

	predictor Predictor
	capturer  Capturer
	processor Processor

	paused atomic.Bool

	// Cancel support: when a capture is active, captureCancel can abort it.
	captureMu     sync.Mutex
	captureCancel context.CancelFunc

	// Asynchronous processing bookkeeping. processingDone pokes the loop
	// awake so the reported state returns to IDLE promptly.
	processing       sync.WaitGroup
	processingActive atomic.Int32
	processingDone   chan struct{}

	// Passes excluded from selection: user skips and failed captures.
	skipMu  sync.Mutex
	skipped []skipRecord

	// The pass being waited for or worked, nil between passes.
	currentMu sync.Mutex
	current   *predict.Pass

	passCallback func(*PassInfo)
}

// New creates a scheduler around the given predictor, capturer, and
// processor.
func New(cfg config.Config, pred Predictor, capt Capturer, proc Processor, pub events.Publisher, logger *slog.Logger) *Runner {
	return &Runner{
		Cfg:            cfg,
		Log:            logger,
		Pub:            pub,
		Commands:       make(chan Command, 4),
		predictor:      pred,
		capturer:       capt,
		processor:      proc,
		processingDone: make(chan struct{}, 1),
	}
}

// SetPassCallback registers a function called when the current pass changes.
func (r *Runner) SetPassCallback(fn func(*PassInfo)) {
	r.passCallback = fn
}

// IsPaused reports whether the scheduler is paused.
func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

// ProcessingActive reports the number of recordings currently in the
// detection pipeline.
func (r *Runner) ProcessingActive() int {
	return int(r.processingActive.Load())
}

// Run is the main scheduler loop. It exits only when ctx is cancelled, and
// drains any in-flight processing before returning.
//
// Lifecycle:
//  1. Compute passes over the lookahead window (IDLE)
//  2. If none, back off and recompute
//  3. If the next pass is beyond the near-term horizon, back off and
//     recompute, which also refreshes stale elements
//  4. Wait until rise minus the lead margin (WAITING); zero wait for a
//     pass already in progress
//  5. Record the pass (RECORDING)
//  6. Hand the recording to the detection pipeline (PROCESSING) and loop
func (r *Runner) Run(ctx context.Context, setState func(string)) {
	r.Pub.Publish(events.NewLogLine("info", "scheduler started"))
	defer r.processing.Wait()

	for {
		if ctx.Err() != nil {
			return
		}

		if r.paused.Load() {
			r.setState(setState, StateIdle)
			r.clearCurrent()
			if r.sleepOrCommand(ctx, pausedSleep, setState) == sleepCancelled {
				return
			}
			continue
		}

		if r.processingActive.Load() > 0 {
			r.setState(setState, StateProcessing)
		} else {
			r.setState(setState, StateIdle)
		}

		now := time.Now().UTC()
		lookahead := time.Duration(r.Cfg.Predict.LookaheadHours) * time.Hour
		passes, err := r.predictor.Passes(now, now.Add(lookahead))
		if err != nil {
			r.Log.Error("prediction failed", "error", err)
			r.Pub.Publish(events.NewLogLine("error", "prediction failed: "+err.Error()))
			if r.sleepOrCommand(ctx, errorCooldown, setState) == sleepCancelled {
				return
			}
			continue
		}
		metrics.PassesPredicted(len(passes))

		next, ok := r.nextPass(passes, time.Now().UTC())
		if !ok {
			r.clearCurrent()
			r.Pub.Publish(events.NewLogLine("info", "no upcoming passes, backing off"))
			if r.sleepOrCommand(ctx, emptyBackoff, setState) == sleepCancelled {
				return
			}
			continue
		}

		horizon := time.Duration(r.Cfg.Predict.HorizonHours) * time.Hour
		if time.Until(next.Rise) > horizon {
			// Far out; sleep and recompute so elements stay fresh.
			r.clearCurrent()
			if r.sleepOrCommand(ctx, idleBackoff, setState) == sleepCancelled {
				return
			}
			continue
		}

		r.setState(setState, StateWaiting)
		r.setCurrent(next, "waiting")
		r.Pub.Publish(events.NewPassScheduled(next.CatalogID, next.Name, next.Rise, next.Set, next.PeakElevation))
		if next.Rise.Before(time.Now().UTC()) {
			r.Pub.Publish(events.NewLogLine("info", fmt.Sprintf(
				"pass in progress: %s sets at %s, recording the remaining window",
				next.Name, next.Set.Format(time.RFC3339))))
		} else {
			r.Pub.Publish(events.NewLogLine("info", fmt.Sprintf(
				"next pass: %s at %s (peak elev %.1f°, duration %s)",
				next.Name, next.Rise.Format(time.RFC3339), next.PeakElevation,
				next.Duration().Truncate(time.Second))))
		}

		lead := time.Duration(r.Cfg.Predict.LeadSeconds) * time.Second
		if !r.waitForRise(ctx, next, next.Rise.Add(-lead), setState) {
			if ctx.Err() != nil {
				return
			}
			// A command interrupted the wait; recompute the schedule.
			continue
		}

		r.record(ctx, next, setState)
		r.clearCurrent()
	}
}

// record runs one capture and, on success, hands the recording to the
// detection pipeline asynchronously.
func (r *Runner) record(ctx context.Context, pass predict.Pass, setState func(string)) {
	r.setState(setState, StateRecording)
	r.setCurrent(pass, "recording")
	metrics.RecordingStarted()

	req := capture.Request{
		Pass:       pass,
		CenterFreq: r.Cfg.SDR.CenterFreq,
		SampleRate: r.Cfg.SDR.SampleRate,
	}

	captureCtx, captureCancel := context.WithCancel(ctx)
	r.captureMu.Lock()
	r.captureCancel = captureCancel
	r.captureMu.Unlock()

	type captureOutcome struct {
		res *capture.Result
		err error
	}
	done := make(chan captureOutcome, 1)
	go func() {
		res, err := r.capturer.Capture(captureCtx, req)
		done <- captureOutcome{res: res, err: err}
	}()

	// Service the command channel while the capture runs so cancel (and
	// pause/resume) stay responsive mid-pass.
	var out captureOutcome
waitCapture:
	for {
		select {
		case out = <-done:
			break waitCapture
		case cmd := <-r.Commands:
			r.handleCommand(ctx, cmd, setState)
		}
	}
	res, err := out.res, out.err
	captureCancel()

	r.captureMu.Lock()
	r.captureCancel = nil
	r.captureMu.Unlock()

	if err != nil {
		metrics.RecordingFailed()
		r.Log.Error("capture failed", "catalog_id", pass.CatalogID, "error", err)
		r.Pub.Publish(events.NewLogLine("error", "capture failed: "+err.Error()))
		// Do not retry the same window: a failed pass is marked skipped so
		// the recompute after the cooldown moves on to the next one.
		r.markSkipped(pass)
		r.setState(setState, StateIdle)
		sleepOrCancel(ctx, errorCooldown)
		return
	}

	r.setState(setState, StateProcessing)
	r.setCurrent(pass, "processing")

	r.processing.Add(1)
	r.processingActive.Add(1)
	go func() {
		defer r.processing.Done()
		defer func() {
			r.processingActive.Add(-1)
			select {
			case r.processingDone <- struct{}{}:
			default:
			}
		}()

		cands, err := r.processor.Process(ctx, pass, res)
		if err != nil {
			r.Log.Error("processing failed", "recording", res.Path, "error", err)
			r.Pub.Publish(events.NewLogLine("error", "processing failed: "+err.Error()))
			return
		}

		metrics.CandidatesFound(len(cands))
		for _, c := range cands {
			r.Pub.Publish(events.NewCandidateFound(pass.CatalogID, c.FreqOffsetHz, c.SNRdB, c.Confidence, c.Recording))
		}
		r.Pub.Publish(events.NewLogLine("info", fmt.Sprintf(
			"processed %s: %d candidates", pass.Name, len(cands))))
	}()
}

// nextPass returns the first pass that is still actionable: its set time is
// in the future and it has not been skipped. A pass whose rise has already
// elapsed is selected so the remaining window gets recorded, which matters
// after a restart or a long backoff with a satellite currently overhead.
func (r *Runner) nextPass(passes []predict.Pass, now time.Time) (predict.Pass, bool) {
	for _, p := range passes {
		if !p.Set.After(now) || r.isSkipped(p, now) {
			continue
		}
		return p, true
	}
	return predict.Pass{}, false
}

// skipRecord remembers a pass the scheduler must not select again, either
// because the user skipped it or because its capture failed.
type skipRecord struct {
	catalogID int
	rise      time.Time
	set       time.Time
}

// skipTolerance absorbs second-level jitter in refined rise times between
// successive predictions of the same pass.
const skipTolerance = time.Minute

func (r *Runner) markSkipped(p predict.Pass) {
	r.skipMu.Lock()
	defer r.skipMu.Unlock()
	r.skipped = append(r.skipped, skipRecord{catalogID: p.CatalogID, rise: p.Rise, set: p.Set})
}

// isSkipped reports whether p matches a remembered skip. Records whose set
// time has elapsed are pruned on the way through.
func (r *Runner) isSkipped(p predict.Pass, now time.Time) bool {
	r.skipMu.Lock()
	defer r.skipMu.Unlock()
	kept := r.skipped[:0]
	match := false
	for _, s := range r.skipped {
		if !s.set.After(now) {
			continue
		}
		kept = append(kept, s)
		if s.catalogID == p.CatalogID && absDuration(p.Rise.Sub(s.rise)) <= skipTolerance {
			match = true
		}
	}
	r.skipped = kept
	return match
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// setCurrent records the pass being worked and reports it to the status
// callback with its stage.
func (r *Runner) setCurrent(p predict.Pass, stage string) {
	r.currentMu.Lock()
	cp := p
	r.current = &cp
	r.currentMu.Unlock()
	r.notifyPass(passInfo(p, r.Cfg.SDR.CenterFreq, stage))
}

func (r *Runner) clearCurrent() {
	r.currentMu.Lock()
	r.current = nil
	r.currentMu.Unlock()
	r.notifyPass(nil)
}

// currentPass returns a copy of the pass being worked, if any.
func (r *Runner) currentPass() (predict.Pass, bool) {
	r.currentMu.Lock()
	defer r.currentMu.Unlock()
	if r.current == nil {
		return predict.Pass{}, false
	}
	return *r.current, true
}

func passInfo(p predict.Pass, freqHz int, stage string) *PassInfo {
	return &PassInfo{
		Satellite: p.Name,
		CatalogID: p.CatalogID,
		FreqHz:    freqHz,
		Rise:      p.Rise.Format(time.RFC3339),
		Set:       p.Set.Format(time.RFC3339),
		MaxElev:   p.PeakElevation,
		Stage:     stage,
	}
}

func (r *Runner) setState(setState func(string), state string) {
	setState(state)
	metrics.SetSchedulerState(state, States)
}

// notifyPass calls the pass callback if set.
func (r *Runner) notifyPass(info *PassInfo) {
	if r.passCallback != nil {
		r.passCallback(info)
	}
}

// sleepResult indicates what ended a sleep period.
type sleepResult int

const (
	sleepCompleted   sleepResult = iota // timer expired normally
	sleepCancelled                      // context was cancelled
	sleepInterrupted                    // a command was received and handled
	sleepPoked                          // asynchronous processing finished
)

// sleepOrCommand blocks for duration d, until ctx is cancelled, until a
// command arrives on r.Commands, or until a processing goroutine finishes.
// Commands are handled inline. Returns what ended the sleep.
func (r *Runner) sleepOrCommand(ctx context.Context, d time.Duration, setState func(string)) sleepResult {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return sleepCancelled
	case <-t.C:
		return sleepCompleted
	case cmd := <-r.Commands:
		r.handleCommand(ctx, cmd, setState)
		return sleepInterrupted
	case <-r.processingDone:
		return sleepPoked
	}
}

// waitForRise sleeps until the capture start time, publishing countdown
// progress every 30 seconds. Returns true if the start time was reached,
// false if interrupted by context cancellation or a command.
func (r *Runner) waitForRise(ctx context.Context, pass predict.Pass, start time.Time, setState func(string)) bool {
	for {
		remaining := time.Until(start)
		if remaining <= 0 {
			return true
		}

		r.Pub.Publish(events.NewProgress("waiting", 0,
			fmt.Sprintf("rise in %s for %s", remaining.Truncate(time.Second), pass.Name)))

		sleepDur := 30 * time.Second
		if remaining < sleepDur {
			sleepDur = remaining
		}
		switch r.sleepOrCommand(ctx, sleepDur, setState) {
		case sleepCancelled, sleepInterrupted:
			return false
		}
	}
}

// sleepOrCancel blocks for duration d or until the context is cancelled.
// Returns true if the sleep completed, false if interrupted.
func sleepOrCancel(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
