package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/satwatch/satwatch/internal/predict"
)

// handleCommand dispatches an incoming command to the appropriate handler.
func (r *Runner) handleCommand(ctx context.Context, cmd Command, setState func(string)) {
	switch cmd.Type {
	case "trigger":
		r.handleTriggerCommand(ctx, cmd, setState)
	case "tle_refresh":
		r.handleTLERefreshCommand(cmd)
	case "pause":
		r.handlePauseCommand(cmd)
	case "resume":
		r.handleResumeCommand(cmd)
	case "skip":
		r.handleSkipCommand(cmd)
	case "cancel":
		r.handleCancelCommand(cmd)
	default:
		cmd.Reply <- CommandResult{OK: false, Error: "unknown command: " + cmd.Type}
	}
}

// handleTriggerCommand starts an immediate capture for the requested
// satellite, outside the predicted schedule.
func (r *Runner) handleTriggerCommand(ctx context.Context, cmd Command, setState func(string)) {
	var payload struct {
		CatalogID       int `json:"catalog_id"`
		DurationSeconds int `json:"duration_seconds"`
	}
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		cmd.Reply <- CommandResult{OK: false, Error: "invalid payload: " + err.Error()}
		return
	}

	r.captureMu.Lock()
	busy := r.captureCancel != nil
	r.captureMu.Unlock()
	if busy {
		cmd.Reply <- CommandResult{OK: false, Error: "a capture is already in progress"}
		return
	}

	name, ok := r.predictor.SatelliteName(payload.CatalogID)
	if !ok {
		cmd.Reply <- CommandResult{OK: false, Error: fmt.Sprintf("unknown catalog ID: %d", payload.CatalogID)}
		return
	}

	dur := time.Duration(payload.DurationSeconds) * time.Second
	if dur <= 0 {
		cmd.Reply <- CommandResult{OK: false, Error: "duration must be positive"}
		return
	}

	r.Log.Info("manual capture trigger", "catalog_id", payload.CatalogID, "duration", dur)

	// Reply immediately so the HTTP handler is not blocked during capture.
	cmd.Reply <- CommandResult{
		OK:      true,
		Message: fmt.Sprintf("capture triggered for %s (%s)", name, dur.Truncate(time.Second)),
	}

	now := time.Now().UTC()
	pass := predict.Pass{
		CatalogID:     payload.CatalogID,
		Name:          name,
		Rise:          now,
		Peak:          now.Add(dur / 2),
		Set:           now.Add(dur),
		PeakElevation: 90,
	}
	r.record(ctx, pass, setState)
	r.clearCurrent()
}

// handleTLERefreshCommand forces an immediate element refresh.
func (r *Runner) handleTLERefreshCommand(cmd Command) {
	n, err := r.predictor.Refresh()
	if err != nil {
		cmd.Reply <- CommandResult{OK: false, Error: "element refresh failed: " + err.Error()}
		return
	}

	r.Log.Info("element data refreshed", "satellites", n)
	cmd.Reply <- CommandResult{
		OK:                true,
		Message:           fmt.Sprintf("element data refreshed, %d satellites updated", n),
		SatellitesUpdated: n,
	}
}

func (r *Runner) handlePauseCommand(cmd Command) {
	if r.paused.Load() {
		cmd.Reply <- CommandResult{OK: true, Message: "scheduler already paused"}
		return
	}
	r.paused.Store(true)
	r.Log.Info("scheduler paused by user")
	cmd.Reply <- CommandResult{OK: true, Message: "scheduler paused"}
}

func (r *Runner) handleResumeCommand(cmd Command) {
	if !r.paused.Load() {
		cmd.Reply <- CommandResult{OK: true, Message: "scheduler already running"}
		return
	}
	r.paused.Store(false)
	r.Log.Info("scheduler resumed by user")
	cmd.Reply <- CommandResult{OK: true, Message: "scheduler resumed"}
}

// handleSkipCommand marks the scheduled pass skipped so the recompute that
// follows cannot re-select it.
func (r *Runner) handleSkipCommand(cmd Command) {
	cur, ok := r.currentPass()
	if !ok {
		cmd.Reply <- CommandResult{OK: false, Error: "no pass scheduled"}
		return
	}

	r.markSkipped(cur)
	r.Log.Info("pass skipped by user", "catalog_id", cur.CatalogID, "rise", cur.Rise)
	cmd.Reply <- CommandResult{
		OK:      true,
		Message: fmt.Sprintf("skipped %s pass rising at %s", cur.Name, cur.Rise.Format(time.RFC3339)),
	}
}

func (r *Runner) handleCancelCommand(cmd Command) {
	r.captureMu.Lock()
	cancel := r.captureCancel
	r.captureMu.Unlock()

	if cancel == nil {
		cmd.Reply <- CommandResult{OK: false, Error: "no capture in progress"}
		return
	}

	cancel()
	r.Log.Info("capture cancelled by user")
	cmd.Reply <- CommandResult{OK: true, Message: "capture cancelled"}
}
