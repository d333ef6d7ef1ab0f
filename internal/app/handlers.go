package app

import (
	"encoding/json"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/satwatch/satwatch/internal/predict"
	"github.com/satwatch/satwatch/internal/scheduler"
)

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

	// Data directory writable.
	tmpPath := filepath.Join(a.cfg.Data.Root, ".healthcheck")
	if err := os.WriteFile(tmpPath, []byte("ok"), 0o644); err != nil {
		checks["data_dir"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else {
		os.Remove(tmpPath)
		checks["data_dir"] = map[string]any{"ok": true, "path": a.cfg.Data.Root}
	}

	// Element cache freshness.
	if cached := a.tleStore.CacheAge(); cached.IsZero() {
		checks["tle_cache"] = map[string]any{"ok": false, "error": "no cached elements"}
		allOK = false
	} else {
		age := time.Since(cached)
		fresh := age < time.Duration(a.cfg.Predict.TLERefreshHours)*time.Hour
		if !fresh {
			allOK = false
		}
		checks["tle_cache"] = map[string]any{"ok": fresh, "age_s": int(age.Seconds()), "fresh": fresh}
	}

	// Capture command available, unless running in simulate mode.
	if !a.cfg.SDR.Simulate {
		if _, err := exec.LookPath(a.cfg.SDR.CaptureCommand); err != nil {
			checks["sdr"] = map[string]any{"ok": false, "error": a.cfg.SDR.CaptureCommand + " not found in PATH"}
			allOK = false
		} else {
			checks["sdr"] = map[string]any{"ok": true}
		}
	}

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
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"healthy": allOK, "checks": checks})
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"name":              "satwatch",
		"state":             a.state.Load().(string),
		"uptime_seconds":    int64(time.Since(a.startedAt).Seconds()),
		"paused":            a.scheduler.IsPaused(),
		"processing_active": a.scheduler.ProcessingActive(),
		"data_root":         a.cfg.Data.Root,
		"simulate":          a.cfg.SDR.Simulate,
		"ws_clients":        a.wsHub.ClientCount(),
		"station":           a.stationJSON(),
	}

	if pi, ok := a.currentPass.Load().(*scheduler.PassInfo); ok && pi != nil {
		resp["current_pass"] = pi
	}
	if du, ok := dataDiskStats(a.cfg.Data.Root); ok {
		resp["disk"] = du
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"version":    Version,
		"go_version": GoVersion,
		"built_at":   BuiltAt,
	})
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	cfg := a.cfg
	if cfg.Privacy.RedactLocation {
		cfg.Station.Latitude = 0
		cfg.Station.Longitude = 0
		cfg.Station.Altitude = 0
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cfg)
}

func (a *App) handleSatellites(w http.ResponseWriter, _ *http.Request) {
	entries, err := a.tleStore.Entries()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type satJSON struct {
		CatalogID int    `json:"catalog_id"`
		Name      string `json:"name"`
	}
	sats := make([]satJSON, len(entries))
	for i, e := range entries {
		sats[i] = satJSON{CatalogID: e.CatalogID, Name: e.Name}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"satellites": sats})
}

func (a *App) handleTLEInfo(w http.ResponseWriter, _ *http.Request) {
	entries, err := a.tleStore.Entries()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"satellites": len(entries),
		"sources":    a.cfg.Predict.TLESources,
	}
	if cached := a.tleStore.CacheAge(); !cached.IsZero() {
		resp["cached_at"] = cached.UTC().Format(time.RFC3339)
		resp["age_s"] = int(time.Since(cached).Seconds())
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (a *App) handleTLERefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeCommandResult(w, a.sendSchedulerCommand("tle_refresh", nil))
}

func (a *App) handlePasses(w http.ResponseWriter, r *http.Request) {
	passes, err := a.computePasses(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if countStr := r.URL.Query().Get("count"); countStr != "" {
		if n, err := strconv.Atoi(countStr); err == nil && n > 0 && n < len(passes) {
			passes = passes[:n]
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"passes":  passes,
		"station": a.stationJSON(),
	})
}

func (a *App) handleNextPass(w http.ResponseWriter, r *http.Request) {
	passes, err := a.computePasses(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	resp := map[string]any{"pass": nil, "station": a.stationJSON()}
	for i := range passes {
		if passes[i].Rise.After(now) {
			resp["pass"] = passes[i]
			resp["countdown_s"] = int(time.Until(passes[i].Rise).Seconds())
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// computePasses predicts over the query window and applies the satellite
// name filter.
func (a *App) computePasses(r *http.Request) ([]predict.Pass, error) {
	hours := a.cfg.Predict.LookaheadHours
	if hStr := r.URL.Query().Get("hours"); hStr != "" {
		if h, err := strconv.Atoi(hStr); err == nil && h > 0 && h <= 7*24 {
			hours = h
		}
	}

	now := time.Now().UTC()
	passes, err := a.predictor.Passes(now, now.Add(time.Duration(hours)*time.Hour))
	if err != nil {
		return nil, err
	}

	if satFilter := r.URL.Query().Get("satellite"); satFilter != "" {
		upper := strings.ToUpper(satFilter)
		var filtered []predict.Pass
		for _, p := range passes {
			if strings.Contains(strings.ToUpper(p.Name), upper) {
				filtered = append(filtered, p)
			}
		}
		passes = filtered
	}
	return passes, nil
}

func (a *App) handleRecordings(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	recs, err := a.store.Recordings(r.Context(), limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"recordings": recs})
}

func (a *App) handleCandidates(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)

	var err error
	var cands any
	if recStr := r.URL.Query().Get("recording_id"); recStr != "" {
		recID, convErr := strconv.ParseInt(recStr, 10, 64)
		if convErr != nil {
			jsonError(w, "invalid recording_id", http.StatusBadRequest)
			return
		}
		cands, err = a.store.CandidatesForRecording(r.Context(), recID)
	} else {
		cands, err = a.store.Candidates(r.Context(), limit)
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"candidates": cands})
}

func (a *App) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		CatalogID       int `json:"catalog_id"`
		DurationSeconds int `json:"duration_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.CatalogID == 0 {
		jsonError(w, "catalog_id required", http.StatusBadRequest)
		return
	}
	if req.DurationSeconds <= 0 {
		req.DurationSeconds = 600
	}

	payload, _ := json.Marshal(map[string]any{
		"catalog_id":       req.CatalogID,
		"duration_seconds": req.DurationSeconds,
	})
	writeCommandResult(w, a.sendSchedulerCommand("trigger", payload))
}

func (a *App) handlePause(w http.ResponseWriter, r *http.Request) {
	a.schedulerControl(w, r, "pause")
}

func (a *App) handleResume(w http.ResponseWriter, r *http.Request) {
	a.schedulerControl(w, r, "resume")
}

func (a *App) handleSkip(w http.ResponseWriter, r *http.Request) {
	a.schedulerControl(w, r, "skip")
}

func (a *App) handleCancel(w http.ResponseWriter, r *http.Request) {
	a.schedulerControl(w, r, "cancel")
}

func (a *App) schedulerControl(w http.ResponseWriter, r *http.Request, cmdType string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeCommandResult(w, a.sendSchedulerCommand(cmdType, nil))
}

func (a *App) handleTransmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		FreqHz  int    `json:"freq_hz"`
		Payload string `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := a.transmit.Request(req.FreqHz, []byte(req.Payload)); err != nil {
		jsonError(w, err.Error(), http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":      true,
		"message": "request authorized and logged; uplink hardware not implemented",
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// diskStats reports capacity of the filesystem backing the data root, so
// operators can see recording headroom in the status output.
type diskStats struct {
	TotalBytes     uint64 `json:"total_bytes"`
	UsedBytes      uint64 `json:"used_bytes"`
	AvailableBytes uint64 `json:"available_bytes"`
}

func dataDiskStats(path string) (diskStats, bool) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return diskStats{}, false
	}
	bs := uint64(st.Bsize)
	total := st.Blocks * bs
	return diskStats{
		TotalBytes:     total,
		UsedBytes:      total - st.Bfree*bs,
		AvailableBytes: st.Bavail * bs, // what the daemon can actually write
	}, true
}

// stationJSON reports the station identity, honoring location redaction.
func (a *App) stationJSON() map[string]any {
	st := map[string]any{
		"name":          a.cfg.Station.Name,
		"min_elevation": a.cfg.Station.MinElevation,
	}
	if !a.cfg.Privacy.RedactLocation {
		st["lat"] = a.cfg.Station.Latitude
		st["lon"] = a.cfg.Station.Longitude
		st["alt"] = a.cfg.Station.Altitude
	}
	return st
}

// sendSchedulerCommand sends a command to the scheduler and waits for the
// reply.
func (a *App) sendSchedulerCommand(cmdType string, payload json.RawMessage) scheduler.CommandResult {
	reply := make(chan scheduler.CommandResult, 1)
	a.scheduler.Commands <- scheduler.Command{
		Type:    cmdType,
		Payload: payload,
		Reply:   reply,
	}
	return <-reply
}

func queryLimit(r *http.Request, def int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return def
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":    false,
		"error": msg,
	})
}

// writeCommandResult writes a scheduler.CommandResult as JSON.
func writeCommandResult(w http.ResponseWriter, result scheduler.CommandResult) {
	w.Header().Set("Content-Type", "application/json")
	if !result.OK {
		w.WriteHeader(http.StatusInternalServerError)
	}
	_ = json.NewEncoder(w).Encode(result)
}
