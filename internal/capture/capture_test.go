package capture

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/satwatch/satwatch/internal/config"
	"github.com/satwatch/satwatch/internal/dsp"
	"github.com/satwatch/satwatch/internal/events"
	"github.com/satwatch/satwatch/internal/predict"
)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func testPass(dur time.Duration) predict.Pass {
	rise := time.Now().UTC()
	return predict.Pass{
		CatalogID:     25544,
		Name:          "ISS (ZARYA)",
		Rise:          rise,
		Peak:          rise.Add(dur / 2),
		Set:           rise.Add(dur),
		PeakElevation: 45,
	}
}

func TestSimulatedCapture(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default().SDR
	cfg.Simulate = true

	r := New(cfg, dir, events.Nop{}, testLogger())
	res, err := r.Capture(context.Background(), Request{
		Pass:       testPass(2 * time.Second),
		CenterFreq: 437800000,
		SampleRate: 48000,
	})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	info, err := os.Stat(res.Path)
	if err != nil {
		t.Fatalf("recording file missing: %v", err)
	}
	if info.Size() != res.Bytes {
		t.Errorf("result reports %d bytes, file holds %d", res.Bytes, info.Size())
	}
	// 2 seconds at 48 kHz, two bytes per complex sample.
	if want := int64(2 * 48000 * 2); res.Bytes != want {
		t.Errorf("wrote %d bytes, want %d", res.Bytes, want)
	}

	meta, err := ReadMetadata(res.Path)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if meta.CatalogID != 25544 || !meta.Simulated || meta.SampleRate != 48000 {
		t.Errorf("metadata = %+v", meta)
	}

	// The synthetic tone must land near its 12.5 kHz offset.
	raw, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("reading recording: %v", err)
	}
	s, err := dsp.Build(dsp.ComplexFromIQ8(raw), 48000, 1024)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	bestRow, bestPower := 0, math.Inf(-1)
	for rIdx := 0; rIdx < s.Rows(); rIdx++ {
		if s.PowerDB[rIdx][0] > bestPower {
			bestPower = s.PowerDB[rIdx][0]
			bestRow = rIdx
		}
	}
	if diff := math.Abs(s.FreqHz[bestRow] - 12500); diff > s.BinWidthHz() {
		t.Errorf("simulated tone at %.1f Hz, want 12500", s.FreqHz[bestRow])
	}
}

func TestMissingCaptureCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default().SDR
	cfg.CaptureCommand = "satwatch-no-such-capture-tool"

	r := New(cfg, dir, events.Nop{}, testLogger())
	_, err := r.Capture(context.Background(), Request{
		Pass:       testPass(time.Minute),
		CenterFreq: 437800000,
		SampleRate: 2400000,
	})
	if err == nil {
		t.Fatal("missing capture command accepted")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("partial files left behind: %v", entries)
	}
}

// stubCommand writes an executable shell script and returns its path.
func stubCommand(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "stub.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLiveCaptureFromStub(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default().SDR
	cfg.CaptureCommand = stubCommand(t, "head -c 8192 /dev/zero")

	r := New(cfg, dir, events.Nop{}, testLogger())
	res, err := r.Capture(context.Background(), Request{
		Pass:       testPass(time.Minute),
		CenterFreq: 437800000,
		SampleRate: 2400000,
	})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if res.Bytes != 8192 {
		t.Errorf("wrote %d bytes, want 8192", res.Bytes)
	}
	if _, err := os.Stat(res.MetaPath); err != nil {
		t.Errorf("metadata sidecar missing: %v", err)
	}
}

func TestFailedCaptureLeavesNoPartialFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default().SDR
	cfg.CaptureCommand = stubCommand(t, "exit 3")

	r := New(cfg, dir, events.Nop{}, testLogger())
	if _, err := r.Capture(context.Background(), Request{
		Pass:       testPass(time.Minute),
		CenterFreq: 437800000,
		SampleRate: 2400000,
	}); err == nil {
		t.Fatal("failing capture command accepted")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("partial files left behind: %v", entries)
	}
}
