// Package capture records satellite passes to raw IQ files. A recording is
// the output of one external SDR capture process, bounded by the pass window
// plus a grace period. When Simulate is enabled the runner synthesizes a
// complex tone instead of spawning the capture command, allowing the full
// pipeline to run without SDR hardware.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/satwatch/satwatch/internal/config"
	"github.com/satwatch/satwatch/internal/events"
	"github.com/satwatch/satwatch/internal/predict"
)

// simMaxDuration caps simulated captures so a 12-minute pass does not block
// tests and demos for 12 minutes.
const simMaxDuration = 15 * time.Second

// Request holds the parameters for a single recording session.
type Request struct {
	Pass       predict.Pass
	CenterFreq int // Hz
	SampleRate int
}

// Result describes a finished recording. Path points at the raw IQ file and
// MetaPath at its sidecar metadata document.
type Result struct {
	Path      string    `json:"path"`
	MetaPath  string    `json:"meta_path"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Bytes     int64     `json:"bytes"`
	Simulated bool      `json:"simulated"`
}

// Metadata is the sidecar document written next to every IQ file, so a
// recording stays interpretable without the database.
type Metadata struct {
	CatalogID  int       `json:"catalog_id"`
	Name       string    `json:"name"`
	CenterFreq int       `json:"center_freq_hz"`
	SampleRate int       `json:"sample_rate"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	Bytes      int64     `json:"bytes"`
	Simulated  bool      `json:"simulated"`
}

// Runner records passes into a directory.
type Runner struct {
	cfg config.SDRConfig
	dir string
	pub events.Publisher
	log *slog.Logger
}

// New creates a capture runner writing into dir.
func New(cfg config.SDRConfig, dir string, pub events.Publisher, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, dir: dir, pub: pub, log: logger}
}

// Capture runs a single recording session. It blocks until the pass sets
// (plus the configured grace period) or ctx is cancelled. A capture that
// produced no samples is a failure and leaves no partial file behind.
func (r *Runner) Capture(ctx context.Context, req Request) (*Result, error) {
	ts := req.Pass.Rise.UTC().Format("20060102T150405Z")
	outPath := filepath.Join(r.dir, fmt.Sprintf("%d_%s.iq", req.Pass.CatalogID, ts))

	mode := "live"
	if r.cfg.Simulate {
		mode = "simulated"
	}
	r.log.Info("starting capture",
		"mode", mode,
		"catalog_id", req.Pass.CatalogID,
		"name", req.Pass.Name,
		"freq_hz", req.CenterFreq,
		"path", outPath)
	r.pub.Publish(events.NewLogLine("info",
		fmt.Sprintf("starting %s capture for %s at %d Hz", mode, req.Pass.Name, req.CenterFreq)))

	f, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("creating recording file: %w", err)
	}

	started := time.Now().UTC()
	var written int64
	if r.cfg.Simulate {
		written = r.simulateCapture(ctx, f, req)
	} else {
		written, err = r.runCaptureCommand(ctx, f, req)
	}
	ended := time.Now().UTC()

	if cErr := f.Close(); cErr != nil && err == nil {
		err = fmt.Errorf("closing recording file: %w", cErr)
	}
	if err == nil && written == 0 {
		err = errors.New("capture produced no samples")
	}
	if err != nil {
		_ = os.Remove(outPath)
		return nil, err
	}

	meta := Metadata{
		CatalogID:  req.Pass.CatalogID,
		Name:       req.Pass.Name,
		CenterFreq: req.CenterFreq,
		SampleRate: req.SampleRate,
		StartedAt:  started,
		EndedAt:    ended,
		Bytes:      written,
		Simulated:  r.cfg.Simulate,
	}
	metaPath, err := writeMetadata(outPath, meta)
	if err != nil {
		r.log.Warn("failed to write recording metadata", "path", outPath, "error", err)
	}

	r.pub.Publish(events.NewLogLine("info",
		fmt.Sprintf("finished %s, %d bytes written to %s", req.Pass.Name, written, filepath.Base(outPath))))

	return &Result{
		Path:      outPath,
		MetaPath:  metaPath,
		StartedAt: started,
		EndedAt:   ended,
		Bytes:     written,
		Simulated: r.cfg.Simulate,
	}, nil
}

// runCaptureCommand records a pass by running the configured SDR command as
// a subprocess. The process is killed automatically when the pass sets plus
// the grace period, or when ctx is cancelled.
func (r *Runner) runCaptureCommand(ctx context.Context, f *os.File, req Request) (int64, error) {
	grace := time.Duration(r.cfg.GraceSeconds) * time.Second
	losCtx, losCancel := context.WithDeadline(ctx, req.Pass.Set.Add(grace))
	defer losCancel()

	args := buildCaptureArgs(r.cfg, req.CenterFreq)
	cmd := exec.CommandContext(losCtx, r.cfg.CaptureCommand, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting %s: %w", r.cfg.CaptureCommand, err)
	}

	written := r.streamWithProgress(losCtx, f, stdout, req)

	// CommandContext sends SIGKILL on cancel; explicit Kill is a safety net.
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	waitErr := cmd.Wait()

	// A kill at the pass deadline is the normal way a capture ends.
	if waitErr != nil && losCtx.Err() == nil {
		return written, fmt.Errorf("%s: %w", r.cfg.CaptureCommand, waitErr)
	}
	return written, nil
}

// simulateCapture writes a synthetic complex tone 12.5 kHz above center as
// interleaved unsigned 8-bit I/Q, the same wire format the SDR produces.
func (r *Runner) simulateCapture(ctx context.Context, f io.Writer, req Request) int64 {
	duration := req.Pass.Duration()
	if duration > simMaxDuration {
		duration = simMaxDuration
	}

	const toneOffsetHz = 12500.0
	sampleRate := req.SampleRate
	totalSamples := int(duration.Seconds() * float64(sampleRate))

	const chunkSamples = 4096
	buf := make([]byte, chunkSamples*2)

	var written int64
	samplesWritten := 0

	for samplesWritten < totalSamples {
		select {
		case <-ctx.Done():
			return written
		default:
		}

		n := chunkSamples
		if samplesWritten+n > totalSamples {
			n = totalSamples - samplesWritten
		}

		for i := 0; i < n; i++ {
			phase := 2 * math.Pi * toneOffsetHz * float64(samplesWritten+i) / float64(sampleRate)
			buf[2*i] = uint8(127.5 + 100*math.Cos(phase))
			buf[2*i+1] = uint8(127.5 + 100*math.Sin(phase))
		}

		nw, err := f.Write(buf[:n*2])
		written += int64(nw)
		samplesWritten += n
		if err != nil {
			r.log.Warn("simulated capture write failed", "error", err)
			return written
		}
	}

	return written
}

// streamWithProgress copies raw IQ bytes from the capture process into the
// recording file, publishing progress events every 2 seconds.
func (r *Runner) streamWithProgress(ctx context.Context, dst io.Writer, src io.Reader, req Request) int64 {
	buf := make([]byte, 8192)
	var written int64
	startTime := time.Now()
	lastReport := startTime
	total := req.Pass.Duration()

	for {
		select {
		case <-ctx.Done():
			return written
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			nw, writeErr := dst.Write(buf[:n])
			written += int64(nw)
			if writeErr != nil {
				r.log.Warn("capture write failed", "error", writeErr)
				return written
			}
		}

		if time.Since(lastReport) >= 2*time.Second {
			pct := time.Since(startTime).Seconds() / total.Seconds() * 100
			if pct > 100 {
				pct = 100
			}
			r.pub.Publish(events.NewProgress("recording", pct,
				fmt.Sprintf("%s capture: %d bytes", req.Pass.Name, written)))
			lastReport = time.Now()
		}

		if readErr == io.EOF {
			return written
		}
		if readErr != nil {
			if ctx.Err() == nil {
				r.log.Warn("capture read failed", "error", readErr)
			}
			return written
		}
	}
}

// buildCaptureArgs assembles the command-line flags for an rtl_sdr style
// capture tool. Output goes to stdout ("-") so it can be piped directly
// into the recording file.
func buildCaptureArgs(sdr config.SDRConfig, freq int) []string {
	return []string{
		"-f", fmt.Sprintf("%d", freq),
		"-s", fmt.Sprintf("%d", sdr.SampleRate),
		"-g", fmt.Sprintf("%.1f", sdr.Gain),
		"-p", fmt.Sprintf("%d", sdr.PPMCorrection),
		"-d", fmt.Sprintf("%d", sdr.DeviceIndex),
		"-",
	}
}
