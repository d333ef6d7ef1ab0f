package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/satwatch/satwatch/internal/capture"
	"github.com/satwatch/satwatch/internal/config"
	"github.com/satwatch/satwatch/internal/detect"
	"github.com/satwatch/satwatch/internal/dsp"
	"github.com/satwatch/satwatch/internal/predict"
	"github.com/satwatch/satwatch/internal/render"
	"github.com/satwatch/satwatch/internal/storage"
)

// Pipeline is the post-capture processing stage: spectrogram, detection,
// persistence, and optional rendering. Storage writes are serialized by the
// store's single write connection, so concurrent Process calls are safe.
type Pipeline struct {
	cfg      config.Config
	store    *storage.Store
	detector *detect.Pipeline
	log      *slog.Logger
}

// NewPipeline creates the processing stage.
func NewPipeline(cfg config.Config, store *storage.Store, detector *detect.Pipeline, logger *slog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, store: store, detector: detector, log: logger}
}

// Process turns one finished recording into candidates and persists both.
func (p *Pipeline) Process(ctx context.Context, pass predict.Pass, res *capture.Result) ([]detect.Candidate, error) {
	recID, err := p.store.CreateRecording(ctx, &storage.Recording{
		StartedAt:  res.StartedAt,
		CatalogID:  pass.CatalogID,
		Name:       pass.Name,
		CenterFreq: p.cfg.SDR.CenterFreq,
		SampleRate: p.cfg.SDR.SampleRate,
		Path:       res.Path,
	})
	if err != nil {
		return nil, fmt.Errorf("registering recording: %w", err)
	}

	cands, procErr := p.process(ctx, pass, res, recID)

	status := storage.StatusComplete
	if procErr != nil {
		status = storage.StatusFailed
	}
	ended := res.EndedAt
	size := res.Bytes
	if err := p.store.FinishRecording(ctx, &storage.Recording{
		ID:        recID,
		EndedAt:   &ended,
		Status:    status,
		SizeBytes: &size,
	}); err != nil {
		p.log.Warn("failed to finalize recording row", "recording_id", recID, "error", err)
	}

	if procErr != nil {
		return nil, procErr
	}

	if p.cfg.Privacy.DiscardRaw {
		if err := os.Remove(res.Path); err != nil {
			p.log.Warn("failed to discard raw samples", "path", res.Path, "error", err)
		} else {
			p.log.Info("raw samples discarded after processing", "path", res.Path)
		}
	}

	return cands, nil
}

func (p *Pipeline) process(ctx context.Context, pass predict.Pass, res *capture.Result, recID int64) ([]detect.Candidate, error) {
	raw, err := os.ReadFile(res.Path)
	if err != nil {
		return nil, fmt.Errorf("reading recording: %w", err)
	}

	spec, err := dsp.Build(dsp.ComplexFromIQ8(raw), p.cfg.SDR.SampleRate, p.cfg.Detect.FFTSize)
	if err != nil {
		return nil, fmt.Errorf("building spectrogram: %w", err)
	}

	cands := p.detector.Detect(spec, filepath.Base(res.Path))
	p.log.Info("recording processed",
		"catalog_id", pass.CatalogID,
		"recording", filepath.Base(res.Path),
		"size", humanize.Bytes(uint64(res.Bytes)),
		"scorer", p.detector.Scorer(),
		"candidates", len(cands))

	if len(cands) > 0 && !p.cfg.Privacy.SkipCandidateLog {
		rows := make([]*storage.CandidateRow, len(cands))
		now := time.Now().UTC()
		for i, c := range cands {
			rows[i] = &storage.CandidateRow{
				RecordingID:  recID,
				CreatedAt:    now,
				CatalogID:    pass.CatalogID,
				FreqOffsetHz: c.FreqOffsetHz,
				PeakTimeSec:  c.PeakTimeSec,
				SNRdB:        c.SNRdB,
				Confidence:   c.Confidence,
				Scorer:       p.detector.Scorer(),
			}
		}
		if err := p.store.StoreCandidates(ctx, rows); err != nil {
			return nil, fmt.Errorf("persisting candidates: %w", err)
		}
	}

	if p.cfg.Detect.RenderImages {
		pngPath := strings.TrimSuffix(res.Path, ".iq") + ".png"
		if err := render.WritePNG(pngPath, spec, render.Options{
			Theme:    render.ThemeThermal,
			MaxWidth: 2048,
		}); err != nil {
			p.log.Warn("failed to render spectrogram image", "path", pngPath, "error", err)
		}
	}

	return cands, nil
}
