// Package detect scans spectrograms for signal-bearing regions. A fixed-size
// square tile slides across the power matrix; cheap mean-power filtering
// discards empty tiles, and the surviving ones are scored by a pluggable
// Scorer. The scorer is chosen once at startup, so the pipeline itself never
// branches on classifier availability.
package detect

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/satwatch/satwatch/internal/dsp"
)

// Candidate is one detected region of a spectrogram.
type Candidate struct {
	FreqOffsetHz float64 `json:"freq_offset_hz"` // offset from capture center
	PeakTimeSec  float64 `json:"peak_time_sec"`  // seconds from recording start
	SNRdB        float64 `json:"snr_db"`
	Confidence   float64 `json:"confidence"` // 1.0 for the hard threshold scorer
	Recording    string  `json:"recording"`  // source recording reference
}

// Tile is a square sub-region of a spectrogram handed to a Scorer.
// PowerDB rows are views into the source matrix; scorers must not mutate
// them.
type Tile struct {
	PowerDB  [][]float64
	Row, Col int // top-left position in the source matrix
	Size     int
}

// Score is a positive scoring verdict for one tile.
type Score struct {
	SNRdB      float64
	Confidence float64
	PeakRow    int // peak cell, relative to the tile
	PeakCol    int
}

// Scorer assigns a signal verdict to a tile. ok reports whether the tile is
// a candidate. Errors are resource-level failures (for example a classifier
// process dying) and cause the tile to be skipped, not the detection run to
// abort.
type Scorer interface {
	Name() string
	ScoreTile(t Tile) (s Score, ok bool, err error)
}

// Config controls tiling geometry and the pre-filter cutoff. Zero values
// select the defaults: tile = matrix height / 8, stride = tile / 2.
type Config struct {
	TileSize     int
	TileStride   int
	NoiseFloorDB float64
}

// Pipeline runs tile-based detection with one fixed scorer.
type Pipeline struct {
	scorer Scorer
	cfg    Config
	log    *slog.Logger
}

// New creates a detection pipeline around the given scorer.
func New(scorer Scorer, cfg Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{scorer: scorer, cfg: cfg, log: logger}
}

// Scorer returns the name of the active scorer.
func (p *Pipeline) Scorer() string { return p.scorer.Name() }

// Detect tiles the spectrogram, scores each tile, and returns candidates
// ordered by descending confidence, then ascending peak time. recording is
// attached to every candidate as its source back-reference.
func (p *Pipeline) Detect(s *dsp.Spectrogram, recording string) []Candidate {
	rows, cols := s.Rows(), s.Cols()
	if rows == 0 || cols == 0 {
		return nil
	}

	tileSize := p.cfg.TileSize
	if tileSize <= 0 {
		tileSize = rows / 8
	}
	if tileSize > rows {
		tileSize = rows
	}
	if tileSize > cols {
		tileSize = cols
	}
	if tileSize < 2 {
		return nil
	}

	stride := p.cfg.TileStride
	if stride <= 0 {
		stride = tileSize / 2
	}

	var (
		candidates []Candidate
		seen       = make(map[[2]int]bool) // peak cells already reported
		scanned    int
		skipped    int
	)

	for y := 0; y+tileSize <= rows; y += stride {
		for x := 0; x+tileSize <= cols; x += stride {
			scanned++
			tile := Tile{
				PowerDB: tileView(s.PowerDB, y, x, tileSize),
				Row:     y,
				Col:     x,
				Size:    tileSize,
			}

			// Pre-filter: a tile whose mean power sits below the noise-floor
			// cutoff cannot contain a detectable signal; skipping it bounds
			// the number of scorer calls.
			if tileMean(tile.PowerDB) < p.cfg.NoiseFloorDB {
				skipped++
				continue
			}

			score, ok, err := p.scorer.ScoreTile(tile)
			if err != nil {
				p.log.Warn("scorer failed on tile, skipping",
					"scorer", p.scorer.Name(), "row", y, "col", x, "error", err)
				continue
			}
			if !ok {
				continue
			}

			peak := [2]int{y + score.PeakRow, x + score.PeakCol}
			if seen[peak] {
				continue
			}
			seen[peak] = true

			candidates = append(candidates, Candidate{
				FreqOffsetHz: s.FreqHz[peak[0]],
				PeakTimeSec:  s.TimeSec[peak[1]],
				SNRdB:        score.SNRdB,
				Confidence:   score.Confidence,
				Recording:    recording,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].PeakTimeSec < candidates[j].PeakTimeSec
	})

	p.log.Debug("detection sweep complete",
		"scorer", p.scorer.Name(),
		"tiles_scanned", scanned,
		"tiles_prefiltered", skipped,
		"candidates", len(candidates))

	return candidates
}

// tileView returns row slices into the source matrix without copying.
func tileView(m [][]float64, row, col, size int) [][]float64 {
	out := make([][]float64, size)
	for i := 0; i < size; i++ {
		out[i] = m[row+i][col : col+size]
	}
	return out
}

func tileMean(m [][]float64) float64 {
	var sum float64
	var n int
	for _, row := range m {
		sum += stat.Mean(row, nil) * float64(len(row))
		n += len(row)
	}
	return sum / float64(n)
}
