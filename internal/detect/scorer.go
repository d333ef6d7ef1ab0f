package detect

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ThresholdScorer flags tiles holding energy a fixed margin above the local
// noise estimate. The noise estimate is the median power of each frequency
// row, which is robust against the signal itself inflating the estimate.
// Confidence is always 1.0: the threshold is a hard verdict.
type ThresholdScorer struct {
	MarginDB float64
}

func (t ThresholdScorer) Name() string { return "threshold" }

// ScoreTile reports a candidate when any cell exceeds its row median by more
// than MarginDB. SNR is the largest such excess.
func (t ThresholdScorer) ScoreTile(tile Tile) (Score, bool, error) {
	var (
		bestExcess       float64
		bestRow, bestCol int
		found            bool
	)

	scratch := make([]float64, tile.Size)
	for r, row := range tile.PowerDB {
		copy(scratch, row)
		sort.Float64s(scratch)
		median := stat.Quantile(0.5, stat.Empirical, scratch, nil)

		for c, p := range row {
			excess := p - median
			if excess > t.MarginDB && (!found || excess > bestExcess) {
				bestExcess = excess
				bestRow, bestCol = r, c
				found = true
			}
		}
	}

	if !found {
		return Score{}, false, nil
	}
	return Score{
		SNRdB:      bestExcess,
		Confidence: 1.0,
		PeakRow:    bestRow,
		PeakCol:    bestCol,
	}, true, nil
}

// Classifier is the external inference capability: it scores a normalized
// tile and returns a signal probability in [0, 1]. Its absence at startup is
// a capability downgrade, not an error.
type Classifier interface {
	Predict(tile [][]float64) (float64, error)
	Close() error
}

// ClassifierScorer normalizes each tile to [0, 1] and defers the verdict to
// an external classifier. Confidence is the returned probability.
type ClassifierScorer struct {
	Classifier Classifier
	Threshold  float64 // minimum probability to report a candidate
}

func (c ClassifierScorer) Name() string { return "classifier" }

func (c ClassifierScorer) ScoreTile(tile Tile) (Score, bool, error) {
	norm, peakRow, peakCol := normalizeTile(tile.PowerDB)

	prob, err := c.Classifier.Predict(norm)
	if err != nil {
		return Score{}, false, fmt.Errorf("classifier inference: %w", err)
	}
	if prob < 0 || prob > 1 {
		return Score{}, false, fmt.Errorf("classifier returned probability %v outside [0,1]", prob)
	}
	if prob <= c.Threshold {
		return Score{}, false, nil
	}

	// SNR estimate: peak power over tile mean, in the original dB domain.
	var sum float64
	var n int
	for _, row := range tile.PowerDB {
		sum += stat.Mean(row, nil) * float64(len(row))
		n += len(row)
	}
	snr := tile.PowerDB[peakRow][peakCol] - sum/float64(n)

	return Score{
		SNRdB:      snr,
		Confidence: prob,
		PeakRow:    peakRow,
		PeakCol:    peakCol,
	}, true, nil
}

// normalizeTile min-max scales the tile into [0, 1] and returns the peak
// cell position. A flat tile normalizes to all zeros.
func normalizeTile(m [][]float64) (norm [][]float64, peakRow, peakCol int) {
	lo, hi := m[0][0], m[0][0]
	for r, row := range m {
		for c, v := range row {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
				peakRow, peakCol = r, c
			}
		}
	}

	span := hi - lo
	norm = make([][]float64, len(m))
	for r, row := range m {
		norm[r] = make([]float64, len(row))
		if span == 0 {
			continue
		}
		for c, v := range row {
			norm[r][c] = (v - lo) / span
		}
	}
	return norm, peakRow, peakCol
}
