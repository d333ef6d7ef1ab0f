// Package render turns spectrogram power matrices into PNG waterfall images
// for quick visual review of a recording. Frequency runs along the vertical
// axis and time along the horizontal one, matching the matrix layout.
package render

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"sort"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"

	"github.com/satwatch/satwatch/internal/dsp"
)

// Options control the rendered output. The zero value selects the classic
// theme at native matrix resolution.
type Options struct {
	Theme    Theme
	MaxWidth int // downscale wider images to this many pixels, 0 for native
}

// Image renders the spectrogram into an RGBA image. The color ramp is
// stretched between the 2nd and 99.8th power percentiles so a handful of hot
// cells cannot wash out the rest of the picture.
func Image(s *dsp.Spectrogram, opts Options) (*image.RGBA, error) {
	rows, cols := s.Rows(), s.Cols()
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("empty spectrogram")
	}

	lo, hi := powerBounds(s.PowerDB)
	cm := newColorMapper(opts.Theme, lo, hi)

	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			img.Set(c, r, cm.color(s.PowerDB[r][c]))
		}
	}

	if opts.MaxWidth > 0 && cols > opts.MaxWidth {
		scaled := image.NewRGBA(image.Rect(0, 0, opts.MaxWidth, rows))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)
		img = scaled
	}

	return img, nil
}

// WritePNG renders the spectrogram and writes it to path atomically.
func WritePNG(path string, s *dsp.Spectrogram, opts Options) error {
	img, err := Image(s, opts)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating image file: %w", err)
	}

	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encoding png: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("closing image file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("placing image file: %w", err)
	}
	return nil
}

func powerBounds(m [][]float64) (lo, hi float64) {
	flat := make([]float64, 0, len(m)*len(m[0]))
	for _, row := range m {
		flat = append(flat, row...)
	}
	sort.Float64s(flat)

	lo = stat.Quantile(0.02, stat.Empirical, flat, nil)
	hi = stat.Quantile(0.998, stat.Empirical, flat, nil)
	return lo, hi
}
