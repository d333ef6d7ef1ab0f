// Package dsp turns raw complex sample streams into time-frequency power
// matrices. The output is deliberately deterministic: identical input bytes
// always produce a bit-for-bit identical matrix, so downstream detection is
// reproducible.
package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// powerFloor keeps exact-zero bins out of log10; matches a -120 dB floor.
const powerFloor = 1e-12

// Spectrogram is a 2-D power matrix in decibels with parallel axis vectors.
// PowerDB is indexed [frequency row][time column]; row count always equals
// len(FreqHz) and column count equals len(TimeSec). Frequency rows are
// zero-centered: FreqHz holds the offset from the capture center frequency,
// negative offsets first.
type Spectrogram struct {
	PowerDB    [][]float64
	FreqHz     []float64
	TimeSec    []float64
	SampleRate int
	FFTSize    int
}

// Rows returns the number of frequency rows.
func (s *Spectrogram) Rows() int { return len(s.PowerDB) }

// Cols returns the number of time columns.
func (s *Spectrogram) Cols() int {
	if len(s.PowerDB) == 0 {
		return 0
	}
	return len(s.PowerDB[0])
}

// BinWidthHz returns the width of one frequency row in hertz.
func (s *Spectrogram) BinWidthHz() float64 {
	return float64(s.SampleRate) / float64(s.FFTSize)
}

// ComplexFromIQ8 reconstructs complex samples from interleaved unsigned
// 8-bit I/Q pairs (RTL-SDR wire format: zero at 127.5). A trailing odd byte
// is dropped.
func ComplexFromIQ8(raw []byte) []complex128 {
	n := len(raw) / 2
	out := make([]complex128, n)
	for i := 0; i < n; i++ {
		re := (float64(raw[2*i]) - 127.5) / 127.5
		im := (float64(raw[2*i+1]) - 127.5) / 127.5
		out[i] = complex(re, im)
	}
	return out
}

// Build computes the spectrogram of samples with a Hann-windowed FFT of
// fftSize and 50% overlap. The zero-frequency bin is shifted to the matrix
// center and power is converted to decibels with a numerical floor.
func Build(samples []complex128, sampleRate, fftSize int) (*Spectrogram, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if fftSize <= 0 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("fft size must be a power of two, got %d", fftSize)
	}
	if len(samples) < fftSize {
		return nil, fmt.Errorf("need at least %d samples, got %d", fftSize, len(samples))
	}

	hop := fftSize / 2
	frames := 1 + (len(samples)-fftSize)/hop

	window := hannWindow(fftSize)
	fft := fourier.NewCmplxFFT(fftSize)

	// Matrix laid out [row][col]; rows are filled column-by-column as each
	// frame is transformed.
	power := make([][]float64, fftSize)
	for r := range power {
		power[r] = make([]float64, frames)
	}

	frameIn := make([]complex128, fftSize)
	frameOut := make([]complex128, fftSize)
	half := fftSize / 2

	for c := 0; c < frames; c++ {
		off := c * hop
		for i := 0; i < fftSize; i++ {
			frameIn[i] = samples[off+i] * complex(window[i], 0)
		}
		frameOut = fft.Coefficients(frameOut, frameIn)

		// fftshift: bin k of the raw transform lands on row (k+half)%fftSize
		// so negative frequencies come first.
		for k := 0; k < fftSize; k++ {
			row := (k + half) % fftSize
			re := real(frameOut[k])
			im := imag(frameOut[k])
			p := (re*re + im*im) / float64(fftSize)
			power[row][c] = 10 * math.Log10(p+powerFloor)
		}
	}

	freq := make([]float64, fftSize)
	binWidth := float64(sampleRate) / float64(fftSize)
	for r := 0; r < fftSize; r++ {
		freq[r] = float64(r-half) * binWidth
	}

	times := make([]float64, frames)
	for c := 0; c < frames; c++ {
		times[c] = float64(c*hop+half) / float64(sampleRate)
	}

	return &Spectrogram{
		PowerDB:    power,
		FreqHz:     freq,
		TimeSec:    times,
		SampleRate: sampleRate,
		FFTSize:    fftSize,
	}, nil
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}
