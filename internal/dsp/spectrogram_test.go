package dsp

import (
	"math"
	"math/cmplx"
	"reflect"
	"testing"
)

// tone synthesizes a unit-amplitude complex exponential at freqHz.
func tone(freqHz float64, sampleRate, n int) []complex128 {
	out := make([]complex128, n)
	for i := range out {
		phase := 2 * math.Pi * freqHz * float64(i) / float64(sampleRate)
		out[i] = cmplx.Exp(complex(0, phase))
	}
	return out
}

func TestBuildShape(t *testing.T) {
	const (
		sampleRate = 48000
		fftSize    = 256
	)
	samples := tone(1000, sampleRate, 4*fftSize)

	s, err := Build(samples, sampleRate, fftSize)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if s.Rows() != len(s.FreqHz) {
		t.Errorf("rows %d != len(FreqHz) %d", s.Rows(), len(s.FreqHz))
	}
	if s.Cols() != len(s.TimeSec) {
		t.Errorf("cols %d != len(TimeSec) %d", s.Cols(), len(s.TimeSec))
	}
	wantCols := 1 + (len(samples)-fftSize)/(fftSize/2)
	if s.Cols() != wantCols {
		t.Errorf("cols = %d, want %d", s.Cols(), wantCols)
	}
	for r := 1; r < s.Rows(); r++ {
		if s.FreqHz[r] <= s.FreqHz[r-1] {
			t.Fatal("frequency axis not strictly ascending")
		}
	}
	if s.FreqHz[fftSize/2] != 0 {
		t.Errorf("center row frequency = %v, want 0 after shift", s.FreqHz[fftSize/2])
	}
}

func TestBuildLocatesTone(t *testing.T) {
	const (
		sampleRate = 48000
		fftSize    = 512
	)
	tests := []struct {
		name   string
		freqHz float64
	}{
		{"positive offset", 6000},
		{"negative offset", -9000},
		{"dc", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := tone(tt.freqHz, sampleRate, 8*fftSize)
			s, err := Build(samples, sampleRate, fftSize)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}

			// Locate the strongest bin across the whole matrix.
			bestRow, bestPower := 0, math.Inf(-1)
			for r := 0; r < s.Rows(); r++ {
				for c := 0; c < s.Cols(); c++ {
					if s.PowerDB[r][c] > bestPower {
						bestPower = s.PowerDB[r][c]
						bestRow = r
					}
				}
			}

			if diff := math.Abs(s.FreqHz[bestRow] - tt.freqHz); diff > s.BinWidthHz() {
				t.Errorf("peak at %.1f Hz, injected tone at %.1f Hz (off by %.1f, bin width %.1f)",
					s.FreqHz[bestRow], tt.freqHz, diff, s.BinWidthHz())
			}
		})
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	raw := make([]byte, 4096)
	// Arbitrary but fixed byte pattern.
	for i := range raw {
		raw[i] = byte((i*37 + 11) % 256)
	}

	a, err := Build(ComplexFromIQ8(raw), 48000, 256)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b, err := Build(ComplexFromIQ8(raw), 48000, 256)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !reflect.DeepEqual(a.PowerDB, b.PowerDB) {
		t.Fatal("identical input produced different matrices")
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	samples := tone(0, 48000, 128)

	if _, err := Build(samples, 0, 64); err == nil {
		t.Error("zero sample rate accepted")
	}
	if _, err := Build(samples, 48000, 100); err == nil {
		t.Error("non-power-of-two fft size accepted")
	}
	if _, err := Build(samples[:10], 48000, 64); err == nil {
		t.Error("short sample stream accepted")
	}
}

func TestComplexFromIQ8(t *testing.T) {
	// 0x00 maps to -1.0, 0xFF maps to +1.0 (both within one LSB of 127.5).
	raw := []byte{0, 255, 255, 0}
	samples := ComplexFromIQ8(raw)
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if real(samples[0]) >= -0.99 || imag(samples[0]) <= 0.99 {
		t.Errorf("sample 0 = %v, want ~(-1+1i)", samples[0])
	}
	if real(samples[1]) <= 0.99 || imag(samples[1]) >= -0.99 {
		t.Errorf("sample 1 = %v, want ~(1-1i)", samples[1])
	}

	// Zero-level bytes (127/128 straddle the 127.5 midpoint).
	mid := ComplexFromIQ8([]byte{128, 128})
	if math.Abs(real(mid[0])) > 0.01 || math.Abs(imag(mid[0])) > 0.01 {
		t.Errorf("mid-level sample = %v, want ~0", mid[0])
	}

	// Odd trailing byte is dropped.
	if got := ComplexFromIQ8([]byte{1, 2, 3}); len(got) != 1 {
		t.Errorf("odd input length: got %d samples, want 1", len(got))
	}
}
