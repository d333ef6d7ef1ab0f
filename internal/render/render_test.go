package render

import (
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/satwatch/satwatch/internal/dsp"
)

func testSpectrogram(rows, cols int) *dsp.Spectrogram {
	power := make([][]float64, rows)
	for r := range power {
		power[r] = make([]float64, cols)
		for c := range power[r] {
			power[r][c] = -100
		}
	}
	power[rows/2][cols/2] = -60 // single hot cell

	return &dsp.Spectrogram{
		PowerDB:    power,
		FreqHz:     make([]float64, rows),
		TimeSec:    make([]float64, cols),
		SampleRate: 48000,
		FFTSize:    rows,
	}
}

func TestImageDimensions(t *testing.T) {
	s := testSpectrogram(64, 200)

	img, err := Image(s, Options{Theme: ThemeThermal})
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 200 || b.Dy() != 64 {
		t.Errorf("image is %dx%d, want 200x64", b.Dx(), b.Dy())
	}
}

func TestImageDownscale(t *testing.T) {
	s := testSpectrogram(32, 400)

	img, err := Image(s, Options{MaxWidth: 100})
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if got := img.Bounds().Dx(); got != 100 {
		t.Errorf("width = %d, want 100", got)
	}
	if got := img.Bounds().Dy(); got != 32 {
		t.Errorf("height = %d, want 32", got)
	}

	// Narrower than the cap stays at native resolution.
	img, err = Image(s, Options{MaxWidth: 1000})
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if got := img.Bounds().Dx(); got != 400 {
		t.Errorf("width = %d, want native 400", got)
	}
}

func TestHotCellStandsOut(t *testing.T) {
	s := testSpectrogram(64, 64)

	img, err := Image(s, Options{Theme: ThemeGrayscale})
	if err != nil {
		t.Fatalf("Image: %v", err)
	}

	hot := color.GrayModel.Convert(img.At(32, 32)).(color.Gray).Y
	cold := color.GrayModel.Convert(img.At(0, 0)).(color.Gray).Y
	if hot <= cold {
		t.Errorf("hot cell luma %d not above background %d", hot, cold)
	}
}

func TestImageRejectsEmpty(t *testing.T) {
	if _, err := Image(&dsp.Spectrogram{}, Options{}); err == nil {
		t.Fatal("empty spectrogram accepted")
	}
}

func TestWritePNG(t *testing.T) {
	s := testSpectrogram(32, 32)
	path := filepath.Join(t.TempDir(), "waterfall.png")

	if err := WritePNG(path, s, Options{}); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 32 {
		t.Errorf("decoded image is %v", img.Bounds())
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}
