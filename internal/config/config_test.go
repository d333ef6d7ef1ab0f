package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "satwatch.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[station]
name = "test-station"
latitude = 52.52
longitude = 13.405
altitude = 34.0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Station.MinElevation != 10 {
		t.Errorf("MinElevation = %v, want default 10", cfg.Station.MinElevation)
	}
	if cfg.SDR.SampleRate != 2400000 {
		t.Errorf("SampleRate = %d, want default 2400000", cfg.SDR.SampleRate)
	}
	if cfg.Detect.FFTSize != 1024 {
		t.Errorf("FFTSize = %d, want default 1024", cfg.Detect.FFTSize)
	}
	if cfg.Transmit.Enabled {
		t.Error("Transmit.Enabled must default to false")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
[station]
name = "north-field"
latitude = -33.86
longitude = 151.2
min_elevation = 25.0

[sdr]
sample_rate = 1024000
simulate = true

[detect]
margin_db = 8.0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Station.MinElevation != 25 {
		t.Errorf("MinElevation = %v, want 25", cfg.Station.MinElevation)
	}
	if !cfg.SDR.Simulate {
		t.Error("SDR.Simulate = false, want true")
	}
	if cfg.Detect.MarginDB != 8 {
		t.Errorf("MarginDB = %v, want 8", cfg.Detect.MarginDB)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "missing station name",
			mutate:  func(c *Config) { c.Station.Name = "" },
			wantSub: "station.name",
		},
		{
			name:    "latitude out of range",
			mutate:  func(c *Config) { c.Station.Latitude = 91 },
			wantSub: "station.latitude",
		},
		{
			name:    "negative elevation threshold",
			mutate:  func(c *Config) { c.Station.MinElevation = -1 },
			wantSub: "min_elevation",
		},
		{
			name:    "zero sample rate",
			mutate:  func(c *Config) { c.SDR.SampleRate = 0 },
			wantSub: "sample_rate",
		},
		{
			name:    "fft size not power of two",
			mutate:  func(c *Config) { c.Detect.FFTSize = 1000 },
			wantSub: "fft_size",
		},
		{
			name:    "no TLE sources",
			mutate:  func(c *Config) { c.Predict.TLESources = nil },
			wantSub: "tle_sources",
		},
		{
			name:    "classifier threshold out of range",
			mutate:  func(c *Config) { c.Detect.ClassifierThresh = 1.5 },
			wantSub: "classifier_thresh",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Station.Name = "ok"
			tt.mutate(&cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate: expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("Load of missing file should fail")
	}
}
