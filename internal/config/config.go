// Package config handles loading, defaulting, and validation of the satwatch
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Data     DataConfig     `toml:"data"     json:"data"`
	Logging  LoggingConfig  `toml:"logging"  json:"logging"`
	Server   ServerConfig   `toml:"server"   json:"server"`
	Station  StationConfig  `toml:"station"  json:"station"`
	SDR      SDRConfig      `toml:"sdr"      json:"sdr"`
	Predict  PredictConfig  `toml:"predict"  json:"predict"`
	Detect   DetectConfig   `toml:"detect"   json:"detect"`
	Privacy  PrivacyConfig  `toml:"privacy"  json:"privacy"`
	Transmit TransmitConfig `toml:"transmit" json:"transmit"`
}

type DataConfig struct {
	Root       string `toml:"root"       json:"root"`
	Recordings string `toml:"recordings" json:"recordings"`
	Database   string `toml:"database"   json:"database"`
}

type LoggingConfig struct {
	Level  string `toml:"level"  json:"level"`
	Format string `toml:"format" json:"format"` // "text" or "json"
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

// StationConfig describes the fixed ground station. Latitude, longitude, and
// altitude are geodetic (degrees, degrees, meters); passes peaking below
// MinElevation degrees are never scheduled.
type StationConfig struct {
	Name         string  `toml:"name"          json:"name"`
	Latitude     float64 `toml:"latitude"      json:"latitude"`
	Longitude    float64 `toml:"longitude"     json:"longitude"`
	Altitude     float64 `toml:"altitude"      json:"altitude"`
	MinElevation float64 `toml:"min_elevation" json:"min_elevation"`
}

type SDRConfig struct {
	CaptureCommand string  `toml:"capture_command" json:"capture_command"`
	DeviceIndex    int     `toml:"device_index"    json:"device_index"`
	Gain           float64 `toml:"gain"            json:"gain"`
	PPMCorrection  int     `toml:"ppm_correction"  json:"ppm_correction"`
	SampleRate     int     `toml:"sample_rate"     json:"sample_rate"`
	CenterFreq     int     `toml:"center_freq"     json:"center_freq"`
	GraceSeconds   int     `toml:"grace_seconds"   json:"grace_seconds"`
	Simulate       bool    `toml:"simulate"        json:"simulate"`
}

type PredictConfig struct {
	TLESources      []string `toml:"tle_sources"       json:"tle_sources"`
	TLERefreshHours int      `toml:"tle_refresh_hours" json:"tle_refresh_hours"`
	LookaheadHours  int      `toml:"lookahead_hours"   json:"lookahead_hours"`
	HorizonHours    int      `toml:"horizon_hours"     json:"horizon_hours"`
	LeadSeconds     int      `toml:"lead_seconds"      json:"lead_seconds"`
}

type DetectConfig struct {
	FFTSize          int     `toml:"fft_size"           json:"fft_size"`
	TileSize         int     `toml:"tile_size"          json:"tile_size"`
	TileStride       int     `toml:"tile_stride"        json:"tile_stride"`
	MarginDB         float64 `toml:"margin_db"          json:"margin_db"`
	NoiseFloorDB     float64 `toml:"noise_floor_db"     json:"noise_floor_db"`
	ClassifierCmd    string  `toml:"classifier_command" json:"classifier_command"`
	ClassifierModel  string  `toml:"classifier_model"   json:"classifier_model"`
	ClassifierThresh float64 `toml:"classifier_thresh"  json:"classifier_thresh"`
	RenderImages     bool    `toml:"render_images"      json:"render_images"`
}

// PrivacyConfig replaces the environment-variable "ghost mode" of earlier
// revisions. It is passed explicitly to the scheduler at construction.
type PrivacyConfig struct {
	RedactLocation   bool `toml:"redact_location"    json:"redact_location"`
	DiscardRaw       bool `toml:"discard_raw"        json:"discard_raw"`
	SkipCandidateLog bool `toml:"skip_candidate_log" json:"skip_candidate_log"`
}

// TransmitConfig gates the uplink stub. Transmission stays disabled unless
// explicitly enabled and the frequency is on the authorized list.
type TransmitConfig struct {
	Enabled        bool  `toml:"enabled"         json:"enabled"`
	AuthorizedFreq []int `toml:"authorized_freq" json:"authorized_freq"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Data: DataConfig{
			Root:       "/var/lib/satwatch",
			Recordings: "/var/lib/satwatch/recordings",
			Database:   "/var/lib/satwatch/satwatch.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Bind: "0.0.0.0:8080",
		},
		Station: StationConfig{
			Name:         "",
			Latitude:     0.0,
			Longitude:    0.0,
			Altitude:     0.0,
			MinElevation: 10,
		},
		SDR: SDRConfig{
			CaptureCommand: "rtl_sdr",
			DeviceIndex:    0,
			Gain:           40.0,
			PPMCorrection:  0,
			SampleRate:     2400000,
			CenterFreq:     437000000,
			GraceSeconds:   30,
			Simulate:       false,
		},
		Predict: PredictConfig{
			TLESources: []string{
				"https://celestrak.org/NORAD/elements/gp.php?GROUP=active&FORMAT=tle",
				"https://celestrak.org/NORAD/elements/gp.php?GROUP=amateur&FORMAT=tle",
				"https://celestrak.org/NORAD/elements/gp.php?GROUP=cubesat&FORMAT=tle",
			},
			TLERefreshHours: 24,
			LookaheadHours:  24,
			HorizonHours:    2,
			LeadSeconds:     60,
		},
		Detect: DetectConfig{
			FFTSize:          1024,
			TileSize:         0, // 0 = spectrogram height / 8
			TileStride:       0, // 0 = tile size / 2
			MarginDB:         6,
			NoiseFloorDB:     -110,
			ClassifierCmd:    "",
			ClassifierModel:  "",
			ClassifierThresh: 0.5,
			RenderImages:     true,
		},
		Privacy:  PrivacyConfig{},
		Transmit: TransmitConfig{Enabled: false},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks configuration constraints. The station section is the
// hard requirement: scheduling is impossible without a usable location.
func Validate(cfg Config) error {
	if cfg.Data.Root == "" {
		return errors.New("data.root must not be empty")
	}
	if cfg.Data.Recordings == "" {
		return errors.New("data.recordings must not be empty")
	}
	if cfg.Data.Database == "" {
		return errors.New("data.database must not be empty")
	}
	if cfg.Station.Name == "" {
		return errors.New("station.name must not be empty")
	}
	if cfg.Station.Latitude < -90 || cfg.Station.Latitude > 90 {
		return fmt.Errorf("station.latitude %.4f out of range [-90, 90]", cfg.Station.Latitude)
	}
	if cfg.Station.Longitude < -180 || cfg.Station.Longitude > 180 {
		return fmt.Errorf("station.longitude %.4f out of range [-180, 180]", cfg.Station.Longitude)
	}
	if cfg.Station.MinElevation < 0 || cfg.Station.MinElevation > 90 {
		return errors.New("station.min_elevation must be between 0 and 90")
	}
	if cfg.SDR.SampleRate <= 0 {
		return errors.New("sdr.sample_rate must be > 0")
	}
	if cfg.SDR.CenterFreq <= 0 {
		return errors.New("sdr.center_freq must be > 0")
	}
	if cfg.SDR.GraceSeconds < 0 {
		return errors.New("sdr.grace_seconds must be >= 0")
	}
	if len(cfg.Predict.TLESources) == 0 {
		return errors.New("predict.tle_sources must list at least one URL")
	}
	if cfg.Predict.TLERefreshHours < 1 {
		return errors.New("predict.tle_refresh_hours must be >= 1")
	}
	if cfg.Predict.LookaheadHours < 1 {
		return errors.New("predict.lookahead_hours must be >= 1")
	}
	if cfg.Predict.HorizonHours < 1 {
		return errors.New("predict.horizon_hours must be >= 1")
	}
	if cfg.Detect.FFTSize < 64 || cfg.Detect.FFTSize&(cfg.Detect.FFTSize-1) != 0 {
		return errors.New("detect.fft_size must be a power of two >= 64")
	}
	if cfg.Detect.MarginDB <= 0 {
		return errors.New("detect.margin_db must be > 0")
	}
	if cfg.Detect.ClassifierThresh <= 0 || cfg.Detect.ClassifierThresh >= 1 {
		return errors.New("detect.classifier_thresh must be in (0, 1)")
	}
	return nil
}
