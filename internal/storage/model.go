package storage

import "time"

// Recording is one capture session row. EndedAt and SizeBytes are unset
// until the capture finishes.
type Recording struct {
	ID         int64      `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	CatalogID  int        `json:"catalog_id"`
	Name       string     `json:"name"`
	CenterFreq int        `json:"center_freq_hz"`
	SampleRate int        `json:"sample_rate"`
	Path       string     `json:"path"`
	Status     string     `json:"status"`
	SizeBytes  *int64     `json:"size_bytes,omitempty"`
}

// Recording status values.
const (
	StatusRecording = "recording"
	StatusComplete  = "complete"
	StatusFailed    = "failed"
)

// CandidateRow is one persisted detection, linked to its source recording.
type CandidateRow struct {
	ID           int64     `json:"id"`
	RecordingID  int64     `json:"recording_id"`
	CreatedAt    time.Time `json:"created_at"`
	CatalogID    int       `json:"catalog_id"`
	FreqOffsetHz float64   `json:"freq_offset_hz"`
	PeakTimeSec  float64   `json:"peak_time_sec"`
	SNRdB        float64   `json:"snr_db"`
	Confidence   float64   `json:"confidence"`
	Scorer       string    `json:"scorer"`
}
