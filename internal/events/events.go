// Package events defines the typed event structs that flow over the
// WebSocket connection between satwatchd and its clients. Every event
// carries the shared envelope with its type tag and timestamp.
package events

import "time"

// Type identifies the kind of WebSocket event.
type Type string

const (
	TypeHeartbeat Type = "heartbeat"
	TypeState     Type = "state"
	TypeProgress  Type = "progress"
	TypeLog       Type = "log"
	TypePass      Type = "pass"
	TypeCandidate Type = "candidate"
)

// Envelope is the base shared by every event type.
type Envelope struct {
	Type Type   `json:"type"`
	TS   string `json:"ts"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching
// the timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func envelope(t Type) Envelope {
	return Envelope{Type: t, TS: NowTS()}
}

// Publisher fans events out to connected clients. Implementations must not
// block the caller.
type Publisher interface {
	Publish(v any)
}

// Nop is a Publisher that drops every event. Useful in tests and in tools
// that run the pipeline without a control plane.
type Nop struct{}

func (Nop) Publish(any) {}

// Heartbeat is sent periodically so clients can detect connectivity and
// monitor daemon uptime.
type Heartbeat struct {
	Envelope
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func NewHeartbeat(state string, uptime time.Duration) Heartbeat {
	return Heartbeat{
		Envelope:      envelope(TypeHeartbeat),
		State:         state,
		UptimeSeconds: int64(uptime.Seconds()),
	}
}

// StateTransition is emitted whenever the daemon moves between operating
// states (e.g. IDLE -> WAITING).
type StateTransition struct {
	Envelope
	From string `json:"from"`
	To   string `json:"to"`
}

func NewStateTransition(from, to string) StateTransition {
	return StateTransition{Envelope: envelope(TypeState), From: from, To: to}
}

// Progress reports incremental completion of a long-running phase like
// recording or processing.
type Progress struct {
	Envelope
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Detail  string  `json:"detail"`
}

func NewProgress(stage string, percent float64, detail string) Progress {
	return Progress{Envelope: envelope(TypeProgress), Stage: stage, Percent: percent, Detail: detail}
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Envelope
	Level   string `json:"level"`
	Message string `json:"message"`
}

func NewLogLine(level, message string) LogLine {
	return LogLine{Envelope: envelope(TypeLog), Level: level, Message: message}
}

// PassScheduled announces the next pass the scheduler is waiting for.
type PassScheduled struct {
	Envelope
	CatalogID     int       `json:"catalog_id"`
	Name          string    `json:"name"`
	Rise          time.Time `json:"rise"`
	Set           time.Time `json:"set"`
	PeakElevation float64   `json:"peak_elevation_deg"`
}

func NewPassScheduled(catalogID int, name string, rise, set time.Time, peakElev float64) PassScheduled {
	return PassScheduled{
		Envelope:      envelope(TypePass),
		CatalogID:     catalogID,
		Name:          name,
		Rise:          rise,
		Set:           set,
		PeakElevation: peakElev,
	}
}

// CandidateFound announces one detection from a processed recording.
type CandidateFound struct {
	Envelope
	CatalogID    int     `json:"catalog_id"`
	FreqOffsetHz float64 `json:"freq_offset_hz"`
	SNRdB        float64 `json:"snr_db"`
	Confidence   float64 `json:"confidence"`
	Recording    string  `json:"recording"`
}

func NewCandidateFound(catalogID int, freqOffsetHz, snrDB, confidence float64, recording string) CandidateFound {
	return CandidateFound{
		Envelope:     envelope(TypeCandidate),
		CatalogID:    catalogID,
		FreqOffsetHz: freqOffsetHz,
		SNRdB:        snrDB,
		Confidence:   confidence,
		Recording:    recording,
	}
}
