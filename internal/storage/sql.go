package storage

import (
	_ "embed"
)

const (
	insertRecordingSQL = `
INSERT INTO recordings (started_at,
                        catalog_id,
                        name,
                        center_freq,
                        sample_rate,
                        path,
                        status)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	finishRecordingSQL = `
UPDATE recordings
SET ended_at   = ?,
    status     = ?,
    size_bytes = ?
WHERE id = ?`

	selectRecordingsSQL = `
SELECT id,
       started_at,
       ended_at,
       catalog_id,
       name,
       center_freq,
       sample_rate,
       path,
       status,
       size_bytes
FROM recordings
ORDER BY started_at DESC
LIMIT ?`

	insertCandidateSQL = `
INSERT INTO candidates (recording_id,
                        created_at,
                        catalog_id,
                        freq_offset_hz,
                        peak_time_sec,
                        snr_db,
                        confidence,
                        scorer)
VALUES `

	selectCandidatesSQL = `
SELECT id,
       recording_id,
       created_at,
       catalog_id,
       freq_offset_hz,
       peak_time_sec,
       snr_db,
       confidence,
       scorer
FROM candidates
ORDER BY created_at DESC, id DESC
LIMIT ?`

	selectCandidatesForRecordingSQL = `
SELECT id,
       recording_id,
       created_at,
       catalog_id,
       freq_offset_hz,
       peak_time_sec,
       snr_db,
       confidence,
       scorer
FROM candidates
WHERE recording_id = ?
ORDER BY confidence DESC, peak_time_sec`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_recordings_started ON recordings (started_at);
CREATE INDEX IF NOT EXISTS idx_candidates_recording ON candidates (recording_id);
CREATE INDEX IF NOT EXISTS idx_candidates_created ON candidates (created_at);`
)

//go:embed schema.sql
var initSchemaSQL string
