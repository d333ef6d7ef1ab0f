package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "satwatch.db"))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestRecordingLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	start := time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)
	id, err := s.CreateRecording(ctx, &Recording{
		StartedAt:  start,
		CatalogID:  25544,
		Name:       "ISS (ZARYA)",
		CenterFreq: 437800000,
		SampleRate: 2400000,
		Path:       "25544_20250214T120000.iq",
	})
	if err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}
	if id == 0 {
		t.Fatal("got zero recording ID")
	}

	end := start.Add(8 * time.Minute)
	size := int64(2_304_000_000)
	err = s.FinishRecording(ctx, &Recording{
		ID:        id,
		EndedAt:   &end,
		Status:    StatusComplete,
		SizeBytes: &size,
	})
	if err != nil {
		t.Fatalf("FinishRecording: %v", err)
	}

	recs, err := s.Recordings(ctx, 10)
	if err != nil {
		t.Fatalf("Recordings: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d recordings, want 1", len(recs))
	}
	rec := recs[0]
	if rec.ID != id || rec.CatalogID != 25544 || rec.Status != StatusComplete {
		t.Errorf("recording = %+v", rec)
	}
	if rec.EndedAt == nil || !rec.EndedAt.Equal(end) {
		t.Errorf("ended_at = %v, want %v", rec.EndedAt, end)
	}
	if rec.SizeBytes == nil || *rec.SizeBytes != size {
		t.Errorf("size_bytes = %v, want %d", rec.SizeBytes, size)
	}
}

func TestRecordingsNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.CreateRecording(ctx, &Recording{
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			CatalogID:  25544 + i,
			Name:       "SAT",
			CenterFreq: 437000000,
			SampleRate: 2400000,
			Path:       "x.iq",
		})
		if err != nil {
			t.Fatalf("CreateRecording: %v", err)
		}
	}

	recs, err := s.Recordings(ctx, 2)
	if err != nil {
		t.Fatalf("Recordings: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("limit ignored: got %d recordings", len(recs))
	}
	if !recs[0].StartedAt.After(recs[1].StartedAt) {
		t.Errorf("not newest first: %v then %v", recs[0].StartedAt, recs[1].StartedAt)
	}
}

func TestStoreCandidates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	recID, err := s.CreateRecording(ctx, &Recording{
		StartedAt:  time.Now().UTC(),
		CatalogID:  25544,
		Name:       "ISS (ZARYA)",
		CenterFreq: 437800000,
		SampleRate: 2400000,
		Path:       "x.iq",
	})
	if err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	batch := []*CandidateRow{
		{RecordingID: recID, CreatedAt: now, CatalogID: 25544, FreqOffsetHz: -12500, PeakTimeSec: 42.5, SNRdB: 11.2, Confidence: 1.0, Scorer: "threshold"},
		{RecordingID: recID, CreatedAt: now, CatalogID: 25544, FreqOffsetHz: 3100, PeakTimeSec: 80.1, SNRdB: 7.9, Confidence: 0.83, Scorer: "classifier"},
	}
	if err := s.StoreCandidates(ctx, batch); err != nil {
		t.Fatalf("StoreCandidates: %v", err)
	}

	// Empty batch is a no-op, not an error.
	if err := s.StoreCandidates(ctx, nil); err != nil {
		t.Fatalf("empty StoreCandidates: %v", err)
	}

	got, err := s.CandidatesForRecording(ctx, recID)
	if err != nil {
		t.Fatalf("CandidatesForRecording: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].Confidence < got[1].Confidence {
		t.Error("candidates not ordered by descending confidence")
	}
	if got[0].FreqOffsetHz != -12500 || got[0].Scorer != "threshold" {
		t.Errorf("candidate = %+v", got[0])
	}

	all, err := s.Candidates(ctx, 10)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d candidates, want 2", len(all))
	}
}

func TestReadOnFreshDatabase(t *testing.T) {
	s := testStore(t)

	// Reads before any write must still see the initialized schema.
	recs, err := s.Recordings(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recordings on fresh database: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("fresh database holds %d recordings", len(recs))
	}
}
