// Package storage persists recordings and detection candidates in a local
// SQLite database. Writes go through a single WAL-mode connection and reads
// through a separate read-only connection, so long queries from the control
// plane never block the capture pipeline.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Store handles database operations. The zero connections are opened lazily
// on first use.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a store backed by the SQLite database at dbPath. The schema is
// initialized on the first write.
func New(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		// Force schema creation before the read-only connection opens, or a
		// fresh database file cannot be attached read-only.
		if _, err := s.getWriteDB(); err != nil {
			s.readDBErr = err
			return
		}

		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// CreateRecording inserts a recording row in the "recording" state and
// returns its ID.
func (s *Store) CreateRecording(ctx context.Context, rec *Recording) (id int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertRecordingSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx,
		rec.StartedAt.UTC(),
		rec.CatalogID,
		rec.Name,
		rec.CenterFreq,
		rec.SampleRate,
		rec.Path,
		StatusRecording,
	)
	if err != nil {
		err = fmt.Errorf("inserting recording: %w", err)
		return
	}

	id, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting recording ID: %w", err)
	}
	return
}

// FinishRecording marks a recording complete or failed and records its final
// size.
func (s *Store) FinishRecording(ctx context.Context, rec *Recording) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	var ended sql.NullTime
	if rec.EndedAt != nil {
		ended.Time = rec.EndedAt.UTC()
		ended.Valid = true
	}
	var size sql.NullInt64
	if rec.SizeBytes != nil {
		size.Int64 = *rec.SizeBytes
		size.Valid = true
	}

	if _, err = db.ExecContext(ctx, finishRecordingSQL, ended, rec.Status, size, rec.ID); err != nil {
		return fmt.Errorf("updating recording: %w", err)
	}
	return nil
}

// Recordings returns up to limit recordings, newest first.
func (s *Store) Recordings(ctx context.Context, limit int) (recs []*Recording, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectRecordingsSQL, limit)
	if err != nil {
		err = fmt.Errorf("querying recordings: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var rec Recording
		var ended sql.NullTime
		var size sql.NullInt64
		if err = rows.Scan(&rec.ID, &rec.StartedAt, &ended, &rec.CatalogID, &rec.Name,
			&rec.CenterFreq, &rec.SampleRate, &rec.Path, &rec.Status, &size); err != nil {
			err = fmt.Errorf("scanning recording: %w", err)
			return
		}
		if ended.Valid {
			t := ended.Time
			rec.EndedAt = &t
		}
		if size.Valid {
			n := size.Int64
			rec.SizeBytes = &n
		}
		recs = append(recs, &rec)
	}
	err = rows.Err()
	return
}

// StoreCandidates batch-inserts all candidates from one detection run in a
// single transaction.
func (s *Store) StoreCandidates(ctx context.Context, cands []*CandidateRow) (err error) {
	if len(cands) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	values := make([]interface{}, 0, len(cands)*8)

	var sb strings.Builder
	sb.WriteString(insertCandidateSQL)

	for i, c := range cands {
		values = append(values,
			c.RecordingID,
			c.CreatedAt.UTC(),
			c.CatalogID,
			c.FreqOffsetHz,
			c.PeakTimeSec,
			c.SNRdB,
			c.Confidence,
			c.Scorer,
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
	}

	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting candidates: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Candidates returns up to limit candidates, newest first.
func (s *Store) Candidates(ctx context.Context, limit int) ([]*CandidateRow, error) {
	return s.queryCandidates(ctx, selectCandidatesSQL, limit)
}

// CandidatesForRecording returns all candidates found in one recording,
// strongest first.
func (s *Store) CandidatesForRecording(ctx context.Context, recordingID int64) ([]*CandidateRow, error) {
	return s.queryCandidates(ctx, selectCandidatesForRecordingSQL, recordingID)
}

func (s *Store) queryCandidates(ctx context.Context, query string, arg any) (cands []*CandidateRow, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, query, arg)
	if err != nil {
		err = fmt.Errorf("querying candidates: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var c CandidateRow
		if err = rows.Scan(&c.ID, &c.RecordingID, &c.CreatedAt, &c.CatalogID,
			&c.FreqOffsetHz, &c.PeakTimeSec, &c.SNRdB, &c.Confidence, &c.Scorer); err != nil {
			err = fmt.Errorf("scanning candidate: %w", err)
			return
		}
		cands = append(cands, &c)
	}
	err = rows.Err()
	return
}

// Close builds the deferred indexes and releases both connections. It is
// safe to call multiple times.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && *err == nil && !errors.Is(cErr, sql.ErrTxDone) {
		*err = cErr
	}
}
