package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Status enumerates session lifecycle states.
type Status string

const (
	StatusRecording Status = "recording"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrNotFound is returned when no session row matches the given id.
var ErrNotFound = errors.New("session not found")

// Record is one row of the session history.
type Record struct {
	ID                 string
	UserID             string
	Bucket             string
	Region             string
	Status             Status
	StartedAt          time.Time
	StoppedAt          time.Time
	VideoUploaded      int
	VideoFailed        int
	AudioUploaded      int
	AudioFailed        int
	ScreenshotUploaded bool
	ErrorMessage       string
}

// Outcome carries the aggregate counts recorded when a session ends.
type Outcome struct {
	StoppedAt          time.Time
	VideoUploaded      int
	VideoFailed        int
	AudioUploaded      int
	AudioFailed        int
	ScreenshotUploaded bool
	ErrorMessage       string
}

// InsertStarted records a freshly started session.
func (s *Store) InsertStarted(ctx context.Context, rec Record) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO sessions (id, user_id, bucket, region, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Bucket, rec.Region, string(StatusRecording), rec.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", rec.ID, err)
	}
	return nil
}

// Finish transitions a session to its terminal status with aggregate counts.
func (s *Store) Finish(ctx context.Context, id string, status Status, outcome Outcome) error {
	if outcome.StoppedAt.IsZero() {
		outcome.StoppedAt = time.Now().UTC()
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE sessions
		 SET status = ?, stopped_at = ?, video_uploaded = ?, video_failed = ?,
		     audio_uploaded = ?, audio_failed = ?, screenshot_uploaded = ?, error_message = ?
		 WHERE id = ?`,
		string(status), outcome.StoppedAt.UTC().Format(time.RFC3339),
		outcome.VideoUploaded, outcome.VideoFailed,
		outcome.AudioUploaded, outcome.AudioFailed,
		boolToInt(outcome.ScreenshotUploaded), outcome.ErrorMessage,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish session %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish session %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("finish session %s: %w", id, ErrNotFound)
	}
	return nil
}

// FinishInterrupted marks a session that is still recording as failed with
// the given reason, leaving its counts at zero. Rows that already reached a
// terminal status are left untouched, so calling it after a regular Finish
// is harmless.
func (s *Store) FinishInterrupted(ctx context.Context, id, reason string) error {
	stoppedAt := time.Now().UTC().Format(time.RFC3339)
	_, err := s.execWithRetry(ctx,
		`UPDATE sessions
		 SET status = ?, stopped_at = ?, error_message = ?
		 WHERE id = ? AND status = ?`,
		string(StatusFailed), stoppedAt, reason, id, string(StatusRecording),
	)
	if err != nil {
		return fmt.Errorf("finish interrupted session %s: %w", id, err)
	}
	return nil
}

// Get returns one session row by id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return rec, nil
}

// List returns the most recent sessions, newest first. A non-positive limit
// returns every row.
func (s *Store) List(ctx context.Context, limit int) ([]*Record, error) {
	ctx = ensureContext(ctx)
	query := selectColumns + " ORDER BY started_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return records, nil
}

const selectColumns = `SELECT id, user_id, bucket, region, status, started_at, stopped_at,
	video_uploaded, video_failed, audio_uploaded, audio_failed, screenshot_uploaded, error_message
	FROM sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec        Record
		status     string
		startedAt  string
		stoppedAt  sql.NullString
		screenshot int
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.Bucket, &rec.Region, &status, &startedAt, &stoppedAt,
		&rec.VideoUploaded, &rec.VideoFailed, &rec.AudioUploaded, &rec.AudioFailed,
		&screenshot, &rec.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = Status(status)
	rec.ScreenshotUploaded = screenshot != 0
	if rec.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if stoppedAt.Valid && stoppedAt.String != "" {
		if rec.StoppedAt, err = time.Parse(time.RFC3339, stoppedAt.String); err != nil {
			return nil, fmt.Errorf("parse stopped_at: %w", err)
		}
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
