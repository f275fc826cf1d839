// Package store keeps the publish history: one row per batch run and one row
// per identifier outcome.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome statuses as recorded in the drafts table.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

var errNotInitialized = errors.New("store is not initialized")

type Store struct {
	db *sql.DB
}

// Run is one batch invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
}

// DraftInput is one identifier outcome to record.
type DraftInput struct {
	RunID          string
	Identifier     string
	Title          string
	SourceURL      string
	MediaID        string
	Status         string
	Stage          string
	Error          string
	Content        string // adapted HTML; only its hash is stored
	ImagesTotal    int
	ImagesRehosted int
	RecordedAt     time.Time
}

// DraftRecord is a stored outcome.
type DraftRecord struct {
	ID             int64
	RunID          string
	Identifier     string
	Title          string
	SourceURL      string
	MediaID        string
	Status         string
	Stage          string
	Error          string
	ContentHash    string
	ImagesTotal    int
	ImagesRehosted int
	RecordedAt     time.Time
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// foreign_keys is per connection; a single connection keeps cascades on.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun registers a batch run before any outcome is recorded against it.
func (s *Store) BeginRun(ctx context.Context, id string, startedAt time.Time) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}
	if strings.TrimSpace(id) == "" {
		return errors.New("run id is required")
	}
	if startedAt.IsZero() {
		return errors.New("started_at is required")
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs(id, started_at) VALUES(?, ?)", id, formatTime(startedAt))
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun stamps the end time of a run.
func (s *Store) FinishRun(ctx context.Context, id string, finishedAt time.Time) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ? WHERE id = ?", formatTime(finishedAt), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: unknown run %q", id)
	}
	return nil
}

// RecordDraft stores one identifier outcome.
func (s *Store) RecordDraft(ctx context.Context, in DraftInput) (DraftRecord, error) {
	if s == nil || s.db == nil {
		return DraftRecord{}, errNotInitialized
	}

	if strings.TrimSpace(in.RunID) == "" {
		return DraftRecord{}, errors.New("run_id is required")
	}
	if strings.TrimSpace(in.Identifier) == "" {
		return DraftRecord{}, errors.New("identifier is required")
	}
	switch in.Status {
	case StatusSuccess, StatusFailed, StatusSkipped:
	default:
		return DraftRecord{}, fmt.Errorf("invalid status %q", in.Status)
	}
	if in.Status == StatusSuccess && strings.TrimSpace(in.MediaID) == "" {
		return DraftRecord{}, errors.New("media_id is required for a successful draft")
	}
	if in.RecordedAt.IsZero() {
		return DraftRecord{}, errors.New("recorded_at is required")
	}

	var hash string
	if in.Content != "" {
		hash = ContentHash(in.Content)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (
			run_id, identifier, title, source_url, media_id, status, stage, error,
			content_hash, images_total, images_rehosted, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		in.RunID,
		in.Identifier,
		nullString(in.Title),
		nullString(in.SourceURL),
		nullString(in.MediaID),
		in.Status,
		nullString(in.Stage),
		nullString(in.Error),
		nullString(hash),
		in.ImagesTotal,
		in.ImagesRehosted,
		formatTime(in.RecordedAt),
	)
	if err != nil {
		return DraftRecord{}, fmt.Errorf("record draft: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return DraftRecord{}, fmt.Errorf("record draft id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id)
	return scanDraft(row)
}

// LastPublished returns the most recent successful draft for identifier.
// The boolean is false when the identifier was never published.
func (s *Store) LastPublished(ctx context.Context, identifier string) (DraftRecord, bool, error) {
	if s == nil || s.db == nil {
		return DraftRecord{}, false, errNotInitialized
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+draftColumns+`
		FROM drafts
		WHERE identifier = ? AND status = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1
	`, identifier, StatusSuccess)

	rec, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return DraftRecord{}, false, nil
	}
	if err != nil {
		return DraftRecord{}, false, err
	}
	return rec, true, nil
}

// HistoryFilter holds optional filters for History.
type HistoryFilter struct {
	Identifier string
	Status     string
	Limit      int
}

// History returns recorded outcomes, newest first.
func (s *Store) History(ctx context.Context, filter HistoryFilter) ([]DraftRecord, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}

	query := `SELECT ` + draftColumns + ` FROM drafts WHERE 1 = 1`
	var args []any
	if filter.Identifier != "" {
		query += " AND identifier = ?"
		args = append(args, filter.Identifier)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY recorded_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []DraftRecord
	for rows.Next() {
		rec, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return records, nil
}

// RunStats holds aggregated outcomes for one run.
type RunStats struct {
	Run
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
}

// GetRunStats returns per-run aggregates for runs started since the given time,
// newest first.
func (s *Store) GetRunStats(ctx context.Context, since time.Time, limit int) ([]RunStats, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}

	query := `
		SELECT r.id, r.started_at, r.finished_at,
			COUNT(d.id) AS total,
			COALESCE(SUM(CASE WHEN d.status = 'success' THEN 1 ELSE 0 END), 0) AS succeeded,
			COALESCE(SUM(CASE WHEN d.status = 'failed' THEN 1 ELSE 0 END), 0) AS failed,
			COALESCE(SUM(CASE WHEN d.status = 'skipped' THEN 1 ELSE 0 END), 0) AS skipped
		FROM runs r
		LEFT JOIN drafts d ON d.run_id = r.id
		WHERE r.started_at >= ?
		GROUP BY r.id, r.started_at, r.finished_at
		ORDER BY r.started_at DESC`
	args := []any{formatTime(since)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get run stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []RunStats
	for rows.Next() {
		var (
			rs         RunStats
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&rs.ID, &startedAt, &finishedAt, &rs.Total, &rs.Succeeded, &rs.Failed, &rs.Skipped); err != nil {
			return nil, fmt.Errorf("scan run stats: %w", err)
		}
		if rs.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if finishedAt.Valid {
			if rs.FinishedAt, err = parseTime(finishedAt.String); err != nil {
				return nil, fmt.Errorf("parse finished_at: %w", err)
			}
		}
		stats = append(stats, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run stats: %w", err)
	}

	return stats, nil
}

// PruneOld deletes runs started more than retainDays ago. Their draft rows
// cascade. Returns the number of runs removed.
func (s *Store) PruneOld(ctx context.Context, retainDays int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errNotInitialized
	}
	if retainDays <= 0 {
		return 0, nil
	}

	cutoff := formatTime(time.Now().AddDate(0, 0, -retainDays))

	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune old runs: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}

const draftColumns = `id, run_id, identifier, title, source_url, media_id, status, stage, error,
	content_hash, images_total, images_rehosted, recorded_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(scanner rowScanner) (DraftRecord, error) {
	var (
		rec                       DraftRecord
		title, sourceURL, mediaID sql.NullString
		stage, errText, hash      sql.NullString
		recordedAt                string
	)

	if err := scanner.Scan(
		&rec.ID,
		&rec.RunID,
		&rec.Identifier,
		&title,
		&sourceURL,
		&mediaID,
		&rec.Status,
		&stage,
		&errText,
		&hash,
		&rec.ImagesTotal,
		&rec.ImagesRehosted,
		&recordedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DraftRecord{}, err
		}
		return DraftRecord{}, fmt.Errorf("scan draft: %w", err)
	}

	rec.Title = title.String
	rec.SourceURL = sourceURL.String
	rec.MediaID = mediaID.String
	rec.Stage = stage.String
	rec.Error = errText.String
	rec.ContentHash = hash.String

	var err error
	rec.RecordedAt, err = parseTime(recordedAt)
	if err != nil {
		return DraftRecord{}, fmt.Errorf("parse recorded_at: %w", err)
	}

	return rec, nil
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return time.Time{}.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}

// ContentHash is the digest recorded for adapted article content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
