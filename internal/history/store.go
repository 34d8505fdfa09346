package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one finished fetch run.
type Run struct {
	JobID            string          `json:"jobId"`
	Status           string          `json:"status"`
	StartedAt        time.Time       `json:"startedAt"`
	FinishedAt       time.Time       `json:"finishedAt"`
	Total            int             `json:"total"`
	Processed        int             `json:"processed"`
	Updated          int             `json:"updated"`
	ImagesDownloaded int             `json:"imagesDownloaded"`
	Errors           []string        `json:"errors"`
	Error            string          `json:"error,omitempty"`
	Options          json.RawMessage `json:"options,omitempty"`
}

// Duration returns the wall time of the run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists runs in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history database path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Record inserts or replaces a run.
func (s *Store) Record(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.JobID) == "" {
		return errors.New("run job id required")
	}
	errorsJSON, err := json.Marshal(nonNil(run.Errors))
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (
            job_id, status, started_at, finished_at, total, processed, updated,
            images_downloaded, error_count, error_message, errors_json, options_json
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.JobID,
		run.Status,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Total,
		run.Processed,
		run.Updated,
		run.ImagesDownloaded,
		len(run.Errors),
		nullableString(run.Error),
		string(errorsJSON),
		nullableString(string(run.Options)),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Get returns the run with the given job id, or nil when unknown.
func (s *Store) Get(ctx context.Context, jobID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE job_id = ?", jobID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

const selectColumns = `SELECT job_id, status, started_at, finished_at, total, processed, updated,
    images_downloaded, error_message, errors_json, options_json FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run                   Run
		startedAt, finishedAt string
		errorMessage          sql.NullString
		errorsJSON            sql.NullString
		optionsJSON           sql.NullString
	)
	if err := row.Scan(
		&run.JobID,
		&run.Status,
		&startedAt,
		&finishedAt,
		&run.Total,
		&run.Processed,
		&run.Updated,
		&run.ImagesDownloaded,
		&errorMessage,
		&errorsJSON,
		&optionsJSON,
	); err != nil {
		return nil, err
	}
	run.StartedAt = parseTime(startedAt)
	run.FinishedAt = parseTime(finishedAt)
	run.Error = errorMessage.String
	run.Errors = []string{}
	if errorsJSON.Valid && errorsJSON.String != "" {
		if err := json.Unmarshal([]byte(errorsJSON.String), &run.Errors); err != nil {
			return nil, fmt.Errorf("decode errors for %s: %w", run.JobID, err)
		}
	}
	if optionsJSON.Valid && optionsJSON.String != "" {
		run.Options = json.RawMessage(optionsJSON.String)
	}
	return &run, nil
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
