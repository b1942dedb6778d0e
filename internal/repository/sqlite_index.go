package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iconidentify/vidgrab/internal/domain"
)

// SQLiteIndex implements ArtifactIndex on a SQLite database file.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex opens (and if needed creates) the index database at path.
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
		CREATE TABLE IF NOT EXISTS artifacts (
			job_id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			title TEXT,
			source_url TEXT,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_artifacts_created_at ON artifacts(created_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteIndex{db: db}, nil
}

func (s *SQLiteIndex) Put(ctx context.Context, a domain.Artifact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (job_id, filename, size, title, source_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			filename = excluded.filename,
			size = excluded.size,
			title = excluded.title,
			source_url = excluded.source_url,
			created_at = excluded.created_at
	`, string(a.JobID), a.Filename, a.Size, a.Title, a.SourceURL, a.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Get(ctx context.Context, id domain.JobID) (*domain.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, filename, size, title, source_url, created_at
		FROM artifacts WHERE job_id = ?
	`, string(id))

	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return a, nil
}

func (s *SQLiteIndex) Delete(ctx context.Context, id domain.JobID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM artifacts WHERE job_id = ?", string(id)); err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) List(ctx context.Context) ([]domain.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, filename, size, title, source_url, created_at
		FROM artifacts ORDER BY created_at DESC, job_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Artifact, 0)
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(r rowScanner) (*domain.Artifact, error) {
	var (
		a         domain.Artifact
		jobID     string
		title     sql.NullString
		sourceURL sql.NullString
		created   int64
	)
	if err := r.Scan(&jobID, &a.Filename, &a.Size, &title, &sourceURL, &created); err != nil {
		return nil, err
	}
	a.JobID = domain.JobID(jobID)
	a.Title = title.String
	a.SourceURL = sourceURL.String
	a.CreatedAt = time.Unix(0, created)
	return &a, nil
}
