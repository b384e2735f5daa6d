// Package renderlog persists batch outcomes (one row per batch, one per
// job) in SQLite, so generated images can be listed and audited later.
package renderlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/carrousel/batch"
	"github.com/hazyhaar/carrousel/dbopen"
)

// ErrNotFound is returned for an unknown batch id.
var ErrNotFound = errors.New("renderlog: batch not found")

// Schema is the render log schema. Idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS render_batches (
    id          TEXT PRIMARY KEY,
    started_at  INTEGER NOT NULL,
    total       INTEGER NOT NULL,
    successful  INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    pdf_url     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_render_batches_started ON render_batches(started_at DESC);

CREATE TABLE IF NOT EXISTS render_results (
    batch_id     TEXT NOT NULL REFERENCES render_batches(id) ON DELETE CASCADE,
    position     INTEGER NOT NULL,
    slide_number INTEGER NOT NULL,
    success      INTEGER NOT NULL,
    filename     TEXT NOT NULL DEFAULT '',
    url          TEXT NOT NULL DEFAULT '',
    error        TEXT NOT NULL DEFAULT '',
    duration_ms  INTEGER NOT NULL,
    PRIMARY KEY (batch_id, position)
);
`

// Store is the SQLite render log. It implements batch.Recorder.
type Store struct {
	db *sql.DB
}

var _ batch.Recorder = (*Store)(nil)

// New applies the schema on db and returns a Store.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("renderlog: DB is required")
	}
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("renderlog: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record stores r, replacing any earlier record of the same batch.
func (s *Store) Record(ctx context.Context, r *batch.Result) error {
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM render_batches WHERE id = ?`, r.BatchID); err != nil {
			return fmt.Errorf("renderlog: clear batch: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO render_batches (id, started_at, total, successful, failed, duration_ms, pdf_url)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.BatchID, r.StartedAt.UnixMilli(), r.Summary.Total, r.Summary.Successful, r.Summary.Failed,
			r.Summary.DurationMs, r.PDF); err != nil {
			return fmt.Errorf("renderlog: insert batch: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO render_results (batch_id, position, slide_number, success, filename, url, error, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("renderlog: prepare: %w", err)
		}
		defer stmt.Close()
		for i, jr := range r.Results {
			if _, err := stmt.ExecContext(ctx, r.BatchID, i, jr.SlideNumber, jr.Success,
				jr.Filename, jr.URL, jr.Error, jr.DurationMs); err != nil {
				return fmt.Errorf("renderlog: insert result %d: %w", i, err)
			}
		}
		return nil
	})
}

// Batch returns the stored result of batch id.
func (s *Store) Batch(ctx context.Context, id string) (*batch.Result, error) {
	var (
		r       batch.Result
		started int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, total, successful, failed, duration_ms, pdf_url FROM render_batches WHERE id = ?`, id).
		Scan(&r.BatchID, &started, &r.Summary.Total, &r.Summary.Successful, &r.Summary.Failed, &r.Summary.DurationMs, &r.PDF)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("renderlog: get batch: %w", err)
	}
	r.StartedAt = time.UnixMilli(started).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT position, slide_number, success, filename, url, error, duration_ms
		 FROM render_results WHERE batch_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("renderlog: list results: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var jr batch.JobResult
		if err := rows.Scan(&jr.Index, &jr.SlideNumber, &jr.Success, &jr.Filename, &jr.URL, &jr.Error, &jr.DurationMs); err != nil {
			return nil, fmt.Errorf("renderlog: scan result: %w", err)
		}
		r.Results = append(r.Results, jr)
	}
	return &r, rows.Err()
}

// Recent returns the summaries of the latest batches, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]batch.Result, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, total, successful, failed, duration_ms, pdf_url
		 FROM render_batches ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("renderlog: recent: %w", err)
	}
	defer rows.Close()

	var out []batch.Result
	for rows.Next() {
		var (
			r       batch.Result
			started int64
		)
		if err := rows.Scan(&r.BatchID, &started, &r.Summary.Total, &r.Summary.Successful,
			&r.Summary.Failed, &r.Summary.DurationMs, &r.PDF); err != nil {
			return nil, fmt.Errorf("renderlog: scan batch: %w", err)
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// DB returns the underlying database, shared with Metrics.
func (s *Store) DB() *sql.DB { return s.db }
