// Package archive appends finished runs to a DuckDB database file.
//
// Schema:
//
//	runs(id, host, started_at, finished_at, samples)
//	samples(run_id, ts, metric, value)
//
// The archive is write-mostly; Runs and Summary exist for inspection and
// tests.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/xtxerr/perfstat/internal/aggregate"
	"github.com/xtxerr/perfstat/internal/logging"
	"github.com/xtxerr/perfstat/internal/report"
	"github.com/xtxerr/perfstat/internal/sample"
)

var log = logging.Component("archive")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          BIGINT PRIMARY KEY,
	host        VARCHAR,
	started_at  TIMESTAMP,
	finished_at TIMESTAMP,
	samples     BIGINT
);
CREATE TABLE IF NOT EXISTS samples (
	run_id BIGINT,
	ts     TIMESTAMP,
	metric VARCHAR,
	value  DOUBLE
);`

// Run describes one archived run.
type Run struct {
	ID         int64
	Host       string
	StartedAt  time.Time
	FinishedAt time.Time
	Samples    int64
}

// Archive is an open DuckDB archive.
type Archive struct {
	mu   sync.Mutex
	path string
	db   *sql.DB
}

// Open opens or creates the archive at path. An empty path opens an
// in-memory database.
func Open(ctx context.Context, path string) (*Archive, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Archive{path: path, db: db}, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Store appends series as a new run and returns its id.
func (a *Archive) Store(ctx context.Context, host string, series *sample.Series) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var id int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) + 1 FROM runs").Scan(&id); err != nil {
		return 0, fmt.Errorf("next run id: %w", err)
	}

	var started, finished time.Time
	if !series.IsEmpty() {
		started, finished = series.At(0).Time, series.Last().Time
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (id, host, started_at, finished_at, samples) VALUES (?, ?, ?, ?, ?)",
		id, host, started, finished, series.Len()); err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO samples (run_id, ts, metric, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, smp := range series.Samples() {
		for _, k := range smp.Keys() {
			if _, err := stmt.ExecContext(ctx, id, smp.Time, k, smp.Values[k]); err != nil {
				return 0, fmt.Errorf("insert sample: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Runs lists archived runs, oldest first.
func (a *Archive) Runs(ctx context.Context) ([]Run, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT id, host, started_at, finished_at, samples FROM runs ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Host, &r.StartedAt, &r.FinishedAt, &r.Samples); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Summary computes the per-metric total, count and average of one run.
func (a *Archive) Summary(ctx context.Context, runID int64) ([]aggregate.SummaryRow, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT metric, SUM(value), COUNT(*), AVG(value),
		       epoch_ms(MIN(ts)), epoch_ms(MAX(ts))
		FROM samples
		WHERE run_id = ?
		GROUP BY metric
		ORDER BY metric`, runID)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var out []aggregate.SummaryRow
	for rows.Next() {
		var r aggregate.SummaryRow
		if err := rows.Scan(&r.Metric, &r.Total, &r.Count, &r.Average, &r.FirstTs, &r.LastTs); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// Sink
// =============================================================================

// Sink stores every published report as a run.
type Sink struct {
	Path string
	Host string
}

// NewSink creates a sink for the archive at path.
func NewSink(path, host string) *Sink {
	return &Sink{Path: path, Host: host}
}

// Name implements report.Sink.
func (s *Sink) Name() string {
	return "archive:" + s.Path
}

// Publish implements report.Sink.
func (s *Sink) Publish(ctx context.Context, r *report.Report) error {
	a, err := Open(ctx, s.Path)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.Store(ctx, s.Host, r.Series)
	if err != nil {
		return err
	}
	log.Info("run archived", "path", s.Path, "run", id, "samples", r.Series.Len())
	return nil
}
