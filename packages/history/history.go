// Package history records hitchain runs in a SQLite database so earlier
// results can be listed with the history command.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

//go:embed schema.sql
var schemaSQL string

// Run statuses.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
	StatusError  = "error"
)

// DefaultLimit is how many runs Recent returns when asked for none
const DefaultLimit = 20

type Run struct {
	ID          string
	File        string
	StartedAt   time.Time
	Duration    time.Duration
	Total       int
	Executed    int
	Passed      int
	Status      string
	FailedIndex *int
	Error       string
	P50         time.Duration
	P95         time.Duration
	P99         time.Duration
}

type TestRecord struct {
	Index    int
	Name     string
	State    string
	Expected int
	Actual   int
	Duration time.Duration
	Error    string
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. Both plain paths and the
// sqlite:// and sqlite: forms are accepted.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := parsePath(path)
	if dsn == "" {
		return nil, fmt.Errorf("empty history database path")
	}

	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	return &Store{db: db}, nil
}

func parsePath(path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "sqlite://") {
		return strings.TrimPrefix(path, "sqlite://")
	}
	if strings.HasPrefix(path, "sqlite:") {
		return strings.TrimPrefix(path, "sqlite:")
	}
	return path
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StatusOf classifies a run outcome.
func StatusOf(res *runner.RunResult, runErr error) string {
	switch {
	case runErr != nil:
		return StatusError
	case res.Failure != nil:
		return StatusFailed
	default:
		return StatusPassed
	}
}

// Record stores a run and the results of its executed tests.
func (s *Store) Record(ctx context.Context, res *runner.RunResult, runErr error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var failedIndex any
	if res.Failure != nil {
		failedIndex = res.Failure.Index
	}
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, file, started_at, duration_ms, total, executed, passed, status, failed_index, error, p50_us, p95_us, p99_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID.String(), res.File, res.StartedAt.UnixMilli(), res.Duration.Milliseconds(),
		res.Total, res.Executed(), res.Passed, StatusOf(res, runErr), failedIndex, errText,
		res.Latency.P50.Microseconds(), res.Latency.P95.Microseconds(), res.Latency.P99.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, tr := range res.Results {
		testErr := ""
		if tr.Error != nil {
			testErr = tr.Error.Error()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO test_results (run_id, idx, name, state, expected, actual, duration_us, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			res.ID.String(), tr.Index, tr.Name, tr.State.String(), tr.Expected, tr.Actual,
			tr.Duration.Microseconds(), testErr,
		)
		if err != nil {
			return fmt.Errorf("failed to insert test result %d: %w", tr.Index, err)
		}
	}

	return tx.Commit()
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file, started_at, duration_ms, total, executed, passed, status, failed_index, error, p50_us, p95_us, p99_us
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			r                     Run
			startedAt, durationMs int64
			failedIndex           sql.NullInt64
			p50Us, p95Us, p99Us   int64
		)
		if err := rows.Scan(&r.ID, &r.File, &startedAt, &durationMs, &r.Total, &r.Executed, &r.Passed,
			&r.Status, &failedIndex, &r.Error, &p50Us, &p95Us, &p99Us); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedAt)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		if failedIndex.Valid {
			idx := int(failedIndex.Int64)
			r.FailedIndex = &idx
		}
		r.P50 = time.Duration(p50Us) * time.Microsecond
		r.P95 = time.Duration(p95Us) * time.Microsecond
		r.P99 = time.Duration(p99Us) * time.Microsecond
		runs = append(runs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// Tests returns the recorded test results of a run in execution order.
func (s *Store) Tests(ctx context.Context, runID string) ([]*TestRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, name, state, expected, actual, duration_us, error
		FROM test_results
		WHERE run_id = ?
		ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var records []*TestRecord
	for rows.Next() {
		var (
			t          TestRecord
			durationUs int64
		)
		if err := rows.Scan(&t.Index, &t.Name, &t.State, &t.Expected, &t.Actual, &durationUs, &t.Error); err != nil {
			return nil, fmt.Errorf("failed to scan test result: %w", err)
		}
		t.Duration = time.Duration(durationUs) * time.Microsecond
		records = append(records, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}
