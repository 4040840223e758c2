package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/procexpect/internal/fileutil"
	"github.com/giantswarm/procexpect/internal/sentinel"

	// Register the pure-Go SQLite driver (no CGO required).
	_ "modernc.org/sqlite"
)

// ErrEmptyPath is returned by Open for an empty database path.
const ErrEmptyPath = sentinel.Error("history database path must not be empty")

// Run is one recorded bcctest run.
type Run struct {
	ID        uuid.UUID
	StartedAt time.Time
	Duration  time.Duration
	OK        bool
	Fault     string
	// Rows is the number of result lines compared; 0 when the run failed
	// before the comparison.
	Rows int
	// Detail is the failure reason, empty for successful runs.
	Detail string
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	ok          INTEGER NOT NULL,
	fault       TEXT NOT NULL,
	rows        INTEGER NOT NULL,
	detail      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);
`

// Store is an open history database.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if needed) the history database at path and makes
// sure its schema exists.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := fileutil.EnsureDirForFile(path); err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: logger}
	if err := s.EnsureSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warn("history: close sqlite", "error", closeErr)
		}
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the runs table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// Record stores r. A zero ID is replaced by a fresh random one, which is
// returned.
func (s *Store) Record(ctx context.Context, r Run) (uuid.UUID, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.StartedAt.IsZero() {
		return uuid.Nil, errors.New("record run: start time must be set")
	}

	const stmt = `INSERT INTO runs (id, started_at, duration_ns, ok, fault, rows, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, stmt,
		r.ID.String(), r.StartedAt.UnixNano(), int64(r.Duration), r.OK, r.Fault, r.Rows, r.Detail,
	); err != nil {
		return uuid.Nil, fmt.Errorf("record run %s: %w", r.ID, err)
	}
	s.log.Debug("run recorded", "id", r.ID, "ok", r.OK)
	return r.ID, nil
}

// Recent returns up to n runs, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		return nil, nil
	}

	const query = `SELECT id, started_at, duration_ns, ok, fault, rows, detail
		FROM runs ORDER BY started_at DESC, id LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck // rows.Err() below catches read errors; Close error is redundant

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			id         string
			startedAt  int64
			durationNS int64
		)
		if err := rows.Scan(&id, &startedAt, &durationNS, &r.OK, &r.Fault, &r.Rows, &r.Detail); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse run id %q: %w", id, err)
		}
		r.StartedAt = time.Unix(0, startedAt)
		r.Duration = time.Duration(durationNS)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close history: %w", err)
	}
	return nil
}
