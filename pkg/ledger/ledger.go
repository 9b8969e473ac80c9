package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/config"
	"mercator-hq/s3rotate/pkg/rotation"
)

// ErrClosed is returned by operations on a closed ledger.
var ErrClosed = errors.New("ledger is closed")

// Run is one recorded rotation run.
type Run struct {
	ID         string    `json:"id"`
	Family     string    `json:"family"`
	Trigger    string    `json:"trigger,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Uploaded   int       `json:"uploaded"`
	Promoted   int       `json:"promoted"`
	Deleted    int       `json:"deleted"`
	Failures   int       `json:"failures"`
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Filter narrows Runs. Zero fields match everything.
type Filter struct {
	Family string
	Status string
	Since  time.Time
	// Limit caps the number of runs returned. Default: 50
	Limit int
}

// Ledger stores run history.
type Ledger interface {
	RecordRun(ctx context.Context, rep *rotation.Report) error
	Runs(ctx context.Context, filter Filter) ([]Run, error)
	Events(ctx context.Context, runID string) ([]rotation.Event, error)
	Prune(ctx context.Context, keepRuns int) (int64, error)
	Close() error
}

// New opens the ledger described by cfg, or returns a Nop ledger when the
// ledger is disabled.
func New(cfg config.LedgerConfig) (Ledger, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	return Open(cfg)
}

// SQLite is a Ledger backed by a SQLite database.
type SQLite struct {
	db     *sql.DB
	config config.LedgerConfig
	mu     sync.RWMutex
	closed bool
	logger *slog.Logger
}

// Open opens or creates the database at cfg.Path using cfg.Driver
// ("sqlite" for modernc.org/sqlite, "sqlite3" for mattn/go-sqlite3).
func Open(cfg config.LedgerConfig) (*SQLite, error) {
	if cfg.Driver == "" {
		cfg.Driver = config.DefaultLedgerDriver
	}
	if cfg.Driver != "sqlite" && cfg.Driver != "sqlite3" {
		return nil, fmt.Errorf("unsupported ledger driver: %s", cfg.Driver)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("ledger path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = config.DefaultLedgerBusyTimeout
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between our own connections
	db.SetMaxOpenConns(1)

	l := &SQLite{
		db:     db,
		config: cfg,
		logger: slog.Default().With("component", "ledger.sqlite"),
	}
	if err := l.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	l.logger.Info("ledger opened",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"keep_runs", cfg.KeepRuns,
	)
	return l, nil
}

func (l *SQLite) initialize() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		fmt.Sprintf("PRAGMA busy_timeout=%d;", l.config.BusyTimeout.Milliseconds()),
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := l.db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if _, err := l.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := l.db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
		return fmt.Errorf("failed to insert schema version: %w", err)
	}

	var version int
	if err := l.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != SchemaVersion {
		return fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version)
	}
	return nil
}

// RecordRun stores rep and its events. Recording the same run id twice
// replaces the earlier record. When KeepRuns is positive older runs are
// pruned afterwards.
func (l *SQLite) RecordRun(ctx context.Context, rep *rotation.Report) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	if rep.RunID == "" {
		return fmt.Errorf("report has no run id")
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, insertRun,
		rep.RunID,
		rep.Family,
		rep.Trigger,
		rep.StartedAt.UnixMilli(),
		rep.FinishedAt.UnixMilli(),
		rep.Status,
		rep.Error,
		len(rep.Uploaded),
		len(rep.Copied()),
		len(rep.Deleted),
		len(rep.Skipped)+len(rep.Failures),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, deleteRunEvents, rep.RunID); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertEvent)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()

	at := rep.FinishedAt.UnixMilli()
	for _, e := range rep.Events() {
		if _, err := stmt.ExecContext(ctx, rep.RunID, rep.Family, e.Action, string(e.Tier), e.Key, e.Detail, at); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	if l.config.KeepRuns > 0 {
		if _, err := l.prune(ctx, l.config.KeepRuns); err != nil {
			l.logger.Warn("failed to prune ledger", "error", err)
		}
	}
	return nil
}

// Runs returns recorded runs, newest first.
func (l *SQLite) Runs(ctx context.Context, filter Filter) ([]Run, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrClosed
	}

	var (
		where []string
		args  []any
	)
	if filter.Family != "" {
		where = append(where, "family = ?")
		args = append(args, filter.Family)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if !filter.Since.IsZero() {
		where = append(where, "started_at >= ?")
		args = append(args, filter.Since.UnixMilli())
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, family, run_trigger, started_at, finished_at, status, error,
        uploaded, promoted, deleted, failures FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &r.Family, &r.Trigger, &started, &finished, &r.Status, &r.Error,
			&r.Uploaded, &r.Promoted, &r.Deleted, &r.Failures); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		r.FinishedAt = time.UnixMilli(finished).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Events returns the events of runID in the order they were recorded.
func (l *SQLite) Events(ctx context.Context, runID string) ([]rotation.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrClosed
	}

	rows, err := l.db.QueryContext(ctx, selectEvents, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []rotation.Event
	for rows.Next() {
		var (
			e    rotation.Event
			tier string
		)
		if err := rows.Scan(&e.Action, &tier, &e.Key, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Tier = artifact.Tier(tier)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune keeps the newest keepRuns runs and deletes the rest with their
// events. It returns the number of runs deleted.
func (l *SQLite) Prune(ctx context.Context, keepRuns int) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return 0, ErrClosed
	}
	return l.prune(ctx, keepRuns)
}

func (l *SQLite) prune(ctx context.Context, keepRuns int) (int64, error) {
	if keepRuns < 0 {
		return 0, fmt.Errorf("keep runs cannot be negative: %d", keepRuns)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, pruneEvents, keepRuns); err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	res, err := tx.ExecContext(ctx, pruneRuns, keepRuns)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}

	if deleted > 0 {
		l.logger.Debug("pruned ledger", "deleted_runs", deleted, "keep_runs", keepRuns)
	}
	return deleted, nil
}

// Ping checks that the database answers. It serves as a readiness check.
func (l *SQLite) Ping(ctx context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	return l.db.PingContext(ctx)
}

// Close closes the database. Further calls fail with ErrClosed.
func (l *SQLite) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}
