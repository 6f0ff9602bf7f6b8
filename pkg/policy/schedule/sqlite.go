package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const countersSchema = `
CREATE TABLE IF NOT EXISTS schedule_counters (
    policy_id  TEXT PRIMARY KEY,
    executions INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL
);
`

// SQLiteCounters is a CounterStore backed by SQLite, so max_executions
// caps hold across engine restarts.
type SQLiteCounters struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteCounters opens (or creates) the counter table on the given
// database file and returns the store.
func NewSQLiteCounters(path string) (*SQLiteCounters, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening counter database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec(countersSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating counter schema: %w", err)
	}

	logger := slog.Default().With("component", "schedule.counters")
	logger.Info("execution counter store initialized", "path", path)
	return &SQLiteCounters{db: db, logger: logger}, nil
}

// NewSQLiteCountersFromDB wraps an existing database handle (shared with
// other sqlite-backed stores on the same file).
func NewSQLiteCountersFromDB(db *sql.DB) (*SQLiteCounters, error) {
	if _, err := db.Exec(countersSchema); err != nil {
		return nil, fmt.Errorf("creating counter schema: %w", err)
	}
	return &SQLiteCounters{
		db:     db,
		logger: slog.Default().With("component", "schedule.counters"),
	}, nil
}

// Get returns the current execution count for a policy.
func (s *SQLiteCounters) Get(ctx context.Context, policyID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT executions FROM schedule_counters WHERE policy_id = ?", policyID,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading counter for %s: %w", policyID, err)
	}
	return count, nil
}

// Increment adds one execution and returns the new count.
func (s *SQLiteCounters) Increment(ctx context.Context, policyID string) (int, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule_counters (policy_id, executions, updated_at)
		VALUES (?, 1, ?)
		ON CONFLICT(policy_id) DO UPDATE SET
			executions = executions + 1,
			updated_at = excluded.updated_at
	`, policyID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("incrementing counter for %s: %w", policyID, err)
	}
	return s.Get(ctx, policyID)
}

// Reset clears the counter for a policy.
func (s *SQLiteCounters) Reset(ctx context.Context, policyID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM schedule_counters WHERE policy_id = ?", policyID,
	); err != nil {
		return fmt.Errorf("resetting counter for %s: %w", policyID, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteCounters) Close() error {
	return s.db.Close()
}
