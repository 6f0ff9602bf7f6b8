package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
    id        TEXT PRIMARY KEY,
    timestamp TIMESTAMP NOT NULL,
    policy_id TEXT NOT NULL,
    kind      TEXT NOT NULL,
    payload   TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_policy_time ON audit_events (policy_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_kind ON audit_events (kind);
`

// SQLiteConfig contains configuration for the SQLite audit backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// SQLiteStore is a durable, append-only audit store on SQLite (WAL mode).
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the audit database.
func NewSQLiteStore(config SQLiteConfig) (*SQLiteStore, error) {
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", config.BusyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}

	logger := slog.Default().With("component", "audit.sqlite")
	logger.Info("audit store initialized", "path", config.Path)

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Append records an event.
func (s *SQLiteStore) Append(ctx context.Context, event *Event) error {
	var payload []byte
	if event.Payload != nil {
		var err error
		payload, err = json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("marshaling event payload: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, timestamp, policy_id, kind, payload)
		VALUES (?, ?, ?, ?, ?)
	`, event.ID, event.Timestamp.UTC(), event.PolicyID, string(event.Kind), nullableString(payload))
	if err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	return nil
}

// Query returns matching events, newest first.
func (s *SQLiteStore) Query(ctx context.Context, query Query) ([]*Event, error) {
	where, args := buildWhereClause(query)

	sqlQuery := "SELECT id, timestamp, policy_id, kind, payload FROM audit_events"
	if where != "" {
		sqlQuery += " WHERE " + where
	}
	sqlQuery += " ORDER BY timestamp DESC"

	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	return events, nil
}

// Count returns the number of matching events.
func (s *SQLiteStore) Count(ctx context.Context, query Query) (int64, error) {
	where, args := buildWhereClause(query)

	sqlQuery := "SELECT COUNT(*) FROM audit_events"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting audit events: %w", err)
	}
	return count, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing audit store: %w", err)
	}
	return nil
}

// buildWhereClause builds a SQL WHERE clause from query filters.
func buildWhereClause(query Query) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if query.PolicyID != "" {
		conditions = append(conditions, "policy_id = ?")
		args = append(args, query.PolicyID)
	}
	if query.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(query.Kind))
	}
	if query.From != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, query.From.UTC())
	}
	if query.To != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, query.To.UTC())
	}

	where := ""
	for i, condition := range conditions {
		if i > 0 {
			where += " AND "
		}
		where += condition
	}
	return where, args
}

func scanEvent(rows *sql.Rows) (*Event, error) {
	var event Event
	var kind string
	var payload sql.NullString

	if err := rows.Scan(&event.ID, &event.Timestamp, &event.PolicyID, &kind, &payload); err != nil {
		return nil, err
	}
	event.Kind = Kind(kind)

	if payload.Valid && payload.String != "" {
		if err := json.Unmarshal([]byte(payload.String), &event.Payload); err != nil {
			return nil, fmt.Errorf("unmarshaling payload for event %s: %w", event.ID, err)
		}
	}
	return &event, nil
}

func nullableString(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
