package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"fedgrid-hq/triton/pkg/policy"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS policies (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    category   TEXT NOT NULL DEFAULT '',
    state      TEXT NOT NULL,
    version    INTEGER NOT NULL,
    document   TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS policy_versions (
    policy_id   TEXT NOT NULL,
    version     INTEGER NOT NULL,
    document    TEXT NOT NULL,
    replaced_at TIMESTAMP NOT NULL,
    PRIMARY KEY (policy_id, version)
);

CREATE INDEX IF NOT EXISTS idx_policies_state ON policies (state);
CREATE INDEX IF NOT EXISTS idx_policies_category ON policies (category);
`

// SQLiteConfig contains configuration for the SQLite policy store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// SQLiteStore is a durable Store on SQLite (WAL mode). The full policy
// document is kept as JSON alongside the indexed columns; the document
// is the source of truth.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the policy database.
func NewSQLiteStore(config SQLiteConfig) (*SQLiteStore, error) {
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("opening policy database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", config.BusyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating policy schema: %w", err)
	}

	logger := slog.Default().With("component", "policy_store.sqlite")
	logger.Info("policy store initialized", "path", config.Path)

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, p *policy.Policy) (string, error) {
	stored := p.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.State == "" {
		stored.State = policy.StateDraft
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if exists, err := s.existsTx(ctx, tx, stored.ID); err != nil {
		return "", err
	} else if exists {
		verr := &policy.ValidationError{PolicyID: stored.ID}
		verr.Add("policy id already exists")
		return "", verr
	}

	others, err := s.allTx(ctx, tx, stored.ID)
	if err != nil {
		return "", err
	}
	if err := checkIntegrity(stored, others); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now

	if err := s.insertTx(ctx, tx, stored); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing policy create: %w", err)
	}

	s.logger.Info("policy created", "policy_id", stored.ID, "name", stored.Name)
	return stored.ID, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*policy.Policy, error) {
	row := s.db.QueryRowContext(ctx, "SELECT document FROM policies WHERE id = ?", id)
	return scanPolicy(row, id)
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]*policy.Policy, error) {
	var clauses []string
	var args []interface{}
	if filter.State != "" {
		clauses = append(clauses, "state = ?")
		args = append(args, string(filter.State))
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, filter.Category)
	}

	query := "SELECT document FROM policies"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing policies: %w", err)
	}
	defer rows.Close()

	var out []*policy.Policy
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning policy row: %w", err)
		}
		p, err := unmarshalPolicy(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update implements Store.
func (s *SQLiteStore) Update(ctx context.Context, p *policy.Policy, expectedVersion int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := s.getTx(ctx, tx, p.ID)
	if err != nil {
		return 0, err
	}
	if current.Version != expectedVersion {
		return 0, &VersionConflictError{PolicyID: p.ID, Expected: expectedVersion, Actual: current.Version}
	}
	if current.State == policy.StateArchived {
		verr := &policy.ValidationError{PolicyID: p.ID}
		verr.Add("archived policy is immutable")
		return 0, verr
	}

	updated := p.Clone()
	updated.State = current.State
	updated.CreatedAt = current.CreatedAt

	others, err := s.allTx(ctx, tx, p.ID)
	if err != nil {
		return 0, err
	}
	if err := checkIntegrity(updated, others); err != nil {
		return 0, err
	}

	updated.Version = current.Version + 1
	updated.UpdatedAt = time.Now().UTC()

	if err := s.replaceTx(ctx, tx, current, updated, expectedVersion); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing policy update: %w", err)
	}

	s.logger.Info("policy updated", "policy_id", p.ID, "version", updated.Version)
	return updated.Version, nil
}

// Delete implements Store. Archiving an archived policy is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.State == policy.StateArchived {
		return nil
	}
	return s.writeState(ctx, current, policy.StateArchived)
}

// SetState implements Store.
func (s *SQLiteStore) SetState(ctx context.Context, id string, state policy.State) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !current.State.CanTransition(state) {
		return &policy.StateTransitionError{PolicyID: id, From: current.State, To: state}
	}
	return s.writeState(ctx, current, state)
}

// Revert implements Store.
func (s *SQLiteStore) Revert(ctx context.Context, id string, version int) (*policy.Policy, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := s.getTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if current.State == policy.StateArchived {
		verr := &policy.ValidationError{PolicyID: id}
		verr.Add("archived policy is immutable")
		return nil, verr
	}

	var doc []byte
	err = tx.QueryRowContext(ctx,
		"SELECT document FROM policy_versions WHERE policy_id = ? AND version = ?",
		id, version).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{PolicyID: id, Version: version}
	}
	if err != nil {
		return nil, fmt.Errorf("loading policy version: %w", err)
	}

	restored, err := unmarshalPolicy(doc)
	if err != nil {
		return nil, err
	}
	restored.State = current.State
	restored.CreatedAt = current.CreatedAt

	others, err := s.allTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := checkIntegrity(restored, others); err != nil {
		return nil, err
	}

	restored.Version = current.Version + 1
	restored.UpdatedAt = time.Now().UTC()

	if err := s.replaceTx(ctx, tx, current, restored, current.Version); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing policy revert: %w", err)
	}

	s.logger.Info("policy reverted", "policy_id", id,
		"restored_version", version, "new_version", restored.Version)
	return restored, nil
}

// Versions implements Store.
func (s *SQLiteStore) Versions(ctx context.Context, id string) ([]*policy.Policy, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT document FROM policy_versions WHERE policy_id = ? ORDER BY version", id)
	if err != nil {
		return nil, fmt.Errorf("listing policy versions: %w", err)
	}
	defer rows.Close()

	var out []*policy.Policy
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning version row: %w", err)
		}
		p, err := unmarshalPolicy(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// writeState updates the indexed state column and the stored document
// in one statement, without bumping the version.
func (s *SQLiteStore) writeState(ctx context.Context, current *policy.Policy, state policy.State) error {
	current.State = state
	current.Enabled = state == policy.StateActive
	current.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshaling policy: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE policies SET state = ?, document = ?, updated_at = ? WHERE id = ?",
		string(state), string(doc), current.UpdatedAt, current.ID)
	if err != nil {
		return fmt.Errorf("updating policy state: %w", err)
	}

	s.logger.Info("policy state changed", "policy_id", current.ID, "state", state)
	return nil
}

// insertTx persists a new policy row.
func (s *SQLiteStore) insertTx(ctx context.Context, tx *sql.Tx, p *policy.Policy) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling policy: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO policies (id, name, category, state, version, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Category, string(p.State), p.Version, string(doc), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting policy: %w", err)
	}
	return nil
}

// replaceTx snapshots the current document into policy_versions and
// writes the new document with an optimistic version guard.
func (s *SQLiteStore) replaceTx(ctx context.Context, tx *sql.Tx, current, next *policy.Policy, guardVersion int) error {
	snapshot, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshaling policy snapshot: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO policy_versions (policy_id, version, document, replaced_at)
		VALUES (?, ?, ?, ?)
	`, current.ID, current.Version, string(snapshot), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("snapshotting policy version: %w", err)
	}

	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshaling policy: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE policies
		SET name = ?, category = ?, state = ?, version = ?, document = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`, next.Name, next.Category, string(next.State), next.Version, string(doc),
		next.UpdatedAt, next.ID, guardVersion)
	if err != nil {
		return fmt.Errorf("updating policy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		// Lost a race inside the transaction window.
		return &VersionConflictError{PolicyID: next.ID, Expected: guardVersion, Actual: -1}
	}
	return nil
}

// getTx loads a policy inside a transaction.
func (s *SQLiteStore) getTx(ctx context.Context, tx *sql.Tx, id string) (*policy.Policy, error) {
	row := tx.QueryRowContext(ctx, "SELECT document FROM policies WHERE id = ?", id)
	return scanPolicy(row, id)
}

// existsTx reports whether a policy id is present.
func (s *SQLiteStore) existsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM policies WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking policy existence: %w", err)
	}
	return n > 0, nil
}

// allTx loads every policy except the excluded id, for integrity checks.
func (s *SQLiteStore) allTx(ctx context.Context, tx *sql.Tx, exclude string) ([]*policy.Policy, error) {
	rows, err := tx.QueryContext(ctx, "SELECT document FROM policies WHERE id != ?", exclude)
	if err != nil {
		return nil, fmt.Errorf("loading policies: %w", err)
	}
	defer rows.Close()

	var out []*policy.Policy
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning policy row: %w", err)
		}
		p, err := unmarshalPolicy(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPolicy(row *sql.Row, id string) (*policy.Policy, error) {
	var doc []byte
	err := row.Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{PolicyID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}
	return unmarshalPolicy(doc)
}

func unmarshalPolicy(doc []byte) (*policy.Policy, error) {
	var p policy.Policy
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling policy document: %w", err)
	}
	return &p, nil
}
