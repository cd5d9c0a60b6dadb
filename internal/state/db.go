// Package state provides SQLite-based storage for customers, policies,
// claims and claim history.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps an SQLite database connection with claim-specific operations.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DefaultPath returns the default location of the claims database.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claimflow", "claims.db")
}

// Open opens an SQLite database at the given path.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Customers},
		{2, migrationV2Policies},
		{3, migrationV3Claims},
		{4, migrationV4ClaimHistory},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Customers = `
CREATE TABLE IF NOT EXISTS customers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	customer_id TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	email TEXT,
	phone TEXT,
	address TEXT,
	created_at DATETIME NOT NULL
);
`

const migrationV2Policies = `
CREATE TABLE IF NOT EXISTS policies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	policy_number TEXT NOT NULL UNIQUE,
	customer_id TEXT NOT NULL REFERENCES customers(customer_id) ON DELETE CASCADE,
	policy_type TEXT NOT NULL,
	coverage_type TEXT,
	sum_insured REAL NOT NULL,
	premium REAL NOT NULL DEFAULT 0,
	idv REAL NOT NULL DEFAULT 0,
	deductible REAL NOT NULL DEFAULT 0,
	copay_percent REAL NOT NULL DEFAULT 0,
	zero_depreciation INTEGER NOT NULL DEFAULT 0,
	ncb_percent REAL NOT NULL DEFAULT 0,
	vehicle_registration TEXT,
	property_id TEXT,
	holder_age INTEGER NOT NULL DEFAULT 0,
	coverages TEXT,
	exclusions TEXT,
	status TEXT NOT NULL DEFAULT 'active',
	policy_start DATETIME NOT NULL,
	policy_end DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policies_customer_id ON policies(customer_id);
CREATE INDEX IF NOT EXISTS idx_policies_vehicle ON policies(vehicle_registration);
CREATE INDEX IF NOT EXISTS idx_policies_property ON policies(property_id);
`

const migrationV3Claims = `
CREATE TABLE IF NOT EXISTS claims (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	claim_id TEXT NOT NULL UNIQUE,
	customer_id TEXT REFERENCES customers(customer_id) ON DELETE CASCADE,
	policy_number TEXT,
	claim_type TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	incident_date TEXT,
	description TEXT,
	identifier TEXT,
	estimated_cost REAL NOT NULL DEFAULT 0,
	payout_amount REAL NOT NULL DEFAULT 0,
	decision TEXT,
	decision_reason TEXT,
	filed_date DATETIME NOT NULL,
	decision_date DATETIME
);

CREATE INDEX IF NOT EXISTS idx_claims_customer_id ON claims(customer_id);
CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);
`

const migrationV4ClaimHistory = `
CREATE TABLE IF NOT EXISTS claim_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	customer_id TEXT NOT NULL,
	claim_id TEXT NOT NULL,
	claim_type TEXT,
	amount REAL NOT NULL DEFAULT 0,
	filed_date DATETIME NOT NULL,
	status TEXT
);

CREATE INDEX IF NOT EXISTS idx_claim_history_customer_id ON claim_history(customer_id);
`

// ExecContext executes a query that doesn't return rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.ExecContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a query that returns at most one row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRowContext(ctx, query, args...)
}

// Transaction runs the given function within a transaction.
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// parseNullableTime parses a nullable time string from SQLite.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

// nullString maps "" to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func joinList(items []string) string {
	return strings.Join(items, ",")
}

func splitList(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s.String, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// canonicalIdentifier strips separators and upper-cases an identifier so
// "ka-01-ab-1234" matches "KA01AB1234".
func canonicalIdentifier(id string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(id)))
}
