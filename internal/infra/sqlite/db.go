// Package sqlite provides SQLite-based persistent storage for Tally.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Weekly accountability periods. superseded=0 marks the current one.
		`CREATE TABLE IF NOT EXISTS periods (
			id               TEXT PRIMARY KEY,
			start_date       INTEGER NOT NULL,
			end_date         INTEGER NOT NULL,
			credits          INTEGER NOT NULL,
			failure_count    INTEGER NOT NULL DEFAULT 0,
			last_failure     INTEGER,
			last_daily_reset INTEGER NOT NULL,
			fee_paid         INTEGER,
			superseded       BOOLEAN NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_periods_current ON periods(superseded, start_date)`,

		// Append-only accountability transactions. schema_version 1 rows are
		// legacy progressive-penalty entries kept for reporting.
		`CREATE TABLE IF NOT EXISTS transactions (
			id             TEXT PRIMARY KEY,
			period_id      TEXT NOT NULL,
			timestamp      INTEGER NOT NULL,
			type           TEXT NOT NULL,
			amount         INTEGER NOT NULL,
			goal_id        TEXT,
			description    TEXT,
			schema_version INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_period ON transactions(period_id, timestamp)`,

		// Monitored apps. Soft-deleted via is_active=0.
		`CREATE TABLE IF NOT EXISTS goals (
			id               TEXT PRIMARY KEY,
			app_identifier   TEXT NOT NULL UNIQUE,
			display_name     TEXT NOT NULL,
			base_daily_limit INTEGER NOT NULL,
			is_active        BOOLEAN NOT NULL DEFAULT 1,
			updated_at       INTEGER NOT NULL
		)`,

		// At most one usage record per (goal, day).
		`CREATE TABLE IF NOT EXISTS usage_records (
			id             TEXT PRIMARY KEY,
			goal_id        TEXT NOT NULL,
			date           INTEGER NOT NULL,
			actual_minutes INTEGER NOT NULL DEFAULT 0,
			did_exceed     BOOLEAN NOT NULL DEFAULT 0,
			extended_limit INTEGER NOT NULL DEFAULT 0,
			UNIQUE(goal_id, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_date ON usage_records(date)`,

		// Overrides: stackable extensions, at most one restriction and one
		// session mode per goal (enforced by primary key).
		`CREATE TABLE IF NOT EXISTS extensions (
			id         TEXT PRIMARY KEY,
			goal_id    TEXT NOT NULL,
			minutes    INTEGER NOT NULL,
			granted_at INTEGER NOT NULL,
			expires_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ext_goal ON extensions(goal_id)`,
		`CREATE TABLE IF NOT EXISTS restrictions (
			goal_id       TEXT PRIMARY KEY,
			period        TEXT NOT NULL,
			limit_minutes INTEGER NOT NULL,
			start_date    INTEGER NOT NULL,
			end_date      INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS session_modes (
			goal_id      TEXT PRIMARY KEY,
			mode         TEXT NOT NULL,
			activated_at INTEGER NOT NULL,
			expires_at   INTEGER,
			minutes      INTEGER NOT NULL DEFAULT 0
		)`,

		// Key-value store for streak state.
		`CREATE TABLE IF NOT EXISTS engagement (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Per-day blocked-activity map, pruned to 14 days.
		`CREATE TABLE IF NOT EXISTS day_activity (
			date        TEXT PRIMARY KEY,
			has_blocked BOOLEAN NOT NULL
		)`,

		// Per-day pet health snapshots.
		`CREATE TABLE IF NOT EXISTS health_history (
			date  TEXT PRIMARY KEY,
			score INTEGER NOT NULL,
			mood  TEXT NOT NULL
		)`,

		// Unlocked achievements.
		`CREATE TABLE IF NOT EXISTS achievements (
			id          TEXT PRIMARY KEY,
			unlocked_at INTEGER NOT NULL
		)`,

		// Shared cross-process region written by the enforcement
		// collaborator. Last-writer-wins, no transactional guarantees.
		`CREATE TABLE IF NOT EXISTS shared_state (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullableUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func unixOrZero(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(n.Int64, 0)
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
