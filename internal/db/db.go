// Package db wraps the SQLite store: persisted configuration, background
// task records, cached price history, and optimization run history.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"optifolio/internal/logger"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

func dbPath() string {
	// Prefer working directory so the DB is stable across go run / go build.
	// Fall back to executable directory for deployed builds.
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "optifolio.db")
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "optifolio.db")
}

// Open opens (or creates) the SQLite database at the default path and runs
// migrations.
func Open() (*DB, error) {
	return OpenPath(dbPath())
}

// OpenPath opens the database at an explicit path. Tests pass ":memory:".
func OpenPath(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// SqlDB exposes the raw connection for stores layered on top (auth sessions).
func (d *DB) SqlDB() *sql.DB {
	return d.sql
}

func (d *DB) migrate() error {
	version := 0
	// Try to read current version
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS config (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS tasks (
				id          TEXT PRIMARY KEY,
				status      TEXT NOT NULL,
				progress    REAL NOT NULL DEFAULT 0,
				detail      TEXT NOT NULL DEFAULT '',
				error       TEXT NOT NULL DEFAULT '',
				result      TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL,
				started_at  TEXT,
				finished_at TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at);

			CREATE TABLE IF NOT EXISTS price_history (
				ticker     TEXT NOT NULL,
				span       TEXT NOT NULL,
				fetched_at TEXT NOT NULL,
				closes     TEXT NOT NULL,
				PRIMARY KEY (ticker, span)
			);

			CREATE TABLE IF NOT EXISTS optimization_runs (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp       TEXT NOT NULL,
				strategy        TEXT NOT NULL,
				tickers         TEXT NOT NULL,
				expected_return REAL NOT NULL,
				volatility      REAL NOT NULL,
				sharpe          REAL NOT NULL,
				status          TEXT NOT NULL,
				weights         TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_runs_ts ON optimization_runs(timestamp);

			CREATE TABLE IF NOT EXISTS sessions (
				token      TEXT PRIMARY KEY,
				subject    TEXT NOT NULL,
				created_at INTEGER NOT NULL,
				expires_at INTEGER NOT NULL
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}
	return nil
}
