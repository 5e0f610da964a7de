// Package sqlite implements the repository interfaces using SQLite as the
// durable storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside the Go binary as a single
// file. No separate database server to install, configure, or manage. That
// fits this app's deployment model (single server, one data directory).
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code — works everywhere Go works.
//
// The pattern throughout this package is plain database/sql:
//  1. sql.Open(driverName, dataSourceName) → creates a pool
//  2. db.QueryContext / db.ExecContext     → runs queries
//  3. rows.Scan(&field1, &field2)          → reads results into Go variables
package sqlite

import (
	"database/sql"
	"fmt"

	// BLANK IMPORT:
	// Side-effect only — the sqlite package's init() registers itself with
	// database/sql as a driver named "sqlite". After this import,
	// sql.Open("sqlite", ...) knows how to talk to SQLite.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
// It implements repository.Store.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/appforge.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database (used by the tests in this
//     package; the production volatile backend is repository/memory)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection: SQLite serializes writers anyway, and a single pooled
	// connection means concurrent writers queue in database/sql instead of
	// failing with SQLITE_BUSY — and the PRAGMAs below apply to every query,
	// since PRAGMA state is per-connection.
	conn.SetMaxOpenConns(1)

	// Ping verifies the connection actually works. Without this, a bad path
	// or permissions issue would only surface on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads WHILE a write is happening — critical
	// for a web server where multiple requests hit the DB.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. We need them ON: deleting a
	// project must cascade to its files at the engine level.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS is idempotent, so
// this is safe to run on every startup.
func (db *DB) migrate() error {
	// Email uniqueness is enforced only for non-empty values: externally
	// authenticated identities may have no email at all, and two of those
	// must not conflict with each other. A partial unique index expresses
	// exactly that.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                     TEXT PRIMARY KEY,
			email                  TEXT NOT NULL DEFAULT '',
			first_name             TEXT NOT NULL DEFAULT '',
			last_name              TEXT NOT NULL DEFAULT '',
			profile_image_url      TEXT NOT NULL DEFAULT '',
			hashed_password        TEXT NOT NULL DEFAULT '',
			credits                INTEGER NOT NULL DEFAULT 1000,
			stripe_customer_id     TEXT NOT NULL DEFAULT '',
			stripe_subscription_id TEXT NOT NULL DEFAULT '',
			subscription_status    TEXT NOT NULL DEFAULT 'free',
			github_access_token    TEXT NOT NULL DEFAULT '',
			github_username        TEXT NOT NULL DEFAULT '',
			created_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
			ON users(email) WHERE email != '';
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS projects (
			id                  TEXT PRIMARY KEY,
			user_id             TEXT NOT NULL REFERENCES users(id),
			name                TEXT NOT NULL,
			description         TEXT NOT NULL DEFAULT '',
			template            TEXT NOT NULL DEFAULT 'react',
			status              TEXT NOT NULL DEFAULT 'draft',
			deploy_url          TEXT NOT NULL DEFAULT '',
			is_public           INTEGER NOT NULL DEFAULT 0,
			github_repo_url     TEXT NOT NULL DEFAULT '',
			github_branch       TEXT NOT NULL DEFAULT 'main',
			github_access_token TEXT NOT NULL DEFAULT '',
			last_sync_at        DATETIME,
			git_status          TEXT NOT NULL DEFAULT 'unconnected',
			created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_projects_user_id ON projects(user_id);
		CREATE INDEX IF NOT EXISTS idx_projects_updated_at ON projects(updated_at);
	`)
	if err != nil {
		return fmt.Errorf("creating projects table: %w", err)
	}

	// (project_id, path) is the natural key — UNIQUE makes duplicate rows
	// impossible at the engine level, not just by repository discipline.
	// ON DELETE CASCADE implements the project → files ownership cascade.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS project_files (
			id         TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			path       TEXT NOT NULL,
			content    TEXT NOT NULL DEFAULT '',
			language   TEXT NOT NULL DEFAULT 'javascript',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(project_id, path)
		);
		CREATE INDEX IF NOT EXISTS idx_project_files_project_id
			ON project_files(project_id);
	`)
	if err != nil {
		return fmt.Errorf("creating project_files table: %w", err)
	}

	// Append-only usage log. project_id has no FK: a generation may precede
	// project creation, and the log must survive project deletion.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS ai_generations (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL REFERENCES users(id),
			project_id   TEXT NOT NULL DEFAULT '',
			prompt       TEXT NOT NULL,
			response     TEXT NOT NULL DEFAULT '',
			credits_used INTEGER NOT NULL DEFAULT 0,
			model        TEXT NOT NULL DEFAULT '',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_ai_generations_user_created
			ON ai_generations(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating ai_generations table: %w", err)
	}

	return nil
}
