// Package store is Retz's transactional, JSON-in-RDBMS persistence layer
// (spec §4.A). It wraps a database/sql handle to a SERIALIZABLE-capable
// backend and exposes the Users/Applications/Jobs/Properties operations
// every other component builds on.
package store

import (
	"context"
	"database/sql"
	"log"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// tableNames are the four tables the schema probe looks for. Probing
// accepts both lower- and upper-case names per spec §6.
var tableNames = []string{"users", "applications", "jobs", "properties"}

// Store wraps the database connection with Retz's persistence operations.
type Store struct {
	conn   *sql.DB
	logger *log.Logger
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger overrides the default logger (log.Default()).
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens a database at dsn using the pure-Go modernc.org/sqlite
// driver, verifies SERIALIZABLE isolation is available, bootstraps the
// schema if needed, and returns a ready Store.
//
// Open refuses to operate against a backend that does not advertise
// SERIALIZABLE isolation (IsolationUnsupported) or one whose schema is
// only partially migrated (SchemaPartial) — both are fatal per spec §4.A
// and §7.
func Open(dsn string, opts ...Option) (*Store, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, wrapErr("open", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, wrapErr("enable WAL", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, wrapErr("enable foreign keys", err)
	}

	s := &Store{conn: conn, logger: log.Default()}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.checkIsolation(); err != nil {
		conn.Close()
		return nil, err
	}

	if err := s.bootstrapSchema(); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

// checkIsolation confirms the driver can run a transaction at
// sql.LevelSerializable. modernc.org/sqlite's single-writer model
// satisfies SERIALIZABLE by construction (SQLite's own documentation:
// all transactions are serializable because writers are totally
// ordered); we still probe BeginTx to fail fast against a misconfigured
// driver rather than assume it.
func (s *Store) checkIsolation() error {
	tx, err := s.conn.BeginTx(context.Background(), &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return &IsolationUnsupported{Driver: "sqlite"}
	}
	return tx.Rollback()
}

// bootstrapSchema probes for the four tables. If all are present it is a
// no-op; if none are present it executes the DDL; any other count is
// SchemaPartial, a fatal startup condition.
func (s *Store) bootstrapSchema() error {
	present, err := s.presentTables()
	if err != nil {
		return err
	}

	if len(present) == len(tableNames) {
		return nil
	}
	if len(present) == 0 {
		return s.createSchema()
	}

	var missing []string
	presentSet := make(map[string]bool, len(present))
	for _, t := range present {
		presentSet[strings.ToLower(t)] = true
	}
	for _, t := range tableNames {
		if !presentSet[t] {
			missing = append(missing, t)
		}
	}
	return &SchemaPartial{Present: present, Missing: missing}
}

func (s *Store) presentTables() ([]string, error) {
	rows, err := s.conn.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return nil, wrapErr("probe schema", err)
	}
	defer rows.Close()

	var present []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrapErr("probe schema", err)
		}
		lower := strings.ToLower(name)
		for _, want := range tableNames {
			if lower == want {
				present = append(present, name)
				break
			}
		}
	}
	return present, rows.Err()
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
    key_id  TEXT PRIMARY KEY,
    secret  TEXT NOT NULL,
    enabled INTEGER NOT NULL,
    json    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS applications (
    appid TEXT PRIMARY KEY,
    owner TEXT NOT NULL REFERENCES users(key_id),
    json  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    name     TEXT NOT NULL,
    appid    TEXT NOT NULL REFERENCES applications(appid),
    cmd      TEXT NOT NULL,
    priority INTEGER NOT NULL,
    taskid   TEXT UNIQUE,
    state    TEXT NOT NULL,
    finished TEXT,
    json     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS properties (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_applications_owner ON applications(owner);
CREATE INDEX IF NOT EXISTS idx_jobs_appid ON jobs(appid);
CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);
CREATE INDEX IF NOT EXISTS idx_jobs_priority_id ON jobs(priority, id);
CREATE INDEX IF NOT EXISTS idx_jobs_finished ON jobs(finished);
`

func (s *Store) createSchema() error {
	if _, err := s.conn.Exec(schemaDDL); err != nil {
		return wrapErr("create schema", err)
	}
	return nil
}

// Stop drains the connection pool: it polls the number of in-use
// connections with a 512ms backoff until none remain, then closes the
// pool (spec §5's drain discipline).
func (s *Store) Stop() error {
	for {
		stats := s.conn.Stats()
		if stats.InUse == 0 {
			break
		}
		time.Sleep(512 * time.Millisecond)
	}
	return s.conn.Close()
}

// withTx runs fn inside a SERIALIZABLE transaction, committing on success
// and rolling back (and propagating) on error. It is the sole entry point
// for every multi-statement logical operation — spec §4.A's transaction
// discipline: autoCommit=false for anything beyond a single statement.
func (s *Store) withTx(op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(context.Background(), &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return wrapErr(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapErr(op, err)
	}
	return nil
}

func (s *Store) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
