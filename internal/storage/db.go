// Package storage provides a profile-tuned wrapper around modernc.org/sqlite
// (a pure-Go SQLite driver, so the orchestrator never needs cgo). The event
// log (internal/events/log.go) opens its *DB through this package; the
// config-history mirror writes plain YAML files and does not use it.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Profile selects the PRAGMA tuning applied to a database's connection
// string. Different components have different durability/throughput
// tradeoffs: an append-only audit log wants every write fsynced, while a
// disposable cache wants none of that overhead.
type Profile string

const (
	// ProfileAppendOnly favors durability over throughput: full fsync on
	// every write, auto-vacuum disabled so the file never shrinks out from
	// under readers. Used by the event log.
	ProfileAppendOnly Profile = "append_only"
	// ProfileStandard balances durability and throughput: checkpoint-only
	// fsync, incremental auto-vacuum. Used for general-purpose local state.
	ProfileStandard Profile = "standard"
	// ProfileEphemeral favors throughput: no fsync at all, full auto-vacuum,
	// in-memory temp tables. Used for data that is fine to lose on crash.
	ProfileEphemeral Profile = "ephemeral"
)

// DB wraps a *sql.DB opened against a single SQLite file with profile-tuned
// PRAGMAs and connection pool settings already applied.
type DB struct {
	conn    *sql.DB
	path    string
	profile Profile
	name    string
}

// Config configures a new DB.
type Config struct {
	Path    string
	Profile Profile
	Name    string
}

// Open creates the parent directory if needed, builds a profile-tuned
// connection string, opens the connection, configures the pool, and pings
// to confirm the database is reachable.
func Open(cfg Config) (*DB, error) {
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}

	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("storage: resolve path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, fmt.Errorf("storage: create directory: %w", err)
		}
		cfg.Path = absPath
	}

	connStr := buildConnectionString(cfg.Path, cfg.Profile)

	conn, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", cfg.Name, err)
	}
	configurePool(conn, cfg.Profile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("storage: ping %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: cfg.Path, profile: cfg.Profile, name: cfg.Name}, nil
}

func buildConnectionString(path string, profile Profile) string {
	connStr := path + "?_pragma=journal_mode(WAL)"

	switch profile {
	case ProfileAppendOnly:
		connStr += "&_pragma=synchronous(FULL)"
		connStr += "&_pragma=auto_vacuum(NONE)"
	case ProfileEphemeral:
		connStr += "&_pragma=synchronous(OFF)"
		connStr += "&_pragma=auto_vacuum(FULL)"
		connStr += "&_pragma=temp_store(MEMORY)"
	default:
		connStr += "&_pragma=synchronous(NORMAL)"
		connStr += "&_pragma=auto_vacuum(INCREMENTAL)"
		connStr += "&_pragma=temp_store(MEMORY)"
	}

	connStr += "&_pragma=busy_timeout(5000)"
	return connStr
}

func configurePool(conn *sql.DB, profile Profile) {
	switch profile {
	case ProfileAppendOnly:
		// A single writer at a time keeps the append order unambiguous.
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	default:
		conn.SetMaxOpenConns(4)
		conn.SetMaxIdleConns(4)
	}
	conn.SetConnMaxLifetime(time.Hour)
}

// Conn exposes the underlying *sql.DB for callers that need to run their own
// statements.
func (db *DB) Conn() *sql.DB { return db.conn }

// Path returns the resolved database file path.
func (db *DB) Path() string { return db.path }

// Name returns the friendly name this DB was opened with.
func (db *DB) Name() string { return db.name }

// Close closes the underlying connection pool.
func (db *DB) Close() error { return db.conn.Close() }

// Exec runs a statement with no expected result rows.
func (db *DB) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.conn.ExecContext(ctx, query, args...)
}

// Query runs a statement expecting result rows.
func (db *DB) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, query, args...)
}

// HealthCheck runs PRAGMA integrity_check and reports any corruption found.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("storage: integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("storage: integrity check failed: %s", result)
	}
	return nil
}
