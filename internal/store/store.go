// Package store is the table service behind datalib: profiles, projects and
// data items kept in SQLite or PostgreSQL and queried with equality filters
// and a single ordering column.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config describes how to reach the database.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// DB wraps a sql.DB together with its dialect.
type DB struct {
	conn   *sql.DB
	driver string
}

// Open connects to the database described by cfg and applies pending
// migrations.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	driverName, dsn, err := connString(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(cfg); err != nil {
		return nil, err
	}

	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	conn.SetConnMaxLifetime(30 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &DB{conn: conn, driver: cfg.Driver}, nil
}

// connString returns the database/sql driver name and DSN for cfg.
func connString(cfg Config) (string, string, error) {
	switch cfg.Driver {
	case DriverSQLite:
		dsn := cfg.DSN
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
		}
		return "sqlite3", dsn, nil
	case DriverPostgres:
		return "pgx", cfg.DSN, nil
	default:
		return "", "", fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Driver returns the configured driver name.
func (db *DB) Driver() string {
	return db.driver
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// now returns the timestamp stored for new and updated rows. Both backends
// keep microsecond precision, so values round-trip unchanged.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
