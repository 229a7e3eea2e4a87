package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies every pending migration for cfg.Driver. It uses its own
// connection because closing a migrate instance closes the database handle.
func Migrate(cfg Config) error {
	driverName, dsn, err := connString(cfg)
	if err != nil {
		return err
	}
	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("store: open migration db: %w", err)
	}

	var (
		dbDriver database.Driver
		dbName   string
	)
	switch cfg.Driver {
	case DriverSQLite:
		dbDriver, err = migratesqlite.WithInstance(conn, &migratesqlite.Config{})
		dbName = "sqlite3"
	case DriverPostgres:
		dbDriver, err = migratepgx.WithInstance(conn, &migratepgx.Config{})
		dbName = "pgx5"
	}
	if err != nil {
		conn.Close()
		return fmt.Errorf("store: create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+cfg.Driver)
	if err != nil {
		conn.Close()
		return fmt.Errorf("store: open migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dbName, dbDriver)
	if err != nil {
		conn.Close()
		return fmt.Errorf("store: create migration instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			slog.Warn("store: close migration source", slog.String("error", srcErr.Error()))
		}
		if dbErr != nil {
			slog.Warn("store: close migration database", slog.String("error", dbErr.Error()))
		}
	}()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Debug("store: schema up to date", slog.String("driver", cfg.Driver))
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}

	version, _, _ := m.Version()
	slog.Info("store: migrations applied", slog.String("driver", cfg.Driver), slog.Uint64("version", uint64(version)))
	return nil
}
