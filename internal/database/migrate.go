package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// migrate applies all pending schema migrations for the dialect. Postgres
// migrations run on a dedicated connection that goes back to the pool when
// the migrator closes.
func (db *DB) migrate(ctx context.Context) error {
	src, err := iofs.New(migrations, "migrations/"+string(db.dialect))
	if err != nil {
		return fmt.Errorf("error creating migrations source: %w", err)
	}

	var driver migratedb.Driver
	switch db.dialect {
	case Postgres:
		conn, connErr := db.conn.Conn(ctx)
		if connErr != nil {
			src.Close()
			return fmt.Errorf("error reserving migration connection: %w", connErr)
		}
		driver, err = migratepg.WithConnection(ctx, conn, &migratepg.Config{})
		if err != nil {
			conn.Close()
		}
	case SQLite:
		driver, err = migratesqlite.WithInstance(db.conn.DB, &migratesqlite.Config{})
	}
	if err != nil {
		src.Close()
		return fmt.Errorf("error creating %s instance for migration: %w", db.dialect, err)
	}

	migrator, err := migrate.NewWithInstance("iofs", src, string(db.dialect), driver)
	if err != nil {
		return fmt.Errorf("error creating migrator: %w", err)
	}
	upErr := migrator.Up()

	// The sqlite driver closes the shared pool on Close, so only the
	// source is released there.
	if db.dialect == Postgres {
		if srcErr, dbErr := migrator.Close(); srcErr != nil || dbErr != nil {
			slog.Warn("error closing migrator", "source_error", srcErr, "database_error", dbErr)
		}
	} else if err := src.Close(); err != nil {
		slog.Warn("error closing migration source", "error", err)
	}

	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("error migrating: %w", upErr)
	}
	slog.Info("migrated", "dialect", db.dialect)

	return nil
}
