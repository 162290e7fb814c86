// Package db provides database connectivity and migration functionality for the users service.
// It handles opening the store (Postgres in production, SQLite for development and tests),
// waiting for it to come up, and applying the embedded schema migrations with golang-migrate.
package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	// `golang-migrate` owns schema creation and teardown.
	"github.com/golang-migrate/migrate/v4"
	// The postgres database driver registers the "postgres://" scheme; it talks through lib/pq.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	// `pgx/v5/stdlib` registers the "pgx" database/sql driver used for request traffic.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // driver for database/sql, needed by migrate's postgres driver with DSN
	"go.uber.org/zap"
	// Pure-Go SQLite, registered as "sqlite". Used for development and tests.
	_ "modernc.org/sqlite"

	"github.com/user/users-service/apperror"
	"github.com/user/users-service/config"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// pingTimeout bounds a single connection attempt made by Connect.
const pingTimeout = 5 * time.Second

// Open creates the connection pool described by cfg without touching the network.
// SQLite pools are pinned to a single connection: an in-memory database lives only
// as long as its connection, and SQLite serializes writers anyway.
func Open(cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, apperror.NewDatabaseError(fmt.Sprintf("error opening %s database", cfg.Driver), err)
	}

	switch cfg.Driver {
	case config.DriverSQLite:
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
		db.SetConnMaxIdleTime(10 * time.Minute)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// Connect opens the pool and pings it until it answers, retrying up to
// cfg.ConnectRetries times with cfg.RetryDelay between attempts. It is meant for
// process start-up and test setup, where the database container may still be booting.
func Connect(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	var pingErr error
	for attempt := 1; attempt <= cfg.ConnectRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		pingErr = db.PingContext(pingCtx)
		cancel()
		if pingErr == nil {
			if cfg.Driver == config.DriverSQLite {
				if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
					_ = db.Close()
					return nil, apperror.NewDatabaseError("error configuring sqlite connection", err)
				}
			}
			return db, nil
		}

		logger.Warn("database not ready",
			zap.String("driver", cfg.Driver),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.ConnectRetries),
			zap.Error(pingErr),
		)
		if attempt == cfg.ConnectRetries {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, apperror.NewDatabaseError("gave up waiting for the database", ctx.Err())
		case <-time.After(cfg.RetryDelay):
		}
	}

	_ = db.Close()
	return nil, apperror.NewDatabaseError(
		fmt.Sprintf("error connecting to the %s database after %d attempts", cfg.Driver, cfg.ConnectRetries), pingErr)
}

// newMigrator builds a golang-migrate instance over the embedded migrations of cfg's dialect.
// The returned release func must be called instead of m.Close: for SQLite the
// migrator borrows db, and closing the migrator would close the caller's pool.
func newMigrator(db *sqlx.DB, cfg *config.DatabaseConfig) (*migrate.Migrate, func(), error) {
	dir := "migrations/postgres"
	if cfg.Driver == config.DriverSQLite {
		dir = "migrations/sqlite"
	}
	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, nil, apperror.NewMigrationError("failed to open embedded migrations", err)
	}

	if cfg.Driver == config.DriverSQLite {
		driver, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
		if err != nil {
			_ = src.Close()
			return nil, nil, apperror.NewMigrationError("failed to create sqlite migration driver", err)
		}
		m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
		if err != nil {
			_ = src.Close()
			return nil, nil, apperror.NewMigrationError("failed to create migrator", err)
		}
		return m, func() { _ = src.Close() }, nil
	}

	// Postgres migrations run over their own lib/pq connection built from the DSN.
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.DSN)
	if err != nil {
		_ = src.Close()
		return nil, nil, apperror.NewMigrationError("failed to create migrator", err)
	}
	return m, func() { _, _ = m.Close() }, nil
}

// Migrate applies any pending migrations. `migrate.ErrNoChange` is not an error.
func Migrate(db *sqlx.DB, cfg *config.DatabaseConfig) error {
	m, release, err := newMigrator(db, cfg)
	if err != nil {
		return err
	}
	defer release()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperror.NewMigrationError("failed to run migrations", err)
	}
	return nil
}

// Recreate rolls every migration back and applies them again, leaving an empty schema.
func Recreate(db *sqlx.DB, cfg *config.DatabaseConfig) error {
	m, release, err := newMigrator(db, cfg)
	if err != nil {
		return err
	}
	defer release()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperror.NewMigrationError("failed to roll back migrations", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperror.NewMigrationError("failed to run migrations", err)
	}
	return nil
}
