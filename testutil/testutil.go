// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/user/users-service/config"
	"github.com/user/users-service/db"
)

// SQLiteConfig returns a config for a private in-memory SQLite database named after the test.
func SQLiteConfig(t *testing.T) *config.DatabaseConfig {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return &config.DatabaseConfig{
		URL:            "file:" + name + "?mode=memory&cache=shared",
		Driver:         config.DriverSQLite,
		DSN:            "file:" + name + "?mode=memory&cache=shared",
		MaxOpenConns:   1,
		ConnectRetries: 1,
		RetryDelay:     10 * time.Millisecond,
	}
}

// OpenInMemoryDB opens an in-memory SQLite database and applies migrations.
// The pool is closed via t.Cleanup.
func OpenInMemoryDB(t *testing.T) (*sqlx.DB, *config.DatabaseConfig) {
	t.Helper()
	cfg := SQLiteConfig(t)
	d, err := db.Connect(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := db.Migrate(d, cfg); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return d, cfg
}
