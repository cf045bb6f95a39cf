package db

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/udisondev/agargo/internal/db/migrations"
)

// Migrate applies the embedded goose migrations for this backend.
func (d *DB) Migrate(ctx context.Context) error {
	var dialect goose.Dialect
	var dir string
	switch d.driver {
	case driverSQLite:
		dialect, dir = goose.DialectSQLite3, "sqlite"
	case driverPostgres:
		dialect, dir = goose.DialectPostgres, "postgres"
	default:
		return fmt.Errorf("no migrations for driver %q", d.driver)
	}

	sub, err := fs.Sub(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("locating %s migrations: %w", dir, err)
	}

	provider, err := goose.NewProvider(dialect, d.sql, sub)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
