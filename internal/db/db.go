// Package db implements the credential and score store behind a narrow
// repository surface. The backend is chosen by the DATABASE_URL scheme:
// "sqlite:<path>" uses the pure-Go sqlite driver, "postgres://…" uses
// pgx. The hub never touches this package; only agents do, off-loop.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "pgx"
)

// DB wraps a database/sql pool for account and score operations.
type DB struct {
	sql    *sql.DB
	driver string
}

// Open connects to the store named by databaseURL and verifies the
// connection with a ping.
func Open(ctx context.Context, databaseURL string) (*DB, error) {
	driver, dsn, err := splitURL(databaseURL)
	if err != nil {
		return nil, err
	}

	pool, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	if driver == driverSQLite {
		// sqlite allows one writer; a single pooled connection also
		// keeps ":memory:" databases coherent across queries.
		pool.SetMaxOpenConns(1)
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{sql: pool, driver: driver}, nil
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.sql.Close()
}

func splitURL(databaseURL string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite:"):
		return driverSQLite, strings.TrimPrefix(databaseURL, "sqlite:"), nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return driverPostgres, databaseURL, nil
	default:
		return "", "", fmt.Errorf("unsupported DATABASE_URL %q: expected sqlite: or postgres:// scheme", databaseURL)
	}
}

// rebind rewrites ? placeholders to $n for the postgres backend.
// Queries in this package are written with ?.
func (d *DB) rebind(query string) string {
	if d.driver != driverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
