// Package database opens the SQLite state store and the query target
// databases.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	appDir = "carbonq"
	dbFile = "carbonq.db"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var pathOverride string

// SetPath overrides the default database path. Intended for testing.
func SetPath(p string) { pathOverride = p }

// ResetPath clears the path override. Intended for testing.
func ResetPath() { pathOverride = "" }

// DefaultPath returns the default state database path.
func DefaultPath() (string, error) {
	if pathOverride != "" {
		return pathOverride, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("database: unable to determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, dbFile), nil
}

// Open opens a SQLite database at the provided path.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("database: failed to create directory %s: %w", dir, err)
	}

	db, err := sql.Open(DriverSQLite, path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("database: failed to open database: %w", err)
	}
	return db, nil
}

// OpenTarget opens the database that queries run against. For sqlite the
// dsn is a file path (":memory:" is allowed); for postgres it is a libpq
// connection string or URL.
func OpenTarget(driver, dsn string) (*sql.DB, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
			db, err := sql.Open(DriverSQLite, dsn)
			if err != nil {
				return nil, fmt.Errorf("database: failed to open target: %w", err)
			}
			return db, nil
		}
		return Open(dsn)
	case DriverPostgres, "postgresql":
		db, err := sql.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("database: failed to open target: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", driver)
	}
}
