package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"nathanbeddoewebdev/carbonq/internal/database"
	"nathanbeddoewebdev/carbonq/internal/strategy"
)

// Dialect translates an ExecutionConfig into session settings.
type Dialect interface {
	Name() string
	Apply(ctx context.Context, conn *sql.Conn, cfg strategy.ExecutionConfig) error
}

// DialectFor returns the dialect for a database driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", database.DriverSQLite:
		return SQLite{}, nil
	case database.DriverPostgres, "postgresql":
		return Postgres{}, nil
	default:
		return nil, fmt.Errorf("executor: unsupported driver %q", driver)
	}
}

// SQLite configures modernc.org/sqlite connections through PRAGMAs.
type SQLite struct{}

func (SQLite) Name() string { return database.DriverSQLite }

// Statements returns the PRAGMAs applied for cfg, in order.
func (SQLite) Statements(cfg strategy.ExecutionConfig) []string {
	tempStore := "DEFAULT"
	if cfg.TempStoreMemory {
		tempStore = "MEMORY"
	}
	stmts := []string{
		fmt.Sprintf("PRAGMA threads = %d", cfg.Threads),
		// Negative cache_size is in KiB rather than pages.
		fmt.Sprintf("PRAGMA cache_size = -%d", cfg.CacheSizeKB),
		"PRAGMA temp_store = " + tempStore,
	}
	if cfg.Optimization == strategy.OptimizeEager {
		stmts = append(stmts, "PRAGMA optimize")
	}
	return stmts
}

func (d SQLite) Apply(ctx context.Context, conn *sql.Conn, cfg strategy.ExecutionConfig) error {
	return execAll(ctx, conn, d.Statements(cfg))
}

// Postgres configures lib/pq sessions through SET.
type Postgres struct{}

func (Postgres) Name() string { return database.DriverPostgres }

// Statements returns the SET commands applied for cfg, in order.
func (Postgres) Statements(cfg strategy.ExecutionConfig) []string {
	// The leader process counts as one of the threads.
	workers := max(0, cfg.Threads-1)
	jit := "off"
	if cfg.Optimization == strategy.OptimizeEager {
		jit = "on"
	}
	return []string{
		fmt.Sprintf("SET max_parallel_workers_per_gather = %d", workers),
		"SET jit = " + jit,
		fmt.Sprintf("SET work_mem = '%dkB'", cfg.CacheSizeKB),
	}
}

func (d Postgres) Apply(ctx context.Context, conn *sql.Conn, cfg strategy.ExecutionConfig) error {
	return execAll(ctx, conn, d.Statements(cfg))
}

func execAll(ctx context.Context, conn *sql.Conn, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}
