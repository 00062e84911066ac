// Package history stores completed query executions with their decision,
// carbon context, and measured cost.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"nathanbeddoewebdev/carbonq/internal/database"
	"nathanbeddoewebdev/carbonq/internal/domain"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository defines the persistence interface for execution history.
type Repository interface {
	Save(record *Record) error
	List(limit int) ([]Record, error)
	ListSince(since time.Time) ([]Record, error)
	Prune(olderThan time.Duration) (int64, error)
	Close() error
}

// SQLiteRepository implements Repository backed by a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// Open creates or opens the history repository at the default path.
func Open() (*SQLiteRepository, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return OpenAt(path)
}

// OpenAt creates or opens a SQLite database at the given path.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS executions (
            id               INTEGER PRIMARY KEY AUTOINCREMENT,
            timestamp        TEXT    NOT NULL,
            origin           TEXT    NOT NULL DEFAULT '',
            request_id       TEXT    NOT NULL DEFAULT '',
            sql_text         TEXT    NOT NULL,
            urgency          TEXT    NOT NULL,
            strategy         TEXT    NOT NULL,
            reason           TEXT    NOT NULL DEFAULT '',
            carbon_intensity REAL    NOT NULL DEFAULT 0,
            carbon_source    TEXT    NOT NULL DEFAULT '',
            carbon_stale     INTEGER NOT NULL DEFAULT 0,
            duration_ms      REAL    NOT NULL DEFAULT 0,
            energy_joules    REAL    NOT NULL DEFAULT 0,
            power_watts      REAL    NOT NULL DEFAULT 0,
            cpu_percent      REAL    NOT NULL DEFAULT 0,
            memory_mb        REAL    NOT NULL DEFAULT 0,
            carbon_grams     REAL    NOT NULL DEFAULT 0,
            tier             TEXT    NOT NULL DEFAULT '',
            outcome          TEXT    NOT NULL DEFAULT '',
            detail           TEXT    NOT NULL DEFAULT ''
        );
        CREATE INDEX IF NOT EXISTS idx_executions_timestamp ON executions(timestamp);
        CREATE INDEX IF NOT EXISTS idx_executions_strategy ON executions(strategy);
    `
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("history: migration failed: %w", err)
	}
	return nil
}

// Save inserts a new record, assigning its ID and, if unset, timestamp.
func (r *SQLiteRepository) Save(record *Record) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	record.SQL = NormalizeSQL(record.SQL)

	result, err := r.db.Exec(`
        INSERT INTO executions (timestamp, origin, request_id, sql_text, urgency, strategy, reason,
            carbon_intensity, carbon_source, carbon_stale, duration_ms, energy_joules, power_watts,
            cpu_percent, memory_mb, carbon_grams, tier, outcome, detail)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Timestamp.UTC().Format(timeLayout), record.Origin, record.RequestID, record.SQL,
		record.Urgency.String(), record.Strategy.String(), record.Reason,
		record.CarbonIntensity, string(record.CarbonSource), record.CarbonStale,
		record.DurationMs, record.EnergyJoules, record.PowerWatts,
		record.CPUPercent, record.MemoryMB, record.CarbonGrams, string(record.Tier),
		record.Outcome, record.Detail,
	)
	if err != nil {
		return fmt.Errorf("history: insert failed: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("history: failed to get last insert ID: %w", err)
	}
	record.ID = id
	return nil
}

const selectColumns = `
        SELECT id, timestamp, origin, request_id, sql_text, urgency, strategy, reason,
               carbon_intensity, carbon_source, carbon_stale, duration_ms, energy_joules,
               power_watts, cpu_percent, memory_mb, carbon_grams, tier, outcome, detail
        FROM executions`

// List returns the most recent n records, newest first.
func (r *SQLiteRepository) List(limit int) ([]Record, error) {
	rows, err := r.db.Query(selectColumns+` ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// ListSince returns records at or after since, oldest first.
func (r *SQLiteRepository) ListSince(since time.Time) ([]Record, error) {
	rows, err := r.db.Query(selectColumns+` WHERE timestamp >= ? ORDER BY timestamp ASC, id ASC`,
		since.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("history: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// Prune deletes records older than the given duration.
func (r *SQLiteRepository) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(timeLayout)
	result, err := r.db.Exec(`DELETE FROM executions WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: delete failed: %w", err)
	}
	return result.RowsAffected()
}

// Close releases database resources.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func scanRows(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			rec                                     Record
			timestampStr, urgency, strategy, source string
			tier                                    string
		)
		err := rows.Scan(
			&rec.ID, &timestampStr, &rec.Origin, &rec.RequestID, &rec.SQL, &urgency, &strategy,
			&rec.Reason, &rec.CarbonIntensity, &source, &rec.CarbonStale, &rec.DurationMs,
			&rec.EnergyJoules, &rec.PowerWatts, &rec.CPUPercent, &rec.MemoryMB, &rec.CarbonGrams,
			&tier, &rec.Outcome, &rec.Detail,
		)
		if err != nil {
			return nil, fmt.Errorf("history: scan failed: %w", err)
		}
		rec.Timestamp, _ = time.Parse(timeLayout, timestampStr)
		rec.Urgency, _ = domain.ParseUrgency(urgency)
		rec.Strategy, _ = domain.ParseStrategy(strategy)
		rec.CarbonSource = domain.Source(source)
		rec.Tier = domain.ProfilingTier(tier)
		records = append(records, rec)
	}
	return records, rows.Err()
}
