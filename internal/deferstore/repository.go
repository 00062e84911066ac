// Package deferstore persists the deferred-request queue so requests
// deferred by one process can be picked up by a long-running scheduler.
//
// Storage shares the SQLite state database at ~/.config/carbonq/carbonq.db
// (or the platform-equivalent path returned by os.UserConfigDir).
package deferstore

import (
	"database/sql"
	"fmt"
	"time"

	"nathanbeddoewebdev/carbonq/internal/database"
	"nathanbeddoewebdev/carbonq/internal/domain"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository defines the persistence interface for deferred requests.
type Repository interface {
	// Save inserts req or updates its due time and attempts, marking it
	// pending.
	Save(req domain.DeferredRequest) error

	// SetStatus moves a request out of (or back into) the pending state.
	SetStatus(id string, status Status, detail string) error

	// Get returns the record for id, or nil if it does not exist.
	Get(id string) (*Record, error)

	// ListPending returns pending requests ordered by due time, then
	// insertion order.
	ListPending() ([]domain.DeferredRequest, error)

	// ListRecent returns the most recent n records regardless of status.
	ListRecent(n int) ([]Record, error)

	// DeleteOlderThan removes finished records older than d.
	DeleteOlderThan(d time.Duration) (int64, error)

	Close() error
}

// SQLiteRepository implements Repository backed by a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// Open creates or opens the repository at the default path.
func Open() (*SQLiteRepository, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("deferstore: %w", err)
	}
	return OpenAt(path)
}

// OpenAt creates or opens a SQLite database at the given path.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("deferstore: %w", err)
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
		CREATE TABLE IF NOT EXISTS deferred_requests (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id   TEXT    NOT NULL UNIQUE,
			sql_text     TEXT    NOT NULL,
			urgency      TEXT    NOT NULL,
			submitted_at TEXT    NOT NULL,
			due_at       TEXT    NOT NULL,
			attempts     INTEGER NOT NULL DEFAULT 0,
			timeout_ms   INTEGER NOT NULL DEFAULT 0,
			status       TEXT    NOT NULL DEFAULT 'pending',
			detail       TEXT    NOT NULL DEFAULT '',
			updated_at   TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_deferred_status_due ON deferred_requests(status, due_at);
	`
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("deferstore: migration failed: %w", err)
	}
	return r.addColumn("timeout_ms", "INTEGER NOT NULL DEFAULT 0")
}

// addColumn adds a column that databases created by older releases lack.
func (r *SQLiteRepository) addColumn(name, decl string) error {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('deferred_requests') WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return fmt.Errorf("deferstore: migration failed: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := r.db.Exec(`ALTER TABLE deferred_requests ADD COLUMN ` + name + ` ` + decl); err != nil {
		return fmt.Errorf("deferstore: add column %s: %w", name, err)
	}
	return nil
}

// Save implements Repository.
func (r *SQLiteRepository) Save(req domain.DeferredRequest) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := r.db.Exec(`
		INSERT INTO deferred_requests (request_id, sql_text, urgency, submitted_at, due_at, attempts, timeout_ms, status, detail, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', '', ?)
		ON CONFLICT(request_id) DO UPDATE SET
			due_at = excluded.due_at,
			attempts = excluded.attempts,
			status = 'pending',
			updated_at = excluded.updated_at`,
		req.ID, req.SQL, req.Urgency.String(),
		req.SubmittedAt.UTC().Format(timeLayout), req.DueAt.UTC().Format(timeLayout),
		req.Attempts, req.Timeout.Milliseconds(), now,
	)
	if err != nil {
		return fmt.Errorf("deferstore: save failed: %w", err)
	}
	return nil
}

// SetStatus implements Repository.
func (r *SQLiteRepository) SetStatus(id string, status Status, detail string) error {
	result, err := r.db.Exec(`
		UPDATE deferred_requests SET status = ?, detail = ?, updated_at = ? WHERE request_id = ?`,
		string(status), detail, time.Now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("deferstore: update failed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("deferstore: request %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

const selectColumns = `
	SELECT request_id, sql_text, urgency, submitted_at, due_at, attempts, timeout_ms, status, detail, updated_at
	FROM deferred_requests`

// Get implements Repository.
func (r *SQLiteRepository) Get(id string) (*Record, error) {
	rows, err := r.db.Query(selectColumns+` WHERE request_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("deferstore: query failed: %w", err)
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// ListPending implements Repository.
func (r *SQLiteRepository) ListPending() ([]domain.DeferredRequest, error) {
	rows, err := r.db.Query(selectColumns + ` WHERE status = 'pending' ORDER BY due_at ASC, seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("deferstore: query failed: %w", err)
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DeferredRequest, len(records))
	for i, rec := range records {
		out[i] = rec.Request
	}
	return out, nil
}

// ListRecent implements Repository.
func (r *SQLiteRepository) ListRecent(n int) ([]Record, error) {
	rows, err := r.db.Query(selectColumns+` ORDER BY updated_at DESC, seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("deferstore: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// DeleteOlderThan implements Repository.
func (r *SQLiteRepository) DeleteOlderThan(d time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-d).Format(timeLayout)
	result, err := r.db.Exec(`
		DELETE FROM deferred_requests WHERE status != 'pending' AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deferstore: delete failed: %w", err)
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
			rec                              Record
			urgency, status                  string
			submittedStr, dueStr, updatedStr string
			timeoutMs                        int64
		)
		err := rows.Scan(
			&rec.Request.ID, &rec.Request.SQL, &urgency, &submittedStr, &dueStr,
			&rec.Request.Attempts, &timeoutMs, &status, &rec.Detail, &updatedStr,
		)
		if err != nil {
			return nil, fmt.Errorf("deferstore: scan failed: %w", err)
		}
		u, err := domain.ParseUrgency(urgency)
		if err != nil {
			return nil, fmt.Errorf("deferstore: request %s: %w", rec.Request.ID, err)
		}
		rec.Request.Urgency = u
		rec.Status = Status(status)
		rec.Request.Timeout = time.Duration(timeoutMs) * time.Millisecond
		rec.Request.SubmittedAt, _ = time.Parse(timeLayout, submittedStr)
		rec.Request.DueAt, _ = time.Parse(timeLayout, dueStr)
		rec.UpdatedAt, _ = time.Parse(timeLayout, updatedStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}
