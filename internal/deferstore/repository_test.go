package deferstore

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/carbonq/internal/database"
	"nathanbeddoewebdev/carbonq/internal/domain"
)

func tempRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "carbonq.db")
	r, err := OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

var base = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

func request(id string, dueIn time.Duration) domain.DeferredRequest {
	return domain.DeferredRequest{
		ID:          id,
		SQL:         "SELECT 1",
		Urgency:     domain.UrgencyBatch,
		SubmittedAt: base,
		DueAt:       base.Add(dueIn),
	}
}

func TestSave_RoundTrip(t *testing.T) {
	r := tempRepo(t)
	req := request("a", 3*time.Hour)
	req.Attempts = 1
	req.Timeout = 1500 * time.Millisecond

	if err := r.Save(req); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := r.Get("a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if diff := cmp.Diff(req, got.Request); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
	if got.Status != StatusPending {
		t.Errorf("expected pending, got %q", got.Status)
	}
}

func TestOpenAt_AddsTimeoutColumnToOlderSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carbonq.db")
	db, err := database.Open(path)
	if err != nil {
		t.Fatalf("database.Open failed: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE deferred_requests (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id   TEXT    NOT NULL UNIQUE,
			sql_text     TEXT    NOT NULL,
			urgency      TEXT    NOT NULL,
			submitted_at TEXT    NOT NULL,
			due_at       TEXT    NOT NULL,
			attempts     INTEGER NOT NULL DEFAULT 0,
			status       TEXT    NOT NULL DEFAULT 'pending',
			detail       TEXT    NOT NULL DEFAULT '',
			updated_at   TEXT    NOT NULL
		)`)
	db.Close()
	if err != nil {
		t.Fatalf("create old table failed: %v", err)
	}

	r, err := OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	req := request("a", time.Hour)
	req.Timeout = 2 * time.Second
	if err := r.Save(req); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	pending, err := r.ListPending()
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Timeout != 2*time.Second {
		t.Errorf("expected one request with a 2s timeout, got %+v", pending)
	}
}

func TestSave_UpsertRedefer(t *testing.T) {
	r := tempRepo(t)
	req := request("a", time.Hour)
	if err := r.Save(req); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	req.DueAt = base.Add(4 * time.Hour)
	req.Attempts = 2
	if err := r.Save(req); err != nil {
		t.Fatalf("re-Save failed: %v", err)
	}

	pending, err := r.ListPending()
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending request, got %d", len(pending))
	}
	if pending[0].Attempts != 2 || !pending[0].DueAt.Equal(req.DueAt) {
		t.Errorf("expected updated due time and attempts, got %+v", pending[0])
	}
}

func TestListPending_OrderedByDueThenInsertion(t *testing.T) {
	r := tempRepo(t)
	for _, req := range []domain.DeferredRequest{
		request("late", 3*time.Hour),
		request("first-tie", time.Hour),
		request("second-tie", time.Hour),
		request("early", 30*time.Minute),
	} {
		if err := r.Save(req); err != nil {
			t.Fatalf("Save(%s) failed: %v", req.ID, err)
		}
	}

	pending, err := r.ListPending()
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	var ids []string
	for _, p := range pending {
		ids = append(ids, p.ID)
	}
	want := []string{"early", "first-tie", "second-tie", "late"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSetStatus_RemovesFromPending(t *testing.T) {
	r := tempRepo(t)
	for _, id := range []string{"a", "b"} {
		if err := r.Save(request(id, time.Hour)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	if err := r.SetStatus("a", StatusCancelled, "cancelled by user"); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	pending, _ := r.ListPending()
	if len(pending) != 1 || pending[0].ID != "b" {
		t.Errorf("expected only b pending, got %+v", pending)
	}
	rec, _ := r.Get("a")
	if rec.Status != StatusCancelled || rec.Detail != "cancelled by user" {
		t.Errorf("expected cancelled record, got %+v", rec)
	}
}

func TestSetStatus_NotFound(t *testing.T) {
	r := tempRepo(t)
	err := r.SetStatus("missing", StatusDone, "")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_Missing(t *testing.T) {
	r := tempRepo(t)
	got, err := r.Get("nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestListRecent_Limit(t *testing.T) {
	r := tempRepo(t)
	for _, id := range []string{"a", "b", "c"} {
		if err := r.Save(request(id, time.Hour)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	recent, err := r.ListRecent(2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("expected 2 records, got %d", len(recent))
	}
}

func TestDeleteOlderThan_KeepsPending(t *testing.T) {
	r := tempRepo(t)
	for _, id := range []string{"a", "b"} {
		if err := r.Save(request(id, time.Hour)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if err := r.SetStatus("a", StatusDone, ""); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	n, err := r.DeleteOlderThan(-time.Minute)
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted, got %d", n)
	}
	if rec, _ := r.Get("b"); rec == nil {
		t.Error("expected pending record to survive")
	}
}
