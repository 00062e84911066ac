package history

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nathanbeddoewebdev/carbonq/internal/config"
	"nathanbeddoewebdev/carbonq/internal/database"
	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/history"
)

func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	config.SetPath(filepath.Join(dir, "config.json"))
	t.Cleanup(config.ResetPath)
	database.SetPath(filepath.Join(dir, "carbonq.db"))
	t.Cleanup(database.ResetPath)
	return dir
}

func seedRecords(t *testing.T, records ...history.Record) {
	t.Helper()
	repo, err := history.Open()
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer repo.Close()
	for i := range records {
		if err := repo.Save(&records[i]); err != nil {
			t.Fatalf("save record: %v", err)
		}
	}
}

func record(origin string, age time.Duration, joules, grams float64) history.Record {
	return history.Record{
		Timestamp:       time.Now().Add(-age),
		Origin:          origin,
		SQL:             "SELECT count(*) FROM orders",
		Urgency:         domain.UrgencyMedium,
		Strategy:        domain.StrategyBalanced,
		Reason:          "medium urgency",
		CarbonIntensity: 300,
		CarbonSource:    domain.SourceHistorical,
		DurationMs:      12.5,
		EnergyJoules:    joules,
		CarbonGrams:     grams,
		Tier:            domain.TierEstimated,
		Outcome:         history.OutcomeSuccess,
	}
}

func execHistory(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestList_Empty(t *testing.T) {
	setupTestEnv(t)

	out, err := execHistory(t, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "No executions found.") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestList_TableWithTotals(t *testing.T) {
	setupTestEnv(t)
	seedRecords(t,
		record(history.OriginCLI, time.Hour, 10, 0.5),
		record(history.OriginScheduler, time.Minute, 20, 1.0),
	)

	out, err := execHistory(t, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, want := range []string{"STRATEGY", "balanced", "scheduler", "cli", "2 execution(s), 30.00 J, 1.5000 gCO2 total"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestList_OriginFilterJSON(t *testing.T) {
	setupTestEnv(t)
	seedRecords(t,
		record(history.OriginCLI, time.Hour, 10, 0.5),
		record(history.OriginAPI, time.Minute, 20, 1.0),
	)

	out, err := execHistory(t, "list", "--origin", "api", "-o", "json")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var got []history.Record
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(got) != 1 || got[0].Origin != history.OriginAPI {
		t.Errorf("got %+v, want one api record", got)
	}
}

func TestList_InvalidFlags(t *testing.T) {
	setupTestEnv(t)

	if _, err := execHistory(t, "list", "--limit", "0"); err == nil {
		t.Error("expected error for zero limit")
	}
	if _, err := execHistory(t, "list", "-o", "csv"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestPrune(t *testing.T) {
	setupTestEnv(t)
	seedRecords(t,
		record(history.OriginCLI, 48*time.Hour, 10, 0.5),
		record(history.OriginCLI, time.Minute, 20, 1.0),
	)

	out, err := execHistory(t, "prune", "--older-than", "1d")
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if !strings.Contains(out, "Removed 1 execution(s).") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if _, err := execHistory(t, "prune"); err == nil {
		t.Error("expected error without --older-than")
	}
}

func TestExport_ToDefaultDir(t *testing.T) {
	dir := setupTestEnv(t)
	seedRecords(t, record(history.OriginCLI, time.Hour, 10, 0.5))

	out, err := execHistory(t, "export")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(out, "Exported 1 execution(s) to ") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "exports", "carbonq-history-*.json"))
	if len(matches) != 1 {
		t.Fatalf("expected one export file, found %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var got []history.Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid export JSON: %v", err)
	}
	if len(got) != 1 || got[0].EnergyJoules != 10 {
		t.Errorf("export = %+v", got)
	}
}

func TestExport_StdoutSince(t *testing.T) {
	setupTestEnv(t)
	seedRecords(t,
		record(history.OriginCLI, 10*24*time.Hour, 10, 0.5),
		record(history.OriginCLI, time.Hour, 20, 1.0),
	)

	out, err := execHistory(t, "export", "--stdout", "--since", "7d")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	var got []history.Record
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(got) != 1 || got[0].EnergyJoules != 20 {
		t.Errorf("export = %+v, want only the recent record", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   float64
		want string
	}{
		{12.4, "12ms"},
		{1500, "1.5s"},
		{120_000, "2m"},
		{7_200_000, "2h"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.ms); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}
