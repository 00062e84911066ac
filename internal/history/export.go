package history

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Export writes records to w as an indented JSON array.
func Export(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("history: encode export: %w", err)
	}
	return nil
}

// ExportToDir writes records to a timestamped JSON file under dir and
// returns its path.
func ExportToDir(dir string, records []Record, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("history: create export directory: %w", err)
	}
	name := fmt.Sprintf("carbonq-history-%s.json", at.UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("history: create export file: %w", err)
	}
	if err := Export(f, records); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("history: close export file: %w", err)
	}
	return path, nil
}
