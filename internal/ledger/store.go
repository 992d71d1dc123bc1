package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/drew/cirun/internal/fsutil"
)

// FileName is the ledger file name inside the log directory
const FileName = ".db.json"

// CorruptionError reports a ledger file that exists but cannot be read
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("ledger %s is unreadable: %v", e.Path, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// IsCorruptionError checks if the error is or wraps a CorruptionError
func IsCorruptionError(err error) bool {
	var ce *CorruptionError
	return err != nil && errors.As(err, &ce)
}

// Path returns the ledger location for a log directory
func Path(logDir string) string {
	return filepath.Join(logDir, FileName)
}

// Load reads every record from path. A missing file is an empty ledger; any
// other read or decode failure is a *CorruptionError.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, &CorruptionError{Path: path, Err: err}
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &CorruptionError{Path: path, Err: err}
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Save replaces the ledger at path with records. The content is written to a
// temporary file in the same directory and renamed over the target.
func Save(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return fsutil.WriteFileAtomic(path, data, 0o644)
}
