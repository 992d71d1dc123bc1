// Package publish prepares rendered coverage reports for serving by removing
// build-machine paths from file names and contents.
package publish

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/drew/cirun/internal/fsutil"
	"golang.org/x/sync/errgroup"
)

// maxParallel bounds how many report files are rewritten at once
const maxParallel = 8

var separatorRe = regexp.MustCompile(`^[a-zA-Z]:[/\\]|[/\\]`)

// FlattenPath turns a filesystem path into a file-name-safe form by replacing a
// leading drive and every separator with "_", e.g. /home/ci/repo -> _home_ci_repo
func FlattenPath(path string) string {
	return separatorRe.ReplaceAllString(path, "_")
}

// FileError records a report file that could not be sanitized
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Report summarizes a sanitization pass
type Report struct {
	Scanned   int
	Rewritten []string
	Renamed   map[string]string
	Failed    []FileError
}

// SanitizePaths removes the parent directory of sensitiveRoot from every HTML
// file under reportDir. Both the flattened form used in generated file names and
// the literal path used in text are removed, then files whose names carried the
// flattened form are renamed. Each file is handled independently: failures are
// logged and collected in the report, never returned. Only failing to list
// reportDir is an error.
func SanitizePaths(reportDir, sensitiveRoot string, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if abs, err := filepath.Abs(sensitiveRoot); err == nil {
		sensitiveRoot = abs
	}
	parent := filepath.Dir(filepath.Clean(sensitiveRoot))
	pattern := FlattenPath(parent) + "_"
	literals := []string{parent + string(filepath.Separator)}
	if slashed := filepath.ToSlash(parent) + "/"; slashed != literals[0] {
		literals = append(literals, slashed)
	}

	files, err := doublestar.FilepathGlob(filepath.Join(reportDir, "**", "*.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to list report files in %s: %w", reportDir, err)
	}
	sort.Strings(files)

	report := &Report{Scanned: len(files), Renamed: make(map[string]string)}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(maxParallel)
	for _, file := range files {
		file := file
		g.Go(func() error {
			rewritten, renamedTo, err := sanitizeFile(file, pattern, literals)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("failed to sanitize report file", "file", file, "error", err)
				report.Failed = append(report.Failed, FileError{Path: file, Err: err})
				return nil
			}
			if rewritten {
				report.Rewritten = append(report.Rewritten, file)
			}
			if renamedTo != "" {
				report.Renamed[file] = renamedTo
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Rewritten)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Path < report.Failed[j].Path })
	logger.Debug("sanitized report paths", "dir", reportDir, "files", report.Scanned,
		"rewritten", len(report.Rewritten), "renamed", len(report.Renamed), "failed", len(report.Failed))
	return report, nil
}

func sanitizeFile(path, pattern string, literals []string) (bool, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, "", err
	}

	content := strings.ReplaceAll(string(data), pattern, "")
	for _, lit := range literals {
		content = strings.ReplaceAll(content, lit, "")
	}

	rewritten := false
	if content != string(data) {
		if err := fsutil.WriteFileAtomic(path, []byte(content), info.Mode().Perm()); err != nil {
			return false, "", err
		}
		rewritten = true
	}

	base := filepath.Base(path)
	if !strings.Contains(base, pattern) {
		return rewritten, "", nil
	}
	target := filepath.Join(filepath.Dir(path), strings.ReplaceAll(base, pattern, ""))
	if _, err := os.Lstat(target); err == nil {
		return rewritten, "", fmt.Errorf("rename: %s already exists", target)
	}
	if err := os.Rename(path, target); err != nil {
		return rewritten, "", fmt.Errorf("rename: %w", err)
	}
	return rewritten, target, nil
}
