package coverage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/drew/cirun/internal/fsutil"
	"github.com/drew/cirun/internal/gomod"
	"golang.org/x/tools/cover"
)

// DataFileName is the merged profile written by Persist
const DataFileName = "coverage.out"

var unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ProfileSession implements Session on top of Go cover profiles. While the
// session is recording, engines ask ProfilePath for a file to pass to
// go test -coverprofile; Persist merges whatever those runs wrote.
type ProfileSession struct {
	mu       sync.Mutex
	logger   *slog.Logger
	dataFile string
	sources  []string
	omit     []string
	index    *gomod.Index

	scratch string
	active  bool
	paths   []string
	files   []FileCoverage
}

// NewProfileSession creates a session that persists merged data to dataFile.
// An empty dataFile keeps the merged data in memory only.
func NewProfileSession(dataFile string, logger *slog.Logger) *ProfileSession {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ProfileSession{dataFile: dataFile, logger: logger, index: gomod.NewIndex(nil)}
}

// Configure sets the measured source directories and the file globs to omit
func (s *ProfileSession) Configure(sources []string, omit []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return ErrActive
	}

	for _, pattern := range omit {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid omit pattern %q", pattern)
		}
	}
	abs := make([]string, 0, len(sources))
	for _, src := range sources {
		a, err := filepath.Abs(src)
		if err != nil {
			return fmt.Errorf("invalid coverage source %s: %w", src, err)
		}
		abs = append(abs, a)
	}
	s.sources = abs
	s.omit = append([]string(nil), omit...)
	s.index = gomod.NewIndex(abs)
	return nil
}

// Sources returns the configured source directories
func (s *ProfileSession) Sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sources...)
}

// CoverPackages returns -coverpkg patterns covering every configured source
// directory that lives inside a Go module
func (s *ProfileSession) CoverPackages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pkgs []string
	for _, src := range s.sources {
		m, err := gomod.FindModule(src)
		if err != nil {
			s.logger.Debug("coverage source is not inside a Go module", "source", src, "error", err)
			continue
		}
		ip, err := m.ImportPath(src)
		if err != nil {
			continue
		}
		pkgs = append(pkgs, ip+"/...")
	}
	return pkgs
}

// Start opens a new recording window, discarding data from earlier windows
func (s *ProfileSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return ErrActive
	}
	dir, err := os.MkdirTemp("", "cirun-cover-*")
	if err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}
	s.scratch = dir
	s.active = true
	s.paths = nil
	s.files = nil
	return nil
}

// ProfilePath returns a fresh profile file for one engine invocation. It
// reports false when the session is not recording.
func (s *ProfileSession) ProfilePath(unit string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return "", false
	}
	name := unsafeNameRe.ReplaceAllString(filepath.Base(unit), "_")
	path := filepath.Join(s.scratch, fmt.Sprintf("%04d-%s.out", len(s.paths), name))
	s.paths = append(s.paths, path)
	return path, true
}

// Stop closes the recording window. Stopping an idle session is a no-op.
func (s *ProfileSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	return nil
}

// Persist merges the profiles written during the last window, drops omitted
// files and writes the result to the data file
func (s *ProfileSession) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return ErrActive
	}
	if s.scratch == "" {
		return nil
	}
	defer func() {
		_ = os.RemoveAll(s.scratch)
		s.scratch = ""
	}()

	var raw []*cover.Profile
	for _, path := range s.paths {
		profiles, err := cover.ParseProfiles(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// the run produced no profile, e.g. the package failed to build
				continue
			}
			s.logger.Warn("skipping unreadable cover profile", "profile", path, "error", err)
			continue
		}
		raw = append(raw, profiles...)
	}

	var kept []*cover.Profile
	s.files = nil
	for _, p := range mergeProfiles(raw) {
		path, ok := s.index.Resolve(p.FileName)
		if !ok {
			path = p.FileName
		}
		if omitted(path, s.omit) {
			continue
		}
		kept = append(kept, p)
		s.files = append(s.files, fileCoverage(p, path))
	}
	s.logger.Debug("persisted coverage", "profiles", len(s.paths), "files", len(s.files))

	if s.dataFile == "" || len(kept) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.dataFile), 0o755); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(s.dataFile, formatProfile(kept), 0o644)
}

// Files returns per-file coverage from the last Persist
func (s *ProfileSession) Files() []FileCoverage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FileCoverage(nil), s.files...)
}

// stoppedFiles returns the persisted data, or an error when rendering is not
// possible yet
func (s *ProfileSession) stoppedFiles() ([]FileCoverage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return nil, ErrActive
	}
	if _, total := Totals(s.files); total == 0 {
		return nil, ErrNoData
	}
	return append([]FileCoverage(nil), s.files...), nil
}

// RenderHTML writes an index page and one page per source file into dir and
// returns the total statement coverage
func (s *ProfileSession) RenderHTML(dir string) (float64, error) {
	files, err := s.stoppedFiles()
	if err != nil {
		return 0, err
	}
	return writeHTML(dir, files)
}

// RenderXML writes a Cobertura report to path
func (s *ProfileSession) RenderXML(path string) error {
	files, err := s.stoppedFiles()
	if err != nil {
		return err
	}
	return writeCobertura(path, files, s.Sources())
}
