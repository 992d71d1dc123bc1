package suite

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern matches test modules when no pattern is configured
const DefaultPattern = "test_*"

// AllGroupName names the synthetic group that combines several roots
const AllGroupName = "all"

// Loader turns one test module into a group of cases
type Loader interface {
	Load(path string) (*Node, error)
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(path string) (*Node, error)

// Load calls f(path)
func (f LoaderFunc) Load(path string) (*Node, error) {
	return f(path)
}

// Root is one source tree to search for test modules
type Root struct {
	Name string
	Path string
}

// Collector discovers test modules under one or more roots
type Collector struct {
	Loader   Loader
	Pattern  string
	SkipDirs []string
	Logger   *slog.Logger
}

// NewCollector creates a Collector. An empty pattern means DefaultPattern.
func NewCollector(loader Loader, pattern string, skipDirs []string, logger *slog.Logger) *Collector {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Collector{Loader: loader, Pattern: pattern, SkipDirs: skipDirs, Logger: logger}
}

// Collect builds a suite tree from roots. A module that fails to load becomes a
// FailedImport leaf; only unusable roots or an invalid pattern are errors.
func (c *Collector) Collect(roots []Root) (*Node, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("no test roots given")
	}
	if !doublestar.ValidatePattern(c.Pattern) {
		return nil, fmt.Errorf("invalid test module pattern %q", c.Pattern)
	}

	var groups []*Node
	for _, root := range roots {
		g, err := c.collectRoot(root)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	if len(groups) == 1 {
		return groups[0], nil
	}
	return NewGroup(AllGroupName, groups...), nil
}

func (c *Collector) collectRoot(root Root) (*Node, error) {
	dir := filepath.Clean(root.Path)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("test root does not exist: %s", dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("test root is not a directory: %s", dir)
	}

	name := root.Name
	if name == "" {
		name = filepath.Base(dir)
	}
	group := NewGroup(name)

	skip := make(map[string]bool, len(c.SkipDirs))
	for _, d := range c.SkipDirs {
		skip[d] = true
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			c.Logger.Warn("cannot read path during discovery", "path", path, "error", err)
			if d != nil && d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != dir && (strings.HasPrefix(d.Name(), ".") || skip[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}
		if !c.matches(dir, path) {
			return nil
		}
		group.Add(c.load(path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	c.Logger.Debug("collected test root", "root", dir, "modules", len(group.Children), "tests", Count(group))
	return group, nil
}

func (c *Collector) matches(root, path string) bool {
	name := filepath.Base(path)
	if strings.Contains(c.Pattern, "/") {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return false
		}
		name = filepath.ToSlash(rel)
	}
	ok, err := doublestar.Match(c.Pattern, name)
	return err == nil && ok
}

// load never fails: a loader error or panic becomes a FailedImport leaf
func (c *Collector) load(path string) (n *Node) {
	defer func() {
		if r := recover(); r != nil {
			c.Logger.Warn("test module loader panicked", "module", path, "panic", r)
			n = NewFailedImport(path, fmt.Errorf("loader panic: %v", r))
		}
	}()

	mod, err := c.Loader.Load(path)
	if err != nil {
		c.Logger.Warn("failed to import test module", "module", path, "error", err)
		return NewFailedImport(path, err)
	}
	if mod == nil {
		return NewFailedImport(path, fmt.Errorf("loader returned no suite"))
	}
	return mod
}
