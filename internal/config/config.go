// Package config handles loading, validation, and merging of cirun configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultConfigFile is looked up in the working directory when no path is given
const DefaultConfigFile = "cirun.toml"

// Config represents the complete cirun configuration
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
	Coverage CoverageConfig `toml:"coverage"`
	Roots    []RootConfig   `toml:"roots"`
}

// DefaultsConfig holds run-wide settings
type DefaultsConfig struct {
	// Directory for the ledger, reports and logs
	LogDir string `toml:"logDir" doc:"Directory for the ledger, coverage reports and logs"`
	// Glob matched against test module file names
	Pattern string `toml:"pattern" doc:"Glob matched against test module file names (engine default when empty)"`
	// Test engine: go or junit
	Engine string `toml:"engine" doc:"Test engine: go runs go test, junit replays JUnit XML reports" enum:"go,junit"`
	// Abort when a test module fails to import or coverage cannot be rendered
	Strict bool `toml:"strict" doc:"Abort when a test module fails to import or coverage reports cannot be rendered"`
	// Log detail: 0 quiet, 1 summary, 2 per-test, 3 debug
	Verbosity *int `toml:"verbosity" doc:"Log detail: 0 quiet, 1 summary, 2 per-test, 3 debug"`
	// Exit with status 1 when tests fail
	FailOnTestFailure bool `toml:"failOnTestFailure" doc:"Exit with status 1 when tests fail or error"`
	// Directory names skipped during discovery
	SkipDirs []string `toml:"skipDirs" doc:"Directory names skipped during discovery"`
}

// CoverageConfig holds coverage settings
type CoverageConfig struct {
	// Whether coverage is recorded
	Enabled *bool `toml:"enabled" doc:"Whether coverage is recorded"`
	// Repository root; its parent path is stripped from published reports
	Repo string `toml:"repo" doc:"Repository root; its parent path is stripped from published reports"`
	// Directories measured for coverage
	Sources []string `toml:"sources" doc:"Directories measured for coverage (repo when empty)"`
	// File globs left out of coverage
	Omit []string `toml:"omit" doc:"File globs left out of coverage"`
}

// RootConfig is one source tree searched for test modules
type RootConfig struct {
	// Group name for the tree
	Name string `toml:"name" doc:"Group name for the tree (directory name when empty)"`
	// Directory searched for test modules
	Path string `toml:"path" doc:"Directory searched for test modules" required:"true"`
}

// LoadConfig loads configuration from a TOML file. With an empty path it looks
// for cirun.toml in the working directory and returns nil, nil if none exists.
func LoadConfig(path string) (*Config, error) {
	explicitPath := path != ""
	if path == "" {
		path = DefaultConfigFile
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicitPath {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, nil
	}

	var cfg Config
	metadata, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	undecoded := metadata.Undecoded()
	if len(undecoded) > 0 {
		var unknownFields []string
		for _, key := range undecoded {
			unknownFields = append(unknownFields, key.String())
		}
		return nil, fmt.Errorf("unknown fields in config: %s", strings.Join(unknownFields, ", "))
	}

	for i, root := range cfg.Roots {
		if root.Path == "" {
			return nil, fmt.Errorf("roots[%d] is missing required field: path", i)
		}
	}

	return &cfg, nil
}

// MergeWithDefaults fills unset fields from GetDefaults
func MergeWithDefaults(cfg *Config) Config {
	defaults := GetDefaults()

	if cfg == nil {
		return defaults
	}

	if cfg.Defaults.LogDir == "" {
		cfg.Defaults.LogDir = defaults.Defaults.LogDir
	}
	if cfg.Defaults.Engine == "" {
		cfg.Defaults.Engine = defaults.Defaults.Engine
	}
	if cfg.Defaults.Verbosity == nil {
		cfg.Defaults.Verbosity = defaults.Defaults.Verbosity
	}
	if cfg.Defaults.SkipDirs == nil {
		cfg.Defaults.SkipDirs = defaults.Defaults.SkipDirs
	}

	if cfg.Coverage.Enabled == nil {
		cfg.Coverage.Enabled = defaults.Coverage.Enabled
	}
	if cfg.Coverage.Repo == "" {
		cfg.Coverage.Repo = defaults.Coverage.Repo
	}
	if cfg.Coverage.Omit == nil {
		cfg.Coverage.Omit = defaults.Coverage.Omit
	}

	return *cfg
}

// ResolvePaths makes every path absolute. Relative paths are taken against
// baseDir, normally the directory holding the config file; a relative baseDir
// is taken against the working directory.
func (c *Config) ResolvePaths(baseDir string) {
	c.Defaults.LogDir = resolve(baseDir, c.Defaults.LogDir)
	c.Coverage.Repo = resolve(baseDir, c.Coverage.Repo)
	for i, src := range c.Coverage.Sources {
		c.Coverage.Sources[i] = resolve(baseDir, src)
	}
	for i := range c.Roots {
		c.Roots[i].Path = resolve(baseDir, c.Roots[i].Path)
	}
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	joined := filepath.Join(baseDir, path)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return joined
	}
	return abs
}

// CoverageEnabled reports whether coverage is switched on
func (c *Config) CoverageEnabled() bool {
	return c.Coverage.Enabled == nil || *c.Coverage.Enabled
}

// VerbosityLevel returns the configured verbosity or the default
func (c *Config) VerbosityLevel() int {
	if c.Defaults.Verbosity == nil {
		return DefaultVerbosity
	}
	return *c.Defaults.Verbosity
}

// GenerateDefaultConfig creates a minimal cirun.toml file
func GenerateDefaultConfig(path string) (err error) {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", cerr)
		}
	}()

	content := `# cirun configuration file
# Full reference: docs/configuration.md

[defaults]
logDir = ".cirun"
engine = "go"
strict = false

[coverage]
repo = "."
omit = ["**/testdata/**"]

[[roots]]
name = "unit"
path = "."
`

	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
