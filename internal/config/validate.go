package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationResult holds the results of config validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

func (r *ValidationResult) addError(field, msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: msg})
}

func (r *ValidationResult) addWarning(field, msg string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: msg})
}

func newResult() *ValidationResult {
	return &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}
}

// ValidateConfig validates an already-loaded config
func ValidateConfig(cfg *Config) (*ValidationResult, error) {
	result := newResult()
	if cfg == nil {
		return result, nil
	}

	validateDefaults(&cfg.Defaults, result)
	validateCoverage(&cfg.Coverage, cfg.Defaults.Engine, result)
	validateRoots(cfg.Roots, result)
	return result, nil
}

// ValidateConfigFile validates a TOML config file
func ValidateConfigFile(path string) (*ValidationResult, error) {
	result := newResult()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	var cfg Config
	metadata, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		result.addError("", fmt.Sprintf("Invalid TOML syntax: %v", err))
		return result, nil
	}

	for _, key := range metadata.Undecoded() {
		result.addError(key.String(), "Unknown configuration field")
	}

	validateDefaults(&cfg.Defaults, result)
	validateCoverage(&cfg.Coverage, cfg.Defaults.Engine, result)
	validateRoots(cfg.Roots, result)
	return result, nil
}

// validateDefaults validates the defaults section
func validateDefaults(defaults *DefaultsConfig, result *ValidationResult) {
	if defaults.Engine != "" {
		validEngines := []string{EngineGo, EngineJUnit}
		if !contains(validEngines, defaults.Engine) {
			result.addError("defaults.engine",
				fmt.Sprintf("Invalid engine '%s'. Valid options: %s", defaults.Engine, strings.Join(validEngines, ", ")))
		}
	}

	if defaults.Pattern != "" && !doublestar.ValidatePattern(defaults.Pattern) {
		result.addError("defaults.pattern", fmt.Sprintf("Invalid glob pattern '%s'", defaults.Pattern))
	}

	if v := defaults.Verbosity; v != nil && (*v < 0 || *v > 3) {
		result.addError("defaults.verbosity", "Verbosity must be between 0 and 3")
	}

	for _, dir := range defaults.SkipDirs {
		if strings.ContainsAny(dir, `/\`) {
			result.addWarning("defaults.skipDirs",
				fmt.Sprintf("'%s' contains a path separator; skipDirs match directory names only", dir))
		}
	}
}

// validateCoverage validates the coverage section
func validateCoverage(cov *CoverageConfig, engine string, result *ValidationResult) {
	for _, pattern := range cov.Omit {
		if !doublestar.ValidatePattern(pattern) {
			result.addError("coverage.omit", fmt.Sprintf("Invalid glob pattern '%s'", pattern))
		}
	}

	if engine == EngineJUnit && cov.Enabled != nil && *cov.Enabled {
		result.addWarning("coverage.enabled", "Coverage is not recorded when replaying JUnit reports")
	}
	if cov.Enabled != nil && !*cov.Enabled && len(cov.Sources) > 0 {
		result.addWarning("coverage.sources", "Coverage sources are set but coverage is disabled")
	}
}

// validateRoots validates the [[roots]] tables
func validateRoots(roots []RootConfig, result *ValidationResult) {
	seen := make(map[string]bool)
	for i, root := range roots {
		prefix := fmt.Sprintf("roots[%d]", i)
		if root.Path == "" {
			result.addError(prefix+".path", "Root must have a path")
			continue
		}
		if root.Name == "" {
			continue
		}
		if seen[root.Name] {
			result.addWarning(prefix+".name", fmt.Sprintf("Duplicate root name '%s'", root.Name))
		}
		seen[root.Name] = true
	}
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// PrintValidationResult prints the validation result in a human-readable format
func PrintValidationResult(w io.Writer, path string, result *ValidationResult) {
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(w, "📋 Validating: %s\n", path)

	if result.Valid && len(result.Warnings) == 0 {
		fmt.Fprintln(w, "✅ Configuration is valid!")
		fmt.Fprintln(w)
		return
	}

	if len(result.Errors) > 0 {
		fmt.Fprintf(w, "\n❌ Found %d error(s):\n", len(result.Errors))
		for _, err := range result.Errors {
			if err.Field != "" {
				fmt.Fprintf(w, "  • [%s] %s\n", err.Field, err.Message)
			} else {
				fmt.Fprintf(w, "  • %s\n", err.Message)
			}
		}
		fmt.Fprintln(w)
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintf(w, "⚠️  Found %d warning(s):\n", len(result.Warnings))
		for _, warn := range result.Warnings {
			if warn.Field != "" {
				fmt.Fprintf(w, "  • [%s] %s\n", warn.Field, warn.Message)
			} else {
				fmt.Fprintf(w, "  • %s\n", warn.Message)
			}
		}
		fmt.Fprintln(w)
	}

	if !result.Valid {
		fmt.Fprintln(w, "❌ Configuration is INVALID")
	} else {
		fmt.Fprintln(w, "✅ Configuration is valid (with warnings)")
	}
	fmt.Fprintln(w)
}
