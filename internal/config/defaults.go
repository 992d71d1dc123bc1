package config

// Engine names accepted in defaults.engine
const (
	EngineGo    = "go"
	EngineJUnit = "junit"
)

// DefaultVerbosity logs a line per finished test
const DefaultVerbosity = 2

// GetDefaults returns the default configuration
func GetDefaults() Config {
	return Config{
		Defaults: DefaultsConfig{
			LogDir:    ".cirun",
			Engine:    EngineGo,
			Verbosity: intPtr(DefaultVerbosity),
			SkipDirs:  []string{"vendor", "node_modules"},
		},
		Coverage: CoverageConfig{
			Enabled: boolPtr(true),
			Repo:    ".",
			Omit:    []string{"**/testdata/**"},
		},
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func intPtr(i int) *int {
	return &i
}
