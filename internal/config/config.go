package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where `codeaug init` writes the configuration, relative to
// the workspace.
const DefaultConfigPath = ".codeaug/config.yaml"

// Config holds all codeaug configuration.
type Config struct {
	// Directive markers shared by every bucket
	Directives DirectivesConfig `yaml:"directives"`

	// Augmenting code buckets, each routed to its own request and response file
	Buckets []BucketConfig `yaml:"buckets"`

	// Source discovery
	Sources []SourceConfig `yaml:"sources"`

	// Stage files
	PrepFile string `yaml:"prep_file"`
	DestDir  string `yaml:"dest_dir"`

	// ChangeDetection limits output to files that change.
	ChangeDetection bool `yaml:"change_detection"`
	// FailOnChanges makes `complete` and `run` exit non-zero when any file changes.
	FailOnChanges bool `yaml:"fail_on_changes"`
	// ContentStreaming writes records one per line instead of as one JSON array.
	ContentStreaming bool `yaml:"content_streaming"`

	Eval    EvalConfig    `yaml:"eval"`
	History HistoryConfig `yaml:"history"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// EvalConfig configures script evaluation.
type EvalConfig struct {
	// Timeout bounds a single evaluation. Zero or empty disables the bound.
	Timeout string `yaml:"timeout"`
	// AllowedPackages restricts script imports. Empty uses the built-in list.
	AllowedPackages []string `yaml:"allowed_packages,omitempty"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Driver  string `yaml:"driver"` // sqlite (pure Go) or sqlite3 (cgo)
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Directives: DefaultDirectives(),
		Buckets: []BucketConfig{
			{
				Name:         "default",
				Markers:      []string{"//:AUG_CODE:"},
				RequestFile:  ".codeaug/work/augCodes.json",
				ResponseFile: ".codeaug/work/genCodes.json",
				Scripts:      []string{".codeaug/scripts/main.go"},
				EntryPackage: "main",
			},
		},
		Sources: []SourceConfig{
			{BaseDir: "src"},
		},
		PrepFile:         ".codeaug/work/prepResults.json",
		DestDir:          ".codeaug/generated",
		ChangeDetection:  true,
		FailOnChanges:    true,
		ContentStreaming: true,

		Eval: EvalConfig{
			Timeout: "30s",
		},

		History: HistoryConfig{
			Enabled: true,
			Path:    ".codeaug/history.db",
			Driver:  "sqlite",
		},

		Watch: WatchConfig{
			Debounce: "500ms",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults if config file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("CODEAUG_DEST_DIR"); dir != "" {
		c.DestDir = dir
	}
	if level := os.Getenv("CODEAUG_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if v := os.Getenv("CODEAUG_CHANGE_DETECTION"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.ChangeDetection = enabled
		}
	}
	if path := os.Getenv("CODEAUG_HISTORY_PATH"); path != "" {
		c.History.Path = path
	}
}

// GetEvalTimeout returns the evaluation timeout as a duration.
func (c *Config) GetEvalTimeout() time.Duration {
	if c.Eval.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Eval.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetWatchDebounce returns the watch debounce interval as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// ValidDrivers lists the supported history database drivers.
var ValidDrivers = []string{"sqlite", "sqlite3"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Buckets) == 0 {
		return fmt.Errorf("at least one augmenting code bucket must be configured")
	}
	names := make(map[string]bool)
	for i, b := range c.Buckets {
		if b.Name == "" {
			return fmt.Errorf("bucket %d has no name", i+1)
		}
		if names[b.Name] {
			return fmt.Errorf("duplicate bucket name: %s", b.Name)
		}
		names[b.Name] = true
		if len(nonBlank(b.Markers)) == 0 {
			return fmt.Errorf("bucket %s has no augmenting code markers", b.Name)
		}
		if b.RequestFile == "" || b.ResponseFile == "" {
			return fmt.Errorf("bucket %s needs both a request_file and a response_file", b.Name)
		}
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}
	for i, s := range c.Sources {
		if s.BaseDir == "" {
			return fmt.Errorf("source %d has no base_dir", i+1)
		}
	}
	if c.PrepFile == "" {
		return fmt.Errorf("prep_file must be set")
	}
	if c.DestDir == "" {
		return fmt.Errorf("dest_dir must be set")
	}
	if c.Eval.Timeout != "" {
		if _, err := time.ParseDuration(c.Eval.Timeout); err != nil {
			return fmt.Errorf("invalid eval timeout %q: %w", c.Eval.Timeout, err)
		}
	}

	validDriver := false
	for _, d := range ValidDrivers {
		if c.History.Driver == d {
			validDriver = true
			break
		}
	}
	if c.History.Enabled && !validDriver {
		return fmt.Errorf("invalid history driver: %s (valid: %v)", c.History.Driver, ValidDrivers)
	}

	return c.Directives.Validate()
}

// Resolve makes path absolute against workspace. Absolute paths are returned cleaned.
func Resolve(workspace, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(workspace, path)
}
