package config

import (
	"codeaug/internal/logging"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`           // debug, info, warn, error
	Format     string          `yaml:"format" json:"format,omitempty"`         // json, console
	Dir        string          `yaml:"dir" json:"dir,omitempty"`               // per-category log files; empty logs to stderr
	Categories map[string]bool `yaml:"categories,omitempty" json:"categories,omitempty"` // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Categories not listed are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

// ToLogging converts the config section into logging.Config. A relative Dir is
// resolved against workspace.
func (c LoggingConfig) ToLogging(workspace string) logging.Config {
	out := logging.Config{
		Level:      c.Level,
		JSONFormat: c.Format == "json",
		Categories: c.Categories,
	}
	if c.Dir != "" {
		out.Dir = Resolve(workspace, c.Dir)
	}
	return out
}
