package config

import (
	"fmt"
	"strings"

	"codeaug/internal/tokenizer"
)

// DirectivesConfig lists the markers recognized in source files. Every list may
// hold several alternative markers; the first one is used when writing.
type DirectivesConfig struct {
	GenCodeStart   []string `yaml:"gen_code_start"`
	GenCodeEnd     []string `yaml:"gen_code_end"`
	InlineGenCode  []string `yaml:"inline_gen_code"`
	SkipCodeStart  []string `yaml:"skip_code_start"`
	SkipCodeEnd    []string `yaml:"skip_code_end"`
	EmbeddedString []string `yaml:"embedded_string"`
	EmbeddedJSON   []string `yaml:"embedded_json"`

	// Optional markers that open and close a nesting level on augmenting code lines
	NestedLevelStart []string `yaml:"nested_level_start,omitempty"`
	NestedLevelEnd   []string `yaml:"nested_level_end,omitempty"`
}

// BucketConfig routes augmenting codes identified by its markers to a request file
// and evaluates them with its scripts.
type BucketConfig struct {
	Name         string   `yaml:"name"`
	Markers      []string `yaml:"markers"`
	RequestFile  string   `yaml:"request_file"`
	ResponseFile string   `yaml:"response_file"`
	Scripts      []string `yaml:"scripts,omitempty"`
	EntryPackage string   `yaml:"entry_package,omitempty"`
}

// SourceConfig selects source files under a base directory.
type SourceConfig struct {
	BaseDir string   `yaml:"base_dir"`
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// DefaultDirectives returns the stock markers.
func DefaultDirectives() DirectivesConfig {
	return DirectivesConfig{
		GenCodeStart:     []string{"//:GEN_CODE_START:"},
		GenCodeEnd:       []string{"//:GEN_CODE_END:"},
		InlineGenCode:    []string{"/*:GEN_CODE:*/"},
		SkipCodeStart:    []string{"//:SKIP_CODE_START:"},
		SkipCodeEnd:      []string{"//:SKIP_CODE_END:"},
		EmbeddedString:   []string{"//:STR:"},
		EmbeddedJSON:     []string{"//:JSON:"},
		NestedLevelStart: []string{"{"},
		NestedLevelEnd:   []string{"}"},
	}
}

// Validate checks that the required marker lists are present and that the nesting
// markers come in pairs.
func (d DirectivesConfig) Validate() error {
	required := []struct {
		name    string
		markers []string
	}{
		{"gen_code_start", d.GenCodeStart},
		{"gen_code_end", d.GenCodeEnd},
		{"embedded_string", d.EmbeddedString},
		{"embedded_json", d.EmbeddedJSON},
	}
	for _, r := range required {
		if len(nonBlank(r.markers)) == 0 {
			return fmt.Errorf("directive %s needs at least one marker", r.name)
		}
	}
	if (len(nonBlank(d.NestedLevelStart)) == 0) != (len(nonBlank(d.NestedLevelEnd)) == 0) {
		return fmt.Errorf("nested_level_start and nested_level_end must be set together")
	}
	return nil
}

// Markers builds tokenizer markers from the directives and the bucket markers, one
// bucket per configured bucket in order.
func (c *Config) Markers() tokenizer.Markers {
	d := c.Directives
	m := tokenizer.Markers{
		GenCodeStart:     nonBlank(d.GenCodeStart),
		GenCodeEnd:       nonBlank(d.GenCodeEnd),
		InlineGenCode:    nonBlank(d.InlineGenCode),
		SkipCodeStart:    nonBlank(d.SkipCodeStart),
		SkipCodeEnd:      nonBlank(d.SkipCodeEnd),
		EmbeddedString:   nonBlank(d.EmbeddedString),
		EmbeddedJSON:     nonBlank(d.EmbeddedJSON),
		NestedLevelStart: nonBlank(d.NestedLevelStart),
		NestedLevelEnd:   nonBlank(d.NestedLevelEnd),
	}
	for _, b := range c.Buckets {
		m.AugCodeBuckets = append(m.AugCodeBuckets, nonBlank(b.Markers))
	}
	return m
}

func nonBlank(markers []string) []string {
	var out []string
	for _, m := range markers {
		if strings.TrimSpace(m) != "" {
			out = append(out, m)
		}
	}
	return out
}
