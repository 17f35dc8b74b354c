package config

import (
	"codeaug/internal/world"
)

// SourceSets returns the configured sources with base directories resolved
// against workspace.
func (c *Config) SourceSets(workspace string) []world.SourceSet {
	sets := make([]world.SourceSet, 0, len(c.Sources))
	for _, s := range c.Sources {
		sets = append(sets, world.SourceSet{
			BaseDir: Resolve(workspace, s.BaseDir),
			Include: s.Include,
			Exclude: s.Exclude,
		})
	}
	return sets
}

// RequestFiles returns the bucket request files in bucket order, resolved against
// workspace.
func (c *Config) RequestFiles(workspace string) []string {
	out := make([]string, 0, len(c.Buckets))
	for _, b := range c.Buckets {
		out = append(out, Resolve(workspace, b.RequestFile))
	}
	return out
}

// ResponseFiles returns the bucket response files in bucket order, resolved
// against workspace.
func (c *Config) ResponseFiles(workspace string) []string {
	out := make([]string, 0, len(c.Buckets))
	for _, b := range c.Buckets {
		out = append(out, Resolve(workspace, b.ResponseFile))
	}
	return out
}

// ScriptFiles returns the script paths of a bucket resolved against workspace.
func (b BucketConfig) ScriptFiles(workspace string) []string {
	out := make([]string, 0, len(b.Scripts))
	for _, s := range b.Scripts {
		out = append(out, Resolve(workspace, s))
	}
	return out
}
