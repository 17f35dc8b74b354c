package world

import (
	"path"
	"path/filepath"
	"strings"
)

// SourceSet selects files under one base directory.
type SourceSet struct {
	// BaseDir is the directory relative paths are computed against.
	BaseDir string `yaml:"base_dir" json:"base_dir"`
	// Include keeps only files matching at least one pattern. Empty keeps every file.
	// Patterns match the slash-separated relative path or the file name.
	Include []string `yaml:"include" json:"include,omitempty"`
	// Exclude skips matching paths and directories. Supports simple names
	// (e.g. "node_modules") and glob patterns (e.g. "vendor/*").
	Exclude []string `yaml:"exclude" json:"exclude,omitempty"`
}

// DefaultExcludePatterns are skipped in every source set.
var DefaultExcludePatterns = []string{
	".git",
	".codeaug",
	".hg",
	".svn",
	"node_modules",
	".venv",
	".cache",
}

func normalizePattern(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimSuffix(p, "/")
	p = strings.TrimSuffix(p, "\\")
	return filepath.ToSlash(p)
}

// isIgnoredRel reports whether a relative path should be ignored.
func isIgnoredRel(rel, name string, patterns []string) bool {
	rel = filepath.ToSlash(rel)
	for _, raw := range patterns {
		p := normalizePattern(raw)
		if p == "" {
			continue
		}
		// Glob pattern
		if strings.ContainsAny(p, "*?[]") {
			if ok, _ := path.Match(p, rel); ok {
				return true
			}
			if ok, _ := path.Match(p, name); ok {
				return true
			}
			// Handle directory globs like "vendor/*"
			if strings.HasSuffix(p, "/*") {
				prefix := strings.TrimSuffix(p, "/*")
				if strings.HasPrefix(rel, prefix+"/") {
					return true
				}
			}
			continue
		}
		// Simple dir/file name
		if name == p || rel == p {
			return true
		}
		// Prefix match for nested paths
		if strings.HasPrefix(rel, p+"/") {
			return true
		}
	}
	return false
}

// isIncludedRel reports whether a file passes the include patterns.
func isIncludedRel(rel, name string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	rel = filepath.ToSlash(rel)
	for _, raw := range patterns {
		p := normalizePattern(raw)
		if p == "" {
			continue
		}
		// "**/" matches at any depth
		p = strings.TrimPrefix(p, "**/")
		if ok, _ := path.Match(p, rel); ok {
			return true
		}
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Selects reports whether a path relative to BaseDir is a file the set would
// discover, applying DefaultExcludePatterns, Exclude and Include.
func (s SourceSet) Selects(rel string) bool {
	rel = filepath.ToSlash(rel)
	name := path.Base(rel)
	if s.Skips(rel) {
		return false
	}
	return isIncludedRel(rel, name, s.Include)
}

// Skips reports whether a path relative to BaseDir, or any of its parent
// directories, is excluded from the set.
func (s SourceSet) Skips(rel string) bool {
	rel = filepath.ToSlash(rel)
	parts := strings.Split(rel, "/")
	for i := range parts {
		sub := strings.Join(parts[:i+1], "/")
		name := parts[i]
		if isIgnoredRel(sub, name, DefaultExcludePatterns) || isIgnoredRel(sub, name, s.Exclude) {
			return true
		}
	}
	return false
}
