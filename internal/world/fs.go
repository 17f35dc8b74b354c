// Package world discovers the source files a run works on.
package world

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"codeaug/internal/logging"
)

// SourceFile is one discovered file.
type SourceFile struct {
	BaseDir      string
	RelativePath string // slash-separated
}

// Path joins the base directory and the relative path.
func (f SourceFile) Path() string {
	return filepath.Join(f.BaseDir, filepath.FromSlash(f.RelativePath))
}

// Scanner walks source sets.
type Scanner struct {
	excludes []string
}

// NewScanner creates a scanner applying DefaultExcludePatterns in addition to
// the excludes of each source set.
func NewScanner() *Scanner {
	return &Scanner{excludes: DefaultExcludePatterns}
}

// Discover lists the files of every set. Files of one set are sorted by relative
// path; sets keep their configured order. A file reachable from two sets is
// listed twice and left for the prepare stage to skip.
func (s *Scanner) Discover(ctx context.Context, sets []SourceSet) ([]SourceFile, error) {
	timer := logging.StartTimer(logging.CategoryWorld, "Discover")
	defer timer.Stop()

	var files []SourceFile
	for _, set := range sets {
		found, err := s.scanSet(ctx, set)
		if err != nil {
			return nil, err
		}
		logging.World("%d file(s) selected under %s", len(found), set.BaseDir)
		files = append(files, found...)
	}
	return files, nil
}

func (s *Scanner) scanSet(ctx context.Context, set SourceSet) ([]SourceFile, error) {
	root := set.BaseDir
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat base dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base dir %s is not a directory", root)
	}

	excludes := append(append([]string(nil), s.excludes...), set.Exclude...)
	var files []SourceFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if isIgnoredRel(rel, d.Name(), excludes) {
			logging.WorldDebug("excluded %s", rel)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !isIncludedRel(rel, d.Name(), set.Include) {
			return nil
		}

		files = append(files, SourceFile{BaseDir: root, RelativePath: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelativePath < files[j].RelativePath })
	return files, nil
}
