// Package pipeline runs the three stages of code augmentation.
//
// Prepare tokenizes source files, writes a prep file describing every augmenting code
// section and one request file per directive bucket. Process evaluates the augmenting
// codes of each request file into a response file. Complete merges the responses back
// into the sources, writing changed files and change summaries to a destination tree.
//
// Every stage returns domain errors in its result and reserves the error return for
// I/O and setup failures. A file with domain errors produces no output; other files
// are still processed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codeaug/internal/changes"
	"codeaug/internal/logging"
	"codeaug/internal/records"
	"codeaug/internal/sections"
	"codeaug/internal/tokenizer"
	"codeaug/internal/types"
	"codeaug/internal/world"
)

// Encoding is the only source encoding supported.
const Encoding = "UTF-8"

// PrepareOptions configures Prepare.
type PrepareOptions struct {
	Files   []world.SourceFile
	Markers tokenizer.Markers
	// PrepFile receives one SourceFileDescriptor per prepared file.
	PrepFile string
	// RequestFiles holds one augmenting code file per entry of Markers.AugCodeBuckets.
	RequestFiles []string
	Streaming    bool
}

// PrepareResult summarizes a Prepare run.
type PrepareResult struct {
	FilesPrepared int
	AugCodeCount  int
	Errors        []error
}

// Prepare extracts augmenting code sections from every file.
func Prepare(ctx context.Context, opts PrepareOptions) (*PrepareResult, error) {
	if len(opts.RequestFiles) != len(opts.Markers.AugCodeBuckets) {
		return nil, fmt.Errorf("got %d request file(s) for %d augmenting code bucket(s)",
			len(opts.RequestFiles), len(opts.Markers.AugCodeBuckets))
	}
	log := logging.Get(logging.CategoryPrepare)
	timer := logging.StartTimer(logging.CategoryPrepare, "Prepare")
	defer timer.Stop()

	prepHeader := &types.PreparedHeader{Encoding: Encoding}
	if m := opts.Markers.GenCodeStart; len(m) > 0 {
		prepHeader.GenCodeStartDirective = &m[0]
	}
	if m := opts.Markers.GenCodeEnd; len(m) > 0 {
		prepHeader.GenCodeEndDirective = &m[0]
	}

	prepWriter, err := records.CreateFile[types.SourceFileDescriptor](opts.PrepFile, prepHeader, opts.Streaming)
	if err != nil {
		return nil, err
	}
	requestWriters := make([]*records.Writer[types.SourceFileAugmentingCode], 0, len(opts.RequestFiles))
	closeAll := func() error {
		errs := []error{prepWriter.Close()}
		for _, w := range requestWriters {
			errs = append(errs, w.Close())
		}
		return errors.Join(errs...)
	}
	for i, path := range opts.RequestFiles {
		w, err := records.CreateFile[types.SourceFileAugmentingCode](path,
			requestHeader(opts.Markers, i), opts.Streaming)
		if err != nil {
			closeAll()
			return nil, err
		}
		requestWriters = append(requestWriters, w)
	}

	tok := tokenizer.New(opts.Markers)
	result := &PrepareResult{}
	seen := make(map[string]bool)
	for i, f := range opts.Files {
		if err := ctx.Err(); err != nil {
			closeAll()
			return nil, err
		}
		srcPath := f.Path()
		normalized := canonicalPath(srcPath)
		if seen[normalized] {
			log.Debug("Processed %s already", srcPath)
			continue
		}
		seen[normalized] = true

		log.Debug("Preparing %s", srcPath)
		start := time.Now()
		data, err := os.ReadFile(srcPath)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to read source file: %w", err)
		}
		content := string(data)

		var fileErrs []error
		built, err := sections.Build(tok.Tokenize(content), srcPath, len(opts.RequestFiles), types.Collect(&fileErrs))
		if err != nil {
			fileErrs = append(fileErrs, err)
		}

		if len(fileErrs) > 0 {
			log.Warn("%d error(s) encountered in %s", len(fileErrs), srcPath)
			result.Errors = append(result.Errors, fileErrs...)
		} else if len(result.Errors) == 0 {
			// Once any file has failed, later files are only checked for errors.
			count, err := writePrepared(i+1, f, content, built, prepWriter, requestWriters)
			if err != nil {
				closeAll()
				return nil, err
			}
			result.FilesPrepared++
			result.AugCodeCount += count
			if count == 0 {
				log.Debug("0 aug codes identified in %s", srcPath)
			} else {
				log.Info("%d aug code(s) identified in %s", count, srcPath)
			}
		}
		log.Info("Done processing %s in %d ms", srcPath, time.Since(start).Milliseconds())
	}

	if err := closeAll(); err != nil {
		return nil, err
	}
	return result, nil
}

func writePrepared(fileID int, f world.SourceFile, content string, built *sections.Result,
	prepWriter *records.Writer[types.SourceFileDescriptor],
	requestWriters []*records.Writer[types.SourceFileAugmentingCode]) (int, error) {
	snippets := built.Snippets
	if snippets == nil {
		snippets = []types.CodeSnippetDescriptor{}
	}
	err := prepWriter.Write(types.SourceFileDescriptor{
		FileID:       fileID,
		Dir:          f.BaseDir,
		RelativePath: f.RelativePath,
		CodeSnippets: snippets,
		ContentHash:  changes.ContentHash(content),
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for j, w := range requestWriters {
		var codes []types.AugmentingCode
		if j < len(built.AugCodes) {
			codes = built.AugCodes[j]
		}
		if len(codes) == 0 {
			continue
		}
		count += len(codes)
		err := w.Write(types.SourceFileAugmentingCode{
			FileID:          fileID,
			Dir:             f.BaseDir,
			RelativePath:    f.RelativePath,
			AugmentingCodes: codes,
		})
		if err != nil {
			return 0, err
		}
	}
	return count, nil
}

func requestHeader(m tokenizer.Markers, bucket int) *types.RequestHeader {
	return &types.RequestHeader{
		GenCodeStartDirective:   first(m.GenCodeStart),
		GenCodeEndDirective:     first(m.GenCodeEnd),
		EmbeddedStringDirective: first(m.EmbeddedString),
		EmbeddedJSONDirective:   first(m.EmbeddedJSON),
		SkipCodeStartDirective:  first(m.SkipCodeStart),
		SkipCodeEndDirective:    first(m.SkipCodeEnd),
		AugCodeDirective:        first(m.AugCodeBuckets[bucket]),
		InlineGenCodeDirective:  first(m.InlineGenCode),
		NestedLevelStartMarker:  first(m.NestedLevelStart),
		NestedLevelEndMarker:    first(m.NestedLevelEnd),
	}
}

func first(markers []string) string {
	if len(markers) == 0 {
		return ""
	}
	return markers[0]
}

// canonicalPath resolves path to an absolute path with symlinks evaluated,
// falling back to the cleaned absolute path.
func canonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
