package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"codeaug/internal/changes"
	"codeaug/internal/diff"
	"codeaug/internal/fetch"
	"codeaug/internal/logging"
	"codeaug/internal/merge"
	"codeaug/internal/records"
	"codeaug/internal/textutil"
	"codeaug/internal/types"
)

// Summary file names written to the destination directory.
const (
	ChangeSummaryFile = "CHANGE-SUMMARY.txt"
	OutputSummaryFile = "OUTPUT-SUMMARY.txt"
	ChangeDetailsFile = "CHANGE-DETAILS.txt"
)

// CompleteOptions configures Complete.
type CompleteOptions struct {
	PrepFile      string
	ResponseFiles []string
	// DestDir is deleted and recreated.
	DestDir string
	// ChangeDetection limits output to files that change. When off every file with
	// generated code is written.
	ChangeDetection bool
	Streaming       bool
	// Engine computes change details. Nil uses diff.DefaultEngine.
	Engine *diff.Engine
}

// FileOutcome describes what Complete did with one prepared file.
type FileOutcome struct {
	FileID  int
	SrcPath string
	// DestPath is empty when nothing was written.
	DestPath string
	Changed  bool
	// Skipped is set when every section of the file was skipped.
	Skipped    bool
	ErrorCount int
}

// CompleteResult summarizes a Complete run.
type CompleteResult struct {
	Files              []FileOutcome
	CodeChangeDetected bool
	SummaryFile        string
	// DetailsFile is empty when change detection is off.
	DetailsFile string
	Errors      []error
}

type completer struct {
	opts     CompleteOptions
	dirs     merge.Directives
	fetcher  *fetch.Fetcher
	detector *changes.Detector

	destDirName string
	subDirs     map[string]string
	takenNames  map[string]bool

	summary *records.Writer[types.ChangedFile]
	details *bufio.Writer
}

// Complete merges generated code into the prepared source files.
func Complete(ctx context.Context, opts CompleteOptions) (*CompleteResult, error) {
	log := logging.Get(logging.CategoryComplete)
	timer := logging.StartTimer(logging.CategoryComplete, "Complete")
	defer timer.Stop()

	destDir, err := filepath.Abs(opts.DestDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve destination directory: %w", err)
	}
	opts.DestDir = destDir
	if err := os.RemoveAll(destDir); err != nil {
		return nil, fmt.Errorf("failed to clean destination directory: %w", err)
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	prepHeader := &types.PreparedHeader{}
	src, err := records.OpenFile[types.SourceFileDescriptor](opts.PrepFile, prepHeader)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	if prepHeader.Encoding != "" && prepHeader.Encoding != Encoding {
		return nil, fmt.Errorf("unsupported encoding %s in prep file", prepHeader.Encoding)
	}

	fetcher, err := fetch.OpenFiles(opts.ResponseFiles)
	if err != nil {
		return nil, err
	}
	defer fetcher.Close()

	result := &CompleteResult{SummaryFile: filepath.Join(destDir, ChangeSummaryFile)}
	if !opts.ChangeDetection {
		result.SummaryFile = filepath.Join(destDir, OutputSummaryFile)
	}
	summary, err := records.CreateFile[types.ChangedFile](result.SummaryFile, &types.SummaryHeader{}, opts.Streaming)
	if err != nil {
		return nil, err
	}
	defer summary.Close()

	engine := opts.Engine
	if engine == nil {
		engine = diff.DefaultEngine
	}
	defer engine.ClearCache()

	c := &completer{
		opts:        opts,
		dirs:        merge.Directives{GenCodeStart: prepHeader.GenCodeStartDirective, GenCodeEnd: prepHeader.GenCodeEndDirective},
		fetcher:     fetcher,
		detector:    changes.NewDetector(opts.ChangeDetection, engine),
		destDirName: filepath.Base(destDir),
		subDirs:     make(map[string]string),
		takenNames:  make(map[string]bool),
		summary:     summary,
	}
	if opts.ChangeDetection {
		result.DetailsFile = filepath.Join(destDir, ChangeDetailsFile)
		f, err := os.Create(result.DetailsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create change details file: %w", err)
		}
		defer f.Close()
		c.details = bufio.NewWriter(f)
	}

	for {
		desc, ok, err := src.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		outcome, fileErrs, err := c.completeFile(&desc)
		if err != nil {
			return nil, err
		}
		if len(fileErrs) > 0 {
			log.Warn("%d error(s) encountered in %s", len(fileErrs), outcome.SrcPath)
			result.Errors = append(result.Errors, fileErrs...)
		}
		if outcome.Changed {
			result.CodeChangeDetected = true
		}
		result.Files = append(result.Files, outcome)
		log.Info("Done processing %s in %d ms", outcome.SrcPath, time.Since(start).Milliseconds())
	}

	var closeErrs []error
	if c.details != nil {
		closeErrs = append(closeErrs, c.details.Flush())
	}
	closeErrs = append(closeErrs, summary.Close())
	if err := errors.Join(closeErrs...); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *completer) completeFile(desc *types.SourceFileDescriptor) (FileOutcome, []error, error) {
	log := logging.Get(logging.CategoryComplete)
	srcPath := filepath.Join(desc.Dir, filepath.FromSlash(desc.RelativePath))
	outcome := FileOutcome{FileID: desc.FileID, SrcPath: srcPath}
	log.Debug("Processing %s", srcPath)

	someGenCodeExists, err := c.fetcher.PrepareForFile(desc.FileID)
	if err != nil {
		return outcome, nil, err
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return outcome, nil, fmt.Errorf("failed to read source file: %w", err)
	}
	content := string(data)

	fail := func(errs []error) (FileOutcome, []error, error) {
		outcome.ErrorCount = len(errs)
		return outcome, errs, nil
	}
	if err := changes.VerifyIntegrity(content, desc.ContentHash); err != nil {
		te := types.NewTaskError(err.Error(), srcPath, 0, "")
		te.Cause = err
		return fail([]error{te})
	}

	var errs []error
	var splices []merge.Splice
	skipCount := 0
	for _, snippet := range desc.CodeSnippets {
		aug := snippet.AugmentingCodeDescriptor
		g := c.fetcher.GeneratedCode(desc.FileID, aug.ID)
		if g == nil {
			if !someGenCodeExists {
				errs = append(errs, types.NewTaskError(
					fmt.Sprintf("Could not locate generated codes for file with id %d", desc.FileID), srcPath, 0, ""))
				break
			}
			errs = append(errs, types.NewTaskError(
				fmt.Sprintf("Could not find generated code with id %d", aug.ID), srcPath, aug.LineNumber, ""))
			continue
		}
		if g.Skipped {
			skipCount++
			continue
		}
		if len(g.ContentParts) == 0 {
			errs = append(errs, types.NewTaskError("Found null/empty content parts", srcPath, aug.LineNumber, ""))
			continue
		}
		if len(errs) > 0 {
			continue
		}

		genCode := *g
		genCode.ContentParts = slices.Clone(g.ContentParts)
		sp, err := merge.Build(snippet, &genCode, c.dirs)
		if err != nil {
			errs = append(errs, types.NewTaskError(err.Error(), srcPath, aug.LineNumber, ""))
			continue
		}
		splices = append(splices, sp)
	}
	if len(errs) > 0 {
		return fail(errs)
	}

	// A file whose sections were all skipped is left alone even without change detection.
	if skipCount > 0 && skipCount == len(desc.CodeSnippets) {
		outcome.Skipped = true
		return outcome, nil, nil
	}

	srcDir := canonicalPath(desc.Dir)
	subDir := c.subDirFor(desc.Dir)
	destSubDir := filepath.Join(c.opts.DestDir, subDir)
	oldLabel := filepath.Base(srcDir) + "/" + desc.RelativePath
	newLabel := c.destDirName + "/" + subDir + "/" + desc.RelativePath

	applied := c.detector.Apply(content, splices, oldLabel, newLabel)
	if c.detector.Enabled() && !applied.Changed {
		log.Debug("No changes needed for %s", srcPath)
		return outcome, nil, nil
	}

	destFile := filepath.Join(destSubDir, filepath.FromSlash(desc.RelativePath))
	if err := os.MkdirAll(filepath.Dir(destFile), 0755); err != nil {
		return outcome, nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(destFile, []byte(applied.Text), 0644); err != nil {
		return outcome, nil, fmt.Errorf("failed to write output file: %w", err)
	}
	outcome.DestPath = destFile

	err = c.summary.Write(types.ChangedFile{
		RelativePath: desc.RelativePath,
		SrcDir:       srcDir,
		DestDir:      destSubDir,
	})
	if err != nil {
		return outcome, nil, err
	}

	if applied.Changed {
		outcome.Changed = true
		if _, err := c.details.WriteString("\n"); err != nil {
			return outcome, nil, err
		}
		if err := applied.Diff.WriteUnified(c.details, "\n"); err != nil {
			return outcome, nil, err
		}
		log.Info("Changes needed for %s successfully written to\n %s", srcPath, destFile)
	}
	return outcome, nil, nil
}

// subDirFor names the destination subdirectory of a source base directory after the
// base directory itself, made unique with a numeric suffix.
func (c *completer) subDirFor(dir string) string {
	if name, ok := c.subDirs[dir]; ok {
		return name
	}
	name := textutil.ModifyNameToBeAbsent(c.takenNames, filepath.Base(canonicalPath(dir)))
	c.takenNames[name] = true
	c.subDirs[dir] = name
	return name
}
