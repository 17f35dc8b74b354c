package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codeaug/internal/config"
	"codeaug/internal/eval"
	"codeaug/internal/pipeline"
	"codeaug/internal/store"
	"codeaug/internal/world"
)

// errChangesDetected is returned by complete and run when fail_on_changes is set
// and any file changed.
var errChangesDetected = errors.New("code changes detected")

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Extract augmenting code sections into request files",
	Args:  cobra.NoArgs,
	RunE:  runPrepare,
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Evaluate request files into generated code response files",
	Args:  cobra.NoArgs,
	RunE:  runProcess,
}

var completeCmd = &cobra.Command{
	Use:   "complete",
	Short: "Merge generated code into the destination tree and report changes",
	Args:  cobra.NoArgs,
	RunE:  runComplete,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run prepare, process and complete",
	Long: `Runs the three stages in order. A stage that reports errors ends the run.

Exits non-zero when any error is reported, or when fail_on_changes is set and
change detection found files that differ from their generated versions.`,
	Args: cobra.NoArgs,
	RunE: runAll,
}

// commandContext returns the command context cancelled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

// =============================================================================
// STAGE OPTIONS
// =============================================================================

func prepareOptions(ctx context.Context, ws string) (pipeline.PrepareOptions, error) {
	files, err := world.NewScanner().Discover(ctx, cfg.SourceSets(ws))
	if err != nil {
		return pipeline.PrepareOptions{}, fmt.Errorf("source discovery failed: %w", err)
	}
	return pipeline.PrepareOptions{
		Files:        files,
		Markers:      cfg.Markers(),
		PrepFile:     config.Resolve(ws, cfg.PrepFile),
		RequestFiles: cfg.RequestFiles(ws),
		Streaming:    cfg.ContentStreaming,
	}, nil
}

// processOptions builds one job per bucket, each with its own script evaluator.
func processOptions(ws string) (pipeline.ProcessOptions, error) {
	opts := pipeline.ProcessOptions{Streaming: cfg.ContentStreaming}
	for _, b := range cfg.Buckets {
		se, err := eval.NewScriptEvaluator(eval.ScriptOptions{
			EntryPackage:    b.EntryPackage,
			AllowedPackages: cfg.Eval.AllowedPackages,
		})
		if err != nil {
			return opts, err
		}
		if err := se.LoadFiles(b.ScriptFiles(ws)...); err != nil {
			return opts, fmt.Errorf("bucket %s: %w", b.Name, err)
		}
		opts.Jobs = append(opts.Jobs, pipeline.ProcessJob{
			Name:         b.Name,
			RequestFile:  config.Resolve(ws, b.RequestFile),
			ResponseFile: config.Resolve(ws, b.ResponseFile),
			Evaluator:    eval.WithTimeout(se, cfg.GetEvalTimeout()),
		})
	}
	return opts, nil
}

func completeOptions(ws string) pipeline.CompleteOptions {
	return pipeline.CompleteOptions{
		PrepFile:        config.Resolve(ws, cfg.PrepFile),
		ResponseFiles:   cfg.ResponseFiles(ws),
		DestDir:         config.Resolve(ws, cfg.DestDir),
		ChangeDetection: cfg.ChangeDetection,
		Streaming:       cfg.ContentStreaming,
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func runPrepare(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	return withHistory(ctx, "prepare", func() (*stageReport, error) {
		opts, err := prepareOptions(ctx, ws)
		if err != nil {
			return nil, err
		}
		res, err := pipeline.Prepare(ctx, opts)
		if err != nil {
			return nil, err
		}
		report := prepareReport(res)
		printStage(cmd.OutOrStdout(), "prepare", report)
		return report, nil
	}).check(cmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	return withHistory(ctx, "process", func() (*stageReport, error) {
		opts, err := processOptions(ws)
		if err != nil {
			return nil, err
		}
		res, err := pipeline.Process(ctx, opts)
		if err != nil {
			return nil, err
		}
		report := processReport(res)
		printStage(cmd.OutOrStdout(), "process", report)
		return report, nil
	}).check(cmd)
}

func runComplete(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	return withHistory(ctx, "complete", func() (*stageReport, error) {
		res, err := pipeline.Complete(ctx, completeOptions(ws))
		if err != nil {
			return nil, err
		}
		report := completeReport(res, ws)
		printStage(cmd.OutOrStdout(), "complete", report)
		return report, nil
	}).check(cmd)
}

func runAll(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	return runPipeline(ctx, cmd, ws).check(cmd)
}

// runPipeline runs every stage and records the run as one history entry.
func runPipeline(ctx context.Context, cmd *cobra.Command, ws string) *stageOutcome {
	return withHistory(ctx, "run", func() (*stageReport, error) {
		prep, err := prepareOptions(ctx, ws)
		if err != nil {
			return nil, err
		}
		proc, err := processOptions(ws)
		if err != nil {
			return nil, err
		}
		res, err := pipeline.Run(ctx, pipeline.RunOptions{
			Prepare:  prep,
			Process:  proc,
			Complete: completeOptions(ws),
		})
		if err != nil {
			return nil, err
		}

		out := cmd.OutOrStdout()
		report := &stageReport{}
		if res.Prepare != nil {
			r := prepareReport(res.Prepare)
			printStage(out, "prepare", r)
			report.FileCount = r.FileCount
			report.Errors = append(report.Errors, r.Errors...)
		}
		if res.Process != nil {
			r := processReport(res.Process)
			printStage(out, "process", r)
			report.Errors = append(report.Errors, r.Errors...)
		}
		if res.Complete != nil {
			r := completeReport(res.Complete, ws)
			printStage(out, "complete", r)
			report.FileCount = r.FileCount
			report.Files = r.Files
			report.Changed = r.Changed
			report.DetailsFile = r.DetailsFile
			report.Errors = append(report.Errors, r.Errors...)
		}
		return report, nil
	})
}

// =============================================================================
// REPORTS
// =============================================================================

// stageReport is what a stage reports to the terminal and the run history.
type stageReport struct {
	Summary     string
	FileCount   int
	Files       []store.FileRecord
	Changed     int
	DetailsFile string
	Errors      []error
}

// reportedError is returned once the errors a stage reported have been printed.
type reportedError struct {
	count int
}

func (e *reportedError) Error() string {
	return fmt.Sprintf("%d error(s) reported", e.count)
}

// stageOutcome pairs a report with a fatal error.
type stageOutcome struct {
	report *stageReport
	err    error
}

// check prints the reported errors and turns them, and detected changes when
// configured to fail on them, into the command error.
func (o *stageOutcome) check(cmd *cobra.Command) error {
	if o.err != nil {
		return o.err
	}
	r := o.report
	if len(r.Errors) > 0 {
		printErrors(cmd.ErrOrStderr(), r.Errors)
		return &reportedError{count: len(r.Errors)}
	}
	if r.Changed > 0 && cfg.ChangeDetection && cfg.FailOnChanges {
		return fmt.Errorf("%w in %d file(s); see %s", errChangesDetected, r.Changed, r.DetailsFile)
	}
	return nil
}

func prepareReport(res *pipeline.PrepareResult) *stageReport {
	return &stageReport{
		Summary:   fmt.Sprintf("%d file(s) prepared, %d augmenting code section(s)", res.FilesPrepared, res.AugCodeCount),
		FileCount: res.FilesPrepared,
		Errors:    res.Errors,
	}
}

func processReport(res *pipeline.ProcessResult) *stageReport {
	return &stageReport{
		Summary:   fmt.Sprintf("%d file(s) processed, %d generated code(s)", res.FilesProcessed, res.GeneratedCodeCount),
		FileCount: res.FilesProcessed,
		Errors:    res.Errors,
	}
}

func completeReport(res *pipeline.CompleteResult, ws string) *stageReport {
	report := &stageReport{FileCount: len(res.Files), DetailsFile: res.DetailsFile, Errors: res.Errors}
	written := 0
	for _, f := range res.Files {
		report.Files = append(report.Files, store.FileRecord{
			Path:       relTo(ws, f.SrcPath),
			DestPath:   relTo(ws, f.DestPath),
			Changed:    f.Changed,
			Skipped:    f.Skipped,
			ErrorCount: f.ErrorCount,
		})
		if f.Changed {
			report.Changed++
		}
		if f.DestPath != "" {
			written++
		}
	}
	report.Summary = fmt.Sprintf("%d file(s) completed, %d written, %d changed", len(res.Files), written, report.Changed)
	return report
}

// relTo shortens paths inside the workspace for display and history.
func relTo(ws, path string) string {
	if path == "" {
		return ""
	}
	if rel, err := filepath.Rel(ws, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return path
}

// =============================================================================
// HISTORY
// =============================================================================

// withHistory runs a stage and records it in the run history when enabled.
// History failures are logged and never fail the stage.
func withHistory(ctx context.Context, stage string, fn func() (*stageReport, error)) *stageOutcome {
	h := openHistory()
	if h == nil {
		report, err := fn()
		return &stageOutcome{report: report, err: err}
	}
	defer h.Close()

	runID, err := h.BeginRun(ctx, stage)
	if err != nil {
		logger.Warn("Failed to record run", zap.Error(err))
		report, err := fn()
		return &stageOutcome{report: report, err: err}
	}
	logger.Debug("Run started", zap.String("run_id", runID), zap.String("stage", stage))

	report, runErr := fn()
	summary := store.RunSummary{Errors: 1}
	if report != nil {
		for _, f := range report.Files {
			if err := h.RecordFile(ctx, runID, f); err != nil {
				logger.Warn("Failed to record file", zap.Error(err))
				break
			}
		}
		summary = store.RunSummary{Files: report.FileCount, Changed: report.Changed, Errors: len(report.Errors)}
	}
	// The run is closed even when ctx was cancelled.
	if err := h.FinishRun(context.WithoutCancel(ctx), runID, summary); err != nil {
		logger.Warn("Failed to finish run", zap.Error(err))
	}
	return &stageOutcome{report: report, err: runErr}
}

func openHistory() *store.History {
	if !cfg.History.Enabled {
		return nil
	}
	ws, err := resolveWorkspace()
	if err != nil {
		return nil
	}
	h, err := store.Open(config.Resolve(ws, cfg.History.Path), cfg.History.Driver)
	if err != nil {
		logger.Warn("Run history unavailable", zap.Error(err))
		return nil
	}
	return h
}
