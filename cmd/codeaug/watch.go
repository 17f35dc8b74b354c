package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codeaug/internal/config"
	"codeaug/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the pipeline and re-run it whenever sources or scripts change",
	Long: `Runs prepare, process and complete once, then watches every source directory
and bucket script. Changes are debounced (watch.debounce) and trigger a full run.
Errors and detected changes are reported but never stop watching.

Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	rerun := func(ctx context.Context, paths []string) error {
		for _, p := range paths {
			logger.Debug("Changed", zap.String("path", p))
		}
		return reportWatchRun(cmd, runPipeline(ctx, cmd, ws).check(cmd))
	}
	if err := rerun(ctx, nil); err != nil {
		return err
	}

	w, err := watch.New(watchOptions(ws), rerun)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("watching for changes, press Ctrl+C to stop"))
	return w.Run(ctx)
}

// reportWatchRun keeps watching after reported errors and detected changes; only
// fatal errors are returned.
func reportWatchRun(cmd *cobra.Command, err error) error {
	if err == nil {
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("done"))
		return nil
	}
	var reported *reportedError
	if errors.Is(err, errChangesDetected) || errors.As(err, &reported) {
		fmt.Fprintln(cmd.ErrOrStderr(), changedStyle.Render(err.Error()))
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func watchOptions(ws string) watch.Options {
	var scripts []string
	for _, b := range cfg.Buckets {
		scripts = append(scripts, b.ScriptFiles(ws)...)
	}
	return watch.Options{
		Sources: cfg.SourceSets(ws),
		Files:   scripts,
		Ignore: []string{
			config.Resolve(ws, cfg.DestDir),
			filepath.Dir(config.Resolve(ws, cfg.PrepFile)),
		},
		Debounce: cfg.GetWatchDebounce(),
	}
}
