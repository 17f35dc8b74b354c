package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"codeaug/internal/config"
	"codeaug/internal/store"
)

var (
	historyLimit int
	historyRun   string
	historyRaw   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs from the run history",
	Long: `Lists recent runs, newest first, with their status and file counts.

Examples:
  codeaug history
  codeaug history --limit 50
  codeaug history --run <run-id>`,
	Args: cobra.NoArgs,
	RunE: showHistory,
}

func showHistory(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	h, err := store.Open(config.Resolve(ws, cfg.History.Path), cfg.History.Driver)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer h.Close()

	ctx := context.Background()
	var md string
	if historyRun != "" {
		files, err := h.RunFiles(ctx, historyRun)
		if err != nil {
			return err
		}
		md = runFilesMarkdown(historyRun, files)
	} else {
		runs, err := h.RecentRuns(ctx, historyLimit)
		if err != nil {
			return err
		}
		md = runsMarkdown(runs)
	}

	out := md
	if !historyRaw {
		out = renderMarkdown(md)
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

// renderMarkdown renders md for the terminal, falling back to the raw text.
func renderMarkdown(md string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(120),
	)
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

func runsMarkdown(runs []store.Run) string {
	var sb strings.Builder
	sb.WriteString("# Run history\n\n")
	if len(runs) == 0 {
		sb.WriteString("No runs recorded yet.\n")
		return sb.String()
	}
	sb.WriteString("| Started | Stage | Status | Files | Changed | Errors | Duration | Run |\n")
	sb.WriteString("|---|---|---|---:|---:|---:|---:|---|\n")
	for _, r := range runs {
		fmt.Fprintf(&sb, "| %s | %s | %s | %d | %d | %d | %s | `%s` |\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Stage, r.Status, r.Files, r.Changed, r.Errors,
			r.Duration.Round(time.Millisecond), r.ID)
	}
	return sb.String()
}

func runFilesMarkdown(runID string, files []store.FileRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run `%s`\n\n", runID)
	if len(files) == 0 {
		sb.WriteString("No files recorded for this run.\n")
		return sb.String()
	}
	sb.WriteString("| File | Status | Destination |\n")
	sb.WriteString("|---|---|---|\n")
	for _, f := range files {
		status := "unchanged"
		switch {
		case f.ErrorCount > 0:
			status = fmt.Sprintf("%d error(s)", f.ErrorCount)
		case f.Changed:
			status = "changed"
		case f.Skipped:
			status = "skipped"
		case f.DestPath != "":
			status = "written"
		}
		fmt.Fprintf(&sb, "| %s | %s | %s |\n", f.Path, status, f.DestPath)
	}
	return sb.String()
}
