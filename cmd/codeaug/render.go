package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	stageStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	changedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F87"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// printStage prints the stage summary followed by one status line per file.
func printStage(w io.Writer, stage string, r *stageReport) {
	fmt.Fprintf(w, "%s %s\n", stageStyle.Render(stage), r.Summary)
	for _, f := range r.Files {
		fmt.Fprintln(w, "  "+fileStatus(f.Changed, f.Skipped, f.ErrorCount, f.DestPath)+" "+f.Path)
	}
	if r.Changed > 0 && r.DetailsFile != "" {
		fmt.Fprintln(w, dimStyle.Render("  change details: "+r.DetailsFile))
	}
}

// fileStatus renders a fixed-width status label.
func fileStatus(changed, skipped bool, errorCount int, destPath string) string {
	switch {
	case errorCount > 0:
		return errorStyle.Render("failed   ")
	case changed:
		return changedStyle.Render("changed  ")
	case skipped:
		return dimStyle.Render("skipped  ")
	case destPath != "":
		return okStyle.Render("written  ")
	default:
		return okStyle.Render("unchanged")
	}
}

// printErrors prints every reported error, separated by blank lines.
func printErrors(w io.Writer, errs []error) {
	for i, err := range errs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, errorStyle.Render("error")+" "+err.Error())
	}
}
