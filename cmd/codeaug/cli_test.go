package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"codeaug/internal/config"
	"codeaug/internal/logging"
	"codeaug/internal/store"
)

// setupWorkspace points the global flags at a fresh workspace, loads the default
// config and runs init.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	logger = zap.NewNop()
	ws := t.TempDir()
	workspace = ws
	configPath = ""
	verbose = false
	initForce = false
	t.Cleanup(func() {
		workspace = ""
		cfg = nil
		logging.CloseAll()
	})

	require.NoError(t, loadConfig())
	_, err := runCommand(t, runInit)
	require.NoError(t, err)
	return ws
}

// runCommand runs a command function with captured output.
func runCommand(t *testing.T, fn func(*cobra.Command, []string) error) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := fn(cmd, nil)
	return out.String(), err
}

func writeSource(t *testing.T, ws, rel, content string) {
	t.Helper()
	path := filepath.Join(ws, "src", filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// =============================================================================
// INIT
// =============================================================================

func TestInitCmd(t *testing.T) {
	ws := setupWorkspace(t)

	assert.FileExists(t, filepath.Join(ws, config.DefaultConfigPath))
	assert.FileExists(t, filepath.Join(ws, ".codeaug", "scripts", "main.go"))
	assert.DirExists(t, filepath.Join(ws, "src"))

	loaded, err := config.Load(filepath.Join(ws, config.DefaultConfigPath))
	require.NoError(t, err)
	assert.NoError(t, loaded.Validate())

	// Running again keeps the existing config
	out, err := runCommand(t, runInit)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
}

// =============================================================================
// STAGES
// =============================================================================

func TestRunCmd_GeneratesAndDetectsChanges(t *testing.T) {
	ws := setupWorkspace(t)
	writeSource(t, ws, "a.txt", "//:AUG_CODE: Greet\n//:STR: world\n")

	out, err := runCommand(t, runAll)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errChangesDetected), err.Error())
	assert.Contains(t, out, "changed")

	dest := filepath.Join(ws, ".codeaug", "generated", "src", "a.txt")
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t,
		"//:AUG_CODE: Greet\n//:STR: world\n//:GEN_CODE_START:\n// Hello, world!\n//:GEN_CODE_END:\n",
		string(data))

	h, err := store.Open(filepath.Join(ws, ".codeaug", "history.db"), store.DriverSQLite)
	require.NoError(t, err)
	defer h.Close()
	runs, err := h.RecentRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run", runs[0].Stage)
	assert.Equal(t, store.StatusChanged, runs[0].Status)
	assert.Equal(t, 1, runs[0].Changed)

	files, err := h.RunFiles(context.Background(), runs[0].ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "src/a.txt", files[0].Path)
	assert.Equal(t, ".codeaug/generated/src/a.txt", files[0].DestPath)
}

func TestRunCmd_UpToDateSourcePasses(t *testing.T) {
	ws := setupWorkspace(t)
	writeSource(t, ws, "a.txt",
		"//:AUG_CODE: Greet\n//:STR: world\n//:GEN_CODE_START:\n// Hello, world!\n//:GEN_CODE_END:\n")

	out, err := runCommand(t, runAll)
	require.NoError(t, err)
	assert.Contains(t, out, "1 file(s) completed, 0 written, 0 changed")
}

func TestRunCmd_FailOnChangesDisabled(t *testing.T) {
	ws := setupWorkspace(t)
	cfg.FailOnChanges = false
	writeSource(t, ws, "a.txt", "//:AUG_CODE: Greet\n//:STR: world\n")

	_, err := runCommand(t, runAll)
	assert.NoError(t, err)
}

func TestRunCmd_ReportsErrors(t *testing.T) {
	ws := setupWorkspace(t)
	writeSource(t, ws, "a.txt", "//:AUG_CODE: Missing\n")

	out, err := runCommand(t, runAll)
	require.Error(t, err)
	var reported *reportedError
	require.True(t, errors.As(err, &reported))
	assert.Equal(t, 1, reported.count)
	assert.Contains(t, out, "Missing")
	assert.NoFileExists(t, filepath.Join(ws, ".codeaug", "generated", "src", "a.txt"))
}

func TestStageCmds_RunSeparately(t *testing.T) {
	ws := setupWorkspace(t)
	cfg.History.Enabled = false
	writeSource(t, ws, "a.txt", "//:AUG_CODE: Greet\n//:STR: x\n")

	out, err := runCommand(t, runPrepare)
	require.NoError(t, err)
	assert.Contains(t, out, "1 file(s) prepared, 1 augmenting code section(s)")

	out, err = runCommand(t, runProcess)
	require.NoError(t, err)
	assert.Contains(t, out, "1 file(s) processed, 1 generated code(s)")

	_, err = runCommand(t, runComplete)
	require.ErrorIs(t, err, errChangesDetected)
	assert.NoFileExists(t, filepath.Join(ws, ".codeaug", "history.db"))
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistoryCmd_Raw(t *testing.T) {
	ws := setupWorkspace(t)
	cfg.FailOnChanges = false
	writeSource(t, ws, "a.txt", "//:AUG_CODE: Greet\n//:STR: x\n")
	_, err := runCommand(t, runAll)
	require.NoError(t, err)

	historyRaw = true
	historyLimit = 10
	historyRun = ""
	t.Cleanup(func() { historyRaw = false })

	out, err := runCommand(t, showHistory)
	require.NoError(t, err)
	assert.Contains(t, out, "# Run history")
	assert.Contains(t, out, "| run | changed | 1 | 1 | 0 |")
}

func TestRunsMarkdown(t *testing.T) {
	assert.Contains(t, runsMarkdown(nil), "No runs recorded yet.")

	md := runsMarkdown([]store.Run{{
		ID:        "abc",
		Stage:     "complete",
		StartedAt: time.Now(),
		Duration:  1500 * time.Millisecond,
		Files:     2,
		Status:    store.StatusOK,
	}})
	assert.Contains(t, md, "| complete | ok | 2 | 0 | 0 | 1.5s | `abc` |")
}

func TestRunFilesMarkdown(t *testing.T) {
	md := runFilesMarkdown("abc", []store.FileRecord{
		{Path: "src/a.go", DestPath: "out/src/a.go", Changed: true},
		{Path: "src/b.go", ErrorCount: 2},
		{Path: "src/c.go", Skipped: true},
	})
	lines := strings.Split(strings.TrimSpace(md), "\n")
	assert.Equal(t, "# Run `abc`", lines[0])
	assert.Contains(t, md, "| src/a.go | changed | out/src/a.go |")
	assert.Contains(t, md, "| src/b.go | 2 error(s) |  |")
	assert.Contains(t, md, "| src/c.go | skipped |  |")

	assert.Contains(t, runFilesMarkdown("abc", nil), "No files recorded")
}

func TestFileStatus(t *testing.T) {
	assert.Contains(t, fileStatus(false, false, 1, ""), "failed")
	assert.Contains(t, fileStatus(true, false, 0, "x"), "changed")
	assert.Contains(t, fileStatus(false, true, 0, ""), "skipped")
	assert.Contains(t, fileStatus(false, false, 0, "x"), "written")
	assert.Contains(t, fileStatus(false, false, 0, ""), "unchanged")
}

func TestRelTo(t *testing.T) {
	assert.Equal(t, "src/a.go", relTo("/ws", filepath.Join("/ws", "src", "a.go")))
	assert.Equal(t, "/other/a.go", relTo("/ws", "/other/a.go"))
	assert.Empty(t, relTo("/ws", ""))
}
