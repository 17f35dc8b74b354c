// Package store keeps the run history of pipeline stages in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"codeaug/internal/logging"
)

// Drivers. DriverSQLite is pure Go; DriverSQLite3 needs cgo.
const (
	DriverSQLite  = "sqlite"
	DriverSQLite3 = "sqlite3"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusChanged = "changed"
	StatusFailed  = "failed"
)

// Run is one recorded stage execution.
type Run struct {
	ID        string
	Stage     string
	StartedAt time.Time
	Duration  time.Duration
	Files     int
	Changed   int
	Errors    int
	Status    string
}

// FileRecord is the outcome of one source file within a run.
type FileRecord struct {
	Path       string
	DestPath   string
	Changed    bool
	Skipped    bool
	ErrorCount int
}

// RunSummary closes a run.
type RunSummary struct {
	Files   int
	Changed int
	Errors  int
}

// Status derives the run status from the summary counts.
func (s RunSummary) Status() string {
	switch {
	case s.Errors > 0:
		return StatusFailed
	case s.Changed > 0:
		return StatusChanged
	default:
		return StatusOK
	}
}

// History is the run history database.
type History struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
	now    func() time.Time
}

// Open opens (creating if needed) the history database at path with the named
// driver and migrates its schema. ":memory:" opens a private in-memory database.
func Open(path, driver string) (*History, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverSQLite3 {
		return nil, fmt.Errorf("unsupported history driver: %s", driver)
	}
	logging.Store("Opening run history at %s (driver=%s)", path, driver)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	h := &History{db: db, dbPath: path, now: time.Now}
	if err := h.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

// initialize creates the tables and applies column migrations.
func (h *History) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		stage TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER DEFAULT 0,
		files INTEGER DEFAULT 0,
		changed INTEGER DEFAULT 0,
		errors INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS run_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		path TEXT NOT NULL,
		dest_path TEXT,
		changed INTEGER DEFAULT 0,
		error_count INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_run_files_run_id ON run_files(run_id);

	CREATE TABLE IF NOT EXISTS schema_versions (
		version INTEGER NOT NULL,
		applied_at INTEGER NOT NULL
	);
	`
	if _, err := h.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := RunMigrations(h.db); err != nil {
		return err
	}
	if GetSchemaVersion(h.db) < CurrentSchemaVersion {
		_, err := h.db.Exec("INSERT INTO schema_versions (version, applied_at) VALUES (?, ?)",
			CurrentSchemaVersion, h.now().UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (h *History) Close() error {
	logging.StoreDebug("Closing run history %s", h.dbPath)
	return h.db.Close()
}

// BeginRun records the start of a stage and returns the new run id.
func (h *History) BeginRun(ctx context.Context, stage string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.NewString()
	_, err := h.db.ExecContext(ctx,
		"INSERT INTO runs (id, stage, started_at, status) VALUES (?, ?, ?, ?)",
		id, stage, h.now().UnixMilli(), StatusRunning)
	if err != nil {
		return "", fmt.Errorf("failed to begin run: %w", err)
	}
	logging.StoreDebug("Run %s started (stage=%s)", id, stage)
	return id, nil
}

// RecordFile records the outcome of one file of a run.
func (h *History) RecordFile(ctx context.Context, runID string, f FileRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.db.ExecContext(ctx,
		"INSERT INTO run_files (run_id, path, dest_path, changed, skipped, error_count) VALUES (?, ?, ?, ?, ?, ?)",
		runID, f.Path, f.DestPath, boolToInt(f.Changed), boolToInt(f.Skipped), f.ErrorCount)
	if err != nil {
		return fmt.Errorf("failed to record file: %w", err)
	}
	return nil
}

// FinishRun closes a run with its summary.
func (h *History) FinishRun(ctx context.Context, runID string, s RunSummary) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var startedAt int64
	err := h.db.QueryRowContext(ctx, "SELECT started_at FROM runs WHERE id = ?", runID).Scan(&startedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}

	duration := h.now().UnixMilli() - startedAt
	_, err = h.db.ExecContext(ctx,
		"UPDATE runs SET duration_ms = ?, files = ?, changed = ?, errors = ?, status = ? WHERE id = ?",
		duration, s.Files, s.Changed, s.Errors, s.Status(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	logging.Store("Run %s finished: status=%s files=%d changed=%d errors=%d",
		runID, s.Status(), s.Files, s.Changed, s.Errors)
	return nil
}

// RecentRuns returns up to limit runs, newest first. A limit <= 0 returns all runs.
func (h *History) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, stage, started_at, duration_ms, files, changed, errors, status
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt, durationMs int64
		if err := rows.Scan(&r.ID, &r.Stage, &startedAt, &durationMs, &r.Files, &r.Changed, &r.Errors, &r.Status); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedAt)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunFiles returns the file records of a run in insertion order.
func (h *History) RunFiles(ctx context.Context, runID string) ([]FileRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rows, err := h.db.QueryContext(ctx, `
		SELECT path, COALESCE(dest_path, ''), changed, skipped, error_count
		FROM run_files WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run files: %w", err)
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		var f FileRecord
		var changed, skipped int
		if err := rows.Scan(&f.Path, &f.DestPath, &changed, &skipped, &f.ErrorCount); err != nil {
			return nil, fmt.Errorf("failed to scan run file: %w", err)
		}
		f.Changed = changed != 0
		f.Skipped = skipped != 0
		files = append(files, f)
	}
	return files, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
