// Package logging provides categorized logging for codeaug on top of zap.
// Each category gets its own named logger. When a log directory is configured,
// every category writes to a separate dated file under it; otherwise all
// categories share stderr.
//
// Until Initialize is called every logger is a no-op, so packages can log
// unconditionally from library code and tests.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot   Category = "boot"   // Startup and configuration
	CategoryConfig Category = "config" // Config loading and validation

	// Analysis
	CategoryTokenizer Category = "tokenizer" // Marker registration and line classification
	CategorySections  Category = "sections"  // Section grouping and validation

	// Pipeline stages
	CategoryPipeline Category = "pipeline" // Whole runs
	CategoryPrepare  Category = "prepare"  // Prepare stage
	CategoryProcess  Category = "process"  // Process stage
	CategoryComplete Category = "complete" // Complete stage
	CategoryChanges  Category = "changes"  // Change detection and diffs
	CategoryEval     Category = "eval"     // Script evaluation

	// Infrastructure
	CategoryStore Category = "store" // Run history database
	CategoryWatch Category = "watch" // File watching
	CategoryWorld Category = "world" // Source discovery
)

// Config selects level, format, destination and enabled categories.
type Config struct {
	Level      string          `yaml:"level"`
	Dir        string          `yaml:"dir"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	cfg     Config
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base    *zap.Logger // shared stderr logger, nil before Initialize
	loggers = make(map[Category]*Logger)
	files   []*os.File
	nop     = zap.NewNop().Sugar()
)

// Initialize configures logging. It may be called again to reconfigure;
// previously handed out loggers keep their old destination.
func Initialize(c Config) error {
	lvl, err := ParseLevel(c.Level)
	if err != nil {
		return err
	}

	CloseAll()

	mu.Lock()
	cfg = c
	level.SetLevel(lvl)
	if c.Dir != "" {
		if err := os.MkdirAll(c.Dir, 0755); err != nil {
			mu.Unlock()
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
		base = nil
	} else {
		base = zap.New(zapcore.NewCore(encoder(c.JSONFormat), zapcore.Lock(os.Stderr), level))
	}
	mu.Unlock()

	boot := Get(CategoryBoot)
	boot.Debug("Logging initialized (level=%s, dir=%q, json=%v)", lvl, c.Dir, c.JSONFormat)
	return nil
}

// UseCore routes every category into core. Tests use it with zaptest/observer.
func UseCore(core zapcore.Core) {
	CloseAll()
	mu.Lock()
	defer mu.Unlock()
	cfg = Config{}
	level.SetLevel(zapcore.DebugLevel)
	base = zap.New(core)
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(name string) (zapcore.Level, error) {
	switch name {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// SetLevel changes the level of every logger at runtime.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

func encoder(json bool) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if json {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if cfg.Categories == nil {
		return true
	}
	enabled, exists := cfg.Categories[string(category)]
	return !exists || enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger before Initialize or when the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: nop}
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	initialized := base != nil || cfg.Dir != ""
	mu.RUnlock()
	if !initialized {
		return &Logger{category: category, sugar: nop}
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	var zl *zap.Logger
	if cfg.Dir != "" {
		date := time.Now().Format("2006-01-02")
		logPath := filepath.Join(cfg.Dir, fmt.Sprintf("%s_%s.log", date, category))
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
			return &Logger{category: category, sugar: nop}
		}
		files = append(files, file)
		zl = zap.New(zapcore.NewCore(encoder(cfg.JSONFormat), zapcore.AddSync(file), level))
	} else {
		zl = base
	}

	l := &Logger{category: category, sugar: zl.Named(string(category)).Sugar()}
	loggers[category] = l
	return l
}

// Category returns the logger's category.
func (l *Logger) Category() Category { return l.category }

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a logger carrying extra structured fields.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// CloseAll flushes and closes all open log files (call at shutdown)
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		_ = l.sugar.Sync()
	}
	for _, f := range files {
		f.Close()
	}
	files = nil
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// World logs to the world category
func World(format string, args ...interface{}) {
	Get(CategoryWorld).Info(format, args...)
}

// WorldDebug logs debug to the world category
func WorldDebug(format string, args ...interface{}) {
	Get(CategoryWorld).Debug(format, args...)
}

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
