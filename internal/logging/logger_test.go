package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func reset() {
	CloseAll()
	mu.Lock()
	cfg = Config{}
	base = nil
	mu.Unlock()
	level.SetLevel(zapcore.InfoLevel)
}

func TestGet_NoopBeforeInitialize(t *testing.T) {
	reset()
	l := Get(CategoryTokenizer)
	require.NotNil(t, l)
	assert.Equal(t, CategoryTokenizer, l.Category())
	l.Info("nothing happens %d", 1)
}

func TestUseCore_CategoriesAreNamed(t *testing.T) {
	reset()
	defer reset()

	core, logs := observer.New(zapcore.DebugLevel)
	UseCore(core)

	Get(CategoryPrepare).Info("prepared %d files", 3)
	Get(CategoryComplete).Debug("done")
	Get(CategoryStore).Error("boom: %v", "disk")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "prepare", entries[0].LoggerName)
	assert.Equal(t, "prepared 3 files", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "complete", entries[1].LoggerName)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestWith_AddsFields(t *testing.T) {
	reset()
	defer reset()

	core, logs := observer.New(zapcore.DebugLevel)
	UseCore(core)

	Get(CategoryEval).With("file", "a.go").Warn("slow")
	entries := logs.FilterField(zap.String("file", "a.go")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "slow", entries[0].Message)
}

func TestInitialize_WritesCategoryFiles(t *testing.T) {
	reset()
	defer reset()

	dir := t.TempDir()
	require.NoError(t, Initialize(Config{Level: "debug", Dir: dir}))

	Get(CategoryWorld).Info("scanning %s", "src")
	Get(CategoryWatch).Debug("debounced")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	for _, cat := range []Category{CategoryWorld, CategoryWatch} {
		data, err := os.ReadFile(filepath.Join(dir, date+"_"+string(cat)+".log"))
		require.NoError(t, err, "log file for %s", cat)
		assert.NotEmpty(t, data)
	}
	data, err := os.ReadFile(filepath.Join(dir, date+"_world.log"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "scanning src"))
}

func TestInitialize_DisabledCategory(t *testing.T) {
	reset()
	defer reset()

	dir := t.TempDir()
	require.NoError(t, Initialize(Config{Dir: dir, Categories: map[string]bool{"store": false}}))
	assert.False(t, IsCategoryEnabled(CategoryStore))
	assert.True(t, IsCategoryEnabled(CategoryWorld))

	Store("hidden")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	_, err := os.Stat(filepath.Join(dir, date+"_store.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Error(t, Initialize(Config{Level: "loud"}))
}

func TestTimer(t *testing.T) {
	reset()
	defer reset()

	core, logs := observer.New(zapcore.DebugLevel)
	UseCore(core)

	timer := StartTimer(CategoryProcess, "evaluate")
	elapsed := timer.StopWithThreshold(time.Hour)
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "evaluate completed in")

	StartTimer(CategoryProcess, "evaluate").StopWithThreshold(-1)
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)
}

func TestConcurrentGet(t *testing.T) {
	reset()
	defer reset()

	core, logs := observer.New(zapcore.InfoLevel)
	UseCore(core)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			Get(CategorySections).Info("worker %d", n)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, logs.Len())
}
