package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeaug/internal/tokenizer"
	"codeaug/internal/world"
)

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Len(t, cfg.Buckets, 1)
	assert.Equal(t, "default", cfg.Buckets[0].Name)
	assert.Equal(t, []string{"//:AUG_CODE:"}, cfg.Buckets[0].Markers)
	assert.Equal(t, ".codeaug/work/prepResults.json", cfg.PrepFile)
	assert.Equal(t, ".codeaug/generated", cfg.DestDir)
	assert.True(t, cfg.ChangeDetection)
	assert.True(t, cfg.FailOnChanges)
	assert.Equal(t, "sqlite", cfg.History.Driver)
	assert.Equal(t, 30*time.Second, cfg.GetEvalTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.GetWatchDebounce())
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(DefaultConfig(), cfg))
	})

	t.Run("partial file keeps other defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		data := "dest_dir: out\nchange_detection: false\neval:\n  timeout: 5s\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "out", cfg.DestDir)
		assert.False(t, cfg.ChangeDetection)
		assert.Equal(t, 5*time.Second, cfg.GetEvalTimeout())
		assert.Equal(t, ".codeaug/work/prepResults.json", cfg.PrepFile)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("buckets: [\n"), 0644))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config")
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Buckets = append(cfg.Buckets, BucketConfig{
		Name:         "extra",
		Markers:      []string{"//:EXTRA:"},
		RequestFile:  "req2.json",
		ResponseFile: "resp2.json",
	})
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(cfg, loaded))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CODEAUG_DEST_DIR", "/tmp/gen")
	t.Setenv("CODEAUG_LOG_LEVEL", "debug")
	t.Setenv("CODEAUG_CHANGE_DETECTION", "false")
	t.Setenv("CODEAUG_HISTORY_PATH", "/tmp/h.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/gen", cfg.DestDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.ChangeDetection)
	assert.Equal(t, "/tmp/h.db", cfg.History.Path)
}

func TestEnvOverrides_InvalidBoolIgnored(t *testing.T) {
	t.Setenv("CODEAUG_CHANGE_DETECTION", "maybe")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.True(t, cfg.ChangeDetection)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"no buckets", func(c *Config) { c.Buckets = nil }, "at least one augmenting code bucket"},
		{"unnamed bucket", func(c *Config) { c.Buckets[0].Name = "" }, "bucket 1 has no name"},
		{"duplicate bucket", func(c *Config) { c.Buckets = append(c.Buckets, c.Buckets[0]) }, "duplicate bucket name: default"},
		{"blank markers", func(c *Config) { c.Buckets[0].Markers = []string{" "} }, "has no augmenting code markers"},
		{"missing response", func(c *Config) { c.Buckets[0].ResponseFile = "" }, "needs both"},
		{"no sources", func(c *Config) { c.Sources = nil }, "at least one source"},
		{"source without dir", func(c *Config) { c.Sources[0].BaseDir = "" }, "source 1 has no base_dir"},
		{"no prep file", func(c *Config) { c.PrepFile = "" }, "prep_file must be set"},
		{"no dest dir", func(c *Config) { c.DestDir = "" }, "dest_dir must be set"},
		{"bad timeout", func(c *Config) { c.Eval.Timeout = "soon" }, "invalid eval timeout"},
		{"bad driver", func(c *Config) { c.History.Driver = "postgres" }, "invalid history driver"},
		{"missing gen code start", func(c *Config) { c.Directives.GenCodeStart = nil }, "gen_code_start"},
		{"unpaired nesting", func(c *Config) { c.Directives.NestedLevelEnd = nil }, "must be set together"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("bad driver ignored when history disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.History.Enabled = false
		cfg.History.Driver = "postgres"
		assert.NoError(t, cfg.Validate())
	})
}

func TestDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Eval.Timeout = ""
	cfg.Watch.Debounce = "bogus"
	assert.Equal(t, time.Duration(0), cfg.GetEvalTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.GetWatchDebounce())

	cfg.Eval.Timeout = "bogus"
	assert.Equal(t, 30*time.Second, cfg.GetEvalTimeout())
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func TestMarkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Buckets = append(cfg.Buckets, BucketConfig{Name: "b", Markers: []string{"//:B:", ""}})
	cfg.Directives.InlineGenCode = []string{"", "/*:GEN_CODE:*/"}

	want := tokenizer.Markers{
		GenCodeStart:     []string{"//:GEN_CODE_START:"},
		GenCodeEnd:       []string{"//:GEN_CODE_END:"},
		InlineGenCode:    []string{"/*:GEN_CODE:*/"},
		SkipCodeStart:    []string{"//:SKIP_CODE_START:"},
		SkipCodeEnd:      []string{"//:SKIP_CODE_END:"},
		EmbeddedString:   []string{"//:STR:"},
		EmbeddedJSON:     []string{"//:JSON:"},
		AugCodeBuckets:   [][]string{{"//:AUG_CODE:"}, {"//:B:"}},
		NestedLevelStart: []string{"{"},
		NestedLevelEnd:   []string{"}"},
	}
	assert.Empty(t, cmp.Diff(want, cfg.Markers()))
}

func TestWorkspacePaths(t *testing.T) {
	ws := t.TempDir()
	cfg := DefaultConfig()
	cfg.Sources = []SourceConfig{
		{BaseDir: "src", Include: []string{"*.go"}},
		{BaseDir: "/abs/lib/"},
	}

	want := []world.SourceSet{
		{BaseDir: filepath.Join(ws, "src"), Include: []string{"*.go"}},
		{BaseDir: "/abs/lib"},
	}
	assert.Empty(t, cmp.Diff(want, cfg.SourceSets(ws)))
	assert.Equal(t, []string{filepath.Join(ws, ".codeaug/work/augCodes.json")}, cfg.RequestFiles(ws))
	assert.Equal(t, []string{filepath.Join(ws, ".codeaug/work/genCodes.json")}, cfg.ResponseFiles(ws))
	assert.Equal(t, []string{filepath.Join(ws, ".codeaug/scripts/main.go")}, cfg.Buckets[0].ScriptFiles(ws))
}

func TestLoggingConfig(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Format: "json", Dir: "logs", Categories: map[string]bool{"eval": false}}

	assert.False(t, lc.IsCategoryEnabled("eval"))
	assert.True(t, lc.IsCategoryEnabled("prepare"))

	out := lc.ToLogging("/ws")
	assert.Equal(t, "debug", out.Level)
	assert.True(t, out.JSONFormat)
	assert.Equal(t, filepath.Join("/ws", "logs"), out.Dir)
	assert.Equal(t, map[string]bool{"eval": false}, out.Categories)

	assert.Empty(t, LoggingConfig{}.ToLogging("/ws").Dir)
}
