package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codeaug/internal/config"
	"codeaug/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string

	// Logger
	logger *zap.Logger

	// Loaded by PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "codeaug",
	Short: "codeaug - generate code from augmenting code sections in source files",
	Long: `codeaug finds augmenting code sections marked with directive comments in
source files, evaluates them with Go functions from your scripts, and merges the
generated code back into copies of the source files.

A run has three stages:
  1. prepare:  extract augmenting code sections into request files
  2. process:  evaluate every section into generated code response files
  3. complete: merge generated code into the destination tree and report changes`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return loadConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdownLogging()
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/"+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")

	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show (0 for all)")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Show the files of one run")
	historyCmd.Flags().BoolVar(&historyRaw, "raw", false, "Print markdown without rendering")

	// Add commands to root
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	err := rootCmd.Execute()
	shutdownLogging()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveWorkspace returns the absolute workspace directory.
func resolveWorkspace() (string, error) {
	ws := workspace
	if ws == "" {
		var err error
		ws, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
	}
	return filepath.Abs(ws)
}

// resolveConfigPath returns the --config path or the default one in ws.
func resolveConfigPath(ws string) string {
	if configPath != "" {
		return config.Resolve(ws, configPath)
	}
	return filepath.Join(ws, config.DefaultConfigPath)
}

// loadConfig loads and validates the configuration and initializes category logging.
func loadConfig() error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	path := resolveConfigPath(ws)
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	cfg = c

	lc := cfg.Logging.ToLogging(ws)
	if verbose {
		lc.Level = "debug"
	}
	if err := logging.Initialize(lc); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.Debug("Configuration loaded", zap.String("path", path), zap.String("workspace", ws))
	logging.Boot("codeaug starting in %s", ws)
	logging.BootDebug("config %s: %d bucket(s), %d source(s)", path, len(cfg.Buckets), len(cfg.Sources))
	return nil
}

func shutdownLogging() {
	if logger != nil {
		_ = logger.Sync()
	}
	logging.CloseAll()
}
