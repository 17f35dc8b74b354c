package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codeaug/internal/config"
)

var initForce bool

// initCmd writes the default configuration and a starter script.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize codeaug in the current workspace",
	Long: `Creates the codeaug configuration and a starter script.

This command:
  1. Writes the default config to .codeaug/config.yaml (or --config)
  2. Creates every configured source directory that does not exist
  3. Writes a starter script for every bucket script that does not exist`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

// starterScript is written for missing bucket scripts.
const starterScript = `package main

import (
	"strings"

	"codeaug/augment"
)

// Greet turns every string argument into a greeting line:
//
//	//:AUG_CODE: Greet
//	//:STR: world
func Greet(code *augment.AugmentingCode, ctx *augment.Context) (any, error) {
	var sb strings.Builder
	for _, arg := range code.Args {
		if s, ok := arg.(string); ok {
			sb.WriteString("// Hello, " + strings.TrimSpace(s) + "!\n")
		}
	}
	return sb.String(), nil
}
`

func runInit(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	path := resolveConfigPath(ws)
	out := cmd.OutOrStdout()

	if _, err := os.Stat(path); err == nil && !initForce {
		fmt.Fprintf(out, "%s config already exists at %s (use --force to overwrite)\n", dimStyle.Render("skip"), path)
	} else {
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to check config: %w", err)
		}
		// A fresh default config, not the loaded one carrying env overrides.
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", okStyle.Render("wrote"), path)
		logger.Info("Config written", zap.String("path", path))
	}

	for _, dir := range cfg.SourceSets(ws) {
		if err := os.MkdirAll(dir.BaseDir, 0755); err != nil {
			return fmt.Errorf("failed to create source directory: %w", err)
		}
	}

	for _, b := range cfg.Buckets {
		for _, script := range b.ScriptFiles(ws) {
			if _, err := os.Stat(script); err == nil {
				continue
			}
			if err := os.MkdirAll(filepath.Dir(script), 0755); err != nil {
				return fmt.Errorf("failed to create scripts directory: %w", err)
			}
			if err := os.WriteFile(script, []byte(starterScript), 0644); err != nil {
				return fmt.Errorf("failed to write starter script: %w", err)
			}
			fmt.Fprintf(out, "%s %s\n", okStyle.Render("wrote"), script)
		}
	}
	return nil
}
