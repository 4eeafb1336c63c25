package main

import (
	"context"
	"fmt"
	"os"

	"expandinator/internal/build"
	"expandinator/internal/crates"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	buildTargets     string
	buildOutDir      string
	buildSkipInstall bool
	buildKeepSources bool
)

// buildCmd runs the full pipeline from a targets file
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build every crate listed in the targets file",
	Long: `Resolves each "name version-req" line of the targets file against the
crate registry, rewrites and compiles the crate for wasm32-unknown-unknown,
generates web bindings, and writes the lookup module.

Example:
  expandinator build --targets targets.txt --out-dir out`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func loadTargets(path string) ([]crates.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open targets: %w", err)
	}
	defer f.Close()
	targets, err := crates.ParseTargets(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%s lists no targets", path)
	}
	return targets, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if buildTargets != "" {
		cfg.Output.TargetsFile = buildTargets
	}
	if buildOutDir != "" {
		cfg.Output.Dir = buildOutDir
	}

	targets, err := loadTargets(cfg.Output.TargetsFile)
	if err != nil {
		return err
	}

	b, err := build.NewFromConfig(cfg, buildSkipInstall)
	if err != nil {
		return err
	}
	if buildKeepSources {
		b = b.WithKeepSources()
	}

	logger.Info("building", zap.Int("targets", len(targets)), zap.String("out", cfg.Output.Dir))
	report, err := b.Run(ctx, targets)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), renderReport(report))
	return nil
}
