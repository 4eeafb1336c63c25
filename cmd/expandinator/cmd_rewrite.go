package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"expandinator/internal/diff"
	"expandinator/internal/rewrite"
	"expandinator/internal/watch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	rewriteOut      string
	rewriteRegistry string
	rewriteWatch    bool
	rewriteDiff     bool
	generation      string
)

// rewriteCmd rewrites a single crate root
var rewriteCmd = &cobra.Command{
	Use:   "rewrite [lib.rs]",
	Short: "Rewrite one proc-macro crate root",
	Long: `Runs the rewrite pipeline over one crate root and prints the result.

Example:
  expandinator rewrite src/lib.rs -o web/lib.rs --registry web/exports.json`,
	Args: cobra.ExactArgs(1),
	RunE: runRewrite,
}

func rewriteOptions(flag, configured string) (rewrite.Options, error) {
	name := configured
	if flag != "" {
		name = flag
	}
	gen, err := rewrite.ParseGeneration(name)
	if err != nil {
		return rewrite.Options{}, err
	}
	return rewrite.Options{Generation: gen}, nil
}

func runRewrite(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	path := args[0]

	opts, err := rewriteOptions(generation, cfg.Rewrite.Generation)
	if err != nil {
		return err
	}

	if rewriteWatch && rewriteOut != "" && sameFile(rewriteOut, path) {
		return fmt.Errorf("--watch cannot write its output over the watched file %s", path)
	}

	if err := rewriteFile(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), path, opts); err != nil {
		return err
	}
	if !rewriteWatch {
		return nil
	}

	fw, err := watch.New(func(ctx context.Context, changed string) {
		if err := rewriteFile(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), changed, opts); err != nil {
			logger.Error("rewrite failed", zap.String("path", changed), zap.Error(err))
		}
	}, 300*time.Millisecond, path)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}
	defer fw.Stop()

	logger.Info("watching for changes", zap.String("path", path))
	select {
	case <-ctx.Done():
	case <-fw.Done():
	}
	return nil
}

// rewriteFile rewrites path and writes the module, the registry and a
// summary. With --diff stdout gets a unified diff instead of the module.
// The summary goes to stderr whenever stdout carries the module or diff.
func rewriteFile(ctx context.Context, stdout, stderr io.Writer, path string, opts rewrite.Options) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	out, reg, err := rewrite.RewriteSource(ctx, src, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	summary := stdout
	switch {
	case rewriteDiff:
		d := diff.Compute(path, path+" (rewritten)", string(src), out, diff.DefaultContext)
		if _, err := io.WriteString(stdout, d.String()); err != nil {
			return err
		}
		summary = stderr
	case rewriteOut == "":
		if _, err := io.WriteString(stdout, out); err != nil {
			return err
		}
		summary = stderr
	}
	if rewriteOut != "" {
		if err := writeFile(rewriteOut, []byte(out)); err != nil {
			return err
		}
	}

	if rewriteRegistry != "" {
		data, err := json.MarshalIndent(reg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal registry: %w", err)
		}
		if err := writeFile(rewriteRegistry, append(data, '\n')); err != nil {
			return err
		}
	}

	fmt.Fprint(summary, renderModule(filepath.Base(path), reg))
	logger.Debug("rewrote module", zap.String("path", path), zap.Int("exports", reg.Len()))
	return nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func sameFile(a, b string) bool {
	ai, errA := os.Stat(a)
	bi, errB := os.Stat(b)
	if errA != nil || errB != nil {
		absA, _ := filepath.Abs(a)
		absB, _ := filepath.Abs(b)
		return absA == absB
	}
	return os.SameFile(ai, bi)
}
