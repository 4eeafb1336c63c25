package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"expandinator/internal/config"
	"expandinator/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded configuration
	cfg = config.DefaultConfig()

	// Logger
	logger = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "expandinator",
	Short: "Rebuild derive-macro crates as web-loadable expanders",
	Long: `expandinator turns procedural-macro crates into plain libraries compiled
for wasm32-unknown-unknown, exporting one string-to-string expander per derive.

Each crate root is rewritten: the host-only proc_macro facility is replaced by
proc_macro2, argument parsing shorthands become explicit parses, and every
#[proc_macro_derive] function gets an exported expand_<name> wrapper.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		if err := logging.Initialize(logging.Options{
			Level:      level,
			Format:     cfg.Logging.Format,
			Categories: cfg.Logging.Categories,
			OutputPath: cfg.Logging.File,
		}); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logging.Base()
		logging.BootDebug("config loaded from %s", configPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "expandinator.yaml", "Config file")

	// Rewrite flags
	rewriteCmd.Flags().StringVarP(&rewriteOut, "out", "o", "", "Write the rewritten module here (default: stdout)")
	rewriteCmd.Flags().StringVar(&rewriteRegistry, "registry", "", "Write the export registry JSON here")
	rewriteCmd.Flags().StringVar(&generation, "generation", "", "Pass set: current or legacy (default: from config)")
	rewriteCmd.Flags().BoolVarP(&rewriteWatch, "watch", "w", false, "Rewrite again whenever the file changes")
	rewriteCmd.Flags().BoolVarP(&rewriteDiff, "diff", "d", false, "Print a unified diff instead of the module")

	// Manifest flags
	patchManifestCmd.Flags().StringVar(&generation, "generation", "", "Patch strategy: current or legacy (default: from config)")

	// Build flags
	buildCmd.Flags().StringVarP(&buildTargets, "targets", "t", "", "Targets file (default: from config)")
	buildCmd.Flags().StringVarP(&buildOutDir, "out-dir", "o", "", "Artifact directory (default: from config)")
	buildCmd.Flags().BoolVar(&buildSkipInstall, "skip-install", false, "Do not cargo install wasm-bindgen-cli")
	buildCmd.Flags().BoolVar(&buildKeepSources, "keep-sources", false, "Leave unpacked crate sources on disk")

	// Add commands to root
	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(patchManifestCmd)
	rootCmd.AddCommand(buildCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
