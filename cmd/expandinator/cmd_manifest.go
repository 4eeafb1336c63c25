package main

import (
	"fmt"

	"expandinator/internal/manifest"

	"github.com/spf13/cobra"
)

// patchManifestCmd patches a Cargo.toml in place
var patchManifestCmd = &cobra.Command{
	Use:   "patch-manifest [Cargo.toml]",
	Short: "Patch a proc-macro crate manifest for the wasm target",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatchManifest,
}

func manifestOptions(flag string) (manifest.Options, error) {
	gen := manifest.Generation(cfg.Manifest.Generation)
	if flag != "" {
		gen = manifest.Generation(flag)
	}
	switch gen {
	case "", manifest.GenerationCurrent, manifest.GenerationLegacy:
	default:
		return manifest.Options{}, fmt.Errorf("unknown generation %q (want current or legacy)", gen)
	}
	return manifest.Options{
		Generation:          gen,
		WasmBindgenVersion:  cfg.Manifest.WasmBindgenVersion,
		PrettyPleaseVersion: cfg.Manifest.PrettyPleaseVersion,
		DiagnosticsForkURL:  cfg.Manifest.DiagnosticsForkURL,
	}, nil
}

func runPatchManifest(cmd *cobra.Command, args []string) error {
	opts, err := manifestOptions(generation)
	if err != nil {
		return err
	}
	if err := manifest.PatchFile(args[0], opts); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("patched")+" "+args[0])
	return nil
}
