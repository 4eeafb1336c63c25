package toolchain

import (
	"context"
	"path/filepath"
	"strings"
)

const bindgenCrate = "wasm-bindgen-cli"

// Cargo drives cargo for the portable target.
type Cargo struct {
	Exec   Executor
	Binary string
	Target string   // e.g. wasm32-unknown-unknown
	Env    []string // see Env
}

// InstallBindgen installs the binding generator CLI at version.
func (c *Cargo) InstallBindgen(ctx context.Context, version string) error {
	_, err := c.Exec.Execute(ctx, Command{
		Binary: c.Binary,
		Args:   []string{"install", bindgenCrate, "--version", version},
		Env:    c.Env,
	})
	return err
}

// Build compiles the crate rooted at dir in release mode.
func (c *Cargo) Build(ctx context.Context, dir string) error {
	_, err := c.Exec.Execute(ctx, Command{
		Binary: c.Binary,
		Args:   []string{"build", "--quiet", "--release", "--target", c.Target},
		Dir:    dir,
		Env:    c.Env,
	})
	return err
}

// Artifact returns the path of the compiled module for crate name.
func (c *Cargo) Artifact(dir, name string) string {
	return filepath.Join(dir, "target", c.Target, "release", strings.ReplaceAll(name, "-", "_")+".wasm")
}

// Bindgen drives the binding generator.
type Bindgen struct {
	Exec   Executor
	Binary string
}

// Generate writes web bindings for wasm into outDir as outName.js and
// outName_bg.wasm.
func (b *Bindgen) Generate(ctx context.Context, wasm, outDir, outName string) error {
	_, err := b.Exec.Execute(ctx, Command{
		Binary: b.Binary,
		Args:   []string{wasm, "--out-dir", outDir, "--out-name", outName, "--target", "web"},
	})
	return err
}
