package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"expandinator/internal/crates"
	"expandinator/internal/manifest"
	"expandinator/internal/rewrite"
	"expandinator/internal/toolchain"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloLib = `extern crate proc_macro;

use proc_macro::TokenStream;
use syn::{parse_macro_input, DeriveInput};

#[proc_macro_derive(Hello)]
pub fn hello_derive(input: TokenStream) -> TokenStream {
    let input = parse_macro_input!(input as DeriveInput);
    let _ = input;
    TokenStream::new()
}
`

const brokenLib = `#[proc_macro_derive(Broken)]
pub fn broken(input: TokenStream) -> TokenStream {
    let args = parse_macro_input!(input with Parser::parse);
    input
}
`

type fakeResolver struct {
	versions map[string]string
}

func (r *fakeResolver) ResolveAll(_ context.Context, targets []crates.Target, _ int) ([]crates.Resolved, error) {
	var out []crates.Resolved
	for _, t := range targets {
		v, ok := r.versions[t.Name]
		if !ok {
			return nil, crates.ErrNoMatchingVersion
		}
		out = append(out, crates.Resolved{Target: t, Version: crates.Version{Name: t.Name, Vers: v}})
	}
	return out, nil
}

// fakeFetcher lays out a crate directory from in-memory sources.
type fakeFetcher struct {
	t       *testing.T
	libs    map[string]string
	fetched []*crates.Source
}

func (f *fakeFetcher) Fetch(_ context.Context, v crates.Version) (*crates.Source, error) {
	dir := f.t.TempDir()
	root := filepath.Join(dir, v.Name+"-"+v.Vers)
	require.NoError(f.t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(f.t, os.WriteFile(filepath.Join(root, "Cargo.toml"), []byte("[lib]\nproc-macro = true\n"), 0644))
	require.NoError(f.t, os.WriteFile(filepath.Join(root, "src", "lib.rs"), []byte(f.libs[v.Name]), 0644))
	src := &crates.Source{Dir: dir, Root: root}
	f.fetched = append(f.fetched, src)
	return src, nil
}

type recorder struct {
	cmds []toolchain.Command
	fail func(toolchain.Command) error
}

func (r *recorder) Execute(_ context.Context, cmd toolchain.Command) (*toolchain.Result, error) {
	r.cmds = append(r.cmds, cmd)
	if r.fail != nil {
		if err := r.fail(cmd); err != nil {
			return nil, err
		}
	}
	return &toolchain.Result{}, nil
}

func newBuilder(t *testing.T, libs map[string]string, rec *recorder, opts Options) (*Builder, *fakeFetcher) {
	t.Helper()
	versions := map[string]string{}
	for name := range libs {
		versions[name] = "1.2.0"
	}
	fetcher := &fakeFetcher{t: t, libs: libs}
	opts.ModuleFile = "targets.ts"
	opts.BindgenVersion = "0.2.80"
	opts.Manifest = manifest.Options{WasmBindgenVersion: "0.2.80", PrettyPleaseVersion: "0.1.9", DiagnosticsForkURL: "https://example.com/fork"}
	b := New(opts, &fakeResolver{versions: versions}, fetcher,
		&toolchain.Cargo{Exec: rec, Binary: "cargo", Target: "wasm32-unknown-unknown"},
		&toolchain.Bindgen{Exec: rec, Binary: "wasm-bindgen"},
	)
	return b, fetcher
}

func TestBuilder_Run(t *testing.T) {
	rec := &recorder{}
	out := t.TempDir()
	b, fetcher := newBuilder(t, map[string]string{"hello-derive": helloLib}, rec, Options{OutDir: out, KeepSources: true})

	report, err := b.Run(context.Background(), []crates.Target{{Name: "hello-derive", Req: "1"}})
	require.NoError(t, err)

	assert.Len(t, report.RunID, 8)
	require.Len(t, report.Modules, 1)
	mod := report.Modules[0]
	assert.Equal(t, "hello-derive-1-2-0", mod.Artifact)
	assert.Equal(t, rewrite.Registry{"#[derive(Hello)]": "expand_hello_derive"}, mod.Registry)

	var lines []string
	for _, c := range rec.cmds {
		lines = append(lines, c.String())
	}
	root := fetcher.fetched[0].Root
	want := []string{
		"cargo install wasm-bindgen-cli --version 0.2.80",
		"cargo build --quiet --release --target wasm32-unknown-unknown",
		"wasm-bindgen " + filepath.Join(root, "target", "wasm32-unknown-unknown", "release", "hello_derive.wasm") +
			" --out-dir " + out + " --out-name hello-derive-1-2-0 --target web",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("tool invocations mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, root, rec.cmds[1].Dir)

	lib, err := os.ReadFile(filepath.Join(root, "src", "lib.rs"))
	require.NoError(t, err)
	assert.NotContains(t, string(lib), "extern crate proc_macro")
	assert.Contains(t, string(lib), "pub fn expand_hello_derive(input: String) -> String {")

	cargoToml, err := os.ReadFile(filepath.Join(root, "Cargo.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(cargoToml), `crate-type = ["cdylib"]`)

	registry, err := os.ReadFile(filepath.Join(out, "hello-derive-1-2-0.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"#[derive(Hello)]":"expand_hello_derive"}`, string(registry))

	targets, err := os.ReadFile(filepath.Join(out, "targets.ts"))
	require.NoError(t, err)
	assert.Contains(t, string(targets), `"hello-derive 1": { lib: () => import("./hello-derive-1-2-0.js")`)
	assert.Equal(t, filepath.Join(out, "targets.ts"), report.TargetsPath)
}

func TestBuilder_SkipInstallAndCleanup(t *testing.T) {
	rec := &recorder{}
	b, fetcher := newBuilder(t, map[string]string{"hello-derive": helloLib}, rec, Options{OutDir: t.TempDir(), SkipInstall: true})

	_, err := b.Run(context.Background(), []crates.Target{{Name: "hello-derive", Req: "1"}})
	require.NoError(t, err)

	for _, c := range rec.cmds {
		assert.NotContains(t, c.Args, "install")
	}
	assert.NoDirExists(t, fetcher.fetched[0].Dir)
}

func TestBuilder_FirstFailureAborts(t *testing.T) {
	rec := &recorder{}
	out := t.TempDir()
	b, _ := newBuilder(t, map[string]string{"broken": brokenLib, "hello-derive": helloLib}, rec, Options{OutDir: out, SkipInstall: true})

	targets := []crates.Target{{Name: "broken", Req: "1"}, {Name: "hello-derive", Req: "1"}}
	_, err := b.Run(context.Background(), targets)
	require.Error(t, err)
	assert.ErrorIs(t, err, rewrite.ErrUnsupportedShape)
	assert.True(t, strings.HasPrefix(err.Error(), "broken 1: "))

	assert.Empty(t, rec.cmds, "nothing is compiled after the failing rewrite")
	assert.NoFileExists(t, filepath.Join(out, "targets.ts"))
}

func TestBuilder_ToolFailureAborts(t *testing.T) {
	boom := &toolchain.ExitError{Command: toolchain.Command{Binary: "cargo"}, ExitCode: 101}
	rec := &recorder{fail: func(c toolchain.Command) error {
		if len(c.Args) > 0 && c.Args[0] == "build" {
			return boom
		}
		return nil
	}}
	b, _ := newBuilder(t, map[string]string{"hello-derive": helloLib}, rec, Options{OutDir: t.TempDir(), SkipInstall: true})

	_, err := b.Run(context.Background(), []crates.Target{{Name: "hello-derive", Req: "1"}})
	var exitErr *toolchain.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 101, exitErr.ExitCode)
}

func TestBuilder_ResolveFailure(t *testing.T) {
	b, _ := newBuilder(t, map[string]string{}, &recorder{}, Options{OutDir: t.TempDir(), SkipInstall: true})
	_, err := b.Run(context.Background(), []crates.Target{{Name: "missing", Req: "1"}})
	assert.ErrorIs(t, err, crates.ErrNoMatchingVersion)
}
