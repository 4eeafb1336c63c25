// Package build runs the whole pipeline for a list of target crates: resolve,
// fetch, patch, rewrite, compile, bind and write the lookup module.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"expandinator/internal/bundle"
	"expandinator/internal/config"
	"expandinator/internal/crates"
	"expandinator/internal/logging"
	"expandinator/internal/manifest"
	"expandinator/internal/rewrite"
	"expandinator/internal/toolchain"

	"github.com/google/uuid"
)

// Resolver picks a release for each target.
type Resolver interface {
	ResolveAll(ctx context.Context, targets []crates.Target, limit int) ([]crates.Resolved, error)
}

// Fetcher unpacks a release.
type Fetcher interface {
	Fetch(ctx context.Context, v crates.Version) (*crates.Source, error)
}

// Options configures a Builder.
type Options struct {
	OutDir         string
	ModuleFile     string
	Concurrency    int
	SkipInstall    bool
	KeepSources    bool
	BindgenVersion string
	Rewrite        rewrite.Options
	Manifest       manifest.Options
}

// Builder builds target crates one at a time.
type Builder struct {
	opts     Options
	resolver Resolver
	fetcher  Fetcher
	cargo    *toolchain.Cargo
	bindgen  *toolchain.Bindgen
}

// New creates a Builder from its collaborators.
func New(opts Options, resolver Resolver, fetcher Fetcher, cargo *toolchain.Cargo, bindgen *toolchain.Bindgen) *Builder {
	return &Builder{
		opts:     opts,
		resolver: resolver,
		fetcher:  fetcher,
		cargo:    cargo,
		bindgen:  bindgen,
	}
}

// NewFromConfig wires a Builder against the configured registry and
// toolchain.
func NewFromConfig(cfg *config.Config, skipInstall bool) (*Builder, error) {
	gen, err := rewrite.ParseGeneration(cfg.Rewrite.Generation)
	if err != nil {
		return nil, err
	}
	exec := toolchain.NewDirectExecutor(cfg.GetToolchainTimeout())
	opts := Options{
		OutDir:         cfg.Output.Dir,
		ModuleFile:     cfg.Output.ModuleFile,
		Concurrency:    cfg.Registry.Concurrency,
		SkipInstall:    skipInstall,
		BindgenVersion: cfg.Toolchain.BindgenVersion,
		Rewrite:        rewrite.Options{Generation: gen},
		Manifest: manifest.Options{
			Generation:          manifest.Generation(cfg.Manifest.Generation),
			WasmBindgenVersion:  cfg.Manifest.WasmBindgenVersion,
			PrettyPleaseVersion: cfg.Manifest.PrettyPleaseVersion,
			DiagnosticsForkURL:  cfg.Manifest.DiagnosticsForkURL,
		},
	}
	return New(opts,
		crates.NewIndex(cfg.Registry.IndexURL, cfg.GetRegistryTimeout()),
		crates.NewFetcher(cfg.GetCacheDir(), cfg.Registry.DownloadURL, cfg.GetRegistryTimeout()),
		&toolchain.Cargo{
			Exec:   exec,
			Binary: cfg.Toolchain.Cargo,
			Target: cfg.Toolchain.Target,
			Env:    toolchain.Env(cfg.Toolchain.EnvVars),
		},
		&toolchain.Bindgen{Exec: exec, Binary: cfg.Toolchain.Bindgen},
	), nil
}

// WithKeepSources leaves unpacked crate sources on disk after each build.
func (b *Builder) WithKeepSources() *Builder {
	b.opts.KeepSources = true
	return b
}

// Module is the outcome for one target.
type Module struct {
	Target   crates.Target
	Version  string
	Artifact string
	Registry rewrite.Registry
}

// Report summarizes a run.
type Report struct {
	RunID       string
	Modules     []Module
	TargetsPath string
	Duration    time.Duration
}

// Run builds every target in order. The first failure aborts the run and no
// lookup module is written.
func (b *Builder) Run(ctx context.Context, targets []crates.Target) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.New().String()[:8]}
	log := logging.Get(logging.CategoryBuild).With("run", report.RunID)
	log.Info("starting build of %d targets", len(targets))

	outDir, err := filepath.Abs(b.opts.OutDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if !b.opts.SkipInstall {
		if err := b.cargo.InstallBindgen(ctx, b.opts.BindgenVersion); err != nil {
			return nil, fmt.Errorf("failed to install wasm-bindgen-cli: %w", err)
		}
	}

	resolved, err := b.resolver.ResolveAll(ctx, targets, b.opts.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve targets: %w", err)
	}

	var lookup bundle.Manifest
	for _, r := range resolved {
		log.Info("building %s (%s)", r.Target, r.Version.Vers)
		mod, err := b.buildOne(ctx, r, outDir)
		if err != nil {
			log.Error("build of %s failed: %v", r.Target, err)
			return nil, fmt.Errorf("%s: %w", r.Target, err)
		}
		report.Modules = append(report.Modules, *mod)
		lookup.Add(bundle.Entry{Label: r.Target.String(), Artifact: mod.Artifact, Exports: mod.Registry.Len()})
	}

	path, err := lookup.WriteTargets(outDir, b.opts.ModuleFile)
	if err != nil {
		return nil, err
	}
	report.TargetsPath = path
	report.Duration = time.Since(start)
	log.Info("build finished: %d modules in %v", len(report.Modules), report.Duration)
	return report, nil
}

func (b *Builder) buildOne(ctx context.Context, r crates.Resolved, outDir string) (*Module, error) {
	src, err := b.fetcher.Fetch(ctx, r.Version)
	if err != nil {
		return nil, err
	}
	if b.opts.KeepSources {
		logging.BuildDebug("keeping sources of %s in %s", r.Target.Name, src.Root)
	} else {
		defer src.Remove()
	}

	if err := manifest.PatchFile(filepath.Join(src.Root, "Cargo.toml"), b.opts.Manifest); err != nil {
		return nil, err
	}

	reg, err := rewriteLib(ctx, filepath.Join(src.Root, "src", "lib.rs"), b.opts.Rewrite)
	if err != nil {
		return nil, err
	}

	if err := b.cargo.Build(ctx, src.Root); err != nil {
		return nil, err
	}

	artifact := bundle.ArtifactName(r.Version.Name, r.Version.Vers)
	wasm := b.cargo.Artifact(src.Root, r.Version.Name)
	if err := b.bindgen.Generate(ctx, wasm, outDir, artifact); err != nil {
		return nil, err
	}
	if _, err := bundle.WriteRegistry(outDir, artifact, reg); err != nil {
		return nil, err
	}

	return &Module{Target: r.Target, Version: r.Version.Vers, Artifact: artifact, Registry: reg}, nil
}

// rewriteLib rewrites a crate root in place and returns its export registry.
func rewriteLib(ctx context.Context, path string, opts rewrite.Options) (rewrite.Registry, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read crate root: %w", err)
	}
	out, reg, err := rewrite.RewriteSource(ctx, src, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return nil, fmt.Errorf("failed to write crate root: %w", err)
	}
	logging.BuildDebug("rewrote %s: %d exports", path, reg.Len())
	return reg, nil
}
