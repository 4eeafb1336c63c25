package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all expandinator configuration.
type Config struct {
	// Rewrite pipeline
	Rewrite RewriteConfig `yaml:"rewrite"`

	// Crate registry access
	Registry RegistryConfig `yaml:"registry"`

	// External compiler and binding generator
	Toolchain ToolchainConfig `yaml:"toolchain"`

	// Cargo.toml patching
	Manifest ManifestConfig `yaml:"manifest"`

	// Build inputs and outputs
	Output OutputConfig `yaml:"output"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// RewriteConfig configures the source rewrite pipeline.
type RewriteConfig struct {
	Generation string `yaml:"generation"` // current, legacy
}

// RegistryConfig configures where crate versions and archives come from.
type RegistryConfig struct {
	IndexURL    string `yaml:"index_url"`    // sparse index root
	DownloadURL string `yaml:"download_url"` // archive root, {name}/{name}-{version}.crate is appended
	CacheDir    string `yaml:"cache_dir"`    // directory of cached .crate files, empty = user cache
	Concurrency int    `yaml:"concurrency"`  // parallel index lookups
	Timeout     string `yaml:"timeout"`      // per request
}

// ToolchainConfig configures the external tools a build invokes.
type ToolchainConfig struct {
	Cargo          string `yaml:"cargo"`           // cargo binary, $CARGO wins
	Bindgen        string `yaml:"bindgen"`         // wasm-bindgen binary
	BindgenVersion string `yaml:"bindgen_version"` // version passed to cargo install
	Target         string `yaml:"target"`          // rustc target triple
	Timeout        string `yaml:"timeout"`         // per tool invocation

	EnvVars map[string]string `yaml:"env_vars,omitempty"` // added to every cargo invocation
}

// ManifestConfig configures the dependency tables inserted into Cargo.toml.
type ManifestConfig struct {
	Generation          string `yaml:"generation"` // current (regex) or legacy (literal)
	WasmBindgenVersion  string `yaml:"wasm_bindgen_version"`
	PrettyPleaseVersion string `yaml:"prettyplease_version"`
	DiagnosticsForkURL  string `yaml:"diagnostics_fork_url"` // proc-macro-error fork built on proc-macro2
}

// OutputConfig configures build inputs and artifacts.
type OutputConfig struct {
	Dir         string `yaml:"dir"`          // artifact directory
	TargetsFile string `yaml:"targets_file"` // list of "name version-req" lines
	ModuleFile  string `yaml:"module_file"`  // generated lookup module inside Dir
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Rewrite: RewriteConfig{
			Generation: "current",
		},
		Registry: RegistryConfig{
			IndexURL:    "https://index.crates.io",
			DownloadURL: "https://static.crates.io/crates",
			Concurrency: 4,
			Timeout:     "60s",
		},
		Toolchain: ToolchainConfig{
			Cargo:          "cargo",
			Bindgen:        "wasm-bindgen",
			BindgenVersion: "0.2.80",
			Target:         "wasm32-unknown-unknown",
			Timeout:        "30m",
		},
		Manifest: ManifestConfig{
			Generation:          "current",
			WasmBindgenVersion:  "0.2.80",
			PrettyPleaseVersion: "0.1.9",
			DiagnosticsForkURL:  "https://github.com/boringcactus/proc-macro2-error",
		},
		Output: OutputConfig{
			Dir:         "out",
			TargetsFile: "targets.txt",
			ModuleFile:  "targets.ts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	// cargo sets CARGO for build scripts and `cargo run`
	if cargo := os.Getenv("CARGO"); cargo != "" {
		c.Toolchain.Cargo = cargo
	}
	if dir := os.Getenv("EXPANDINATOR_CACHE_DIR"); dir != "" {
		c.Registry.CacheDir = dir
	}
	if url := os.Getenv("EXPANDINATOR_INDEX_URL"); url != "" {
		c.Registry.IndexURL = url
	}
	if dir := os.Getenv("EXPANDINATOR_OUT_DIR"); dir != "" {
		c.Output.Dir = dir
	}
}

// Validate checks values that would otherwise fail deep inside a build.
func (c *Config) Validate() error {
	for _, g := range []struct{ section, value string }{
		{"rewrite", c.Rewrite.Generation},
		{"manifest", c.Manifest.Generation},
	} {
		switch g.value {
		case "", "current", "legacy":
		default:
			return fmt.Errorf("invalid %s generation: %s (valid: current, legacy)", g.section, g.value)
		}
	}
	if c.Registry.Concurrency < 0 {
		return fmt.Errorf("registry concurrency must not be negative: %d", c.Registry.Concurrency)
	}
	for _, d := range []struct{ name, value string }{
		{"registry timeout", c.Registry.Timeout},
		{"toolchain timeout", c.Toolchain.Timeout},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.value, err)
		}
	}
	return nil
}

// GetRegistryTimeout returns the per-request registry timeout.
func (c *Config) GetRegistryTimeout() time.Duration {
	return parseDuration(c.Registry.Timeout, 60*time.Second)
}

// GetToolchainTimeout returns the per-invocation tool timeout.
func (c *Config) GetToolchainTimeout() time.Duration {
	return parseDuration(c.Toolchain.Timeout, 30*time.Minute)
}

// GetCacheDir returns the crate cache directory, falling back to the user
// cache directory.
func (c *Config) GetCacheDir() string {
	if c.Registry.CacheDir != "" {
		return c.Registry.CacheDir
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "expandinator", "crates")
	}
	return filepath.Join(os.TempDir(), "expandinator", "crates")
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return fallback
}
