package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CARGO", "EXPANDINATOR_CACHE_DIR", "EXPANDINATOR_INDEX_URL", "EXPANDINATOR_OUT_DIR"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "current", cfg.Rewrite.Generation)
	assert.Equal(t, "https://index.crates.io", cfg.Registry.IndexURL)
	assert.Equal(t, "0.2.80", cfg.Manifest.WasmBindgenVersion)
	assert.Equal(t, "0.1.9", cfg.Manifest.PrettyPleaseVersion)
	assert.Equal(t, "wasm32-unknown-unknown", cfg.Toolchain.Target)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "expandinator.yaml")

	cfg := DefaultConfig()
	cfg.Rewrite.Generation = "legacy"
	cfg.Registry.Concurrency = 9
	cfg.Logging.Categories = map[string]bool{"syntax": false}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestConfig_SaveLoadEmptyMaps(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "expandinator.yaml")

	cfg := DefaultConfig()
	require.Nil(t, cfg.Toolchain.EnvVars)
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "env_vars")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	cfg.Toolchain.EnvVars = map[string]string{"RUSTFLAGS": "-C opt-level=s"}
	require.NoError(t, cfg.Save(path))
	loaded, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "expandinator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  dir: dist\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dist", cfg.Output.Dir)
	assert.Equal(t, "targets.txt", cfg.Output.TargetsFile)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "rewrite: [\n"},
		{"bad generation", "rewrite:\n  generation: newest\n"},
		{"bad timeout", "toolchain:\n  timeout: soon\n"},
		{"negative concurrency", "registry:\n  concurrency: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "expandinator.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CARGO", "/opt/rust/bin/cargo")
	t.Setenv("EXPANDINATOR_CACHE_DIR", "/var/cache/crates")
	t.Setenv("EXPANDINATOR_INDEX_URL", "http://127.0.0.1:9000")
	t.Setenv("EXPANDINATOR_OUT_DIR", "/tmp/out")

	cfg := &Config{}
	cfg.applyEnvOverrides()

	assert.Equal(t, "/opt/rust/bin/cargo", cfg.Toolchain.Cargo)
	assert.Equal(t, "/var/cache/crates", cfg.Registry.CacheDir)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.Registry.IndexURL)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
	assert.Equal(t, "/var/cache/crates", cfg.GetCacheDir())
}

func TestEnvOverrides_EmptyKeepsValue(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	assert.Equal(t, "cargo", cfg.Toolchain.Cargo)
}

func TestTimeouts(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 60*time.Second, cfg.GetRegistryTimeout())
	assert.Equal(t, 30*time.Minute, cfg.GetToolchainTimeout())

	cfg.Registry.Timeout = ""
	assert.Equal(t, 60*time.Second, cfg.GetRegistryTimeout())
}
