package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"expandinator/internal/rewrite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "thiserror-impl-1-0-38", ArtifactName("thiserror-impl", "1.0.38"))
	assert.Equal(t, "x-0-1-0-rc-1", ArtifactName("x", "0.1.0-rc.1"))
}

func TestWriteRegistry(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	reg := rewrite.Registry{"#[derive(Error)]": "expand_derive_error"}

	path, err := WriteRegistry(dir, "thiserror-impl-1-0-38", reg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "thiserror-impl-1-0-38.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"#[derive(Error)]":"expand_derive_error"}`, string(data))
}

func TestManifest_WriteTargets(t *testing.T) {
	var m Manifest
	m.Add(Entry{Label: "thiserror-impl 1", Artifact: "thiserror-impl-1-0-38"})
	m.Add(Entry{Label: "serde_derive =1.0.150", Artifact: "serde_derive-1-0-150"})

	dir := t.TempDir()
	path, err := m.WriteTargets(dir, "targets.ts")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := `export default {
    "thiserror-impl 1": { lib: () => import("./thiserror-impl-1-0-38.js"), data: () => import("./thiserror-impl-1-0-38.json") },
    "serde_derive =1.0.150": { lib: () => import("./serde_derive-1-0-150.js"), data: () => import("./serde_derive-1-0-150.json") },
} as Record<string, { lib: () => Promise<any>; data: () => Promise<any> }>;
`
	assert.Equal(t, want, string(data))
	assert.Len(t, m.Entries(), 2)
}

func TestManifest_Empty(t *testing.T) {
	var m Manifest
	assert.Equal(t, "export default {\n"+moduleFooter, m.Render())
}
