// Package bundle writes the per-crate export registries and the lookup module
// that lets a web page load them.
package bundle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"expandinator/internal/rewrite"
)

// ArtifactName is the base name shared by a crate's bindings and registry:
// the crate name followed by its version with dots replaced by dashes.
func ArtifactName(name, version string) string {
	return name + "-" + strings.ReplaceAll(version, ".", "-")
}

// WriteRegistry writes reg as <outDir>/<artifact>.json and returns the path.
func WriteRegistry(outDir, artifact string, reg rewrite.Registry) (string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.Marshal(reg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal registry: %w", err)
	}
	path := filepath.Join(outDir, artifact+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write registry: %w", err)
	}
	return path, nil
}

// Entry is one loadable crate in the lookup module.
type Entry struct {
	Label    string // "name version-req" as listed in the targets file
	Artifact string
	Exports  int
}

// Manifest accumulates entries in build order.
type Manifest struct {
	entries []Entry
}

// Add appends an entry.
func (m *Manifest) Add(e Entry) {
	m.entries = append(m.entries, e)
}

// Entries returns the entries in insertion order.
func (m *Manifest) Entries() []Entry {
	return m.entries
}

const moduleFooter = "} as Record<string, { lib: () => Promise<any>; data: () => Promise<any> }>;\n"

// Render returns the lookup module source.
func (m *Manifest) Render() string {
	var b strings.Builder
	b.WriteString("export default {\n")
	for _, e := range m.entries {
		fmt.Fprintf(&b, "    %q: { lib: () => import(%q), data: () => import(%q) },\n",
			e.Label, "./"+e.Artifact+".js", "./"+e.Artifact+".json")
	}
	b.WriteString(moduleFooter)
	return b.String()
}

// WriteTargets writes the lookup module to <outDir>/<file> and returns the
// path.
func (m *Manifest) WriteTargets(outDir, file string) (string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(outDir, file)
	if err := os.WriteFile(path, []byte(m.Render()), 0644); err != nil {
		return "", fmt.Errorf("failed to write lookup module: %w", err)
	}
	return path, nil
}
