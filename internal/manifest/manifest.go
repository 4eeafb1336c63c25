// Package manifest patches a generator crate's Cargo.toml so it builds as a
// plain library for the portable target.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"expandinator/internal/logging"
)

// ErrNotProcMacro is returned when the manifest does not declare a
// procedural-macro library.
var ErrNotProcMacro = errors.New("manifest does not declare a proc-macro library")

// Generation selects the patch strategy.
type Generation string

const (
	GenerationCurrent Generation = "current" // regex substitutions
	GenerationLegacy  Generation = "legacy"  // single literal substitution
)

// Options holds the dependency versions inserted by the patch.
type Options struct {
	Generation          Generation
	WasmBindgenVersion  string
	PrettyPleaseVersion string
	DiagnosticsForkURL  string
}

var (
	procMacroTrue    = regexp.MustCompile(`proc[_-]macro = true`)
	diagnosticsPin1x = regexp.MustCompile(`\[dependencies\.proc-macro-error\]\nversion = "1(\.\d\.\d)?"`)
)

const legacyProcMacroTrue = "proc-macro = true"

func (o Options) libTables() string {
	return strings.Join([]string{
		`crate-type = ["cdylib"]`,
		`[dependencies.wasm-bindgen]`,
		fmt.Sprintf("version = %q", o.WasmBindgenVersion),
		`[dependencies.prettyplease]`,
		fmt.Sprintf("version = %q", o.PrettyPleaseVersion),
	}, "\n")
}

func (o Options) diagnosticsTable() string {
	return "[dependencies.proc-macro-error]\n" + fmt.Sprintf("git = %q", o.DiagnosticsForkURL)
}

// Patch rewrites manifest text according to opts.Generation.
func Patch(text string, opts Options) (string, error) {
	if opts.Generation == GenerationLegacy {
		return PatchLiteral(text, opts)
	}
	return PatchRegex(text, opts)
}

// PatchRegex replaces every proc-macro declaration with the cdylib crate type
// and the binding dependencies, and retargets a proc-macro-error 1.x
// dependency to its portable fork.
func PatchRegex(text string, opts Options) (string, error) {
	if !procMacroTrue.MatchString(text) {
		return "", ErrNotProcMacro
	}
	out := procMacroTrue.ReplaceAllLiteralString(text, opts.libTables())
	if diagnosticsPin1x.MatchString(out) {
		out = diagnosticsPin1x.ReplaceAllLiteralString(out, opts.diagnosticsTable())
		logging.ManifestDebug("retargeted proc-macro-error to %s", opts.DiagnosticsForkURL)
	}
	return out, nil
}

// PatchLiteral replaces the first `proc-macro = true` only.
func PatchLiteral(text string, opts Options) (string, error) {
	if !strings.Contains(text, legacyProcMacroTrue) {
		return "", ErrNotProcMacro
	}
	return strings.Replace(text, legacyProcMacroTrue, opts.libTables(), 1), nil
}

// PatchFile patches the manifest at path in place.
func PatchFile(path string, opts Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	out, err := Patch(string(data), opts)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	logging.ManifestDebug("patched %s (%s generation)", path, opts.Generation)
	return nil
}
