// Package rewrite turns a procedural-macro crate's root module into a module
// that builds as an ordinary library for a portable target and exports each
// derive generator through a string-to-string wrapper.
//
// The pipeline is a fixed sequence of passes over a *syntax.File. Every pass
// runs exactly once, in order; the last one also produces the export
// registry. Any unsupported construct aborts the whole module.
package rewrite

import (
	"context"
	"fmt"
	"time"

	"expandinator/internal/logging"
	"expandinator/internal/syntax"
)

// Generation selects one of the historical pass sets.
type Generation string

const (
	// GenerationCurrent runs every pass and accepts both extraction shapes.
	GenerationCurrent Generation = "current"
	// GenerationLegacy omits token type porting and accepts only the cast
	// shape.
	GenerationLegacy Generation = "legacy"
)

// ParseGeneration parses a generation name. The empty string is current.
func ParseGeneration(s string) (Generation, error) {
	switch Generation(s) {
	case "", GenerationCurrent:
		return GenerationCurrent, nil
	case GenerationLegacy:
		return GenerationLegacy, nil
	}
	return "", fmt.Errorf("unknown generation %q (want %q or %q)", s, GenerationCurrent, GenerationLegacy)
}

// Options configures a pipeline run.
type Options struct {
	Generation Generation
}

type pass struct {
	name  string
	apply func(*syntax.File) (*syntax.File, error)
}

func total(fn func(*syntax.File) *syntax.File) func(*syntax.File) (*syntax.File, error) {
	return func(f *syntax.File) (*syntax.File, error) { return fn(f), nil }
}

// passes returns the module-to-module passes for a generation. Export
// extraction is not in the list; Run applies it last so no earlier pass sees
// the synthesized wrappers.
func passes(gen Generation) []pass {
	shapes := AllShapes
	if gen == GenerationLegacy {
		shapes = CastShape
	}
	ps := []pass{
		{"eliminate", total(EliminateHostFacility)},
		{"substitute", total(SubstituteImportRoot)},
		{"normalize", func(f *syntax.File) (*syntax.File, error) { return NormalizeArgumentParsing(f, shapes) }},
		{"prune", PruneShorthandImport},
		{"relax", RelaxDiagnostics},
	}
	if gen != GenerationLegacy {
		ps = append(ps, pass{"port", total(PortTokenTypes)})
	}
	return ps
}

// Run applies the pipeline to f and returns the rewritten module with the
// registry of its derive exports. f is modified in place. On error no module
// or registry is returned.
func Run(f *syntax.File, opts Options) (*syntax.File, Registry, error) {
	gen := opts.Generation
	if gen == "" {
		gen = GenerationCurrent
	}
	var err error
	for _, p := range passes(gen) {
		if f, err = p.apply(f); err != nil {
			return nil, nil, fmt.Errorf("%s pass: %w", p.name, err)
		}
	}
	f, reg, err := ExtractDeriveExports(f, NewRegistry())
	if err != nil {
		return nil, nil, fmt.Errorf("extract pass: %w", err)
	}
	return f, reg, nil
}

// RewriteSource parses src, runs the pipeline and prints the result.
func RewriteSource(ctx context.Context, src []byte, opts Options) (string, Registry, error) {
	start := time.Now()
	f, err := syntax.Parse(ctx, src)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse module: %w", err)
	}
	f, reg, err := Run(f, opts)
	if err != nil {
		return "", nil, err
	}
	out := syntax.Print(f)
	logging.Rewrite("rewrote module: %d exports, %d -> %d bytes in %v", reg.Len(), len(src), len(out), time.Since(start))
	return out, reg, nil
}
