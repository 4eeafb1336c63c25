package rewrite

import "expandinator/internal/syntax"

// Identifiers the pipeline matches and emits.
const (
	HostFacility     = "proc_macro"
	PortableFacility = "proc_macro2"

	HostTokenStream     = "proc_macro::TokenStream"
	PortableTokenStream = "proc_macro2::TokenStream"

	ArgumentShorthand = "parse_macro_input"
	ParserCrate       = "syn"

	DiagnosticsAttr          = "proc_macro_error"
	DiagnosticsAttrQualified = "proc_macro_error::proc_macro_error"
	AllowNotMacroFlag        = "allow_not_macro"

	DeriveRegistrationAttr = "proc_macro_derive"
	BoundaryExportAttr     = "wasm_bindgen::prelude::wasm_bindgen"

	wrapperPrefix = "expand_"
)

// ExportKey formats the registry key for a derived capability.
func ExportKey(capability string) string {
	return "#[derive(" + capability + ")]"
}

// WrapperName returns the exported wrapper name for a generator function.
func WrapperName(fn string) string {
	return wrapperPrefix + fn
}

func isArgumentShorthand(path string) bool {
	return path == ArgumentShorthand || path == ParserCrate+"::"+ArgumentShorthand
}

func isDiagnosticsAttr(path string) bool {
	return path == DiagnosticsAttr || path == DiagnosticsAttrQualified
}

func isHostTokenStream(typ string) bool {
	t := syntax.Compact(typ)
	return t == HostTokenStream || t == "::"+HostTokenStream
}
