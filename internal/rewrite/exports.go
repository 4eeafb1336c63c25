package rewrite

import (
	"expandinator/internal/logging"
	"expandinator/internal/syntax"
)

// ExtractDeriveExports strips derive registrations from generator functions,
// records each one in reg and emits a boundary-exported string wrapper
// directly after the generator. It is a fold over the declarations: the
// returned registry is reg plus this module's entries.
//
// Later registrations of the same key replace earlier ones.
func ExtractDeriveExports(f *syntax.File, reg Registry) (*syntax.File, Registry, error) {
	if reg == nil {
		reg = NewRegistry()
	}
	decls := make([]syntax.Decl, 0, len(f.Decls))
	for _, d := range f.Decls {
		var err error
		decls, reg, err = extractDecl(decls, reg, d)
		if err != nil {
			return nil, nil, err
		}
	}
	f.Decls = decls
	return f, reg, nil
}

func extractDecl(decls []syntax.Decl, reg Registry, d syntax.Decl) ([]syntax.Decl, Registry, error) {
	fn, ok := d.(*syntax.Function)
	if !ok {
		return append(decls, d), reg, nil
	}

	idx := -1
	for i, a := range fn.Attrs {
		if a.Path != DeriveRegistrationAttr {
			continue
		}
		if idx >= 0 {
			return nil, nil, &ShapeError{
				Pass:      "extract",
				Function:  fn.Name,
				Construct: a.String(),
				Reason:    "a function may carry only one derive registration",
			}
		}
		idx = i
	}
	if idx < 0 {
		return append(decls, fn), reg, nil
	}

	attr := fn.Attrs[idx]
	capability, ok := attr.LeadingIdent()
	if !ok {
		return nil, nil, &ShapeError{
			Pass:      "extract",
			Function:  fn.Name,
			Construct: attr.String(),
			Reason:    "derive registration must name the derived trait first",
		}
	}

	attrs := make([]*syntax.Attribute, 0, len(fn.Attrs)-1)
	attrs = append(attrs, fn.Attrs[:idx]...)
	fn.Attrs = append(attrs, fn.Attrs[idx+1:]...)

	key, name := ExportKey(capability), WrapperName(fn.Name)
	if prev, exists := reg[key]; exists && prev != name {
		logging.RewriteWarn("extract: %s was registered to %s, now %s", key, prev, name)
	}
	reg.Set(key, name)
	logging.RewriteDebug("extract: %s -> %s", key, name)

	return append(decls, fn, exportWrapper(fn.Name, name)), reg, nil
}

// exportWrapper builds
//
//	#[wasm_bindgen::prelude::wasm_bindgen]
//	pub fn expand_<fn>(input: String) -> String {
//	    let output = <fn>(input.parse().unwrap());
//	    prettyplease::unparse(&syn::parse2(output).unwrap())
//	}
func exportWrapper(target, name string) *syntax.Function {
	return &syntax.Function{
		Attrs:  []*syntax.Attribute{syntax.NewAttribute(BoundaryExportAttr, "")},
		Vis:    "pub",
		Name:   name,
		Params: []*syntax.Param{{Pattern: "input", Type: "String"}},
		Return: "String",
		Body: []syntax.Stmt{
			&syntax.Local{Pattern: "output", Init: &syntax.RawExpr{Text: target + "(input.parse().unwrap())"}},
			&syntax.RawStmt{Text: "prettyplease::unparse(&syn::parse2(output).unwrap())"},
		},
	}
}
