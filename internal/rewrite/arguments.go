package rewrite

import (
	"strings"

	"expandinator/internal/logging"
	"expandinator/internal/syntax"
)

// Shapes selects which argument forms of the extraction shorthand are
// recognized.
type Shapes int

const (
	// CastShape is `parse_macro_input!(expr as Type)`.
	CastShape Shapes = 1 << iota
	// BareShape is `parse_macro_input!(ident)` bound to a declared type.
	BareShape

	AllShapes = CastShape | BareShape
)

// NormalizeArgumentParsing replaces the extraction shorthand in the top-level
// let statements of every function with an explicit structured parse whose
// error branch returns the compile error. Unrecognized argument forms fail
// the whole module with a *ShapeError.
func NormalizeArgumentParsing(f *syntax.File, shapes Shapes) (*syntax.File, error) {
	n := 0
	for _, d := range f.Decls {
		fn, ok := d.(*syntax.Function)
		if !ok {
			continue
		}
		for _, s := range fn.Body {
			local, ok := s.(*syntax.Local)
			if !ok {
				continue
			}
			call, ok := local.Init.(*syntax.MacroCall)
			if !ok || !isArgumentShorthand(call.Path) {
				continue
			}
			parse, err := structuredParse(fn.Name, local, call, shapes)
			if err != nil {
				return nil, err
			}
			local.Init = parse
			n++
		}
	}
	logging.RewriteDebug("normalize: rewrote %d argument extractions", n)
	return f, nil
}

func structuredParse(fn string, local *syntax.Local, call *syntax.MacroCall, shapes Shapes) (*syntax.StructuredParse, error) {
	if expr, typ, ok := syntax.SplitCast(call.Args); ok && shapes&CastShape != 0 {
		return &syntax.StructuredParse{Type: typ, Input: expr}, nil
	}

	shapeErr := &ShapeError{
		Pass:      "normalize",
		Function:  fn,
		Construct: call.Path + "!" + call.Open + call.Args + call.Close,
	}
	arg := strings.TrimSpace(call.Args)
	switch {
	case shapes&BareShape == 0 || !syntax.IsIdent(arg):
		shapeErr.Reason = "argument extraction must be `expr as Type`"
		if shapes&BareShape != 0 {
			shapeErr.Reason += " or a single identifier"
		}
	case local.Type == "":
		shapeErr.Reason = "argument extraction without a cast needs a declared binding type"
	default:
		return &syntax.StructuredParse{Type: local.Type, Input: arg}, nil
	}
	return nil, shapeErr
}
