package rewrite

import (
	"strings"

	"expandinator/internal/logging"
	"expandinator/internal/syntax"
)

// RelaxDiagnostics adds the allow_not_macro flag to every structured
// diagnostics attribute on a function, keeping its existing arguments.
// Attributes that already carry the flag are left as they are.
func RelaxDiagnostics(f *syntax.File) (*syntax.File, error) {
	n := 0
	for _, d := range f.Decls {
		fn, ok := d.(*syntax.Function)
		if !ok {
			continue
		}
		for _, a := range fn.Attrs {
			if !isDiagnosticsAttr(a.Path) || a.HasFlag(AllowNotMacroFlag) {
				continue
			}
			switch args := strings.TrimSpace(a.Args); {
			case args == "":
				a.Args = "(" + AllowNotMacroFlag + ")"
			case strings.HasPrefix(args, "(") && strings.HasSuffix(args, ")"):
				a.Args = "(" + strings.Join(append(a.ArgList(), AllowNotMacroFlag), ", ") + ")"
			default:
				return nil, &ShapeError{
					Pass:      "relax",
					Function:  fn.Name,
					Construct: a.String(),
					Reason:    "diagnostics attribute arguments must be a parenthesized list",
				}
			}
			n++
		}
	}
	logging.RewriteDebug("relax: flagged %d diagnostics attributes", n)
	return f, nil
}
