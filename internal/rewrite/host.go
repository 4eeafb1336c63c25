package rewrite

import (
	"expandinator/internal/logging"
	"expandinator/internal/syntax"
)

// EliminateHostFacility removes `extern crate proc_macro;` declarations. An
// aliased declaration is removed too since the crate it names is the same.
func EliminateHostFacility(f *syntax.File) *syntax.File {
	removed := f.Filter(func(d syntax.Decl) bool {
		ec, ok := d.(*syntax.ExternCrate)
		return !ok || ec.Name != HostFacility
	})
	logging.RewriteDebug("eliminate: removed %d extern crate declarations", removed)
	return f
}

// SubstituteImportRoot renames the root of every use tree rooted at the host
// facility to the portable library. The rest of the tree is untouched.
func SubstituteImportRoot(f *syntax.File) *syntax.File {
	n := 0
	for _, d := range f.Decls {
		u, ok := d.(*syntax.Use)
		if !ok {
			continue
		}
		if root := u.Root(); root != nil && root.Ident == HostFacility {
			root.Ident = PortableFacility
			n++
		}
	}
	logging.RewriteDebug("substitute: retargeted %d imports", n)
	return f
}

// PortTokenTypes retargets parameter and return types that are exactly the
// host token stream. Types that merely contain it are left alone.
func PortTokenTypes(f *syntax.File) *syntax.File {
	n := 0
	for _, d := range f.Decls {
		fn, ok := d.(*syntax.Function)
		if !ok {
			continue
		}
		for _, p := range fn.Params {
			if isHostTokenStream(p.Type) {
				p.Type = PortableTokenStream
				n++
			}
		}
		if isHostTokenStream(fn.Return) {
			fn.Return = PortableTokenStream
			n++
		}
	}
	logging.RewriteDebug("port: retargeted %d token stream types", n)
	return f
}
