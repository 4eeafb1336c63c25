package rewrite

import (
	"expandinator/internal/logging"
	"expandinator/internal/syntax"
)

// PruneShorthandImport drops the extraction shorthand from `use syn::...`
// trees once every call site has been normalized. A group left empty removes
// its whole path, and an import left with nothing removes the declaration.
func PruneShorthandImport(f *syntax.File) (*syntax.File, error) {
	emptied := make(map[syntax.Decl]bool)
	pruned := 0
	for _, d := range f.Decls {
		u, ok := d.(*syntax.Use)
		if !ok {
			continue
		}
		root := u.Root()
		if root == nil || root.Ident != ParserCrate {
			continue
		}
		tree, changed, err := pruneTree(root.Tree)
		if err != nil {
			return nil, err
		}
		if !changed {
			continue
		}
		pruned++
		if tree == nil {
			emptied[d] = true
			continue
		}
		root.Tree = tree
	}
	f.Filter(func(d syntax.Decl) bool { return !emptied[d] })
	logging.RewriteDebug("prune: removed the shorthand from %d imports", pruned)
	return f, nil
}

// pruneTree returns the tree without the shorthand, nil when nothing is left.
func pruneTree(t syntax.UseTree) (syntax.UseTree, bool, error) {
	switch t := t.(type) {
	case *syntax.UseName:
		if t.Ident == ArgumentShorthand {
			return nil, true, nil
		}
	case *syntax.UseRename:
		if t.Ident == ArgumentShorthand {
			return nil, false, &ShapeError{
				Pass:      "prune",
				Construct: t.String(),
				Reason:    "the extraction shorthand imported under another name cannot be normalized",
			}
		}
	case *syntax.UseGroup:
		items := make([]syntax.UseTree, 0, len(t.Items))
		changed := false
		for _, item := range t.Items {
			pruned, c, err := pruneTree(item)
			if err != nil {
				return nil, false, err
			}
			changed = changed || c
			if pruned != nil {
				items = append(items, pruned)
			}
		}
		if !changed {
			return t, false, nil
		}
		if len(items) == 0 {
			return nil, true, nil
		}
		t.Items = items
		return t, true, nil
	case *syntax.UsePath:
		sub, changed, err := pruneTree(t.Tree)
		if err != nil || !changed {
			return t, changed, err
		}
		if sub == nil {
			return nil, true, nil
		}
		t.Tree = sub
		return t, true, nil
	}
	return t, false, nil
}
