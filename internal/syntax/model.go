// Package syntax models the top level of a Rust source file as a small closed
// set of declaration kinds and prints it back losslessly.
//
// Only the constructs the rewrite pipeline inspects are structured: extern
// crate declarations, use declarations, free functions (with their top-level
// statements) and outer attributes. Everything else is carried as Other and
// printed verbatim. Parsed nodes remember their original text; printing a node
// whose fields are unchanged reproduces that text byte for byte.
package syntax

import "strings"

// File is a parsed source file: an ordered list of top-level declarations.
type File struct {
	Decls []Decl

	head    string // text before the first declaration
	trailer string // text after the last declaration
}

// Filter keeps the declarations for which keep returns true and reports how
// many were removed. A declaration following a removed run takes over the
// lead of the run's first member, so the spacing after the run is dropped.
func (f *File) Filter(keep func(Decl) bool) int {
	kept := make([]Decl, 0, len(f.Decls))
	var (
		lead    string
		pending bool
	)
	for _, d := range f.Decls {
		if !keep(d) {
			if !pending {
				lead, pending = leadOf(d), true
			}
			continue
		}
		if pending {
			setLead(d, lead)
			pending = false
		}
		kept = append(kept, d)
	}
	removed := len(f.Decls) - len(kept)
	f.Decls = kept
	return removed
}

// Decl is one top-level declaration. The set of implementations is closed:
// *ExternCrate, *Use, *Function and *Other.
type Decl interface {
	// Attributes returns the outer attributes attached to the declaration.
	Attributes() []*Attribute
	decl()
}

// origin records where a parsed node came from.
type origin struct {
	lead string // text between the previous sibling and this node
	src  string // original text of the node
	fp   string // fingerprint of the node's fields at parse time

	attrs  []*Attribute // declarations: attributes at parse time
	indent string       // statements: whitespace opening the line the node starts on
}

// Attribute is an outer attribute such as #[proc_macro_derive(Foo)].
type Attribute struct {
	// Path is the attribute name with whitespace removed, e.g.
	// "proc_macro_error::proc_macro_error".
	Path string
	// Args is the opaque text following the path, including delimiters:
	// "(Foo, attributes(bar))", " = \"doc\"" or "".
	Args string

	orig *origin
	sep  string // text between this attribute and the next attribute or the item
}

// NewAttribute returns a synthesized attribute.
func NewAttribute(path, args string) *Attribute {
	return &Attribute{Path: path, Args: args}
}

// ArgList splits a parenthesized argument list at its top-level commas.
// Attributes without a delimited argument list return nil.
func (a *Attribute) ArgList() []string {
	inner, ok := delimited(a.Args)
	if !ok {
		return nil
	}
	return SplitTopLevel(inner)
}

// LeadingIdent returns the first argument when it is a bare identifier.
func (a *Attribute) LeadingIdent() (string, bool) {
	args := a.ArgList()
	if len(args) == 0 || !IsIdent(args[0]) {
		return "", false
	}
	return args[0], true
}

// HasFlag reports whether one of the top-level arguments is exactly flag.
func (a *Attribute) HasFlag(flag string) bool {
	for _, arg := range a.ArgList() {
		if arg == flag {
			return true
		}
	}
	return false
}

// String renders the attribute canonically.
func (a *Attribute) String() string {
	return "#[" + a.Path + a.Args + "]"
}

func (a *Attribute) fingerprint() string {
	return a.Path + "\x00" + a.Args
}

func (a *Attribute) text() string {
	if a.orig != nil && a.fingerprint() == a.orig.fp {
		return a.orig.src
	}
	return a.String()
}

// ExternCrate is `extern crate name;` or `extern crate name as alias;`.
type ExternCrate struct {
	Attrs []*Attribute
	Vis   string
	Name  string
	Alias string

	orig *origin
}

func (*ExternCrate) decl() {}

// Attributes implements Decl.
func (d *ExternCrate) Attributes() []*Attribute { return d.Attrs }

// Use is a use declaration.
type Use struct {
	Attrs []*Attribute
	Vis   string
	Tree  UseTree

	orig *useOrigin
}

type useOrigin struct {
	origin
	headFP             string // attributes and visibility at parse time
	rootStart, rootEnd int    // span of the root identifier within src, -1 when absent
	treePrefix         string // canonical tree text before the root identifier
	treeSuffix         string // canonical tree text after the root identifier
}

func (*Use) decl() {}

// Attributes implements Decl.
func (d *Use) Attributes() []*Attribute { return d.Attrs }

// Root returns the first named path segment of the tree, skipping a leading
// global `::`. It returns nil when the tree does not start with a path.
func (d *Use) Root() *UsePath {
	return rootPath(d.Tree)
}

func rootPath(t UseTree) *UsePath {
	p, ok := t.(*UsePath)
	if !ok {
		return nil
	}
	if p.Ident == "" {
		return rootPath(p.Tree)
	}
	return p
}

// UseTree is one node of a use tree. The set of implementations is closed:
// *UsePath, *UseName, *UseRename, *UseGroup and *UseGlob.
type UseTree interface {
	String() string
	useTree()
}

// UsePath is `Ident::Tree`. An empty Ident is the global root `::Tree`.
type UsePath struct {
	Ident string
	Tree  UseTree
}

// UseName is a leaf identifier.
type UseName struct {
	Ident string
}

// UseRename is `Ident as Rename`.
type UseRename struct {
	Ident  string
	Rename string
}

// UseGroup is `{a, b::c, ...}`.
type UseGroup struct {
	Items []UseTree
}

// UseGlob is `*`.
type UseGlob struct{}

func (*UsePath) useTree()   {}
func (*UseName) useTree()   {}
func (*UseRename) useTree() {}
func (*UseGroup) useTree()  {}
func (*UseGlob) useTree()   {}

func (t *UsePath) String() string   { return t.Ident + "::" + t.Tree.String() }
func (t *UseName) String() string   { return t.Ident }
func (t *UseRename) String() string { return t.Ident + " as " + t.Rename }
func (t *UseGlob) String() string   { return "*" }

func (t *UseGroup) String() string {
	items := make([]string, len(t.Items))
	for i, item := range t.Items {
		items[i] = item.String()
	}
	return "{" + strings.Join(items, ", ") + "}"
}

// Function is a free function item.
type Function struct {
	Attrs      []*Attribute
	Vis        string // "pub", "pub(crate)", ...
	Qualifiers string // "async", "const unsafe", ...
	Name       string
	Generics   string // "<T: Parse>" or ""
	Params     []*Param
	Return     string // return type, "" for unit
	Where      string // "where T: Parse" or ""
	Body       []Stmt

	orig *fnOrigin
}

type fnOrigin struct {
	origin
	sig      signature // header fields at parse time
	header   string    // item text up to the body block
	headerFP string
	params   int // parameter count at parse time
	retStart int // span of the return type within header, -1 when absent
	retEnd   int
	body     string
	bodyFP   string
	bodyTail string // text between the last statement and the closing brace
}

type signature struct {
	Vis, Qualifiers, Name, Generics, Return, Where string
}

func (*Function) decl() {}

// Attributes implements Decl.
func (d *Function) Attributes() []*Attribute { return d.Attrs }

// Param is one function parameter. Type is empty for self receivers and any
// parameter form that is carried verbatim in Pattern.
type Param struct {
	Pattern string
	Type    string

	orig *paramOrigin
}

type paramOrigin struct {
	pattern, typ       string
	typeStart, typeEnd int // span of the type within the function header, -1 when absent
}

func (p *Param) String() string {
	if p.Type == "" {
		return p.Pattern
	}
	return p.Pattern + ": " + p.Type
}

func (p *Param) fingerprint() string {
	return p.Pattern + "\x00" + p.Type
}

// Other is any declaration the pipeline does not inspect: structs, impls,
// modules, comments, macros. It prints exactly as Text. Attrs is informational.
type Other struct {
	Attrs []*Attribute
	Kind  string // tree-sitter node type, e.g. "struct_item"
	Text  string

	lead string
}

func (*Other) decl() {}

// Attributes implements Decl.
func (d *Other) Attributes() []*Attribute { return d.Attrs }

// Stmt is one statement of a function body. The set of implementations is
// closed: *Local and *RawStmt.
type Stmt interface {
	stmt()
}

// Local is a let binding: `let Pattern: Type = Init else Else;`.
type Local struct {
	Pattern string // includes a leading "mut " when present
	Type    string
	Init    Expr   // nil without initializer
	Else    string // diverging block of let-else, "" when absent

	orig *localOrigin
}

type localOrigin struct {
	origin
	pattern, typ, els string
	initStart         int // span of Init within src, -1 when absent
	initEnd           int
}

// RawStmt is any statement carried verbatim, including comments and the
// trailing expression of a block.
type RawStmt struct {
	Text string

	orig *origin
}

func (*Local) stmt()   {}
func (*RawStmt) stmt() {}

// Expr is the initializer of a Local. The set of implementations is closed:
// *MacroCall, *StructuredParse and *RawExpr.
type Expr interface {
	expr()
}

// MacroCall is `Path!(Args)` with any of the three delimiter pairs.
type MacroCall struct {
	Path  string // whitespace removed, e.g. "syn::parse_macro_input"
	Args  string // text between the delimiters
	Open  string
	Close string

	orig *origin
}

// StructuredParse is the two-branch fallible parse that returns the parse
// error's compile error from the enclosing function:
//
//	match syn::parse2::<Type>(Input) {
//	    Ok(syntax_tree) => syntax_tree,
//	    Err(err) => return err.to_compile_error(),
//	}
type StructuredParse struct {
	Type  string
	Input string
}

// RawExpr is any other expression, carried verbatim.
type RawExpr struct {
	Text string
}

func (*MacroCall) expr()       {}
func (*StructuredParse) expr() {}
func (*RawExpr) expr()         {}
