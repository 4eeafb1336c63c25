package syntax

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"expandinator/internal/logging"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// ErrSyntax is returned when the input does not parse as Rust.
var ErrSyntax = errors.New("syntax error")

// SyntaxError locates the first error node of a parse.
type SyntaxError struct {
	Line    int // 1-based
	Column  int // 1-based
	Snippet string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d near %q", e.Line, e.Column, e.Snippet)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// Parser parses Rust source files with tree-sitter. A Parser is not safe for
// concurrent use.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a new Rust parser.
func NewParser() *Parser {
	parser := sitter.NewParser()
	parser.SetLanguage(rust.GetLanguage())
	return &Parser{parser: parser}
}

// Close releases resources held by the parser
func (p *Parser) Close() {
	p.parser.Close()
}

// Parse parses src with a throwaway Parser.
func Parse(ctx context.Context, src []byte) (*File, error) {
	p := NewParser()
	defer p.Close()
	return p.Parse(ctx, src)
}

// Parse parses one source file into a File.
func (p *Parser) Parse(ctx context.Context, src []byte) (*File, error) {
	start := time.Now()

	tree, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(root, src)
	}

	b := &builder{src: src}
	f := b.file(root)

	logging.SyntaxDebug("parsed %d bytes into %d declarations in %v", len(src), len(f.Decls), time.Since(start))
	return f, nil
}

func syntaxError(root *sitter.Node, src []byte) error {
	n := firstError(root)
	if n == nil {
		n = root
	}
	snippet := n.Content(src)
	if i := strings.IndexByte(snippet, '\n'); i >= 0 {
		snippet = snippet[:i]
	}
	if len(snippet) > 40 {
		snippet = snippet[:40]
	}
	pt := n.StartPoint()
	return &SyntaxError{Line: int(pt.Row) + 1, Column: int(pt.Column) + 1, Snippet: snippet}
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.HasError() || child.IsMissing() {
			if found := firstError(child); found != nil {
				return found
			}
		}
	}
	return nil
}

// builder converts tree-sitter nodes into the declaration model.
type builder struct {
	src []byte
}

func (b *builder) text(n *sitter.Node) string {
	return string(b.src[n.StartByte():n.EndByte()])
}

func (b *builder) slice(start, end uint32) string {
	return string(b.src[start:end])
}

func isComment(n *sitter.Node) bool {
	switch n.Type() {
	case "line_comment", "block_comment":
		return true
	}
	return false
}

func (b *builder) file(root *sitter.Node) *File {
	f := &File{}

	var (
		pending []*sitter.Node // attribute items waiting for their item
		cursor  uint32         // end of the previous declaration
		first   = true
	)
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n.Type() == "attribute_item" {
			pending = append(pending, n)
			continue
		}
		// Comments between attributes and their item stay with the item.
		if isComment(n) && len(pending) > 0 {
			continue
		}

		start := n.StartByte()
		if len(pending) > 0 {
			start = pending[0].StartByte()
		}
		lead := b.slice(cursor, start)
		if first {
			f.head = lead
			lead = ""
			first = false
		}

		f.Decls = append(f.Decls, b.decl(n, pending, start, lead))
		cursor = n.EndByte()
		pending = nil
	}

	if len(pending) > 0 {
		// Dangling attributes are kept verbatim.
		start := pending[0].StartByte()
		end := pending[len(pending)-1].EndByte()
		lead := b.slice(cursor, start)
		if first {
			f.head = lead
			lead = ""
		}
		f.Decls = append(f.Decls, &Other{Kind: "attribute_item", Text: b.slice(start, end), lead: lead})
		cursor = end
	}
	f.trailer = b.slice(cursor, uint32(len(b.src)))
	return f
}

func (b *builder) decl(n *sitter.Node, attrNodes []*sitter.Node, start uint32, lead string) Decl {
	attrs := b.attributes(attrNodes, n)
	src := b.slice(start, n.EndByte())

	switch n.Type() {
	case "extern_crate_declaration":
		d := b.externCrate(n, attrs)
		d.orig = &origin{lead: lead, src: src, fp: d.fingerprint(), attrs: cloneAttrs(attrs)}
		return d

	case "use_declaration":
		if d := b.use(n, attrs, start, lead, src); d != nil {
			return d
		}

	case "function_item":
		return b.function(n, attrs, start, lead, src)
	}

	return &Other{Attrs: attrs, Kind: n.Type(), Text: src, lead: lead}
}

func (b *builder) attributes(nodes []*sitter.Node, item *sitter.Node) []*Attribute {
	attrs := make([]*Attribute, 0, len(nodes))
	for i, n := range nodes {
		next := item.StartByte()
		if i+1 < len(nodes) {
			next = nodes[i+1].StartByte()
		}
		a := &Attribute{sep: b.slice(n.EndByte(), next)}

		attr := firstNamedOfType(n, "attribute")
		if attr != nil && attr.NamedChildCount() > 0 {
			path := attr.NamedChild(0)
			a.Path = Compact(b.text(path))
			a.Args = b.slice(path.EndByte(), attr.EndByte())
		} else {
			// Unrecognized attribute shape: keep its text as the path.
			a.Path = strings.TrimSuffix(strings.TrimPrefix(b.text(n), "#["), "]")
		}
		a.orig = &origin{src: b.text(n), fp: a.fingerprint()}
		attrs = append(attrs, a)
	}
	return attrs
}

func cloneAttrs(attrs []*Attribute) []*Attribute {
	return append([]*Attribute(nil), attrs...)
}

func firstNamedOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func (b *builder) visibility(n *sitter.Node) string {
	if v := firstNamedOfType(n, "visibility_modifier"); v != nil {
		return Compact(b.text(v))
	}
	return ""
}

func (b *builder) externCrate(n *sitter.Node, attrs []*Attribute) *ExternCrate {
	d := &ExternCrate{Attrs: attrs, Vis: b.visibility(n)}
	if name := n.ChildByFieldName("name"); name != nil {
		d.Name = b.text(name)
	}
	if alias := n.ChildByFieldName("alias"); alias != nil {
		d.Alias = b.text(alias)
	}
	return d
}

// use converts a use declaration. It returns nil when the argument is absent.
func (b *builder) use(n *sitter.Node, attrs []*Attribute, start uint32, lead, src string) *Use {
	arg := n.ChildByFieldName("argument")
	if arg == nil {
		return nil
	}
	d := &Use{Attrs: attrs, Vis: b.visibility(n), Tree: b.useTree(arg)}
	o := &useOrigin{
		origin:    origin{lead: lead, src: src, fp: d.fingerprint(), attrs: cloneAttrs(attrs)},
		headFP:    d.headFP(),
		rootStart: -1,
		rootEnd:   -1,
	}
	if root := d.Root(); root != nil {
		if leaf := leftmostLeaf(arg); leaf != nil && b.text(leaf) == root.Ident {
			o.rootStart = int(leaf.StartByte() - start)
			o.rootEnd = int(leaf.EndByte() - start)
			full := d.Tree.String()
			o.treePrefix = full[:len(full)-len(root.String())]
			o.treeSuffix = root.String()[len(root.Ident):]
		}
	}
	d.orig = o
	return d
}

func leftmostLeaf(n *sitter.Node) *sitter.Node {
	for n.NamedChildCount() > 0 {
		n = n.NamedChild(0)
	}
	return n
}

func (b *builder) useTree(n *sitter.Node) UseTree {
	switch n.Type() {
	case "scoped_identifier":
		segs := b.pathSegments(n.ChildByFieldName("path"), n)
		name := n.ChildByFieldName("name")
		return wrapPath(segs, &UseName{Ident: b.text(name)})

	case "scoped_use_list":
		segs := b.pathSegments(n.ChildByFieldName("path"), n)
		list := n.ChildByFieldName("list")
		return wrapPath(segs, b.useTree(list))

	case "use_list":
		g := &UseGroup{}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if isComment(c) {
				continue
			}
			g.Items = append(g.Items, b.useTree(c))
		}
		return g

	case "use_as_clause":
		path := n.ChildByFieldName("path")
		alias := b.text(n.ChildByFieldName("alias"))
		if path.Type() == "scoped_identifier" {
			segs := b.pathSegments(path.ChildByFieldName("path"), path)
			name := b.text(path.ChildByFieldName("name"))
			return wrapPath(segs, &UseRename{Ident: name, Rename: alias})
		}
		return &UseRename{Ident: b.text(path), Rename: alias}

	case "use_wildcard":
		var segs []string
		if n.NamedChildCount() > 0 {
			segs = b.pathSegments(n.NamedChild(0), nil)
		} else if strings.HasPrefix(b.text(n), "::") {
			segs = []string{""}
		}
		return wrapPath(segs, &UseGlob{})
	}
	return &UseName{Ident: Compact(b.text(n))}
}

// pathSegments flattens a path node into its identifiers. scope is the node
// owning the path; a scope starting with `::` and no path is the global root.
func (b *builder) pathSegments(path, scope *sitter.Node) []string {
	if path == nil {
		if scope != nil && strings.HasPrefix(b.text(scope), "::") {
			return []string{""}
		}
		return nil
	}
	if path.Type() == "scoped_identifier" {
		segs := b.pathSegments(path.ChildByFieldName("path"), path)
		return append(segs, b.text(path.ChildByFieldName("name")))
	}
	return []string{Compact(b.text(path))}
}

func wrapPath(segs []string, leaf UseTree) UseTree {
	for i := len(segs) - 1; i >= 0; i-- {
		leaf = &UsePath{Ident: segs[i], Tree: leaf}
	}
	return leaf
}

func (b *builder) function(n *sitter.Node, attrs []*Attribute, start uint32, lead, src string) Decl {
	body := n.ChildByFieldName("body")
	name := n.ChildByFieldName("name")
	params := n.ChildByFieldName("parameters")
	if body == nil || name == nil || params == nil {
		return &Other{Attrs: attrs, Kind: n.Type(), Text: src, lead: lead}
	}

	itemStart := n.StartByte()
	d := &Function{
		Attrs: attrs,
		Vis:   b.visibility(n),
		Name:  b.text(name),
	}
	if mods := firstNamedOfType(n, "function_modifiers"); mods != nil {
		d.Qualifiers = strings.Join(strings.Fields(b.text(mods)), " ")
	}
	if tp := n.ChildByFieldName("type_parameters"); tp != nil {
		d.Generics = b.text(tp)
	}
	if wc := firstNamedOfType(n, "where_clause"); wc != nil {
		d.Where = b.text(wc)
	}

	o := &fnOrigin{
		header:   b.slice(itemStart, body.StartByte()),
		body:     b.text(body),
		retStart: -1,
		retEnd:   -1,
	}
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		d.Return = b.text(ret)
		o.retStart = int(ret.StartByte() - itemStart)
		o.retEnd = int(ret.EndByte() - itemStart)
	}

	d.Params = b.params(params, itemStart)
	d.Body, o.bodyTail = b.block(body)

	o.sig = d.signature()
	o.params = len(d.Params)
	o.headerFP = d.headerFP()
	o.bodyFP = d.bodyFP()
	o.origin = origin{lead: lead, src: src, fp: d.fingerprint(), attrs: cloneAttrs(attrs)}
	d.orig = o
	return d
}

func (b *builder) params(n *sitter.Node, itemStart uint32) []*Param {
	var (
		out       []*Param
		attrStart int64 = -1
	)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch {
		case isComment(c):
			continue
		case c.Type() == "attribute_item":
			if attrStart < 0 {
				attrStart = int64(c.StartByte())
			}
			continue
		}

		patStart := c.StartByte()
		if attrStart >= 0 {
			patStart = uint32(attrStart)
			attrStart = -1
		}

		p := &Param{}
		po := &paramOrigin{typeStart: -1, typeEnd: -1}
		pattern := c.ChildByFieldName("pattern")
		typ := c.ChildByFieldName("type")
		if c.Type() == "parameter" && pattern != nil && typ != nil {
			p.Pattern = b.slice(patStart, pattern.EndByte())
			p.Type = b.text(typ)
			po.typeStart = int(typ.StartByte() - itemStart)
			po.typeEnd = int(typ.EndByte() - itemStart)
		} else {
			p.Pattern = b.slice(patStart, c.EndByte())
		}
		po.pattern, po.typ = p.Pattern, p.Type
		p.orig = po
		out = append(out, p)
	}
	return out
}

// block converts the statements of a function body and returns the text
// between the last statement and the closing brace.
func (b *builder) block(n *sitter.Node) ([]Stmt, string) {
	var stmts []Stmt
	cursor := n.StartByte() + 1 // past '{'
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		lead := b.slice(cursor, c.StartByte())
		stmts = append(stmts, b.stmt(c, lead, b.lineIndent(c.StartByte())))
		cursor = c.EndByte()
	}
	end := n.EndByte() - 1 // before '}'
	if end < cursor {
		end = cursor
	}
	return stmts, b.slice(cursor, end)
}

// lineIndent returns the whitespace between the start of the line holding
// offset and offset, or "" when other text precedes it on that line.
func (b *builder) lineIndent(offset uint32) string {
	start := bytes.LastIndexByte(b.src[:offset], '\n') + 1
	indent := string(b.src[start:offset])
	if strings.TrimSpace(indent) != "" {
		return ""
	}
	return indent
}

func (b *builder) stmt(n *sitter.Node, lead, indent string) Stmt {
	src := b.text(n)
	if n.Type() != "let_declaration" {
		return &RawStmt{Text: src, orig: &origin{lead: lead, src: src, indent: indent}}
	}

	pattern := n.ChildByFieldName("pattern")
	if pattern == nil {
		return &RawStmt{Text: src, orig: &origin{lead: lead, src: src, indent: indent}}
	}
	patStart := pattern.StartByte()
	if m := firstNamedOfType(n, "mutable_specifier"); m != nil && m.StartByte() < patStart {
		patStart = m.StartByte()
	}

	s := &Local{Pattern: b.slice(patStart, pattern.EndByte())}
	o := &localOrigin{initStart: -1, initEnd: -1}
	if typ := n.ChildByFieldName("type"); typ != nil {
		s.Type = b.text(typ)
	}
	if value := n.ChildByFieldName("value"); value != nil {
		s.Init = b.expr(value)
		o.initStart = int(value.StartByte() - n.StartByte())
		o.initEnd = int(value.EndByte() - n.StartByte())
	}
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		s.Else = b.text(alt)
	}
	o.pattern, o.typ, o.els = s.Pattern, s.Type, s.Else
	o.origin = origin{lead: lead, src: src, fp: s.fingerprint(), indent: indent}
	s.orig = o
	return s
}

func (b *builder) expr(n *sitter.Node) Expr {
	if n.Type() != "macro_invocation" {
		return &RawExpr{Text: b.text(n)}
	}
	mac := n.ChildByFieldName("macro")
	tt := firstNamedOfType(n, "token_tree")
	if mac == nil || tt == nil {
		return &RawExpr{Text: b.text(n)}
	}
	raw := b.text(tt)
	if len(raw) < 2 {
		return &RawExpr{Text: b.text(n)}
	}
	e := &MacroCall{
		Path:  Compact(b.text(mac)),
		Open:  raw[:1],
		Args:  raw[1 : len(raw)-1],
		Close: raw[len(raw)-1:],
	}
	e.orig = &origin{src: b.text(n), fp: exprFP(e)}
	return e
}
