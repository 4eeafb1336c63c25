package syntax

import "strings"

const (
	defaultLead   = "\n\n"
	defaultIndent = "    "
)

// Print renders f back to source text. Declarations and statements that were
// not modified since Parse are emitted exactly as they appeared in the input;
// modified ones are spliced into their original text where possible and
// rendered canonically otherwise.
func Print(f *File) string {
	var b strings.Builder
	b.WriteString(f.head)
	for i, d := range f.Decls {
		if i > 0 {
			b.WriteString(leadOf(d))
		}
		b.WriteString(DeclString(d))
	}
	b.WriteString(f.trailer)
	return b.String()
}

// DeclString renders a single declaration without its leading whitespace.
func DeclString(d Decl) string {
	switch d := d.(type) {
	case *ExternCrate:
		return d.text()
	case *Use:
		return d.text()
	case *Function:
		return d.text()
	case *Other:
		return d.Text
	}
	return ""
}

// leadOf returns the text printed before d. Parsed declarations keep their
// original lead, which is empty after a doc comment that owns its newline.
func leadOf(d Decl) string {
	switch d := d.(type) {
	case *ExternCrate:
		if d.orig != nil {
			return d.orig.lead
		}
	case *Use:
		if d.orig != nil {
			return d.orig.lead
		}
	case *Function:
		if d.orig != nil {
			return d.orig.lead
		}
	case *Other:
		return d.lead
	}
	return defaultLead
}

// setLead replaces the lead of a parsed declaration. Synthesized ones keep
// the default.
func setLead(d Decl, lead string) {
	switch d := d.(type) {
	case *ExternCrate:
		if d.orig != nil {
			d.orig.lead = lead
		}
	case *Use:
		if d.orig != nil {
			d.orig.lead = lead
		}
	case *Function:
		if d.orig != nil {
			d.orig.lead = lead
		}
	case *Other:
		d.lead = lead
	}
}

func attrsFP(attrs []*Attribute) string {
	fps := make([]string, len(attrs))
	for i, a := range attrs {
		fps[i] = a.fingerprint()
	}
	return strings.Join(fps, "\x01")
}

// attrsText renders attrs with their original separators. Comments that
// followed an attribute no longer in attrs move behind the closest kept
// attribute before it, or in front of the first attribute.
func attrsText(attrs, original []*Attribute) string {
	kept := make(map[*Attribute]bool, len(attrs))
	for _, a := range attrs {
		kept[a] = true
	}
	var front string
	carried := make(map[*Attribute]string)
	var prev *Attribute
	for _, a := range original {
		if kept[a] {
			prev = a
			continue
		}
		c := strings.TrimLeft(a.sep, " \t\r\n")
		if c == "" {
			continue
		}
		if prev == nil {
			front += c
		} else {
			carried[prev] += c
		}
	}

	var b strings.Builder
	b.WriteString(front)
	for _, a := range attrs {
		b.WriteString(a.text())
		if a.orig == nil && a.sep == "" {
			b.WriteString("\n")
		} else {
			b.WriteString(a.sep)
		}
		b.WriteString(carried[a])
	}
	return b.String()
}

func origAttrs(o *origin) []*Attribute {
	if o == nil {
		return nil
	}
	return o.attrs
}

func visPrefix(vis string) string {
	if vis == "" {
		return ""
	}
	return vis + " "
}

// ExternCrate

func (d *ExternCrate) fingerprint() string {
	return attrsFP(d.Attrs) + "|" + d.Vis + "|" + d.Name + "|" + d.Alias
}

func (d *ExternCrate) text() string {
	if d.orig != nil && d.fingerprint() == d.orig.fp {
		return d.orig.src
	}
	s := attrsText(d.Attrs, origAttrs(d.orig)) + visPrefix(d.Vis) + "extern crate " + d.Name
	if d.Alias != "" {
		s += " as " + d.Alias
	}
	return s + ";"
}

// Use

func (d *Use) headFP() string {
	return attrsFP(d.Attrs) + "|" + d.Vis
}

func (d *Use) fingerprint() string {
	return d.headFP() + "|" + d.Tree.String()
}

func (d *Use) text() string {
	if d.orig != nil {
		if d.fingerprint() == d.orig.fp {
			return d.orig.src
		}
		// Only the root identifier changed: splice it so the rest of the
		// tree keeps its original layout.
		root := d.Root()
		if root != nil && d.orig.rootStart >= 0 && d.headFP() == d.orig.headFP &&
			d.Tree.String() == d.orig.treePrefix+root.Ident+d.orig.treeSuffix {
			buf := newBuffer(d.orig.src)
			buf.Replace(d.orig.rootStart, d.orig.rootEnd, root.Ident)
			return buf.String()
		}
	}
	var orig []*Attribute
	if d.orig != nil {
		orig = d.orig.attrs
	}
	return attrsText(d.Attrs, orig) + visPrefix(d.Vis) + "use " + d.Tree.String() + ";"
}

// Function

func (d *Function) signature() signature {
	return signature{
		Vis:        d.Vis,
		Qualifiers: d.Qualifiers,
		Name:       d.Name,
		Generics:   d.Generics,
		Return:     d.Return,
		Where:      d.Where,
	}
}

func (d *Function) headerFP() string {
	params := make([]string, len(d.Params))
	for i, p := range d.Params {
		params[i] = p.fingerprint()
	}
	s := d.signature()
	return strings.Join([]string{s.Vis, s.Qualifiers, s.Name, s.Generics, strings.Join(params, "\x01"), s.Return, s.Where}, "|")
}

func (d *Function) bodyFP() string {
	fps := make([]string, len(d.Body))
	for i, s := range d.Body {
		fps[i] = stmtFP(s)
	}
	return strings.Join(fps, "\x01")
}

func (d *Function) fingerprint() string {
	return attrsFP(d.Attrs) + "|" + d.headerFP() + "|" + d.bodyFP()
}

func (d *Function) text() string {
	if d.orig != nil && d.fingerprint() == d.orig.fp {
		return d.orig.src
	}
	var orig []*Attribute
	if d.orig != nil {
		orig = d.orig.attrs
	}
	return attrsText(d.Attrs, orig) + d.headerText() + d.bodyText()
}

// String renders the function without its leading whitespace.
func (d *Function) String() string {
	return d.text()
}

func (d *Function) headerText() string {
	if d.orig == nil {
		return d.canonicalHeader()
	}
	if d.headerFP() == d.orig.headerFP {
		return d.orig.header
	}
	if h, ok := d.spliceHeader(); ok {
		return h
	}
	return d.canonicalHeader()
}

// spliceHeader rewrites parameter and return types in place when nothing else
// in the signature changed.
func (d *Function) spliceHeader() (string, bool) {
	sig, orig := d.signature(), d.orig.sig
	sig.Return, orig.Return = "", ""
	if sig != orig {
		return "", false
	}
	buf := newBuffer(d.orig.header)
	for _, p := range d.Params {
		if p.orig == nil || p.Pattern != p.orig.pattern {
			return "", false
		}
		if p.Type == p.orig.typ {
			continue
		}
		if p.orig.typeStart < 0 || p.Type == "" {
			return "", false
		}
		buf.Replace(p.orig.typeStart, p.orig.typeEnd, p.Type)
	}
	if len(d.Params) != d.orig.params {
		return "", false
	}
	if d.Return != d.orig.sig.Return {
		if d.orig.retStart < 0 || d.Return == "" {
			return "", false
		}
		buf.Replace(d.orig.retStart, d.orig.retEnd, d.Return)
	}
	return buf.String(), true
}

func (d *Function) canonicalHeader() string {
	params := make([]string, len(d.Params))
	for i, p := range d.Params {
		params[i] = p.String()
	}
	var parts []string
	if d.Vis != "" {
		parts = append(parts, d.Vis)
	}
	if d.Qualifiers != "" {
		parts = append(parts, d.Qualifiers)
	}
	parts = append(parts, "fn "+d.Name+d.Generics+"("+strings.Join(params, ", ")+")")
	h := strings.Join(parts, " ")
	if d.Return != "" {
		h += " -> " + d.Return
	}
	if d.Where != "" {
		h += " " + d.Where
	}
	return h + " "
}

func (d *Function) bodyText() string {
	if d.orig == nil {
		var b strings.Builder
		b.WriteString("{")
		for _, s := range d.Body {
			b.WriteString("\n" + defaultIndent)
			b.WriteString(stmtText(s, defaultIndent))
		}
		b.WriteString("\n}")
		return b.String()
	}
	if d.bodyFP() == d.orig.bodyFP {
		return d.orig.body
	}

	indent := defaultIndent
	for _, s := range d.Body {
		if o := stmtOrigin(s); o != nil {
			indent = o.indent
			break
		}
	}

	var b strings.Builder
	b.WriteString("{")
	for _, s := range d.Body {
		lead := "\n" + indent
		stmtIndent := indent
		if o := stmtOrigin(s); o != nil {
			lead = o.lead
			stmtIndent = o.indent
		}
		b.WriteString(lead)
		b.WriteString(stmtText(s, stmtIndent))
	}
	b.WriteString(d.orig.bodyTail)
	b.WriteString("}")
	return b.String()
}

// Statements

func stmtOrigin(s Stmt) *origin {
	switch s := s.(type) {
	case *Local:
		if s.orig != nil {
			return &s.orig.origin
		}
	case *RawStmt:
		return s.orig
	}
	return nil
}

func stmtFP(s Stmt) string {
	switch s := s.(type) {
	case *Local:
		return s.fingerprint()
	case *RawStmt:
		return "raw\x00" + s.Text
	}
	return ""
}

// StmtString renders a statement as it would appear at the given indentation.
func StmtString(s Stmt, indent string) string {
	return stmtText(s, indent)
}

func stmtText(s Stmt, indent string) string {
	switch s := s.(type) {
	case *Local:
		return s.text(indent)
	case *RawStmt:
		return s.Text
	}
	return ""
}

func (s *Local) fingerprint() string {
	return "let\x00" + s.Pattern + "\x00" + s.Type + "\x00" + exprFP(s.Init) + "\x00" + s.Else
}

func (s *Local) text(indent string) string {
	if s.orig != nil {
		if s.fingerprint() == s.orig.fp {
			return s.orig.src
		}
		if s.Init != nil && s.orig.initStart >= 0 &&
			s.Pattern == s.orig.pattern && s.Type == s.orig.typ && s.Else == s.orig.els {
			buf := newBuffer(s.orig.src)
			buf.Replace(s.orig.initStart, s.orig.initEnd, exprText(s.Init, indent))
			return buf.String()
		}
	}
	out := "let " + s.Pattern
	if s.Type != "" {
		out += ": " + s.Type
	}
	if s.Init != nil {
		out += " = " + exprText(s.Init, indent)
	}
	if s.Else != "" {
		out += " else " + s.Else
	}
	return out + ";"
}

// Expressions

func exprFP(e Expr) string {
	switch e := e.(type) {
	case *MacroCall:
		return "mac\x00" + e.Path + "\x00" + e.Open + e.Args + e.Close
	case *StructuredParse:
		return "parse\x00" + e.Type + "\x00" + e.Input
	case *RawExpr:
		return "raw\x00" + e.Text
	}
	return ""
}

// ExprString renders an expression as it would appear at the given indentation.
func ExprString(e Expr, indent string) string {
	return exprText(e, indent)
}

func exprText(e Expr, indent string) string {
	switch e := e.(type) {
	case *MacroCall:
		if e.orig != nil && exprFP(e) == e.orig.fp {
			return e.orig.src
		}
		return e.Path + "!" + e.Open + e.Args + e.Close
	case *StructuredParse:
		return "match syn::parse2::<" + e.Type + ">(" + e.Input + ") {\n" +
			indent + defaultIndent + "Ok(syntax_tree) => syntax_tree,\n" +
			indent + defaultIndent + "Err(err) => return err.to_compile_error(),\n" +
			indent + "}"
	case *RawExpr:
		return e.Text
	}
	return ""
}
