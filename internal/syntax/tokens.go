package syntax

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitTopLevel splits s at commas that are not nested inside (), [], {} or
// <> and not inside string or char literals. Elements are trimmed; a
// trailing comma does not produce an empty element.
func SplitTopLevel(s string) []string {
	var parts []string
	start := 0
	scanTopLevel(s, func(i int) {
		if s[i] == ',' {
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	})
	if last := strings.TrimSpace(s[start:]); last != "" {
		parts = append(parts, last)
	}
	return parts
}

// scanTopLevel calls visit with the index of every byte of s that is outside
// brackets and literals. `->` and `=>` do not close an angle bracket.
func scanTopLevel(s string, visit func(i int)) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			i = skipString(s, i)
			continue
		case '\'':
			if end, ok := skipChar(s, i); ok {
				i = end
				continue
			}
		case '(', '[', '{', '<':
			depth++
			continue
		case ')', ']', '}':
			depth--
			continue
		case '>':
			if i > 0 && (s[i-1] == '-' || s[i-1] == '=') {
				break
			}
			depth--
			continue
		}
		if depth == 0 {
			visit(i)
		}
	}
}

// skipString returns the index of the quote closing the string opened at i.
func skipString(s string, i int) int {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '"':
			return j
		}
	}
	return len(s) - 1
}

// skipChar returns the index of the quote closing a char literal opened at i.
// A lifetime such as 'static is not a char literal.
func skipChar(s string, i int) (int, bool) {
	if i+1 >= len(s) {
		return 0, false
	}
	if s[i+1] == '\\' {
		if i+3 < len(s) {
			if j := strings.IndexByte(s[i+3:], '\''); j >= 0 {
				return i + 3 + j, true
			}
		}
		return 0, false
	}
	_, size := utf8.DecodeRuneInString(s[i+1:])
	if end := i + 1 + size; end < len(s) && s[end] == '\'' {
		return end, true
	}
	return 0, false
}

// IsIdent reports whether s is a single Rust identifier (raw identifiers
// included). The lone underscore is not an identifier.
func IsIdent(s string) bool {
	s = strings.TrimPrefix(s, "r#")
	if s == "" || s == "_" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

// Compact removes all whitespace, which is enough to compare paths and
// simple types for equality.
func Compact(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// SplitCast splits `expr as Type` at the last top-level `as` keyword.
func SplitCast(s string) (expr, typ string, ok bool) {
	at := -1
	scanTopLevel(s, func(i int) {
		if s[i] == 'a' && strings.HasPrefix(s[i:], "as") && isBoundary(s, i-1) && isBoundary(s, i+2) {
			at = i
		}
	})
	if at < 0 {
		return "", "", false
	}
	expr = strings.TrimSpace(s[:at])
	typ = strings.TrimSpace(s[at+2:])
	if expr == "" || typ == "" {
		return "", "", false
	}
	return expr, typ, true
}

func isBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := rune(s[i])
	return !(c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c))
}

// delimited strips one pair of matching outer delimiters.
func delimited(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return "", false
	}
	switch {
	case s[0] == '(' && s[len(s)-1] == ')',
		s[0] == '[' && s[len(s)-1] == ']',
		s[0] == '{' && s[len(s)-1] == '}':
		return s[1 : len(s)-1], true
	}
	return "", false
}
