package syntax

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deriveLib = `//! Derive macros for the Hello trait.
extern crate proc_macro;

use proc_macro::TokenStream;
use quote::quote;
use syn::{parse_macro_input, DeriveInput};

/// Derives Hello.
#[proc_macro_derive(Hello, attributes(hello))]
#[proc_macro_error]
pub fn hello_derive(input: TokenStream) -> TokenStream {
    let input = parse_macro_input!(input as DeriveInput);
    let name = &input.ident;
    // emit the impl
    let expanded = quote! {
        impl Hello for #name {}
    };
    TokenStream::from(expanded)
}

struct Helper {
    field: u32,
}
`

func parse(t *testing.T, src string) *File {
	t.Helper()
	f, err := Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	return f
}

func TestParse_RoundTripIsExact(t *testing.T) {
	sources := map[string]string{
		"derive lib": deriveLib,
		"empty":      "",
		"whitespace": "\n\n  \n",
		"leading blank lines": "\n\nfn main() {}\n",
		"odd spacing": "use   proc_macro :: { TokenStream ,Span };\n" +
			"#[inline]   // keep me\n#[must_use]\nfn   f < T > ( x : T ) -> T   where T: Copy {x}\n",
		"nested items": "mod inner {\n    pub fn f() {}\n}\nimpl Foo {\n    fn g(&self) {}\n}\n",
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			f := parse(t, src)
			assert.Equal(t, src, Print(f))
		})
	}
}

func TestParse_DeclarationKinds(t *testing.T) {
	f := parse(t, deriveLib)

	var kinds []string
	for _, d := range f.Decls {
		switch d := d.(type) {
		case *ExternCrate:
			kinds = append(kinds, "extern:"+d.Name)
		case *Use:
			kinds = append(kinds, "use:"+d.Tree.String())
		case *Function:
			kinds = append(kinds, "fn:"+d.Name)
		case *Other:
			kinds = append(kinds, "other:"+d.Kind)
		}
	}

	want := []string{
		"other:line_comment",
		"extern:proc_macro",
		"use:proc_macro::TokenStream",
		"use:quote::quote",
		"use:syn::{parse_macro_input, DeriveInput}",
		"other:line_comment",
		"fn:hello_derive",
		"other:struct_item",
	}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("declaration kinds mismatch (-want +got):\n%s", diff)
	}
}

func findFunction(t *testing.T, f *File, name string) *Function {
	t.Helper()
	for _, d := range f.Decls {
		if fn, ok := d.(*Function); ok && fn.Name == name {
			return fn
		}
	}
	t.Fatalf("function %s not found", name)
	return nil
}

func TestParse_Function(t *testing.T) {
	f := parse(t, deriveLib)
	fn := findFunction(t, f, "hello_derive")

	require.Len(t, fn.Attrs, 2)
	assert.Equal(t, "proc_macro_derive", fn.Attrs[0].Path)
	assert.Equal(t, "(Hello, attributes(hello))", fn.Attrs[0].Args)
	assert.Equal(t, "proc_macro_error", fn.Attrs[1].Path)
	assert.Equal(t, "", fn.Attrs[1].Args)

	assert.Equal(t, "pub", fn.Vis)
	assert.Equal(t, "TokenStream", fn.Return)
	require.Len(t, fn.Params, 1)
	assert.Equal(t, "input", fn.Params[0].Pattern)
	assert.Equal(t, "TokenStream", fn.Params[0].Type)

	require.Len(t, fn.Body, 5)
	local, ok := fn.Body[0].(*Local)
	require.True(t, ok, "first statement should be a let binding")
	assert.Equal(t, "input", local.Pattern)
	call, ok := local.Init.(*MacroCall)
	require.True(t, ok, "initializer should be a macro call")
	assert.Equal(t, "parse_macro_input", call.Path)
	assert.Equal(t, "input as DeriveInput", call.Args)

	_, isRaw := fn.Body[2].(*RawStmt)
	assert.True(t, isRaw, "comments are carried as raw statements")
}

func TestParse_LetForms(t *testing.T) {
	src := "fn f() {\n    let mut a: u8 = 1;\n    let b;\n    let Some(c) = d else { return; };\n}\n"
	fn := findFunction(t, parse(t, src), "f")
	require.Len(t, fn.Body, 3)

	a := fn.Body[0].(*Local)
	assert.Equal(t, "mut a", a.Pattern)
	assert.Equal(t, "u8", a.Type)
	assert.Equal(t, &RawExpr{Text: "1"}, a.Init)

	b := fn.Body[1].(*Local)
	assert.Nil(t, b.Init)

	c := fn.Body[2].(*Local)
	assert.Equal(t, "Some(c)", c.Pattern)
	assert.Equal(t, "{ return; }", c.Else)
}

func TestParse_UseTrees(t *testing.T) {
	tests := []struct {
		src  string
		want string
		root string
	}{
		{"use proc_macro::TokenStream;", "proc_macro::TokenStream", "proc_macro"},
		{"use proc_macro::{self, Span, token_stream::IntoIter};", "proc_macro::{self, Span, token_stream::IntoIter}", "proc_macro"},
		{"use ::proc_macro::TokenStream;", "::proc_macro::TokenStream", "proc_macro"},
		{"use proc_macro::*;", "proc_macro::*", "proc_macro"},
		{"use proc_macro::TokenStream as TS;", "proc_macro::TokenStream as TS", "proc_macro"},
		{"pub use a::b::c;", "a::b::c", "a"},
		{"use std;", "std", ""},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			f := parse(t, tt.src)
			require.Len(t, f.Decls, 1)
			u, ok := f.Decls[0].(*Use)
			require.True(t, ok)
			assert.Equal(t, tt.want, u.Tree.String())
			if tt.root == "" {
				assert.Nil(t, u.Root())
			} else {
				require.NotNil(t, u.Root())
				assert.Equal(t, tt.root, u.Root().Ident)
			}
		})
	}
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse(context.Background(), []byte("fn broken( {\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSyntax))

	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Line)
}

func TestAttribute_Arguments(t *testing.T) {
	tests := []struct {
		args    string
		list    []string
		ident   string
		isIdent bool
	}{
		{"(Hello)", []string{"Hello"}, "Hello", true},
		{"(Hello, attributes(a, b))", []string{"Hello", "attributes(a, b)"}, "Hello", true},
		{"(::path::Hello)", []string{"::path::Hello"}, "", false},
		{"", nil, "", false},
		{" = \"doc\"", nil, "", false},
		{"()", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			a := NewAttribute("proc_macro_derive", tt.args)
			assert.Equal(t, tt.list, a.ArgList())
			ident, ok := a.LeadingIdent()
			assert.Equal(t, tt.isIdent, ok)
			assert.Equal(t, tt.ident, ident)
		})
	}
}
