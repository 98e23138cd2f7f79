package parser_test

import (
	"testing"

	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/lexer"
	"github.com/mna/lethec/lang/macro"
	"github.com/mna/lethec/lang/parser"
	"github.com/mna/lethec/lang/scope"
	"github.com/stretchr/testify/require"
)

func parseSrc(t *testing.T, src string) (*ast.Node, *diag.Sink) {
	t.Helper()
	sink := &diag.Sink{}
	global := scope.New(scope.Global, "", nil)
	lx := lexer.New("t.le", []byte(src), sink, lexer.Default)
	stream := macro.New(lx, sink)
	counter := 0
	root := parser.Parse(stream, sink, "t.le", global, &counter)
	return root, sink
}

// S1: `int x = 1 + 2 * 3;` -- root contains one var_decl_list.
func TestVarDeclWithExpr(t *testing.T) {
	root, sink := parseSrc(t, "int x = 1 + 2 * 3;")
	require.Empty(t, sink.Errors)
	require.Len(t, root.Nodes, 1)

	list := root.Nodes[0]
	require.Equal(t, ast.KVarDecl, list.Kind)
	// [0] is the shared type node, [1] is the declarator.
	require.Len(t, list.Nodes, 2)

	decl := list.Nodes[1]
	require.Equal(t, ast.KVarDecl, decl.Kind)
	require.Equal(t, "x", decl.Text)
	require.Len(t, decl.Nodes, 1)
	require.Equal(t, ast.KBinOpExpr, decl.Nodes[0].Kind)
}

// S2: `enum E { A, B = 5, C }` produces three members.
func TestEnumDecl(t *testing.T) {
	root, sink := parseSrc(t, "enum E { A, B = 5, C }")
	require.Empty(t, sink.Errors)
	require.Len(t, root.Nodes, 1)

	e := root.Nodes[0]
	require.Equal(t, ast.KEnumDecl, e.Kind)
	require.Equal(t, "E", e.Text)
	require.Len(t, e.Nodes, 3)
	require.Equal(t, "A", e.Nodes[0].Text)
	require.Empty(t, e.Nodes[0].Nodes)
	require.Equal(t, "B", e.Nodes[1].Text)
	require.Len(t, e.Nodes[1].Nodes, 1)
	require.Equal(t, "C", e.Nodes[2].Text)
}

// S5: virtual/override qualifiers round-trip onto the method declarations.
func TestClassVirtualOverride(t *testing.T) {
	root, sink := parseSrc(t, `
class A { virtual void f(); }
class B : A { void f() override; }
`)
	require.Empty(t, sink.Errors)
	require.Len(t, root.Nodes, 2)

	classA := root.Nodes[0]
	require.Equal(t, ast.KClassDecl, classA.Kind)
	require.Equal(t, "A", classA.Text)
	fnF := classA.Nodes[0]
	require.Equal(t, ast.KFuncDecl, fnF.Kind)
	require.True(t, fnF.Qualifiers.Has(ast.QVirtual))

	classB := root.Nodes[1]
	require.Equal(t, "B", classB.Text)
	// [0] is the base-class type node, [1] is the overriding method.
	require.Equal(t, ast.KTypeNode, classB.Nodes[0].Kind)
	require.Equal(t, "A", classB.Nodes[0].Text)
	fnOverride := classB.Nodes[1]
	require.Equal(t, ast.KFuncDecl, fnOverride.Kind)
	require.True(t, fnOverride.Qualifiers.Has(ast.QOverride))
}

// Operator precedence: multiplication binds tighter than addition.
func TestExprPrecedence(t *testing.T) {
	root, sink := parseSrc(t, "int x = 1 + 2 * 3;")
	require.Empty(t, sink.Errors)
	expr := root.Nodes[0].Nodes[1].Nodes[0]
	require.Equal(t, ast.KBinOpExpr, expr.Kind)
	require.Equal(t, "+", expr.Text)
	require.Len(t, expr.Nodes, 2)
	require.Equal(t, ast.KLiteralExpr, expr.Nodes[0].Kind)
	rhs := expr.Nodes[1]
	require.Equal(t, ast.KBinOpExpr, rhs.Kind)
	require.Equal(t, "*", rhs.Text)
}

// Template struct declaration + instance use (spec S3).
func TestTemplateStructParses(t *testing.T) {
	root, sink := parseSrc(t, "struct Vec<T> { T x, y; } Vec<int> v;")
	require.Empty(t, sink.Errors)
	require.Len(t, root.Nodes, 2)

	tpl := root.Nodes[0]
	require.Equal(t, ast.KClassDecl, tpl.Kind)
	require.Equal(t, "Vec", tpl.Text)
	require.True(t, tpl.Qualifiers.Has(ast.QTemplate))

	use := root.Nodes[1]
	require.Equal(t, ast.KVarDecl, use.Kind)
}
