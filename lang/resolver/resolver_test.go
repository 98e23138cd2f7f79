package resolver_test

import (
	"testing"

	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/lexer"
	"github.com/mna/lethec/lang/macro"
	"github.com/mna/lethec/lang/parser"
	"github.com/mna/lethec/lang/resolver"
	"github.com/mna/lethec/lang/scope"
	"github.com/mna/lethec/lang/types"
	"github.com/stretchr/testify/require"
)

func resolveSrc(t *testing.T, src string) (*ast.Node, *diag.Sink) {
	t.Helper()
	sink := &diag.Sink{}
	global := scope.New(scope.Global, "", nil)
	lx := lexer.New("t.le", []byte(src), sink, lexer.Default)
	stream := macro.New(lx, sink)
	counter := 0
	root := parser.Parse(stream, sink, "t.le", global, &counter)

	pool := types.NewPool()
	gen := types.NewGen(pool, sink)
	resolver.New(sink, gen).Run(root)
	return root, sink
}

// S1: folding collapses the initializer to a single int constant 7, no
// warnings.
func TestFoldsConstantInitializer(t *testing.T) {
	root, sink := resolveSrc(t, "int x = 1 + 2 * 3;")
	require.Empty(t, sink.Errors)

	decl := root.Nodes[0].Nodes[1]
	require.Equal(t, "x", decl.Text)
	require.Len(t, decl.Nodes, 1)
	init := decl.Nodes[0]
	require.Equal(t, ast.KLiteralExpr, init.Kind)
	require.EqualValues(t, 7, init.NumInt)
}

// S2: enum E { A, B = 5, C } gives its items the values 0, 5 and 6 and
// has size 4.
func TestEnumItemValues(t *testing.T) {
	root, sink := resolveSrc(t, "enum E { A, B = 5, C } int n = sizeof(E);")
	require.Empty(t, sink.Errors)

	e := root.Nodes[0]
	require.Equal(t, ast.KEnumDecl, e.Kind)
	require.Len(t, e.Nodes, 3)

	// B's explicit initializer folds to 5.
	require.Equal(t, "B", e.Nodes[1].Text)
	require.Len(t, e.Nodes[1].Nodes, 1)
	require.Equal(t, ast.KLiteralExpr, e.Nodes[1].Nodes[0].Kind)
	require.EqualValues(t, 5, e.Nodes[1].Nodes[0].NumInt)

	qt, ok := e.ResolvedType.(types.QDataType)
	require.True(t, ok)
	require.Len(t, qt.Ref.Members, 3)
	require.Equal(t, 0, qt.Ref.Members[0].Offset)
	require.Equal(t, 5, qt.Ref.Members[1].Offset)
	require.Equal(t, 6, qt.Ref.Members[2].Offset)
	require.Equal(t, 4, qt.Ref.Size)
}

// S5: a derived method that shadows a virtual base method without
// 'override' produces warning MISSING_OVERRIDE.
func TestMissingOverrideWarning(t *testing.T) {
	_, sink := resolveSrc(t, `
class A { virtual void f(); }
class B : A { void f(); }
`)
	var found bool
	for _, e := range sink.Errors {
		if e.Warn != nil && *e.Warn == diag.MISSING_OVERRIDE {
			found = true
		}
	}
	require.True(t, found, "expected a MISSING_OVERRIDE warning")
}

// S5 continued: explicit 'override' silences the warning.
func TestExplicitOverrideSilencesWarning(t *testing.T) {
	_, sink := resolveSrc(t, `
class A { virtual void f(); }
class B : A { void f() override; }
`)
	for _, e := range sink.Errors {
		if e.Warn != nil {
			require.NotEqual(t, diag.MISSING_OVERRIDE, *e.Warn)
		}
	}
}

// S5 continued: overriding a 'final' method is a type error.
func TestOverridingFinalIsError(t *testing.T) {
	_, sink := resolveSrc(t, `
class A { virtual void f() final; }
class B : A { void f() override; }
`)
	require.NotNil(t, sink.Err())
}

// S6: 'string s = "hello"; int n = s.length;' resolves '.length' against
// the native string-property scope rather than a user-declared one.
func TestStringLengthResolvesToNativeProperty(t *testing.T) {
	root, sink := resolveSrc(t, `string s = "hello"; int n = s.length;`)
	require.Empty(t, sink.Errors)

	nDecl := root.Nodes[1].Nodes[1]
	require.Equal(t, "n", nDecl.Text)
	require.Len(t, nDecl.Nodes, 1)
	dot := nDecl.Nodes[0]
	require.Equal(t, ast.KDotExpr, dot.Kind)
	require.True(t, dot.Flags.Has(ast.FResolved))
	qt, ok := dot.ResolvedType.(types.QDataType)
	require.True(t, ok)
	require.Equal(t, types.I32, qt.Ref.Kind)
}

// S6 continued: indexing a string emits the builtin char access (spec §4.6
// rule 5), rather than failing to resolve like a non-indexable type would.
func TestStringIndexResolvesToChar(t *testing.T) {
	root, sink := resolveSrc(t, `string s = "hello"; char c = s[0];`)
	require.Empty(t, sink.Errors)

	cDecl := root.Nodes[1].Nodes[1]
	require.Len(t, cDecl.Nodes, 1)
	idx := cDecl.Nodes[0]
	require.Equal(t, ast.KIndexExpr, idx.Kind)
	qt, ok := idx.ResolvedType.(types.QDataType)
	require.True(t, ok)
	require.Equal(t, types.Char, qt.Ref.Kind)
}

// A class without an explicit base implicitly inherits 'object'; a struct
// has no implicit base.
func TestClassWithoutBaseInheritsObject(t *testing.T) {
	root, sink := resolveSrc(t, `class A { }`)
	require.Empty(t, sink.Errors)

	qt, ok := root.Nodes[0].ResolvedType.(types.QDataType)
	require.True(t, ok)
	require.NotNil(t, qt.Ref.Base)
	require.Equal(t, "object", qt.Ref.Base.Name)
}

func TestStructWithoutBaseHasNoImplicitBase(t *testing.T) {
	root, sink := resolveSrc(t, `struct A { }`)
	require.Empty(t, sink.Errors)

	qt, ok := root.Nodes[0].ResolvedType.(types.QDataType)
	require.True(t, ok)
	require.Nil(t, qt.Ref.Base)
}
