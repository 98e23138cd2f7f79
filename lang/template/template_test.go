package template_test

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

// S3: one template, one instance named Vec<int>; redeclaring Vec<int> v2
// reuses the same *DataType (spec testable property 7).
func TestTemplateInstanceUniqueness(t *testing.T) {
	root, sink := resolveSrc(t, `
struct Vec<T> { T x, y; }
Vec<int> v;
Vec<int> v2;
`)
	require.Empty(t, sink.Errors)
	require.Len(t, root.Nodes, 4) // the Vec<int> clone is attached after the two declarations

	vDecl := root.Nodes[1].Nodes[1]
	v2Decl := root.Nodes[2].Nodes[1]
	require.Equal(t, "v", vDecl.Text)
	require.Equal(t, "v2", v2Decl.Text)

	vType, ok := vDecl.ResolvedType.(types.QDataType)
	require.True(t, ok)
	require.True(t, vType.IsValid())
	v2Type, ok := v2Decl.ResolvedType.(types.QDataType)
	require.True(t, ok)
	require.Same(t, vType.Ref, v2Type.Ref)

	// Two members, x and y, both of the template parameter's type (int).
	require.Len(t, vType.Ref.Members, 2)
	require.Equal(t, "x", vType.Ref.Members[0].Name)
	require.Same(t, vType.Ref.Members[0].Type.Ref, vType.Ref.Members[1].Type.Ref)
}
