package types_test

import (
	"testing"

	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/scope"
	"github.com/mna/lethec/lang/types"
	"github.com/stretchr/testify/require"
)

func TestNewPoolSeedsElementarySingletons(t *testing.T) {
	pool := types.NewPool()
	i32 := pool.Elem(types.I32)
	require.True(t, i32.IsValid())
	require.Equal(t, "int", i32.Ref.Name)
	require.Equal(t, 4, i32.Ref.Size)

	// Asking twice returns the identical pointer.
	again := pool.Elem(types.I32)
	require.Same(t, i32.Ref, again.Ref)

	f64 := pool.Elem(types.F64)
	require.Equal(t, 8, f64.Ref.Size)
	require.NotSame(t, i32.Ref, f64.Ref)
}

func TestNewPoolRegistersStringLengthProperty(t *testing.T) {
	pool := types.NewPool()
	str := pool.Elem(types.String)
	sc, ok := str.Ref.StructScopeRef.(*scope.Scope)
	require.True(t, ok)
	member, found := sc.Member("length")
	require.True(t, found)
	qt, ok := member.ResolvedType.(types.QDataType)
	require.True(t, ok)
	require.Equal(t, types.I32, qt.Ref.Kind)
}

func TestDynamicArrayTypeRegistersLengthProperty(t *testing.T) {
	pool := types.NewPool()
	elem := pool.Elem(types.I32)
	arr := pool.DynamicArrayType(elem)
	sc, ok := arr.Ref.StructScopeRef.(*scope.Scope)
	require.True(t, ok)
	_, found := sc.Member("length")
	require.True(t, found)
}

func TestComposeTypeEnumWidthWins(t *testing.T) {
	require.Equal(t, types.I64, types.ComposeTypeEnum(types.I32, types.I64))
	require.Equal(t, types.F64, types.ComposeTypeEnum(types.F32, types.F64))
	require.Equal(t, types.F32, types.ComposeTypeEnum(types.I32, types.F32))
}

func TestComposeTypeEnumUnsignedWinsAtEqualWidth(t *testing.T) {
	require.Equal(t, types.U32, types.ComposeTypeEnum(types.I32, types.U32))
	require.Equal(t, types.U32, types.ComposeTypeEnum(types.U32, types.I32))
}

func litInt(v int64) *ast.Node {
	return &ast.Node{Kind: ast.KLiteralExpr, NumInt: v}
}

func litFloat(v float64) *ast.Node {
	return &ast.Node{Kind: ast.KLiteralExpr, NumFloat: v, IsFloat: true}
}

func binOp(op string, lhs, rhs *ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KBinOpExpr, Text: op, Nodes: []*ast.Node{lhs, rhs}}
}

// 1 + 2 * 3 folds bottom-up to 7, run to a fix point the way the codegen
// driver's FoldConst phase does.
func TestFoldConstArithmetic(t *testing.T) {
	mul := binOp("*", litInt(2), litInt(3))
	add := binOp("+", litInt(1), mul)
	for types.FoldConst(add) {
	}
	require.Equal(t, ast.KLiteralExpr, add.Kind)
	require.EqualValues(t, 7, add.NumInt)
}

func TestFoldConstDivisionByZeroNotFolded(t *testing.T) {
	div := binOp("/", litInt(10), litInt(0))
	changed := types.FoldConst(div)
	require.False(t, changed)
	require.Equal(t, ast.KBinOpExpr, div.Kind)
}

func TestFoldConstFloatFlushesDenormal(t *testing.T) {
	// 1e-310 * 1e-10 underflows to a subnormal double, which must flush to
	// exactly zero rather than a tiny nonzero residue.
	mul := binOp("*", litFloat(1e-310), litFloat(1e-10))
	for types.FoldConst(mul) {
	}
	require.Equal(t, ast.KLiteralExpr, mul.Kind)
	require.Equal(t, float64(0), mul.NumFloat)
}

func TestFoldConstStringConcat(t *testing.T) {
	lhs := &ast.Node{Kind: ast.KLiteralExpr, Text: "foo", Extra: "string"}
	rhs := &ast.Node{Kind: ast.KLiteralExpr, Text: "bar", Extra: "string"}
	cat := binOp("+", lhs, rhs)
	changed := types.FoldConst(cat)
	require.True(t, changed)
	require.Equal(t, "foobar", cat.Text)
}

func TestFoldConstTernary(t *testing.T) {
	cond := &ast.Node{Kind: ast.KCondExpr, Nodes: []*ast.Node{litInt(1), litInt(11), litInt(22)}}
	for types.FoldConst(cond) {
	}
	require.Equal(t, ast.KLiteralExpr, cond.Kind)
	require.EqualValues(t, 11, cond.NumInt)
}

func TestFoldConstUnaryNot(t *testing.T) {
	not := &ast.Node{Kind: ast.KUnaryOpExpr, Text: "!", Nodes: []*ast.Node{litInt(0)}}
	changed := types.FoldConst(not)
	require.True(t, changed)
	require.Equal(t, ast.KLiteralExpr, not.Kind)
	require.EqualValues(t, 1, not.NumInt)
}
