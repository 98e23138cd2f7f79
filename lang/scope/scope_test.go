package scope_test

import (
	"testing"

	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/scope"
	"github.com/mna/lethec/lang/token"
	"github.com/stretchr/testify/require"
)

func member(name string) *ast.Node {
	n := ast.NewNode(ast.KVarDecl, token.Location{})
	n.Text = name
	return n
}

func TestAddMemberInsertionOrder(t *testing.T) {
	s := scope.New(scope.Global, "", nil)
	require.True(t, s.AddMember("b", member("b")))
	require.True(t, s.AddMember("a", member("a")))
	require.False(t, s.AddMember("a", member("a"))) // redeclaration

	names := s.MemberNames()
	require.Equal(t, []string{"b", "a"}, names)
}

func TestFindSymbolParentChain(t *testing.T) {
	outer := scope.New(scope.Global, "", nil)
	outer.AddMember("x", member("x"))
	inner := scope.New(scope.Local, "", outer)

	_, found := inner.FindSymbol("x", false, false)
	require.Nil(t, found)

	n, found2 := inner.FindSymbol("x", false, true)
	require.NotNil(t, n)
	require.Same(t, outer, found2)
}

func TestFindSymbolBaseChain(t *testing.T) {
	base := scope.New(scope.Class, "Base", nil)
	base.AddMember("f", member("f"))
	derived := scope.New(scope.Class, "Derived", nil)
	derived.Base = base

	_, ok := derived.FindSymbol("f", false, false)
	require.Nil(t, ok)

	n, foundIn := derived.FindSymbol("f", true, false)
	require.NotNil(t, n)
	require.Same(t, base, foundIn)
}

func TestFindLabelStopsAtFunctionBoundary(t *testing.T) {
	fn := scope.New(scope.Function, "f", nil)
	block := scope.New(scope.Local, "", fn)
	fn.AddLabel("done", member("done"))

	n, ok := block.FindLabel("done")
	require.True(t, ok)
	require.NotNil(t, n)

	outer := scope.New(scope.Global, "", nil)
	fn2 := scope.New(scope.Function, "g", outer)
	outer.AddLabel("elsewhere", member("elsewhere"))
	_, ok2 := fn2.FindLabel("elsewhere")
	require.False(t, ok2)
}

func TestEnclosingOfType(t *testing.T) {
	fn := scope.New(scope.Function, "f", nil)
	loop := scope.New(scope.Loop, "", fn)
	block := scope.New(scope.Local, "", loop)

	require.Same(t, loop, block.EnclosingOfType(scope.Loop))
	require.Same(t, fn, block.EnclosingOfType(scope.Function))
	require.Nil(t, block.EnclosingOfType(scope.Switch))
}
