package ast_test

import (
	"testing"

	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/token"
	"github.com/stretchr/testify/require"
)

func leaf(kind ast.Kind, text string) *ast.Node {
	n := ast.NewNode(kind, token.Location{Line: 1})
	n.Text = text
	return n
}

func TestAddSetsParent(t *testing.T) {
	root := ast.NewNode(ast.KBlock, token.Location{})
	child := leaf(ast.KIdentExpr, "x")
	root.Add(child)
	require.Same(t, root, child.Parent)
	require.Equal(t, 0, root.IndexOf(child))
}

func TestReplaceChild(t *testing.T) {
	root := ast.NewNode(ast.KBlock, token.Location{})
	a := leaf(ast.KIdentExpr, "a")
	b := leaf(ast.KIdentExpr, "b")
	root.Add(a)
	require.True(t, root.ReplaceChild(a, b))
	require.Same(t, root, b.Parent)
	require.Nil(t, a.Parent)
	require.Equal(t, []*ast.Node{b}, root.Nodes)
}

func TestUnbindNode(t *testing.T) {
	root := ast.NewNode(ast.KBlock, token.Location{})
	a := leaf(ast.KIdentExpr, "a")
	b := leaf(ast.KIdentExpr, "b")
	root.Add(a)
	root.Add(b)
	removed := root.UnbindNode(0)
	require.Same(t, a, removed)
	require.Nil(t, a.Parent)
	require.Equal(t, []*ast.Node{b}, root.Nodes)
}

func TestCloneDeepCopiesAndPreservesFlags(t *testing.T) {
	root := ast.NewNode(ast.KBlock, token.Location{})
	root.Qualifiers = ast.QConst
	root.Flags = ast.FResolved
	child := leaf(ast.KIdentExpr, "x")
	root.Add(child)

	clone := root.Clone()
	require.Nil(t, clone.Parent)
	require.Equal(t, ast.QConst, clone.Qualifiers)
	require.Equal(t, ast.FResolved, clone.Flags)
	require.Len(t, clone.Nodes, 1)
	require.NotSame(t, child, clone.Nodes[0])
	require.Same(t, clone, clone.Nodes[0].Parent)
	require.Equal(t, "x", clone.Nodes[0].Text)
}

func TestCloneWithMapTracksOldToNew(t *testing.T) {
	root := ast.NewNode(ast.KBlock, token.Location{})
	child := leaf(ast.KIdentExpr, "x")
	root.Add(child)

	clone, m := root.CloneWithMap()
	require.Same(t, clone, m[root])
	require.Same(t, clone.Nodes[0], m[child])
}

func TestWalkPreOrderEnterExit(t *testing.T) {
	root := ast.NewNode(ast.KBlock, token.Location{})
	a := leaf(ast.KIdentExpr, "a")
	b := leaf(ast.KIdentExpr, "b")
	root.Add(a)
	root.Add(b)

	var events []string
	ast.Walk(ast.VisitorFunc(func(n *ast.Node, dir ast.VisitDirection) bool {
		suffix := "enter"
		if dir == ast.VisitExit {
			suffix = "exit"
		}
		events = append(events, n.Kind.String()+":"+suffix)
		return true
	}), root)

	require.Equal(t, []string{
		"Block:enter", "IdentExpr:enter", "IdentExpr:exit",
		"IdentExpr:enter", "IdentExpr:exit", "Block:exit",
	}, events)
}

func TestAstIteratorPreOrder(t *testing.T) {
	root := ast.NewNode(ast.KBlock, token.Location{})
	a := leaf(ast.KIdentExpr, "a")
	b := leaf(ast.KIdentExpr, "b")
	root.Add(a)
	root.Add(b)

	it := ast.NewAstIterator(root, nil)
	var order []*ast.Node
	for n := it.Next(); n != nil; n = it.Next() {
		order = append(order, n)
	}
	require.Equal(t, []*ast.Node{root, a, b}, order)
}
