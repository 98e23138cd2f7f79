// Package template implements template instantiation (spec §4.7): given a
// 'Name<Arg,...>' reference to a class/struct declared with template
// parameters, it produces (once per distinct, canonically-mangled argument
// list) a deep clone of the template's AST subtree and scope graph, with
// each parameter's placeholder typedef rebound to the concrete argument
// type, attached back into the tree for codegen.
//
// There is no teacher analogue (the retrieved example's Starlark-family
// language has no generics); the clone-and-remap shape reuses
// ast.Node.CloneWithMap and scope.Scope.Clone, both built specifically to
// support this package, following the same "pointer-remap table built
// during a recursive copy" idea the teacher applies to nothing bigger than
// a single AST node.
package template

import (
	"strings"

	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/scope"
	"github.com/mna/lethec/lang/types"
)

// Instantiate resolves a KTemplateInstanceExpr node n (spec §4.7): it looks
// up the template definition by n.Text, mangles n's already-resolved
// type-argument children into a canonical name, and either reuses a prior
// instantiation registered under that name or clones the definition fresh.
// resolvePass is called on the fresh clone (with ownerScope) to kick off
// its own resolution; it is a plain callback - typically the resolver's
// own bottom-up pass function - so this package never needs to import
// lang/resolver.
func Instantiate(pool *types.Pool, sink *diag.Sink, n *ast.Node, sc *scope.Scope, resolvePass func(*ast.Node, *scope.Scope) bool) (types.QDataType, bool) {
	def, defScope := sc.FindSymbolFull(n.Text)
	if def == nil || def.Kind != ast.KClassDecl || !def.Qualifiers.Has(ast.QTemplate) {
		sink.Addf(diag.Template, n.Loc, "%q is not a template", n.Text)
		return types.QDataType{}, false
	}

	args := make([]types.QDataType, 0, len(n.Nodes))
	argNames := make([]string, 0, len(n.Nodes))
	for _, a := range n.Nodes {
		qt, ok := a.ResolvedType.(types.QDataType)
		if !ok || !qt.IsValid() {
			return types.QDataType{}, false // argument types not all resolved yet
		}
		args = append(args, qt)
		argNames = append(argNames, qt.Ref.Name)
	}

	mangled := mangle(n.Text, argNames)

	owner := ownerScope(def)
	if owner == nil {
		owner = defScope
	}
	if existing, ok := owner.Member(mangled); ok {
		if qt, ok := existing.ResolvedType.(types.QDataType); ok && qt.IsValid() {
			return qt, true
		}
		return types.QDataType{}, false // a previous instantiation is still resolving
	}

	defClassScope, _ := def.ScopeRef.(*scope.Scope)
	if defClassScope == nil {
		sink.Addf(diag.Template, n.Loc, "template %q has no scope", n.Text)
		return types.QDataType{}, false
	}

	clone, nodeMap := def.CloneWithMap()
	clonedScope, scopeMap := defClassScope.Clone(func(old *ast.Node) *ast.Node {
		if nn, ok := nodeMap[old]; ok {
			return nn
		}
		return old
	})
	remapRefs(clone, nodeMap, scopeMap)

	clone.Text = mangled
	clone.Qualifiers |= ast.QTemplateInstantiated
	// the definition's skip/resolved flags were copied by the clone; the
	// instantiation itself has to be resolved and compiled.
	clone.Flags &^= ast.FSkipCodegen | ast.FResolved
	clone.Extra = def.Extra // "class" or "struct"
	clone.ScopeRef = clonedScope
	clone.SymScopeRef = clonedScope
	clonedScope.Name = mangled
	clonedScope.Parent = defScope

	bindParams(clone, clonedScope, args)

	if ownerNode := def.Parent; ownerNode != nil {
		ownerNode.Add(clone)
	}
	owner.AddMember(mangled, clone)

	resolvePass(clone, owner)

	qt, ok := clone.ResolvedType.(types.QDataType)
	return qt, ok && qt.IsValid()
}

// ownerScope is the scope a freshly mangled instantiation is registered
// in: the scope that lexically contains the template definition itself,
// so 'Stack<int>' and 'Stack<float>' both live alongside 'Stack'.
func ownerScope(def *ast.Node) *scope.Scope {
	for cur := def.Parent; cur != nil; cur = cur.Parent {
		if s, ok := cur.ScopeRef.(*scope.Scope); ok && s != nil {
			return s
		}
	}
	return nil
}

// bindParams rewrites each template parameter's placeholder typedef
// (registered by lang/parser/decl.go's parseTemplateParams as a same-named
// KTypedefDecl member with no children) to carry the concrete argument
// type directly, so ordinary name resolution inside the cloned body treats
// the parameter name as a fully resolved type from this point on.
func bindParams(clone *ast.Node, clonedScope *scope.Scope, args []types.QDataType) {
	i := 0
	for _, c := range clone.Nodes {
		if c.Kind != ast.KTemplateParam {
			continue
		}
		if i >= len(args) {
			break
		}
		if placeholder, ok := clonedScope.Member(c.Text); ok && placeholder.Kind == ast.KTypedefDecl {
			placeholder.ResolvedType = args[i]
			placeholder.Flags |= ast.FResolved
		}
		i++
	}
}

// remapRefs rewrites every ScopeRef/SymScopeRef/Target pointer reachable
// from clone (a freshly cloned AST subtree) from the original definition's
// nodes/scopes to their counterparts in nodeMap/scopeMap.
func remapRefs(n *ast.Node, nodeMap map[*ast.Node]*ast.Node, scopeMap map[*scope.Scope]*scope.Scope) {
	if n == nil {
		return
	}
	if s, ok := n.ScopeRef.(*scope.Scope); ok {
		if ns, ok := scopeMap[s]; ok {
			n.ScopeRef = ns
		}
	}
	if s, ok := n.SymScopeRef.(*scope.Scope); ok {
		if ns, ok := scopeMap[s]; ok {
			n.SymScopeRef = ns
		}
	}
	if n.Target != nil {
		if nt, ok := nodeMap[n.Target]; ok {
			n.Target = nt
		}
	}
	for _, c := range n.Nodes {
		remapRefs(c, nodeMap, scopeMap)
	}
}

// mangle builds the canonical name under which one concrete instantiation
// is shared (spec §4.7, spec testable property 7: "two template instances
// with the same canonical mangled name share the same DataType").
func mangle(name string, argNames []string) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('<')
	sb.WriteString(strings.Join(argNames, ","))
	sb.WriteByte('>')
	return sb.String()
}
