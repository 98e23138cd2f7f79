// Package scope implements the NamedScope lexical-scope graph (spec §3):
// global/namespace/class/struct/function/args/local/loop/switch scopes,
// linked by parent and (for composite types) base chains, each owning an
// insertion-ordered symbol table.
//
// Member and named-child-scope tables are backed by github.com/dolthub/swiss
// (via the teacher's github.com/mna/swiss fork, see go.mod's replace
// directive) for O(1) average lookups, the same map the teacher uses for
// its runtime Map value type (lang/machine/map.go) — reused here for the
// compiler's own symbol tables instead. Swiss maps are unordered, so each
// Scope also keeps a plain []string recording insertion order, since the
// spec requires iteration in declaration order (overload resolution,
// struct layout, vtable generation all depend on it).
package scope

import (
	"github.com/dolthub/swiss"
	"github.com/mna/lethec/lang/ast"
	"golang.org/x/exp/slices"
)

// Type identifies what kind of lexical scope a Scope represents.
type Type uint8

const (
	Global Type = iota
	Namespace
	Class
	Struct
	Function
	Args
	Local
	Loop
	Switch
)

func (t Type) String() string {
	switch t {
	case Global:
		return "global"
	case Namespace:
		return "namespace"
	case Class:
		return "class"
	case Struct:
		return "struct"
	case Function:
		return "function"
	case Args:
		return "args"
	case Local:
		return "local"
	case Loop:
		return "loop"
	case Switch:
		return "switch"
	default:
		return "unknown"
	}
}

// LocalVar records one stack-allocated local's layout within a function
// scope's frame.
type LocalVar struct {
	Offset int
	Type   any // *types.QDataType, kept opaque to avoid an import cycle
}

// Scope is one NamedScope node (spec §3).
type Scope struct {
	Name      string
	NameAlias string // template typedef alias name, if this scope stands in for one

	Parent *Scope // non-owning
	Base   *Scope // non-owning; inheritance chain for class/struct scopes

	Type Type
	Node *ast.Node // owning AST node, or nil

	members      *swiss.Map[string, *ast.Node]
	memberOrder  []string
	namedScopes  *swiss.Map[string, *Scope]
	scopeOrder   []string
	scopes       []*Scope // unnamed (owned) child scopes
	labels       map[string]*ast.Node
	operators    []*ast.Node

	LocalVars    []LocalVar
	VarOfs       int
	VarSize      int
	MaxVarAlign  int
	MaxVarSize   int

	Deferred []*ast.Node

	BreakHandles    []int // patch-list of instruction offsets to fix up to the break target
	ContinueHandles []int

	BlockThis      bool // a nested block scope still sees 'this' from the enclosing method
	NeedExtraScope bool
	CtorDefined    bool
}

// New creates a scope of the given type and name, linked to parent.
func New(typ Type, name string, parent *Scope) *Scope {
	s := &Scope{
		Type:        typ,
		Name:        name,
		Parent:      parent,
		members:     swiss.NewMap[string, *ast.Node](8),
		namedScopes: swiss.NewMap[string, *Scope](4),
		labels:      make(map[string]*ast.Node),
	}
	if parent != nil {
		parent.scopes = append(parent.scopes, s)
	}
	return s
}

// AddMember inserts name->node into this scope's member table, recording
// insertion order. Returns false without modifying the scope if name is
// already bound (redeclaration is the caller's error to report).
func (s *Scope) AddMember(name string, node *ast.Node) bool {
	if _, ok := s.members.Get(name); ok {
		return false
	}
	s.members.Put(name, node)
	s.memberOrder = append(s.memberOrder, name)
	return true
}

// Member looks up name directly in this scope's member table (no parent or
// base walk).
func (s *Scope) Member(name string) (*ast.Node, bool) {
	return s.members.Get(name)
}

// Members returns this scope's members in insertion order.
func (s *Scope) Members() []*ast.Node {
	out := make([]*ast.Node, 0, len(s.memberOrder))
	for _, name := range s.memberOrder {
		if n, ok := s.members.Get(name); ok {
			out = append(out, n)
		}
	}
	return out
}

// MemberNames returns the member names in insertion order.
func (s *Scope) MemberNames() []string {
	return slices.Clone(s.memberOrder)
}

// AddNamedScope registers a named child scope (namespace/class/struct),
// keyed by its short name.
func (s *Scope) AddNamedScope(name string, child *Scope) bool {
	if _, ok := s.namedScopes.Get(name); ok {
		return false
	}
	s.namedScopes.Put(name, child)
	s.scopeOrder = append(s.scopeOrder, name)
	return true
}

// NamedScope looks up a named child scope directly in this scope.
func (s *Scope) NamedScope(name string) (*Scope, bool) {
	return s.namedScopes.Get(name)
}

// ScopeOrder returns the named child scopes' names in insertion order.
func (s *Scope) ScopeOrder() []string {
	return slices.Clone(s.scopeOrder)
}

// AddLabel registers a label node under name within this (function) scope.
func (s *Scope) AddLabel(name string, node *ast.Node) bool {
	if _, ok := s.labels[name]; ok {
		return false
	}
	s.labels[name] = node
	return true
}

// Label looks up a label directly in this scope.
func (s *Scope) Label(name string) (*ast.Node, bool) {
	n, ok := s.labels[name]
	return n, ok
}

// AddOperator registers an operator-overload definition node visible for
// lookup on this (struct/class) scope.
func (s *Scope) AddOperator(node *ast.Node) { s.operators = append(s.operators, node) }

// Operators returns the operator-overload nodes declared directly in this
// scope, in declaration order.
func (s *Scope) Operators() []*ast.Node { return slices.Clone(s.operators) }

// FindSymbol implements the spec's FindSymbol(name, chainBase, chainParent):
// look in this scope's members, optionally walk the base chain, optionally
// walk the parent chain, in that priority order at each level.
func (s *Scope) FindSymbol(name string, chainBase, chainParent bool) (*ast.Node, *Scope) {
	for cur := s; cur != nil; {
		if n, ok := cur.members.Get(name); ok {
			return n, cur
		}
		if chainBase {
			for b := cur.Base; b != nil; b = b.Base {
				if n, ok := b.members.Get(name); ok {
					return n, b
				}
			}
		}
		if !chainParent {
			return nil, nil
		}
		cur = cur.Parent
	}
	return nil, nil
}

// FindSymbolFull additionally walks base chains at every parent level and
// can step into named sub-scopes when a qualifying name matches, per spec
// §3 NamedScope lookup rules.
func (s *Scope) FindSymbolFull(name string) (*ast.Node, *Scope) {
	for cur := s; cur != nil; cur = cur.Parent {
		if n, ok := cur.members.Get(name); ok {
			return n, cur
		}
		for b := cur.Base; b != nil; b = b.Base {
			if n, ok := b.members.Get(name); ok {
				return n, b
			}
		}
		if child, ok := cur.namedScopes.Get(name); ok && child.Node != nil {
			if n, ok := child.members.Get(name); ok {
				return n, child
			}
		}
	}
	return nil, nil
}

// FindLabel looks up name as a label within the nearest enclosing Function
// scope, per spec §4.6 ("Labels are looked up within the enclosing function
// scope only").
func (s *Scope) FindLabel(name string) (*ast.Node, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if n, ok := cur.labels[name]; ok {
			return n, true
		}
		if cur.Type == Function {
			return nil, false
		}
	}
	return nil, false
}

// Clone deep-clones the scope subtree rooted at s: its members, named
// child scopes, owned unnamed child scopes, labels and operator list,
// remapping every AST back-reference through remapNode. It is the
// scope-graph counterpart of ast.Node.CloneWithMap, used by lang/template
// to instantiate a template's own scope once per concrete argument list
// (spec §4.7 step 4, "deep-clone the template AST subtree and its owned
// scopes, building a pointer-remap table"). Base is copied as-is (an
// inheritance chain points at pre-existing types, never at the cloned
// subtree); Parent is left nil for the caller to re-attach. The returned
// map lets the caller rewrite ScopeRef/SymScopeRef fields on the cloned
// AST nodes from old *Scope to new *Scope.
func (s *Scope) Clone(remapNode func(*ast.Node) *ast.Node) (*Scope, map[*Scope]*Scope) {
	scopeMap := make(map[*Scope]*Scope)
	nodeOrNil := func(n *ast.Node) *ast.Node {
		if n == nil {
			return nil
		}
		return remapNode(n)
	}
	var rec func(src *Scope) *Scope
	rec = func(src *Scope) *Scope {
		cp := &Scope{
			Name:        src.Name,
			NameAlias:   src.NameAlias,
			Type:        src.Type,
			Base:        src.Base,
			Node:        nodeOrNil(src.Node),
			members:     swiss.NewMap[string, *ast.Node](8),
			namedScopes: swiss.NewMap[string, *Scope](4),
			labels:      make(map[string]*ast.Node),
			VarOfs:      src.VarOfs,
			VarSize:     src.VarSize,
			MaxVarAlign: src.MaxVarAlign,
			MaxVarSize:  src.MaxVarSize,

			BlockThis:      src.BlockThis,
			NeedExtraScope: src.NeedExtraScope,
			CtorDefined:    src.CtorDefined,
		}
		scopeMap[src] = cp
		for _, name := range src.memberOrder {
			if n, ok := src.members.Get(name); ok {
				cp.AddMember(name, nodeOrNil(n))
			}
		}
		for name, n := range src.labels {
			cp.labels[name] = nodeOrNil(n)
		}
		for _, op := range src.operators {
			cp.operators = append(cp.operators, nodeOrNil(op))
		}
		cp.LocalVars = slices.Clone(src.LocalVars)
		for _, name := range src.scopeOrder {
			if child, ok := src.namedScopes.Get(name); ok {
				cc := rec(child)
				cc.Parent = cp
				cp.AddNamedScope(name, cc)
			}
		}
		for _, uc := range src.scopes {
			cc := rec(uc)
			cc.Parent = cp
			cp.scopes = append(cp.scopes, cc)
		}
		return cp
	}
	return rec(s), scopeMap
}

// EnclosingOfType walks up the parent chain and returns the nearest scope
// of type typ, or nil.
func (s *Scope) EnclosingOfType(typ Type) *Scope {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Type == typ {
			return cur
		}
	}
	return nil
}
