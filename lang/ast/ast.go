// Package ast defines the Lethe abstract syntax tree: a single Node sum
// type (spec §3 AstNode) rather than a deep class hierarchy, with every
// node carrying a location, a qualifier bit-mask, a flag bit-mask, and
// non-owning back-references to its owning and resolved scopes.
//
// Per-kind behavior (Resolve, CodeGen, FoldConst, GetTypeDesc) is not
// implemented as methods here: those live as type-switch driven function
// tables in the resolver, types and compiler packages, matching the
// "tagged variant, not deep inheritance" design note. Scope back-references
// are kept as opaque `any` fields so this package never imports lang/scope,
// which in turn imports ast — mirroring the teacher's own trick of typing
// FuncStmt.Function as `any` to avoid a resolver/ast import cycle.
package ast

import "github.com/mna/lethec/lang/token"

// Kind tags every Node with its concrete variant.
type Kind uint8

const (
	BadNode Kind = iota

	KProgram
	KImport
	KNamespaceDecl
	KTypedefDecl
	KUsingDecl
	KVarDecl
	KFuncDecl
	KParam
	KClassDecl
	KField
	KEnumDecl
	KEnumItem
	KTemplateParam

	KBlock
	KIfStmt
	KForStmt
	KForInStmt
	KWhileStmt
	KDoStmt
	KSwitchStmt
	KCaseClause
	KBreakStmt
	KContinueStmt
	KReturnStmt
	KGotoStmt
	KLabelStmt
	KDeferStmt
	KExprStmt
	KStaticAssert

	KBinOpExpr
	KUnaryOpExpr
	KAssignExpr
	KCallExpr
	KIndexExpr
	KDotExpr
	KScopeExpr
	KIdentExpr
	KLiteralExpr
	KCastExpr
	KSizeofExpr
	KTypeidExpr
	KOffsetofExpr
	KInitListExpr
	KDesignator
	KTemplateInstanceExpr
	KCondExpr

	KTypeNode
)

var kindNames = map[Kind]string{
	BadNode: "BadNode",

	KProgram: "Program", KImport: "Import", KNamespaceDecl: "NamespaceDecl",
	KTypedefDecl: "TypedefDecl", KUsingDecl: "UsingDecl", KVarDecl: "VarDecl",
	KFuncDecl: "FuncDecl", KParam: "Param", KClassDecl: "ClassDecl", KField: "Field",
	KEnumDecl: "EnumDecl", KEnumItem: "EnumItem", KTemplateParam: "TemplateParam",

	KBlock: "Block", KIfStmt: "IfStmt", KForStmt: "ForStmt", KForInStmt: "ForInStmt",
	KWhileStmt: "WhileStmt", KDoStmt: "DoStmt", KSwitchStmt: "SwitchStmt",
	KCaseClause: "CaseClause", KBreakStmt: "BreakStmt", KContinueStmt: "ContinueStmt",
	KReturnStmt: "ReturnStmt", KGotoStmt: "GotoStmt", KLabelStmt: "LabelStmt",
	KDeferStmt: "DeferStmt", KExprStmt: "ExprStmt", KStaticAssert: "StaticAssert",

	KBinOpExpr: "BinOpExpr", KUnaryOpExpr: "UnaryOpExpr", KAssignExpr: "AssignExpr",
	KCallExpr: "CallExpr", KIndexExpr: "IndexExpr", KDotExpr: "DotExpr",
	KScopeExpr: "ScopeExpr", KIdentExpr: "IdentExpr", KLiteralExpr: "LiteralExpr",
	KCastExpr: "CastExpr", KSizeofExpr: "SizeofExpr", KTypeidExpr: "TypeidExpr",
	KOffsetofExpr: "OffsetofExpr", KInitListExpr: "InitListExpr", KDesignator: "Designator",
	KTemplateInstanceExpr: "TemplateInstanceExpr", KCondExpr: "CondExpr",

	KTypeNode: "TypeNode",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Qualifiers is the qualifier bit-mask carried by every node (spec §3).
type Qualifiers uint64

const (
	QConst Qualifiers = 1 << iota
	QConstExpr
	QStatic
	QNative
	QReference
	QRaw
	QWeak
	QNoBounds
	QNoInit
	QMethod
	QVirtual
	QOverride
	QFinal
	QPublic
	QProtected
	QPrivate
	QEditable
	QPlaceable
	QLatent
	QState
	QStateBreak
	QCtor
	QDtor
	QOperator
	QProperty
	QBitfield
	QTemplate
	QTemplateInstantiated
	QFormat
	QIntrinsic
	QInline
	QDeprecated
	QNoDiscard
	QEnumClass
	QNoCopy
	QTransient
	QNonTrivial
)

func (q Qualifiers) Has(bit Qualifiers) bool { return q&bit != 0 }

// Flags is the per-node transient-state bit-mask (spec §3).
type Flags uint32

const (
	FResolved Flags = 1 << iota
	FSkipCodegen
	FReferenced
	FTypeGen
	FTemplateInstance
	FPushType
	FArg1Elem
	FArg2Elem
	FResElem
	FResSlice
	FNrvo
	FSubexpr
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Node is the single base type for every AST node (spec §3 AstNode). It is
// a concrete struct, not an interface: per-kind data lives in the Data
// field in the handful of shapes below, keeping the "one base, tagged
// variant" design explicit instead of reintroducing a class hierarchy
// through many small Go types.
type Node struct {
	Kind       Kind
	Loc        token.Location
	Qualifiers Qualifiers
	Flags      Flags

	Nodes  []*Node // owned children, in declaration/appearance order
	Parent *Node   // non-owning

	Target *Node // non-owning back-reference to the definition this node resolved to

	ScopeRef    any // non-owning *scope.Scope: the scope this node was written in
	SymScopeRef any // non-owning *scope.Scope: the scope this node resolved in

	// ResolvedType is filled in by the resolver/type-gen phases; kept as
	// `any` (a *types.QDataType in practice) for the same import-cycle
	// reason as ScopeRef above.
	ResolvedType any

	// Text carries identifier/string/name text, operator spelling, etc.
	Text string

	// Num carries a literal's numeric payload (spec's "untyped value
	// union"); valid interpretation depends on Kind.
	NumInt   int64
	NumFloat float64
	IsFloat  bool

	// Attributes holds verbatim attribute tokens collected from a leading
	// '[ ... ]' before a declaration (spec §4.5).
	Attributes []string

	// BitSize is the bit-field width for a KField with QBitfield set.
	BitSize int

	// Extra is kind-specific data that doesn't earn its own Node field:
	// case-clause labels and flags on switches, the label on
	// break/continue/goto, the underlying type token on enums, and so on.
	Extra any
}

// NewNode allocates a node of the given kind at loc. Nodes are plain heap
// allocations: the spec allows bucket/arena allocators as an optimization,
// but this implementation uses no allocator pool or region.
func NewNode(kind Kind, loc token.Location) *Node {
	return &Node{Kind: kind, Loc: loc}
}

// Add appends child as the last owned child of n and sets its parent.
func (n *Node) Add(child *Node) {
	if child == nil {
		return
	}
	child.Parent = n
	n.Nodes = append(n.Nodes, child)
}

// ReplaceChild swaps an owned child for a new one, preserving position and
// transferring ownership (old's parent link is cleared).
func (n *Node) ReplaceChild(old, replacement *Node) bool {
	for i, c := range n.Nodes {
		if c == old {
			old.Parent = nil
			replacement.Parent = n
			n.Nodes[i] = replacement
			return true
		}
	}
	return false
}

// UnbindNode relinquishes ownership of the child at index i, removing it
// from Nodes and clearing its parent, without deleting it.
func (n *Node) UnbindNode(i int) *Node {
	if i < 0 || i >= len(n.Nodes) {
		return nil
	}
	child := n.Nodes[i]
	child.Parent = nil
	n.Nodes = append(n.Nodes[:i], n.Nodes[i+1:]...)
	return child
}

// IndexOf returns the index of child among n's owned children, or -1.
func (n *Node) IndexOf(child *Node) int {
	for i, c := range n.Nodes {
		if c == child {
			return i
		}
	}
	return -1
}

// Clone performs a deep copy of n and its owned subtree, preserving flags
// and qualifiers but not parent links: the caller re-establishes Parent by
// calling Add on the clone (per spec §4.4). Target/ScopeRef/SymScopeRef are
// copied verbatim (shallow); callers that need a remap (template
// instantiation) patch them afterward via the returned clone and an
// old->new node map they build while cloning.
func (n *Node) Clone() *Node {
	c, _ := n.cloneWithMap()
	return c
}

// CloneWithMap is like Clone but also returns the old-node -> new-node map
// built during the walk, the input template instantiation needs to rewrite
// ScopeRef/SymScopeRef/Target pointers that refer to nodes inside the
// cloned subtree.
func (n *Node) CloneWithMap() (*Node, map[*Node]*Node) {
	return n.cloneWithMap()
}

func (n *Node) cloneWithMap() (*Node, map[*Node]*Node) {
	m := make(map[*Node]*Node)
	var rec func(*Node) *Node
	rec = func(src *Node) *Node {
		cp := *src
		cp.Parent = nil
		cp.Nodes = nil
		m[src] = &cp
		for _, child := range src.Nodes {
			cc := rec(child)
			cp.Add(cc)
		}
		return &cp
	}
	return rec(n), m
}

// CopyTo copies n's own fields (not children) onto dst, the "virtual"
// extension point subclasses used in the reference design: here every
// kind shares the same struct, so CopyTo is just a field copy (Kind
// included) that keeps dst's own children and parent.
func (n *Node) CopyTo(dst *Node) {
	children := dst.Nodes
	parent := dst.Parent
	*dst = *n
	dst.Nodes = children
	dst.Parent = parent
}
