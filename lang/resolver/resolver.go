// Package resolver implements the fix-point name/type resolution pass
// (spec §4.6 Resolve): it repeatedly walks the AST built by lang/parser,
// resolving identifiers against the NamedScope graph and composing
// expression/declaration types from lang/types, until a full pass makes
// no further progress. It interleaves constant folding (lang/types.Gen's
// sibling, lang/types.FoldConst) into the same loop, since a field's
// array dimension or an enum item's value may only become a literal once
// an earlier pass resolves the identifiers it depends on.
//
// There is no teacher analogue (a Starlark-family interpreter resolves
// names once, per a much smaller binding-form grammar, via
// lang/resolve.go in the retrieved example - see DESIGN.md); the
// bottom-up-children-then-resolveSelf shape and the "loop until no
// progress, then one more pass, then report" termination strategy are
// built fresh from spec §4.6/§5's ordering guarantees, reusing only the
// teacher's diag.Sink-style error accumulation already wired in
// lang/diag.
package resolver

import (
	"fmt"

	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/scope"
	"github.com/mna/lethec/lang/template"
	"github.com/mna/lethec/lang/types"
)

// Resolver holds the shared state for one compilation's resolve pass: the
// diagnostic sink and the type pool/generator that materializes
// DataTypes for the class/enum declarations it encounters.
type Resolver struct {
	Sink  *diag.Sink
	Types *types.Gen
}

// New creates a Resolver reporting to sink and materializing types
// through gen.
func New(sink *diag.Sink, gen *types.Gen) *Resolver {
	return &Resolver{Sink: sink, Types: gen}
}

// Run resolves every name and type reachable from root, looping passes
// until stable (spec §4.6): each pass resolves bottom-up, and constant
// folding runs alongside it since folded literals unblock array
// dimensions and enum item values that a pure type pass can't compose on
// its own. One extra pass is run after stability to pick up anything
// that only became resolvable once every other symbol settled (e.g. a
// forward-referenced overload), then any node that still lacks a
// resolved type is reported.
//
// Run returns the number of passes it executed (the final retry pass
// included), the "steps" value the onResolve(steps) event delegate of
// spec §6 reports.
func (r *Resolver) Run(root *ast.Node) int {
	sc, _ := root.ScopeRef.(*scope.Scope)
	steps := 0
	for {
		steps++
		changed := r.pass(root, sc)
		if types.FoldConst(root) {
			changed = true
		}
		if !changed {
			break
		}
	}
	steps++
	r.pass(root, sc) // retry pass: late-bound forward references
	r.reportUnresolved(root)
	return steps
}

// pass resolves n's children (using n's own scope for them, if n opened
// one), then n itself, returning whether anything new was resolved.
// Uninstantiated template bodies are skipped entirely: their type
// parameters are placeholders with no concrete binding until
// lang/template clones and rebinds them per use (spec §4.7).
func (r *Resolver) pass(n *ast.Node, sc *scope.Scope) bool {
	if n == nil {
		return false
	}
	if n.Flags.Has(ast.FSkipCodegen) {
		return false
	}
	if n.Kind == ast.KClassDecl && n.Qualifiers.Has(ast.QTemplate) && !n.Qualifiers.Has(ast.QTemplateInstantiated) {
		if n.Flags.Has(ast.FResolved) {
			return false
		}
		n.Flags |= ast.FSkipCodegen | ast.FResolved
		return true
	}

	childScope := sc
	if s, ok := n.ScopeRef.(*scope.Scope); ok && s != nil {
		childScope = s
	}

	changed := false
	for _, c := range n.Nodes {
		if r.pass(c, childScope) {
			changed = true
		}
	}
	if r.resolveSelf(n, sc) {
		changed = true
	}
	return changed
}

// resolveSelf applies the Kind-specific resolution rule for n, where sc
// is the scope n itself was written in (i.e. the scope a bare identifier
// at n's position would look itself up in). It returns true the first
// time n transitions into a resolved state.
func (r *Resolver) resolveSelf(n *ast.Node, sc *scope.Scope) bool {
	switch n.Kind {
	case ast.KTypeNode:
		if n.Flags.Has(ast.FResolved) {
			return false
		}
		_, ok := r.resolveTypeNode(n, sc)
		return ok

	case ast.KTemplateInstanceExpr:
		if n.Flags.Has(ast.FResolved) {
			return false
		}
		_, ok := r.resolveTemplateInstance(n, sc)
		return ok

	case ast.KTypedefDecl, ast.KUsingDecl:
		if n.Flags.Has(ast.FResolved) {
			return false
		}
		if len(n.Nodes) == 0 {
			return false // template parameter placeholder, bound later by lang/template
		}
		qt, ok := r.resolveAnyTypeNode(n.Nodes[0], sc)
		if !ok || !qt.IsValid() {
			return false
		}
		n.ResolvedType = qt
		n.Flags |= ast.FResolved
		return true

	case ast.KEnumDecl:
		dt, complete := r.Types.EnsureEnum(n)
		n.ResolvedType = types.QDataType{Ref: dt}
		if complete && !n.Flags.Has(ast.FResolved) {
			n.Flags |= ast.FResolved
			return true
		}
		return false

	case ast.KClassDecl:
		return r.resolveClassDecl(n, sc)

	case ast.KField:
		return r.resolveDeclLike(n, n.Nodes[0], n.Nodes[1:], sc)

	case ast.KVarDecl:
		if n.Text == "" {
			return false // the shared-type list node itself carries nothing to resolve
		}
		if n.Parent == nil || len(n.Parent.Nodes) == 0 {
			return false
		}
		return r.resolveDeclLike(n, n.Parent.Nodes[0], n.Nodes, sc)

	case ast.KParam:
		if n.Flags.Has(ast.FResolved) || len(n.Nodes) == 0 {
			return false
		}
		qt, ok := n.Nodes[0].ResolvedType.(types.QDataType)
		if !ok || !qt.IsValid() {
			return false
		}
		n.ResolvedType = qt
		n.Flags |= ast.FResolved
		return true

	case ast.KFuncDecl:
		return r.resolveFuncDecl(n, sc)

	case ast.KLiteralExpr:
		return r.resolveLiteral(n)

	case ast.KIdentExpr:
		return r.resolveIdent(n, sc)

	case ast.KDotExpr:
		return r.resolveDot(n)

	case ast.KScopeExpr:
		return r.resolveScopeExpr(n, sc)

	case ast.KIndexExpr:
		return r.resolveIndex(n)

	case ast.KCallExpr:
		return r.resolveCall(n)

	case ast.KCastExpr:
		if n.Flags.Has(ast.FResolved) || len(n.Nodes) == 0 {
			return false
		}
		qt, ok := n.Nodes[0].ResolvedType.(types.QDataType)
		if !ok || !qt.IsValid() {
			return false
		}
		n.ResolvedType = qt
		n.Flags |= ast.FResolved
		return true

	case ast.KSizeofExpr:
		if n.Flags.Has(ast.FResolved) {
			return false
		}
		n.ResolvedType = r.Types.Pool.Elem(types.U64)
		n.Flags |= ast.FResolved
		return true

	case ast.KTypeidExpr:
		if n.Flags.Has(ast.FResolved) {
			return false
		}
		n.ResolvedType = r.Types.Pool.Elem(types.Name)
		n.Flags |= ast.FResolved
		return true

	case ast.KOffsetofExpr:
		return r.resolveOffsetof(n, sc)

	case ast.KBinOpExpr:
		return r.resolveBinOp(n)

	case ast.KUnaryOpExpr:
		return r.resolveUnaryOp(n)

	case ast.KAssignExpr:
		if n.Flags.Has(ast.FResolved) || len(n.Nodes) != 2 {
			return false
		}
		qt, ok := n.Nodes[0].ResolvedType.(types.QDataType)
		if !ok || !qt.IsValid() {
			return false
		}
		n.ResolvedType = qt
		n.Flags |= ast.FResolved
		return true

	case ast.KCondExpr:
		return r.resolveCond(n)

	case ast.KStaticAssert:
		return r.resolveStaticAssert(n)

	default:
		return false
	}
}

// resolveDeclLike composes a declarator or field's full type from its
// shared base-type node and its own suffix/initializer children (spec
// §4.5: a declarator may carry zero or more '[]' array suffixes after the
// name, then an optional initializer; the two are told apart the same
// way the parser's own synthesizeCtorIfNeeded does, by the Kind of the
// last child).
func (r *Resolver) resolveDeclLike(n, baseNode *ast.Node, tail []*ast.Node, sc *scope.Scope) bool {
	if n.Flags.Has(ast.FResolved) {
		return false
	}

	var suffixes []*ast.Node
	var initNode *ast.Node
	if len(tail) > 0 && tail[len(tail)-1].Kind != ast.KTypeNode {
		initNode = tail[len(tail)-1]
		suffixes = tail[:len(tail)-1]
	} else {
		suffixes = tail
	}

	var resultType types.QDataType
	complete := true
	if baseNode.Text == "auto" {
		complete = false
		if initNode != nil {
			if qt, ok := initNode.ResolvedType.(types.QDataType); ok && qt.IsValid() {
				resultType, complete = qt, true
			}
		}
	} else {
		var ok bool
		resultType, ok = r.resolveAnyTypeNode(baseNode, sc)
		complete = ok
	}

	for _, suf := range suffixes {
		if !complete {
			break
		}
		dimExpr, _ := suf.Extra.(*ast.Node)
		switch {
		case dimExpr == nil:
			resultType = r.Types.Pool.DynamicArrayType(resultType)
		case dimExpr.Kind == ast.KLiteralExpr && !dimExpr.IsFloat:
			resultType = r.Types.Pool.ArrayType(resultType, []int{int(dimExpr.NumInt)})
		default:
			complete = false
		}
	}

	if !complete || !resultType.IsValid() {
		return false
	}
	n.ResolvedType = resultType
	n.Flags |= ast.FResolved
	return true
}

// resolveAnyTypeNode resolves a type-position node regardless of whether
// it is an ordinary KTypeNode or a KTemplateInstanceExpr (the parser uses
// the latter Kind directly in type position too, see lang/parser/types.go
// parseType's IDENT branch).
func (r *Resolver) resolveAnyTypeNode(n *ast.Node, sc *scope.Scope) (types.QDataType, bool) {
	if n.Kind == ast.KTemplateInstanceExpr {
		return r.resolveTemplateInstance(n, sc)
	}
	return r.resolveTypeNode(n, sc)
}

// resolveTemplateInstance hands n off to lang/template, passing r.pass as
// the callback it uses to kick off resolution of the freshly instantiated
// clone (spec §4.7). A callback is used instead of an import so that
// lang/template never needs to import lang/resolver.
func (r *Resolver) resolveTemplateInstance(n *ast.Node, sc *scope.Scope) (types.QDataType, bool) {
	if qt, ok := n.ResolvedType.(types.QDataType); ok && qt.IsValid() {
		return qt, true
	}
	qt, ok := template.Instantiate(r.Types.Pool, r.Sink, n, sc, r.pass)
	if ok {
		n.ResolvedType = qt
		n.Flags |= ast.FResolved
	}
	return qt, ok
}

// resolveTypeNode resolves the DataType named by an ordinary KTypeNode
// (spec §4.5 Type production): elementary keywords, array/array_view,
// function/delegate signatures, the '[]'/'*' suffix forms, and named
// user types (chasing typedef/using aliases and materializing
// class/enum DataTypes on first reference).
func (r *Resolver) resolveTypeNode(n *ast.Node, sc *scope.Scope) (types.QDataType, bool) {
	if qt, ok := n.ResolvedType.(types.QDataType); ok && qt.IsValid() {
		return qt, true
	}

	var qt types.QDataType
	complete := true

	switch n.Text {
	case "void":
		qt = r.Types.Pool.Elem(types.Void)
	case "bool":
		qt = r.Types.Pool.Elem(types.Bool)
	case "byte":
		qt = r.Types.Pool.Elem(types.U8)
	case "sbyte":
		qt = r.Types.Pool.Elem(types.I8)
	case "short":
		qt = r.Types.Pool.Elem(types.I16)
	case "ushort":
		qt = r.Types.Pool.Elem(types.U16)
	case "int":
		qt = r.Types.Pool.Elem(types.I32)
	case "uint":
		qt = r.Types.Pool.Elem(types.U32)
	case "long":
		qt = r.Types.Pool.Elem(types.I64)
	case "ulong":
		qt = r.Types.Pool.Elem(types.U64)
	case "char":
		qt = r.Types.Pool.Elem(types.Char)
	case "float":
		qt = r.Types.Pool.Elem(types.F32)
	case "double":
		qt = r.Types.Pool.Elem(types.F64)
	case "string":
		qt = r.Types.Pool.Elem(types.String)
	case "name":
		qt = r.Types.Pool.Elem(types.Name)
	case "object":
		dt := r.Types.Pool.Intern("object", func() *types.DataType {
			return &types.DataType{Kind: types.Class, Name: "object", Size: 8, Align: 8}
		})
		qt = types.QDataType{Ref: dt}
	case "auto":
		return types.QDataType{}, false // resolved contextually by the declarator that owns this node

	case "array", "array_view":
		if len(n.Nodes) == 0 {
			return types.QDataType{}, false
		}
		elem, ok := r.resolveAnyTypeNode(n.Nodes[0], sc)
		if !ok || !elem.IsValid() {
			return types.QDataType{}, false
		}
		if n.Text == "array" {
			qt = r.Types.Pool.DynamicArrayType(elem)
		} else {
			qt = r.Types.Pool.ArrayRefType(elem)
		}

	case "function", "delegate":
		if len(n.Nodes) == 0 {
			return types.QDataType{}, false
		}
		ret, ok := r.resolveAnyTypeNode(n.Nodes[0], sc)
		if !ok {
			return types.QDataType{}, false
		}
		params := make([]types.QDataType, 0, len(n.Nodes)-1)
		for _, pn := range n.Nodes[1:] {
			pt, pok := r.resolveAnyTypeNode(pn, sc)
			if !pok {
				return types.QDataType{}, false
			}
			params = append(params, pt)
		}
		variadic, _ := n.Extra.(bool)
		if n.Text == "delegate" {
			qt = r.Types.Pool.DelegateType(ret, params, variadic)
		} else {
			qt = r.Types.Pool.FuncPtrType(ret, params, variadic)
		}

	case "[]":
		if len(n.Nodes) == 0 {
			return types.QDataType{}, false
		}
		elem, ok := r.resolveAnyTypeNode(n.Nodes[0], sc)
		if !ok || !elem.IsValid() {
			return types.QDataType{}, false
		}
		dimExpr, _ := n.Extra.(*ast.Node)
		switch {
		case dimExpr == nil:
			// An unsized '[]' suffix is sugar for a dynamic array (an open
			// design decision, recorded in DESIGN.md): the grammar doesn't
			// distinguish it from a genuinely fixed-but-elided dimension.
			qt = r.Types.Pool.DynamicArrayType(elem)
		case dimExpr.Kind == ast.KLiteralExpr && !dimExpr.IsFloat:
			qt = r.Types.Pool.ArrayType(elem, []int{int(dimExpr.NumInt)})
		default:
			return types.QDataType{}, false
		}

	case "*":
		if len(n.Nodes) == 0 {
			return types.QDataType{}, false
		}
		elem, ok := r.resolveAnyTypeNode(n.Nodes[0], sc)
		if !ok || !elem.IsValid() {
			return types.QDataType{}, false
		}
		kind := types.StrongPtr
		switch {
		case n.Qualifiers.Has(ast.QRaw):
			kind = types.RawPtr
		case n.Qualifiers.Has(ast.QWeak):
			kind = types.WeakPtr
		}
		qt = r.Types.Pool.PtrType(kind, elem)

	default:
		var ok bool
		qt, ok = r.chaseNamed(n.Text, sc)
		complete = ok
		if !ok {
			return types.QDataType{}, false
		}
	}

	qt.Qualifiers = uint64(n.Qualifiers)
	if complete {
		n.ResolvedType = qt
		n.Flags |= ast.FResolved
	}
	return qt, complete
}

// chaseNamed looks up name as a user type in sc, following
// typedef/using aliases (including template parameter placeholders
// rebound by lang/template) to the underlying class/enum declaration.
func (r *Resolver) chaseNamed(name string, sc *scope.Scope) (types.QDataType, bool) {
	sym, symScope := sc.FindSymbolFull(name)
	if sym == nil {
		return types.QDataType{}, false
	}
	switch sym.Kind {
	case ast.KClassDecl:
		dt, complete := r.Types.EnsureComposite(sym)
		return types.QDataType{Ref: dt}, complete
	case ast.KEnumDecl:
		dt, complete := r.Types.EnsureEnum(sym)
		return types.QDataType{Ref: dt}, complete
	case ast.KTypedefDecl, ast.KUsingDecl:
		if qt, ok := sym.ResolvedType.(types.QDataType); ok && qt.IsValid() {
			return qt, true
		}
		if len(sym.Nodes) == 0 {
			return types.QDataType{}, false
		}
		qt, complete := r.resolveAnyTypeNode(sym.Nodes[0], symScope)
		if complete {
			sym.ResolvedType = qt
			sym.Flags |= ast.FResolved
		}
		return qt, complete
	default:
		return types.QDataType{}, false
	}
}

// resolveFuncDecl resolves a function/method's signature: its return type
// (absent, and implicitly void, on constructors/destructors/operators -
// see lang/parser/decl.go's parseCtor/parseDtor/parseOperatorDecl, which
// never add one) and its parameters, then flags the enclosing class as
// needing a vtable slot when the method is declared virtual (spec §4.9
// step 7 VtblGen's input).
func (r *Resolver) resolveFuncDecl(n *ast.Node, sc *scope.Scope) bool {
	if n.Qualifiers.Has(ast.QVirtual) {
		if cls := enclosingClassDecl(n); cls != nil {
			dt, _ := r.Types.EnsureComposite(cls)
			dt.SetHasVirtuals()
		}
	}
	if n.Flags.Has(ast.FResolved) {
		return false
	}

	idx := 0
	ret := r.Types.Pool.Elem(types.Void)
	if idx < len(n.Nodes) && n.Nodes[idx].Kind != ast.KParam && n.Nodes[idx].Kind != ast.KBlock {
		qt, ok := r.resolveAnyTypeNode(n.Nodes[idx], sc)
		if !ok {
			return false
		}
		ret = qt
		idx++
	}

	var params []types.QDataType
	for idx < len(n.Nodes) && n.Nodes[idx].Kind == ast.KParam {
		qt, ok := n.Nodes[idx].ResolvedType.(types.QDataType)
		if !ok || !qt.IsValid() {
			return false
		}
		params = append(params, qt)
		idx++
	}

	n.ResolvedType = r.Types.Pool.FuncPtrType(ret, params, false)
	n.Flags |= ast.FResolved
	return true
}

// resolveClassDecl resolves the optional base-class clause first, wiring
// the scope graph's Base chain (so FindSymbol's chainBase walk sees
// inherited members) and the DataType's own Base pointer (so
// EnsureComposite lays out inherited members before its own and carries
// forward an inherited virtual method table, spec §4.5 "Class/struct"
// inheritance), then materializes the composite itself.
func (r *Resolver) resolveClassDecl(n *ast.Node, sc *scope.Scope) bool {
	var baseNode *ast.Node
	for _, c := range n.Nodes {
		if c.Kind == ast.KTypeNode {
			baseNode = c
			break
		}
	}

	baseResolved := baseNode == nil
	if baseNode != nil {
		if bqt, ok := r.resolveAnyTypeNode(baseNode, sc); ok && bqt.Ref != nil {
			baseResolved = true
			if s, ok := n.ScopeRef.(*scope.Scope); ok && s.Base == nil {
				if bs, ok := bqt.Ref.StructScopeRef.(*scope.Scope); ok {
					s.Base = bs
				}
			}
			dt, _ := r.Types.EnsureComposite(n)
			if dt.Base == nil {
				dt.Base = bqt.Ref
			}
		}
	} else if s, ok := n.Extra.(string); ok && s == "class" {
		// spec §4.6: "class without an explicit base inherits object";
		// struct has no implicit base.
		obj := r.Types.Pool.Intern("object", func() *types.DataType {
			return &types.DataType{Kind: types.Class, Name: "object", Size: 8, Align: 8}
		})
		dt, _ := r.Types.EnsureComposite(n)
		if dt.Base == nil {
			dt.Base = obj
		}
	}

	dt, complete := r.Types.EnsureComposite(n)
	n.ResolvedType = types.QDataType{Ref: dt}
	if complete && baseResolved && !n.Flags.Has(ast.FResolved) {
		n.Flags |= ast.FResolved
		if s, ok := n.ScopeRef.(*scope.Scope); ok {
			r.checkOverrides(n, s)
		}
		return true
	}
	return false
}

// checkOverrides implements spec §4.6/S5: a method whose name matches a
// virtual method on the base chain but omits 'override' gets
// MISSING_OVERRIDE; one that tries to override a method marked 'final'
// is a type error.
func (r *Resolver) checkOverrides(n *ast.Node, sc *scope.Scope) {
	if sc == nil || sc.Base == nil {
		return
	}
	for _, m := range n.Nodes {
		if m.Kind != ast.KFuncDecl {
			continue
		}
		if m.Qualifiers.Has(ast.QCtor) || m.Qualifiers.Has(ast.QDtor) || m.Qualifiers.Has(ast.QOperator) {
			continue
		}
		baseMember, _ := sc.Base.Member(m.Text)
		if baseMember == nil || baseMember.Kind != ast.KFuncDecl || !baseMember.Qualifiers.Has(ast.QVirtual) {
			continue
		}
		if baseMember.Qualifiers.Has(ast.QFinal) {
			r.Sink.Addf(diag.Type, m.Loc, "method %q overrides final base method", m.Text)
			continue
		}
		if !m.Qualifiers.Has(ast.QOverride) {
			r.Sink.Warn(diag.Name, m.Loc, diag.MISSING_OVERRIDE,
				fmt.Sprintf("method %q overrides a virtual base method but is not marked 'override'", m.Text))
		}
	}
}

func enclosingClassDecl(n *ast.Node) *ast.Node {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur.Kind == ast.KClassDecl {
			return cur
		}
	}
	return nil
}

func (r *Resolver) resolveLiteral(n *ast.Node) bool {
	if n.Flags.Has(ast.FResolved) {
		return false
	}
	var qt types.QDataType
	switch n.Extra {
	case "string":
		qt = r.Types.Pool.Elem(types.String)
	case "char":
		qt = r.Types.Pool.Elem(types.Char)
	case "bool":
		qt = r.Types.Pool.Elem(types.Bool)
	case "name":
		qt = r.Types.Pool.Elem(types.Name)
	case "null":
		qt = r.Types.Pool.PtrType(types.RawPtr, r.Types.Pool.Elem(types.Void))
	default:
		if n.IsFloat {
			qt = r.Types.Pool.Elem(types.F64)
		} else {
			qt = r.Types.Pool.Elem(types.I32)
		}
	}
	n.ResolvedType = qt
	n.Flags |= ast.FResolved
	return true
}

// resolveIdent resolves a bare identifier, special-casing 'this' (spec
// §4.6: bound to a strong pointer to the innermost enclosing class/struct)
// against an ordinary scope lookup for everything else.
func (r *Resolver) resolveIdent(n *ast.Node, sc *scope.Scope) bool {
	if n.Flags.Has(ast.FResolved) {
		return false
	}
	if n.Text == "this" {
		cls := sc.EnclosingOfType(scope.Class)
		if cls == nil {
			cls = sc.EnclosingOfType(scope.Struct)
		}
		if cls == nil || cls.Node == nil {
			return false
		}
		dt, _ := r.Types.EnsureComposite(cls.Node)
		n.ResolvedType = r.Types.Pool.PtrType(types.StrongPtr, types.QDataType{Ref: dt})
		n.Target = cls.Node
		n.Flags |= ast.FResolved
		return true
	}

	sym, symScope := sc.FindSymbolFull(n.Text)
	if sym == nil {
		return false
	}
	n.Target = sym
	n.SymScopeRef = symScope
	qt, ok := sym.ResolvedType.(types.QDataType)
	if !ok || !qt.IsValid() {
		return false
	}
	n.ResolvedType = qt
	n.Flags |= ast.FResolved
	return true
}

// resolveDot resolves a '.'/'->' member access against the composite
// DataType of its left-hand side, following pointer/array-view
// indirection to reach the underlying struct/class, or against an enum's
// member table for 'EnumName.Item' access.
func (r *Resolver) resolveDot(n *ast.Node) bool {
	if n.Flags.Has(ast.FResolved) || len(n.Nodes) == 0 {
		return false
	}
	lt, ok := n.Nodes[0].ResolvedType.(types.QDataType)
	if !ok || !lt.IsValid() {
		return false
	}
	dt := derefToComposite(lt.Ref)
	if dt == nil {
		return false
	}
	if dt.Kind == types.Enum {
		for _, m := range dt.Members {
			if m.Name == n.Text {
				n.NumInt = int64(m.Offset)
				n.ResolvedType = types.QDataType{Ref: dt}
				n.Flags |= ast.FResolved
				return true
			}
		}
		return false
	}
	// Struct/Class look up their own declared members here; String and the
	// array kinds have no declared scope but carry a native-property scope
	// in the same field (spec §4.6 rule 4 "... or the native-property scope
	// for strings / arrays / dynamic arrays").
	structScope, ok := dt.StructScopeRef.(*scope.Scope)
	if !ok || structScope == nil {
		return false
	}
	member, _ := structScope.FindSymbol(n.Text, true, false)
	if member == nil {
		r.Sink.Addf(diag.Name, n.Loc, "type %q has no member %q", dt.Name, n.Text)
		n.Flags |= ast.FResolved
		return true
	}
	n.Target = member
	qt, ok := member.ResolvedType.(types.QDataType)
	if !ok || !qt.IsValid() {
		return false
	}
	n.ResolvedType = qt
	n.Flags |= ast.FResolved
	return true
}

// derefToComposite follows pointer/array-view indirection down to the
// first non-indirection DataType (a struct/class/enum, typically).
func derefToComposite(dt *types.DataType) *types.DataType {
	for dt != nil {
		switch dt.Kind {
		case types.RawPtr, types.StrongPtr, types.WeakPtr, types.ArrayRef:
			dt = dt.ElemType.Ref
		default:
			return dt
		}
	}
	return nil
}

// resolveScopeExpr resolves 'A::b', looking b up directly in the named
// scope A refers to (a namespace or class), rather than through the
// lexical parent chain an ordinary identifier would use.
func (r *Resolver) resolveScopeExpr(n *ast.Node, sc *scope.Scope) bool {
	if n.Flags.Has(ast.FResolved) || len(n.Nodes) == 0 {
		return false
	}
	lhs := n.Nodes[0]
	var base *scope.Scope
	switch {
	case lhs.Kind == ast.KIdentExpr:
		for cur := sc; cur != nil && base == nil; cur = cur.Parent {
			if ns, ok := cur.NamedScope(lhs.Text); ok {
				base = ns
			}
		}
	case lhs.Kind == ast.KScopeExpr && lhs.Target != nil:
		if ns, ok := lhs.Target.ScopeRef.(*scope.Scope); ok {
			base = ns
		}
	}
	if base == nil {
		return false
	}
	member, _ := base.FindSymbol(n.Text, true, false)
	if member == nil {
		return false
	}
	n.Target = member
	if qt, ok := member.ResolvedType.(types.QDataType); ok && qt.IsValid() {
		n.ResolvedType = qt
	}
	n.Flags |= ast.FResolved
	return true
}

func (r *Resolver) resolveIndex(n *ast.Node) bool {
	if n.Flags.Has(ast.FResolved) || len(n.Nodes) != 2 {
		return false
	}
	bt, ok := n.Nodes[0].ResolvedType.(types.QDataType)
	if !ok || !bt.IsValid() {
		return false
	}
	switch bt.Ref.Kind {
	case types.StaticArray, types.DynamicArray, types.ArrayRef, types.RawPtr, types.StrongPtr, types.WeakPtr:
		n.ResolvedType = bt.Ref.ElemType
	case types.String:
		// spec §4.6 rule 5: indexing a string emits the builtin char access.
		n.ResolvedType = r.Types.Pool.Elem(types.Char)
	default:
		return false
	}
	n.Flags |= ast.FResolved
	return true
}

func (r *Resolver) resolveCall(n *ast.Node) bool {
	if n.Flags.Has(ast.FResolved) || len(n.Nodes) == 0 {
		return false
	}
	if s, ok := n.Extra.(string); ok && s == "new" {
		qt, ok := n.Nodes[0].ResolvedType.(types.QDataType)
		if !ok || !qt.IsValid() {
			return false
		}
		n.ResolvedType = r.Types.Pool.PtrType(types.StrongPtr, qt)
		n.Flags |= ast.FResolved
		return true
	}
	ct, ok := n.Nodes[0].ResolvedType.(types.QDataType)
	if !ok || !ct.IsValid() || ct.Ref == nil {
		return false
	}
	if ct.Ref.Kind != types.FuncPtr && ct.Ref.Kind != types.Delegate {
		return false
	}
	n.ResolvedType = ct.Ref.ElemType
	n.Flags |= ast.FResolved
	return true
}

func (r *Resolver) resolveOffsetof(n *ast.Node, sc *scope.Scope) bool {
	if n.Flags.Has(ast.FResolved) || len(n.Nodes) == 0 {
		return false
	}
	qt, ok := r.resolveAnyTypeNode(n.Nodes[0], sc)
	if ok && qt.Ref != nil {
		for _, m := range qt.Ref.Members {
			if m.Name == n.Text {
				n.NumInt = int64(m.Offset)
				break
			}
		}
	}
	n.ResolvedType = r.Types.Pool.Elem(types.U64)
	n.Flags |= ast.FResolved
	return true
}

func (r *Resolver) resolveBinOp(n *ast.Node) bool {
	if n.Flags.Has(ast.FResolved) || len(n.Nodes) != 2 {
		return false
	}
	lt, lok := n.Nodes[0].ResolvedType.(types.QDataType)
	rt, rok := n.Nodes[1].ResolvedType.(types.QDataType)
	if !lok || !rok || !lt.IsValid() || !rt.IsValid() {
		return false
	}
	var kind types.Kind
	switch n.Text {
	case "==", "!=", "<", "<=", ">", ">=", "&&", "||":
		kind = types.Bool
	default:
		kind = types.ComposeTypeEnum(lt.Ref.Kind, rt.Ref.Kind)
	}
	n.ResolvedType = r.Types.Pool.Elem(kind)
	n.Flags |= ast.FResolved
	return true
}

func (r *Resolver) resolveUnaryOp(n *ast.Node) bool {
	if n.Flags.Has(ast.FResolved) || len(n.Nodes) != 1 {
		return false
	}
	ot, ok := n.Nodes[0].ResolvedType.(types.QDataType)
	if !ok || !ot.IsValid() {
		return false
	}
	switch n.Text {
	case "*":
		switch ot.Ref.Kind {
		case types.RawPtr, types.StrongPtr, types.WeakPtr:
			n.ResolvedType = ot.Ref.ElemType
		default:
			return false
		}
	case "&":
		n.ResolvedType = r.Types.Pool.PtrType(types.RawPtr, ot)
	case "!":
		n.ResolvedType = r.Types.Pool.Elem(types.Bool)
	default:
		n.ResolvedType = ot
	}
	n.Flags |= ast.FResolved
	return true
}

func (r *Resolver) resolveCond(n *ast.Node) bool {
	if n.Flags.Has(ast.FResolved) || len(n.Nodes) != 3 {
		return false
	}
	if qt, ok := n.Nodes[1].ResolvedType.(types.QDataType); ok && qt.IsValid() {
		n.ResolvedType = qt
		n.Flags |= ast.FResolved
		return true
	}
	if qt, ok := n.Nodes[2].ResolvedType.(types.QDataType); ok && qt.IsValid() {
		n.ResolvedType = qt
		n.Flags |= ast.FResolved
		return true
	}
	return false
}

func (r *Resolver) resolveStaticAssert(n *ast.Node) bool {
	if n.Flags.Has(ast.FResolved) || len(n.Nodes) == 0 {
		return false
	}
	cond := n.Nodes[0]
	if cond.Kind != ast.KLiteralExpr {
		return false // wait for constant folding to reduce the condition
	}
	if cond.NumInt == 0 {
		msg := n.Text
		if msg == "" {
			msg = "static assertion failed"
		}
		r.Sink.Addf(diag.Type, n.Loc, "%s", msg)
	}
	n.Flags |= ast.FResolved
	return true
}

// needsReport is the set of node kinds whose resolved type is load-bearing
// enough that leaving it unresolved after the fix-point loop stabilizes
// indicates a genuine name/type error rather than an inert statement or
// declaration shape with nothing to resolve.
var needsReport = map[ast.Kind]string{
	ast.KIdentExpr:  "identifier",
	ast.KDotExpr:    "member access",
	ast.KScopeExpr:  "qualified name",
	ast.KCallExpr:   "call",
	ast.KIndexExpr:  "index expression",
	ast.KVarDecl:    "variable declaration",
	ast.KField:      "field declaration",
	ast.KTypeNode:   "type",
}

func (r *Resolver) reportUnresolved(n *ast.Node) {
	if n == nil || n.Flags.Has(ast.FSkipCodegen) {
		return
	}
	for _, c := range n.Nodes {
		r.reportUnresolved(c)
	}
	if n.Kind == ast.KVarDecl && n.Text == "" {
		return // the shared-type list node never resolves anything itself
	}
	if label, ok := needsReport[n.Kind]; ok && !n.Flags.Has(ast.FResolved) {
		r.Sink.Addf(diag.Name, n.Loc, "could not resolve %s %q", label, n.Text)
	}
}
