package types

import (
	"fmt"

	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/scope"
	"github.com/mna/lethec/lang/token"
)

// Gen materializes DataType entries for the enum and struct/class
// declarations reachable from root (spec §4.8 TypeGen), in tree order:
// enums get size 4, align 4 and one member per item; structs/classes get
// their members laid out in declaration order, accumulating offset with
// per-member alignment. Derived shapes (arrays, function pointers,
// delegates) are not made here; Pool builds them on demand. Each
// materialized type caches a back-reference on its owning AST node via
// ResolvedType.
type Gen struct {
	Pool *Pool
	Sink *diag.Sink
}

func NewGen(pool *Pool, sink *diag.Sink) *Gen { return &Gen{Pool: pool, Sink: sink} }

// Run performs one full TypeGenDef+TypeGen pass over root, per the codegen
// driver's phase ordering (spec §4.9 steps 3). It is safe to run again: a
// node already carrying a ResolvedType keeps its *DataType pointer, and
// that type's members and layout are recomputed.
func (g *Gen) Run(root *ast.Node) {
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil || n.Flags.Has(ast.FSkipCodegen) {
			return
		}
		switch n.Kind {
		case ast.KEnumDecl:
			g.genEnum(n)
		case ast.KClassDecl:
			g.genComposite(n)
		}
		for _, c := range n.Nodes {
			walk(c)
		}
	}
	walk(root)
}

func (g *Gen) genEnum(n *ast.Node) *DataType {
	dt, _ := g.EnsureEnum(n)
	return dt
}

// EnsureEnum registers (on first call) or refreshes (on later calls) the
// DataType for an enum declaration, returning the type plus whether every
// item's value is already known. It is safe to call repeatedly before all
// items have constant-folded values: the *DataType pointer, once
// registered, never changes, so self-referential or forward uses of the
// enum see a stable pointer from the first call on (spec §4.8, §4.4
// "uniqued ... never move").
func (g *Gen) EnsureEnum(n *ast.Node) (*DataType, bool) {
	var dt *DataType
	if qt, ok := n.ResolvedType.(QDataType); ok && qt.Ref != nil {
		dt = qt.Ref
	} else {
		dt = &DataType{Kind: Enum, Size: 4, Align: 4, Name: n.Text}
		g.Pool.register(dt)
		n.ResolvedType = QDataType{Ref: dt}
	}
	dt.Name = n.Text
	dt.Members = dt.Members[:0]
	next := int64(0)
	complete := true
	for _, item := range n.Nodes {
		if item.Kind != ast.KEnumItem {
			continue
		}
		val := next
		if len(item.Nodes) > 0 {
			if isConstLiteral(item.Nodes[0]) {
				val = item.Nodes[0].NumInt
			} else {
				complete = false
			}
		}
		dt.Members = append(dt.Members, Member{Name: item.Text, Offset: int(val)})
		next = val + 1
	}
	return dt, complete
}

// genComposite lays out a struct/class's members in declaration order,
// accumulating offset with per-member alignment (spec §4.8).
func (g *Gen) genComposite(n *ast.Node) *DataType {
	dt, _ := g.EnsureComposite(n)
	return dt
}

// EnsureComposite registers (on first call) or refreshes (on later calls)
// the DataType for a struct/class declaration, returning the type plus
// whether every data member's type is already resolved. Like EnsureEnum,
// the *DataType pointer is stable from the first call, so a
// self-referential member (a pointer to the enclosing type) can be given
// a pointer-to-this-type QDataType before the type's own layout is known
// (spec §4.4/§9 "recursive/self-referential members see a stable
// pointer"); Members/Size/Align are recomputed from the current AST state
// on every call until every field reports a resolved type. A bit-field
// member (spec §4.5) occupies its declared bit width within the current
// storage unit instead of its natural size; offsets are still reported as
// the containing byte for simplicity of the ABI consumed by the runtime
// collaborator.
func (g *Gen) EnsureComposite(n *ast.Node) (*DataType, bool) {
	var dt *DataType
	if qt, ok := n.ResolvedType.(QDataType); ok && qt.Ref != nil {
		dt = qt.Ref
	} else {
		kind := Struct
		if s, ok := n.Extra.(string); ok && s == "class" {
			kind = Class
		}
		dt = &DataType{Kind: kind, Name: n.Text}
		g.Pool.register(dt) // register first: recursive/self-referential members see a stable pointer
		n.ResolvedType = QDataType{Ref: dt}
	}
	dt.Name = n.Text // kept in sync: template instantiation renames the clone post-hoc

	if sc, ok := n.ScopeRef.(*scope.Scope); ok {
		dt.StructScopeRef = sc
	}

	dt.Members = dt.Members[:0]
	offset := 0
	maxAlign := 1
	complete := true
	if dt.Base != nil {
		offset = dt.Base.Size
		if dt.Base.Align > maxAlign {
			maxAlign = dt.Base.Align
		}
		if dt.Base.structHasVirtuals {
			dt.structHasVirtuals = true
		}
	}
	for _, field := range n.Nodes {
		if field.Kind != ast.KField {
			continue
		}
		ft, _ := field.ResolvedType.(QDataType)
		if !ft.IsValid() {
			complete = false
			continue
		}
		align := ft.Ref.Align
		if align < 1 {
			align = 1
		}
		if field.Qualifiers.Has(ast.QBitfield) {
			if field.BitSize > 64 {
				g.Sink.Addf(diag.Type, field.Loc, "bit-field %q width %d exceeds 64 bits", field.Text, field.BitSize)
			}
			dt.Members = append(dt.Members, Member{Name: field.Text, Type: ft, Offset: offset, BitSize: field.BitSize})
			continue
		}
		offset = alignUp(offset, align)
		dt.Members = append(dt.Members, Member{Name: field.Text, Type: ft, Offset: offset})
		offset += ft.Ref.Size
		if align > maxAlign {
			maxAlign = align
		}
		if ft.Ref.Kind == Class || ft.Ref.Kind == Struct {
			if ft.Ref.structHasVirtuals {
				dt.structHasVirtuals = true
			}
		}
		if field.Qualifiers.Has(ast.QVirtual) {
			dt.structHasVirtuals = true
		}
	}
	dt.Size = alignUp(offset, maxAlign)
	dt.Align = maxAlign

	return dt, complete
}

func alignUp(offset, align int) int {
	if align <= 1 {
		return offset
	}
	if r := offset % align; r != 0 {
		offset += align - r
	}
	return offset
}

// nativePropertyScope builds the synthetic member scope the resolver
// consults for receivers that have no user-declared struct scope (spec
// §4.6 rule 4, "the native-property scope for strings / arrays / dynamic
// arrays"). lengthType is the QDataType a "length" lookup resolves to; the
// member carries no Offset since it is computed by the runtime
// collaborator from the string/array's header rather than laid out by
// TypeGen.
func nativePropertyScope(lengthType QDataType) *scope.Scope {
	sc := scope.New(scope.Struct, "", nil)
	member := ast.NewNode(ast.KField, token.Location{})
	member.Text = "length"
	member.ResolvedType = lengthType
	sc.AddMember("length", member)
	return sc
}

// ArrayType returns the uniqued DataType for a static array of dims over
// elem, materializing it on first use.
func (p *Pool) ArrayType(elem QDataType, dims []int) QDataType {
	key := StaticArrayKey(elem.Ref.Name, dims)
	dt := p.Intern(key, func() *DataType {
		size := elem.Ref.Size
		for _, d := range dims {
			size *= d
		}
		dt := &DataType{Kind: StaticArray, Name: fmt.Sprintf("%s%s", elem.Ref.Name, dimsSuffix(dims)), ElemType: elem, ArrayDims: dims, Size: size, Align: elem.Ref.Align}
		dt.StructScopeRef = nativePropertyScope(p.Elem(I32))
		return dt
	})
	return QDataType{Ref: dt}
}

// DynamicArrayType returns the uniqued DataType for array<elem>.
func (p *Pool) DynamicArrayType(elem QDataType) QDataType {
	key := DynamicArrayKey(elem.Ref.Name)
	dt := p.Intern(key, func() *DataType {
		dt := &DataType{Kind: DynamicArray, Name: "array<" + elem.Ref.Name + ">", ElemType: elem, Size: 16, Align: 8}
		dt.StructScopeRef = nativePropertyScope(p.Elem(I32))
		return dt
	})
	return QDataType{Ref: dt}
}

// ArrayRefType returns the uniqued DataType for array_view<elem>.
func (p *Pool) ArrayRefType(elem QDataType) QDataType {
	key := ArrayRefKey(elem.Ref.Name)
	dt := p.Intern(key, func() *DataType {
		dt := &DataType{Kind: ArrayRef, Name: "array_view<" + elem.Ref.Name + ">", ElemType: elem, Size: 16, Align: 8}
		dt.StructScopeRef = nativePropertyScope(p.Elem(I32))
		return dt
	})
	return QDataType{Ref: dt}
}

// FuncPtrType/DelegateType return the uniqued DataType for a function
// pointer or delegate with the given signature (spec §3 DataType).
func (p *Pool) FuncPtrType(ret QDataType, params []QDataType, variadic bool) QDataType {
	return p.funcShape(FuncPtr, ret, params, variadic)
}

func (p *Pool) DelegateType(ret QDataType, params []QDataType, variadic bool) QDataType {
	return p.funcShape(Delegate, ret, params, variadic)
}

func (p *Pool) funcShape(kind Kind, ret QDataType, params []QDataType, variadic bool) QDataType {
	names := make([]string, len(params))
	for i, pt := range params {
		names[i] = pt.Ref.Name
	}
	var key string
	if kind == Delegate {
		key = DelegateKey(ret.Ref.Name, names, variadic)
	} else {
		key = FuncPtrKey(ret.Ref.Name, names, variadic)
	}
	dt := p.Intern(key, func() *DataType {
		size := 8
		if kind == Delegate {
			size = 16 // (object ptr, method ptr)
		}
		return &DataType{Kind: kind, Name: key, ElemType: ret, Params: params, Variadic: variadic, Size: size, Align: 8}
	})
	return QDataType{Ref: dt}
}

// PtrType returns the uniqued DataType for a raw/strong/weak pointer to
// elem.
func (p *Pool) PtrType(kind Kind, elem QDataType) QDataType {
	prefix := map[Kind]string{RawPtr: "raw*", StrongPtr: "strong*", WeakPtr: "weak*"}[kind]
	key := prefix + elem.Ref.Name
	dt := p.Intern(key, func() *DataType {
		return &DataType{Kind: kind, Name: prefix + elem.Ref.Name, ElemType: elem, Size: 8, Align: 8}
	})
	return QDataType{Ref: dt}
}

func dimsSuffix(dims []int) string {
	s := ""
	for _, d := range dims {
		s += fmt.Sprintf("[%d]", d)
	}
	return s
}
