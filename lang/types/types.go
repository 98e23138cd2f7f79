// Package types implements the Lethe DataType/QDataType model (spec §3):
// a program-owned, uniqued pool of concrete types plus the constant-folding
// and type-generation passes (spec §4.8) that populate it from a resolved
// AST.
//
// There is no analogue of this package in the teacher (a Starlark-family
// language has a handful of built-in runtime kinds and no user-defined
// nominal type graph); it is built fresh from spec §3/§4.8, reusing the
// teacher's "uniqued pool, never moves" idea for its own runtime Value
// interning (lang/machine/value.go in the retrieved example, no longer
// part of this module - see DESIGN.md) generalized to struct/class/array/
// function-pointer/delegate signatures.
package types

import (
	"fmt"
	"strings"
)

// Kind enumerates the concrete shapes a DataType can take (spec §3).
type Kind uint8

const (
	Void Kind = iota
	Bool
	I8
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	Char
	Name
	String
	F32
	F64
	Enum
	Struct
	Class
	StaticArray
	DynamicArray
	ArrayRef
	FuncPtr
	Delegate
	RawPtr
	StrongPtr
	WeakPtr
)

func (k Kind) String() string {
	switch k {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case I8:
		return "i8"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case U8:
		return "u8"
	case U16:
		return "u16"
	case U32:
		return "u32"
	case U64:
		return "u64"
	case Char:
		return "char"
	case Name:
		return "name"
	case String:
		return "string"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Enum:
		return "enum"
	case Struct:
		return "struct"
	case Class:
		return "class"
	case StaticArray:
		return "static_array"
	case DynamicArray:
		return "dynamic_array"
	case ArrayRef:
		return "array_ref"
	case FuncPtr:
		return "func_ptr"
	case Delegate:
		return "delegate"
	case RawPtr:
		return "raw_ptr"
	case StrongPtr:
		return "strong_ptr"
	case WeakPtr:
		return "weak_ptr"
	default:
		return "unknown"
	}
}

// Member describes one field of a struct/class/enum DataType.
type Member struct {
	Name    string
	Type    QDataType
	Offset  int
	BitSize int // 0 if not a bit-field
}

// DataType describes one concrete type (spec §3). Instances are uniqued in
// a program-owned Pool and never move (callers keep *DataType pointers
// across the whole compilation).
type DataType struct {
	Kind Kind

	Size  int
	Align int
	Name  string

	ElemType QDataType // array element / pointer target / delegate-or-funcptr return type

	ArrayDims []int // static array dimensions, outermost first

	Base    *DataType // struct/class base type, or nil
	Members []Member  // own members only; Base's are not copied, own offsets start at Base.Size

	Params   []QDataType // func_ptr / delegate parameter types
	Variadic bool

	FunDtor int // code offset of the destructor, or -1

	StructScopeRef any // *scope.Scope, opaque to avoid an import cycle
	TypeIndex      int // index into the owning Pool, assigned at registration

	structHasVirtuals bool
}

// QDataType is a (DataType, qualifiers) pair: a type plus its surface
// qualifiers at a use site (spec GLOSSARY).
type QDataType struct {
	Ref        *DataType
	Qualifiers uint64 // subset of ast.Qualifiers bits, kept untyped to avoid an ast import
}

func (q QDataType) IsValid() bool { return q.Ref != nil }

// HasVirtuals reports whether d (or, transitively, one of its base/member
// composites) declares at least one virtual method, per the codegen
// driver's VtblGen phase (spec §4.9 step 7).
func (d *DataType) HasVirtuals() bool { return d.structHasVirtuals }

// SetHasVirtuals marks d as needing a vtable slot table; used by the
// resolver/codegen when it determines a class declares or inherits a
// virtual method.
func (d *DataType) SetHasVirtuals() { d.structHasVirtuals = true }

func (q QDataType) String() string {
	if q.Ref == nil {
		return "<invalid type>"
	}
	return q.Ref.Name
}

// Pool owns every DataType used by one compilation: the elementary
// singletons plus every struct/class/enum/array/func-ptr/delegate type
// materialized by TypeGen. Types are never freed nor moved once
// registered, matching spec §3's "uniqued ... never move".
type Pool struct {
	types []*DataType

	// byKey uniques composite/derived types (arrays, func pointers,
	// delegates, template instances) by a canonical string key so that
	// two uses of the same shape share one *DataType (spec testable
	// property 7: "two template instances with the same canonical
	// mangled name share the same DataType*").
	byKey map[string]*DataType

	elem [21]*DataType // indexed by elementary Kind (Void..WeakPtr not all elementary, only the scalar ones are seeded)
}

// NewPool seeds the elementary singleton types, per codegen driver phase
// BeginCodegen (spec §4.9 step 1).
func NewPool() *Pool {
	p := &Pool{byKey: make(map[string]*DataType)}
	seed := []struct {
		k    Kind
		size int
		name string
	}{
		{Void, 0, "void"}, {Bool, 1, "bool"},
		{I8, 1, "int8"}, {I16, 2, "int16"}, {I32, 4, "int"}, {I64, 8, "long"},
		{U8, 1, "uint8"}, {U16, 2, "uint16"}, {U32, 4, "uint"}, {U64, 8, "ulong"},
		{Char, 1, "char"}, {Name, 8, "name"}, {String, 16, "string"},
		{F32, 4, "float"}, {F64, 8, "double"},
	}
	for _, s := range seed {
		dt := &DataType{Kind: s.k, Size: s.size, Align: s.size, Name: s.name}
		if dt.Align == 0 {
			dt.Align = 1
		}
		p.register(dt)
		p.elem[s.k] = dt
	}
	// Native string-property scope (spec §4.9 step 1 "register string
	// scope"): s.length resolves here (spec §4.6 rule 4) since strings have
	// no user-declared struct scope.
	p.elem[String].StructScopeRef = nativePropertyScope(p.Elem(I32))
	return p
}

func (p *Pool) register(dt *DataType) *DataType {
	dt.TypeIndex = len(p.types)
	p.types = append(p.types, dt)
	return dt
}

// Elem returns the elementary singleton QDataType for an elementary Kind.
func (p *Pool) Elem(k Kind) QDataType {
	return QDataType{Ref: p.elem[k]}
}

// All returns every registered DataType, in registration order (index ==
// TypeIndex), for codegen's type table serialization.
func (p *Pool) All() []*DataType { return p.types }

// Intern uniques a non-elementary DataType by key: if a type matching key
// is already registered, it is returned; otherwise dt is registered and
// returned. Callers build key deterministically from the type's shape
// (array dims, element type name, func-ptr signature, mangled template
// name, etc).
func (p *Pool) Intern(key string, build func() *DataType) *DataType {
	if existing, ok := p.byKey[key]; ok {
		return existing
	}
	dt := build()
	p.register(dt)
	p.byKey[key] = dt
	return dt
}

// StaticArrayKey/DynamicArrayKey/ArrayRefKey/FuncPtrKey/DelegateKey build the
// canonical interning keys for derived types.
func StaticArrayKey(elem string, dims []int) string {
	var sb strings.Builder
	sb.WriteString(elem)
	for _, d := range dims {
		fmt.Fprintf(&sb, "[%d]", d)
	}
	return sb.String()
}

func DynamicArrayKey(elem string) string { return "array<" + elem + ">" }
func ArrayRefKey(elem string) string     { return "array_view<" + elem + ">" }

func FuncPtrKey(ret string, params []string, variadic bool) string {
	var sb strings.Builder
	sb.WriteString("function(")
	sb.WriteString(strings.Join(params, ","))
	if variadic {
		sb.WriteString(",...")
	}
	sb.WriteString(")->")
	sb.WriteString(ret)
	return sb.String()
}

func DelegateKey(ret string, params []string, variadic bool) string {
	return "delegate" + FuncPtrKey(ret, params, variadic)[len("function"):]
}
