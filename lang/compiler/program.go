package compiler

import (
	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/token"
	"github.com/mna/lethec/lang/types"
)

// Funcode is the compiled code of one function (spec §3 CompiledProgram
// "instruction stream", scoped per function the way the teacher's own
// Funcode does).
type Funcode struct {
	Name      string
	Pos       token.Location
	Code      []Instr
	NumParams int
	MaxStack  int
	Locals    []LocalBinding // params first, then block locals
	RetType   types.QDataType

	// VtableIndex, when >= 0, is this function's slot in its owning
	// class's vtable (assigned during VtblGen and patched in FixupVtbl).
	VtableIndex int

	Node *ast.Node // owning KFuncDecl, non-owning
}

// LocalBinding names one stack-frame slot (spec §3 NamedScope.LocalVars).
type LocalBinding struct {
	Name   string
	Offset int
	Type   types.QDataType
}

// Global describes one file-scope variable (spec §4.9 CodeGenGlobalCtor).
type Global struct {
	Name string
	Type types.QDataType
	Node *ast.Node
}

// Vtable is one class's virtual dispatch table (spec §4.9 VtblGen/FixupVtbl).
type Vtable struct {
	Class *types.DataType
	Slots []*Funcode // index == virtual method's slot
}

// CompiledProgram aggregates everything the codegen driver produces (spec
// §3): the type pool, the constant pool used by CICONST, the compiled
// functions (the "instruction stream"), the name table, and vtables. It is
// owned by the caller once CodeGen succeeds (spec §3 Lifecycle).
type CompiledProgram struct {
	Types     *types.Pool
	Sink      *diag.Sink
	Constants []any // indexed by CICONST's Arg
	Names     []string
	Functions []*Funcode
	Globals   []Global
	Vtables   map[*types.DataType]*Vtable

	// GlobalCtor is the synthesized "$globalctor" function (spec §4.9
	// CodeGenGlobalCtor): a single function that runs every file-level
	// initializer inline, in the order the driver visited them, rather than
	// a chain of separate __init$N functions. GlobalDtor is never set by the
	// driver and stays nil.
	GlobalCtor *Funcode
	GlobalDtor *Funcode

	constIndex map[any]int32
	nameIndex  map[string]int32
}

// NewCompiledProgram creates an empty program sharing pool and sink with
// the rest of the compilation (spec §4.9 phase 1 "BeginCodegen").
func NewCompiledProgram(pool *types.Pool, sink *diag.Sink) *CompiledProgram {
	return &CompiledProgram{
		Types:      pool,
		Sink:       sink,
		Vtables:    make(map[*types.DataType]*Vtable),
		constIndex: make(map[any]int32),
		nameIndex:  make(map[string]int32),
	}
}

// Constant interns a constant value into the pool used by CICONST
// instructions, returning its index.
func (p *CompiledProgram) Constant(v any) int32 {
	if idx, ok := p.constIndex[v]; ok {
		return idx
	}
	idx := int32(len(p.Constants))
	p.Constants = append(p.Constants, v)
	p.constIndex[v] = idx
	return idx
}

// Name interns a name (field, function, variable identifier) into the
// program's name table (spec §3 CompiledProgram "name table").
func (p *CompiledProgram) Name(s string) int32 {
	if idx, ok := p.nameIndex[s]; ok {
		return idx
	}
	idx := int32(len(p.Names))
	p.Names = append(p.Names, s)
	p.nameIndex[s] = idx
	return idx
}
