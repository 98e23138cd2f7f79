// Package compiler implements the codegen driver (spec §4.9): it walks a
// resolved AST (lang/resolver/lang/template output) and emits bytecode and
// stack-type records into a CompiledProgram, following the phase ordering
// BeginCodegen -> FoldConst -> TypeGenDef/TypeGen -> CodeGenComposite ->
// CodeGenGlobalCtor -> CodeGen -> VtblGen -> Optimize -> FixupVtbl.
//
// There is no teacher analogue of a nominal-type, class-based language's
// vtable/ctor/dtor codegen (the retrieved example's lang/compiler targets a
// Starlark-family language with no classes or vtables); the opcode table
// shape (a flat enum plus parallel name/stack-effect arrays, spec-driven
// rather than copied instruction-for-instruction) and the overall
// "pcomp/fcomp split, one Funcode per function" structure are grounded on
// lang/compiler/{opcode,compiler}.go, generalized with the constant- and
// name-table bookkeeping spec §3's CompiledProgram calls for.
package compiler

import "fmt"

// Opcode is one bytecode instruction kind consumed by the (out-of-scope)
// virtual machine collaborator (spec §1).
type Opcode uint8

const (
	NOP Opcode = iota

	// stack bookkeeping
	POP
	DUP
	DUP2

	// constants and names
	CICONST // push Program.Constants[arg]
	NIL     // push null/nullptr

	// locals / globals / free vars
	LOADLOCAL
	STORELOCAL
	LOADLOCALREF // push address of local, for CodeGenRef
	LOADGLOBAL
	STOREGLOBAL
	LOADGLOBALREF

	// composite field / array access
	GETFIELD
	SETFIELD
	GETFIELDREF
	INDEX
	SETINDEX
	INDEXREF

	// arithmetic (order mirrors token text, spec §4.8 ComposeTypeEnum)
	ADD
	SUB
	MUL
	DIV
	MOD
	BAND
	BOR
	BXOR
	SHL
	SHR

	// comparisons
	LT
	LE
	GT
	GE
	EQ
	NE

	// unary
	NEG
	BNOT
	LNOT
	PREINC
	PREDEC
	POSTINC
	POSTDEC

	// control flow (args below are always instruction indices)
	JMP
	JMPF // pop cond, jump if false
	JMPT // pop cond, jump if true

	// calls
	CALL
	CALLVIRT
	RETURN

	// object lifetime (spec §6 ABI)
	NEWOBJ
	ADDREF
	RELEASE
	ADDWEAKREF
	RELEASEWEAK
	LOCKWEAK

	// aggregates
	MAKEARRAY // pop arg elements, push a dynamic-array/init-list value
	CAST

	opcodeMax
)

var opcodeNames = [...]string{
	NOP: "nop", POP: "pop", DUP: "dup", DUP2: "dup2",
	CICONST: "ciconst", NIL: "nil",
	LOADLOCAL: "loadlocal", STORELOCAL: "storelocal", LOADLOCALREF: "loadlocalref",
	LOADGLOBAL: "loadglobal", STOREGLOBAL: "storeglobal", LOADGLOBALREF: "loadglobalref",
	GETFIELD: "getfield", SETFIELD: "setfield", GETFIELDREF: "getfieldref",
	INDEX: "index", SETINDEX: "setindex", INDEXREF: "indexref",
	ADD: "add", SUB: "sub", MUL: "mul", DIV: "div", MOD: "mod",
	BAND: "band", BOR: "bor", BXOR: "bxor", SHL: "shl", SHR: "shr",
	LT: "lt", LE: "le", GT: "gt", GE: "ge", EQ: "eq", NE: "ne",
	NEG: "neg", BNOT: "bnot", LNOT: "lnot",
	PREINC: "preinc", PREDEC: "predec", POSTINC: "postinc", POSTDEC: "postdec",
	JMP: "jmp", JMPF: "jmpf", JMPT: "jmpt",
	CALL: "call", CALLVIRT: "callvirt", RETURN: "return",
	NEWOBJ: "newobj", ADDREF: "addref", RELEASE: "release",
	ADDWEAKREF: "addweakref", RELEASEWEAK: "releaseweak", LOCKWEAK: "lockweak",
	MAKEARRAY: "makearray", CAST: "cast",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("illegal op (%d)", op)
}

// binOpcodes maps a binary operator's spelling (as carried in a
// KBinOpExpr.Text, per lang/parser/expr.go) to its opcode.
var binOpcodes = map[string]Opcode{
	"+": ADD, "-": SUB, "*": MUL, "/": DIV, "%": MOD,
	"&": BAND, "|": BOR, "^": BXOR, "<<": SHL, ">>": SHR,
	"<": LT, "<=": LE, ">": GT, ">=": GE, "==": EQ, "!=": NE,
}

// Instr is one instruction: an opcode plus an immediate operand whose
// meaning depends on Op (a constant-pool/name-table/local index, a jump
// target instruction index, or an argument count).
type Instr struct {
	Op  Opcode
	Arg int32
}

// stackEffect reports the compile-time operand-stack delta of one
// instruction, mirroring the teacher's stackEffect table; CALL/CALLVIRT
// and MAKEARRAY have a variable effect that is reported here as 0, and
// computeMaxStack does not adjust for it.
func stackEffect(in Instr) int {
	switch in.Op {
	case POP, JMPF, JMPT, STORELOCAL, STOREGLOBAL, SETFIELD, RELEASE, RELEASEWEAK:
		return -1
	case SETINDEX:
		return -2
	case DUP, CICONST, NIL, LOADLOCAL, LOADLOCALREF, LOADGLOBAL, LOADGLOBALREF,
		GETFIELDREF, INDEXREF, NEWOBJ, ADDREF, ADDWEAKREF, LOCKWEAK:
		return +1
	case DUP2:
		return +2
	case ADD, SUB, MUL, DIV, MOD, BAND, BOR, BXOR, SHL, SHR,
		LT, LE, GT, GE, EQ, NE, INDEX, GETFIELD:
		return -1
	case NEG, BNOT, LNOT, PREINC, PREDEC, POSTINC, POSTDEC, CAST, JMP, RETURN, NOP:
		return 0
	case CALL, CALLVIRT:
		return 0 // variable (depends on the argument count), reported as 0
	case MAKEARRAY:
		return 0 // variable (depends on the element count), reported as 0
	default:
		return 0
	}
}
