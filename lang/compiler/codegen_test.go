package compiler_test

import (
	"testing"

	"github.com/mna/lethec/lang/compiler"
	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/lexer"
	"github.com/mna/lethec/lang/macro"
	"github.com/mna/lethec/lang/parser"
	"github.com/mna/lethec/lang/resolver"
	"github.com/mna/lethec/lang/scope"
	"github.com/mna/lethec/lang/types"
	"github.com/stretchr/testify/require"
)

// compileSrc runs the full front-end pipeline (lex, macro-expand, parse,
// resolve) then the codegen driver, returning the resulting program.
func compileSrc(t *testing.T, src string) (*compiler.CompiledProgram, *diag.Sink) {
	t.Helper()
	sink := &diag.Sink{}
	global := scope.New(scope.Global, "", nil)
	lx := lexer.New("t.le", []byte(src), sink, lexer.Default)
	stream := macro.New(lx, sink)
	counter := 0
	root := parser.Parse(stream, sink, "t.le", global, &counter)
	require.Empty(t, sink.Errors)

	pool := types.NewPool()
	gen := types.NewGen(pool, sink)
	resolver.New(sink, gen).Run(root)

	prog := compiler.NewCompiledProgram(pool, sink)
	drv := compiler.NewDriver(prog, sink, gen)
	drv.Run(root)
	return prog, sink
}

func findFunc(prog *compiler.CompiledProgram, name string) *compiler.Funcode {
	for _, fn := range prog.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

func opcodes(fn *compiler.Funcode) []compiler.Opcode {
	ops := make([]compiler.Opcode, len(fn.Code))
	for i, in := range fn.Code {
		ops[i] = in.Op
	}
	return ops
}

// A function returning the sum of its two parameters compiles to loading
// both locals, adding them, and returning.
func TestCompileSimpleFunction(t *testing.T) {
	prog, sink := compileSrc(t, `
int add(int a, int b) {
	return a + b;
}
`)
	require.Nil(t, sink.Err())
	fn := findFunc(prog, "add")
	require.NotNil(t, fn)
	require.Equal(t, 2, fn.NumParams)
	require.Len(t, fn.Locals, 2)
	require.Equal(t, "a", fn.Locals[0].Name)
	require.Equal(t, "b", fn.Locals[1].Name)

	ops := opcodes(fn)
	require.Contains(t, ops, compiler.LOADLOCAL)
	require.Contains(t, ops, compiler.ADD)
	require.Contains(t, ops, compiler.RETURN)
}

// File-scope globals get a stable slot each, in declaration order, before
// any function body is compiled.
func TestCompileGlobalsCollected(t *testing.T) {
	prog, sink := compileSrc(t, `
int x = 1;
int y = 2;
`)
	require.Nil(t, sink.Err())
	require.Len(t, prog.Globals, 2)
	require.Equal(t, "x", prog.Globals[0].Name)
	require.Equal(t, "y", prog.Globals[1].Name)
}

// A while loop compiles to a conditional-forward / unconditional-backward
// jump pair bracketing the body.
func TestCompileWhileLoop(t *testing.T) {
	prog, sink := compileSrc(t, `
void loop() {
	int i = 0;
	while (i < 10) {
		i = i + 1;
	}
}
`)
	require.Nil(t, sink.Err())
	fn := findFunc(prog, "loop")
	require.NotNil(t, fn)
	ops := opcodes(fn)
	require.Contains(t, ops, compiler.JMPF)
	require.Contains(t, ops, compiler.JMP)
	require.Contains(t, ops, compiler.LT)
}

// override methods reuse their base's vtable slot instead of appending a
// new one.
func TestVtableOverrideReusesSlot(t *testing.T) {
	prog, sink := compileSrc(t, `
class A {
	virtual void f();
}
class B : A {
	void f() override;
}
`)
	require.Nil(t, sink.Err())

	var aType, bType *types.DataType
	for dt := range prog.Vtables {
		switch dt.Name {
		case "A":
			aType = dt
		case "B":
			bType = dt
		}
	}
	require.NotNil(t, aType)
	require.NotNil(t, bType)

	aFn := findFunc(prog, "f")
	require.NotNil(t, aFn)
	require.GreaterOrEqual(t, aFn.VtableIndex, 0)

	vtA := prog.Vtables[aType]
	vtB := prog.Vtables[bType]
	require.Len(t, vtA.Slots, 1)
	require.Len(t, vtB.Slots, 1)
	require.Equal(t, vtA.Slots[0].VtableIndex, vtB.Slots[0].VtableIndex)
}

// Constants and names are interned once: repeated use of the same literal
// or identifier reuses the same pool index.
func TestConstantAndNameInterning(t *testing.T) {
	prog := compiler.NewCompiledProgram(types.NewPool(), &diag.Sink{})
	i1 := prog.Constant(int64(42))
	i2 := prog.Constant(int64(42))
	require.Equal(t, i1, i2)
	require.Len(t, prog.Constants, 1)

	n1 := prog.Name("foo")
	n2 := prog.Name("foo")
	require.Equal(t, n1, n2)
	require.Len(t, prog.Names, 1)
}
