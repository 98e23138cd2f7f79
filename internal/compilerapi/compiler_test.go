package compilerapi_test

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/mna/lethec/internal/compilerapi"
	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/compiler"
	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/token"
	"github.com/stretchr/testify/require"
)

// S1: the public facade should fold 'int x = 1 + 2 * 3;' to 7 just like
// driving lexer/macro/parser/resolver by hand does.
func TestCompileResolveFoldsConstant(t *testing.T) {
	c := compilerapi.New()
	root, err := c.Compile(strings.NewReader("int x = 1 + 2 * 3;"), "t.le")
	require.NoError(t, err)
	require.NoError(t, c.Resolve(false))

	decl := root.Nodes[0].Nodes[1]
	require.Equal(t, "x", decl.Text)
	init := decl.Nodes[0]
	require.Equal(t, ast.KLiteralExpr, init.Kind)
	require.EqualValues(t, 7, init.NumInt)
}

func TestCompileResolveCodeGenProducesProgram(t *testing.T) {
	c := compilerapi.New()
	_, err := c.Compile(strings.NewReader("int x = 1 + 2 * 3;"), "t.le")
	require.NoError(t, err)
	require.NoError(t, c.Resolve(false))

	prog := compiler.NewCompiledProgram(c.Types.Pool, c.Sink)
	require.NoError(t, c.CodeGen(prog))
	require.NotEmpty(t, prog.Globals)
}

// fakeOpener resolves imports from an in-memory map, standing in for the
// filesystem in tests (spec §6 Compile "and all its imports").
type fakeOpener map[string]string

func (m fakeOpener) Open(name, _ string) (io.ReadCloser, string, error) {
	src, ok := m[name]
	if !ok {
		return nil, "", fmt.Errorf("no such file: %s", name)
	}
	return io.NopCloser(strings.NewReader(src)), name, nil
}

func TestCompileFollowsImports(t *testing.T) {
	opener := compilerapi.WithFileOpener(fakeOpener{
		"util.le": "int helper = 41;",
	})
	c := compilerapi.New(opener)

	root, err := c.Compile(strings.NewReader(`import "util.le";
int x = helper + 1;`), "main.le")
	require.NoError(t, err)
	require.Len(t, c.Roots, 2, "the import and the main file should both be queued")
	require.Equal(t, "main.le", root.Loc.File)
	require.Equal(t, "util.le", c.Roots[0].Loc.File, "imports are parsed before the importing file per spec §5")

	require.NoError(t, c.Resolve(false))
	require.Empty(t, c.Sink.Errors)
}

func TestMergeCombinesNamespacesAndRejectsDuplicates(t *testing.T) {
	a := compilerapi.New()
	_, err := a.Compile(strings.NewReader("namespace ns { int x = 1; }"), "a.le")
	require.NoError(t, err)

	b := compilerapi.New()
	_, err = b.Compile(strings.NewReader("namespace ns { int y = 2; }"), "b.le")
	require.NoError(t, err)

	require.NoError(t, a.Merge(b))
	ns, ok := a.Global.NamedScope("ns")
	require.True(t, ok)
	_, ok = ns.Member("x")
	require.True(t, ok)
	_, ok = ns.Member("y")
	require.True(t, ok, "b's member of the same namespace should have merged in")

	c := compilerapi.New()
	_, err = c.Compile(strings.NewReader("namespace ns { int x = 3; }"), "c.le")
	require.NoError(t, err)
	require.Error(t, a.Merge(c), "duplicate non-namespace name 'x' must be an error")
}

func TestEventDelegatesFireOnCompileAndOnError(t *testing.T) {
	var compiled []string
	var errs []string
	c := compilerapi.New(
		compilerapi.OnCompile(func(fname string) { compiled = append(compiled, fname) }),
		compilerapi.OnError(func(msg string, loc token.Location) { errs = append(errs, msg) }),
	)

	_, err := c.Compile(strings.NewReader("int x = ;"), "bad.le")
	require.Error(t, err)
	require.Contains(t, compiled, "bad.le")
	require.NotEmpty(t, errs)
}

func TestOnWarningFiresForMissingOverride(t *testing.T) {
	var warns []diag.Warning
	c := compilerapi.New(
		compilerapi.OnWarning(func(_ string, _ token.Location, w diag.Warning) {
			warns = append(warns, w)
		}),
	)
	_, err := c.Compile(strings.NewReader(`
class A { virtual void f(); }
class B : A { void f(); }
`), "t.le")
	require.NoError(t, err)
	require.NoError(t, c.Resolve(false))
	require.Contains(t, warns, diag.MISSING_OVERRIDE)
}
