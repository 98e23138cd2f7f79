package maincmd_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/lethec/internal/maincmd"
	"github.com/mna/mainer"
	"github.com/stretchr/testify/require"
)

func writeSrc(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	fname := filepath.Join(dir, "t.le")
	require.NoError(t, os.WriteFile(fname, []byte(content), 0o644))
	return fname
}

func TestTokenizeFilesPrintsTokens(t *testing.T) {
	fname := writeSrc(t, "int x = 1;")
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}
	err := maincmd.TokenizeFiles(context.Background(), stdio, fname)
	require.NoError(t, err)
	require.Empty(t, errOut.String())
	require.Contains(t, out.String(), "int")
}

func TestParseFilesPrintsAST(t *testing.T) {
	fname := writeSrc(t, "int x = 1 + 2 * 3;")
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}
	err := maincmd.ParseFiles(context.Background(), stdio, fname)
	require.NoError(t, err)
	require.Empty(t, errOut.String())
	require.NotEmpty(t, out.String())
}

func TestResolveFilesFoldsConstants(t *testing.T) {
	fname := writeSrc(t, "int x = 1 + 2 * 3;")
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}
	err := maincmd.ResolveFiles(context.Background(), stdio, fname)
	require.NoError(t, err)
	require.Empty(t, errOut.String())
	// the binary-op nodes fold away, leaving a single childless literal
	// declarator initializer rather than a nested "+"/"*" expression tree.
	require.NotContains(t, out.String(), "BinOpExpr")
}

func TestResolveFilesReportsParseError(t *testing.T) {
	fname := writeSrc(t, "int x = ;")
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}
	err := maincmd.ResolveFiles(context.Background(), stdio, fname)
	require.Error(t, err)
}

func TestCodegenFilesPrintsCompiledProgram(t *testing.T) {
	fname := writeSrc(t, "int x = 1 + 2 * 3;")
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}
	err := maincmd.CodegenFiles(context.Background(), stdio, fname)
	require.NoError(t, err)
	require.Empty(t, errOut.String())
	require.Contains(t, out.String(), "globals:")
}

func TestCodegenFilesReportsResolveError(t *testing.T) {
	fname := writeSrc(t, "int x = undefined_name;")
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}
	err := maincmd.CodegenFiles(context.Background(), stdio, fname)
	require.Error(t, err)
}
