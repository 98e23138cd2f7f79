package lexer_test

import (
	"testing"

	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/lexer"
	"github.com/mna/lethec/lang/token"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) ([]token.Token, []token.Value, *diag.Sink) {
	t.Helper()
	var sink diag.Sink
	l := lexer.New("test.le", []byte(src), &sink, lexer.Default)
	var toks []token.Token
	var vals []token.Value
	for {
		tok, val, _ := l.Scan()
		toks = append(toks, tok)
		vals = append(vals, val)
		if tok == token.EOF {
			break
		}
	}
	return toks, vals, &sink
}

func TestIdentAndKeyword(t *testing.T) {
	toks, vals, sink := scanAll(t, "foo class _bar2")
	require.Empty(t, sink.Errors)
	require.Equal(t, []token.Token{token.IDENT, token.CLASS, token.IDENT, token.EOF}, toks)
	require.Equal(t, "foo", vals[0].Text)
	require.Equal(t, "_bar2", vals[2].Text)
}

func TestOperatorsLongestMatch(t *testing.T) {
	toks, _, sink := scanAll(t, "<<= >>>= === !== <=> <-> .. ... ->*")
	require.Empty(t, sink.Errors)
	want := []token.Token{
		token.SHL_EQ, token.USHR_EQ, token.SAME, token.NSAME, token.SPACESHIP,
		token.DASHARROW, token.DOTDOT, token.ELLIPSIS, token.ARROWSTAR, token.EOF,
	}
	require.Equal(t, want, toks)
}

func TestIntegerBases(t *testing.T) {
	toks, vals, sink := scanAll(t, "0x1F 0b101 017 42 1'000")
	require.Empty(t, sink.Errors)
	require.Equal(t, []token.Token{token.INT, token.INT, token.INT, token.INT, token.INT, token.EOF}, toks)
	require.EqualValues(t, 31, vals[0].Int)
	require.EqualValues(t, 5, vals[1].Int)
	require.EqualValues(t, 15, vals[2].Int)
	require.EqualValues(t, 42, vals[3].Int)
	require.EqualValues(t, 1000, vals[4].Int)
}

func TestFloatSuffixes(t *testing.T) {
	toks, vals, sink := scanAll(t, "1.5 1.5f 1.5d .5 1e10")
	require.Empty(t, sink.Errors)
	for _, tok := range toks[:len(toks)-1] {
		require.Equal(t, token.FLOAT, tok)
	}
	require.EqualValues(t, token.NumFloat32, vals[0].Flags)
	require.EqualValues(t, token.NumFloat32, vals[1].Flags)
	require.EqualValues(t, token.NumFloat64, vals[2].Flags)
	require.InDelta(t, 0.5, vals[3].Float, 1e-9)
}

func TestStrings(t *testing.T) {
	toks, vals, sink := scanAll(t, `"hi\n" """raw\nliteral""" 'ident'`)
	require.Empty(t, sink.Errors)
	require.Equal(t, token.STRING, toks[0])
	require.Equal(t, "hi\n", vals[0].Text)
	require.Equal(t, token.STRING, toks[1])
	require.True(t, vals[1].Raw)
	require.Equal(t, `raw\nliteral`, vals[1].Text)
	require.Equal(t, token.NAME, toks[2])
	require.Equal(t, "ident", vals[2].Text)
}

func TestLineComment(t *testing.T) {
	toks, _, sink := scanAll(t, "1 // a comment\n2")
	require.Empty(t, sink.Errors)
	require.Equal(t, []token.Token{token.INT, token.INT, token.EOF}, toks)
}

func TestIllegalCharacter(t *testing.T) {
	_, _, sink := scanAll(t, "$")
	require.Len(t, sink.Errors, 1)
	require.Equal(t, diag.Lex, sink.Errors[0].Kind)
}

func TestSetTokenLocation(t *testing.T) {
	var sink diag.Sink
	l := lexer.New("a.le", []byte("x y"), &sink, lexer.Default)
	l.Scan()
	l.SetTokenLocation("b.le", 42)
	_, _, loc := l.Scan()
	require.Equal(t, "b.le", loc.File)
	require.Equal(t, 42, loc.Line)
}
