package macro_test

import (
	"testing"

	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/lexer"
	"github.com/mna/lethec/lang/macro"
	"github.com/mna/lethec/lang/token"
	"github.com/stretchr/testify/require"
)

func toks(src string) []macro.Tok {
	var sink diag.Sink
	l := lexer.New("m.le", []byte(src), &sink, lexer.Default)
	var out []macro.Tok
	for {
		tt, val, loc := l.Scan()
		out = append(out, macro.Tok{Type: tt, Value: val, Loc: loc})
		if tt == token.EOF {
			break
		}
	}
	return out[:len(out)-1] // drop EOF, body tokens never carry it
}

func newStream(t *testing.T, src string) (*macro.Stream, *diag.Sink) {
	t.Helper()
	var sink diag.Sink
	l := lexer.New("t.le", []byte(src), &sink, lexer.Default)
	return macro.New(l, &sink), &sink
}

func drain(s *macro.Stream) []macro.Tok {
	var out []macro.Tok
	for {
		tk := s.GetToken()
		out = append(out, tk)
		if tk.Type == token.EOF {
			return out
		}
	}
}

func TestSimpleMacroNoParams(t *testing.T) {
	s, sink := newStream(t, "FOO")
	s.AddSwapSimpleMacro("FOO", nil, false, toks("1 + 2"), token.Location{})
	got := drain(s)
	require.Empty(t, sink.Errors)
	require.Equal(t, []token.Token{token.INT, token.PLUS, token.INT, token.EOF}, typesOf(got))
}

func TestParameterizedMacro(t *testing.T) {
	s, _ := newStream(t, "ADD(1, 2)")
	s.AddSwapSimpleMacro("ADD", []string{"a", "b"}, false, toks("a + b"), token.Location{})
	got := drain(s)
	require.Equal(t, []token.Token{token.INT, token.PLUS, token.INT, token.EOF}, typesOf(got))
	require.EqualValues(t, 1, got[0].Value.Int)
	require.EqualValues(t, 2, got[2].Value.Int)
}

func TestStringize(t *testing.T) {
	s, _ := newStream(t, "STR(a+b)")
	s.AddSwapSimpleMacro("STR", []string{"x"}, false, toks("__stringize(x)"), token.Location{})
	got := drain(s)
	require.Equal(t, token.STRING, got[0].Type)
	require.Equal(t, "a+b", got[0].Value.Text)
}

func TestVaArgsAndCount(t *testing.T) {
	s, _ := newStream(t, "M(1, 2, 3)")
	s.AddSwapSimpleMacro("M", nil, true, toks("__VA_COUNT __VA_ARGS__"), token.Location{})
	got := drain(s)
	require.Equal(t, token.INT, got[0].Type)
	require.EqualValues(t, 3, got[0].Value.Int)
}

func TestCounterIncrementsPerExpansion(t *testing.T) {
	s, _ := newStream(t, "M(1) M(1)")
	s.AddSwapSimpleMacro("M", []string{"x"}, false, toks("x + __COUNTER__"), token.Location{})
	got := drain(s)
	// first expansion: 1 + 0 ; second: 1 + 1
	require.EqualValues(t, 0, got[2].Value.Int)
	require.EqualValues(t, 1, got[5].Value.Int)
}

func TestLockedMacroDoesNotRecurse(t *testing.T) {
	s, _ := newStream(t, "SELF")
	s.AddSwapSimpleMacro("SELF", nil, false, toks("SELF + 1"), token.Location{})
	got := drain(s)
	// SELF inside its own body must not expand again: it passes through as
	// a bare identifier.
	require.Equal(t, token.IDENT, got[0].Type)
	require.Equal(t, "SELF", got[0].Value.Text)
}

func TestMacroScopeTeardown(t *testing.T) {
	s, _ := newStream(t, "{ } M INNER")
	s.AddSwapSimpleMacro("M", nil, false, toks("1"), token.Location{})
	s.BeginMacroScope()
	s.AddSwapSimpleMacro("INNER", nil, false, toks("2"), token.Location{})
	s.EndMacroScope()
	// INNER no longer resolves as a macro name after its scope ends; M,
	// defined outside any scope, still does.
	got := drain(s)
	require.Equal(t, token.LBRACE, got[0].Type)
	require.Equal(t, token.RBRACE, got[1].Type)
	require.Equal(t, token.INT, got[2].Type)
	require.Equal(t, token.IDENT, got[3].Type)
}

func TestLineDirectiveRetargetsLocation(t *testing.T) {
	s, sink := newStream(t, "a\n#line 100 \"other.le\"\nb")
	got := drain(s)
	require.Empty(t, sink.Errors)
	require.Equal(t, []token.Token{token.IDENT, token.IDENT, token.EOF}, typesOf(got))
	require.Equal(t, "t.le", got[0].Loc.File)
	require.Equal(t, "other.le", got[1].Loc.File)
	require.Equal(t, 100, got[1].Loc.Line)
}

func TestLineDirectiveWithoutFilenameKeepsCurrentFile(t *testing.T) {
	s, sink := newStream(t, "#line 42\nb")
	got := drain(s)
	require.Empty(t, sink.Errors)
	require.Equal(t, "t.le", got[0].Loc.File)
	require.Equal(t, 42, got[0].Loc.Line)
}

func TestUnsupportedHashDirectiveReportsError(t *testing.T) {
	s, sink := newStream(t, "#bogus\nb")
	got := drain(s)
	require.NotEmpty(t, sink.Errors)
	// the unrecognized identifier is pushed back and surfaces as an
	// ordinary token rather than being swallowed.
	require.Equal(t, []token.Token{token.IDENT, token.IDENT, token.EOF}, typesOf(got))
}

func typesOf(toks []macro.Tok) []token.Token {
	out := make([]token.Token, len(toks))
	for i, tk := range toks {
		out[i] = tk.Type
	}
	return out
}
