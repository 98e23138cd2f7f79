// Package macro implements the token-stream and macro-expansion layer that
// sits between the lexer and the parser: a buffered, arbitrary-lookahead
// view of the token sequence that additionally performs user-defined
// token-macro expansion (spec §4.2). It plays the role the teacher's
// lang/scanner ring buffer plays for plain lookahead, generalized with a
// macro activation stack.
package macro

import (
	"strconv"
	"strings"

	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/lexer"
	"github.com/mna/lethec/lang/token"
)

// Macro is one user-defined token macro (spec §3 Macro).
type Macro struct {
	Name           string
	ScopeIndex     int
	Locked         bool
	Args           []string
	Variadic       bool // last arg is '...'
	Tokens         []Tok
}

// Source is anything that can produce a raw token sequence; the lexer
// satisfies it, and it is the seam tests use to feed a canned token list
// into the macro engine without going through real source text.
type Source interface {
	Scan() (token.Token, token.Value, token.Location)
}

// LocationSetter is implemented by sources that support retargeting
// (lang/lexer.Lexer does); the '#line' directive uses it to rewrite the
// location of every token scanned afterward, per spec §3 "TokenLocation
// ... must round-trip through '#line' directives".
type LocationSetter interface {
	SetTokenLocation(file string, line int)
}

// Stream is the macro-aware, arbitrarily-buffered token source consumed
// by the parser.
type Stream struct {
	src  Source
	sink *diag.Sink

	// buf holds tokens already pulled from src (or synthesized) that have
	// not yet been delivered; it plays the role of the spec's circular
	// look-ahead buffer, growing by reallocation instead of wrapping a
	// fixed ring, which keeps UngetToken/PeekToken simple at the cost of
	// the teacher's fixed-capacity optimization.
	buf []Tok
	pos int

	rawPushback []Tok // raw tokens pushed back by handleLineDirective/directArgSource

	eofTokens []Tok // queued via AppendEof, delivered once src is exhausted

	macros      map[string]*Macro
	scopeDepth  int
	scopeStack  []int // macro-scope index active at each '{' depth
	scopeMacros map[int][]string // names defined at a given scope index, for teardown

	activations []*activation
	counter     int

	selfName string // caller-settable 'self' substitution (enclosing struct name)
	funcName string // enclosing function name, for __func__
}

type activation struct {
	macro  *Macro
	tokens []Tok // the body (or argument) tokens being delivered
	index  int
}

// New wraps src (typically a *lexer.Lexer) with macro expansion.
func New(src Source, sink *diag.Sink) *Stream {
	return &Stream{
		src:         src,
		sink:        sink,
		macros:      make(map[string]*Macro),
		scopeMacros: make(map[int][]string),
	}
}

// SetSelf sets the struct/class name substituted for the 'self' macro.
func (s *Stream) SetSelf(name string) { s.selfName = name }

// SetFunc sets the function name substituted for __func__.
func (s *Stream) SetFunc(name string) { s.funcName = name }

// AppendEof queues toks to be delivered once the underlying source starts
// returning EOF; used to close an auto-opened scope with a synthesized '}'.
func (s *Stream) AppendEof(toks ...Tok) {
	s.eofTokens = append(s.eofTokens, toks...)
}

// BeginMacroScope bumps the macro-scope counter; macros defined after this
// call and before the matching EndMacroScope are erased when it ends.
func (s *Stream) BeginMacroScope() {
	s.scopeDepth++
	s.scopeStack = append(s.scopeStack, s.scopeDepth)
}

// EndMacroScope erases every macro defined inside the scope being closed.
func (s *Stream) EndMacroScope() {
	if len(s.scopeStack) == 0 {
		return
	}
	idx := s.scopeStack[len(s.scopeStack)-1]
	s.scopeStack = s.scopeStack[:len(s.scopeStack)-1]
	for _, name := range s.scopeMacros[idx] {
		delete(s.macros, name)
	}
	delete(s.scopeMacros, idx)
}

func (s *Stream) currentScope() int {
	if len(s.scopeStack) == 0 {
		return 0
	}
	return s.scopeStack[len(s.scopeStack)-1]
}

// AddSwapSimpleMacro installs a new macro. Redefinition is an error, per
// spec §4.2.
func (s *Stream) AddSwapSimpleMacro(name string, args []string, variadic bool, toks []Tok, loc token.Location) {
	if _, exists := s.macros[name]; exists {
		s.sink.Addf(diag.Parse, loc, "macro %q redefined", name)
		return
	}
	idx := s.currentScope()
	m := &Macro{Name: name, ScopeIndex: idx, Args: args, Variadic: variadic, Tokens: toks}
	s.macros[name] = m
	s.scopeMacros[idx] = append(s.scopeMacros[idx], name)
}

// fill ensures buf has at least one undelivered token, pulling from the
// activation stack, then macro expansion, then the underlying source.
func (s *Stream) fill() {
	for s.pos >= len(s.buf) {
		if !s.pullOne() {
			return
		}
	}
}

// pullOne appends exactly one deliverable token to buf, expanding macros as
// needed. Returns false only if there is nothing left to pull (should not
// happen, since EOF is itself a deliverable token).
func (s *Stream) pullOne() bool {
	for len(s.activations) > 0 {
		top := s.activations[len(s.activations)-1]
		if top.index >= len(top.tokens) {
			top.macro.Locked = false
			s.activations = s.activations[:len(s.activations)-1]
			continue
		}
		tk := top.tokens[top.index]
		top.index++
		if tk.Type == token.IDENT {
			if handled := s.tryExpandBuiltin(tk); handled {
				continue
			}
			if m, ok := s.macros[tk.Value.Text]; ok && !m.Locked {
				if s.expandMacroCall(m, activationArgSource{top}) {
					continue
				}
			}
		}
		s.buf = append(s.buf, tk)
		return true
	}

	tk := s.scanRaw()

	if tk.Type == token.EOF {
		if len(s.eofTokens) > 0 {
			s.buf = append(s.buf, s.eofTokens[0])
			s.eofTokens = s.eofTokens[1:]
			return true
		}
		s.buf = append(s.buf, tk)
		return true
	}

	if tk.Type == token.IDENT {
		if s.tryExpandBuiltin(tk) {
			return s.pullOne()
		}
		if m, ok := s.macros[tk.Value.Text]; ok && !m.Locked {
			if s.expandMacroCall(m, directArgSource{s}) {
				return s.pullOne()
			}
		}
	}
	s.buf = append(s.buf, tk)
	return true
}

// popRaw returns the next raw token, drawing first from any pushed-back
// tokens, else straight from src. It never applies macro expansion.
func (s *Stream) popRaw() Tok {
	if len(s.rawPushback) > 0 {
		tk := s.rawPushback[len(s.rawPushback)-1]
		s.rawPushback = s.rawPushback[:len(s.rawPushback)-1]
		return tk
	}
	tt, val, loc := s.src.Scan()
	return Tok{Type: tt, Value: val, Loc: loc}
}

// pushbackRaw queues tk to be the next token popRaw returns.
func (s *Stream) pushbackRaw(tk Tok) {
	s.rawPushback = append(s.rawPushback, tk)
}

// scanRaw returns the next raw token, transparently consuming and applying
// any '#line' directive along the way (spec §4.2: "'#line N [\"file\"]' is
// handled by the token stream, not the lexer"). A '#' never reaches macro
// expansion or the parser.
func (s *Stream) scanRaw() Tok {
	for {
		tk := s.popRaw()
		if tk.Type != token.HASH {
			return tk
		}
		s.handleLineDirective(tk.Loc)
	}
}

// handleLineDirective consumes '#line N ["file"]' right after its leading
// '#' (already consumed by the caller) and retargets the lexer via
// SetTokenLocation, per spec §3's TokenLocation round-trip requirement.
// Any other '#' directive is an error (spec §4.5 "other directives are an
// error").
func (s *Stream) handleLineDirective(hashLoc token.Location) {
	nameTok := s.popRaw()
	if nameTok.Type != token.IDENT || nameTok.Value.Text != "line" {
		s.sink.Addf(diag.Lex, hashLoc, "unsupported '#' directive")
		s.pushbackRaw(nameTok)
		return
	}
	lineTok := s.popRaw()
	if lineTok.Type != token.INT {
		s.sink.Addf(diag.Lex, hashLoc, "expected line number after '#line'")
		s.pushbackRaw(lineTok)
		return
	}
	file := hashLoc.File
	fileTok := s.popRaw()
	hasFile := fileTok.Type == token.STRING
	if hasFile {
		file = fileTok.Value.Text
	}
	// The line after the directive is numbered N: the last token scanned
	// (the file string, or the pushed-back lookahead) is shifted by its
	// distance from that line.
	line := int(lineTok.Value.Int) + fileTok.Loc.Line - hashLoc.Line - 1
	if !hasFile {
		fileTok.Loc.File, fileTok.Loc.Line = file, line
		s.pushbackRaw(fileTok)
	}
	if ls, ok := s.src.(LocationSetter); ok {
		ls.SetTokenLocation(file, line)
	}
}

// argSource abstracts "where do raw tokens for argument-matching come
// from": either straight from the lexer, or from the remaining tokens of
// an enclosing macro activation (so macro calls that appear inside another
// macro's body can still have their arguments matched against upcoming
// tokens of the *outer* context).
type argSource interface {
	next() (Tok, bool)
	unread(Tok)
}

type directArgSource struct{ s *Stream }

func (d directArgSource) next() (Tok, bool) {
	tk := d.s.scanRaw()
	return tk, tk.Type != token.EOF
}
func (d directArgSource) unread(tk Tok) {
	d.s.pushbackRaw(tk)
}

type activationArgSource struct{ a *activation }

func (a activationArgSource) next() (Tok, bool) {
	if a.a.index >= len(a.a.tokens) {
		return Tok{}, false
	}
	tk := a.a.tokens[a.a.index]
	a.a.index++
	return tk, true
}
func (a activationArgSource) unread(tk Tok) {
	a.a.tokens = append(a.a.tokens[:a.a.index], append([]Tok{tk}, a.a.tokens[a.a.index:]...)...)
}

// expandMacroCall attempts to parse a call to m starting right after its
// name identifier has already been consumed from src. Returns false (and
// leaves src untouched logically) if m takes arguments but none follow,
// which the spec treats as "not a macro invocation here".
func (s *Stream) expandMacroCall(m *Macro, src argSource) bool {
	var args [][]Tok
	if len(m.Args) > 0 || m.Variadic {
		first, ok := src.next()
		if !ok || first.Type != token.LPAREN {
			if ok {
				src.unread(first)
			}
			return false
		}
		args = readMacroArgs(src)
	}

	body := s.substituteBody(m, args)
	m.Locked = true
	s.activations = append(s.activations, &activation{macro: m, tokens: body})
	return true
}

// readMacroArgs reads comma-separated, paren-balanced argument token lists
// until the matching ')'.
func readMacroArgs(src argSource) [][]Tok {
	var args [][]Tok
	var cur []Tok
	depth := 0
	for {
		tk, ok := src.next()
		if !ok {
			break
		}
		switch tk.Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			if depth == 0 {
				args = append(args, cur)
				return args
			}
			depth--
		case token.COMMA:
			if depth == 0 {
				args = append(args, cur)
				cur = nil
				continue
			}
		}
		cur = append(cur, tk)
	}
	args = append(args, cur)
	return args
}

// substituteBody rewrites m's body, replacing parameter references with
// their matched argument token lists (re-expanded as a nested activation
// so expansion within an argument applies), handling __VA_ARGS__,
// __VA_COUNT, __VA_OPT__(...), __stringize and __concat.
func (s *Stream) substituteBody(m *Macro, args [][]Tok) []Tok {
	paramIndex := make(map[string]int, len(m.Args))
	for i, a := range m.Args {
		paramIndex[a] = i
	}

	argFor := func(i int) []Tok {
		if i < len(args) {
			return args[i]
		}
		return nil
	}
	variadicArgs := func() []Tok {
		if len(m.Args) >= len(args) {
			return nil
		}
		var joined []Tok
		for i := len(m.Args); i < len(args); i++ {
			if i > len(m.Args) {
				joined = append(joined, Tok{Type: token.COMMA})
			}
			joined = append(joined, args[i]...)
		}
		return joined
	}
	variadicCount := len(args) - len(m.Args)
	if variadicCount < 0 {
		variadicCount = 0
	}

	var out []Tok
	for i := 0; i < len(m.Tokens); i++ {
		tk := m.Tokens[i]

		switch {
		case tk.Type == token.IDENT && tk.Value.Text == "__stringize" && peekIsLParen(m.Tokens, i+1):
			closeIdx, inner := captureParenGroup(m.Tokens, i+1)
			rendered := renderArg(expandParamRefs(inner, paramIndex, argFor, variadicArgs))
			out = append(out, Tok{Type: token.STRING, Value: token.Value{Text: rendered}, Loc: tk.Loc})
			i = closeIdx
			continue
		case tk.Type == token.IDENT && tk.Value.Text == "__VA_ARGS__":
			out = append(out, variadicArgs()...)
			continue
		case tk.Type == token.IDENT && tk.Value.Text == "__VA_COUNT":
			out = append(out, Tok{Type: token.INT, Value: token.Value{Int: int64(variadicCount)}, Loc: tk.Loc})
			continue
		case tk.Type == token.IDENT && tk.Value.Text == "__VA_OPT__" && peekIsLParen(m.Tokens, i+1):
			closeIdx, inner := captureParenGroup(m.Tokens, i+1)
			if variadicCount > 0 {
				out = append(out, expandParamRefs(inner, paramIndex, argFor, variadicArgs)...)
			}
			i = closeIdx
			continue
		case tk.Type == token.IDENT && tk.Value.Text == "__LINE__":
			out = append(out, Tok{Type: token.INT, Value: token.Value{Int: int64(tk.Loc.Line)}, Loc: tk.Loc})
			continue
		case tk.Type == token.IDENT && tk.Value.Text == "__FILE__":
			out = append(out, Tok{Type: token.STRING, Value: token.Value{Text: tk.Loc.File}, Loc: tk.Loc})
			continue
		case tk.Type == token.IDENT && tk.Value.Text == "__func__":
			out = append(out, Tok{Type: token.STRING, Value: token.Value{Text: s.funcName}, Loc: tk.Loc})
			continue
		case tk.Type == token.IDENT && tk.Value.Text == "self":
			out = append(out, Tok{Type: token.IDENT, Value: token.Value{Text: s.selfName}, Loc: tk.Loc})
			continue
		case tk.Type == token.IDENT && tk.Value.Text == "__COUNTER__":
			out = append(out, Tok{Type: token.INT, Value: token.Value{Int: int64(s.counter)}, Loc: tk.Loc})
			s.counter++
			continue
		}

		if tk.Type == token.IDENT {
			if pi, ok := paramIndex[tk.Value.Text]; ok {
				out = append(out, argFor(pi)...)
				continue
			}
		}

		// __concat glues the previous emitted token with the next source
		// token (spec §4.2 point 5). Multiple concatenations compose
		// left-to-right because we fold into `out` as we go.
		if tk.Type == token.IDENT && tk.Value.Text == "__concat" && i+1 < len(m.Tokens) && len(out) > 0 {
			i++
			rhs := expandParamRefs([]Tok{m.Tokens[i]}, paramIndex, argFor, variadicArgs)
			if len(rhs) > 0 {
				last := out[len(out)-1]
				out[len(out)-1] = concatTokens(last, rhs[0])
				out = append(out, rhs[1:]...)
			}
			continue
		}

		out = append(out, tk)
	}
	return out
}

func expandParamRefs(toks []Tok, paramIndex map[string]int, argFor func(int) []Tok, variadicArgs func() []Tok) []Tok {
	var out []Tok
	for _, tk := range toks {
		if tk.Type == token.IDENT {
			if tk.Value.Text == "__VA_ARGS__" {
				out = append(out, variadicArgs()...)
				continue
			}
			if pi, ok := paramIndex[tk.Value.Text]; ok {
				out = append(out, argFor(pi)...)
				continue
			}
		}
		out = append(out, tk)
	}
	return out
}

func peekIsLParen(toks []Tok, i int) bool {
	return i < len(toks) && toks[i].Type == token.LPAREN
}

// captureParenGroup returns the index of the matching ')' and the tokens
// strictly between the opening '(' at start and it.
func captureParenGroup(toks []Tok, start int) (int, []Tok) {
	depth := 0
	var inner []Tok
	for i := start; i < len(toks); i++ {
		switch toks[i].Type {
		case token.LPAREN:
			depth++
			if depth == 1 {
				continue
			}
		case token.RPAREN:
			depth--
			if depth == 0 {
				return i, inner
			}
		}
		inner = append(inner, toks[i])
	}
	return len(toks) - 1, inner
}

// renderArg re-prints a token sequence as source text for __stringize,
// inserting a separating space between adjacent identical binary operators
// so the printed text does not accidentally fuse into a different token
// (e.g. "a+ +b" must not print as "a++b").
func renderArg(toks []Tok) string {
	var sb strings.Builder
	var prev *Tok
	for i := range toks {
		tk := &toks[i]
		if prev != nil {
			if needsSeparator(prev, tk) {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(tokenText(tk))
		prev = tk
	}
	return sb.String()
}

func needsSeparator(a, b *Tok) bool {
	if a.Type.IsOperator() && a.Type == b.Type {
		return true
	}
	return false
}

func tokenText(tk *Tok) string {
	switch tk.Type {
	case token.IDENT, token.STRING, token.NAME, token.CHAR:
		return tk.Value.Text
	case token.INT:
		return strconv.FormatInt(tk.Value.Int, 10)
	case token.FLOAT:
		return strconv.FormatFloat(tk.Value.Float, 'g', -1, 64)
	default:
		return tk.Type.String()
	}
}

// concatTokens fuses two tokens into one identifier token (numbers are
// stringified first), per spec §4.2 point 5. If the result starts with a
// digit (e.g. concatenating an integer then an identifier), the quirk is
// preserved rather than rejected, per the open question in spec §9.
func concatTokens(a, b Tok) Tok {
	text := tokenText(&a) + tokenText(&b)
	return Tok{Type: token.IDENT, Value: token.Value{Text: text}, Loc: a.Loc}
}

func (s *Stream) tryExpandBuiltin(tk Tok) bool {
	switch tk.Value.Text {
	case "__LINE__":
		s.buf = append(s.buf, Tok{Type: token.INT, Value: token.Value{Int: int64(tk.Loc.Line)}, Loc: tk.Loc})
		return true
	case "__FILE__":
		s.buf = append(s.buf, Tok{Type: token.STRING, Value: token.Value{Text: tk.Loc.File}, Loc: tk.Loc})
		return true
	case "__func__":
		s.buf = append(s.buf, Tok{Type: token.STRING, Value: token.Value{Text: s.funcName}, Loc: tk.Loc})
		return true
	case "__COUNTER__":
		s.buf = append(s.buf, Tok{Type: token.INT, Value: token.Value{Int: int64(s.counter)}, Loc: tk.Loc})
		s.counter++
		return true
	}
	return false
}

// GetToken consumes and returns the next token, per the spec's naming for
// this operation.
func (s *Stream) GetToken() Tok {
	s.fill()
	if s.pos >= len(s.buf) {
		return Tok{Type: token.EOF}
	}
	tk := s.buf[s.pos]
	s.pos++
	if tk.Type == token.LBRACE {
		s.BeginMacroScope()
	} else if tk.Type == token.RBRACE {
		s.EndMacroScope()
	}
	return tk
}

// PeekToken returns the token n slots ahead (0 = next) without consuming.
func (s *Stream) PeekToken(n int) Tok {
	for s.pos+n >= len(s.buf) {
		if !s.pullOne() {
			return Tok{Type: token.EOF}
		}
	}
	return s.buf[s.pos+n]
}

// ConsumeToken is an alias for GetToken kept for symmetry with
// ConsumeTokenIf; both exist because callers that only care about
// discarding (not reading) the token read better without an unused result.
func (s *Stream) ConsumeToken() { s.GetToken() }

// ConsumeTokenIf consumes and returns true if the next token has type tt,
// otherwise leaves the stream untouched and returns false.
func (s *Stream) ConsumeTokenIf(tt token.Token) bool {
	if s.PeekToken(0).Type == tt {
		s.GetToken()
		return true
	}
	return false
}

// UngetToken pushes back n tokens already consumed via GetToken. It only
// supports ungetting tokens still present in buf (i.e. not yet overwritten),
// which holds for every caller in this package since buf only grows.
func (s *Stream) UngetToken(n int) {
	s.pos -= n
	if s.pos < 0 {
		s.pos = 0
	}
}
