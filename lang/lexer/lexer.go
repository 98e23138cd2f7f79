// Package lexer turns Lethe source bytes into a stream of tokens. It plays
// the role of the teacher's lang/scanner package, generalized from the
// host language's token set to Lethe's: numeric suffixes, raw triple-quote
// strings, single-quoted names, and '#line' relocation.
package lexer

import (
	"unicode/utf8"

	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/token"
)

// Mode selects how unsuffixed floating literals are typed.
type Mode uint8

const (
	// Default mode: "1.2" is a float constant unless suffixed.
	Default Mode = iota
	// Double mode: "1.2" is a double constant.
	Double
)

const bom = 0xFEFF

// Lexer converts a byte slice into a single token at a time. A one-token
// lookahead buffer (Peek) is enough for every consumer; the macro engine in
// lang/macro layers a much larger ring buffer on top of this.
type Lexer struct {
	file string
	mode Mode
	sink *diag.Sink

	src []byte
	off int // offset of cur in src
	roff int // offset of the byte right after cur
	cur  rune

	line, col int

	havePeek bool
	peekTok  token.Token
	peekVal  token.Value
	peekLoc  token.Location
}

// New creates a Lexer reading src, reporting as file in diagnostics and
// locations. Errors are reported to sink.
func New(file string, src []byte, sink *diag.Sink, mode Mode) *Lexer {
	l := &Lexer{file: file, src: src, sink: sink, mode: mode, line: 1, col: 0}
	l.advance()
	if l.cur == bom {
		l.advance()
	}
	// skip a shebang line, e.g. "#!/usr/bin/env lethec"
	if l.cur == '#' && l.roff < len(l.src) && l.src[l.roff] == '!' {
		for l.cur != '\n' && l.off < len(l.src) {
			l.advance()
		}
	}
	return l
}

// SetTokenLocation retargets the file/line used for the *next* token,
// implementing the '#line' directive. The token stream (lang/macro) calls
// this after consuming a '#line' directive itself; the lexer only tracks
// position, it does not parse the directive.
func (l *Lexer) SetTokenLocation(file string, line int) {
	l.file = file
	l.line = line
	l.col = 0
}

func (l *Lexer) loc() token.Location {
	return token.Location{File: l.file, Line: l.line, Column: l.col}
}

func (l *Lexer) errorf(loc token.Location, format string, args ...interface{}) {
	l.sink.Addf(diag.Lex, loc, format, args...)
}

// peekByte returns the byte right after cur without consuming it, or 0 at
// the end of src.
func (l *Lexer) peekByte() byte {
	if l.roff >= len(l.src) {
		return 0
	}
	return l.src[l.roff]
}

func (l *Lexer) advance() {
	if l.off >= len(l.src) {
		l.cur = utf8.RuneError
		l.off = len(l.src)
		l.roff = len(l.src)
		return
	}
	if l.cur == '\n' {
		l.line++
		l.col = 0
	}
	r, size := utf8.DecodeRune(l.src[l.roff:])
	if r == utf8.RuneError && size <= 1 {
		if l.roff >= len(l.src) {
			l.cur = utf8.RuneError
			l.off = len(l.src)
			return
		}
		l.errorf(l.loc(), "invalid UTF-8 encoding")
	}
	l.off = l.roff
	l.cur = r
	l.roff += size
	if size > 0 {
		l.col++
	}
}

func (l *Lexer) advanceIf(r rune) bool {
	if l.cur == r {
		l.advance()
		return true
	}
	return false
}

func isLetter(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r >= utf8.RuneSelf
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == '\f' || r == '\v'
}

func (l *Lexer) skipWhitespace() {
	for isWhitespace(l.cur) {
		l.advance()
	}
}

// Peek returns the next token without consuming it; calling Peek twice in a
// row returns the same result (idempotent, per spec §4.1).
func (l *Lexer) Peek() (token.Token, token.Value, token.Location) {
	if !l.havePeek {
		l.peekTok, l.peekVal, l.peekLoc = l.scan()
		l.havePeek = true
	}
	return l.peekTok, l.peekVal, l.peekLoc
}

// Scan consumes and returns the next token.
func (l *Lexer) Scan() (token.Token, token.Value, token.Location) {
	if l.havePeek {
		l.havePeek = false
		return l.peekTok, l.peekVal, l.peekLoc
	}
	return l.scan()
}

func (l *Lexer) scan() (token.Token, token.Value, token.Location) {
	l.skipWhitespace()
	loc := l.loc()

	switch {
	case l.off >= len(l.src) && l.cur == utf8.RuneError:
		return token.EOF, token.Value{}, loc
	case isLetter(l.cur):
		return l.scanIdent(loc)
	case isDigit(l.cur):
		return l.scanNumber(loc)
	}

	r := l.cur
	l.advance()
	switch r {
	case '"':
		return l.scanString(loc)
	case '\'':
		return l.scanNameOrChar(loc)
	case '+':
		if l.advanceIf('+') {
			return token.INC, token.Value{}, loc
		}
		if l.advanceIf('=') {
			return token.PLUS_EQ, token.Value{}, loc
		}
		return token.PLUS, token.Value{}, loc
	case '-':
		if l.advanceIf('-') {
			return token.DEC, token.Value{}, loc
		}
		if l.advanceIf('=') {
			return token.MINUS_EQ, token.Value{}, loc
		}
		if l.advanceIf('>') {
			if l.advanceIf('*') {
				return token.ARROWSTAR, token.Value{}, loc
			}
			return token.ARROW, token.Value{}, loc
		}
		return token.MINUS, token.Value{}, loc
	case '*':
		if l.advanceIf('=') {
			return token.STAR_EQ, token.Value{}, loc
		}
		return token.STAR, token.Value{}, loc
	case '/':
		switch {
		case l.cur == '/':
			l.skipLineComment()
			return l.scan()
		case l.cur == '*':
			l.skipBlockComment(loc)
			return l.scan()
		case l.advanceIf('='):
			return token.SLASH_EQ, token.Value{}, loc
		}
		return token.SLASH, token.Value{}, loc
	case '%':
		if l.advanceIf('=') {
			return token.PERCENT_EQ, token.Value{}, loc
		}
		return token.PERCENT, token.Value{}, loc
	case '&':
		if l.advanceIf('&') {
			if l.advanceIf('=') {
				return token.LAND_EQ, token.Value{}, loc
			}
			return token.LAND, token.Value{}, loc
		}
		if l.advanceIf('=') {
			return token.AMP_EQ, token.Value{}, loc
		}
		return token.AMP, token.Value{}, loc
	case '|':
		if l.advanceIf('|') {
			if l.advanceIf('=') {
				return token.LOR_EQ, token.Value{}, loc
			}
			return token.LOR, token.Value{}, loc
		}
		if l.advanceIf('=') {
			return token.PIPE_EQ, token.Value{}, loc
		}
		return token.PIPE, token.Value{}, loc
	case '^':
		if l.advanceIf('=') {
			return token.CARET_EQ, token.Value{}, loc
		}
		return token.CARET, token.Value{}, loc
	case '~':
		return token.TILDE, token.Value{}, loc
	case '!':
		if l.advanceIf('=') {
			if l.advanceIf('=') {
				return token.NSAME, token.Value{}, loc
			}
			return token.NE, token.Value{}, loc
		}
		return token.NOT, token.Value{}, loc
	case '<':
		if l.advanceIf('<') {
			if l.advanceIf('=') {
				return token.SHL_EQ, token.Value{}, loc
			}
			return token.SHL, token.Value{}, loc
		}
		if l.advanceIf('=') {
			if l.advanceIf('>') {
				return token.SPACESHIP, token.Value{}, loc
			}
			return token.LE, token.Value{}, loc
		}
		if l.advanceIf('-') {
			if l.advanceIf('>') {
				return token.DASHARROW, token.Value{}, loc
			}
			l.errorf(loc, "invalid character sequence '<-'")
			return token.ILLEGAL, token.Value{}, loc
		}
		return token.LT, token.Value{}, loc
	case '>':
		if l.advanceIf('>') {
			if l.advanceIf('>') {
				if l.advanceIf('=') {
					return token.USHR_EQ, token.Value{}, loc
				}
				return token.USHR, token.Value{}, loc
			}
			if l.advanceIf('=') {
				return token.SHR_EQ, token.Value{}, loc
			}
			return token.SHR, token.Value{}, loc
		}
		if l.advanceIf('=') {
			return token.GE, token.Value{}, loc
		}
		return token.GT, token.Value{}, loc
	case '=':
		if l.advanceIf('=') {
			if l.advanceIf('=') {
				return token.SAME, token.Value{}, loc
			}
			return token.EQ, token.Value{}, loc
		}
		return token.ASSIGN, token.Value{}, loc
	case '(':
		return token.LPAREN, token.Value{}, loc
	case ')':
		return token.RPAREN, token.Value{}, loc
	case '[':
		return token.LBRACK, token.Value{}, loc
	case ']':
		return token.RBRACK, token.Value{}, loc
	case '{':
		return token.LBRACE, token.Value{}, loc
	case '}':
		return token.RBRACE, token.Value{}, loc
	case ',':
		return token.COMMA, token.Value{}, loc
	case ';':
		return token.SEMI, token.Value{}, loc
	case ':':
		if l.advanceIf(':') {
			return token.COLONCOLON, token.Value{}, loc
		}
		return token.COLON, token.Value{}, loc
	case '.':
		if l.advanceIf('.') {
			if l.advanceIf('.') {
				return token.ELLIPSIS, token.Value{}, loc
			}
			return token.DOTDOT, token.Value{}, loc
		}
		if l.advanceIf('*') {
			return token.DOTSTAR, token.Value{}, loc
		}
		if isDigit(l.cur) {
			return l.scanFractional(loc, "")
		}
		return token.DOT, token.Value{}, loc
	case '?':
		return token.QUESTION, token.Value{}, loc
	case '#':
		return token.HASH, token.Value{}, loc
	default:
		l.errorf(loc, "invalid character %q", r)
		return token.ILLEGAL, token.Value{}, loc
	}
}

func (l *Lexer) skipLineComment() {
	for l.cur != '\n' && l.off < len(l.src) {
		if l.cur == '\\' && l.peekByte() == '\n' {
			l.advance() // consume backslash
			l.advance() // consume newline, continuing the comment on the next line
			continue
		}
		l.advance()
	}
}

func (l *Lexer) skipBlockComment(start token.Location) {
	for {
		if l.off >= len(l.src) {
			l.errorf(start, "unterminated block comment")
			return
		}
		if l.cur == '*' && l.peekByte() == '/' {
			l.advance()
			l.advance()
			return
		}
		l.advance()
	}
}

func (l *Lexer) scanIdent(loc token.Location) (token.Token, token.Value, token.Location) {
	start := l.off
	for isLetter(l.cur) || isDigit(l.cur) {
		l.advance()
	}
	text := string(l.src[start:l.off])
	if tok, ok := token.Lookup(text); ok {
		return tok, token.Value{Text: text}, loc
	}
	return token.IDENT, token.Value{Text: text}, loc
}

// scanNameOrChar handles 'name' (a single-quoted interned identifier) as
// well as classic 'c' single-character literals; both are one-line only.
func (l *Lexer) scanNameOrChar(loc token.Location) (token.Token, token.Value, token.Location) {
	start := l.off
	for l.cur != '\'' {
		if l.off >= len(l.src) || l.cur == '\n' {
			l.errorf(loc, "unterminated name/char literal")
			return token.ILLEGAL, token.Value{}, loc
		}
		if l.cur == '\\' {
			l.advance()
		}
		l.advance()
	}
	text := string(l.src[start:l.off])
	l.advance() // closing quote
	decoded, err := unescape(text)
	if err != "" {
		l.errorf(loc, "%s", err)
	}
	tok := token.NAME
	if utf8.RuneCountInString(decoded) == 1 && !isLetter([]rune(decoded)[0]) {
		tok = token.CHAR
	}
	return tok, token.Value{Text: decoded}, loc
}

func (l *Lexer) scanString(loc token.Location) (token.Token, token.Value, token.Location) {
	if l.cur == '"' && l.peekByte() == '"' {
		save := *l
		l.advance()
		l.advance()
		if l.cur == '"' {
			l.advance()
			return l.scanRawString(loc)
		}
		*l = save
	}
	var sb []byte
	for l.cur != '"' {
		if l.off >= len(l.src) || l.cur == '\n' {
			l.errorf(loc, "unterminated string literal")
			return token.STRING, token.Value{Text: string(sb)}, loc
		}
		if l.cur == '\\' {
			r := l.readEscape(loc)
			sb = utf8.AppendRune(sb, r)
			continue
		}
		sb = utf8.AppendRune(sb, l.cur)
		l.advance()
	}
	l.advance()
	return token.STRING, token.Value{Text: string(sb)}, loc
}

func (l *Lexer) scanRawString(loc token.Location) (token.Token, token.Value, token.Location) {
	start := l.off
	for {
		if l.off >= len(l.src) {
			l.errorf(loc, "unterminated raw string literal")
			return token.STRING, token.Value{Text: string(l.src[start:l.off]), Raw: true}, loc
		}
		if l.cur == '"' {
			text := l.src[start:l.off]
			save := *l
			l.advance()
			if l.cur == '"' {
				l.advance()
				if l.cur == '"' {
					l.advance()
					return token.STRING, token.Value{Text: string(text), Raw: true}, loc
				}
			}
			*l = save
		}
		l.advance()
	}
}

func (l *Lexer) readEscape(loc token.Location) rune {
	l.advance() // consume backslash
	switch l.cur {
	case 'a':
		l.advance()
		return '\a'
	case 'b':
		l.advance()
		return '\b'
	case 'f':
		l.advance()
		return '\f'
	case 'n':
		l.advance()
		return '\n'
	case 'r':
		l.advance()
		return '\r'
	case 't':
		l.advance()
		return '\t'
	case 'v':
		l.advance()
		return '\v'
	case '\\', '\'', '"':
		r := l.cur
		l.advance()
		return r
	case 'x':
		l.advance()
		return l.readHexEscape(loc, 2)
	case 'u':
		l.advance()
		return l.readBracedHexEscape(loc, 4)
	case 'U':
		l.advance()
		return l.readBracedHexEscape(loc, 8)
	default:
		if isDigit(l.cur) {
			return l.readOctalEscape(loc)
		}
		l.errorf(loc, "unknown escape sequence '\\%c'", l.cur)
		r := l.cur
		l.advance()
		return r
	}
}

func (l *Lexer) readHexEscape(loc token.Location, maxDigits int) rune {
	var v rune
	n := 0
	for n < maxDigits && isHexDigit(l.cur) {
		v = v*16 + hexVal(l.cur)
		l.advance()
		n++
	}
	if n == 0 {
		l.errorf(loc, "\\x escape with no hex digits")
	}
	return v
}

func (l *Lexer) readBracedHexEscape(loc token.Location, maxDigits int) rune {
	if !l.advanceIf('{') {
		l.errorf(loc, "expected '{' after \\u/\\U")
		return utf8.RuneError
	}
	var v rune
	n := 0
	for isHexDigit(l.cur) && n < maxDigits {
		v = v*16 + hexVal(l.cur)
		l.advance()
		n++
	}
	if !l.advanceIf('}') {
		l.errorf(loc, "expected '}' to close unicode escape")
	}
	return v
}

func (l *Lexer) readOctalEscape(loc token.Location) rune {
	var v rune
	n := 0
	for n < 3 && l.cur >= '0' && l.cur <= '7' {
		v = v*8 + (l.cur - '0')
		l.advance()
		n++
	}
	return v
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func hexVal(r rune) rune {
	switch {
	case r >= '0' && r <= '9':
		return r - '0'
	case r >= 'a' && r <= 'f':
		return r - 'a' + 10
	default:
		return r - 'A' + 10
	}
}

// unescape decodes a single-quoted name/char body (used only for short,
// already-extracted text so a fresh sub-lexer is overkill). It decodes only
// \n, \t, \r and escaped backslash and quote characters; every other
// backslash sequence (\a, \x.., \u{..}, octal, ...) is kept verbatim,
// backslash included.
func unescape(s string) (string, string) {
	if !containsBackslash(s) {
		return s, ""
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			out = append(out, s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case '\\', '\'', '"':
			out = append(out, s[i])
		default:
			out = append(out, '\\', s[i])
		}
	}
	return string(out), ""
}

func containsBackslash(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			return true
		}
	}
	return false
}
