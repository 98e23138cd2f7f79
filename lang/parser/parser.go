// Package parser implements Lethe's recursive-descent parser (spec §4.5):
// it consumes a macro-aware token stream and produces an AST rooted at a
// KProgram node, building the NamedScope graph alongside it so that
// forward references within a scope work before resolution begins (spec
// §5 ordering guarantees).
//
// There is no teacher analogue (a Starlark-family grammar has no classes,
// templates, bit-fields, attributes or a token-macro preprocessor to
// disambiguate against); the recursive-descent shape itself - one method
// per grammar production, precedence-climbing helpers for expressions -
// is the idiom every C-like recursive-descent parser in the retrieved
// pack shares, so it is built fresh from spec §4.5's production table
// rather than adapted line-by-line from any single file.
package parser

import (
	"fmt"

	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/diag"
	"github.com/mna/lethec/lang/macro"
	"github.com/mna/lethec/lang/scope"
	"github.com/mna/lethec/lang/token"
)

// MaxDepth is the default recursive-descent depth limit (spec §4.5),
// preventing stack blow-up on pathologically nested expressions.
const MaxDepth = 1024

// TokenSource is the interface the parser needs from the macro-aware
// token stream (lang/macro.Stream satisfies it); kept narrow so tests can
// feed a canned token sequence.
type TokenSource interface {
	GetToken() macro.Tok
	PeekToken(n int) macro.Tok
	ConsumeToken()
	ConsumeTokenIf(tt token.Token) bool
	UngetToken(n int)
}

// Parser holds all state for parsing one translation unit.
type Parser struct {
	src  TokenSource
	sink *diag.Sink

	filename string
	depth    int

	cur macro.Tok

	global  *scope.Scope
	curScope *scope.Scope

	// initCounter is the counter handed in by the caller. The parser keeps
	// it but does not read or advance it: no file-level initializer is
	// numbered from it.
	initCounter *int
}

// New creates a Parser reading from src, reporting diagnostics to sink,
// building declarations into the given global scope. initCounter is stored
// on the Parser and otherwise unused; parsing does no __init$N numbering.
func New(src TokenSource, sink *diag.Sink, filename string, global *scope.Scope, initCounter *int) *Parser {
	p := &Parser{src: src, sink: sink, filename: filename, global: global, curScope: global, initCounter: initCounter}
	p.advance()
	return p
}

func (p *Parser) advance() { p.cur = p.src.GetToken() }

func (p *Parser) tok() token.Token { return p.cur.Type }

func (p *Parser) loc() token.Location { return p.cur.Loc }

func (p *Parser) errorf(format string, args ...interface{}) {
	p.sink.Addf(diag.Parse, p.loc(), format, args...)
}

// expect consumes the current token if it matches tt, else reports an
// error and returns the zero Tok without consuming (error recovery lets
// the caller decide how to resynchronize).
func (p *Parser) expect(tt token.Token) macro.Tok {
	if p.cur.Type != tt {
		p.errorf("expected %s, got %s", tt, p.cur.Type)
		return macro.Tok{}
	}
	t := p.cur
	p.advance()
	return t
}

func (p *Parser) at(tt token.Token) bool { return p.cur.Type == tt }

func (p *Parser) accept(tt token.Token) bool {
	if p.at(tt) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) enterDepth() bool {
	p.depth++
	if p.depth > MaxDepth {
		p.errorf("expression/statement nesting exceeds depth limit %d", MaxDepth)
		return false
	}
	return true
}

func (p *Parser) exitDepth() { p.depth-- }

func (p *Parser) pushScope(typ scope.Type, name string, node *ast.Node) *scope.Scope {
	s := scope.New(typ, name, p.curScope)
	s.Node = node
	p.curScope = s
	return s
}

func (p *Parser) popScope() { p.curScope = p.curScope.Parent }

func (p *Parser) nextInit() int {
	v := *p.initCounter
	*p.initCounter++
	return v
}

// Parse parses one complete translation unit (spec §4.5 "Translation
// unit"): a sequence of '#line' directives, imports, namespace blocks,
// typedefs, using-aliases and declarations, terminated by EOF.
func Parse(src TokenSource, sink *diag.Sink, filename string, global *scope.Scope, initCounter *int) *ast.Node {
	p := New(src, sink, filename, global, initCounter)
	root := ast.NewNode(ast.KProgram, p.loc())
	root.ScopeRef = global
	root.SymScopeRef = global
	for !p.at(token.EOF) {
		start := p.cur
		n := p.parseTopLevel()
		if n != nil {
			root.Add(n)
		} else if p.cur == start {
			// no progress: force-advance to avoid an infinite loop on an
			// unrecoverable token.
			p.advance()
		}
	}
	return root
}

func (p *Parser) parseTopLevel() *ast.Node {
	switch p.tok() {
	case token.IMPORT:
		return p.parseImport()
	case token.NAMESPACE:
		return p.parseNamespace()
	case token.SEMI:
		p.advance()
		return nil
	default:
		return p.parseAttributedDecl()
	}
}

func (p *Parser) parseImport() *ast.Node {
	loc := p.loc()
	p.advance()
	n := ast.NewNode(ast.KImport, loc)
	if p.at(token.STRING) {
		n.Text = p.cur.Value.Text
		p.advance()
	}
	p.accept(token.SEMI)
	return n
}

// parseNamespace implements 'namespace A::B { ... }' and the auto-closing
// 'namespace A::B;' form (spec §4.5): the latter opens a namespace that
// implicitly closes at EOF, modeled here by pushing the scope and relying
// on the caller (translation-unit loop) to keep adding declarations into
// it until EOF since this function simply never pops in that form.
func (p *Parser) parseNamespace() *ast.Node {
	loc := p.loc()
	p.advance()
	n := ast.NewNode(ast.KNamespaceDecl, loc)

	names := p.parseQualifiedName()
	n.Text = names

	// Descend/create nested named scopes for each '::' component.
	cur := p.curScope
	for _, part := range splitQualified(names) {
		child, ok := cur.NamedScope(part)
		if !ok {
			child = scope.New(scope.Namespace, part, cur)
			cur.AddNamedScope(part, child)
		}
		cur = child
	}
	p.curScope = cur
	n.ScopeRef = cur

	enclosing := findOuterScope(cur, len(splitQualified(names)))

	if p.accept(token.LBRACE) {
		for !p.at(token.RBRACE) && !p.at(token.EOF) {
			if d := p.parseTopLevel(); d != nil {
				n.Add(d)
			}
		}
		p.expect(token.RBRACE)
		p.curScope = enclosing
	} else {
		p.accept(token.SEMI)
		// auto-closing form (spec §4.5): stays open until EOF, so leave
		// p.curScope pointed at the namespace scope.
	}
	return n
}

func findOuterScope(s *scope.Scope, levels int) *scope.Scope {
	for i := 0; i < levels; i++ {
		if s == nil {
			return nil
		}
		s = s.Parent
	}
	return s
}

func splitQualified(s string) []string {
	var parts []string
	start := 0
	for i := 0; i+1 < len(s); i++ {
		if s[i] == ':' && s[i+1] == ':' {
			parts = append(parts, s[start:i])
			start = i + 2
			i++
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func (p *Parser) parseQualifiedName() string {
	name := p.cur.Value.Text
	p.expect(token.IDENT)
	for p.at(token.COLONCOLON) {
		p.advance()
		name += "::" + p.cur.Value.Text
		p.expect(token.IDENT)
	}
	return name
}

// parseAttributedDecl parses an optional leading '[ ... ]' attribute list
// (spec §4.5 Attributes) then the declaration it applies to.
func (p *Parser) parseAttributedDecl() *ast.Node {
	var attrs []string
	for p.at(token.LBRACK) {
		p.advance()
		depth := 1
		for depth > 0 && !p.at(token.EOF) {
			if p.at(token.LBRACK) {
				depth++
			} else if p.at(token.RBRACK) {
				depth--
				if depth == 0 {
					p.advance()
					break
				}
			}
			attrs = append(attrs, tokenText(p.cur))
			p.advance()
		}
	}
	n := p.parseDeclaration()
	if n != nil {
		n.Attributes = attrs
		for _, a := range attrs {
			if a == "deprecated" {
				n.Qualifiers |= ast.QDeprecated
			}
		}
	}
	return n
}

func tokenText(t macro.Tok) string {
	if t.Value.Text != "" {
		return t.Value.Text
	}
	return t.Type.String()
}

// fmtLoc is a tiny helper kept for error messages that want to name a
// location inline without importing fmt at every call site.
func fmtLoc(loc token.Location) string { return fmt.Sprintf("%s", loc) }
