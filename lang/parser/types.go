package parser

import (
	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/token"
)

// builtinTypeNames maps a keyword token to its base type spelling, used
// by parseType's base-type alternative (spec §4.5 Type production).
var builtinTypeNames = map[token.Token]string{
	token.VOID: "void", token.BOOL: "bool", token.BYTE: "byte", token.SBYTE: "sbyte",
	token.SHORT: "short", token.USHORT: "ushort", token.INT_KW: "int", token.UINT: "uint",
	token.LONG: "long", token.ULONG: "ulong", token.CHAR: "char",
	token.FLOAT_KW: "float", token.DOUBLE: "double", token.STRING_KW: "string",
	token.NAME: "name", token.OBJECT: "object", token.AUTO: "auto",
}

// parseQualifierPrefix consumes any of the leading-position qualifier
// keywords (const/constexpr/static/native/raw/weak/nobounds/noinit) and
// returns the accumulated bit-mask (spec §3 Qualifiers, spec §4.5 Type
// "optional qualifiers").
func (p *Parser) parseQualifierPrefix() ast.Qualifiers {
	var q ast.Qualifiers
	for {
		switch p.tok() {
		case token.CONST:
			q |= ast.QConst
		case token.CONSTEXPR:
			q |= ast.QConstExpr
		case token.STATIC:
			q |= ast.QStatic
		case token.NATIVE:
			q |= ast.QNative
		case token.RAW:
			q |= ast.QRaw
		case token.WEAK:
			q |= ast.QWeak
		case token.NOBOUNDS:
			q |= ast.QNoBounds
		case token.NOINIT:
			q |= ast.QNoInit
		case token.INLINE:
			q |= ast.QInline
		case token.TRANSIENT:
			q |= ast.QTransient
		case token.NOCOPY:
			q |= ast.QNoCopy
		case token.INTRINSIC:
			q |= ast.QIntrinsic
		default:
			return q
		}
		p.advance()
	}
}

// parseType parses a full type expression (spec §4.5 Type production):
// optional qualifiers, a base type, an optional function/delegate tail,
// any number of '[expr]'/'[]'/'*' suffixes, then trailing qualifiers.
func (p *Parser) parseType() *ast.Node {
	loc := p.loc()
	lead := p.parseQualifierPrefix()

	n := ast.NewNode(ast.KTypeNode, loc)
	n.Qualifiers = lead

	switch {
	case p.tok() == token.ARRAY:
		p.advance()
		p.expect(token.LT)
		elem := p.parseType()
		p.expect(token.GT)
		n.Text = "array"
		n.Add(elem)
	case p.tok() == token.ARRAY_VIEW:
		p.advance()
		p.expect(token.LT)
		elem := p.parseType()
		p.expect(token.GT)
		n.Text = "array_view"
		n.Add(elem)
	case p.tok() == token.FUNCTION || p.tok() == token.DELEGATE:
		isDelegate := p.tok() == token.DELEGATE
		p.advance()
		if isDelegate {
			n.Text = "delegate"
		} else {
			n.Text = "function"
		}
		n.Add(voidTypeNode(loc))
		p.expect(token.LPAREN)
		variadic := false
		for !p.at(token.RPAREN) && !p.at(token.EOF) {
			if p.at(token.ELLIPSIS) {
				variadic = true
				p.advance()
				break
			}
			n.Add(p.parseType())
			if !p.accept(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN)
		if variadic {
			n.Extra = true
		}
	default:
		if name, ok := builtinTypeNames[p.tok()]; ok {
			n.Text = name
			p.advance()
		} else if p.at(token.IDENT) {
			n.Text = p.parseQualifiedName()
			if p.at(token.LT) && p.looksLikeTemplateArgs() {
				n.Kind = ast.KTemplateInstanceExpr
				p.advance()
				for !p.at(token.GT) && !p.at(token.EOF) {
					n.Add(p.parseType())
					if !p.accept(token.COMMA) {
						break
					}
				}
				p.expect(token.GT)
			}
		} else {
			p.errorf("expected a type, got %s", p.tok())
			p.advance()
			return n
		}
	}

	// function/delegate tail: the base parsed above is actually the return
	// type, so re-wrap when a 'function(...)'/'delegate(...)' tail follows
	// a named base type (e.g. "int function(int) f;").
	for p.tok() == token.FUNCTION || p.tok() == token.DELEGATE {
		isDelegate := p.tok() == token.DELEGATE
		p.advance()
		tail := ast.NewNode(ast.KTypeNode, loc)
		if isDelegate {
			tail.Text = "delegate"
		} else {
			tail.Text = "function"
		}
		tail.Add(n)
		p.expect(token.LPAREN)
		variadic := false
		for !p.at(token.RPAREN) && !p.at(token.EOF) {
			if p.at(token.ELLIPSIS) {
				variadic = true
				p.advance()
				break
			}
			tail.Add(p.parseType())
			if !p.accept(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN)
		if variadic {
			tail.Extra = true
		}
		n = tail
	}

	// array/pointer suffixes.
	for {
		switch p.tok() {
		case token.LBRACK:
			p.advance()
			suf := ast.NewNode(ast.KTypeNode, p.loc())
			suf.Text = "[]"
			if !p.at(token.RBRACK) {
				suf.Extra = p.parseExpr()
			}
			p.expect(token.RBRACK)
			suf.Add(n)
			n = suf
		case token.STAR:
			p.advance()
			suf := ast.NewNode(ast.KTypeNode, p.loc())
			suf.Text = "*"
			suf.Add(n)
			n = suf
		default:
			goto suffixesDone
		}
	}
suffixesDone:

	// trailing qualifiers: 'const' and '&'.
	for {
		switch p.tok() {
		case token.CONST:
			n.Qualifiers |= ast.QConst
			p.advance()
		case token.AMP:
			n.Qualifiers |= ast.QReference
			p.advance()
		default:
			return n
		}
	}
}

// voidTypeNode builds a synthetic 'void' KTypeNode used as the implicit
// return type of a bare 'function(...)'/'delegate(...)' base type, so that
// Nodes[0] is always the return type regardless of whether the
// function/delegate came from the base-type or the tail-rewrap form.
func voidTypeNode(loc token.Location) *ast.Node {
	t := ast.NewNode(ast.KTypeNode, loc)
	t.Text = "void"
	return t
}

// looksLikeTemplateArgs speculatively checks whether a '<' following an
// identifier opens a template-argument list rather than a less-than
// comparison; used only in type position where the ambiguity is
// structural (spec §4.5 Template).
func (p *Parser) looksLikeTemplateArgs() bool {
	return true // in type position '<' always starts template args
}
