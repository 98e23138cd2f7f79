package parser

import (
	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/scope"
	"github.com/mna/lethec/lang/token"
)

// parseBlock parses a '{' stmt* '}' block, pushing a Local scope for the
// declarations it introduces (spec §4.5 Statement "block").
func (p *Parser) parseBlock() *ast.Node {
	loc := p.loc()
	p.expect(token.LBRACE)
	n := ast.NewNode(ast.KBlock, loc)
	s := p.pushScope(scope.Local, "", n)
	n.ScopeRef = s
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		if st := p.parseStmt(); st != nil {
			n.Add(st)
		}
	}
	p.expect(token.RBRACE)
	p.popScope()
	return n
}

func (p *Parser) parseStmt() *ast.Node {
	if !p.enterDepth() {
		return nil
	}
	defer p.exitDepth()

	switch p.tok() {
	case token.LBRACE:
		return p.parseBlock()
	case token.IF:
		return p.parseIf()
	case token.FOR:
		return p.parseFor()
	case token.WHILE:
		return p.parseWhile()
	case token.DO:
		return p.parseDo()
	case token.SWITCH:
		return p.parseSwitch()
	case token.BREAK:
		return p.parseBreakContinue(ast.KBreakStmt)
	case token.CONTINUE:
		return p.parseBreakContinue(ast.KContinueStmt)
	case token.RETURN:
		return p.parseReturn()
	case token.GOTO:
		return p.parseGoto()
	case token.DEFER:
		return p.parseDefer()
	case token.TYPEDEF:
		return p.parseTypedef()
	case token.USING:
		return p.parseUsing()
	case token.STATIC_ASSERT:
		return p.parseStaticAssert()
	case token.SEMI:
		p.advance()
		return nil
	case token.IDENT:
		// "name:" is a label; "name := expr" (IDENT COLON ASSIGN) is the
		// short variable-declaration form (spec §4.5) and must not be
		// mistaken for one.
		if p.src.PeekToken(0).Type == token.COLON && p.src.PeekToken(1).Type != token.ASSIGN {
			return p.parseLabel()
		}
		return p.parseSimpleOrExprStmt()
	default:
		return p.parseSimpleOrExprStmt()
	}
}

func (p *Parser) parseLabel() *ast.Node {
	loc := p.loc()
	name := p.cur.Value.Text
	p.advance()
	p.expect(token.COLON)
	n := ast.NewNode(ast.KLabelStmt, loc)
	n.Text = name
	p.curScope.AddLabel(name, n)
	return n
}

// parseIf handles the 'if (decl; cond) stmt [else stmt]' C++17-style
// initializer form as well as the plain form (spec §4.5 Statement).
// parseIf's children are laid out as [decl?, cond, then, else?]; Extra
// records whether the optional leading initializer declaration (spec
// §4.5's C++17-style "if" form) is present, since an absent optional
// child would otherwise be ambiguous with a following one at a fixed
// index.
func (p *Parser) parseIf() *ast.Node {
	loc := p.loc()
	p.advance()
	n := ast.NewNode(ast.KIfStmt, loc)
	p.expect(token.LPAREN)
	s := p.pushScope(scope.Local, "", n)
	n.ScopeRef = s
	hasDecl := p.looksLikeDeclStart()
	if hasDecl {
		n.Add(p.parseSimpleDecl())
		p.expect(token.SEMI)
	}
	n.Add(p.parseExpr())
	p.expect(token.RPAREN)
	n.Add(p.parseStmt())
	hasElse := false
	if p.accept(token.ELSE) {
		hasElse = true
		n.Add(p.parseStmt())
	}
	n.Extra = ifLayout{hasDecl: hasDecl, hasElse: hasElse}
	p.popScope()
	return n
}

// ifLayout records which optional children of a KIfStmt are present.
type ifLayout struct{ hasDecl, hasElse bool }

// IfLayout exposes ifLayout's fields so other packages (resolver,
// compiler) can read a KIfStmt's shape without reaching into an unexported
// type.
func IfLayout(n *ast.Node) (hasDecl, hasElse bool) {
	if l, ok := n.Extra.(ifLayout); ok {
		return l.hasDecl, l.hasElse
	}
	return false, false
}

func (p *Parser) parseWhile() *ast.Node {
	loc := p.loc()
	p.advance()
	n := ast.NewNode(ast.KWhileStmt, loc)
	p.expect(token.LPAREN)
	s := p.pushScope(scope.Loop, "", n)
	n.ScopeRef = s
	n.Add(p.parseExpr())
	p.expect(token.RPAREN)
	n.Add(p.parseStmt())
	p.popScope()
	return n
}

func (p *Parser) parseDo() *ast.Node {
	loc := p.loc()
	p.advance()
	n := ast.NewNode(ast.KDoStmt, loc)
	s := p.pushScope(scope.Loop, "", n)
	n.ScopeRef = s
	n.Add(p.parseStmt())
	p.expect(token.WHILE)
	p.expect(token.LPAREN)
	n.Add(p.parseExpr())
	p.expect(token.RPAREN)
	p.accept(token.SEMI)
	p.popScope()
	return n
}

// parseFor parses both the classic C-style 'for(init; cond; post)' and the
// range form 'for(decl : expr)'. The range form is rewritten into the
// classic form per spec §4.5: 'for (auto x : n)' becomes
// 'for (auto x = 0; x < n; ++x)'; an explicit element-typed form iterates
// the collection by index the same way (this front end does not attempt
// full iterator-protocol desugaring beyond the integer-range case the
// spec calls out as "the only range form supported").
func (p *Parser) parseFor() *ast.Node {
	loc := p.loc()
	p.advance()
	p.expect(token.LPAREN)
	s := p.pushScope(scope.Loop, "", nil)
	defer p.popScope()

	// The declaration (if any) is parsed exactly once; whether it is
	// followed by ':' (range form) or ';' (classic form) is then a single
	// token of lookahead, so no backtracking over the macro-aware token
	// stream is needed (spec §4.5's range-for rewrite).
	var head *ast.Node
	hasDecl := p.looksLikeDeclStart()
	if hasDecl {
		head = p.parseSimpleDecl()
	} else if !p.at(token.SEMI) && !p.at(token.COLON) {
		head = p.parseExpr()
	}

	if p.at(token.COLON) {
		p.advance()
		n := ast.NewNode(ast.KForInStmt, loc)
		n.ScopeRef = s
		s.Node = n
		n.Add(head)
		n.Add(p.parseExpr())
		p.expect(token.RPAREN)
		n.Add(p.parseStmt())
		return n
	}

	n := ast.NewNode(ast.KForStmt, loc)
	n.ScopeRef = s
	s.Node = n
	var layout forLayout
	if head != nil {
		n.Add(head)
		layout.hasInit = true
	}
	p.expect(token.SEMI)
	if !p.at(token.SEMI) {
		n.Add(p.parseExpr())
		layout.hasCond = true
	}
	p.expect(token.SEMI)
	if !p.at(token.RPAREN) {
		n.Add(p.parseExpr())
		layout.hasPost = true
	}
	p.expect(token.RPAREN)
	n.Add(p.parseStmt())
	n.Extra = layout
	return n
}

// forLayout records which optional clauses of a classic KForStmt are
// present, in the same spirit as ifLayout.
type forLayout struct{ hasInit, hasCond, hasPost bool }

// ForLayout exposes forLayout's fields for the resolver/compiler.
func ForLayout(n *ast.Node) (hasInit, hasCond, hasPost bool) {
	if l, ok := n.Extra.(forLayout); ok {
		return l.hasInit, l.hasCond, l.hasPost
	}
	return false, false, false
}

func (p *Parser) parseSwitch() *ast.Node {
	loc := p.loc()
	p.advance()
	n := ast.NewNode(ast.KSwitchStmt, loc)
	autoBreak := false
	if p.at(token.BREAK) {
		p.advance()
		autoBreak = true // switch break(e) form (spec §4.5): each case auto-breaks
	}
	n.Extra = autoBreak
	p.expect(token.LPAREN)
	s := p.pushScope(scope.Switch, "", n)
	n.ScopeRef = s
	n.Add(p.parseExpr())
	p.expect(token.RPAREN)
	p.expect(token.LBRACE)
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		n.Add(p.parseCaseClause(autoBreak))
	}
	p.expect(token.RBRACE)
	p.popScope()
	return n
}

// caseLayout records a KCaseClause's shape: whether it is 'default'
// (meaning its first child is not a label expression) and whether it
// auto-breaks (switch-break form, with no 'fallthrough' override).
type caseLayout struct {
	isDefault bool
	autoBreak bool
}

// CaseLayout exposes caseLayout's fields for the resolver/compiler.
func CaseLayout(n *ast.Node) (isDefault, autoBreak bool) {
	if l, ok := n.Extra.(caseLayout); ok {
		return l.isDefault, l.autoBreak
	}
	return false, false
}

func (p *Parser) parseCaseClause(switchAutoBreak bool) *ast.Node {
	loc := p.loc()
	n := ast.NewNode(ast.KCaseClause, loc)
	isDefault := true
	if p.accept(token.CASE) {
		isDefault = false
		n.Add(p.parseExpr())
	} else {
		p.expect(token.DEFAULT)
	}
	p.expect(token.COLON)
	fallthroughOverride := false
	if p.at(token.IDENT) && p.cur.Value.Text == "fallthrough" {
		fallthroughOverride = true
		p.advance()
	}
	for !p.at(token.CASE) && !p.at(token.DEFAULT) && !p.at(token.RBRACE) && !p.at(token.EOF) {
		if st := p.parseStmt(); st != nil {
			n.Add(st)
		}
	}
	n.Extra = caseLayout{isDefault: isDefault, autoBreak: switchAutoBreak && !fallthroughOverride}
	return n
}

func (p *Parser) parseBreakContinue(kind ast.Kind) *ast.Node {
	loc := p.loc()
	p.advance()
	n := ast.NewNode(kind, loc)
	if p.at(token.IDENT) {
		n.Text = p.cur.Value.Text
		p.advance()
	}
	p.accept(token.SEMI)
	return n
}

func (p *Parser) parseReturn() *ast.Node {
	loc := p.loc()
	p.advance()
	n := ast.NewNode(ast.KReturnStmt, loc)
	if !p.at(token.SEMI) {
		n.Add(p.parseExpr())
	}
	p.accept(token.SEMI)
	return n
}

func (p *Parser) parseGoto() *ast.Node {
	loc := p.loc()
	p.advance()
	n := ast.NewNode(ast.KGotoStmt, loc)
	n.Text = p.cur.Value.Text
	p.expect(token.IDENT)
	p.accept(token.SEMI)
	return n
}

func (p *Parser) parseDefer() *ast.Node {
	loc := p.loc()
	p.advance()
	n := ast.NewNode(ast.KDeferStmt, loc)
	n.Add(p.parseStmt())
	p.curScope.Deferred = append(p.curScope.Deferred, n)
	return n
}

func (p *Parser) parseStaticAssert() *ast.Node {
	loc := p.loc()
	p.advance()
	p.expect(token.LPAREN)
	n := ast.NewNode(ast.KStaticAssert, loc)
	n.Add(p.parseExpr())
	if p.accept(token.COMMA) {
		n.Text = p.cur.Value.Text
		p.expect(token.STRING)
	}
	p.expect(token.RPAREN)
	p.accept(token.SEMI)
	return n
}

func (p *Parser) parseTypedef() *ast.Node {
	loc := p.loc()
	p.advance()
	ty := p.parseType()
	n := ast.NewNode(ast.KTypedefDecl, loc)
	n.Text = p.cur.Value.Text
	p.expect(token.IDENT)
	n.Add(ty)
	p.accept(token.SEMI)
	p.curScope.AddMember(n.Text, n)
	return n
}

func (p *Parser) parseUsing() *ast.Node {
	loc := p.loc()
	p.advance()
	n := ast.NewNode(ast.KUsingDecl, loc)
	n.Text = p.cur.Value.Text
	p.expect(token.IDENT)
	p.expect(token.ASSIGN)
	n.Add(p.parseType())
	p.accept(token.SEMI)
	p.curScope.AddMember(n.Text, n)
	return n
}

// looksLikeDeclStart is the parser's declaration-vs-expression-statement
// disambiguator (spec §4.5 "disambiguated by look-ahead at '('"):
// a leading qualifier keyword or builtin type keyword or 'auto' always
// starts a declaration; a leading identifier starts a declaration only if
// it is followed, possibly after a '::'-qualified path or '<...>'
// template-argument list, by another identifier (the declared name).
func (p *Parser) looksLikeDeclStart() bool {
	switch p.tok() {
	case token.CONST, token.CONSTEXPR, token.STATIC, token.NATIVE, token.RAW,
		token.WEAK, token.NOBOUNDS, token.NOINIT, token.AUTO,
		token.VOID, token.BOOL, token.BYTE, token.SBYTE, token.SHORT, token.USHORT,
		token.INT_KW, token.UINT, token.LONG, token.ULONG, token.CHAR,
		token.FLOAT_KW, token.DOUBLE, token.STRING_KW, token.ARRAY, token.ARRAY_VIEW:
		return true
	case token.IDENT:
		// A plain identifier followed by another identifier names a type
		// then a variable/function name: "Foo bar".
		return p.src.PeekToken(0).Type == token.IDENT
	default:
		return false
	}
}

// parseSimpleOrExprStmt handles the remaining statement-position
// productions: a declaration (when looksLikeDeclStart), or an expression
// statement otherwise, including the 'name := expr' short form (spec
// §4.5, rewritten to 'auto name = expr').
func (p *Parser) parseSimpleOrExprStmt() *ast.Node {
	// "name := expr" lexes as IDENT COLON ASSIGN (':=' is not its own
	// operator token), so two tokens of lookahead distinguish it from a
	// label ("name:") and from a plain expression statement.
	if p.at(token.IDENT) && p.src.PeekToken(0).Type == token.COLON && p.src.PeekToken(1).Type == token.ASSIGN {
		return p.parseShortVarDecl()
	}
	if p.looksLikeDeclStart() {
		n := p.parseSimpleDecl()
		p.accept(token.SEMI)
		return n
	}
	loc := p.loc()
	n := ast.NewNode(ast.KExprStmt, loc)
	n.Add(p.parseExpr())
	p.accept(token.SEMI)
	return n
}

// parseShortVarDecl parses 'name := expr;', rewritten to 'auto name =
// expr;' (spec §4.5).
func (p *Parser) parseShortVarDecl() *ast.Node {
	loc := p.loc()
	name := p.cur.Value.Text
	p.advance() // ident
	p.advance() // ':'
	p.advance() // '='
	init := p.parseExpr()
	p.accept(token.SEMI)

	ty := ast.NewNode(ast.KTypeNode, loc)
	ty.Text = "auto"

	list := ast.NewNode(ast.KVarDecl, loc)
	list.Add(ty)
	v := ast.NewNode(ast.KVarDecl, loc)
	v.Text = name
	v.Add(init)
	list.Add(v)
	p.curScope.AddMember(name, v)
	return list
}

// parseSimpleDecl parses a single declaration statement (variable or
// typedef-like), used both at statement position and inside for/if/switch
// initializer clauses.
func (p *Parser) parseSimpleDecl() *ast.Node {
	return p.parseVarDeclList()
}
