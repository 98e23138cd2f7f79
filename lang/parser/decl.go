package parser

import (
	"github.com/mna/lethec/lang/ast"
	"github.com/mna/lethec/lang/scope"
	"github.com/mna/lethec/lang/token"
)

// parseDeclaration dispatches a single declaration at namespace/global or
// class-member position (spec §4.5's Declaration production table):
// typedef, using-alias, enum, class/struct, or the shared
// var-vs-function form disambiguated by look-ahead at '(' after the
// declared name.
func (p *Parser) parseDeclaration() *ast.Node {
	switch p.tok() {
	case token.TYPEDEF:
		return p.parseTypedef()
	case token.USING:
		return p.parseUsing()
	case token.ENUM:
		return p.parseEnumDecl()
	case token.CLASS, token.STRUCT:
		return p.parseClassDecl()
	case token.STATIC_ASSERT:
		return p.parseStaticAssert()
	case token.SEMI:
		p.advance()
		return nil
	default:
		return p.parseVarOrFuncDecl()
	}
}

// parseVarOrFuncDecl parses 'qualifiers type name ...': if name is
// followed by '(' it is a function declaration/definition, otherwise a
// variable declaration list (spec §4.5 "Declaration" / "Function" rows).
func (p *Parser) parseVarOrFuncDecl() *ast.Node {
	loc := p.loc()
	lead := p.parseQualifierPrefix()
	ty := p.parseType()
	ty.Qualifiers |= lead

	if !p.at(token.IDENT) {
		p.errorf("expected a declared name, got %s", p.tok())
		p.advance()
		return nil
	}
	name := p.cur.Value.Text

	if p.src.PeekToken(0).Type == token.LPAREN {
		return p.parseFunctionDecl(loc, lead, ty, name)
	}
	p.advance() // the name; parseFunctionDecl consumes it itself on the other branch
	return p.parseVarDeclListWith(loc, lead, ty, name)
}

// parseMemberVarOrFunc is parseVarOrFuncDecl's class-member counterpart:
// a method declaration is returned for the caller to add, while a data
// member declarator list is appended directly to owner as flat KField
// children (see parseFieldDeclList) and nil is returned.
func (p *Parser) parseMemberVarOrFunc(owner *ast.Node) *ast.Node {
	loc := p.loc()
	lead := p.parseQualifierPrefix()
	ty := p.parseType()
	ty.Qualifiers |= lead

	if !p.at(token.IDENT) {
		p.errorf("expected a declared name, got %s", p.tok())
		p.advance()
		return nil
	}
	name := p.cur.Value.Text

	if p.src.PeekToken(0).Type == token.LPAREN {
		fn := p.parseFunctionDecl(loc, lead, ty, name)
		if fn != nil {
			fn.Qualifiers |= ast.QMethod
		}
		return fn
	}
	p.advance() // the name
	p.parseFieldDeclList(owner, lead, ty, name)
	return nil
}

// parseVarDeclList parses a variable-declaration statement at statement
// position: 'qualifiers type declarator (, declarator)* ;' (spec §4.5).
// This entry point always starts a fresh type (used from statement and
// for/if/switch initializer position, where a function declaration is
// never valid).
func (p *Parser) parseVarDeclList() *ast.Node {
	loc := p.loc()
	lead := p.parseQualifierPrefix()
	ty := p.parseType()
	ty.Qualifiers |= lead
	name := p.cur.Value.Text
	p.expect(token.IDENT)
	return p.parseVarDeclListWith(loc, lead, ty, name)
}

// parseVarDeclListWith continues parsing a variable-declaration list once
// the shared type and first declared name have already been consumed by
// the caller (parseVarOrFuncDecl needs the name to decide var-vs-function
// before committing to this path). Used at statement/initializer
// position, where declarators are wrapped under one KVarDecl list node
// sharing a single type child.
func (p *Parser) parseVarDeclListWith(loc token.Location, lead ast.Qualifiers, ty *ast.Node, name string) *ast.Node {
	list := ast.NewNode(ast.KVarDecl, loc)
	list.Add(ty)
	for {
		v := p.parseDeclarator(ast.KVarDecl, ty, name, lead)
		list.Add(v)
		if !p.accept(token.COMMA) {
			break
		}
		if !p.at(token.IDENT) {
			p.errorf("expected a declarator name, got %s", p.tok())
			break
		}
		name = p.cur.Value.Text
		p.expect(token.IDENT)
	}
	p.accept(token.SEMI)
	return list
}

// parseFieldDeclList parses a class/struct data-member declaration list
// (spec §4.8 TypeGen expects a class's own members to be flat KField
// children, not wrapped in a KVarDecl list the way a statement-position
// declaration is): each declarator becomes its own KField node, carrying
// its own clone of ty as its first child, and is appended directly to
// owner instead of returned.
func (p *Parser) parseFieldDeclList(owner *ast.Node, lead ast.Qualifiers, ty *ast.Node, name string) {
	for {
		f := p.parseDeclarator(ast.KField, ty, name, lead)
		f.Nodes = append([]*ast.Node{ty.Clone()}, f.Nodes...)
		for _, c := range f.Nodes {
			c.Parent = f
		}
		owner.Add(f)
		if !p.accept(token.COMMA) {
			break
		}
		if !p.at(token.IDENT) {
			p.errorf("expected a declarator name, got %s", p.tok())
			break
		}
		name = p.cur.Value.Text
		p.expect(token.IDENT)
	}
	p.accept(token.SEMI)
}

// parseDeclarator parses one name in a declaration list: an optional
// bit-field width, an optional array suffix, and an optional initializer
// (either '= expr' or a braced initializer list, spec §4.5 "A variable
// declaration with a struct type and '{ ... }' initializer becomes an
// initializer list"). kind is ast.KVarDecl for an ordinary local/global
// or ast.KField for a class/struct data member.
//
// A 'state'-qualified local inside a method body is relocated to a
// persistent per-instance field on the enclosing class (a supplemented
// feature: the original "state class" design keeps such locals alive
// across calls instead of re-initializing them on the stack every time).
// The declarator returned to the caller's block becomes an alias marker
// (Extra holds the synthesized field name) rather than an ordinary local.
func (p *Parser) parseDeclarator(kind ast.Kind, ty *ast.Node, name string, lead ast.Qualifiers) *ast.Node {
	loc := p.loc()
	v := ast.NewNode(kind, loc)
	v.Text = name
	v.Qualifiers = lead

	if p.accept(token.COLON) {
		v.Qualifiers |= ast.QBitfield
		v.BitSize = int(p.cur.Value.Int)
		p.expect(token.INT)
	}
	for p.at(token.LBRACK) {
		p.advance()
		suf := ast.NewNode(ast.KTypeNode, p.loc())
		suf.Text = "[]"
		if !p.at(token.RBRACK) {
			suf.Extra = p.parseExpr()
		}
		p.expect(token.RBRACK)
		v.Add(suf)
	}
	if p.accept(token.ASSIGN) {
		if p.at(token.LBRACE) {
			v.Add(p.parseInitList())
		} else {
			v.Add(p.parseAssign())
		}
	} else if p.at(token.LBRACE) {
		v.Add(p.parseInitList())
	}

	if kind == ast.KVarDecl && v.Qualifiers.Has(ast.QState) {
		if relocated := p.relocateStateVar(v, ty); relocated != nil {
			p.curScope.AddMember(name, relocated)
			return relocated
		}
	}
	p.curScope.AddMember(name, v)
	return v
}

// relocateStateVar implements the state-variable relocation described at
// parseDeclarator: a 'state' local found inside a Function scope nested
// in a Class/Struct scope is duplicated as a KField on the enclosing
// class (named "state$func$local" to avoid colliding with same-named
// locals in sibling methods) and registered in the class's member table.
// ty is the declaration's shared type node (a sibling of v in the
// ordinary KVarDecl-list shape), cloned here since the relocated field
// is a standalone node outside that list. Returns nil (no relocation)
// when not inside a class method.
func (p *Parser) relocateStateVar(v, ty *ast.Node) *ast.Node {
	fn := p.curScope.EnclosingOfType(scope.Function)
	cls := p.curScope.EnclosingOfType(scope.Class)
	if cls == nil {
		cls = p.curScope.EnclosingOfType(scope.Struct)
	}
	if fn == nil || cls == nil || cls.Node == nil {
		return nil
	}
	fieldName := "state$" + fn.Name + "$" + v.Text

	field := ast.NewNode(ast.KField, v.Loc)
	field.Text = fieldName
	field.Qualifiers = v.Qualifiers
	if ty != nil {
		field.Add(ty.Clone())
	}
	field.Nodes = append(field.Nodes, v.Nodes...)
	for _, c := range field.Nodes {
		c.Parent = field
	}
	cls.AddMember(fieldName, field)
	cls.Node.Add(field)

	alias := ast.NewNode(ast.KVarDecl, v.Loc)
	alias.Text = v.Text
	alias.Qualifiers = v.Qualifiers
	alias.Extra = fieldName
	return alias
}

// parseEnumDecl parses 'enum [class|struct] [name] [: underlying] {
// item [= expr], ... }' (spec §4.5 "Enum").
func (p *Parser) parseEnumDecl() *ast.Node {
	loc := p.loc()
	p.advance()
	n := ast.NewNode(ast.KEnumDecl, loc)
	if p.accept(token.CLASS) {
		n.Qualifiers |= ast.QEnumClass
	} else {
		p.accept(token.STRUCT)
	}
	if p.at(token.IDENT) {
		n.Text = p.cur.Value.Text
		p.advance()
	}
	if p.accept(token.COLON) {
		n.Add(p.parseType())
	}
	p.expect(token.LBRACE)
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		item := ast.NewNode(ast.KEnumItem, p.loc())
		item.Text = p.cur.Value.Text
		p.expect(token.IDENT)
		if p.accept(token.ASSIGN) {
			item.Add(p.parseAssign())
		}
		n.Add(item)
		if !p.accept(token.COMMA) {
			break
		}
	}
	p.expect(token.RBRACE)
	p.accept(token.SEMI)
	if n.Text != "" {
		p.curScope.AddMember(n.Text, n)
	}
	return n
}

// parseTemplateParams parses the '<T,U,...>' parameter list on a class or
// struct (spec §4.5 "Template": "on a struct/class, '<T,U,...>' after the
// name creates template parameters; inside the body each parameter is
// injected as a placeholder typedef"), registering each parameter as a
// placeholder typedef in s so member declarations can refer to it as an
// ordinary type name.
func (p *Parser) parseTemplateParams(s *scope.Scope) []*ast.Node {
	var params []*ast.Node
	if !p.accept(token.LT) {
		return nil
	}
	for !p.at(token.GT) && !p.at(token.EOF) {
		p.accept(token.CLASS) // optional 'class T' spelling
		loc := p.loc()
		name := p.cur.Value.Text
		p.expect(token.IDENT)
		tp := ast.NewNode(ast.KTemplateParam, loc)
		tp.Text = name
		params = append(params, tp)

		placeholder := ast.NewNode(ast.KTypedefDecl, loc)
		placeholder.Text = name
		s.AddMember(name, placeholder)

		if !p.accept(token.COMMA) {
			break
		}
	}
	p.expect(token.GT)
	return params
}

// parseClassDecl parses a class or struct declaration: '(class|struct)
// name[<T,...>] [: base] { members }' or the header-open alternative
// ': name { members endclass; }' form (spec §4.5 "Class/struct").
func (p *Parser) parseClassDecl() *ast.Node {
	loc := p.loc()
	isClass := p.at(token.CLASS)
	p.advance()

	n := ast.NewNode(ast.KClassDecl, loc)
	if isClass {
		n.Extra = "class"
	} else {
		n.Extra = "struct"
	}

	name := ""
	if p.at(token.IDENT) {
		name = p.cur.Value.Text
		p.advance()
	}
	n.Text = name

	scopeType := scope.Struct
	if isClass {
		scopeType = scope.Class
	}
	s := p.pushScope(scopeType, name, n)
	n.ScopeRef = s
	n.SymScopeRef = s

	for _, tp := range p.parseTemplateParams(s) {
		n.Add(tp)
		n.Qualifiers |= ast.QTemplate
	}

	if p.accept(token.COLON) {
		base := ast.NewNode(ast.KTypeNode, p.loc())
		base.Text = p.parseQualifiedName()
		n.Add(base)
	}

	expectEndclass := false
	if !p.accept(token.LBRACE) {
		// header-open alternative: ': name { members endclass; }' already
		// consumed its ':' above as the base clause; this form instead
		// omits the brace here only when the base clause itself opened the
		// body, which the grammar marks by immediately following with
		// 'endclass' instead of a matching '}'.
		expectEndclass = true
	}

	for !p.at(token.RBRACE) && !p.at(token.ENDCLASS) && !p.at(token.EOF) {
		if m := p.parseClassMember(n, s); m != nil {
			n.Add(m)
		}
	}
	if expectEndclass {
		p.expect(token.ENDCLASS)
	} else {
		p.expect(token.RBRACE)
	}
	p.accept(token.SEMI)

	p.synthesizeCtorIfNeeded(n, s)

	p.popScope()
	if name != "" {
		p.curScope.AddMember(name, n)
	}
	return n
}

// parseClassMember parses one member declaration inside a class/struct
// body: a nested type, a constructor/destructor/operator overload, an
// ordinary method, or a data field (possibly a bit-field).
func (p *Parser) parseClassMember(owner *ast.Node, s *scope.Scope) *ast.Node {
	switch p.tok() {
	case token.TYPEDEF:
		return p.parseTypedef()
	case token.USING:
		return p.parseUsing()
	case token.ENUM:
		return p.parseEnumDecl()
	case token.CLASS, token.STRUCT:
		return p.parseClassDecl()
	case token.STATIC_ASSERT:
		return p.parseStaticAssert()
	case token.SEMI:
		p.advance()
		return nil
	}

	attrs := p.parseMemberAttributes()

	if p.at(token.TILDE) {
		return p.applyAttrs(p.parseDtor(owner, s), attrs)
	}
	if p.at(token.IDENT) && p.cur.Value.Text == owner.Text && p.src.PeekToken(0).Type == token.LPAREN {
		return p.applyAttrs(p.parseCtor(owner, s), attrs)
	}
	if p.at(token.OPERATOR) {
		return p.applyAttrs(p.parseOperatorDecl(owner, s), attrs)
	}
	return p.applyAttrs(p.parseMemberVarOrFunc(owner), attrs)
}

func (p *Parser) applyAttrs(n *ast.Node, attrs ast.Qualifiers) *ast.Node {
	if n != nil {
		n.Qualifiers |= attrs
	}
	return n
}

// parseMemberAttributes consumes leading access-specifier and
// virtual/override/final keywords that precede a class member
// declaration, independent of the '[...]' attribute-list form already
// handled by parseAttributedDecl at statement/namespace position.
func (p *Parser) parseMemberAttributes() ast.Qualifiers {
	var q ast.Qualifiers
	for {
		switch p.tok() {
		case token.PUBLIC:
			q |= ast.QPublic
		case token.PROTECTED:
			q |= ast.QProtected
		case token.PRIVATE:
			q |= ast.QPrivate
		case token.VIRTUAL:
			q |= ast.QVirtual
		case token.OVERRIDE:
			q |= ast.QOverride
		case token.FINAL:
			q |= ast.QFinal
		case token.PROPERTY:
			q |= ast.QProperty
		case token.EDITABLE:
			q |= ast.QEditable
		case token.PLACEABLE:
			q |= ast.QPlaceable
		case token.LATENT:
			q |= ast.QLatent
		case token.STATE:
			q |= ast.QState
		default:
			return q
		}
		p.advance()
	}
}

// parseCtor parses a constructor definition (name matches the enclosing
// class/struct name). Defining one explicit constructor suppresses the
// synthesized empty constructor (spec §4.5).
func (p *Parser) parseCtor(owner *ast.Node, s *scope.Scope) *ast.Node {
	loc := p.loc()
	name := p.cur.Value.Text
	p.advance()
	n := ast.NewNode(ast.KFuncDecl, loc)
	n.Text = name
	n.Qualifiers |= ast.QCtor | ast.QMethod
	p.parseParamsAndBody(n, s)
	s.CtorDefined = true
	return n
}

// parseDtor parses a destructor definition ('~Name() { ... }').
func (p *Parser) parseDtor(owner *ast.Node, s *scope.Scope) *ast.Node {
	loc := p.loc()
	p.advance() // '~'
	n := ast.NewNode(ast.KFuncDecl, loc)
	n.Text = "~" + p.cur.Value.Text
	p.expect(token.IDENT)
	n.Qualifiers |= ast.QDtor | ast.QMethod
	p.parseParamsAndBody(n, s)
	return n
}

// parseOperatorDecl parses an operator-overload method ('operator+(...)
// { ... }'), registered on the enclosing scope's operator list (spec §3
// NamedScope.operators) rather than its member table since operators are
// looked up by signature, not by name.
func (p *Parser) parseOperatorDecl(owner *ast.Node, s *scope.Scope) *ast.Node {
	loc := p.loc()
	p.advance() // 'operator'
	opText := tokenText(p.cur)
	p.advance()
	n := ast.NewNode(ast.KFuncDecl, loc)
	n.Text = "operator" + opText
	n.Qualifiers |= ast.QOperator | ast.QMethod
	p.parseParamsAndBody(n, s)
	s.AddOperator(n)
	return n
}

// parseFunctionDecl parses a free (non-method) function: 'type name(args)
// qualifiers { body }', the '... => expr;' expression-body form (wrapped
// in an implicit return), or ';' for a native declaration (spec §4.5
// "Function").
func (p *Parser) parseFunctionDecl(loc token.Location, lead ast.Qualifiers, retType *ast.Node, name string) *ast.Node {
	p.advance() // the name
	n := ast.NewNode(ast.KFuncDecl, loc)
	n.Text = name
	n.Qualifiers = lead
	n.Add(retType)
	p.parseParamsAndBody(n, p.curScope)
	p.curScope.AddMember(name, n)
	return n
}

// parseParamsAndBody parses '(params) [qualifiers] (body | => expr ; |
// ;)', shared by free functions, constructors, destructors and operator
// overloads. It pushes an Args scope for the parameters and, when a body
// follows, a nested Function scope for its locals.
func (p *Parser) parseParamsAndBody(n *ast.Node, enclosing *scope.Scope) {
	args := scope.New(scope.Args, n.Text, enclosing)
	args.Node = n
	save := p.curScope
	p.curScope = args

	p.expect(token.LPAREN)
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		n.Add(p.parseParam())
		if !p.accept(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN)

	n.Qualifiers |= p.parseQualifierPrefix()
	for {
		switch p.tok() {
		case token.OVERRIDE:
			n.Qualifiers |= ast.QOverride
			p.advance()
		case token.FINAL:
			n.Qualifiers |= ast.QFinal
			p.advance()
		case token.VIRTUAL:
			n.Qualifiers |= ast.QVirtual
			p.advance()
		default:
			goto qualsDone
		}
	}
qualsDone:

	fnScope := scope.New(scope.Function, n.Text, args)
	fnScope.Node = n
	p.curScope = fnScope
	// ScopeRef points at the function scope (not the args scope) so the
	// resolver can reach both via fnScope and fnScope.Parent without a
	// separate field; args.Node == fnScope.Node == n ties all three together.
	n.ScopeRef = fnScope
	n.SymScopeRef = fnScope

	switch {
	case p.at(token.LBRACE):
		n.Add(p.parseBlock())
	case p.accept(token.ARROW):
		// '=> expr;' expression body, wrapped in an implicit return (spec
		// §4.5 "Function").
		bloc := p.loc()
		body := ast.NewNode(ast.KBlock, bloc)
		ret := ast.NewNode(ast.KReturnStmt, bloc)
		ret.Add(p.parseExpr())
		body.Add(ret)
		p.accept(token.SEMI)
		n.Add(body)
	default:
		n.Qualifiers |= ast.QNative
		p.accept(token.SEMI)
	}

	p.curScope = save
}

func (p *Parser) parseParam() *ast.Node {
	loc := p.loc()
	n := ast.NewNode(ast.KParam, loc)
	ty := p.parseType()
	n.Add(ty)
	if p.at(token.IDENT) {
		n.Text = p.cur.Value.Text
		p.advance()
		p.curScope.AddMember(n.Text, n)
	}
	if p.accept(token.ASSIGN) {
		n.Add(p.parseAssign())
	}
	return n
}

// synthesizeCtorIfNeeded implements "for each class/struct without an
// explicit constructor, if any member has an in-class initializer the
// parser synthesizes an empty constructor node so that codegen can emit
// member initialization" (spec §4.5).
func (p *Parser) synthesizeCtorIfNeeded(n *ast.Node, s *scope.Scope) {
	if s.CtorDefined {
		return
	}
	var inits []*ast.Node
	for _, m := range n.Nodes {
		if m.Kind != ast.KField || len(m.Nodes) == 0 {
			continue
		}
		last := m.Nodes[len(m.Nodes)-1]
		if last.Kind == ast.KTypeNode {
			continue // only array-suffix children, no initializer
		}
		inits = append(inits, m)
	}
	if len(inits) == 0 {
		return
	}

	loc := n.Loc
	ctor := ast.NewNode(ast.KFuncDecl, loc)
	ctor.Text = n.Text
	ctor.Qualifiers |= ast.QCtor | ast.QMethod

	body := ast.NewNode(ast.KBlock, loc)
	for _, field := range inits {
		init := field.Nodes[len(field.Nodes)-1]
		lhs := ast.NewNode(ast.KDotExpr, loc)
		lhs.Text = field.Text
		this := ast.NewNode(ast.KIdentExpr, loc)
		this.Text = "this"
		lhs.Add(this)

		assign := ast.NewNode(ast.KAssignExpr, loc)
		assign.Text = "="
		assign.Add(lhs)
		assign.Add(init.Clone())

		stmt := ast.NewNode(ast.KExprStmt, loc)
		stmt.Add(assign)
		body.Add(stmt)
	}
	ctor.Add(body)
	n.Add(ctor)
	s.CtorDefined = true
}
