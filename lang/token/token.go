// Package token defines the lexical tokens of the Lethe language and a
// handful of helpers (keyword lookup, numeric-literal flags) shared by the
// lexer, macro engine and parser.
package token

import "sort"

// Token identifies the lexical class of a token. Keyword tokens are all
// numerically between keywordBeg and keywordEnd, so "is this a keyword" is
// a single range test, as required by the lexer's identifier path.
type Token int16

const (
	ILLEGAL Token = iota
	EOF
	COMMENT
	DIRECTIVE // a '#line' or other '#' directive head, consumed by the token stream

	literalBeg
	IDENT  // foo
	INT    // 123, 0x7F, 0b101, 1'000
	FLOAT  // 1.2, 1.2f, 1.2e10
	CHAR   // 'c'
	NAME   // 'name' -- single-quoted interned name literal
	STRING // "abc", """raw"""
	literalEnd

	operatorBeg
	PLUS       // +
	MINUS      // -
	STAR       // *
	SLASH      // /
	PERCENT    // %
	AMP        // &
	PIPE       // |
	CARET      // ^
	TILDE      // ~
	SHL        // <<
	SHR        // >>
	USHR       // >>>
	LAND       // &&
	LOR        // ||
	NOT        // !
	LT         // <
	GT         // >
	LE         // <=
	GE         // >=
	EQ         // ==
	NE         // !=
	SAME       // ===
	NSAME      // !==
	SPACESHIP  // <=>
	ASSIGN     // =
	PLUS_EQ    // +=
	MINUS_EQ   // -=
	STAR_EQ    // *=
	SLASH_EQ   // /=
	PERCENT_EQ // %=
	AMP_EQ     // &=
	PIPE_EQ    // |=
	CARET_EQ   // ^=
	SHL_EQ     // <<=
	SHR_EQ     // >>=
	USHR_EQ    // >>>=
	LAND_EQ    // &&=
	LOR_EQ     // ||=
	INC        // ++
	DEC        // --
	LPAREN
	RPAREN
	LBRACK
	RBRACK
	LBRACE
	RBRACE
	COMMA
	SEMI
	COLON
	COLONCOLON // ::
	DOT        // .
	DOTDOT     // ..
	ELLIPSIS   // ...
	DOTSTAR    // .*
	ARROW      // ->
	ARROWSTAR  // ->*
	DASHARROW  // <-> (bidirectional delegate bind)
	QUESTION   // ?
	HASH       // # (directive head, before the directive keyword is read)
	operatorEnd

	keywordBeg
	ALIGNAS
	ALIGNOF
	AND
	ARRAY
	ARRAY_VIEW
	AUTO
	BITFIELD
	BOOL
	BREAK
	BYTE
	CASE
	CAST
	CATCH
	CLASS
	CONST
	CONSTEXPR
	CONTINUE
	DEFAULT
	DEFER
	DELEGATE
	DEPRECATED
	DO
	DOUBLE
	EDITABLE
	ELSE
	ENDCLASS
	ENDIF
	ENDMACRO
	ENUM
	FALSE
	FINAL
	FLOAT_KW
	FOR
	FORMAT
	FUNCTION
	GOTO
	IGNORES
	IMPORT
	INLINE
	INT_KW
	INTRINSIC
	LABEL
	LATENT
	LATIN1
	LOAD
	LONG
	MACRO
	NAMESPACE
	NATIVE
	NEW
	NOBOUNDS
	NOBREAK
	NOCOPY
	NOINIT
	NONTRIVIAL
	NULL
	NULLPTR
	OBJECT
	OFFSETOF
	OPERATOR
	OVERRIDE
	PLACEABLE
	PRIVATE
	PROPERTY
	PROTECTED
	PUBLIC
	RAW
	RETURN
	SBYTE
	SHORT
	SIZEOF
	STATE
	STATEBREAK
	STATIC
	STATIC_ASSERT
	STRING_KW
	STRUCT
	SWITCH
	THIS
	TRANSIENT
	TRUE
	TYPEDEF
	TYPEID
	UINT
	ULONG
	USHORT
	USING
	VIRTUAL
	VOID
	WEAK
	WHILE
	keywordEnd

	maxToken
)

// IsKeyword reports whether tok is one of the reserved words.
func (tok Token) IsKeyword() bool { return tok > keywordBeg && tok < keywordEnd }

// IsLiteral reports whether tok is an identifier or literal token.
func (tok Token) IsLiteral() bool { return tok > literalBeg && tok < literalEnd }

// IsOperator reports whether tok is a punctuation/operator token.
func (tok Token) IsOperator() bool { return tok > operatorBeg && tok < operatorEnd }

var tokenNames = map[Token]string{
	ILLEGAL: "ILLEGAL", EOF: "EOF", COMMENT: "COMMENT", DIRECTIVE: "DIRECTIVE",
	IDENT: "IDENT", INT: "INT", FLOAT: "FLOAT", CHAR: "CHAR", NAME: "NAME", STRING: "STRING",

	PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%",
	AMP: "&", PIPE: "|", CARET: "^", TILDE: "~",
	SHL: "<<", SHR: ">>", USHR: ">>>",
	LAND: "&&", LOR: "||", NOT: "!",
	LT: "<", GT: ">", LE: "<=", GE: ">=", EQ: "==", NE: "!=",
	SAME: "===", NSAME: "!==", SPACESHIP: "<=>",
	ASSIGN: "=", PLUS_EQ: "+=", MINUS_EQ: "-=", STAR_EQ: "*=", SLASH_EQ: "/=",
	PERCENT_EQ: "%=", AMP_EQ: "&=", PIPE_EQ: "|=", CARET_EQ: "^=",
	SHL_EQ: "<<=", SHR_EQ: ">>=", USHR_EQ: ">>>=", LAND_EQ: "&&=", LOR_EQ: "||=",
	INC: "++", DEC: "--",
	LPAREN: "(", RPAREN: ")", LBRACK: "[", RBRACK: "]", LBRACE: "{", RBRACE: "}",
	COMMA: ",", SEMI: ";", COLON: ":", COLONCOLON: "::",
	DOT: ".", DOTDOT: "..", ELLIPSIS: "...", DOTSTAR: ".*",
	ARROW: "->", ARROWSTAR: "->*", DASHARROW: "<->", QUESTION: "?", HASH: "#",

	ALIGNAS: "alignas", ALIGNOF: "alignof", AND: "and", ARRAY: "array",
	ARRAY_VIEW: "array_view", AUTO: "auto", BITFIELD: "bitfield", BOOL: "bool",
	BREAK: "break", BYTE: "byte", CASE: "case", CAST: "cast", CATCH: "catch",
	CLASS: "class", CONST: "const", CONSTEXPR: "constexpr", CONTINUE: "continue",
	DEFAULT: "default", DEFER: "defer", DELEGATE: "delegate", DEPRECATED: "deprecated",
	DO: "do", DOUBLE: "double", EDITABLE: "editable", ELSE: "else",
	ENDCLASS: "endclass", ENDIF: "endif", ENDMACRO: "endmacro", ENUM: "enum",
	FALSE: "false", FINAL: "final", FLOAT_KW: "float", FOR: "for", FORMAT: "format",
	FUNCTION: "function", GOTO: "goto", IGNORES: "ignores", IMPORT: "import",
	INLINE: "inline", INT_KW: "int", INTRINSIC: "intrinsic", LABEL: "label",
	LATENT: "latent", LATIN1: "latin1", LOAD: "load", LONG: "long", MACRO: "macro",
	NAMESPACE: "namespace",
	NATIVE: "native", NEW: "new", NOBOUNDS: "nobounds", NOBREAK: "nobreak", NOCOPY: "nocopy",
	NOINIT: "noinit", NONTRIVIAL: "nontrivial", NULL: "null", NULLPTR: "nullptr",
	OBJECT: "object", OFFSETOF: "offsetof", OPERATOR: "operator", OVERRIDE: "override",
	PLACEABLE: "placeable", PRIVATE: "private", PROPERTY: "property",
	PROTECTED: "protected", PUBLIC: "public", RAW: "raw", RETURN: "return",
	SBYTE: "sbyte", SHORT: "short", SIZEOF: "sizeof", STATE: "state",
	STATEBREAK: "statebreak", STATIC: "static", STATIC_ASSERT: "static_assert",
	STRING_KW: "string", STRUCT: "struct", SWITCH: "switch", THIS: "this",
	TRANSIENT: "transient", TRUE: "true", TYPEDEF: "typedef", TYPEID: "typeid",
	UINT: "uint", ULONG: "ulong", USHORT: "ushort", USING: "using",
	VIRTUAL: "virtual", VOID: "void", WEAK: "weak", WHILE: "while",
}

func (tok Token) String() string {
	if s, ok := tokenNames[tok]; ok {
		return s
	}
	return "<unknown token>"
}

var (
	keywords       map[string]Token
	sortedKeywords []string
)

func init() {
	keywords = make(map[string]Token, keywordEnd-keywordBeg-1)
	for tok := keywordBeg + 1; tok < keywordEnd; tok++ {
		if name, ok := tokenNames[tok]; ok {
			keywords[name] = tok
		}
	}
	sortedKeywords = make([]string, 0, len(keywords))
	for k := range keywords {
		sortedKeywords = append(sortedKeywords, k)
	}
	sort.Strings(sortedKeywords)
}

// Lookup returns the keyword token for ident, or (IDENT, false) if ident is
// not a reserved word. The lookup is a binary search over the sorted
// keyword table, per spec §4.1.
func Lookup(ident string) (Token, bool) {
	i := sort.SearchStrings(sortedKeywords, ident)
	if i < len(sortedKeywords) && sortedKeywords[i] == ident {
		return keywords[ident], true
	}
	return IDENT, false
}

// NumberFlag is a bit-mask of numeric-literal suffix/kind markers recorded
// on a Value for INT/FLOAT tokens.
type NumberFlag uint8

const (
	NumUnsigned NumberFlag = 1 << iota
	NumLong
	NumFloat32 // explicit 'f' suffix, or default-mode unsuffixed float
	NumFloat64 // 'd' suffix, or double-mode unsuffixed float
	NumOverflow
)

// Value carries the decoded payload of a literal token: text, numeric value
// and suffix flags. Exactly one of Int/Float is meaningful, depending on
// whether the token is INT or FLOAT.
type Value struct {
	Text  string
	Int   int64
	Float float64
	Flags NumberFlag
	Raw   bool // string was a """raw""" literal
}
