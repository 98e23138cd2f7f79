package macro

import "github.com/mna/lethec/lang/token"

// Tok is a self-contained token: the macro engine must be able to store,
// clone and re-deliver tokens independently of the lexer that produced
// them (macro bodies, argument captures, synthesized tokens), unlike the
// lexer which only ever exposes the current/peeked token.
type Tok struct {
	Type  token.Token
	Value token.Value
	Loc   token.Location
}
