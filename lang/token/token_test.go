package token_test

import (
	"testing"

	"github.com/mna/lethec/lang/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKeyword(t *testing.T) {
	cases := []struct {
		ident string
		want  token.Token
	}{
		{"class", token.CLASS},
		{"struct", token.STRUCT},
		{"while", token.WHILE},
		{"endmacro", token.ENDMACRO},
		{"notakeyword", token.IDENT},
		{"Class", token.IDENT}, // case-sensitive
	}
	for _, c := range cases {
		tok, ok := token.Lookup(c.ident)
		require.Equal(t, c.want, tok, c.ident)
		if c.want == token.IDENT {
			assert.False(t, ok)
		} else {
			assert.True(t, ok)
		}
	}
}

func TestTokenClasses(t *testing.T) {
	assert.True(t, token.CLASS.IsKeyword())
	assert.False(t, token.IDENT.IsKeyword())
	assert.True(t, token.IDENT.IsLiteral())
	assert.True(t, token.STRING.IsLiteral())
	assert.True(t, token.PLUS.IsOperator())
	assert.False(t, token.CLASS.IsOperator())
}

func TestTokenString(t *testing.T) {
	assert.Equal(t, "class", token.CLASS.String())
	assert.Equal(t, "+", token.PLUS.String())
	assert.Equal(t, "EOF", token.EOF.String())
}

func TestLocationString(t *testing.T) {
	loc := token.Location{File: "a.le", Line: 3, Column: 5}
	assert.Equal(t, "a.le:3:5", loc.String())
	assert.True(t, loc.IsValid())
	assert.False(t, token.Unknown.IsValid())
}
