package schema

import (
	"strings"
	"testing"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer_Tokens(t *testing.T) {
	t.Parallel()

	lex, err := Lexer.Lex("test.ts", strings.NewReader("id?: string | null // trailing\n"))
	require.NoError(t, err)

	tokens, err := lexer.ConsumeAll(lex)
	require.NoError(t, err)

	var types []lexer.TokenType
	for _, tok := range tokens {
		types = append(types, tok.Type)
	}

	assert.Equal(t, []lexer.TokenType{
		tIdent, tOp, tColon, tWhitespace, tIdent, tWhitespace, tOp, tWhitespace, tIdent,
		tWhitespace, tComment, tNewline, tEOF,
	}, types)
}

func TestTokenize_DropsTrivia(t *testing.T) {
	t.Parallel()

	tokens := tokenize("", "/* block */ a: 'x'\n  b: `multi\nline`")

	var values []string
	for _, tok := range tokens {
		values = append(values, tok.Value)
	}

	assert.Equal(t, []string{"a", ":", "'x'", "\n  ", "b", ":", "`multi\nline`", ""}, values)
	assert.Equal(t, 2, tokens[4].Pos.Line)
}

func TestTokenize_UnterminatedString(t *testing.T) {
	t.Parallel()

	tokens := tokenize("", "a: \"open\nb: string")

	// The broken string stops at the line end; b is still reachable.
	require.Len(t, tokens, 8)
	assert.Equal(t, `"open`, tokens[2].Value)
	assert.Equal(t, "b", tokens[4].Value)
}

func TestLexer_StringDefinition(t *testing.T) {
	t.Parallel()

	def, ok := Lexer.(lexer.StringDefinition)
	require.True(t, ok)

	lex, err := def.LexString("test.ts", "Row: {\n  id: string\n}")
	require.NoError(t, err)

	all, err := lexer.ConsumeAll(lex)
	require.NoError(t, err)

	var kept []lexer.Token
	for _, tok := range all {
		if tok.Type != tComment && tok.Type != tWhitespace {
			kept = append(kept, tok)
		}
	}

	assert.Equal(t, kept, tokenize("test.ts", "Row: {\n  id: string\n}"))
}
