package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTypes(t *testing.T, src string) []TokenType {
	t.Helper()
	toks, err := lex(src)
	require.NoError(t, err)
	out := make([]TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestLexFilterExpression(t *testing.T) {
	got := tokenTypes(t, "output = input[input.Value > 15]")
	want := []TokenType{IDENT, ASSIGN, IDENT, LBRACKET, IDENT, DOT, IDENT, GREATER, NUMBER, RBRACKET, EOF}
	assert.Equal(t, want, got)
}

func TestLexStringsAndComments(t *testing.T) {
	toks, err := lex("x = 'a b' # trailing comment\ny = \"c\\n\"")
	require.NoError(t, err)

	assert.Equal(t, "a b", toks[2].Str)
	assert.Equal(t, NEWLINE, toks[3].Type)
	assert.Equal(t, "c\n", toks[6].Str)
}

func TestLexKeywordOperators(t *testing.T) {
	got := tokenTypes(t, "a and b or not c")
	want := []TokenType{IDENT, AND, IDENT, OR, BANG, IDENT, EOF}
	assert.Equal(t, want, got)
}

func TestLexPositions(t *testing.T) {
	toks, err := lex("a = 1\n  b = 2")
	require.NoError(t, err)

	// "b" is on line 2, column 3.
	var b Token
	for _, tok := range toks {
		if tok.Lexeme == "b" {
			b = tok
		}
	}
	assert.Equal(t, 2, b.Line)
	assert.Equal(t, 3, b.Col)
}

func TestLexErrors(t *testing.T) {
	_, err := lex("x = 'unterminated")
	require.Error(t, err)

	_, err = lex("x = a & b")
	require.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	_, err := parse("output = ")
	require.Error(t, err)

	_, err = parse("1 + 2 = x")
	require.Error(t, err)

	_, err = parse("f(a, b")
	require.Error(t, err)
}
