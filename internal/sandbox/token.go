package sandbox

import "fmt"

// TokenType represents the kind of token.
type TokenType int

const (
	// Special
	EOF TokenType = iota
	ILLEGAL
	NEWLINE

	// Punctuation
	LPAREN   // "("
	RPAREN   // ")"
	LBRACKET // "["
	RBRACKET // "]"
	COMMA    // ","
	DOT      // "."
	SEMI     // ";"

	// Operators
	ASSIGN  // "="
	EQ      // "=="
	NEQ     // "!="
	LESS    // "<"
	LESSEQ  // "<="
	GREATER // ">"
	GREQ    // ">="
	PLUS    // "+"
	MINUS   // "-"
	STAR    // "*"
	SLASH   // "/"
	PERCENT // "%"
	BANG    // "!"
	AND     // "&&"
	OR      // "||"

	// Literals & identifiers
	IDENT
	NUMBER
	STRING
	TRUE
	FALSE
	NULL
)

// Token is a lexical token with its 1-based source position.
type Token struct {
	Type   TokenType
	Lexeme string
	Num    float64 // valid when Type == NUMBER
	Str    string  // valid when Type == STRING
	Line   int
	Col    int
}

func (t Token) String() string {
	return fmt.Sprintf("%d:%d %q", t.Line, t.Col, t.Lexeme)
}

var keywords = map[string]TokenType{
	"true":  TRUE,
	"false": FALSE,
	"null":  NULL,
	"and":   AND,
	"or":    OR,
	"not":   BANG,
}
