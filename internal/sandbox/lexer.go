package sandbox

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// LexError is a scanning failure with a 1-based position.
type LexError struct {
	Line int
	Col  int
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

// lex scans the whole script into tokens. Newlines are tokens: they separate
// statements the way semicolons do.
func lex(src string) ([]Token, error) {
	l := &lexer{src: src, line: 1, col: 1}
	var toks []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == EOF {
			return toks, nil
		}
	}
}

func (l *lexer) errf(format string, args ...any) error {
	return &LexError{Line: l.line, Col: l.col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *lexer) match(c byte) bool {
	if l.peek() == c {
		l.advance()
		return true
	}
	return false
}

func (l *lexer) next() (Token, error) {
	// Skip spaces, tabs, carriage returns and comments; keep newlines.
	for {
		switch l.peek() {
		case ' ', '\t', '\r':
			l.advance()
			continue
		case '#':
			for l.peek() != '\n' && l.peek() != 0 {
				l.advance()
			}
			continue
		}
		break
	}

	line, col := l.line, l.col
	mk := func(t TokenType, lexeme string) Token {
		return Token{Type: t, Lexeme: lexeme, Line: line, Col: col}
	}

	if l.pos >= len(l.src) {
		return mk(EOF, ""), nil
	}

	c := l.advance()
	switch c {
	case '\n':
		return mk(NEWLINE, "\\n"), nil
	case '(':
		return mk(LPAREN, "("), nil
	case ')':
		return mk(RPAREN, ")"), nil
	case '[':
		return mk(LBRACKET, "["), nil
	case ']':
		return mk(RBRACKET, "]"), nil
	case ',':
		return mk(COMMA, ","), nil
	case '.':
		return mk(DOT, "."), nil
	case ';':
		return mk(SEMI, ";"), nil
	case '+':
		return mk(PLUS, "+"), nil
	case '-':
		return mk(MINUS, "-"), nil
	case '*':
		return mk(STAR, "*"), nil
	case '/':
		return mk(SLASH, "/"), nil
	case '%':
		return mk(PERCENT, "%"), nil
	case '=':
		if l.match('=') {
			return mk(EQ, "=="), nil
		}
		return mk(ASSIGN, "="), nil
	case '!':
		if l.match('=') {
			return mk(NEQ, "!="), nil
		}
		return mk(BANG, "!"), nil
	case '<':
		if l.match('=') {
			return mk(LESSEQ, "<="), nil
		}
		return mk(LESS, "<"), nil
	case '>':
		if l.match('=') {
			return mk(GREQ, ">="), nil
		}
		return mk(GREATER, ">"), nil
	case '&':
		if l.match('&') {
			return mk(AND, "&&"), nil
		}
		return Token{}, l.errf("unexpected character %q (did you mean '&&'?)", c)
	case '|':
		if l.match('|') {
			return mk(OR, "||"), nil
		}
		return Token{}, l.errf("unexpected character %q (did you mean '||'?)", c)
	case '\'', '"':
		return l.lexString(c, line, col)
	}

	if c >= '0' && c <= '9' {
		return l.lexNumber(line, col)
	}
	if isIdentStart(rune(c)) {
		return l.lexIdent(line, col)
	}
	return Token{}, l.errf("unexpected character %q", c)
}

func (l *lexer) lexString(quote byte, line, col int) (Token, error) {
	start := l.pos
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) || l.peek() == '\n' {
			return Token{}, &LexError{Line: line, Col: col, Msg: "unterminated string"}
		}
		c := l.advance()
		if c == quote {
			break
		}
		if c == '\\' {
			if l.pos >= len(l.src) {
				return Token{}, &LexError{Line: line, Col: col, Msg: "unterminated string"}
			}
			e := l.advance()
			switch e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\', '\'', '"':
				sb.WriteByte(e)
			default:
				return Token{}, &LexError{Line: line, Col: col, Msg: fmt.Sprintf("bad escape \\%c", e)}
			}
			continue
		}
		sb.WriteByte(c)
	}
	raw := l.src[start-1 : l.pos]
	return Token{Type: STRING, Lexeme: raw, Str: sb.String(), Line: line, Col: col}, nil
}

func (l *lexer) lexNumber(line, col int) (Token, error) {
	start := l.pos - 1
	for isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]) {
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	raw := l.src[start:l.pos]
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Token{}, &LexError{Line: line, Col: col, Msg: fmt.Sprintf("bad number %q", raw)}
	}
	return Token{Type: NUMBER, Lexeme: raw, Num: n, Line: line, Col: col}, nil
}

func (l *lexer) lexIdent(line, col int) (Token, error) {
	start := l.pos - 1
	for isIdentPart(rune(l.peek())) {
		l.advance()
	}
	raw := l.src[start:l.pos]
	if kw, ok := keywords[raw]; ok {
		return Token{Type: kw, Lexeme: raw, Line: line, Col: col}, nil
	}
	return Token{Type: IDENT, Lexeme: raw, Line: line, Col: col}, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
