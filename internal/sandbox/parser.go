package sandbox

import "fmt"

// ParseError is a syntax failure with a 1-based position.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

type parser struct {
	toks []Token
	pos  int
}

// parse turns a script into a list of statements.
func parse(src string) ([]Stmt, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}

	var stmts []Stmt
	p.skipSeparators()
	for p.peek().Type != EOF {
		st, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
		if err := p.expectSeparator(); err != nil {
			return nil, err
		}
		p.skipSeparators()
	}
	return stmts, nil
}

func (p *parser) peek() Token { return p.toks[p.pos] }

func (p *parser) advance() Token {
	t := p.toks[p.pos]
	if t.Type != EOF {
		p.pos++
	}
	return t
}

func (p *parser) check(tt TokenType) bool { return p.peek().Type == tt }

func (p *parser) match(tt TokenType) bool {
	if p.check(tt) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) errAt(tok Token, format string, args ...any) error {
	return &ParseError{Line: tok.Line, Col: tok.Col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSeparators() {
	for p.check(NEWLINE) || p.check(SEMI) {
		p.advance()
	}
}

func (p *parser) expectSeparator() error {
	if p.check(EOF) || p.check(NEWLINE) || p.check(SEMI) {
		return nil
	}
	t := p.peek()
	return p.errAt(t, "unexpected token %q, expected end of statement", t.Lexeme)
}

func (p *parser) statement() (Stmt, error) {
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.check(ASSIGN) {
		eq := p.advance()
		switch expr.(type) {
		case *Ident, *Member:
		default:
			return nil, p.errAt(eq, "invalid assignment target")
		}
		val, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &AssignStmt{Target: expr, Value: val, Tok: eq}, nil
	}
	return &ExprStmt{X: expr}, nil
}

// Precedence climbing: or < and < equality < comparison < additive <
// multiplicative < unary < postfix < primary.

func (p *parser) expression() (Expr, error) { return p.orExpr() }

func (p *parser) orExpr() (Expr, error) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.check(OR) {
		op := p.advance()
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *parser) andExpr() (Expr, error) {
	left, err := p.equality()
	if err != nil {
		return nil, err
	}
	for p.check(AND) {
		op := p.advance()
		right, err := p.equality()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *parser) equality() (Expr, error) {
	left, err := p.comparison()
	if err != nil {
		return nil, err
	}
	for p.check(EQ) || p.check(NEQ) {
		op := p.advance()
		right, err := p.comparison()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *parser) comparison() (Expr, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	for p.check(LESS) || p.check(LESSEQ) || p.check(GREATER) || p.check(GREQ) {
		op := p.advance()
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *parser) additive() (Expr, error) {
	left, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for p.check(PLUS) || p.check(MINUS) {
		op := p.advance()
		right, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *parser) multiplicative() (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.check(STAR) || p.check(SLASH) || p.check(PERCENT) {
		op := p.advance()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *parser) unary() (Expr, error) {
	if p.check(MINUS) || p.check(BANG) {
		op := p.advance()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op, X: x}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (Expr, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.check(DOT):
			dot := p.advance()
			name := p.peek()
			if name.Type != IDENT {
				return nil, p.errAt(name, "expected column name after '.'")
			}
			p.advance()
			expr = &Member{X: expr, Name: name.Lexeme, Tok: dot}
		case p.check(LBRACKET):
			br := p.advance()
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			if !p.match(RBRACKET) {
				return nil, p.errAt(p.peek(), "expected ']'")
			}
			expr = &Index{X: expr, Idx: idx, Tok: br}
		default:
			return expr, nil
		}
	}
}

func (p *parser) primary() (Expr, error) {
	t := p.peek()
	switch t.Type {
	case NUMBER:
		p.advance()
		return &NumberLit{Tok: t}, nil
	case STRING:
		p.advance()
		return &StringLit{Tok: t}, nil
	case TRUE:
		p.advance()
		return &BoolLit{Tok: t, Value: true}, nil
	case FALSE:
		p.advance()
		return &BoolLit{Tok: t, Value: false}, nil
	case NULL:
		p.advance()
		return &NullLit{Tok: t}, nil
	case IDENT:
		p.advance()
		if p.check(LPAREN) {
			p.advance()
			args, err := p.arguments()
			if err != nil {
				return nil, err
			}
			return &Call{Name: t.Lexeme, Args: args, Tok: t}, nil
		}
		return &Ident{Tok: t}, nil
	case LPAREN:
		p.advance()
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		if !p.match(RPAREN) {
			return nil, p.errAt(p.peek(), "expected ')'")
		}
		return expr, nil
	}
	return nil, p.errAt(t, "unexpected token %q", t.Lexeme)
}

func (p *parser) arguments() ([]Expr, error) {
	var args []Expr
	if p.match(RPAREN) {
		return args, nil
	}
	for {
		a, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.match(COMMA) {
			continue
		}
		if p.match(RPAREN) {
			return args, nil
		}
		return nil, p.errAt(p.peek(), "expected ',' or ')' in argument list")
	}
}
