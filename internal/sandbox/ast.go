package sandbox

// The AST is deliberately tiny: a script is a list of statements, and a
// statement is either an assignment or a bare expression.

type Stmt interface{ stmtNode() }

// AssignStmt is `target = value`. Target is an Ident or a Member whose base
// is an Ident (column assignment).
type AssignStmt struct {
	Target Expr
	Value  Expr
	Tok    Token
}

// ExprStmt is an expression evaluated for effect (rarely useful, but legal).
type ExprStmt struct {
	X Expr
}

func (*AssignStmt) stmtNode() {}
func (*ExprStmt) stmtNode()   {}

type Expr interface {
	exprNode()
	pos() Token
}

type NumberLit struct{ Tok Token }
type StringLit struct{ Tok Token }
type BoolLit struct {
	Tok   Token
	Value bool
}
type NullLit struct{ Tok Token }

type Ident struct{ Tok Token }

// Member is `x.Name`, column access on a table.
type Member struct {
	X    Expr
	Name string
	Tok  Token
}

// Index is `x[i]`, row filtering by a boolean vector.
type Index struct {
	X   Expr
	Idx Expr
	Tok Token
}

type Unary struct {
	Op  Token
	X   Expr
}

type Binary struct {
	Op Token
	L  Expr
	R  Expr
}

// Call is `name(args...)`; only builtin names are callable.
type Call struct {
	Name string
	Args []Expr
	Tok  Token
}

func (e *NumberLit) exprNode() {}
func (e *StringLit) exprNode() {}
func (e *BoolLit) exprNode()   {}
func (e *NullLit) exprNode()   {}
func (e *Ident) exprNode()     {}
func (e *Member) exprNode()    {}
func (e *Index) exprNode()     {}
func (e *Unary) exprNode()     {}
func (e *Binary) exprNode()    {}
func (e *Call) exprNode()      {}

func (e *NumberLit) pos() Token { return e.Tok }
func (e *StringLit) pos() Token { return e.Tok }
func (e *BoolLit) pos() Token   { return e.Tok }
func (e *NullLit) pos() Token   { return e.Tok }
func (e *Ident) pos() Token     { return e.Tok }
func (e *Member) pos() Token    { return e.Tok }
func (e *Index) pos() Token     { return e.Tok }
func (e *Unary) pos() Token     { return e.Op }
func (e *Binary) pos() Token    { return e.Op }
func (e *Call) pos() Token      { return e.Tok }
