package sandbox

import (
	"context"
	"strings"

	"github.com/mvaldesr/tabletalk/internal/domain"
)

// evaluator walks a parsed script over an explicit environment. There is no
// ambient filesystem, network or process surface: the only reachable names
// are the seeded bindings and the registered builtins.
type evaluator struct {
	ctx      context.Context
	env      map[string]Value
	builtins map[string]builtin
	readOnly map[string]bool

	steps    int
	maxSteps int
}

const defaultMaxSteps = 1_000_000

// tick charges one evaluation step and polls the context periodically so a
// looping or pathological script cannot outlive its call.
func (ev *evaluator) tick(tok Token) error {
	ev.steps++
	if ev.steps%1024 == 0 {
		if err := ev.ctx.Err(); err != nil {
			return errAt(tok, "execution canceled: %v", err)
		}
	}
	if ev.steps > ev.maxSteps {
		return errAt(tok, "script exceeded the evaluation step budget")
	}
	return nil
}

func (ev *evaluator) run(stmts []Stmt) error {
	for _, st := range stmts {
		if err := ev.stmt(st); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluator) stmt(st Stmt) error {
	switch s := st.(type) {
	case *ExprStmt:
		_, err := ev.eval(s.X)
		return err
	case *AssignStmt:
		return ev.assign(s)
	default:
		return errAt(Token{Line: 1, Col: 1}, "unsupported statement")
	}
}

func (ev *evaluator) assign(s *AssignStmt) error {
	val, err := ev.eval(s.Value)
	if err != nil {
		return err
	}
	switch target := s.Target.(type) {
	case *Ident:
		name := target.Tok.Lexeme
		if ev.readOnly[name] {
			return errContractAt(target.Tok, "%q is read-only in this context", name)
		}
		ev.env[name] = val
		return nil
	case *Member:
		base, ok := target.X.(*Ident)
		if !ok {
			return errAt(target.Tok, "column assignment requires a table variable on the left")
		}
		if ev.readOnly[base.Tok.Lexeme] {
			return errContractAt(target.Tok, "%q is read-only in this context", base.Tok.Lexeme)
		}
		bound, ok := ev.env[base.Tok.Lexeme]
		if !ok {
			return errAt(base.Tok, "unknown name %q", base.Tok.Lexeme)
		}
		tv, ok := bound.(*TableVal)
		if !ok {
			return errAt(target.Tok, "cannot assign a column on a %s", bound.typeName())
		}
		return ev.setColumn(tv, target.Name, val, target.Tok)
	default:
		return errAt(s.Tok, "invalid assignment target")
	}
}

// setColumn sets or creates a column from a vector (length must match) or a
// scalar (broadcast to every row).
func (ev *evaluator) setColumn(tv *TableVal, name string, val Value, tok Token) error {
	t := tv.Table
	var cells []any
	switch v := val.(type) {
	case *ColumnVal:
		if len(v.Cells) != t.NumRows() {
			return errAt(tok, "column length %d does not match row count %d", len(v.Cells), t.NumRows())
		}
		cells = append([]any(nil), v.Cells...)
	default:
		cell, ok := valueToCell(val)
		if !ok {
			return errAt(tok, "cannot store a %s in a column", val.typeName())
		}
		cells = make([]any, t.NumRows())
		for i := range cells {
			cells[i] = cell
		}
	}

	if idx, ok := t.ColumnIndex(name); ok {
		for i := range t.Rows {
			t.Rows[i][idx] = domain.NormalizeCell(cells[i])
		}
		return nil
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], domain.NormalizeCell(cells[i]))
	}
	return nil
}

func (ev *evaluator) eval(e Expr) (Value, error) {
	if err := ev.tick(e.pos()); err != nil {
		return nil, err
	}
	switch x := e.(type) {
	case *NumberLit:
		return Number(x.Tok.Num), nil
	case *StringLit:
		return Str(x.Tok.Str), nil
	case *BoolLit:
		return Bool(x.Value), nil
	case *NullLit:
		return Null{}, nil
	case *Ident:
		v, ok := ev.env[x.Tok.Lexeme]
		if !ok {
			return nil, errAt(x.Tok, "unknown name %q", x.Tok.Lexeme)
		}
		return v, nil
	case *Member:
		return ev.member(x)
	case *Index:
		return ev.index(x)
	case *Unary:
		return ev.unary(x)
	case *Binary:
		return ev.binary(x)
	case *Call:
		return ev.call(x)
	default:
		return nil, errAt(e.pos(), "unsupported expression")
	}
}

func (ev *evaluator) member(m *Member) (Value, error) {
	base, err := ev.eval(m.X)
	if err != nil {
		return nil, err
	}
	tv, ok := base.(*TableVal)
	if !ok {
		return nil, errAt(m.Tok, "cannot access column on a %s", base.typeName())
	}
	cells, ok := tv.Table.Column(m.Name)
	if !ok {
		return nil, errAt(m.Tok, "unknown column %q (have: %s)", m.Name, strings.Join(tv.Table.Columns, ", "))
	}
	return &ColumnVal{Cells: cells}, nil
}

// index implements `table[mask]`: keep the rows whose mask cell is true.
func (ev *evaluator) index(ix *Index) (Value, error) {
	base, err := ev.eval(ix.X)
	if err != nil {
		return nil, err
	}
	idx, err := ev.eval(ix.Idx)
	if err != nil {
		return nil, err
	}
	tv, ok := base.(*TableVal)
	if !ok {
		return nil, errAt(ix.Tok, "cannot index a %s", base.typeName())
	}
	mask, ok := idx.(*ColumnVal)
	if !ok {
		return nil, errAt(ix.Tok, "table index must be a boolean column, got %s", idx.typeName())
	}
	if len(mask.Cells) != tv.Table.NumRows() {
		return nil, errAt(ix.Tok, "mask length %d does not match row count %d", len(mask.Cells), tv.Table.NumRows())
	}

	out := &domain.Table{Columns: append([]string(nil), tv.Table.Columns...)}
	for i, cell := range mask.Cells {
		keep, ok := cell.(bool)
		if !ok && cell != nil {
			return nil, errAt(ix.Tok, "table index must be a boolean column")
		}
		if keep {
			out.Rows = append(out.Rows, append([]any(nil), tv.Table.Rows[i]...))
		}
	}
	return &TableVal{Table: out}, nil
}

func (ev *evaluator) unary(u *Unary) (Value, error) {
	x, err := ev.eval(u.X)
	if err != nil {
		return nil, err
	}
	switch u.Op.Type {
	case MINUS:
		switch v := x.(type) {
		case Number:
			return Number(-v), nil
		case *ColumnVal:
			return mapColumn(v, func(cell any) (any, error) {
				if n, ok := cell.(float64); ok {
					return -n, nil
				}
				if cell == nil {
					return nil, nil
				}
				return nil, errAt(u.Op, "cannot negate a non-numeric cell")
			})
		}
		return nil, errAt(u.Op, "cannot negate a %s", x.typeName())
	case BANG:
		switch v := x.(type) {
		case Bool:
			return Bool(!v), nil
		case *ColumnVal:
			return mapColumn(v, func(cell any) (any, error) {
				b, ok := cell.(bool)
				if !ok {
					// null cells flip to true so `!isnull` idioms behave
					if cell == nil {
						return true, nil
					}
					return nil, errAt(u.Op, "cannot negate a non-boolean cell")
				}
				return !b, nil
			})
		}
		return nil, errAt(u.Op, "cannot negate a %s", x.typeName())
	}
	return nil, errAt(u.Op, "unsupported unary operator %q", u.Op.Lexeme)
}

func mapColumn(c *ColumnVal, f func(any) (any, error)) (Value, error) {
	out := make([]any, len(c.Cells))
	for i, cell := range c.Cells {
		v, err := f(cell)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return &ColumnVal{Cells: out}, nil
}

func (ev *evaluator) binary(b *Binary) (Value, error) {
	left, err := ev.eval(b.L)
	if err != nil {
		return nil, err
	}
	right, err := ev.eval(b.R)
	if err != nil {
		return nil, err
	}

	lc, lIsCol := left.(*ColumnVal)
	rc, rIsCol := right.(*ColumnVal)

	switch {
	case lIsCol && rIsCol:
		if len(lc.Cells) != len(rc.Cells) {
			return nil, errAt(b.Op, "column lengths differ: %d vs %d", len(lc.Cells), len(rc.Cells))
		}
		out := make([]any, len(lc.Cells))
		for i := range lc.Cells {
			v, err := scalarBinop(b.Op, lc.Cells[i], rc.Cells[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return &ColumnVal{Cells: out}, nil
	case lIsCol || rIsCol:
		col := lc
		if rIsCol {
			col = rc
		}
		var scalar any
		var ok bool
		if rIsCol {
			scalar, ok = valueToCell(left)
		} else {
			scalar, ok = valueToCell(right)
		}
		if !ok {
			return nil, errAt(b.Op, "cannot combine a column with a %s", right.typeName())
		}
		out := make([]any, len(col.Cells))
		for i, cell := range col.Cells {
			var v any
			var err error
			if rIsCol {
				v, err = scalarBinop(b.Op, scalar, cell)
			} else {
				v, err = scalarBinop(b.Op, cell, scalar)
			}
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return &ColumnVal{Cells: out}, nil
	default:
		lcell, ok := valueToCell(left)
		if !ok {
			return nil, errAt(b.Op, "cannot apply %q to a %s", b.Op.Lexeme, left.typeName())
		}
		rcell, ok := valueToCell(right)
		if !ok {
			return nil, errAt(b.Op, "cannot apply %q to a %s", b.Op.Lexeme, right.typeName())
		}
		v, err := scalarBinop(b.Op, lcell, rcell)
		if err != nil {
			return nil, err
		}
		return cellToValue(v), nil
	}
}

// scalarBinop applies one operator to two canonical cells. Null propagates
// through arithmetic and compares as false, the way a missing value should
// never silently satisfy a filter.
func scalarBinop(op Token, l, r any) (any, error) {
	switch op.Type {
	case AND, OR:
		lb, lok := l.(bool)
		rb, rok := r.(bool)
		if l == nil {
			lb, lok = false, true
		}
		if r == nil {
			rb, rok = false, true
		}
		if !lok || !rok {
			return nil, errAt(op, "%q requires boolean operands", op.Lexeme)
		}
		if op.Type == AND {
			return lb && rb, nil
		}
		return lb || rb, nil

	case EQ:
		return l == r, nil
	case NEQ:
		return l != r, nil
	}

	// Remaining operators are arithmetic or ordering.
	if l == nil || r == nil {
		switch op.Type {
		case PLUS, MINUS, STAR, SLASH, PERCENT:
			return nil, nil
		default:
			return false, nil
		}
	}

	if ls, ok := l.(string); ok {
		rs, ok := r.(string)
		if !ok {
			return false, nil
		}
		switch op.Type {
		case PLUS:
			return ls + rs, nil
		case LESS:
			return ls < rs, nil
		case LESSEQ:
			return ls <= rs, nil
		case GREATER:
			return ls > rs, nil
		case GREQ:
			return ls >= rs, nil
		}
		return nil, errAt(op, "cannot apply %q to strings", op.Lexeme)
	}

	ln, lok := l.(float64)
	rn, rok := r.(float64)
	if !lok || !rok {
		switch op.Type {
		case LESS, LESSEQ, GREATER, GREQ:
			return false, nil
		}
		return nil, errAt(op, "cannot apply %q to %T and %T", op.Lexeme, l, r)
	}

	switch op.Type {
	case PLUS:
		return ln + rn, nil
	case MINUS:
		return ln - rn, nil
	case STAR:
		return ln * rn, nil
	case SLASH:
		if rn == 0 {
			return nil, errAt(op, "division by zero")
		}
		return ln / rn, nil
	case PERCENT:
		if rn == 0 {
			return nil, errAt(op, "division by zero")
		}
		return float64(int64(ln) % int64(rn)), nil
	case LESS:
		return ln < rn, nil
	case LESSEQ:
		return ln <= rn, nil
	case GREATER:
		return ln > rn, nil
	case GREQ:
		return ln >= rn, nil
	}
	return nil, errAt(op, "unsupported operator %q", op.Lexeme)
}

func (ev *evaluator) call(c *Call) (Value, error) {
	fn, ok := ev.builtins[c.Name]
	if !ok {
		return nil, errAt(c.Tok, "unknown function %q", c.Name)
	}
	args := make([]Value, len(c.Args))
	for i, a := range c.Args {
		v, err := ev.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return fn(c.Tok, args)
}
