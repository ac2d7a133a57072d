package sandbox

import (
	"fmt"
	"sort"

	"github.com/mvaldesr/tabletalk/internal/domain"
)

// builtin is one callable surface function. Builtins never mutate their
// table argument; they always build a fresh table.
type builtin func(tok Token, args []Value) (Value, error)

func tableArg(tok Token, name string, args []Value, i int) (*domain.Table, error) {
	if i >= len(args) {
		return nil, errAt(tok, "%s: missing table argument", name)
	}
	tv, ok := args[i].(*TableVal)
	if !ok {
		return nil, errAt(tok, "%s: argument %d must be a table, got %s", name, i+1, args[i].typeName())
	}
	return tv.Table, nil
}

func stringArg(tok Token, name string, args []Value, i int) (string, error) {
	if i >= len(args) {
		return "", errAt(tok, "%s: missing argument %d", name, i+1)
	}
	s, ok := args[i].(Str)
	if !ok {
		return "", errAt(tok, "%s: argument %d must be a string, got %s", name, i+1, args[i].typeName())
	}
	return string(s), nil
}

func numberArg(tok Token, name string, args []Value, i int) (float64, error) {
	if i >= len(args) {
		return 0, errAt(tok, "%s: missing argument %d", name, i+1)
	}
	n, ok := args[i].(Number)
	if !ok {
		return 0, errAt(tok, "%s: argument %d must be a number, got %s", name, i+1, args[i].typeName())
	}
	return float64(n), nil
}

func columnOf(tok Token, name string, t *domain.Table, col string) (int, error) {
	idx, ok := t.ColumnIndex(col)
	if !ok {
		return 0, errAt(tok, "%s: unknown column %q", name, col)
	}
	return idx, nil
}

// tableBuiltins is the mutation surface: the only library a transformation
// script can reach.
func tableBuiltins() map[string]builtin {
	return map[string]builtin{
		"select":     builtinSelect,
		"drop":       builtinDrop,
		"rename":     builtinRename,
		"sort":       builtinSort,
		"head":       builtinHead,
		"distinct":   builtinDistinct,
		"fillnull":   builtinFillNull,
		"withcolumn": builtinWithColumn,
		"groupsum":   builtinGroupSum,
	}
}

func builtinSelect(tok Token, args []Value) (Value, error) {
	t, err := tableArg(tok, "select", args, 0)
	if err != nil {
		return nil, err
	}
	if len(args) < 2 {
		return nil, errAt(tok, "select: need at least one column")
	}
	var idxs []int
	var cols []string
	for i := 1; i < len(args); i++ {
		name, err := stringArg(tok, "select", args, i)
		if err != nil {
			return nil, err
		}
		idx, err := columnOf(tok, "select", t, name)
		if err != nil {
			return nil, err
		}
		idxs = append(idxs, idx)
		cols = append(cols, name)
	}
	out := &domain.Table{Columns: cols}
	for _, row := range t.Rows {
		nr := make([]any, len(idxs))
		for j, idx := range idxs {
			nr[j] = row[idx]
		}
		out.Rows = append(out.Rows, nr)
	}
	return &TableVal{Table: out}, nil
}

func builtinDrop(tok Token, args []Value) (Value, error) {
	t, err := tableArg(tok, "drop", args, 0)
	if err != nil {
		return nil, err
	}
	if len(args) < 2 {
		return nil, errAt(tok, "drop: need at least one column")
	}
	dropped := map[int]bool{}
	for i := 1; i < len(args); i++ {
		name, err := stringArg(tok, "drop", args, i)
		if err != nil {
			return nil, err
		}
		idx, err := columnOf(tok, "drop", t, name)
		if err != nil {
			return nil, err
		}
		dropped[idx] = true
	}
	if len(dropped) == len(t.Columns) {
		return nil, errAt(tok, "drop: cannot drop every column")
	}
	out := &domain.Table{}
	for j, c := range t.Columns {
		if !dropped[j] {
			out.Columns = append(out.Columns, c)
		}
	}
	for _, row := range t.Rows {
		nr := make([]any, 0, len(out.Columns))
		for j := range t.Columns {
			if !dropped[j] {
				nr = append(nr, row[j])
			}
		}
		out.Rows = append(out.Rows, nr)
	}
	return &TableVal{Table: out}, nil
}

func builtinRename(tok Token, args []Value) (Value, error) {
	t, err := tableArg(tok, "rename", args, 0)
	if err != nil {
		return nil, err
	}
	from, err := stringArg(tok, "rename", args, 1)
	if err != nil {
		return nil, err
	}
	to, err := stringArg(tok, "rename", args, 2)
	if err != nil {
		return nil, err
	}
	idx, err := columnOf(tok, "rename", t, from)
	if err != nil {
		return nil, err
	}
	if _, exists := t.ColumnIndex(to); exists && to != from {
		return nil, errAt(tok, "rename: column %q already exists", to)
	}
	out := t.Clone()
	out.Columns[idx] = to
	return &TableVal{Table: out}, nil
}

func builtinSort(tok Token, args []Value) (Value, error) {
	t, err := tableArg(tok, "sort", args, 0)
	if err != nil {
		return nil, err
	}
	col, err := stringArg(tok, "sort", args, 1)
	if err != nil {
		return nil, err
	}
	desc := false
	if len(args) > 2 {
		dir, err := stringArg(tok, "sort", args, 2)
		if err != nil {
			return nil, err
		}
		switch dir {
		case "desc":
			desc = true
		case "asc":
		default:
			return nil, errAt(tok, "sort: direction must be \"asc\" or \"desc\", got %q", dir)
		}
	}
	idx, err := columnOf(tok, "sort", t, col)
	if err != nil {
		return nil, err
	}
	out := t.Clone()
	sort.SliceStable(out.Rows, func(i, j int) bool {
		less := cellLess(out.Rows[i][idx], out.Rows[j][idx])
		if desc {
			return cellLess(out.Rows[j][idx], out.Rows[i][idx])
		}
		return less
	})
	return &TableVal{Table: out}, nil
}

// cellLess orders nulls first, then numbers, then everything else by its
// string rendering.
func cellLess(a, b any) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	an, aok := a.(float64)
	bn, bok := b.(float64)
	if aok && bok {
		return an < bn
	}
	if aok != bok {
		return aok
	}
	return cellString(a) < cellString(b)
}

func builtinHead(tok Token, args []Value) (Value, error) {
	t, err := tableArg(tok, "head", args, 0)
	if err != nil {
		return nil, err
	}
	n, err := numberArg(tok, "head", args, 1)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errAt(tok, "head: count must be non-negative")
	}
	out := t.Clone()
	if int(n) < len(out.Rows) {
		out.Rows = out.Rows[:int(n)]
	}
	return &TableVal{Table: out}, nil
}

func builtinDistinct(tok Token, args []Value) (Value, error) {
	t, err := tableArg(tok, "distinct", args, 0)
	if err != nil {
		return nil, err
	}
	out := &domain.Table{Columns: append([]string(nil), t.Columns...)}
	seen := map[string]bool{}
	for _, row := range t.Rows {
		key := fmt.Sprintf("%#v", row)
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Rows = append(out.Rows, append([]any(nil), row...))
	}
	return &TableVal{Table: out}, nil
}

func builtinFillNull(tok Token, args []Value) (Value, error) {
	t, err := tableArg(tok, "fillnull", args, 0)
	if err != nil {
		return nil, err
	}
	col, err := stringArg(tok, "fillnull", args, 1)
	if err != nil {
		return nil, err
	}
	if len(args) < 3 {
		return nil, errAt(tok, "fillnull: missing replacement value")
	}
	repl, ok := valueToCell(args[2])
	if !ok {
		return nil, errAt(tok, "fillnull: replacement must be a scalar, got %s", args[2].typeName())
	}
	idx, err := columnOf(tok, "fillnull", t, col)
	if err != nil {
		return nil, err
	}
	out := t.Clone()
	for _, row := range out.Rows {
		if row[idx] == nil {
			row[idx] = repl
		}
	}
	return &TableVal{Table: out}, nil
}

func builtinWithColumn(tok Token, args []Value) (Value, error) {
	t, err := tableArg(tok, "withcolumn", args, 0)
	if err != nil {
		return nil, err
	}
	name, err := stringArg(tok, "withcolumn", args, 1)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errAt(tok, "withcolumn: column name must not be empty")
	}
	if len(args) < 3 {
		return nil, errAt(tok, "withcolumn: missing values")
	}

	var cells []any
	switch v := args[2].(type) {
	case *ColumnVal:
		if len(v.Cells) != t.NumRows() {
			return nil, errAt(tok, "withcolumn: length %d does not match row count %d", len(v.Cells), t.NumRows())
		}
		cells = append([]any(nil), v.Cells...)
	default:
		cell, ok := valueToCell(args[2])
		if !ok {
			return nil, errAt(tok, "withcolumn: values must be a column or a scalar")
		}
		cells = make([]any, t.NumRows())
		for i := range cells {
			cells[i] = cell
		}
	}

	out := t.Clone()
	if idx, exists := out.ColumnIndex(name); exists {
		for i := range out.Rows {
			out.Rows[i][idx] = domain.NormalizeCell(cells[i])
		}
	} else {
		out.Columns = append(out.Columns, name)
		for i := range out.Rows {
			out.Rows[i] = append(out.Rows[i], domain.NormalizeCell(cells[i]))
		}
	}
	return &TableVal{Table: out}, nil
}

// builtinGroupSum groups by a key column and sums a numeric column, keeping
// first-appearance order of keys.
func builtinGroupSum(tok Token, args []Value) (Value, error) {
	t, err := tableArg(tok, "groupsum", args, 0)
	if err != nil {
		return nil, err
	}
	keyCol, err := stringArg(tok, "groupsum", args, 1)
	if err != nil {
		return nil, err
	}
	valCol, err := stringArg(tok, "groupsum", args, 2)
	if err != nil {
		return nil, err
	}
	keyIdx, err := columnOf(tok, "groupsum", t, keyCol)
	if err != nil {
		return nil, err
	}
	valIdx, err := columnOf(tok, "groupsum", t, valCol)
	if err != nil {
		return nil, err
	}

	var order []string
	sums := map[string]float64{}
	for _, row := range t.Rows {
		key := cellString(row[keyIdx])
		if _, seen := sums[key]; !seen {
			order = append(order, key)
		}
		if n, ok := row[valIdx].(float64); ok {
			sums[key] += n
		} else if row[valIdx] != nil {
			return nil, errAt(tok, "groupsum: column %q has a non-numeric value", valCol)
		}
	}

	out := &domain.Table{Columns: []string{keyCol, valCol}}
	for _, key := range order {
		out.Rows = append(out.Rows, []any{key, sums[key]})
	}
	return &TableVal{Table: out}, nil
}
