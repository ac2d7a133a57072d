package domain

import (
	"fmt"
	"math"
)

// Table is the tabular value exchanged between stages: an ordered list of
// column names and an ordered list of rows. Cells are scalars (float64,
// string, bool) or nil for a missing value. Tables are value types: every
// stage that transforms one produces a fresh Table and never aliases the
// storage of its input.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NewTable validates column uniqueness and normalizes every cell.
func NewTable(columns []string, rows [][]any) (*Table, error) {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if c == "" {
			return nil, fmt.Errorf("empty column name")
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c)
		}
		seen[c] = struct{}{}
	}

	t := &Table{Columns: append([]string(nil), columns...)}
	t.Rows = make([][]any, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(columns))
		}
		nr := make([]any, len(row))
		for j, cell := range row {
			nr[j] = NormalizeCell(cell)
		}
		t.Rows = append(t.Rows, nr)
	}
	return t, nil
}

// NormalizeCell coerces a scalar into the canonical cell representation:
// nil, float64, string or bool. Integer types widen to float64; NaN becomes
// the explicit null marker rather than an out-of-band sentinel.
func NormalizeCell(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) {
			return nil
		}
		return x
	case float32:
		return NormalizeCell(float64(x))
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case bool:
		return x
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.Columns) }

// ColumnIndex returns the position of a named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// Column returns a copy of one column's cells.
func (t *Table) Column(name string) ([]any, bool) {
	idx, ok := t.ColumnIndex(name)
	if !ok {
		return nil, false
	}
	out := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// Clone deep-copies the table. Scripts get clones so no execution can
// observe or retain the caller's storage.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]any, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]any(nil), row...)
	}
	return out
}

// Equal reports whether two tables hold identical (columns, rows) pairs.
// No other metadata participates in equality.
func (t *Table) Equal(other *Table) bool {
	if t == nil || other == nil {
		return t == other
	}
	if len(t.Columns) != len(other.Columns) || len(t.Rows) != len(other.Rows) {
		return false
	}
	for i, c := range t.Columns {
		if other.Columns[i] != c {
			return false
		}
	}
	for i, row := range t.Rows {
		for j, cell := range row {
			if other.Rows[i][j] != cell {
				return false
			}
		}
	}
	return true
}

// Head returns a copy truncated to at most n rows. n <= 0 means no limit.
func (t *Table) Head(n int) *Table {
	if n <= 0 || n >= len(t.Rows) {
		return t.Clone()
	}
	out := t.Clone()
	out.Rows = out.Rows[:n]
	return out
}

// RowMaps renders rows as column→cell mappings, the shape every outward
// payload uses.
func (t *Table) RowMaps() []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := make(map[string]any, len(t.Columns))
		for j, c := range t.Columns {
			m[c] = row[j]
		}
		out = append(out, m)
	}
	return out
}

// SampleRow returns the first row as a mapping, or nil for an empty table.
// It is what the code-generation oracle receives as schema context.
func (t *Table) SampleRow() map[string]any {
	if len(t.Rows) == 0 {
		return nil
	}
	m := make(map[string]any, len(t.Columns))
	for j, c := range t.Columns {
		m[c] = t.Rows[0][j]
	}
	return m
}
