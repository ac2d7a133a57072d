package sandbox

import (
	"fmt"

	"github.com/mvaldesr/tabletalk/internal/domain"
)

// Value is anything a script expression can evaluate to.
type Value interface {
	typeName() string
}

type Number float64
type Str string
type Bool bool
type Null struct{}

// ColumnVal is a vector of cells extracted from (or destined for) a table
// column. Cells use the canonical domain representation: nil, float64,
// string, bool.
type ColumnVal struct {
	Cells []any
}

// TableVal wraps a domain table.
type TableVal struct {
	Table *domain.Table
}

// FigureVal is the result of a chart builtin: a renderable figure whose
// only capability is serializing to a chart specification.
type FigureVal struct {
	Spec *domain.ChartSpec
}

func (Number) typeName() string     { return "number" }
func (Str) typeName() string        { return "string" }
func (Bool) typeName() string       { return "bool" }
func (Null) typeName() string       { return "null" }
func (*ColumnVal) typeName() string { return "column" }
func (*TableVal) typeName() string  { return "table" }
func (*FigureVal) typeName() string { return "figure" }

// cellToValue lifts a canonical cell into a scalar Value.
func cellToValue(cell any) Value {
	switch x := cell.(type) {
	case nil:
		return Null{}
	case float64:
		return Number(x)
	case string:
		return Str(x)
	case bool:
		return Bool(x)
	default:
		return Str(fmt.Sprintf("%v", x))
	}
}

// valueToCell lowers a scalar Value to a canonical cell.
func valueToCell(v Value) (any, bool) {
	switch x := v.(type) {
	case Null:
		return nil, true
	case Number:
		return float64(x), true
	case Str:
		return string(x), true
	case Bool:
		return bool(x), true
	default:
		return nil, false
	}
}

// cellString renders a cell for labels and grouping keys.
func cellString(cell any) string {
	switch x := cell.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
