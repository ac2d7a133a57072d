package sandbox

import (
	"fmt"

	"github.com/mvaldesr/tabletalk/internal/domain"
)

// chartBuiltins is the charting surface, available only to chart scripts.
// Each builtin yields a figure; a figure's single capability is serializing
// to a chart specification.
func chartBuiltins() map[string]builtin {
	return map[string]builtin{
		"bar":     chartFunc("bar"),
		"line":    chartFunc("line"),
		"scatter": chartFunc("scatter"),
		"pie":     chartFunc("pie"),
	}
}

func chartFunc(kind string) builtin {
	return func(tok Token, args []Value) (Value, error) {
		t, err := tableArg(tok, kind, args, 0)
		if err != nil {
			return nil, err
		}
		xCol, err := stringArg(tok, kind, args, 1)
		if err != nil {
			return nil, err
		}
		yCol, err := stringArg(tok, kind, args, 2)
		if err != nil {
			return nil, err
		}
		spec, err := buildSpec(tok, kind, t, xCol, yCol)
		if err != nil {
			return nil, err
		}
		return &FigureVal{Spec: spec}, nil
	}
}

// buildSpec turns (table, x, y) into a chart specification. Rows sharing a
// label are summed, preserving first-appearance order, so a categorical
// chart over raw rows aggregates the way a reader expects.
func buildSpec(tok Token, kind string, t *domain.Table, xCol, yCol string) (*domain.ChartSpec, error) {
	xIdx, err := columnOf(tok, kind, t, xCol)
	if err != nil {
		return nil, err
	}
	yIdx, err := columnOf(tok, kind, t, yCol)
	if err != nil {
		return nil, err
	}

	var labels []string
	sums := map[string]float64{}
	for i, row := range t.Rows {
		label := cellString(row[xIdx])
		if _, seen := sums[label]; !seen {
			labels = append(labels, label)
		}
		switch y := row[yIdx].(type) {
		case float64:
			sums[label] += y
		case nil:
			// missing values contribute nothing
		default:
			return nil, errAt(tok, "%s: column %q has a non-numeric value in row %d", kind, yCol, i+1)
		}
	}

	values := make([]float64, len(labels))
	for i, label := range labels {
		values[i] = sums[label]
	}

	return &domain.ChartSpec{
		Kind:   kind,
		Title:  fmt.Sprintf("%s by %s", yCol, xCol),
		XLabel: xCol,
		YLabel: yCol,
		Labels: labels,
		Series: []domain.Series{{Name: yCol, Values: values}},
	}, nil
}
