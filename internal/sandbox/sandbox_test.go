package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvaldesr/tabletalk/internal/domain"
)

func sampleTable(t *testing.T) *domain.Table {
	t.Helper()
	tbl, err := domain.NewTable(
		[]string{"Category", "Value"},
		[][]any{
			{"A", 10},
			{"B", 20},
			{"A", 30},
			{"B", 40},
		},
	)
	require.NoError(t, err)
	return tbl
}

func TestRunMutationFilter(t *testing.T) {
	eng := New(time.Second)
	in := sampleTable(t)

	out, err := eng.RunMutation(context.Background(), "output = input[input.Value > 15]", in)
	require.NoError(t, err)

	want, err := domain.NewTable(
		[]string{"Category", "Value"},
		[][]any{{"B", 20}, {"A", 30}, {"B", 40}},
	)
	require.NoError(t, err)
	assert.True(t, out.Equal(want), "got %+v", out)
}

func TestRunMutationDoesNotAliasInput(t *testing.T) {
	eng := New(time.Second)
	in := sampleTable(t)

	out, err := eng.RunMutation(context.Background(),
		"input.Value = input.Value * 2\noutput = input", in)
	require.NoError(t, err)

	assert.Equal(t, float64(20), out.Rows[0][1])
	assert.Equal(t, float64(10), in.Rows[0][1], "caller's table untouched")
}

func TestRunMutationOutputContract(t *testing.T) {
	eng := New(time.Second)
	in := sampleTable(t)

	for name, script := range map[string]string{
		"no output binding": "x = input[input.Value > 15]",
		"output not a table": "output = 42",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := eng.RunMutation(context.Background(), script, in)
			require.Error(t, err)
			assert.Equal(t, domain.KindScriptContract, domain.KindOf(err))
		})
	}
}

func TestRunMutationRuntimeErrorCarriesTrace(t *testing.T) {
	eng := New(time.Second)
	in := sampleTable(t)

	_, err := eng.RunMutation(context.Background(),
		"output = input\noutput = input[input.Valu > 15]", in)
	require.Error(t, err)
	assert.Equal(t, domain.KindScriptRuntime, domain.KindOf(err))

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Trace, "unknown column")
	assert.Contains(t, de.Trace, "^", "trace has a caret snippet")
}

func TestRunMutationParseErrorIsRuntimeKind(t *testing.T) {
	eng := New(time.Second)
	_, err := eng.RunMutation(context.Background(), "output = = input", sampleTable(t))
	require.Error(t, err)
	assert.Equal(t, domain.KindScriptRuntime, domain.KindOf(err))
}

func TestRunMutationDivisionByZero(t *testing.T) {
	eng := New(time.Second)
	_, err := eng.RunMutation(context.Background(), "output = input\nx = 1 / 0", sampleTable(t))
	require.Error(t, err)
	assert.Equal(t, domain.KindScriptRuntime, domain.KindOf(err))
}

func TestRunMutationCanceledContext(t *testing.T) {
	eng := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A long-enough script that the periodic context poll fires.
	script := "output = input\n"
	for range 200 {
		script += "x = (1 + 2) * (3 + 4) - (5 + 6) * (7 + 8)\n"
	}
	_, err := eng.RunMutation(ctx, script, sampleTable(t))
	require.Error(t, err)
	assert.Equal(t, domain.KindScriptRuntime, domain.KindOf(err))
}

func TestRunMutationStepBudget(t *testing.T) {
	eng := &Engine{MaxSteps: 50}
	script := "output = input\n"
	for range 100 {
		script += "x = 1 + 1\n"
	}
	_, err := eng.RunMutation(context.Background(), script, sampleTable(t))
	require.Error(t, err)
	assert.Equal(t, domain.KindScriptRuntime, domain.KindOf(err))
}

func TestBuiltins(t *testing.T) {
	eng := New(time.Second)
	ctx := context.Background()

	t.Run("select and drop", func(t *testing.T) {
		out, err := eng.RunMutation(ctx, `output = select(input, "Value")`, sampleTable(t))
		require.NoError(t, err)
		assert.Equal(t, []string{"Value"}, out.Columns)

		out, err = eng.RunMutation(ctx, `output = drop(input, "Category")`, sampleTable(t))
		require.NoError(t, err)
		assert.Equal(t, []string{"Value"}, out.Columns)
	})

	t.Run("rename", func(t *testing.T) {
		out, err := eng.RunMutation(ctx, `output = rename(input, "Value", "Amount")`, sampleTable(t))
		require.NoError(t, err)
		assert.Equal(t, []string{"Category", "Amount"}, out.Columns)
	})

	t.Run("sort desc", func(t *testing.T) {
		out, err := eng.RunMutation(ctx, `output = sort(input, "Value", "desc")`, sampleTable(t))
		require.NoError(t, err)
		assert.Equal(t, float64(40), out.Rows[0][1])
		assert.Equal(t, float64(10), out.Rows[3][1])
	})

	t.Run("head", func(t *testing.T) {
		out, err := eng.RunMutation(ctx, `output = head(input, 2)`, sampleTable(t))
		require.NoError(t, err)
		assert.Equal(t, 2, out.NumRows())
	})

	t.Run("distinct", func(t *testing.T) {
		out, err := eng.RunMutation(ctx, `output = distinct(select(input, "Category"))`, sampleTable(t))
		require.NoError(t, err)
		assert.Equal(t, 2, out.NumRows())
	})

	t.Run("fillnull", func(t *testing.T) {
		in, err := domain.NewTable([]string{"V"}, [][]any{{1}, {nil}, {3}})
		require.NoError(t, err)
		out, err := eng.RunMutation(ctx, `output = fillnull(input, "V", 0)`, in)
		require.NoError(t, err)
		assert.Equal(t, float64(0), out.Rows[1][0])
	})

	t.Run("withcolumn", func(t *testing.T) {
		out, err := eng.RunMutation(ctx,
			`output = withcolumn(input, "Double", input.Value * 2)`, sampleTable(t))
		require.NoError(t, err)
		assert.Equal(t, []string{"Category", "Value", "Double"}, out.Columns)
		assert.Equal(t, float64(20), out.Rows[0][2])
	})

	t.Run("groupsum", func(t *testing.T) {
		out, err := eng.RunMutation(ctx, `output = groupsum(input, "Category", "Value")`, sampleTable(t))
		require.NoError(t, err)

		want, err := domain.NewTable(
			[]string{"Category", "Value"},
			[][]any{{"A", 40}, {"B", 60}},
		)
		require.NoError(t, err)
		assert.True(t, out.Equal(want), "got %+v", out)
	})

	t.Run("combined mask", func(t *testing.T) {
		out, err := eng.RunMutation(ctx,
			`output = input[input.Value > 15 && input.Category == "B"]`, sampleTable(t))
		require.NoError(t, err)
		assert.Equal(t, 2, out.NumRows())
	})
}

func TestRunChart(t *testing.T) {
	eng := New(time.Second)

	spec, err := eng.RunChart(context.Background(),
		`output = bar(input, "Category", "Value")`, sampleTable(t))
	require.NoError(t, err)

	assert.Equal(t, "bar", spec.Kind)
	assert.Equal(t, []string{"A", "B"}, spec.Labels)
	require.Len(t, spec.Series, 1)
	assert.Equal(t, []float64{40, 60}, spec.Series[0].Values)
}

func TestRunChartInputIsReadOnly(t *testing.T) {
	eng := New(time.Second)
	in := sampleTable(t)

	for name, script := range map[string]string{
		"rebind input":       `input = head(input, 1); output = bar(input, "Category", "Value")`,
		"assign column":      `input.Value = input.Value * 2; output = bar(input, "Category", "Value")`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := eng.RunChart(context.Background(), script, in)
			require.Error(t, err)
			assert.Equal(t, domain.KindScriptContract, domain.KindOf(err))
		})
	}

	// The table handed in is untouched either way.
	assert.True(t, in.Equal(sampleTable(t)))
}

func TestRunChartOutputContract(t *testing.T) {
	eng := New(time.Second)

	_, err := eng.RunChart(context.Background(), `output = head(input, 1)`, sampleTable(t))
	require.Error(t, err)
	assert.Equal(t, domain.KindScriptContract, domain.KindOf(err))
}

func TestRunChartCanFilterFirst(t *testing.T) {
	eng := New(time.Second)

	spec, err := eng.RunChart(context.Background(),
		"t = input[input.Value > 15]\noutput = pie(t, \"Category\", \"Value\")", sampleTable(t))
	require.NoError(t, err)
	assert.Equal(t, "pie", spec.Kind)
	assert.Equal(t, []string{"B", "A"}, spec.Labels, "first-appearance order after the filter")
	assert.Equal(t, []float64{60, 30}, spec.Series[0].Values)
}
