package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvaldesr/tabletalk/internal/domain"
)

func TestNewTableNormalizesCells(t *testing.T) {
	tbl, err := domain.NewTable(
		[]string{"Name", "Age", "Member"},
		[][]any{
			{"Ana", 30, true},
			{"Bo", nil, false},
		},
	)
	require.NoError(t, err)

	assert.Equal(t, float64(30), tbl.Rows[0][1], "ints widen to float64")
	assert.Nil(t, tbl.Rows[1][1], "missing values stay explicit nulls")
}

func TestNewTableRejectsBadShapes(t *testing.T) {
	_, err := domain.NewTable([]string{"A", "A"}, nil)
	require.Error(t, err, "duplicate columns")

	_, err = domain.NewTable([]string{"A", "B"}, [][]any{{1}})
	require.Error(t, err, "ragged row")
}

func TestCloneDoesNotAlias(t *testing.T) {
	tbl, err := domain.NewTable([]string{"A"}, [][]any{{1}, {2}})
	require.NoError(t, err)

	cp := tbl.Clone()
	cp.Rows[0][0] = float64(99)

	assert.Equal(t, float64(1), tbl.Rows[0][0])
	assert.False(t, tbl.Equal(cp))
}

func TestEqualIsColumnsAndRowsOnly(t *testing.T) {
	a, err := domain.NewTable([]string{"X", "Y"}, [][]any{{"a", 1}, {"b", nil}})
	require.NoError(t, err)
	b, err := domain.NewTable([]string{"X", "Y"}, [][]any{{"a", 1}, {"b", nil}})
	require.NoError(t, err)

	assert.True(t, a.Equal(b))

	b.Rows[1][1] = float64(0)
	assert.False(t, a.Equal(b))
}

func TestHeadAndRowMaps(t *testing.T) {
	tbl, err := domain.NewTable([]string{"A"}, [][]any{{1}, {2}, {3}})
	require.NoError(t, err)

	head := tbl.Head(2)
	assert.Equal(t, 2, head.NumRows())
	assert.Equal(t, 3, tbl.NumRows(), "head leaves the source intact")

	maps := head.RowMaps()
	require.Len(t, maps, 2)
	assert.Equal(t, float64(1), maps[0]["A"])
}
