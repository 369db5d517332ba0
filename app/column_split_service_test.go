package app

import (
	"context"
	"testing"

	"gomulm/domain/contrast"
	"gomulm/domain/ols"
	"gomulm/internal/errors"
	"gomulm/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRunEqualsUnsplit(t *testing.T) {
	kit := testkit.NewTestKit(42)
	s := kit.Regression(80, testkit.DefaultBeta, 2, 10)
	_, q := s.Y.Dims()

	yGroups := make([]int, q)
	for j := range yGroups {
		yGroups[j] = j % 3
	}
	opts := contrast.Options{PValues: true, TwoTailed: true}

	blocks, err := NewColumnSplitter(3, opts).Run(context.Background(), s.X, s.Y, make([]int, 5), yGroups)
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	merged, err := MergeResponseBlocks(blocks, 0, q)
	require.NoError(t, err)

	model, err := ols.Fit(s.X, s.Y)
	require.NoError(t, err)
	full, err := contrast.TTestBatch(model, contrast.IdentityContrasts(5), opts)
	require.NoError(t, err)

	assert.InDelta(t, full.DF, merged.DF, 1e-9)
	for i := range full.T {
		assert.InDeltaSlice(t, full.T[i], merged.T[i], 1e-9)
		assert.InDeltaSlice(t, full.P[i], merged.P[i], 1e-9)
	}
}

func TestSplitBlocksAreOrdered(t *testing.T) {
	kit := testkit.NewTestKit(7)
	s := kit.Regression(40, []float64{0.5, -1, 0.2, 1}, 1, 3)

	// x-groups {intercept, first regressor} and {second, third}; labels are unsorted
	xGroups := []int{5, 2, 2, 5}
	yGroups := []int{1, 0, 1, 0}

	blocks, err := NewColumnSplitter(4, contrast.Options{}).Run(context.Background(), s.X, s.Y, xGroups, yGroups)
	require.NoError(t, err)
	require.Len(t, blocks, 4)

	order := make([][2]int, len(blocks))
	for i, b := range blocks {
		order[i] = [2]int{b.XGroup, b.YGroup}
	}
	assert.Equal(t, [][2]int{{2, 0}, {2, 1}, {5, 0}, {5, 1}}, order)

	first := blocks[0]
	assert.Equal(t, []int{1, 2}, first.XColumns)
	assert.Equal(t, []int{1, 3}, first.YColumns)
	n, p, q := first.Model.Dims()
	assert.Equal(t, 40, n)
	assert.Equal(t, 2, p)
	assert.Equal(t, 2, q)
	assert.Len(t, first.Stats.T, 2)

	rows, cols := first.Predicted.Dims()
	assert.Equal(t, 40, rows)
	assert.Equal(t, 2, cols)
	assert.InDelta(t, first.Model.Fitted().At(3, 1), first.Predicted.At(3, 1), 1e-12)
}

func TestSplitterErrors(t *testing.T) {
	kit := testkit.NewTestKit(3)
	s := kit.Regression(30, []float64{1, 1, 1}, 1, 1)
	splitter := NewColumnSplitter(0, contrast.Options{})
	ctx := context.Background()

	_, err := splitter.Run(ctx, s.X, s.Y, []int{0, 0}, []int{0, 0})
	assert.True(t, errors.HasCode(err, errors.CodeDimension))

	_, err = splitter.Run(ctx, s.X, s.Y, []int{0, 0, 0}, []int{0})
	assert.True(t, errors.HasCode(err, errors.CodeDimension))

	blocks, err := splitter.Run(ctx, s.X, s.Y, []int{0, 0, 0}, []int{0, 1})
	require.NoError(t, err)

	_, err = MergeResponseBlocks(blocks, 9, 2)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))

	_, err = MergeResponseBlocks(blocks[:1], 0, 2)
	assert.True(t, errors.HasCode(err, errors.CodeDimension))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = splitter.Run(cancelled, s.X, s.Y, []int{0, 0, 0}, []int{0, 1})
	assert.ErrorIs(t, err, context.Canceled)
}
