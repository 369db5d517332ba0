package app

import (
	"context"
	"log"
	"sort"
	"time"

	"gomulm/domain/contrast"
	"gomulm/domain/linalg"
	"gomulm/domain/ols"
	"gomulm/internal/errors"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// ColumnSplitter fits every (x-group, y-group) block of columns independently
type ColumnSplitter struct {
	workers int
	opts    contrast.Options
}

// SplitBlock is the outcome of one (x-group, y-group) block
type SplitBlock struct {
	XGroup    int
	YGroup    int
	XColumns  []int
	YColumns  []int
	Model     *ols.FittedModel
	Predicted *mat.Dense
	Stats     *contrast.TResult // identity contrasts over the block's regressors
}

// NewColumnSplitter creates a splitter running up to workers blocks at once
func NewColumnSplitter(workers int, opts contrast.Options) *ColumnSplitter {
	if workers < 1 {
		workers = 1
	}
	return &ColumnSplitter{workers: workers, opts: opts}
}

// groupColumns returns the sorted distinct labels and, per label, its columns
func groupColumns(labels []int) ([]int, map[int][]int) {
	columns := make(map[int][]int)
	for col, g := range labels {
		columns[g] = append(columns[g], col)
	}
	groups := make([]int, 0, len(columns))
	for g := range columns {
		groups = append(groups, g)
	}
	sort.Ints(groups)
	return groups, columns
}

// Run labels every column of x with xGroups and of y with yGroups, then fits
// each pair of groups on its own. Blocks come back ordered by x-group, then
// y-group.
func (s *ColumnSplitter) Run(ctx context.Context, x, y mat.Matrix, xGroups, yGroups []int) ([]SplitBlock, error) {
	_, p := x.Dims()
	_, q := y.Dims()
	if len(xGroups) != p {
		return nil, errors.DimensionError("%d x-group labels for %d regressors", len(xGroups), p)
	}
	if len(yGroups) != q {
		return nil, errors.DimensionError("%d y-group labels for %d responses", len(yGroups), q)
	}

	xLabels, xColumns := groupColumns(xGroups)
	yLabels, yColumns := groupColumns(yGroups)

	blocks := make([]SplitBlock, 0, len(xLabels)*len(yLabels))
	for _, xg := range xLabels {
		for _, yg := range yLabels {
			blocks = append(blocks, SplitBlock{
				XGroup:   xg,
				YGroup:   yg,
				XColumns: xColumns[xg],
				YColumns: yColumns[yg],
			})
		}
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range blocks {
		block := &blocks[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return s.fitBlock(block, x, y)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Printf("[ColumnSplitter] fitted %d blocks (%d x-groups, %d y-groups) in %.2fms",
		len(blocks), len(xLabels), len(yLabels), float64(time.Since(start).Nanoseconds())/1e6)
	return blocks, nil
}

func (s *ColumnSplitter) fitBlock(block *SplitBlock, x, y mat.Matrix) error {
	xb := linalg.SelectColumns(x, block.XColumns)
	yb := linalg.SelectColumns(y, block.YColumns)

	model, err := ols.Fit(xb, yb)
	if err != nil {
		return errors.Wrapf(err, "block (%d, %d) fit failed", block.XGroup, block.YGroup)
	}
	predicted, err := model.Predict(xb)
	if err != nil {
		return errors.Wrapf(err, "block (%d, %d) predict failed", block.XGroup, block.YGroup)
	}
	stats, err := contrast.TTestBatch(model, contrast.IdentityContrasts(len(block.XColumns)), s.opts)
	if err != nil {
		return errors.Wrapf(err, "block (%d, %d) t-test failed", block.XGroup, block.YGroup)
	}

	block.Model = model
	block.Predicted = predicted
	block.Stats = stats
	return nil
}

// MergeResponseBlocks reassembles the t grids of every block fitted on xGroup
// into one grid over all q responses, in original column order.
func MergeResponseBlocks(blocks []SplitBlock, xGroup, q int) (*contrast.TResult, error) {
	var merged *contrast.TResult
	filled := make([]bool, q)

	for _, block := range blocks {
		if block.XGroup != xGroup {
			continue
		}
		if block.Stats == nil {
			return nil, errors.NotFitted("block")
		}
		k := len(block.Stats.T)
		if merged == nil {
			merged = &contrast.TResult{T: newGrid(k, q), DF: block.Stats.DF}
			if block.Stats.P != nil {
				merged.P = newGrid(k, q)
			}
		}
		for local, col := range block.YColumns {
			if col >= q {
				return nil, errors.DimensionError("response column %d outside %d responses", col, q)
			}
			for i := 0; i < k; i++ {
				merged.T[i][col] = block.Stats.T[i][local]
				if merged.P != nil && block.Stats.P != nil {
					merged.P[i][col] = block.Stats.P[i][local]
				}
			}
			filled[col] = true
		}
	}

	if merged == nil {
		return nil, errors.InvalidInput("no blocks for the requested x-group")
	}
	for col, ok := range filled {
		if !ok {
			return nil, errors.DimensionError("response column %d missing from blocks", col)
		}
	}
	return merged, nil
}

func newGrid(rows, cols int) [][]float64 {
	grid := make([][]float64, rows)
	for i := range grid {
		grid[i] = make([]float64, cols)
	}
	return grid
}
