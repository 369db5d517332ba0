// Package contrast computes t and F statistics for linear contrasts of the
// coefficients of a mass-univariate fit. It holds no state: every call takes
// the fitted model and the contrast.
package contrast

import (
	"math"

	"gomulm/domain/linalg"
	"gomulm/domain/ols"
	"gomulm/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// dfTolerance guards the residual degrees of freedom, which are a trace and
// therefore only approximately integral.
const dfTolerance = 1e-8

// nullSpaceTolerance is the relative size below which c.Xpinv counts as zero.
const nullSpaceTolerance = 1e-20

// Options selects p-value computation and tail handling.
type Options struct {
	PValues   bool
	TwoTailed bool
}

// TStat is the result of a single-contrast t-test, indexed by response column.
// P is nil when p-values were not requested.
type TStat struct {
	T  []float64 `json:"t"`
	P  []float64 `json:"p,omitempty"`
	DF float64   `json:"df"`
}

// TResult is the result of a batched t-test: row i belongs to contrast i.
type TResult struct {
	T  [][]float64 `json:"t"`
	P  [][]float64 `json:"p,omitempty"`
	DF float64     `json:"df"`
}

// Row returns the single-contrast view of row i.
func (r *TResult) Row(i int) TStat {
	s := TStat{T: r.T[i], DF: r.DF}
	if r.P != nil {
		s.P = r.P[i]
	}
	return s
}

// IdentityContrasts returns one contrast per regressor.
func IdentityContrasts(p int) *mat.Dense {
	return linalg.Identity(p)
}

// NewMatrix builds a contrast matrix from rows of equal width.
func NewMatrix(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.DimensionError("contrast matrix must be non-empty")
	}
	p := len(rows[0])
	data := make([]float64, 0, len(rows)*p)
	for i, row := range rows {
		if len(row) != p {
			return nil, errors.DimensionError("contrast row %d has %d entries, want %d", i, len(row), p)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), p, data), nil
}

// TTest computes t[j] = c.B[:,j] / sqrt(RSS[j]/df * (c.Xpinv)(c.Xpinv)') for a
// single contrast vector c of length p.
func TTest(model *ols.FittedModel, c []float64, opts Options) (*TStat, error) {
	if model == nil {
		return nil, errors.NotFitted("t-test")
	}
	_, p, _ := model.Dims()
	if len(c) != p {
		return nil, errors.DimensionError("contrast has %d entries, design has %d regressors", len(c), p)
	}
	if err := checkResidualDF(model); err != nil {
		return nil, err
	}

	t, pv, err := tRow(model, mat.NewVecDense(p, append([]float64(nil), c...)), 0, opts)
	if err != nil {
		return nil, err
	}
	return &TStat{T: t, P: pv, DF: model.DF()}, nil
}

// TTestBatch runs TTest for every row of the k x p contrast matrix, reusing the
// cached pseudo-inverse, RSS and df. The result has shape (k, q).
func TTestBatch(model *ols.FittedModel, contrasts mat.Matrix, opts Options) (*TResult, error) {
	if model == nil {
		return nil, errors.NotFitted("t-test")
	}
	_, p, _ := model.Dims()
	k, cp := contrasts.Dims()
	if cp != p {
		return nil, errors.DimensionError("contrast matrix has %d columns, design has %d regressors", cp, p)
	}
	if err := checkResidualDF(model); err != nil {
		return nil, err
	}
	if err := checkJointRank(model, contrasts); err != nil {
		return nil, err
	}

	res := &TResult{T: make([][]float64, k), DF: model.DF()}
	if opts.PValues {
		res.P = make([][]float64, k)
	}
	for i := 0; i < k; i++ {
		c := mat.NewVecDense(p, mat.Row(nil, i, contrasts))
		t, pv, err := tRow(model, c, i, opts)
		if err != nil {
			return nil, err
		}
		res.T[i] = t
		if opts.PValues {
			res.P[i] = pv
		}
	}
	return res, nil
}

func tRow(model *ols.FittedModel, c *mat.VecDense, index int, opts Options) ([]float64, []float64, error) {
	design := model.Design()
	n, _ := design.Dims()
	_, _, q := model.Dims()
	df := model.DF()

	// (c.Xpinv)(c.Xpinv)' without forming (X'X)^-1.
	cx := mat.NewVecDense(n, nil)
	cx.MulVec(design.Pinv().T(), c)
	quad := mat.Dot(cx, cx)
	pinvNorm := mat.Norm(design.Pinv(), 2)
	if quad <= nullSpaceTolerance*mat.Dot(c, c)*pinvNorm*pinvNorm {
		return nil, nil, errors.DegenerateContrast("contrast %d has zero variance under the design", index)
	}

	cb := mat.NewVecDense(q, nil)
	cb.MulVec(model.Coefficients().T(), c)

	rss := model.RSS()
	t := make([]float64, q)
	var pv []float64
	if opts.PValues {
		pv = make([]float64, q)
	}
	for j := 0; j < q; j++ {
		if rss[j] <= 0 || model.ZeroVariance(j) {
			return nil, nil, errors.DegenerateContrast("response column %d has zero residual variance", j)
		}
		t[j] = cb.AtVec(j) / math.Sqrt(rss[j]/df*quad)
		if math.IsNaN(t[j]) || math.IsInf(t[j], 0) {
			return nil, nil, errors.DegenerateContrast("non-finite t statistic for contrast %d, response column %d", index, j)
		}
		if opts.PValues {
			pv[j] = TPValue(t[j], df, opts.TwoTailed)
		}
	}
	return t, pv, nil
}

func checkResidualDF(model *ols.FittedModel) error {
	if df := model.DF(); df <= dfTolerance {
		return errors.DegenerateContrast("no residual degrees of freedom (df=%.3g)", df)
	}
	return nil
}

// checkJointRank rejects contrast sets spanning more dimensions than the
// design can estimate.
func checkJointRank(model *ols.FittedModel, contrasts mat.Matrix) error {
	rank, err := linalg.Rank(contrasts)
	if err != nil {
		return errors.Wrap(err, "rank of contrast matrix failed")
	}
	if rank > model.Design().Rank() {
		return errors.DegenerateContrast("contrast rank %d exceeds design rank %d", rank, model.Design().Rank())
	}
	return nil
}
