package contrast

import (
	"math"

	"gomulm/domain/linalg"
	"gomulm/domain/ols"
	"gomulm/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// FResult holds one F statistic per response column.
type FResult struct {
	F          []float64 `json:"f"`
	P          []float64 `json:"p,omitempty"`
	DFContrast int       `json:"df_contrast"`
	DFResidual int       `json:"df_residual"`
}

// FTest jointly tests the k rows of contrasts (k x p) by comparing the full
// model with the reduced model whose design has the contrast subspace
// projected out. PValues in opts is honored; TwoTailed is ignored.
func FTest(model *ols.FittedModel, contrasts mat.Matrix, opts Options) (*FResult, error) {
	if model == nil {
		return nil, errors.NotFitted("F-test")
	}
	design := model.Design()
	n, p := design.Dims()
	_, cp := contrasts.Dims()
	if cp != p {
		return nil, errors.DimensionError("contrast matrix has %d columns, design has %d regressors", cp, p)
	}
	if err := checkJointRank(model, contrasts); err != nil {
		return nil, err
	}

	// C1 is p x k; C0 projects onto the coefficient subspace orthogonal to it.
	c1 := mat.DenseCopyOf(contrasts.T())
	c1pinv, err := linalg.Pinv(c1)
	if err != nil {
		return nil, errors.Wrap(err, "pseudo-inverse of contrast failed")
	}
	var proj mat.Dense
	proj.Mul(c1, c1pinv)
	c0 := linalg.Identity(p)
	c0.Sub(c0, &proj)

	// Reduced model design.
	var x0 mat.Dense
	x0.Mul(design.X(), c0)
	x0pinv, err := linalg.Pinv(&x0)
	if err != nil {
		return nil, errors.Wrap(err, "pseudo-inverse of reduced design failed")
	}
	rank0, err := linalg.Rank(&x0)
	if err != nil {
		return nil, errors.Wrap(err, "rank of reduced design failed")
	}

	dfContrast := design.Rank() - rank0
	dfResidual := n - design.Rank()
	if dfContrast <= 0 {
		return nil, errors.DegenerateContrast("contrast adds no degrees of freedom over the reduced model (df_contrast=%d)", dfContrast)
	}
	if dfResidual <= 0 {
		return nil, errors.DegenerateContrast("no residual degrees of freedom (df_residual=%d)", dfResidual)
	}

	// M = R0 - R projects onto the part of the column space attributable to C1.
	m := linalg.ResidualForming(&x0, x0pinv)
	m.Sub(m, linalg.ResidualForming(design.X(), design.Pinv()))

	yhat := model.Fitted()
	var myhat mat.Dense
	myhat.Mul(m, yhat)

	_, _, q := model.Dims()
	rss := model.RSS()
	res := &FResult{
		F:          make([]float64, q),
		DFContrast: dfContrast,
		DFResidual: dfResidual,
	}
	if opts.PValues {
		res.P = make([]float64, q)
	}
	for j := 0; j < q; j++ {
		if rss[j] <= 0 || model.ZeroVariance(j) {
			return nil, errors.DegenerateContrast("response column %d has zero residual variance", j)
		}
		var ss float64
		for i := 0; i < n; i++ {
			ss += yhat.At(i, j) * myhat.At(i, j)
		}
		f := (ss * float64(dfResidual)) / (rss[j] * float64(dfContrast))
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.DegenerateContrast("non-finite F statistic for response column %d", j)
		}
		res.F[j] = f
		if opts.PValues {
			res.P[j] = FPValue(f, dfContrast, dfResidual)
		}
	}
	return res, nil
}
