// Package ols fits one ordinary-least-squares model per response column
// against a shared design matrix.
package ols

import (
	"log"

	"gomulm/domain/linalg"
	"gomulm/internal/errors"

	"gonum.org/v1/gonum/mat"
)

const zeroVarianceTolerance = 1e-20

// Design caches everything about X that every fit and contrast reuses.
type Design struct {
	x     *mat.Dense
	xpinv *mat.Dense
	rank  int
	df    float64
	n, p  int
}

// NewDesign validates X and computes its pseudo-inverse, rank and residual
// degrees of freedom. X is copied.
func NewDesign(x mat.Matrix) (*Design, error) {
	n, p := x.Dims()
	if n < 1 || p < 1 {
		return nil, errors.DimensionError("design matrix must be non-empty, got %dx%d", n, p)
	}
	if !linalg.IsFinite(x) {
		return nil, errors.InvalidInput("design matrix contains NaN or Inf")
	}
	if n < p {
		log.Printf("[OLS] design has fewer observations than regressors (n=%d, p=%d); fitting minimum-norm solution", n, p)
	}

	xc := mat.DenseCopyOf(x)
	xpinv, err := linalg.Pinv(xc)
	if err != nil {
		return nil, errors.Wrap(err, "pseudo-inverse of design failed")
	}
	rank, err := linalg.Rank(xc)
	if err != nil {
		return nil, errors.Wrap(err, "rank of design failed")
	}

	return &Design{
		x:     xc,
		xpinv: xpinv,
		rank:  rank,
		df:    linalg.Trace(linalg.ResidualForming(xc, xpinv)),
		n:     n,
		p:     p,
	}, nil
}

// X returns the design matrix. Callers must not modify it.
func (d *Design) X() *mat.Dense { return d.x }

// Pinv returns the p x n pseudo-inverse of X. Callers must not modify it.
func (d *Design) Pinv() *mat.Dense { return d.xpinv }

// Rank is the numerical rank of X.
func (d *Design) Rank() int { return d.rank }

// DF is the residual degrees of freedom, trace(I - X*pinv(X)).
func (d *Design) DF() float64 { return d.df }

// Dims returns the number of observations and regressors.
func (d *Design) Dims() (n, p int) { return d.n, d.p }

// Fit solves B = pinv(X) * Y for every column of Y in one product.
func (d *Design) Fit(y mat.Matrix) (*FittedModel, error) {
	n, q := y.Dims()
	if n != d.n {
		return nil, errors.DimensionError("row count mismatch: X has %d rows, Y has %d", d.n, n)
	}
	if q < 1 {
		return nil, errors.DimensionError("response matrix has no columns")
	}
	if !linalg.IsFinite(y) {
		return nil, errors.InvalidInput("response matrix contains NaN or Inf")
	}

	yc := mat.DenseCopyOf(y)
	b := mat.NewDense(d.p, q, nil)
	b.Mul(d.xpinv, yc)

	var resid mat.Dense
	resid.Mul(d.x, b)
	resid.Sub(yc, &resid)

	return &FittedModel{
		design: d,
		y:      yc,
		coef:   b,
		rss:    linalg.ColumnSumSquares(&resid),
		yss:    linalg.ColumnSumSquares(yc),
		q:      q,
	}, nil
}

// FittedModel is the immutable result of a mass-univariate fit.
type FittedModel struct {
	design *Design
	y      *mat.Dense
	coef   *mat.Dense
	rss    []float64
	yss    []float64
	q      int
}

// Fit builds the design for X and fits Y against it.
func Fit(x, y mat.Matrix) (*FittedModel, error) {
	xr, _ := x.Dims()
	yr, _ := y.Dims()
	if xr != yr {
		return nil, errors.DimensionError("row count mismatch: X has %d rows, Y has %d", xr, yr)
	}
	design, err := NewDesign(x)
	if err != nil {
		return nil, err
	}
	return design.Fit(y)
}

// Design returns the cached design shared by every refit.
func (m *FittedModel) Design() *Design { return m.design }

// Coefficients returns B (p x q). Callers must not modify it.
func (m *FittedModel) Coefficients() *mat.Dense { return m.coef }

// Response returns the Y the model was fitted on. Callers must not modify it.
func (m *FittedModel) Response() *mat.Dense { return m.y }

// RSS returns the residual sum of squares of every response column.
func (m *FittedModel) RSS() []float64 { return m.rss }

// ZeroVariance reports whether response column j is fitted exactly, i.e. its
// RSS is zero relative to the column's own sum of squares.
func (m *FittedModel) ZeroVariance(j int) bool {
	return m.rss[j] <= zeroVarianceTolerance*m.yss[j]
}

// DF is the residual degrees of freedom shared by all responses.
func (m *FittedModel) DF() float64 { return m.design.df }

// Dims returns n, p and q.
func (m *FittedModel) Dims() (n, p, q int) { return m.design.n, m.design.p, m.q }

// Predict returns X * B for a matrix with the fitted number of regressors.
func (m *FittedModel) Predict(x mat.Matrix) (*mat.Dense, error) {
	_, p := x.Dims()
	if p != m.design.p {
		return nil, errors.DimensionError("predict expects %d columns, got %d", m.design.p, p)
	}
	var yhat mat.Dense
	yhat.Mul(x, m.coef)
	return &yhat, nil
}

// Fitted returns the in-sample predictions X * B.
func (m *FittedModel) Fitted() *mat.Dense {
	var yhat mat.Dense
	yhat.Mul(m.design.x, m.coef)
	return &yhat
}

// Residuals returns Y - X * B.
func (m *FittedModel) Residuals() *mat.Dense {
	resid := m.Fitted()
	resid.Sub(m.y, resid)
	return resid
}

// Columns returns a model restricted to the listed response columns. The
// design is shared, so the result equals fitting on those columns alone.
func (m *FittedModel) Columns(cols []int) (*FittedModel, error) {
	if len(cols) == 0 {
		return nil, errors.DimensionError("no response columns selected")
	}
	rss := make([]float64, len(cols))
	yss := make([]float64, len(cols))
	for k, j := range cols {
		if j < 0 || j >= m.q {
			return nil, errors.DimensionError("response column %d out of range [0,%d)", j, m.q)
		}
		rss[k] = m.rss[j]
		yss[k] = m.yss[j]
	}
	return &FittedModel{
		design: m.design,
		y:      linalg.SelectColumns(m.y, cols),
		coef:   linalg.SelectColumns(m.coef, cols),
		rss:    rss,
		yss:    yss,
		q:      len(cols),
	}, nil
}
