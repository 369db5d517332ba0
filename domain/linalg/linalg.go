// Package linalg holds the pure matrix helpers shared by the fitter and the
// contrast engine: pseudo-inverse, rank and residual-forming matrices.
package linalg

import (
	"math"

	"gomulm/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// Tolerance returns the singular-value cutoff used for pinv and rank:
// max(m, n) * eps * largest singular value.
func Tolerance(m, n int, values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return float64(max(m, n)) * eps * values[0]
}

const eps = 2.220446049250313e-16

// Pinv computes the Moore-Penrose pseudo-inverse of a using a thin SVD.
// The result has the transposed shape of a.
func Pinv(a mat.Matrix) (*mat.Dense, error) {
	m, n := a.Dims()
	if m == 0 || n == 0 {
		return nil, errors.DimensionError("pinv of empty %dx%d matrix", m, n)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, errors.InternalError("SVD factorization failed")
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	sigma := svd.Values(nil)
	tol := Tolerance(m, n, sigma)

	// A+ = V * S+ * U^T, skipping columns whose singular value is below tol.
	k := len(sigma)
	scaled := mat.NewDense(n, k, nil)
	for j, s := range sigma {
		if s <= tol {
			continue
		}
		inv := 1 / s
		for i := 0; i < n; i++ {
			scaled.Set(i, j, v.At(i, j)*inv)
		}
	}

	pinv := mat.NewDense(n, m, nil)
	pinv.Mul(scaled, u.T())
	return pinv, nil
}

// Rank returns the numerical rank of a with the same cutoff as Pinv.
func Rank(a mat.Matrix) (int, error) {
	m, n := a.Dims()
	if m == 0 || n == 0 {
		return 0, nil
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDNone); !ok {
		return 0, errors.InternalError("SVD factorization failed")
	}
	sigma := svd.Values(nil)
	tol := Tolerance(m, n, sigma)

	rank := 0
	for _, s := range sigma {
		if s > tol {
			rank++
		}
	}
	return rank, nil
}

// Identity returns the n x n identity matrix.
func Identity(n int) *mat.Dense {
	id := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		id.Set(i, i, 1)
	}
	return id
}

// ResidualForming returns I - X * Xpinv, the projector onto the orthogonal
// complement of the column space of X.
func ResidualForming(x, xpinv mat.Matrix) *mat.Dense {
	n, _ := x.Dims()
	var hat mat.Dense
	hat.Mul(x, xpinv)

	r := Identity(n)
	r.Sub(r, &hat)
	return r
}

// Trace sums the diagonal of a square matrix.
func Trace(a mat.Matrix) float64 {
	return mat.Trace(a)
}

// ColumnSumSquares returns the sum of squares of every column of a.
func ColumnSumSquares(a mat.Matrix) []float64 {
	r, c := a.Dims()
	out := make([]float64, c)
	for j := 0; j < c; j++ {
		var ss float64
		for i := 0; i < r; i++ {
			v := a.At(i, j)
			ss += v * v
		}
		out[j] = ss
	}
	return out
}

// SelectColumns copies the listed columns of a into a new matrix, in order.
func SelectColumns(a mat.Matrix, cols []int) *mat.Dense {
	r, _ := a.Dims()
	out := mat.NewDense(r, len(cols), nil)
	for k, j := range cols {
		for i := 0; i < r; i++ {
			out.Set(i, k, a.At(i, j))
		}
	}
	return out
}

// PermuteRows returns a copy of a whose row i is row perm[i] of a.
func PermuteRows(a mat.Matrix, perm []int) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	for i, src := range perm {
		for j := 0; j < c; j++ {
			out.Set(i, j, a.At(src, j))
		}
	}
	return out
}

// IsFinite reports whether every entry of a is a finite number.
func IsFinite(a mat.Matrix) bool {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := a.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
