package ols

import (
	"math"
	"math/rand"
	"testing"

	"gomulm/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func designWithIntercept(rng *rand.Rand, n, p int) *mat.Dense {
	x := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p-1; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
		x.Set(i, p-1, 1)
	}
	return x
}

func noise(rng *rand.Rand, n, q int) *mat.Dense {
	y := mat.NewDense(n, q, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < q; j++ {
			y.Set(i, j, rng.NormFloat64())
		}
	}
	return y
}

func TestFitRecoversCoefficients(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	n, p := 50, 4
	x := designWithIntercept(rng, n, p)
	beta := mat.NewDense(p, 2, []float64{
		1, -2,
		0.5, 0,
		3, 1,
		2, 4,
	})

	var y mat.Dense
	y.Mul(x, beta)

	model, err := Fit(x, &y)
	require.NoError(t, err)

	assert.True(t, mat.EqualApprox(model.Coefficients(), beta, 1e-9))
	for _, rss := range model.RSS() {
		assert.InDelta(t, 0, rss, 1e-12)
	}
	assert.InDelta(t, float64(n-p), model.DF(), 1e-9)
	assert.Equal(t, p, model.Design().Rank())
}

func TestFitMatchesNormalEquations(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x := designWithIntercept(rng, 40, 3)
	y := noise(rng, 40, 5)

	model, err := Fit(x, y)
	require.NoError(t, err)

	// (X'X)^-1 X'Y
	var xtx, xtxInv, xty, b mat.Dense
	xtx.Mul(x.T(), x)
	require.NoError(t, xtxInv.Inverse(&xtx))
	xty.Mul(x.T(), y)
	b.Mul(&xtxInv, &xty)
	assert.True(t, mat.EqualApprox(model.Coefficients(), &b, 1e-9))

	resid := model.Residuals()
	for j, rss := range model.RSS() {
		col := mat.Col(nil, j, resid)
		assert.InDelta(t, mat.Dot(mat.NewVecDense(len(col), col), mat.NewVecDense(len(col), col)), rss, 1e-9)
		assert.GreaterOrEqual(t, rss, 0.0)
	}
}

func TestFitDimensionErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	_, err := Fit(designWithIntercept(rng, 10, 3), noise(rng, 9, 2))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeDimension))

	design, err := NewDesign(designWithIntercept(rng, 10, 3))
	require.NoError(t, err)
	_, err = design.Fit(noise(rng, 11, 1))
	assert.True(t, errors.HasCode(err, errors.CodeDimension))
}

func TestFitRejectsNonFiniteInput(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	tests := []struct {
		name string
		x, y *mat.Dense
	}{
		{"NaN in design", designWithIntercept(rng, 8, 2), noise(rng, 8, 2)},
		{"Inf in response", designWithIntercept(rng, 8, 2), noise(rng, 8, 2)},
	}
	tests[0].x.Set(3, 0, math.NaN())
	tests[1].y.Set(5, 1, math.Inf(-1))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.x, tt.y)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
		})
	}
}

func TestFitWideDesignIsSoftValidated(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	x := designWithIntercept(rng, 4, 7)
	y := noise(rng, 4, 3)

	model, err := Fit(x, y)
	require.NoError(t, err)
	assert.Equal(t, 4, model.Design().Rank())
	assert.InDelta(t, 0, model.DF(), 1e-9)

	// Minimum-norm solution still interpolates the data exactly.
	assert.True(t, mat.EqualApprox(model.Fitted(), y, 1e-9))
}

func TestPredict(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	x := designWithIntercept(rng, 20, 3)
	y := noise(rng, 20, 2)

	reg := NewRegression()
	_, err := reg.Predict(x)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeNotFitted))
	_, err = reg.Model()
	assert.True(t, errors.HasCode(err, errors.CodeNotFitted))

	model, err := reg.Fit(x, y)
	require.NoError(t, err)

	pred, err := reg.Predict(x)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(pred, model.Fitted(), 1e-12))

	_, err = reg.Predict(noise(rng, 5, 4))
	assert.True(t, errors.HasCode(err, errors.CodeDimension))
}

func TestColumnSubsetMatchesFullFit(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	x := designWithIntercept(rng, 30, 4)
	y := noise(rng, 30, 6)

	full, err := Fit(x, y)
	require.NoError(t, err)

	cols := []int{4, 1}
	sub, err := Fit(x, y.Slice(0, 30, 1, 2))
	require.NoError(t, err)
	restricted, err := full.Columns(cols)
	require.NoError(t, err)

	assert.InDelta(t, sub.RSS()[0], restricted.RSS()[1], 1e-12)
	assert.True(t, mat.EqualApprox(sub.Coefficients(), restricted.Coefficients().Slice(0, 4, 1, 2), 1e-12))

	_, err = full.Columns([]int{6})
	assert.True(t, errors.HasCode(err, errors.CodeDimension))
}
