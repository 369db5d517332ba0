package testkit

import (
	"math/rand"

	"gomulm/adapters/rng"
	"gomulm/ports"

	"gonum.org/v1/gonum/mat"
)

// DefaultBeta is the causal coefficient vector of the reference scenario:
// three non-zero effects including the intercept in the last position.
var DefaultBeta = []float64{1, 0, -0.5, 0, 2}

// TestKit provides testing utilities and fixtures
type TestKit struct {
	rng *rand.Rand
}

// NewTestKit creates a test kit whose synthetic data is driven by seed
func NewTestKit(seed int64) *TestKit {
	return &TestKit{rng: rand.New(rand.NewSource(seed))}
}

// RNGAdapter returns the seeded RNG adapter used by the permutation engine
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return rng.NewSeededAdapter()
}

// Scenario is a synthetic regression problem with known ground truth
type Scenario struct {
	X      *mat.Dense
	Y      *mat.Dense
	Beta   []float64
	Causal int // leading response columns that depend on X
}

// DesignWithIntercept draws n x (p-1) standard normal regressors and appends
// a constant column.
func (t *TestKit) DesignWithIntercept(n, p int) *mat.Dense {
	x := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p-1; j++ {
			x.Set(i, j, t.rng.NormFloat64())
		}
		x.Set(i, p-1, 1)
	}
	return x
}

// Noise draws an n x q standard normal matrix.
func (t *TestKit) Noise(n, q int) *mat.Dense {
	y := mat.NewDense(n, q, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < q; j++ {
			y.Set(i, j, t.rng.NormFloat64())
		}
	}
	return y
}

// Regression builds X (n x len(beta), intercept last) and Y with causal + noisy
// columns; the first causal columns get X*beta added to their noise.
func (t *TestKit) Regression(n int, beta []float64, causal, noisy int) *Scenario {
	p := len(beta)
	x := t.DesignWithIntercept(n, p)
	y := t.Noise(n, causal+noisy)

	signal := mat.NewVecDense(n, nil)
	signal.MulVec(x, mat.NewVecDense(p, append([]float64(nil), beta...)))
	for j := 0; j < causal; j++ {
		for i := 0; i < n; i++ {
			y.Set(i, j, y.At(i, j)+signal.AtVec(i))
		}
	}

	return &Scenario{X: x, Y: y, Beta: beta, Causal: causal}
}

// ReferenceScenario is n=100, p=5, two causal and one hundred noise responses.
func (t *TestKit) ReferenceScenario() *Scenario {
	return t.Regression(100, DefaultBeta, 2, 100)
}

// ExpectedTruePositives counts the non-zero (contrast, response) cells of a
// scenario tested with identity contrasts.
func (s *Scenario) ExpectedTruePositives() int {
	nonZero := 0
	for _, b := range s.Beta {
		if b != 0 {
			nonZero++
		}
	}
	return nonZero * s.Causal
}
