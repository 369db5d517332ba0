package contrast

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// TSurvival is the upper-tail probability P(T > t) of Student's t with df
// degrees of freedom.
func TSurvival(t, df float64) float64 {
	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(t)
}

// TPValue converts a t statistic into a p-value. One-tailed returns the upper
// tail; two-tailed returns 2*P(T > |t|), which equals 2*min(p, 1-p) of the
// one-tailed value.
func TPValue(t, df float64, twoTailed bool) float64 {
	if !twoTailed {
		return TSurvival(t, df)
	}
	return math.Min(1, 2*TSurvival(math.Abs(t), df))
}

// FPValue is the upper-tail probability of the F distribution with (d1, d2)
// degrees of freedom.
func FPValue(f float64, d1, d2 int) float64 {
	return distuv.F{D1: float64(d1), D2: float64(d2)}.Survival(f)
}
