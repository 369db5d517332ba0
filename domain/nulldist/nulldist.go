// Package nulldist holds the empirical null distribution of a maxT run: one
// maximum statistic per permutation.
package nulldist

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// NullDistribution collects per-permutation maxima. Partial distributions
// built on different workers combine with Merge; order does not matter.
type NullDistribution struct {
	Maxima  []float64
	Skipped int
}

// New returns an empty distribution with room for n entries.
func New(n int) *NullDistribution {
	return &NullDistribution{Maxima: make([]float64, 0, n)}
}

// Add records the maximum statistic of one permutation.
func (d *NullDistribution) Add(v float64) {
	d.Maxima = append(d.Maxima, v)
}

// Skip counts a permutation whose refit was degenerate.
func (d *NullDistribution) Skip() {
	d.Skipped++
}

// Len is the number of usable permutations.
func (d *NullDistribution) Len() int {
	return len(d.Maxima)
}

// Merge appends the entries of others.
func (d *NullDistribution) Merge(others ...*NullDistribution) {
	for _, o := range others {
		if o == nil {
			continue
		}
		d.Maxima = append(d.Maxima, o.Maxima...)
		d.Skipped += o.Skipped
	}
}

// Ranker answers corrected p-value queries against a sorted snapshot.
type Ranker struct {
	sorted []float64
}

// Ranker snapshots the current entries for repeated CorrectedP queries.
func (d *NullDistribution) Ranker() *Ranker {
	sorted := append([]float64(nil), d.Maxima...)
	sort.Float64s(sorted)
	return &Ranker{sorted: sorted}
}

// CorrectedP returns (1 + #{null >= stat}) / (1 + N).
func (r *Ranker) CorrectedP(stat float64) float64 {
	n := len(r.sorted)
	exceed := n - sort.SearchFloat64s(r.sorted, stat)
	return float64(1+exceed) / float64(1+n)
}

// CorrectedP is the single-query form of Ranker.CorrectedP.
func (d *NullDistribution) CorrectedP(stat float64) float64 {
	return d.Ranker().CorrectedP(stat)
}

// CorrectedGrid maps an observed (k, q) grid of t statistics to corrected
// p-values. Two-tailed compares |t| against maxima of |t|; one-tailed compares
// the signed statistic against maxima of signed t.
func (d *NullDistribution) CorrectedGrid(observed [][]float64, twoTailed bool) [][]float64 {
	ranker := d.Ranker()
	out := make([][]float64, len(observed))
	for i, row := range observed {
		out[i] = make([]float64, len(row))
		for j, t := range row {
			if twoTailed {
				t = math.Abs(t)
			}
			out[i][j] = ranker.CorrectedP(t)
		}
	}
	return out
}

// Summary provides key statistics about the null distribution
type Summary struct {
	Count        int     `json:"count"`
	Skipped      int     `json:"skipped"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Percentile95 float64 `json:"percentile_95"`
	Percentile99 float64 `json:"percentile_99"`
}

// Summary describes the distribution. An empty distribution yields a zero
// summary carrying only the skip count.
func (d *NullDistribution) Summary() (Summary, error) {
	s := Summary{Count: len(d.Maxima), Skipped: d.Skipped}
	if len(d.Maxima) == 0 {
		return s, nil
	}

	data := stats.Float64Data(d.Maxima)
	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, err
	}
	if s.StdDev, err = stats.StandardDeviation(data); err != nil {
		return s, err
	}
	if s.Min, err = stats.Min(data); err != nil {
		return s, err
	}
	if s.Max, err = stats.Max(data); err != nil {
		return s, err
	}
	if s.Percentile95, err = stats.Percentile(data, 95); err != nil {
		return s, err
	}
	if s.Percentile99, err = stats.Percentile(data, 99); err != nil {
		return s, err
	}
	return s, nil
}
