package battery

import (
	"context"
	"log"
	"math"
	"math/rand"
	"time"

	"gomulm/domain/contrast"
	"gomulm/domain/linalg"
	"gomulm/domain/nulldist"
	"gomulm/domain/ols"
	"gomulm/internal/errors"
	"gomulm/ports"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Family selects which tests share one maximum per permutation.
type Family int

const (
	// FamilyGrid takes one maximum over every (contrast, response) cell.
	FamilyGrid Family = iota
	// FamilyContrast takes one maximum per contrast row, over responses.
	FamilyContrast
)

func (f Family) String() string {
	if f == FamilyContrast {
		return "contrast"
	}
	return "grid"
}

// ParseFamily maps "grid" or "contrast" to a Family.
func ParseFamily(s string) (Family, error) {
	switch s {
	case "", "grid":
		return FamilyGrid, nil
	case "contrast":
		return FamilyContrast, nil
	default:
		return FamilyGrid, errors.ConfigInvalid("unknown maxT family " + s)
	}
}

// MaxTConfig controls the permutation run
type MaxTConfig struct {
	Permutations int    // number of row permutations of Y (default: 1000)
	Seed         int64  // seed of the permutation stream
	Workers      int    // concurrent refits; 0 picks a default
	Family       Family // grid-wide or per-contrast maxima
}

// DefaultMaxTConfig returns the settings used when none are supplied
func DefaultMaxTConfig() MaxTConfig {
	return MaxTConfig{Permutations: 1000, Seed: 42, Workers: 4, Family: FamilyGrid}
}

// MaxTReferee corrects a family of contrast t-tests for family-wise error by
// comparing each statistic with the permutation distribution of the family
// maximum.
type MaxTReferee struct {
	rngPort ports.RNGPort
	cfg     MaxTConfig
}

// NewMaxTReferee creates a maxT referee drawing permutations from rngPort
func NewMaxTReferee(rngPort ports.RNGPort, cfg MaxTConfig) *MaxTReferee {
	return &MaxTReferee{rngPort: rngPort, cfg: cfg}
}

// Config returns the active configuration
func (r *MaxTReferee) Config() MaxTConfig {
	return r.cfg
}

// MaxTResult carries the observed statistics with their corrected p-values.
// T and DF are exactly those of contrast.TTestBatch on the unpermuted data.
// Nulls holds one distribution for FamilyGrid and one per contrast row for
// FamilyContrast.
type MaxTResult struct {
	T            [][]float64
	Corrected    [][]float64
	DF           float64
	Family       Family
	Nulls        []*nulldist.NullDistribution
	Permutations int // usable permutations
	Skipped      int
}

// TTestMaxT runs the observed t-tests for every contrast row, builds the maxT
// null distribution by permuting the rows of Y and returns
// max(raw p, (1 + #{null >= stat}) / (1 + N)) for every cell of the (k, q)
// grid, N being the usable permutations.
func (r *MaxTReferee) TTestMaxT(ctx context.Context, model *ols.FittedModel, contrasts mat.Matrix, twoTailed bool) (*MaxTResult, error) {
	if r.cfg.Permutations < 1 {
		return nil, errors.ConfigInvalid("maxT needs at least one permutation")
	}

	observed, err := contrast.TTestBatch(model, contrasts, contrast.Options{PValues: true, TwoTailed: twoTailed})
	if err != nil {
		return nil, errors.Wrap(err, "observed t-test failed")
	}

	rng, err := r.rngPort.SeededStream(ctx, "maxT", r.cfg.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open permutation stream")
	}

	nulls, err := r.BuildNull(ctx, model, contrasts, twoTailed, rng, r.cfg.Permutations)
	if err != nil {
		return nil, err
	}
	if nulls[0].Len() == 0 {
		return nil, errors.InsufficientPermutations(r.cfg.Permutations, nulls[0].Skipped)
	}

	return &MaxTResult{
		T:            observed.T,
		Corrected:    Correct(nulls, observed.T, observed.P, twoTailed),
		DF:           observed.DF,
		Family:       r.cfg.Family,
		Nulls:        nulls,
		Permutations: nulls[0].Len(),
		Skipped:      nulls[0].Skipped,
	}, nil
}

// Correct maps an observed (k, q) grid to corrected p-values. A single null
// serves the whole grid; otherwise nulls[i] serves contrast row i. When raw
// is non-nil every corrected cell is floored at its raw p-value.
func Correct(nulls []*nulldist.NullDistribution, observed, raw [][]float64, twoTailed bool) [][]float64 {
	var out [][]float64
	if len(nulls) == 1 {
		out = nulls[0].CorrectedGrid(observed, twoTailed)
	} else {
		out = make([][]float64, len(observed))
		for i, row := range observed {
			out[i] = nulls[i].CorrectedGrid([][]float64{row}, twoTailed)[0]
		}
	}
	if raw == nil {
		return out
	}
	for i := range out {
		for j := range out[i] {
			out[i][j] = math.Max(out[i][j], raw[i][j])
		}
	}
	return out
}

type permutationJob struct {
	index int
	perm  []int
}

const (
	slotPending = iota
	slotDone
	slotSkipped
)

// BuildNull evaluates count permutations drawn from rng and returns one null
// distribution per family slot. Permutations are drawn by a single producer
// and stored by index, so the result depends only on the stream, not on the
// number of workers. Cancelling ctx stops issuing new permutations; whatever
// finished is returned.
func (r *MaxTReferee) BuildNull(ctx context.Context, model *ols.FittedModel, contrasts mat.Matrix, twoTailed bool, rng *rand.Rand, count int) ([]*nulldist.NullDistribution, error) {
	if model == nil {
		return nil, errors.NotFitted("maxT")
	}
	if count < 1 {
		return nil, errors.ConfigInvalid("maxT needs at least one permutation")
	}
	if rng == nil {
		return nil, errors.ConfigInvalid("maxT needs a random source")
	}
	n, _, _ := model.Dims()
	k, _ := contrasts.Dims()
	slotCount := 1
	if r.cfg.Family == FamilyContrast {
		slotCount = k
	}

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	if count < 100 {
		workers = 1
	}

	start := time.Now()
	maxima := make([][]float64, count)
	slots := make([]int8, count)
	jobs := make(chan permutationJob, workers)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < count; i++ {
			if gctx.Err() != nil {
				return nil
			}
			perm := rng.Perm(n)
			select {
			case <-gctx.Done():
				return nil
			case jobs <- permutationJob{index: i, perm: perm}:
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for job := range jobs {
				peaks, err := PermutationStep(model, contrasts, job.perm, twoTailed, r.cfg.Family)
				if err != nil {
					if errors.HasCode(err, errors.CodeDegenerateContrast) {
						slots[job.index] = slotSkipped
						continue
					}
					return errors.Wrapf(err, "permutation %d failed", job.index)
				}
				maxima[job.index] = peaks
				slots[job.index] = slotDone
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	nulls := make([]*nulldist.NullDistribution, slotCount)
	for s := range nulls {
		nulls[s] = nulldist.New(count)
	}
	pending := 0
	for i, slot := range slots {
		switch slot {
		case slotDone:
			for s, null := range nulls {
				null.Add(maxima[i][s])
			}
		case slotSkipped:
			for _, null := range nulls {
				null.Skip()
			}
		default:
			pending++
		}
	}

	if pending > 0 {
		log.Printf("[MaxTReferee] stopped early: %d of %d permutations not evaluated", pending, count)
	}
	if nulls[0].Skipped > 0 {
		log.Printf("[MaxTReferee] skipped %d degenerate permutations", nulls[0].Skipped)
	}
	log.Printf("[MaxTReferee] %s null built in %.2fms (%d permutations, %d workers)",
		r.cfg.Family, float64(time.Since(start).Nanoseconds())/1e6, nulls[0].Len(), workers)

	return nulls, nil
}

// PermutationStep refits the model on Y with its rows reordered by perm and
// returns the maximum of |t| (two-tailed) or t (one-tailed) for each family
// slot: one value for FamilyGrid, one per contrast row for FamilyContrast.
// It is the unit callers may distribute themselves, merging the results into
// nulldist.NullDistribution values.
func PermutationStep(model *ols.FittedModel, contrasts mat.Matrix, perm []int, twoTailed bool, family Family) ([]float64, error) {
	if model == nil {
		return nil, errors.NotFitted("permutation step")
	}
	n, _, _ := model.Dims()
	if len(perm) != n {
		return nil, errors.DimensionError("permutation has %d indices, model has %d rows", len(perm), n)
	}

	permuted, err := model.Design().Fit(linalg.PermuteRows(model.Response(), perm))
	if err != nil {
		return nil, err
	}
	res, err := contrast.TTestBatch(permuted, contrasts, contrast.Options{})
	if err != nil {
		return nil, err
	}

	rowPeaks := make([]float64, len(res.T))
	for i, row := range res.T {
		peak := math.Inf(-1)
		for _, t := range row {
			if twoTailed {
				t = math.Abs(t)
			}
			if t > peak {
				peak = t
			}
		}
		rowPeaks[i] = peak
	}

	if family == FamilyContrast {
		return rowPeaks, nil
	}
	grid := math.Inf(-1)
	for _, peak := range rowPeaks {
		grid = math.Max(grid, peak)
	}
	return []float64{grid}, nil
}
