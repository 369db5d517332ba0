package app

import (
	"context"
	"time"

	"gomulm/adapters/battery"
	"gomulm/domain/contrast"
	"gomulm/domain/nulldist"
	"gomulm/domain/ols"
	"gomulm/internal"
	"gomulm/internal/config"
	"gomulm/internal/errors"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// AnalysisService runs a complete mass-univariate analysis: one fit, the
// contrast t-tests, an optional F-test and an optional maxT correction.
type AnalysisService struct {
	referee *battery.MaxTReferee
	cfg     *config.Config
	logger  *internal.Logger
}

// AnalysisRequest defines the inputs of one analysis run
type AnalysisRequest struct {
	X         mat.Matrix
	Y         mat.Matrix
	Contrasts mat.Matrix // nil means identity contrasts over every regressor
	FTest     bool
	MaxT      bool
}

// Positives counts cells below alpha
type Positives struct {
	Alpha     float64 `json:"alpha"`
	Raw       int     `json:"raw"`
	Corrected int     `json:"corrected"`
}

// AnalysisReport contains the complete output of an analysis run
type AnalysisReport struct {
	RunID       string             `json:"run_id"`
	N           int                `json:"n"`
	P           int                `json:"p"`
	Q           int                `json:"q"`
	TwoTailed   bool               `json:"two_tailed"`
	T           *contrast.TResult  `json:"t"`
	F           *contrast.FResult  `json:"f,omitempty"`
	MaxT        *MaxTReport        `json:"max_t,omitempty"`
	NullSummary []nulldist.Summary `json:"null_summary,omitempty"`
	Positives   Positives          `json:"positives"`
	RuntimeMs   int64              `json:"runtime_ms"`
}

// MaxTReport is the serialisable part of a maxT result
type MaxTReport struct {
	Family       string      `json:"family"`
	Corrected    [][]float64 `json:"corrected"`
	Permutations int         `json:"permutations"`
	Skipped      int         `json:"skipped"`
}

// NewAnalysisService creates an analysis service. referee may be nil when
// the service never runs maxT corrections.
func NewAnalysisService(referee *battery.MaxTReferee, cfg *config.Config) *AnalysisService {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level)).With("AnalysisService")
	return &AnalysisService{referee: referee, cfg: cfg, logger: logger}
}

// Run executes the analysis described by req
func (s *AnalysisService) Run(ctx context.Context, req AnalysisRequest) (*AnalysisReport, error) {
	startTime := time.Now()
	runID := uuid.New().String()

	if req.X == nil || req.Y == nil {
		return nil, errors.InvalidInput("design and response are required")
	}

	model, err := ols.Fit(req.X, req.Y)
	if err != nil {
		return nil, errors.Wrap(err, "fit failed")
	}
	n, p, q := model.Dims()
	s.logger.Info("run %s: fitted n=%d p=%d q=%d (rank %d)", runID, n, p, q, model.Design().Rank())

	contrasts := req.Contrasts
	if contrasts == nil {
		contrasts = contrast.IdentityContrasts(p)
	}

	inference := s.cfg.Inference
	report := &AnalysisReport{
		RunID:     runID,
		N:         n,
		P:         p,
		Q:         q,
		TwoTailed: inference.TwoTailed,
		Positives: Positives{Alpha: inference.Alpha},
	}

	// raw positives need p-values even when the caller asked for none
	tres, err := contrast.TTestBatch(model, contrasts, contrast.Options{PValues: true, TwoTailed: inference.TwoTailed})
	if err != nil {
		return nil, errors.Wrap(err, "t-test failed")
	}
	report.Positives.Raw = countBelow(tres.P, inference.Alpha)
	if !inference.PValues {
		tres.P = nil
	}
	report.T = tres

	if req.FTest {
		fres, err := contrast.FTest(model, contrasts, contrast.Options{PValues: inference.PValues})
		if err != nil {
			return nil, errors.Wrap(err, "F-test failed")
		}
		report.F = fres
		s.logger.Debug("run %s: F-test df=(%d, %d)", runID, fres.DFContrast, fres.DFResidual)
	}

	if req.MaxT {
		if s.referee == nil {
			return nil, errors.ConfigInvalid("maxT requested but no referee is configured")
		}
		mres, err := s.referee.TTestMaxT(ctx, model, contrasts, inference.TwoTailed)
		if err != nil {
			return nil, errors.Wrap(err, "maxT correction failed")
		}

		report.MaxT = &MaxTReport{
			Family:       mres.Family.String(),
			Corrected:    mres.Corrected,
			Permutations: mres.Permutations,
			Skipped:      mres.Skipped,
		}
		for _, null := range mres.Nulls {
			summary, err := null.Summary()
			if err != nil {
				return nil, errors.Wrap(err, "null summary failed")
			}
			report.NullSummary = append(report.NullSummary, summary)
		}
		report.Positives.Corrected = countBelow(mres.Corrected, inference.Alpha)
		if mres.Skipped > 0 {
			s.logger.Warn("run %s: %d permutations skipped", runID, mres.Skipped)
		}
	}

	report.RuntimeMs = time.Since(startTime).Milliseconds()
	s.logger.Info("run %s: %d raw and %d corrected positives at alpha %.3g in %dms",
		runID, report.Positives.Raw, report.Positives.Corrected, inference.Alpha, report.RuntimeMs)
	return report, nil
}

func countBelow(grid [][]float64, alpha float64) int {
	count := 0
	for _, row := range grid {
		for _, p := range row {
			if p < alpha {
				count++
			}
		}
	}
	return count
}
