package main

import (
	"fmt"
	"strconv"

	"gomulm/app"
	"gomulm/domain/contrast"
	"gomulm/domain/ols"
	"gomulm/internal/errors"
	"gomulm/ports"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

func newFitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "fit",
		Short: "Fit Y on X and print the coefficients",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			x, y, err := opts.readInputs(ctx)
			if err != nil {
				return err
			}
			model, err := ols.Fit(x.Data, y.Data)
			if err != nil {
				return err
			}

			n, p, q := model.Dims()
			grid := ports.LabeledGrid{
				Corner:    "regressor",
				RowLabels: x.Headers,
				Headers:   y.Headers,
				Values:    denseRows(model.Coefficients()),
			}
			if err := opts.writeOut(ctx, grid); err != nil {
				return err
			}
			if opts.format == "json" {
				return renderJSON(cmd.OutOrStdout(), map[string]any{
					"n":            n,
					"p":            p,
					"q":            q,
					"rank":         model.Design().Rank(),
					"df":           model.DF(),
					"coefficients": grid.Values,
					"rss":          model.RSS(),
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "n=%d p=%d q=%d rank=%d df=%.4g\n", n, p, q, model.Design().Rank(), model.DF())
			renderGrid(cmd.OutOrStdout(), "Coefficients", grid)
			return nil
		},
	}
}

func newTTestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ttest",
		Short: "Contrast t-tests for every response column",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			x, y, err := opts.readInputs(ctx)
			if err != nil {
				return err
			}
			c, labels, err := opts.contrastMatrix(x)
			if err != nil {
				return err
			}
			model, err := ols.Fit(x.Data, y.Data)
			if err != nil {
				return err
			}

			res, err := contrast.TTestBatch(model, c, opts.c.ContrastOptions())
			if err != nil {
				return err
			}
			tGrid := ports.LabeledGrid{Corner: "contrast", RowLabels: labels, Headers: y.Headers, Values: res.T}
			if err := opts.writeOut(ctx, tGrid); err != nil {
				return err
			}
			if opts.format == "json" {
				return renderJSON(cmd.OutOrStdout(), res)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "df=%.4g\n", res.DF)
			renderGrid(cmd.OutOrStdout(), "t", tGrid)
			if res.P != nil {
				renderGrid(cmd.OutOrStdout(), "p", ports.LabeledGrid{Corner: "contrast", RowLabels: labels, Headers: y.Headers, Values: res.P})
			}
			return nil
		},
	}
}

func newFTestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ftest",
		Short: "Joint F-test of all contrast rows for every response column",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			x, y, err := opts.readInputs(ctx)
			if err != nil {
				return err
			}
			c, _, err := opts.contrastMatrix(x)
			if err != nil {
				return err
			}
			model, err := ols.Fit(x.Data, y.Data)
			if err != nil {
				return err
			}

			res, err := contrast.FTest(model, c, contrast.Options{PValues: opts.cfg.Inference.PValues})
			if err != nil {
				return err
			}

			values := [][]float64{res.F}
			rowLabels := []string{"F"}
			if res.P != nil {
				values = append(values, res.P)
				rowLabels = append(rowLabels, "p")
			}
			grid := ports.LabeledGrid{Corner: "statistic", RowLabels: rowLabels, Headers: y.Headers, Values: values}
			if err := opts.writeOut(ctx, grid); err != nil {
				return err
			}
			if opts.format == "json" {
				return renderJSON(cmd.OutOrStdout(), res)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "df=(%d, %d)\n", res.DFContrast, res.DFResidual)
			renderGrid(cmd.OutOrStdout(), "F-test", grid)
			return nil
		},
	}
}

func newMaxTCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "maxt",
		Short: "Contrast t-tests with permutation maxT family-wise correction",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			x, y, err := opts.readInputs(ctx)
			if err != nil {
				return err
			}
			c, labels, err := opts.contrastMatrix(x)
			if err != nil {
				return err
			}
			model, err := ols.Fit(x.Data, y.Data)
			if err != nil {
				return err
			}
			res, err := opts.c.Referee.TTestMaxT(ctx, model, c, opts.cfg.Inference.TwoTailed)
			if err != nil {
				return err
			}
			corrected := ports.LabeledGrid{Corner: "contrast", RowLabels: labels, Headers: y.Headers, Values: res.Corrected}
			if err := opts.writeOut(ctx, corrected); err != nil {
				return err
			}
			if opts.format == "json" {
				return renderJSON(cmd.OutOrStdout(), map[string]any{
					"t":            res.T,
					"corrected":    res.Corrected,
					"df":           res.DF,
					"family":       res.Family.String(),
					"permutations": res.Permutations,
					"skipped":      res.Skipped,
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "df=%.4g permutations=%d skipped=%d family=%s\n", res.DF, res.Permutations, res.Skipped, res.Family)
			renderGrid(cmd.OutOrStdout(), "t", ports.LabeledGrid{Corner: "contrast", RowLabels: labels, Headers: y.Headers, Values: res.T})
			renderGrid(cmd.OutOrStdout(), "maxT corrected p", corrected)
			return nil
		},
	}
}

func newSplitCmd(opts *options) *cobra.Command {
	var xGroups, yGroups string

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Fit and test every (x-group, y-group) block of columns",
		Long: `Fit and test every (x-group, y-group) block of columns independently.

Example: mulm-cli split --design x.csv --response y.xlsx --x-groups 0,0,1 --y-groups 0,1,1,2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.out != "" {
				return errors.InvalidInput("split produces one grid per block; --out is not supported")
			}
			ctx := cmd.Context()
			x, y, err := opts.readInputs(ctx)
			if err != nil {
				return err
			}
			_, p := x.Data.Dims()
			_, q := y.Data.Dims()
			xg, err := parseGroups(xGroups, p)
			if err != nil {
				return err
			}
			yg, err := parseGroups(yGroups, q)
			if err != nil {
				return err
			}

			blocks, err := opts.c.Splitter.Run(ctx, x.Data, y.Data, xg, yg)
			if err != nil {
				return err
			}

			if opts.format == "json" {
				out := make([]map[string]any, len(blocks))
				for i, b := range blocks {
					out[i] = map[string]any{
						"x_group":   b.XGroup,
						"y_group":   b.YGroup,
						"x_columns": b.XColumns,
						"y_columns": b.YColumns,
						"t":         b.Stats,
					}
				}
				return renderJSON(cmd.OutOrStdout(), out)
			}
			for _, b := range blocks {
				grid := ports.LabeledGrid{
					Corner:    "regressor",
					RowLabels: pick(x.Headers, b.XColumns),
					Headers:   pick(y.Headers, b.YColumns),
					Values:    b.Stats.T,
				}
				renderGrid(cmd.OutOrStdout(), fmt.Sprintf("block x=%d y=%d (df=%.4g)", b.XGroup, b.YGroup, b.Stats.DF), grid)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&xGroups, "x-groups", "", "Group label per design column (default: one group)")
	cmd.Flags().StringVar(&yGroups, "y-groups", "", "Group label per response column (default: one group)")
	return cmd
}

func newAnalyzeCmd(opts *options) *cobra.Command {
	var withF, withMaxT bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Full run: fit, t-tests, optional F-test and maxT, with a JSON report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			x, y, err := opts.readInputs(ctx)
			if err != nil {
				return err
			}
			c, labels, err := opts.contrastMatrix(x)
			if err != nil {
				return err
			}

			report, err := opts.c.Analysis.Run(ctx, app.AnalysisRequest{X: x.Data, Y: y.Data, Contrasts: c, FTest: withF, MaxT: withMaxT})
			if err != nil {
				return err
			}
			// corrected p when maxT ran, t otherwise
			grid := ports.LabeledGrid{Corner: "contrast", RowLabels: labels, Headers: y.Headers, Values: report.T.T}
			if report.MaxT != nil {
				grid.Values = report.MaxT.Corrected
			}
			if err := opts.writeOut(ctx, grid); err != nil {
				return err
			}
			if opts.format == "json" {
				return renderJSON(cmd.OutOrStdout(), report)
			}
			renderSummary(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&withF, "ftest", true, "Include the joint F-test")
	cmd.Flags().BoolVar(&withMaxT, "maxt", true, "Include the maxT correction")
	return cmd
}

func parseGroups(s string, width int) ([]int, error) {
	groups := make([]int, width)
	if s == "" {
		return groups, nil
	}
	fields := splitList(s)
	if len(fields) != width {
		return nil, errors.DimensionError("%d group labels for %d columns", len(fields), width)
	}
	for i, f := range fields {
		g, err := strconv.Atoi(f)
		if err != nil {
			return nil, errors.InvalidInput("bad group label " + strconv.Quote(f))
		}
		groups[i] = g
	}
	return groups, nil
}

func pick(names []string, cols []int) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = names[c]
	}
	return out
}

func denseRows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = make([]float64, c)
		for j := range rows[i] {
			rows[i][j] = m.At(i, j)
		}
	}
	return rows
}
