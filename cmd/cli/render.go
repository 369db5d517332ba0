package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gomulm/app"
	"gomulm/ports"

	"github.com/jedib0t/go-pretty/v6/table"
)

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderGrid prints one row per response column and one column per grid row,
// since q is usually far larger than the number of contrasts.
func renderGrid(w io.Writer, title string, grid ports.LabeledGrid) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)

	header := table.Row{"response"}
	for _, label := range grid.RowLabels {
		header = append(header, label)
	}
	t.AppendHeader(header)

	for j, name := range grid.Headers {
		row := table.Row{name}
		for i := range grid.Values {
			row = append(row, formatValue(grid.Values[i][j]))
		}
		t.AppendRow(row)
	}

	t.Render()
}

func renderSummary(w io.Writer, report *app.AnalysisReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Analysis " + report.RunID)
	t.AppendHeader(table.Row{"Field", "Value"})

	t.AppendRow(table.Row{"dimensions", fmt.Sprintf("n=%d p=%d q=%d", report.N, report.P, report.Q)})
	t.AppendRow(table.Row{"residual df", formatValue(report.T.DF)})
	t.AppendRow(table.Row{"two-tailed", report.TwoTailed})
	if report.F != nil {
		t.AppendRow(table.Row{"F df", fmt.Sprintf("(%d, %d)", report.F.DFContrast, report.F.DFResidual)})
	}
	if report.MaxT != nil {
		t.AppendRow(table.Row{"maxT family", report.MaxT.Family})
		t.AppendRow(table.Row{"permutations", fmt.Sprintf("%d (%d skipped)", report.MaxT.Permutations, report.MaxT.Skipped)})
		for i, s := range report.NullSummary {
			t.AppendRow(table.Row{fmt.Sprintf("null %d p95 / p99", i), fmt.Sprintf("%s / %s", formatValue(s.Percentile95), formatValue(s.Percentile99))})
		}
	}
	t.AppendRow(table.Row{"raw positives", fmt.Sprintf("%d at alpha %s", report.Positives.Raw, formatValue(report.Positives.Alpha))})
	if report.MaxT != nil {
		t.AppendRow(table.Row{"corrected positives", report.Positives.Corrected})
	}
	t.AppendRow(table.Row{"runtime", fmt.Sprintf("%dms", report.RuntimeMs)})

	t.Render()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 5, 64)
}

func splitList(s string) []string {
	fields := strings.Split(s, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}
