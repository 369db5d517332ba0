package excel

import (
	"context"
	"encoding/csv"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"gomulm/internal/errors"
	"gomulm/ports"

	"github.com/xuri/excelize/v2"
)

// GridWriter stores labelled result grids (t, p, F) as CSV or XLSX.
type GridWriter struct{}

var _ ports.GridWriterPort = (*GridWriter)(nil)

// NewGridWriter creates a grid writer
func NewGridWriter() *GridWriter {
	return &GridWriter{}
}

// WriteGrid writes one sheet (or CSV file): a header row of column names, then
// one row per grid row led by its label.
func (w *GridWriter) WriteGrid(ctx context.Context, path string, grid ports.LabeledGrid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(grid.RowLabels) != len(grid.Values) {
		return errors.DimensionError("%d row labels for %d rows", len(grid.RowLabels), len(grid.Values))
	}

	records := make([][]string, 0, len(grid.Values)+1)
	records = append(records, append([]string{grid.Corner}, grid.Headers...))
	for i, row := range grid.Values {
		if len(row) != len(grid.Headers) {
			return errors.DimensionError("row %d has %d values, expected %d", i, len(row), len(grid.Headers))
		}
		record := make([]string, 0, len(row)+1)
		record = append(record, grid.RowLabels[i])
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		records = append(records, record)
	}

	switch fileType(path) {
	case "csv":
		return writeCSV(path, records)
	case "xlsx":
		return writeExcel(path, records)
	default:
		return errors.InvalidInput("unsupported file type: " + filepath.Ext(path))
	}
}

func writeCSV(path string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create CSV file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(records); err != nil {
		return errors.Wrap(err, "failed to write CSV file")
	}
	log.Printf("[GridWriter] wrote %d rows to %s", len(records)-1, path)
	return nil
}

func writeExcel(path string, records [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	for i, record := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, "invalid cell coordinates")
		}
		row := make([]interface{}, len(record))
		for j, v := range record {
			if i > 0 && j > 0 {
				// numeric cells stay numeric in the workbook
				if num, err := strconv.ParseFloat(v, 64); err == nil {
					row[j] = num
					continue
				}
			}
			row[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "failed to write row %d", i)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.Wrap(err, "failed to save Excel file")
	}
	log.Printf("[GridWriter] wrote %d rows to %s", len(records)-1, path)
	return nil
}
