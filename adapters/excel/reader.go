package excel

import (
	"context"
	"encoding/csv"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gomulm/internal/errors"
	"gomulm/ports"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"
)

// DataReader reads numeric matrices from Excel and CSV files. The first row
// holds column headers, every following row is one observation.
type DataReader struct {
	config ReaderConfig
}

var _ ports.MatrixReaderPort = (*DataReader)(nil)

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(config ReaderConfig) *DataReader {
	if config.Delimiter == 0 {
		config.Delimiter = ','
	}
	return &DataReader{config: config}
}

func fileType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return "csv"
	case ".xlsx", ".xlsm":
		return "xlsx"
	default:
		return ""
	}
}

// ReadMatrix reads path into a NamedMatrix
func (r *DataReader) ReadMatrix(ctx context.Context, path string) (*ports.NamedMatrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kind := fileType(path)
	log.Printf("[DataReader] Starting to read %s file: %s", kind, path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.InvalidInput("file not found: " + path)
	}

	var rows [][]string
	var err error
	switch kind {
	case "csv":
		rows, err = r.readCSVRows(path)
	case "xlsx":
		rows, err = r.readExcelRows(path)
	default:
		return nil, errors.InvalidInput("unsupported file type: " + filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	return processRows(rows)
}

// readExcelRows reads the configured sheet, or the first one
func (r *DataReader) readExcelRows(path string) ([][]string, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, errors.Wrap(err, "failed to open Excel file"))
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.InvalidInput("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, errors.Wrapf(err, "failed to read sheet %s", sheet))
	}
	log.Printf("[DataReader] %s read in %.2fms (%d rows)", sheet, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))
	return rows, nil
}

func (r *DataReader) readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, errors.Wrap(err, "failed to open CSV file"))
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = r.config.Delimiter
	reader.TrimLeadingSpace = true

	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, errors.Wrap(err, "failed to read CSV file"))
	}
	log.Printf("[DataReader] CSV file read in %.2fms (%d rows)", float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))
	return rows, nil
}

// processRows converts a header row plus numeric rows into a NamedMatrix
func processRows(rows [][]string) (*ports.NamedMatrix, error) {
	if len(rows) < 2 {
		return nil, errors.InvalidInput("file must have at least a header row and one data row")
	}

	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.TrimSpace(header)
	}
	cols := len(headers)
	if cols == 0 {
		return nil, errors.InvalidInput("header row is empty")
	}

	data := mat.NewDense(len(rows)-1, cols, nil)
	for i, row := range rows[1:] {
		if len(row) != cols {
			return nil, errors.InvalidInput(
				"row " + strconv.Itoa(i+2) + " has " + strconv.Itoa(len(row)) + " cells, expected " + strconv.Itoa(cols))
		}
		for j, cell := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.InvalidInput(
					"non-numeric cell " + strconv.Quote(cell) + " in column " + headers[j] + " at row " + strconv.Itoa(i+2))
			}
			data.Set(i, j, v)
		}
	}

	log.Printf("[DataReader] matrix processed (%d columns, %d rows)", cols, len(rows)-1)
	return &ports.NamedMatrix{Headers: headers, Data: data}, nil
}
