package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gomulm/internal/errors"
	"gomulm/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadMatrixCSV(t *testing.T) {
	path := writeFile(t, "design.csv", "age, dose,intercept\n34,1.5,1\n51, -0.25,1\n29,2e-1,1\n")

	m, err := NewDataReader(DefaultReaderConfig()).ReadMatrix(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "dose", "intercept"}, m.Headers)
	r, c := m.Data.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 51.0, m.Data.At(1, 0))
	assert.Equal(t, -0.25, m.Data.At(1, 1))
	assert.Equal(t, 0.2, m.Data.At(2, 1))
}

func TestReadMatrixCSVDelimiter(t *testing.T) {
	path := writeFile(t, "response.csv", "a;b\n1;2\n3;4\n")

	m, err := NewDataReader(ReaderConfig{Delimiter: ';'}).ReadMatrix(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 4.0, m.Data.At(1, 1))
}

func TestReadMatrixXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "response.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"y0", "y1"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{1.25, -3}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{0, 7.5}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	m, err := NewDataReader(DefaultReaderConfig()).ReadMatrix(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"y0", "y1"}, m.Headers)
	assert.Equal(t, 1.25, m.Data.At(0, 0))
	assert.Equal(t, -3.0, m.Data.At(0, 1))
	assert.Equal(t, 7.5, m.Data.At(1, 1))
}

func TestReadMatrixRejectsBadInput(t *testing.T) {
	reader := NewDataReader(DefaultReaderConfig())
	ctx := context.Background()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"non-numeric cell", "bad.csv", "a,b\n1,x\n"},
		{"header only", "empty.csv", "a,b\n"},
		{"unsupported extension", "data.json", "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reader.ReadMatrix(ctx, writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := reader.ReadMatrix(ctx, filepath.Join(t.TempDir(), "missing.csv"))
		assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
	})

	t.Run("short row", func(t *testing.T) {
		// encoding/csv itself rejects ragged records
		_, err := reader.ReadMatrix(ctx, writeFile(t, "short.csv", "a,b\n1\n"))
		assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
	})
}

func TestWriteGrid(t *testing.T) {
	grid := ports.LabeledGrid{
		Corner:    "contrast",
		RowLabels: []string{"c0", "c1"},
		Headers:   []string{"y0", "y1", "y2"},
		Values:    [][]float64{{1.5, -2, 0}, {0.25, 3, 1e-9}},
	}
	writer := NewGridWriter()
	ctx := context.Background()

	t.Run("csv", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "t.csv")
		require.NoError(t, writer.WriteGrid(ctx, path, grid))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "contrast,y0,y1,y2\nc0,1.5,-2,0\nc1,0.25,3,1e-09\n", string(content))
	})

	t.Run("xlsx", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "t.xlsx")
		require.NoError(t, writer.WriteGrid(ctx, path, grid))

		f, err := excelize.OpenFile(path)
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows("Sheet1")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"contrast", "y0", "y1", "y2"}, rows[0])
		assert.Equal(t, "c1", rows[2][0])
		assert.Equal(t, "3", rows[2][2])
	})

	t.Run("ragged grid", func(t *testing.T) {
		bad := grid
		bad.Values = [][]float64{{1}, {2}}
		err := writer.WriteGrid(ctx, filepath.Join(t.TempDir(), "bad.csv"), bad)
		assert.True(t, errors.HasCode(err, errors.CodeDimension))
	})
}
