package ports

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// NamedMatrix is a numeric matrix with one header per column
type NamedMatrix struct {
	Headers []string
	Data    *mat.Dense
}

// MatrixReaderPort loads design and response matrices from an external source
type MatrixReaderPort interface {
	// ReadMatrix reads every row below the header as one observation
	ReadMatrix(ctx context.Context, path string) (*NamedMatrix, error)
}

// LabeledGrid is a result grid with row labels (contrasts) and column headers
// (responses). Corner names the label column.
type LabeledGrid struct {
	Corner    string
	RowLabels []string
	Headers   []string
	Values    [][]float64
}

// GridWriterPort persists result grids
type GridWriterPort interface {
	WriteGrid(ctx context.Context, path string, grid LabeledGrid) error
}
