// Package binning maps continuous feature values to small integer bins.
//
// The bin indices are uint8 values in [0, 255], so a feature can have at
// most 256 bins. Binned data is stored column-major (Fortran order) because
// the tree grower walks one feature at a time and needs each feature
// contiguous in memory.
package binning

import (
	"fmt"

	pygbmErrors "github.com/amueller/pygbm/pkg/errors"
)

// Layout identifies the memory order of a Matrix.
type Layout uint8

const (
	// ColumnMajor stores each feature contiguously (Fortran order).
	ColumnMajor Layout = iota
	// RowMajor stores each sample contiguously (C order).
	RowMajor
)

// String returns the conventional name of the layout.
func (l Layout) String() string {
	switch l {
	case ColumnMajor:
		return "F"
	case RowMajor:
		return "C"
	default:
		return fmt.Sprintf("Layout(%d)", uint8(l))
	}
}

// Matrix is a dense matrix of uint8 bin indices.
//
// Rows are samples and columns are features. The zero value is not usable;
// construct with NewMatrix, NewMatrixLayout or FromRows.
type Matrix struct {
	rows   int
	cols   int
	layout Layout
	data   []uint8
}

// NewMatrix allocates a rows x cols column-major matrix of zeros.
func NewMatrix(rows, cols int) *Matrix {
	return NewMatrixLayout(rows, cols, ColumnMajor)
}

// NewMatrixLayout allocates a rows x cols matrix of zeros with the given
// memory layout.
func NewMatrixLayout(rows, cols int, layout Layout) *Matrix {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("binning: negative dimension %dx%d", rows, cols))
	}
	return &Matrix{
		rows:   rows,
		cols:   cols,
		layout: layout,
		data:   make([]uint8, rows*cols),
	}
}

// FromRows builds a column-major matrix from row-major sample slices.
// Every row must have the same length.
func FromRows(rows [][]uint8) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, pygbmErrors.Wrap(pygbmErrors.ErrEmptyData, "binning.FromRows")
	}
	nCols := len(rows[0])
	m := NewMatrix(len(rows), nCols)
	for i, row := range rows {
		if len(row) != nCols {
			return nil, pygbmErrors.NewDimensionError("binning.FromRows", nCols, len(row), 1)
		}
		for j, v := range row {
			m.data[j*m.rows+i] = v
		}
	}
	return m, nil
}

// Rows returns the number of samples.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of features.
func (m *Matrix) Cols() int { return m.cols }

// Layout returns the memory order of the matrix.
func (m *Matrix) Layout() Layout { return m.layout }

// At returns the bin index of sample i, feature j.
func (m *Matrix) At(i, j int) uint8 {
	m.checkIndex(i, j)
	if m.layout == ColumnMajor {
		return m.data[j*m.rows+i]
	}
	return m.data[i*m.cols+j]
}

// Set assigns the bin index of sample i, feature j.
func (m *Matrix) Set(i, j int, v uint8) {
	m.checkIndex(i, j)
	if m.layout == ColumnMajor {
		m.data[j*m.rows+i] = v
	} else {
		m.data[i*m.cols+j] = v
	}
}

// Col returns the backing slice of feature j. Only column-major matrices
// have contiguous features; calling Col on a row-major matrix panics.
func (m *Matrix) Col(j int) []uint8 {
	if m.layout != ColumnMajor {
		panic("binning: Col requires a column-major matrix")
	}
	if j < 0 || j >= m.cols {
		panic(fmt.Sprintf("binning: column %d out of range [0, %d)", j, m.cols))
	}
	return m.data[j*m.rows : (j+1)*m.rows]
}

// AsColumnMajor returns a column-major view of the matrix. Column-major
// input is returned unchanged; row-major input is copied.
func (m *Matrix) AsColumnMajor() *Matrix {
	if m.layout == ColumnMajor {
		return m
	}
	out := NewMatrix(m.rows, m.cols)
	for i := 0; i < m.rows; i++ {
		rowOff := i * m.cols
		for j := 0; j < m.cols; j++ {
			out.data[j*m.rows+i] = m.data[rowOff+j]
		}
	}
	return out
}

// Row copies the bin indices of sample i into dst and returns it.
// A nil dst allocates a fresh slice.
func (m *Matrix) Row(dst []uint8, i int) []uint8 {
	if i < 0 || i >= m.rows {
		panic(fmt.Sprintf("binning: row %d out of range [0, %d)", i, m.rows))
	}
	if dst == nil {
		dst = make([]uint8, m.cols)
	}
	if m.layout == RowMajor {
		copy(dst, m.data[i*m.cols:(i+1)*m.cols])
		return dst
	}
	for j := 0; j < m.cols; j++ {
		dst[j] = m.data[j*m.rows+i]
	}
	return dst
}

func (m *Matrix) checkIndex(i, j int) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("binning: index (%d, %d) out of range %dx%d", i, j, m.rows, m.cols))
	}
}
