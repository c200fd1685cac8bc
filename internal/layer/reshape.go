package layer

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Flatten turns [batch, rows, cols] images into [batch, rows*cols] rows.
// Batches are already stored one flattened image per row, so the layer only
// checks the width and copies.
type Flatten struct {
	rows, cols int
}

// NewFlatten creates a flatten layer for rows x cols inputs.
func NewFlatten(rows, cols int) *Flatten {
	return &Flatten{rows: rows, cols: cols}
}

// Shape returns the input image shape.
func (f *Flatten) Shape() (rows, cols int) { return f.rows, f.cols }

func (f *Flatten) Forward(x *mat.Dense) *mat.Dense {
	if _, c := x.Dims(); c != f.rows*f.cols {
		panic(fmt.Sprintf("Flatten: input has %d features, want %dx%d", c, f.rows, f.cols))
	}
	return mat.DenseCopyOf(x)
}

func (f *Flatten) Backward(grad *mat.Dense) *mat.Dense {
	return mat.DenseCopyOf(grad)
}

// Params returns nil (no learnable parameters).
func (f *Flatten) Params() []*Param { return nil }

// InSize returns the input size (flattened).
func (f *Flatten) InSize() int { return f.rows * f.cols }

// OutSize returns the output size (same as input).
func (f *Flatten) OutSize() int { return f.rows * f.cols }
