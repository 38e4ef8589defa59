package grids

import "fmt"

// ShapeMismatchError reports a sparse index outside the dense bounds, or a
// dense buffer whose length disagrees with the grid shape.
type ShapeMismatchError struct {
	Shape Shape
	Index uint32
	Got   int
}

func (e *ShapeMismatchError) Error() string {
	if e.Got > 0 {
		return fmt.Sprintf("dense field has %d values, grid shape %s holds %d cells", e.Got, e.Shape, e.Shape.NumCells())
	}
	return fmt.Sprintf("sparse index %d out of bounds for grid shape %s (%d cells)", e.Index, e.Shape, e.Shape.NumCells())
}

// Decode scatters a sparse (index, value) encoding into a dense grid of the
// given shape. Indices are 0-based flattened coordinates into the row-major
// dense buffer; cells not named by an index stay zero.
func Decode(index []uint32, value []float32, shape Shape) (Grid, error) {
	if len(index) != len(value) {
		return Grid{}, fmt.Errorf("sparse field has %d indices but %d values", len(index), len(value))
	}
	cells := shape.NumCells()
	data := make([]float32, cells)
	for i, idx := range index {
		if int(idx) >= cells {
			return Grid{}, &ShapeMismatchError{Shape: shape, Index: idx}
		}
		data[idx] = value[i]
	}
	return Grid{Data: data, Dims: shape.Dims()}, nil
}
