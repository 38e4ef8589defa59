// Package grids provides the dense and sparse representations of the 3-D
// scalar fields stored in feature archives.
//
// A field is kept as a flat row-major float32 buffer plus its dimensions.
// This keeps loading allocation-free beyond the single buffer and makes the
// conversion into tensors a trivial reshape.
package grids

import "fmt"

// Shape is the dense size of a 3-D scalar field, in grid points per axis.
type Shape [3]int

// NumCells returns the number of cells in the dense grid.
func (s Shape) NumCells() int {
	return s[0] * s[1] * s[2]
}

// Dims returns the shape as a dimension slice.
func (s Shape) Dims() []int {
	return []int{s[0], s[1], s[2]}
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d,%d,%d)", s[0], s[1], s[2])
}

// ShapeFromDims builds a Shape from a 3-element dimension slice.
func ShapeFromDims(dims []int) (Shape, error) {
	if len(dims) != 3 {
		return Shape{}, fmt.Errorf("grid shape needs exactly 3 dimensions, got %v", dims)
	}
	for _, d := range dims {
		if d <= 0 {
			return Shape{}, fmt.Errorf("grid shape dimensions must be positive, got %v", dims)
		}
	}
	return Shape{dims[0], dims[1], dims[2]}, nil
}

// Grid is an n-dimensional scalar field stored as a flat row-major buffer.
// The loader produces (channels, x, y, z) grids; the 2-D projection step
// produces (channels, a, b) grids.
type Grid struct {
	Data []float32
	Dims []int
}

// NumElems returns the product of the grid dimensions.
func (g Grid) NumElems() int {
	n := 1
	for _, d := range g.Dims {
		n *= d
	}
	return n
}

// Channels returns the leading dimension.
func (g Grid) Channels() int {
	if len(g.Dims) == 0 {
		return 0
	}
	return g.Dims[0]
}

// ChannelSize returns the number of values per channel.
func (g Grid) ChannelSize() int {
	n := 1
	for _, d := range g.Dims[1:] {
		n *= d
	}
	return n
}

// Channel returns the flat buffer of channel c. The returned slice aliases
// the grid's buffer.
func (g Grid) Channel(c int) []float32 {
	size := g.ChannelSize()
	return g.Data[c*size : (c+1)*size]
}

// Clone returns a deep copy of the grid.
func (g Grid) Clone() Grid {
	data := make([]float32, len(g.Data))
	copy(data, g.Data)
	dims := make([]int, len(g.Dims))
	copy(dims, g.Dims)
	return Grid{Data: data, Dims: dims}
}

// FromDense wraps a densely stored field in a Grid, checking that the value
// count matches the shape.
func FromDense(values []float32, shape Shape) (Grid, error) {
	if len(values) != shape.NumCells() {
		return Grid{}, &ShapeMismatchError{Shape: shape, Got: len(values)}
	}
	return Grid{Data: values, Dims: shape.Dims()}, nil
}

// Stack concatenates same-shaped 3-D grids into one (channels, x, y, z) grid.
func Stack(channels []Grid, shape Shape) Grid {
	cells := shape.NumCells()
	data := make([]float32, len(channels)*cells)
	for i, ch := range channels {
		copy(data[i*cells:], ch.Data)
	}
	return Grid{
		Data: data,
		Dims: []int{len(channels), shape[0], shape[1], shape[2]},
	}
}
