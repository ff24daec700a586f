// Package tensor holds the coordinate-value exchange formats for N-D arrays:
// a sparse COO form (one coordinate tuple per stored value) and a dense
// row-major buffer.
package tensor

import (
	"fmt"

	"somacore/pkg/frame"
)

// SparseCOO is a sparse tensor in coordinate-list form.
type SparseCOO struct {
	Type   frame.DataType
	Shape  []int64
	Coords [][]int64 // Coords[i] is the coordinate of Data[i]
	Data   []any
}

// NewSparseCOO builds a sparse tensor, coercing data to t and validating coordinates.
func NewSparseCOO(t frame.DataType, shape []int64, coords [][]int64, data []any) (*SparseCOO, error) {
	col, err := frame.NewColumn("data", t, data...)
	if err != nil {
		return nil, err
	}
	s := &SparseCOO{Type: t, Shape: append([]int64(nil), shape...), Coords: coords, Data: col.Values}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NNZ returns the number of stored values.
func (s *SparseCOO) NNZ() int { return len(s.Data) }

// Validate checks shape, coordinate arity and bounds.
func (s *SparseCOO) Validate() error {
	if err := ValidateShape(s.Shape); err != nil {
		return err
	}
	if len(s.Coords) != len(s.Data) {
		return fmt.Errorf("tensor: %d coordinates for %d values", len(s.Coords), len(s.Data))
	}
	for i, c := range s.Coords {
		if err := InBounds(s.Shape, c); err != nil {
			return fmt.Errorf("tensor: value %d: %w", i, err)
		}
	}
	return nil
}

// Lookup returns the value at coord, if stored.
func (s *SparseCOO) Lookup(coord ...int64) (any, bool) {
	for i, c := range s.Coords {
		if equalCoords(c, coord) {
			return s.Data[i], true
		}
	}
	return nil, false
}

// Dense is a dense tensor stored row-major.
type Dense struct {
	Type  frame.DataType
	Shape []int64
	Data  []any
}

// NewDense builds a dense tensor; len(data) must equal the shape's cell count.
func NewDense(t frame.DataType, shape []int64, data []any) (*Dense, error) {
	if err := ValidateShape(shape); err != nil {
		return nil, err
	}
	col, err := frame.NewColumn("data", t, data...)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != Cells(shape) {
		return nil, fmt.Errorf("tensor: dense buffer has %d values, shape %v needs %d", len(data), shape, Cells(shape))
	}
	return &Dense{Type: t, Shape: append([]int64(nil), shape...), Data: col.Values}, nil
}

// At returns the value at coord.
func (d *Dense) At(coord ...int64) (any, error) {
	off, err := Offset(d.Shape, coord)
	if err != nil {
		return nil, err
	}
	return d.Data[off], nil
}

// ValidateShape rejects empty shapes and non-positive extents.
func ValidateShape(shape []int64) error {
	if len(shape) == 0 {
		return fmt.Errorf("tensor: shape must have at least one dimension")
	}
	for i, n := range shape {
		if n <= 0 {
			return fmt.Errorf("tensor: dimension %d has non-positive extent %d", i, n)
		}
	}
	return nil
}

// Cells returns the number of cells described by shape.
func Cells(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

// ErrOutOfBounds is wrapped by InBounds and Offset failures.
var ErrOutOfBounds = fmt.Errorf("tensor: coordinate out of bounds")

// InBounds checks that coord has the shape's arity and lies within [0, shape[i]).
func InBounds(shape, coord []int64) error {
	if len(coord) != len(shape) {
		return fmt.Errorf("%w: coordinate %v has %d dimensions, shape %v has %d", ErrOutOfBounds, coord, len(coord), shape, len(shape))
	}
	for i, c := range coord {
		if c < 0 || c >= shape[i] {
			return fmt.Errorf("%w: coordinate %v outside shape %v", ErrOutOfBounds, coord, shape)
		}
	}
	return nil
}

// Offset returns the row-major offset of coord.
func Offset(shape, coord []int64) (int64, error) {
	if err := InBounds(shape, coord); err != nil {
		return 0, err
	}
	var off int64
	for i, c := range coord {
		off = off*shape[i] + c
	}
	return off, nil
}

// Unravel returns the coordinate of row-major offset off.
func Unravel(shape []int64, off int64) []int64 {
	coord := make([]int64, len(shape))
	for i := len(shape) - 1; i >= 0; i-- {
		coord[i] = off % shape[i]
		off /= shape[i]
	}
	return coord
}

func equalCoords(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
