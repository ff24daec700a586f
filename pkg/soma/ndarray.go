package soma

import (
	"context"
	"fmt"
	"slices"

	"somacore/internal/engine"
	"somacore/internal/errors"
	"somacore/pkg/frame"
	"somacore/pkg/tensor"
)

// dataAttr is the value attribute of every tensor array.
const dataAttr = "data"

func dimName(i int) string { return fmt.Sprintf("__dim_%d", i) }

// ndarray holds what sparse and dense tensors share: integer dimensions
// __dim_0.. over [0, shape[i]) and one value attribute.
type ndarray struct {
	object
}

func (n *ndarray) create(ctx context.Context, t frame.DataType, shape []int64) error {
	if err := tensor.ValidateShape(shape); err != nil {
		return errors.Wrapf(ErrInvalidShape, "%s: %v", n.uri, err)
	}
	if !t.Numeric() {
		return errors.InvalidArgumentf("tensor element type must be numeric, got %s", t)
	}
	schema := engine.ArraySchema{
		Sparse:     n.kind == KindSparseNDArray,
		Capacity:   n.p.Options.Capacity,
		Attributes: []engine.Attribute{{Name: dataAttr, Type: t, Filters: engine.FilterList{engine.Zstd(n.p.Options.ZstdLevel)}}},
	}
	for i, extent := range shape {
		schema.Dimensions = append(schema.Dimensions, engine.Dimension{
			Name:       dimName(i),
			Type:       frame.Int64,
			Domain:     &engine.Domain{Lo: 0, Hi: extent - 1},
			TileExtent: min(extent, n.p.Options.TileExtent),
			Filters:    engine.FilterList{engine.Zstd(n.p.Options.ZstdLevel)},
		})
	}
	return n.engine().CreateArray(ctx, n.uri, schema, tagMetadata(n.kind))
}

func (n *ndarray) schema(ctx context.Context) (s engine.ArraySchema, err error) {
	err = n.withArray(ctx, engine.ModeRead, func(a *engine.ArrayHandle) error {
		s, err = a.Schema()
		return err
	})
	return s, err
}

// Shape returns the shape fixed at creation. It reads only the schema.
func (n *ndarray) Shape(ctx context.Context) ([]int64, error) {
	s, err := n.schema(ctx)
	if err != nil {
		return nil, err
	}
	return s.Shape(), nil
}

// ElementType returns the value type fixed at creation.
func (n *ndarray) ElementType(ctx context.Context) (frame.DataType, error) {
	s, err := n.schema(ctx)
	if err != nil {
		return "", err
	}
	a, ok := s.Attribute(dataAttr)
	if !ok {
		return "", errors.Newf("%s has no %s attribute", n.uri, dataAttr)
	}
	return a.Type, nil
}

// writeCells stores coords/values after checking them against the stored
// shape.
func (n *ndarray) writeCells(ctx context.Context, coords [][]int64, values []any) error {
	return n.withArray(ctx, engine.ModeWrite, func(a *engine.ArrayHandle) error {
		s, err := a.Schema()
		if err != nil {
			return err
		}
		shape := s.Shape()
		dims := make([][]int64, len(shape))
		for i, c := range coords {
			if err := tensor.InBounds(shape, c); err != nil {
				return errors.Wrapf(ErrOutOfBounds, "%s value %d: %v", n.uri, i, err)
			}
			for d := range shape {
				dims[d] = append(dims[d], c[d])
			}
		}
		tbl := &frame.Table{}
		for d := range shape {
			if err := tbl.AddColumn(frame.Int64s(dimName(d), dims[d]...)); err != nil {
				return err
			}
		}
		data, err := frame.NewColumn(dataAttr, s.Attributes[0].Type, values...)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "%s", n.uri), errors.ErrInvalidArgument)
		}
		if err := tbl.AddColumn(data); err != nil {
			return err
		}
		return a.Write(ctx, tbl)
	})
}

func (n *ndarray) readCells(ctx context.Context) (shape []int64, t frame.DataType, coords [][]int64, values []any, err error) {
	err = n.withArray(ctx, engine.ModeRead, func(a *engine.ArrayHandle) error {
		s, err := a.Schema()
		if err != nil {
			return err
		}
		tbl, err := a.Read(ctx, engine.Query{})
		if err != nil {
			return err
		}
		shape, t = s.Shape(), s.Attributes[0].Type
		dims := make([]*frame.Column, len(shape))
		for d := range shape {
			dims[d], _ = tbl.Column(dimName(d))
		}
		data, _ := tbl.Column(dataAttr)
		coords = make([][]int64, tbl.NumRows())
		for r := range coords {
			coords[r] = make([]int64, len(shape))
			for d := range shape {
				coords[r][d] = dims[d].Int64(r)
			}
		}
		values = data.Values
		return nil
	})
	return shape, t, coords, values, err
}

// SparseNDArray stores only the cells written to it.
type SparseNDArray struct {
	ndarray
}

// NewSparseNDArray returns a handle for the sparse array at uri.
func NewSparseNDArray(p *Platform, uri string) *SparseNDArray {
	return &SparseNDArray{ndarray{object: newObject(p, KindSparseNDArray, uri)}}
}

// Create persists an empty array of element type t and the given shape and
// returns it for chaining. Non-positive extents fail with ErrInvalidShape.
func (s *SparseNDArray) Create(ctx context.Context, t frame.DataType, shape []int64) (*SparseNDArray, error) {
	if err := s.create(ctx, t, shape); err != nil {
		return nil, err
	}
	return s, nil
}

// Write stores the coordinate/value pairs of coo. Any coordinate outside
// the stored shape fails the whole write with ErrOutOfBounds.
func (s *SparseNDArray) Write(ctx context.Context, coo *tensor.SparseCOO) error {
	if coo == nil {
		return errors.InvalidArgumentf("nil tensor")
	}
	if len(coo.Coords) != len(coo.Data) {
		return errors.InvalidArgumentf("%d coordinates for %d values", len(coo.Coords), len(coo.Data))
	}
	return s.writeCells(ctx, coo.Coords, coo.Data)
}

// Read returns every stored cell, ordered by coordinate.
func (s *SparseNDArray) Read(ctx context.Context) (*tensor.SparseCOO, error) {
	shape, t, coords, values, err := s.readCells(ctx)
	if err != nil {
		return nil, err
	}
	return &tensor.SparseCOO{Type: t, Shape: shape, Coords: coords, Data: values}, nil
}

// DenseNDArray materializes every cell; unwritten cells read as zero.
type DenseNDArray struct {
	ndarray
}

// NewDenseNDArray returns a handle for the dense array at uri.
func NewDenseNDArray(p *Platform, uri string) *DenseNDArray {
	return &DenseNDArray{ndarray{object: newObject(p, KindDenseNDArray, uri)}}
}

// Create persists an array of element type t and the given shape and
// returns it for chaining.
func (d *DenseNDArray) Create(ctx context.Context, t frame.DataType, shape []int64) (*DenseNDArray, error) {
	if err := d.create(ctx, t, shape); err != nil {
		return nil, err
	}
	return d, nil
}

// Write stores a full buffer. Its shape must equal the stored shape;
// otherwise cells would fall outside it and the write fails with
// ErrOutOfBounds.
func (d *DenseNDArray) Write(ctx context.Context, buf *tensor.Dense) error {
	if buf == nil {
		return errors.InvalidArgumentf("nil tensor")
	}
	shape, err := d.Shape(ctx)
	if err != nil {
		return err
	}
	if !slices.Equal(shape, buf.Shape) {
		return errors.Wrapf(ErrOutOfBounds, "%s: buffer shape %v, array shape %v", d.uri, buf.Shape, shape)
	}
	if int64(len(buf.Data)) != tensor.Cells(shape) {
		return errors.InvalidArgumentf("buffer has %d values for shape %v", len(buf.Data), shape)
	}
	coords := make([][]int64, len(buf.Data))
	for off := range coords {
		coords[off] = tensor.Unravel(shape, int64(off))
	}
	return d.writeCells(ctx, coords, buf.Data)
}

// Read returns the full buffer in row-major order.
func (d *DenseNDArray) Read(ctx context.Context) (*tensor.Dense, error) {
	shape, t, _, values, err := d.readCells(ctx)
	if err != nil {
		return nil, err
	}
	return &tensor.Dense{Type: t, Shape: shape, Data: values}, nil
}
