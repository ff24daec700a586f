package engine

import (
	"context"
	"math"
	"time"

	"somacore/internal/errors"
	"somacore/internal/logger"
	"somacore/pkg/frame"
)

// WriteOptions controls WriteTable.
type WriteOptions struct {
	Mode             WriteMode
	Sparse           bool
	AllowsDuplicates bool
	Capacity         int
	TileExtent       int64
	DimFilters       FilterList
	AttrFilters      FilterList
	OffsetsFilters   FilterList
	// ColumnTypes overrides the stored type of named attribute columns.
	ColumnTypes map[string]frame.DataType
	// Metadata is attached to the array on create.
	Metadata map[string]string
}

// WriteTable writes an indexed table as a one-dimensional sparse array. The
// table index becomes the dimension and every other column an attribute.
// WriteCreate derives the schema and creates the array, failing with
// errors.ErrAlreadyExists if one is present; WriteAppend writes into the
// existing array.
func (e *Engine) WriteTable(ctx context.Context, uri string, tbl *frame.Table, opts WriteOptions) (err error) {
	defer e.observe("write_table", time.Now(), &err)
	start := time.Now()
	if tbl == nil {
		return errors.InvalidArgumentf("nil table")
	}
	if !opts.Sparse {
		return errors.InvalidArgumentf("table writes need a sparse array")
	}
	tbl, err = applyColumnTypes(tbl, opts.ColumnTypes)
	if err != nil {
		return err
	}
	switch opts.Mode {
	case WriteCreate:
		schema, err := SchemaFromTable(tbl, opts)
		if err != nil {
			return err
		}
		if err := e.CreateArray(ctx, uri, schema, opts.Metadata); err != nil {
			return err
		}
	case WriteAppend:
	default:
		return errors.InvalidArgumentf("unknown write mode %q", opts.Mode)
	}
	a, err := e.OpenArray(ctx, uri, ModeWrite)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	if err := a.Write(ctx, tbl); err != nil {
		return err
	}
	e.log.Debugw("table written",
		logger.FieldURI, uri,
		logger.FieldMode, string(opts.Mode),
		logger.FieldRows, tbl.NumRows(),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return nil
}

// SchemaFromTable derives the sparse schema WriteTable creates.
func SchemaFromTable(tbl *frame.Table, opts WriteOptions) (ArraySchema, error) {
	idx, ok := tbl.IndexColumn()
	if !ok {
		return ArraySchema{}, errors.InvalidArgumentf("table needs an index column to become a dimension")
	}
	dim := Dimension{Name: idx.Name, Type: idx.Type, TileExtent: opts.TileExtent, Filters: opts.DimFilters}
	switch idx.Type {
	case frame.Int32:
		dim.Domain = &Domain{Lo: math.MinInt32, Hi: math.MaxInt32 - opts.TileExtent}
	case frame.Int64:
		dim.Domain = &Domain{Lo: math.MinInt64, Hi: math.MaxInt64 - opts.TileExtent}
	case frame.String, frame.Bytes:
		dim.TileExtent = 0
	default:
		return ArraySchema{}, errors.InvalidArgumentf("index %q of type %s cannot be a dimension", idx.Name, idx.Type)
	}
	schema := ArraySchema{
		Sparse:           true,
		AllowsDuplicates: opts.AllowsDuplicates,
		Capacity:         opts.Capacity,
		Dimensions:       []Dimension{dim},
		OffsetsFilters:   opts.OffsetsFilters,
	}
	for _, c := range tbl.Columns() {
		if c.Name == idx.Name {
			continue
		}
		schema.Attributes = append(schema.Attributes, Attribute{Name: c.Name, Type: c.Type, Filters: opts.AttrFilters})
	}
	return schema, schema.Validate()
}

func applyColumnTypes(tbl *frame.Table, types map[string]frame.DataType) (*frame.Table, error) {
	if len(types) == 0 {
		return tbl, nil
	}
	out := tbl.Clone()
	for name, t := range types {
		c, ok := out.Column(name)
		if !ok || name == out.Index {
			continue
		}
		cast, err := c.Cast(t)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidArgument, "column type override: %v", err)
		}
		if err := out.ReplaceColumn(cast); err != nil {
			return nil, err
		}
	}
	return out, nil
}
