package soma

import (
	"context"
	"slices"
	"time"

	"somacore/internal/engine"
	"somacore/internal/errors"
	"somacore/internal/logger"
	"somacore/pkg/frame"
)

// Field declares one dataframe attribute for DataFrame.Create.
type Field struct {
	Name string
	Type frame.DataType
}

// DataFrame is an annotation table stored as a sparse array with a single
// string dimension named after the entity (obs -> obs_id) and one attribute
// per column.
type DataFrame struct {
	object
}

// NewDataFrame returns a handle for the dataframe at uri. No I/O is done.
func NewDataFrame(p *Platform, uri string) *DataFrame {
	return &DataFrame{object: newObject(p, KindDataFrame, uri)}
}

// DimensionName is the identifying column: the entity name plus "_id".
func (d *DataFrame) DimensionName() string { return d.Name() + "_id" }

func (d *DataFrame) dimFilters() engine.FilterList {
	return engine.FilterList{engine.Zstd(d.p.Options.ZstdLevel)}
}

func (d *DataFrame) offsetsFilters() engine.FilterList {
	return engine.FilterList{engine.PositiveDelta(), engine.Zstd(d.p.Options.ZstdLevel)}
}

// asciiTypes returns the storage overrides for the configured fixed-width
// byte columns present among names.
func (d *DataFrame) asciiTypes(names []string) map[string]frame.DataType {
	out := make(map[string]frame.DataType)
	for _, col := range d.p.Options.asciiColumns(d.Name()) {
		if slices.Contains(names, col) {
			out[col] = frame.Bytes
		}
	}
	return out
}

// Create persists an empty dataframe with the given attributes and returns
// it for chaining.
func (d *DataFrame) Create(ctx context.Context, fields []Field) (*DataFrame, error) {
	names := make([]string, len(fields))
	for i, f := range fields {
		if f.Name == d.DimensionName() {
			return nil, errors.InvalidArgumentf("attribute %q collides with the dimension", f.Name)
		}
		names[i] = f.Name
	}
	ascii := d.asciiTypes(names)
	schema := engine.ArraySchema{
		Sparse:           true,
		AllowsDuplicates: d.p.Options.AllowDuplicates,
		Capacity:         d.p.Options.Capacity,
		Dimensions:       []engine.Dimension{{Name: d.DimensionName(), Type: frame.String, Filters: d.dimFilters()}},
		OffsetsFilters:   d.offsetsFilters(),
	}
	for _, f := range fields {
		t := f.Type
		if override, ok := ascii[f.Name]; ok {
			t = override
		}
		schema.Attributes = append(schema.Attributes, engine.Attribute{
			Name:    f.Name,
			Type:    t,
			Filters: engine.FilterList{engine.Zstd(d.p.Options.ZstdLevel)},
		})
	}
	if err := d.engine().CreateArray(ctx, d.uri, schema, tagMetadata(KindDataFrame)); err != nil {
		return nil, err
	}
	return d, nil
}

// Shape returns the number of stored ids and the number of attributes. The
// row count is a full scan of the dimension and always equals len(IDs), so
// with duplicates allowed a repeated id counts once per stored cell.
func (d *DataFrame) Shape(ctx context.Context) (rows, cols int, err error) {
	err = d.withArray(ctx, engine.ModeRead, func(a *engine.ArrayHandle) error {
		schema, err := a.Schema()
		if err != nil {
			return err
		}
		ids, err := readIDs(ctx, a, d.DimensionName())
		if err != nil {
			return err
		}
		rows, cols = len(ids), len(schema.Attributes)
		return nil
	})
	return rows, cols, err
}

// IDs returns every stored dimension value in storage order.
func (d *DataFrame) IDs(ctx context.Context) (ids []string, err error) {
	err = d.withArray(ctx, engine.ModeRead, func(a *engine.ArrayHandle) error {
		ids, err = readIDs(ctx, a, d.DimensionName())
		return err
	})
	return ids, err
}

func readIDs(ctx context.Context, a *engine.ArrayHandle, dim string) ([]string, error) {
	tbl, err := a.Read(ctx, engine.Query{Attributes: []string{}})
	if err != nil {
		return nil, err
	}
	col, ok := tbl.Column(dim)
	if !ok {
		return nil, errors.Newf("array %s has no dimension %q", a.URI(), dim)
	}
	ids := make([]string, col.Len())
	for i := range ids {
		ids[i] = col.Text(i)
	}
	return ids, nil
}

// Keys returns the attribute names.
func (d *DataFrame) Keys(ctx context.Context) (keys []string, err error) {
	err = d.withArray(ctx, engine.ModeRead, func(a *engine.ArrayHandle) error {
		schema, err := a.Schema()
		keys = schema.AttributeNames()
		return err
	})
	return keys, err
}

// Select returns the rows whose id is in ids, or every row when ids is nil,
// indexed by the dimension. An empty, non-nil ids yields an empty table.
func (d *DataFrame) Select(ctx context.Context, ids []string) (*frame.Table, error) {
	q := engine.Query{}
	if ids != nil {
		points := make([]any, len(ids))
		for i, id := range ids {
			points[i] = id
		}
		q.Points = map[string][]any{d.DimensionName(): points}
	}
	return d.read(ctx, q)
}

// Table is shorthand for Select.
func (d *DataFrame) Table(ctx context.Context, ids []string) (*frame.Table, error) {
	return d.Select(ctx, ids)
}

// ToTable exports the whole dataframe indexed by the dimension, with
// fixed-width byte columns converted back to strings.
func (d *DataFrame) ToTable(ctx context.Context) (*frame.Table, error) {
	start := time.Now()
	tbl, err := d.read(ctx, engine.Query{})
	if err != nil {
		return nil, err
	}
	d.p.Log.Debugw("dataframe read",
		logger.FieldURI, d.uri,
		logger.FieldRows, tbl.NumRows(),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return tbl, nil
}

// Filter evaluates expr (for example `cell_type == "blood" and n > 3`) and
// keeps columns, or every attribute when columns is nil. When no row
// matches it returns a nil table and ok == false. Select, in contrast,
// returns an empty table for ids that match nothing.
//
// Only numeric and fixed-width byte attributes can appear in expr; list
// string columns in Options.ASCIIColumns to make them filterable.
func (d *DataFrame) Filter(ctx context.Context, expr string, columns []string) (tbl *frame.Table, ok bool, err error) {
	if columns != nil {
		columns = slices.DeleteFunc(slices.Clone(columns), func(c string) bool { return c == d.DimensionName() })
	}
	tbl, err = d.read(ctx, engine.Query{Condition: expr, Attributes: columns})
	if err != nil {
		return nil, false, err
	}
	if tbl.NumRows() == 0 {
		return nil, false, nil
	}
	return tbl, true, nil
}

func (d *DataFrame) read(ctx context.Context, q engine.Query) (out *frame.Table, err error) {
	err = d.withArray(ctx, engine.ModeRead, func(a *engine.ArrayHandle) error {
		tbl, err := a.Read(ctx, q)
		if err != nil {
			return err
		}
		out, err = d.export(tbl)
		return err
	})
	return out, err
}

func (d *DataFrame) export(tbl *frame.Table) (*frame.Table, error) {
	if err := tbl.SetIndex(d.DimensionName()); err != nil {
		return nil, err
	}
	for _, c := range tbl.Columns() {
		if c.Type != frame.Bytes || c.Name == tbl.Index {
			continue
		}
		text, err := c.Cast(frame.String)
		if err != nil {
			return nil, err
		}
		if err := tbl.ReplaceColumn(text); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

// Write ingests tbl with the platform's default tile extent.
func (d *DataFrame) Write(ctx context.Context, tbl *frame.Table) error {
	return d.Ingest(ctx, tbl, d.p.Options.TileExtent)
}

// Ingest stores the rows of tbl. The table index becomes the dimension,
// renamed to DimensionName; numeric index values are stored as their decimal
// text. The first ingest creates the array and later ones append to it.
// Configured ASCII columns are stored as fixed-width bytes.
func (d *DataFrame) Ingest(ctx context.Context, tbl *frame.Table, tileExtent int64) error {
	start := time.Now()
	if tbl == nil {
		return errors.InvalidArgumentf("nil table")
	}
	if tileExtent <= 0 {
		return errors.InvalidArgumentf("tile extent must be positive, got %d", tileExtent)
	}
	t := tbl.Clone()
	if err := t.RenameIndex(d.DimensionName()); err != nil {
		return errors.Wrapf(errors.ErrInvalidArgument, "ingest into %s: %v", d.uri, err)
	}
	if err := stringIndex(t); err != nil {
		return err
	}

	mode := engine.WriteCreate
	objType, err := d.engine().ObjectType(ctx, d.uri)
	if err != nil {
		return err
	}
	if objType == engine.Array {
		mode = engine.WriteAppend
	}
	if d.p.Options.RejectDuplicateIDs {
		if err := d.checkDuplicateIDs(ctx, t, mode); err != nil {
			return err
		}
	}
	d.p.Log.Debugw("dataframe write start", logger.FieldURI, d.uri, logger.FieldMode, string(mode), logger.FieldRows, t.NumRows())

	err = d.engine().WriteTable(ctx, d.uri, t, engine.WriteOptions{
		Mode:             mode,
		Sparse:           true,
		AllowsDuplicates: d.p.Options.AllowDuplicates,
		Capacity:         d.p.Options.Capacity,
		TileExtent:       tileExtent,
		DimFilters:       d.dimFilters(),
		AttrFilters:      engine.FilterList{engine.Zstd(d.p.Options.ZstdLevel)},
		OffsetsFilters:   d.offsetsFilters(),
		ColumnTypes:      d.asciiTypes(t.ColumnNames()),
		Metadata:         tagMetadata(KindDataFrame),
	})
	if err != nil {
		return err
	}
	d.p.Log.Debugw("dataframe write finish",
		logger.FieldURI, d.uri,
		logger.FieldMode, string(mode),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return nil
}

func stringIndex(t *frame.Table) error {
	idx, _ := t.IndexColumn()
	if idx.Type == frame.String {
		return nil
	}
	text := make([]string, idx.Len())
	for i := range text {
		text[i] = idx.Text(i)
	}
	return t.ReplaceColumn(frame.Strings(idx.Name, text...))
}

func (d *DataFrame) checkDuplicateIDs(ctx context.Context, t *frame.Table, mode engine.WriteMode) error {
	idx, _ := t.IndexColumn()
	seen := make(map[string]struct{}, idx.Len())
	if mode == engine.WriteAppend {
		stored, err := d.IDs(ctx)
		if err != nil {
			return err
		}
		for _, id := range stored {
			seen[id] = struct{}{}
		}
	}
	for i := range idx.Values {
		id := idx.Text(i)
		if _, dup := seen[id]; dup {
			return errors.Wrapf(ErrDuplicateID, "%s %q in %s", d.DimensionName(), id, d.uri)
		}
		seen[id] = struct{}{}
	}
	return nil
}
