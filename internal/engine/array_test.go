package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"somacore/internal/errors"
	"somacore/pkg/frame"
)

func sparseSchema() ArraySchema {
	return ArraySchema{
		Sparse:         true,
		Dimensions:     []Dimension{{Name: "obs_id", Type: frame.String, Filters: FilterList{Zstd(-1)}}},
		Attributes:     []Attribute{{Name: "foo", Type: frame.Int32, Filters: FilterList{Zstd(-1)}}},
		OffsetsFilters: FilterList{PositiveDelta(), Zstd(-1)},
	}
}

func sparseRows(ids []string, foo []int32) *frame.Table {
	return frame.MustTable(frame.Strings("obs_id", ids...), frame.Int32s("foo", foo...))
}

func openWritable(t *testing.T, e *Engine, uri string, s ArraySchema) *ArrayHandle {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.CreateArray(ctx, uri, s, nil))
	a, err := e.OpenArray(ctx, uri, ModeWrite)
	require.NoError(t, err)
	return a
}

func TestSparseWriteReadsBackSorted(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	a := openWritable(t, e, "mem://x", sparseSchema())
	require.NoError(t, a.Write(ctx, sparseRows([]string{"c", "a", "b"}, []int32{3, 1, 2})))

	tbl, err := a.Read(ctx, Query{})
	require.NoError(t, err)
	ids, _ := tbl.Column("obs_id")
	foo, _ := tbl.Column("foo")
	require.Equal(t, []any{"a", "b", "c"}, ids.Values)
	require.Equal(t, []any{int32(1), int32(2), int32(3)}, foo.Values)
	require.Empty(t, tbl.Index)
}

func TestLaterWriteWinsWithoutDuplicates(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	a := openWritable(t, e, "mem://x", sparseSchema())
	require.NoError(t, a.Write(ctx, sparseRows([]string{"a", "b"}, []int32{1, 2})))
	require.NoError(t, a.Write(ctx, sparseRows([]string{"b", "c"}, []int32{20, 30})))

	// a fresh handle sees both writes
	r, err := e.OpenArray(ctx, "mem://x", ModeRead)
	require.NoError(t, err)
	tbl, err := r.Read(ctx, Query{})
	require.NoError(t, err)
	foo, _ := tbl.Column("foo")
	require.Equal(t, []any{int32(1), int32(20), int32(30)}, foo.Values)
	require.Equal(t, 2, r.Fragments())
}

func TestDuplicatesKeptWhenAllowed(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	s := sparseSchema()
	s.AllowsDuplicates = true
	a := openWritable(t, e, "mem://x", s)
	require.NoError(t, a.Write(ctx, sparseRows([]string{"a", "a"}, []int32{1, 2})))
	require.NoError(t, a.Write(ctx, sparseRows([]string{"a"}, []int32{3})))

	tbl, err := a.Read(ctx, Query{})
	require.NoError(t, err)
	require.Equal(t, 3, tbl.NumRows())
}

func TestCapacitySplitsFragments(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	s := sparseSchema()
	s.Capacity = 2
	a := openWritable(t, e, "mem://x", s)
	require.NoError(t, a.Write(ctx, sparseRows([]string{"a", "b", "c", "d", "e"}, []int32{1, 2, 3, 4, 5})))
	require.Equal(t, 3, a.Fragments())

	keys, err := e.blobs.List(ctx, "x/__fragments/")
	require.NoError(t, err)
	require.Len(t, keys, 3)

	tbl, err := a.Read(ctx, Query{})
	require.NoError(t, err)
	require.Equal(t, 5, tbl.NumRows())
}

func TestWriteRejectsMismatchedTables(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	a := openWritable(t, e, "mem://x", sparseSchema())

	extra := frame.MustTable(frame.Strings("obs_id", "a"), frame.Int32s("foo", 1), frame.Int32s("bar", 1))
	require.ErrorIs(t, a.Write(ctx, extra), ErrSchemaMismatch)
	missing := frame.MustTable(frame.Strings("obs_id", "a"))
	require.ErrorIs(t, a.Write(ctx, missing), ErrSchemaMismatch)
	badType := frame.MustTable(frame.Strings("obs_id", "a"), frame.Strings("foo", "x"))
	require.ErrorIs(t, a.Write(ctx, badType), ErrSchemaMismatch)
	require.Equal(t, 0, a.Fragments())

	// castable values are accepted
	widened := frame.MustTable(frame.Strings("obs_id", "a"), frame.Int64s("foo", 7))
	require.NoError(t, a.Write(ctx, widened))
}

func TestReadOnlyArrayRejectsWrites(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.CreateArray(ctx, "mem://x", sparseSchema(), nil))
	a, err := e.OpenArray(ctx, "mem://x", ModeRead)
	require.NoError(t, err)
	require.ErrorIs(t, a.Write(ctx, sparseRows([]string{"a"}, []int32{1})), ErrReadOnly)

	require.NoError(t, a.Close())
	_, err = a.Read(ctx, Query{})
	require.True(t, errors.Is(err, errors.ErrClosed))
	_, err = a.Schema()
	require.True(t, errors.Is(err, errors.ErrClosed))
}

func TestReadWithPointsConditionAndProjection(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	s := sparseSchema()
	s.Attributes = append(s.Attributes,
		Attribute{Name: "bar", Type: frame.Float64},
		Attribute{Name: "baz", Type: frame.String},
	)
	a := openWritable(t, e, "mem://x", s)
	require.NoError(t, a.Write(ctx, frame.MustTable(
		frame.Strings("obs_id", "a", "b", "c", "d"),
		frame.Int32s("foo", 10, 20, 30, 40),
		frame.Float64s("bar", 4.1, 5.2, 6.3, 7.4),
		frame.Strings("baz", "w", "x", "y", "z"),
	)))

	tbl, err := a.Read(ctx, Query{
		Points:     map[string][]any{"obs_id": {"b", "c", "zz"}},
		Attributes: []string{"bar"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"obs_id", "bar"}, tbl.ColumnNames())
	require.Equal(t, 2, tbl.NumRows())

	tbl, err = a.Read(ctx, Query{Condition: "foo > 15 and bar < 7"})
	require.NoError(t, err)
	ids, _ := tbl.Column("obs_id")
	require.Equal(t, []any{"b", "c"}, ids.Values)

	tbl, err = a.Read(ctx, Query{Condition: "foo > 100"})
	require.NoError(t, err)
	require.Equal(t, 0, tbl.NumRows())
	require.Equal(t, []string{"obs_id", "foo", "bar", "baz"}, tbl.ColumnNames())

	_, err = a.Read(ctx, Query{Condition: "baz == 'x'"})
	require.ErrorIs(t, err, ErrUnsupportedCondition)
	_, err = a.Read(ctx, Query{Attributes: []string{"nope"}})
	require.True(t, errors.Is(err, errors.ErrInvalidArgument))
	_, err = a.Read(ctx, Query{Points: map[string][]any{"foo": {1}}})
	require.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func denseSchema(rows, cols int64) ArraySchema {
	return ArraySchema{
		Dimensions: []Dimension{
			{Name: "__dim_0", Type: frame.Int64, Domain: &Domain{Lo: 0, Hi: rows - 1}, TileExtent: rows},
			{Name: "__dim_1", Type: frame.Int64, Domain: &Domain{Lo: 0, Hi: cols - 1}, TileExtent: cols},
		},
		Attributes: []Attribute{{Name: "data", Type: frame.Float64}},
	}
}

func TestDenseReadFillsUnwrittenCells(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	a := openWritable(t, e, "mem://d", denseSchema(2, 3))
	require.NoError(t, a.Write(ctx, frame.MustTable(
		frame.Int64s("__dim_0", 1, 0),
		frame.Int64s("__dim_1", 2, 1),
		frame.Float64s("data", 5, 1),
	)))

	tbl, err := a.Read(ctx, Query{})
	require.NoError(t, err)
	data, _ := tbl.Column("data")
	require.Equal(t, []any{0.0, 1.0, 0.0, 0.0, 0.0, 5.0}, data.Values)
	d0, _ := tbl.Column("__dim_0")
	require.Equal(t, []any{int64(0), int64(0), int64(0), int64(1), int64(1), int64(1)}, d0.Values)

	tbl, err = a.Read(ctx, Query{Points: map[string][]any{"__dim_0": {1}, "__dim_1": {2}}})
	require.NoError(t, err)
	data, _ = tbl.Column("data")
	require.Equal(t, []any{5.0}, data.Values)
}

func TestWriteOutsideDomainFails(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	a := openWritable(t, e, "mem://d", denseSchema(2, 2))
	err := a.Write(ctx, frame.MustTable(
		frame.Int64s("__dim_0", 0, 2),
		frame.Int64s("__dim_1", 0, 0),
		frame.Float64s("data", 1, 2),
	))
	require.ErrorIs(t, err, ErrOutOfDomain)
	require.Equal(t, 0, a.Fragments())
	keys, err := e.blobs.List(ctx, "d/")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestSchemaValidation(t *testing.T) {
	cases := map[string]func(*ArraySchema){
		"no dimensions":     func(s *ArraySchema) { s.Dimensions = nil },
		"no attributes":     func(s *ArraySchema) { s.Attributes = nil },
		"duplicate name":    func(s *ArraySchema) { s.Attributes[0].Name = "__dim_0" },
		"missing domain":    func(s *ArraySchema) { s.Dimensions[0].Domain = nil },
		"empty domain":      func(s *ArraySchema) { s.Dimensions[0].Domain = &Domain{Lo: 3, Hi: 2} },
		"extent too large":  func(s *ArraySchema) { s.Dimensions[0].TileExtent = 100 },
		"dense duplicates":  func(s *ArraySchema) { s.AllowsDuplicates = true },
		"dense string dim":  func(s *ArraySchema) { s.Dimensions[0] = Dimension{Name: "s", Type: frame.String} },
		"delta on attr":     func(s *ArraySchema) { s.Attributes[0].Filters = FilterList{PositiveDelta()} },
		"unknown attr type": func(s *ArraySchema) { s.Attributes[0].Type = "complex128" },
		"negative capacity": func(s *ArraySchema) { s.Capacity = -1 },
	}
	for name, mutate := range cases {
		s := denseSchema(4, 4)
		mutate(&s)
		require.True(t, errors.Is(s.Validate(), errors.ErrInvalidArgument), name)
	}
	require.NoError(t, denseSchema(4, 4).Validate())
	require.Equal(t, []int64{4, 4}, denseSchema(4, 4).Shape())
	require.Nil(t, sparseSchema().Shape())
}
