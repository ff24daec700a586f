package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"somacore/internal/errors"
	"somacore/pkg/frame"
)

func indexedTable(t *testing.T) *frame.Table {
	t.Helper()
	tbl := frame.MustTable(
		frame.Strings("obs_id", "a", "b", "c"),
		frame.Int32s("foo", 10, 20, 30),
		frame.Strings("baz", "x", "y", "z"),
	)
	require.NoError(t, tbl.SetIndex("obs_id"))
	return tbl
}

func TestWriteTableCreateThenAppend(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	opts := WriteOptions{
		Mode:           WriteCreate,
		Sparse:         true,
		Capacity:       100000,
		DimFilters:     FilterList{Zstd(-1)},
		AttrFilters:    FilterList{Zstd(-1)},
		OffsetsFilters: FilterList{PositiveDelta(), Zstd(-1)},
		ColumnTypes:    map[string]frame.DataType{"baz": frame.Bytes},
		Metadata:       map[string]string{"soma_object_type": "SOMADataFrame"},
	}
	require.NoError(t, e.WriteTable(ctx, "mem://df", indexedTable(t), opts))
	require.True(t, errors.Is(e.WriteTable(ctx, "mem://df", indexedTable(t), opts), errors.ErrAlreadyExists))

	more := frame.MustTable(frame.Strings("obs_id", "d"), frame.Int32s("foo", 40), frame.Strings("baz", "w"))
	require.NoError(t, more.SetIndex("obs_id"))
	opts.Mode = WriteAppend
	require.NoError(t, e.WriteTable(ctx, "mem://df", more, opts))

	a, err := e.OpenArray(ctx, "mem://df", ModeRead)
	require.NoError(t, err)
	s, err := a.Schema()
	require.NoError(t, err)
	require.Equal(t, []string{"obs_id"}, s.DimensionNames())
	baz, ok := s.Attribute("baz")
	require.True(t, ok)
	require.Equal(t, frame.Bytes, baz.Type)
	v, ok, err := a.GetMetadata("soma_object_type")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "SOMADataFrame", v)

	tbl, err := a.Read(ctx, Query{Condition: "baz >= 'y'"})
	require.NoError(t, err)
	ids, _ := tbl.Column("obs_id")
	require.Equal(t, []any{"b", "c"}, ids.Values)
}

func TestWriteTableNeedsSparseAndIndex(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	err := e.WriteTable(ctx, "mem://df", indexedTable(t), WriteOptions{Mode: WriteCreate})
	require.True(t, errors.Is(err, errors.ErrInvalidArgument))

	noIndex := frame.MustTable(frame.Int32s("foo", 1))
	err = e.WriteTable(ctx, "mem://df", noIndex, WriteOptions{Mode: WriteCreate, Sparse: true})
	require.True(t, errors.Is(err, errors.ErrInvalidArgument))

	err = e.WriteTable(ctx, "mem://df", indexedTable(t), WriteOptions{Mode: WriteAppend, Sparse: true})
	require.True(t, errors.IsNotFound(err))
}

func TestSchemaFromIntegerIndex(t *testing.T) {
	tbl := frame.MustTable(frame.Int64s("soma_joinid", 0, 1), frame.Float64s("x", 1, 2))
	require.NoError(t, tbl.SetIndex("soma_joinid"))
	s, err := SchemaFromTable(tbl, WriteOptions{Sparse: true, TileExtent: 2048})
	require.NoError(t, err)
	d := s.Dimensions[0]
	require.NotNil(t, d.Domain)
	require.True(t, d.Domain.Contains(0))
	require.Equal(t, int64(2048), d.TileExtent)
	require.Equal(t, []string{"x"}, s.AttributeNames())

	strIdx := indexedTable(t)
	s, err = SchemaFromTable(strIdx, WriteOptions{Sparse: true, TileExtent: 2048})
	require.NoError(t, err)
	require.Zero(t, s.Dimensions[0].TileExtent)
	require.Nil(t, s.Dimensions[0].Domain)
}
