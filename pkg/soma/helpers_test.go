package soma

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"somacore/pkg/frame"
	"somacore/pkg/tensor"
)

func newTestPlatform(t *testing.T, mutate ...func(*Options)) *Platform {
	t.Helper()
	opts := DefaultOptions()
	for _, m := range mutate {
		m(&opts)
	}
	p, err := NewInMemoryPlatform(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func obsTable(t *testing.T) *frame.Table {
	t.Helper()
	tbl := frame.MustTable(
		frame.Strings("cell", "c0", "c1", "c2", "c3", "c4"),
		frame.Int32s("foo", 10, 20, 30, 40, 50),
		frame.Float64s("bar", 4.1, 5.2, 6.3, 7.4, 8.5),
		frame.Strings("baz", "apple", "ball", "cat", "dog", "egg"),
	)
	require.NoError(t, tbl.SetIndex("cell"))
	return tbl
}

func varTable(t *testing.T) *frame.Table {
	t.Helper()
	tbl := frame.MustTable(
		frame.Strings("gene", "g0", "g1", "g2", "g3"),
		frame.Strings("quux", "zebra", "yak", "xylophone", "wapiti"),
		frame.Float64s("xyzzy", 12.3, 23.4, 34.5, 45.6),
	)
	require.NoError(t, tbl.SetIndex("gene"))
	return tbl
}

func sampleCOO(t *testing.T) *tensor.SparseCOO {
	t.Helper()
	coo, err := tensor.NewSparseCOO(frame.Int64, []int64{5, 3}, [][]int64{{0, 2}, {3, 1}, {4, 2}}, []any{7, 8, 9})
	require.NoError(t, err)
	return coo
}

func createdDataFrame(t *testing.T, p *Platform, uri string) *DataFrame {
	t.Helper()
	df, err := NewDataFrame(p, uri).Create(context.Background(), []Field{{Name: "A", Type: frame.Int32}})
	require.NoError(t, err)
	return df
}
