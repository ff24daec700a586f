package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"somacore/internal/config"
	"somacore/internal/errors"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestNormalizeURI(t *testing.T) {
	for in, want := range map[string]string{
		"mem://exp/":       "mem://exp",
		"  file:///a/b// ": "file:///a/b",
		"relative/path":    "relative/path",
		"s3://bucket/obs":  "s3://bucket/obs",
	} {
		got, err := NormalizeURI(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got)
	}
	for _, bad := range []string{"", "///", "mem://a/../b", "a/./b"} {
		_, err := NormalizeURI(bad)
		require.True(t, errors.Is(err, errors.ErrInvalidArgument), bad)
	}
}

func TestObjectTypeReportsKinds(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.CreateGroup(ctx, "mem://g", nil))
	require.NoError(t, e.CreateArray(ctx, "mem://g/a", sparseSchema(), nil))

	for uri, want := range map[string]ObjectType{"mem://g": Group, "mem://g/a/": Array, "mem://none": Invalid} {
		got, err := e.ObjectType(ctx, uri)
		require.NoError(t, err)
		require.Equal(t, want, got, uri)
	}
	require.Equal(t, "group", Group.String())
	require.Equal(t, "invalid", Invalid.String())
}

func TestCreateTwiceFails(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.CreateGroup(ctx, "mem://g", nil))
	err := e.CreateGroup(ctx, "mem://g/", nil)
	require.True(t, errors.Is(err, errors.ErrAlreadyExists))
	err = e.CreateArray(ctx, "mem://g", sparseSchema(), nil)
	require.True(t, errors.Is(err, errors.ErrAlreadyExists))
}

func TestOpenWrongTypeAndMissing(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.CreateGroup(ctx, "mem://g", nil))

	_, err := e.OpenArray(ctx, "mem://g", ModeRead)
	require.True(t, errors.Is(err, errors.ErrInvalidArgument))
	_, err = e.OpenGroup(ctx, "mem://missing", ModeRead)
	require.True(t, errors.IsNotFound(err))
}

func TestGroupMembersAndMetadata(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.CreateGroup(ctx, "mem://g", map[string]string{"kind": "collection"}))

	g, err := e.OpenGroup(ctx, "mem://g", ModeWrite)
	require.NoError(t, err)
	require.NoError(t, g.Add(ctx, "obs", "mem://g/obs"))
	require.NoError(t, g.Add(ctx, "ms", "mem://g/ms/"))
	err = g.Add(ctx, "obs", "mem://elsewhere")
	require.True(t, errors.Is(err, errors.ErrAlreadyExists))
	require.NoError(t, g.PutMetadata(ctx, "note", "x"))
	require.NoError(t, g.DeleteMetadata(ctx, "kind"))
	require.NoError(t, g.DeleteMetadata(ctx, "absent"))
	require.NoError(t, g.Close())

	g, err = e.OpenGroup(ctx, "mem://g", ModeRead)
	require.NoError(t, err)
	members, err := g.Members()
	require.NoError(t, err)
	require.Equal(t, []Member{{Name: "obs", URI: "mem://g/obs"}, {Name: "ms", URI: "mem://g/ms"}}, members)
	m, ok, err := g.Member("ms")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "mem://g/ms", m.URI)
	md, err := g.Metadata()
	require.NoError(t, err)
	require.Equal(t, map[string]string{"note": "x"}, md)
	_, ok, err = g.GetMetadata("kind")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHandleModes(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.CreateGroup(ctx, "mem://g", nil))

	g, err := e.OpenGroup(ctx, "mem://g", ModeRead)
	require.NoError(t, err)
	require.ErrorIs(t, g.Add(ctx, "a", "mem://a"), ErrReadOnly)
	require.ErrorIs(t, g.PutMetadata(ctx, "k", "v"), ErrReadOnly)

	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
	_, err = g.Members()
	require.True(t, errors.Is(err, errors.ErrClosed))
	_, err = g.Metadata()
	require.True(t, errors.Is(err, errors.ErrClosed))
}

func TestMetricsCountOutcomes(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	e, err := NewInMemory(WithRegisterer(reg))
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	require.NoError(t, e.CreateGroup(ctx, "mem://g", nil))
	require.Error(t, e.CreateGroup(ctx, "mem://g", nil))

	ops := e.Metrics().ops
	require.Equal(t, 1.0, promtest.ToFloat64(ops.WithLabelValues("create_group", "success")))
	require.Equal(t, 1.0, promtest.ToFloat64(ops.WithLabelValues("create_group", "error")))
	require.Equal(t, 1, promtest.CollectAndCount(e.Metrics().duration, "somacore_engine_operation_duration_seconds"))

	_, err = NewInMemory(WithRegisterer(reg))
	require.Error(t, err, "collectors register once per registry")
	shared, err := NewInMemory(WithMetrics(e.Metrics()))
	require.NoError(t, err)
	require.Same(t, e.Metrics(), shared.Metrics())
}

func TestOpenFromConfig(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	e, err := Open(ctx,
		config.StorageConfig{Driver: config.StorageFilesystem, FSRoot: filepath.Join(dir, "blobs")},
		config.CatalogConfig{Driver: config.CatalogSQLite, SQLitePath: filepath.Join(dir, "catalog.db")},
	)
	require.NoError(t, err)
	require.NoError(t, e.CreateArray(ctx, "file:///exp/obs", sparseSchema(), nil))
	a, err := e.OpenArray(ctx, "file:///exp/obs", ModeWrite)
	require.NoError(t, err)
	require.NoError(t, a.Write(ctx, sparseRows([]string{"a", "b"}, []int32{1, 2})))
	require.NoError(t, e.Close())

	e, err = Open(ctx,
		config.StorageConfig{Driver: config.StorageFilesystem, FSRoot: filepath.Join(dir, "blobs")},
		config.CatalogConfig{Driver: config.CatalogSQLite, SQLitePath: filepath.Join(dir, "catalog.db")},
	)
	require.NoError(t, err)
	defer func() { _ = e.Close() }()
	a, err = e.OpenArray(ctx, "file:///exp/obs", ModeRead)
	require.NoError(t, err)
	tbl, err := a.Read(ctx, Query{})
	require.NoError(t, err)
	require.Equal(t, 2, tbl.NumRows())
}

func TestOpenRejectsUnknownDrivers(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Driver: "tape"}, config.CatalogConfig{Driver: config.CatalogMemory})
	require.Error(t, err)
}
