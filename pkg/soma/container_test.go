package soma

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"somacore/internal/errors"
	"somacore/pkg/frame"
)

func TestCheckSlotTable(t *testing.T) {
	all := []Kind{KindDataFrame, KindDenseNDArray, KindSparseNDArray, KindCollection, KindMeasurement, KindExperiment}
	for container, slots := range map[Kind]map[string]Kind{
		KindExperiment:  {"obs": KindDataFrame, "ms": KindCollection},
		KindMeasurement: {"var": KindDataFrame, "X": KindCollection},
	} {
		for slot, want := range slots {
			for _, k := range all {
				err := CheckSlot(container, slot, k)
				if k == want {
					require.NoError(t, err)
				} else {
					require.ErrorIs(t, err, ErrTypeConstraint, "%s[%s] = %s", container, slot, k)
				}
			}
		}
		for _, k := range all {
			require.NoError(t, CheckSlot(container, "other", k))
		}
	}
	for _, k := range all {
		require.NoError(t, CheckSlot(KindCollection, "obs", k))
	}
	require.Equal(t, map[string]Kind{"var": KindDataFrame, "X": KindCollection}, ReservedSlots(KindMeasurement))
	require.Empty(t, ReservedSlots(KindCollection))
}

func candidates(t *testing.T, p *Platform) map[string]Object {
	t.Helper()
	ctx := context.Background()
	coll, err := NewCollection(p, "mem://A").Create(ctx)
	require.NoError(t, err)
	sparse, err := NewSparseNDArray(p, "mem://B").Create(ctx, frame.Float32, []int64{10})
	require.NoError(t, err)
	dense, err := NewDenseNDArray(p, "mem://C").Create(ctx, frame.Float32, []int64{10})
	require.NoError(t, err)
	meas, err := NewMeasurement(p, "mem://D").Create(ctx)
	require.NoError(t, err)
	return map[string]Object{
		"collection":  coll,
		"sparse":      sparse,
		"dense":       dense,
		"measurement": meas,
		"dataframe":   createdDataFrame(t, p, "mem://E"),
	}
}

func TestExperimentObsConstraint(t *testing.T) {
	ctx := context.Background()
	p := newTestPlatform(t)
	exp, err := NewExperiment(p, "mem://exp").Create(ctx)
	require.NoError(t, err)
	c := candidates(t, p)

	for _, name := range []string{"collection", "sparse", "dense", "measurement"} {
		err := exp.Set(ctx, "obs", c[name])
		require.ErrorIs(t, err, ErrTypeConstraint, name)
	}
	n, err := exp.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	seq, err := exp.All(ctx)
	require.NoError(t, err)
	for range seq {
		t.Fatal("rejected assignments must not add members")
	}

	require.NoError(t, exp.Set(ctx, "obs", c["dataframe"]))
	ok, err := exp.Contains(ctx, "obs")
	require.NoError(t, err)
	require.True(t, ok)
	got, err := exp.Get(ctx, "obs")
	require.NoError(t, err)
	require.True(t, Same(c["dataframe"], got))

	// reserved slots never go back to unset or change
	err = exp.Set(ctx, "obs", createdDataFrame(t, p, "mem://F"))
	require.True(t, errors.Is(err, errors.ErrAlreadyExists))
}

func TestExperimentMSConstraint(t *testing.T) {
	ctx := context.Background()
	p := newTestPlatform(t)
	exp, err := NewExperiment(p, "mem://exp").Create(ctx)
	require.NoError(t, err)
	c := candidates(t, p)

	for _, name := range []string{"sparse", "dense", "measurement", "dataframe"} {
		require.ErrorIs(t, exp.Set(ctx, "ms", c[name]), ErrTypeConstraint, name)
	}
	require.NoError(t, exp.Set(ctx, "ms", c["collection"]))
	// unreserved names take anything
	require.NoError(t, exp.Set(ctx, "extra", c["sparse"]))
	n, err := exp.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestMeasurementConstraints(t *testing.T) {
	ctx := context.Background()
	p := newTestPlatform(t)
	m, err := NewMeasurement(p, "mem://m").Create(ctx)
	require.NoError(t, err)
	c := candidates(t, p)

	require.ErrorIs(t, m.Set(ctx, "var", c["collection"]), ErrTypeConstraint)
	require.ErrorIs(t, m.Set(ctx, "X", c["dataframe"]), ErrTypeConstraint)
	require.NoError(t, m.Set(ctx, "var", c["dataframe"]))
	require.NoError(t, m.Set(ctx, "X", c["collection"]))

	v, err := m.Var(ctx)
	require.NoError(t, err)
	require.Equal(t, "mem://E", v.URI())
	x, err := m.X(ctx)
	require.NoError(t, err)
	require.Equal(t, "mem://A", x.URI())
}

func TestCollectionMembers(t *testing.T) {
	ctx := context.Background()
	p := newTestPlatform(t)
	coll, err := NewCollection(p, "mem://coll").Create(ctx)
	require.NoError(t, err)
	require.Equal(t, "SOMACollection", coll.Type())
	c := candidates(t, p)

	for _, name := range []string{"dense", "sparse", "measurement"} {
		require.NoError(t, coll.Set(ctx, name, c[name]))
	}
	names, err := coll.Names(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"dense", "sparse", "measurement"}, names)

	_, err = coll.Get(ctx, "nonesuch")
	require.ErrorIs(t, err, ErrNotFound)
	require.True(t, IsNotFound(err))
	require.Error(t, coll.Set(ctx, "nil", nil))

	// a cold handle resolves members from storage
	cold := NewCollection(p, "mem://coll")
	seq, err := cold.All(ctx)
	require.NoError(t, err)
	for pass := 0; pass < 2; pass++ {
		var seen []string
		for name, obj := range seq {
			seen = append(seen, name)
			require.True(t, Same(c[name], obj), name)
		}
		require.Equal(t, names, seen)
	}
	for name, obj := range seq {
		require.Equal(t, "dense", name)
		require.Equal(t, KindDenseNDArray, obj.Kind())
		break
	}
}

func TestContainerOnMissingGroup(t *testing.T) {
	ctx := context.Background()
	p := newTestPlatform(t)
	coll := NewCollection(p, "mem://nowhere")
	_, err := coll.Len(ctx)
	require.True(t, IsNotFound(err))
	_, err = coll.Contains(ctx, "x")
	require.True(t, IsNotFound(err))
	member, err := NewCollection(p, "mem://x").Create(ctx)
	require.NoError(t, err)
	require.True(t, IsNotFound(coll.Set(ctx, "x", member)))
}

func TestSetChecksStoredKind(t *testing.T) {
	ctx := context.Background()
	p := newTestPlatform(t)
	exp, err := NewExperiment(p, "mem://exp").Create(ctx)
	require.NoError(t, err)
	c := candidates(t, p)

	// a DataFrame handle over a stored Collection passes the slot check on
	// its claimed kind but not on what is stored
	err = exp.Set(ctx, "obs", NewDataFrame(p, c["collection"].URI()))
	require.ErrorIs(t, err, ErrTypeConstraint)
	err = exp.Set(ctx, "extra", NewSparseNDArray(p, c["dense"].URI()))
	require.ErrorIs(t, err, ErrTypeConstraint)

	err = exp.Set(ctx, "ms", NewCollection(p, "mem://never-created"))
	require.ErrorIs(t, err, ErrNotFound)
	require.True(t, IsNotFound(err))

	n, err := exp.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	ok, err := exp.Contains(ctx, "obs")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, exp.Set(ctx, "obs", c["dataframe"]))
	obs, err := NewExperiment(p, "mem://exp").Obs(ctx)
	require.NoError(t, err)
	require.Equal(t, "mem://E", obs.URI())
}

func TestAddNewMembers(t *testing.T) {
	ctx := context.Background()
	p := newTestPlatform(t)
	exp, err := NewExperiment(p, "mem://exp").Create(ctx)
	require.NoError(t, err)

	obs, err := exp.AddNewDataFrame(ctx, "obs", []Field{{Name: "foo", Type: frame.Int32}})
	require.NoError(t, err)
	require.Equal(t, "mem://exp/obs", obs.URI())
	require.Equal(t, "obs", obs.Name())
	require.Equal(t, exp.URI(), obs.ParentURI())

	ms, err := exp.AddNewCollection(ctx, "ms")
	require.NoError(t, err)
	rna, err := ms.AddNewMeasurement(ctx, "RNA")
	require.NoError(t, err)
	require.Equal(t, "mem://exp/ms/RNA", rna.URI())
	x, err := rna.AddNewCollection(ctx, "X")
	require.NoError(t, err)
	sparse, err := x.AddNewSparseNDArray(ctx, "data", frame.Int64, []int64{5, 3})
	require.NoError(t, err)
	dense, err := x.AddNewDenseNDArray(ctx, "dense", frame.Float32, []int64{2})
	require.NoError(t, err)
	nested, err := ms.AddNewExperiment(ctx, "nested")
	require.NoError(t, err)
	require.Equal(t, KindExperiment, nested.Kind())

	uris, err := x.MemberURIs(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"data": sparse.URI(), "dense": dense.URI()}, uris)
	uris, err = NewExperiment(p, "mem://exp").MemberURIs(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"obs": "mem://exp/obs", "ms": "mem://exp/ms"}, uris)

	cold, err := NewExperiment(p, "mem://exp").Obs(ctx)
	require.NoError(t, err)
	require.True(t, Same(obs, cold))
}

func TestAddNewChecksBeforeCreating(t *testing.T) {
	ctx := context.Background()
	p := newTestPlatform(t)
	exp, err := NewExperiment(p, "mem://exp").Create(ctx)
	require.NoError(t, err)

	_, err = exp.AddNewCollection(ctx, "obs")
	require.ErrorIs(t, err, ErrTypeConstraint)
	_, err = exp.AddNewSparseNDArray(ctx, "ms", frame.Int64, []int64{3})
	require.ErrorIs(t, err, ErrTypeConstraint)
	for _, uri := range []string{"mem://exp/obs", "mem://exp/ms"} {
		obj, err := Open(ctx, p, uri)
		require.Nil(t, obj)
		require.True(t, IsNotFound(err), uri)
	}

	_, err = exp.AddNewCollection(ctx, "ms")
	require.NoError(t, err)
	_, err = exp.AddNewCollection(ctx, "ms")
	require.True(t, errors.Is(err, errors.ErrAlreadyExists))
	_, err = exp.AddNewCollection(ctx, "")
	require.True(t, errors.Is(err, errors.ErrInvalidArgument))

	_, err = NewCollection(p, "mem://nowhere").AddNewCollection(ctx, "child")
	require.True(t, IsNotFound(err))
	exists, err := NewCollection(p, "mem://nowhere/child").Exists(ctx)
	require.NoError(t, err)
	require.False(t, exists)

	uris, err := exp.MemberURIs(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"ms": "mem://exp/ms"}, uris)
}
