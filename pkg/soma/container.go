package soma

import (
	"context"
	"iter"
	"time"

	"somacore/internal/engine"
	"somacore/internal/errors"
	"somacore/internal/logger"
	"somacore/pkg/frame"
)

// container implements the member operations shared by Collection,
// Measurement and Experiment. Membership lives in the engine group; members
// resolved through this handle are cached by name.
type container struct {
	object
	cache map[string]Object
}

func newContainer(p *Platform, kind Kind, uri string) container {
	return container{object: newObject(p, kind, uri), cache: make(map[string]Object)}
}

// Type returns the container's class name, e.g. SOMAExperiment.
func (c *container) Type() string { return c.kind.String() }

// Create persists an empty group at the container's URI. It fails with
// errors.ErrAlreadyExists when something is already stored there.
func (c *container) Create(ctx context.Context) error {
	if err := c.engine().CreateGroup(ctx, c.uri, tagMetadata(c.kind)); err != nil {
		return err
	}
	c.p.Log.Debugw("container created", logger.FieldURI, c.uri, logger.FieldKind, c.kind.String())
	return nil
}

func (c *container) members(ctx context.Context) (out []engine.Member, err error) {
	err = c.withGroup(ctx, engine.ModeRead, func(g *engine.GroupHandle) error {
		out, err = g.Members()
		return err
	})
	return out, err
}

// Get returns the member stored under name, failing with ErrNotFound when
// there is none.
func (c *container) Get(ctx context.Context, name string) (Object, error) {
	if obj, ok := c.cache[name]; ok {
		return obj, nil
	}
	var (
		m     engine.Member
		found bool
	)
	err := c.withGroup(ctx, engine.ModeRead, func(g *engine.GroupHandle) (err error) {
		m, found, err = g.Member(name)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ErrNotFound, "%s has no member %q", c.uri, name)
	}
	obj, err := Open(ctx, c.p, m.URI)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve member %q of %s", name, c.uri)
	}
	c.cache[name] = obj
	return obj, nil
}

// Contains reports whether name is a member. Members are not opened.
func (c *container) Contains(ctx context.Context, name string) (bool, error) {
	if _, ok := c.cache[name]; ok {
		return true, nil
	}
	var found bool
	err := c.withGroup(ctx, engine.ModeRead, func(g *engine.GroupHandle) (err error) {
		_, found, err = g.Member(name)
		return err
	})
	return found, err
}

// Len returns the number of direct members.
func (c *container) Len(ctx context.Context) (int, error) {
	ms, err := c.members(ctx)
	return len(ms), err
}

// MemberURIs maps every member name to the URI stored for it.
func (c *container) MemberURIs(ctx context.Context) (map[string]string, error) {
	ms, err := c.members(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(ms))
	for _, m := range ms {
		out[m.Name] = m.URI
	}
	return out, nil
}

// Names returns member names in insertion order.
func (c *container) Names(ctx context.Context) ([]string, error) {
	ms, err := c.members(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.Name
	}
	return names, nil
}

// Set registers obj under name. Reserved slots are checked first, then the
// entity stored at obj's URI must exist and be of obj's kind: a missing
// entity fails with ErrNotFound and a different kind with ErrTypeConstraint.
// A rejected assignment leaves membership unchanged. The member URI is
// persisted in the group before the handle is cached. Names are unique, so
// setting an existing name fails with errors.ErrAlreadyExists.
func (c *container) Set(ctx context.Context, name string, obj Object) error {
	start := time.Now()
	if obj == nil {
		return errors.InvalidArgumentf("nil member for %q", name)
	}
	if err := CheckSlot(c.kind, name, obj.Kind()); err != nil {
		return err
	}
	if err := obj.probe(ctx); err != nil {
		if errors.Is(err, ErrWrongKind) {
			return errors.Wrapf(ErrTypeConstraint, "member %q of %s: %v", name, c.uri, err)
		}
		return errors.Wrapf(err, "member %q of %s", name, c.uri)
	}
	err := c.withGroup(ctx, engine.ModeWrite, func(g *engine.GroupHandle) error {
		return g.Add(ctx, name, obj.URI())
	})
	if err != nil {
		return err
	}
	c.cache[name] = obj
	c.p.Log.Debugw("member set",
		logger.FieldURI, c.uri,
		logger.FieldName, name,
		logger.FieldKind, obj.Kind().String(),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return nil
}

// All snapshots the membership and resolves every member, returning a
// sequence of (name, member) pairs in insertion order. Each range over the
// sequence starts from the beginning.
func (c *container) All(ctx context.Context) (iter.Seq2[string, Object], error) {
	ms, err := c.members(ctx)
	if err != nil {
		return nil, err
	}
	objs := make([]Object, len(ms))
	for i, m := range ms {
		if objs[i], err = c.Get(ctx, m.Name); err != nil {
			return nil, err
		}
	}
	return func(yield func(string, Object) bool) {
		for i, m := range ms {
			if !yield(m.Name, objs[i]) {
				return
			}
		}
	}, nil
}

// addNew creates a child at c.uri/key and registers it under key. The slot
// and name checks run before anything is created.
func addNew[T Object](ctx context.Context, c *container, key string, kind Kind, create func(uri string) (T, error)) (T, error) {
	var zero T
	if key == "" {
		return zero, errors.InvalidArgumentf("empty member name")
	}
	if err := CheckSlot(c.kind, key, kind); err != nil {
		return zero, err
	}
	taken, err := c.Contains(ctx, key)
	if err != nil {
		return zero, err
	}
	if taken {
		return zero, errors.Wrapf(errors.ErrAlreadyExists, "member %q of %s", key, c.uri)
	}
	child, err := create(JoinURI(c.uri, key))
	if err != nil {
		return zero, err
	}
	if err := c.Set(ctx, key, child); err != nil {
		return zero, err
	}
	return child, nil
}

// AddNewCollection creates a Collection at uri/key and registers it.
func (c *container) AddNewCollection(ctx context.Context, key string) (*Collection, error) {
	return addNew(ctx, c, key, KindCollection, func(uri string) (*Collection, error) {
		return NewCollection(c.p, uri).Create(ctx)
	})
}

// AddNewMeasurement creates a Measurement at uri/key and registers it.
func (c *container) AddNewMeasurement(ctx context.Context, key string) (*Measurement, error) {
	return addNew(ctx, c, key, KindMeasurement, func(uri string) (*Measurement, error) {
		return NewMeasurement(c.p, uri).Create(ctx)
	})
}

// AddNewExperiment creates an Experiment at uri/key and registers it.
func (c *container) AddNewExperiment(ctx context.Context, key string) (*Experiment, error) {
	return addNew(ctx, c, key, KindExperiment, func(uri string) (*Experiment, error) {
		return NewExperiment(c.p, uri).Create(ctx)
	})
}

// AddNewDataFrame creates an empty DataFrame with the given attributes at
// uri/key and registers it.
func (c *container) AddNewDataFrame(ctx context.Context, key string, fields []Field) (*DataFrame, error) {
	return addNew(ctx, c, key, KindDataFrame, func(uri string) (*DataFrame, error) {
		return NewDataFrame(c.p, uri).Create(ctx, fields)
	})
}

// AddNewSparseNDArray creates a sparse array at uri/key and registers it.
func (c *container) AddNewSparseNDArray(ctx context.Context, key string, t frame.DataType, shape []int64) (*SparseNDArray, error) {
	return addNew(ctx, c, key, KindSparseNDArray, func(uri string) (*SparseNDArray, error) {
		return NewSparseNDArray(c.p, uri).Create(ctx, t, shape)
	})
}

// AddNewDenseNDArray creates a dense array at uri/key and registers it.
func (c *container) AddNewDenseNDArray(ctx context.Context, key string, t frame.DataType, shape []int64) (*DenseNDArray, error) {
	return addNew(ctx, c, key, KindDenseNDArray, func(uri string) (*DenseNDArray, error) {
		return NewDenseNDArray(c.p, uri).Create(ctx, t, shape)
	})
}
