package soma

import (
	"context"

	"somacore/internal/engine"
	"somacore/internal/errors"
)

// Open returns a handle for whatever entity is stored at uri, dispatching
// on its soma_object_type tag.
func Open(ctx context.Context, p *Platform, uri string) (Object, error) {
	t, err := p.Engine.ObjectType(ctx, uri)
	if err != nil {
		return nil, err
	}
	var tag string
	switch t {
	case engine.Invalid:
		return nil, errors.Wrapf(ErrNotFound, "no entity at %s", uri)
	case engine.Group:
		tag, err = readTag(ctx, uri, func(ctx context.Context) (metaHandle, error) {
			return p.Engine.OpenGroup(ctx, uri, engine.ModeRead)
		})
	case engine.Array:
		tag, err = readTag(ctx, uri, func(ctx context.Context) (metaHandle, error) {
			return p.Engine.OpenArray(ctx, uri, engine.ModeRead)
		})
	}
	if err != nil {
		return nil, err
	}
	kind := KindFromTag(tag)
	if kind.backendType() != t {
		return nil, errors.Wrapf(ErrWrongKind, "%s: engine %s tagged %q", uri, t, tag)
	}
	return newHandle(p, kind, uri), nil
}

func readTag(ctx context.Context, uri string, open func(context.Context) (metaHandle, error)) (tag string, err error) {
	h, err := open(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := h.Close(); err == nil {
			err = cerr
		}
	}()
	tag, ok, err := h.GetMetadata(MetaObjectType)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.Wrapf(ErrWrongKind, "%s has no %s tag", uri, MetaObjectType)
	}
	return tag, nil
}

func newHandle(p *Platform, kind Kind, uri string) Object {
	switch kind {
	case KindDataFrame:
		return NewDataFrame(p, uri)
	case KindSparseNDArray:
		return NewSparseNDArray(p, uri)
	case KindDenseNDArray:
		return NewDenseNDArray(p, uri)
	case KindCollection:
		return NewCollection(p, uri)
	case KindMeasurement:
		return NewMeasurement(p, uri)
	case KindExperiment:
		return NewExperiment(p, uri)
	}
	return nil
}
