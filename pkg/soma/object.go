package soma

import (
	"context"
	"strings"

	"somacore/internal/engine"
	"somacore/internal/errors"
)

// Object is the capability every entity kind implements.
type Object interface {
	// URI is the entity's address, fixed for the handle's lifetime.
	URI() string
	// Name is the last path segment of URI.
	Name() string
	// ParentURI is URI without its last segment, empty at the root.
	ParentURI() string
	Kind() Kind
	// Exists reports whether an entity of this kind is stored at URI. Absent
	// URIs and URIs holding another kind report false without error.
	Exists(ctx context.Context) (bool, error)
	Metadata(ctx context.Context) (map[string]string, error)
	SetMetadata(ctx context.Context, key, value string) error
	DeleteMetadata(ctx context.Context, key string) error
	platform() *Platform
	probe(ctx context.Context) error
}

// Same reports whether a and b address the same entity: equal kind and URI.
func Same(a, b Object) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Kind() == b.Kind() && a.URI() == b.URI()
}

// JoinURI appends a child name to a parent URI.
func JoinURI(parent, name string) string {
	return strings.TrimRight(parent, "/") + "/" + strings.Trim(name, "/")
}

// object is embedded by every entity kind.
type object struct {
	p    *Platform
	kind Kind
	uri  string
}

func newObject(p *Platform, kind Kind, uri string) object {
	return object{p: p, kind: kind, uri: strings.TrimRight(strings.TrimSpace(uri), "/")}
}

func (o *object) URI() string { return o.uri }

func (o *object) Kind() Kind { return o.kind }

func (o *object) platform() *Platform { return o.p }

func (o *object) engine() *engine.Engine { return o.p.Engine }

func (o *object) Name() string {
	if i := strings.LastIndex(o.uri, "/"); i >= 0 {
		return o.uri[i+1:]
	}
	return o.uri
}

func (o *object) ParentURI() string {
	i := strings.LastIndex(o.uri, "/")
	if i <= 0 || strings.HasSuffix(o.uri[:i], "/") {
		return ""
	}
	return o.uri[:i]
}

// metaHandle is the metadata surface shared by group and array handles.
type metaHandle interface {
	Metadata() (map[string]string, error)
	GetMetadata(key string) (string, bool, error)
	PutMetadata(ctx context.Context, key, value string) error
	DeleteMetadata(ctx context.Context, key string) error
	Close() error
}

// withGroup runs fn on the group at the object's URI, closing it on return.
func (o *object) withGroup(ctx context.Context, mode engine.Mode, fn func(*engine.GroupHandle) error) (err error) {
	g, err := o.engine().OpenGroup(ctx, o.uri, mode)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := g.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(g)
}

// withArray runs fn on the array at the object's URI, closing it on return.
func (o *object) withArray(ctx context.Context, mode engine.Mode, fn func(*engine.ArrayHandle) error) (err error) {
	a, err := o.engine().OpenArray(ctx, o.uri, mode)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

func (o *object) withHandle(ctx context.Context, mode engine.Mode, fn func(metaHandle) error) error {
	if o.kind.IsContainer() {
		return o.withGroup(ctx, mode, func(g *engine.GroupHandle) error { return fn(g) })
	}
	return o.withArray(ctx, mode, func(a *engine.ArrayHandle) error { return fn(a) })
}

// Exists checks both the engine object type and the soma_object_type tag.
func (o *object) Exists(ctx context.Context) (bool, error) {
	err := o.probe(ctx)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) || errors.Is(err, ErrWrongKind) {
		return false, nil
	}
	return false, err
}

// probe returns nil when the URI holds this kind of entity, ErrNotFound when
// nothing is stored there and ErrWrongKind otherwise.
func (o *object) probe(ctx context.Context) error {
	t, err := o.engine().ObjectType(ctx, o.uri)
	if err != nil {
		return err
	}
	switch t {
	case engine.Invalid:
		return errors.Wrapf(ErrNotFound, "%s", o.uri)
	case o.kind.backendType():
	default:
		return errors.Wrapf(ErrWrongKind, "%s is an engine %s, %s needs %s", o.uri, t, o.kind, o.kind.backendType())
	}
	return o.withHandle(ctx, engine.ModeRead, func(h metaHandle) error {
		tag, _, err := h.GetMetadata(MetaObjectType)
		if err != nil {
			return err
		}
		if tag != o.kind.String() {
			return errors.Wrapf(ErrWrongKind, "%s holds %q, not %s", o.uri, tag, o.kind)
		}
		return nil
	})
}

// Metadata returns the entity's key-value metadata, including the
// soma_object_type and soma_encoding_version tags.
func (o *object) Metadata(ctx context.Context) (md map[string]string, err error) {
	err = o.withHandle(ctx, engine.ModeRead, func(h metaHandle) error {
		md, err = h.Metadata()
		return err
	})
	return md, err
}

// SetMetadata sets one metadata value.
func (o *object) SetMetadata(ctx context.Context, key, value string) error {
	if key == MetaObjectType {
		return errors.InvalidArgumentf("%s is reserved", key)
	}
	return o.withHandle(ctx, engine.ModeWrite, func(h metaHandle) error {
		return h.PutMetadata(ctx, key, value)
	})
}

// DeleteMetadata removes one metadata value.
func (o *object) DeleteMetadata(ctx context.Context, key string) error {
	if key == MetaObjectType {
		return errors.InvalidArgumentf("%s is reserved", key)
	}
	return o.withHandle(ctx, engine.ModeWrite, func(h metaHandle) error {
		return h.DeleteMetadata(ctx, key)
	})
}
