package engine

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"somacore/internal/blob"
	"somacore/internal/catalog"
	"somacore/internal/config"
	"somacore/internal/errors"
	"somacore/internal/logger"
)

// Engine stores arrays and groups addressed by URI.
type Engine struct {
	blobs   blob.Store
	catalog catalog.Catalog
	log     *zap.SugaredLogger
	metrics *Metrics
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	log        *zap.SugaredLogger
	registerer prometheus.Registerer
	metrics    *Metrics
}

// WithLogger overrides the component logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *engineOptions) { o.log = l }
}

// WithRegisterer registers the engine metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *engineOptions) { o.registerer = reg }
}

// WithMetrics shares an existing Metrics between engines.
func WithMetrics(m *Metrics) Option {
	return func(o *engineOptions) { o.metrics = m }
}

// New assembles an Engine from an already opened blob store and catalog.
// The engine takes ownership of the catalog and closes it in Close.
func New(blobs blob.Store, cat catalog.Catalog, opts ...Option) (*Engine, error) {
	o := engineOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.ComponentLogger("engine")
	}
	if o.metrics == nil {
		m, err := NewMetrics(o.registerer)
		if err != nil {
			return nil, errors.Wrap(err, "register engine metrics")
		}
		o.metrics = m
	}
	return &Engine{
		blobs:   blobs,
		catalog: cat,
		log:     o.log,
		metrics: o.metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Open builds an Engine from storage and catalog configuration.
func Open(ctx context.Context, storage config.StorageConfig, cat config.CatalogConfig, opts ...Option) (*Engine, error) {
	blobs, err := blob.Open(ctx, storage)
	if err != nil {
		return nil, errors.Wrap(err, "open blob store")
	}
	c, err := catalog.Open(ctx, cat)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	e, err := New(blobs, c, opts...)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	e.log.Debugw("engine opened", "storage", blobs.Driver(), "catalog", c.Driver())
	return e, nil
}

// NewInMemory returns an Engine backed by the memory blob store and catalog.
func NewInMemory(opts ...Option) (*Engine, error) {
	c, err := catalog.Open(context.Background(), config.CatalogConfig{Driver: config.CatalogMemory})
	if err != nil {
		return nil, err
	}
	return New(blob.NewMemory(), c, opts...)
}

// Close releases the catalog.
func (e *Engine) Close() error { return e.catalog.Close() }

// Metrics returns the engine's collectors.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// observe is deferred by every public operation.
func (e *Engine) observe(op string, start time.Time, err *error) {
	e.metrics.Observe(op, *err, time.Since(start))
}

// ObjectType reports what is stored at uri; Invalid when nothing is.
func (e *Engine) ObjectType(ctx context.Context, uri string) (t ObjectType, err error) {
	defer e.observe("object_type", time.Now(), &err)
	uri, err = NormalizeURI(uri)
	if err != nil {
		return Invalid, err
	}
	rec, err := e.catalog.Load(ctx, uri)
	if errors.Is(err, errors.ErrNotFound) {
		return Invalid, nil
	}
	if err != nil {
		return Invalid, err
	}
	switch rec.Type {
	case catalog.TypeArray:
		return Array, nil
	case catalog.TypeGroup:
		return Group, nil
	}
	return Invalid, nil
}

// NormalizeURI validates uri and strips trailing slashes.
func NormalizeURI(uri string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(uri), "/")
	if trimmed == "" {
		return "", errors.InvalidArgumentf("empty uri %q", uri)
	}
	if _, err := storageKey(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}

// storageKey maps a URI to the blob key prefix holding its fragments:
// host and path with the leading slash removed.
func storageKey(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", errors.Wrapf(errors.ErrInvalidArgument, "malformed uri %q: %v", uri, err)
	}
	key := strings.Trim(u.Host+"/"+strings.TrimLeft(u.Path, "/"), "/")
	if u.Opaque != "" {
		key = strings.Trim(u.Opaque, "/")
	}
	if key == "" {
		return "", errors.InvalidArgumentf("uri %q has no path", uri)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." {
			return "", errors.InvalidArgumentf("uri %q has relative segments", uri)
		}
	}
	return key, nil
}

func (e *Engine) createRecord(ctx context.Context, rec catalog.Record) error {
	if err := e.catalog.Create(ctx, rec); err != nil {
		return err
	}
	e.log.Debugw("object created", logger.FieldURI, rec.URI, logger.FieldKind, string(rec.Type))
	return nil
}

// CreateGroup creates an empty group at uri with initial metadata.
func (e *Engine) CreateGroup(ctx context.Context, uri string, metadata map[string]string) (err error) {
	defer e.observe("create_group", time.Now(), &err)
	uri, err = NormalizeURI(uri)
	if err != nil {
		return err
	}
	return e.createRecord(ctx, catalog.Record{URI: uri, Type: catalog.TypeGroup, Metadata: cloneMap(metadata)})
}

// CreateArray creates an empty array at uri.
func (e *Engine) CreateArray(ctx context.Context, uri string, schema ArraySchema, metadata map[string]string) (err error) {
	defer e.observe("create_array", time.Now(), &err)
	uri, err = NormalizeURI(uri)
	if err != nil {
		return err
	}
	if err = schema.Validate(); err != nil {
		return err
	}
	raw, err := marshalSchema(schema)
	if err != nil {
		return err
	}
	return e.createRecord(ctx, catalog.Record{URI: uri, Type: catalog.TypeArray, Schema: raw, Metadata: cloneMap(metadata)})
}

// OpenGroup opens the group at uri. Missing objects fail with ErrNotFound
// and arrays with ErrInvalidArgument.
func (e *Engine) OpenGroup(ctx context.Context, uri string, mode Mode) (g *GroupHandle, err error) {
	defer e.observe("open_group", time.Now(), &err)
	h, err := e.open(ctx, uri, mode, catalog.TypeGroup)
	if err != nil {
		return nil, err
	}
	return &GroupHandle{handle: h}, nil
}

// OpenArray opens the array at uri.
func (e *Engine) OpenArray(ctx context.Context, uri string, mode Mode) (a *ArrayHandle, err error) {
	defer e.observe("open_array", time.Now(), &err)
	h, err := e.open(ctx, uri, mode, catalog.TypeArray)
	if err != nil {
		return nil, err
	}
	schema, err := unmarshalSchema(h.rec.Schema)
	if err != nil {
		return nil, err
	}
	return &ArrayHandle{handle: h, schema: schema}, nil
}

func (e *Engine) open(ctx context.Context, uri string, mode Mode, want catalog.ObjectType) (*handle, error) {
	uri, err := NormalizeURI(uri)
	if err != nil {
		return nil, err
	}
	rec, err := e.catalog.Load(ctx, uri)
	if err != nil {
		return nil, err
	}
	if rec.Type != want {
		return nil, errors.InvalidArgumentf("%s is a %s, not a %s", uri, rec.Type, want)
	}
	return &handle{e: e, uri: uri, mode: mode, rec: rec}, nil
}

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
