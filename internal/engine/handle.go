package engine

import (
	"context"
	"time"

	"somacore/internal/catalog"
	"somacore/internal/errors"
	"somacore/internal/logger"
)

// handle is the state shared by group and array handles: the catalog record
// as of open (refreshed by this handle's own writes) and the access mode.
type handle struct {
	e      *Engine
	uri    string
	mode   Mode
	rec    catalog.Record
	closed bool
}

// URI returns the normalized URI the handle was opened at.
func (h *handle) URI() string { return h.uri }

// Mode returns the access mode.
func (h *handle) Mode() Mode { return h.mode }

// Close releases the handle. Further use fails with errors.ErrClosed.
// Closing twice is a no-op.
func (h *handle) Close() error {
	h.closed = true
	return nil
}

func (h *handle) usable() error {
	if h.closed {
		return errors.Wrapf(errors.ErrClosed, "%s", h.uri)
	}
	return nil
}

func (h *handle) writable() error {
	if err := h.usable(); err != nil {
		return err
	}
	if h.mode != ModeWrite {
		return errors.Wrapf(ErrReadOnly, "%s", h.uri)
	}
	return nil
}

func (h *handle) update(ctx context.Context, fn catalog.Mutator) error {
	rec, err := h.e.catalog.Update(ctx, h.uri, fn)
	if err != nil {
		return err
	}
	h.rec = rec
	return nil
}

// Metadata returns a copy of the object's metadata.
func (h *handle) Metadata() (map[string]string, error) {
	if err := h.usable(); err != nil {
		return nil, err
	}
	out := cloneMap(h.rec.Metadata)
	if out == nil {
		out = map[string]string{}
	}
	return out, nil
}

// GetMetadata returns one metadata value.
func (h *handle) GetMetadata(key string) (string, bool, error) {
	if err := h.usable(); err != nil {
		return "", false, err
	}
	v, ok := h.rec.Metadata[key]
	return v, ok, nil
}

// PutMetadata sets one metadata value.
func (h *handle) PutMetadata(ctx context.Context, key, value string) (err error) {
	defer h.e.observe("put_metadata", time.Now(), &err)
	if err = h.writable(); err != nil {
		return err
	}
	if key == "" {
		return errors.InvalidArgumentf("empty metadata key")
	}
	return h.update(ctx, func(r *catalog.Record) error {
		if r.Metadata == nil {
			r.Metadata = make(map[string]string)
		}
		r.Metadata[key] = value
		return nil
	})
}

// DeleteMetadata removes one metadata value. Deleting an absent key is a no-op.
func (h *handle) DeleteMetadata(ctx context.Context, key string) (err error) {
	defer h.e.observe("delete_metadata", time.Now(), &err)
	if err = h.writable(); err != nil {
		return err
	}
	return h.update(ctx, func(r *catalog.Record) error {
		delete(r.Metadata, key)
		return nil
	})
}

// GroupHandle is an open group.
type GroupHandle struct {
	*handle
}

// Member is a named link held by a group.
type Member = catalog.Member

// Members returns the group's members in insertion order.
func (g *GroupHandle) Members() ([]Member, error) {
	if err := g.usable(); err != nil {
		return nil, err
	}
	return append([]Member(nil), g.rec.Members...), nil
}

// Member looks up one member by name.
func (g *GroupHandle) Member(name string) (Member, bool, error) {
	if err := g.usable(); err != nil {
		return Member{}, false, err
	}
	m, ok := g.rec.Member(name)
	return m, ok, nil
}

// Add registers uri under name. Names are unique within a group; reusing
// one fails with errors.ErrAlreadyExists.
func (g *GroupHandle) Add(ctx context.Context, name, uri string) (err error) {
	defer g.e.observe("group_add", time.Now(), &err)
	if err = g.writable(); err != nil {
		return err
	}
	if name == "" {
		return errors.InvalidArgumentf("empty member name")
	}
	uri, err = NormalizeURI(uri)
	if err != nil {
		return err
	}
	err = g.update(ctx, func(r *catalog.Record) error {
		if _, exists := r.Member(name); exists {
			return errors.Wrapf(errors.ErrAlreadyExists, "member %q of %s", name, r.URI)
		}
		r.Members = append(r.Members, Member{Name: name, URI: uri})
		return nil
	})
	if err == nil {
		g.e.log.Debugw("member added", logger.FieldURI, g.uri, logger.FieldName, name)
	}
	return err
}
