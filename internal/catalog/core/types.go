// Package core defines the object catalog: the durable record of every
// array and group, its schema, members, metadata and fragment list.
// Concrete drivers live under internal/infra/persistence.
package core

import (
	"context"
	"encoding/json"
	"time"

	"somacore/internal/errors"
)

// Driver identifies a catalog backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverBadger   Driver = "badger"
)

// ObjectType is the storage-level kind of a catalog record.
type ObjectType string

const (
	TypeArray ObjectType = "array"
	TypeGroup ObjectType = "group"
)

// Member is a named link from a group to another object.
type Member struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// Fragment references one immutable write batch in blob storage.
type Fragment struct {
	Key       string    `json:"key"`
	Rows      int64     `json:"rows"`
	Sequence  int64     `json:"sequence"`
	WrittenAt time.Time `json:"written_at"`
}

// Record is the catalog entry for one URI. Members keep insertion order.
type Record struct {
	URI       string            `json:"uri"`
	Type      ObjectType        `json:"type"`
	Schema    json.RawMessage   `json:"schema,omitempty"`
	Members   []Member          `json:"members,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Fragments []Fragment        `json:"fragments,omitempty"`
	Version   int64             `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (r Record) Clone() Record {
	out := r
	if r.Schema != nil {
		out.Schema = append(json.RawMessage(nil), r.Schema...)
	}
	if r.Members != nil {
		out.Members = append([]Member(nil), r.Members...)
	}
	if r.Fragments != nil {
		out.Fragments = append([]Fragment(nil), r.Fragments...)
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Member returns the member registered under name.
func (r Record) Member(name string) (Member, bool) {
	for _, m := range r.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// Validate checks the invariants every driver relies on.
func (r Record) Validate() error {
	if r.URI == "" {
		return errors.InvalidArgumentf("catalog record requires a uri")
	}
	switch r.Type {
	case TypeArray, TypeGroup:
	default:
		return errors.InvalidArgumentf("catalog record %s has unknown type %q", r.URI, r.Type)
	}
	seen := make(map[string]struct{}, len(r.Members))
	for _, m := range r.Members {
		if _, dup := seen[m.Name]; dup {
			return errors.Wrapf(errors.ErrAlreadyExists, "member %q in %s", m.Name, r.URI)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

// Mutator edits a record in place inside Update.
type Mutator func(*Record) error

// Catalog stores one Record per URI.
//
// Create fails with ErrAlreadyExists when the URI is taken. Load and Update
// fail with an error marked ErrNotFound for unknown URIs. Update applies fn
// to a copy of the stored record and persists the result atomically; an
// error from fn aborts the update.
type Catalog interface {
	Create(ctx context.Context, rec Record) error
	Load(ctx context.Context, uri string) (Record, error)
	Update(ctx context.Context, uri string, fn Mutator) (Record, error)
	Close() error
	Driver() Driver
}

// NotFound returns an error for an unknown URI.
func NotFound(uri string) error {
	return errors.Wrapf(errors.ErrNotFound, "catalog object %s", uri)
}

// AlreadyExists returns an error for a URI collision.
func AlreadyExists(uri string) error {
	return errors.Wrapf(errors.ErrAlreadyExists, "catalog object %s", uri)
}

// Stamp sets timestamps and bumps the version on a record about to be stored.
func Stamp(rec *Record, now time.Time) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec.Version++
}

// Apply runs fn against a clone of current and validates the result. Drivers
// share it so mutation semantics are identical across backends.
func Apply(current Record, fn Mutator, now time.Time) (Record, error) {
	next := current.Clone()
	if err := fn(&next); err != nil {
		return Record{}, err
	}
	next.URI = current.URI
	next.Type = current.Type
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version
	if err := next.Validate(); err != nil {
		return Record{}, err
	}
	Stamp(&next, now)
	return next, nil
}
