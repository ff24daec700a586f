// Package engine is the storage engine the object model persists through.
// Arrays and groups are catalog records; array contents are immutable
// column-encoded fragments in blob storage, merged on read.
package engine

import (
	"somacore/internal/errors"
)

// ObjectType is the kind of storage object found at a URI.
type ObjectType int

const (
	// Invalid means no object exists at the URI.
	Invalid ObjectType = iota
	Array
	Group
)

func (t ObjectType) String() string {
	switch t {
	case Array:
		return "array"
	case Group:
		return "group"
	}
	return "invalid"
}

// Mode selects read-only or read-write access when opening a handle.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

// WriteMode selects whether WriteTable creates a new array or appends to one.
type WriteMode string

const (
	WriteCreate WriteMode = "create"
	WriteAppend WriteMode = "append"
)

var (
	// ErrOutOfDomain is returned when an integer coordinate falls outside its
	// dimension's domain.
	ErrOutOfDomain = errors.New("coordinate outside dimension domain")

	// ErrUnsupportedCondition is returned for predicates the engine cannot
	// evaluate, such as comparisons on variable-length UTF-8 attributes.
	ErrUnsupportedCondition = errors.New("unsupported query condition")

	// ErrSchemaMismatch is returned when a written table does not match the
	// array schema.
	ErrSchemaMismatch = errors.New("table does not match array schema")

	// ErrReadOnly is returned for mutations through a handle opened with ModeRead.
	ErrReadOnly = errors.New("handle opened read-only")
)
