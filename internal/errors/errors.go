// Package errors provides error handling for somacore.
//
// It re-exports github.com/cockroachdb/errors so every layer (blob drivers,
// catalog drivers, the storage engine and the object model) wraps and
// inspects errors through one vocabulary with stack traces attached:
//
//	if err := cat.Update(ctx, uri, fn); err != nil {
//	    return errors.Wrapf(err, "add member %s", name)
//	}
//
//	if errors.Is(err, errors.ErrNotFound) {
//	    // absent object
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
	GetAllHints = crdb.GetAllHints
)

// Inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Sentinels shared by the storage layers. Wrap them with Wrapf to add
// context; errors.Is still matches through the wrapping.
var (
	// ErrNotFound indicates the addressed object, key or member does not exist.
	ErrNotFound = New("not found")

	// ErrAlreadyExists indicates a create-only write hit an existing object.
	ErrAlreadyExists = New("already exists")

	// ErrInvalidArgument indicates malformed input (URI, schema, table).
	ErrInvalidArgument = New("invalid argument")

	// ErrClosed indicates use of a storage handle after Close.
	ErrClosed = New("handle closed")
)

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return Wrapf(ErrNotFound, format, args...)
}

// InvalidArgumentf wraps ErrInvalidArgument with a formatted message.
func InvalidArgumentf(format string, args ...any) error {
	return Wrapf(ErrInvalidArgument, format, args...)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}
