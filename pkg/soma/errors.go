package soma

import "somacore/internal/errors"

var (
	// ErrNotFound is returned when a container member or an entity is absent.
	// It also matches errors.ErrNotFound from the storage layers.
	ErrNotFound = errors.Mark(errors.New("soma: not found"), errors.ErrNotFound)

	// ErrTypeConstraint is returned when a reserved slot is assigned an
	// entity of a kind it does not accept. Membership is left unchanged.
	ErrTypeConstraint = errors.New("soma: type constraint violation")

	// ErrOutOfBounds is returned for tensor coordinates outside the shape.
	ErrOutOfBounds = errors.New("soma: coordinate out of bounds")

	// ErrInvalidShape is returned for tensor shapes with non-positive extents.
	ErrInvalidShape = errors.Mark(errors.New("soma: invalid shape"), errors.ErrInvalidArgument)

	// ErrDuplicateID is returned by Ingest when Options.RejectDuplicateIDs is
	// set and an id is already present.
	ErrDuplicateID = errors.Mark(errors.New("soma: duplicate id"), errors.ErrAlreadyExists)

	// ErrWrongKind is returned by kind-specific probes when the URI holds a
	// different kind of entity. Exists reports false instead.
	ErrWrongKind = errors.New("soma: wrong entity kind")
)

// IsNotFound reports whether err is a not-found from any layer.
func IsNotFound(err error) bool {
	return errors.IsNotFound(err)
}
