// Package catalog re-exports the catalog abstractions and wires the
// concrete drivers under internal/infra/persistence.
package catalog

import (
	"somacore/internal/catalog/core"
)

type (
	Driver     = core.Driver
	ObjectType = core.ObjectType
	Member     = core.Member
	Fragment   = core.Fragment
	Record     = core.Record
	Mutator    = core.Mutator
	Catalog    = core.Catalog
)

const (
	DriverMemory   = core.DriverMemory
	DriverSQLite   = core.DriverSQLite
	DriverPostgres = core.DriverPostgres
	DriverBadger   = core.DriverBadger

	TypeArray = core.TypeArray
	TypeGroup = core.TypeGroup
)
