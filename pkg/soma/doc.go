// Package soma is a typed, hierarchical object model for annotated matrix
// data. Every entity is addressed by a URI and persisted as exactly one
// engine group or array:
//
//	Experiment           group   obs -> DataFrame, ms -> Collection
//	  Measurement        group   var -> DataFrame, X -> Collection
//	Collection           group   any member kind
//	DataFrame            array   one string dimension <name>_id
//	SparseNDArray        array   integer dimensions __dim_0.., attribute data
//	DenseNDArray         array   as SparseNDArray, every cell materialized
//
// Handles are cheap values constructed from a Platform and a URI without
// I/O. Every operation opens the backing engine object, does its work and
// closes it before returning.
package soma
