// Package frame is the in-memory tabular exchange format moved across the
// storage boundary: named, typed columns of equal length with an optional
// index column identifying rows.
package frame

import (
	"fmt"
	"math"
)

// DataType enumerates the column element types the storage layer understands.
type DataType string

const (
	Int32   DataType = "int32"
	Int64   DataType = "int64"
	Float32 DataType = "float32"
	Float64 DataType = "float64"
	// String is variable-length UTF-8.
	String DataType = "string"
	// Bytes is fixed-width ASCII byte strings. The storage engine can evaluate
	// predicates on Bytes attributes but not on String attributes.
	Bytes DataType = "bytes"
)

// Valid reports whether t is a known data type.
func (t DataType) Valid() bool {
	switch t {
	case Int32, Int64, Float32, Float64, String, Bytes:
		return true
	}
	return false
}

// Numeric reports whether t holds numbers.
func (t DataType) Numeric() bool {
	switch t {
	case Int32, Int64, Float32, Float64:
		return true
	}
	return false
}

// VarLength reports whether values of t have variable byte width.
func (t DataType) VarLength() bool { return t == String || t == Bytes }

// Zero returns the zero value of t.
func (t DataType) Zero() any {
	switch t {
	case Int32:
		return int32(0)
	case Int64:
		return int64(0)
	case Float32:
		return float32(0)
	case Float64:
		return float64(0)
	case String:
		return ""
	case Bytes:
		return []byte{}
	}
	return nil
}

// Coerce converts v to the Go representation of t. Integral values are
// accepted for float types and for integer types when they fit; strings and
// byte slices convert into each other.
func (t DataType) Coerce(v any) (any, error) {
	switch t {
	case Int32:
		n, ok := asInt64(v)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("frame: cannot use %v (%T) as int32", v, v)
		}
		return int32(n), nil
	case Int64:
		n, ok := asInt64(v)
		if !ok {
			return nil, fmt.Errorf("frame: cannot use %v (%T) as int64", v, v)
		}
		return n, nil
	case Float32:
		f, ok := asFloat64(v)
		if !ok {
			return nil, fmt.Errorf("frame: cannot use %v (%T) as float32", v, v)
		}
		return float32(f), nil
	case Float64:
		f, ok := asFloat64(v)
		if !ok {
			return nil, fmt.Errorf("frame: cannot use %v (%T) as float64", v, v)
		}
		return f, nil
	case String:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
	case Bytes:
		switch s := v.(type) {
		case []byte:
			return append([]byte(nil), s...), nil
		case string:
			return []byte(s), nil
		}
	}
	return nil, fmt.Errorf("frame: cannot use %v (%T) as %s", v, v, t)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	if n, ok := asInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}

// Compare orders two values of the same data type, returning -1, 0 or 1.
// Bytes and String compare lexically.
func Compare(t DataType, a, b any) int {
	switch t {
	case Int32, Int64:
		x, _ := asInt64(a)
		y, _ := asInt64(b)
		return cmp3(x < y, x > y)
	case Float32, Float64:
		x, _ := asFloat64(a)
		y, _ := asFloat64(b)
		return cmp3(x < y, x > y)
	default:
		x, y := textOf(a), textOf(b)
		return cmp3(x < y, x > y)
	}
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func textOf(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return fmt.Sprint(v)
}
