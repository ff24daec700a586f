package frame

import "fmt"

// Column is a named, typed sequence of values. Values hold the Go
// representation of Type: int32, int64, float32, float64, string or []byte.
type Column struct {
	Name   string
	Type   DataType
	Values []any
}

// NewColumn builds a column coercing every value to t.
func NewColumn(name string, t DataType, values ...any) (*Column, error) {
	if name == "" {
		return nil, fmt.Errorf("frame: column name must not be empty")
	}
	if !t.Valid() {
		return nil, fmt.Errorf("frame: column %s: unknown data type %q", name, t)
	}
	out := make([]any, len(values))
	for i, v := range values {
		c, err := t.Coerce(v)
		if err != nil {
			return nil, fmt.Errorf("column %s row %d: %w", name, i, err)
		}
		out[i] = c
	}
	return &Column{Name: name, Type: t, Values: out}, nil
}

// Int32s builds an int32 column.
func Int32s(name string, values ...int32) *Column {
	return typed(name, Int32, values)
}

// Int64s builds an int64 column.
func Int64s(name string, values ...int64) *Column {
	return typed(name, Int64, values)
}

// Float32s builds a float32 column.
func Float32s(name string, values ...float32) *Column {
	return typed(name, Float32, values)
}

// Float64s builds a float64 column.
func Float64s(name string, values ...float64) *Column {
	return typed(name, Float64, values)
}

// Strings builds a variable-length UTF-8 column.
func Strings(name string, values ...string) *Column {
	return typed(name, String, values)
}

// ByteStrings builds a fixed-width bytes column.
func ByteStrings(name string, values ...[]byte) *Column {
	return typed(name, Bytes, values)
}

func typed[T any](name string, t DataType, values []T) *Column {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return &Column{Name: name, Type: t, Values: out}
}

// Len returns the number of values.
func (c *Column) Len() int { return len(c.Values) }

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	out := &Column{Name: c.Name, Type: c.Type, Values: make([]any, len(c.Values))}
	for i, v := range c.Values {
		if b, ok := v.([]byte); ok {
			v = append([]byte(nil), b...)
		}
		out.Values[i] = v
	}
	return out
}

// Cast converts every value of the column to t, returning a new column.
// Values are coerced even when Type already equals t.
func (c *Column) Cast(t DataType) (*Column, error) {
	return NewColumn(c.Name, t, c.Values...)
}

// Take returns a new column holding the values at rows, in order.
func (c *Column) Take(rows []int) *Column {
	out := &Column{Name: c.Name, Type: c.Type, Values: make([]any, len(rows))}
	for i, r := range rows {
		out.Values[i] = c.Values[r]
	}
	return out
}

// Text returns the value at row i as a string for String and Bytes columns.
func (c *Column) Text(i int) string { return textOf(c.Values[i]) }

// Int64 returns the value at row i widened to int64.
func (c *Column) Int64(i int) int64 {
	n, _ := asInt64(c.Values[i])
	return n
}

// Float64 returns the value at row i widened to float64.
func (c *Column) Float64(i int) float64 {
	f, _ := asFloat64(c.Values[i])
	return f
}
