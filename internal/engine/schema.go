package engine

import (
	"encoding/json"
	"math"

	"somacore/internal/errors"
	"somacore/pkg/frame"
)

// Domain is an inclusive integer range [Lo, Hi].
type Domain struct {
	Lo int64 `json:"lo"`
	Hi int64 `json:"hi"`
}

// Contains reports whether v lies within the domain.
func (d Domain) Contains(v int64) bool { return v >= d.Lo && v <= d.Hi }

// Width returns the number of values in the domain, saturating at MaxInt64.
func (d Domain) Width() int64 {
	if d.Hi-d.Lo < 0 || d.Hi-d.Lo == math.MaxInt64 {
		return math.MaxInt64
	}
	return d.Hi - d.Lo + 1
}

// Dimension describes one coordinate axis of an array.
type Dimension struct {
	Name string         `json:"name"`
	Type frame.DataType `json:"type"`
	// Domain applies to integer dimensions only.
	Domain     *Domain    `json:"domain,omitempty"`
	TileExtent int64      `json:"tile_extent,omitempty"`
	Filters    FilterList `json:"filters,omitempty"`
}

// Attribute describes one value column of an array.
type Attribute struct {
	Name    string         `json:"name"`
	Type    frame.DataType `json:"type"`
	Filters FilterList     `json:"filters,omitempty"`
}

// ArraySchema is fixed when an array is created.
type ArraySchema struct {
	Sparse           bool        `json:"sparse"`
	AllowsDuplicates bool        `json:"allows_duplicates"`
	Capacity         int         `json:"capacity,omitempty"`
	Dimensions       []Dimension `json:"dimensions"`
	Attributes       []Attribute `json:"attributes"`
	OffsetsFilters   FilterList  `json:"offsets_filters,omitempty"`
}

// DimensionNames returns dimension names in schema order.
func (s ArraySchema) DimensionNames() []string {
	out := make([]string, len(s.Dimensions))
	for i, d := range s.Dimensions {
		out[i] = d.Name
	}
	return out
}

// AttributeNames returns attribute names in schema order.
func (s ArraySchema) AttributeNames() []string {
	out := make([]string, len(s.Attributes))
	for i, a := range s.Attributes {
		out[i] = a.Name
	}
	return out
}

// Attribute looks up an attribute by name.
func (s ArraySchema) Attribute(name string) (Attribute, bool) {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Dimension looks up a dimension by name.
func (s ArraySchema) Dimension(name string) (Dimension, bool) {
	for _, d := range s.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// Shape returns the domain widths of integer dimensions. It is only
// meaningful for arrays whose dimensions all have domains.
func (s ArraySchema) Shape() []int64 {
	out := make([]int64, 0, len(s.Dimensions))
	for _, d := range s.Dimensions {
		if d.Domain == nil {
			return nil
		}
		out = append(out, d.Domain.Width())
	}
	return out
}

// Validate checks structural rules of the schema.
func (s ArraySchema) Validate() error {
	if len(s.Dimensions) == 0 {
		return errors.InvalidArgumentf("array schema needs at least one dimension")
	}
	if len(s.Attributes) == 0 {
		return errors.InvalidArgumentf("array schema needs at least one attribute")
	}
	if s.Capacity < 0 {
		return errors.InvalidArgumentf("capacity must not be negative")
	}
	if err := s.OffsetsFilters.validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{})
	claim := func(name string) error {
		if name == "" {
			return errors.InvalidArgumentf("dimension and attribute names must not be empty")
		}
		if _, dup := seen[name]; dup {
			return errors.InvalidArgumentf("duplicate column name %q", name)
		}
		seen[name] = struct{}{}
		return nil
	}
	for _, d := range s.Dimensions {
		if err := claim(d.Name); err != nil {
			return err
		}
		switch d.Type {
		case frame.Int32, frame.Int64:
			if d.Domain == nil {
				return errors.InvalidArgumentf("integer dimension %q needs a domain", d.Name)
			}
			if d.Domain.Lo > d.Domain.Hi {
				return errors.InvalidArgumentf("dimension %q has empty domain [%d, %d]", d.Name, d.Domain.Lo, d.Domain.Hi)
			}
			if d.TileExtent > 0 && d.TileExtent > d.Domain.Width() {
				return errors.InvalidArgumentf("dimension %q tile extent %d exceeds domain width", d.Name, d.TileExtent)
			}
		case frame.String, frame.Bytes:
			if !s.Sparse {
				return errors.InvalidArgumentf("dense arrays need integer dimensions, %q is %s", d.Name, d.Type)
			}
			if d.Domain != nil {
				return errors.InvalidArgumentf("string dimension %q cannot have a domain", d.Name)
			}
		default:
			return errors.InvalidArgumentf("dimension %q has unsupported type %q", d.Name, d.Type)
		}
		if d.TileExtent < 0 {
			return errors.InvalidArgumentf("dimension %q tile extent must not be negative", d.Name)
		}
		if err := d.Filters.validate(); err != nil {
			return err
		}
		if d.Filters.hasDelta() {
			return errors.InvalidArgumentf("positive delta is only valid on offsets, not dimension %q", d.Name)
		}
	}
	for _, a := range s.Attributes {
		if err := claim(a.Name); err != nil {
			return err
		}
		if !a.Type.Valid() {
			return errors.InvalidArgumentf("attribute %q has unsupported type %q", a.Name, a.Type)
		}
		if err := a.Filters.validate(); err != nil {
			return err
		}
		if a.Filters.hasDelta() {
			return errors.InvalidArgumentf("positive delta is only valid on offsets, not attribute %q", a.Name)
		}
	}
	if !s.Sparse && s.AllowsDuplicates {
		return errors.InvalidArgumentf("dense arrays cannot allow duplicates")
	}
	return nil
}

// column returns the filter list and type for a dimension or attribute.
func (s ArraySchema) column(name string) (frame.DataType, FilterList, bool) {
	if d, ok := s.Dimension(name); ok {
		return d.Type, d.Filters, true
	}
	if a, ok := s.Attribute(name); ok {
		return a.Type, a.Filters, true
	}
	return "", nil, false
}

func marshalSchema(s ArraySchema) (json.RawMessage, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "encode array schema")
	}
	return b, nil
}

func unmarshalSchema(raw json.RawMessage) (ArraySchema, error) {
	var s ArraySchema
	if err := json.Unmarshal(raw, &s); err != nil {
		return ArraySchema{}, errors.Wrap(err, "decode array schema")
	}
	return s, nil
}
