package engine

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"somacore/internal/errors"
	"somacore/pkg/frame"
)

// Fragment layout, all integers little-endian:
//
//	magic "SOMAFRG1" | u32 columns | u64 rows
//	per column: u16 name length, name, u8 type, u8 filters, filters (u8 kind, i32 level),
//	            fixed width: u64 len, data
//	            var length:  u64 len, offsets (u64 start per row, offsets filters), u64 len, data
const fragmentMagic = "SOMAFRG1"

var typeCodes = map[frame.DataType]byte{
	frame.Int32:   1,
	frame.Int64:   2,
	frame.Float32: 3,
	frame.Float64: 4,
	frame.String:  5,
	frame.Bytes:   6,
}

var filterCodes = map[FilterKind]byte{
	FilterPositiveDelta: 1,
	FilterZstd:          2,
}

func typeFromCode(c byte) (frame.DataType, bool) {
	for t, code := range typeCodes {
		if code == c {
			return t, true
		}
	}
	return "", false
}

func filterFromCode(c byte) (FilterKind, bool) {
	for k, code := range filterCodes {
		if code == c {
			return k, true
		}
	}
	return "", false
}

// encodeFragment serializes equally long columns, each through the filter
// list the schema assigns it.
func encodeFragment(s ArraySchema, cols []*frame.Column) ([]byte, error) {
	rows := 0
	if len(cols) > 0 {
		rows = cols[0].Len()
	}
	var buf bytes.Buffer
	buf.WriteString(fragmentMagic)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(cols)))
	_ = binary.Write(&buf, binary.LittleEndian, uint64(rows))
	for _, c := range cols {
		if c.Len() != rows {
			return nil, errors.Newf("column %s has %d rows, fragment has %d", c.Name, c.Len(), rows)
		}
		_, filters, ok := s.column(c.Name)
		if !ok {
			return nil, errors.Wrapf(ErrSchemaMismatch, "column %s", c.Name)
		}
		if len(c.Name) > math.MaxUint16 {
			return nil, errors.InvalidArgumentf("column name too long")
		}
		_ = binary.Write(&buf, binary.LittleEndian, uint16(len(c.Name)))
		buf.WriteString(c.Name)
		buf.WriteByte(typeCodes[c.Type])
		writeFilters(&buf, filters)
		if c.Type.VarLength() {
			writeFilters(&buf, s.OffsetsFilters)
			offsets, data := packVar(c)
			if err := writeSection(&buf, offsets, s.OffsetsFilters); err != nil {
				return nil, errors.Wrapf(err, "column %s offsets", c.Name)
			}
			if err := writeSection(&buf, data, filters); err != nil {
				return nil, errors.Wrapf(err, "column %s", c.Name)
			}
			continue
		}
		data, err := packFixed(c)
		if err != nil {
			return nil, err
		}
		if err := writeSection(&buf, data, filters); err != nil {
			return nil, errors.Wrapf(err, "column %s", c.Name)
		}
	}
	return buf.Bytes(), nil
}

func writeFilters(buf *bytes.Buffer, fl FilterList) {
	buf.WriteByte(byte(len(fl)))
	for _, f := range fl {
		buf.WriteByte(filterCodes[f.Kind])
		_ = binary.Write(buf, binary.LittleEndian, int32(f.Level))
	}
}

func writeSection(buf *bytes.Buffer, raw []byte, fl FilterList) error {
	enc, err := fl.encode(raw)
	if err != nil {
		return err
	}
	_ = binary.Write(buf, binary.LittleEndian, uint64(len(enc)))
	buf.Write(enc)
	return nil
}

func packVar(c *frame.Column) ([]byte, []byte) {
	offsets := make([]byte, 8*c.Len())
	var data bytes.Buffer
	for i := range c.Values {
		binary.LittleEndian.PutUint64(offsets[8*i:], uint64(data.Len()))
		switch v := c.Values[i].(type) {
		case string:
			data.WriteString(v)
		case []byte:
			data.Write(v)
		}
	}
	return offsets, data.Bytes()
}

func packFixed(c *frame.Column) ([]byte, error) {
	var buf bytes.Buffer
	for i, v := range c.Values {
		var err error
		switch c.Type {
		case frame.Int32:
			x, ok := v.(int32)
			if !ok {
				return nil, errors.Newf("column %s row %d: %T is not int32", c.Name, i, v)
			}
			err = binary.Write(&buf, binary.LittleEndian, x)
		case frame.Int64:
			x, ok := v.(int64)
			if !ok {
				return nil, errors.Newf("column %s row %d: %T is not int64", c.Name, i, v)
			}
			err = binary.Write(&buf, binary.LittleEndian, x)
		case frame.Float32:
			x, ok := v.(float32)
			if !ok {
				return nil, errors.Newf("column %s row %d: %T is not float32", c.Name, i, v)
			}
			err = binary.Write(&buf, binary.LittleEndian, math.Float32bits(x))
		case frame.Float64:
			x, ok := v.(float64)
			if !ok {
				return nil, errors.Newf("column %s row %d: %T is not float64", c.Name, i, v)
			}
			err = binary.Write(&buf, binary.LittleEndian, math.Float64bits(x))
		default:
			return nil, errors.Newf("column %s: %s is not fixed width", c.Name, c.Type)
		}
		if err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// decodeFragment reverses encodeFragment. Filters are read from the
// fragment itself so old fragments stay readable.
func decodeFragment(b []byte) ([]*frame.Column, error) {
	r := bytes.NewReader(b)
	magic := make([]byte, len(fragmentMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != fragmentMagic {
		return nil, errors.New("not a fragment")
	}
	var ncols uint32
	var nrows uint64
	if err := binary.Read(r, binary.LittleEndian, &ncols); err != nil {
		return nil, errors.Wrap(err, "fragment header")
	}
	if err := binary.Read(r, binary.LittleEndian, &nrows); err != nil {
		return nil, errors.Wrap(err, "fragment header")
	}
	cols := make([]*frame.Column, 0, ncols)
	for i := uint32(0); i < ncols; i++ {
		c, err := readColumn(r, int(nrows))
		if err != nil {
			return nil, errors.Wrapf(err, "fragment column %d", i)
		}
		cols = append(cols, c)
	}
	return cols, nil
}

func readColumn(r *bytes.Reader, rows int) (*frame.Column, error) {
	var nameLen uint16
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return nil, err
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, err
	}
	code, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	t, ok := typeFromCode(code)
	if !ok {
		return nil, errors.Newf("unknown type code %d", code)
	}
	filters, err := readFilters(r)
	if err != nil {
		return nil, err
	}
	c := &frame.Column{Name: string(name), Type: t, Values: make([]any, rows)}
	if t.VarLength() {
		offFilters, err := readFilters(r)
		if err != nil {
			return nil, err
		}
		offsets, err := readSection(r, offFilters)
		if err != nil {
			return nil, err
		}
		data, err := readSection(r, filters)
		if err != nil {
			return nil, err
		}
		if len(offsets) != 8*rows {
			return nil, errors.Newf("column %s: %d offset bytes for %d rows", c.Name, len(offsets), rows)
		}
		for i := 0; i < rows; i++ {
			start := binary.LittleEndian.Uint64(offsets[8*i:])
			end := uint64(len(data))
			if i+1 < rows {
				end = binary.LittleEndian.Uint64(offsets[8*(i+1):])
			}
			if start > end || end > uint64(len(data)) {
				return nil, errors.Newf("column %s: corrupt offsets at row %d", c.Name, i)
			}
			v := data[start:end]
			if t == frame.String {
				c.Values[i] = string(v)
			} else {
				c.Values[i] = append([]byte(nil), v...)
			}
		}
		return c, nil
	}
	data, err := readSection(r, filters)
	if err != nil {
		return nil, err
	}
	width := map[frame.DataType]int{frame.Int32: 4, frame.Int64: 8, frame.Float32: 4, frame.Float64: 8}[t]
	if len(data) != width*rows {
		return nil, errors.Newf("column %s: %d bytes for %d rows of %s", c.Name, len(data), rows, t)
	}
	for i := 0; i < rows; i++ {
		p := data[width*i:]
		switch t {
		case frame.Int32:
			c.Values[i] = int32(binary.LittleEndian.Uint32(p))
		case frame.Int64:
			c.Values[i] = int64(binary.LittleEndian.Uint64(p))
		case frame.Float32:
			c.Values[i] = math.Float32frombits(binary.LittleEndian.Uint32(p))
		case frame.Float64:
			c.Values[i] = math.Float64frombits(binary.LittleEndian.Uint64(p))
		}
	}
	return c, nil
}

func readFilters(r *bytes.Reader) (FilterList, error) {
	n, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	fl := make(FilterList, 0, n)
	for i := 0; i < int(n); i++ {
		code, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		kind, ok := filterFromCode(code)
		if !ok {
			return nil, errors.Newf("unknown filter code %d", code)
		}
		var level int32
		if err := binary.Read(r, binary.LittleEndian, &level); err != nil {
			return nil, err
		}
		fl = append(fl, Filter{Kind: kind, Level: int(level)})
	}
	return fl, nil
}

func readSection(r *bytes.Reader, fl FilterList) ([]byte, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n > uint64(r.Len()) {
		return nil, errors.Newf("section of %d bytes overruns fragment", n)
	}
	enc := make([]byte, n)
	if _, err := io.ReadFull(r, enc); err != nil {
		return nil, err
	}
	return fl.decode(enc)
}
