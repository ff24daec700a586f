package engine

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"somacore/internal/blob"
	"somacore/internal/catalog"
	"somacore/internal/errors"
	"somacore/internal/logger"
	"somacore/pkg/frame"
)

// maxDenseCells bounds the cells a dense read materializes.
const maxDenseCells = 1 << 26

// ArrayHandle is an open array.
type ArrayHandle struct {
	*handle
	schema ArraySchema
}

// Query selects cells from an array. The zero Query reads everything.
type Query struct {
	// Points restricts each named dimension to the listed values.
	Points map[string][]any
	// Condition is an attribute predicate, see ParseCondition.
	Condition string
	// Attributes lists the attributes to return; nil returns all of them.
	// Dimensions are always returned.
	Attributes []string
}

// Schema returns the array schema.
func (a *ArrayHandle) Schema() (ArraySchema, error) {
	if err := a.usable(); err != nil {
		return ArraySchema{}, err
	}
	return a.schema, nil
}

// Fragments returns the number of fragments written so far.
func (a *ArrayHandle) Fragments() int { return len(a.rec.Fragments) }

// Write stores tbl as new fragments. tbl must hold a column for every
// dimension and attribute and nothing else; values are cast to the schema
// types. Rows beyond the schema capacity are split across fragments, and all
// fragments of one Write become visible together.
func (a *ArrayHandle) Write(ctx context.Context, tbl *frame.Table) (err error) {
	defer a.e.observe("write", time.Now(), &err)
	if err = a.writable(); err != nil {
		return err
	}
	cols, err := a.conform(tbl)
	if err != nil {
		return err
	}
	rows := tbl.NumRows()
	if rows == 0 {
		return nil
	}
	if err = a.checkDomains(cols); err != nil {
		return err
	}
	prefix, err := storageKey(a.uri)
	if err != nil {
		return err
	}
	chunk := a.schema.Capacity
	if chunk <= 0 {
		chunk = rows
	}

	var written []catalog.Fragment
	cleanup := func() {
		for _, f := range written {
			_, _ = a.e.blobs.Delete(context.WithoutCancel(ctx), f.Key)
		}
	}
	for start := 0; start < rows; start += chunk {
		end := min(start+chunk, rows)
		idx := make([]int, end-start)
		for i := range idx {
			idx[i] = start + i
		}
		part := make([]*frame.Column, len(cols))
		for i, c := range cols {
			part[i] = c.Take(idx)
		}
		payload, encErr := encodeFragment(a.schema, part)
		if encErr != nil {
			cleanup()
			return encErr
		}
		key := prefix + "/__fragments/" + uuid.NewString() + ".frag"
		if _, putErr := a.e.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: "application/x-somacore-fragment",
			Metadata:    map[string]string{"rows": strconv.Itoa(len(idx))},
		}); putErr != nil {
			cleanup()
			return errors.Wrapf(putErr, "store fragment for %s", a.uri)
		}
		written = append(written, catalog.Fragment{Key: key, Rows: int64(len(idx)), WrittenAt: a.e.now()})
	}
	err = a.update(ctx, func(r *catalog.Record) error {
		var seq int64
		for _, f := range r.Fragments {
			seq = max(seq, f.Sequence)
		}
		for _, f := range written {
			seq++
			f.Sequence = seq
			r.Fragments = append(r.Fragments, f)
		}
		return nil
	})
	if err != nil {
		cleanup()
		return err
	}
	for _, f := range written {
		a.e.log.Debugw("fragment written", logger.FieldURI, a.uri, logger.FieldFragment, f.Key, logger.FieldRows, f.Rows)
	}
	return nil
}

// conform orders tbl's columns as dimensions then attributes, cast to the
// schema types.
func (a *ArrayHandle) conform(tbl *frame.Table) ([]*frame.Column, error) {
	if tbl == nil {
		return nil, errors.InvalidArgumentf("nil table")
	}
	names := append(a.schema.DimensionNames(), a.schema.AttributeNames()...)
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	for _, n := range tbl.ColumnNames() {
		if _, ok := want[n]; !ok {
			return nil, errors.Wrapf(ErrSchemaMismatch, "column %q is not in the schema of %s", n, a.uri)
		}
	}
	cols := make([]*frame.Column, len(names))
	for i, n := range names {
		c, ok := tbl.Column(n)
		if !ok {
			return nil, errors.Wrapf(ErrSchemaMismatch, "table lacks column %q for %s", n, a.uri)
		}
		t, _, _ := a.schema.column(n)
		cast, err := c.Cast(t)
		if err != nil {
			return nil, errors.Wrapf(ErrSchemaMismatch, "%v", err)
		}
		cols[i] = cast
	}
	return cols, nil
}

func (a *ArrayHandle) checkDomains(cols []*frame.Column) error {
	for i, d := range a.schema.Dimensions {
		if d.Domain == nil {
			continue
		}
		for r := range cols[i].Values {
			if v := cols[i].Int64(r); !d.Domain.Contains(v) {
				return errors.Wrapf(ErrOutOfDomain, "%s=%d outside [%d, %d]", d.Name, v, d.Domain.Lo, d.Domain.Hi)
			}
		}
	}
	return nil
}

// Read returns the cells matching q in global order: sorted by dimension
// values, first dimension slowest. Without duplicates, the most recent
// write of a coordinate wins. Dense arrays return every cell of the domain,
// unwritten cells holding the attribute zero value.
func (a *ArrayHandle) Read(ctx context.Context, q Query) (out *frame.Table, err error) {
	defer a.e.observe("read", time.Now(), &err)
	if err = a.usable(); err != nil {
		return nil, err
	}
	var cond *Condition
	if strings.TrimSpace(q.Condition) != "" {
		if cond, err = ParseCondition(a.schema, q.Condition); err != nil {
			return nil, err
		}
	}
	attrs := a.schema.AttributeNames()
	if q.Attributes != nil {
		for _, n := range q.Attributes {
			if _, ok := a.schema.Attribute(n); !ok {
				return nil, errors.InvalidArgumentf("%s has no attribute %q", a.uri, n)
			}
		}
		attrs = q.Attributes
	}
	rows, err := a.merged(ctx)
	if err != nil {
		return nil, err
	}
	if !a.schema.Sparse {
		if rows, err = a.densify(rows); err != nil {
			return nil, err
		}
	}
	if rows, err = a.selectPoints(rows, q.Points); err != nil {
		return nil, err
	}
	index := a.columnIndex()
	if cond != nil {
		kept := rows[:0]
		for _, r := range rows {
			if cond.root.eval(func(name string) any { return r[index[name]] }) {
				kept = append(kept, r)
			}
		}
		rows = kept
	}
	return a.assemble(rows, attrs, index)
}

// columnIndex maps column names to positions in a merged row.
func (a *ArrayHandle) columnIndex() map[string]int {
	idx := make(map[string]int)
	for i, n := range append(a.schema.DimensionNames(), a.schema.AttributeNames()...) {
		idx[n] = i
	}
	return idx
}

// merged loads every fragment in sequence order and returns the surviving
// rows sorted by coordinate.
func (a *ArrayHandle) merged(ctx context.Context) ([][]any, error) {
	frags := append([]catalog.Fragment(nil), a.rec.Fragments...)
	sort.Slice(frags, func(i, j int) bool { return frags[i].Sequence < frags[j].Sequence })
	names := append(a.schema.DimensionNames(), a.schema.AttributeNames()...)
	ndims := len(a.schema.Dimensions)

	var rows [][]any
	latest := make(map[string]int)
	for _, f := range frags {
		cols, err := a.loadFragment(ctx, f.Key)
		if err != nil {
			return nil, err
		}
		byName := make(map[string]*frame.Column, len(cols))
		n := 0
		for _, c := range cols {
			byName[c.Name] = c
			n = c.Len()
		}
		for r := 0; r < n; r++ {
			row := make([]any, len(names))
			for i, name := range names {
				if c, ok := byName[name]; ok {
					row[i] = c.Values[r]
				} else {
					t, _, _ := a.schema.column(name)
					row[i] = t.Zero()
				}
			}
			if a.schema.AllowsDuplicates {
				rows = append(rows, row)
				continue
			}
			k := coordKey(row[:ndims])
			if at, seen := latest[k]; seen {
				rows[at] = row
				continue
			}
			latest[k] = len(rows)
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for d, dim := range a.schema.Dimensions {
			if c := frame.Compare(dim.Type, rows[i][d], rows[j][d]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return rows, nil
}

func (a *ArrayHandle) loadFragment(ctx context.Context, key string) ([]*frame.Column, error) {
	_, rc, err := a.e.blobs.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "load fragment of %s", a.uri)
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "read fragment %s", key)
	}
	cols, err := decodeFragment(b)
	if err != nil {
		return nil, errors.Wrapf(err, "decode fragment %s", key)
	}
	return cols, nil
}

// densify expands sorted sparse rows to the full domain in row-major order.
func (a *ArrayHandle) densify(rows [][]any) ([][]any, error) {
	shape := a.schema.Shape()
	cells := int64(1)
	for _, n := range shape {
		if n > maxDenseCells/cells {
			return nil, errors.InvalidArgumentf("dense read of %s exceeds %d cells", a.uri, maxDenseCells)
		}
		cells *= n
	}
	ndims := len(shape)
	have := make(map[string][]any, len(rows))
	for _, r := range rows {
		have[coordKey(r[:ndims])] = r
	}
	out := make([][]any, 0, cells)
	coord := make([]int64, ndims)
	for off := int64(0); off < cells; off++ {
		rem := off
		for i := ndims - 1; i >= 0; i-- {
			coord[i] = rem % shape[i]
			rem /= shape[i]
		}
		row := make([]any, ndims+len(a.schema.Attributes))
		for i, d := range a.schema.Dimensions {
			v := d.Domain.Lo + coord[i]
			if d.Type == frame.Int32 {
				row[i] = int32(v)
			} else {
				row[i] = v
			}
		}
		if r, ok := have[coordKey(row[:ndims])]; ok {
			out = append(out, r)
			continue
		}
		for i, at := range a.schema.Attributes {
			row[ndims+i] = at.Type.Zero()
		}
		out = append(out, row)
	}
	return out, nil
}

func (a *ArrayHandle) selectPoints(rows [][]any, points map[string][]any) ([][]any, error) {
	if len(points) == 0 {
		return rows, nil
	}
	type accept struct {
		pos  int
		keys map[string]struct{}
	}
	var filters []accept
	for i, d := range a.schema.Dimensions {
		vals, ok := points[d.Name]
		if !ok {
			continue
		}
		keys := make(map[string]struct{}, len(vals))
		for _, v := range vals {
			cv, err := d.Type.Coerce(v)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrInvalidArgument, "point on %s: %v", d.Name, err)
			}
			keys[valueKey(cv)] = struct{}{}
		}
		filters = append(filters, accept{pos: i, keys: keys})
	}
	for name := range points {
		if _, ok := a.schema.Dimension(name); !ok {
			return nil, errors.InvalidArgumentf("%s has no dimension %q", a.uri, name)
		}
	}
	kept := make([][]any, 0, len(rows))
	for _, r := range rows {
		match := true
		for _, f := range filters {
			if _, ok := f.keys[valueKey(r[f.pos])]; !ok {
				match = false
				break
			}
		}
		if match {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

func (a *ArrayHandle) assemble(rows [][]any, attrs []string, index map[string]int) (*frame.Table, error) {
	names := append(a.schema.DimensionNames(), attrs...)
	tbl := &frame.Table{}
	for _, n := range names {
		t, _, _ := a.schema.column(n)
		pos := index[n]
		c := &frame.Column{Name: n, Type: t, Values: make([]any, len(rows))}
		for i, r := range rows {
			c.Values[i] = r[pos]
		}
		if err := tbl.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

func valueKey(v any) string {
	switch x := v.(type) {
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return x
	case []byte:
		return string(x)
	}
	return ""
}

func coordKey(coord []any) string {
	var b strings.Builder
	for _, v := range coord {
		k := valueKey(v)
		b.WriteString(strconv.Itoa(len(k)))
		b.WriteByte(':')
		b.WriteString(k)
	}
	return b.String()
}
