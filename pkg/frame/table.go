package frame

import (
	"fmt"
	"slices"
)

// Table is an ordered set of equally long columns. Index, when set, names
// the column identifying rows (the dataframe row index).
type Table struct {
	Index   string
	columns []*Column
}

// NewTable builds a table from columns, checking names are unique and
// lengths agree.
func NewTable(columns ...*Column) (*Table, error) {
	t := &Table{}
	for _, c := range columns {
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustTable is NewTable that panics on error. Intended for tests and literals.
func MustTable(columns ...*Column) *Table {
	t, err := NewTable(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// AddColumn appends a column.
func (t *Table) AddColumn(c *Column) error {
	if c == nil {
		return fmt.Errorf("frame: nil column")
	}
	if c.Name == "" {
		return fmt.Errorf("frame: column name must not be empty")
	}
	if _, ok := t.Column(c.Name); ok {
		return fmt.Errorf("frame: duplicate column %q", c.Name)
	}
	if len(t.columns) > 0 && c.Len() != t.NumRows() {
		return fmt.Errorf("frame: column %q has %d rows, table has %d", c.Name, c.Len(), t.NumRows())
	}
	t.columns = append(t.columns, c)
	return nil
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	if t == nil || len(t.columns) == 0 {
		return 0
	}
	return t.columns[0].Len()
}

// NumColumns returns the column count, index included.
func (t *Table) NumColumns() int { return len(t.columns) }

// Columns returns the columns in order. The slice is a copy; columns are shared.
func (t *Table) Columns() []*Column { return slices.Clone(t.columns) }

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// IndexColumn returns the index column, if one is set.
func (t *Table) IndexColumn() (*Column, bool) {
	if t.Index == "" {
		return nil, false
	}
	return t.Column(t.Index)
}

// SetIndex marks an existing column as the row index.
func (t *Table) SetIndex(name string) error {
	if _, ok := t.Column(name); !ok {
		return fmt.Errorf("frame: no column %q to use as index", name)
	}
	t.Index = name
	return nil
}

// RenameIndex renames the index column (pandas rename_axis). The table
// must have an index.
func (t *Table) RenameIndex(name string) error {
	if t.Index == "" {
		return fmt.Errorf("frame: table has no index to rename")
	}
	if name == t.Index {
		return nil
	}
	if err := t.RenameColumn(t.Index, name); err != nil {
		return err
	}
	t.Index = name
	return nil
}

// RenameColumn renames a column in place.
func (t *Table) RenameColumn(from, to string) error {
	c, ok := t.Column(from)
	if !ok {
		return fmt.Errorf("frame: no column %q", from)
	}
	if _, clash := t.Column(to); clash && from != to {
		return fmt.Errorf("frame: column %q already exists", to)
	}
	c.Name = to
	if t.Index == from {
		t.Index = to
	}
	return nil
}

// ReplaceColumn swaps the column with the same name for c.
func (t *Table) ReplaceColumn(c *Column) error {
	for i, old := range t.columns {
		if old.Name == c.Name {
			if c.Len() != old.Len() {
				return fmt.Errorf("frame: replacement column %q has %d rows, want %d", c.Name, c.Len(), old.Len())
			}
			t.columns[i] = c
			return nil
		}
	}
	return fmt.Errorf("frame: no column %q", c.Name)
}

// Project returns a table with only the named columns, in the given order.
// The index is kept if it is among them.
func (t *Table) Project(names ...string) (*Table, error) {
	out := &Table{}
	for _, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return nil, fmt.Errorf("frame: no column %q", n)
		}
		if err := out.AddColumn(c); err != nil {
			return nil, err
		}
		if n == t.Index {
			out.Index = n
		}
	}
	return out, nil
}

// Take returns a new table holding the given rows in order.
func (t *Table) Take(rows []int) *Table {
	out := &Table{Index: t.Index, columns: make([]*Column, len(t.columns))}
	for i, c := range t.columns {
		out.columns[i] = c.Take(rows)
	}
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{Index: t.Index, columns: make([]*Column, len(t.columns))}
	for i, c := range t.columns {
		out.columns[i] = c.Clone()
	}
	return out
}

// Row returns row i as a column-name keyed map.
func (t *Table) Row(i int) map[string]any {
	row := make(map[string]any, len(t.columns))
	for _, c := range t.columns {
		row[c.Name] = c.Values[i]
	}
	return row
}

// RowByIndex finds the first row whose index value equals key.
func (t *Table) RowByIndex(key string) (map[string]any, bool) {
	idx, ok := t.IndexColumn()
	if !ok {
		return nil, false
	}
	for i := range idx.Values {
		if idx.Text(i) == key {
			return t.Row(i), true
		}
	}
	return nil, false
}
