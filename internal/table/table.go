// Package table provides the in-memory tabular dataset shared by the file
// loaders, the analysis prompts and the edit sandbox.
package table

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// Table is an ordered set of typed columns. All columns have the same length.
type Table struct {
	Name    string    `json:"name"`
	Columns []*Column `json:"columns"`
}

// New creates an empty table with the given sheet name.
func New(name string) *Table {
	return &Table{Name: name}
}

// FromRows builds a table from a header row and string cells, inferring a kind
// for every column.
func FromRows(name string, header []string, rows [][]string) *Table {
	t := New(name)
	for i, h := range header {
		values := make([]any, len(rows))
		for r, row := range rows {
			if i < len(row) {
				values[r] = ParseCell(row[i])
			}
		}
		t.Columns = append(t.Columns, NewColumn(columnName(h, i), values))
	}
	return t
}

func columnName(h string, i int) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return fmt.Sprintf("Unnamed: %d", i)
	}
	return h
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	return len(t.Columns)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column returns the named column, or nil if the table has no such column.
func (t *Table) Column(name string) *Column {
	if i := t.Index(name); i >= 0 {
		return t.Columns[i]
	}
	return nil
}

// SetColumn replaces the column with the same name or appends it.
func (t *Table) SetColumn(c *Column) error {
	if len(t.Columns) > 0 && c.Len() != t.NumRows() {
		return fmt.Errorf("column %q has %d values, table has %d rows", c.Name, c.Len(), t.NumRows())
	}
	if i := t.Index(c.Name); i >= 0 {
		t.Columns[i] = c
		return nil
	}
	t.Columns = append(t.Columns, c)
	return nil
}

// Drop removes the named column. It reports whether the column existed.
func (t *Table) Drop(name string) bool {
	i := t.Index(name)
	if i < 0 {
		return false
	}
	t.Columns = append(t.Columns[:i], t.Columns[i+1:]...)
	return true
}

// Rename changes a column name. Renaming to an existing name is an error.
func (t *Table) Rename(from, to string) error {
	c := t.Column(from)
	if c == nil {
		return fmt.Errorf("no column named %q", from)
	}
	if from != to && t.Index(to) >= 0 {
		return fmt.Errorf("column %q already exists", to)
	}
	c.Name = to
	return nil
}

// Row returns the values of row i in column order.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.Columns))
	for j, c := range t.Columns {
		row[j] = c.Values[i]
	}
	return row
}

// AppendRow adds a row. Values are matched to columns by position.
func (t *Table) AppendRow(values []any) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.Columns))
	}
	for j, c := range t.Columns {
		c.Values = append(c.Values, normalize(values[j]))
		c.Refresh()
	}
	return nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{Name: t.Name, Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = c.Clone()
	}
	return out
}

// Take returns a new table holding the given rows in the given order.
func (t *Table) Take(rows []int) *Table {
	out := &Table{Name: t.Name, Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = c.Take(rows)
	}
	return out
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	return t.Take(span(0, min(n, t.NumRows())))
}

// Tail returns the last n rows.
func (t *Table) Tail(n int) *Table {
	total := t.NumRows()
	return t.Take(span(max(total-n, 0), total))
}

func span(start, end int) []int {
	idx := make([]int, 0, max(end-start, 0))
	for i := start; i < end; i++ {
		idx = append(idx, i)
	}
	return idx
}

// Describe lists every column with its kind, one per line.
func (t *Table) Describe() string {
	var b strings.Builder
	for _, c := range t.Columns {
		fmt.Fprintf(&b, "%s: %s\n", c.Name, c.Kind)
	}
	return b.String()
}

// Text renders the table as an aligned, row-indexed text grid.
func (t *Table) Text() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	fmt.Fprint(w, "\t")
	fmt.Fprintln(w, strings.Join(t.Names(), "\t"))
	for i := 0; i < t.NumRows(); i++ {
		cells := make([]string, len(t.Columns))
		for j, v := range t.Row(i) {
			cells[j] = FormatValue(v)
		}
		fmt.Fprintf(w, "%d\t%s\n", i, strings.Join(cells, "\t"))
	}
	_ = w.Flush()
	return b.String()
}

// Records returns the table as string cells, header first.
func (t *Table) Records() [][]string {
	records := make([][]string, 0, t.NumRows()+1)
	records = append(records, t.Names())
	for i := 0; i < t.NumRows(); i++ {
		row := t.Row(i)
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = FormatValue(v)
		}
		records = append(records, cells)
	}
	return records
}
