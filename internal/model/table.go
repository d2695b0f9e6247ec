package model

// Column affinities used when a table is (re)created.
const (
	ColumnText    = "TEXT"
	ColumnReal    = "REAL"
	ColumnInteger = "INTEGER"
)

// Column describes one column of a Table.
type Column struct {
	Name string
	Type string
}

// Table is the uniform tabular shape produced by the normalizer and written
// by the store. Rows are positional and match Columns.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Empty reports whether the table has no rows.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// ColumnNames returns the column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the named column, or -1.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}
