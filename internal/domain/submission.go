package domain

import "slices"

// Well-known property names the engine acts on.
const (
	PropertyType     = "type"
	PropertyACL      = "acl"
	PropertyFileName = "file_name"
	PropertyFileURL  = "file_url_in_cds"
	PropertyFileSize = "file_size"
	PropertyMD5      = "md5sum"
	PropertyGUID     = "dcf_indexd_guid"
)

// Table is an ordered set of columns and rows of string cells.
// An empty string is an empty (null) cell.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable creates a table with the given columns and rows.
// Rows shorter than the column list are padded with empty cells.
func NewTable(columns []string, rows [][]string) *Table {
	t := &Table{Columns: slices.Clone(columns), Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		t.AppendRow(r)
	}
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of the named column, or -1.
func (t *Table) Index(column string) int {
	return slices.Index(t.Columns, column)
}

// Has reports whether the table carries the named column.
func (t *Table) Has(column string) bool { return t.Index(column) >= 0 }

// Get returns the cell at row for the named column, or "" when the column is absent.
func (t *Table) Get(row int, column string) string {
	i := t.Index(column)
	if i < 0 {
		return ""
	}
	return t.Rows[row][i]
}

// Set writes a cell. It is a no-op when the column is absent.
func (t *Table) Set(row int, column, value string) {
	i := t.Index(column)
	if i < 0 {
		return
	}
	t.Rows[row][i] = value
}

// Column returns a copy of every cell in the named column.
func (t *Table) Column(column string) []string {
	i := t.Index(column)
	if i < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// AddColumn appends an empty column if it does not exist yet.
func (t *Table) AddColumn(column string) {
	if t.Has(column) {
		return
	}
	t.Columns = append(t.Columns, column)
	for r := range t.Rows {
		t.Rows[r] = append(t.Rows[r], "")
	}
}

// AppendRow adds a row, padding or truncating it to the column count.
func (t *Table) AppendRow(row []string) {
	r := make([]string, len(t.Columns))
	copy(r, row)
	t.Rows = append(t.Rows, r)
}

// ColumnEmpty reports whether every cell of the named column is empty.
func (t *Table) ColumnEmpty(column string) bool {
	i := t.Index(column)
	if i < 0 {
		return true
	}
	for _, row := range t.Rows {
		if row[i] != "" {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := &Table{Columns: slices.Clone(t.Columns), Rows: make([][]string, len(t.Rows))}
	for i, r := range t.Rows {
		c.Rows[i] = slices.Clone(r)
	}
	return c
}

// Node is a named table of records for one entity type.
type Node struct {
	Name  string
	Table *Table
}

// HasData reports whether any cell outside the synthetic type column is non-empty.
func (n *Node) HasData() bool {
	for _, c := range n.Table.Columns {
		if c == PropertyType {
			continue
		}
		if !n.Table.ColumnEmpty(c) {
			return true
		}
	}
	return false
}

// Submission is the ordered set of nodes handed to the engine.
type Submission struct {
	Nodes []*Node
}

// Node returns the named node, or nil.
func (s *Submission) Node(name string) *Node {
	for _, n := range s.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// Names returns node names in submission order.
func (s *Submission) Names() []string {
	out := make([]string, len(s.Nodes))
	for i, n := range s.Nodes {
		out[i] = n.Name
	}
	return out
}

// Clone returns a deep copy of every node.
func (s *Submission) Clone() *Submission {
	c := &Submission{Nodes: make([]*Node, len(s.Nodes))}
	for i, n := range s.Nodes {
		c.Nodes[i] = &Node{Name: n.Name, Table: n.Table.Clone()}
	}
	return c
}

// DropEmptyNodes removes nodes without data and returns the dropped names.
func (s *Submission) DropEmptyNodes() []string {
	var dropped []string
	kept := s.Nodes[:0]
	for _, n := range s.Nodes {
		if n.HasData() {
			kept = append(kept, n)
			continue
		}
		dropped = append(dropped, n.Name)
	}
	s.Nodes = kept
	return dropped
}
