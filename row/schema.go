package row

import "fmt"

// Row is a single record, keyed by column name. Values are either
// user-shape or storage-shape depending on which side of the converter
// the row sits.
type Row = map[string]any

// Field pairs a column name with its specification, preserving the
// declaration order a map literal would lose.
type Field struct {
	Name   string
	Column Column
}

// Schema is a frozen, insertion-ordered set of column specifications.
// The declaration order is the default projection order.
type Schema struct {
	names []string
	cols  map[string]Column
}

// NewSchema builds a schema from the given fields. Duplicate column
// names are a programming error and panic.
func NewSchema(fields ...Field) Schema {
	s := Schema{
		names: make([]string, 0, len(fields)),
		cols:  make(map[string]Column, len(fields)),
	}
	for _, f := range fields {
		if _, dup := s.cols[f.Name]; dup {
			panic(fmt.Sprintf("row: duplicate column %q", f.Name))
		}
		s.names = append(s.names, f.Name)
		s.cols[f.Name] = f.Column
	}
	return s
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.names) }

// Columns returns the column names in declaration order.
func (s Schema) Columns() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Column returns the specification for a named column.
func (s Schema) Column(name string) (Column, bool) {
	c, ok := s.cols[name]
	return c, ok
}

// Has reports whether the schema declares the named column.
func (s Schema) Has(name string) bool {
	_, ok := s.cols[name]
	return ok
}

// ColumnsOf returns, in declaration order, the names of columns whose
// kind matches.
func (s Schema) ColumnsOf(kind Kind) []string {
	var out []string
	for _, name := range s.names {
		if s.cols[name].Kind() == kind {
			out = append(out, name)
		}
	}
	return out
}

// Modifiable returns, in declaration order, the names of columns that
// may appear in insert/update payloads.
func (s Schema) Modifiable() []string {
	var out []string
	for _, name := range s.names {
		if s.cols[name].Modifiable() {
			out = append(out, name)
		}
	}
	return out
}
