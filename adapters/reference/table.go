// Package reference holds the in-memory FIPS to county and state lookup.
package reference

import (
	"goodsam/ports"
)

// Table is an immutable ports.ReferenceTable
type Table struct {
	rows []ports.County
}

var _ ports.ReferenceTable = (*Table)(nil)

// NewTable copies rows into a table
func NewTable(rows []ports.County) *Table {
	return &Table{rows: append([]ports.County(nil), rows...)}
}

// Lookup returns every row whose code is in codes, in table order. Codes
// that repeat in the request match once; codes missing from the table are
// ignored.
func (t *Table) Lookup(codes []int) []ports.County {
	want := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		want[c] = struct{}{}
	}
	out := []ports.County{}
	for _, row := range t.rows {
		if _, ok := want[row.FIPS]; ok {
			out = append(out, row)
		}
	}
	return out
}

// Len returns the number of rows
func (t *Table) Len() int { return len(t.rows) }
