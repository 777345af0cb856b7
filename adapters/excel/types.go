package excel

// Table is a raw sheet: trimmed headers and string cells in file order. Every
// row has exactly len(Headers) cells.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Column returns the cells of the named column
func (t *Table) Column(name string) ([]string, bool) {
	idx := -1
	for i, h := range t.Headers {
		if h == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, true
}
