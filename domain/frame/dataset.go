package frame

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Dataset is an immutable, column-oriented table. Every accessor hands out
// copies and every transformation returns a new Dataset, so a single loaded
// dataset can be shared read-only across concurrent requests.
type Dataset struct {
	columns []Column
	index   map[string]int
	rows    int
}

// New builds a dataset from columns. The columns are copied.
func New(columns []Column) (*Dataset, error) {
	ds := &Dataset{
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		if col.Name == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
		if _, dup := ds.index[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", col.Name)
		}
		if col.Kind != KindNumeric && col.Kind != KindText {
			return nil, fmt.Errorf("column %q has unknown kind %q", col.Name, col.Kind)
		}
		if i == 0 {
			ds.rows = col.Len()
		} else if col.Len() != ds.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", col.Name, col.Len(), ds.rows)
		}
		ds.index[col.Name] = i
		ds.columns = append(ds.columns, col.clone())
	}
	return ds, nil
}

// MustNew is New for fixtures; it panics on error
func MustNew(columns []Column) *Dataset {
	ds, err := New(columns)
	if err != nil {
		panic(err)
	}
	return ds
}

// Rows returns the row count
func (d *Dataset) Rows() int { return d.rows }

// Width returns the column count
func (d *Dataset) Width() int { return len(d.columns) }

// ColumnNames returns the column names in positional order
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of a column
func (d *Dataset) ColumnIndex(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}

// HasColumn reports whether the column exists
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Kind returns the kind of a column
func (d *Dataset) Kind(name string) (Kind, bool) {
	i, ok := d.index[name]
	if !ok {
		return "", false
	}
	return d.columns[i].Kind, true
}

// IsNumeric reports whether the column exists and is numeric
func (d *Dataset) IsNumeric(name string) bool {
	k, ok := d.Kind(name)
	return ok && k == KindNumeric
}

// Numbers returns a copy of a numeric column
func (d *Dataset) Numbers(name string) ([]float64, bool) {
	i, ok := d.index[name]
	if !ok || d.columns[i].Kind != KindNumeric {
		return nil, false
	}
	return append([]float64(nil), d.columns[i].Numbers...), true
}

// Texts returns a copy of a text column
func (d *Dataset) Texts(name string) ([]string, bool) {
	i, ok := d.index[name]
	if !ok || d.columns[i].Kind != KindText {
		return nil, false
	}
	return append([]string(nil), d.columns[i].Texts...), true
}

// NumberAt returns a single numeric cell without copying the column
func (d *Dataset) NumberAt(col, row int) float64 {
	return d.columns[col].Numbers[row]
}

// TextAt returns a single text cell without copying the column
func (d *Dataset) TextAt(col, row int) string {
	return d.columns[col].Texts[row]
}

// KindAt returns the kind of the column at a position
func (d *Dataset) KindAt(col int) Kind {
	return d.columns[col].Kind
}

// NonMissing returns the non-NaN values of a numeric column
func (d *Dataset) NonMissing(name string) ([]float64, bool) {
	i, ok := d.index[name]
	if !ok || d.columns[i].Kind != KindNumeric {
		return nil, false
	}
	out := make([]float64, 0, d.rows)
	for _, v := range d.columns[i].Numbers {
		if !isMissing(v) {
			out = append(out, v)
		}
	}
	return out, true
}

// Range returns the observed min and max of a numeric column
func (d *Dataset) Range(name string) (Range, bool) {
	values, ok := d.NonMissing(name)
	if !ok || len(values) == 0 {
		return Range{}, false
	}
	r := Range{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range values {
		r.Min = math.Min(r.Min, v)
		r.Max = math.Max(r.Max, v)
	}
	return r, true
}

// Clone returns a deep copy
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		columns: make([]Column, len(d.columns)),
		index:   make(map[string]int, len(d.index)),
		rows:    d.rows,
	}
	for i, c := range d.columns {
		out.columns[i] = c.clone()
		out.index[c.Name] = i
	}
	return out
}

// Select returns a new dataset holding the given rows in the given order
func (d *Dataset) Select(rows []int) (*Dataset, error) {
	for _, r := range rows {
		if r < 0 || r >= d.rows {
			return nil, fmt.Errorf("row %d out of range [0,%d)", r, d.rows)
		}
	}
	out := &Dataset{
		columns: make([]Column, len(d.columns)),
		index:   make(map[string]int, len(d.index)),
		rows:    len(rows),
	}
	for i, c := range d.columns {
		out.columns[i] = c.pick(rows)
		out.index[c.Name] = i
	}
	return out, nil
}

// WithColumn returns a new dataset with col appended, or replacing an existing column of the same name
func (d *Dataset) WithColumn(col Column) (*Dataset, error) {
	if col.Len() != d.rows && d.Width() > 0 {
		return nil, fmt.Errorf("column %q has %d rows, expected %d", col.Name, col.Len(), d.rows)
	}
	cols := make([]Column, len(d.columns), len(d.columns)+1)
	copy(cols, d.columns)
	if i, ok := d.index[col.Name]; ok {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	return New(cols)
}

// WithColumnAt returns a new dataset with col inserted at position pos
func (d *Dataset) WithColumnAt(pos int, col Column) (*Dataset, error) {
	if d.HasColumn(col.Name) {
		return nil, fmt.Errorf("duplicate column %q", col.Name)
	}
	if pos < 0 || pos > len(d.columns) {
		return nil, fmt.Errorf("position %d out of range", pos)
	}
	cols := make([]Column, 0, len(d.columns)+1)
	cols = append(cols, d.columns[:pos]...)
	cols = append(cols, col)
	cols = append(cols, d.columns[pos:]...)
	return New(cols)
}

// Without returns a new dataset without the named columns
func (d *Dataset) Without(names ...string) *Dataset {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	cols := make([]Column, 0, len(d.columns))
	for _, c := range d.columns {
		if !drop[c.Name] {
			cols = append(cols, c)
		}
	}
	out, _ := New(cols)
	return out
}

// Matrix copies the named numeric columns into a rows x len(names) dense matrix
func (d *Dataset) Matrix(names []string) (*mat.Dense, error) {
	if d.rows == 0 || len(names) == 0 {
		return nil, fmt.Errorf("cannot build a %dx%d matrix", d.rows, len(names))
	}
	m := mat.NewDense(d.rows, len(names), nil)
	for j, name := range names {
		i, ok := d.index[name]
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		if d.columns[i].Kind != KindNumeric {
			return nil, fmt.Errorf("column %q is %s", name, d.columns[i].Kind)
		}
		for r, v := range d.columns[i].Numbers {
			m.Set(r, j, v)
		}
	}
	return m, nil
}
