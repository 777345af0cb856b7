package frame

import (
	"fmt"
	"math"
)

// Kind is the storage kind of a column
type Kind string

const (
	KindNumeric Kind = "numeric"
	KindText    Kind = "text"
)

// Column is one named, typed column. Numeric columns use NaN for missing cells.
type Column struct {
	Name    string
	Kind    Kind
	Numbers []float64
	Texts   []string
}

// NumericColumn builds a numeric column
func NumericColumn(name string, values []float64) Column {
	return Column{Name: name, Kind: KindNumeric, Numbers: values}
}

// TextColumn builds a text column
func TextColumn(name string, values []string) Column {
	return Column{Name: name, Kind: KindText, Texts: values}
}

// Len returns the number of cells in the column
func (c Column) Len() int {
	if c.Kind == KindText {
		return len(c.Texts)
	}
	return len(c.Numbers)
}

func (c Column) clone() Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	if c.Numbers != nil {
		out.Numbers = append([]float64(nil), c.Numbers...)
	}
	if c.Texts != nil {
		out.Texts = append([]string(nil), c.Texts...)
	}
	return out
}

func (c Column) pick(rows []int) Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == KindText {
		out.Texts = make([]string, len(rows))
		for i, r := range rows {
			out.Texts[i] = c.Texts[r]
		}
		return out
	}
	out.Numbers = make([]float64, len(rows))
	for i, r := range rows {
		out.Numbers[i] = c.Numbers[r]
	}
	return out
}

// Range is the observed [Min, Max] of a numeric column, ignoring missing cells
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Schema fixes the positional layout of a dataset: the first CovariateCount
// columns are covariates, later columns are candidate treatment indicators.
type Schema struct {
	CovariateCount int    `json:"covariate_count" validate:"gt=0"`
	Outcome        string `json:"outcome" validate:"required"`
}

// DefaultSchema matches the county opioid dataset layout
func DefaultSchema() Schema {
	return Schema{CovariateCount: 27, Outcome: "delta_death_rate"}
}

// Covariates returns the covariate column names of ds in order
func (s Schema) Covariates(ds *Dataset) ([]string, error) {
	if s.CovariateCount <= 0 {
		return nil, fmt.Errorf("covariate count must be positive, got %d", s.CovariateCount)
	}
	names := ds.ColumnNames()
	if len(names) < s.CovariateCount {
		return nil, fmt.Errorf("dataset has %d columns, schema expects %d covariates", len(names), s.CovariateCount)
	}
	return names[:s.CovariateCount], nil
}

// InTreatmentRange reports whether the column sits at or past the covariate boundary
func (s Schema) InTreatmentRange(ds *Dataset, name string) bool {
	idx, ok := ds.ColumnIndex(name)
	return ok && idx >= s.CovariateCount
}

// TreatmentColumns lists candidate treatment columns, excluding the outcome
func (s Schema) TreatmentColumns(ds *Dataset) []string {
	var out []string
	for i, name := range ds.ColumnNames() {
		if i >= s.CovariateCount && name != s.Outcome {
			out = append(out, name)
		}
	}
	return out
}

func isMissing(v float64) bool {
	return math.IsNaN(v)
}
