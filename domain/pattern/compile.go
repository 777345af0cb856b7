package pattern

import (
	"fmt"
	"math"

	"goodsam/domain/core"
	"goodsam/domain/frame"
)

// Compiled is the output of compiling one constraint set
type Compiled struct {
	Predicates []Predicate
	// TreatmentColumn is the constrained column that sits in the treatment
	// range, or "" when the set names none.
	TreatmentColumn string
}

// Conditions renders the compiled predicates
func (c Compiled) Conditions() []string {
	return Describe(c.Predicates)
}

// Compile turns a constraint set into ordered predicates over columns.
// A constrained column whose position is >= covariateCount selects the
// treatment instead of filtering; if several do, the last one wins.
func Compile(set ConstraintSet, columns []string, covariateCount int) (Compiled, error) {
	return compile(-1, set, columns, covariateCount)
}

// Batch holds per-pattern compile results and failures
type Batch struct {
	Compiled map[int]Compiled
	Failures map[int]error
}

// CompileAll compiles every pattern independently; a failing pattern is
// recorded in Failures and does not stop the rest of the batch. The first
// pattern with an ID owns it; later ones only record a duplicate failure,
// unless the owner already failed.
func CompileAll(patterns []Pattern, columns []string, covariateCount int) Batch {
	batch := Batch{
		Compiled: make(map[int]Compiled, len(patterns)),
		Failures: make(map[int]error),
	}
	seen := make(map[int]struct{}, len(patterns))
	for row, p := range patterns {
		if _, dup := seen[p.ID]; dup {
			if _, failed := batch.Failures[p.ID]; !failed {
				batch.Failures[p.ID] = fmt.Errorf("pattern %d at row %d: %w", p.ID, row, core.ErrDuplicatePattern)
			}
			continue
		}
		seen[p.ID] = struct{}{}

		c, err := compile(p.ID, p.Constraints, columns, covariateCount)
		if err != nil {
			batch.Failures[p.ID] = err
			continue
		}
		batch.Compiled[p.ID] = c
	}
	return batch
}

func compile(index int, set ConstraintSet, columns []string, covariateCount int) (Compiled, error) {
	positions := make(map[string]int, len(columns))
	for i, name := range columns {
		positions[name] = i
	}

	var out Compiled
	for _, c := range set {
		pos, ok := positions[c.Column]
		if !ok {
			return Compiled{}, core.NewUnknownColumnError(index, c.Column)
		}
		if err := c.Bound.Validate(); err != nil {
			return Compiled{}, core.NewMalformedPatternError(index, c.Column, err.Error())
		}
		if pos >= covariateCount {
			out.TreatmentColumn = c.Column
			continue
		}
		out.Predicates = append(out.Predicates, predicatesFor(c)...)
	}
	return out, nil
}

func predicatesFor(c Constraint) []Predicate {
	b := c.Bound
	if b.HasIn {
		return []Predicate{In{Col: c.Column, Set: append([]Value(nil), b.In...)}}
	}
	if b.Lower == b.Upper {
		return []Predicate{Equals{Col: c.Column, Value: Num(b.Lower)}}
	}
	var preds []Predicate
	if !math.IsInf(b.Lower, -1) {
		lb := b.Lower
		preds = append(preds, Range{Col: c.Column, Lower: &lb})
	}
	if !math.IsInf(b.Upper, 1) {
		ub := b.Upper
		preds = append(preds, Range{Col: c.Column, Upper: &ub})
	}
	return preds
}

// RangePredicates builds lb/ub predicates only, ignoring membership sets, the
// way ad-hoc analyst constraints are filtered.
func RangePredicates(set ConstraintSet) []Predicate {
	var preds []Predicate
	for _, c := range set {
		if !c.Bound.HasRange {
			continue
		}
		if !math.IsInf(c.Bound.Lower, 0) {
			lb := c.Bound.Lower
			preds = append(preds, Range{Col: c.Column, Lower: &lb})
		}
		if !math.IsInf(c.Bound.Upper, 0) {
			ub := c.Bound.Upper
			preds = append(preds, Range{Col: c.Column, Upper: &ub})
		}
	}
	return preds
}

// Apply filters ds by the conjunction of preds, evaluated in order. It
// returns a new dataset and the positions of the kept rows in ds.
func Apply(ds *frame.Dataset, preds []Predicate) (*frame.Dataset, []int, error) {
	cols := make([]int, len(preds))
	for i, p := range preds {
		idx, ok := ds.ColumnIndex(p.Column())
		if !ok {
			return nil, nil, core.NewUnknownColumnError(-1, p.Column())
		}
		cols[i] = idx
	}

	kept := make([]int, 0, ds.Rows())
	for row := 0; row < ds.Rows(); row++ {
		keep := true
		for i, p := range preds {
			if !p.Matches(ds, cols[i], row) {
				keep = false
				break
			}
		}
		if keep {
			kept = append(kept, row)
		}
	}

	sub, err := ds.Select(kept)
	if err != nil {
		return nil, nil, err
	}
	return sub, kept, nil
}
