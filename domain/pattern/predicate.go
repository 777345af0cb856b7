package pattern

import (
	"fmt"
	"math"
	"strings"

	"goodsam/domain/frame"
)

// Predicate is a resolved row filter over one column. The concrete types are
// Range, Equals and In; they are evaluated directly against a Dataset.
type Predicate interface {
	Column() string
	// Matches reports whether the row passes. Missing cells never match.
	Matches(ds *frame.Dataset, col, row int) bool
	String() string
	isPredicate()
}

// Range is a one- or two-sided inclusive bound. A nil side is unbounded.
type Range struct {
	Col   string
	Lower *float64
	Upper *float64
}

func (p Range) Column() string { return p.Col }

func (p Range) Matches(ds *frame.Dataset, col, row int) bool {
	if ds.KindAt(col) != frame.KindNumeric {
		return false
	}
	v := ds.NumberAt(col, row)
	if math.IsNaN(v) {
		return false
	}
	if p.Lower != nil && v < *p.Lower {
		return false
	}
	if p.Upper != nil && v > *p.Upper {
		return false
	}
	return true
}

func (p Range) String() string {
	var parts []string
	if p.Lower != nil {
		parts = append(parts, fmt.Sprintf("['%s']>=%s", p.Col, formatNumber(*p.Lower)))
	}
	if p.Upper != nil {
		parts = append(parts, fmt.Sprintf("['%s']<=%s", p.Col, formatNumber(*p.Upper)))
	}
	return strings.Join(parts, " & ")
}

func (Range) isPredicate() {}

// Equals matches a single literal
type Equals struct {
	Col   string
	Value Value
}

func (p Equals) Column() string { return p.Col }

func (p Equals) Matches(ds *frame.Dataset, col, row int) bool {
	return matchValue(ds, col, row, p.Value)
}

func (p Equals) String() string {
	return fmt.Sprintf("['%s']==%s", p.Col, p.Value)
}

func (Equals) isPredicate() {}

// In matches membership in a literal set
type In struct {
	Col string
	Set []Value
}

func (p In) Column() string { return p.Col }

func (p In) Matches(ds *frame.Dataset, col, row int) bool {
	for _, v := range p.Set {
		if matchValue(ds, col, row, v) {
			return true
		}
	}
	return false
}

func (p In) String() string {
	items := make([]string, len(p.Set))
	for i, v := range p.Set {
		items[i] = v.String()
	}
	return fmt.Sprintf("['%s'].isin([%s])", p.Col, strings.Join(items, ", "))
}

func (In) isPredicate() {}

func matchValue(ds *frame.Dataset, col, row int, v Value) bool {
	switch ds.KindAt(col) {
	case frame.KindNumeric:
		if v.IsText {
			return false
		}
		cell := ds.NumberAt(col, row)
		return cell == v.Number
	case frame.KindText:
		return v.IsText && ds.TextAt(col, row) == v.Text
	}
	return false
}

// Describe renders predicates as the condition strings shown to analysts
func Describe(preds []Predicate) []string {
	out := make([]string, len(preds))
	for i, p := range preds {
		out[i] = p.String()
	}
	return out
}
