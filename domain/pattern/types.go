package pattern

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value is a literal used by equality and membership bounds
type Value struct {
	Number float64
	Text   string
	IsText bool
}

// Num builds a numeric literal
func Num(v float64) Value { return Value{Number: v} }

// Str builds a text literal
func Str(s string) Value { return Value{Text: s, IsText: true} }

func (v Value) String() string {
	if v.IsText {
		return strconv.Quote(v.Text)
	}
	return formatNumber(v.Number)
}

// MarshalJSON encodes the literal as a JSON number or string
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsText {
		return json.Marshal(v.Text)
	}
	return marshalNumber(v.Number)
}

// Bound restricts one column. It is either a membership set or an inclusive
// [Lower, Upper] range where infinite sides are unbounded.
type Bound struct {
	In       []Value
	Lower    float64
	Upper    float64
	HasIn    bool
	HasRange bool
}

// InSet builds a membership bound
func InSet(values ...Value) Bound {
	return Bound{In: values, HasIn: true}
}

// Between builds an inclusive range bound; use math.Inf for open sides
func Between(lb, ub float64) Bound {
	return Bound{Lower: lb, Upper: ub, HasRange: true}
}

// Equal builds a range bound with lb == ub
func Equal(v float64) Bound {
	return Between(v, v)
}

// Validate rejects bounds that are neither or both forms, or have an unusable range
func (b Bound) Validate() error {
	switch {
	case b.HasIn && b.HasRange:
		return fmt.Errorf("bound has both in and lb/ub")
	case !b.HasIn && !b.HasRange:
		return fmt.Errorf("bound has neither in nor lb/ub")
	case b.HasIn && len(b.In) == 0:
		return fmt.Errorf("in set is empty")
	case b.HasRange && (math.IsNaN(b.Lower) || math.IsNaN(b.Upper)):
		return fmt.Errorf("lb/ub is NaN")
	case b.HasRange && b.Lower > b.Upper:
		return fmt.Errorf("lb %s is greater than ub %s", formatNumber(b.Lower), formatNumber(b.Upper))
	}
	return nil
}

// MarshalJSON encodes {"in": [...]} or {"lb": x, "ub": y}; infinities become "-inf"/"inf"
func (b Bound) MarshalJSON() ([]byte, error) {
	if b.HasIn {
		return json.Marshal(map[string][]Value{"in": b.In})
	}
	lb, err := marshalNumber(b.Lower)
	if err != nil {
		return nil, err
	}
	ub, err := marshalNumber(b.Upper)
	if err != nil {
		return nil, err
	}
	return []byte(`{"lb":` + string(lb) + `,"ub":` + string(ub) + `}`), nil
}

// Constraint binds a column to a bound
type Constraint struct {
	Column string
	Bound  Bound
}

// ConstraintSet is an ordered list of constraints; order is declaration order
type ConstraintSet []Constraint

// Get returns the bound for a column
func (cs ConstraintSet) Get(column string) (Bound, bool) {
	for _, c := range cs {
		if c.Column == column {
			return c.Bound, true
		}
	}
	return Bound{}, false
}

// Columns returns the constrained columns in declaration order
func (cs ConstraintSet) Columns() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Column
	}
	return out
}

// Clone deep-copies the set
func (cs ConstraintSet) Clone() ConstraintSet {
	out := make(ConstraintSet, len(cs))
	for i, c := range cs {
		out[i] = c
		if c.Bound.In != nil {
			out[i].Bound.In = append([]Value(nil), c.Bound.In...)
		}
	}
	return out
}

// MarshalJSON encodes the set as an object whose keys keep declaration order
func (cs ConstraintSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range cs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Column)
		if err != nil {
			return nil, err
		}
		val, err := c.Bound.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the wire format, including bare inf/-inf literals
func (cs *ConstraintSet) UnmarshalJSON(data []byte) error {
	parsed, err := ParseConstraints(string(data))
	if err != nil {
		return err
	}
	*cs = parsed
	return nil
}

// Pattern is a named, reusable constraint set from the pattern catalogue
type Pattern struct {
	ID          int           `json:"id"`
	Description string        `json:"description,omitempty"`
	Constraints ConstraintSet `json:"constraints"`
}

func formatNumber(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func marshalNumber(v float64) ([]byte, error) {
	if math.IsInf(v, 0) {
		return json.Marshal(formatNumber(v))
	}
	if math.IsNaN(v) {
		return nil, fmt.Errorf("cannot encode NaN")
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}
