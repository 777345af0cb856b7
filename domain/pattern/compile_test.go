package pattern

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goodsam/domain/core"
	"goodsam/domain/frame"
)

var testColumns = []string{"income", "age", "state", "law_a", "law_b"}

func testDataset() *frame.Dataset {
	return frame.MustNew([]frame.Column{
		frame.NumericColumn("income", []float64{10, 20, 30, 40, 50, math.NaN()}),
		frame.NumericColumn("age", []float64{1, 2, 2, 3, 5, 8}),
		frame.TextColumn("state", []string{"OH", "WV", "KY", "OH", "WV", "OH"}),
		frame.NumericColumn("law_a", []float64{0, 1, 0, 1, 0, 1}),
		frame.NumericColumn("law_b", []float64{1, 1, 0, 0, 1, 1}),
	})
}

func TestCompile_PredicateShapes(t *testing.T) {
	tests := []struct {
		name     string
		set      ConstraintSet
		expected []string
	}{
		{
			name:     "two sided range emits two predicates",
			set:      ConstraintSet{{Column: "income", Bound: Between(15, 45)}},
			expected: []string{"['income']>=15", "['income']<=45"},
		},
		{
			name:     "equal bounds emit a single equality",
			set:      ConstraintSet{{Column: "age", Bound: Equal(2)}},
			expected: []string{"['age']==2"},
		},
		{
			name:     "infinite lower bound is omitted",
			set:      ConstraintSet{{Column: "income", Bound: Between(math.Inf(-1), 30)}},
			expected: []string{"['income']<=30"},
		},
		{
			name:     "infinite upper bound is omitted",
			set:      ConstraintSet{{Column: "income", Bound: Between(30, math.Inf(1))}},
			expected: []string{"['income']>=30"},
		},
		{
			name:     "fully unbounded range emits nothing",
			set:      ConstraintSet{{Column: "income", Bound: Between(math.Inf(-1), math.Inf(1))}},
			expected: nil,
		},
		{
			name:     "membership",
			set:      ConstraintSet{{Column: "state", Bound: InSet(Str("OH"), Str("KY"))}},
			expected: []string{`['state'].isin(["OH", "KY"])`},
		},
		{
			name: "declaration order is kept",
			set: ConstraintSet{
				{Column: "age", Bound: Between(2, 5)},
				{Column: "income", Bound: Equal(20)},
			},
			expected: []string{"['age']>=2", "['age']<=5", "['income']==20"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compile(tt.set, testColumns, 3)
			require.NoError(t, err)
			assert.Empty(t, c.TreatmentColumn)
			if tt.expected == nil {
				assert.Empty(t, c.Predicates)
				return
			}
			assert.Equal(t, tt.expected, c.Conditions())
		})
	}
}

func TestCompile_EqualityIsNeverTwoInequalities(t *testing.T) {
	c, err := Compile(ConstraintSet{{Column: "income", Bound: Equal(30)}}, testColumns, 3)
	require.NoError(t, err)
	require.Len(t, c.Predicates, 1)
	_, ok := c.Predicates[0].(Equals)
	assert.True(t, ok, "expected Equals, got %T", c.Predicates[0])
}

func TestCompile_TreatmentColumnExtraction(t *testing.T) {
	set := ConstraintSet{
		{Column: "law_a", Bound: Equal(1)},
		{Column: "income", Bound: Between(0, 100)},
		{Column: "law_b", Bound: Equal(1)},
	}
	c, err := Compile(set, testColumns, 3)
	require.NoError(t, err)

	assert.Equal(t, "law_b", c.TreatmentColumn, "last treatment-range column wins")
	for _, p := range c.Predicates {
		assert.NotEqual(t, "law_a", p.Column())
		assert.NotEqual(t, "law_b", p.Column())
	}
	assert.Len(t, c.Predicates, 2)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		set    ConstraintSet
		target error
		column string
	}{
		{"unknown column", ConstraintSet{{Column: "nope", Bound: Equal(1)}}, core.ErrUnknownColumn, "nope"},
		{"neither form", ConstraintSet{{Column: "income", Bound: Bound{}}}, core.ErrMalformedPattern, "income"},
		{"both forms", ConstraintSet{{Column: "age", Bound: Bound{HasIn: true, In: []Value{Num(1)}, HasRange: true}}}, core.ErrMalformedPattern, "age"},
		{"inverted range", ConstraintSet{{Column: "age", Bound: Between(5, 1)}}, core.ErrMalformedPattern, "age"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.set, testColumns, 3)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)

			var pe *core.PatternError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.column, pe.Column)
			assert.Equal(t, -1, pe.Index)
		})
	}
}

func TestCompileAll_CollectsFailuresPerPattern(t *testing.T) {
	patterns := []Pattern{
		{ID: 0, Constraints: ConstraintSet{{Column: "income", Bound: Between(10, 30)}}},
		{ID: 1, Constraints: ConstraintSet{{Column: "missing", Bound: Equal(1)}}},
		{ID: 2, Constraints: ConstraintSet{{Column: "age", Bound: Bound{}}}},
		{ID: 3, Constraints: ConstraintSet{{Column: "law_a", Bound: Equal(1)}}},
	}

	batch := CompileAll(patterns, testColumns, 3)

	assert.Len(t, batch.Compiled, 2)
	assert.Len(t, batch.Failures, 2)
	assert.ErrorIs(t, batch.Failures[1], core.ErrUnknownColumn)
	assert.ErrorIs(t, batch.Failures[2], core.ErrMalformedPattern)
	assert.Equal(t, "law_a", batch.Compiled[3].TreatmentColumn)

	var pe *core.PatternError
	require.True(t, errors.As(batch.Failures[2], &pe))
	assert.Equal(t, 2, pe.Index)
}

func TestCompileAll_FirstDuplicateWins(t *testing.T) {
	patterns := []Pattern{
		{ID: 1, Constraints: ConstraintSet{{Column: "income", Bound: Between(0, 5)}}},
		{ID: 1, Constraints: ConstraintSet{{Column: "age", Bound: Between(7, math.Inf(1))}}},
		{ID: 4, Constraints: ConstraintSet{{Column: "missing", Bound: Equal(1)}}},
		{ID: 4, Constraints: ConstraintSet{{Column: "age", Bound: Equal(2)}}},
	}

	batch := CompileAll(patterns, testColumns, 3)

	require.Contains(t, batch.Compiled, 1)
	assert.Equal(t, []string{"['income']>=0", "['income']<=5"}, batch.Compiled[1].Conditions())
	assert.ErrorIs(t, batch.Failures[1], core.ErrDuplicatePattern)
	assert.Contains(t, batch.Failures[1].Error(), "row 1")

	assert.NotContains(t, batch.Compiled, 4)
	assert.ErrorIs(t, batch.Failures[4], core.ErrUnknownColumn, "the owner's failure is kept")
}

func TestApply_FiniteBoundsSelectInclusiveRows(t *testing.T) {
	ds := testDataset()
	set := ConstraintSet{
		{Column: "income", Bound: Between(20, 40)},
		{Column: "age", Bound: Between(2, 3)},
	}
	c, err := Compile(set, ds.ColumnNames(), 3)
	require.NoError(t, err)

	sub, kept, err := Apply(ds, c.Predicates)
	require.NoError(t, err)

	// brute force: every row, every bound, inclusive
	var expected []int
	income, _ := ds.Numbers("income")
	age, _ := ds.Numbers("age")
	for i := range income {
		if income[i] >= 20 && income[i] <= 40 && age[i] >= 2 && age[i] <= 3 {
			expected = append(expected, i)
		}
	}
	assert.Equal(t, expected, kept)
	assert.Equal(t, []int{1, 2, 3}, kept)
	assert.Equal(t, len(kept), sub.Rows())
}

func TestApply_MissingValuesNeverMatch(t *testing.T) {
	ds := testDataset()
	c, err := Compile(ConstraintSet{{Column: "income", Bound: Between(0, math.Inf(1))}}, ds.ColumnNames(), 3)
	require.NoError(t, err)

	_, kept, err := Apply(ds, c.Predicates)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, kept)
}

func TestApply_MembershipAndSourceUntouched(t *testing.T) {
	ds := testDataset()
	c, err := Compile(ConstraintSet{{Column: "state", Bound: InSet(Str("WV"))}}, ds.ColumnNames(), 3)
	require.NoError(t, err)

	sub, kept, err := Apply(ds, c.Predicates)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, kept)

	states, _ := sub.Texts("state")
	assert.Equal(t, []string{"WV", "WV"}, states)
	assert.Equal(t, 6, ds.Rows())
}

func TestApply_NoPredicatesKeepsEverything(t *testing.T) {
	ds := testDataset()
	sub, kept, err := Apply(ds, nil)
	require.NoError(t, err)
	assert.Equal(t, ds.Rows(), sub.Rows())
	assert.Len(t, kept, ds.Rows())
}

func TestRangePredicates_IgnoresMembership(t *testing.T) {
	set := ConstraintSet{
		{Column: "state", Bound: InSet(Str("OH"))},
		{Column: "income", Bound: Between(10, math.Inf(1))},
	}
	assert.Equal(t, []string{"['income']>=10"}, Describe(RangePredicates(set)))
}
