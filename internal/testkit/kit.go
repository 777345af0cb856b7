package testkit

import (
	"context"
	"fmt"
	"math/rand"

	"goodsam/domain/frame"
	"goodsam/domain/pattern"
	"goodsam/ports"
)

// Column names of the synthetic county fixture
const (
	OutcomeColumn   = "delta_death_rate"
	TreatmentColumn = "law"
	CovariateCount  = 3
)

// TestKit provides testing utilities and fixtures
type TestKit struct {
	seed int64
}

// NewTestKit creates a new test kit instance with synthetic data
func NewTestKit() (*TestKit, error) {
	return &TestKit{seed: 42}, nil
}

// RNGAdapter returns an RNG adapter
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return &RNGAdapter{}
}

// Schema is the layout of CountyDataset
func (t *TestKit) Schema() frame.Schema {
	return frame.Schema{CovariateCount: CovariateCount, Outcome: OutcomeColumn}
}

// CountyDataset builds n synthetic counties with three numeric covariates
// (col0 = row index, col1, col2), the outcome and a binary law column. The
// outcome carries a known additive treatment effect.
func (t *TestKit) CountyDataset(n int, effect float64) *frame.Dataset {
	rng := rand.New(rand.NewSource(t.seed))

	col0 := make([]float64, n)
	col1 := make([]float64, n)
	col2 := make([]float64, n)
	law := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		col0[i] = float64(i)
		col1[i] = 10 + rng.NormFloat64()*3
		col2[i] = float64(rng.Intn(50))
		law[i] = float64(i % 2)
		y[i] = 2 + 0.5*col1[i] - 0.1*col2[i] + effect*law[i] + rng.NormFloat64()*0.05
	}

	return frame.MustNew([]frame.Column{
		frame.NumericColumn("col0", col0),
		frame.NumericColumn("col1", col1),
		frame.NumericColumn("col2", col2),
		frame.NumericColumn(OutcomeColumn, y),
		frame.NumericColumn(TreatmentColumn, law),
	})
}

// FIPS returns n synthetic FIPS codes aligned with CountyDataset rows
func (t *TestKit) FIPS(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 39001 + 2*i
	}
	return out
}

// Counties returns a reference table covering FIPS(n)
func (t *TestKit) Counties(n int) []ports.County {
	codes := t.FIPS(n)
	out := make([]ports.County, n)
	for i, code := range codes {
		out[i] = ports.County{FIPS: code, County: fmt.Sprintf("County %d", i), State: "Ohio"}
	}
	return out
}

// Patterns returns a small pattern catalogue over CountyDataset
func (t *TestKit) Patterns() []pattern.Pattern {
	return []pattern.Pattern{
		{ID: 0, Constraints: pattern.ConstraintSet{
			{Column: "col0", Bound: pattern.Between(0, 10)},
			{Column: TreatmentColumn, Bound: pattern.Equal(1)},
		}},
		{ID: 1, Constraints: pattern.ConstraintSet{
			{Column: "col2", Bound: pattern.InSet(pattern.Num(1), pattern.Num(2))},
		}},
	}
}

// RNGAdapter implements the RNGPort interface for testing
type RNGAdapter struct{}

// SeededStream creates a deterministic random number generator for a named operation
func (r *RNGAdapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	return rand.New(rand.NewSource(seed)), nil
}
