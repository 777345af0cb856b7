package hypothesis

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// CohensD is (mean(treated) - mean(control)) / pooled standard deviation,
// with each group's variance taken with one degree of freedom removed.
func CohensD(treated, control []float64) (float64, error) {
	n1, n0 := len(treated), len(control)
	if n1 < 2 || n0 < 2 {
		return 0, fmt.Errorf("cohen's d: %w", ErrTooFew)
	}
	s1, err := stats.VarS(treated)
	if err != nil {
		return 0, err
	}
	s0, err := stats.VarS(control)
	if err != nil {
		return 0, err
	}
	pooled := math.Sqrt((float64(n1-1)*s1 + float64(n0-1)*s0) / float64(n1+n0-2))
	return (mean(treated) - mean(control)) / pooled, nil
}

// ImbalanceRatio is the larger group size over the smaller one, or 0 when
// either group is empty.
func ImbalanceRatio(active, inactive int) float64 {
	if active == 0 || inactive == 0 {
		return 0
	}
	if active > inactive {
		return float64(active) / float64(inactive)
	}
	return float64(inactive) / float64(active)
}
