package hypothesis

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// PairedTTest tests the mean of treated[i] - control[i] against zero with a
// Student's t distribution on n-1 degrees of freedom.
func PairedTTest(treated, control []float64, alt Alternative) (Result, error) {
	if err := checkAlternative(alt); err != nil {
		return Result{}, err
	}
	if len(treated) != len(control) {
		return Result{}, fmt.Errorf("paired t-test: %d treated, %d control", len(treated), len(control))
	}
	n := len(treated)
	if n < 2 {
		return Result{}, fmt.Errorf("paired t-test: %w", ErrTooFew)
	}

	diff := make([]float64, n)
	for i := range diff {
		diff[i] = treated[i] - control[i]
	}
	d := mean(diff)
	sd, err := stats.StandardDeviationSample(diff)
	if err != nil {
		return Result{}, err
	}

	var t float64
	switch {
	case sd == 0 && d == 0:
		return Result{Statistic: math.NaN(), PValue: math.NaN()}, nil
	case sd == 0:
		t = math.Copysign(math.Inf(1), d)
	default:
		t = d / (sd / math.Sqrt(float64(n)))
	}

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	return Result{Statistic: t, PValue: tailP(t, alt, dist.CDF, dist.Survival)}, nil
}

// tailP converts a statistic into a p-value given the null CDF and survival function
func tailP(stat float64, alt Alternative, cdf, sf func(float64) float64) float64 {
	switch {
	case math.IsInf(stat, 1):
		return map[Alternative]float64{Greater: 0, Less: 1, TwoSided: 0}[alt]
	case math.IsInf(stat, -1):
		return map[Alternative]float64{Greater: 1, Less: 0, TwoSided: 0}[alt]
	}
	switch alt {
	case Less:
		return cdf(stat)
	case Greater:
		return sf(stat)
	}
	return clip01(2 * math.Min(cdf(stat), sf(stat)))
}
