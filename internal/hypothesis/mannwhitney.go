package hypothesis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// exactLimit is the largest sample size for which the exact U distribution is used
const exactLimit = 8

// MannWhitneyU tests whether treated values tend to exceed control values.
// The statistic is U for the treated sample. Small tie-free samples use the
// exact null distribution; otherwise a tie-corrected normal approximation
// with continuity correction is used.
func MannWhitneyU(treated, control []float64, alt Alternative) (Result, error) {
	if err := checkAlternative(alt); err != nil {
		return Result{}, err
	}
	n1, n2 := len(treated), len(control)
	if n1 == 0 || n2 == 0 {
		return Result{}, fmt.Errorf("mann-whitney u: %w", ErrTooFew)
	}

	ranks, tieTerm := rank(append(append([]float64(nil), treated...), control...))
	var r1 float64
	for i := 0; i < n1; i++ {
		r1 += ranks[i]
	}
	u1 := r1 - float64(n1*(n1+1))/2
	u2 := float64(n1*n2) - u1

	var u float64
	factor := 1.0
	switch alt {
	case Greater:
		u = u1
	case Less:
		u = u2
	default:
		u = math.Max(u1, u2)
		factor = 2
	}

	var p float64
	if n1 <= exactLimit && n2 <= exactLimit && tieTerm == 0 {
		p = exactUSurvival(u, n1, n2)
	} else {
		n := float64(n1 + n2)
		mu := float64(n1*n2) / 2
		sigma := math.Sqrt(float64(n1*n2) / 12 * ((n + 1) - tieTerm/(n*(n-1))))
		if sigma == 0 {
			return Result{Statistic: u1, PValue: math.NaN()}, nil
		}
		z := (u - mu - 0.5) / sigma
		p = distuv.UnitNormal.Survival(z)
	}
	return Result{Statistic: u1, PValue: clip01(p * factor)}, nil
}

// rank assigns 1-based average ranks and returns sum(t^3 - t) over tie groups
func rank(values []float64) ([]float64, float64) {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	ranks := make([]float64, len(values))
	var tieTerm float64
	for i := 0; i < len(order); {
		j := i + 1
		for j < len(order) && values[order[j]] == values[order[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		if t := float64(j - i); t > 1 {
			tieTerm += t*t*t - t
		}
		i = j
	}
	return ranks, tieTerm
}

// exactUSurvival returns P(U >= u) under the null for sample sizes n1, n2
func exactUSurvival(u float64, n1, n2 int) float64 {
	maxU := n1 * n2
	// counts[a][b][s]: arrangements of a first-sample and b second-sample
	// items whose statistic is s
	counts := make([][][]float64, n1+1)
	for a := range counts {
		counts[a] = make([][]float64, n2+1)
		for b := range counts[a] {
			counts[a][b] = make([]float64, maxU+1)
		}
	}
	for a := 0; a <= n1; a++ {
		for b := 0; b <= n2; b++ {
			if a == 0 || b == 0 {
				counts[a][b][0] = 1
				continue
			}
			for s := 0; s <= a*b; s++ {
				var c float64
				// largest item from the first sample beats all b second-sample items
				if s >= b {
					c += counts[a-1][b][s-b]
				}
				c += counts[a][b-1][s]
				counts[a][b][s] = c
			}
		}
	}

	var total, tail float64
	for s, c := range counts[n1][n2] {
		total += c
		if float64(s) >= u {
			tail += c
		}
	}
	return tail / total
}
