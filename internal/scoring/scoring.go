// Package scoring holds the error metrics used to judge a fitted response surface.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// Norm selects how NRMSE normalizes the root mean squared error
type Norm string

const (
	NormMean  Norm = "mean"
	NormRange Norm = "range"
	NormNone  Norm = "none"
)

var errEmpty = errors.New("no observations")

func check(y, pred []float64) error {
	if len(y) == 0 {
		return errEmpty
	}
	if len(y) != len(pred) {
		return fmt.Errorf("length mismatch: %d observations, %d predictions", len(y), len(pred))
	}
	return nil
}

// RMSE is sqrt(sum((y-pred)^2)/n)
func RMSE(y, pred []float64) (float64, error) {
	if err := check(y, pred); err != nil {
		return 0, err
	}
	var ss float64
	for i := range y {
		d := y[i] - pred[i]
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(y))), nil
}

// BaselineRMSE is the RMSE of always predicting the observed mean
func BaselineRMSE(y []float64) (float64, error) {
	mean, err := stats.Mean(y)
	if err != nil {
		return 0, err
	}
	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = mean
	}
	return RMSE(y, pred)
}

// NRMSE divides the RMSE by the observed mean or range. A zero denominator
// yields +Inf or NaN, as floating point division does.
func NRMSE(y, pred []float64, norm Norm) (float64, error) {
	rmse, err := RMSE(y, pred)
	if err != nil {
		return 0, err
	}
	switch norm {
	case NormMean:
		mean, err := stats.Mean(y)
		if err != nil {
			return 0, err
		}
		return rmse / mean, nil
	case NormRange:
		lo, err := stats.Min(y)
		if err != nil {
			return 0, err
		}
		hi, err := stats.Max(y)
		if err != nil {
			return 0, err
		}
		return rmse / (hi - lo), nil
	case NormNone, "":
		return rmse, nil
	}
	return 0, fmt.Errorf("unknown normalization %q", norm)
}

// RSquared is 1 - SS_res/SS_tot
func RSquared(y, pred []float64) (float64, error) {
	if err := check(y, pred); err != nil {
		return 0, err
	}
	mean, err := stats.Mean(y)
	if err != nil {
		return 0, err
	}
	var res, tot float64
	for i := range y {
		res += (y[i] - pred[i]) * (y[i] - pred[i])
		tot += (y[i] - mean) * (y[i] - mean)
	}
	return 1 - res/tot, nil
}

// Coverage is the share of observations strictly inside (lower, upper)
func Coverage(y, lower, upper []float64) (float64, error) {
	if err := check(y, lower); err != nil {
		return 0, err
	}
	if err := check(y, upper); err != nil {
		return 0, err
	}
	inside := 0
	for i := range y {
		if y[i] > lower[i] && upper[i] > y[i] {
			inside++
		}
	}
	return float64(inside) / float64(len(y)), nil
}

// Quantile returns the q-th quantile with linear interpolation between the
// two nearest order statistics, h = (n-1)q.
func Quantile(values []float64, q float64) (float64, error) {
	if len(values) == 0 {
		return 0, errEmpty
	}
	if q < 0 || q > 1 {
		return 0, fmt.Errorf("quantile %v out of [0,1]", q)
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	h := float64(len(sorted)-1) * q
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1], nil
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo]), nil
}
