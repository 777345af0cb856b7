// Package hypothesis implements the significance tests run over paired
// counterfactual predictions.
//
// Every test takes the treated sample first and the control sample second;
// Greater means the treated outcome is expected to exceed the control one.
package hypothesis

import (
	"errors"
	"fmt"
	"math"
)

// Alternative is the alternative hypothesis of a test
type Alternative string

const (
	TwoSided Alternative = "two-sided"
	Less     Alternative = "less"
	Greater  Alternative = "greater"
)

// Valid reports whether a is a known alternative
func (a Alternative) Valid() bool {
	switch a {
	case TwoSided, Less, Greater:
		return true
	}
	return false
}

// DirectionFor picks the one-sided alternative matching the sign of the mean
// individual treatment effect: a positive mean tests treated > control, any
// other mean tests treated < control.
func DirectionFor(meanITE float64) Alternative {
	if meanITE > 0 {
		return Greater
	}
	return Less
}

// Result is the outcome of one test
type Result struct {
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
}

// ErrTooFew reports a sample too small for the statistic to be defined
var ErrTooFew = errors.New("not enough observations")

func checkAlternative(a Alternative) error {
	if !a.Valid() {
		return fmt.Errorf("unknown alternative %q", a)
	}
	return nil
}

func mean(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v
	}
	return s / float64(len(x))
}

func clip01(p float64) float64 {
	return math.Min(1, math.Max(0, p))
}
