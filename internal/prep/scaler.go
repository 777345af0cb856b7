package prep

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// Scaler z-scores a fixed set of matrix columns. It is fitted once and then
// applied unchanged to any matrix with the same column layout.
type Scaler struct {
	Cols  []int     `json:"cols"`
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler records mean and population standard deviation of cols over all
// rows of X. Missing cells are ignored; a zero deviation scales by 1.
func FitScaler(X *mat.Dense, cols []int) (*Scaler, error) {
	rows, width := X.Dims()
	s := &Scaler{
		Cols:  append([]int(nil), cols...),
		Mean:  make([]float64, len(cols)),
		Scale: make([]float64, len(cols)),
	}
	for i, c := range cols {
		if c < 0 || c >= width {
			return nil, fmt.Errorf("scaler column %d out of range [0,%d)", c, width)
		}
		values := make(stats.Float64Data, 0, rows)
		for r := 0; r < rows; r++ {
			if v := X.At(r, c); !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			s.Mean[i], s.Scale[i] = 0, 1
			continue
		}
		mean, err := stats.Mean(values)
		if err != nil {
			return nil, err
		}
		sd, err := stats.StandardDeviationPopulation(values)
		if err != nil {
			return nil, err
		}
		if sd == 0 {
			sd = 1
		}
		s.Mean[i], s.Scale[i] = mean, sd
	}
	return s, nil
}

// Transform returns a scaled copy of X. X itself is not modified.
func (s *Scaler) Transform(X *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(X)
	rows, _ := out.Dims()
	for i, c := range s.Cols {
		for r := 0; r < rows; r++ {
			out.Set(r, c, (out.At(r, c)-s.Mean[i])/s.Scale[i])
		}
	}
	return out
}
