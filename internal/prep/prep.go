// Package prep turns a filtered dataset into the standardized tensors the
// causal model is fitted on.
package prep

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"goodsam/domain/core"
	"goodsam/domain/frame"
	"goodsam/ports"
)

// Options controls the train/test split
type Options struct {
	TestRatio float64 `validate:"gt=0,lt=1"`
	Seed      int64
}

// DefaultOptions is an 80/20 split with seed 1
func DefaultOptions() Options {
	return Options{TestRatio: 0.2, Seed: 1}
}

// Tensors are the model inputs for one set of rows
type Tensors struct {
	X *mat.Dense
	Y []float64
	Z []float64
}

// Rows returns the number of rows
func (t Tensors) Rows() int { return len(t.Y) }

// XZ returns X with the treatment appended as its last column
func (t Tensors) XZ() *mat.Dense {
	return WithTreatment(t.X, t.Z)
}

// Source holds the unscaled covariate matrix, outcome and treatment of a
// dataset, plus which covariates are scaled.
type Source struct {
	X        *mat.Dense
	Y        []float64
	Z        []float64
	Features []string
	// Numeric lists the covariate positions with more than two distinct
	// values; only these are standardized.
	Numeric []int
}

// Split is a standardized train/test partition
type Split struct {
	Train     Tensors
	Test      Tensors
	TrainRows []int
	TestRows  []int
	Features  []string
	Scaler    *Scaler
}

// Full is the whole dataset standardized on itself
type Full struct {
	Tensors
	Features []string
	Scaler   *Scaler
}

// Extract pulls covariates, outcome and treatment out of ds. The covariates
// are the first schema.CovariateCount columns.
func Extract(ds *frame.Dataset, schema frame.Schema, treatment string) (*Source, error) {
	if ds.Rows() == 0 {
		return nil, fmt.Errorf("%w: dataset has no rows", core.ErrEmptySplit)
	}
	features, err := schema.Covariates(ds)
	if err != nil {
		return nil, err
	}
	for _, name := range features {
		if !ds.IsNumeric(name) {
			return nil, fmt.Errorf("%w: covariate %q", core.ErrNonNumericColumn, name)
		}
	}
	y, err := numeric(ds, schema.Outcome, "outcome")
	if err != nil {
		return nil, err
	}
	z, err := numeric(ds, treatment, "treatment")
	if err != nil {
		return nil, err
	}
	X, err := ds.Matrix(features)
	if err != nil {
		return nil, err
	}
	return &Source{
		X:        X,
		Y:        y,
		Z:        z,
		Features: append([]string(nil), features...),
		Numeric:  NumericColumns(X),
	}, nil
}

func numeric(ds *frame.Dataset, name, role string) ([]float64, error) {
	if !ds.HasColumn(name) {
		return nil, fmt.Errorf("%s column %q: %w", role, name, core.ErrUnknownColumn)
	}
	values, ok := ds.Numbers(name)
	if !ok {
		return nil, fmt.Errorf("%s column %q: %w", role, name, core.ErrNonNumericColumn)
	}
	return values, nil
}

// NumericColumns returns the columns of X with more than two distinct values.
// All NaN cells count as one value.
func NumericColumns(X *mat.Dense) []int {
	rows, cols := X.Dims()
	var out []int
	for c := 0; c < cols; c++ {
		seen := make(map[float64]struct{}, 3)
		sawNaN := false
		for r := 0; r < rows; r++ {
			v := X.At(r, c)
			if math.IsNaN(v) {
				sawNaN = true
			} else {
				seen[v] = struct{}{}
			}
			distinct := len(seen)
			if sawNaN {
				distinct++
			}
			if distinct > 2 {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Prepare splits ds into a seeded train/test partition and standardizes both
// halves with a scaler fitted on the training rows only.
func Prepare(ctx context.Context, ds *frame.Dataset, schema frame.Schema, treatment string, opts Options, rng ports.RNGPort) (*Split, error) {
	src, err := Extract(ds, schema, treatment)
	if err != nil {
		return nil, err
	}
	train, test, err := SplitRows(ctx, src.Rows(), opts, rng)
	if err != nil {
		return nil, err
	}
	return src.Split(train, test)
}

// PrepareFull standardizes ds on all of its rows, without a split
func PrepareFull(ds *frame.Dataset, schema frame.Schema, treatment string) (*Full, error) {
	src, err := Extract(ds, schema, treatment)
	if err != nil {
		return nil, err
	}
	return src.Full()
}

// Rows returns the number of rows in the source
func (s *Source) Rows() int { return len(s.Y) }

// Split standardizes the given partition. The scaler sees only train rows.
func (s *Source) Split(train, test []int) (*Split, error) {
	if len(train) == 0 || len(test) == 0 {
		return nil, fmt.Errorf("%w: %d train rows, %d test rows", core.ErrEmptySplit, len(train), len(test))
	}
	rawTrain := Rows(s.X, train)
	rawTest := Rows(s.X, test)

	scaler, err := FitScaler(rawTrain, s.Numeric)
	if err != nil {
		return nil, err
	}
	return &Split{
		Train: Tensors{
			X: scaler.Transform(rawTrain),
			Y: pick(s.Y, train),
			Z: pick(s.Z, train),
		},
		Test: Tensors{
			X: scaler.Transform(rawTest),
			Y: pick(s.Y, test),
			Z: pick(s.Z, test),
		},
		TrainRows: append([]int(nil), train...),
		TestRows:  append([]int(nil), test...),
		Features:  s.Features,
		Scaler:    scaler,
	}, nil
}

// Full standardizes every row of the source
func (s *Source) Full() (*Full, error) {
	scaler, err := FitScaler(s.X, s.Numeric)
	if err != nil {
		return nil, err
	}
	return &Full{
		Tensors: Tensors{
			X: scaler.Transform(s.X),
			Y: append([]float64(nil), s.Y...),
			Z: append([]float64(nil), s.Z...),
		},
		Features: s.Features,
		Scaler:   scaler,
	}, nil
}

// SplitRows draws a seeded permutation of [0, n) and takes the first
// ceil(ratio*n) indices as the test partition.
func SplitRows(ctx context.Context, n int, opts Options, rng ports.RNGPort) (train, test []int, err error) {
	if opts.TestRatio <= 0 || opts.TestRatio >= 1 {
		return nil, nil, fmt.Errorf("test ratio %v must be in (0,1)", opts.TestRatio)
	}
	nTest := int(math.Ceil(opts.TestRatio * float64(n)))
	nTrain := n - nTest
	if nTest == 0 || nTrain <= 0 {
		return nil, nil, fmt.Errorf("%w: %d rows cannot be split %v/%v", core.ErrEmptySplit, n, 1-opts.TestRatio, opts.TestRatio)
	}

	r, err := rng.SeededStream(ctx, "train-test-split", opts.Seed)
	if err != nil {
		return nil, nil, fmt.Errorf("split rng: %w", err)
	}
	perm := r.Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// Rows copies the given rows of X into a new matrix
func Rows(X *mat.Dense, rows []int) *mat.Dense {
	_, cols := X.Dims()
	out := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		out.SetRow(i, X.RawRowView(r))
	}
	return out
}

// WithTreatment returns X with z appended as the last column
func WithTreatment(X *mat.Dense, z []float64) *mat.Dense {
	rows, cols := X.Dims()
	out := mat.NewDense(rows, cols+1, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.Set(r, c, X.At(r, c))
		}
		out.Set(r, cols, z[r])
	}
	return out
}

func pick(values []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = values[r]
	}
	return out
}
