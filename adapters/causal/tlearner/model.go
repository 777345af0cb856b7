// Package tlearner is a ridge-regularized linear T-learner: one linear
// response surface per treatment arm, with normal prediction intervals from
// each arm's residual spread. An arm with fewer rows than surface parameters
// cannot carry its own surface, so both arms then share a pooled one.
package tlearner

import (
	"context"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"goodsam/domain/core"
	"goodsam/ports"
)

// Config tunes the learner
type Config struct {
	// Ridge is the L2 penalty added to every non-intercept coefficient
	Ridge float64 `validate:"gte=0"`
	// Level is the coverage of the prediction interval
	Level float64 `validate:"gt=0,lt=1"`
}

// DefaultConfig is a light ridge penalty with 95% intervals
func DefaultConfig() Config {
	return Config{Ridge: 1e-3, Level: 0.95}
}

// Model implements ports.CausalModel
type Model struct {
	cfg      Config
	validate *validator.Validate
}

// New creates a learner
func New(cfg Config) *Model {
	return &Model{cfg: cfg, validate: validator.New()}
}

// Factory returns a ports.ModelFactory producing independent learners
func Factory(cfg Config) ports.ModelFactory {
	return func() ports.CausalModel { return New(cfg) }
}

// surface is one fitted linear model
type surface struct {
	beta  []float64 // intercept first
	sigma float64
}

func (s surface) at(x []float64) float64 {
	v := s.beta[0]
	for j, xj := range x {
		v += s.beta[j+1] * xj
	}
	return v
}

// trained is the fit result. When either arm has fewer rows than the
// intercept plus one coefficient per feature, a single pooled surface over
// [X, z] is used for both arms.
type trained struct {
	features []string
	treated  surface
	control  surface
	pooled   *surface
	// q is the normal quantile giving the configured interval coverage
	q float64
}

func (m *Model) Fit(ctx context.Context, X *mat.Dense, y, z []float64, features []string, cfg ports.FitConfig) (ports.TrainedModel, error) {
	if err := m.validate.Struct(m.cfg); err != nil {
		return nil, core.NewModelFitError(err)
	}
	if err := m.validate.Struct(cfg); err != nil {
		return nil, core.NewModelFitError(err)
	}
	rows, cols := X.Dims()
	if rows != len(y) || rows != len(z) {
		return nil, core.NewModelFitError(fmt.Errorf("%d rows, %d outcomes, %d treatments", rows, len(y), len(z)))
	}
	if len(features) != cols {
		return nil, core.NewModelFitError(fmt.Errorf("%d feature names for %d columns", len(features), cols))
	}

	var treatedRows, controlRows []int
	for i, v := range z {
		if v >= 0.5 {
			treatedRows = append(treatedRows, i)
		} else {
			controlRows = append(controlRows, i)
		}
	}

	t := &trained{
		features: append([]string(nil), features...),
		q:        distuv.UnitNormal.Quantile(0.5 + m.cfg.Level/2),
	}
	if params := cols + 1; len(treatedRows) < params || len(controlRows) < params {
		all := make([]int, rows)
		for i := range all {
			all[i] = i
		}
		p, err := m.fitSurface(withColumn(X, z), y, all)
		if err != nil {
			return nil, core.NewModelFitError(err)
		}
		t.pooled = &p
		return t, nil
	}

	var err error
	if t.treated, err = m.fitSurface(X, y, treatedRows); err != nil {
		return nil, core.NewModelFitError(fmt.Errorf("treated arm: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return nil, core.NewModelFitError(err)
	}
	if t.control, err = m.fitSurface(X, y, controlRows); err != nil {
		return nil, core.NewModelFitError(fmt.Errorf("control arm: %w", err))
	}
	return t, nil
}

// fitSurface solves (A'A + ridge*I) beta = A'y over the given rows, where A
// is X with a leading intercept column.
func (m *Model) fitSurface(X *mat.Dense, y []float64, rows []int) (surface, error) {
	_, cols := X.Dims()
	p := cols + 1

	A := mat.NewDense(len(rows), p, nil)
	b := mat.NewVecDense(len(rows), nil)
	for i, r := range rows {
		A.Set(i, 0, 1)
		for j := 0; j < cols; j++ {
			v := X.At(r, j)
			if math.IsNaN(v) {
				return surface{}, fmt.Errorf("missing covariate at row %d, column %d", r, j)
			}
			A.Set(i, j+1, v)
		}
		b.SetVec(i, y[r])
	}

	var gram mat.SymDense
	gram.SymOuterK(1, A.T())
	for j := 1; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+m.cfg.Ridge)
	}
	var rhs mat.VecDense
	rhs.MulVec(A.T(), b)

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return surface{}, fmt.Errorf("normal equations are singular; increase the ridge penalty")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &rhs); err != nil {
		return surface{}, err
	}

	s := surface{beta: make([]float64, p)}
	for j := range s.beta {
		s.beta[j] = beta.AtVec(j)
	}

	var ss float64
	for i := range rows {
		d := b.AtVec(i) - s.at(A.RawRowView(i)[1:])
		ss += d * d
	}
	dof := len(rows) - p
	if dof < 1 {
		dof = len(rows)
	}
	s.sigma = math.Sqrt(ss / float64(dof))
	return s, nil
}

func (t *trained) Predict(ctx context.Context, XZ *mat.Dense, mode ports.PredictMode) (ports.Prediction, error) {
	if !mode.Valid() {
		return ports.Prediction{}, core.NewModelPredictError(string(mode), fmt.Errorf("unknown mode"))
	}
	rows, cols := XZ.Dims()
	if cols != len(t.features)+1 {
		return ports.Prediction{}, core.NewModelPredictError(string(mode),
			fmt.Errorf("got %d columns, want %d features plus treatment", cols, len(t.features)))
	}
	if err := ctx.Err(); err != nil {
		return ports.Prediction{}, core.NewModelPredictError(string(mode), err)
	}

	out := ports.Prediction{
		Point: make([]float64, rows),
		Lower: make([]float64, rows),
		Upper: make([]float64, rows),
	}
	for r := 0; r < rows; r++ {
		row := XZ.RawRowView(r)
		z := row[cols-1]
		switch mode {
		case ports.ModeTreated:
			z = 1
		case ports.ModeControl:
			z = 0
		}

		var v, sigma float64
		switch {
		case t.pooled != nil:
			x := append(append([]float64(nil), row[:cols-1]...), z)
			v, sigma = t.pooled.at(x), t.pooled.sigma
		case z >= 0.5:
			v, sigma = t.treated.at(row[:cols-1]), t.treated.sigma
		default:
			v, sigma = t.control.at(row[:cols-1]), t.control.sigma
		}
		out.Point[r] = v
		out.Lower[r] = v - t.q*sigma
		out.Upper[r] = v + t.q*sigma
	}
	return out, nil
}

// FeatureImportance scores each feature by its absolute coefficient summed
// over both arms, normalized to sum to one. Features are standardized, so
// coefficients are comparable.
func (t *trained) FeatureImportance() ([]ports.FeatureScore, error) {
	scores := make([]float64, len(t.features))
	var total float64
	for j := range t.features {
		if t.pooled != nil {
			scores[j] = math.Abs(t.pooled.beta[j+1])
		} else {
			scores[j] = math.Abs(t.treated.beta[j+1]) + math.Abs(t.control.beta[j+1])
		}
		total += scores[j]
	}
	out := make([]ports.FeatureScore, len(t.features))
	for j, f := range t.features {
		s := 0.0
		if total > 0 {
			s = scores[j] / total
		}
		out[j] = ports.FeatureScore{Feature: f, Score: s}
	}
	return out, nil
}

func withColumn(X *mat.Dense, v []float64) *mat.Dense {
	rows, cols := X.Dims()
	out := mat.NewDense(rows, cols+1, nil)
	for r := 0; r < rows; r++ {
		copy(out.RawRowView(r), X.RawRowView(r))
		out.Set(r, cols, v[r])
	}
	return out
}
