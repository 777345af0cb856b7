package testkit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"goodsam/ports"
)

// Surface computes the stub prediction for one row of covariates under treatment z
type Surface func(x []float64, z float64) float64

// StubModel is a CausalModel whose predictions come from a fixed surface
type StubModel struct {
	Surface    Surface
	FitErr     error
	PredictErr map[ports.PredictMode]error
	// Importance is returned as-is by FeatureImportance when set
	Importance []float64

	fits    atomic.Int64
	mu      sync.Mutex
	configs []ports.FitConfig
}

// NewStubModel returns a stub predicting base + effect*z for every row
func NewStubModel(base, effect float64) *StubModel {
	return &StubModel{Surface: func(x []float64, z float64) float64 { return base + effect*z }}
}

// Factory returns a ModelFactory handing out the same stub
func (s *StubModel) Factory() ports.ModelFactory {
	return func() ports.CausalModel { return s }
}

// Fits returns how many times Fit was called
func (s *StubModel) Fits() int { return int(s.fits.Load()) }

// Configs returns the fit configs seen so far
func (s *StubModel) Configs() []ports.FitConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.FitConfig(nil), s.configs...)
}

func (s *StubModel) Fit(ctx context.Context, X *mat.Dense, y, z []float64, features []string, cfg ports.FitConfig) (ports.TrainedModel, error) {
	s.fits.Add(1)
	s.mu.Lock()
	s.configs = append(s.configs, cfg)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.FitErr != nil {
		return nil, s.FitErr
	}
	rows, _ := X.Dims()
	if rows != len(y) || rows != len(z) {
		return nil, fmt.Errorf("stub fit: %d rows, %d outcomes, %d treatments", rows, len(y), len(z))
	}
	return &stubTrained{model: s, features: append([]string(nil), features...)}, nil
}

type stubTrained struct {
	model    *StubModel
	features []string
}

func (t *stubTrained) Predict(ctx context.Context, XZ *mat.Dense, mode ports.PredictMode) (ports.Prediction, error) {
	if err := t.model.PredictErr[mode]; err != nil {
		return ports.Prediction{}, err
	}
	rows, cols := XZ.Dims()
	if cols != len(t.features)+1 {
		return ports.Prediction{}, fmt.Errorf("stub predict: %d columns, want %d", cols, len(t.features)+1)
	}
	p := ports.Prediction{
		Point: make([]float64, rows),
		Lower: make([]float64, rows),
		Upper: make([]float64, rows),
	}
	for r := 0; r < rows; r++ {
		row := mat.Row(nil, r, XZ)
		z := row[cols-1]
		switch mode {
		case ports.ModeTreated:
			z = 1
		case ports.ModeControl:
			z = 0
		}
		v := t.model.Surface(row[:cols-1], z)
		p.Point[r], p.Lower[r], p.Upper[r] = v, v-1, v+1
	}
	return p, nil
}

func (t *stubTrained) FeatureImportance() ([]ports.FeatureScore, error) {
	out := make([]ports.FeatureScore, len(t.features))
	for i, f := range t.features {
		score := float64(i + 1)
		if i < len(t.model.Importance) {
			score = t.model.Importance[i]
		}
		out[i] = ports.FeatureScore{Feature: f, Score: score}
	}
	return out, nil
}
