package ports

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// PredictMode selects which response surface a trained model predicts
type PredictMode string

const (
	// ModeObserved predicts under the observed treatment assignment (last column of the input)
	ModeObserved PredictMode = "mu"
	// ModeTreated predicts every row as if treated
	ModeTreated PredictMode = "mu.1"
	// ModeControl predicts every row as if untreated
	ModeControl PredictMode = "mu.0"
)

// Valid reports whether the mode is one of the three supported surfaces
func (m PredictMode) Valid() bool {
	switch m {
	case ModeObserved, ModeTreated, ModeControl:
		return true
	}
	return false
}

// FitConfig carries the sampler settings passed to every fit
type FitConfig struct {
	SampleCount int `json:"sample_count" validate:"gt=0"`
	BurnInCount int `json:"burn_in_count" validate:"gte=0"`
	ChainCount  int `json:"chain_count" validate:"gt=0"`
}

// DefaultFitConfig matches the settings the analysis service has always used
func DefaultFitConfig() FitConfig {
	return FitConfig{SampleCount: 1000, BurnInCount: 200, ChainCount: 5}
}

// Prediction holds one point estimate and credible interval per input row
type Prediction struct {
	Point []float64
	Lower []float64
	Upper []float64
}

// FeatureScore is one covariate's importance in a trained model
type FeatureScore struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}

// CausalModel fits a treatment response surface. Implementations are treated
// as a black box; a fit may be slow and is never retried by callers.
type CausalModel interface {
	// Fit trains on standardized covariates X (rows x features), outcome y and
	// treatment z. features names the columns of X in order.
	Fit(ctx context.Context, X *mat.Dense, y, z []float64, features []string, cfg FitConfig) (TrainedModel, error)
}

// TrainedModel is the opaque state produced by a fit
type TrainedModel interface {
	// Predict takes covariates with the treatment appended as the last column
	Predict(ctx context.Context, XZ *mat.Dense, mode PredictMode) (Prediction, error)
	// FeatureImportance returns one score per feature, in feature order
	FeatureImportance() ([]FeatureScore, error)
}

// ModelFactory hands out a fresh, independent model per fit
type ModelFactory func() CausalModel
