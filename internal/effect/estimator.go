// Package effect estimates the effect of a treatment column on the outcome of
// a filtered dataset from counterfactual predictions of a causal model.
package effect

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"goodsam/domain/core"
	"goodsam/domain/frame"
	"goodsam/internal"
	"goodsam/internal/histogram"
	"goodsam/internal/hypothesis"
	"goodsam/internal/prep"
	"goodsam/internal/scoring"
	"goodsam/internal/telemetry"
	"goodsam/ports"
)

// Stage names reported by StageError
const (
	StageInitialFit     = "initial fit"
	StageInitialPredict = "initial predict"
	StageFullFit        = "full fit"
	StageCounterfactual = "counterfactual predict"
	StagePermutation    = "permutation test"
)

// Counts are the numbers of treated (active) and untreated (inactive) rows
// the caller selected
type Counts struct {
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

// Request is one estimation. Full is the unfiltered reference dataset used
// for histogram edges; Subset is what the model is trained on.
type Request struct {
	Subset    *frame.Dataset
	Full      *frame.Dataset
	Schema    frame.Schema
	Treatment string
	Counts    Counts
}

// Diagnostics describe how well the evaluation model fits held-out rows
type Diagnostics struct {
	RMSE         float64 `json:"rmse"`
	BaselineRMSE float64 `json:"baseline_rmse"`
	RSquared     float64 `json:"r_squared"`
	NRMSE        float64 `json:"nrmse"`
	Coverage     float64 `json:"coverage"`
	Q05          float64 `json:"q05"`
	Q95          float64 `json:"q95"`
	TrainRows    int     `json:"train_rows"`
	TestRows     int     `json:"test_rows"`
}

// EffectResult is everything reported for one estimation
type EffectResult struct {
	Treated     []float64 `json:"treated"`
	Control     []float64 `json:"control"`
	TreatedMean float64   `json:"treated_mean"`
	ControlMean float64   `json:"control_mean"`
	MeanITE     float64   `json:"mean_ite"`
	StdITE      float64   `json:"std_ite"`

	Alternative hypothesis.Alternative `json:"alternative"`
	MannWhitney hypothesis.Result      `json:"mann_whitney"`
	Permutation hypothesis.Result      `json:"permutation"`
	TTest       hypothesis.Result      `json:"t_test"`
	CohensD     float64                `json:"cohens_d"`
	Imbalance   float64                `json:"imbalance_ratio"`

	Diagnostics Diagnostics                     `json:"diagnostics"`
	Importance  []ports.FeatureScore            `json:"feature_importance"`
	Histograms  map[string]histogram.Comparison `json:"histograms"`
}

// Config tunes an Estimator
type Config struct {
	Split       prep.Options
	FitConfig   ports.FitConfig
	Permutation hypothesis.PermutationOptions
	TopFeatures int
}

// DefaultConfig is an 80/20 split, the default model config, 9999 resamples
// and the top ten features
func DefaultConfig() Config {
	return Config{
		Split:       prep.DefaultOptions(),
		FitConfig:   ports.DefaultFitConfig(),
		Permutation: hypothesis.DefaultPermutationOptions(),
		TopFeatures: 10,
	}
}

// Estimator runs the two-model estimation pipeline
type Estimator struct {
	factory ports.ModelFactory
	rng     ports.RNGPort
	cfg     Config
	logger  *internal.Logger
}

// NewEstimator creates an estimator. A nil logger uses the default logger.
func NewEstimator(factory ports.ModelFactory, rng ports.RNGPort, cfg Config, logger *internal.Logger) *Estimator {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if cfg.TopFeatures <= 0 {
		cfg.TopFeatures = 10
	}
	return &Estimator{factory: factory, rng: rng, cfg: cfg, logger: logger}
}

// Estimate fits an evaluation model on a train split to report fit
// diagnostics and feature importance, then fits an effect model on every row
// and compares its treated and control counterfactuals.
func (e *Estimator) Estimate(ctx context.Context, req Request) (*EffectResult, error) {
	start := time.Now()
	res, err := e.estimate(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	telemetry.ObserveSince(telemetry.EstimateDuration.WithLabelValues(outcome), start)
	return res, err
}

func (e *Estimator) estimate(ctx context.Context, req Request) (*EffectResult, error) {
	if req.Subset == nil {
		return nil, fmt.Errorf("%w: no dataset", core.ErrEmptySplit)
	}
	res := &EffectResult{
		Imbalance: hypothesis.ImbalanceRatio(req.Counts.Active, req.Counts.Inactive),
	}

	split, err := prep.Prepare(ctx, req.Subset, req.Schema, req.Treatment, e.cfg.Split, e.rng)
	if err != nil {
		return nil, err
	}
	evalModel, err := e.factory().Fit(ctx, split.Train.X, split.Train.Y, split.Train.Z, split.Features, e.cfg.FitConfig)
	if err != nil {
		return nil, e.stageError(StageInitialFit, core.NewModelFitError(err))
	}
	pred, err := evalModel.Predict(ctx, split.Test.XZ(), ports.ModeObserved)
	if err != nil {
		return nil, e.stageError(StageInitialPredict, core.NewModelPredictError(string(ports.ModeObserved), err))
	}
	if res.Diagnostics, err = diagnose(split, pred); err != nil {
		return nil, e.stageError(StageInitialPredict, err)
	}
	e.logger.Debug("[Effect] evaluation fit on %d rows: rmse=%.4f baseline=%.4f r2=%.4f nrmse=%.4f",
		split.Train.Rows(), res.Diagnostics.RMSE, res.Diagnostics.BaselineRMSE, res.Diagnostics.RSquared, res.Diagnostics.NRMSE)

	full, err := prep.PrepareFull(req.Subset, req.Schema, req.Treatment)
	if err != nil {
		return nil, err
	}
	effectModel, err := e.factory().Fit(ctx, full.X, full.Y, full.Z, full.Features, e.cfg.FitConfig)
	if err != nil {
		return nil, e.stageError(StageFullFit, core.NewModelFitError(err))
	}
	xz := full.XZ()
	treated, err := effectModel.Predict(ctx, xz, ports.ModeTreated)
	if err != nil {
		return nil, e.stageError(StageCounterfactual, core.NewModelPredictError(string(ports.ModeTreated), err))
	}
	control, err := effectModel.Predict(ctx, xz, ports.ModeControl)
	if err != nil {
		return nil, e.stageError(StageCounterfactual, core.NewModelPredictError(string(ports.ModeControl), err))
	}
	res.Treated, res.Control = treated.Point, control.Point

	if err := res.compare(); err != nil {
		return nil, e.stageError(StageCounterfactual, err)
	}
	res.Permutation, err = hypothesis.PermutationTest(ctx, res.Treated, res.Control, res.Alternative, e.cfg.Permutation, e.rng)
	if err != nil {
		return nil, e.stageError(StagePermutation, err)
	}
	e.logger.Debug("[Effect] mean ITE %.4f (std %.4f), alternative %s", res.MeanITE, res.StdITE, res.Alternative)

	scores, err := evalModel.FeatureImportance()
	if err != nil {
		return nil, e.stageError(StageInitialFit, err)
	}
	res.Importance = Top(scores, e.cfg.TopFeatures)

	names := make([]string, len(res.Importance))
	for i, s := range res.Importance {
		names[i] = s.Feature
	}
	reference := req.Full
	if reference == nil {
		reference = req.Subset
	}
	res.Histograms = histogram.Compare(reference, req.Subset, names)
	return res, nil
}

// compare fills the ITE summary and the rank, t and effect size statistics
func (r *EffectResult) compare() error {
	n := len(r.Treated)
	if n == 0 || n != len(r.Control) {
		return fmt.Errorf("%d treated and %d control predictions", len(r.Treated), len(r.Control))
	}
	ite := make([]float64, n)
	for i := range ite {
		ite[i] = r.Treated[i] - r.Control[i]
	}

	var err error
	if r.TreatedMean, err = stats.Mean(r.Treated); err != nil {
		return err
	}
	if r.ControlMean, err = stats.Mean(r.Control); err != nil {
		return err
	}
	if r.MeanITE, err = stats.Mean(ite); err != nil {
		return err
	}
	if r.StdITE, err = stats.StandardDeviationPopulation(ite); err != nil {
		return err
	}
	r.Alternative = hypothesis.DirectionFor(r.MeanITE)

	// a single row has no variance; its t and d statistics are undefined
	r.TTest, err = hypothesis.PairedTTest(r.Treated, r.Control, r.Alternative)
	if errors.Is(err, hypothesis.ErrTooFew) {
		r.TTest = hypothesis.Result{Statistic: math.NaN(), PValue: math.NaN()}
	} else if err != nil {
		return err
	}
	if r.MannWhitney, err = hypothesis.MannWhitneyU(r.Treated, r.Control, r.Alternative); err != nil {
		return err
	}
	r.CohensD, err = hypothesis.CohensD(r.Treated, r.Control)
	if errors.Is(err, hypothesis.ErrTooFew) {
		r.CohensD = math.NaN()
	} else if err != nil {
		return err
	}
	return nil
}

func diagnose(split *prep.Split, pred ports.Prediction) (Diagnostics, error) {
	y := split.Test.Y
	d := Diagnostics{TrainRows: split.Train.Rows(), TestRows: split.Test.Rows()}

	var err error
	if d.RMSE, err = scoring.RMSE(y, pred.Point); err != nil {
		return d, err
	}
	if d.BaselineRMSE, err = scoring.BaselineRMSE(y); err != nil {
		return d, err
	}
	if d.RSquared, err = scoring.RSquared(y, pred.Point); err != nil {
		return d, err
	}
	if d.NRMSE, err = scoring.NRMSE(y, pred.Point, scoring.NormRange); err != nil {
		return d, err
	}
	if d.Coverage, err = scoring.Coverage(y, pred.Lower, pred.Upper); err != nil {
		return d, err
	}
	if d.Q05, err = scoring.Quantile(y, 0.05); err != nil {
		return d, err
	}
	if d.Q95, err = scoring.Quantile(y, 0.95); err != nil {
		return d, err
	}
	return d, nil
}

func (e *Estimator) stageError(stage string, err error) error {
	telemetry.StageFailures.WithLabelValues(stage).Inc()
	e.logger.Warn("[Effect] %s failed: %v", stage, err)
	return &core.StageError{Stage: stage, Err: err}
}

// Top returns at most k scores sorted by descending score. Ties keep their
// input order.
func Top(scores []ports.FeatureScore, k int) []ports.FeatureScore {
	out := append([]ports.FeatureScore(nil), scores...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out
}
