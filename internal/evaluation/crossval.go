// Package evaluation runs k-fold cross-validation of a causal model over a
// filtered dataset.
package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"goodsam/domain/core"
	"goodsam/domain/frame"
	"goodsam/internal"
	"goodsam/internal/folds"
	"goodsam/internal/prep"
	"goodsam/internal/scoring"
	"goodsam/internal/telemetry"
	"goodsam/ports"
)

// Options controls the fold worker pool. Workers <= 0 runs one worker per fold.
type Options struct {
	Workers   int
	FitConfig ports.FitConfig
	Logger    *internal.Logger
}

// DefaultOptions runs every fold concurrently with the default model config
func DefaultOptions() Options {
	return Options{FitConfig: ports.DefaultFitConfig()}
}

// Result holds per-fold NRMSE in fold order and their mean
type Result struct {
	Scores []float64 `json:"scores"`
	Mean   float64   `json:"mean"`
}

// CrossValidate fits a fresh model on each fold's training rows and scores
// its observed-treatment predictions on the fold's test rows with
// range-normalized RMSE. The first failing fold cancels the rest.
func CrossValidate(ctx context.Context, ds *frame.Dataset, schema frame.Schema, treatment string, fs []folds.Fold, factory ports.ModelFactory, opts Options) (*Result, error) {
	if len(fs) == 0 {
		return nil, fmt.Errorf("%w: no folds", core.ErrInvalidFoldCount)
	}
	logger := opts.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}
	src, err := prep.Extract(ds, schema, treatment)
	if err != nil {
		return nil, err
	}
	for _, f := range fs {
		for _, r := range append(append([]int(nil), f.Train...), f.Test...) {
			if r < 0 || r >= src.Rows() {
				return nil, &core.FoldError{Fold: f.Index, Err: fmt.Errorf("row %d out of range [0,%d)", r, src.Rows())}
			}
		}
	}

	workers := opts.Workers
	if workers <= 0 || workers > len(fs) {
		workers = len(fs)
	}
	logger.Debug("[CrossValidate] %d folds over %d rows, %d workers", len(fs), src.Rows(), workers)

	scores := make([]float64, len(fs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range fs {
		if gctx.Err() != nil {
			break
		}
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			score, err := runFold(gctx, src, f, factory, opts.FitConfig)
			telemetry.ObserveSince(telemetry.FoldDuration, start)
			if err != nil {
				telemetry.FoldFailures.Inc()
				logger.Warn("[CrossValidate] fold %d failed: %v", f.Index, err)
				return &core.FoldError{Fold: f.Index, Err: err}
			}
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mean, err := stats.Mean(scores)
	if err != nil {
		return nil, err
	}
	return &Result{Scores: scores, Mean: mean}, nil
}

func runFold(ctx context.Context, src *prep.Source, f folds.Fold, factory ports.ModelFactory, cfg ports.FitConfig) (float64, error) {
	split, err := src.Split(f.Train, f.Test)
	if err != nil {
		return 0, err
	}
	model, err := factory().Fit(ctx, split.Train.X, split.Train.Y, split.Train.Z, split.Features, cfg)
	if err != nil {
		return 0, core.NewModelFitError(err)
	}
	pred, err := model.Predict(ctx, split.Test.XZ(), ports.ModeObserved)
	if err != nil {
		return 0, core.NewModelPredictError(string(ports.ModeObserved), err)
	}
	return scoring.NRMSE(split.Test.Y, pred.Point, scoring.NormRange)
}
