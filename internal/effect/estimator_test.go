package effect

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"goodsam/domain/core"
	"goodsam/internal"
	apperrors "goodsam/internal/errors"
	"goodsam/internal/histogram"
	"goodsam/internal/hypothesis"
	"goodsam/internal/testkit"
	"goodsam/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Permutation = hypothesis.PermutationOptions{Resamples: 999, Seed: 1, Workers: 2}
	return cfg
}

func request(kit *testkit.TestKit, rows int) Request {
	ds := kit.CountyDataset(rows, 1.5)
	return Request{
		Subset:    ds,
		Full:      ds,
		Schema:    kit.Schema(),
		Treatment: testkit.TreatmentColumn,
		Counts:    Counts{Active: rows / 2, Inactive: rows / 2},
	}
}

func TestEstimate_PositiveEffect(t *testing.T) {
	kit, err := testkit.NewTestKit()
	require.NoError(t, err)
	stub := &testkit.StubModel{Surface: func(x []float64, z float64) float64 { return 2 + x[0] + 1.5*z }}

	e := NewEstimator(stub.Factory(), kit.RNGAdapter(), testConfig(), internal.NewNopLogger())
	res, err := e.Estimate(context.Background(), request(kit, 40))
	require.NoError(t, err)

	assert.Equal(t, 2, stub.Fits(), "evaluation and effect models")
	require.Len(t, res.Treated, 40)
	require.Len(t, res.Control, 40)
	assert.InDelta(t, 1.5, res.MeanITE, 1e-9)
	assert.InDelta(t, 0, res.StdITE, 1e-9)
	assert.InDelta(t, res.TreatedMean-res.ControlMean, res.MeanITE, 1e-9)
	assert.Equal(t, hypothesis.Greater, res.Alternative)
	assert.Equal(t, 1.0, res.Imbalance)

	// a constant ITE leaves the paired differences with no spread
	assert.Greater(t, res.TTest.Statistic, 1e6)
	assert.InDelta(t, 0, res.TTest.PValue, 1e-9)
	assert.Less(t, res.Permutation.PValue, 0.05)
	assert.Less(t, res.MannWhitney.PValue, 0.05)
	assert.Greater(t, res.CohensD, 0.0)

	assert.Equal(t, 32, res.Diagnostics.TrainRows)
	assert.Equal(t, 8, res.Diagnostics.TestRows)
	assert.GreaterOrEqual(t, res.Diagnostics.Coverage, 0.0)
	assert.LessOrEqual(t, res.Diagnostics.Coverage, 1.0)
	assert.LessOrEqual(t, res.Diagnostics.Q05, res.Diagnostics.Q95)
}

func TestEstimate_NegativeEffectFlipsAlternative(t *testing.T) {
	kit, err := testkit.NewTestKit()
	require.NoError(t, err)
	stub := &testkit.StubModel{Surface: func(x []float64, z float64) float64 { return 2 + x[0] - z }}

	res, err := NewEstimator(stub.Factory(), kit.RNGAdapter(), testConfig(), internal.NewNopLogger()).
		Estimate(context.Background(), request(kit, 30))
	require.NoError(t, err)

	assert.InDelta(t, -1, res.MeanITE, 1e-9)
	assert.Equal(t, hypothesis.Less, res.Alternative)
	assert.InDelta(t, 0, res.TTest.PValue, 1e-9)
	assert.Less(t, res.Permutation.PValue, 0.05)
	assert.Less(t, res.CohensD, 0.0)
}

func TestEstimate_ImportanceAndHistograms(t *testing.T) {
	kit, err := testkit.NewTestKit()
	require.NoError(t, err)
	stub := testkit.NewStubModel(2, 1)

	cfg := testConfig()
	cfg.TopFeatures = 2
	res, err := NewEstimator(stub.Factory(), kit.RNGAdapter(), cfg, internal.NewNopLogger()).
		Estimate(context.Background(), request(kit, 20))
	require.NoError(t, err)

	// the stub scores feature i as i+1
	require.Len(t, res.Importance, 2)
	assert.Equal(t, "col2", res.Importance[0].Feature)
	assert.Equal(t, "col1", res.Importance[1].Feature)
	assert.Len(t, res.Histograms, 2)
	assert.Contains(t, res.Histograms, "col2")
	assert.Contains(t, res.Histograms, "col1")
}

func TestEstimate_HistogramEdgesFollowFullDataset(t *testing.T) {
	kit, err := testkit.NewTestKit()
	require.NoError(t, err)
	full := kit.CountyDataset(40, 1)

	rows := func(from, to int) []int {
		var out []int
		for i := from; i < to; i++ {
			out = append(out, i)
		}
		return out
	}
	cfg := testConfig()
	cfg.TopFeatures = 3
	e := NewEstimator(testkit.NewStubModel(2, 1).Factory(), kit.RNGAdapter(), cfg, internal.NewNopLogger())

	var edges [][]float64
	for _, sel := range [][]int{rows(0, 20), rows(20, 40)} {
		sub, err := full.Select(sel)
		require.NoError(t, err)
		res, err := e.Estimate(context.Background(), Request{
			Subset:    sub,
			Full:      full,
			Schema:    kit.Schema(),
			Treatment: testkit.TreatmentColumn,
			Counts:    Counts{Active: 10, Inactive: 10},
		})
		require.NoError(t, err)
		require.Contains(t, res.Histograms, "col0")
		edges = append(edges, res.Histograms["col0"].BinEdges)
	}
	assert.Equal(t, edges[0], edges[1])
	assert.Equal(t, histogram.Edges([]float64{0, 39}), edges[0])
}

func TestEstimate_StageErrors(t *testing.T) {
	kit, err := testkit.NewTestKit()
	require.NoError(t, err)

	tests := []struct {
		name  string
		stub  func() *testkit.StubModel
		stage string
		kind  error
	}{
		{
			name: "fit",
			stub: func() *testkit.StubModel {
				s := testkit.NewStubModel(1, 1)
				s.FitErr = errors.New("chain diverged")
				return s
			},
			stage: StageInitialFit,
			kind:  core.ErrModelFit,
		},
		{
			name: "evaluation predict",
			stub: func() *testkit.StubModel {
				s := testkit.NewStubModel(1, 1)
				s.PredictErr = map[ports.PredictMode]error{ports.ModeObserved: errors.New("boom")}
				return s
			},
			stage: StageInitialPredict,
			kind:  core.ErrModelPredict,
		},
		{
			name: "counterfactual predict",
			stub: func() *testkit.StubModel {
				s := testkit.NewStubModel(1, 1)
				s.PredictErr = map[ports.PredictMode]error{ports.ModeControl: errors.New("boom")}
				return s
			},
			stage: StageCounterfactual,
			kind:  core.ErrModelPredict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEstimator(tt.stub().Factory(), kit.RNGAdapter(), testConfig(), internal.NewNopLogger())
			_, err := e.Estimate(context.Background(), request(kit, 20))
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrEffectEstimation)
			assert.ErrorIs(t, err, tt.kind)

			var stageErr *core.StageError
			require.True(t, errors.As(err, &stageErr))
			assert.Equal(t, tt.stage, stageErr.Stage)
		})
	}
}

func TestEstimate_DeadlineClassifiesAsTimeout(t *testing.T) {
	kit, err := testkit.NewTestKit()
	require.NoError(t, err)
	stub := &testkit.StubModel{Surface: func(x []float64, z float64) float64 {
		time.Sleep(3 * time.Millisecond)
		return x[0] + z
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = NewEstimator(stub.Factory(), kit.RNGAdapter(), testConfig(), internal.NewNopLogger()).
		Estimate(ctx, request(kit, 40))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, apperrors.CodeTimeout, apperrors.Classify(err).Code)
}

func TestEstimate_DataErrorsAreNotStageErrors(t *testing.T) {
	kit, err := testkit.NewTestKit()
	require.NoError(t, err)
	e := NewEstimator(testkit.NewStubModel(1, 1).Factory(), kit.RNGAdapter(), testConfig(), internal.NewNopLogger())

	req := request(kit, 1)
	_, err = e.Estimate(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrEmptySplit)
	assert.NotErrorIs(t, err, core.ErrEffectEstimation)

	req = request(kit, 20)
	req.Treatment = "absent"
	_, err = e.Estimate(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrUnknownColumn)
}

func TestCompare_SingleRowLeavesStatisticsUndefined(t *testing.T) {
	r := &EffectResult{Treated: []float64{3}, Control: []float64{1}}
	require.NoError(t, r.compare())

	assert.InDelta(t, 2, r.MeanITE, 1e-12)
	assert.True(t, math.IsNaN(r.TTest.Statistic))
	assert.True(t, math.IsNaN(r.TTest.PValue))
	assert.True(t, math.IsNaN(r.CohensD))
}

func TestCompare_MismatchedPredictions(t *testing.T) {
	r := &EffectResult{Treated: []float64{3, 4}, Control: []float64{1}}
	assert.Error(t, r.compare())
}

func TestTop(t *testing.T) {
	fs := func(f string, s float64) ports.FeatureScore { return ports.FeatureScore{Feature: f, Score: s} }
	scores := []ports.FeatureScore{fs("a", 0.1), fs("b", 0.5), fs("c", 0.1), fs("d", 0.3)}
	assert.Equal(t, []ports.FeatureScore{fs("b", 0.5), fs("d", 0.3), fs("a", 0.1)}, Top(scores, 3))
	assert.Len(t, Top(scores, 10), 4)
}
