package hypothesis

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"goodsam/internal/testkit"
)

func TestDirectionFor(t *testing.T) {
	assert.Equal(t, Greater, DirectionFor(0.3))
	assert.Equal(t, Less, DirectionFor(-0.3))
	assert.Equal(t, Less, DirectionFor(0))
}

func TestPairedTTest(t *testing.T) {
	treated := []float64{2, 4, 6, 8}
	control := []float64{1, 2, 3, 4}

	res, err := PairedTTest(treated, control, Greater)
	require.NoError(t, err)
	assert.InDelta(t, 3.87298, res.Statistic, 1e-5)
	assert.InDelta(t, 0.015234, res.PValue, 1e-5)

	less, err := PairedTTest(treated, control, Less)
	require.NoError(t, err)
	assert.InDelta(t, 1-res.PValue, less.PValue, 1e-9)

	two, err := PairedTTest(treated, control, TwoSided)
	require.NoError(t, err)
	assert.InDelta(t, 2*res.PValue, two.PValue, 1e-9)

	_, err = PairedTTest(treated, control[:3], Greater)
	assert.Error(t, err)
	_, err = PairedTTest(treated, control, "sideways")
	assert.Error(t, err)
}

func TestPairedTTest_ConstantDifference(t *testing.T) {
	res, err := PairedTTest([]float64{3, 4, 5}, []float64{1, 2, 3}, Less)
	require.NoError(t, err)
	assert.True(t, math.IsInf(res.Statistic, 1))
	assert.Equal(t, 1.0, res.PValue)

	res, err = PairedTTest([]float64{1, 2}, []float64{1, 2}, Less)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res.PValue))
}

func TestMannWhitneyU_Exact(t *testing.T) {
	res, err := MannWhitneyU([]float64{5, 6, 7}, []float64{1, 2, 3}, Greater)
	require.NoError(t, err)
	assert.Equal(t, 9.0, res.Statistic)
	assert.InDelta(t, 0.05, res.PValue, 1e-12)

	res, err = MannWhitneyU([]float64{5, 6, 7}, []float64{1, 2, 3}, TwoSided)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, res.PValue, 1e-12)
}

func TestMannWhitneyU_AsymptoticIsSymmetric(t *testing.T) {
	lo := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	hi := []float64{5, 6, 7, 8, 9, 10, 11, 12, 13, 14}

	greater, err := MannWhitneyU(hi, lo, Greater)
	require.NoError(t, err)
	less, err := MannWhitneyU(lo, hi, Less)
	require.NoError(t, err)

	assert.InDelta(t, greater.PValue, less.PValue, 1e-12)
	assert.Less(t, greater.PValue, 0.05)
	assert.Greater(t, greater.PValue, 0.0)

	wrongWay, err := MannWhitneyU(hi, lo, Less)
	require.NoError(t, err)
	assert.Greater(t, wrongWay.PValue, 0.9)
}

func TestRank_AveragesTies(t *testing.T) {
	ranks, tie := rank([]float64{3, 1, 3, 2})
	assert.Equal(t, []float64{3.5, 1, 3.5, 2}, ranks)
	assert.Equal(t, 6.0, tie)
}

func TestPermutationTest_ExactSmallSamples(t *testing.T) {
	kit, err := testkit.NewTestKit()
	require.NoError(t, err)
	ctx := context.Background()

	res, err := PermutationTest(ctx, []float64{5, 6, 7}, []float64{1, 2, 3}, Greater, DefaultPermutationOptions(), kit.RNGAdapter())
	require.NoError(t, err)
	assert.Equal(t, 4.0, res.Statistic)
	assert.InDelta(t, 0.05, res.PValue, 1e-12)

	res, err = PermutationTest(ctx, []float64{5, 6, 7}, []float64{1, 2, 3}, TwoSided, DefaultPermutationOptions(), kit.RNGAdapter())
	require.NoError(t, err)
	assert.InDelta(t, 0.1, res.PValue, 1e-12)
}

func TestPermutationTest_SampledIsDeterministic(t *testing.T) {
	defer goleak.VerifyNone(t)

	kit, err := testkit.NewTestKit()
	require.NoError(t, err)
	ctx := context.Background()

	treated := make([]float64, 20)
	control := make([]float64, 20)
	for i := range treated {
		treated[i] = float64(i%7) + 2
		control[i] = float64(i % 7)
	}
	opts := PermutationOptions{Resamples: 999, Seed: 3, Workers: 4}

	a, err := PermutationTest(ctx, treated, control, Greater, opts, kit.RNGAdapter())
	require.NoError(t, err)
	b, err := PermutationTest(ctx, treated, control, Greater, opts, kit.RNGAdapter())
	require.NoError(t, err)

	assert.Equal(t, a.PValue, b.PValue)
	assert.GreaterOrEqual(t, a.PValue, 1.0/1000)
	assert.Less(t, a.PValue, 0.05)

	opposite, err := PermutationTest(ctx, treated, control, Less, opts, kit.RNGAdapter())
	require.NoError(t, err)
	assert.Greater(t, opposite.PValue, 0.9)
}

func TestPermutationTest_Canceled(t *testing.T) {
	defer goleak.VerifyNone(t)

	kit, err := testkit.NewTestKit()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	x := make([]float64, 30)
	y := make([]float64, 30)
	for i := range x {
		x[i], y[i] = float64(i), float64(i)+1
	}
	_, err = PermutationTest(ctx, x, y, Less, DefaultPermutationOptions(), kit.RNGAdapter())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCohensD_SignFollowsMeans(t *testing.T) {
	treated := []float64{1, 2, 3, 4}
	control := []float64{3, 4, 5, 6}

	d, err := CohensD(treated, control)
	require.NoError(t, err)
	// both groups have sample variance 5/3
	assert.InDelta(t, -2/math.Sqrt(5.0/3), d, 1e-12)

	d, err = CohensD(control, treated)
	require.NoError(t, err)
	assert.Greater(t, d, 0.0)
}

func TestErrTooFew(t *testing.T) {
	_, err := PairedTTest([]float64{1}, []float64{0}, Greater)
	assert.ErrorIs(t, err, ErrTooFew)
	_, err = CohensD([]float64{1}, []float64{0, 2})
	assert.ErrorIs(t, err, ErrTooFew)
	_, err = MannWhitneyU(nil, []float64{0}, Greater)
	assert.ErrorIs(t, err, ErrTooFew)

	_, err = PairedTTest([]float64{1, 2}, []float64{0}, Greater)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTooFew)
	_, err = PairedTTest([]float64{1, 2}, []float64{0, 1}, "sideways")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTooFew)
}

func TestImbalanceRatio(t *testing.T) {
	tests := []struct {
		active, inactive int
		expected         float64
	}{
		{10, 5, 2},
		{5, 10, 2},
		{0, 4, 0},
		{4, 0, 0},
		{3, 3, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ImbalanceRatio(tt.active, tt.inactive))
	}
}
