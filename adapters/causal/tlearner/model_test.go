package tlearner

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"goodsam/domain/core"
	"goodsam/ports"
)

func linearData(n int, effect float64) (*mat.Dense, []float64, []float64) {
	rng := rand.New(rand.NewSource(7))
	X := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	z := make([]float64, n)
	for i := 0; i < n; i++ {
		x0, x1 := rng.NormFloat64(), rng.NormFloat64()
		X.Set(i, 0, x0)
		X.Set(i, 1, x1)
		z[i] = float64(i % 2)
		y[i] = 1 + 2*x0 + 0.1*x1 + effect*z[i] + rng.NormFloat64()*0.01
	}
	return X, y, z
}

func withZ(X *mat.Dense, z []float64) *mat.Dense { return withColumn(X, z) }

func TestModel_RecoversTreatmentEffect(t *testing.T) {
	ctx := context.Background()
	X, y, z := linearData(200, 3)

	m := New(DefaultConfig())
	tm, err := m.Fit(ctx, X, y, z, []string{"x0", "x1"}, ports.DefaultFitConfig())
	require.NoError(t, err)

	treated, err := tm.Predict(ctx, withZ(X, z), ports.ModeTreated)
	require.NoError(t, err)
	control, err := tm.Predict(ctx, withZ(X, z), ports.ModeControl)
	require.NoError(t, err)

	for i := 0; i < 200; i += 17 {
		assert.InDelta(t, 3, treated.Point[i]-control.Point[i], 0.05, "row %d", i)
		assert.Less(t, treated.Lower[i], treated.Point[i])
		assert.Greater(t, treated.Upper[i], treated.Point[i])
	}

	observed, err := tm.Predict(ctx, withZ(X, z), ports.ModeObserved)
	require.NoError(t, err)
	assert.Equal(t, treated.Point[1], observed.Point[1], "odd rows are treated")
	assert.Equal(t, control.Point[0], observed.Point[0], "even rows are control")
}

func TestModel_FeatureImportance(t *testing.T) {
	X, y, z := linearData(100, 1)
	tm, err := New(DefaultConfig()).Fit(context.Background(), X, y, z, []string{"x0", "x1"}, ports.DefaultFitConfig())
	require.NoError(t, err)

	scores, err := tm.FeatureImportance()
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "x0", scores[0].Feature)
	assert.Greater(t, scores[0].Score, scores[1].Score)
	assert.InDelta(t, 1, scores[0].Score+scores[1].Score, 1e-12)
}

func TestModel_SingleArmFallsBackToPooledSurface(t *testing.T) {
	ctx := context.Background()
	X, y, _ := linearData(50, 0)
	ones := make([]float64, 50)
	for i := range ones {
		ones[i] = 1
	}

	tm, err := New(DefaultConfig()).Fit(ctx, X, y, ones, []string{"x0", "x1"}, ports.DefaultFitConfig())
	require.NoError(t, err)

	p, err := tm.Predict(ctx, withZ(X, ones), ports.ModeControl)
	require.NoError(t, err)
	assert.Len(t, p.Point, 50)
}

func TestModel_SmallArmFallsBackToPooledSurface(t *testing.T) {
	ctx := context.Background()
	X, y, _ := linearData(50, 0)

	// two features need three rows per arm
	tests := []struct {
		treated int
		pooled  bool
	}{
		{treated: 2, pooled: true},
		{treated: 3, pooled: false},
		{treated: 48, pooled: true},
	}
	for _, tt := range tests {
		z := make([]float64, 50)
		for i := 0; i < tt.treated; i++ {
			z[i] = 1
		}
		tm, err := New(DefaultConfig()).Fit(ctx, X, y, z, []string{"x0", "x1"}, ports.DefaultFitConfig())
		require.NoError(t, err)
		assert.Equal(t, tt.pooled, tm.(*trained).pooled != nil, "%d treated rows", tt.treated)

		p, err := tm.Predict(ctx, withZ(X, z), ports.ModeTreated)
		require.NoError(t, err)
		assert.Len(t, p.Point, 50)
	}
}

func TestModel_Errors(t *testing.T) {
	ctx := context.Background()
	X, y, z := linearData(20, 1)
	m := New(DefaultConfig())

	_, err := m.Fit(ctx, X, y[:10], z, []string{"x0", "x1"}, ports.DefaultFitConfig())
	assert.ErrorIs(t, err, core.ErrModelFit)

	_, err = m.Fit(ctx, X, y, z, []string{"x0", "x1"}, ports.FitConfig{})
	assert.ErrorIs(t, err, core.ErrModelFit, "zero sample count is rejected")

	tm, err := m.Fit(ctx, X, y, z, []string{"x0", "x1"}, ports.DefaultFitConfig())
	require.NoError(t, err)

	_, err = tm.Predict(ctx, X, ports.ModeObserved)
	assert.ErrorIs(t, err, core.ErrModelPredict, "treatment column is required")

	_, err = tm.Predict(ctx, withZ(X, z), "mu.2")
	assert.ErrorIs(t, err, core.ErrModelPredict)
}
