package container

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goodsam/internal/config"
	"goodsam/internal/errors"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("CV_FOLDS", "4")
	t.Setenv("CV_WORKERS", "2")
	t.Setenv("SPLIT_SEED", "7")
	t.Setenv("PERMUTATION_RESAMPLES", "499")
	t.Setenv("MODEL_SAMPLES", "50")
	t.Setenv("ANALYSIS_TIMEOUT", "30s")
	t.Setenv("LOG_LEVEL", "ERROR")
	cfg, err := config.FromEnv()
	require.NoError(t, err)
	return cfg
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestServiceConfig(t *testing.T) {
	cfg := testConfig(t)
	sc := ServiceConfig(cfg)

	assert.Equal(t, 27, sc.Schema.CovariateCount)
	assert.Equal(t, "delta_death_rate", sc.Schema.Outcome)
	assert.Equal(t, "goodsam-cs_Prosecution", sc.DefaultLaw)
	assert.Equal(t, 29, sc.DefaultPattern)
	assert.Equal(t, 4, sc.Folds)
	assert.Equal(t, 2, sc.Evaluation.Workers)
	assert.Equal(t, int64(7), sc.Effect.Split.Seed)
	assert.Equal(t, 499, sc.Effect.Permutation.Resamples)
	assert.Equal(t, 50, sc.Effect.FitConfig.SampleCount)
	assert.Equal(t, sc.Effect.FitConfig, sc.Evaluation.FitConfig)
}

func TestContainer_Wiring(t *testing.T) {
	cfg := testConfig(t)
	c, err := New(cfg)
	require.NoError(t, err)

	assert.Equal(t, cfg.Data.Dir, c.Source.Dir())
	assert.Equal(t, ":5001", c.APIAddr())
	assert.Equal(t, ":9090", c.OpsAddr())
	assert.Equal(t, "goodsam_all.csv", c.Files().Main)
	assert.NotNil(t, c.APIServer().Handler())

	err = c.Init(context.Background())
	require.Error(t, err, "the data directory is empty")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
	assert.Equal(t, 30*time.Second, cfg.Analysis.Timeout)
	assert.NoError(t, c.Shutdown(context.Background()))
}
