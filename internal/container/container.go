package container

import (
	"context"
	"fmt"
	"net"

	"goodsam/adapters/causal/tlearner"
	"goodsam/adapters/excel"
	"goodsam/adapters/rng"
	"goodsam/domain/frame"
	"goodsam/internal"
	"goodsam/internal/analysis"
	"goodsam/internal/config"
	"goodsam/internal/errors"
	"goodsam/ports"
	"goodsam/ui"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	Source  *excel.Source
	Factory ports.ModelFactory
	RNG     ports.RNGPort

	// Analysis
	Service *analysis.Service
}

// New creates a new dependency injection container. Nothing is loaded
// until Init.
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
	internal.DefaultLogger = logger

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Source:  excel.NewSource(cfg.Data.Dir, excel.DefaultLoadConfig(), logger),
		Factory: tlearner.Factory(tlearner.DefaultConfig()),
		RNG:     rng.New(),
	}
	c.Service = analysis.NewService(c.Source, c.Factory, c.RNG, ServiceConfig(cfg), logger)
	return c, nil
}

// ServiceConfig maps application configuration onto the analysis service
func ServiceConfig(cfg *config.Config) analysis.Config {
	fit := ports.FitConfig{
		SampleCount: cfg.Model.Samples,
		BurnInCount: cfg.Model.BurnIn,
		ChainCount:  cfg.Model.Chains,
	}

	sc := analysis.DefaultConfig()
	sc.Schema = frame.Schema{CovariateCount: cfg.Data.CovariateCount, Outcome: cfg.Data.OutcomeColumn}
	sc.DefaultLaw = cfg.Analysis.DefaultLaw
	sc.Folds = cfg.Analysis.CVFolds
	sc.Evaluation.Workers = cfg.Analysis.CVWorkers
	sc.Evaluation.FitConfig = fit
	sc.Effect.FitConfig = fit
	sc.Effect.Split.Seed = cfg.Analysis.SplitSeed
	sc.Effect.Permutation.Resamples = cfg.Analysis.PermutationResamples
	return sc
}

// Files returns the startup table names
func (c *Container) Files() analysis.Files {
	return analysis.Files{
		Main:     c.Config.Data.MainFile,
		Patterns: c.Config.Data.PatternFile,
		Geomap:   c.Config.Data.GeomapFile,
		Counties: c.Config.Data.FIPSCountyFile,
	}
}

// Init loads the startup tables into the analysis service
func (c *Container) Init(ctx context.Context) error {
	if err := c.Service.Load(ctx, c.Files()); err != nil {
		return errors.Wrap(err, "failed to load data")
	}
	return nil
}

// APIServer builds the request layer
func (c *Container) APIServer() *ui.Server {
	return ui.NewServer(c.Service, ui.Config{
		DataDir: c.Config.Data.Dir,
		Timeout: c.Config.Analysis.Timeout,
		GinMode: c.Config.Server.GinMode,
	}, c.Logger)
}

// APIAddr is the listen address of the request layer
func (c *Container) APIAddr() string {
	return net.JoinHostPort("", c.Config.Server.Port)
}

// OpsAddr is the listen address of the ops endpoints
func (c *Container) OpsAddr() string {
	return net.JoinHostPort("", c.Config.Server.OpsPort)
}

// Shutdown flushes the logger. Sync errors on a console are ignored.
func (c *Container) Shutdown(ctx context.Context) error {
	_ = c.Logger.Sync()
	return nil
}
