package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"goodsam/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `validate:"required"`
	Data     DataConfig     `validate:"required"`
	Analysis AnalysisConfig `validate:"required"`
	Model    ModelConfig    `validate:"required"`
	LogLevel string         `validate:"omitempty,oneof=ERROR WARN INFO DEBUG TRACE"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `validate:"required,numeric"`
	OpsPort string `validate:"required,numeric"`
	GinMode string `validate:"oneof=debug release test"`
}

// DataConfig names the data directory and the files loaded at startup
type DataConfig struct {
	Dir            string `validate:"required"`
	MainFile       string `validate:"required"`
	PatternFile    string `validate:"required"`
	GeomapFile     string `validate:"required"`
	FIPSCountyFile string `validate:"required"`
	CovariateCount int    `validate:"gt=0"`
	OutcomeColumn  string `validate:"required"`
}

// AnalysisConfig holds pipeline settings
type AnalysisConfig struct {
	DefaultLaw           string        `validate:"required"`
	CVFolds              int           `validate:"gte=2"`
	CVWorkers            int           `validate:"gte=0"`
	PermutationResamples int           `validate:"gt=0"`
	SplitSeed            int64         `validate:"gte=0"`
	Timeout              time.Duration `validate:"gt=0"`
}

// ModelConfig holds the causal model sampler settings
type ModelConfig struct {
	Samples int `validate:"gt=0"`
	BurnIn  int `validate:"gte=0"`
	Chains  int `validate:"gt=0"`
}

// Load reads configuration from a .env file, if present, and the
// environment, then validates it
func Load() (*Config, error) {
	// a missing .env is fine; real environment variables take precedence
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from environment variables only
func FromEnv() (*Config, error) {
	config := &Config{
		Server:   *loadServerConfig(),
		Data:     *loadDataConfig(),
		Analysis: *loadAnalysisConfig(),
		Model:    *loadModelConfig(),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "5001"),
		OpsPort: getEnvOrDefault("OPS_PORT", "9090"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadDataConfig() *DataConfig {
	return &DataConfig{
		Dir:            getEnvOrDefault("DATA_DIR", "./data"),
		MainFile:       getEnvOrDefault("MAIN_FILE", "goodsam_all.csv"),
		PatternFile:    getEnvOrDefault("PATTERN_FILE", "patterns_for_opioid_death.csv"),
		GeomapFile:     getEnvOrDefault("GEOMAP_FILE", "2013-2016_Good_Samaritan_Overdose_Prevention_Laws.csv"),
		FIPSCountyFile: getEnvOrDefault("FIPS_COUNTY_FILE", "fips_county_state.csv"),
		CovariateCount: getEnvIntOrDefault("COVARIATE_COUNT", 27),
		OutcomeColumn:  getEnvOrDefault("OUTCOME_COLUMN", "delta_death_rate"),
	}
}

func loadAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		DefaultLaw:           getEnvOrDefault("DEFAULT_LAW", "goodsam-cs_Prosecution"),
		CVFolds:              getEnvIntOrDefault("CV_FOLDS", 5),
		CVWorkers:            getEnvIntOrDefault("CV_WORKERS", 0),
		PermutationResamples: getEnvIntOrDefault("PERMUTATION_RESAMPLES", 9999),
		SplitSeed:            int64(getEnvIntOrDefault("SPLIT_SEED", 1)),
		Timeout:              getEnvDurationOrDefault("ANALYSIS_TIMEOUT", 5*time.Minute),
	}
}

func loadModelConfig() *ModelConfig {
	return &ModelConfig{
		Samples: getEnvIntOrDefault("MODEL_SAMPLES", 1000),
		BurnIn:  getEnvIntOrDefault("MODEL_BURN_IN", 200),
		Chains:  getEnvIntOrDefault("MODEL_CHAINS", 5),
	}
}

var validate = validator.New()

func validateConfig(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
