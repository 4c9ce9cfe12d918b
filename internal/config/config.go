package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/junyi2022/Calgary-Portland-Inundation/internal/evaluate"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/grid"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/logistic"
	"github.com/junyi2022/Calgary-Portland-Inundation/internal/risk"
)

// Config holds the full application configuration.
type Config struct {
	Split     SplitConfig        `yaml:"split" mapstructure:"split"`
	Model     logistic.FitConfig `yaml:"model" mapstructure:"model"`
	CrossVal  CrossValConfig     `yaml:"crossval" mapstructure:"crossval"`
	Risk      RiskConfig         `yaml:"risk" mapstructure:"risk"`
	Normalize NormalizeConfig    `yaml:"normalize" mapstructure:"normalize"`
	Evaluate  EvaluateConfig     `yaml:"evaluate" mapstructure:"evaluate"`
	Store     StoreConfig        `yaml:"store" mapstructure:"store"`
	Log       LogConfig          `yaml:"log" mapstructure:"log"`
}

// SplitConfig configures the train/holdout partition.
type SplitConfig struct {
	TrainFraction float64 `yaml:"train_fraction" mapstructure:"train_fraction"`
	Seed          int64   `yaml:"seed" mapstructure:"seed"`
}

// CrossValConfig configures k-fold cross-validation. The decision threshold
// for CV reporting is fixed at evaluate.CVThreshold and deliberately not
// configurable.
type CrossValConfig struct {
	Folds int   `yaml:"folds" mapstructure:"folds"`
	Seed  int64 `yaml:"seed" mapstructure:"seed"`
}

// RiskConfig configures the operational classification and quantile binning.
type RiskConfig struct {
	// OperationalThreshold is the mapping decision cutoff. It sits below
	// 0.5 on purpose: missed flood zones cost more than false alarms.
	OperationalThreshold float64 `yaml:"operational_threshold" mapstructure:"operational_threshold"`
	Bins                 int     `yaml:"bins" mapstructure:"bins"`
}

// NormalizeConfig holds the cross-city target ranges. These approximate
// each variable's dynamic range across both study areas; they are a design
// choice, not a universal law.
type NormalizeConfig struct {
	ElevationRange Range `yaml:"elevation_range" mapstructure:"elevation_range"`
	FlowAccumRange Range `yaml:"flow_accum_range" mapstructure:"flow_accum_range"`
}

// Range mirrors grid.Range for configuration.
type Range struct {
	Min float64 `yaml:"min" mapstructure:"min"`
	Max float64 `yaml:"max" mapstructure:"max"`
}

// Grid converts to the grid package's range type.
func (r Range) Grid() grid.Range { return grid.Range{Min: r.Min, Max: r.Max} }

// EvaluateConfig configures metric computation.
type EvaluateConfig struct {
	ROCResolution int `yaml:"roc_resolution" mapstructure:"roc_resolution"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FLOOD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("split.train_fraction", 0.70)
	v.SetDefault("split.seed", 42)
	v.SetDefault("model.max_iterations", logistic.DefaultFitConfig().MaxIterations)
	v.SetDefault("model.tolerance", logistic.DefaultFitConfig().Tolerance)
	v.SetDefault("crossval.folds", 5)
	v.SetDefault("crossval.seed", 42)
	v.SetDefault("risk.operational_threshold", risk.DefaultOperationalThreshold)
	v.SetDefault("risk.bins", risk.DefaultBins)
	v.SetDefault("normalize.elevation_range.min", grid.DefaultElevationRange.Min)
	v.SetDefault("normalize.elevation_range.max", grid.DefaultElevationRange.Max)
	v.SetDefault("normalize.flow_accum_range.min", grid.DefaultFlowAccumRange.Min)
	v.SetDefault("normalize.flow_accum_range.max", grid.DefaultFlowAccumRange.Max)
	v.SetDefault("evaluate.roc_resolution", evaluate.DefaultROCResolution)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configuration the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Split.TrainFraction <= 0 || c.Split.TrainFraction >= 1 {
		return eris.Errorf("config: split.train_fraction %g outside (0,1)", c.Split.TrainFraction)
	}
	if c.Risk.OperationalThreshold <= 0 || c.Risk.OperationalThreshold >= 1 {
		return eris.Errorf("config: risk.operational_threshold %g outside (0,1)", c.Risk.OperationalThreshold)
	}
	if c.Risk.Bins < 2 {
		return eris.Errorf("config: risk.bins %d, need at least 2", c.Risk.Bins)
	}
	if c.CrossVal.Folds < 2 {
		return eris.Errorf("config: crossval.folds %d, need at least 2", c.CrossVal.Folds)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
