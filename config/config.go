package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/LdDl/possession-go/possession"
	"github.com/LdDl/possession-go/team"
	"github.com/LdDl/possession-go/tracking"
)

// EnvPrefix is prefix of environment variables overriding config values, e.g. POSSESSION_POSSESSION_MINFRAMES
const EnvPrefix = "POSSESSION"

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// BallConfig holds ball detection and trajectory cleaning settings
type BallConfig struct {
	MaxAllowedDistance float64 `json:"maxAllowedDistance" mapstructure:"maxAllowedDistance"`
	MinConfidence      float64 `json:"minConfidence" mapstructure:"minConfidence"`
}

// PossessionConfig holds possession resolving settings
type PossessionConfig struct {
	ContainmentThreshold float64 `json:"containmentThreshold" mapstructure:"containmentThreshold"`
	DistanceThreshold    float64 `json:"distanceThreshold" mapstructure:"distanceThreshold"`
	MinFrames            int     `json:"minFrames" mapstructure:"minFrames"`
	EvictAfter           int     `json:"evictAfter" mapstructure:"evictAfter"`
}

// TrackerConfig holds player tracker settings.
// IoU tracker uses MaxDisappeared as max no-match frames and MinIoU as combined score threshold
type TrackerConfig struct {
	Kind           string  `json:"kind" mapstructure:"kind"`
	MaxDisappeared int     `json:"maxDisappeared" mapstructure:"maxDisappeared"`
	MinIoU         float64 `json:"minIoU" mapstructure:"minIoU"`
	HighThresh     float64 `json:"highThresh" mapstructure:"highThresh"`
	LowThresh      float64 `json:"lowThresh" mapstructure:"lowThresh"`
	Algorithm      string  `json:"algorithm" mapstructure:"algorithm"`
}

// TeamConfig holds team assignment settings
type TeamConfig struct {
	ResetEvery  int     `json:"resetEvery" mapstructure:"resetEvery"`
	LabelMinIoU float64 `json:"labelMinIoU" mapstructure:"labelMinIoU"`
}

// Config is the whole configuration of the analyzer
type Config struct {
	LogLevel   string           `json:"logLevel" mapstructure:"logLevel"`
	Ball       BallConfig       `json:"ball" mapstructure:"ball"`
	Possession PossessionConfig `json:"possession" mapstructure:"possession"`
	Tracker    TrackerConfig    `json:"tracker" mapstructure:"tracker"`
	Team       TeamConfig       `json:"team" mapstructure:"team"`
}

// SetDefaults registers default value of every key
func SetDefaults() {
	viper.SetDefault("logLevel", "info")

	viper.SetDefault("ball.maxAllowedDistance", 25.0)
	viper.SetDefault("ball.minConfidence", 0.5)

	viper.SetDefault("possession.containmentThreshold", 0.5)
	viper.SetDefault("possession.distanceThreshold", 0.5)
	viper.SetDefault("possession.minFrames", 11)
	viper.SetDefault("possession.evictAfter", 150)

	viper.SetDefault("tracker.kind", "bytetrack")
	viper.SetDefault("tracker.maxDisappeared", 30)
	viper.SetDefault("tracker.minIoU", 0.3)
	viper.SetDefault("tracker.highThresh", 0.5)
	viper.SetDefault("tracker.lowThresh", 0.3)
	viper.SetDefault("tracker.algorithm", "hungarian")

	viper.SetDefault("team.resetEvery", 50)
	viper.SetDefault("team.labelMinIoU", 0.5)
}

// Load sets default values, reads configuration file (if path is not empty) and environment overrides.
// File format is detected by extension (yaml, json, toml).
func Load(path string) (*Config, error) {
	SetDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "error decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values which would make components misbehave
func (cfg *Config) Validate() error {
	if _, err := cfg.Level(); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "logLevel: %v", err)
	}
	switch strings.ToLower(cfg.Tracker.Kind) {
	case "bytetrack", "iou":
	default:
		return errors.Wrapf(ErrInvalidConfig, "tracker.kind must be 'bytetrack' or 'iou', got '%s'", cfg.Tracker.Kind)
	}
	if _, err := tracking.ParseMatchingAlgorithm(cfg.Tracker.Algorithm); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "tracker.algorithm: %v", err)
	}
	positive := []struct {
		key   string
		value float64
	}{
		{"ball.maxAllowedDistance", cfg.Ball.MaxAllowedDistance},
		{"possession.containmentThreshold", cfg.Possession.ContainmentThreshold},
		{"possession.distanceThreshold", cfg.Possession.DistanceThreshold},
		{"possession.minFrames", float64(cfg.Possession.MinFrames)},
		{"tracker.maxDisappeared", float64(cfg.Tracker.MaxDisappeared)},
		{"team.resetEvery", float64(cfg.Team.ResetEvery)},
	}
	for _, p := range positive {
		if !(p.value > 0) {
			return errors.Wrapf(ErrInvalidConfig, "%s must be positive, got %v", p.key, p.value)
		}
	}
	if cfg.Possession.EvictAfter < 0 {
		return errors.Wrapf(ErrInvalidConfig, "possession.evictAfter must not be negative, got %d", cfg.Possession.EvictAfter)
	}
	if cfg.Tracker.LowThresh > cfg.Tracker.HighThresh {
		return errors.Wrapf(ErrInvalidConfig, "tracker.lowThresh (%v) is greater than tracker.highThresh (%v)", cfg.Tracker.LowThresh, cfg.Tracker.HighThresh)
	}
	return nil
}

// Level returns parsed log level
func (cfg *Config) Level() (zerolog.Level, error) {
	return zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
}

// NewPipeline creates ball cleaning and possession resolving pipeline
func (cfg *Config) NewPipeline() *possession.Pipeline {
	cleaner := possession.NewBallTrajectoryCleaner(cfg.Ball.MaxAllowedDistance)
	resolver := possession.NewPossessionResolver(
		cfg.Possession.ContainmentThreshold,
		cfg.Possession.DistanceThreshold,
		cfg.Possession.MinFrames,
		cfg.Possession.EvictAfter,
	)
	return possession.NewPipeline(cleaner, resolver)
}

// NewPlayerTracker creates player tracker
func (cfg *Config) NewPlayerTracker() (*tracking.PlayerTracker, error) {
	if strings.EqualFold(cfg.Tracker.Kind, "iou") {
		return tracking.NewPlayerTracker(tracking.NewIoUTracker(cfg.Tracker.MaxDisappeared, cfg.Tracker.MinIoU)), nil
	}
	algorithm, err := tracking.ParseMatchingAlgorithm(cfg.Tracker.Algorithm)
	if err != nil {
		return nil, err
	}
	byteTracker := tracking.NewByteTracker(cfg.Tracker.MaxDisappeared, cfg.Tracker.MinIoU, cfg.Tracker.HighThresh, cfg.Tracker.LowThresh, algorithm)
	return tracking.NewPlayerTracker(byteTracker), nil
}

// NewAssigner creates team assigner on top of given classifier
func (cfg *Config) NewAssigner(classifier team.Classifier) (*team.Assigner, error) {
	return team.NewAssigner(classifier, cfg.Team.ResetEvery)
}
