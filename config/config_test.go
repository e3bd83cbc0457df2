package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/possession-go/team"
)

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 25.0, cfg.Ball.MaxAllowedDistance)
	assert.Equal(t, 0.5, cfg.Ball.MinConfidence)
	assert.Equal(t, 0.5, cfg.Possession.ContainmentThreshold)
	assert.Equal(t, 0.5, cfg.Possession.DistanceThreshold)
	assert.Equal(t, 11, cfg.Possession.MinFrames)
	assert.Equal(t, 150, cfg.Possession.EvictAfter)
	assert.Equal(t, "bytetrack", cfg.Tracker.Kind)
	assert.Equal(t, 30, cfg.Tracker.MaxDisappeared)
	assert.Equal(t, 0.3, cfg.Tracker.MinIoU)
	assert.Equal(t, 0.5, cfg.Tracker.HighThresh)
	assert.Equal(t, 0.3, cfg.Tracker.LowThresh)
	assert.Equal(t, "hungarian", cfg.Tracker.Algorithm)
	assert.Equal(t, 50, cfg.Team.ResetEvery)
	assert.Equal(t, 0.5, cfg.Team.LabelMinIoU)
}

func TestLoad_WithYAMLFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfgText := `
logLevel: debug
ball:
  maxAllowedDistance: 40
possession:
  minFrames: 5
tracker:
  algorithm: greedy
`
	path := filepath.Join(dir, "possession.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfgText), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 40.0, cfg.Ball.MaxAllowedDistance)
	assert.Equal(t, 5, cfg.Possession.MinFrames)
	assert.Equal(t, "greedy", cfg.Tracker.Algorithm)
	// Untouched keys keep defaults
	assert.Equal(t, 0.5, cfg.Possession.ContainmentThreshold)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, level)
}

func TestLoad_WithJSONFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "possession.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"team": {"resetEvery": 10}}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Team.ResetEvery)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("POSSESSION_POSSESSION_MINFRAMES", "7")
	t.Setenv("POSSESSION_LOGLEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Possession.MinFrames)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	_, err := Load("/nonexistent/path/possession.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "possession.yaml")
	require.NoError(t, os.WriteFile(path, []byte("possession:\n  minFrames: 0\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "possession.minFrames")
}

func TestValidate(t *testing.T) {
	t.Cleanup(viper.Reset)

	cfg, err := Load("")
	require.NoError(t, err)

	broken := *cfg
	broken.Tracker.Algorithm = "sort"
	assert.True(t, errors.Is(broken.Validate(), ErrInvalidConfig))

	broken = *cfg
	broken.Tracker.Kind = "deepsort"
	assert.True(t, errors.Is(broken.Validate(), ErrInvalidConfig))

	broken = *cfg
	broken.LogLevel = "loud"
	assert.True(t, errors.Is(broken.Validate(), ErrInvalidConfig))

	broken = *cfg
	broken.Tracker.LowThresh = 0.9
	assert.True(t, errors.Is(broken.Validate(), ErrInvalidConfig))

	broken = *cfg
	broken.Possession.EvictAfter = -1
	assert.True(t, errors.Is(broken.Validate(), ErrInvalidConfig))
}

func TestBuilders(t *testing.T) {
	t.Cleanup(viper.Reset)

	cfg, err := Load("")
	require.NoError(t, err)

	pipeline := cfg.NewPipeline()
	require.NotNil(t, pipeline)
	require.NotNil(t, pipeline.Cleaner)
	require.NotNil(t, pipeline.Resolver)

	tracker, err := cfg.NewPlayerTracker()
	require.NoError(t, err)
	require.NotNil(t, tracker)

	cfg.Tracker.Kind = "iou"
	tracker, err = cfg.NewPlayerTracker()
	require.NoError(t, err)
	require.NotNil(t, tracker)

	assigner, err := cfg.NewAssigner(team.NewLabelClassifier(cfg.Team.LabelMinIoU))
	require.NoError(t, err)
	require.NotNil(t, assigner)
}
