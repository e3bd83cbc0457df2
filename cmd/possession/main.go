package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/LdDl/possession-go/config"
	"github.com/LdDl/possession-go/possession"
	"github.com/LdDl/possession-go/team"
	"github.com/LdDl/possession-go/tracking"
)

func main() {
	flags := pflag.NewFlagSet("possession", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "Path to configuration file (yaml, json or toml)")
	flags.StringP("in", "i", "detections.json", "Path to detections JSON")
	flags.StringP("out", "o", "", "Path to result JSON. Standard output when empty")
	flags.String("log-level", "", "Overrides logLevel from configuration")
	_ = flags.Parse(os.Args[1:])

	_ = viper.BindPFlag("input", flags.Lookup("in"))
	_ = viper.BindPFlag("output", flags.Lookup("out"))
	if flags.Changed("log-level") {
		_ = viper.BindPFlag("logLevel", flags.Lookup("log-level"))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Can't load configuration: %v\n", err)
		os.Exit(1)
	}
	level, _ := cfg.Level()
	zerolog.SetGlobalLevel(level)
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()

	err = run(cfg, viper.GetString("input"), viper.GetString("output"), logger)
	if err != nil {
		logger.Error().Err(err).Msg("Analysis failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, inputPath, outputPath string, logger zerolog.Logger) error {
	input, err := readInput(inputPath)
	if err != nil {
		return err
	}
	detections, labels, err := input.detections()
	if err != nil {
		return err
	}
	logger.Info().Str("input", inputPath).Int("frames", len(detections)).Msg("Detections loaded")

	playerTracker, err := cfg.NewPlayerTracker()
	if err != nil {
		return errors.Wrap(err, "can't create player tracker")
	}
	playerTracker.SetLogger(logger.With().Str("stage", "tracking").Logger())
	players, err := playerTracker.Track(detections)
	if err != nil {
		return errors.Wrap(err, "player tracking failed")
	}

	pipeline := cfg.NewPipeline()
	pipeline.SetLogger(logger)
	result, err := pipeline.Analyze(tracking.BallFrames(detections, cfg.Ball.MinConfidence), players)
	if err != nil {
		return errors.Wrap(err, "possession analysis failed")
	}

	classifier := team.NewLabelClassifier(cfg.Team.LabelMinIoU)
	for _, label := range labels {
		classifier.Add(label.frame, label.box, label.team)
	}
	assigner, err := cfg.NewAssigner(classifier)
	if err != nil {
		return errors.Wrap(err, "can't create team assigner")
	}
	assigner.SetLogger(logger.With().Str("stage", "team").Logger())
	teams, err := assigner.AssignFrames(players)
	if err != nil {
		return errors.Wrap(err, "team assignment failed")
	}
	control, err := team.BallControl(result.Possession, teams)
	if err != nil {
		return errors.Wrap(err, "ball control failed")
	}

	out := newOutput(result, control)
	if err = writeOutput(outputPath, out); err != nil {
		return err
	}
	logger.Info().
		Int("frames", len(out.Frames)).
		Int("coverage", out.Coverage).
		Int("segments", len(out.Segments)).
		Msg("Analysis done")
	return nil
}

func newOutput(result *possession.Result, control []team.Team) *outputFile {
	out := &outputFile{
		Frames:   make([]outputFrame, len(result.Balls)),
		Segments: possession.PossessionSegments(result.Possession),
		Coverage: possession.Coverage(result.Balls),
	}
	for frameIdx := range result.Balls {
		frame := outputFrame{
			Frame:     frameIdx,
			Possessor: result.Possession[frameIdx],
			Team:      int(control[frameIdx]),
		}
		if ball := result.Balls[frameIdx]; ball != nil {
			frame.Ball = []float64{ball.X1, ball.Y1, ball.X2, ball.Y2}
		}
		out.Frames[frameIdx] = frame
	}
	return out
}
