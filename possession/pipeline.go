package possession

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Result holds per-frame outputs of the pipeline. Both slices are aligned with input frames.
type Result struct {
	// Cleaned ball boxes. Nil for frames which could not be recovered (trailing gap or no ball at all)
	Balls []*BoundingBox
	// Committed possessor of the ball. Nil when nobody possesses the ball
	Possession []*TrackID
}

// Pipeline is ball trajectory cleaning followed by possession resolving
type Pipeline struct {
	Cleaner  *BallTrajectoryCleaner
	Resolver *PossessionResolver
	logger   zerolog.Logger
}

// NewPipelineDefault creates pipeline with default cleaner and resolver
func NewPipelineDefault() *Pipeline {
	return NewPipeline(NewBallTrajectoryCleanerDefault(), NewPossessionResolverDefault())
}

// NewPipeline creates new instance of Pipeline
func NewPipeline(cleaner *BallTrajectoryCleaner, resolver *PossessionResolver) *Pipeline {
	return &Pipeline{
		Cleaner:  cleaner,
		Resolver: resolver,
		logger:   zerolog.Nop(),
	}
}

// SetLogger sets logger for the pipeline and its stages
func (pipeline *Pipeline) SetLogger(logger zerolog.Logger) {
	pipeline.logger = logger
	pipeline.Cleaner.SetLogger(logger.With().Str("stage", "ball").Logger())
	pipeline.Resolver.SetLogger(logger.With().Str("stage", "possession").Logger())
}

// Analyze cleans raw ball detections and resolves possession on every frame
func (pipeline *Pipeline) Analyze(raw []*BallDetection, players []PlayerFrame) (*Result, error) {
	if len(raw) != len(players) {
		return nil, errors.Wrapf(ErrLengthMismatch, "balls: %d, players: %d", len(raw), len(players))
	}
	balls, err := pipeline.Cleaner.Clean(raw)
	if err != nil {
		return nil, errors.Wrap(err, "Can't clean ball trajectory")
	}
	possession, err := pipeline.Resolver.Resolve(players, balls)
	if err != nil {
		return nil, errors.Wrap(err, "Can't resolve possession")
	}
	pipeline.logger.Info().
		Int("frames", len(raw)).
		Int("ball_coverage", Coverage(balls)).
		Int("possession_segments", len(PossessionSegments(possession))).
		Msg("analysis done")
	return &Result{
		Balls:      balls,
		Possession: possession,
	}, nil
}
