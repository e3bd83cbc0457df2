package possession

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/interp"
)

// BallDetection is a raw ball detection on a single frame
type BallDetection struct {
	Box        BoundingBox
	Confidence float64
}

// OutlierFilter is a trust chain for ball detections.
// Every new detection is compared against the last accepted one (not against the previous frame),
// allowed displacement grows linearly with number of frames passed since that accepted detection.
// Frames must be fed in increasing order. One filter serves exactly one stream.
type OutlierFilter struct {
	// Allowed displacement of the box's top-left corner per frame. Default is 25
	maxAllowedDistance float64
	hasTrusted         bool
	trustedIdx         int
	trusted            BoundingBox
	// Last frame passed to the filter, rejected or not
	lastIdx int
}

// NewOutlierFilter creates new instance of OutlierFilter
func NewOutlierFilter(maxAllowedDistance float64) *OutlierFilter {
	return &OutlierFilter{
		maxAllowedDistance: maxAllowedDistance,
	}
}

// Accept checks detection against the trust chain. Accepted detection becomes the new trusted one.
func (f *OutlierFilter) Accept(frameIdx int, box BoundingBox) (bool, error) {
	accepted, _, _, err := f.check(frameIdx, box)
	return accepted, err
}

// Reset forgets trusted detection
func (f *OutlierFilter) Reset() {
	f.hasTrusted = false
	f.trustedIdx = 0
	f.trusted = BoundingBox{}
	f.lastIdx = 0
}

func (f *OutlierFilter) check(frameIdx int, box BoundingBox) (accepted bool, distance, allowed float64, err error) {
	if f.hasTrusted && frameIdx <= f.lastIdx {
		return false, 0, 0, errors.Wrapf(ErrFrameOrder, "frame %d after frame %d", frameIdx, f.lastIdx)
	}
	f.lastIdx = frameIdx
	if !f.hasTrusted {
		// Anchor: nothing to validate against
		f.hasTrusted = true
		f.trustedIdx = frameIdx
		f.trusted = box
		return true, 0, 0, nil
	}
	gap := frameIdx - f.trustedIdx
	distance = euclideanDistance(box.TopLeft(), f.trusted.TopLeft())
	allowed = f.maxAllowedDistance * float64(gap)
	if distance > allowed {
		return false, distance, allowed, nil
	}
	f.trustedIdx = frameIdx
	f.trusted = box
	return true, distance, allowed, nil
}

// BallTrajectoryCleaner rejects implausible ball detections and fills gaps between valid ones
type BallTrajectoryCleaner struct {
	// Allowed displacement of the box's top-left corner per frame. Default is 25
	maxAllowedDistance float64
	logger             zerolog.Logger
}

// NewBallTrajectoryCleanerDefault creates default instance of BallTrajectoryCleaner
func NewBallTrajectoryCleanerDefault() *BallTrajectoryCleaner {
	return NewBallTrajectoryCleaner(25.0)
}

// NewBallTrajectoryCleaner creates new instance of BallTrajectoryCleaner
func NewBallTrajectoryCleaner(maxAllowedDistance float64) *BallTrajectoryCleaner {
	return &BallTrajectoryCleaner{
		maxAllowedDistance: maxAllowedDistance,
		logger:             zerolog.Nop(),
	}
}

// SetLogger sets logger for debug events
func (cleaner *BallTrajectoryCleaner) SetLogger(logger zerolog.Logger) {
	cleaner.logger = logger
}

// Clean executes RejectOutliers and then InterpolateGaps
func (cleaner *BallTrajectoryCleaner) Clean(raw []*BallDetection) ([]*BoundingBox, error) {
	filtered, err := cleaner.RejectOutliers(raw)
	if err != nil {
		return nil, errors.Wrap(err, "Can't reject outliers")
	}
	cleaned, err := cleaner.InterpolateGaps(filtered)
	if err != nil {
		return nil, errors.Wrap(err, "Can't interpolate gaps")
	}
	return cleaned, nil
}

// RejectOutliers drops detections inconsistent with continuous motion.
// Zero-area detections are treated as absent.
// Output has the same length as input, nil means there is no (trusted) detection on the frame.
func (cleaner *BallTrajectoryCleaner) RejectOutliers(raw []*BallDetection) ([]*BoundingBox, error) {
	filter := NewOutlierFilter(cleaner.maxAllowedDistance)
	filtered := make([]*BoundingBox, len(raw))
	for frameIdx, detection := range raw {
		if detection == nil {
			continue
		}
		if err := detection.Box.Validate(); err != nil {
			if !detection.Box.ordered() {
				return nil, errors.Wrapf(err, "ball on frame %d", frameIdx)
			}
			cleaner.logger.Debug().Int("frame", frameIdx).Msg("zero-area ball detection skipped")
			continue
		}
		accepted, distance, allowed, err := filter.check(frameIdx, detection.Box)
		if err != nil {
			return nil, err
		}
		if !accepted {
			cleaner.logger.Debug().
				Int("frame", frameIdx).
				Float64("distance", distance).
				Float64("allowed", allowed).
				Msg("ball detection rejected")
			continue
		}
		box := detection.Box
		filtered[frameIdx] = &box
	}
	return filtered, nil
}

// InterpolateGaps fills missing frames by linear interpolation over frame index.
// Each of four coordinates is interpolated independently.
// Frames before the first valid sample take its value, frames after the last valid sample stay nil.
func (cleaner *BallTrajectoryCleaner) InterpolateGaps(filtered []*BoundingBox) ([]*BoundingBox, error) {
	cleaned := make([]*BoundingBox, len(filtered))
	xs := make([]float64, 0, len(filtered))
	channels := [4][]float64{}
	for frameIdx, box := range filtered {
		if box == nil {
			continue
		}
		if err := box.Validate(); err != nil {
			return nil, errors.Wrapf(err, "ball on frame %d", frameIdx)
		}
		xs = append(xs, float64(frameIdx))
		channels[0] = append(channels[0], box.X1)
		channels[1] = append(channels[1], box.Y1)
		channels[2] = append(channels[2], box.X2)
		channels[3] = append(channels[3], box.Y2)
	}
	if len(xs) == 0 {
		return cleaned, nil
	}
	lastValid := int(xs[len(xs)-1])

	// Channels do not share any mutable state
	interpolated := [4][]float64{}
	var g errgroup.Group
	for ch := range channels {
		ch := ch
		g.Go(func() error {
			values, err := interpolateChannel(xs, channels[ch], lastValid+1)
			if err != nil {
				return errors.Wrapf(err, "channel %d", ch)
			}
			interpolated[ch] = values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for frameIdx := 0; frameIdx <= lastValid; frameIdx++ {
		cleaned[frameIdx] = &BoundingBox{
			X1: interpolated[0][frameIdx],
			Y1: interpolated[1][frameIdx],
			X2: interpolated[2][frameIdx],
			Y2: interpolated[3][frameIdx],
		}
	}
	return cleaned, nil
}

// interpolateChannel evaluates single coordinate series on frames [0, n).
// xs must be strictly increasing, len(xs) == len(ys) > 0.
func interpolateChannel(xs, ys []float64, n int) ([]float64, error) {
	values := make([]float64, n)
	if len(xs) == 1 {
		for i := range values {
			values[i] = ys[0]
		}
		return values, nil
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, err
	}
	first := int(xs[0])
	next := 0
	for i := range values {
		switch {
		case i < first:
			values[i] = ys[0]
		case next < len(xs) && int(xs[next]) == i:
			// Keep samples as is
			values[i] = ys[next]
			next++
		default:
			values[i] = pl.Predict(float64(i))
		}
	}
	return values, nil
}
