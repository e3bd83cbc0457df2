package tracking

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/LdDl/possession-go/possession"
)

const (
	// ClassPlayer is detector label of a player
	ClassPlayer = "player"
	// ClassBall is detector label of the ball
	ClassBall = "ball"
)

// Detection is a single object detection on a frame
type Detection struct {
	Box        possession.BoundingBox
	Confidence float64
	Class      string
}

// IsClass reports whether detection has given label. Comparison ignores case
func (d Detection) IsClass(class string) bool {
	return strings.EqualFold(d.Class, class)
}

// Matcher associates detections of a frame with stored tracks.
// Implemented by ByteTracker and IoUTracker.
type Matcher interface {
	// matchObjects sets identifier of the track to every matched detection and registers new tracks
	matchObjects(detections []*playerBlob, confidences []float64) error
	// tracked reports whether there is a stored track with given identifier
	tracked(id uuid.UUID) bool
}

// PlayerTracker turns per-frame player detections into frames of tracked players.
// Identifiers are sequential starting from 1 and never reused.
type PlayerTracker struct {
	tracker Matcher
	ids     map[uuid.UUID]possession.TrackID
	nextID  possession.TrackID
	logger  zerolog.Logger
}

// NewPlayerTracker creates tracker on top of given matcher.
// Pass nil to use DefaultByteTracker()
func NewPlayerTracker(tracker Matcher) *PlayerTracker {
	if tracker == nil {
		tracker = DefaultByteTracker()
	}
	return &PlayerTracker{
		tracker: tracker,
		ids:     make(map[uuid.UUID]possession.TrackID),
		nextID:  1,
		logger:  zerolog.Nop(),
	}
}

// SetLogger sets logger
func (pt *PlayerTracker) SetLogger(logger zerolog.Logger) {
	pt.logger = logger
}

// Step feeds detections of the next frame into the tracker.
// Detections of other classes are ignored.
func (pt *PlayerTracker) Step(frameIdx int, detections []Detection) (possession.PlayerFrame, error) {
	blobs := make([]*playerBlob, 0, len(detections))
	confidences := make([]float64, 0, len(detections))
	for i, det := range detections {
		if !det.IsClass(ClassPlayer) {
			continue
		}
		if err := det.Box.Validate(); err != nil {
			return nil, errors.Wrapf(err, "frame %d, detection %d", frameIdx, i)
		}
		blobs = append(blobs, newPlayerBlob(det.Box))
		confidences = append(confidences, det.Confidence)
	}
	if err := pt.tracker.matchObjects(blobs, confidences); err != nil {
		return nil, errors.Wrapf(err, "frame %d", frameIdx)
	}
	frame := make(possession.PlayerFrame, len(blobs))
	for _, blob := range blobs {
		if !pt.tracker.tracked(blob.id) {
			// Neither matched nor registered
			continue
		}
		trackID, ok := pt.ids[blob.id]
		if !ok {
			trackID = pt.nextID
			pt.nextID++
			pt.ids[blob.id] = trackID
			pt.logger.Debug().Int("frame", frameIdx).Int("track_id", int(trackID)).Msg("new player track")
		}
		frame[trackID] = blob.detectedBBox
	}
	pt.forgetLost()
	return frame, nil
}

// Track runs tracker over the whole sequence of frames
func (pt *PlayerTracker) Track(frames [][]Detection) ([]possession.PlayerFrame, error) {
	result := make([]possession.PlayerFrame, len(frames))
	for frameIdx, detections := range frames {
		frame, err := pt.Step(frameIdx, detections)
		if err != nil {
			return nil, err
		}
		result[frameIdx] = frame
	}
	pt.logger.Info().Int("frames", len(frames)).Int("tracks", int(pt.nextID)-1).Msg("players tracked")
	return result, nil
}

// forgetLost drops identifier mapping of tracks removed by the matcher
func (pt *PlayerTracker) forgetLost() {
	for id := range pt.ids {
		if !pt.tracker.tracked(id) {
			delete(pt.ids, id)
		}
	}
}

// SelectBall picks the most confident ball detection with confidence not less than minConfidence.
// Returns nil when there is no such detection.
func SelectBall(detections []Detection, minConfidence float64) *possession.BallDetection {
	var best *possession.BallDetection
	for _, det := range detections {
		if !det.IsClass(ClassBall) || det.Confidence < minConfidence {
			continue
		}
		if best == nil || det.Confidence > best.Confidence {
			best = &possession.BallDetection{Box: det.Box, Confidence: det.Confidence}
		}
	}
	return best
}

// BallFrames applies SelectBall to every frame
func BallFrames(frames [][]Detection, minConfidence float64) []*possession.BallDetection {
	balls := make([]*possession.BallDetection, len(frames))
	for i, detections := range frames {
		balls[i] = SelectBall(detections, minConfidence)
	}
	return balls
}
