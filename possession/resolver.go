package possession

import (
	"math"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// PlayerFrame maps track identifier to player's bounding box on a single frame.
// Iteration order over the map never affects the results.
type PlayerFrame map[TrackID]BoundingBox

// streak is a consecutive-frame counter of a single player being the raw candidate
type streak struct {
	count int
	// Last frame the counter has been touched
	lastSeen int
}

// PossessionResolver decides which player holds the ball on each frame.
// Player has to be the raw (per-frame) candidate for minFrames consecutive frames to be reported.
type PossessionResolver struct {
	// Minimal fraction of ball's area inside player's box to treat the ball as contained. Default is 0.5
	containmentThreshold float64
	// Maximal key-point distance for players not containing the ball. Default is 0.5
	possessionThreshold float64
	// Consecutive frames required to commit possession. Default is 11
	minFrames int
	// Drop counters untouched for more than this number of frames. Default is 150. Non-positive disables eviction
	evictAfter int

	streaks map[TrackID]*streak
	// Committed possessor of the previous processed frame
	committed    TrackID
	hasCommitted bool
	lastFrame    int
	started      bool

	logger zerolog.Logger
}

// NewPossessionResolverDefault creates default instance of PossessionResolver
func NewPossessionResolverDefault() *PossessionResolver {
	return NewPossessionResolver(0.5, 0.5, 11, 150)
}

// NewPossessionResolver creates new instance of PossessionResolver
func NewPossessionResolver(containmentThreshold, possessionThreshold float64, minFrames, evictAfter int) *PossessionResolver {
	return &PossessionResolver{
		containmentThreshold: containmentThreshold,
		possessionThreshold:  possessionThreshold,
		minFrames:            minFrames,
		evictAfter:           evictAfter,
		streaks:              make(map[TrackID]*streak),
		logger:               zerolog.Nop(),
	}
}

// SetLogger sets logger for debug events
func (resolver *PossessionResolver) SetLogger(logger zerolog.Logger) {
	resolver.logger = logger
}

// Reset clears hysteresis state so resolver could be used for another run
func (resolver *PossessionResolver) Reset() {
	resolver.streaks = make(map[TrackID]*streak)
	resolver.hasCommitted = false
	resolver.started = false
	resolver.lastFrame = 0
}

// FindCandidate returns the raw possession candidate for a single frame.
// Players containing more than containmentThreshold of the ball go first, the highest ratio wins.
// Otherwise the player with the smallest key-point distance wins if that distance is below possessionThreshold.
// Ties are broken by ascending track identifier.
func (resolver *PossessionResolver) FindCandidate(players PlayerFrame, ball BoundingBox) (TrackID, bool, error) {
	ballCenter := ball.Center()
	highContainment := make(candidateHeap, 0, len(players))
	regularDistance := make(candidateHeap, 0, len(players))
	for playerID, playerBox := range players {
		if err := playerBox.Validate(); err != nil {
			return 0, false, errors.Wrapf(err, "player %d", playerID)
		}
		ratio := ContainmentRatio(playerBox, ball)
		if ratio > resolver.containmentThreshold {
			// Negate ratio: heap pops the smallest score
			highContainment.Push(&candidate{id: playerID, score: -ratio})
			continue
		}
		regularDistance.Push(&candidate{id: playerID, score: KeyPointDistance(playerBox, ballCenter)})
	}
	if highContainment.Len() > 0 {
		return highContainment.Pop().id, true, nil
	}
	if regularDistance.Len() > 0 {
		best := regularDistance.Pop()
		if best.score < resolver.possessionThreshold {
			return best.id, true, nil
		}
	}
	return 0, false, nil
}

// Update processes a single frame and returns committed possessor of the ball (if any).
// Frames must be fed in increasing order. Nil ball means there is no raw candidate on the frame.
func (resolver *PossessionResolver) Update(frameIdx int, players PlayerFrame, ball *BoundingBox) (TrackID, bool, error) {
	if resolver.started && frameIdx <= resolver.lastFrame {
		return 0, false, errors.Wrapf(ErrFrameOrder, "frame %d after frame %d", frameIdx, resolver.lastFrame)
	}
	var (
		playerID TrackID
		found    bool
	)
	if ball != nil {
		if !ball.ordered() {
			return 0, false, errors.Wrapf(ErrInvalidBox, "ball on frame %d: (%v, %v, %v, %v)", frameIdx, ball.X1, ball.Y1, ball.X2, ball.Y2)
		}
		var err error
		playerID, found, err = resolver.FindCandidate(players, *ball)
		if err != nil {
			return 0, false, errors.Wrapf(err, "frame %d", frameIdx)
		}
	}
	resolver.started = true
	resolver.lastFrame = frameIdx

	if !found {
		// Any frame without raw candidate discards all progress
		clear(resolver.streaks)
		resolver.setCommitted(frameIdx, 0, false)
		return 0, false, nil
	}

	counter, ok := resolver.streaks[playerID]
	if !ok {
		counter = &streak{}
		resolver.streaks[playerID] = counter
	}
	// Counters of other candidates are kept as is, so a returning player resumes its count
	counter.count++
	counter.lastSeen = frameIdx
	resolver.evict(frameIdx)

	if counter.count >= resolver.minFrames {
		resolver.setCommitted(frameIdx, playerID, true)
		return playerID, true, nil
	}
	resolver.setCommitted(frameIdx, 0, false)
	return 0, false, nil
}

// Resolve runs the resolver over the whole video from scratch.
// Output has the same length as input, nil means nobody possesses the ball on the frame.
func (resolver *PossessionResolver) Resolve(players []PlayerFrame, balls []*BoundingBox) ([]*TrackID, error) {
	if len(players) != len(balls) {
		return nil, errors.Wrapf(ErrLengthMismatch, "players: %d, balls: %d", len(players), len(balls))
	}
	resolver.Reset()
	possession := make([]*TrackID, len(players))
	for frameIdx := range players {
		playerID, ok, err := resolver.Update(frameIdx, players[frameIdx], balls[frameIdx])
		if err != nil {
			return nil, err
		}
		if ok {
			possession[frameIdx] = &playerID
		}
	}
	return possession, nil
}

// StreakOf returns current consecutive-frame counter for the player (0 if there is none)
func (resolver *PossessionResolver) StreakOf(playerID TrackID) int {
	if counter, ok := resolver.streaks[playerID]; ok {
		return counter.count
	}
	return 0
}

func (resolver *PossessionResolver) evict(frameIdx int) {
	if resolver.evictAfter <= 0 {
		return
	}
	for playerID, counter := range resolver.streaks {
		if frameIdx-counter.lastSeen > resolver.evictAfter {
			delete(resolver.streaks, playerID)
		}
	}
}

func (resolver *PossessionResolver) setCommitted(frameIdx int, playerID TrackID, ok bool) {
	switch {
	case ok && (!resolver.hasCommitted || resolver.committed != playerID):
		resolver.logger.Debug().Int("frame", frameIdx).Int("player", int(playerID)).Msg("possession committed")
	case !ok && resolver.hasCommitted:
		resolver.logger.Debug().Int("frame", frameIdx).Int("player", int(resolver.committed)).Msg("possession lost")
	}
	resolver.committed = playerID
	resolver.hasCommitted = ok
}

// ordered is a relaxed validity check: zero-area boxes are allowed, inverted or NaN ones are not
func (box BoundingBox) ordered() bool {
	for _, v := range [4]float64{box.X1, box.Y1, box.X2, box.Y2} {
		if math.IsNaN(v) {
			return false
		}
	}
	return box.X1 <= box.X2 && box.Y1 <= box.Y2
}
