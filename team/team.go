package team

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/LdDl/possession-go/possession"
)

// Team is identifier of a team. Zero value means team is unknown
type Team int

const (
	// TeamUnknown is for players the classifier could not label
	TeamUnknown Team = iota
	TeamOne
	TeamTwo
)

// ErrInvalidResetPeriod is returned for non-positive cache reset period
var ErrInvalidResetPeriod = errors.New("cache reset period must be positive")

// Classifier tells which team a player belongs to.
// Implementations usually run an appearance model over the player's crop.
type Classifier interface {
	Classify(frameIdx int, player possession.TrackID, box possession.BoundingBox) (Team, error)
}

// Assigner assigns teams to tracked players with a per-run cache.
// Cache is cleared on every frame with index divisible by resetEvery, so a single misclassification does not stick forever.
type Assigner struct {
	classifier Classifier
	resetEvery int
	cache      map[possession.TrackID]Team
	logger     zerolog.Logger
}

// NewAssignerDefault creates Assigner which resets its cache every 50 frames
func NewAssignerDefault(classifier Classifier) *Assigner {
	assigner, _ := NewAssigner(classifier, 50)
	return assigner
}

// NewAssigner creates new instance of Assigner
func NewAssigner(classifier Classifier, resetEvery int) (*Assigner, error) {
	if resetEvery <= 0 {
		return nil, errors.Wrapf(ErrInvalidResetPeriod, "got %d", resetEvery)
	}
	return &Assigner{
		classifier: classifier,
		resetEvery: resetEvery,
		cache:      make(map[possession.TrackID]Team),
		logger:     zerolog.Nop(),
	}, nil
}

// SetLogger sets logger
func (assigner *Assigner) SetLogger(logger zerolog.Logger) {
	assigner.logger = logger
}

// AssignFrames returns team of every tracked player on every frame
func (assigner *Assigner) AssignFrames(players []possession.PlayerFrame) ([]map[possession.TrackID]Team, error) {
	assigner.cache = make(map[possession.TrackID]Team)
	assignment := make([]map[possession.TrackID]Team, len(players))
	for frameIdx, frame := range players {
		if frameIdx%assigner.resetEvery == 0 && len(assigner.cache) > 0 {
			assigner.logger.Debug().Int("frame", frameIdx).Int("cached", len(assigner.cache)).Msg("team cache reset")
			assigner.cache = make(map[possession.TrackID]Team)
		}
		assignment[frameIdx] = make(map[possession.TrackID]Team, len(frame))
		for playerID, box := range frame {
			team, err := assigner.playerTeam(frameIdx, playerID, box)
			if err != nil {
				return nil, err
			}
			assignment[frameIdx][playerID] = team
		}
	}
	return assignment, nil
}

func (assigner *Assigner) playerTeam(frameIdx int, playerID possession.TrackID, box possession.BoundingBox) (Team, error) {
	if team, ok := assigner.cache[playerID]; ok {
		return team, nil
	}
	team, err := assigner.classifier.Classify(frameIdx, playerID, box)
	if err != nil {
		return TeamUnknown, errors.Wrapf(err, "can't classify player %d on frame %d", playerID, frameIdx)
	}
	assigner.cache[playerID] = team
	return team, nil
}

// BallControl returns team in control of the ball on every frame.
// Frames without committed possession keep the last known team.
// Frames before the first possession have TeamUnknown.
func BallControl(possessors []*possession.TrackID, teams []map[possession.TrackID]Team) ([]Team, error) {
	if len(possessors) != len(teams) {
		return nil, errors.Wrapf(possession.ErrLengthMismatch, "possession: %d, teams: %d", len(possessors), len(teams))
	}
	control := make([]Team, len(possessors))
	last := TeamUnknown
	for frameIdx, playerID := range possessors {
		if playerID != nil {
			if team, ok := teams[frameIdx][*playerID]; ok && team != TeamUnknown {
				last = team
			}
		}
		control[frameIdx] = last
	}
	return control, nil
}
