package tracking

import (
	"sort"
	"strings"

	"github.com/arthurkushman/go-hungarian"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/LdDl/possession-go/possession"
)

// MatchingAlgorithm is for algorithm type for matching detections to tracks
type MatchingAlgorithm uint16

const (
	// MatchingAlgorithmHungarian uses the Hungarian algorithm (Kuhn-Munkres) for optimal assignment
	MatchingAlgorithmHungarian MatchingAlgorithm = iota
	// MatchingAlgorithmGreedy uses a greedy algorithm for faster but potentially suboptimal assignment
	MatchingAlgorithmGreedy
)

// ErrUnknownAlgorithm is returned for unsupported matching algorithm name
var ErrUnknownAlgorithm = errors.New("unknown matching algorithm")

// ParseMatchingAlgorithm converts "hungarian" or "greedy" to MatchingAlgorithm
func ParseMatchingAlgorithm(name string) (MatchingAlgorithm, error) {
	switch strings.ToLower(name) {
	case "hungarian":
		return MatchingAlgorithmHungarian, nil
	case "greedy":
		return MatchingAlgorithmGreedy, nil
	default:
		return 0, errors.Wrapf(ErrUnknownAlgorithm, "'%s'", name)
	}
}

// ByteTracker is implementation of Multi-object tracker (MOT) called ByteTrack.
type ByteTracker struct {
	// Maximum number of frames an object can be missing before it is removed
	maxDisappeared int
	// Minimal IoU between track and detection to be matched
	minIoU float64
	// High detection confidence threshold
	highThresh float64
	// Low detection confidence threshold
	lowThresh float64
	// Algorithm to use for matching
	algorithm MatchingAlgorithm
	// Main storage
	objects map[uuid.UUID]*trackedBlob
	// Registration counter. Gives stable iteration order over tracks
	registered int
}

// trackedBlob is a stored track with its registration number
type trackedBlob struct {
	*playerBlob
	seq int
}

// DefaultByteTracker creates a ByteTracker with default parameters.
// Lost tracks are kept for 30 frames.
func DefaultByteTracker() *ByteTracker {
	return NewByteTracker(30, 0.3, 0.5, 0.3, MatchingAlgorithmHungarian)
}

// NewByteTracker creates a new instance of ByteTracker with specified parameters.
func NewByteTracker(maxDisappeared int, minIoU, highThresh, lowThresh float64, algorithm MatchingAlgorithm) *ByteTracker {
	return &ByteTracker{
		maxDisappeared: maxDisappeared,
		minIoU:         minIoU,
		highThresh:     highThresh,
		lowThresh:      lowThresh,
		algorithm:      algorithm,
		objects:        make(map[uuid.UUID]*trackedBlob),
	}
}

// ActiveTracks returns number of tracks which are not lost
func (bt *ByteTracker) ActiveTracks() int {
	active := 0
	for _, track := range bt.objects {
		if track.noMatchTimes < bt.maxDisappeared {
			active++
		}
	}
	return active
}

// bboxPair is a helper struct to pair track ID with its bounding box.
type bboxPair struct {
	ID   uuid.UUID
	BBox possession.BoundingBox
}

// matchObjects matches detections of the current frame with existing tracks.
// Matched detections get identifier of the track, unmatched high confidence detections become new tracks.
// Detections which do not belong to any track after the call are not in bt.objects.
func (bt *ByteTracker) matchObjects(detections []*playerBlob, confidences []float64) error {
	if len(detections) != len(confidences) {
		return errors.Errorf("detections and confidences arrays must have the same length. Conf array size: %d. Detections array size: %d",
			len(confidences), len(detections))
	}

	// Predict next positions for all existing tracks via Kalman filter
	for _, track := range bt.objects {
		track.predictNextPosition()
	}

	// Get active tracks
	activeTrackBBoxes := make([]bboxPair, 0, len(bt.objects))
	for _, track := range sortedTracks(bt.objects) {
		if track.noMatchTimes < bt.maxDisappeared {
			activeTrackBBoxes = append(activeTrackBBoxes, bboxPair{
				ID:   track.id,
				BBox: track.predictedBBox,
			})
		}
	}

	matchedTracks := make(map[uuid.UUID]struct{})
	matchedDetections := make(map[int]struct{})

	// 1. First stage: Match high confidence detections
	highDetectionIndices := make([]int, 0)
	for i, conf := range confidences {
		if conf >= bt.highThresh {
			highDetectionIndices = append(highDetectionIndices, i)
		}
	}
	if len(activeTrackBBoxes) > 0 && len(highDetectionIndices) > 0 {
		iouMatrix := bt.createIoUMatrix(activeTrackBBoxes, highDetectionIndices, detections)
		matches := bt.performMatching(iouMatrix, activeTrackBBoxes, highDetectionIndices)
		err := bt.processMatches(matches, activeTrackBBoxes, highDetectionIndices, iouMatrix, detections, matchedTracks, matchedDetections)
		if err != nil {
			return errors.Wrap(err, "error processing matches in stage 1")
		}
	}

	// 2. Second stage: Match low confidence detections with remaining tracks
	unmatchedTrackBBoxes := make([]bboxPair, 0)
	for _, pair := range activeTrackBBoxes {
		if _, found := matchedTracks[pair.ID]; !found {
			unmatchedTrackBBoxes = append(unmatchedTrackBBoxes, pair)
		}
	}
	lowDetectionIndices := make([]int, 0)
	for i, conf := range confidences {
		if _, found := matchedDetections[i]; !found {
			if conf < bt.highThresh && conf >= bt.lowThresh {
				lowDetectionIndices = append(lowDetectionIndices, i)
			}
		}
	}
	if len(unmatchedTrackBBoxes) > 0 && len(lowDetectionIndices) > 0 {
		iouMatrix := bt.createIoUMatrix(unmatchedTrackBBoxes, lowDetectionIndices, detections)
		matches := bt.performMatching(iouMatrix, unmatchedTrackBBoxes, lowDetectionIndices)
		err := bt.processMatches(matches, unmatchedTrackBBoxes, lowDetectionIndices, iouMatrix, detections, matchedTracks, matchedDetections)
		if err != nil {
			return errors.Wrap(err, "error processing matches in stage 2")
		}
	}

	// 3. Add new tracks for unmatched high confidence detections
	for _, detIdx := range highDetectionIndices {
		if _, found := matchedDetections[detIdx]; !found {
			newBlob := detections[detIdx]
			bt.objects[newBlob.id] = &trackedBlob{playerBlob: newBlob, seq: bt.registered}
			bt.registered++
			matchedTracks[newBlob.id] = struct{}{}
		}
	}

	// 4. Increment no_match_times for unmatched tracks
	for id, track := range bt.objects {
		if _, found := matchedTracks[id]; !found {
			track.noMatchTimes++
		}
	}

	// 5. Remove tracks that have disappeared for too long
	for id, track := range bt.objects {
		if track.noMatchTimes >= bt.maxDisappeared {
			delete(bt.objects, id)
		}
	}
	return nil
}

func (bt *ByteTracker) tracked(id uuid.UUID) bool {
	_, ok := bt.objects[id]
	return ok
}

// sortedTracks returns tracks in registration order
func sortedTracks(objects map[uuid.UUID]*trackedBlob) []*trackedBlob {
	tracks := make([]*trackedBlob, 0, len(objects))
	for _, track := range objects {
		tracks = append(tracks, track)
	}
	sort.Slice(tracks, func(i, j int) bool {
		return tracks[i].seq < tracks[j].seq
	})
	return tracks
}

// createIoUMatrix is helper function to create IoU matrix: rows are tracks, columns are detections.
func (bt *ByteTracker) createIoUMatrix(trackBBoxes []bboxPair, detectionIndices []int, allDetections []*playerBlob) [][]float64 {
	iouMatrix := make([][]float64, len(trackBBoxes))
	for i, trkBox := range trackBBoxes {
		row := make([]float64, len(detectionIndices))
		for j, detIdx := range detectionIndices {
			row[j] = possession.IoU(trkBox.BBox, allDetections[detIdx].detectedBBox)
		}
		iouMatrix[i] = row
	}
	return iouMatrix
}

// performMatching is helper function to perform matching using Hungarian or Greedy algorithm.
// Returns: a slice of [2]int, where each element is {trackIndexInTrackBBoxes, detectionIndexInDetectionIndices}.
func (bt *ByteTracker) performMatching(iouMatrix [][]float64, trackBBoxes []bboxPair, detectionIndices []int) [][2]int {
	switch bt.algorithm {
	case MatchingAlgorithmHungarian:
		return bt.performHungarianMatching(iouMatrix, trackBBoxes, detectionIndices)
	default:
		return bt.performGreedyMatching(iouMatrix, trackBBoxes, detectionIndices)
	}
}

func (bt *ByteTracker) performHungarianMatching(iouMatrix [][]float64, trackBBoxes []bboxPair, detectionIndices []int) [][2]int {
	numTracks := len(trackBBoxes)
	numDetections := len(detectionIndices)
	if numTracks == 0 || numDetections == 0 {
		return [][2]int{}
	}
	// Rectangular matrix is padded with zeros (lowest IoU) to make it square
	paddedMatrix := iouMatrix
	if numTracks != numDetections {
		paddedSize := max(numTracks, numDetections)
		paddedMatrix = make([][]float64, paddedSize)
		for i := 0; i < paddedSize; i++ {
			paddedMatrix[i] = make([]float64, paddedSize)
			if i < numTracks {
				copy(paddedMatrix[i], iouMatrix[i])
			}
		}
	}
	assignmentsMap := hungarian.SolveMax(paddedMatrix)
	matches := make([][2]int, 0, len(assignmentsMap))
	for trackIndex, rowMap := range assignmentsMap {
		for detectionIndex := range rowMap {
			// Padding rows and columns are dummies
			if trackIndex < numTracks && detectionIndex < numDetections {
				matches = append(matches, [2]int{trackIndex, detectionIndex})
			}
			break
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i][0] < matches[j][0]
	})
	return matches
}

// performGreedyMatching is helper function for greedy matching.
func (bt *ByteTracker) performGreedyMatching(iouMatrix [][]float64, trackBBoxes []bboxPair, detectionIndices []int) [][2]int {
	matches := make([][2]int, 0)
	matchedDetIndicesInStage := make(map[int]struct{})
	for i := range trackBBoxes {
		bestIoU := -1.0
		bestDetIdxInStage := -1
		for j := range detectionIndices {
			if _, found := matchedDetIndicesInStage[j]; found {
				continue
			}
			currentIoU := iouMatrix[i][j]
			if currentIoU > bestIoU && currentIoU >= bt.minIoU {
				bestIoU = currentIoU
				bestDetIdxInStage = j
			}
		}
		if bestDetIdxInStage != -1 {
			matches = append(matches, [2]int{i, bestDetIdxInStage})
			matchedDetIndicesInStage[bestDetIdxInStage] = struct{}{}
		}
	}
	return matches
}

// processMatches updates tracks and marks matched entities.
// Matched detection takes identifier of the track.
func (bt *ByteTracker) processMatches(
	matches [][2]int,
	trackBBoxes []bboxPair,
	detectionIndices []int,
	iouMatrix [][]float64,
	allDetections []*playerBlob,
	matchedTracks map[uuid.UUID]struct{},
	matchedDetections map[int]struct{},
) error {
	for _, match := range matches {
		trackIdxInStage := match[0]
		detIdxInStage := match[1]
		if iouMatrix[trackIdxInStage][detIdxInStage] < bt.minIoU {
			continue
		}
		trackID := trackBBoxes[trackIdxInStage].ID
		originalDetIdx := detectionIndices[detIdxInStage]
		track, ok := bt.objects[trackID]
		if !ok {
			continue
		}
		detection := allDetections[originalDetIdx]
		if err := track.update(detection); err != nil {
			return errors.Wrapf(err, "failed to update track %s", trackID)
		}
		detection.id = trackID
		matchedTracks[trackID] = struct{}{}
		matchedDetections[originalDetIdx] = struct{}{}
	}
	return nil
}
