package tracking

import (
	"container/heap"
	"math"

	"github.com/google/uuid"

	"github.com/LdDl/possession-go/possession"
)

// IoUTracker is a naive implementation of Multi-object tracker (MOT) with IoU matching.
// Uses hybrid IoU + distance matching for better recovery when IoU is zero.
// Detection confidences are not used.
type IoUTracker struct {
	// Max no match (max number of frames when object could not be found again)
	maxNoMatch int
	// Threshold for combined IoU + distance score
	scoreThreshold float64
	// Storage for tracked objects
	objects    map[uuid.UUID]*trackedBlob
	registered int
}

// NewDefaultIoUTracker creates a default instance of IoUTracker.
// Default values: maxNoMatch=75, scoreThreshold=0.0
func NewDefaultIoUTracker() *IoUTracker {
	return NewIoUTracker(75, 0.0)
}

// NewIoUTracker creates a new instance of IoUTracker with specified parameters.
func NewIoUTracker(maxNoMatch int, scoreThreshold float64) *IoUTracker {
	return &IoUTracker{
		maxNoMatch:     maxNoMatch,
		scoreThreshold: scoreThreshold,
		objects:        make(map[uuid.UUID]*trackedBlob),
	}
}

// iouDistanceBlob holds a detection with its match score and target ID for priority queue
type iouDistanceBlob struct {
	score    float64
	targetID uuid.UUID
	blob     *playerBlob
	// Position of detection on the frame. Equal scores are processed in detection order
	order int
	index int
}

// iouHeap implements heap.Interface for max-heap by score
type iouHeap []*iouDistanceBlob

func (h iouHeap) Len() int { return len(h) }

// Less returns true if i has higher score (max-heap)
func (h iouHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score > h[j].score
	}
	return h[i].order < h[j].order
}

func (h iouHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *iouHeap) Push(x any) {
	n := len(*h)
	item := x.(*iouDistanceBlob)
	item.index = n
	*h = append(*h, item)
}

func (h *iouHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// hybridScore favors IoU when boxes overlap and falls back to center distance otherwise
func hybridScore(detected, predicted possession.BoundingBox) float64 {
	iouValue := possession.IoU(detected, predicted)
	dc, pc := detected.Center(), predicted.Center()
	distance := math.Hypot(dc.X-pc.X, dc.Y-pc.Y)
	// Convert to 0-1 similarity
	distanceScore := 1.0 / (1.0 + distance*0.01)
	if iouValue > 0.05 {
		return iouValue*0.8 + distanceScore*0.2
	}
	// Lower weight for pure distance matching
	return distanceScore * 0.5
}

func (tracker *IoUTracker) tracked(id uuid.UUID) bool {
	_, ok := tracker.objects[id]
	return ok
}

// ActiveTracks returns number of stored tracks
func (tracker *IoUTracker) ActiveTracks() int {
	return len(tracker.objects)
}

// matchObjects matches new detections to existing tracked objects using hybrid IoU + distance.
func (tracker *IoUTracker) matchObjects(detections []*playerBlob, _ []float64) error {
	tracks := sortedTracks(tracker.objects)

	// Build priority queue with IoU/distance scores
	pq := &iouHeap{}
	heap.Init(pq)
	for i, detection := range detections {
		var maxID uuid.UUID
		maxScore := 0.0
		for _, track := range tracks {
			score := hybridScore(detection.detectedBBox, track.predictedBBox)
			if score > maxScore {
				maxScore = score
				maxID = track.id
			}
		}
		heap.Push(pq, &iouDistanceBlob{
			score:    maxScore,
			targetID: maxID,
			blob:     detection,
			order:    i,
		})
	}

	// Prevent double update of objects
	reservedObjects := make(map[uuid.UUID]struct{})
	blobsToRegister := make([]*playerBlob, 0)

	// Process matches from highest score to lowest
	for pq.Len() > 0 {
		item := heap.Pop(pq).(*iouDistanceBlob)
		if _, reserved := reservedObjects[item.targetID]; reserved || item.score <= tracker.scoreThreshold {
			blobsToRegister = append(blobsToRegister, item.blob)
			continue
		}
		existingObj, ok := tracker.objects[item.targetID]
		if !ok {
			blobsToRegister = append(blobsToRegister, item.blob)
			continue
		}
		// Advance time and update in correct order
		existingObj.predictNextPosition()
		if err := existingObj.update(item.blob); err != nil {
			return err
		}
		item.blob.id = item.targetID
		reservedObjects[item.targetID] = struct{}{}
	}

	// Handle unmatched objects (predict forward for track maintenance)
	for id, object := range tracker.objects {
		if _, reserved := reservedObjects[id]; !reserved {
			object.predictNextPosition()
			object.noMatchTimes++
		}
	}

	// Add new objects to tracker
	for _, blob := range blobsToRegister {
		tracker.objects[blob.id] = &trackedBlob{playerBlob: blob, seq: tracker.registered}
		tracker.registered++
	}

	// Clean up existing data - remove objects not found for a long time
	for id, object := range tracker.objects {
		if object.noMatchTimes > tracker.maxNoMatch {
			delete(tracker.objects, id)
		}
	}
	return nil
}
