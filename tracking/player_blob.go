package tracking

import (
	"math"

	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/LdDl/possession-go/possession"
)

// playerBlob is a tracked player using 8-D Kalman filter for full bounding box dynamics.
// State vector: [cx, cy, w, h, vx, vy, vw, vh] - center position, size, and velocities.
type playerBlob struct {
	id uuid.UUID
	// Last box assigned to the blob. For matched tracks it is the detection itself, not the smoothed state
	detectedBBox  possession.BoundingBox
	predictedBBox possession.BoundingBox
	noMatchTimes  int
	tracker       *kalman_filter.KalmanBBox
}

// newPlayerBlobWithTime creates a new playerBlob with specified time step.
func newPlayerBlobWithTime(box possession.BoundingBox, dt float64) *playerBlob {
	center := box.Center()

	// Kalman filter props
	uCx := 1.0
	uCy := 1.0
	uW := 0.0
	uH := 0.0
	stdDevA := 2.0
	stdDevMCx := 0.1
	stdDevMCy := 0.1
	stdDevMW := 0.1
	stdDevMH := 0.1
	kf := kalman_filter.NewKalmanBBox(
		dt, uCx, uCy, uW, uH,
		stdDevA, stdDevMCx, stdDevMCy, stdDevMW, stdDevMH,
		kalman_filter.WithStateBBox(center.X, center.Y, box.Width(), box.Height()),
	)
	return &playerBlob{
		id:            uuid.New(),
		detectedBBox:  box,
		predictedBBox: box,
		noMatchTimes:  0,
		tracker:       kf,
	}
}

// newPlayerBlob creates a new playerBlob with default time step of 1.0.
func newPlayerBlob(box possession.BoundingBox) *playerBlob {
	return newPlayerBlobWithTime(box, 1.0)
}

// predictNextPosition executes Kalman filter prediction step.
// Degenerate predictions (non-positive size) keep the previous predicted box.
func (blob *playerBlob) predictNextPosition() {
	blob.tracker.Predict()
	cx, cy, w, h := blob.tracker.GetState()
	if !(w > 0) || !(h > 0) || math.IsInf(w, 0) || math.IsInf(h, 0) {
		return
	}
	blob.predictedBBox = possession.BoundingBox{
		X1: cx - w/2.0,
		Y1: cy - h/2.0,
		X2: cx + w/2.0,
		Y2: cy + h/2.0,
	}
}

// update executes Kalman filter update step with the matched detection
func (blob *playerBlob) update(newBlob *playerBlob) error {
	newBBox := newBlob.detectedBBox
	center := newBBox.Center()
	err := blob.tracker.Update(center.X, center.Y, newBBox.Width(), newBBox.Height())
	if err != nil {
		return errors.Wrap(err, "Can't update object tracker")
	}
	blob.detectedBBox = newBBox
	blob.noMatchTimes = 0
	return nil
}
