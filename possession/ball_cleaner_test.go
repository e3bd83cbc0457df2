package possession

import (
	"testing"

	"github.com/pkg/errors"
)

func ballAt(x, y float64) *BallDetection {
	return &BallDetection{Box: BoundingBox{X1: x, Y1: y, X2: x + 10, Y2: y + 10}, Confidence: 0.9}
}

func toDetections(boxes []*BoundingBox) []*BallDetection {
	detections := make([]*BallDetection, len(boxes))
	for i, box := range boxes {
		if box != nil {
			detections[i] = &BallDetection{Box: *box, Confidence: 1.0}
		}
	}
	return detections
}

func TestRejectOutliers(t *testing.T) {
	cleaner := NewBallTrajectoryCleanerDefault()

	// Gap is 1, allowed is 25
	filtered, err := cleaner.RejectOutliers([]*BallDetection{ballAt(0, 0), ballAt(1000, 0)})
	if err != nil {
		t.Fatal(err)
	}
	if filtered[0] == nil {
		t.Error("Anchor detection should be accepted")
	}
	if filtered[1] != nil {
		t.Errorf("Detection displaced by 1000 should be discarded, got %v", *filtered[1])
	}

	filtered, err = cleaner.RejectOutliers([]*BallDetection{ballAt(0, 0), ballAt(20, 0)})
	if err != nil {
		t.Fatal(err)
	}
	if filtered[1] == nil {
		t.Error("Detection displaced by 20 should be accepted")
	}
}

func TestRejectOutliersTrustChain(t *testing.T) {
	cleaner := NewBallTrajectoryCleanerDefault()
	raw := []*BallDetection{
		ballAt(0, 0),
		// Teleport: rejected, trusted frame stays 0
		ballAt(500, 500),
		nil,
		// Gap is 3 (frames 0 -> 3), allowed is 75
		ballAt(70, 0),
		// Compared against frame 3, not against frame 1
		ballAt(90, 0),
		ballAt(500, 500),
	}
	filtered, err := cleaner.RejectOutliers(raw)
	if err != nil {
		t.Fatal(err)
	}
	expectedKept := []bool{true, false, false, true, true, false}
	for i, kept := range expectedKept {
		if (filtered[i] != nil) != kept {
			t.Errorf("Frame %d: kept = %v, expected %v", i, filtered[i] != nil, kept)
		}
	}
}

func TestRejectOutliersIdempotence(t *testing.T) {
	cleaner := NewBallTrajectoryCleanerDefault()
	raw := []*BallDetection{
		nil,
		ballAt(100, 100),
		ballAt(110, 104),
		ballAt(900, 20),
		nil,
		ballAt(150, 120),
		ballAt(148, 500),
		ballAt(160, 125),
		nil,
		ballAt(10, 10),
		ballAt(200, 140),
	}
	once, err := cleaner.RejectOutliers(raw)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := cleaner.RejectOutliers(toDetections(once))
	if err != nil {
		t.Fatal(err)
	}
	for i := range once {
		if (once[i] == nil) != (twice[i] == nil) {
			t.Errorf("Frame %d changed on the second pass: %v -> %v", i, once[i], twice[i])
			continue
		}
		if once[i] != nil && *once[i] != *twice[i] {
			t.Errorf("Frame %d changed on the second pass: %v -> %v", i, *once[i], *twice[i])
		}
	}
}

func TestRejectOutliersInvalidBox(t *testing.T) {
	cleaner := NewBallTrajectoryCleanerDefault()
	raw := []*BallDetection{
		ballAt(0, 0),
		{Box: BoundingBox{X1: 10, Y1: 10, X2: 5, Y2: 20}},
	}
	_, err := cleaner.RejectOutliers(raw)
	if !errors.Is(err, ErrInvalidBox) {
		t.Errorf("Expected ErrInvalidBox, got %v", err)
	}
}

func TestRejectOutliersZeroAreaBall(t *testing.T) {
	cleaner := NewBallTrajectoryCleanerDefault()
	raw := []*BallDetection{
		{Box: BoundingBox{X1: 100, Y1: 100, X2: 100, Y2: 110}},
		// Would be an outlier if the zero-area box became the anchor
		ballAt(0, 0),
		ballAt(10, 0),
	}
	filtered, err := cleaner.RejectOutliers(raw)
	if err != nil {
		t.Fatalf("Zero-area ball should not be an error: %v", err)
	}
	if filtered[0] != nil {
		t.Errorf("Zero-area ball should be treated as absent, got %v", *filtered[0])
	}
	if filtered[1] == nil || filtered[2] == nil {
		t.Error("Detections after zero-area ball should be kept")
	}
}

func TestOutlierFilterFrameOrder(t *testing.T) {
	filter := NewOutlierFilter(25.0)
	box := BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10}
	if accepted, err := filter.Accept(5, box); err != nil || !accepted {
		t.Fatalf("Anchor should be accepted: %v, %v", accepted, err)
	}
	if _, err := filter.Accept(5, box); !errors.Is(err, ErrFrameOrder) {
		t.Errorf("Expected ErrFrameOrder, got %v", err)
	}
	// Rejected detection still moves the frame order forward
	if accepted, err := filter.Accept(7, BoundingBox{X1: 1000, Y1: 1000, X2: 1010, Y2: 1010}); err != nil || accepted {
		t.Fatalf("Teleport should be rejected without error: %v, %v", accepted, err)
	}
	if _, err := filter.Accept(6, box); !errors.Is(err, ErrFrameOrder) {
		t.Errorf("Expected ErrFrameOrder for frame before rejected one, got %v", err)
	}
	filter.Reset()
	if accepted, err := filter.Accept(0, BoundingBox{X1: 1000, Y1: 1000, X2: 1010, Y2: 1010}); err != nil || !accepted {
		t.Errorf("Detection after reset should become new anchor: %v, %v", accepted, err)
	}
}

func TestInterpolateGapsExactness(t *testing.T) {
	cleaner := NewBallTrajectoryCleanerDefault()
	filtered := make([]*BoundingBox, 11)
	filtered[0] = &BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10}
	filtered[10] = &BoundingBox{X1: 100, Y1: 100, X2: 110, Y2: 110}
	cleaned, err := cleaner.InterpolateGaps(filtered)
	if err != nil {
		t.Fatal(err)
	}
	for i, box := range cleaned {
		if box == nil {
			t.Fatalf("Frame %d should be interpolated", i)
		}
	}
	middle := *cleaned[5]
	expected := BoundingBox{X1: 50, Y1: 50, X2: 60, Y2: 60}
	if middle != expected {
		t.Errorf("Wrong interpolated box: %v, expected %v", middle, expected)
	}
	if *cleaned[0] != *filtered[0] || *cleaned[10] != *filtered[10] {
		t.Error("Valid samples should stay as is")
	}
}

func TestInterpolateGapsLeadingFill(t *testing.T) {
	cleaner := NewBallTrajectoryCleanerDefault()
	filtered := make([]*BoundingBox, 8)
	filtered[3] = &BoundingBox{X1: 100, Y1: 100, X2: 110, Y2: 110}
	filtered[7] = &BoundingBox{X1: 120, Y1: 100, X2: 130, Y2: 110}
	cleaned, err := cleaner.InterpolateGaps(filtered)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if cleaned[i] == nil || *cleaned[i] != *filtered[3] {
			t.Errorf("Frame %d: %v, expected %v", i, cleaned[i], *filtered[3])
		}
	}
}

func TestInterpolateGapsTrailing(t *testing.T) {
	cleaner := NewBallTrajectoryCleanerDefault()
	n := 15
	filtered := make([]*BoundingBox, n)
	filtered[2] = &BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10}
	filtered[n-5] = &BoundingBox{X1: 40, Y1: 0, X2: 50, Y2: 10}
	cleaned, err := cleaner.InterpolateGaps(filtered)
	if err != nil {
		t.Fatal(err)
	}
	if cleaned[n-5] == nil {
		t.Fatal("Last valid sample should stay")
	}
	for i := n - 4; i < n; i++ {
		if cleaned[i] != nil {
			t.Errorf("Frame %d should stay unresolved, got %v", i, *cleaned[i])
		}
	}
}

func TestInterpolateGapsNoSamples(t *testing.T) {
	cleaner := NewBallTrajectoryCleanerDefault()
	cleaned, err := cleaner.InterpolateGaps(make([]*BoundingBox, 5))
	if err != nil {
		t.Fatal(err)
	}
	if len(cleaned) != 5 {
		t.Fatalf("Wrong length: %d, expected 5", len(cleaned))
	}
	for i, box := range cleaned {
		if box != nil {
			t.Errorf("Frame %d should stay unresolved", i)
		}
	}
}

func TestInterpolateGapsSingleSample(t *testing.T) {
	cleaner := NewBallTrajectoryCleanerDefault()
	filtered := make([]*BoundingBox, 6)
	filtered[2] = &BoundingBox{X1: 5, Y1: 5, X2: 15, Y2: 15}
	cleaned, err := cleaner.InterpolateGaps(filtered)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i <= 2; i++ {
		if cleaned[i] == nil || *cleaned[i] != *filtered[2] {
			t.Errorf("Frame %d: %v, expected %v", i, cleaned[i], *filtered[2])
		}
	}
	for i := 3; i < 6; i++ {
		if cleaned[i] != nil {
			t.Errorf("Frame %d should stay unresolved", i)
		}
	}
}

func TestClean(t *testing.T) {
	cleaner := NewBallTrajectoryCleanerDefault()
	raw := []*BallDetection{
		ballAt(0, 0),
		ballAt(800, 800),
		ballAt(20, 0),
		nil,
	}
	cleaned, err := cleaner.Clean(raw)
	if err != nil {
		t.Fatal(err)
	}
	if cleaned[1] == nil {
		t.Fatal("Rejected detection should be replaced by interpolation")
	}
	expected := BoundingBox{X1: 10, Y1: 0, X2: 20, Y2: 10}
	if *cleaned[1] != expected {
		t.Errorf("Wrong box: %v, expected %v", *cleaned[1], expected)
	}
	if cleaned[3] != nil {
		t.Errorf("Trailing frame should stay unresolved, got %v", *cleaned[3])
	}
}
