package possession

import (
	"math"

	"github.com/pkg/errors"
)

// TrackID is an identifier assigned to a player by the external tracker
type TrackID int

// Point is a 2D point on the image plane
type Point struct {
	X float64
	Y float64
}

// BoundingBox is an axis-aligned box in (x1, y1, x2, y2) format.
// (X1, Y1) is the top-left corner, (X2, Y2) is the bottom-right one.
// Valid box always satisfies X1 < X2 and Y1 < Y2.
type BoundingBox struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

// NewBoundingBox creates new BoundingBox and validates it
func NewBoundingBox(x1, y1, x2, y2 float64) (BoundingBox, error) {
	box := BoundingBox{
		X1: x1,
		Y1: y1,
		X2: x2,
		Y2: y2,
	}
	if err := box.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return box, nil
}

// NewBoundingBoxXYWH creates new BoundingBox from top-left corner and dimensions
func NewBoundingBoxXYWH(x, y, width, height float64) (BoundingBox, error) {
	return NewBoundingBox(x, y, x+width, y+height)
}

// Validate returns ErrInvalidBox if box does not satisfy X1 < X2 and Y1 < Y2.
// NaN coordinates are rejected too.
func (box BoundingBox) Validate() error {
	if !(box.X1 < box.X2) || !(box.Y1 < box.Y2) {
		return errors.Wrapf(ErrInvalidBox, "(%v, %v, %v, %v)", box.X1, box.Y1, box.X2, box.Y2)
	}
	return nil
}

// Width returns box's width
func (box BoundingBox) Width() float64 {
	return box.X2 - box.X1
}

// Height returns box's height
func (box BoundingBox) Height() float64 {
	return box.Y2 - box.Y1
}

// Area returns box's area
func (box BoundingBox) Area() float64 {
	return box.Width() * box.Height()
}

// Center returns box's center
func (box BoundingBox) Center() Point {
	return Point{
		X: (box.X1 + box.X2) / 2.0,
		Y: (box.Y1 + box.Y2) / 2.0,
	}
}

func (box BoundingBox) TopLeft() Point     { return Point{X: box.X1, Y: box.Y1} }
func (box BoundingBox) TopRight() Point    { return Point{X: box.X2, Y: box.Y1} }
func (box BoundingBox) BottomLeft() Point  { return Point{X: box.X1, Y: box.Y2} }
func (box BoundingBox) BottomRight() Point { return Point{X: box.X2, Y: box.Y2} }

func (box BoundingBox) TopCenter() Point    { return Point{X: box.X1 + box.Width()/2.0, Y: box.Y1} }
func (box BoundingBox) BottomCenter() Point { return Point{X: box.X1 + box.Width()/2.0, Y: box.Y2} }
func (box BoundingBox) LeftCenter() Point   { return Point{X: box.X1, Y: box.Y1 + box.Height()/2.0} }
func (box BoundingBox) RightCenter() Point  { return Point{X: box.X2, Y: box.Y1 + box.Height()/2.0} }

// Intersection returns overlapping region of two boxes.
// Second value is false when boxes do not overlap (touching edges is not an overlap).
func Intersection(a, b BoundingBox) (BoundingBox, bool) {
	inter := BoundingBox{
		X1: maxFloat64(a.X1, b.X1),
		Y1: maxFloat64(a.Y1, b.Y1),
		X2: minFloat64(a.X2, b.X2),
		Y2: minFloat64(a.Y2, b.Y2),
	}
	if inter.X1 >= inter.X2 || inter.Y1 >= inter.Y2 {
		return BoundingBox{}, false
	}
	return inter, true
}

// IntersectionArea returns area of overlapping region of two boxes (0 if there is no overlap)
func IntersectionArea(a, b BoundingBox) float64 {
	return maxFloat64(0, minFloat64(a.X2, b.X2)-maxFloat64(a.X1, b.X1)) *
		maxFloat64(0, minFloat64(a.Y2, b.Y2)-maxFloat64(a.Y1, b.Y1))
}

// ContainmentRatio returns fraction of the ball's box area covered by the player's box.
// Degenerate (zero-area) ball gives 0.
func ContainmentRatio(player, ball BoundingBox) float64 {
	ballArea := ball.Area()
	if ballArea <= 0 {
		return 0.0
	}
	return IntersectionArea(player, ball) / ballArea
}

// KeyPoints returns reference points of the player's box used for distance scoring.
// When ball's Y lies strictly inside the box vertically, left and right edge points at the ball's height go first.
// When ball's X lies strictly inside the box horizontally, top and bottom edge points at the ball's X go next.
// Corners and edge midpoints are always present.
func KeyPoints(player BoundingBox, ballCenter Point) []Point {
	points := make([]Point, 0, 12)
	if ballCenter.Y > player.Y1 && ballCenter.Y < player.Y2 {
		points = append(points, Point{X: player.X1, Y: ballCenter.Y}, Point{X: player.X2, Y: ballCenter.Y})
	}
	if ballCenter.X > player.X1 && ballCenter.X < player.X2 {
		points = append(points, Point{X: ballCenter.X, Y: player.Y1}, Point{X: ballCenter.X, Y: player.Y2})
	}
	points = append(points,
		player.TopLeft(),
		player.TopRight(),
		player.BottomLeft(),
		player.BottomRight(),
		player.TopCenter(),
		player.BottomCenter(),
		player.LeftCenter(),
		player.RightCenter(),
	)
	return points
}

// KeyPointDistance returns minimal distance between ball's center and player's key points
func KeyPointDistance(player BoundingBox, ballCenter Point) float64 {
	minDistance := math.MaxFloat64
	for _, pt := range KeyPoints(player, ballCenter) {
		minDistance = math.Min(minDistance, euclideanDistance(ballCenter, pt))
	}
	return minDistance
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(p1.X-p2.X, 2) + math.Pow(p1.Y-p2.Y, 2))
}
