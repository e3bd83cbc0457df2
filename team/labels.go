package team

import (
	"github.com/LdDl/possession-go/possession"
)

type labeledBox struct {
	box  possession.BoundingBox
	team Team
}

// LabelClassifier answers with team labels produced by an external model beforehand.
// Player gets label of the labeled box with the highest IoU on the same frame.
type LabelClassifier struct {
	labels map[int][]labeledBox
	minIoU float64
}

// NewLabelClassifier creates classifier. Labeled boxes overlapping the player's box with IoU less than minIoU are ignored
func NewLabelClassifier(minIoU float64) *LabelClassifier {
	return &LabelClassifier{
		labels: make(map[int][]labeledBox),
		minIoU: minIoU,
	}
}

// Add stores team label of a box on a frame
func (lc *LabelClassifier) Add(frameIdx int, box possession.BoundingBox, team Team) {
	lc.labels[frameIdx] = append(lc.labels[frameIdx], labeledBox{box: box, team: team})
}

// Classify implements Classifier. Unlabeled players are TeamUnknown
func (lc *LabelClassifier) Classify(frameIdx int, _ possession.TrackID, box possession.BoundingBox) (Team, error) {
	best := TeamUnknown
	bestIoU := lc.minIoU
	for _, labeled := range lc.labels[frameIdx] {
		iou := possession.IoU(labeled.box, box)
		if iou > 0 && iou >= bestIoU {
			bestIoU = iou
			best = labeled.team
		}
	}
	return best, nil
}
