package possession

// IoU calculates Intersection over Union between two boxes.
func IoU(a, b BoundingBox) float64 {
	interArea := IntersectionArea(a, b)
	if interArea == 0 {
		return 0.0
	}
	// Valid boxes have positive area, so union is never zero here
	return interArea / (a.Area() + b.Area() - interArea)
}

func maxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
