package possession

// Segment is a run of consecutive frames with the same committed possessor. Both ends are inclusive.
type Segment struct {
	Player TrackID `json:"player"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
}

// Frames returns number of frames in segment
func (s Segment) Frames() int {
	return s.End - s.Start + 1
}

// PossessionSegments encodes possession sequence as runs
func PossessionSegments(possession []*TrackID) []Segment {
	segments := make([]Segment, 0)
	for frameIdx, playerID := range possession {
		if playerID == nil {
			continue
		}
		if n := len(segments); n > 0 && segments[n-1].Player == *playerID && segments[n-1].End == frameIdx-1 {
			segments[n-1].End = frameIdx
			continue
		}
		segments = append(segments, Segment{Player: *playerID, Start: frameIdx, End: frameIdx})
	}
	return segments
}

// Coverage returns number of frames with resolved ball
func Coverage(balls []*BoundingBox) int {
	covered := 0
	for _, ball := range balls {
		if ball != nil {
			covered++
		}
	}
	return covered
}
