package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/LdDl/possession-go/possession"
	"github.com/LdDl/possession-go/team"
	"github.com/LdDl/possession-go/tracking"
)

type inputDetection struct {
	Class      string    `json:"class"`
	BBox       []float64 `json:"bbox"`
	Confidence float64   `json:"confidence"`
	// Optional team label from an external classifier
	Team int `json:"team,omitempty"`
}

type inputFile struct {
	Frames [][]inputDetection `json:"frames"`
}

type teamLabel struct {
	frame int
	box   possession.BoundingBox
	team  team.Team
}

type outputFrame struct {
	Frame     int                  `json:"frame"`
	Ball      []float64            `json:"ball"`
	Possessor *possession.TrackID  `json:"possessor"`
	Team      int                  `json:"team"`
}

type outputFile struct {
	Frames   []outputFrame        `json:"frames"`
	Segments []possession.Segment `json:"segments"`
	Coverage int                  `json:"coverage"`
}

func readInput(path string) (*inputFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "can't read detections")
	}
	input := &inputFile{}
	if err = json.Unmarshal(data, input); err != nil {
		return nil, errors.Wrapf(err, "can't decode detections from '%s'", path)
	}
	return input, nil
}

// detections converts decoded input into tracker detections and team labels
func (input *inputFile) detections() ([][]tracking.Detection, []teamLabel, error) {
	frames := make([][]tracking.Detection, len(input.Frames))
	labels := []teamLabel{}
	for frameIdx, frame := range input.Frames {
		frames[frameIdx] = make([]tracking.Detection, 0, len(frame))
		for i, det := range frame {
			if len(det.BBox) != 4 {
				return nil, nil, errors.Errorf("frame %d, detection %d: bbox must have 4 values, got %d", frameIdx, i, len(det.BBox))
			}
			box, err := possession.NewBoundingBox(det.BBox[0], det.BBox[1], det.BBox[2], det.BBox[3])
			if err != nil {
				return nil, nil, errors.Wrapf(err, "frame %d, detection %d", frameIdx, i)
			}
			frames[frameIdx] = append(frames[frameIdx], tracking.Detection{
				Box:        box,
				Confidence: det.Confidence,
				Class:      det.Class,
			})
			if det.Team != 0 {
				labels = append(labels, teamLabel{frame: frameIdx, box: box, team: team.Team(det.Team)})
			}
		}
	}
	return frames, labels, nil
}

func writeOutput(path string, out *outputFile) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(err, "can't encode result")
	}
	if path == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return errors.Wrap(err, "can't write result")
	}
	if err = os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "can't write result to '%s'", path)
	}
	return nil
}
