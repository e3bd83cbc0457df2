package possession

import "github.com/pkg/errors"

var (
	// ErrInvalidBox is returned for a box violating x1 < x2 and y1 < y2
	ErrInvalidBox = errors.New("invalid bounding box")
	// ErrLengthMismatch is returned when per-frame sequences are not aligned
	ErrLengthMismatch = errors.New("per-frame sequences have different lengths")
	// ErrFrameOrder is returned when frames are fed to a stateful component out of order
	ErrFrameOrder = errors.New("frames must be processed in increasing order")
)
