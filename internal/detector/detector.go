// Package detector wraps trained object-detection models behind a small, frame-in/boxes-out contract.
package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

var (
	// ErrModelLoad is returned when a model or its class table cannot be loaded at startup.
	ErrModelLoad = errors.New("model load failed")

	// ErrEmptyFrame is returned when Detect is handed a nil or empty frame.
	ErrEmptyFrame = errors.New("empty frame")
)

// Detector defines the interface for object detection implementations.
type Detector interface {
	// Detect runs the model on frame and returns every box scoring at least minConfidence.
	// Returns an empty slice if nothing is detected.
	Detect(frame *gocv.Mat, minConfidence float64) ([]Result, error)

	// Label resolves a class id through the model's class table.
	Label(classID int) string

	// Close releases any resources held by the detector.
	Close() error
}

// Box is an axis-aligned bounding box in frame pixels. X1 < X2 and Y1 < Y2.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the box width in pixels.
func (b Box) Width() int { return b.X2 - b.X1 }

// Height returns the box height in pixels.
func (b Box) Height() int { return b.Y2 - b.Y1 }

// Result is one raw model output: a box, the class id and its score.
type Result struct {
	Box        Box
	ClassID    int
	Confidence float64
}

// ClampBox converts model coordinates to integer pixels inside a width x height frame.
// The second return value is false when the clamped box has no area.
func ClampBox(x1, y1, x2, y2 float64, width, height int) (Box, bool) {
	b := Box{
		X1: clampInt(int(x1), 0, width),
		Y1: clampInt(int(y1), 0, height),
		X2: clampInt(int(x2), 0, width),
		Y2: clampInt(int(y2), 0, height),
	}
	if b.X1 >= b.X2 || b.Y1 >= b.Y2 {
		return Box{}, false
	}
	return b, true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
